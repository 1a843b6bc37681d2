package domain

import "time"

// Delivery platforms accepted by the order confirmation tool.
const (
	PlatformUberEats  = "Uber Eats"
	PlatformDoorDash  = "DoorDash"
	PlatformInstacart = "Instacart"
)

// DeliveryPlatforms lists the accepted delivery_platform values in schema order.
var DeliveryPlatforms = []string{PlatformUberEats, PlatformDoorDash, PlatformInstacart}

// ConfirmationRestaurant identifies the restaurant in an order confirmation.
type ConfirmationRestaurant struct {
	Name    string  `json:"name"`
	Address string  `json:"address"`
	Lat     float64 `json:"lat"`
	Lng     float64 `json:"lng"`
}

// ConfirmationItem is one line of an order awaiting confirmation.
type ConfirmationItem struct {
	Item  string  `json:"item"`
	Price float64 `json:"price"`
	Notes string  `json:"notes,omitempty"`
}

// OrderConfirmation is the order the assistant asked the user to confirm.
type OrderConfirmation struct {
	Success           bool                   `json:"success"`
	Restaurant        ConfirmationRestaurant `json:"restaurant"`
	Items             []ConfirmationItem     `json:"items"`
	TotalPrice        float64                `json:"total_price"`
	DeliveryPlatform  string                 `json:"delivery_platform"`
	EstimatedDelivery string                 `json:"estimated_delivery"`
}

// OrderStatus tracks an order run through execution.
type OrderStatus string

const (
	OrderPending   OrderStatus = "pending"
	OrderRunning   OrderStatus = "running"
	OrderSucceeded OrderStatus = "succeeded"
	OrderFailed    OrderStatus = "failed"
)

// OrderRecord is a persisted order run. Draft and Summary are stored as JSON.
type OrderRecord struct {
	ID        string      `json:"id"`
	SessionID string      `json:"sessionId,omitempty"`
	Status    OrderStatus `json:"status"`
	Draft     string      `json:"draft"`
	Summary   string      `json:"summary,omitempty"`
	Error     string      `json:"error,omitempty"`
	CreatedAt time.Time   `json:"createdAt"`
	UpdatedAt time.Time   `json:"updatedAt"`
}
