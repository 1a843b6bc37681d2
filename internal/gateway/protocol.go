package gateway

import (
	"encoding/json"
	"time"

	"github.com/soyeahso/foodvoice/internal/domain"
	"github.com/soyeahso/foodvoice/internal/order"
)

// HealthResponse is returned by GET /health.
type HealthResponse struct {
	Status        string `json:"status"`
	Version       string `json:"version"`
	Sessions      int    `json:"sessions"`
	UptimeSeconds int64  `json:"uptime_seconds"`
}

// ServiceInfo is returned by GET /.
type ServiceInfo struct {
	Service   string   `json:"service"`
	Version   string   `json:"version"`
	Status    string   `json:"status"`
	Endpoints []string `json:"endpoints"`
}

// ErrorResponse is the body of every non-2xx JSON response.
type ErrorResponse struct {
	Error   string `json:"error"`
	OrderID string `json:"order_id,omitempty"`
	Path    string `json:"path,omitempty"`
}

// WebhookResponse echoes a received webhook.
type WebhookResponse struct {
	Status       string `json:"status"`
	Message      string `json:"message"`
	ReceivedData any    `json:"received_data"`
}

// PlanRequest asks the planner to turn free text into an order draft.
type PlanRequest struct {
	Request string `json:"request"`
}

// PlanResponse carries the draft and the intermediate planner analyses.
type PlanResponse struct {
	Draft               *order.Draft `json:"draft"`
	PreferencesAnalysis string       `json:"preferences_analysis"`
	PlatformSelection   string       `json:"platform_selection"`
}

// OrderResponse reports an order run. Summary is absent for runs started
// asynchronously.
type OrderResponse struct {
	OrderID string             `json:"order_id"`
	Status  domain.OrderStatus `json:"status"`
	Summary *order.Summary     `json:"summary,omitempty"`
}

// OrderDetail is a stored order run with its draft and summary inlined as JSON.
type OrderDetail struct {
	ID        string             `json:"order_id"`
	SessionID string             `json:"session_id,omitempty"`
	Status    domain.OrderStatus `json:"status"`
	Draft     json.RawMessage    `json:"draft"`
	Summary   json.RawMessage    `json:"summary,omitempty"`
	Error     string             `json:"error,omitempty"`
	CreatedAt time.Time          `json:"created_at"`
	UpdatedAt time.Time          `json:"updated_at"`
}

func orderDetail(rec domain.OrderRecord) OrderDetail {
	d := OrderDetail{
		ID:        rec.ID,
		SessionID: rec.SessionID,
		Status:    rec.Status,
		Error:     rec.Error,
		CreatedAt: rec.CreatedAt,
		UpdatedAt: rec.UpdatedAt,
	}
	if json.Valid([]byte(rec.Draft)) {
		d.Draft = json.RawMessage(rec.Draft)
	}
	if rec.Summary != "" && json.Valid([]byte(rec.Summary)) {
		d.Summary = json.RawMessage(rec.Summary)
	}
	return d
}

// OrderListResponse lists stored order runs, newest first.
type OrderListResponse struct {
	Orders []OrderDetail `json:"orders"`
}

// SitesResponse lists the delivery websites the executor supports.
type SitesResponse struct {
	Sites []order.Site `json:"sites"`
}
