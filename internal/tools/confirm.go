package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"
	"strings"

	"github.com/soyeahso/foodvoice/internal/agent"
	"github.com/soyeahso/foodvoice/internal/domain"
)

// AskForConfirmation turns the chosen order into a confirmation card and
// holds it on the session until the user clicks confirm.
type AskForConfirmation struct{}

func (t *AskForConfirmation) Name() string { return NameAskForConfirm }

func (t *AskForConfirmation) Description() string {
	return "Ask the user for confirmation of the order"
}

func (t *AskForConfirmation) InputSchema() string {
	return `{
  "type": "object",
  "properties": {
    "restaurant_name": {"type": "string", "description": "Name of the restaurant"},
    "restaurant_address": {"type": "string", "description": "Restaurant's full address"},
    "restaraunt_lat": {"type": "number", "description": "Latitude of the restaurant"},
    "restaraunt_lng": {"type": "number", "description": "Longitude of the restaurant"},
    "items": {
      "type": "array",
      "description": "List of menu items being ordered",
      "items": {
        "type": "object",
        "properties": {
          "item": {"type": "string", "description": "Name of the menu item"},
          "price": {"type": "number", "description": "Price of the item in dollars"},
          "notes": {"type": "string", "description": "Any modifications or special requests"}
        },
        "required": ["item", "price"]
      }
    },
    "total_price": {"type": "number", "description": "Total price of all items in dollars (before delivery fees and tax)"},
    "delivery_platform": {
      "type": "string",
      "description": "Which platform to order from",
      "enum": ["Uber Eats", "DoorDash", "Instacart"]
    }
  },
  "required": ["restaurant_name", "restaurant_address", "restaraunt_lat", "restaraunt_lng", "items", "total_price", "delivery_platform"]
}`
}

type confirmArgs struct {
	RestaurantName    string                    `json:"restaurant_name"`
	RestaurantAddress string                    `json:"restaurant_address"`
	Lat               float64                   `json:"restaraunt_lat"`
	Lng               float64                   `json:"restaraunt_lng"`
	Items             []domain.ConfirmationItem `json:"items"`
	TotalPrice        float64                   `json:"total_price"`
	DeliveryPlatform  string                    `json:"delivery_platform"`
}

func (t *AskForConfirmation) Execute(ctx context.Context, tc *agent.ToolContext, input json.RawMessage) (*agent.ToolResult, error) {
	var args confirmArgs
	if err := json.Unmarshal(input, &args); err != nil {
		return nil, fmt.Errorf("invalid arguments: %w", err)
	}
	if strings.TrimSpace(args.RestaurantName) == "" {
		return nil, fmt.Errorf("restaurant_name is required")
	}
	if len(args.Items) == 0 {
		return nil, fmt.Errorf("items must not be empty")
	}
	if !slices.Contains(domain.DeliveryPlatforms, args.DeliveryPlatform) {
		return nil, fmt.Errorf("delivery_platform must be one of %v, got %q", domain.DeliveryPlatforms, args.DeliveryPlatform)
	}

	conf := &domain.OrderConfirmation{
		Success: true,
		Restaurant: domain.ConfirmationRestaurant{
			Name:    args.RestaurantName,
			Address: args.RestaurantAddress,
			Lat:     args.Lat,
			Lng:     args.Lng,
		},
		Items:             args.Items,
		TotalPrice:        args.TotalPrice,
		DeliveryPlatform:  args.DeliveryPlatform,
		EstimatedDelivery: estimatedDelivery,
	}
	if tc != nil && tc.State != nil {
		tc.State.SetPendingOrder(conf)
	}

	return &agent.ToolResult{
		Output:   conf,
		UIUpdate: map[string]any{"order_confirmation": conf},
	}, nil
}
