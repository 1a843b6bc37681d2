package domain

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRestaurantFromPlace(t *testing.T) {
	p := Place{
		ID:         "place-1",
		Name:       "Green Bowl",
		Address:    "1 Main St",
		Location:   LatLng{Lat: 30.27, Lng: -97.74},
		Rating:     4.6,
		PriceLevel: "PRICE_LEVEL_MODERATE",
	}

	r := RestaurantFromPlace(p)
	assert.Equal(t, "place-1", r.PlaceID)
	assert.Equal(t, "Green Bowl", r.Name)
	assert.InDelta(t, 30.27, r.Lat, 1e-9)
	assert.InDelta(t, -97.74, r.Lng, 1e-9)
	assert.False(t, r.Deliverable())
}

func TestRestaurantDeliverable(t *testing.T) {
	tests := []struct {
		name      string
		platforms []string
		want      bool
	}{
		{"none", nil, false},
		{"blank", []string{"  "}, false},
		{"one", []string{"DoorDash"}, true},
		{"mixed", []string{"", "Uber Eats"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := Restaurant{DeliveryPlatforms: tt.platforms}
			assert.Equal(t, tt.want, r.Deliverable())
		})
	}
}

func TestRestaurantJSONFieldNames(t *testing.T) {
	r := Restaurant{
		PlaceID:           "p",
		Name:              "n",
		MenuItems:         []MenuItem{{Name: "Salad", Price: 9.5}},
		DeliveryPlatforms: []string{"DoorDash"},
	}
	data, err := json.Marshal(r)
	require.NoError(t, err)

	var raw map[string]any
	require.NoError(t, json.Unmarshal(data, &raw))
	assert.Contains(t, raw, "place_id")
	assert.Contains(t, raw, "menu_items")
	assert.Contains(t, raw, "delivery_platforms")
}

func TestOrderConfirmationKeepsTotalPrice(t *testing.T) {
	conf := OrderConfirmation{
		Success:          true,
		Restaurant:       ConfirmationRestaurant{Name: "Green Bowl", Address: "1 Main St", Lat: 30.1, Lng: -97.2},
		Items:            []ConfirmationItem{{Item: "Bowl", Price: 23.5}},
		TotalPrice:       23.50,
		DeliveryPlatform: PlatformDoorDash,
	}
	data, err := json.Marshal(conf)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"total_price":23.5`)
	assert.Contains(t, string(data), `"delivery_platform":"DoorDash"`)
	assert.NotContains(t, string(data), "notes")
}

func TestConversationEnded(t *testing.T) {
	c := Conversation{ID: "c1", StartedAt: time.Now()}
	assert.False(t, c.Ended())
	now := time.Now()
	c.EndedAt = &now
	assert.True(t, c.Ended())
}

func TestDeliveryPlatformsOrder(t *testing.T) {
	assert.Equal(t, []string{"Uber Eats", "DoorDash", "Instacart"}, DeliveryPlatforms)
}
