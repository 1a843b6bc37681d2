package domain

import "strings"

// LatLng is a geographic coordinate.
type LatLng struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Place is a restaurant returned by place search, before research.
type Place struct {
	ID         string  `json:"place_id"`
	Name       string  `json:"name"`
	Address    string  `json:"address"`
	Location   LatLng  `json:"location"`
	Rating     float64 `json:"rating,omitempty"`
	PriceLevel string  `json:"price_level,omitempty"`
	Website    string  `json:"website,omitempty"`
}

// MenuItem is a dish offered by a restaurant.
type MenuItem struct {
	Name        string  `json:"name"`
	Price       float64 `json:"price"`
	Description string  `json:"description,omitempty"`
}

// Restaurant is a researched place with menu and delivery platforms attached.
type Restaurant struct {
	PlaceID           string     `json:"place_id"`
	Name              string     `json:"name"`
	Address           string     `json:"address"`
	Lat               float64    `json:"lat"`
	Lng               float64    `json:"lng"`
	Rating            float64    `json:"rating,omitempty"`
	PriceLevel        string     `json:"price_level,omitempty"`
	Website           string     `json:"website,omitempty"`
	MenuItems         []MenuItem `json:"menu_items"`
	DeliveryPlatforms []string   `json:"delivery_platforms"`
}

// RestaurantFromPlace copies the place fields into an unresearched Restaurant.
func RestaurantFromPlace(p Place) Restaurant {
	return Restaurant{
		PlaceID:    p.ID,
		Name:       p.Name,
		Address:    p.Address,
		Lat:        p.Location.Lat,
		Lng:        p.Location.Lng,
		Rating:     p.Rating,
		PriceLevel: p.PriceLevel,
		Website:    p.Website,
	}
}

// Deliverable reports whether at least one delivery platform carries the restaurant.
func (r Restaurant) Deliverable() bool {
	for _, p := range r.DeliveryPlatforms {
		if strings.TrimSpace(p) != "" {
			return true
		}
	}
	return false
}

// Preferences is what the user has told the assistant about this order.
type Preferences struct {
	Dietary string `json:"dietary,omitempty"`
	Budget  string `json:"budget,omitempty"`
}
