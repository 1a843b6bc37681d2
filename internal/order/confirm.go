package order

import (
	"fmt"
	"strings"

	"github.com/soyeahso/foodvoice/internal/domain"
)

// FromConfirmation converts the order the user confirmed in the voice UI
// into a single-group draft for the executor.
func FromConfirmation(conf *domain.OrderConfirmation, prefs domain.Preferences) (*Draft, error) {
	if conf == nil {
		return nil, fmt.Errorf("no order awaiting confirmation")
	}

	items := make([]Item, 0, len(conf.Items))
	for _, it := range conf.Items {
		details := []string{fmt.Sprintf("from %s", conf.Restaurant.Name)}
		if conf.Restaurant.Address != "" {
			details = append(details, conf.Restaurant.Address)
		}
		details = append(details, fmt.Sprintf("listed at $%.2f", it.Price))
		if it.Notes != "" {
			details = append(details, it.Notes)
		}
		items = append(items, Item{Name: it.Item, Quantity: "1", Details: strings.Join(details, "; ")})
	}

	d := &Draft{
		DietaryRestrictions: []string{},
		Orders:              []Group{{Platform: conf.DeliveryPlatform, Items: items}},
	}
	if prefs.Dietary != "" {
		d.DietaryRestrictions = append(d.DietaryRestrictions, prefs.Dietary)
	}
	budget := prefs.Budget
	if budget == "" && conf.TotalPrice > 0 {
		budget = fmt.Sprintf("%.2f", conf.TotalPrice)
	}
	if budget != "" {
		d.Budget = &budget
	}

	if err := d.Validate(); err != nil {
		return nil, err
	}
	return d, nil
}
