// Package order drafts multi-platform food orders and runs them through a
// browser-automation executor.
package order

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/soyeahso/foodvoice/internal/llm"
)

// ErrEmptyDraft is returned for drafts with nothing to order.
var ErrEmptyDraft = errors.New("order: draft has no orders")

// Draft is a structured order spanning one or more platforms.
type Draft struct {
	Budget              *string  `json:"budget"`
	DietaryRestrictions []string `json:"dietary_restrictions"`
	Orders              []Group  `json:"orders"`
}

// Group is the part of a draft placed on one platform.
type Group struct {
	Platform string `json:"platform"`
	Items    []Item `json:"items"`
}

// Item is one line of a group.
type Item struct {
	Name     string `json:"name"`
	Quantity string `json:"quantity"`
	Details  string `json:"details"`
}

// ParseDraft decodes a draft from model output, tolerating code fences and
// surrounding prose, and validates it.
func ParseDraft(s string) (*Draft, error) {
	var d Draft
	if err := json.Unmarshal([]byte(llm.ExtractJSON(s)), &d); err != nil {
		return nil, fmt.Errorf("parsing order draft: %w", err)
	}
	if err := d.Validate(); err != nil {
		return nil, err
	}
	return &d, nil
}

// Validate checks that every group names a platform and has items.
func (d *Draft) Validate() error {
	if d == nil || len(d.Orders) == 0 {
		return ErrEmptyDraft
	}
	for i, g := range d.Orders {
		if strings.TrimSpace(g.Platform) == "" {
			return fmt.Errorf("order %d: platform is required", i)
		}
		if len(g.Items) == 0 {
			return fmt.Errorf("order %d (%s): no items", i, g.Platform)
		}
		for j, it := range g.Items {
			if strings.TrimSpace(it.Name) == "" {
				return fmt.Errorf("order %d item %d: name is required", i, j)
			}
		}
	}
	return nil
}

// Clone returns a deep copy, so a running order never shares memory with
// the caller's draft.
func (d *Draft) Clone() *Draft {
	if d == nil {
		return nil
	}
	out := &Draft{}
	if d.Budget != nil {
		b := *d.Budget
		out.Budget = &b
	}
	if d.DietaryRestrictions != nil {
		out.DietaryRestrictions = append([]string(nil), d.DietaryRestrictions...)
	}
	if d.Orders != nil {
		out.Orders = make([]Group, len(d.Orders))
		for i, g := range d.Orders {
			out.Orders[i] = Group{Platform: g.Platform, Items: append([]Item(nil), g.Items...)}
		}
	}
	return out
}

// BudgetString returns the budget or "" when unset.
func (d *Draft) BudgetString() string {
	if d == nil || d.Budget == nil {
		return ""
	}
	return *d.Budget
}
