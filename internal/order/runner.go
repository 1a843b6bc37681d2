package order

import (
	"context"
	"fmt"

	"github.com/soyeahso/foodvoice/internal/logging"
)

const failedToFill = "Failed to find items or add to cart"

// Summary aggregates the results of every group in a draft.
type Summary struct {
	Success             bool             `json:"success"`
	Budget              *string          `json:"budget"`
	DietaryRestrictions []string         `json:"dietary_restrictions"`
	Orders              []PlatformResult `json:"orders"`
	TotalOrders         int              `json:"total_orders"`
	SuccessfulOrders    int              `json:"successful_orders"`
	FailedOrders        int              `json:"failed_orders"`
}

// Runner executes drafts group by group.
type Runner struct {
	exec Executor
	log  *logging.Logger
}

// NewRunner creates a runner over an executor.
func NewRunner(exec Executor, log *logging.Logger) *Runner {
	return &Runner{exec: exec, log: log.Sub("order")}
}

// Process runs every group of the draft in order. Group failures are
// recorded in the summary; the error return is only for invalid drafts.
// The summary is unsuccessful only when every group failed.
func (r *Runner) Process(ctx context.Context, draft *Draft) (*Summary, error) {
	if err := draft.Validate(); err != nil {
		return nil, err
	}
	d := draft.Clone()

	sum := &Summary{
		Budget:              d.Budget,
		DietaryRestrictions: d.DietaryRestrictions,
		Orders:              make([]PlatformResult, 0, len(d.Orders)),
		TotalOrders:         len(d.Orders),
	}
	if sum.DietaryRestrictions == nil {
		sum.DietaryRestrictions = []string{}
	}

	for _, g := range d.Orders {
		res := r.runGroup(ctx, g, d.BudgetString(), d.DietaryRestrictions)
		if res.Success {
			sum.SuccessfulOrders++
		} else {
			sum.FailedOrders++
		}
		sum.Orders = append(sum.Orders, res)
	}

	sum.Success = sum.FailedOrders == 0 || sum.SuccessfulOrders > 0
	r.log.Info().
		Int("orders", sum.TotalOrders).
		Int("succeeded", sum.SuccessfulOrders).
		Int("failed", sum.FailedOrders).
		Msg("order run finished")
	return sum, nil
}

func (r *Runner) runGroup(ctx context.Context, g Group, budget string, dietary []string) PlatformResult {
	failed := PlatformResult{Platform: g.Platform, Items: []CartItem{}}

	if err := ctx.Err(); err != nil {
		failed.Error = fmt.Sprintf("cancelled: %v", err)
		return failed
	}

	task := NewTask(g, budget, dietary)
	log := r.log.With("platform", g.Platform)
	log.Info().Str("site", task.Site).Int("items", len(g.Items)).Msg("executing order")

	res, err := r.exec.Execute(ctx, task)
	if err != nil {
		log.Warn().Err(err).Msg("executor failed")
		failed.Error = err.Error()
		return failed
	}
	if res == nil || !res.Success {
		failed.Error = failedToFill
		if res != nil && res.Error != "" {
			failed.Error = res.Error
		}
		return failed
	}

	out := *res
	out.Platform = g.Platform
	if out.Items == nil {
		out.Items = []CartItem{}
	}
	if out.TotalItems == 0 {
		out.TotalItems = len(out.Items)
	}
	if out.TotalPrice == 0 {
		for _, it := range out.Items {
			out.TotalPrice += it.Price
		}
	}
	return out
}
