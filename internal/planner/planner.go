// Package planner turns a free-form food request into a structured order
// draft through three model stages: preferences analysis, platform
// selection and order generation.
package planner

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/soyeahso/foodvoice/internal/llm"
	"github.com/soyeahso/foodvoice/internal/logging"
	"github.com/soyeahso/foodvoice/internal/order"
)

// ErrEmptyRequest is returned when there is nothing to plan.
var ErrEmptyRequest = errors.New("planner: empty request")

// Result holds the output of every stage.
type Result struct {
	PreferencesAnalysis string       `json:"preferences_analysis"`
	PlatformSelection   string       `json:"platform_selection"`
	Draft               *order.Draft `json:"order_details"`
}

// Pipeline runs the planning stages in sequence against one model.
type Pipeline struct {
	client    llm.Client
	model     string
	maxTokens int
	log       *logging.Logger
}

// New creates a pipeline. Empty model uses the client default.
func New(client llm.Client, model string, maxTokens int, log *logging.Logger) *Pipeline {
	if maxTokens <= 0 {
		maxTokens = 2048
	}
	return &Pipeline{client: client, model: model, maxTokens: maxTokens, log: log.Sub("planner")}
}

// Plan returns the order draft for a request.
func (p *Pipeline) Plan(ctx context.Context, request string) (*order.Draft, error) {
	res, err := p.Run(ctx, request)
	if err != nil {
		return nil, err
	}
	return res.Draft, nil
}

// Run executes all three stages and returns their outputs. A stage error
// aborts the pipeline.
func (p *Pipeline) Run(ctx context.Context, request string) (*Result, error) {
	request = strings.TrimSpace(request)
	if request == "" {
		return nil, ErrEmptyRequest
	}
	start := time.Now()

	analysis, err := p.stage(ctx, "preferences", preferencesPrompt, request, false)
	if err != nil {
		return nil, err
	}

	selection, err := p.stage(ctx, "platform", platformPrompt(analysis), request, false)
	if err != nil {
		return nil, err
	}

	raw, err := p.stage(ctx, "order", orderPrompt(analysis, selection), request, true)
	if err != nil {
		return nil, err
	}
	draft, err := order.ParseDraft(raw)
	if err != nil {
		return nil, fmt.Errorf("order stage: %w", err)
	}

	p.log.Info().
		Int("orders", len(draft.Orders)).
		Dur("duration", time.Since(start)).
		Msg("order planned")
	return &Result{PreferencesAnalysis: analysis, PlatformSelection: selection, Draft: draft}, nil
}

func (p *Pipeline) stage(ctx context.Context, name, system, request string, jsonOut bool) (string, error) {
	resp, err := p.client.Complete(ctx, llm.CompletionRequest{
		Model:      p.model,
		System:     system,
		Messages:   []llm.Message{{Role: llm.RoleUser, Content: request}},
		MaxTokens:  p.maxTokens,
		JSONOutput: jsonOut,
	})
	if err != nil {
		return "", fmt.Errorf("%s stage: %w", name, err)
	}
	out := strings.TrimSpace(resp.Content)
	if out == "" {
		return "", fmt.Errorf("%s stage: empty response", name)
	}
	p.log.Debug().Str("stage", name).Str("output", out).Msg("stage complete")
	return out, nil
}
