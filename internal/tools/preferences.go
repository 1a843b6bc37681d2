package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/soyeahso/foodvoice/internal/agent"
	"github.com/soyeahso/foodvoice/internal/logging"
	"github.com/soyeahso/foodvoice/internal/memory"
)

// StoreDietary records the user's dietary needs on the session and in
// long-term preference memory.
type StoreDietary struct {
	memory memory.Store
	log    *logging.Logger
}

func (t *StoreDietary) Name() string { return NameStoreDietary }

func (t *StoreDietary) Description() string {
	return "Store the user's dietary preferences, restrictions, and food preferences for restaurant recommendations"
}

func (t *StoreDietary) InputSchema() string {
	return `{
  "type": "object",
  "properties": {
    "preferences": {
      "type": "string",
      "description": "A comprehensive summary of the user's dietary needs, restrictions, allergies, and food preferences"
    }
  },
  "required": ["preferences"]
}`
}

func (t *StoreDietary) Execute(ctx context.Context, tc *agent.ToolContext, input json.RawMessage) (*agent.ToolResult, error) {
	var args struct {
		Preferences string `json:"preferences"`
	}
	if err := json.Unmarshal(input, &args); err != nil {
		return nil, fmt.Errorf("invalid arguments: %w", err)
	}
	prefs := strings.TrimSpace(args.Preferences)
	if prefs == "" {
		return nil, fmt.Errorf("preferences is required")
	}

	if tc != nil && tc.State != nil {
		tc.State.SetDietary(prefs)
	}
	rememberPreference(ctx, t.memory, t.log, tc, "dietary", prefs)

	return &agent.ToolResult{Output: map[string]any{
		"success":     true,
		"message":     "Dietary preferences stored successfully",
		"preferences": prefs,
	}}, nil
}

// StoreBudget records the user's budget on the session.
type StoreBudget struct {
	memory memory.Store
	log    *logging.Logger
}

func (t *StoreBudget) Name() string { return NameStoreBudget }

func (t *StoreBudget) Description() string {
	return "Store the user's budget constraints for this order"
}

func (t *StoreBudget) InputSchema() string {
	return `{
  "type": "object",
  "properties": {
    "budget": {
      "type": "string",
      "description": "Description of their budget preference (e.g., 'budget-friendly', 'willing to splurge', 'moderate')"
    }
  },
  "required": ["budget"]
}`
}

func (t *StoreBudget) Execute(ctx context.Context, tc *agent.ToolContext, input json.RawMessage) (*agent.ToolResult, error) {
	var args struct {
		Budget string `json:"budget"`
	}
	if err := json.Unmarshal(input, &args); err != nil {
		return nil, fmt.Errorf("invalid arguments: %w", err)
	}
	budget := strings.TrimSpace(args.Budget)
	if budget == "" {
		return nil, fmt.Errorf("budget is required")
	}

	if tc != nil && tc.State != nil {
		tc.State.SetBudget(budget)
	}
	rememberPreference(ctx, t.memory, t.log, tc, "budget", budget)

	return &agent.ToolResult{Output: map[string]any{
		"success": true,
		"message": "Budget information stored successfully",
		"budget":  budget,
	}}, nil
}

// rememberPreference writes to long-term memory. Memory is best effort: a
// failure never fails the tool call.
func rememberPreference(ctx context.Context, store memory.Store, log *logging.Logger, tc *agent.ToolContext, kind, text string) {
	e := memory.Entry{Kind: kind, Text: text}
	if tc != nil {
		e.SessionID = tc.SessionID
	}
	if err := store.Remember(ctx, e); err != nil {
		log.Warn().Err(err).Str("kind", kind).Msg("failed to remember preference")
	}
}
