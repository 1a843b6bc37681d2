package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/soyeahso/foodvoice/internal/domain"
	"github.com/soyeahso/foodvoice/internal/llm"
	"github.com/soyeahso/foodvoice/internal/logging"
)

// Tool is a capability the agent can invoke during a conversation.
type Tool interface {
	// Name returns the tool's identifier.
	Name() string

	// Description returns a human-readable description for the LLM.
	Description() string

	// InputSchema returns the JSON Schema for the tool's input.
	InputSchema() string

	// Execute runs the tool with the given JSON arguments.
	Execute(ctx context.Context, tc *ToolContext, input json.RawMessage) (*ToolResult, error)
}

// ToolResult is what a handler hands back: Output is serialized for the LLM,
// UIUpdate (optional) is pushed to the client as a ui_update event.
type ToolResult struct {
	Output   any
	UIUpdate any
}

// Progress statuses reported while a tool runs.
const (
	StatusStarted   = "started"
	StatusCompleted = "completed"
	StatusError     = "error"
)

// ProgressEvent describes one step of a tool invocation.
type ProgressEvent struct {
	Function string `json:"function"`
	Status   string `json:"status"`
	Data     any    `json:"data,omitempty"`
	Result   any    `json:"result,omitempty"`
	Error    string `json:"error,omitempty"`
}

// ProgressFunc receives tool progress events. It must not block for long.
type ProgressFunc func(ProgressEvent)

// SessionState is the per-session ordering state tools read and write.
type SessionState interface {
	Preferences() domain.Preferences
	SetDietary(preferences string)
	SetBudget(budget string)
	SetSearchResults(results []domain.Restaurant)
	SetPendingOrder(conf *domain.OrderConfirmation)
}

// ToolContext carries the session a tool call belongs to.
type ToolContext struct {
	SessionID string
	State     SessionState
	Progress  ProgressFunc
}

func (tc *ToolContext) emit(ev ProgressEvent) {
	if tc != nil && tc.Progress != nil {
		tc.Progress(ev)
	}
}

// ToolRegistry holds available tools in registration order.
type ToolRegistry struct {
	tools map[string]Tool
	order []string
	log   *logging.Logger
}

// NewToolRegistry creates an empty tool registry.
func NewToolRegistry(log *logging.Logger) *ToolRegistry {
	return &ToolRegistry{
		tools: make(map[string]Tool),
		log:   log.Sub("tools"),
	}
}

// Register adds a tool. Registering a name twice replaces the handler but
// keeps its original position.
func (r *ToolRegistry) Register(t Tool) {
	if _, exists := r.tools[t.Name()]; !exists {
		r.order = append(r.order, t.Name())
	}
	r.tools[t.Name()] = t
}

// Get returns a tool by name.
func (r *ToolRegistry) Get(name string) (Tool, bool) {
	t, ok := r.tools[name]
	return t, ok
}

// Names returns the registered tool names in registration order.
func (r *ToolRegistry) Names() []string {
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}

// Definitions returns LLM-ready tool definitions in registration order.
func (r *ToolRegistry) Definitions() []llm.ToolDefinition {
	defs := make([]llm.ToolDefinition, 0, len(r.order))
	for _, name := range r.order {
		t := r.tools[name]
		defs = append(defs, llm.ToolDefinition{
			Name:        t.Name(),
			Description: t.Description(),
			InputSchema: t.InputSchema(),
		})
	}
	return defs
}

// Dispatch runs one tool call and returns the JSON output for the tool
// message plus the handler's UI update, if any. Failures never escape: they
// become {"success":false,"error":...} so the conversation can continue.
func (r *ToolRegistry) Dispatch(ctx context.Context, tc *ToolContext, call llm.ToolCall) (string, any) {
	log := r.log.With("tool", call.Name)
	if tc != nil {
		log = log.With("sessionId", tc.SessionID)
	}

	args := json.RawMessage(call.Input)
	if len(args) == 0 {
		args = json.RawMessage("{}")
	}

	tool, ok := r.tools[call.Name]
	if !ok {
		err := fmt.Errorf("unknown tool: %s", call.Name)
		log.Warn().Msg("model requested unknown tool")
		tc.emit(ProgressEvent{Function: call.Name, Status: StatusError, Error: err.Error()})
		return failureOutput(err), nil
	}

	if !json.Valid(args) {
		err := fmt.Errorf("invalid arguments for %s: not valid JSON", call.Name)
		log.Warn().Str("input", call.Input).Msg("malformed tool arguments")
		tc.emit(ProgressEvent{Function: call.Name, Status: StatusStarted, Data: call.Input})
		tc.emit(ProgressEvent{Function: call.Name, Status: StatusError, Error: err.Error()})
		return failureOutput(err), nil
	}

	tc.emit(ProgressEvent{Function: call.Name, Status: StatusStarted, Data: args})
	log.Debug().Msg("executing tool")

	res, err := r.execute(ctx, tool, tc, args)
	if err != nil {
		log.Warn().Err(err).Msg("tool failed")
		tc.emit(ProgressEvent{Function: call.Name, Status: StatusError, Error: err.Error()})
		return failureOutput(err), nil
	}

	out, err := json.Marshal(res.Output)
	if err != nil {
		err = fmt.Errorf("encoding %s result: %w", call.Name, err)
		tc.emit(ProgressEvent{Function: call.Name, Status: StatusError, Error: err.Error()})
		return failureOutput(err), nil
	}

	tc.emit(ProgressEvent{Function: call.Name, Status: StatusCompleted, Result: res.Output})
	return string(out), res.UIUpdate
}

// execute shields the turn from handler panics.
func (r *ToolRegistry) execute(ctx context.Context, tool Tool, tc *ToolContext, args json.RawMessage) (res *ToolResult, err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("tool %s panicked: %v", tool.Name(), p)
		}
	}()
	res, err = tool.Execute(ctx, tc, args)
	if err == nil && res == nil {
		res = &ToolResult{Output: map[string]any{"success": true}}
	}
	return res, err
}

func failureOutput(err error) string {
	out, _ := json.Marshal(map[string]any{"success": false, "error": err.Error()})
	return string(out)
}

// MemoryState is a SessionState kept in process, used by the text chat
// command and by tests.
type MemoryState struct {
	mu      sync.Mutex
	prefs   domain.Preferences
	results []domain.Restaurant
	pending *domain.OrderConfirmation
}

func (s *MemoryState) Preferences() domain.Preferences {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.prefs
}

func (s *MemoryState) SetDietary(p string) {
	s.mu.Lock()
	s.prefs.Dietary = p
	s.mu.Unlock()
}

func (s *MemoryState) SetBudget(b string) {
	s.mu.Lock()
	s.prefs.Budget = b
	s.mu.Unlock()
}

func (s *MemoryState) SetSearchResults(r []domain.Restaurant) {
	s.mu.Lock()
	s.results = r
	s.mu.Unlock()
}

func (s *MemoryState) SearchResults() []domain.Restaurant {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.results
}

func (s *MemoryState) SetPendingOrder(c *domain.OrderConfirmation) {
	s.mu.Lock()
	s.pending = c
	s.mu.Unlock()
}

func (s *MemoryState) PendingOrder() *domain.OrderConfirmation {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pending
}
