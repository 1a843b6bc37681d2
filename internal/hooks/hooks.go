// Package hooks dispatches foodvoice lifecycle events to in-process handlers
// and configured shell commands.
package hooks

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/soyeahso/foodvoice/internal/logging"
)

// Event names for the hook system.
const (
	EventSessionStart      = "session_start"
	EventSessionEnd        = "session_end"
	EventConversationStart = "conversation_start"
	EventConversationStop  = "conversation_stop"
	EventTurnStart         = "turn_start"
	EventTurnEnd           = "turn_end"
	EventOrderConfirmed    = "order_confirmed"
	EventOrderExecuted     = "order_executed"
	EventWebhookReceived   = "webhook_received"
	EventGatewayStart      = "gateway_start"
	EventGatewayStop       = "gateway_stop"
)

// AllEvents lists all known hook event names.
var AllEvents = []string{
	EventSessionStart,
	EventSessionEnd,
	EventConversationStart,
	EventConversationStop,
	EventTurnStart,
	EventTurnEnd,
	EventOrderConfirmed,
	EventOrderExecuted,
	EventWebhookReceived,
	EventGatewayStart,
	EventGatewayStop,
}

// Known reports whether event is one of AllEvents.
func Known(event string) bool {
	return slices.Contains(AllEvents, event)
}

// Payload carries event data to hook handlers.
type Payload struct {
	Event     string         `json:"event"`
	Timestamp string         `json:"timestamp"`
	Data      map[string]any `json:"data,omitempty"`
}

// Handler handles a hook event. Returning an error logs the failure but
// does not stop processing.
type Handler func(ctx context.Context, p Payload) error

// Manager holds hook registrations and dispatches events.
type Manager struct {
	mu       sync.RWMutex
	handlers map[string][]namedHandler
	wg       sync.WaitGroup
	log      *logging.Logger
}

type namedHandler struct {
	name    string
	handler Handler
}

// NewManager creates a hook manager.
func NewManager(log *logging.Logger) *Manager {
	return &Manager{
		handlers: make(map[string][]namedHandler),
		log:      log.Sub("hooks"),
	}
}

// On registers a handler for the given event.
// The name identifies the handler in logs.
func (m *Manager) On(event, name string, handler Handler) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handlers[event] = append(m.handlers[event], namedHandler{name: name, handler: handler})
	m.log.Debug().Str("event", event).Str("handler", name).Msg("hook registered")
}

// Off removes all handlers with the given name from the event.
func (m *Manager) Off(event, name string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.handlers[event] = slices.DeleteFunc(m.handlers[event], func(h namedHandler) bool {
		return h.name == name
	})
}

func (m *Manager) snapshot(event string) []namedHandler {
	if m == nil {
		return nil
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return slices.Clone(m.handlers[event])
}

func newPayload(event string, data map[string]any) Payload {
	return Payload{Event: event, Timestamp: time.Now().UTC().Format(time.RFC3339Nano), Data: data}
}

// Emit dispatches an event to all registered handlers synchronously, in
// registration order. A nil Manager is a no-op.
func (m *Manager) Emit(ctx context.Context, event string, data map[string]any) {
	handlers := m.snapshot(event)
	if len(handlers) == 0 {
		return
	}

	payload := newPayload(event, data)
	for _, h := range handlers {
		if err := h.handler(ctx, payload); err != nil {
			m.log.Warn().
				Err(err).
				Str("event", event).
				Str("handler", h.name).
				Msg("hook handler error")
		}
	}
}

// EmitAsync dispatches an event to all registered handlers concurrently and
// returns immediately. Use Wait to drain in-flight handlers on shutdown.
func (m *Manager) EmitAsync(ctx context.Context, event string, data map[string]any) {
	handlers := m.snapshot(event)
	if len(handlers) == 0 {
		return
	}

	payload := newPayload(event, data)
	ctx = context.WithoutCancel(ctx)
	for _, h := range handlers {
		m.wg.Add(1)
		go func(h namedHandler) {
			defer m.wg.Done()
			if err := h.handler(ctx, payload); err != nil {
				m.log.Warn().
					Err(err).
					Str("event", event).
					Str("handler", h.name).
					Msg("async hook handler error")
			}
		}(h)
	}
}

// Wait blocks until every handler started by EmitAsync has returned.
func (m *Manager) Wait() {
	if m == nil {
		return
	}
	m.wg.Wait()
}

// Count returns the number of handlers registered for an event.
func (m *Manager) Count(event string) int {
	return len(m.snapshot(event))
}

// Events returns the events that have at least one handler, sorted.
func (m *Manager) Events() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	events := make([]string, 0, len(m.handlers))
	for event, handlers := range m.handlers {
		if len(handlers) > 0 {
			events = append(events, event)
		}
	}
	slices.Sort(events)
	return events
}
