// Package memory stores dietary preferences across conversations so later
// restaurant searches can recall them.
package memory

import (
	"context"
	"time"
)

// Entry is one remembered preference statement.
type Entry struct {
	ID        string    `json:"id"`
	SessionID string    `json:"session_id,omitempty"`
	Kind      string    `json:"kind,omitempty"` // "dietary" | "budget"
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"created_at"`
}

// Match is a recalled entry with its relevance score. Higher is better.
type Match struct {
	Entry Entry   `json:"entry"`
	Score float32 `json:"score"`
}

// Store persists and recalls preference entries.
type Store interface {
	Remember(ctx context.Context, e Entry) error
	Recall(ctx context.Context, query string, limit int) ([]Match, error)
}

// Noop discards everything. Used when memory.driver is "none".
type Noop struct{}

func (Noop) Remember(context.Context, Entry) error { return nil }

func (Noop) Recall(context.Context, string, int) ([]Match, error) { return nil, nil }

// Texts flattens matches into their texts, preserving order.
func Texts(matches []Match) []string {
	out := make([]string, 0, len(matches))
	for _, m := range matches {
		if m.Entry.Text != "" {
			out = append(out, m.Entry.Text)
		}
	}
	return out
}
