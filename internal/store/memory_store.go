package store

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode"

	"github.com/google/uuid"

	"github.com/soyeahso/foodvoice/internal/memory"
)

// PreferenceStore keeps remembered preferences with full-text recall via
// SQLite FTS5. It is the default memory driver.
type PreferenceStore struct {
	db *DB
}

// NewPreferenceStore creates a preference store using the given database.
func NewPreferenceStore(db *DB) *PreferenceStore {
	return &PreferenceStore{db: db}
}

// Remember inserts or updates a preference entry.
func (p *PreferenceStore) Remember(ctx context.Context, e memory.Entry) error {
	if e.ID == "" {
		e.ID = uuid.New().String()
	}
	if e.Kind == "" {
		e.Kind = "dietary"
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}

	_, err := p.db.sql.ExecContext(ctx,
		`INSERT INTO preferences (id, session_id, kind, content, created_at)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
		   content = excluded.content,
		   kind = excluded.kind`,
		e.ID, e.SessionID, e.Kind, e.Text, e.CreatedAt.UTC().Format(timeLayout),
	)
	if err != nil {
		return fmt.Errorf("remembering preference: %w", err)
	}
	return nil
}

// Recall finds preferences sharing any word with query, best match first.
// A query with no searchable words returns the most recent entries.
func (p *PreferenceStore) Recall(ctx context.Context, query string, limit int) ([]memory.Match, error) {
	if limit <= 0 {
		limit = 5
	}

	match := ftsQuery(query)
	if match == "" {
		return p.recent(ctx, limit)
	}

	rows, err := p.db.sql.QueryContext(ctx,
		`SELECT p.id, p.session_id, p.kind, p.content, p.created_at, rank
		 FROM preferences_fts
		 JOIN preferences p ON p.rowid = preferences_fts.rowid
		 WHERE preferences_fts MATCH ?
		 ORDER BY rank
		 LIMIT ?`,
		match, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("recalling preferences: %w", err)
	}
	defer rows.Close()

	var out []memory.Match
	for rows.Next() {
		var e memory.Entry
		var created string
		var rank float64
		if err := rows.Scan(&e.ID, &e.SessionID, &e.Kind, &e.Text, &created, &rank); err != nil {
			return nil, err
		}
		e.CreatedAt, _ = time.Parse(timeLayout, created)
		// bm25 rank is negative; flip it so higher means closer.
		out = append(out, memory.Match{Entry: e, Score: float32(-rank)})
	}
	return out, rows.Err()
}

func (p *PreferenceStore) recent(ctx context.Context, limit int) ([]memory.Match, error) {
	rows, err := p.db.sql.QueryContext(ctx,
		`SELECT id, session_id, kind, content, created_at FROM preferences
		 ORDER BY created_at DESC LIMIT ?`, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []memory.Match
	for rows.Next() {
		var e memory.Entry
		var created string
		if err := rows.Scan(&e.ID, &e.SessionID, &e.Kind, &e.Text, &created); err != nil {
			return nil, err
		}
		e.CreatedAt, _ = time.Parse(timeLayout, created)
		out = append(out, memory.Match{Entry: e})
	}
	return out, rows.Err()
}

// Delete removes a preference by id.
func (p *PreferenceStore) Delete(ctx context.Context, id string) error {
	_, err := p.db.sql.ExecContext(ctx, `DELETE FROM preferences WHERE id = ?`, id)
	return err
}

// ftsQuery turns free text into an OR of quoted terms so user phrasing
// like "gluten-free" cannot trip FTS5 query syntax.
func ftsQuery(text string) string {
	words := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	seen := make(map[string]bool, len(words))
	terms := make([]string, 0, len(words))
	for _, w := range words {
		if len(w) < 2 || seen[w] {
			continue
		}
		seen[w] = true
		terms = append(terms, `"`+w+`"`)
	}
	return strings.Join(terms, " OR ")
}

var _ memory.Store = (*PreferenceStore)(nil)
