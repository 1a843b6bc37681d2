package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/soyeahso/foodvoice/internal/domain"
)

// OrderStore persists order runs: the draft, its status and the summary.
type OrderStore struct {
	db *DB
}

// NewOrderStore creates an order store using the given database.
func NewOrderStore(db *DB) *OrderStore {
	return &OrderStore{db: db}
}

// Create inserts a pending order record. An empty ID is assigned.
func (s *OrderStore) Create(ctx context.Context, rec domain.OrderRecord) (*domain.OrderRecord, error) {
	if rec.ID == "" {
		rec.ID = uuid.New().String()
	}
	if rec.Status == "" {
		rec.Status = domain.OrderPending
	}
	now := time.Now().UTC()
	rec.CreatedAt = now
	rec.UpdatedAt = now

	_, err := s.db.sql.ExecContext(ctx,
		`INSERT INTO orders (id, session_id, status, draft, summary, error, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.SessionID, string(rec.Status), rec.Draft, nullString(rec.Summary), rec.Error,
		now.Format(timeLayout), now.Format(timeLayout),
	)
	if err != nil {
		return nil, fmt.Errorf("creating order: %w", err)
	}
	return &rec, nil
}

// UpdateStatus moves an order to a new status, recording the summary JSON
// and error text when given.
func (s *OrderStore) UpdateStatus(ctx context.Context, id string, status domain.OrderStatus, summary, errText string) error {
	res, err := s.db.sql.ExecContext(ctx,
		`UPDATE orders SET status = ?, summary = COALESCE(?, summary), error = ?, updated_at = ?
		 WHERE id = ?`,
		string(status), nullString(summary), errText, time.Now().UTC().Format(timeLayout), id,
	)
	if err != nil {
		return fmt.Errorf("updating order %s: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// Get returns an order record by id.
func (s *OrderStore) Get(ctx context.Context, id string) (*domain.OrderRecord, error) {
	row := s.db.sql.QueryRowContext(ctx,
		`SELECT id, session_id, status, draft, summary, error, created_at, updated_at
		 FROM orders WHERE id = ?`, id,
	)
	rec, err := scanOrder(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return rec, err
}

// List returns the most recent orders, newest first. Limit of 0 defaults to 50.
func (s *OrderStore) List(ctx context.Context, limit int) ([]domain.OrderRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.sql.QueryContext(ctx,
		`SELECT id, session_id, status, draft, summary, error, created_at, updated_at
		 FROM orders ORDER BY created_at DESC LIMIT ?`, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.OrderRecord
	for rows.Next() {
		rec, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *rec)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanOrder(row rowScanner) (*domain.OrderRecord, error) {
	var rec domain.OrderRecord
	var status, created, updated string
	var summary sql.NullString
	if err := row.Scan(&rec.ID, &rec.SessionID, &status, &rec.Draft, &summary, &rec.Error, &created, &updated); err != nil {
		return nil, err
	}
	rec.Status = domain.OrderStatus(status)
	rec.Summary = summary.String
	rec.CreatedAt, _ = time.Parse(timeLayout, created)
	rec.UpdatedAt, _ = time.Parse(timeLayout, updated)
	return &rec, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
