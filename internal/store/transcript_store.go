package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/soyeahso/foodvoice/internal/domain"
	"github.com/soyeahso/foodvoice/internal/llm"
)

// ErrNotFound is returned when a requested row does not exist.
var ErrNotFound = errors.New("not found")

const timeLayout = time.RFC3339Nano

// TranscriptStore records conversations and their messages.
type TranscriptStore struct {
	db *DB
}

// NewTranscriptStore creates a transcript store using the given database.
func NewTranscriptStore(db *DB) *TranscriptStore {
	return &TranscriptStore{db: db}
}

// StartConversation opens a new conversation for a voice session and
// returns its id.
func (s *TranscriptStore) StartConversation(ctx context.Context, sessionID string) (string, error) {
	id := uuid.New().String()
	_, err := s.db.sql.ExecContext(ctx,
		`INSERT INTO conversations (id, session_id, started_at) VALUES (?, ?, ?)`,
		id, sessionID, time.Now().UTC().Format(timeLayout),
	)
	if err != nil {
		return "", fmt.Errorf("starting conversation: %w", err)
	}
	return id, nil
}

// EndConversation stamps the conversation as ended. Ending twice keeps the
// first timestamp.
func (s *TranscriptStore) EndConversation(ctx context.Context, conversationID string) error {
	res, err := s.db.sql.ExecContext(ctx,
		`UPDATE conversations SET ended_at = COALESCE(ended_at, ?) WHERE id = ?`,
		time.Now().UTC().Format(timeLayout), conversationID,
	)
	if err != nil {
		return fmt.Errorf("ending conversation: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// AppendMessages writes one turn's messages in order, in a single transaction.
func (s *TranscriptStore) AppendMessages(ctx context.Context, conversationID string, msgs []llm.Message) error {
	if len(msgs) == 0 {
		return nil
	}

	tx, err := s.db.sql.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin append: %w", err)
	}
	defer tx.Rollback()

	now := time.Now().UTC()
	for i, m := range msgs {
		var toolCalls sql.NullString
		if len(m.ToolCalls) > 0 {
			data, err := json.Marshal(toDomainToolCalls(m.ToolCalls))
			if err != nil {
				return fmt.Errorf("encoding tool calls: %w", err)
			}
			toolCalls = sql.NullString{String: string(data), Valid: true}
		}

		ts := now.Add(time.Duration(i) * time.Microsecond)
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO messages (conversation_id, role, content, tool_calls, tool_call_id, timestamp)
			 VALUES (?, ?, ?, ?, ?, ?)`,
			conversationID, m.Role, m.Content, toolCalls, m.ToolCallID, ts.Format(timeLayout),
		); err != nil {
			return fmt.Errorf("appending message: %w", err)
		}
	}
	return tx.Commit()
}

// Messages returns a conversation's transcript in insertion order.
func (s *TranscriptStore) Messages(ctx context.Context, conversationID string) ([]domain.Message, error) {
	rows, err := s.db.sql.QueryContext(ctx,
		`SELECT role, content, tool_calls, tool_call_id, timestamp
		 FROM messages WHERE conversation_id = ? ORDER BY id`, conversationID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var msgs []domain.Message
	for rows.Next() {
		var m domain.Message
		var toolCalls sql.NullString
		var ts string
		if err := rows.Scan(&m.Role, &m.Content, &toolCalls, &m.ToolCallID, &ts); err != nil {
			return nil, err
		}
		if toolCalls.Valid {
			if err := json.Unmarshal([]byte(toolCalls.String), &m.ToolCalls); err != nil {
				s.db.log.Warn().Err(err).Str("conversationId", conversationID).Msg("skipping malformed tool calls")
			}
		}
		m.Timestamp, _ = time.Parse(timeLayout, ts)
		msgs = append(msgs, m)
	}
	return msgs, rows.Err()
}

// History returns a conversation's transcript as LLM messages.
func (s *TranscriptStore) History(ctx context.Context, conversationID string) ([]llm.Message, error) {
	msgs, err := s.Messages(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	out := make([]llm.Message, 0, len(msgs))
	for _, m := range msgs {
		lm := llm.Message{Role: m.Role, Content: m.Content, ToolCallID: m.ToolCallID}
		for _, tc := range m.ToolCalls {
			lm.ToolCalls = append(lm.ToolCalls, llm.ToolCall{ID: tc.ID, Name: tc.Name, Input: tc.Input})
		}
		out = append(out, lm)
	}
	return out, nil
}

// Conversation loads a conversation with its messages.
func (s *TranscriptStore) Conversation(ctx context.Context, conversationID string) (*domain.Conversation, error) {
	var c domain.Conversation
	var started string
	var ended sql.NullString
	err := s.db.sql.QueryRowContext(ctx,
		`SELECT id, session_id, started_at, ended_at FROM conversations WHERE id = ?`, conversationID,
	).Scan(&c.ID, &c.SessionID, &started, &ended)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	c.StartedAt, _ = time.Parse(timeLayout, started)
	if ended.Valid {
		t, _ := time.Parse(timeLayout, ended.String)
		c.EndedAt = &t
	}

	c.Messages, err = s.Messages(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// ListConversations returns conversation ids for a session, newest first.
func (s *TranscriptStore) ListConversations(ctx context.Context, sessionID string) ([]string, error) {
	rows, err := s.db.sql.QueryContext(ctx,
		`SELECT id FROM conversations WHERE session_id = ? ORDER BY started_at DESC`, sessionID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func toDomainToolCalls(calls []llm.ToolCall) []domain.ToolCall {
	out := make([]domain.ToolCall, len(calls))
	for i, c := range calls {
		out[i] = domain.ToolCall{ID: c.ID, Name: c.Name, Input: c.Input}
	}
	return out
}
