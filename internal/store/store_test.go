package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/soyeahso/foodvoice/internal/domain"
	"github.com/soyeahso/foodvoice/internal/llm"
	"github.com/soyeahso/foodvoice/internal/logging"
	"github.com/soyeahso/foodvoice/internal/memory"
)

func testDB(t *testing.T) *DB {
	t.Helper()
	log := logging.New(nil, "silent")
	db, err := Open(":memory:", log)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

// --- DB/Migration tests ---

func TestOpen_InMemory(t *testing.T) {
	db := testDB(t)
	assert.NotNil(t, db)
	assert.NotNil(t, db.SQL())
	assert.NoError(t, db.Ping(context.Background()))
}

func TestMigrations_Applied(t *testing.T) {
	db := testDB(t)

	var count int
	err := db.sql.QueryRow("SELECT COUNT(*) FROM schema_migrations").Scan(&count)
	require.NoError(t, err)
	assert.Equal(t, len(migrations), count)
}

func TestMigrations_Idempotent(t *testing.T) {
	db := testDB(t)

	err := db.migrate()
	require.NoError(t, err)

	var count int
	err = db.sql.QueryRow("SELECT COUNT(*) FROM schema_migrations").Scan(&count)
	require.NoError(t, err)
	assert.Equal(t, len(migrations), count)
}

func TestSchema_TablesExist(t *testing.T) {
	db := testDB(t)

	for _, table := range []string{"conversations", "messages", "preferences", "preferences_fts", "orders"} {
		var name string
		err := db.sql.QueryRow(
			"SELECT name FROM sqlite_master WHERE type='table' AND name=?", table,
		).Scan(&name)
		require.NoError(t, err, "table %s should exist", table)
	}
}

func TestOpen_File(t *testing.T) {
	path := t.TempDir() + "/nested/foodvoice.db"
	db, err := Open(path, logging.New(nil, "silent"))
	require.NoError(t, err)
	require.NoError(t, db.Close())

	// Reopening applies no new migrations.
	db, err = Open(path, logging.New(nil, "silent"))
	require.NoError(t, err)
	defer db.Close()
}

// --- TranscriptStore tests ---

func TestTranscriptStore_RoundTrip(t *testing.T) {
	ctx := context.Background()
	ts := NewTranscriptStore(testDB(t))

	convID, err := ts.StartConversation(ctx, "sess-1")
	require.NoError(t, err)
	require.NotEmpty(t, convID)

	turn := []llm.Message{
		{Role: llm.RoleUser, Content: "I'm vegetarian"},
		{Role: llm.RoleAssistant, ToolCalls: []llm.ToolCall{
			{ID: "call_1", Name: "store_dietary_preferences", Input: `{"preferences":"vegetarian"}`},
		}},
		{Role: llm.RoleTool, ToolCallID: "call_1", Content: `{"success":true}`},
		{Role: llm.RoleAssistant, Content: "Got it. What's your budget?"},
	}
	require.NoError(t, ts.AppendMessages(ctx, convID, turn))

	msgs, err := ts.Messages(ctx, convID)
	require.NoError(t, err)
	require.Len(t, msgs, 4)
	assert.Equal(t, domain.RoleUser, msgs[0].Role)
	require.Len(t, msgs[1].ToolCalls, 1)
	assert.Equal(t, "call_1", msgs[1].ToolCalls[0].ID)
	assert.Equal(t, "call_1", msgs[2].ToolCallID)
	assert.False(t, msgs[0].Timestamp.IsZero())

	history, err := ts.History(ctx, convID)
	require.NoError(t, err)
	assert.Equal(t, turn, history)
}

func TestTranscriptStore_AppendEmpty(t *testing.T) {
	ts := NewTranscriptStore(testDB(t))
	assert.NoError(t, ts.AppendMessages(context.Background(), "missing", nil))
}

func TestTranscriptStore_AppendUnknownConversation(t *testing.T) {
	ts := NewTranscriptStore(testDB(t))
	err := ts.AppendMessages(context.Background(), "missing", []llm.Message{{Role: "user", Content: "hi"}})
	assert.Error(t, err)
}

func TestTranscriptStore_EndConversation(t *testing.T) {
	ctx := context.Background()
	ts := NewTranscriptStore(testDB(t))

	convID, err := ts.StartConversation(ctx, "sess-1")
	require.NoError(t, err)

	c, err := ts.Conversation(ctx, convID)
	require.NoError(t, err)
	assert.False(t, c.Ended())

	require.NoError(t, ts.EndConversation(ctx, convID))
	c, err = ts.Conversation(ctx, convID)
	require.NoError(t, err)
	require.True(t, c.Ended())
	first := *c.EndedAt

	require.NoError(t, ts.EndConversation(ctx, convID))
	c, err = ts.Conversation(ctx, convID)
	require.NoError(t, err)
	assert.Equal(t, first, *c.EndedAt)

	assert.ErrorIs(t, ts.EndConversation(ctx, "missing"), ErrNotFound)
	_, err = ts.Conversation(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestTranscriptStore_ListConversations(t *testing.T) {
	ctx := context.Background()
	ts := NewTranscriptStore(testDB(t))

	a, err := ts.StartConversation(ctx, "sess-1")
	require.NoError(t, err)
	b, err := ts.StartConversation(ctx, "sess-1")
	require.NoError(t, err)
	_, err = ts.StartConversation(ctx, "sess-2")
	require.NoError(t, err)

	ids, err := ts.ListConversations(ctx, "sess-1")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{a, b}, ids)
}

// --- OrderStore tests ---

func TestOrderStore_Lifecycle(t *testing.T) {
	ctx := context.Background()
	os := NewOrderStore(testDB(t))

	rec, err := os.Create(ctx, domain.OrderRecord{SessionID: "sess-1", Draft: `{"orders":[]}`})
	require.NoError(t, err)
	require.NotEmpty(t, rec.ID)
	assert.Equal(t, domain.OrderPending, rec.Status)

	require.NoError(t, os.UpdateStatus(ctx, rec.ID, domain.OrderRunning, "", ""))
	got, err := os.Get(ctx, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.OrderRunning, got.Status)
	assert.Empty(t, got.Summary)

	require.NoError(t, os.UpdateStatus(ctx, rec.ID, domain.OrderSucceeded, `{"success":true}`, ""))
	got, err = os.Get(ctx, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.OrderSucceeded, got.Status)
	assert.Equal(t, `{"success":true}`, got.Summary)
	assert.Equal(t, `{"orders":[]}`, got.Draft)
	assert.Equal(t, "sess-1", got.SessionID)
}

func TestOrderStore_FailedKeepsSummary(t *testing.T) {
	ctx := context.Background()
	os := NewOrderStore(testDB(t))

	rec, err := os.Create(ctx, domain.OrderRecord{Draft: "{}", Summary: `{"partial":true}`})
	require.NoError(t, err)
	require.NoError(t, os.UpdateStatus(ctx, rec.ID, domain.OrderFailed, "", "executor unreachable"))

	got, err := os.Get(ctx, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.OrderFailed, got.Status)
	assert.Equal(t, `{"partial":true}`, got.Summary)
	assert.Equal(t, "executor unreachable", got.Error)
}

func TestOrderStore_NotFound(t *testing.T) {
	ctx := context.Background()
	os := NewOrderStore(testDB(t))

	_, err := os.Get(ctx, "nope")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, os.UpdateStatus(ctx, "nope", domain.OrderFailed, "", "x"), ErrNotFound)
}

func TestOrderStore_List(t *testing.T) {
	ctx := context.Background()
	os := NewOrderStore(testDB(t))

	for range 3 {
		_, err := os.Create(ctx, domain.OrderRecord{Draft: "{}"})
		require.NoError(t, err)
	}
	list, err := os.List(ctx, 2)
	require.NoError(t, err)
	assert.Len(t, list, 2)
}

// --- PreferenceStore tests ---

func TestPreferenceStore_RememberAndRecall(t *testing.T) {
	ctx := context.Background()
	ps := NewPreferenceStore(testDB(t))

	require.NoError(t, ps.Remember(ctx, memory.Entry{ID: "pref_cuisine_mexican", Text: "User likes Mexican food and Mexican cuisine"}))
	require.NoError(t, ps.Remember(ctx, memory.Entry{ID: "pref_diet_vegetarian", Text: "User is vegetarian and does not eat meat"}))
	require.NoError(t, ps.Remember(ctx, memory.Entry{ID: "pref_allergy_gluten", Text: "User cannot eat gluten and needs gluten-free options"}))

	matches, err := ps.Recall(ctx, "gluten-free pasta", 5)
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, "pref_allergy_gluten", matches[0].Entry.ID)
	assert.Equal(t, "dietary", matches[0].Entry.Kind)
	assert.Greater(t, matches[0].Score, float32(0))

	matches, err = ps.Recall(ctx, "vegetarian mexican", 5)
	require.NoError(t, err)
	assert.Len(t, matches, 2)
}

func TestPreferenceStore_Upsert(t *testing.T) {
	ctx := context.Background()
	ps := NewPreferenceStore(testDB(t))

	require.NoError(t, ps.Remember(ctx, memory.Entry{ID: "p1", Text: "likes sushi"}))
	require.NoError(t, ps.Remember(ctx, memory.Entry{ID: "p1", Text: "likes ramen"}))

	matches, err := ps.Recall(ctx, "sushi", 5)
	require.NoError(t, err)
	assert.Empty(t, matches)

	matches, err = ps.Recall(ctx, "ramen", 5)
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, "likes ramen", matches[0].Entry.Text)
}

func TestPreferenceStore_EmptyQueryReturnsRecent(t *testing.T) {
	ctx := context.Background()
	ps := NewPreferenceStore(testDB(t))

	require.NoError(t, ps.Remember(ctx, memory.Entry{Text: "vegan"}))
	require.NoError(t, ps.Remember(ctx, memory.Entry{Text: "budget under twenty", Kind: "budget"}))

	matches, err := ps.Recall(ctx, "?!", 1)
	require.NoError(t, err)
	assert.Len(t, matches, 1)
}

func TestPreferenceStore_Delete(t *testing.T) {
	ctx := context.Background()
	ps := NewPreferenceStore(testDB(t))

	require.NoError(t, ps.Remember(ctx, memory.Entry{ID: "p1", Text: "halal only"}))
	require.NoError(t, ps.Delete(ctx, "p1"))

	matches, err := ps.Recall(ctx, "halal", 5)
	require.NoError(t, err)
	assert.Empty(t, matches)
}

func TestFTSQuery(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"gluten-free", `"gluten" OR "free"`},
		{"Vegan vegan", `"vegan"`},
		{"a ?", ""},
		{`say "hi"`, `"say" OR "hi"`},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, ftsQuery(tt.in))
		})
	}
}
