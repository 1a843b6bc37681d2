package store

// migration represents a single schema migration.
type migration struct {
	Version int
	Name    string
	SQL     string
}

// migrations is the ordered list of all schema migrations.
var migrations = []migration{
	{
		Version: 1,
		Name:    "create conversations and messages",
		SQL: `
			CREATE TABLE conversations (
				id          TEXT PRIMARY KEY,
				session_id  TEXT NOT NULL,
				started_at  TEXT NOT NULL,
				ended_at    TEXT
			);

			CREATE INDEX idx_conversations_session ON conversations (session_id);

			CREATE TABLE messages (
				id              INTEGER PRIMARY KEY AUTOINCREMENT,
				conversation_id TEXT NOT NULL REFERENCES conversations(id) ON DELETE CASCADE,
				role            TEXT NOT NULL,
				content         TEXT NOT NULL,
				tool_calls      TEXT,
				tool_call_id    TEXT NOT NULL DEFAULT '',
				timestamp       TEXT NOT NULL
			);

			CREATE INDEX idx_messages_conversation ON messages (conversation_id, id);
		`,
	},
	{
		Version: 2,
		Name:    "create preferences with FTS5",
		SQL: `
			CREATE TABLE preferences (
				id          TEXT PRIMARY KEY,
				session_id  TEXT NOT NULL DEFAULT '',
				kind        TEXT NOT NULL DEFAULT 'dietary',
				content     TEXT NOT NULL,
				created_at  TEXT NOT NULL
			);

			CREATE INDEX idx_preferences_kind ON preferences (kind);

			CREATE VIRTUAL TABLE preferences_fts USING fts5(
				content,
				kind,
				content='preferences',
				content_rowid='rowid'
			);

			CREATE TRIGGER preferences_ai AFTER INSERT ON preferences BEGIN
				INSERT INTO preferences_fts(rowid, content, kind)
				VALUES (new.rowid, new.content, new.kind);
			END;

			CREATE TRIGGER preferences_ad AFTER DELETE ON preferences BEGIN
				INSERT INTO preferences_fts(preferences_fts, rowid, content, kind)
				VALUES ('delete', old.rowid, old.content, old.kind);
			END;

			CREATE TRIGGER preferences_au AFTER UPDATE ON preferences BEGIN
				INSERT INTO preferences_fts(preferences_fts, rowid, content, kind)
				VALUES ('delete', old.rowid, old.content, old.kind);
				INSERT INTO preferences_fts(rowid, content, kind)
				VALUES (new.rowid, new.content, new.kind);
			END;
		`,
	},
	{
		Version: 3,
		Name:    "create orders",
		SQL: `
			CREATE TABLE orders (
				id          TEXT PRIMARY KEY,
				session_id  TEXT NOT NULL DEFAULT '',
				status      TEXT NOT NULL,
				draft       TEXT NOT NULL,
				summary     TEXT,
				error       TEXT NOT NULL DEFAULT '',
				created_at  TEXT NOT NULL,
				updated_at  TEXT NOT NULL
			);

			CREATE INDEX idx_orders_session ON orders (session_id);
		`,
	},
}
