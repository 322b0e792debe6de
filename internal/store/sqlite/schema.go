package sqlite

import "database/sql"

const memoriesDDL = `
CREATE TABLE IF NOT EXISTS Memories (
    MemoryId      TEXT PRIMARY KEY,
    Title         TEXT NOT NULL,
    Content       TEXT NOT NULL,
    CharacterId   TEXT NOT NULL DEFAULT '',
    CharacterName TEXT NOT NULL DEFAULT '',
    Snapshot      TEXT NOT NULL DEFAULT '[]',
    Category      TEXT NOT NULL DEFAULT 'other',
    Tags          TEXT NOT NULL DEFAULT '[]',
    Importance    TEXT NOT NULL DEFAULT 'medium',
    CreatedAt     TIMESTAMP NOT NULL,
    UpdatedAt     TIMESTAMP NOT NULL,
    LastAccessed  TIMESTAMP,
    AccessCount   INTEGER NOT NULL DEFAULT 0
);
CREATE INDEX IF NOT EXISTS idx_memories_created ON Memories (CreatedAt);
CREATE INDEX IF NOT EXISTS idx_memories_category ON Memories (Category);
`

// EnsureSchema applies the SQLite DDL. Idempotent.
func EnsureSchema(db *sql.DB) error {
	_, err := db.Exec(memoriesDDL)
	return err
}
