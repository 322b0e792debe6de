// Package postgres implements store.Store on PostgreSQL via pgx.
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/kotoba-ai/kotoba-assistant/internal/model"
	"github.com/kotoba-ai/kotoba-assistant/internal/store"
)

const schemaDDL = `
CREATE TABLE IF NOT EXISTS memories (
    memory_id      TEXT PRIMARY KEY,
    title          TEXT NOT NULL,
    content        TEXT NOT NULL,
    character_id   TEXT NOT NULL DEFAULT '',
    character_name TEXT NOT NULL DEFAULT '',
    snapshot       JSONB NOT NULL DEFAULT '[]',
    category       TEXT NOT NULL DEFAULT 'other',
    tags           JSONB NOT NULL DEFAULT '[]',
    importance     TEXT NOT NULL DEFAULT 'medium',
    created_at     TIMESTAMPTZ NOT NULL,
    updated_at     TIMESTAMPTZ NOT NULL,
    last_accessed  TIMESTAMPTZ,
    access_count   INTEGER NOT NULL DEFAULT 0
);
CREATE INDEX IF NOT EXISTS idx_memories_created ON memories (created_at);
`

// Storage implements store.Store using PostgreSQL.
type Storage struct {
	db *sql.DB
}

// NewStorage connects with the given DSN and applies the schema.
func NewStorage(ctx context.Context, dsn string) (store.Store, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	if _, err := db.ExecContext(ctx, schemaDDL); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Storage{db: db}, nil
}

func (s *Storage) Memories() store.Memories { return &memories{db: s.db} }

func (s *Storage) HealthCheck(ctx context.Context) error { return s.db.PingContext(ctx) }

func (s *Storage) Close() error { return s.db.Close() }

type memories struct {
	db *sql.DB
}

const memoryColumns = `memory_id, title, content, character_id, character_name, snapshot, category, tags, importance, created_at, updated_at, last_accessed, access_count`

func (m *memories) Create(ctx context.Context, mem *model.Memory) (*model.Memory, error) {
	now := time.Now().UTC()
	out := *mem
	if out.MemoryID == "" {
		out.MemoryID = uuid.New().String()
	}
	if out.Category == "" {
		out.Category = model.CategoryOther
	}
	if out.Importance == "" {
		out.Importance = model.ImportanceMedium
	}
	out.CreatedAt = now
	out.UpdatedAt = now
	out.AccessCount = 0

	snapJSON, err := json.Marshal(out.Snapshot)
	if err != nil {
		return nil, err
	}
	tagsJSON, err := json.Marshal(out.Tags)
	if err != nil {
		return nil, err
	}
	_, err = m.db.ExecContext(ctx, `INSERT INTO memories (`+memoryColumns+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)`,
		out.MemoryID, out.Title, out.Content, out.CharacterID, out.CharacterName,
		string(snapJSON), out.Category, string(tagsJSON), out.Importance,
		out.CreatedAt, out.UpdatedAt, nil, 0)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (m *memories) Get(ctx context.Context, memoryID string) (*model.Memory, error) {
	row := m.db.QueryRowContext(ctx, `UPDATE memories
		SET access_count = access_count + 1, last_accessed = $1
		WHERE memory_id = $2
		RETURNING `+memoryColumns, time.Now().UTC(), memoryID)
	mem, err := scanInto(row)
	if err == sql.ErrNoRows {
		return nil, model.ErrNotFound
	}
	return mem, err
}

func (m *memories) Update(ctx context.Context, memoryID string, upd model.MemoryUpdate) (*model.Memory, error) {
	sets := []string{"updated_at = $1"}
	args := []interface{}{time.Now().UTC()}
	n := 1
	add := func(col string, v interface{}) {
		n++
		sets = append(sets, fmt.Sprintf("%s = $%d", col, n))
		args = append(args, v)
	}
	if upd.Title != nil {
		add("title", *upd.Title)
	}
	if upd.Content != nil {
		add("content", *upd.Content)
	}
	if upd.Category != nil {
		add("category", *upd.Category)
	}
	if upd.Tags != nil {
		tagsJSON, err := json.Marshal(upd.Tags)
		if err != nil {
			return nil, err
		}
		add("tags", string(tagsJSON))
	}
	if upd.Importance != nil {
		add("importance", *upd.Importance)
	}
	args = append(args, memoryID)

	row := m.db.QueryRowContext(ctx, fmt.Sprintf(`UPDATE memories SET %s WHERE memory_id = $%d RETURNING %s`,
		strings.Join(sets, ", "), n+1, memoryColumns), args...)
	mem, err := scanInto(row)
	if err == sql.ErrNoRows {
		return nil, model.ErrNotFound
	}
	return mem, err
}

func (m *memories) Delete(ctx context.Context, memoryID string) error {
	res, err := m.db.ExecContext(ctx, `DELETE FROM memories WHERE memory_id = $1`, memoryID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return model.ErrNotFound
	}
	return nil
}

func (m *memories) Search(ctx context.Context, req model.MemorySearchRequest) ([]*model.Memory, error) {
	q := `SELECT ` + memoryColumns + ` FROM memories WHERE 1=1`
	var args []interface{}
	n := 0
	add := func(cond string, v interface{}) {
		n++
		q += fmt.Sprintf(" AND "+cond, n)
		args = append(args, v)
	}
	if req.CharacterID != "" {
		add("character_id = $%d", req.CharacterID)
	}
	if req.Category != "" {
		add("category = $%d", req.Category)
	}
	if req.Importance != "" {
		add("importance = $%d", req.Importance)
	}
	q += " ORDER BY created_at DESC"

	rows, err := m.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*model.Memory
	for rows.Next() {
		mem, err := scanInto(rows)
		if err != nil {
			return nil, err
		}
		if req.Keyword == "" || matchesKeyword(mem, req.Keyword) {
			out = append(out, mem)
		}
	}
	return out, rows.Err()
}

func matchesKeyword(m *model.Memory, kw string) bool {
	kw = strings.ToLower(kw)
	if strings.Contains(strings.ToLower(m.Title), kw) ||
		strings.Contains(strings.ToLower(m.Content), kw) ||
		strings.Contains(strings.ToLower(m.CharacterName), kw) {
		return true
	}
	for _, t := range m.Tags {
		if strings.Contains(strings.ToLower(t), kw) {
			return true
		}
	}
	return false
}

var sortColumns = map[string]string{
	"createdAt":   "created_at",
	"updatedAt":   "updated_at",
	"title":       "title",
	"accessCount": "access_count",
	"importance":  "importance",
}

func (m *memories) List(ctx context.Context, sortBy string, descending bool) ([]*model.Memory, error) {
	col, ok := sortColumns[sortBy]
	if !ok {
		col = "created_at"
	}
	dir := "ASC"
	if descending {
		dir = "DESC"
	}
	rows, err := m.db.QueryContext(ctx, fmt.Sprintf(`SELECT %s FROM memories ORDER BY %s %s`, memoryColumns, col, dir))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*model.Memory
	for rows.Next() {
		mem, err := scanInto(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, mem)
	}
	return out, rows.Err()
}

func (m *memories) Count(ctx context.Context) (int, error) {
	var n int
	err := m.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM memories`).Scan(&n)
	return n, err
}

func (m *memories) PruneLowImportance(ctx context.Context, max int) (int, error) {
	n, err := m.Count(ctx)
	if err != nil {
		return 0, err
	}
	if n <= max {
		return 0, nil
	}
	res, err := m.db.ExecContext(ctx, `DELETE FROM memories WHERE memory_id IN (
		SELECT memory_id FROM memories WHERE importance = $1 ORDER BY created_at ASC LIMIT $2)`,
		model.ImportanceLow, n-max)
	if err != nil {
		return 0, err
	}
	removed, _ := res.RowsAffected()
	return int(removed), nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanInto(r rowScanner) (*model.Memory, error) {
	var m model.Memory
	var snapJSON, tagsJSON []byte
	var lastAccessed sql.NullTime
	if err := r.Scan(&m.MemoryID, &m.Title, &m.Content, &m.CharacterID, &m.CharacterName,
		&snapJSON, &m.Category, &tagsJSON, &m.Importance,
		&m.CreatedAt, &m.UpdatedAt, &lastAccessed, &m.AccessCount); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(snapJSON, &m.Snapshot); err != nil {
		m.Snapshot = nil
	}
	if err := json.Unmarshal(tagsJSON, &m.Tags); err != nil {
		m.Tags = nil
	}
	if lastAccessed.Valid {
		t := lastAccessed.Time
		m.LastAccessed = &t
	}
	return &m, nil
}
