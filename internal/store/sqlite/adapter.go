// Package sqlite implements store.Store on modernc.org/sqlite.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/kotoba-ai/kotoba-assistant/internal/model"
	"github.com/kotoba-ai/kotoba-assistant/internal/store"
)

// Storage implements store.Store using SQLite.
type Storage struct {
	db *sql.DB
}

// NewStorage opens (or creates) the database at path and applies the schema.
func NewStorage(path string) (store.Store, error) {
	db, err := Open(path)
	if err != nil {
		return nil, err
	}
	return NewStorageWithDB(db)
}

// NewStorageWithDB wires an existing connection (used by tests).
func NewStorageWithDB(db *sql.DB) (store.Store, error) {
	if err := EnsureSchema(db); err != nil {
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

const memoryColumns = `MemoryId, Title, Content, CharacterId, CharacterName, Snapshot, Category, Tags, Importance, CreatedAt, UpdatedAt, LastAccessed, AccessCount`

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
	_, err = m.db.ExecContext(ctx, `INSERT INTO Memories (`+memoryColumns+`) VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?)`,
		out.MemoryID, out.Title, out.Content, out.CharacterID, out.CharacterName,
		string(snapJSON), out.Category, string(tagsJSON), out.Importance,
		out.CreatedAt, out.UpdatedAt, nil, 0)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (m *memories) Get(ctx context.Context, memoryID string) (*model.Memory, error) {
	now := time.Now().UTC()
	res, err := m.db.ExecContext(ctx,
		`UPDATE Memories SET AccessCount = AccessCount + 1, LastAccessed = ? WHERE MemoryId = ?`,
		now, memoryID)
	if err != nil {
		return nil, err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, model.ErrNotFound
	}
	row := m.db.QueryRowContext(ctx, `SELECT `+memoryColumns+` FROM Memories WHERE MemoryId = ?`, memoryID)
	return scanMemory(row)
}

func (m *memories) Update(ctx context.Context, memoryID string, upd model.MemoryUpdate) (*model.Memory, error) {
	sets := []string{"UpdatedAt = ?"}
	args := []interface{}{time.Now().UTC()}
	if upd.Title != nil {
		sets = append(sets, "Title = ?")
		args = append(args, *upd.Title)
	}
	if upd.Content != nil {
		sets = append(sets, "Content = ?")
		args = append(args, *upd.Content)
	}
	if upd.Category != nil {
		sets = append(sets, "Category = ?")
		args = append(args, *upd.Category)
	}
	if upd.Tags != nil {
		tagsJSON, err := json.Marshal(upd.Tags)
		if err != nil {
			return nil, err
		}
		sets = append(sets, "Tags = ?")
		args = append(args, string(tagsJSON))
	}
	if upd.Importance != nil {
		sets = append(sets, "Importance = ?")
		args = append(args, *upd.Importance)
	}
	args = append(args, memoryID)

	res, err := m.db.ExecContext(ctx, `UPDATE Memories SET `+strings.Join(sets, ", ")+` WHERE MemoryId = ?`, args...)
	if err != nil {
		return nil, err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, model.ErrNotFound
	}
	row := m.db.QueryRowContext(ctx, `SELECT `+memoryColumns+` FROM Memories WHERE MemoryId = ?`, memoryID)
	return scanMemory(row)
}

func (m *memories) Delete(ctx context.Context, memoryID string) error {
	res, err := m.db.ExecContext(ctx, `DELETE FROM Memories WHERE MemoryId = ?`, memoryID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return model.ErrNotFound
	}
	return nil
}

func (m *memories) Search(ctx context.Context, req model.MemorySearchRequest) ([]*model.Memory, error) {
	q := `SELECT ` + memoryColumns + ` FROM Memories WHERE 1=1`
	var args []interface{}
	if req.CharacterID != "" {
		q += " AND CharacterId = ?"
		args = append(args, req.CharacterID)
	}
	if req.Category != "" {
		q += " AND Category = ?"
		args = append(args, req.Category)
	}
	if req.Importance != "" {
		q += " AND Importance = ?"
		args = append(args, req.Importance)
	}
	q += " ORDER BY CreatedAt DESC"

	rows, err := m.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*model.Memory
	for rows.Next() {
		mem, err := scanMemoryRows(rows)
		if err != nil {
			return nil, err
		}
		if req.Keyword == "" || matchesKeyword(mem, req.Keyword) {
			out = append(out, mem)
		}
	}
	return out, rows.Err()
}

// matchesKeyword reports whether kw matches title, content, character name
// or any tag, case-insensitively. Tag matching happens here because tags
// are stored as a JSON array.
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

// sortColumns whitelists List's sort keys.
var sortColumns = map[string]string{
	"createdAt":   "CreatedAt",
	"updatedAt":   "UpdatedAt",
	"title":       "Title",
	"accessCount": "AccessCount",
	"importance":  "Importance",
}

func (m *memories) List(ctx context.Context, sortBy string, descending bool) ([]*model.Memory, error) {
	col, ok := sortColumns[sortBy]
	if !ok {
		col = "CreatedAt"
	}
	dir := "ASC"
	if descending {
		dir = "DESC"
	}
	rows, err := m.db.QueryContext(ctx, fmt.Sprintf(`SELECT %s FROM Memories ORDER BY %s %s`, memoryColumns, col, dir))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*model.Memory
	for rows.Next() {
		mem, err := scanMemoryRows(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, mem)
	}
	return out, rows.Err()
}

func (m *memories) Count(ctx context.Context) (int, error) {
	var n int
	err := m.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM Memories`).Scan(&n)
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
	res, err := m.db.ExecContext(ctx, `DELETE FROM Memories WHERE MemoryId IN (
		SELECT MemoryId FROM Memories WHERE Importance = ? ORDER BY CreatedAt ASC LIMIT ?)`,
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

func scanMemory(row *sql.Row) (*model.Memory, error) {
	mem, err := scanInto(row)
	if err == sql.ErrNoRows {
		return nil, model.ErrNotFound
	}
	return mem, err
}

func scanMemoryRows(rows *sql.Rows) (*model.Memory, error) {
	return scanInto(rows)
}

func scanInto(r rowScanner) (*model.Memory, error) {
	var m model.Memory
	var snapJSON, tagsJSON string
	var lastAccessed sql.NullTime
	if err := r.Scan(&m.MemoryID, &m.Title, &m.Content, &m.CharacterID, &m.CharacterName,
		&snapJSON, &m.Category, &tagsJSON, &m.Importance,
		&m.CreatedAt, &m.UpdatedAt, &lastAccessed, &m.AccessCount); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(snapJSON), &m.Snapshot); err != nil {
		m.Snapshot = nil
	}
	if err := json.Unmarshal([]byte(tagsJSON), &m.Tags); err != nil {
		m.Tags = nil
	}
	if lastAccessed.Valid {
		t := lastAccessed.Time
		m.LastAccessed = &t
	}
	return &m, nil
}
