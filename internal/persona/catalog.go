package persona

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/kotoba-ai/kotoba-assistant/internal/model"
)

// Catalog is a JSON-file backed persona store. A corrupt or missing file
// loads as an empty catalog; the condition is logged, never surfaced.
type Catalog struct {
	mu       sync.Mutex
	file     string
	log      zerolog.Logger
	personas map[string]*Persona
	activeID string
}

// NewCatalog loads the catalog from file. file may be empty for a purely
// in-memory catalog (tests).
func NewCatalog(file string, log zerolog.Logger) *Catalog {
	c := &Catalog{file: file, log: log, personas: make(map[string]*Persona)}
	c.load()
	return c
}

type catalogFile struct {
	Personas []*Persona `json:"personas"`
	ActiveID string     `json:"activeId"`
}

func (c *Catalog) load() {
	if c.file == "" {
		return
	}
	raw, err := os.ReadFile(c.file)
	if err != nil {
		if !os.IsNotExist(err) {
			c.log.Warn().Err(err).Str("file", c.file).Msg("persona catalog unreadable, starting empty")
		}
		return
	}
	var cf catalogFile
	if err := json.Unmarshal(raw, &cf); err != nil {
		c.log.Warn().Err(err).Str("file", c.file).Msg("persona catalog corrupt, starting empty")
		return
	}
	for _, p := range cf.Personas {
		if p == nil || p.CharacterID == "" || p.Name == "" {
			c.log.Warn().Str("file", c.file).Msg("dropping malformed persona record")
			continue
		}
		c.personas[p.CharacterID] = p
	}
	if _, ok := c.personas[cf.ActiveID]; ok {
		c.activeID = cf.ActiveID
	}
	c.log.Info().Int("count", len(c.personas)).Msg("persona catalog loaded")
}

// saveLocked persists the catalog. Caller holds mu.
func (c *Catalog) saveLocked() {
	if c.file == "" {
		return
	}
	if err := os.MkdirAll(filepath.Dir(c.file), 0o755); err != nil {
		c.log.Warn().Err(err).Msg("cannot create persona catalog dir")
		return
	}
	cf := catalogFile{Personas: c.sortedLocked(), ActiveID: c.activeID}
	data, err := json.MarshalIndent(&cf, "", "  ")
	if err != nil {
		c.log.Error().Err(err).Msg("marshal persona catalog")
		return
	}
	if err := os.WriteFile(c.file, data, 0o644); err != nil {
		c.log.Warn().Err(err).Msg("cannot persist persona catalog")
	}
}

func (c *Catalog) sortedLocked() []*Persona {
	out := make([]*Persona, 0, len(c.personas))
	for _, p := range c.personas {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}

// Create stores a new persona and returns it.
func (c *Catalog) Create(p *Persona) *Persona {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.personas[p.CharacterID] = p
	if len(c.personas) == 1 {
		c.activeID = p.CharacterID
	}
	c.saveLocked()
	return p
}

// Get returns the persona for id, or model.ErrNotFound.
func (c *Catalog) Get(id string) (*Persona, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	p, ok := c.personas[id]
	if !ok {
		return nil, model.ErrNotFound
	}
	return p, nil
}

// List returns all personas ordered by creation time.
func (c *Catalog) List() []*Persona {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sortedLocked()
}

// Activate marks a persona as the active one and bumps its usage count.
func (c *Catalog) Activate(id string) (*Persona, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	p, ok := c.personas[id]
	if !ok {
		return nil, model.ErrNotFound
	}
	c.activeID = id
	p.UsageCount++
	p.UpdatedAt = time.Now().UTC()
	c.saveLocked()
	return p, nil
}

// Active returns the currently active persona, or nil when none is set.
func (c *Catalog) Active() *Persona {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.activeID == "" {
		return nil
	}
	return c.personas[c.activeID]
}
