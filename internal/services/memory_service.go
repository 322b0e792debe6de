// Package services holds the application services that sit between the
// HTTP handlers and the storage, worker, and persona layers.
package services

import (
	"context"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/kotoba-ai/kotoba-assistant/internal/model"
	"github.com/kotoba-ai/kotoba-assistant/internal/store"
)

// MemoryService validates and executes memory-catalog operations over the
// configured store, enforcing the bounded-catalog eviction policy.
type MemoryService struct {
	store       store.Store
	maxMemories int
	log         zerolog.Logger
}

// NewMemoryService creates a MemoryService. max bounds the catalog size;
// past it, the oldest low-importance memories are evicted after a create.
func NewMemoryService(s store.Store, max int, log zerolog.Logger) *MemoryService {
	if max <= 0 {
		max = 1000
	}
	return &MemoryService{store: s, maxMemories: max, log: log}
}

// Create validates and stores a new memory, then applies the eviction
// policy. The snapshot is taken as-is and is immutable afterwards.
func (s *MemoryService) Create(ctx context.Context, mem *model.Memory) (*model.Memory, error) {
	if mem.Title == "" {
		return nil, errors.Wrap(model.ErrValidation, "title is required")
	}
	if mem.Category != "" && !model.ValidCategory(mem.Category) {
		return nil, errors.Wrapf(model.ErrValidation, "unknown category %q", mem.Category)
	}
	if mem.Importance != "" && !model.ValidImportance(mem.Importance) {
		return nil, errors.Wrapf(model.ErrValidation, "unknown importance %q", mem.Importance)
	}

	created, err := s.store.Memories().Create(ctx, mem)
	if err != nil {
		return nil, errors.Wrap(err, "create memory")
	}

	removed, err := s.store.Memories().PruneLowImportance(ctx, s.maxMemories)
	if err != nil {
		s.log.Warn().Err(err).Msg("memory eviction failed")
	} else if removed > 0 {
		s.log.Info().Int("removed", removed).Int("max", s.maxMemories).Msg("evicted low-importance memories")
	}
	return created, nil
}

// Get returns one memory and bumps its access counter.
func (s *MemoryService) Get(ctx context.Context, memoryID string) (*model.Memory, error) {
	return s.store.Memories().Get(ctx, memoryID)
}

// Update applies the mutable fields of a memory. The conversation snapshot
// cannot be changed.
func (s *MemoryService) Update(ctx context.Context, memoryID string, upd model.MemoryUpdate) (*model.Memory, error) {
	if upd.Category != nil && !model.ValidCategory(*upd.Category) {
		return nil, errors.Wrapf(model.ErrValidation, "unknown category %q", *upd.Category)
	}
	if upd.Importance != nil && !model.ValidImportance(*upd.Importance) {
		return nil, errors.Wrapf(model.ErrValidation, "unknown importance %q", *upd.Importance)
	}
	return s.store.Memories().Update(ctx, memoryID, upd)
}

// Delete removes one memory.
func (s *MemoryService) Delete(ctx context.Context, memoryID string) error {
	return s.store.Memories().Delete(ctx, memoryID)
}

// Search returns memories matching the ANDed filters, newest first.
func (s *MemoryService) Search(ctx context.Context, req model.MemorySearchRequest) ([]*model.Memory, error) {
	if req.Category != "" && !model.ValidCategory(req.Category) {
		return nil, errors.Wrapf(model.ErrValidation, "unknown category %q", req.Category)
	}
	if req.Importance != "" && !model.ValidImportance(req.Importance) {
		return nil, errors.Wrapf(model.ErrValidation, "unknown importance %q", req.Importance)
	}
	return s.store.Memories().Search(ctx, req)
}

// List returns all memories ordered by the given field.
func (s *MemoryService) List(ctx context.Context, sortBy string, descending bool) ([]*model.Memory, error) {
	return s.store.Memories().List(ctx, sortBy, descending)
}

// Count returns the catalog size.
func (s *MemoryService) Count(ctx context.Context) (int, error) {
	return s.store.Memories().Count(ctx)
}
