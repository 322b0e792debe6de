// Package store defines the persistence operations required by services.
// Implementations live under internal/store/<driver>/.
package store

import (
	"context"

	"github.com/kotoba-ai/kotoba-assistant/internal/model"
)

// Store exposes the durable catalogs.
type Store interface {
	Memories() Memories
	HealthCheck(ctx context.Context) error
	Close() error
}

// Memories is the durable conversation-memory catalog. The snapshot is
// immutable after Create; Update touches metadata fields only.
type Memories interface {
	Create(ctx context.Context, m *model.Memory) (*model.Memory, error)
	// Get returns the memory and increments its access counter.
	Get(ctx context.Context, memoryID string) (*model.Memory, error)
	Update(ctx context.Context, memoryID string, upd model.MemoryUpdate) (*model.Memory, error)
	Delete(ctx context.Context, memoryID string) error
	// Search applies the request's filters ANDed together.
	Search(ctx context.Context, req model.MemorySearchRequest) ([]*model.Memory, error)
	List(ctx context.Context, sortBy string, descending bool) ([]*model.Memory, error)
	Count(ctx context.Context) (int, error)
	// PruneLowImportance deletes the oldest low-importance memories until
	// at most max remain, returning how many were removed.
	PruneLowImportance(ctx context.Context, max int) (int, error)
}
