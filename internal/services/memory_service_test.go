package services

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kotoba-ai/kotoba-assistant/internal/model"
	"github.com/kotoba-ai/kotoba-assistant/internal/store/sqlite"
)

func newTestMemoryService(t *testing.T, max int) *MemoryService {
	t.Helper()
	st, err := sqlite.NewStorage(filepath.Join(t.TempDir(), "mem.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	return NewMemoryService(st, max, zerolog.Nop())
}

func TestCreateValidatesFields(t *testing.T) {
	svc := newTestMemoryService(t, 1000)
	ctx := context.Background()

	_, err := svc.Create(ctx, &model.Memory{})
	assert.ErrorIs(t, err, model.ErrValidation)

	_, err = svc.Create(ctx, &model.Memory{Title: "t", Category: "bogus"})
	assert.ErrorIs(t, err, model.ErrValidation)

	_, err = svc.Create(ctx, &model.Memory{Title: "t", Importance: "extreme"})
	assert.ErrorIs(t, err, model.ErrValidation)

	mem, err := svc.Create(ctx, &model.Memory{Title: "t", Category: model.CategoryIdea})
	require.NoError(t, err)
	assert.Equal(t, model.CategoryIdea, mem.Category)
}

func TestCreateEvictsPastBound(t *testing.T) {
	svc := newTestMemoryService(t, 2)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := svc.Create(ctx, &model.Memory{Title: "low", Importance: model.ImportanceLow})
		require.NoError(t, err)
	}

	n, err := svc.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestUpdateValidates(t *testing.T) {
	svc := newTestMemoryService(t, 1000)
	ctx := context.Background()

	mem, err := svc.Create(ctx, &model.Memory{Title: "t"})
	require.NoError(t, err)

	bad := "nope"
	_, err = svc.Update(ctx, mem.MemoryID, model.MemoryUpdate{Category: &bad})
	assert.ErrorIs(t, err, model.ErrValidation)

	good := model.CategoryProject
	upd, err := svc.Update(ctx, mem.MemoryID, model.MemoryUpdate{Category: &good})
	require.NoError(t, err)
	assert.Equal(t, model.CategoryProject, upd.Category)
}

func TestSearchValidatesFilters(t *testing.T) {
	svc := newTestMemoryService(t, 1000)
	_, err := svc.Search(context.Background(), model.MemorySearchRequest{Category: "bogus"})
	assert.ErrorIs(t, err, model.ErrValidation)
}
