package docstore

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fixedNow = time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)

func newTestStore() *MemoryStore {
	return NewMemoryStore().WithClock(func() time.Time { return fixedNow })
}

func TestMemoryStore_CreateGet(t *testing.T) {
	ctx := context.Background()
	s := newTestStore()

	id, err := s.Create(ctx, "Customers", map[string]any{"name": "a", "createdAt": ServerTimestamp})
	require.NoError(t, err)
	require.NotEmpty(t, id)

	doc, err := s.Get(ctx, "Customers", id)
	require.NoError(t, err)
	assert.Equal(t, id, doc.ID)
	assert.Equal(t, "a", doc.Data["name"])
	assert.Equal(t, fixedNow, doc.Data["createdAt"], "server timestamp resolved to commit clock")
}

func TestMemoryStore_GetMissing(t *testing.T) {
	_, err := newTestStore().Get(context.Background(), "Customers", "nope")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryStore_SetMerge(t *testing.T) {
	ctx := context.Background()
	s := newTestStore()
	require.NoError(t, s.Set(ctx, "c", "1", map[string]any{"a": 1, "b": 2}, false))
	require.NoError(t, s.Set(ctx, "c", "1", map[string]any{"b": 3}, true))

	doc, err := s.Get(ctx, "c", "1")
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"a": 1, "b": 3}, doc.Data)

	require.NoError(t, s.Set(ctx, "c", "1", map[string]any{"z": true}, false))
	doc, _ = s.Get(ctx, "c", "1")
	assert.Equal(t, map[string]any{"z": true}, doc.Data, "overwrite replaces the document")
}

func TestMemoryStore_Delete(t *testing.T) {
	ctx := context.Background()
	s := newTestStore()
	require.NoError(t, s.Set(ctx, "c", "1", map[string]any{"a": 1}, false))
	require.NoError(t, s.Delete(ctx, "c", "1"))
	_, err := s.Get(ctx, "c", "1")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NoError(t, s.Delete(ctx, "c", "1"))
}

func TestMemoryStore_GetReturnsCopy(t *testing.T) {
	ctx := context.Background()
	s := newTestStore()
	require.NoError(t, s.Set(ctx, "c", "1", map[string]any{"nested": map[string]any{"k": "v"}}, false))

	doc, _ := s.Get(ctx, "c", "1")
	doc.Data["nested"].(map[string]any)["k"] = "changed"

	again, _ := s.Get(ctx, "c", "1")
	assert.Equal(t, "v", again.Data["nested"].(map[string]any)["k"])
}

func TestMemoryStore_BatchSet(t *testing.T) {
	ctx := context.Background()
	s := newTestStore()

	ops := make([]WriteOp, MaxBatchOps+1)
	for i := range ops {
		ops[i] = WriteOp{Collection: "c", ID: fmt.Sprint(i), Data: map[string]any{"i": i}}
	}
	assert.ErrorIs(t, s.BatchSet(ctx, ops), ErrBatchTooLarge)

	require.NoError(t, s.BatchSet(ctx, ops[:MaxBatchOps]))
	n, err := s.Count(ctx, "c", nil)
	require.NoError(t, err)
	assert.Equal(t, MaxBatchOps, n)
}

func TestMemoryStore_ListPaging(t *testing.T) {
	ctx := context.Background()
	s := newTestStore()
	for i := 0; i < 5; i++ {
		require.NoError(t, s.Set(ctx, "c", fmt.Sprintf("id-%d", i), map[string]any{"n": i}, false))
	}

	var ids []string
	cursor := ""
	for {
		page, err := s.List(ctx, "c", Query{Limit: 2, StartAfter: cursor})
		require.NoError(t, err)
		for _, d := range page.Docs {
			ids = append(ids, d.ID)
		}
		if page.Next == "" {
			break
		}
		cursor = page.Next
	}
	assert.Equal(t, []string{"id-0", "id-1", "id-2", "id-3", "id-4"}, ids)
}

func TestMemoryStore_ListFilterOrder(t *testing.T) {
	ctx := context.Background()
	s := newTestStore()
	require.NoError(t, s.Set(ctx, "c", "a", map[string]any{"kind": "x", "updatedAt": fixedNow.Add(-time.Hour)}, false))
	require.NoError(t, s.Set(ctx, "c", "b", map[string]any{"kind": "x", "updatedAt": fixedNow}, false))
	require.NoError(t, s.Set(ctx, "c", "c", map[string]any{"kind": "y", "updatedAt": fixedNow}, false))

	page, err := s.List(ctx, "c", Query{
		Filters: []Filter{{Field: "kind", Value: "x"}},
		OrderBy: "updatedAt",
		Desc:    true,
	})
	require.NoError(t, err)
	require.Len(t, page.Docs, 2)
	assert.Equal(t, "b", page.Docs[0].ID)
	assert.Equal(t, "a", page.Docs[1].ID)

	_, err = s.List(ctx, "c", Query{OrderBy: "updatedAt", StartAfter: "a"})
	assert.ErrorIs(t, err, ErrInvalidQuery)
}

func TestCompareValues(t *testing.T) {
	assert.Equal(t, -1, CompareValues(nil, "a"))
	assert.Equal(t, 0, CompareValues(1, float64(1)))
	assert.Equal(t, 1, CompareValues("2024-02-01T00:00:00Z", "2024-01-31T23:00:00+09:00"))
	assert.Equal(t, -1, CompareValues("abc", "abd"))
}
