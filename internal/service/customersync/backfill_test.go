package customersync

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ignite/memorial-crm/internal/docstore"
	"github.com/ignite/memorial-crm/internal/domain"
	"github.com/ignite/memorial-crm/internal/searchindex"
)

type fakeLock struct {
	held      bool
	released  bool
	refreshes int
}

func (l *fakeLock) Acquire(context.Context) (bool, error) { return !l.held, nil }
func (l *fakeLock) Release(context.Context) error {
	l.released = true
	return nil
}

func (l *fakeLock) Refresh(context.Context) error {
	l.refreshes++
	return nil
}

type fakeArchive struct {
	name string
	body []byte
}

func (a *fakeArchive) Archive(_ context.Context, name string, body []byte) (string, error) {
	a.name, a.body = name, body
	return "s3://reports/" + name, nil
}

func seedCustomers(t *testing.T, store *docstore.MemoryStore, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		require.NoError(t, store.Set(context.Background(), domain.CollectionCustomers, fmt.Sprintf("doc-%02d", i), map[string]any{
			"trackingNo": fmt.Sprintf("T-%02d", i),
			"address":    "神奈川県横浜市中区1-1",
		}, false))
	}
}

func TestBackfill_ThreeChunksMiddleFails(t *testing.T) {
	store := docstore.NewMemoryStore()
	idx := newFlakyIndex()
	idx.failSaves[2] = true
	seedCustomers(t, store, 6)

	summary, err := NewBackfill(store, idx).Run(context.Background(), BackfillOptions{
		SkipCanonical:  true,
		IndexChunkSize: 2,
	})
	require.NoError(t, err)
	require.Len(t, summary.Collections, 1)

	cs := summary.Collections[0]
	require.Len(t, cs.Chunks, 3)
	assert.Empty(t, cs.Chunks[0].Error)
	assert.Equal(t, "search service unavailable", cs.Chunks[1].Error)
	assert.Empty(t, cs.Chunks[2].Error, "processing continues after a failed chunk")
	for i, c := range cs.Chunks {
		assert.Equal(t, PhaseIndex, c.Phase)
		assert.Equal(t, i, c.Index)
		assert.Equal(t, 2, c.SourceCount)
	}
	assert.Equal(t, 0, cs.Chunks[1].Migrated)
	assert.Equal(t, StatusPartial, cs.Status)
	assert.Equal(t, 4, cs.Indexed)
	assert.Equal(t, 1, cs.Failed)
	assert.Equal(t, 4, idx.Len())
	assert.False(t, summary.HasErrors())
}

func TestBackfill_CanonicalWritesSidecarAndSkipsDeleted(t *testing.T) {
	store := docstore.NewMemoryStore()
	idx := newFlakyIndex()
	seedCustomers(t, store, 5)
	ctx := context.Background()
	require.NoError(t, store.Set(ctx, domain.CollectionCustomers, "doc-04", map[string]any{"status": domain.StatusDeleted}, true))

	summary, err := NewBackfill(store, idx).Run(ctx, BackfillOptions{CanonicalChunkSize: 2, IndexChunkSize: 10})
	require.NoError(t, err)

	cs := summary.Collections[0]
	assert.Equal(t, StatusSuccess, cs.Status)
	assert.Equal(t, 5, cs.Documents)
	assert.Equal(t, 4, cs.Migrated)
	assert.Equal(t, 4, cs.Indexed)
	assert.Equal(t, 1, cs.Skipped, "a deleted doc is counted once across phases")
	assert.Equal(t, 1, cs.Removed)

	var phases []string
	for _, c := range cs.Chunks {
		phases = append(phases, c.Phase)
	}
	assert.Equal(t, []string{PhaseCanonical, PhaseCanonical, PhaseCanonical, PhaseIndex}, phases)

	doc, _ := store.Get(ctx, domain.CollectionCustomers, "doc-00")
	assert.Equal(t, "神奈川県", doc.Data["addressPrefecture"])
	assert.Equal(t, "横浜市", doc.Data["addressCity"])
	deleted, _ := store.Get(ctx, domain.CollectionCustomers, "doc-04")
	assert.NotContains(t, deleted.Data, "addressPrefecture")

	_, ok := idx.Get("T-04")
	assert.False(t, ok)
}

func TestBackfill_RemovesDeletedCustomersLeftInIndex(t *testing.T) {
	svc, store, idx := newTestService()
	ctx := context.Background()

	kept, err := svc.Create(ctx, domain.RawRecord{"trackingNo": "T-1", "name": "山田"})
	require.NoError(t, err)
	gone, err := svc.Create(ctx, domain.RawRecord{"trackingNo": "T-2", "name": "佐藤"})
	require.NoError(t, err)

	idx.failDelete = true
	_, err = svc.Delete(ctx, gone.ID)
	require.ErrorIs(t, err, ErrIndexSync)
	_, ok := idx.Get("T-2")
	require.True(t, ok, "index delete failed, record still searchable")

	idx.failDelete = false
	summary, err := NewBackfill(store, idx).Run(ctx, BackfillOptions{SkipCanonical: true})
	require.NoError(t, err)

	cs := summary.Collections[0]
	assert.Equal(t, StatusSuccess, cs.Status)
	assert.Equal(t, 2, cs.Documents)
	assert.Equal(t, 1, cs.Indexed)
	assert.Equal(t, 1, cs.Skipped)
	assert.Equal(t, 1, cs.Removed)
	_, ok = idx.Get("T-2")
	assert.False(t, ok)
	_, ok = idx.Get(kept.ObjectID)
	assert.True(t, ok)
}

func TestBackfill_FailedIndexRemovalFailsChunk(t *testing.T) {
	store := docstore.NewMemoryStore()
	idx := newFlakyIndex()
	seedCustomers(t, store, 2)
	ctx := context.Background()
	require.NoError(t, store.Set(ctx, domain.CollectionCustomers, "doc-01", map[string]any{"status": domain.StatusDeleted}, true))
	idx.failDelete = true

	summary, err := NewBackfill(store, idx).Run(ctx, BackfillOptions{SkipCanonical: true})
	require.NoError(t, err)

	cs := summary.Collections[0]
	require.Len(t, cs.Chunks, 1)
	assert.Contains(t, cs.Chunks[0].Error, "remove T-01")
	assert.Equal(t, 1, cs.Chunks[0].Migrated, "live records are still saved")
	assert.Zero(t, cs.Removed)
	assert.Equal(t, StatusError, cs.Status)
}

func TestBackfill_AllChunksFailIsError(t *testing.T) {
	store := docstore.NewMemoryStore()
	idx := newFlakyIndex()
	idx.failSaves[1] = true
	seedCustomers(t, store, 2)

	summary, err := NewBackfill(store, idx).Run(context.Background(), BackfillOptions{SkipCanonical: true})
	require.NoError(t, err)
	assert.Equal(t, StatusError, summary.Collections[0].Status)
	assert.True(t, summary.HasErrors())
}

func TestBackfill_CancelledStopsBeforeNextChunk(t *testing.T) {
	store := docstore.NewMemoryStore()
	seedCustomers(t, store, 4)
	ctx, cancel := context.WithCancel(context.Background())

	idx := &cancellingIndex{flakyIndex: newFlakyIndex(), cancel: cancel}
	summary, err := NewBackfill(store, idx).Run(ctx, BackfillOptions{SkipCanonical: true, IndexChunkSize: 1})
	assert.ErrorIs(t, err, context.Canceled)
	require.NotNil(t, summary)
	assert.True(t, summary.Cancelled)
	assert.Len(t, summary.Collections[0].Chunks, 1, "only the committed prefix is reported")
	assert.Equal(t, 1, idx.Len())
}

// cancellingIndex cancels the run after its first successful save.
type cancellingIndex struct {
	*flakyIndex
	cancel context.CancelFunc
}

func (c *cancellingIndex) SaveObjects(ctx context.Context, records []searchindex.Record) error {
	err := c.flakyIndex.SaveObjects(ctx, records)
	c.cancel()
	return err
}

func TestBackfill_LockAndArchive(t *testing.T) {
	store := docstore.NewMemoryStore()
	seedCustomers(t, store, 1)

	held := &fakeLock{held: true}
	_, err := NewBackfill(store, newFlakyIndex()).WithLock(held).Run(context.Background(), BackfillOptions{})
	assert.ErrorIs(t, err, ErrBackfillRunning)

	lock := &fakeLock{}
	archive := &fakeArchive{}
	b := NewBackfill(store, newFlakyIndex()).WithLock(lock).WithArchive(archive)
	b.now = func() time.Time { return time.Date(2025, 5, 6, 7, 8, 9, 0, time.UTC) }

	summary, err := b.Run(context.Background(), BackfillOptions{})
	require.NoError(t, err)
	assert.True(t, lock.released)
	assert.Equal(t, 2, lock.refreshes)
	assert.Equal(t, "backfill-20250506T070809Z.json", archive.name)
	assert.Equal(t, "s3://reports/backfill-20250506T070809Z.json", summary.ReportURI)
	assert.Contains(t, string(archive.body), `"status": "success"`)
}
