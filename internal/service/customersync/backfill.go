package customersync

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/ignite/memorial-crm/internal/datanorm"
	"github.com/ignite/memorial-crm/internal/docstore"
	"github.com/ignite/memorial-crm/internal/domain"
	"github.com/ignite/memorial-crm/internal/metrics"
	"github.com/ignite/memorial-crm/internal/pkg/logger"
	"github.com/ignite/memorial-crm/internal/searchindex"
)

// Backfill phases.
const (
	PhaseCanonical = "canonical"
	PhaseIndex     = "index"
)

// Collection status values.
const (
	StatusSuccess = "success"
	StatusPartial = "partial"
	StatusError   = "error"
)

const (
	DefaultCanonicalChunkSize = 450
	DefaultIndexChunkSize     = 1000
	DefaultPageSize           = 1000
)

// BackfillOptions controls a backfill run. Zero values select defaults.
type BackfillOptions struct {
	Collections        []string
	PageSize           int
	CanonicalChunkSize int
	IndexChunkSize     int
	SkipCanonical      bool
	SkipIndex          bool
}

func (o BackfillOptions) withDefaults() BackfillOptions {
	if len(o.Collections) == 0 {
		o.Collections = []string{domain.CollectionCustomers}
	}
	if o.PageSize <= 0 {
		o.PageSize = DefaultPageSize
	}
	if o.CanonicalChunkSize <= 0 {
		o.CanonicalChunkSize = DefaultCanonicalChunkSize
	}
	if o.CanonicalChunkSize > docstore.MaxBatchOps {
		o.CanonicalChunkSize = docstore.MaxBatchOps
	}
	if o.IndexChunkSize <= 0 {
		o.IndexChunkSize = DefaultIndexChunkSize
	}
	return o
}

// ChunkResult is the outcome of one chunk. Skipped counts soft-deleted
// documents; in the index phase Removed counts those deleted from the index.
// Error is empty on success.
type ChunkResult struct {
	Phase       string `json:"phase"`
	Index       int    `json:"index"`
	SourceCount int    `json:"sourceCount"`
	Migrated    int    `json:"migrated"`
	Skipped     int    `json:"skipped"`
	Removed     int    `json:"removed"`
	Error       string `json:"error,omitempty"`
}

// CollectionSummary aggregates the chunks of one collection.
type CollectionSummary struct {
	Collection string        `json:"collection"`
	Status     string        `json:"status"`
	Documents  int           `json:"documents"`
	Migrated   int           `json:"migrated"`
	Indexed    int           `json:"indexed"`
	Skipped    int           `json:"skipped"`
	Removed    int           `json:"removed"`
	Failed     int           `json:"failedChunks"`
	Error      string        `json:"error,omitempty"`
	Chunks     []ChunkResult `json:"chunks"`
}

// BackfillSummary is the report of one run.
type BackfillSummary struct {
	StartedAt   time.Time           `json:"startedAt"`
	FinishedAt  time.Time           `json:"finishedAt"`
	Cancelled   bool                `json:"cancelled"`
	Collections []CollectionSummary `json:"collections"`
	ReportURI   string              `json:"reportUri,omitempty"`
}

// HasErrors reports whether any collection ended in the error status.
func (s *BackfillSummary) HasErrors() bool {
	for _, c := range s.Collections {
		if c.Status == StatusError {
			return true
		}
	}
	return false
}

// Backfill re-synchronizes whole collections: it writes the derived region
// sidecar back to canonical documents, then saves every live document to the
// search index. Chunks run sequentially and a failing chunk is recorded
// without stopping the run.
type Backfill struct {
	store   docstore.Store
	index   searchindex.Index
	lock    Locker
	archive ReportArchive
	metrics *metrics.Metrics
	now     func() time.Time
}

func NewBackfill(store docstore.Store, index searchindex.Index) *Backfill {
	return &Backfill{store: store, index: index, now: time.Now}
}

// WithLock makes Run fail with ErrBackfillRunning while another holder has
// the lock.
func (b *Backfill) WithLock(l Locker) *Backfill {
	b.lock = l
	return b
}

// WithArchive stores each finished summary.
func (b *Backfill) WithArchive(a ReportArchive) *Backfill {
	b.archive = a
	return b
}

func (b *Backfill) WithMetrics(m *metrics.Metrics) *Backfill {
	b.metrics = m
	return b
}

// Run executes the backfill. On context cancellation it stops before the
// next chunk and returns the summary of the committed prefix together with
// the context error.
func (b *Backfill) Run(ctx context.Context, opts BackfillOptions) (*BackfillSummary, error) {
	opts = opts.withDefaults()

	if b.lock != nil {
		ok, err := b.lock.Acquire(ctx)
		if err != nil {
			return nil, fmt.Errorf("acquire backfill lock: %w", err)
		}
		if !ok {
			return nil, ErrBackfillRunning
		}
		defer func() {
			if err := b.lock.Release(context.Background()); err != nil {
				logger.Warn("backfill: lock release failed", "error", err)
			}
		}()
	}

	summary := &BackfillSummary{StartedAt: b.now().UTC()}
	var runErr error
	for _, coll := range opts.Collections {
		cs, err := b.runCollection(ctx, coll, opts)
		summary.Collections = append(summary.Collections, cs)
		if err != nil {
			summary.Cancelled = true
			runErr = err
			break
		}
	}
	summary.FinishedAt = b.now().UTC()

	if b.archive != nil {
		b.archiveSummary(ctx, summary)
	}
	return summary, runErr
}

// runCollection returns a non-nil error only for context cancellation.
func (b *Backfill) runCollection(ctx context.Context, coll string, opts BackfillOptions) (CollectionSummary, error) {
	cs := CollectionSummary{Collection: coll, Chunks: []ChunkResult{}}
	logger.Info("backfill: collection started", "collection", coll)

	docs, err := b.loadAll(ctx, coll, opts.PageSize)
	if err != nil {
		if ctx.Err() != nil {
			cs.Status = StatusError
			cs.Error = ctx.Err().Error()
			return cs, ctx.Err()
		}
		cs.Status = StatusError
		cs.Error = err.Error()
		logger.Error("backfill: load failed", "collection", coll, "error", err)
		return cs, nil
	}
	cs.Documents = len(docs)
	for _, d := range docs {
		if domain.RawRecord(d.Data).IsDeleted() {
			cs.Skipped++
		}
	}

	var cancelErr error
	if !opts.SkipCanonical {
		cancelErr = b.runPhase(ctx, &cs, PhaseCanonical, docs, opts.CanonicalChunkSize, func(chunk []docstore.Document) ChunkResult {
			return b.canonicalChunk(ctx, coll, chunk)
		})
	}
	if cancelErr == nil && !opts.SkipIndex {
		cancelErr = b.runPhase(ctx, &cs, PhaseIndex, docs, opts.IndexChunkSize, func(chunk []docstore.Document) ChunkResult {
			return b.indexChunk(ctx, chunk)
		})
	}

	cs.Status = collectionStatus(cs.Chunks)
	logger.Info("backfill: collection finished",
		"collection", coll, "status", cs.Status, "documents", cs.Documents,
		"migrated", cs.Migrated, "indexed", cs.Indexed, "removed", cs.Removed, "failed_chunks", cs.Failed)
	return cs, cancelErr
}

func (b *Backfill) runPhase(ctx context.Context, cs *CollectionSummary, phase string, docs []docstore.Document, size int, fn func([]docstore.Document) ChunkResult) error {
	for i, n := 0, 0; i < len(docs); i, n = i+size, n+1 {
		if err := ctx.Err(); err != nil {
			return err
		}
		end := i + size
		if end > len(docs) {
			end = len(docs)
		}

		res := fn(docs[i:end])
		res.Phase = phase
		res.Index = n
		res.SourceCount = end - i

		cs.Chunks = append(cs.Chunks, res)
		if phase == PhaseCanonical {
			cs.Migrated += res.Migrated
		} else {
			cs.Indexed += res.Migrated
			cs.Removed += res.Removed
		}
		if res.Error != "" {
			cs.Failed++
			logger.Warn("backfill: chunk failed", "collection", cs.Collection, "phase", phase, "chunk", n, "error", res.Error)
		}
		b.metrics.ObserveBackfillChunk(phase, res.Error != "")
		b.refreshLock(ctx)
	}
	return nil
}

func (b *Backfill) refreshLock(ctx context.Context) {
	r, ok := b.lock.(lockRefresher)
	if !ok {
		return
	}
	if err := r.Refresh(ctx); err != nil {
		logger.Warn("backfill: lock refresh failed", "error", err)
	}
}

func (b *Backfill) canonicalChunk(ctx context.Context, coll string, chunk []docstore.Document) ChunkResult {
	var res ChunkResult
	ops := make([]docstore.WriteOp, 0, len(chunk))
	for _, d := range chunk {
		raw := domain.RawRecord(d.Data)
		if raw.IsDeleted() {
			res.Skipped++
			continue
		}
		c := datanorm.Normalize(raw)
		ops = append(ops, docstore.WriteOp{
			Collection: coll,
			ID:         d.ID,
			Data:       datanorm.Sidecar(c),
			Merge:      true,
		})
	}
	if len(ops) == 0 {
		return res
	}
	if err := b.store.BatchSet(ctx, ops); err != nil {
		res.Error = err.Error()
		return res
	}
	res.Migrated = len(ops)
	return res
}

// indexChunk saves live documents and deletes soft-deleted ones from the
// index, which reconciles deletes whose index step failed earlier.
func (b *Backfill) indexChunk(ctx context.Context, chunk []docstore.Document) ChunkResult {
	var res ChunkResult
	var errs []error
	records := make([]searchindex.Record, 0, len(chunk))
	for _, d := range chunk {
		raw := domain.RawRecord(d.Data)
		c := datanorm.Normalize(raw)
		if raw.IsDeleted() {
			res.Skipped++
			objectID := searchindex.ObjectID(c, d.ID)
			if err := b.index.DeleteObject(ctx, objectID); err != nil {
				errs = append(errs, fmt.Errorf("remove %s: %w", objectID, err))
				continue
			}
			res.Removed++
			continue
		}
		records = append(records, searchindex.Project(c, d.ID))
	}
	if len(records) > 0 {
		if err := b.index.SaveObjects(ctx, records); err != nil {
			errs = append(errs, err)
		} else {
			res.Migrated = len(records)
		}
	}
	if err := errors.Join(errs...); err != nil {
		res.Error = err.Error()
	}
	return res
}

func (b *Backfill) loadAll(ctx context.Context, coll string, pageSize int) ([]docstore.Document, error) {
	var docs []docstore.Document
	cursor := ""
	for {
		page, err := b.store.List(ctx, coll, docstore.Query{Limit: pageSize, StartAfter: cursor})
		if err != nil {
			return nil, fmt.Errorf("list %s: %w", coll, err)
		}
		docs = append(docs, page.Docs...)
		if page.Next == "" {
			return docs, nil
		}
		cursor = page.Next
	}
}

func (b *Backfill) archiveSummary(ctx context.Context, summary *BackfillSummary) {
	body, err := json.MarshalIndent(summary, "", "  ")
	if err != nil {
		logger.Error("backfill: encode summary failed", "error", err)
		return
	}
	name := fmt.Sprintf("backfill-%s.json", summary.StartedAt.Format("20060102T150405Z"))
	uri, err := b.archive.Archive(context.WithoutCancel(ctx), name, body)
	if err != nil {
		logger.Error("backfill: archive summary failed", "error", err)
		return
	}
	summary.ReportURI = uri
}

// collectionStatus is success when no chunk failed, error when every chunk
// failed and partial otherwise.
func collectionStatus(chunks []ChunkResult) string {
	failed := 0
	for _, c := range chunks {
		if c.Error != "" {
			failed++
		}
	}
	switch {
	case failed == 0:
		return StatusSuccess
	case failed == len(chunks):
		return StatusError
	}
	return StatusPartial
}
