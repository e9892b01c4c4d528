package api

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/ignite/memorial-crm/internal/pkg/httputil"
	"github.com/ignite/memorial-crm/internal/pkg/logger"
	"github.com/ignite/memorial-crm/internal/service/customersync"
)

// BackfillRequest optionally narrows a backfill run. Empty fields use the
// configured defaults.
type BackfillRequest struct {
	Collections   []string `json:"collections,omitempty"`
	SkipCanonical bool     `json:"skipCanonical,omitempty"`
	SkipIndex     bool     `json:"skipIndex,omitempty"`
}

// BackfillStatus is the state of the most recent run in this process.
type BackfillStatus struct {
	Running   bool                          `json:"running"`
	StartedAt *time.Time                    `json:"startedAt,omitempty"`
	Summary   *customersync.BackfillSummary `json:"summary,omitempty"`
	Error     string                        `json:"error,omitempty"`
}

// BackfillRunner starts backfills in the background, one at a time per
// process. The distributed lock inside Backfill serializes across
// processes.
type BackfillRunner struct {
	backfill *customersync.Backfill
	defaults customersync.BackfillOptions
	baseCtx  context.Context

	mu     sync.Mutex
	status BackfillStatus
	done   chan struct{}
}

// NewBackfillRunner runs backfills under baseCtx, so cancelling it (server
// shutdown) stops a run between chunks.
func NewBackfillRunner(ctx context.Context, b *customersync.Backfill, defaults customersync.BackfillOptions) *BackfillRunner {
	return &BackfillRunner{backfill: b, defaults: defaults, baseCtx: ctx}
}

// Start launches a run.
//
//	POST /api/admin/backfill
func (br *BackfillRunner) Start(w http.ResponseWriter, r *http.Request) {
	var req BackfillRequest
	if r.ContentLength > 0 && !httputil.Decode(w, r, &req) {
		return
	}

	opts := br.defaults
	if len(req.Collections) > 0 {
		opts.Collections = req.Collections
	}
	opts.SkipCanonical = opts.SkipCanonical || req.SkipCanonical
	opts.SkipIndex = opts.SkipIndex || req.SkipIndex

	br.mu.Lock()
	if br.status.Running {
		br.mu.Unlock()
		httputil.Conflict(w, customersync.ErrBackfillRunning.Error())
		return
	}
	started := time.Now().UTC()
	br.status = BackfillStatus{Running: true, StartedAt: &started}
	br.done = make(chan struct{})
	snapshot := br.status
	br.mu.Unlock()

	go br.run(opts)
	httputil.Accepted(w, snapshot)
}

// Status returns the state of the current or last run.
//
//	GET /api/admin/backfill
func (br *BackfillRunner) Status(w http.ResponseWriter, r *http.Request) {
	br.mu.Lock()
	snapshot := br.status
	br.mu.Unlock()
	httputil.OK(w, snapshot)
}

// Wait blocks until the current run finishes. It returns immediately when
// nothing is running.
func (br *BackfillRunner) Wait() {
	br.mu.Lock()
	done := br.done
	br.mu.Unlock()
	if done != nil {
		<-done
	}
}

func (br *BackfillRunner) run(opts customersync.BackfillOptions) {
	summary, err := br.backfill.Run(br.baseCtx, opts)

	br.mu.Lock()
	defer br.mu.Unlock()
	br.status.Running = false
	br.status.Summary = summary
	if err != nil {
		br.status.Error = err.Error()
		if errors.Is(err, customersync.ErrBackfillRunning) {
			logger.Warn("backfill: another process holds the lock")
		} else {
			logger.Error("backfill: run failed", "error", err)
		}
	}
	close(br.done)
}
