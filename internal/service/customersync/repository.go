package customersync

import (
	"context"
)

// ReportArchive stores finished backfill summaries. It returns the location
// the report was written to.
type ReportArchive interface {
	Archive(ctx context.Context, name string, body []byte) (string, error)
}

// Locker serializes backfill runs across processes. distlock.DistLock
// satisfies it.
type Locker interface {
	Acquire(ctx context.Context) (bool, error)
	Release(ctx context.Context) error
}

// lockRefresher is implemented by locks that expire. Backfill refreshes the
// lock after every chunk so a long run keeps ownership.
type lockRefresher interface {
	Refresh(ctx context.Context) error
}
