package customersync

import (
	"errors"
	"fmt"
)

// Sentinel errors for the customer sync service layer.
var (
	ErrNotFound        = errors.New("customer not found")
	ErrDeleted         = errors.New("customer is deleted")
	ErrIndexSync       = errors.New("search index out of sync")
	ErrBackfillRunning = errors.New("backfill already running")
)

// IndexSyncError reports that the canonical write committed but the search
// index could not be updated. errors.Is(err, ErrIndexSync) matches it.
type IndexSyncError struct {
	Op       string
	ID       string
	ObjectID string
	Err      error
}

func (e *IndexSyncError) Error() string {
	return fmt.Sprintf("%s %s: index sync for object %q failed: %v", e.Op, e.ID, e.ObjectID, e.Err)
}

func (e *IndexSyncError) Unwrap() error { return e.Err }

func (e *IndexSyncError) Is(target error) bool { return target == ErrIndexSync }
