// Package docstore defines the canonical document store contract shared by
// the customer synchronizer and the saved search list service.
//
// Documents are schemaless maps grouped into named collections. Concrete
// backends live in internal/repository/postgres (JSONB) and internal/storage
// (DynamoDB); MemoryStore is the reference implementation used by tests and
// local development.
package docstore

import (
	"context"
	"errors"
	"time"
)

// MaxBatchOps is the largest number of writes a single BatchSet may carry.
const MaxBatchOps = 500

var (
	ErrNotFound      = errors.New("document not found")
	ErrBatchTooLarge = errors.New("batch exceeds maximum operation count")
	ErrInvalidQuery  = errors.New("invalid query")
)

type serverTimestamp struct{}

// ServerTimestamp is a field value placeholder. Stores replace it with their
// own commit time so callers never stamp documents with a local clock.
var ServerTimestamp any = serverTimestamp{}

// Document is a stored document and its key.
type Document struct {
	ID   string
	Data map[string]any
}

// Filter is an equality predicate on a top-level field.
type Filter struct {
	Field string
	Value any
}

// Query selects documents from one collection. StartAfter is the ID of the
// last document of the previous page and is only valid with ID ordering
// (an empty OrderBy).
type Query struct {
	Filters    []Filter
	OrderBy    string
	Desc       bool
	Limit      int
	StartAfter string
}

// Page is one page of query results. Next is empty on the last page.
type Page struct {
	Docs []Document
	Next string
}

// WriteOp is a single write inside a batch.
type WriteOp struct {
	Collection string
	ID         string
	Data       map[string]any
	Merge      bool
}

// Store is the document store contract.
type Store interface {
	// Create writes a new document under a store-assigned key.
	Create(ctx context.Context, collection string, data map[string]any) (string, error)

	// Set writes a document. With merge, only the given top-level fields are
	// replaced and the rest of the stored document is kept; the document is
	// created if it does not exist.
	Set(ctx context.Context, collection, id string, data map[string]any, merge bool) error

	// Get returns ErrNotFound when the document does not exist.
	Get(ctx context.Context, collection, id string) (Document, error)

	// Delete removes a document. Deleting a missing document is not an
	// error. Customers are never passed here; they are soft-deleted.
	Delete(ctx context.Context, collection, id string) error

	// BatchSet commits up to MaxBatchOps writes atomically.
	BatchSet(ctx context.Context, ops []WriteOp) error

	List(ctx context.Context, collection string, q Query) (Page, error)

	Count(ctx context.Context, collection string, filters []Filter) (int, error)
}

// IsServerTimestamp reports whether v is the ServerTimestamp placeholder.
func IsServerTimestamp(v any) bool {
	_, ok := v.(serverTimestamp)
	return ok
}

// ResolveTimestamps returns a copy of data with every ServerTimestamp
// placeholder replaced by now.
func ResolveTimestamps(data map[string]any, now time.Time) map[string]any {
	out := make(map[string]any, len(data))
	for k, v := range data {
		if IsServerTimestamp(v) {
			out[k] = now
			continue
		}
		out[k] = v
	}
	return out
}

// StoredTimeLayout is the fixed-width UTC layout JSON backends store
// timestamps in, so that text ordering matches time ordering.
const StoredTimeLayout = "2006-01-02T15:04:05.000000Z07:00"

// Prepare resolves ServerTimestamp placeholders to now and formats every
// top-level time.Time with StoredTimeLayout. JSON-backed stores call it
// before serializing a document.
func Prepare(data map[string]any, now time.Time) map[string]any {
	out := ResolveTimestamps(data, now)
	for k, v := range out {
		out[k] = PrepareValue(v)
	}
	return out
}

// PrepareValue formats a time.Time with StoredTimeLayout and returns other
// values unchanged.
func PrepareValue(v any) any {
	if t, ok := v.(time.Time); ok {
		return t.UTC().Format(StoredTimeLayout)
	}
	return v
}

// Merge applies patch over base and returns the result as a new map.
func Merge(base, patch map[string]any) map[string]any {
	out := make(map[string]any, len(base)+len(patch))
	for k, v := range base {
		out[k] = v
	}
	for k, v := range patch {
		out[k] = v
	}
	return out
}

// ValidateBatch checks the shared batch constraints.
func ValidateBatch(ops []WriteOp) error {
	if len(ops) > MaxBatchOps {
		return ErrBatchTooLarge
	}
	for _, op := range ops {
		if op.Collection == "" || op.ID == "" {
			return errors.New("batch op requires collection and id")
		}
	}
	return nil
}
