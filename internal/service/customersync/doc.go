// Package customersync keeps the customer search index consistent with the
// canonical document store.
//
// Every mutation is a two-step saga: the canonical write happens first and
// is the source of truth, then the normalized projection is pushed to the
// search index. An index failure never rolls the canonical write back; it is
// surfaced as an *IndexSyncError so the caller can report a partial success
// and retry with Reindex. Backfill re-runs the same projection over whole
// collections in bounded, sequential chunks.
//
// The service depends on the docstore.Store and searchindex.Index interfaces
// and never talks to a concrete backend.
package customersync
