package customersync

import (
	"context"
	"errors"
	"fmt"

	"github.com/ignite/memorial-crm/internal/datanorm"
	"github.com/ignite/memorial-crm/internal/docstore"
	"github.com/ignite/memorial-crm/internal/domain"
	"github.com/ignite/memorial-crm/internal/metrics"
	"github.com/ignite/memorial-crm/internal/pkg/logger"
	"github.com/ignite/memorial-crm/internal/searchindex"
)

// Operation names used in IndexSyncError and metrics.
const (
	OpCreate  = "create"
	OpUpdate  = "update"
	OpDelete  = "delete"
	OpReindex = "reindex"
)

// addressKeys are the raw keys that feed the address and region fields. A
// patch touching any of them invalidates the stored region sidecar.
var addressKeys = []string{"address", "prefecture", "city", "town", "streetNumber", "building"}

// Service implements the customer synchronizer. It is safe for concurrent
// use; it holds no mutable state of its own.
type Service struct {
	store      docstore.Store
	index      searchindex.Index
	collection string
	metrics    *metrics.Metrics
}

// NewService creates a synchronizer for the Customers collection.
func NewService(store docstore.Store, index searchindex.Index) *Service {
	return &Service{store: store, index: index, collection: domain.CollectionCustomers}
}

// WithCollection points the service at a different canonical collection.
func (s *Service) WithCollection(name string) *Service {
	s.collection = name
	return s
}

// WithMetrics records operation outcomes on m.
func (s *Service) WithMetrics(m *metrics.Metrics) *Service {
	s.metrics = m
	return s
}

// Result identifies the canonical document and index object a mutation
// touched. It is returned alongside an *IndexSyncError as well, since the
// canonical write still happened.
type Result struct {
	ID       string `json:"id"`
	ObjectID string `json:"objectID"`
}

// Get returns the normalized view of a canonical document.
func (s *Service) Get(ctx context.Context, id string) (domain.Customer, error) {
	raw, err := s.load(ctx, id)
	if err != nil {
		return domain.Customer{}, err
	}
	if raw.IsDeleted() {
		return domain.Customer{}, ErrDeleted
	}
	return datanorm.Normalize(raw), nil
}

// Create writes a new canonical document, then indexes it under its
// store-assigned key.
func (s *Service) Create(ctx context.Context, raw domain.RawRecord) (Result, error) {
	data := copyRecord(raw)
	delete(data, "status")
	delete(data, "deletedAt")
	for k, v := range datanorm.Sidecar(datanorm.Normalize(data)) {
		data[k] = v
	}
	data["createdAt"] = docstore.ServerTimestamp
	data["updatedAt"] = docstore.ServerTimestamp

	id, err := s.store.Create(ctx, s.collection, data)
	if err != nil {
		s.metrics.ObserveSync(OpCreate, metrics.ResultError)
		return Result{}, fmt.Errorf("create customer: %w", err)
	}

	res, err := s.syncIndex(ctx, OpCreate, id, "")
	s.observe(OpCreate, err)
	return res, err
}

// Update merges patch into the canonical document, re-reads the committed
// state and re-indexes it. When the edit changes the objectID (a tracking
// number edit) the stale index object is removed.
func (s *Service) Update(ctx context.Context, id string, patch domain.RawRecord) (Result, error) {
	before, err := s.load(ctx, id)
	if err != nil {
		return Result{}, err
	}
	if before.IsDeleted() {
		return Result{}, ErrDeleted
	}
	previousObjectID := searchindex.ObjectID(datanorm.Normalize(before), id)

	data := copyRecord(patch)
	delete(data, "createdAt")
	delete(data, "status")
	delete(data, "deletedAt")
	if touchesAddress(data) {
		if _, ok := data[datanorm.SidecarPrefecture]; !ok {
			data[datanorm.SidecarPrefecture] = ""
		}
		if _, ok := data[datanorm.SidecarCity]; !ok {
			data[datanorm.SidecarCity] = ""
		}
	}
	data["updatedAt"] = docstore.ServerTimestamp

	if err := s.store.Set(ctx, s.collection, id, data, true); err != nil {
		s.metrics.ObserveSync(OpUpdate, metrics.ResultError)
		return Result{}, fmt.Errorf("update customer %s: %w", id, err)
	}

	res, err := s.syncIndex(ctx, OpUpdate, id, previousObjectID)
	s.observe(OpUpdate, err)
	return res, err
}

// Delete soft-deletes the canonical document and removes its index object.
// Documents are never hard-deleted.
func (s *Service) Delete(ctx context.Context, id string) (Result, error) {
	raw, err := s.load(ctx, id)
	if err != nil {
		return Result{}, err
	}
	res := Result{ID: id, ObjectID: searchindex.ObjectID(datanorm.Normalize(raw), id)}

	err = s.store.Set(ctx, s.collection, id, map[string]any{
		"status":    domain.StatusDeleted,
		"deletedAt": docstore.ServerTimestamp,
		"updatedAt": docstore.ServerTimestamp,
	}, true)
	if err != nil {
		s.metrics.ObserveSync(OpDelete, metrics.ResultError)
		return Result{}, fmt.Errorf("delete customer %s: %w", id, err)
	}

	if err := s.index.DeleteObject(ctx, res.ObjectID); err != nil {
		s.observe(OpDelete, err)
		return res, s.indexError(OpDelete, res, err)
	}
	s.observe(OpDelete, nil)
	return res, nil
}

// Reindex re-projects the committed canonical document. It is the retry
// path after an *IndexSyncError: live documents are saved, soft-deleted
// documents are removed from the index.
func (s *Service) Reindex(ctx context.Context, id string) (Result, error) {
	raw, err := s.load(ctx, id)
	if err != nil {
		return Result{}, err
	}
	c := datanorm.Normalize(raw)
	res := Result{ID: id, ObjectID: searchindex.ObjectID(c, id)}

	if raw.IsDeleted() {
		err = s.index.DeleteObject(ctx, res.ObjectID)
	} else {
		err = s.index.SaveObjects(ctx, []searchindex.Record{searchindex.Project(c, id)})
	}
	if err != nil {
		s.observe(OpReindex, err)
		return res, s.indexError(OpReindex, res, err)
	}
	s.observe(OpReindex, nil)
	return res, nil
}

// syncIndex re-reads the committed document so server-assigned timestamps
// are projected, then upserts it. previousObjectID, when different from the
// new objectID, is deleted from the index.
func (s *Service) syncIndex(ctx context.Context, op, id, previousObjectID string) (Result, error) {
	res := Result{ID: id, ObjectID: previousObjectID}

	raw, err := s.load(ctx, id)
	if err != nil {
		return res, s.indexError(op, res, err)
	}
	c := datanorm.Normalize(raw)
	res.ObjectID = searchindex.ObjectID(c, id)

	if clearedSidecar(raw) {
		if err := s.store.Set(ctx, s.collection, id, datanorm.Sidecar(c), true); err != nil {
			logger.Warn("customersync: sidecar write-back failed", "id", id, "error", err)
		}
	}

	if err := s.index.SaveObjects(ctx, []searchindex.Record{searchindex.Project(c, id)}); err != nil {
		return res, s.indexError(op, res, err)
	}
	if previousObjectID != "" && previousObjectID != res.ObjectID {
		if err := s.index.DeleteObject(ctx, previousObjectID); err != nil {
			return res, s.indexError(op, Result{ID: id, ObjectID: previousObjectID}, err)
		}
	}
	return res, nil
}

func (s *Service) load(ctx context.Context, id string) (domain.RawRecord, error) {
	doc, err := s.store.Get(ctx, s.collection, id)
	if errors.Is(err, docstore.ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get customer %s: %w", id, err)
	}
	return domain.RawRecord(doc.Data), nil
}

func (s *Service) indexError(op string, res Result, err error) error {
	logger.Error("customersync: index sync failed",
		"op", op, "id", res.ID, "object_id", res.ObjectID, "error", err)
	return &IndexSyncError{Op: op, ID: res.ID, ObjectID: res.ObjectID, Err: err}
}

func (s *Service) observe(op string, err error) {
	switch {
	case err == nil:
		s.metrics.ObserveSync(op, metrics.ResultOK)
	case errors.Is(err, ErrIndexSync):
		s.metrics.ObserveSync(op, metrics.ResultIndexFailed)
	default:
		s.metrics.ObserveSync(op, metrics.ResultError)
	}
}

func copyRecord(in domain.RawRecord) domain.RawRecord {
	out := make(domain.RawRecord, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

func touchesAddress(patch domain.RawRecord) bool {
	for _, k := range addressKeys {
		if _, ok := patch[k]; ok {
			return true
		}
	}
	return false
}

// clearedSidecar reports whether the stored sidecar is missing or blank
// while the document has an address to derive it from.
func clearedSidecar(raw domain.RawRecord) bool {
	if !touchesAddress(raw) {
		return false
	}
	pref, _ := raw[datanorm.SidecarPrefecture].(string)
	city, _ := raw[datanorm.SidecarCity].(string)
	return pref == "" || city == ""
}
