package api

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/ignite/memorial-crm/internal/domain"
	"github.com/ignite/memorial-crm/internal/pkg/httputil"
	"github.com/ignite/memorial-crm/internal/searchindex"
	"github.com/ignite/memorial-crm/internal/segmentation"
	"github.com/ignite/memorial-crm/internal/service/customersync"
)

// maxHitsPerPage caps hitsPerPage on customer searches.
const maxHitsPerPage = 1000

// CustomerHandlers serves the customer write path and search.
type CustomerHandlers struct {
	svc    *customersync.Service
	engine *segmentation.Engine
}

func NewCustomerHandlers(svc *customersync.Service, engine *segmentation.Engine) *CustomerHandlers {
	return &CustomerHandlers{svc: svc, engine: engine}
}

// SyncResponse reports a customer mutation. IndexSynced is false when the
// canonical write committed but the search index was not updated; the
// client retries with POST /api/customers/{id}/reindex.
type SyncResponse struct {
	ID          string `json:"id"`
	ObjectID    string `json:"objectID"`
	IndexSynced bool   `json:"indexSynced"`
	IndexError  string `json:"indexError,omitempty"`
}

// Create writes a new customer.
//
//	POST /api/customers
func (h *CustomerHandlers) Create(w http.ResponseWriter, r *http.Request) {
	var raw domain.RawRecord
	if !httputil.Decode(w, r, &raw) {
		return
	}
	res, err := h.svc.Create(r.Context(), raw)
	h.respondSync(w, http.StatusCreated, res, err)
}

// Get returns the normalized customer.
//
//	GET /api/customers/{id}
func (h *CustomerHandlers) Get(w http.ResponseWriter, r *http.Request) {
	c, err := h.svc.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.respondError(w, err)
		return
	}
	httputil.OK(w, c)
}

// Update merges the body into the customer.
//
//	PUT /api/customers/{id}
func (h *CustomerHandlers) Update(w http.ResponseWriter, r *http.Request) {
	var patch domain.RawRecord
	if !httputil.Decode(w, r, &patch) {
		return
	}
	res, err := h.svc.Update(r.Context(), chi.URLParam(r, "id"), patch)
	h.respondSync(w, http.StatusOK, res, err)
}

// Delete soft-deletes the customer.
//
//	DELETE /api/customers/{id}
func (h *CustomerHandlers) Delete(w http.ResponseWriter, r *http.Request) {
	res, err := h.svc.Delete(r.Context(), chi.URLParam(r, "id"))
	h.respondSync(w, http.StatusOK, res, err)
}

// Reindex re-projects the stored customer into the search index.
//
//	POST /api/customers/{id}/reindex
func (h *CustomerHandlers) Reindex(w http.ResponseWriter, r *http.Request) {
	res, err := h.svc.Reindex(r.Context(), chi.URLParam(r, "id"))
	h.respondSync(w, http.StatusOK, res, err)
}

// Search runs a full-text search, optionally narrowed by a saved list.
//
//	GET /api/customers/search?q=&list=&page=&hitsPerPage=
func (h *CustomerHandlers) Search(w http.ResponseWriter, r *http.Request) {
	page, ok := httputil.QueryInt(w, r, "page", 0)
	if !ok {
		return
	}
	hitsPerPage, ok := httputil.QueryInt(w, r, "hitsPerPage", searchindex.DefaultHitsPerPage)
	if !ok {
		return
	}
	if hitsPerPage > maxHitsPerPage {
		hitsPerPage = maxHitsPerPage
	}

	q := r.URL.Query()
	res, err := h.engine.Search(r.Context(), segmentation.SearchRequest{
		Query:       q.Get("q"),
		ListID:      q.Get("list"),
		Page:        page,
		HitsPerPage: hitsPerPage,
	})
	if errors.Is(err, segmentation.ErrListNotFound) {
		httputil.NotFound(w, err.Error())
		return
	}
	if err != nil {
		httputil.InternalError(w, err)
		return
	}
	httputil.OK(w, res)
}

// respondSync maps a synchronizer result. An index failure after a committed
// canonical write is a 202, not an error.
func (h *CustomerHandlers) respondSync(w http.ResponseWriter, okStatus int, res customersync.Result, err error) {
	var syncErr *customersync.IndexSyncError
	switch {
	case err == nil:
		httputil.JSON(w, okStatus, SyncResponse{ID: res.ID, ObjectID: res.ObjectID, IndexSynced: true})
	case errors.As(err, &syncErr):
		httputil.Accepted(w, SyncResponse{
			ID:          res.ID,
			ObjectID:    res.ObjectID,
			IndexSynced: false,
			IndexError:  syncErr.Err.Error(),
		})
	default:
		h.respondError(w, err)
	}
}

func (h *CustomerHandlers) respondError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, customersync.ErrNotFound):
		httputil.NotFound(w, err.Error())
	case errors.Is(err, customersync.ErrDeleted):
		httputil.Conflict(w, err.Error())
	default:
		httputil.InternalError(w, err)
	}
}
