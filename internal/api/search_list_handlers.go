package api

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/ignite/memorial-crm/internal/domain"
	"github.com/ignite/memorial-crm/internal/pkg/httputil"
	"github.com/ignite/memorial-crm/internal/segmentation"
	"github.com/ignite/memorial-crm/internal/service/searchlist"
)

// SearchListHandlers serves saved search list CRUD.
type SearchListHandlers struct {
	svc *searchlist.Service
}

func NewSearchListHandlers(svc *searchlist.Service) *SearchListHandlers {
	return &SearchListHandlers{svc: svc}
}

// CreateSearchListRequest is the request body for creating a list
type CreateSearchListRequest struct {
	Name            string                        `json:"name"`
	Description     string                        `json:"description,omitempty"`
	CreatedBy       string                        `json:"createdBy,omitempty"`
	ConditionGroups []domain.FilterConditionGroup `json:"conditionGroups"`
}

// SearchListResponse wraps a list with advisory validation warnings.
type SearchListResponse struct {
	domain.SavedSearchList
	Warnings []segmentation.ValidationIssue `json:"warnings,omitempty"`
}

// FieldsResponse describes what a condition may reference.
type FieldsResponse struct {
	Fields    []segmentation.FieldDefinition  `json:"fields"`
	Operators []segmentation.OperatorMetadata `json:"operators"`
}

//	GET /api/search-lists
func (h *SearchListHandlers) List(w http.ResponseWriter, r *http.Request) {
	lists, err := h.svc.List(r.Context())
	if err != nil {
		httputil.InternalError(w, err)
		return
	}
	httputil.OK(w, map[string]any{"lists": lists, "total": len(lists)})
}

//	GET /api/search-lists/fields
func (h *SearchListHandlers) Fields(w http.ResponseWriter, r *http.Request) {
	httputil.OK(w, FieldsResponse{
		Fields:    segmentation.FieldDefinitions(),
		Operators: segmentation.GetOperatorMetadata(),
	})
}

//	POST /api/search-lists
func (h *SearchListHandlers) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateSearchListRequest
	if !httputil.Decode(w, r, &req) {
		return
	}
	id, err := h.svc.Create(r.Context(), req.Name, req.ConditionGroups, searchlist.CreateOptions{
		Description: req.Description,
		CreatedBy:   req.CreatedBy,
	})
	if err != nil {
		h.respondError(w, err)
		return
	}
	h.respondList(w, r, http.StatusCreated, id)
}

//	GET /api/search-lists/{id}
func (h *SearchListHandlers) Get(w http.ResponseWriter, r *http.Request) {
	h.respondList(w, r, http.StatusOK, chi.URLParam(r, "id"))
}

//	PUT /api/search-lists/{id}
func (h *SearchListHandlers) Update(w http.ResponseWriter, r *http.Request) {
	var patch searchlist.Patch
	if !httputil.Decode(w, r, &patch) {
		return
	}
	id := chi.URLParam(r, "id")
	if err := h.svc.Update(r.Context(), id, patch); err != nil {
		h.respondError(w, err)
		return
	}
	h.respondList(w, r, http.StatusOK, id)
}

//	DELETE /api/search-lists/{id}
func (h *SearchListHandlers) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		h.respondError(w, err)
		return
	}
	httputil.NoContent(w)
}

func (h *SearchListHandlers) respondList(w http.ResponseWriter, r *http.Request, status int, id string) {
	l, err := h.svc.Get(r.Context(), id)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httputil.JSON(w, status, SearchListResponse{
		SavedSearchList: l,
		Warnings:        segmentation.ValidateGroups(l.ConditionGroups),
	})
}

func (h *SearchListHandlers) respondError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, searchlist.ErrNotFound):
		httputil.NotFound(w, err.Error())
	case errors.Is(err, searchlist.ErrSystemList):
		httputil.Forbidden(w, err.Error())
	case errors.Is(err, searchlist.ErrNameRequired):
		httputil.BadRequest(w, err.Error())
	default:
		httputil.InternalError(w, err)
	}
}
