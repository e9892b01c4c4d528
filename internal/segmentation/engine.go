package segmentation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ignite/memorial-crm/internal/domain"
	"github.com/ignite/memorial-crm/internal/metrics"
	"github.com/ignite/memorial-crm/internal/searchindex"
)

var ErrListNotFound = errors.New("search list not found")

// ListSource resolves saved search lists by id. Lookup returns nil without
// an error when the list does not exist.
type ListSource interface {
	Lookup(ctx context.Context, id string) (*domain.SavedSearchList, error)
}

// Engine runs customer searches: full-text candidates from the search index,
// re-filtered in process by a saved search list.
type Engine struct {
	index   searchindex.Index
	lists   ListSource
	metrics *metrics.Metrics
}

// NewEngine creates a search engine
func NewEngine(index searchindex.Index, lists ListSource) *Engine {
	return &Engine{index: index, lists: lists}
}

// WithMetrics records search latency on m.
func (e *Engine) WithMetrics(m *metrics.Metrics) *Engine {
	e.metrics = m
	return e
}

// SearchRequest is a customer search. ListID is optional.
type SearchRequest struct {
	Query       string
	ListID      string
	Page        int
	HitsPerPage int
}

// MaxFilterCandidates caps how many full-text hits a list search evaluates.
// It matches the largest page the hosted index serves.
const MaxFilterCandidates = 1000

// SearchResult is one page of hits. Without a list the counts are the
// index's. With a list, NbHits and NbPages count the filtered set,
// FilteredOut is the number of candidates the list removed and Exhaustive
// is false when more than MaxFilterCandidates hits matched the text.
type SearchResult struct {
	Hits             []searchindex.Record    `json:"hits"`
	NbHits           int                     `json:"nbHits"`
	Page             int                     `json:"page"`
	NbPages          int                     `json:"nbPages"`
	FilteredOut      int                     `json:"filteredOut"`
	Exhaustive       bool                    `json:"exhaustive"`
	ProcessingTimeMS int                     `json:"processingTimeMS"`
	List             *domain.SavedSearchList `json:"list,omitempty"`
}

// Search executes a request. An unknown ListID returns ErrListNotFound.
func (e *Engine) Search(ctx context.Context, req SearchRequest) (*SearchResult, error) {
	startTime := time.Now()
	defer func() { e.metrics.ObserveSearch(time.Since(startTime)) }()

	var list *domain.SavedSearchList
	if req.ListID != "" {
		var err error
		list, err = e.resolveList(ctx, req.ListID)
		if err != nil {
			return nil, err
		}
	}

	if list != nil {
		return e.filteredSearch(ctx, req, list)
	}

	res, err := e.index.Search(ctx, searchindex.Query{
		Text:        req.Query,
		Page:        req.Page,
		HitsPerPage: req.HitsPerPage,
	})
	if err != nil {
		return nil, fmt.Errorf("index search: %w", err)
	}
	out := &SearchResult{
		Hits:             res.Hits,
		NbHits:           res.NbHits,
		Page:             res.Page,
		NbPages:          res.NbPages,
		Exhaustive:       true,
		ProcessingTimeMS: res.ProcessingTimeMS,
	}
	if out.Hits == nil {
		out.Hits = []searchindex.Record{}
	}
	return out, nil
}

// filteredSearch fetches up to MaxFilterCandidates full-text hits, keeps
// those the list matches and paginates the kept set, so a page is never
// empty while later candidates still match.
func (e *Engine) filteredSearch(ctx context.Context, req SearchRequest, list *domain.SavedSearchList) (*SearchResult, error) {
	res, err := e.index.Search(ctx, searchindex.Query{
		Text:        req.Query,
		HitsPerPage: MaxFilterCandidates,
	})
	if err != nil {
		return nil, fmt.Errorf("index search: %w", err)
	}

	kept := make([]searchindex.Record, 0, len(res.Hits))
	for _, hit := range res.Hits {
		if Evaluate(hit.Customer(), list.ConditionGroups) {
			kept = append(kept, hit)
		}
	}

	hitsPerPage := req.HitsPerPage
	if hitsPerPage <= 0 {
		hitsPerPage = searchindex.DefaultHitsPerPage
	}
	page := max(req.Page, 0)
	start := min(page*hitsPerPage, len(kept))
	end := min(start+hitsPerPage, len(kept))

	return &SearchResult{
		Hits:             kept[start:end],
		NbHits:           len(kept),
		Page:             page,
		NbPages:          (len(kept) + hitsPerPage - 1) / hitsPerPage,
		FilteredOut:      len(res.Hits) - len(kept),
		Exhaustive:       res.NbHits <= len(res.Hits),
		ProcessingTimeMS: res.ProcessingTimeMS,
		List:             list,
	}, nil
}

func (e *Engine) resolveList(ctx context.Context, id string) (*domain.SavedSearchList, error) {
	if l, ok := SystemList(id); ok {
		return &l, nil
	}
	if e.lists == nil {
		return nil, ErrListNotFound
	}
	l, err := e.lists.Lookup(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get search list: %w", err)
	}
	if l == nil {
		return nil, ErrListNotFound
	}
	return l, nil
}

// ==========================================
// VALIDATION
// ==========================================

// ValidationIssue describes a condition the evaluator will treat as
// fail-open or that can never match.
type ValidationIssue struct {
	GroupID     string `json:"groupId"`
	ConditionID string `json:"conditionId"`
	Message     string `json:"message"`
}

// ValidateGroups reports problems with a list's conditions. The result is
// advisory; evaluation never fails on these.
func ValidateGroups(groups []domain.FilterConditionGroup) []ValidationIssue {
	var issues []ValidationIssue
	for _, g := range groups {
		for _, cond := range g.Conditions {
			for _, msg := range validateCondition(cond) {
				issues = append(issues, ValidationIssue{GroupID: g.ID, ConditionID: cond.ID, Message: msg})
			}
		}
	}
	return issues
}

func validateCondition(cond domain.FilterCondition) []string {
	def, ok := lookupField(cond.Field)
	if !ok {
		return []string{fmt.Sprintf("unknown field: %s", cond.Field)}
	}
	meta, ok := getOperatorMeta(cond.Operator)
	if !ok {
		return []string{fmt.Sprintf("unknown operator: %s", cond.Operator)}
	}
	if !operatorApplies(meta, def.Type) {
		return []string{fmt.Sprintf("operator %s is not valid for %s field %s", cond.Operator, def.Type, cond.Field)}
	}

	var msgs []string
	if meta.RequiresValue && cond.Value == "" {
		msgs = append(msgs, fmt.Sprintf("operator %s requires a value for field %s", cond.Operator, cond.Field))
	}
	if meta.RequiresSecondary && cond.Value2 == "" {
		msgs = append(msgs, fmt.Sprintf("operator %s requires a second value for field %s", cond.Operator, cond.Field))
	}
	if def.Type == domain.FieldTypeDate && meta.RequiresValue {
		if _, _, ok := parseDate(cond.Value); cond.Value != "" && !ok {
			msgs = append(msgs, fmt.Sprintf("invalid date %q for field %s", cond.Value, cond.Field))
		}
		if _, _, ok := parseDate(cond.Value2); cond.Value2 != "" && !ok {
			msgs = append(msgs, fmt.Sprintf("invalid date %q for field %s", cond.Value2, cond.Field))
		}
	}
	return msgs
}
