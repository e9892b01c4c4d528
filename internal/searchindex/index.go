// Package searchindex projects canonical customers into search index records
// and provides the search index backends: a Redis-backed index, a client for
// an Algolia-compatible hosted service and an in-memory index.
package searchindex

import (
	"context"
	"errors"
	"sort"
	"strings"

	"github.com/ignite/memorial-crm/internal/pkg/kana"
)

var ErrMissingObjectID = errors.New("record has no objectID")

// Index is the search index contract used by the synchronizer and the
// search engine. Saving an existing objectID replaces the object.
type Index interface {
	SaveObjects(ctx context.Context, records []Record) error
	DeleteObject(ctx context.Context, objectID string) error
	Search(ctx context.Context, q Query) (Result, error)
}

// Configurable is implemented by indexes that accept settings.
type Configurable interface {
	SetSettings(ctx context.Context, s Settings) error
}

// Settings mirrors the hosted service's index settings.
type Settings struct {
	SearchableAttributes  []string `json:"searchableAttributes"`
	AttributesToRetrieve  []string `json:"attributesToRetrieve,omitempty"`
	AttributesToHighlight []string `json:"attributesToHighlight,omitempty"`
	AttributesForFaceting []string `json:"attributesForFaceting,omitempty"`
	MinWordSizeFor1Typo   int      `json:"minWordSizefor1Typo,omitempty"`
	MinWordSizeFor2Typos  int      `json:"minWordSizefor2Typos,omitempty"`
}

// DefaultSettings returns the customer index configuration. Searchable
// attributes are listed in ranking order.
func DefaultSettings() Settings {
	return Settings{
		SearchableAttributes: []string{
			"trackingNo",
			"name",
			"searchName",
			"nameKana",
			"searchNameKana",
			"phone",
			"phoneDisplay",
			"email",
			"address",
			"memo",
		},
		AttributesToRetrieve:  []string{"*"},
		AttributesToHighlight: []string{"name", "nameKana", "address"},
		AttributesForFaceting: []string{
			"branch",
			"customerCategory",
			"assignedTo",
			"addressPrefecture",
			"addressCity",
			"hasDeals",
			"hasTreeBurialDeals",
			"hasBurialPersons",
		},
		MinWordSizeFor1Typo:  4,
		MinWordSizeFor2Typos: 8,
	}
}

const DefaultHitsPerPage = 20

// Query is a full-text search request. Page is zero-based.
type Query struct {
	Text        string `json:"query"`
	Page        int    `json:"page"`
	HitsPerPage int    `json:"hitsPerPage"`
}

// Result is one page of ranked hits.
type Result struct {
	Hits             []Record `json:"hits"`
	NbHits           int      `json:"nbHits"`
	Page             int      `json:"page"`
	NbPages          int      `json:"nbPages"`
	HitsPerPage      int      `json:"hitsPerPage"`
	ProcessingTimeMS int      `json:"processingTimeMS"`
}

func (q Query) normalized() Query {
	if q.HitsPerPage <= 0 {
		q.HitsPerPage = DefaultHitsPerPage
	}
	if q.Page < 0 {
		q.Page = 0
	}
	return q
}

// terms splits a query into folded search terms.
func terms(text string) []string {
	return strings.Fields(kana.Fold(text))
}

// rank scores a record against the query terms. A record matches when every
// term is a substring of at least one searchable attribute; the score is the
// sum of the positions of the best attribute for each term, lower is better.
func rank(r Record, ts []string, attrs []string) (int, bool) {
	if len(ts) == 0 {
		return 0, true
	}
	folded := make([]string, len(attrs))
	for i, a := range attrs {
		folded[i] = kana.Fold(r.attribute(a))
	}
	score := 0
	for _, t := range ts {
		best := -1
		for i, v := range folded {
			if strings.Contains(v, t) {
				best = i
				break
			}
		}
		if best < 0 {
			return 0, false
		}
		score += best
	}
	return score, true
}

type scored struct {
	rec   Record
	score int
}

// paginate orders the matches and cuts out the requested page.
func paginate(matches []scored, q Query) Result {
	sort.SliceStable(matches, func(i, j int) bool {
		if matches[i].score != matches[j].score {
			return matches[i].score < matches[j].score
		}
		return matches[i].rec.ObjectID < matches[j].rec.ObjectID
	})

	res := Result{
		NbHits:      len(matches),
		Page:        q.Page,
		HitsPerPage: q.HitsPerPage,
		Hits:        []Record{},
	}
	res.NbPages = (len(matches) + q.HitsPerPage - 1) / q.HitsPerPage
	start := q.Page * q.HitsPerPage
	if start >= len(matches) {
		return res
	}
	end := start + q.HitsPerPage
	if end > len(matches) {
		end = len(matches)
	}
	for _, m := range matches[start:end] {
		res.Hits = append(res.Hits, m.rec)
	}
	return res
}
