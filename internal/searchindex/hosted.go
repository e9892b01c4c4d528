package searchindex

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/ignite/memorial-crm/internal/pkg/httpretry"
	"github.com/ignite/memorial-crm/internal/pkg/kana"
)

// HostedConfig configures the Algolia-compatible REST client.
type HostedConfig struct {
	AppID     string
	APIKey    string
	IndexName string
	// BaseURL overrides https://<AppID>-dsn.algolia.net.
	BaseURL string
}

// HostedIndex talks to a hosted search service over its REST API. Requests
// go through httpretry so 429 and 5xx responses are retried with backoff.
type HostedIndex struct {
	cfg    HostedConfig
	base   string
	client httpretry.HTTPDoer
}

// NewHostedIndex creates a client. A nil doer uses a RetryClient over the
// default HTTP client.
func NewHostedIndex(cfg HostedConfig, doer httpretry.HTTPDoer) *HostedIndex {
	if doer == nil {
		doer = httpretry.NewRetryClient(nil, 3)
	}
	base := strings.TrimRight(cfg.BaseURL, "/")
	if base == "" {
		base = fmt.Sprintf("https://%s-dsn.algolia.net", cfg.AppID)
	}
	return &HostedIndex{cfg: cfg, base: base, client: doer}
}

type batchRequest struct {
	Requests []batchOp `json:"requests"`
}

type batchOp struct {
	Action string `json:"action"`
	Body   Record `json:"body"`
}

func (h *HostedIndex) SaveObjects(ctx context.Context, records []Record) error {
	if len(records) == 0 {
		return nil
	}
	req := batchRequest{Requests: make([]batchOp, len(records))}
	for i, r := range records {
		if r.ObjectID == "" {
			return ErrMissingObjectID
		}
		req.Requests[i] = batchOp{Action: "updateObject", Body: r}
	}
	return h.do(ctx, http.MethodPost, h.indexPath("batch"), req, nil)
}

func (h *HostedIndex) DeleteObject(ctx context.Context, objectID string) error {
	return h.do(ctx, http.MethodDelete, h.indexPath(url.PathEscape(objectID)), nil, nil)
}

type multiQueryRequest struct {
	Requests []multiQuery `json:"requests"`
}

type multiQuery struct {
	IndexName string `json:"indexName"`
	Params    string `json:"params"`
}

type multiQueryResponse struct {
	Results []Result `json:"results"`
}

// Search sends the query as typed. The hosted service does not fold kana and
// searchName/searchNameKana are stored in hiragana, so a query whose folded
// form differs is sent as a multi-query of both forms and the hits merged.
func (h *HostedIndex) Search(ctx context.Context, q Query) (Result, error) {
	q = q.normalized()
	folded := kana.Fold(q.Text)
	if folded == strings.ToLower(q.Text) {
		var res Result
		if err := h.do(ctx, http.MethodPost, h.indexPath("query"), q, &res); err != nil {
			return Result{}, err
		}
		if res.Hits == nil {
			res.Hits = []Record{}
		}
		return res, nil
	}

	alt := q
	alt.Text = folded
	req := multiQueryRequest{Requests: []multiQuery{
		{IndexName: h.cfg.IndexName, Params: q.params()},
		{IndexName: h.cfg.IndexName, Params: alt.params()},
	}}
	var resp multiQueryResponse
	if err := h.do(ctx, http.MethodPost, h.base+"/1/indexes/*/queries", req, &resp); err != nil {
		return Result{}, err
	}
	if len(resp.Results) != 2 {
		return Result{}, fmt.Errorf("multi-query: expected 2 results, got %d", len(resp.Results))
	}
	return mergeResults(resp.Results[0], resp.Results[1]), nil
}

func (q Query) params() string {
	v := url.Values{}
	v.Set("query", q.Text)
	v.Set("page", strconv.Itoa(q.Page))
	v.Set("hitsPerPage", strconv.Itoa(q.HitsPerPage))
	return v.Encode()
}

// mergeResults unions the same page of two script variants by objectID.
// As-typed hits keep their order ahead of folded ones. Overlap outside the
// page is unknown, so the counts are the larger of the two.
func mergeResults(a, b Result) Result {
	out := a
	out.Hits = make([]Record, 0, len(a.Hits)+len(b.Hits))
	seen := make(map[string]bool, len(a.Hits)+len(b.Hits))
	for _, hits := range [][]Record{a.Hits, b.Hits} {
		for _, r := range hits {
			if seen[r.ObjectID] {
				continue
			}
			seen[r.ObjectID] = true
			out.Hits = append(out.Hits, r)
		}
	}
	out.NbHits = max(a.NbHits, b.NbHits)
	out.NbPages = max(a.NbPages, b.NbPages)
	out.ProcessingTimeMS = max(a.ProcessingTimeMS, b.ProcessingTimeMS)
	return out
}

func (h *HostedIndex) SetSettings(ctx context.Context, s Settings) error {
	return h.do(ctx, http.MethodPut, h.indexPath("settings"), s, nil)
}

func (h *HostedIndex) indexPath(suffix string) string {
	return fmt.Sprintf("%s/1/indexes/%s/%s", h.base, url.PathEscape(h.cfg.IndexName), suffix)
}

// do sends a JSON request and decodes a JSON response into out when non-nil.
func (h *HostedIndex) do(ctx context.Context, method, endpoint string, in, out any) error {
	var body []byte
	if in != nil {
		var err error
		body, err = json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("X-Algolia-Application-Id", h.cfg.AppID)
	req.Header.Set("X-Algolia-API-Key", h.cfg.APIKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := h.client.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, req.URL.Path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("%s %s: status %d: %s", method, req.URL.Path, resp.StatusCode, strings.TrimSpace(string(msg)))
	}
	if out == nil {
		io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
