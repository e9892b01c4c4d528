package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ignite/memorial-crm/internal/docstore"
)

// DocumentStore implements docstore.Store on a single JSONB table:
//
//	documents(collection text, id text, data jsonb, updated_at timestamptz,
//	          PRIMARY KEY (collection, id))
//
// Merge writes use jsonb concatenation, which replaces top-level keys like
// docstore.Merge does.
type DocumentStore struct {
	db  *sql.DB
	now func() time.Time
}

// NewDocumentStore creates a Postgres-backed document store.
func NewDocumentStore(db *sql.DB) *DocumentStore {
	return &DocumentStore{db: db, now: func() time.Time { return time.Now().UTC() }}
}

const (
	upsertReplace = `
		INSERT INTO documents (collection, id, data, updated_at)
		VALUES ($1, $2, $3::jsonb, NOW())
		ON CONFLICT (collection, id) DO UPDATE SET data = EXCLUDED.data, updated_at = NOW()`
	upsertMerge = `
		INSERT INTO documents (collection, id, data, updated_at)
		VALUES ($1, $2, $3::jsonb, NOW())
		ON CONFLICT (collection, id) DO UPDATE SET data = documents.data || EXCLUDED.data, updated_at = NOW()`
)

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func (s *DocumentStore) Create(ctx context.Context, collection string, data map[string]any) (string, error) {
	id := uuid.New().String()
	body, err := s.encode(data)
	if err != nil {
		return "", err
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO documents (collection, id, data, updated_at) VALUES ($1, $2, $3::jsonb, NOW())`,
		collection, id, body)
	if err != nil {
		return "", fmt.Errorf("create document: %w", err)
	}
	return id, nil
}

func (s *DocumentStore) Set(ctx context.Context, collection, id string, data map[string]any, merge bool) error {
	if err := s.set(ctx, s.db, collection, id, data, merge); err != nil {
		return fmt.Errorf("set document: %w", err)
	}
	return nil
}

func (s *DocumentStore) set(ctx context.Context, ex execer, collection, id string, data map[string]any, merge bool) error {
	body, err := s.encode(data)
	if err != nil {
		return err
	}
	query := upsertReplace
	if merge {
		query = upsertMerge
	}
	_, err = ex.ExecContext(ctx, query, collection, id, body)
	return err
}

func (s *DocumentStore) Get(ctx context.Context, collection, id string) (docstore.Document, error) {
	var body []byte
	err := s.db.QueryRowContext(ctx,
		`SELECT data FROM documents WHERE collection = $1 AND id = $2`,
		collection, id,
	).Scan(&body)
	if errors.Is(err, sql.ErrNoRows) {
		return docstore.Document{}, docstore.ErrNotFound
	}
	if err != nil {
		return docstore.Document{}, fmt.Errorf("get document: %w", err)
	}
	data, err := decode(body)
	if err != nil {
		return docstore.Document{}, err
	}
	return docstore.Document{ID: id, Data: data}, nil
}

func (s *DocumentStore) Delete(ctx context.Context, collection, id string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM documents WHERE collection = $1 AND id = $2`, collection, id)
	if err != nil {
		return fmt.Errorf("delete document: %w", err)
	}
	return nil
}

func (s *DocumentStore) BatchSet(ctx context.Context, ops []docstore.WriteOp) error {
	if err := docstore.ValidateBatch(ops); err != nil {
		return err
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin batch: %w", err)
	}
	defer tx.Rollback()

	for _, op := range ops {
		if err := s.set(ctx, tx, op.Collection, op.ID, op.Data, op.Merge); err != nil {
			return fmt.Errorf("batch write %s/%s: %w", op.Collection, op.ID, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit batch: %w", err)
	}
	return nil
}

func (s *DocumentStore) List(ctx context.Context, collection string, q docstore.Query) (docstore.Page, error) {
	if q.StartAfter != "" && q.OrderBy != "" {
		return docstore.Page{}, fmt.Errorf("%w: cursor requires id ordering", docstore.ErrInvalidQuery)
	}

	where, args, err := whereClause(collection, q.Filters)
	if err != nil {
		return docstore.Page{}, err
	}
	if q.StartAfter != "" {
		args = append(args, q.StartAfter)
		where += fmt.Sprintf(" AND id > $%d", len(args))
	}

	order := "id"
	if q.OrderBy != "" {
		args = append(args, q.OrderBy)
		dir := "ASC"
		if q.Desc {
			dir = "DESC"
		}
		order = fmt.Sprintf("data->>$%d %s NULLS FIRST, id", len(args), dir)
	}

	query := "SELECT id, data FROM documents WHERE " + where + " ORDER BY " + order
	if q.Limit > 0 {
		args = append(args, q.Limit+1)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return docstore.Page{}, fmt.Errorf("list documents: %w", err)
	}
	defer rows.Close()

	var page docstore.Page
	for rows.Next() {
		var (
			id   string
			body []byte
		)
		if err := rows.Scan(&id, &body); err != nil {
			return docstore.Page{}, fmt.Errorf("scan document: %w", err)
		}
		data, err := decode(body)
		if err != nil {
			return docstore.Page{}, err
		}
		page.Docs = append(page.Docs, docstore.Document{ID: id, Data: data})
	}
	if err := rows.Err(); err != nil {
		return docstore.Page{}, fmt.Errorf("list documents: %w", err)
	}

	if q.Limit > 0 && len(page.Docs) > q.Limit {
		page.Docs = page.Docs[:q.Limit]
		page.Next = page.Docs[q.Limit-1].ID
	}
	return page, nil
}

func (s *DocumentStore) Count(ctx context.Context, collection string, filters []docstore.Filter) (int, error) {
	where, args, err := whereClause(collection, filters)
	if err != nil {
		return 0, err
	}
	var n int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM documents WHERE "+where, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("count documents: %w", err)
	}
	return n, nil
}

// whereClause turns equality filters into a single jsonb containment test.
func whereClause(collection string, filters []docstore.Filter) (string, []any, error) {
	args := []any{collection}
	clause := "collection = $1"
	if len(filters) == 0 {
		return clause, args, nil
	}
	match := make(map[string]any, len(filters))
	for _, f := range filters {
		match[f.Field] = docstore.PrepareValue(f.Value)
	}
	body, err := json.Marshal(match)
	if err != nil {
		return "", nil, fmt.Errorf("encode filters: %w", err)
	}
	args = append(args, string(body))
	return clause + " AND data @> $2::jsonb", args, nil
}

// encode resolves server timestamps and serializes data for a jsonb column.
func (s *DocumentStore) encode(data map[string]any) (string, error) {
	body, err := json.Marshal(docstore.Prepare(data, s.now()))
	if err != nil {
		return "", fmt.Errorf("encode document: %w", err)
	}
	return string(body), nil
}

func decode(body []byte) (map[string]any, error) {
	data := map[string]any{}
	if len(strings.TrimSpace(string(body))) == 0 {
		return data, nil
	}
	if err := json.Unmarshal(body, &data); err != nil {
		return nil, fmt.Errorf("decode document: %w", err)
	}
	return data, nil
}
