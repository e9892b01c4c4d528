package postgres

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ignite/memorial-crm/internal/docstore"
)

func newMockStore(t *testing.T) (*DocumentStore, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	s := NewDocumentStore(db)
	s.now = func() time.Time { return time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC) }
	return s, mock
}

func TestDocumentStore_SetMergeResolvesTimestamps(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectExec(regexp.QuoteMeta("data = documents.data || EXCLUDED.data")).
		WithArgs("Customers", "doc-1", `{"name":"山田","updatedAt":"2025-03-01T12:00:00.000000Z"}`).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := s.Set(context.Background(), "Customers", "doc-1", map[string]any{
		"name":      "山田",
		"updatedAt": docstore.ServerTimestamp,
	}, true)
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDocumentStore_SetReplace(t *testing.T) {
	s, mock := newMockStore(t)
	mock.ExpectExec(regexp.QuoteMeta("SET data = EXCLUDED.data")).
		WithArgs("c", "1", `{"a":1}`).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, s.Set(context.Background(), "c", "1", map[string]any{"a": 1}, false))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDocumentStore_Get(t *testing.T) {
	s, mock := newMockStore(t)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT data FROM documents WHERE collection = $1 AND id = $2")).
		WithArgs("Customers", "doc-1").
		WillReturnRows(sqlmock.NewRows([]string{"data"}).AddRow([]byte(`{"name":"山田","hasDeals":true}`)))

	doc, err := s.Get(context.Background(), "Customers", "doc-1")
	require.NoError(t, err)
	assert.Equal(t, "doc-1", doc.ID)
	assert.Equal(t, "山田", doc.Data["name"])
	assert.Equal(t, true, doc.Data["hasDeals"])
}

func TestDocumentStore_GetNotFound(t *testing.T) {
	s, mock := newMockStore(t)
	mock.ExpectQuery("SELECT data FROM documents").WillReturnError(sql.ErrNoRows)

	_, err := s.Get(context.Background(), "Customers", "missing")
	assert.ErrorIs(t, err, docstore.ErrNotFound)
}

func TestDocumentStore_BatchSetIsTransactional(t *testing.T) {
	s, mock := newMockStore(t)
	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO documents").WithArgs("c", "1", `{"addressCity":"渋谷区"}`).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO documents").WithArgs("c", "2", `{"addressCity":"港区"}`).WillReturnError(sql.ErrConnDone)
	mock.ExpectRollback()

	err := s.BatchSet(context.Background(), []docstore.WriteOp{
		{Collection: "c", ID: "1", Data: map[string]any{"addressCity": "渋谷区"}, Merge: true},
		{Collection: "c", ID: "2", Data: map[string]any{"addressCity": "港区"}, Merge: true},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "c/2")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDocumentStore_BatchSetTooLarge(t *testing.T) {
	s, _ := newMockStore(t)
	ops := make([]docstore.WriteOp, docstore.MaxBatchOps+1)
	assert.ErrorIs(t, s.BatchSet(context.Background(), ops), docstore.ErrBatchTooLarge)
}

func TestDocumentStore_ListPagesByID(t *testing.T) {
	s, mock := newMockStore(t)
	mock.ExpectQuery(regexp.QuoteMeta(
		"SELECT id, data FROM documents WHERE collection = $1 AND data @> $2::jsonb AND id > $3 ORDER BY id LIMIT $4")).
		WithArgs("Customers", `{"status":"active"}`, "doc-1", 3).
		WillReturnRows(sqlmock.NewRows([]string{"id", "data"}).
			AddRow("doc-2", []byte(`{}`)).
			AddRow("doc-3", []byte(`{}`)).
			AddRow("doc-4", []byte(`{}`)))

	page, err := s.List(context.Background(), "Customers", docstore.Query{
		Filters:    []docstore.Filter{{Field: "status", Value: "active"}},
		Limit:      2,
		StartAfter: "doc-1",
	})
	require.NoError(t, err)
	require.Len(t, page.Docs, 2)
	assert.Equal(t, "doc-3", page.Next)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDocumentStore_ListOrdered(t *testing.T) {
	s, mock := newMockStore(t)
	mock.ExpectQuery(regexp.QuoteMeta("ORDER BY data->>$2 DESC NULLS FIRST, id")).
		WithArgs("CustomerSearchLists", "updatedAt").
		WillReturnRows(sqlmock.NewRows([]string{"id", "data"}).AddRow("l1", []byte(`{"name":"a"}`)))

	page, err := s.List(context.Background(), "CustomerSearchLists", docstore.Query{OrderBy: "updatedAt", Desc: true})
	require.NoError(t, err)
	require.Len(t, page.Docs, 1)
	assert.Empty(t, page.Next)
}

func TestDocumentStore_Count(t *testing.T) {
	s, mock := newMockStore(t)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM documents WHERE collection = $1")).
		WithArgs("Customers").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(42))

	n, err := s.Count(context.Background(), "Customers", nil)
	require.NoError(t, err)
	assert.Equal(t, 42, n)
}
