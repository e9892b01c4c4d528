package segmentation

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ignite/memorial-crm/internal/domain"
	"github.com/ignite/memorial-crm/internal/searchindex"
)

type stubLists map[string]domain.SavedSearchList

func (s stubLists) Lookup(_ context.Context, id string) (*domain.SavedSearchList, error) {
	l, ok := s[id]
	if !ok {
		return nil, nil
	}
	return &l, nil
}

func newTestEngine(t *testing.T) *Engine {
	t.Helper()
	idx := searchindex.NewMemoryIndex()
	require.NoError(t, idx.SaveObjects(context.Background(), []searchindex.Record{
		searchindex.Project(domain.Customer{TrackingNo: "T-1", Name: "山田 太郎", HasTreeBurialDeals: true}, "k1"),
		searchindex.Project(domain.Customer{TrackingNo: "T-2", Name: "山田 花子", Branch: "渋谷"}, "k2"),
		searchindex.Project(domain.Customer{TrackingNo: "T-3", Name: "佐藤 一郎", Branch: "渋谷"}, "k3"),
	}))
	return NewEngine(idx, newTestEngineLists())
}

func newTestEngineLists() stubLists {
	return stubLists{
		"shibuya": {ID: "shibuya", Name: "渋谷", ConditionGroups: []domain.FilterConditionGroup{
			group(cond(domain.FieldBranch, domain.OpEquals, "渋谷")),
		}},
	}
}

func TestEngine_SearchWithoutList(t *testing.T) {
	res, err := newTestEngine(t).Search(context.Background(), SearchRequest{Query: "山田"})
	require.NoError(t, err)
	assert.Equal(t, 2, res.NbHits)
	assert.Len(t, res.Hits, 2)
	assert.Zero(t, res.FilteredOut)
	assert.Nil(t, res.List)
}

func TestEngine_SearchWithUserList(t *testing.T) {
	res, err := newTestEngine(t).Search(context.Background(), SearchRequest{Query: "山田", ListID: "shibuya"})
	require.NoError(t, err)
	require.Len(t, res.Hits, 1)
	assert.Equal(t, "T-2", res.Hits[0].ObjectID)
	assert.Equal(t, 1, res.FilteredOut)
	require.NotNil(t, res.List)
	assert.Equal(t, "渋谷", res.List.Name)
}

func TestEngine_SearchWithSystemList(t *testing.T) {
	res, err := newTestEngine(t).Search(context.Background(), SearchRequest{ListID: SystemListTreeBurialDeals})
	require.NoError(t, err)
	require.Len(t, res.Hits, 1)
	assert.Equal(t, "T-1", res.Hits[0].ObjectID)
	assert.Equal(t, 2, res.FilteredOut)
}

func TestEngine_ListFilterPaginatesFilteredSet(t *testing.T) {
	idx := searchindex.NewMemoryIndex()
	var records []searchindex.Record
	for i := 0; i < 30; i++ {
		c := domain.Customer{TrackingNo: fmt.Sprintf("T-%02d", i), Name: "顧客", Branch: "新宿"}
		if i%3 == 0 {
			c.Branch = "渋谷"
		}
		records = append(records, searchindex.Project(c, c.TrackingNo))
	}
	require.NoError(t, idx.SaveObjects(context.Background(), records))
	engine := NewEngine(idx, newTestEngineLists())

	res, err := engine.Search(context.Background(), SearchRequest{Query: "顧客", ListID: "shibuya", Page: 1, HitsPerPage: 4})
	require.NoError(t, err)
	require.Len(t, res.Hits, 4, "a later page is filled from candidates beyond the first index page")
	for _, h := range res.Hits {
		assert.Equal(t, "渋谷", h.Branch)
	}
	assert.Equal(t, 10, res.NbHits)
	assert.Equal(t, 3, res.NbPages)
	assert.Equal(t, 1, res.Page)
	assert.Equal(t, 20, res.FilteredOut)
	assert.True(t, res.Exhaustive)

	last, err := engine.Search(context.Background(), SearchRequest{Query: "顧客", ListID: "shibuya", Page: 2, HitsPerPage: 4})
	require.NoError(t, err)
	assert.Len(t, last.Hits, 2)

	past, err := engine.Search(context.Background(), SearchRequest{Query: "顧客", ListID: "shibuya", Page: 9, HitsPerPage: 4})
	require.NoError(t, err)
	assert.Empty(t, past.Hits)
	assert.Equal(t, 10, past.NbHits)
}

func TestEngine_UnknownList(t *testing.T) {
	_, err := newTestEngine(t).Search(context.Background(), SearchRequest{ListID: "nope"})
	assert.ErrorIs(t, err, ErrListNotFound)
}

func TestSystemLists_Order(t *testing.T) {
	lists := SystemLists()
	require.Len(t, lists, 3)
	assert.Equal(t, []string{"商談あり", "樹木墓商談あり", "埋葬者あり"},
		[]string{lists[0].Name, lists[1].Name, lists[2].Name})
	for _, l := range lists {
		assert.True(t, l.IsSystem)
		assert.True(t, IsSystemListID(l.ID))
	}
	assert.False(t, IsSystemListID("user-list"))
}

func TestValidateGroups(t *testing.T) {
	groups := []domain.FilterConditionGroup{{
		ID: "g1",
		Conditions: []domain.FilterCondition{
			{ID: "ok", Field: domain.FieldName, Operator: domain.OpContains, Value: "x"},
			{ID: "unknown-field", Field: "color", Operator: domain.OpEquals, Value: "x"},
			{ID: "bad-op", Field: domain.FieldHasDeals, Operator: domain.OpContains, Value: "x"},
			{ID: "no-value", Field: domain.FieldName, Operator: domain.OpEquals},
			{ID: "no-value2", Field: domain.FieldCreatedAt, Operator: domain.OpBetween, Value: "2024-01-01"},
			{ID: "bad-date", Field: domain.FieldCreatedAt, Operator: domain.OpBefore, Value: "yesterday"},
		},
	}}

	issues := ValidateGroups(groups)
	ids := make([]string, 0, len(issues))
	for _, is := range issues {
		assert.Equal(t, "g1", is.GroupID)
		ids = append(ids, is.ConditionID)
	}
	assert.Equal(t, []string{"unknown-field", "bad-op", "no-value", "no-value2", "bad-date"}, ids)
}

func TestOperatorsForType(t *testing.T) {
	ops := func(ft domain.FieldType) []domain.FilterOperator {
		var out []domain.FilterOperator
		for _, m := range OperatorsForType(ft) {
			out = append(out, m.Operator)
		}
		return out
	}
	assert.Equal(t, []domain.FilterOperator{domain.OpEquals, domain.OpNotEquals, domain.OpIsEmpty, domain.OpIsNotEmpty},
		ops(domain.FieldTypeSelect))
	assert.Equal(t, []domain.FilterOperator{domain.OpIsTrue, domain.OpIsFalse}, ops(domain.FieldTypeBoolean))
	assert.ElementsMatch(t, []domain.FilterOperator{domain.OpEquals, domain.OpIsEmpty, domain.OpIsNotEmpty, domain.OpBefore, domain.OpAfter, domain.OpBetween},
		ops(domain.FieldTypeDate))
	assert.Len(t, FieldDefinitions(), 17)
}
