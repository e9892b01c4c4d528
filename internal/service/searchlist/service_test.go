package searchlist

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ignite/memorial-crm/internal/docstore"
	"github.com/ignite/memorial-crm/internal/domain"
	"github.com/ignite/memorial-crm/internal/segmentation"
)

// steppingClock advances one minute per call so updatedAt ordering is
// deterministic.
type steppingClock struct{ t time.Time }

func (c *steppingClock) now() time.Time {
	c.t = c.t.Add(time.Minute)
	return c.t
}

func newTestService() *Service {
	clock := &steppingClock{t: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)}
	return NewService(docstore.NewMemoryStore().WithClock(clock.now))
}

func branchGroups(branch string) []domain.FilterConditionGroup {
	return []domain.FilterConditionGroup{{
		Conditions: []domain.FilterCondition{{Field: domain.FieldBranch, Operator: domain.OpEquals, Value: branch}},
	}}
}

func TestCreateAndGet(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()

	id, err := svc.Create(ctx, " 渋谷拠点 ", branchGroups("渋谷"), CreateOptions{Description: "渋谷の顧客", CreatedBy: "sato"})
	require.NoError(t, err)

	l, err := svc.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, id, l.ID)
	assert.Equal(t, "渋谷拠点", l.Name)
	assert.Equal(t, "渋谷の顧客", l.Description)
	assert.Equal(t, "sato", l.CreatedBy)
	assert.False(t, l.IsSystem)
	assert.False(t, l.CreatedAt.IsZero())

	require.Len(t, l.ConditionGroups, 1)
	g := l.ConditionGroups[0]
	assert.NotEmpty(t, g.ID, "group id assigned")
	require.Len(t, g.Conditions, 1)
	assert.NotEmpty(t, g.Conditions[0].ID, "condition id assigned")
	assert.Equal(t, domain.FieldBranch, g.Conditions[0].Field)
	assert.Equal(t, "渋谷", g.Conditions[0].Value)
}

func TestCreate_RequiresName(t *testing.T) {
	_, err := newTestService().Create(context.Background(), "  ", nil, CreateOptions{})
	assert.ErrorIs(t, err, ErrNameRequired)
}

func TestList_SystemFirstThenUpdatedDesc(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()

	first, err := svc.Create(ctx, "first", nil, CreateOptions{})
	require.NoError(t, err)
	second, err := svc.Create(ctx, "second", nil, CreateOptions{})
	require.NoError(t, err)

	lists, err := svc.List(ctx)
	require.NoError(t, err)
	require.Len(t, lists, 5)
	assert.Equal(t, segmentation.SystemListHasDeals, lists[0].ID)
	assert.Equal(t, segmentation.SystemListTreeBurialDeals, lists[1].ID)
	assert.Equal(t, segmentation.SystemListHasBurialPersons, lists[2].ID)
	assert.Equal(t, second, lists[3].ID)
	assert.Equal(t, first, lists[4].ID)

	name := "first (renamed)"
	require.NoError(t, svc.Update(ctx, first, Patch{Name: &name}))

	lists, err = svc.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, first, lists[3].ID, "updated list moves to the top of user lists")
	assert.Equal(t, "first (renamed)", lists[3].Name)
}

func TestUpdate_PartialKeepsOtherFields(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()
	id, err := svc.Create(ctx, "list", branchGroups("渋谷"), CreateOptions{Description: "desc"})
	require.NoError(t, err)

	groups := branchGroups("新宿")
	require.NoError(t, svc.Update(ctx, id, Patch{ConditionGroups: &groups}))

	l, err := svc.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "list", l.Name)
	assert.Equal(t, "desc", l.Description)
	assert.Equal(t, "新宿", l.ConditionGroups[0].Conditions[0].Value)
	assert.True(t, l.UpdatedAt.After(l.CreatedAt))
}

func TestSystemListsAreReadOnly(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()
	name := "x"

	assert.ErrorIs(t, svc.Update(ctx, segmentation.SystemListHasDeals, Patch{Name: &name}), ErrSystemList)
	assert.ErrorIs(t, svc.Delete(ctx, segmentation.SystemListTreeBurialDeals), ErrSystemList)

	l, err := svc.Get(ctx, segmentation.SystemListTreeBurialDeals)
	require.NoError(t, err)
	assert.True(t, l.IsSystem)
	assert.Equal(t, "樹木墓商談あり", l.Name)
}

func TestUnknownIDs(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()
	name := "x"

	_, err := svc.Get(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, svc.Update(ctx, "missing", Patch{Name: &name}), ErrNotFound)
	assert.ErrorIs(t, svc.Delete(ctx, "missing"), ErrNotFound)

	l, err := svc.Lookup(ctx, "missing")
	assert.NoError(t, err)
	assert.Nil(t, l)
}

func TestDelete(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()
	id, err := svc.Create(ctx, "temp", nil, CreateOptions{})
	require.NoError(t, err)

	require.NoError(t, svc.Delete(ctx, id))
	_, err = svc.Get(ctx, id)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestLegacyListDocumentsDecodeTolerantly(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()

	validID, err := svc.Create(ctx, "渋谷拠点", branchGroups("渋谷"), CreateOptions{})
	require.NoError(t, err)
	require.NoError(t, svc.store.Set(ctx, domain.CollectionSearchLists, "legacy", map[string]any{
		"name": "旧リスト",
		"conditionGroups": []any{
			map[string]any{"id": "g1", "conditions": []any{
				map[string]any{"id": float64(7), "field": "branch", "operator": "equals", "value": float64(5)},
				map[string]any{"field": "hasDeals", "operator": "isTrue", "value": true},
				"broken",
			}},
			"broken group",
		},
		"createdAt": map[string]any{"_seconds": float64(1700000000), "_nanoseconds": float64(0)},
		"updatedAt": "2023-11-14T22:13:20Z",
	}, false))

	lists, err := svc.List(ctx)
	require.NoError(t, err)
	require.Len(t, lists, len(segmentation.SystemLists())+2)
	var ids []string
	for _, l := range lists {
		ids = append(ids, l.ID)
	}
	assert.Contains(t, ids, validID)
	assert.Contains(t, ids, "legacy")

	l, err := svc.Get(ctx, "legacy")
	require.NoError(t, err)
	assert.Equal(t, "旧リスト", l.Name)
	assert.Equal(t, time.Unix(1700000000, 0).UTC(), l.CreatedAt)
	assert.Equal(t, time.Date(2023, 11, 14, 22, 13, 20, 0, time.UTC), l.UpdatedAt)

	require.Len(t, l.ConditionGroups, 2)
	conds := l.ConditionGroups[0].Conditions
	require.Len(t, conds, 3)
	assert.Equal(t, "7", conds[0].ID)
	assert.Equal(t, domain.FieldBranch, conds[0].Field)
	assert.Equal(t, "5", conds[0].Value)
	assert.Equal(t, domain.FieldHasDeals, conds[1].Field)
	assert.Equal(t, "true", conds[1].Value)
	assert.Equal(t, domain.FilterCondition{}, conds[2], "non-object condition decodes empty")
	assert.Empty(t, l.ConditionGroups[1].Conditions, "non-object group decodes empty")

	// An empty condition matches, so the list still evaluates.
	assert.True(t, segmentation.Evaluate(domain.Customer{Branch: "5", HasDeals: true}, l.ConditionGroups))
}
