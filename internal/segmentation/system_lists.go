package segmentation

import (
	"github.com/ignite/memorial-crm/internal/domain"
)

// Reserved ids of the built-in lists. They are never persisted and cannot be
// updated or deleted.
const (
	SystemListHasDeals         = "system-has-deals"
	SystemListTreeBurialDeals  = "system-tree-burial-deals"
	SystemListHasBurialPersons = "system-burial-persons"
)

type systemListSpec struct {
	id    string
	name  string
	field domain.FilterField
}

var systemListSpecs = []systemListSpec{
	{SystemListHasDeals, "商談あり", domain.FieldHasDeals},
	{SystemListTreeBurialDeals, "樹木墓商談あり", domain.FieldHasTreeBurialDeals},
	{SystemListHasBurialPersons, "埋葬者あり", domain.FieldHasBurialPersons},
}

// SystemLists returns the built-in lists in their fixed display order. Each
// call builds fresh values so callers may modify the result.
func SystemLists() []domain.SavedSearchList {
	out := make([]domain.SavedSearchList, 0, len(systemListSpecs))
	for _, s := range systemListSpecs {
		out = append(out, buildSystemList(s))
	}
	return out
}

// SystemList returns the built-in list with the given id.
func SystemList(id string) (domain.SavedSearchList, bool) {
	for _, s := range systemListSpecs {
		if s.id == id {
			return buildSystemList(s), true
		}
	}
	return domain.SavedSearchList{}, false
}

// IsSystemListID reports whether id is reserved for a built-in list.
func IsSystemListID(id string) bool {
	_, ok := SystemList(id)
	return ok
}

func buildSystemList(s systemListSpec) domain.SavedSearchList {
	return domain.SavedSearchList{
		ID:       s.id,
		Name:     s.name,
		IsSystem: true,
		ConditionGroups: []domain.FilterConditionGroup{{
			ID: s.id + "-group",
			Conditions: []domain.FilterCondition{{
				ID:       s.id + "-condition",
				Field:    s.field,
				Operator: domain.OpIsTrue,
			}},
		}},
	}
}
