package searchlist

import (
	"encoding/json"

	"github.com/ignite/memorial-crm/internal/datanorm"
	"github.com/ignite/memorial-crm/internal/docstore"
	"github.com/ignite/memorial-crm/internal/domain"
)

// decodeList reads a stored list document. Lists written by older clients
// carry numeric or boolean condition values and map-shaped timestamps, so
// every field is coerced rather than strictly unmarshaled. A group or
// condition that is not an object decodes empty, which the evaluator treats
// as matching.
func decodeList(doc docstore.Document) domain.SavedSearchList {
	d := doc.Data
	l := domain.SavedSearchList{
		ID:              doc.ID,
		Name:            datanorm.ScalarString(d["name"]),
		Description:     datanorm.ScalarString(d["description"]),
		CreatedBy:       datanorm.ScalarString(d["createdBy"]),
		ConditionGroups: decodeGroups(d["conditionGroups"]),
	}
	l.CreatedAt, _ = datanorm.ParseTimestamp(d["createdAt"])
	l.UpdatedAt, _ = datanorm.ParseTimestamp(d["updatedAt"])
	return l
}

func decodeGroups(v any) []domain.FilterConditionGroup {
	items, _ := plain(v).([]any)
	groups := make([]domain.FilterConditionGroup, 0, len(items))
	for _, item := range items {
		obj, _ := plain(item).(map[string]any)
		g := domain.FilterConditionGroup{
			ID:         datanorm.ScalarString(obj["id"]),
			Conditions: []domain.FilterCondition{},
		}
		conds, _ := plain(obj["conditions"]).([]any)
		for _, c := range conds {
			g.Conditions = append(g.Conditions, decodeCondition(c))
		}
		groups = append(groups, g)
	}
	return groups
}

func decodeCondition(v any) domain.FilterCondition {
	obj, _ := plain(v).(map[string]any)
	return domain.FilterCondition{
		ID:       datanorm.ScalarString(obj["id"]),
		Field:    domain.FilterField(datanorm.ScalarString(obj["field"])),
		Operator: domain.FilterOperator(datanorm.ScalarString(obj["operator"])),
		Value:    datanorm.ScalarString(obj["value"]),
		Value2:   datanorm.ScalarString(obj["value2"]),
	}
}

// plain converts typed slices and structs to the map and slice shapes a
// JSON-backed store returns.
func plain(v any) any {
	switch v.(type) {
	case nil, []any, map[string]any:
		return v
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return nil
	}
	var out any
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil
	}
	return out
}

// encodeGroups converts groups to plain maps and slices so every backend
// stores the same shape.
func encodeGroups(groups []domain.FilterConditionGroup) []any {
	out, _ := plain(groups).([]any)
	if out == nil {
		out = []any{}
	}
	return out
}
