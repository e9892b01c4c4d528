package docstore

import (
	"fmt"
	"reflect"
	"sort"
	"strings"
	"time"
)

// Apply evaluates q over an unordered set of documents. Backends that cannot
// push filtering down to their engine load a collection and call Apply.
func Apply(docs []Document, q Query) (Page, error) {
	if q.StartAfter != "" && q.OrderBy != "" {
		return Page{}, fmt.Errorf("%w: cursor requires id ordering", ErrInvalidQuery)
	}

	matched := make([]Document, 0, len(docs))
	for _, d := range docs {
		if Matches(d.Data, q.Filters) {
			matched = append(matched, d)
		}
	}

	sort.SliceStable(matched, func(i, j int) bool {
		if q.OrderBy == "" {
			return matched[i].ID < matched[j].ID
		}
		c := CompareValues(matched[i].Data[q.OrderBy], matched[j].Data[q.OrderBy])
		if c == 0 {
			return matched[i].ID < matched[j].ID
		}
		if q.Desc {
			return c > 0
		}
		return c < 0
	})

	if q.StartAfter != "" {
		idx := sort.Search(len(matched), func(i int) bool { return matched[i].ID > q.StartAfter })
		matched = matched[idx:]
	}

	var page Page
	if q.Limit > 0 && len(matched) > q.Limit {
		matched = matched[:q.Limit]
		page.Next = matched[len(matched)-1].ID
	}
	page.Docs = matched
	return page, nil
}

// Matches reports whether data satisfies every equality filter.
func Matches(data map[string]any, filters []Filter) bool {
	for _, f := range filters {
		if !valuesEqual(data[f.Field], f.Value) {
			return false
		}
	}
	return true
}

func valuesEqual(a, b any) bool {
	if af, ok := toFloat(a); ok {
		bf, ok := toFloat(b)
		return ok && af == bf
	}
	return reflect.DeepEqual(a, b)
}

// CompareValues orders two field values. Missing values sort first; values
// of different kinds compare by their string form.
func CompareValues(a, b any) int {
	switch {
	case a == nil && b == nil:
		return 0
	case a == nil:
		return -1
	case b == nil:
		return 1
	}
	if at, ok := toTime(a); ok {
		if bt, ok := toTime(b); ok {
			return at.Compare(bt)
		}
	}
	if af, ok := toFloat(a); ok {
		if bf, ok := toFloat(b); ok {
			switch {
			case af < bf:
				return -1
			case af > bf:
				return 1
			}
			return 0
		}
	}
	return strings.Compare(fmt.Sprint(a), fmt.Sprint(b))
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case int32:
		return float64(n), true
	}
	return 0, false
}

func toTime(v any) (time.Time, bool) {
	switch t := v.(type) {
	case time.Time:
		return t, true
	case string:
		parsed, err := time.Parse(time.RFC3339Nano, t)
		return parsed, err == nil
	}
	return time.Time{}, false
}
