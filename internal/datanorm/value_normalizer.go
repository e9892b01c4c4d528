package datanorm

import (
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/ignite/memorial-crm/internal/domain"
)

// firstPresent returns the first value under keys that is not nil or an
// empty string.
func firstPresent(raw domain.RawRecord, keys []string) any {
	for _, k := range keys {
		v, ok := raw[k]
		if !ok || v == nil {
			continue
		}
		if s, isStr := v.(string); isStr && strings.TrimSpace(s) == "" {
			continue
		}
		return v
	}
	return nil
}

func firstString(raw domain.RawRecord, keys []string) string {
	for _, k := range keys {
		if s := ScalarString(raw[k]); s != "" {
			return s
		}
	}
	return ""
}

// ScalarString renders scalars as trimmed strings. Objects and arrays are not
// a recognized scalar shape and become "".
func ScalarString(v any) string {
	switch val := v.(type) {
	case string:
		return strings.TrimSpace(val)
	case float64:
		if val == math.Trunc(val) && math.Abs(val) < 1e15 {
			return strconv.FormatInt(int64(val), 10)
		}
		return strconv.FormatFloat(val, 'f', -1, 64)
	case int:
		return strconv.Itoa(val)
	case int64:
		return strconv.FormatInt(val, 10)
	case bool:
		return strconv.FormatBool(val)
	}
	return ""
}

// Truthy coerces a stored value the way the original JavaScript clients did:
// nil, false, 0, NaN and "" are false; everything else, including the string
// "false" and empty collections, is true.
func Truthy(v any) bool {
	switch val := v.(type) {
	case nil:
		return false
	case bool:
		return val
	case string:
		return val != ""
	case float64:
		return val != 0 && !math.IsNaN(val)
	case float32:
		return val != 0 && !math.IsNaN(float64(val))
	case int:
		return val != 0
	case int64:
		return val != 0
	}
	return true
}

// normalizeTimestamp emits RFC3339 in UTC. Strings that fail to parse are
// passed through so the evaluator can still attempt its own date layouts.
func normalizeTimestamp(v any) string {
	if t, ok := ParseTimestamp(v); ok {
		return t.Format(time.RFC3339)
	}
	if s, ok := v.(string); ok {
		return strings.TrimSpace(s)
	}
	return ""
}

// ParseTimestamp accepts the timestamp encodings seen in the store: native
// times, RFC3339 strings, epoch milliseconds and {seconds, nanoseconds}
// maps. The result is in UTC.
func ParseTimestamp(v any) (time.Time, bool) {
	switch val := v.(type) {
	case time.Time:
		if val.IsZero() {
			return time.Time{}, false
		}
		return val.UTC(), true
	case *time.Time:
		if val == nil || val.IsZero() {
			return time.Time{}, false
		}
		return val.UTC(), true
	case string:
		t, err := time.Parse(time.RFC3339Nano, strings.TrimSpace(val))
		if err != nil {
			return time.Time{}, false
		}
		return t.UTC(), true
	case float64:
		return time.UnixMilli(int64(val)).UTC(), true
	case int64:
		return time.UnixMilli(val).UTC(), true
	case map[string]any:
		secs, ok := numberField(val, "seconds", "_seconds")
		if !ok {
			return time.Time{}, false
		}
		nanos, _ := numberField(val, "nanoseconds", "_nanoseconds")
		return time.Unix(int64(secs), int64(nanos)).UTC(), true
	}
	return time.Time{}, false
}

func numberField(m map[string]any, keys ...string) (float64, bool) {
	for _, k := range keys {
		switch n := m[k].(type) {
		case float64:
			return n, true
		case int64:
			return float64(n), true
		case int:
			return float64(n), true
		}
	}
	return 0, false
}
