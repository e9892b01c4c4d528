package datanorm

import (
	"encoding/json"
	"regexp"
	"strings"

	"github.com/ignite/memorial-crm/internal/domain"
)

// addressShape tags which member of the address union a raw value matched.
type addressShape int

const (
	addressNone addressShape = iota
	addressFreeform
	addressFull
	addressParts
)

// address is the structural match of a raw address value.
type address struct {
	Shape      addressShape
	Freeform   string
	Full       string
	Prefecture string
	City       string
	Town       string
	Street     string
	Building   string
}

// flatten produces the single display string. Parts are joined without a
// separator because legacy components already carry their own spacing.
func (a address) flatten() string {
	switch a.Shape {
	case addressFreeform:
		return a.Freeform
	case addressFull:
		return a.Full
	case addressParts:
		var b strings.Builder
		for _, p := range []string{a.Prefecture, a.City, a.Town, a.Street, a.Building} {
			b.WriteString(p)
		}
		return b.String()
	}
	return ""
}

var partKeys = []string{"prefecture", "city", "town", "streetNumber", "building"}

// resolveAddress matches raw["address"]; when absent it falls back to the
// legacy flat top-level part fields.
func resolveAddress(raw domain.RawRecord) address {
	if v, ok := raw["address"]; ok && v != nil {
		if a := parseAddress(v); a.Shape != addressNone {
			return a
		}
	}
	return addressFromObject(map[string]any(raw), false)
}

func parseAddress(v any) address {
	switch val := v.(type) {
	case string:
		if strings.HasPrefix(strings.TrimSpace(val), "{") {
			var obj map[string]any
			if err := json.Unmarshal([]byte(val), &obj); err == nil {
				return addressFromObject(obj, true)
			}
		}
		if val == "" {
			return address{}
		}
		return address{Shape: addressFreeform, Freeform: val}
	case map[string]any:
		return addressFromObject(val, true)
	case domain.RawRecord:
		return addressFromObject(map[string]any(val), true)
	case map[string]string:
		obj := make(map[string]any, len(val))
		for k, s := range val {
			obj[k] = s
		}
		return addressFromObject(obj, true)
	}
	return address{}
}

// addressFromObject matches {full}, {fullAddress} or discrete parts. The
// full-string keys are only honoured for nested address objects, never for
// top-level legacy fields.
func addressFromObject(obj map[string]any, nested bool) address {
	a := address{
		Prefecture: ScalarString(obj["prefecture"]),
		City:       ScalarString(obj["city"]),
		Town:       ScalarString(obj["town"]),
		Street:     ScalarString(obj["streetNumber"]),
		Building:   ScalarString(obj["building"]),
	}
	if nested {
		if full := ScalarString(obj["full"]); full != "" {
			a.Shape, a.Full = addressFull, full
			return a
		}
		if full := ScalarString(obj["fullAddress"]); full != "" {
			a.Shape, a.Full = addressFull, full
			return a
		}
	}
	for _, k := range partKeys {
		if ScalarString(obj[k]) != "" {
			a.Shape = addressParts
			return a
		}
	}
	return address{}
}

var (
	prefecturePattern   = regexp.MustCompile(`^(東京都|北海道|(?:京都|大阪)府|.{2,3}県)`)
	municipalityPattern = regexp.MustCompile(`^(.+?[市区町村])`)
)

// ExtractRegion pulls prefecture and municipality out of a flattened address.
// It is a best-effort heuristic: compound names that look like prefectures
// can be split wrongly, and no confidence signal is available.
func ExtractRegion(flat string) (prefecture, city string) {
	s := strings.TrimSpace(flat)
	if s == "" {
		return "", ""
	}
	rest := s
	if m := prefecturePattern.FindStringSubmatch(s); m != nil {
		prefecture = m[1]
		rest = strings.TrimSpace(strings.TrimPrefix(s, prefecture))
	}
	if m := municipalityPattern.FindStringSubmatch(rest); m != nil {
		city = m[1]
	}
	return prefecture, city
}
