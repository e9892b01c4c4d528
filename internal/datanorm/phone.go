package datanorm

import (
	"encoding/json"
	"strings"
	"unicode"

	"golang.org/x/text/width"
)

type phoneNumber struct {
	cleaned string
	display string
}

// resolvePhone matches the phone union: a plain string or an
// {original, cleaned} wrapper (possibly JSON-encoded). cleaned wins over
// original for the search value; the display form keeps the human-readable
// original when one exists.
func resolvePhone(v any) phoneNumber {
	switch val := v.(type) {
	case string:
		if strings.HasPrefix(strings.TrimSpace(val), "{") {
			var obj map[string]any
			if err := json.Unmarshal([]byte(val), &obj); err == nil {
				return phoneFromWrapper(obj)
			}
		}
		display := strings.TrimSpace(val)
		return phoneNumber{cleaned: stripPhone(display), display: display}
	case map[string]any:
		return phoneFromWrapper(val)
	case map[string]string:
		return phoneNumber{
			cleaned: stripPhone(firstNonEmpty(val["cleaned"], val["original"])),
			display: strings.TrimSpace(firstNonEmpty(val["original"], val["cleaned"])),
		}
	case float64, int, int64:
		s := ScalarString(val)
		return phoneNumber{cleaned: s, display: s}
	}
	return phoneNumber{}
}

func phoneFromWrapper(obj map[string]any) phoneNumber {
	original := ScalarString(obj["original"])
	cleaned := ScalarString(obj["cleaned"])
	return phoneNumber{
		cleaned: stripPhone(firstNonEmpty(cleaned, original)),
		display: strings.TrimSpace(firstNonEmpty(original, cleaned)),
	}
}

// stripPhone removes hyphen variants and whitespace after folding full-width
// digits, leaving the digits and any leading '+' or parentheses untouched.
func stripPhone(raw string) string {
	folded := width.Fold.String(raw)
	var b strings.Builder
	b.Grow(len(folded))
	for _, r := range folded {
		if unicode.IsSpace(r) || isDash(r) {
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func isDash(r rune) bool {
	switch r {
	case '-', '‐', '‑', '‒', '–', '—', '―', '−', 'ー', 'ｰ':
		return true
	}
	return false
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
