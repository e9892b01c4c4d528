// Package kana folds Japanese text so that queries typed in one script match
// records stored in another.
package kana

import (
	"strings"

	"golang.org/x/text/width"
)

const (
	katakanaFirst = 0x30A1 // ァ
	katakanaLast  = 0x30F6 // ヶ
	hiraganaShift = 0x60
)

// ToHiragana maps katakana in U+30A1..U+30F6 to the matching hiragana code
// point. All other runes pass through, so the result is a fixed point:
// ToHiragana(ToHiragana(s)) == ToHiragana(s).
func ToHiragana(s string) string {
	if !hasKatakana(s) {
		return s
	}
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if r >= katakanaFirst && r <= katakanaLast {
			r -= hiraganaShift
		}
		b.WriteRune(r)
	}
	return b.String()
}

// Fold is the matching normalization used for free-text and filter
// comparisons: full-width ASCII and half-width katakana are folded to their
// canonical width, letters are lowercased and katakana becomes hiragana.
func Fold(s string) string {
	if s == "" {
		return ""
	}
	return ToHiragana(strings.ToLower(width.Fold.String(s)))
}

func hasKatakana(s string) bool {
	for _, r := range s {
		if r >= katakanaFirst && r <= katakanaLast {
			return true
		}
	}
	return false
}
