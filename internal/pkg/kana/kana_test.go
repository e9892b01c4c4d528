package kana

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestToHiragana(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"katakana name", "ヤマダタロウ", "やまだたろう"},
		{"mixed scripts", "やまだタロウ", "やまだたろう"},
		{"small kana and ke", "ァヶ", "ぁゖ"},
		{"long vowel mark untouched", "ラーメン", "らーめん"},
		{"kanji untouched", "山田太郎", "山田太郎"},
		{"empty", "", ""},
		{"ascii untouched", "Tanaka", "Tanaka"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ToHiragana(tt.in))
		})
	}
}

func TestToHiragana_Idempotent(t *testing.T) {
	inputs := []string{"ヤマダ", "やまだ", "ヤまダ", "山田 タロウ", "ヴァイオリン"}
	for _, in := range inputs {
		once := ToHiragana(in)
		assert.Equal(t, once, ToHiragana(once), "input %q", in)
	}
}

func TestFold_CrossScriptMatch(t *testing.T) {
	record := Fold("スズキ ハナコ")
	query := Fold("すずき")
	assert.True(t, strings.Contains(record, query))

	record = Fold("すずき はなこ")
	query = Fold("スズキ")
	assert.True(t, strings.Contains(record, query))
}

func TestFold_WidthAndCase(t *testing.T) {
	assert.Equal(t, "abc123", Fold("ＡＢＣ１２３"))
	assert.Equal(t, "たなか", Fold("ﾀﾅｶ"))
	assert.Equal(t, Fold(Fold("ﾀﾅｶ Ｔａｒｏ")), Fold("ﾀﾅｶ Ｔａｒｏ"))
}
