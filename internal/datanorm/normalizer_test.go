package datanorm

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ignite/memorial-crm/internal/domain"
)

func TestNormalize_AddressShapesAreEquivalent(t *testing.T) {
	shapes := []struct {
		name string
		raw  domain.RawRecord
	}{
		{"plain string", domain.RawRecord{"address": "東京都渋谷区神南1-2-3"}},
		{"full object", domain.RawRecord{"address": map[string]any{"full": "東京都渋谷区神南1-2-3"}}},
		{"fullAddress object", domain.RawRecord{"address": map[string]any{"fullAddress": "東京都渋谷区神南1-2-3"}}},
		{"parts object", domain.RawRecord{"address": map[string]any{
			"prefecture": "東京都", "city": "渋谷区", "town": "神南", "streetNumber": "1-2-3",
		}}},
		{"json string of parts", domain.RawRecord{"address": `{"prefecture":"東京都","city":"渋谷区","town":"神南","streetNumber":"1-2-3"}`}},
		{"json string of full", domain.RawRecord{"address": `{"full":"東京都渋谷区神南1-2-3"}`}},
		{"legacy top-level parts", domain.RawRecord{
			"prefecture": "東京都", "city": "渋谷区", "town": "神南", "streetNumber": "1-2-3",
		}},
	}

	for _, tt := range shapes {
		t.Run(tt.name, func(t *testing.T) {
			c := Normalize(tt.raw)
			assert.Equal(t, "東京都渋谷区神南1-2-3", c.Address)
			assert.Equal(t, "東京都", c.AddressPrefecture)
			assert.Equal(t, "渋谷区", c.AddressCity)
		})
	}
}

func TestNormalize_JSONStringAddress(t *testing.T) {
	c := Normalize(domain.RawRecord{"address": `{"prefecture":"東京都","city":"渋谷区"}`})
	assert.Equal(t, "東京都渋谷区", c.Address)
	assert.Equal(t, "東京都", c.AddressPrefecture)
	assert.Equal(t, "渋谷区", c.AddressCity)
}

func TestNormalize_MalformedJSONAddressIsLiteral(t *testing.T) {
	c := Normalize(domain.RawRecord{"address": "{not json"})
	assert.Equal(t, "{not json", c.Address)
}

func TestNormalize_PartsSkipEmpty(t *testing.T) {
	c := Normalize(domain.RawRecord{"address": map[string]any{
		"prefecture": "大阪府", "city": "", "town": "北区梅田", "building": "ビル5F",
	}})
	assert.Equal(t, "大阪府北区梅田ビル5F", c.Address)
	assert.Equal(t, "大阪府", c.AddressPrefecture)
	assert.Equal(t, "北区", c.AddressCity)
}

func TestNormalize_UnrecognizedShapesDegrade(t *testing.T) {
	c := Normalize(domain.RawRecord{
		"address": []any{"x"},
		"phone":   []any{1, 2},
		"name":    map[string]any{"first": "a"},
		"email":   "a@example.com",
	})
	assert.Empty(t, c.Address)
	assert.Empty(t, c.Phone)
	assert.Empty(t, c.Name)
	assert.Equal(t, "a@example.com", c.Email)
}

func TestNormalize_Phone(t *testing.T) {
	tests := []struct {
		name        string
		value       any
		wantPhone   string
		wantDisplay string
	}{
		{"ascii hyphens", "03-1234-5678", "0312345678", "03-1234-5678"},
		{"full-width dashes", "０３ー１２３４－５６７８", "0312345678", "０３ー１２３４－５６７８"},
		{"spaces", "090 1234 5678", "09012345678", "090 1234 5678"},
		{"wrapper prefers cleaned", map[string]any{"original": "03-1234-5678", "cleaned": "0312345678"}, "0312345678", "03-1234-5678"},
		{"wrapper falls back to original", map[string]any{"original": "03-1111-2222"}, "0311112222", "03-1111-2222"},
		{"json wrapper", `{"original":"06-1111-2222","cleaned":"0611112222"}`, "0611112222", "06-1111-2222"},
		{"missing", nil, "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := Normalize(domain.RawRecord{"phone": tt.value})
			assert.Equal(t, tt.wantPhone, c.Phone)
			assert.Equal(t, tt.wantDisplay, c.PhoneDisplay)
		})
	}
}

func TestNormalize_LegacyAliases(t *testing.T) {
	c := Normalize(domain.RawRecord{
		"trackingNumber": "T-100",
		"customerName":   "山田 太郎",
		"furigana":       "ヤマダ タロウ",
		"tel":            "045-000-1111",
		"category":       "individual",
		"staff":          "sato",
		"notes":          "call back",
	})
	assert.Equal(t, "T-100", c.TrackingNo)
	assert.Equal(t, "山田 太郎", c.Name)
	assert.Equal(t, "ヤマダ タロウ", c.NameKana)
	assert.Equal(t, "0450001111", c.Phone)
	assert.Equal(t, "individual", c.CustomerCategory)
	assert.Equal(t, "sato", c.AssignedTo)
	assert.Equal(t, "call back", c.Memo)
}

func TestNormalize_AliasPrecedence(t *testing.T) {
	c := Normalize(domain.RawRecord{
		"trackingNo":     "T-1",
		"trackingNumber": "T-2",
		"name":           "",
		"customerName":   "fallback",
	})
	assert.Equal(t, "T-1", c.TrackingNo)
	assert.Equal(t, "fallback", c.Name, "empty primary key falls through")
}

func TestNormalize_Flags(t *testing.T) {
	c := Normalize(domain.RawRecord{
		"hasDeals":        "yes",
		"treeBurialDeals": []any{map[string]any{"id": "d1"}},
		"burialPersons":   []any{},
	})
	assert.True(t, c.HasDeals)
	assert.True(t, c.HasTreeBurialDeals)
	assert.False(t, c.HasBurialPersons)

	c = Normalize(domain.RawRecord{"hasDeals": false, "deals": []any{"d"}})
	assert.False(t, c.HasDeals, "explicit flag wins over array")
}

func TestNormalize_RegionPrecedence(t *testing.T) {
	c := Normalize(domain.RawRecord{
		"address":         "神奈川県横浜市中区1-1",
		SidecarPrefecture: "東京都",
		SidecarCity:       "港区",
	})
	assert.Equal(t, "東京都", c.AddressPrefecture)
	assert.Equal(t, "港区", c.AddressCity)

	c = Normalize(domain.RawRecord{"address": "神奈川県横浜市中区1-1"})
	assert.Equal(t, "神奈川県", c.AddressPrefecture)
	assert.Equal(t, "横浜市", c.AddressCity)
}

func TestNormalize_Timestamps(t *testing.T) {
	ts := time.Date(2024, 3, 1, 9, 30, 0, 0, time.UTC)
	tests := []struct {
		name  string
		value any
		want  string
	}{
		{"time", ts, "2024-03-01T09:30:00Z"},
		{"rfc3339 offset", "2024-03-01T18:30:00+09:00", "2024-03-01T09:30:00Z"},
		{"export map", map[string]any{"_seconds": float64(ts.Unix()), "_nanoseconds": float64(0)}, "2024-03-01T09:30:00Z"},
		{"epoch millis", float64(ts.UnixMilli()), "2024-03-01T09:30:00Z"},
		{"unparseable", "2024/03/01", "2024/03/01"},
		{"missing", nil, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := Normalize(domain.RawRecord{"createdAt": tt.value})
			assert.Equal(t, tt.want, c.CreatedAt)
		})
	}
}

func TestSidecar(t *testing.T) {
	s := Sidecar(domain.Customer{AddressPrefecture: "北海道", AddressCity: "札幌市"})
	require.Len(t, s, 2)
	assert.Equal(t, "北海道", s[SidecarPrefecture])
	assert.Equal(t, "札幌市", s[SidecarCity])
}

func TestExtractRegion(t *testing.T) {
	tests := []struct {
		in       string
		wantPref string
		wantCity string
	}{
		{"北海道札幌市中央区", "北海道", "札幌市"},
		{"京都府京都市左京区", "京都府", "京都市"},
		{"鹿児島県鹿児島市", "鹿児島県", "鹿児島市"},
		{"渋谷区神南", "", "渋谷区"},
		{"", "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			p, c := ExtractRegion(tt.in)
			assert.Equal(t, tt.wantPref, p)
			assert.Equal(t, tt.wantCity, c)
		})
	}
}

func TestTruthy(t *testing.T) {
	assert.False(t, Truthy(nil))
	assert.False(t, Truthy(""))
	assert.False(t, Truthy(float64(0)))
	assert.True(t, Truthy("false"))
	assert.True(t, Truthy(float64(2)))
	assert.True(t, Truthy([]any{}))
}

func TestParseTimestamp(t *testing.T) {
	want := time.Date(2024, 3, 1, 9, 30, 0, 123000000, time.UTC)

	got, ok := ParseTimestamp("2024-03-01T18:30:00.123000+09:00")
	require.True(t, ok)
	assert.Equal(t, want, got, "sub-second precision kept")

	got, ok = ParseTimestamp(map[string]any{"seconds": float64(want.Unix()), "nanoseconds": float64(123000000)})
	require.True(t, ok)
	assert.Equal(t, want, got)

	_, ok = ParseTimestamp("2024/03/01")
	assert.False(t, ok)
	_, ok = ParseTimestamp(time.Time{})
	assert.False(t, ok)
}
