// Package datanorm projects heterogeneous customer documents into the single
// canonical shape used by the search index and the saved search evaluator.
//
// Three generations of customer document coexist in the store: legacy flat
// fields, nested address objects, and JSON-string encoded addresses with
// {original, cleaned} phone wrappers. Every canonical field is resolved
// through a fixed, ordered fallback chain. Normalization is total: a shape
// that is not recognized yields an empty string for that field and never
// affects the others.
package datanorm

import (
	"github.com/ignite/memorial-crm/internal/domain"
)

// Raw document keys, including the legacy aliases each field falls back to.
var (
	keysTrackingNo = []string{"trackingNo", "trackingNumber"}
	keysName       = []string{"name", "customerName"}
	keysNameKana   = []string{"nameKana", "kana", "furigana"}
	keysPhone      = []string{"phone", "phoneNumber", "tel"}
	keysEmail      = []string{"email"}
	keysBranch     = []string{"branch"}
	keysCategory   = []string{"customerCategory", "category"}
	keysAssignedTo = []string{"assignedTo", "staff"}
	keysMemo       = []string{"memo", "notes"}
)

// Sidecar keys written back to canonical documents so later reads do not
// depend on regex extraction.
const (
	SidecarPrefecture = "addressPrefecture"
	SidecarCity       = "addressCity"
)

// Normalize derives the canonical customer view from a raw document.
func Normalize(raw domain.RawRecord) domain.Customer {
	addr := resolveAddress(raw)
	phone := resolvePhone(firstPresent(raw, keysPhone))

	c := domain.Customer{
		TrackingNo:       firstString(raw, keysTrackingNo),
		Name:             firstString(raw, keysName),
		NameKana:         firstString(raw, keysNameKana),
		Phone:            phone.cleaned,
		PhoneDisplay:     phone.display,
		Email:            firstString(raw, keysEmail),
		Address:          addr.flatten(),
		Branch:           firstString(raw, keysBranch),
		CustomerCategory: firstString(raw, keysCategory),
		AssignedTo:       firstString(raw, keysAssignedTo),
		Memo:             firstString(raw, keysMemo),

		HasDeals:           resolveFlag(raw, "hasDeals", "deals"),
		HasTreeBurialDeals: resolveFlag(raw, "hasTreeBurialDeals", "treeBurialDeals"),
		HasBurialPersons:   resolveFlag(raw, "hasBurialPersons", "burialPersons"),

		CreatedAt: normalizeTimestamp(raw["createdAt"]),
		UpdatedAt: normalizeTimestamp(raw["updatedAt"]),
	}
	c.AddressPrefecture, c.AddressCity = resolveRegion(raw, addr, c.Address)
	return c
}

// Sidecar returns the region fields the synchronizer persists next to the
// raw address. Empty values are included so stale sidecars get cleared.
func Sidecar(c domain.Customer) map[string]any {
	return map[string]any{
		SidecarPrefecture: c.AddressPrefecture,
		SidecarCity:       c.AddressCity,
	}
}

// resolveFlag prefers the explicit flag key and falls back to whether the
// associated array is non-empty.
func resolveFlag(raw domain.RawRecord, flagKey, arrayKey string) bool {
	if v, ok := raw[flagKey]; ok {
		return Truthy(v)
	}
	switch arr := raw[arrayKey].(type) {
	case []any:
		return len(arr) > 0
	case []map[string]any:
		return len(arr) > 0
	case []string:
		return len(arr) > 0
	}
	return false
}

// resolveRegion walks sidecar → structured address → regex extraction.
func resolveRegion(raw domain.RawRecord, addr address, flat string) (string, string) {
	pref := ScalarString(raw[SidecarPrefecture])
	city := ScalarString(raw[SidecarCity])
	if pref != "" && city != "" {
		return pref, city
	}

	if pref == "" {
		pref = addr.Prefecture
	}
	if city == "" {
		city = addr.City
	}
	if pref != "" && city != "" {
		return pref, city
	}

	exPref, exCity := ExtractRegion(flat)
	if pref == "" {
		pref = exPref
	}
	if city == "" {
		city = exCity
	}
	return pref, city
}
