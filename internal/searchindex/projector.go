package searchindex

import (
	"strings"

	"github.com/ignite/memorial-crm/internal/domain"
	"github.com/ignite/memorial-crm/internal/pkg/kana"
)

// Record is the document stored in the search index: the canonical customer
// fields plus the stable object id, the canonical storage key and the
// hiragana-folded name fields used for kana-insensitive search.
type Record struct {
	ObjectID  string `json:"objectID"`
	RecordKey string `json:"recordKey"`

	TrackingNo        string `json:"trackingNo"`
	Name              string `json:"name"`
	NameKana          string `json:"nameKana"`
	SearchName        string `json:"searchName"`
	SearchNameKana    string `json:"searchNameKana"`
	Phone             string `json:"phone"`
	PhoneDisplay      string `json:"phoneDisplay"`
	Email             string `json:"email"`
	Address           string `json:"address"`
	AddressPrefecture string `json:"addressPrefecture"`
	AddressCity       string `json:"addressCity"`
	Branch            string `json:"branch"`
	CustomerCategory  string `json:"customerCategory"`
	AssignedTo        string `json:"assignedTo"`
	Memo              string `json:"memo"`

	HasDeals           bool `json:"hasDeals"`
	HasTreeBurialDeals bool `json:"hasTreeBurialDeals"`
	HasBurialPersons   bool `json:"hasBurialPersons"`

	CreatedAt string `json:"createdAt"`
	UpdatedAt string `json:"updatedAt"`
}

// ObjectID returns the index key for a customer: the trimmed tracking number
// when present, otherwise the canonical storage key. It never generates a
// random id, so projecting the same customer twice overwrites one object.
func ObjectID(c domain.Customer, recordKey string) string {
	if tn := strings.TrimSpace(c.TrackingNo); tn != "" {
		return tn
	}
	return recordKey
}

// Project maps a normalized customer to its index record.
func Project(c domain.Customer, recordKey string) Record {
	return Record{
		ObjectID:  ObjectID(c, recordKey),
		RecordKey: recordKey,

		TrackingNo:        c.TrackingNo,
		Name:              c.Name,
		NameKana:          c.NameKana,
		SearchName:        kana.ToHiragana(c.Name),
		SearchNameKana:    kana.ToHiragana(c.NameKana),
		Phone:             c.Phone,
		PhoneDisplay:      c.PhoneDisplay,
		Email:             c.Email,
		Address:           c.Address,
		AddressPrefecture: c.AddressPrefecture,
		AddressCity:       c.AddressCity,
		Branch:            c.Branch,
		CustomerCategory:  c.CustomerCategory,
		AssignedTo:        c.AssignedTo,
		Memo:              c.Memo,

		HasDeals:           c.HasDeals,
		HasTreeBurialDeals: c.HasTreeBurialDeals,
		HasBurialPersons:   c.HasBurialPersons,

		CreatedAt: c.CreatedAt,
		UpdatedAt: c.UpdatedAt,
	}
}

// Customer recovers the canonical customer from an index hit. It is the
// inverse of Project for every canonical field.
func (r Record) Customer() domain.Customer {
	return domain.Customer{
		TrackingNo:        r.TrackingNo,
		Name:              r.Name,
		NameKana:          r.NameKana,
		Phone:             r.Phone,
		PhoneDisplay:      r.PhoneDisplay,
		Email:             r.Email,
		Address:           r.Address,
		AddressPrefecture: r.AddressPrefecture,
		AddressCity:       r.AddressCity,
		Branch:            r.Branch,
		CustomerCategory:  r.CustomerCategory,
		AssignedTo:        r.AssignedTo,
		Memo:              r.Memo,

		HasDeals:           r.HasDeals,
		HasTreeBurialDeals: r.HasTreeBurialDeals,
		HasBurialPersons:   r.HasBurialPersons,

		CreatedAt: r.CreatedAt,
		UpdatedAt: r.UpdatedAt,
	}
}

// attribute returns the string value of a searchable attribute by its JSON
// name. Unknown names yield "".
func (r Record) attribute(name string) string {
	switch name {
	case "objectID":
		return r.ObjectID
	case "trackingNo":
		return r.TrackingNo
	case "name":
		return r.Name
	case "nameKana":
		return r.NameKana
	case "searchName":
		return r.SearchName
	case "searchNameKana":
		return r.SearchNameKana
	case "phone":
		return r.Phone
	case "phoneDisplay":
		return r.PhoneDisplay
	case "email":
		return r.Email
	case "address":
		return r.Address
	case "addressPrefecture":
		return r.AddressPrefecture
	case "addressCity":
		return r.AddressCity
	case "branch":
		return r.Branch
	case "customerCategory":
		return r.CustomerCategory
	case "assignedTo":
		return r.AssignedTo
	case "memo":
		return r.Memo
	}
	return ""
}
