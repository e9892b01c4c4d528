package searchindex

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/ignite/memorial-crm/internal/domain"
)

func sampleCustomer() domain.Customer {
	return domain.Customer{
		TrackingNo:         "  T-0042 ",
		Name:               "山田 ハナコ",
		NameKana:           "ヤマダ ハナコ",
		Phone:              "0312345678",
		PhoneDisplay:       "03-1234-5678",
		Email:              "hanako@example.com",
		Address:            "東京都渋谷区神南1-2-3",
		AddressPrefecture:  "東京都",
		AddressCity:        "渋谷区",
		Branch:             "渋谷",
		CustomerCategory:   "individual",
		AssignedTo:         "sato",
		Memo:               "樹木葬に関心",
		HasDeals:           true,
		HasTreeBurialDeals: true,
		CreatedAt:          "2024-01-01T00:00:00Z",
		UpdatedAt:          "2024-02-01T00:00:00Z",
	}
}

func TestObjectID(t *testing.T) {
	assert.Equal(t, "T-0042", ObjectID(domain.Customer{TrackingNo: " T-0042 "}, "doc-1"))
	assert.Equal(t, "doc-1", ObjectID(domain.Customer{TrackingNo: "   "}, "doc-1"))
	assert.Equal(t, "doc-1", ObjectID(domain.Customer{}, "doc-1"))
}

func TestProject_RoundTrip(t *testing.T) {
	c := sampleCustomer()
	r := Project(c, "doc-1")

	assert.Equal(t, "T-0042", r.ObjectID)
	assert.Equal(t, "doc-1", r.RecordKey)
	assert.Equal(t, c, r.Customer())
}

func TestProject_SearchFields(t *testing.T) {
	r := Project(sampleCustomer(), "doc-1")
	assert.Equal(t, "山田 はなこ", r.SearchName)
	assert.Equal(t, "やまだ はなこ", r.SearchNameKana)
}

func TestProject_Deterministic(t *testing.T) {
	c := sampleCustomer()
	assert.Equal(t, Project(c, "k"), Project(c, "k"))
}
