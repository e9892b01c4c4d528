package domain

// CollectionCustomers is the canonical document collection for customers.
const CollectionCustomers = "Customers"

// StatusDeleted marks a soft-deleted canonical document. Deleted documents
// stay in the store but are never present in the search index.
const StatusDeleted = "deleted"

// RawRecord is a customer document exactly as read from the document store.
// Several generations of record shape coexist, so values are untyped.
type RawRecord map[string]any

// IsDeleted reports whether the document carries the soft-delete status.
func (r RawRecord) IsDeleted() bool {
	s, ok := r["status"].(string)
	return ok && s == StatusDeleted
}

// Customer is the normalized view of a customer record used by both the
// search index projection and the saved search evaluator.
type Customer struct {
	TrackingNo        string `json:"trackingNo"`
	Name              string `json:"name"`
	NameKana          string `json:"nameKana"`
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
