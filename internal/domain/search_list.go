package domain

import "time"

// CollectionSearchLists holds user-defined saved search lists.
const CollectionSearchLists = "CustomerSearchLists"

// FieldType is the declared type of a filterable customer field. It selects
// which operators are valid for a condition on that field.
type FieldType string

const (
	FieldTypeString  FieldType = "string"
	FieldTypeBoolean FieldType = "boolean"
	FieldTypeDate    FieldType = "date"
	FieldTypeSelect  FieldType = "select"
)

// FilterField names a filterable customer field.
type FilterField string

const (
	FieldTrackingNo         FilterField = "trackingNo"
	FieldName               FilterField = "name"
	FieldNameKana           FilterField = "nameKana"
	FieldPhone              FilterField = "phone"
	FieldEmail              FilterField = "email"
	FieldAddress            FilterField = "address"
	FieldAddressPrefecture  FilterField = "addressPrefecture"
	FieldAddressCity        FilterField = "addressCity"
	FieldBranch             FilterField = "branch"
	FieldCustomerCategory   FilterField = "customerCategory"
	FieldAssignedTo         FilterField = "assignedTo"
	FieldMemo               FilterField = "memo"
	FieldHasDeals           FilterField = "hasDeals"
	FieldHasTreeBurialDeals FilterField = "hasTreeBurialDeals"
	FieldHasBurialPersons   FilterField = "hasBurialPersons"
	FieldCreatedAt          FilterField = "createdAt"
	FieldUpdatedAt          FilterField = "updatedAt"
)

// FilterOperator is a comparison operator within a FilterCondition.
type FilterOperator string

const (
	// String / select operators
	OpContains      FilterOperator = "contains"
	OpNotContains   FilterOperator = "notContains"
	OpEquals        FilterOperator = "equals"
	OpNotEquals     FilterOperator = "notEquals"
	OpStartsWith    FilterOperator = "startsWith"
	OpNotStartsWith FilterOperator = "notStartsWith"
	OpEndsWith      FilterOperator = "endsWith"
	OpNotEndsWith   FilterOperator = "notEndsWith"
	OpIsEmpty       FilterOperator = "isEmpty"
	OpIsNotEmpty    FilterOperator = "isNotEmpty"

	// Boolean operators
	OpIsTrue  FilterOperator = "isTrue"
	OpIsFalse FilterOperator = "isFalse"

	// Date operators (plus OpEquals, OpIsEmpty, OpIsNotEmpty)
	OpBefore  FilterOperator = "before"
	OpAfter   FilterOperator = "after"
	OpBetween FilterOperator = "between"
)

// FilterCondition is a single typed predicate on one customer field.
type FilterCondition struct {
	ID       string         `json:"id"`
	Field    FilterField    `json:"field"`
	Operator FilterOperator `json:"operator"`
	Value    string         `json:"value"`
	Value2   string         `json:"value2,omitempty"`
}

// FilterConditionGroup combines its conditions with OR. An empty group is
// vacuously true.
type FilterConditionGroup struct {
	ID         string            `json:"id"`
	Conditions []FilterCondition `json:"conditions"`
}

// SavedSearchList is a named, reusable filter expression. Groups combine
// with AND; a list without groups matches every record.
type SavedSearchList struct {
	ID              string                 `json:"id"`
	Name            string                 `json:"name"`
	Description     string                 `json:"description,omitempty"`
	IsSystem        bool                   `json:"isSystem"`
	ConditionGroups []FilterConditionGroup `json:"conditionGroups"`
	CreatedBy       string                 `json:"createdBy,omitempty"`
	CreatedAt       time.Time              `json:"createdAt"`
	UpdatedAt       time.Time              `json:"updatedAt"`
}
