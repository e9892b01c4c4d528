// Package segmentation evaluates saved search lists over customer records.
//
// A saved search list is a two-level boolean expression: condition groups
// are combined with AND and the conditions inside a group with OR. Every
// condition is a typed predicate on one customer field. Evaluation is pure
// and fail-open: a condition that cannot be interpreted (unknown field,
// operator not valid for the field type) is true, so a malformed list
// over-includes rather than hiding records.
package segmentation

import (
	"github.com/ignite/memorial-crm/internal/domain"
)

// ==========================================
// FIELDS
// ==========================================

// FieldDefinition describes a filterable customer field.
type FieldDefinition struct {
	Field domain.FilterField `json:"field"`
	Label string             `json:"label"`
	Type  domain.FieldType   `json:"type"`
}

var fieldDefinitions = []FieldDefinition{
	{domain.FieldTrackingNo, "管理番号", domain.FieldTypeString},
	{domain.FieldName, "氏名", domain.FieldTypeString},
	{domain.FieldNameKana, "フリガナ", domain.FieldTypeString},
	{domain.FieldPhone, "電話番号", domain.FieldTypeString},
	{domain.FieldEmail, "メールアドレス", domain.FieldTypeString},
	{domain.FieldAddress, "住所", domain.FieldTypeString},
	{domain.FieldAddressPrefecture, "都道府県", domain.FieldTypeSelect},
	{domain.FieldAddressCity, "市区町村", domain.FieldTypeString},
	{domain.FieldBranch, "拠点", domain.FieldTypeSelect},
	{domain.FieldCustomerCategory, "顧客区分", domain.FieldTypeSelect},
	{domain.FieldAssignedTo, "担当者", domain.FieldTypeString},
	{domain.FieldMemo, "備考", domain.FieldTypeString},
	{domain.FieldHasDeals, "商談あり", domain.FieldTypeBoolean},
	{domain.FieldHasTreeBurialDeals, "樹木墓商談あり", domain.FieldTypeBoolean},
	{domain.FieldHasBurialPersons, "埋葬者あり", domain.FieldTypeBoolean},
	{domain.FieldCreatedAt, "登録日", domain.FieldTypeDate},
	{domain.FieldUpdatedAt, "更新日", domain.FieldTypeDate},
}

// FieldDefinitions returns every filterable field in display order.
func FieldDefinitions() []FieldDefinition {
	out := make([]FieldDefinition, len(fieldDefinitions))
	copy(out, fieldDefinitions)
	return out
}

func lookupField(f domain.FilterField) (FieldDefinition, bool) {
	for _, d := range fieldDefinitions {
		if d.Field == f {
			return d, true
		}
	}
	return FieldDefinition{}, false
}

// ==========================================
// OPERATORS
// ==========================================

// OperatorMetadata contains info about an operator
type OperatorMetadata struct {
	Operator          domain.FilterOperator `json:"operator"`
	Label             string                `json:"label"`
	ApplicableTypes   []domain.FieldType    `json:"applicableTypes"`
	RequiresValue     bool                  `json:"requiresValue"`
	RequiresSecondary bool                  `json:"requiresSecondary"` // between
}

var (
	stringOnly   = []domain.FieldType{domain.FieldTypeString}
	stringSelect = []domain.FieldType{domain.FieldTypeString, domain.FieldTypeSelect}
	textAndDate  = []domain.FieldType{domain.FieldTypeString, domain.FieldTypeSelect, domain.FieldTypeDate}
	booleanOnly  = []domain.FieldType{domain.FieldTypeBoolean}
	dateOnly     = []domain.FieldType{domain.FieldTypeDate}
)

var operatorMetadata = []OperatorMetadata{
	{domain.OpContains, "を含む", stringOnly, true, false},
	{domain.OpNotContains, "を含まない", stringOnly, true, false},
	{domain.OpEquals, "と一致する", textAndDate, true, false},
	{domain.OpNotEquals, "と一致しない", stringSelect, true, false},
	{domain.OpStartsWith, "で始まる", stringOnly, true, false},
	{domain.OpNotStartsWith, "で始まらない", stringOnly, true, false},
	{domain.OpEndsWith, "で終わる", stringOnly, true, false},
	{domain.OpNotEndsWith, "で終わらない", stringOnly, true, false},
	{domain.OpIsEmpty, "が空", textAndDate, false, false},
	{domain.OpIsNotEmpty, "が空ではない", textAndDate, false, false},
	{domain.OpIsTrue, "はい", booleanOnly, false, false},
	{domain.OpIsFalse, "いいえ", booleanOnly, false, false},
	{domain.OpBefore, "より前", dateOnly, true, false},
	{domain.OpAfter, "より後", dateOnly, true, false},
	{domain.OpBetween, "の間", dateOnly, true, true},
}

// GetOperatorMetadata returns metadata for all operators
func GetOperatorMetadata() []OperatorMetadata {
	out := make([]OperatorMetadata, len(operatorMetadata))
	copy(out, operatorMetadata)
	return out
}

func getOperatorMeta(op domain.FilterOperator) (OperatorMetadata, bool) {
	for _, meta := range operatorMetadata {
		if meta.Operator == op {
			return meta, true
		}
	}
	return OperatorMetadata{}, false
}

// OperatorsForType returns the operators valid for a field type.
func OperatorsForType(t domain.FieldType) []OperatorMetadata {
	var ops []OperatorMetadata
	for _, meta := range operatorMetadata {
		if operatorApplies(meta, t) {
			ops = append(ops, meta)
		}
	}
	return ops
}

func operatorApplies(meta OperatorMetadata, t domain.FieldType) bool {
	for _, ft := range meta.ApplicableTypes {
		if ft == t {
			return true
		}
	}
	return false
}

// operatorAllowed reports whether op may be used with a field of type t.
func operatorAllowed(op domain.FilterOperator, t domain.FieldType) bool {
	meta, ok := getOperatorMeta(op)
	return ok && operatorApplies(meta, t)
}
