package segmentation

import (
	"strings"
	"time"

	"github.com/ignite/memorial-crm/internal/datanorm"
	"github.com/ignite/memorial-crm/internal/domain"
	"github.com/ignite/memorial-crm/internal/pkg/kana"
)

// DateLocation is the calendar used for date-only comparisons and for
// deciding which day a timestamp falls on.
var DateLocation = time.FixedZone("Asia/Tokyo", 9*60*60)

// Evaluate reports whether a customer satisfies the groups: every group must
// hold, and a group holds when any of its conditions does. No groups, or a
// group with no conditions, is true.
func Evaluate(c domain.Customer, groups []domain.FilterConditionGroup) bool {
	for _, g := range groups {
		if !evaluateGroup(c, g) {
			return false
		}
	}
	return true
}

func evaluateGroup(c domain.Customer, g domain.FilterConditionGroup) bool {
	if len(g.Conditions) == 0 {
		return true
	}
	for _, cond := range g.Conditions {
		if EvaluateCondition(c, cond) {
			return true
		}
	}
	return false
}

// Filter returns the customers that satisfy the groups, preserving order.
// The input slice is not modified.
func Filter(customers []domain.Customer, groups []domain.FilterConditionGroup) []domain.Customer {
	out := make([]domain.Customer, 0, len(customers))
	for _, c := range customers {
		if Evaluate(c, groups) {
			out = append(out, c)
		}
	}
	return out
}

// EvaluateCondition evaluates one condition. Unknown fields and operators
// that are not valid for the field type evaluate to true.
func EvaluateCondition(c domain.Customer, cond domain.FilterCondition) bool {
	def, ok := lookupField(cond.Field)
	if !ok || !operatorAllowed(cond.Operator, def.Type) {
		return true
	}
	v := fieldValue(c, cond.Field)

	switch def.Type {
	case domain.FieldTypeString, domain.FieldTypeSelect:
		s, _ := v.(string)
		return evalString(s, cond)
	case domain.FieldTypeBoolean:
		return evalBoolean(v, cond.Operator)
	case domain.FieldTypeDate:
		s, _ := v.(string)
		return evalDate(s, cond)
	}
	return true
}

func fieldValue(c domain.Customer, f domain.FilterField) any {
	switch f {
	case domain.FieldTrackingNo:
		return c.TrackingNo
	case domain.FieldName:
		return c.Name
	case domain.FieldNameKana:
		return c.NameKana
	case domain.FieldPhone:
		return c.Phone
	case domain.FieldEmail:
		return c.Email
	case domain.FieldAddress:
		return c.Address
	case domain.FieldAddressPrefecture:
		return c.AddressPrefecture
	case domain.FieldAddressCity:
		return c.AddressCity
	case domain.FieldBranch:
		return c.Branch
	case domain.FieldCustomerCategory:
		return c.CustomerCategory
	case domain.FieldAssignedTo:
		return c.AssignedTo
	case domain.FieldMemo:
		return c.Memo
	case domain.FieldHasDeals:
		return c.HasDeals
	case domain.FieldHasTreeBurialDeals:
		return c.HasTreeBurialDeals
	case domain.FieldHasBurialPersons:
		return c.HasBurialPersons
	case domain.FieldCreatedAt:
		return c.CreatedAt
	case domain.FieldUpdatedAt:
		return c.UpdatedAt
	}
	return nil
}

func evalString(value string, cond domain.FilterCondition) bool {
	switch cond.Operator {
	case domain.OpIsEmpty:
		return strings.TrimSpace(value) == ""
	case domain.OpIsNotEmpty:
		return strings.TrimSpace(value) != ""
	}

	v := kana.Fold(value)
	target := kana.Fold(cond.Value)

	switch cond.Operator {
	case domain.OpContains:
		return strings.Contains(v, target)
	case domain.OpNotContains:
		return !strings.Contains(v, target)
	case domain.OpEquals:
		return v == target
	case domain.OpNotEquals:
		return v != target
	case domain.OpStartsWith:
		return strings.HasPrefix(v, target)
	case domain.OpNotStartsWith:
		return !strings.HasPrefix(v, target)
	case domain.OpEndsWith:
		return strings.HasSuffix(v, target)
	case domain.OpNotEndsWith:
		return !strings.HasSuffix(v, target)
	}
	return true
}

func evalBoolean(v any, op domain.FilterOperator) bool {
	switch op {
	case domain.OpIsTrue:
		return datanorm.Truthy(v)
	case domain.OpIsFalse:
		return !datanorm.Truthy(v)
	}
	return true
}

func evalDate(value string, cond domain.FilterCondition) bool {
	switch cond.Operator {
	case domain.OpIsEmpty:
		return strings.TrimSpace(value) == ""
	case domain.OpIsNotEmpty:
		return strings.TrimSpace(value) != ""
	}

	recorded, _, ok := parseDate(value)
	if !ok {
		return false
	}
	from, _, ok := parseDate(cond.Value)
	if !ok {
		return false
	}

	switch cond.Operator {
	case domain.OpEquals:
		return sameDay(recorded, from)
	case domain.OpBefore:
		return recorded.Before(from)
	case domain.OpAfter:
		return recorded.After(from)
	case domain.OpBetween:
		to, wholeDay, ok := parseDate(cond.Value2)
		if !ok {
			return false
		}
		if wholeDay {
			to = to.AddDate(0, 0, 1).Add(-time.Nanosecond)
		}
		return !recorded.Before(from) && !recorded.After(to)
	}
	return true
}

var dateOnlyLayouts = []string{"2006-01-02", "2006/01/02", "20060102"}

var dateTimeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
}

// parseDate accepts date-only and timestamp forms. Date-only values and
// timestamps without an offset are read in DateLocation; dateOnly reports
// whether the value named a whole calendar day.
func parseDate(s string) (t time.Time, dateOnly bool, ok bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false, false
	}
	for _, layout := range dateOnlyLayouts {
		if t, err := time.ParseInLocation(layout, s, DateLocation); err == nil {
			return t, true, true
		}
	}
	for _, layout := range dateTimeLayouts {
		if t, err := time.ParseInLocation(layout, s, DateLocation); err == nil {
			return t, false, true
		}
	}
	return time.Time{}, false, false
}

func sameDay(a, b time.Time) bool {
	ay, am, ad := a.In(DateLocation).Date()
	by, bm, bd := b.In(DateLocation).Date()
	return ay == by && am == bm && ad == bd
}
