// Package domain holds the customer and saved search list types of the
// memorial CRM.
//
// RawRecord is a customer document exactly as stored, in any of the three
// generations of field layout. Customer is the canonical view derived from
// it by datanorm; only Customer is projected into the search index or
// evaluated against a list. FilterCondition, FilterConditionGroup and
// SavedSearchList describe list expressions: groups are ANDed, conditions
// inside a group are ORed.
//
// JSON tags follow the camelCase keys already present in stored documents,
// so field names here must not be renamed without a data migration. The
// package imports nothing from internal/.
package domain
