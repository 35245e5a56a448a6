/*
 * Copyright © 2025 Suparena Software Inc., All rights reserved.
 */

package storagemodels

// IDField is the wire name of the document identifier.
const IDField = "_id"

// Document is implemented by every entity persisted through a DataStore.
type Document interface {
	// DocumentID returns the hex identifier, or "" if none was assigned yet.
	DocumentID() string
	// AssignID sets the identifier from its hex form.
	AssignID(id string) error
}

// Operator selects how a Condition compares a field with its value.
type Operator string

const (
	// OpEq matches equal values. For array fields it matches when any element is equal,
	// the way MongoDB evaluates {field: value}.
	OpEq Operator = "eq"
	// OpContains matches array fields holding the value.
	OpContains Operator = "contains"
)

// Condition is a single field-value match expression.
type Condition struct {
	Field string
	Op    Operator
	Value any
}

// Filter is a conjunction of conditions. An empty Filter matches every document.
type Filter []Condition

// Eq returns an equality condition.
func Eq(field string, value any) Condition {
	return Condition{Field: field, Op: OpEq, Value: value}
}

// Contains returns an array membership condition.
func Contains(field string, value any) Condition {
	return Condition{Field: field, Op: OpContains, Value: value}
}

// ByID returns a filter selecting the document with the given hex identifier.
func ByID(id string) Filter {
	return Filter{Eq(IDField, id)}
}

// SortField orders query results by one field.
type SortField struct {
	Field      string
	Descending bool
}

// Query describes a filtered, sorted, limited and projected read.
type Query struct {
	// Filter selects documents.
	Filter Filter
	// Sort keys in precedence order.
	Sort []SortField
	// Limit caps the number of results; zero or less means no limit.
	Limit int64
	// Exclude lists fields omitted from results; they decode as zero values.
	Exclude []string
}

// HasLimit reports whether the query caps its result count.
func (q *Query) HasLimit() bool {
	return q != nil && q.Limit > 0
}

// DeleteResult acknowledges a bulk delete.
type DeleteResult struct {
	Acknowledged bool  `json:"acknowledged"`
	DeletedCount int64 `json:"deletedCount"`
}
