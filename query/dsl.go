// Package query implements SuperSave's backend-neutral query model: a tree
// of predicates and logical groups plus sort/limit/offset, together with a
// fluent builder for composing it.
package query

// Operator is a comparison used by a QueryFilter.
type Operator string

const (
	OpEqual              Operator = "="
	OpGreaterThan        Operator = ">"
	OpGreaterThanOrEqual Operator = ">="
	OpLessThan           Operator = "<"
	OpLessThanOrEqual    Operator = "<="
	OpLike               Operator = "LIKE"
	OpIn                 Operator = "IN"
)

// LogicalOperator combines a group of conditions.
type LogicalOperator string

const (
	And LogicalOperator = "AND"
	Or  LogicalOperator = "OR"
	Not LogicalOperator = "NOT"
)

// SortDirection is the direction of a QuerySort.
type SortDirection string

const (
	Asc  SortDirection = "asc"
	Desc SortDirection = "desc"
)

// Condition is a node in the query tree: either a Filter (a leaf predicate)
// or a Group (a logical combination of child conditions). Exactly one of
// Filter or Group is set.
type Condition struct {
	Filter *Filter
	Group  *Group
}

// Filter is a single leaf predicate: field OP value.
type Filter struct {
	Field    string
	Operator Operator
	Value    any
}

// Group combines child conditions with a logical operator. NOT groups hold
// exactly one condition; AND/OR groups hold one or more.
type Group struct {
	Operator   LogicalOperator
	Conditions []Condition
}

// Sort orders results by Field in Direction. The first Sort in a Query's
// slice is the primary sort key.
type Sort struct {
	Field     string
	Direction SortDirection
}

// Unbounded is the sentinel Limit value meaning "no limit"; it is what
// Limit(Unbounded) sets, and what a Query built without any Limit call also
// reports, since programmatic queries without a limit return every row.
const Unbounded = -1

// Query is the fully composed, immutable result of a Builder: a condition
// tree plus sort, limit and offset.
type Query struct {
	Conditions []Condition
	Sort       []Sort
	Limit      int
	Offset     int
}

// NewQuery returns an empty query: no filters, unbounded, no offset.
func NewQuery() Query {
	return Query{Limit: Unbounded}
}
