package query

import (
	"github.com/asaidimu/supersave/entity"
	"go.uber.org/multierr"
)

// FieldValidator reports whether field is filterable/sortable for the
// collection a Builder was created for. Repositories supply one bound to
// their entity's filterSortFields (plus the implicit "id").
type FieldValidator func(field string) bool

// Builder provides the fluent API described in the specification:
// eq/gt/gte/lt/lte/like/in for predicates, and/or/not for grouping, sort,
// limit and offset for the tail of the query. An unknown field does not
// abort the chain: it is recorded and surfaces from Validate, the same way
// the query builder this one is modeled on accumulates validation errors
// instead of failing a call mid-chain.
type Builder struct {
	validate FieldValidator
	errs     []error

	conditions []Condition
	pending    *Group
	pendingNot bool

	sorts  []Sort
	limit  int
	offset int
}

// NewBuilder creates a builder that validates fields with validate. A nil
// validate accepts every field name.
func NewBuilder(validate FieldValidator) *Builder {
	return &Builder{validate: validate, limit: Unbounded}
}

// Compose runs fn against a fresh builder for validate, then checks
// Validate before returning the built Query, so an unknown field surfaces
// as a normal error return instead of a partially built query.
func Compose(validate FieldValidator, fn func(*Builder)) (Query, error) {
	b := NewBuilder(validate)
	fn(b)
	if err := b.Validate(); err != nil {
		return Query{}, err
	}
	return b.Build(), nil
}

// Validate reports every unknown field accumulated so far, combined into a
// single error, or nil if the builder is clean. Callers building a query
// from a Builder returned by Repository.NewQuery directly (without
// Compose) should call this before using the result.
func (b *Builder) Validate() error {
	return multierr.Combine(b.errs...)
}

func (b *Builder) checkField(field string) {
	if field == "id" {
		return
	}
	if b.validate != nil && !b.validate(field) {
		b.errs = append(b.errs, entity.NewConfigurationError("field %q is not a filterSortField on this collection", field))
	}
}

func (b *Builder) addCondition(field string, op Operator, value any) *Builder {
	b.checkField(field)
	cond := Condition{Filter: &Filter{Field: field, Operator: op, Value: value}}
	b.append(cond)
	return b
}

// append routes a freshly built condition to whichever context is currently
// open: a pending NOT slot, a pending (unfinalized) AND/OR group, or the
// top level.
func (b *Builder) append(cond Condition) {
	if b.pendingNot {
		group := &Group{Operator: Not, Conditions: []Condition{cond}}
		b.pendingNot = false
		b.appendToLevel(Condition{Group: group})
		return
	}
	if b.pending != nil {
		b.pending.Conditions = append(b.pending.Conditions, cond)
		return
	}
	b.conditions = append(b.conditions, cond)
}

// appendToLevel places a finished group/condition at the top level, or
// inside a currently pending group if one is open. Not() closes any pending
// group before opening its slot, so a NOT group built from a predicate
// always lands at the top level, never inside an earlier no-args And/Or.
func (b *Builder) appendToLevel(cond Condition) {
	if b.pending != nil {
		b.pending.Conditions = append(b.pending.Conditions, cond)
		return
	}
	b.conditions = append(b.conditions, cond)
}

// Eq adds an equality predicate. A nil value emits IS NULL at translation time.
func (b *Builder) Eq(field string, value any) *Builder { return b.addCondition(field, OpEqual, value) }

// Gt adds a greater-than predicate.
func (b *Builder) Gt(field string, value any) *Builder { return b.addCondition(field, OpGreaterThan, value) }

// Gte adds a greater-than-or-equal predicate.
func (b *Builder) Gte(field string, value any) *Builder {
	return b.addCondition(field, OpGreaterThanOrEqual, value)
}

// Lt adds a less-than predicate.
func (b *Builder) Lt(field string, value any) *Builder { return b.addCondition(field, OpLessThan, value) }

// Lte adds a less-than-or-equal predicate.
func (b *Builder) Lte(field string, value any) *Builder {
	return b.addCondition(field, OpLessThanOrEqual, value)
}

// Like adds a predicate whose value may contain shell-style `*` wildcards,
// translated to SQL `%` by the engine query generator.
func (b *Builder) Like(field string, value string) *Builder { return b.addCondition(field, OpLike, value) }

// In adds a membership predicate. An empty values slice matches nothing.
func (b *Builder) In(field string, values []any) *Builder { return b.addCondition(field, OpIn, values) }

// And, with no arguments, opens a pending AND group at the current level:
// subsequent predicates join that group until another group is opened or
// Build/GetWhere finalizes it. With arguments, it builds a finalized group
// out of each sub-builder's top-level conditions.
func (b *Builder) And(subqueries ...*Builder) *Builder { return b.group(And, subqueries) }

// Or behaves like And but combines with OR.
func (b *Builder) Or(subqueries ...*Builder) *Builder { return b.group(Or, subqueries) }

func (b *Builder) group(op LogicalOperator, subqueries []*Builder) *Builder {
	b.closePending()
	if len(subqueries) == 0 {
		b.pending = &Group{Operator: op}
		return b
	}
	var flattened []Condition
	for _, sub := range subqueries {
		flattened = append(flattened, sub.conditions...)
	}
	b.append(Condition{Group: &Group{Operator: op, Conditions: flattened}})
	return b
}

// Not opens a single-slot group: the very next predicate becomes its sole,
// negated child. To negate a composite condition, build it as a sub-query
// and pass it to And/Or instead.
func (b *Builder) Not() *Builder {
	b.closePending()
	b.pendingNot = true
	return b
}

// closePending finalizes any open (no-args And/Or) group by folding it into
// the level above, so that opening a new group or calling Build never loses
// conditions accumulated so far.
func (b *Builder) closePending() {
	if b.pending == nil {
		return
	}
	group := b.pending
	b.pending = nil
	if len(group.Conditions) == 0 {
		return
	}
	b.conditions = append(b.conditions, Condition{Group: group})
}

// Sort appends a sort key; the first call is the primary sort.
func (b *Builder) Sort(field string, direction SortDirection) *Builder {
	b.checkField(field)
	b.sorts = append(b.sorts, Sort{Field: field, Direction: direction})
	return b
}

// Limit caps the number of rows returned. Pass query.Unbounded to remove any
// previously set limit.
func (b *Builder) Limit(n int) *Builder {
	b.limit = n
	return b
}

// Offset sets the number of rows to skip.
func (b *Builder) Offset(n int) *Builder {
	b.offset = n
	return b
}

// GetWhere finalizes any pending group and returns the top-level condition
// list, joined with implicit AND by the SQL translator.
func (b *Builder) GetWhere() []Condition {
	b.closePending()
	return b.conditions
}

// Build finalizes the builder into an immutable Query.
func (b *Builder) Build() Query {
	return Query{
		Conditions: b.GetWhere(),
		Sort:       append([]Sort(nil), b.sorts...),
		Limit:      b.limit,
		Offset:     b.offset,
	}
}
