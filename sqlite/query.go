// Package sqlite implements the SQLite engine: a repository backed by
// database/sql and github.com/mattn/go-sqlite3, a query-tree translator, and
// the schema synchronizer that keeps a table's physical shape in step with
// an entity's declared filterSortFields.
package sqlite

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/asaidimu/supersave/entity"
	"github.com/asaidimu/supersave/query"
)

// quoteIdentifier quotes a SQLite identifier, doubling any embedded quote.
func quoteIdentifier(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}

// translator turns a backend-neutral query.Query into SQLite SQL and its
// bound parameters. It consults def only to know which filterSortFields are
// booleans, for 0/1 coercion. It does not check field validity: the
// query.Builder records unknown fields, and they are rejected only where
// Builder.Validate or query.Compose is called.
type translator struct {
	table string
	def   entity.Definition
}

func newTranslator(table string, def entity.Definition) *translator {
	return &translator{table: table, def: def}
}

// GenerateSelectSQL builds a full SELECT statement for q.
func (t *translator) GenerateSelectSQL(q query.Query) (string, []any, error) {
	var sb strings.Builder
	var params []any

	sb.WriteString(`SELECT "id", "contents" FROM `)
	sb.WriteString(quoteIdentifier(t.table))

	whereSQL, whereParams, err := t.buildWhereTopLevel(q.Conditions)
	if err != nil {
		return "", nil, err
	}
	if whereSQL != "" {
		sb.WriteString(" WHERE ")
		sb.WriteString(whereSQL)
		params = append(params, whereParams...)
	}

	if len(q.Sort) > 0 {
		orderBy := make([]string, len(q.Sort))
		for i, s := range q.Sort {
			dir := "ASC"
			if s.Direction == query.Desc {
				dir = "DESC"
			}
			orderBy[i] = fmt.Sprintf("%s COLLATE NOCASE %s", quoteIdentifier(s.Field), dir)
		}
		sb.WriteString(" ORDER BY ")
		sb.WriteString(strings.Join(orderBy, ", "))
	}

	if q.Limit != query.Unbounded {
		sb.WriteString(" LIMIT ")
		sb.WriteString(strconv.Itoa(q.Limit))
	} else if q.Offset > 0 {
		// SQLite only accepts OFFSET as part of a LIMIT clause; LIMIT -1
		// means no upper bound.
		sb.WriteString(" LIMIT -1")
	}
	if q.Offset > 0 {
		sb.WriteString(" OFFSET ")
		sb.WriteString(strconv.Itoa(q.Offset))
	}

	return sb.String(), params, nil
}

// buildWhereTopLevel joins the query's top-level conditions with an implicit
// AND.
func (t *translator) buildWhereTopLevel(conditions []query.Condition) (string, []any, error) {
	var clauses []string
	var params []any
	for _, cond := range conditions {
		clause, p, err := t.buildCondition(cond)
		if err != nil {
			return "", nil, err
		}
		if clause == "" {
			continue
		}
		clauses = append(clauses, clause)
		params = append(params, p...)
	}
	return strings.Join(clauses, " AND "), params, nil
}

func (t *translator) buildCondition(cond query.Condition) (string, []any, error) {
	if cond.Filter != nil {
		return t.buildFilter(cond.Filter)
	}
	if cond.Group != nil {
		return t.buildGroup(cond.Group)
	}
	return "", nil, fmt.Errorf("query condition has neither filter nor group set")
}

func (t *translator) buildGroup(g *query.Group) (string, []any, error) {
	if g.Operator == query.Not {
		if len(g.Conditions) != 1 {
			return "", nil, fmt.Errorf("NOT group must hold exactly one condition, got %d", len(g.Conditions))
		}
		inner, params, err := t.buildCondition(g.Conditions[0])
		if err != nil {
			return "", nil, err
		}
		if inner == "" {
			return "", nil, nil
		}
		return "NOT " + inner, params, nil
	}

	var clauses []string
	var params []any
	for _, cond := range g.Conditions {
		clause, p, err := t.buildCondition(cond)
		if err != nil {
			return "", nil, err
		}
		if clause == "" {
			continue
		}
		clauses = append(clauses, clause)
		params = append(params, p...)
	}
	if len(clauses) == 0 {
		return "", nil, nil
	}

	joiner := " AND "
	if g.Operator == query.Or {
		joiner = " OR "
	}
	return "(" + strings.Join(clauses, joiner) + ")", params, nil
}

func (t *translator) buildFilter(f *query.Filter) (string, []any, error) {
	col := quoteIdentifier(f.Field)

	if f.Operator == query.OpEqual && f.Value == nil {
		return col + " IS NULL", nil, nil
	}

	switch f.Operator {
	case query.OpIn:
		values, _ := f.Value.([]any)
		if len(values) == 0 {
			return "1 = 0", nil, nil
		}
		placeholders := make([]string, len(values))
		params := make([]any, len(values))
		for i, v := range values {
			placeholders[i] = "?"
			params[i] = t.coerce(f.Field, v)
		}
		return fmt.Sprintf("%s IN (%s)", col, strings.Join(placeholders, ", ")), params, nil

	case query.OpLike:
		pattern, _ := f.Value.(string)
		pattern = strings.ReplaceAll(pattern, "*", "%")
		return col + " LIKE ?", []any{pattern}, nil

	case query.OpEqual:
		return col + " = ?", []any{t.coerce(f.Field, f.Value)}, nil
	case query.OpGreaterThan:
		return col + " > ?", []any{t.coerce(f.Field, f.Value)}, nil
	case query.OpGreaterThanOrEqual:
		return col + " >= ?", []any{t.coerce(f.Field, f.Value)}, nil
	case query.OpLessThan:
		return col + " < ?", []any{t.coerce(f.Field, f.Value)}, nil
	case query.OpLessThanOrEqual:
		return col + " <= ?", []any{t.coerce(f.Field, f.Value)}, nil
	default:
		return "", nil, fmt.Errorf("unsupported operator %q", f.Operator)
	}
}

// coerce applies boolean truthy coercion to 0/1 for filterSortFields typed
// boolean; every other field passes through unchanged.
func (t *translator) coerce(field string, value any) any {
	if kind, ok := t.def.FilterSortFields[field]; ok && kind == entity.FieldKindBoolean {
		if isTruthy(value) {
			return 1
		}
		return 0
	}
	return value
}

func isTruthy(value any) bool {
	switch v := value.(type) {
	case bool:
		return v
	case string:
		return v == "true" || v == "1"
	case int:
		return v == 1
	case int64:
		return v == 1
	case float64:
		return v == 1
	default:
		return false
	}
}
