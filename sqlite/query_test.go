package sqlite

import (
	"testing"

	"github.com/asaidimu/supersave/entity"
	"github.com/asaidimu/supersave/query"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func planetDef() entity.Definition {
	return entity.Definition{
		Name: "planets",
		FilterSortFields: map[string]entity.FieldKind{
			"name":    entity.FieldKindString,
			"visible": entity.FieldKindBoolean,
			"mass":    entity.FieldKindNumber,
		},
	}
}

func TestGenerateSelectSQL_ImplicitAnd(t *testing.T) {
	tr := newTranslator("planets", planetDef())
	q, err := query.Compose(func(string) bool { return true }, func(b *query.Builder) {
		b.Eq("name", "Mars").Gt("mass", 10)
	})
	require.NoError(t, err)

	sqlText, params, err := tr.GenerateSelectSQL(q)
	require.NoError(t, err)
	assert.Contains(t, sqlText, `"name" = ? AND "mass" > ?`)
	assert.Equal(t, []any{"Mars", 10}, params)
}

func TestGenerateSelectSQL_OrGroup(t *testing.T) {
	tr := newTranslator("planets", planetDef())
	mars := query.NewBuilder(nil).Eq("name", "Mars")
	venus := query.NewBuilder(nil).Eq("name", "Venus")
	q := query.NewBuilder(nil).Or(mars, venus).Build()

	sqlText, params, err := tr.GenerateSelectSQL(q)
	require.NoError(t, err)
	assert.Contains(t, sqlText, `("name" = ? OR "name" = ?)`)
	assert.Equal(t, []any{"Mars", "Venus"}, params)
}

func TestGenerateSelectSQL_NotWrapsSingle(t *testing.T) {
	tr := newTranslator("planets", planetDef())
	q := query.NewBuilder(nil).Not().Eq("visible", false).Build()

	sqlText, params, err := tr.GenerateSelectSQL(q)
	require.NoError(t, err)
	assert.Contains(t, sqlText, `NOT "visible" = ?`)
	assert.Equal(t, []any{0}, params)
}

func TestGenerateSelectSQL_EmptyInShortCircuits(t *testing.T) {
	tr := newTranslator("planets", planetDef())
	q := query.NewBuilder(nil).In("name", []any{}).Build()

	sqlText, params, err := tr.GenerateSelectSQL(q)
	require.NoError(t, err)
	assert.Contains(t, sqlText, "1 = 0")
	assert.Empty(t, params)
}

func TestGenerateSelectSQL_EqualNullBecomesIsNull(t *testing.T) {
	tr := newTranslator("planets", planetDef())
	q := query.NewBuilder(nil).Eq("name", nil).Build()

	sqlText, params, err := tr.GenerateSelectSQL(q)
	require.NoError(t, err)
	assert.Contains(t, sqlText, `"name" IS NULL`)
	assert.Empty(t, params)
}

func TestGenerateSelectSQL_LikeTranslatesWildcard(t *testing.T) {
	tr := newTranslator("planets", planetDef())
	q := query.NewBuilder(nil).Like("name", "Ma*").Build()

	sqlText, params, err := tr.GenerateSelectSQL(q)
	require.NoError(t, err)
	assert.Contains(t, sqlText, `"name" LIKE ?`)
	assert.Equal(t, []any{"Ma%"}, params)
}

func TestGenerateSelectSQL_BooleanTruthyCoercion(t *testing.T) {
	tr := newTranslator("planets", planetDef())
	q := query.NewBuilder(nil).Eq("visible", "true").Build()

	_, params, err := tr.GenerateSelectSQL(q)
	require.NoError(t, err)
	assert.Equal(t, []any{1}, params)
}

func TestGenerateSelectSQL_SortLimitOffset(t *testing.T) {
	tr := newTranslator("planets", planetDef())
	q := query.NewBuilder(nil).Sort("name", query.Asc).Limit(5).Offset(10).Build()

	sqlText, _, err := tr.GenerateSelectSQL(q)
	require.NoError(t, err)
	assert.Contains(t, sqlText, `ORDER BY "name" COLLATE NOCASE ASC`)
	assert.Contains(t, sqlText, "LIMIT 5")
	assert.Contains(t, sqlText, "OFFSET 10")
}
