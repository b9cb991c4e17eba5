package repository

import (
	"context"
	"testing"

	"github.com/asaidimu/supersave/entity"
	"github.com/asaidimu/supersave/query"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeRepo is a minimal in-memory Repository used to exercise relation
// expansion without standing up a real engine.
type fakeRepo struct {
	def  entity.Definition
	rows map[string]entity.Entity
}

func (f *fakeRepo) Definition() entity.Definition { return f.def }
func (f *fakeRepo) NewQuery() *query.Builder       { return query.NewBuilder(nil) }
func (f *fakeRepo) GetByID(ctx context.Context, id string) (entity.Entity, error) {
	if row, ok := f.rows[id]; ok {
		return row, nil
	}
	return nil, nil
}
func (f *fakeRepo) GetByIDs(ctx context.Context, ids []string) ([]entity.Entity, error) {
	var out []entity.Entity
	for _, id := range ids {
		if row, ok := f.rows[id]; ok {
			out = append(out, row)
		}
	}
	return out, nil
}
func (f *fakeRepo) GetAll(ctx context.Context) ([]entity.Entity, error) { return nil, nil }
func (f *fakeRepo) GetByQuery(ctx context.Context, q query.Query) ([]entity.Entity, error) {
	return nil, nil
}
func (f *fakeRepo) Create(ctx context.Context, input entity.Entity) (entity.Entity, error) {
	return nil, nil
}
func (f *fakeRepo) Update(ctx context.Context, id string, input entity.Entity) (entity.Entity, error) {
	return nil, nil
}
func (f *fakeRepo) DeleteUsingID(ctx context.Context, id string) error { return nil }

type fakeLookup struct {
	repos map[string]Repository
}

func (l *fakeLookup) Get(name, namespace string) (Repository, bool) {
	r, ok := l.repos[name]
	return r, ok
}

func planetDef() entity.Definition {
	return entity.Definition{Name: "moons", Relations: []entity.Relation{{Field: "planet", Entity: "planets"}}}
}

func TestSimplifyRelations_StringShortcut(t *testing.T) {
	base := NewBase(planetDef(), nil)
	out := base.SimplifyRelations(entity.Entity{"name": "Luna", "planet": "earth-id"})
	assert.Equal(t, map[string]any{"id": "earth-id"}, out["planet"])
	assert.Equal(t, "Luna", out["name"])
}

func TestSimplifyRelations_MultipleAcceptsStringIDs(t *testing.T) {
	def := entity.Definition{Relations: []entity.Relation{{Field: "moons", Entity: "moons", Multiple: true}}}
	base := NewBase(def, nil)
	out := base.SimplifyRelations(entity.Entity{"moons": []any{"a", "b"}})
	assert.Equal(t, []any{
		map[string]any{"id": "a"},
		map[string]any{"id": "b"},
	}, out["moons"])
}

func TestFillInRelations_ExpandsSingle(t *testing.T) {
	earth := entity.Entity{"id": "earth-id", "name": "Earth"}
	lookup := &fakeLookup{repos: map[string]Repository{
		"planets": &fakeRepo{rows: map[string]entity.Entity{"earth-id": earth}},
	}}
	base := NewBase(planetDef(), lookup)

	out, err := base.FillInRelations(context.Background(), entity.Entity{
		"name":   "Luna",
		"planet": map[string]any{"id": "earth-id"},
	})
	require.NoError(t, err)
	assert.Equal(t, earth, out["planet"])
}

func TestFillInRelations_MultiplePreservesOrderDropsMissing(t *testing.T) {
	def := entity.Definition{Relations: []entity.Relation{{Field: "moons", Entity: "moons", Multiple: true}}}
	a := entity.Entity{"id": "a", "name": "Deimos"}
	b := entity.Entity{"id": "b", "name": "Phobos"}
	lookup := &fakeLookup{repos: map[string]Repository{
		"moons": &fakeRepo{rows: map[string]entity.Entity{"a": a, "b": b}},
	}}
	base := NewBase(def, lookup)

	out, err := base.FillInRelations(context.Background(), entity.Entity{
		"moons": []any{
			map[string]any{"id": "b"},
			map[string]any{"id": "missing"},
			map[string]any{"id": "a"},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, []entity.Entity{b, a}, out["moons"])
}

func TestHydrate_MergesTemplateAndOverlaysID(t *testing.T) {
	def := entity.Definition{Template: map[string]any{"visible": true}}
	base := NewBase(def, &fakeLookup{repos: map[string]Repository{}})

	out, err := base.Hydrate(context.Background(), "p1", `{"name":"Mars","visible":false}`)
	require.NoError(t, err)
	assert.Equal(t, "p1", out["id"])
	assert.Equal(t, "Mars", out["name"])
	assert.Equal(t, false, out["visible"])
}

func TestMergeTemplate_InputWinsOverTemplate(t *testing.T) {
	def := entity.Definition{Template: map[string]any{"visible": true, "mass": 0.0}}
	base := NewBase(def, nil)

	out := base.MergeTemplate(entity.Entity{"name": "Mars", "visible": false})
	assert.Equal(t, "Mars", out["name"])
	assert.Equal(t, false, out["visible"])
	assert.Equal(t, 0.0, out["mass"])
}

func TestEncodeContents_StripsID(t *testing.T) {
	raw, err := EncodeContents(entity.Entity{"id": "x", "name": "Mars"})
	require.NoError(t, err)
	assert.JSONEq(t, `{"name":"Mars"}`, string(raw))
}
