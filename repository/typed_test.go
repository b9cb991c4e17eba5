package repository

import (
	"context"
	"testing"

	"github.com/asaidimu/supersave/entity"
	"github.com/asaidimu/supersave/query"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// widget is an application-side struct standing in for a hand-rolled
// entity.Entity map.
type widget struct {
	ID    string `json:"id,omitempty"`
	Name  string `json:"name"`
	Price int    `json:"price"`
}

// storeRepo is a minimal in-memory Repository that actually stores rows, so
// typed helpers can be exercised round-trip.
type storeRepo struct {
	def  entity.Definition
	rows map[string]entity.Entity
	next int
}

func (s *storeRepo) Definition() entity.Definition { return s.def }
func (s *storeRepo) NewQuery() *query.Builder {
	return query.NewBuilder(func(field string) bool {
		_, ok := s.def.FilterSortFields[field]
		return ok
	})
}
func (s *storeRepo) GetByID(ctx context.Context, id string) (entity.Entity, error) {
	return s.rows[id], nil
}
func (s *storeRepo) GetByIDs(ctx context.Context, ids []string) ([]entity.Entity, error) {
	return nil, nil
}
func (s *storeRepo) GetAll(ctx context.Context) ([]entity.Entity, error) { return nil, nil }
func (s *storeRepo) GetByQuery(ctx context.Context, q query.Query) ([]entity.Entity, error) {
	out := make([]entity.Entity, 0, len(s.rows))
	for _, row := range s.rows {
		out = append(out, row)
	}
	return out, nil
}
func (s *storeRepo) Create(ctx context.Context, input entity.Entity) (entity.Entity, error) {
	s.next++
	id := "w" + string(rune('0'+s.next))
	row := entity.Entity{}
	for k, v := range input {
		row[k] = v
	}
	row["id"] = id
	s.rows[id] = row
	return row, nil
}
func (s *storeRepo) Update(ctx context.Context, id string, input entity.Entity) (entity.Entity, error) {
	row := entity.Entity{}
	for k, v := range input {
		row[k] = v
	}
	row["id"] = id
	s.rows[id] = row
	return row, nil
}
func (s *storeRepo) DeleteUsingID(ctx context.Context, id string) error {
	delete(s.rows, id)
	return nil
}

func TestCreateTyped_RoundTripsThroughEntity(t *testing.T) {
	repo := &storeRepo{rows: map[string]entity.Entity{}}

	created, err := CreateTyped(context.Background(), repo, widget{Name: "gizmo", Price: 5})
	require.NoError(t, err)
	assert.Equal(t, "gizmo", created.Name)
	assert.NotEmpty(t, created.ID)
}

func TestGetByIDTyped_UnmarshalsStoredEntity(t *testing.T) {
	repo := &storeRepo{rows: map[string]entity.Entity{
		"w1": {"id": "w1", "name": "sprocket", "price": 3},
	}}

	got, err := GetByIDTyped[widget](context.Background(), repo, "w1")
	require.NoError(t, err)
	assert.Equal(t, "sprocket", got.Name)
	assert.Equal(t, 3, got.Price)
}

func TestUpdateTyped_RoundTripsThroughEntity(t *testing.T) {
	repo := &storeRepo{rows: map[string]entity.Entity{
		"w1": {"id": "w1", "name": "sprocket", "price": 3},
	}}

	updated, err := UpdateTyped(context.Background(), repo, "w1", widget{Name: "sprocket", Price: 9})
	require.NoError(t, err)
	assert.Equal(t, 9, updated.Price)
}

func TestGetByQueryTyped_UnmarshalsEveryRow(t *testing.T) {
	repo := &storeRepo{rows: map[string]entity.Entity{
		"w1": {"id": "w1", "name": "a", "price": 1},
		"w2": {"id": "w2", "name": "b", "price": 2},
	}}

	got, err := GetByQueryTyped[widget](context.Background(), repo, query.Query{})
	require.NoError(t, err)
	assert.Len(t, got, 2)
}
