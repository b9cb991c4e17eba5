package manager

import (
	"context"
	"testing"

	"github.com/asaidimu/supersave/entity"
	"github.com/asaidimu/supersave/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestManager(t *testing.T) *EntityManager {
	t.Helper()
	engine, err := sqlite.Open("file::memory:?cache=shared", nil)
	require.NoError(t, err)
	t.Cleanup(func() { engine.Close() })

	m, err := New(engine, nil, "", nil)
	require.NoError(t, err)
	return m
}

func planetDef() entity.Definition {
	return entity.Definition{
		Name:             "planets",
		FilterSortFields: map[string]entity.FieldKind{"name": entity.FieldKindString},
	}
}

func TestAddEntity_CreatesAndCachesRepository(t *testing.T) {
	m := newTestManager(t)
	ctx := context.Background()

	repo1, err := m.AddEntity(ctx, planetDef(), AddOptions{})
	require.NoError(t, err)
	require.NotNil(t, repo1)

	repo2, err := m.AddEntity(ctx, planetDef(), AddOptions{})
	require.NoError(t, err)
	assert.Same(t, repo1, repo2)
}

func TestAddEntity_RoundTripsThroughRepository(t *testing.T) {
	m := newTestManager(t)
	ctx := context.Background()

	repo, err := m.AddEntity(ctx, planetDef(), AddOptions{})
	require.NoError(t, err)

	created, err := repo.Create(ctx, entity.Entity{"name": "Mars"})
	require.NoError(t, err)

	fetched, err := repo.GetByID(ctx, entity.IDOf(created))
	require.NoError(t, err)
	assert.Equal(t, "Mars", fetched["name"])
}

func TestGetRepository_UnknownReturnsFalse(t *testing.T) {
	m := newTestManager(t)
	_, ok := m.GetRepository("nope", "")
	assert.False(t, ok)
}

func TestGetRepository_ResolvesByNamespaceAndName(t *testing.T) {
	m := newTestManager(t)
	ctx := context.Background()
	def := entity.Definition{Name: "planets", Namespace: "solar"}

	_, err := m.AddEntity(ctx, def, AddOptions{})
	require.NoError(t, err)

	repo, ok := m.GetRepository("planets", "solar")
	assert.True(t, ok)
	assert.Equal(t, "solar_planets", repo.Definition().TableName())
}
