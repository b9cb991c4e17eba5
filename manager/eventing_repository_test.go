package manager

import (
	"context"
	"testing"

	"github.com/asaidimu/supersave/entity"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEventingRepository_DelegatesReadsAndWraps(t *testing.T) {
	m := newTestManager(t)
	ctx := context.Background()

	repo, err := m.AddEntity(ctx, planetDef(), AddOptions{})
	require.NoError(t, err)

	created, err := repo.Create(ctx, entity.Entity{"name": "Venus"})
	require.NoError(t, err)
	id := entity.IDOf(created)

	updated, err := repo.Update(ctx, id, entity.Entity{"name": "Venus II"})
	require.NoError(t, err)
	assert.Equal(t, "Venus II", updated["name"])

	assert.Equal(t, "planets", repo.Definition().Name)
	assert.NotNil(t, repo.NewQuery())

	require.NoError(t, repo.DeleteUsingID(ctx, id))
	got, err := repo.GetByID(ctx, id)
	require.NoError(t, err)
	assert.Nil(t, got)
}
