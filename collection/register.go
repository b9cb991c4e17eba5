package collection

import (
	"context"

	"github.com/asaidimu/supersave/manager"
	"github.com/asaidimu/supersave/repository"
)

// Register adds a Collection's underlying entity definition to m and
// returns the resulting repository, the same way manager.AddEntity does for
// a bare entity.Definition.
func Register(ctx context.Context, m *manager.EntityManager, c Collection, opts manager.AddOptions) (repository.Repository, error) {
	return m.AddEntity(ctx, c.Definition, opts)
}
