// Package repository defines the engine-neutral repository contract and the
// relation/hydration logic shared by every concrete engine implementation.
package repository

import (
	"context"

	"github.com/asaidimu/supersave/entity"
	"github.com/asaidimu/supersave/query"
)

// Repository is the capability every engine (SQLite, MySQL) must realise. It
// is the programmatic surface consumers get back from EntityManager.AddEntity.
type Repository interface {
	Definition() entity.Definition
	// NewQuery returns a builder bound to this repository's filterSortFields.
	// Callers that build with it directly, rather than through query.Compose,
	// must call Builder.Validate before Build to catch an unknown field.
	NewQuery() *query.Builder

	GetByID(ctx context.Context, id string) (entity.Entity, error)
	GetByIDs(ctx context.Context, ids []string) ([]entity.Entity, error)
	GetAll(ctx context.Context) ([]entity.Entity, error)
	GetByQuery(ctx context.Context, q query.Query) ([]entity.Entity, error)

	Create(ctx context.Context, input entity.Entity) (entity.Entity, error)
	Update(ctx context.Context, id string, input entity.Entity) (entity.Entity, error)
	DeleteUsingID(ctx context.Context, id string) error
}

// Synchronizer reconciles a table's physical shape with an entity's
// declared definition: legacy contents migration, generated-column
// recreation, incremental index maintenance.
type Synchronizer interface {
	Sync(ctx context.Context, def entity.Definition, table string) error
}

// Lookup resolves the repository registered for an (entity name, namespace)
// pair, the way the entity manager's registry does. Relation expansion uses
// it to find the repository a relation points at without depending on the
// manager package directly (avoiding an import cycle).
type Lookup interface {
	Get(name, namespace string) (Repository, bool)
}
