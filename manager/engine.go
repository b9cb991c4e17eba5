// Package manager implements the entity registry: it turns entity
// definitions into synchronized tables and cached repositories, dispatching
// to whichever backend engine the connection string named.
package manager

import (
	"context"
	"database/sql"

	"github.com/asaidimu/supersave/entity"
	"github.com/asaidimu/supersave/repository"
)

// Engine is the capability a concrete backend (sqlite, mysql) provides to
// the manager. Backends satisfy this structurally; the manager never
// imports them directly, so adding a new backend never touches this
// package.
type Engine interface {
	// Repository builds the CRUD repository for def backed by table,
	// resolving relations through lookup.
	Repository(def entity.Definition, table string, lookup repository.Lookup) repository.Repository

	// EnsureTable creates table with its minimal shape if it does not
	// already exist.
	EnsureTable(ctx context.Context, table string) error

	// Sync reconciles table's generated columns and indexes with def.
	Sync(ctx context.Context, def entity.Definition, table string) error

	// Conn exposes the underlying pool for migrations and diagnostics.
	Conn() *sql.DB

	// Close releases the underlying connection pool.
	Close() error
}
