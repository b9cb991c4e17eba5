// Package migration runs user-declared migrations against the underlying
// database, tracking which have already applied in a bookkeeping table the
// same way the entity manager tracks entity schemas.
package migration

import (
	"context"
	"database/sql"
)

// Migration is a single named, idempotent step. Name is its bookkeeping
// key: it must be unique across every migration ever registered, and once
// applied is never re-run. Engine restricts a migration to one backend
// ("sqlite", "mysql"); an empty Engine runs on every backend.
type Migration struct {
	Name   string
	Engine string
	Up     func(ctx context.Context, db *sql.DB) error
}
