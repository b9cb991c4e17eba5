package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/asaidimu/supersave/entity"
	"github.com/asaidimu/supersave/repository"
	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"
)

// Engine opens and owns a SQLite connection pool, and satisfies
// manager.Engine structurally so the entity manager never has to import
// this package by name.
type Engine struct {
	db     *sql.DB
	sync   *Synchronizer
	logger *zap.Logger
}

// Open opens a SQLite database at dsn (a file path, or ":memory:"). logger
// may be nil.
func Open(dsn string, logger *zap.Logger) (*Engine, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite database %q: %w", dsn, err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("connecting to sqlite database %q: %w", dsn, err)
	}
	return &Engine{db: db, sync: NewSynchronizer(db), logger: logger}, nil
}

func (e *Engine) Repository(def entity.Definition, table string, lookup repository.Lookup) repository.Repository {
	return NewRepository(e.db, table, def, lookup, e.logger)
}

func (e *Engine) EnsureTable(ctx context.Context, table string) error {
	return e.sync.CreateTableIfNotExists(ctx, table)
}

func (e *Engine) Sync(ctx context.Context, def entity.Definition, table string) error {
	return e.sync.Sync(ctx, def, table)
}

func (e *Engine) Conn() *sql.DB { return e.db }

func (e *Engine) Close() error { return e.db.Close() }
