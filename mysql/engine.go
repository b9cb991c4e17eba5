package mysql

import (
	"context"
	"database/sql"
	"fmt"

	mysqldriver "github.com/go-sql-driver/mysql"

	"github.com/asaidimu/supersave/entity"
	"github.com/asaidimu/supersave/repository"
	"go.uber.org/zap"
)

// Engine opens and owns a MySQL/MariaDB connection pool, and satisfies
// manager.Engine structurally so the entity manager never has to import
// this package by name.
type Engine struct {
	db     *sql.DB
	sync   *Synchronizer
	logger *zap.Logger
}

// Open opens a MySQL/MariaDB database at dsn, a standard
// github.com/go-sql-driver/mysql data source name (e.g.
// "user:pass@tcp(127.0.0.1:3306)/dbname?parseTime=true"). logger may be
// nil. The database name is parsed out of dsn to scope the synchronizer's
// INFORMATION_SCHEMA queries.
func Open(dsn string, logger *zap.Logger) (*Engine, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	cfg, err := mysqldriver.ParseDSN(dsn)
	if err != nil {
		return nil, fmt.Errorf("parsing mysql dsn: %w", err)
	}
	if cfg.DBName == "" {
		return nil, fmt.Errorf("mysql dsn must select a database")
	}

	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening mysql database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("connecting to mysql database %q: %w", cfg.DBName, err)
	}
	return &Engine{db: db, sync: NewSynchronizer(db, cfg.DBName), logger: logger}, nil
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
