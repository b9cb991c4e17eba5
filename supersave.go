// Package supersave wires an entity registry, a query builder, and a
// migration runner into a single entry point sitting between an
// application and a relational backend (SQLite or MySQL/MariaDB).
package supersave

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/asaidimu/supersave/collection"
	"github.com/asaidimu/supersave/entity"
	"github.com/asaidimu/supersave/manager"
	"github.com/asaidimu/supersave/metrics"
	"github.com/asaidimu/supersave/migration"
	"github.com/asaidimu/supersave/mysql"
	"github.com/asaidimu/supersave/repository"
	"github.com/asaidimu/supersave/sqlite"
	"go.uber.org/zap"
)

// metaTable stores the small set of settings a database was first opened
// with, so a later Open with different, incompatible settings fails loudly
// instead of silently drifting.
const metaTable = "_supersave_meta"

// Options configures a SuperSave instance.
type Options struct {
	// SkipSync bypasses schema synchronization for every AddEntity call
	// made through this instance. Tables are still created if missing.
	SkipSync bool

	// SkipMigrations bypasses the migration runner entirely.
	SkipMigrations bool

	// Migrations runs, in order, the first time each has not already been
	// recorded as applied.
	Migrations []migration.Migration

	// Prefix is prepended to every physical table name this instance
	// creates. Reopening the same database with a different Prefix is a
	// configuration error: the tables from a previous prefix would
	// otherwise silently become invisible.
	Prefix string

	// Logger receives structured logs from every layer. A nil Logger
	// installs a no-op logger.
	Logger *zap.Logger

	// Metrics receives schema-sync and record-write observations. A nil
	// Metrics disables recording; the caller mounts Metrics.Registry()
	// behind their own /metrics endpoint if they want it scraped.
	Metrics *metrics.Recorder
}

// SuperSave is the composed entry point: entity registry, query builder,
// and migration runner over one backend connection.
type SuperSave struct {
	manager  *manager.EntityManager
	engine   manager.Engine
	options  Options
	engineID string
}

// Open dispatches connectionString's scheme ("sqlite://" or "mysql://") to
// the matching backend, verifies it against any settings recorded by a
// previous Open, runs migrations, and returns a ready SuperSave instance.
func Open(ctx context.Context, connectionString string, opts Options) (*SuperSave, error) {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}

	engineID, engine, err := openEngine(connectionString, opts.Logger)
	if err != nil {
		return nil, err
	}

	if err := verifyPrefix(ctx, engine.Conn(), engineID, opts.Prefix); err != nil {
		engine.Close()
		return nil, err
	}

	m, err := manager.New(engine, opts.Logger, opts.Prefix, opts.Metrics)
	if err != nil {
		engine.Close()
		return nil, err
	}

	runner := migration.NewRunner(engine.Conn(), engineID, opts.Logger)
	if err := runner.Run(ctx, opts.Migrations, opts.SkipMigrations); err != nil {
		engine.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return &SuperSave{manager: m, engine: engine, options: opts, engineID: engineID}, nil
}

func openEngine(connectionString string, logger *zap.Logger) (string, manager.Engine, error) {
	switch {
	case strings.HasPrefix(connectionString, "sqlite://"):
		dsn := strings.TrimPrefix(connectionString, "sqlite://")
		engine, err := sqlite.Open(dsn, logger)
		if err != nil {
			return "", nil, err
		}
		return "sqlite", engine, nil

	case strings.HasPrefix(connectionString, "mysql://"):
		dsn := strings.TrimPrefix(connectionString, "mysql://")
		engine, err := mysql.Open(dsn, logger)
		if err != nil {
			return "", nil, err
		}
		return "mysql", engine, nil

	default:
		return "", nil, entity.NewConfigurationError("unrecognised connection string scheme in %q, expected sqlite:// or mysql://", connectionString)
	}
}

// verifyPrefix ensures prefix matches whatever prefix the database was
// first opened with, recording it on first use.
func verifyPrefix(ctx context.Context, db *sql.DB, engineID, prefix string) error {
	createStmt := fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (`key` TEXT PRIMARY KEY, `value` TEXT NOT NULL)", metaTable)
	if engineID == "mysql" {
		createStmt = fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (`key` VARCHAR(64) PRIMARY KEY, `value` TEXT NOT NULL)", metaTable)
	}
	if _, err := db.ExecContext(ctx, createStmt); err != nil {
		return fmt.Errorf("creating settings table: %w", err)
	}

	row := db.QueryRowContext(ctx, fmt.Sprintf("SELECT `value` FROM %s WHERE `key` = 'prefix'", metaTable))
	var recorded string
	switch err := row.Scan(&recorded); err {
	case nil:
		if recorded != prefix {
			return entity.NewConfigurationError("database was first opened with table prefix %q, cannot reopen with %q", recorded, prefix)
		}
		return nil
	case sql.ErrNoRows:
		_, err := db.ExecContext(ctx, fmt.Sprintf("INSERT INTO %s (`key`, `value`) VALUES ('prefix', ?)", metaTable), prefix)
		if err != nil {
			return fmt.Errorf("recording table prefix: %w", err)
		}
		return nil
	default:
		return fmt.Errorf("reading recorded table prefix: %w", err)
	}
}

// AddEntity registers def, using this instance's SkipSync default.
func (s *SuperSave) AddEntity(ctx context.Context, def entity.Definition) (repository.Repository, error) {
	return s.manager.AddEntity(ctx, def, manager.AddOptions{SkipSync: s.options.SkipSync})
}

// AddCollection registers c's underlying entity definition, using this
// instance's SkipSync default.
func (s *SuperSave) AddCollection(ctx context.Context, c collection.Collection) (repository.Repository, error) {
	return collection.Register(ctx, s.manager, c, manager.AddOptions{SkipSync: s.options.SkipSync})
}

// GetRepository returns the repository registered for (name, namespace).
func (s *SuperSave) GetRepository(name, namespace string) (repository.Repository, bool) {
	return s.manager.GetRepository(name, namespace)
}

// GetConnection exposes the underlying connection pool.
func (s *SuperSave) GetConnection() *sql.DB {
	return s.manager.GetConnection()
}

// Close releases the underlying connection pool.
func (s *SuperSave) Close() error {
	return s.manager.Close()
}
