package migration

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/asaidimu/supersave/entity"
	"go.uber.org/zap"
)

// bookkeepingTable records every migration name that has already run.
const bookkeepingTable = "_supersave_migrations"

// Runner applies a declared, ordered list of migrations against db,
// skipping any already recorded in the bookkeeping table and any scoped to
// a different engine than engineName.
type Runner struct {
	db         *sql.DB
	engineName string
	logger     *zap.Logger
}

// NewRunner builds a Runner for db. engineName identifies the active
// backend ("sqlite", "mysql"), used to filter engine-scoped migrations.
// logger may be nil.
func NewRunner(db *sql.DB, engineName string, logger *zap.Logger) *Runner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Runner{db: db, engineName: engineName, logger: logger}
}

// Run applies migrations in order. skip, when true, bypasses the whole run
// (including bookkeeping table creation) so a caller can opt entirely out
// of migrations for a given startup. Duplicate migration names are a
// configuration error, checked before anything is applied.
func (r *Runner) Run(ctx context.Context, migrations []Migration, skip bool) error {
	if skip {
		return nil
	}
	if err := validateNames(migrations); err != nil {
		return err
	}
	if err := r.ensureBookkeepingTable(ctx); err != nil {
		return err
	}

	for _, m := range migrations {
		if m.Engine != "" && m.Engine != r.engineName {
			continue
		}

		applied, err := r.alreadyApplied(ctx, m.Name)
		if err != nil {
			return err
		}
		if applied {
			continue
		}

		r.logger.Info("applying migration", zap.String("name", m.Name))
		if err := m.Up(ctx, r.db); err != nil {
			return fmt.Errorf("migration %q failed: %w", m.Name, err)
		}
		if err := r.recordApplied(ctx, m.Name); err != nil {
			return err
		}
	}

	return nil
}

func validateNames(migrations []Migration) error {
	seen := make(map[string]struct{}, len(migrations))
	for _, m := range migrations {
		if m.Name == "" {
			return entity.NewConfigurationError("migration has an empty name")
		}
		if _, ok := seen[m.Name]; ok {
			return entity.NewConfigurationError("migration name %q is registered more than once", m.Name)
		}
		seen[m.Name] = struct{}{}
	}
	return nil
}

func (r *Runner) ensureBookkeepingTable(ctx context.Context) error {
	_, err := r.db.ExecContext(ctx, fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (`name` VARCHAR(255) PRIMARY KEY)", bookkeepingTable))
	if err != nil {
		return fmt.Errorf("creating migration bookkeeping table: %w", err)
	}
	return nil
}

func (r *Runner) alreadyApplied(ctx context.Context, name string) (bool, error) {
	row := r.db.QueryRowContext(ctx, fmt.Sprintf("SELECT `name` FROM %s WHERE `name` = ?", bookkeepingTable), name)
	var got string
	if err := row.Scan(&got); err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, fmt.Errorf("checking migration %q: %w", name, err)
	}
	return true, nil
}

func (r *Runner) recordApplied(ctx context.Context, name string) error {
	_, err := r.db.ExecContext(ctx, fmt.Sprintf("INSERT INTO %s (`name`) VALUES (?)", bookkeepingTable), name)
	if err != nil {
		return fmt.Errorf("recording migration %q as applied: %w", name, err)
	}
	return nil
}
