package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/asaidimu/supersave/entity"
	"github.com/asaidimu/supersave/query"
	"github.com/asaidimu/supersave/repository"
	"go.uber.org/zap"
)

// dbRunner abstracts the common methods of *sql.DB and *sql.Tx so the same
// repository code serves both transactional and non-transactional calls.
type dbRunner interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Repository is the SQLite-backed implementation of repository.Repository.
// It embeds repository.Base for relation projection/expansion and layers
// CRUD against database/sql on top.
type Repository struct {
	repository.Base

	db     dbRunner
	table  string
	logger *zap.Logger
	trans  *translator
}

var _ repository.Repository = (*Repository)(nil)

// NewRepository builds a Repository for def, storing rows in table over db.
// lookup resolves other repositories for relation expansion; logger may be
// nil, in which case a no-op logger is used.
func NewRepository(db dbRunner, table string, def entity.Definition, lookup repository.Lookup, logger *zap.Logger) *Repository {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Repository{
		Base:   repository.NewBase(def, lookup),
		db:     db,
		table:  table,
		logger: logger,
		trans:  newTranslator(table, def),
	}
}

func (r *Repository) Definition() entity.Definition { return r.Base.Def }

func (r *Repository) NewQuery() *query.Builder {
	return query.NewBuilder(r.validateField)
}

func (r *Repository) validateField(field string) bool {
	_, ok := r.Base.Def.FilterSortFields[field]
	return ok
}

func (r *Repository) GetByID(ctx context.Context, id string) (entity.Entity, error) {
	row := r.db.QueryRowContext(ctx, fmt.Sprintf(`SELECT "contents" FROM %s WHERE "id" = ?`, quoteIdentifier(r.table)), id)

	var contents string
	if err := row.Scan(&contents); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("selecting %s %q: %w", r.table, id, err)
	}

	return r.Base.Hydrate(ctx, id, contents)
}

func (r *Repository) GetByIDs(ctx context.Context, ids []string) ([]entity.Entity, error) {
	if len(ids) == 0 {
		return []entity.Entity{}, nil
	}
	q, err := query.Compose(r.validateField, func(b *query.Builder) {
		values := make([]any, len(ids))
		for i, id := range ids {
			values[i] = id
		}
		b.In("id", values)
	})
	if err != nil {
		return nil, err
	}
	return r.GetByQuery(ctx, q)
}

func (r *Repository) GetAll(ctx context.Context) ([]entity.Entity, error) {
	return r.GetByQuery(ctx, query.NewQuery())
}

func (r *Repository) GetByQuery(ctx context.Context, q query.Query) ([]entity.Entity, error) {
	sqlText, params, err := r.trans.GenerateSelectSQL(q)
	if err != nil {
		return nil, fmt.Errorf("translating query for %s: %w", r.table, err)
	}

	rows, err := r.db.QueryContext(ctx, sqlText, params...)
	if err != nil {
		return nil, fmt.Errorf("querying %s: %w", r.table, err)
	}
	defer rows.Close()

	var out []entity.Entity
	for rows.Next() {
		var id, contents string
		if err := rows.Scan(&id, &contents); err != nil {
			return nil, fmt.Errorf("scanning row from %s: %w", r.table, err)
		}
		hydrated, err := r.Base.Hydrate(ctx, id, contents)
		if err != nil {
			return nil, err
		}
		out = append(out, hydrated)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating rows from %s: %w", r.table, err)
	}
	if out == nil {
		out = []entity.Entity{}
	}
	return out, nil
}

func (r *Repository) Create(ctx context.Context, input entity.Entity) (entity.Entity, error) {
	id := entity.IDOf(input)
	if id == "" {
		id = repository.NewID()
	}

	projected := r.Base.SimplifyRelations(r.Base.MergeTemplate(input))
	projected["id"] = id
	contents, err := repository.EncodeContents(projected)
	if err != nil {
		return nil, fmt.Errorf("encoding contents for %s: %w", r.table, err)
	}

	insertSQL, params, err := r.buildInsertSQL(id, contents, projected)
	if err != nil {
		return nil, err
	}

	if _, err := r.db.ExecContext(ctx, insertSQL, params...); err != nil {
		return nil, fmt.Errorf("inserting into %s: %w", r.table, err)
	}

	r.logger.Debug("created row", zap.String("table", r.table), zap.String("id", id))
	return r.Base.Hydrate(ctx, id, contents)
}

func (r *Repository) Update(ctx context.Context, id string, input entity.Entity) (entity.Entity, error) {
	existing, err := r.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if existing == nil {
		return nil, nil
	}

	projected := r.Base.SimplifyRelations(input)
	projected["id"] = id
	contents, err := repository.EncodeContents(projected)
	if err != nil {
		return nil, fmt.Errorf("encoding contents for %s: %w", r.table, err)
	}

	updateSQL, params, err := r.buildUpdateSQL(id, contents, projected)
	if err != nil {
		return nil, err
	}

	if _, err := r.db.ExecContext(ctx, updateSQL, params...); err != nil {
		return nil, fmt.Errorf("updating %s %q: %w", r.table, id, err)
	}

	r.logger.Debug("updated row", zap.String("table", r.table), zap.String("id", id))
	return r.Base.Hydrate(ctx, id, contents)
}

func (r *Repository) DeleteUsingID(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, fmt.Sprintf(`DELETE FROM %s WHERE "id" = ?`, quoteIdentifier(r.table)), id)
	if err != nil {
		return fmt.Errorf("deleting %s %q: %w", r.table, id, err)
	}
	r.logger.Debug("deleted row", zap.String("table", r.table), zap.String("id", id))
	return nil
}

// buildInsertSQL builds the INSERT statement for id/contents. Generated
// columns are never written directly: the backend derives them from
// contents.
func (r *Repository) buildInsertSQL(id string, contents []byte, _ entity.Entity) (string, []any, error) {
	stmt := fmt.Sprintf(`INSERT INTO %s ("id", "contents") VALUES (?, ?)`, quoteIdentifier(r.table))
	return stmt, []any{id, string(contents)}, nil
}

func (r *Repository) buildUpdateSQL(id string, contents []byte, _ entity.Entity) (string, []any, error) {
	stmt := fmt.Sprintf(`UPDATE %s SET "contents" = ? WHERE "id" = ?`, quoteIdentifier(r.table))
	return stmt, []any{string(contents), id}, nil
}
