package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"regexp"
	"strings"

	"github.com/asaidimu/supersave/entity"
	"github.com/asaidimu/supersave/repository"
	"go.uber.org/multierr"
)

// fieldNamePattern is the set of identifiers safe to interpolate directly
// into generated-column and index DDL.
var fieldNamePattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// generatedColumnPattern extracts the generated columns declared in a
// CREATE TABLE statement pulled from sqlite_master.sql, capturing each
// column's name and its declared SQL type.
var generatedColumnPattern = regexp.MustCompile(`"(\w+)"\s+(\w+)\s+GENERATED ALWAYS`)

// Synchronizer reconciles a SQLite table's physical shape with an entity's
// declared definition.
type Synchronizer struct {
	db dbRunner
}

var _ repository.Synchronizer = (*Synchronizer)(nil)

func NewSynchronizer(db dbRunner) *Synchronizer {
	return &Synchronizer{db: db}
}

// CreateTableIfNotExists lays down the minimal shape (id, contents) a table
// needs to exist before Sync reconciles its generated columns and indexes.
func (s *Synchronizer) CreateTableIfNotExists(ctx context.Context, table string) error {
	stmt := fmt.Sprintf(
		`CREATE TABLE IF NOT EXISTS %s ("id" TEXT PRIMARY KEY, "contents" TEXT NOT NULL CHECK(json_valid("contents")))`,
		quoteIdentifier(table),
	)
	_, err := s.db.ExecContext(ctx, stmt)
	if err != nil {
		return fmt.Errorf("creating table %s: %w", table, err)
	}
	return nil
}

// Sync brings table's generated columns and indexes in line with def's
// filterSortFields, migrating legacy tables (contents predating the
// json_valid constraint, or a stale set of generated columns) through a
// shadow table.
func (s *Synchronizer) Sync(ctx context.Context, def entity.Definition, table string) error {
	for field := range def.FilterSortFields {
		if !fieldNamePattern.MatchString(field) {
			return entity.NewConfigurationError("filterSortField %q on %q is not a valid identifier", field, def.FullName())
		}
	}

	exists, err := s.tableExists(ctx, table)
	if err != nil {
		return err
	}
	if !exists {
		if err := s.CreateTableIfNotExists(ctx, table); err != nil {
			return err
		}
	}

	tableSQL, err := s.tableSQL(ctx, table)
	if err != nil {
		return err
	}

	legacy := !strings.Contains(tableSQL, "json_valid")
	current := generatedColumnsFromSQL(tableSQL)
	desired := def.FilterSortFields

	if legacy || !sameFieldSet(current, desired) {
		if err := s.migrateShadow(ctx, def, table); err != nil {
			return fmt.Errorf("migrating %s to current shape: %w", table, err)
		}
	}

	return s.reconcileIndexes(ctx, table, desired)
}

func (s *Synchronizer) tableExists(ctx context.Context, table string) (bool, error) {
	row := s.db.QueryRowContext(ctx, `SELECT name FROM sqlite_master WHERE type = 'table' AND name = ?`, table)
	var name string
	if err := row.Scan(&name); err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, fmt.Errorf("checking table %s exists: %w", table, err)
	}
	return true, nil
}

func (s *Synchronizer) tableSQL(ctx context.Context, table string) (string, error) {
	row := s.db.QueryRowContext(ctx, `SELECT sql FROM sqlite_master WHERE type = 'table' AND name = ?`, table)
	var sqlText string
	if err := row.Scan(&sqlText); err != nil {
		if err == sql.ErrNoRows {
			return "", nil
		}
		return "", fmt.Errorf("reading definition of %s: %w", table, err)
	}
	return sqlText, nil
}

// generatedColumnsFromSQL maps each generated column's name to its declared
// SQL type, so a field whose kind changed while its name stayed the same is
// still detected as a difference.
func generatedColumnsFromSQL(sqlText string) map[string]string {
	out := map[string]string{}
	for _, match := range generatedColumnPattern.FindAllStringSubmatch(sqlText, -1) {
		out[match[1]] = strings.ToUpper(match[2])
	}
	return out
}

// sameFieldSet reports whether current already matches the SQL type
// desired's field kinds imply, so a filterSortField that changed kind
// without changing name still triggers a shadow-table rebuild.
func sameFieldSet(current map[string]string, desired map[string]entity.FieldKind) bool {
	if len(current) != len(desired) {
		return false
	}
	for field, kind := range desired {
		sqlType, ok := current[field]
		if !ok {
			return false
		}
		wantType, err := sqlTypeForKind(kind)
		if err != nil || !strings.EqualFold(sqlType, wantType) {
			return false
		}
	}
	return true
}

// sqlTypeForKind is the type SQLite stores json_extract's result as, for
// each filterSortField kind.
func sqlTypeForKind(kind entity.FieldKind) (string, error) {
	switch kind {
	case entity.FieldKindString:
		return "TEXT", nil
	case entity.FieldKindNumber:
		return "REAL", nil
	case entity.FieldKindBoolean:
		return "INTEGER", nil
	default:
		return "", fmt.Errorf("unsupported field kind %q", kind)
	}
}

func generatedColumnDDL(field string, kind entity.FieldKind) (string, error) {
	sqlType, err := sqlTypeForKind(kind)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf(
		`%s %s GENERATED ALWAYS AS (json_extract("contents", '$.%s')) VIRTUAL`,
		quoteIdentifier(field), sqlType, field,
	), nil
}

// migrateShadow rebuilds table under a shadow name with the current target
// shape, copies over id and contents (generated columns are recomputed from
// contents, never copied directly), then swaps the shadow in.
func (s *Synchronizer) migrateShadow(ctx context.Context, def entity.Definition, table string) error {
	shadow := table + "_2"

	if _, err := s.db.ExecContext(ctx, fmt.Sprintf("DROP TABLE IF EXISTS %s", quoteIdentifier(shadow))); err != nil {
		return fmt.Errorf("dropping stale shadow table %s: %w", shadow, err)
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf(`CREATE TABLE %s ("id" TEXT PRIMARY KEY, "contents" TEXT NOT NULL CHECK(json_valid("contents"))`, quoteIdentifier(shadow)))
	for field, kind := range def.FilterSortFields {
		colDDL, err := generatedColumnDDL(field, kind)
		if err != nil {
			return err
		}
		sb.WriteString(", ")
		sb.WriteString(colDDL)
	}
	sb.WriteString(")")

	if _, err := s.db.ExecContext(ctx, sb.String()); err != nil {
		return fmt.Errorf("creating shadow table %s: %w", shadow, err)
	}

	insertSQL := fmt.Sprintf(`INSERT INTO %s ("id", "contents") SELECT "id", "contents" FROM %s`, quoteIdentifier(shadow), quoteIdentifier(table))
	if _, err := s.db.ExecContext(ctx, insertSQL); err != nil {
		return fmt.Errorf("copying rows into shadow table %s: %w", shadow, err)
	}

	if _, err := s.db.ExecContext(ctx, fmt.Sprintf("DROP TABLE %s", quoteIdentifier(table))); err != nil {
		return fmt.Errorf("dropping source table %s: %w", table, err)
	}

	renameSQL := fmt.Sprintf("ALTER TABLE %s RENAME TO %s", quoteIdentifier(shadow), quoteIdentifier(table))
	if _, err := s.db.ExecContext(ctx, renameSQL); err != nil {
		return fmt.Errorf("renaming shadow table %s to %s: %w", shadow, table, err)
	}

	return nil
}

// reconcileIndexes adds an idx_<field> index for every filterSortField that
// lacks one, and drops any idx_<field> index whose field left the set. Every
// create/drop is attempted even if an earlier one fails, and the failures
// are returned together.
func (s *Synchronizer) reconcileIndexes(ctx context.Context, table string, desired map[string]entity.FieldKind) error {
	existing, err := s.existingFieldIndexes(ctx, table)
	if err != nil {
		return err
	}

	var errs error

	for field := range desired {
		if _, ok := existing[field]; ok {
			continue
		}
		indexName := "idx_" + field
		stmt := fmt.Sprintf("CREATE INDEX IF NOT EXISTS %s ON %s (%s)", quoteIdentifier(indexName), quoteIdentifier(table), quoteIdentifier(field))
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("creating index %s: %w", indexName, err))
		}
	}

	for field, indexName := range existing {
		if _, ok := desired[field]; ok {
			continue
		}
		stmt := fmt.Sprintf("DROP INDEX IF EXISTS %s", quoteIdentifier(indexName))
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("dropping index %s: %w", indexName, err))
		}
	}

	return errs
}

// existingFieldIndexes maps each field covered by an idx_<field>-named index
// on table to that index's name.
func (s *Synchronizer) existingFieldIndexes(ctx context.Context, table string) (map[string]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT name FROM sqlite_master WHERE type = 'index' AND tbl_name = ? AND name LIKE 'idx\_%' ESCAPE '\'`, table)
	if err != nil {
		return nil, fmt.Errorf("listing indexes on %s: %w", table, err)
	}
	defer rows.Close()

	out := map[string]string{}
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scanning index name on %s: %w", table, err)
		}
		out[strings.TrimPrefix(name, "idx_")] = name
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating indexes on %s: %w", table, err)
	}
	return out, nil
}
