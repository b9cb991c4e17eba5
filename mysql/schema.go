package mysql

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

var fieldNamePattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// Synchronizer reconciles a MySQL/MariaDB table's physical shape with an
// entity's declared definition.
type Synchronizer struct {
	db       dbRunner
	database string
}

var _ repository.Synchronizer = (*Synchronizer)(nil)

// NewSynchronizer builds a Synchronizer. database is the schema name the
// synchronizer inspects INFORMATION_SCHEMA under; it must match whatever
// database the connection's DSN selected.
func NewSynchronizer(db dbRunner, database string) *Synchronizer {
	return &Synchronizer{db: db, database: database}
}

// CreateTableIfNotExists lays down the minimal shape (id, contents) a table
// needs to exist before Sync reconciles its generated columns and indexes.
func (s *Synchronizer) CreateTableIfNotExists(ctx context.Context, table string) error {
	stmt := fmt.Sprintf(
		"CREATE TABLE IF NOT EXISTS %s (`id` VARCHAR(32) PRIMARY KEY, `contents` JSON NOT NULL)",
		quoteIdentifier(table),
	)
	if _, err := s.db.ExecContext(ctx, stmt); err != nil {
		return fmt.Errorf("creating table %s: %w", table, err)
	}
	return nil
}

// Sync brings table's generated columns and indexes in line with def's
// filterSortFields, migrating legacy tables (contents predating the native
// JSON column type, or a stale set of generated columns) through a shadow
// table.
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

	legacy, err := s.isLegacyContents(ctx, table)
	if err != nil {
		return err
	}
	current, err := s.generatedColumns(ctx, table)
	if err != nil {
		return err
	}

	if legacy || !sameFieldSet(current, def.FilterSortFields) {
		if err := s.migrateShadow(ctx, def, table); err != nil {
			return fmt.Errorf("migrating %s to current shape: %w", table, err)
		}
	}

	return s.reconcileIndexes(ctx, table, def.FilterSortFields)
}

func (s *Synchronizer) tableExists(ctx context.Context, table string) (bool, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT TABLE_NAME FROM INFORMATION_SCHEMA.TABLES WHERE TABLE_SCHEMA = ? AND TABLE_NAME = ?",
		s.database, table)
	var name string
	if err := row.Scan(&name); err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, fmt.Errorf("checking table %s exists: %w", table, err)
	}
	return true, nil
}

// isLegacyContents reports whether the contents column predates the native
// JSON type, meaning its rows are not guaranteed to have ever been
// validated as JSON. A LONGTEXT column already carrying a JSON_VALID(contents)
// check constraint counts as already-JSON, not legacy, since a prior sync
// (or a hand-authored migration) already gave it the same guarantee the
// native JSON type provides.
func (s *Synchronizer) isLegacyContents(ctx context.Context, table string) (bool, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT DATA_TYPE, COLUMN_TYPE FROM INFORMATION_SCHEMA.COLUMNS WHERE TABLE_SCHEMA = ? AND TABLE_NAME = ? AND COLUMN_NAME = 'contents'",
		s.database, table)
	var dataType, columnType string
	if err := row.Scan(&dataType, &columnType); err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, fmt.Errorf("inspecting contents column on %s: %w", table, err)
	}
	if strings.Contains(strings.ToLower(columnType), "json") {
		return false, nil
	}
	if strings.EqualFold(dataType, "longtext") {
		validated, err := s.hasJSONValidConstraint(ctx, table)
		if err != nil {
			return true, nil
		}
		return !validated, nil
	}
	return true, nil
}

// hasJSONValidConstraint reports whether table carries a CHECK constraint
// enforcing JSON_VALID(contents).
func (s *Synchronizer) hasJSONValidConstraint(ctx context.Context, table string) (bool, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT cc.CHECK_CLAUSE FROM INFORMATION_SCHEMA.CHECK_CONSTRAINTS cc
		 JOIN INFORMATION_SCHEMA.TABLE_CONSTRAINTS tc
		   ON tc.CONSTRAINT_SCHEMA = cc.CONSTRAINT_SCHEMA AND tc.CONSTRAINT_NAME = cc.CONSTRAINT_NAME
		 WHERE tc.TABLE_SCHEMA = ? AND tc.TABLE_NAME = ? AND tc.CONSTRAINT_TYPE = 'CHECK'`,
		s.database, table)
	if err != nil {
		return false, fmt.Errorf("inspecting check constraints on %s: %w", table, err)
	}
	defer rows.Close()

	for rows.Next() {
		var clause string
		if err := rows.Scan(&clause); err != nil {
			return false, fmt.Errorf("scanning check constraint on %s: %w", table, err)
		}
		if strings.Contains(strings.ToLower(clause), "json_valid") {
			return true, nil
		}
	}
	return false, rows.Err()
}

// generatedColumns maps each generated column's name to its declared
// COLUMN_TYPE, so a field whose kind changed while its name stayed the same
// is still detected as a difference.
func (s *Synchronizer) generatedColumns(ctx context.Context, table string) (map[string]string, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT COLUMN_NAME, COLUMN_TYPE FROM INFORMATION_SCHEMA.COLUMNS WHERE TABLE_SCHEMA = ? AND TABLE_NAME = ? AND GENERATION_EXPRESSION IS NOT NULL AND GENERATION_EXPRESSION != ''",
		s.database, table)
	if err != nil {
		return nil, fmt.Errorf("listing generated columns on %s: %w", table, err)
	}
	defer rows.Close()

	out := map[string]string{}
	for rows.Next() {
		var name, columnType string
		if err := rows.Scan(&name, &columnType); err != nil {
			return nil, fmt.Errorf("scanning generated column on %s: %w", table, err)
		}
		out[name] = strings.ToLower(columnType)
	}
	return out, rows.Err()
}

// sameFieldSet reports whether current already matches the COLUMN_TYPE
// desired's field kinds imply, so a filterSortField that changed kind
// without changing name still triggers a shadow-table rebuild.
func sameFieldSet(current map[string]string, desired map[string]entity.FieldKind) bool {
	if len(current) != len(desired) {
		return false
	}
	for field, kind := range desired {
		columnType, ok := current[field]
		if !ok {
			return false
		}
		wantType, err := sqlTypeForKind(kind)
		if err != nil || columnType != wantType {
			return false
		}
	}
	return true
}

// sqlTypeForKind is the COLUMN_TYPE MySQL reports for a generated column of
// each filterSortField kind, lower-cased to match INFORMATION_SCHEMA output.
func sqlTypeForKind(kind entity.FieldKind) (string, error) {
	switch kind {
	case entity.FieldKindString:
		return "varchar(255)", nil
	case entity.FieldKindNumber:
		return "int(11)", nil
	case entity.FieldKindBoolean:
		return "tinyint(1)", nil
	default:
		return "", fmt.Errorf("unsupported field kind %q", kind)
	}
}

func generatedColumnDDL(field string, kind entity.FieldKind) (string, error) {
	jsonPath := "$." + field
	switch kind {
	case entity.FieldKindString:
		return fmt.Sprintf(
			"%s VARCHAR(255) GENERATED ALWAYS AS (JSON_UNQUOTE(JSON_EXTRACT(`contents`, '%s'))) VIRTUAL",
			quoteIdentifier(field), jsonPath,
		), nil
	case entity.FieldKindNumber:
		return fmt.Sprintf(
			"%s INT(11) GENERATED ALWAYS AS (CAST(JSON_EXTRACT(`contents`, '%s') AS SIGNED)) VIRTUAL",
			quoteIdentifier(field), jsonPath,
		), nil
	case entity.FieldKindBoolean:
		return fmt.Sprintf(
			"%s TINYINT(1) GENERATED ALWAYS AS (CASE "+
				"WHEN JSON_EXTRACT(`contents`, '%s') IS NULL THEN NULL "+
				"WHEN JSON_TYPE(JSON_EXTRACT(`contents`, '%s')) = 'BOOLEAN' "+
				"THEN (JSON_UNQUOTE(JSON_EXTRACT(`contents`, '%s')) = 'true') "+
				"WHEN LOWER(JSON_UNQUOTE(JSON_EXTRACT(`contents`, '%s'))) = 'true' THEN 1 "+
				"WHEN LOWER(JSON_UNQUOTE(JSON_EXTRACT(`contents`, '%s'))) = 'false' THEN 0 "+
				"ELSE 0 END) VIRTUAL",
			quoteIdentifier(field), jsonPath, jsonPath, jsonPath, jsonPath, jsonPath,
		), nil
	default:
		return "", fmt.Errorf("unsupported field kind %q", kind)
	}
}

func (s *Synchronizer) migrateShadow(ctx context.Context, def entity.Definition, table string) error {
	shadow := table + "_2"

	if _, err := s.db.ExecContext(ctx, fmt.Sprintf("DROP TABLE IF EXISTS %s", quoteIdentifier(shadow))); err != nil {
		return fmt.Errorf("dropping stale shadow table %s: %w", shadow, err)
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("CREATE TABLE %s (`id` VARCHAR(32) PRIMARY KEY, `contents` JSON NOT NULL", quoteIdentifier(shadow)))
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

	insertSQL := fmt.Sprintf("INSERT INTO %s (`id`, `contents`) SELECT `id`, `contents` FROM %s", quoteIdentifier(shadow), quoteIdentifier(table))
	if _, err := s.db.ExecContext(ctx, insertSQL); err != nil {
		return fmt.Errorf("copying rows into shadow table %s: %w", shadow, err)
	}

	if _, err := s.db.ExecContext(ctx, fmt.Sprintf("DROP TABLE %s", quoteIdentifier(table))); err != nil {
		return fmt.Errorf("dropping source table %s: %w", table, err)
	}

	renameSQL := fmt.Sprintf("RENAME TABLE %s TO %s", quoteIdentifier(shadow), quoteIdentifier(table))
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

	for field, kind := range desired {
		if _, ok := existing[field]; ok {
			continue
		}
		indexName := "idx_" + field
		stmt := fmt.Sprintf("ALTER TABLE %s ADD INDEX %s (%s)", quoteIdentifier(table), quoteIdentifier(indexName), indexColumnExpr(field, kind))
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("creating index %s: %w", indexName, err))
		}
	}

	for field, indexName := range existing {
		if _, ok := desired[field]; ok {
			continue
		}
		stmt := fmt.Sprintf("ALTER TABLE %s DROP INDEX %s", quoteIdentifier(table), quoteIdentifier(indexName))
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("dropping index %s: %w", indexName, err))
		}
	}

	return errs
}

// indexColumnExpr is the column expression an idx_<field> index is built on.
// String-kind fields are VARCHAR(255)/TEXT-backed generated columns, which
// exceed InnoDB's index key-prefix limit without a length prefix.
func indexColumnExpr(field string, kind entity.FieldKind) string {
	column := quoteIdentifier(field)
	if kind == entity.FieldKindString {
		column += "(191)"
	}
	return column
}

func (s *Synchronizer) existingFieldIndexes(ctx context.Context, table string) (map[string]string, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT INDEX_NAME FROM INFORMATION_SCHEMA.STATISTICS WHERE TABLE_SCHEMA = ? AND TABLE_NAME = ? AND INDEX_NAME LIKE 'idx\\_%' ESCAPE '\\\\'",
		s.database, table)
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
	return out, rows.Err()
}
