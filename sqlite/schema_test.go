package sqlite

import (
	"context"
	"testing"

	"github.com/asaidimu/supersave/entity"
	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSync_CreatesTableAndGeneratedColumns(t *testing.T) {
	db := newTestDB(t)
	sync := NewSynchronizer(db)
	def := planetDef()

	require.NoError(t, sync.Sync(context.Background(), def, def.TableName()))

	tableSQL, err := sync.tableSQL(context.Background(), def.TableName())
	require.NoError(t, err)
	assert.Contains(t, tableSQL, "json_valid")
	assert.Contains(t, tableSQL, `"name"`)
	assert.Contains(t, tableSQL, "GENERATED ALWAYS")

	rows, err := db.Query(`SELECT name FROM sqlite_master WHERE type = 'index' AND tbl_name = ?`, def.TableName())
	require.NoError(t, err)
	defer rows.Close()
	var indexes []string
	for rows.Next() {
		var name string
		require.NoError(t, rows.Scan(&name))
		indexes = append(indexes, name)
	}
	assert.Contains(t, indexes, "idx_name")
	assert.Contains(t, indexes, "idx_visible")
	assert.Contains(t, indexes, "idx_mass")
}

func TestSync_AddsMissingGeneratedColumnAndDropsStaleIndex(t *testing.T) {
	db := newTestDB(t)
	sync := NewSynchronizer(db)

	initial := entity.Definition{
		Name:             "asteroids",
		FilterSortFields: map[string]entity.FieldKind{"name": entity.FieldKindString},
	}
	require.NoError(t, sync.Sync(context.Background(), initial, initial.TableName()))

	_, err := db.Exec(`INSERT INTO asteroids ("id", "contents") VALUES (?, ?)`, "a1", `{"name":"Ceres","mass":0.9}`)
	require.NoError(t, err)

	expanded := entity.Definition{
		Name: "asteroids",
		FilterSortFields: map[string]entity.FieldKind{
			"mass": entity.FieldKindNumber,
		},
	}
	require.NoError(t, sync.Sync(context.Background(), expanded, expanded.TableName()))

	var mass float64
	require.NoError(t, db.QueryRow(`SELECT "mass" FROM asteroids WHERE "id" = ?`, "a1").Scan(&mass))
	assert.Equal(t, 0.9, mass)

	rows, err := db.Query(`SELECT name FROM sqlite_master WHERE type = 'index' AND tbl_name = 'asteroids'`)
	require.NoError(t, err)
	defer rows.Close()
	var indexes []string
	for rows.Next() {
		var name string
		require.NoError(t, rows.Scan(&name))
		indexes = append(indexes, name)
	}
	assert.NotContains(t, indexes, "idx_name")
	assert.Contains(t, indexes, "idx_mass")
}

func TestSync_MigratesLegacyTable(t *testing.T) {
	db := newTestDB(t)
	_, err := db.Exec(`CREATE TABLE comets ("id" TEXT PRIMARY KEY, "contents" TEXT NOT NULL)`)
	require.NoError(t, err)
	_, err = db.Exec(`INSERT INTO comets ("id", "contents") VALUES (?, ?)`, "c1", `{"name":"Halley"}`)
	require.NoError(t, err)

	sync := NewSynchronizer(db)
	def := entity.Definition{Name: "comets", FilterSortFields: map[string]entity.FieldKind{"name": entity.FieldKindString}}
	require.NoError(t, sync.Sync(context.Background(), def, def.TableName()))

	tableSQL, err := sync.tableSQL(context.Background(), "comets")
	require.NoError(t, err)
	assert.Contains(t, tableSQL, "json_valid")

	var name string
	require.NoError(t, db.QueryRow(`SELECT "name" FROM comets WHERE "id" = ?`, "c1").Scan(&name))
	assert.Equal(t, "Halley", name)
}

func TestSync_RecreatesGeneratedColumnWhenKindChangesButNameDoesNot(t *testing.T) {
	db := newTestDB(t)
	sync := NewSynchronizer(db)

	initial := entity.Definition{
		Name:             "moons",
		FilterSortFields: map[string]entity.FieldKind{"rank": entity.FieldKindNumber},
	}
	require.NoError(t, sync.Sync(context.Background(), initial, initial.TableName()))

	_, err := db.Exec(`INSERT INTO moons ("id", "contents") VALUES (?, ?)`, "m1", `{"rank":"primary"}`)
	require.NoError(t, err)

	changed := entity.Definition{
		Name:             "moons",
		FilterSortFields: map[string]entity.FieldKind{"rank": entity.FieldKindString},
	}
	require.NoError(t, sync.Sync(context.Background(), changed, changed.TableName()))

	tableSQL, err := sync.tableSQL(context.Background(), "moons")
	require.NoError(t, err)
	assert.Regexp(t, `"rank"\s+TEXT\s+GENERATED ALWAYS`, tableSQL)

	var rank string
	require.NoError(t, db.QueryRow(`SELECT "rank" FROM moons WHERE "id" = ?`, "m1").Scan(&rank))
	assert.Equal(t, "primary", rank)
}

func TestSync_RejectsInvalidFieldName(t *testing.T) {
	db := newTestDB(t)
	sync := NewSynchronizer(db)
	def := entity.Definition{Name: "bad", FilterSortFields: map[string]entity.FieldKind{"1-bad": entity.FieldKindString}}

	err := sync.Sync(context.Background(), def, def.TableName())
	require.Error(t, err)
	var cfgErr *entity.ConfigurationError
	assert.ErrorAs(t, err, &cfgErr)
}
