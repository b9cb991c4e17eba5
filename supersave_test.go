package supersave

import (
	"context"
	"database/sql"
	"testing"

	"github.com/asaidimu/supersave/entity"
	"github.com/asaidimu/supersave/migration"
	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func planetDef() entity.Definition {
	return entity.Definition{
		Name:             "planets",
		FilterSortFields: map[string]entity.FieldKind{"name": entity.FieldKindString},
	}
}

func TestOpen_RejectsUnknownScheme(t *testing.T) {
	_, err := Open(context.Background(), "postgres://localhost/db", Options{})
	require.Error(t, err)
	var cfgErr *entity.ConfigurationError
	assert.ErrorAs(t, err, &cfgErr)
}

func TestOpen_AddEntityRoundTrip(t *testing.T) {
	ss, err := Open(context.Background(), "sqlite://file::memory:?cache=shared", Options{})
	require.NoError(t, err)
	t.Cleanup(func() { ss.Close() })

	repo, err := ss.AddEntity(context.Background(), planetDef())
	require.NoError(t, err)

	created, err := repo.Create(context.Background(), entity.Entity{"name": "Mars"})
	require.NoError(t, err)

	fetched, ok := ss.GetRepository("planets", "")
	require.True(t, ok)
	got, err := fetched.GetByID(context.Background(), entity.IDOf(created))
	require.NoError(t, err)
	assert.Equal(t, "Mars", got["name"])
}

func TestOpen_RunsMigrationsOnce(t *testing.T) {
	ran := 0
	migrations := []migration.Migration{
		{Name: "seed", Up: func(ctx context.Context, db *sql.DB) error {
			ran++
			_, err := db.ExecContext(ctx, `CREATE TABLE seeded ("id" TEXT PRIMARY KEY)`)
			return err
		}},
	}

	dsn := "sqlite://file::memory:?cache=shared&_migtest=1"
	ss, err := Open(context.Background(), dsn, Options{Migrations: migrations})
	require.NoError(t, err)
	t.Cleanup(func() { ss.Close() })
	assert.Equal(t, 1, ran)
}

func TestOpen_PrefixMismatchOnReopenIsConfigurationError(t *testing.T) {
	dsn := "sqlite://file::memory:?cache=shared&_prefixtest=1"

	ss1, err := Open(context.Background(), dsn, Options{Prefix: "app_"})
	require.NoError(t, err)
	defer ss1.Close()

	_, err = Open(context.Background(), dsn, Options{Prefix: "other_"})
	require.Error(t, err)
	var cfgErr *entity.ConfigurationError
	assert.ErrorAs(t, err, &cfgErr)
}
