package database

import (
	"context"
	"io"
	"io/fs"
	"testing"

	"github.com/golang-migrate/migrate/v4/database/stub"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/DCGM/semant-demo/config"
)

// migrationVersions 读出某个驱动的全部迁移版本，并确认每个版本都有 up 与 down
func migrationVersions(t *testing.T, driver string) []uint {
	t.Helper()
	src, err := migrationSource(driver)
	require.NoError(t, err)
	defer src.Close()

	var versions []uint
	v, err := src.First()
	for err == nil {
		for _, read := range []func(uint) (io.ReadCloser, string, error){src.ReadUp, src.ReadDown} {
			r, ident, rerr := read(v)
			require.NoError(t, rerr, "%s version %d", driver, v)
			body, rerr := io.ReadAll(r)
			_ = r.Close()
			require.NoError(t, rerr)
			assert.NotEmpty(t, ident)
			assert.NotEmpty(t, body, "%s version %d", driver, v)
		}
		versions = append(versions, v)
		v, err = src.Next(v)
	}
	require.ErrorIs(t, err, fs.ErrNotExist)
	return versions
}

func TestMigrationFiles(t *testing.T) {
	pg := migrationVersions(t, "postgres")
	my := migrationVersions(t, "mysql")

	assert.Equal(t, []uint{1, 2}, pg)
	assert.Equal(t, pg, my, "postgres and mysql migrations must stay in step")
}

func TestMigrationSource_Unsupported(t *testing.T) {
	assert.True(t, SupportsMigrations("postgres"))
	assert.False(t, SupportsMigrations("sqlite"))

	_, err := migrationSource("sqlite")
	assert.ErrorIs(t, err, ErrMigrationsUnsupported)

	_, err = NewMigrator(context.Background(), config.DatabaseConfig{Driver: "sqlite", Name: ":memory:"}, nil)
	assert.ErrorIs(t, err, ErrMigrationsUnsupported)
}

func newStubMigrator(t *testing.T) (*Migrator, *stub.Stub) {
	t.Helper()
	src, err := migrationSource("postgres")
	require.NoError(t, err)
	drv, err := stub.WithInstance(nil, &stub.Config{})
	require.NoError(t, err)

	mg, err := newMigrator(src, "stub", drv, zap.NewNop())
	require.NoError(t, err)
	return mg, drv.(*stub.Stub)
}

func TestMigrator_Up(t *testing.T) {
	mg, st := newStubMigrator(t)
	ctx := context.Background()

	v, dirty, err := mg.Version()
	require.NoError(t, err)
	assert.Zero(t, v)
	assert.False(t, dirty)

	v, err = mg.Up(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint(2), v)
	require.Len(t, st.MigrationSequence, 2)
	assert.Contains(t, st.MigrationSequence[0], "CREATE TABLE IF NOT EXISTS execution_histories")

	// 没有新迁移时不报错
	v, err = mg.Up(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint(2), v)
	assert.Len(t, st.MigrationSequence, 2)

	require.NoError(t, mg.Close())
}

func TestMigrator_UpCancelled(t *testing.T) {
	mg, _ := newStubMigrator(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := mg.Up(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}
