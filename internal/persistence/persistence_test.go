package persistence

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	mr "github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/spec-kit/ticket-tracker/internal/config"
)

func TestMigrationFilesAreSorted(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"002_b.sql", "001_a.sql", "README.md"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("SELECT 1;"), 0o600))
	}
	require.NoError(t, os.Mkdir(filepath.Join(dir, "003_dir.sql"), 0o700))

	files, err := migrationFiles(dir)
	require.NoError(t, err)
	require.Equal(t, []string{"001_a.sql", "002_b.sql"}, files)

	_, err = migrationFiles(filepath.Join(dir, "missing"))
	require.Error(t, err)
}

func TestRepositoryMigrations(t *testing.T) {
	files, err := migrationFiles(filepath.Join("..", "..", "migrations"))
	require.NoError(t, err)
	require.Equal(t, []string{"001_init.sql", "002_tickets_notify.sql"}, files)
}

func TestRunMigrationsWithoutPool(t *testing.T) {
	require.NoError(t, RunMigrations(context.Background(), nil, "", zap.NewNop()))
}

func TestPostgresWithoutDSN(t *testing.T) {
	pg, err := NewPostgres(context.Background(), config.PostgresConfig{}, zap.NewNop())
	require.NoError(t, err)
	require.False(t, pg.Enabled())
	require.Error(t, pg.Ping(context.Background()))
	pg.Close()
}

func TestRedisPing(t *testing.T) {
	m, err := mr.Run()
	require.NoError(t, err)
	defer m.Close()

	rdb := NewRedis(context.Background(), config.RedisConfig{Addr: m.Addr()}, zap.NewNop())
	defer rdb.Close()
	require.NoError(t, rdb.Ping(context.Background()))

	require.True(t, rdb.Enabled())

	var missing *Redis
	require.Error(t, missing.Ping(context.Background()))

	disabled := NewRedis(context.Background(), config.RedisConfig{}, zap.NewNop())
	require.False(t, disabled.Enabled())
	disabled.Close()
}

func TestDependencyNames(t *testing.T) {
	var pg *Postgres
	deps := []Dependency{pg, &Redis{}}
	require.Equal(t, "postgres", deps[0].Name())
	require.False(t, deps[0].Enabled())
	require.Equal(t, "redis", deps[1].Name())
}
