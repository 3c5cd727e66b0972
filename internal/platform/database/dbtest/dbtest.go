// Package dbtest starts a throwaway Postgres container with the schema
// migrated, for integration tests.
package dbtest

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
	"github.com/valinor-ai/tenantscope/internal/platform/database"
)

// StartPostgres runs a postgres:16-alpine container and returns its
// connection string. The container is terminated through t.Cleanup.
func StartPostgres(t *testing.T) string {
	t.Helper()
	ctx := context.Background()

	container, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("tenantscope_test"),
		postgres.WithUsername("test"),
		postgres.WithPassword("test"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2),
		),
	)
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = container.Terminate(context.Background())
	})

	connStr, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)
	return connStr
}

// MigrationsURL locates the repository's migrations directory by walking
// up from the working directory to the go.mod.
func MigrationsURL(t *testing.T) string {
	t.Helper()
	dir, err := os.Getwd()
	require.NoError(t, err)
	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return "file://" + filepath.Join(dir, "migrations")
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			t.Fatal("could not find project root (no go.mod found)")
		}
		dir = parent
	}
}

// Setup starts Postgres, applies every migration and returns a pool.
func Setup(t *testing.T) *database.Pool {
	t.Helper()

	connStr := StartPostgres(t)
	require.NoError(t, database.RunMigrations(connStr, MigrationsURL(t)))

	pool, err := database.Connect(context.Background(), connStr, 5)
	require.NoError(t, err)
	t.Cleanup(pool.Close)
	return pool
}
