package store_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"portfoliotracker/internal/store"
)

// startPostgres spins up a throwaway Postgres container, runs the embedded
// migrations against it and returns the connection string.
func startPostgres(t *testing.T) string {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping container test in -short mode")
	}

	ctx := context.Background()
	pgContainer, err := postgres.Run(ctx, "postgres:16",
		postgres.WithDatabase("portfoliotracker"),
		postgres.WithUsername("portfoliotracker"),
		postgres.WithPassword("portfoliotracker"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).WithStartupTimeout(30*time.Second)),
	)
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = pgContainer.Terminate(context.Background())
	})

	connStr, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)
	require.NoError(t, store.RunMigrations(connStr))
	return connStr
}

func TestPostgres_Suite(t *testing.T) {
	connStr := startPostgres(t)

	pool, err := store.Connect(context.Background(), connStr)
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	pg := store.NewPostgres(pool)
	t.Run("accounts", func(t *testing.T) { runAccountSuite(t, pg) })
	t.Run("instruments", func(t *testing.T) { runInstrumentSuite(t, pg) })
}
