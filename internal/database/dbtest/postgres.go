// Package dbtest starts throwaway Postgres instances for integration tests.
package dbtest

import (
	"context"
	"testing"
	"time"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/ajharbinger/riskscore-preview/internal/database"
)

// PostgresContainer wraps a testcontainers Postgres instance with the schema applied
type PostgresContainer struct {
	Container *postgres.PostgresContainer
	DSN       string
	DB        *database.DB
}

// NewPostgresContainer starts Postgres, applies migrations and opens a pool.
// The test is skipped under -short or when no container runtime is available.
func NewPostgresContainer(ctx context.Context, t *testing.T) *PostgresContainer {
	t.Helper()

	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	testcontainers.SkipIfProviderIsNotHealthy(t)

	pgContainer, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("riskscore"),
		postgres.WithUsername("testuser"),
		postgres.WithPassword("testpass"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	if err != nil {
		t.Fatalf("failed to start postgres container: %v", err)
	}

	pc := &PostgresContainer{Container: pgContainer}
	t.Cleanup(func() { pc.cleanup(t) })

	pc.DSN, err = pgContainer.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		t.Fatalf("failed to get postgres connection string: %v", err)
	}

	if err := database.RunMigrations(pc.DSN); err != nil {
		t.Fatalf("failed to run migrations: %v", err)
	}

	pc.DB, err = database.New(pc.DSN)
	if err != nil {
		t.Fatalf("failed to connect to postgres: %v", err)
	}

	return pc
}

func (pc *PostgresContainer) cleanup(t *testing.T) {
	t.Helper()

	if pc.DB != nil {
		pc.DB.Close()
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := pc.Container.Terminate(ctx); err != nil {
		t.Logf("warning: failed to terminate postgres container: %v", err)
	}
}
