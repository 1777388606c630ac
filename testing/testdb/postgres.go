// Package testdb provides the PostgreSQL container shared by repository tests.
package testdb

import (
	"context"
	"sync"
	"testing"

	"school-directory/internal/db"
	"school-directory/internal/logger"

	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
	"github.com/uptrace/bun"
)

type Postgres struct {
	Container *postgres.PostgresContainer
	DB        *bun.DB
}

var (
	shared    *Postgres
	sharedErr error
	once      sync.Once
)

// Shared starts PostgreSQL once per test binary and returns it to every caller.
//
//	pg := testdb.Shared(t)
//	pg.Migrate(t, (*school.School)(nil))
//	pg.Truncate(t, "schools")
func Shared(t *testing.T) *Postgres {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping container test in short mode")
	}

	once.Do(func() {
		shared, sharedErr = start(context.Background())
	})
	require.NoError(t, sharedErr, "postgres container failed to start")
	return shared
}

func start(ctx context.Context) (*Postgres, error) {
	container, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("school_directory"),
		postgres.WithUsername("postgres"),
		postgres.WithPassword("postgres"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").WithOccurrence(2),
		),
	)
	if err != nil {
		return nil, err
	}

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		return nil, err
	}

	bunDB, err := db.Open(ctx, dsn, logger.Discard())
	if err != nil {
		return nil, err
	}
	return &Postgres{Container: container, DB: bunDB}, nil
}

// Migrate creates the tables (and hook-defined indexes) of models.
func (p *Postgres) Migrate(t *testing.T, models ...interface{}) {
	t.Helper()
	require.NoError(t, db.Migrate(context.Background(), p.DB, logger.Discard(), models...))
}

// Truncate empties tables and resets their identity sequences.
func (p *Postgres) Truncate(t *testing.T, tables ...string) {
	t.Helper()

	for _, table := range tables {
		_, err := p.DB.ExecContext(context.Background(), "TRUNCATE ? RESTART IDENTITY CASCADE", bun.Ident(table))
		require.NoError(t, err, "truncate %s", table)
	}
}
