// Package internal provides testing helpers to spin up throwaway
// PostgreSQL instances for the postgres package integration tests.
package internal

import (
	"context"
	"fmt"
	"time"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

// DatabaseContainer is a handle on a PostgreSQL container started
// through testcontainers.
type DatabaseContainer struct {
	*postgres.PostgresContainer

	ConnectionDSN string
}

// NewDatabaseContainer creates and starts a new PostgreSQL container
// using testcontainers, then returns a handle to said container
// to manage its lifecycle.
func NewDatabaseContainer(ctx context.Context) (*DatabaseContainer, error) {
	withContext := func(msg string, err error) error {
		return fmt.Errorf("internal.NewDatabaseContainer: %s, %w", msg, err)
	}

	container, err := postgres.Run(
		ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("main"),
		postgres.WithUsername("postgres"),
		postgres.WithPassword("notasecret"),
		testcontainers.WithWaitStrategy(
			//nolint:mnd // It's ok to use a magic number here.
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(5*time.Second),
		),
	)
	if err != nil {
		return nil, withContext("failed to run new container", err)
	}

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		return nil, withContext("failed to get connection dsn", err)
	}

	return &DatabaseContainer{
		PostgresContainer: container,
		ConnectionDSN:     dsn,
	}, nil
}
