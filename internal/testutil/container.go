// Package testutil holds helpers shared by the integration suite.
package testutil

import (
	"context"
	"fmt"
	"time"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

// PostgresInstance is a disposable PostgreSQL server for tests.
type PostgresInstance struct {
	*postgres.PostgresContainer
	URL string
}

// StartPostgres launches a PostgreSQL container and waits until it
// accepts connections.
func StartPostgres(ctx context.Context) (*PostgresInstance, error) {
	container, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("statusdeck_test"),
		postgres.WithUsername("statusdeck"),
		postgres.WithPassword("statusdeck"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("start postgres container: %w", err)
	}

	url, err := container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		return nil, fmt.Errorf("get connection string: %w", err)
	}

	return &PostgresInstance{PostgresContainer: container, URL: url}, nil
}
