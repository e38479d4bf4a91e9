// Package intergration starts the Postgres and Kafka containers the
// store and end-to-end tests run against.
package intergration

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/kafka"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	platformpg "github.com/dmehra2102/inventory-order-system/internal/platform/postgres"
)

const startupTimeout = 2 * time.Minute

type Env struct {
	Kafka *kafka.KafkaContainer
	PGURL string
	KAddr []string
}

// Postgres starts a migrated database and returns a pool on it. The test is
// skipped under -short.
func Postgres(t *testing.T) *pgxpool.Pool {
	t.Helper()
	if testing.Short() {
		t.Skip("container tests skipped in -short mode")
	}
	ctx, cancel := context.WithTimeout(context.Background(), startupTimeout)
	defer cancel()

	url := startPostgres(ctx, t)
	pool, err := platformpg.Connect(ctx, url)
	if err != nil {
		t.Fatalf("connect postgres: %v", err)
	}
	t.Cleanup(pool.Close)

	if err := platformpg.Migrate(ctx, discardLogger(), pool); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return pool
}

// Setup starts both containers and registers their teardown on t.
func Setup(t *testing.T) *Env {
	t.Helper()
	if testing.Short() {
		t.Skip("container tests skipped in -short mode")
	}
	ctx, cancel := context.WithTimeout(context.Background(), startupTimeout)
	defer cancel()

	env := &Env{}
	env.PGURL = startPostgres(ctx, t)

	kafkaC, err := kafka.Run(ctx,
		"confluentinc/confluent-local:7.5.0",
		kafka.WithClusterID("inventory-order-test"),
	)
	if err != nil {
		t.Fatalf("start kafka: %v", err)
	}
	t.Cleanup(func() { _ = testcontainers.TerminateContainer(kafkaC) })
	env.Kafka = kafkaC

	env.KAddr, err = kafkaC.Brokers(ctx)
	if err != nil {
		t.Fatalf("kafka brokers: %v", err)
	}
	return env
}

func startPostgres(ctx context.Context, t *testing.T) string {
	t.Helper()
	pgC, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("orderflow"),
		postgres.WithUsername("postgres"),
		postgres.WithPassword("postgres"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(startupTimeout),
		),
	)
	if err != nil {
		t.Fatalf("start postgres: %v", err)
	}
	t.Cleanup(func() { _ = testcontainers.TerminateContainer(pgC) })

	url, err := pgC.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		t.Fatalf("postgres connection string: %v", err)
	}
	return url
}
