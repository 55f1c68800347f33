// Package testutil starts the PostgreSQL and Redis containers that the
// integration tests run against.
//
// Usage in TestMain:
//
//	func TestMain(m *testing.M) {
//	    tc := testutil.MustStartPostgres()
//	    testDB, _ = tc.NewTestDB(context.Background(), testutil.TestLogger())
//	    code := m.Run()
//	    testDB.Close()
//	    tc.Terminate()
//	    os.Exit(code)
//	}
package testutil

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/docker/go-connections/nat"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/ashita-ai/ventura/internal/storage"
	"github.com/ashita-ai/ventura/migrations"
)

const (
	postgresImage = "postgres:17-alpine"
	redisImage    = "redis:7-alpine"
)

// TestContainer is a running container and the URL that reaches it.
type TestContainer struct {
	Container testcontainers.Container
	DSN       string
}

// MustStartPostgres starts a PostgreSQL container. Calls os.Exit(1) on
// failure (suitable for TestMain).
func MustStartPostgres() *TestContainer {
	return mustStart("postgres", testcontainers.ContainerRequest{
		Image:        postgresImage,
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_USER":     "ventura",
			"POSTGRES_PASSWORD": "ventura",
			"POSTGRES_DB":       "ventura",
		},
		// The server restarts once after initdb, so the ready line is logged twice.
		WaitingFor: wait.ForLog("database system is ready to accept connections").
			WithOccurrence(2).
			WithStartupTimeout(60 * time.Second),
	}, "5432", "postgres://ventura:ventura@%s:%s/ventura?sslmode=disable")
}

// MustStartRedis starts a Redis container; DSN is a redis:// URL for
// database 0.
func MustStartRedis() *TestContainer {
	return mustStart("redis", testcontainers.ContainerRequest{
		Image:        redisImage,
		ExposedPorts: []string{"6379/tcp"},
		WaitingFor:   wait.ForLog("Ready to accept connections").WithStartupTimeout(30 * time.Second),
	}, "6379", "redis://%s:%s/0")
}

func mustStart(name string, req testcontainers.ContainerRequest, port, urlFormat string) *TestContainer {
	ctx := context.Background()
	fail := func(step string, err error) {
		fmt.Fprintf(os.Stderr, "testutil: %s: %s: %v\n", name, step, err)
		os.Exit(1)
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		fail("start container", err)
	}
	host, err := container.Host(ctx)
	if err != nil {
		_ = container.Terminate(ctx)
		fail("container host", err)
	}
	mapped, err := container.MappedPort(ctx, nat.Port(port))
	if err != nil {
		_ = container.Terminate(ctx)
		fail("container port", err)
	}
	return &TestContainer{
		Container: container,
		DSN:       fmt.Sprintf(urlFormat, host, mapped.Port()),
	}
}

// NewTestDB connects a storage.DB to this container and applies the
// embedded migrations.
func (tc *TestContainer) NewTestDB(ctx context.Context, logger *slog.Logger) (*storage.DB, error) {
	db, err := storage.New(ctx, tc.DSN, storage.PoolOptions{MaxConns: 5, ConnectTimeout: 10 * time.Second}, logger)
	if err != nil {
		return nil, fmt.Errorf("testutil: create DB: %w", err)
	}
	if err := db.RunMigrations(ctx, migrations.FS); err != nil {
		db.Close()
		return nil, fmt.Errorf("testutil: run migrations: %w", err)
	}
	return db, nil
}

// Terminate stops and removes the container.
func (tc *TestContainer) Terminate() {
	_ = tc.Container.Terminate(context.Background())
}

// TestLogger returns a logger configured for test output (warns only).
func TestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
}
