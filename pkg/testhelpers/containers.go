package testhelpers

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/pgcrud/pgcrud/pkg/database"
	"github.com/pgcrud/pgcrud/pkg/retry"
)

// PostgresImage is the stock image the integration tests introspect.
const PostgresImage = "postgres:16-alpine"

// fixtureDDL creates a small catalog exercising the shapes the gateway
// cares about: serial and uuid keys, a composite key, foreign keys, a
// soft-delete column, a keyless table, and a non-public namespace.
const fixtureDDL = `
CREATE EXTENSION IF NOT EXISTS "pgcrypto";

CREATE TABLE users (
	id uuid PRIMARY KEY DEFAULT gen_random_uuid(),
	email text NOT NULL,
	name varchar(120),
	active boolean NOT NULL DEFAULT true,
	created_at timestamptz NOT NULL DEFAULT now(),
	updated_at timestamptz NOT NULL DEFAULT now(),
	deleted_at timestamptz
);

CREATE TABLE posts (
	id bigserial PRIMARY KEY,
	author_id uuid NOT NULL REFERENCES users(id),
	title text NOT NULL,
	body text,
	published boolean NOT NULL DEFAULT false
);

CREATE TABLE post_tags (
	post_id bigint NOT NULL REFERENCES posts(id),
	tag text NOT NULL,
	PRIMARY KEY (post_id, tag)
);

CREATE TABLE audit_log (
	occurred_at timestamptz NOT NULL DEFAULT now(),
	actor text,
	detail jsonb
);

CREATE SCHEMA reporting;

CREATE TABLE reporting.daily_metrics (
	day date PRIMARY KEY,
	signups integer NOT NULL DEFAULT 0
);
`

// TestDB holds a shared PostgreSQL container and gateway connection pool.
type TestDB struct {
	Container testcontainers.Container
	DB        *database.DB
	ConnStr   string
}

var (
	sharedTestDB     *TestDB
	sharedTestDBOnce sync.Once
	sharedTestDBErr  error
)

// GetTestDB returns a shared PostgreSQL container seeded with the fixture
// schema. The container is created once and reused across all tests in
// the run.
func GetTestDB(t *testing.T) *TestDB {
	t.Helper()

	if testing.Short() {
		t.Skip("Skipping integration test in short mode (requires Docker)")
	}

	sharedTestDBOnce.Do(func() {
		sharedTestDB, sharedTestDBErr = setupTestDB()
	})

	if sharedTestDBErr != nil {
		t.Fatalf("Failed to setup test database: %v", sharedTestDBErr)
	}

	return sharedTestDB
}

func setupTestDB() (*TestDB, error) {
	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        PostgresImage,
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_DB":       "gateway_test",
			"POSTGRES_USER":     "gateway",
			"POSTGRES_PASSWORD": "test_password",
		},
		WaitingFor: wait.ForLog("database system is ready to accept connections").
			WithOccurrence(2).
			WithStartupTimeout(60 * time.Second),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to start test container: %w", err)
	}

	host, err := container.Host(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get container host: %w", err)
	}

	port, err := container.MappedPort(ctx, "5432")
	if err != nil {
		return nil, fmt.Errorf("failed to get container port: %w", err)
	}

	connStr := fmt.Sprintf("postgres://gateway:test_password@%s:%s/gateway_test?sslmode=disable",
		host, port.Port())

	db, err := retry.DoWithResult(ctx, nil, func() (*database.DB, error) {
		return database.NewConnection(ctx, &database.Config{URL: connStr, MaxConnections: 5})
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to test database: %w", err)
	}

	if _, err := db.Exec(ctx, fixtureDDL); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to load fixture schema: %w", err)
	}

	return &TestDB{
		Container: container,
		DB:        db,
		ConnStr:   connStr,
	}, nil
}
