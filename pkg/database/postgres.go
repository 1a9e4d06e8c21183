package database

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// StatementTimeout bounds every statement the gateway runs. Generated
// queries are simple, so anything slower indicates a pathological table
// or a stuck backend.
const StatementTimeout = 30 * time.Second

// DB wraps a pgxpool connection pool.
type DB struct {
	*pgxpool.Pool
}

// Config holds connection pool settings.
type Config struct {
	URL             string
	MaxConnections  int32
	MaxConnLifetime time.Duration
	MaxConnIdleTime time.Duration
}

// NewConnection creates a connection pool and verifies it with a ping.
// Every connection carries a server-side statement timeout.
func NewConnection(ctx context.Context, cfg *Config) (*DB, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database URL: %w", err)
	}

	poolConfig.MaxConns = cfg.MaxConnections
	if poolConfig.MaxConns == 0 {
		poolConfig.MaxConns = 25
	}

	poolConfig.MaxConnLifetime = cfg.MaxConnLifetime
	if poolConfig.MaxConnLifetime == 0 {
		poolConfig.MaxConnLifetime = time.Hour
	}

	poolConfig.MaxConnIdleTime = cfg.MaxConnIdleTime
	if poolConfig.MaxConnIdleTime == 0 {
		poolConfig.MaxConnIdleTime = time.Minute * 30
	}

	poolConfig.ConnConfig.RuntimeParams["statement_timeout"] = fmt.Sprintf("%d", StatementTimeout.Milliseconds())

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &DB{Pool: pool}, nil
}

// Healthy reports whether the pool can reach the database. The probe is
// bounded so a dead backend cannot hang the health endpoint.
func (db *DB) Healthy(ctx context.Context) error {
	probeCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return db.Ping(probeCtx)
}

// Close closes the connection pool.
func (db *DB) Close() {
	db.Pool.Close()
}

// Pools bundles the primary pool with an optional read replica pool.
type Pools struct {
	Primary *DB
	Read    *DB // nil when no replica is configured
}

// Reader returns the pool for read-only statements: the replica when one
// is configured, the primary otherwise.
func (p *Pools) Reader() *DB {
	if p.Read != nil {
		return p.Read
	}
	return p.Primary
}

// Close closes every pool.
func (p *Pools) Close() {
	if p.Read != nil {
		p.Read.Close()
	}
	if p.Primary != nil {
		p.Primary.Close()
	}
}
