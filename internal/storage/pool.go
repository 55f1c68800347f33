// Package storage is the PostgreSQL store for startups, founders, investors,
// and funding rounds.
//
// DB implements the migration write path (idempotent upserts, founder links,
// append-only funding rounds) and the read-only queries behind the insights
// service. A single pgxpool is created per process and passed explicitly.
package storage

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// PoolOptions tune the connection pool. Zero values keep pgxpool defaults.
type PoolOptions struct {
	MaxConns        int32
	ConnectTimeout  time.Duration
	MaxConnIdleTime time.Duration
}

// DB wraps a pgxpool.Pool.
type DB struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

// New connects to dsn and verifies the connection with a ping.
func New(ctx context.Context, dsn string, opts PoolOptions, logger *slog.Logger) (*DB, error) {
	poolCfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("storage: parse DSN: %w", err)
	}
	if opts.MaxConns > 0 {
		poolCfg.MaxConns = opts.MaxConns
	}
	if opts.MaxConnIdleTime > 0 {
		poolCfg.MaxConnIdleTime = opts.MaxConnIdleTime
	}
	if opts.ConnectTimeout > 0 {
		poolCfg.ConnConfig.ConnectTimeout = opts.ConnectTimeout
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("storage: create pool: %w", err)
	}

	pingCtx := ctx
	if opts.ConnectTimeout > 0 {
		var cancel context.CancelFunc
		pingCtx, cancel = context.WithTimeout(ctx, opts.ConnectTimeout)
		defer cancel()
	}
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("storage: ping: %w", err)
	}

	logger.Info("storage: connected",
		"host", poolCfg.ConnConfig.Host,
		"database", poolCfg.ConnConfig.Database,
		"max_conns", poolCfg.MaxConns)

	return &DB{pool: pool, logger: logger}, nil
}

// Pool returns the underlying connection pool.
func (db *DB) Pool() *pgxpool.Pool {
	return db.pool
}

// Ping checks connectivity to the database.
func (db *DB) Ping(ctx context.Context) error {
	return db.pool.Ping(ctx)
}

// Close releases every pooled connection.
func (db *DB) Close() {
	db.pool.Close()
}
