// Package storage holds the journal, snapshot history and property cache
// backends behind the services.
package storage

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/estate-sync/internal/config"
)

// connectTimeout bounds the initial pool creation and ping. The journal and
// snapshot history are optional features, so a slow database must not hold
// up service startup indefinitely.
const connectTimeout = 10 * time.Second

// PostgresDB owns the pgx pool backing the transaction journal and the
// portfolio snapshot history.
type PostgresDB struct {
	pool *pgxpool.Pool
}

// NewPostgresDB opens a connection pool against the configured database and
// verifies it with a ping.
func NewPostgresDB(cfg *config.PostgresConfig) (*PostgresDB, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.PostgresURL())
	if err != nil {
		return nil, fmt.Errorf("invalid postgres configuration: %w", err)
	}

	poolConfig.MaxConns = int32(cfg.MaxConnections) // #nosec G115 - MaxConnections is validated in config
	poolConfig.MinConns = 2
	poolConfig.MaxConnLifetime = time.Hour
	poolConfig.MaxConnIdleTime = 30 * time.Minute
	poolConfig.HealthCheckPeriod = time.Minute

	ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create journal connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("journal database unreachable: %w", err)
	}

	log.Printf("[Storage] Connected to journal database %s/%s (max %d conns)", cfg.Host, cfg.Database, cfg.MaxConnections)
	return &PostgresDB{pool: pool}, nil
}

// Close releases the connection pool.
func (db *PostgresDB) Close() {
	if db.pool != nil {
		db.pool.Close()
	}
}

// Pool returns the underlying connection pool for the repositories.
func (db *PostgresDB) Pool() *pgxpool.Pool {
	return db.pool
}

// Ping checks if the database is reachable.
func (db *PostgresDB) Ping(ctx context.Context) error {
	return db.pool.Ping(ctx)
}
