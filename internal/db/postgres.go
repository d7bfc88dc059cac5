package db

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

type DB struct {
	pool   *pgxpool.Pool
	logger *zap.Logger
}

// New opens a pool from DATABASE_URL, pings it, and applies pending
// migrations before handing it back.
func New(ctx context.Context, databaseURL string, logger *zap.Logger) (*DB, error) {
	poolConfig, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse pool config: %w", err)
	}

	// Pool tuning for a chat backend:
	//
	// MaxConns (25): every API request holds a connection only for the
	//   duration of its queries or transaction; websocket sessions never
	//   hold one. 25 leaves headroom under the usual max_connections=100
	//   for a second instance and migrations.
	//
	// MinConns (5): warm connections so the first requests after a quiet
	//   period skip the TCP and TLS handshake.
	//
	// MaxConnLifetime (1h): recycle connections so DNS changes and
	//   failovers are picked up without a restart.
	//
	// MaxConnIdleTime (20m): give idle slots back to Postgres at night.
	//
	// HealthCheckPeriod (1m): find dead idle connections before a request
	//   does.
	poolConfig.MaxConns = 25
	poolConfig.MinConns = 5
	poolConfig.MaxConnLifetime = 1 * time.Hour
	poolConfig.MaxConnIdleTime = 20 * time.Minute
	poolConfig.HealthCheckPeriod = 1 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping DB: %w", err)
	}

	applied, err := Migrate(ctx, pool)
	if err != nil {
		pool.Close()
		return nil, err
	}

	logger.Info("DB connection established",
		zap.String("host", poolConfig.ConnConfig.Host),
		zap.String("database", poolConfig.ConnConfig.Database),
		zap.Int32("max_conns", poolConfig.MaxConns),
		zap.Strings("migrations_applied", applied),
	)
	return &DB{
		pool:   pool,
		logger: logger,
	}, nil
}

func (db *DB) Close() {
	db.logger.Info("closing database connection pool")
	db.pool.Close()
}

func (db *DB) Pool() *pgxpool.Pool {
	return db.pool
}

func (db *DB) Health(ctx context.Context) error {
	return db.pool.Ping(ctx)
}
