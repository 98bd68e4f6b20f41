// config/db.go
package config

import (
	"context"
	"fmt"
	"time"

	pgxdecimal "github.com/jackc/pgx-shopspring-decimal"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/Doc-Scripter/HelpingHand/pkg/retry"
)

// ConnectDB opens the pool and pings it, retrying while the database comes
// up. NUMERIC columns scan into decimal.Decimal.
func ConnectDB(ctx context.Context, cfg DatabaseConfig, logger *zap.Logger) (*pgxpool.Pool, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("failed to parse database config: %w", err)
	}

	if cfg.MaxConns > 0 {
		poolConfig.MaxConns = int32(cfg.MaxConns)
	}
	if cfg.MinConns > 0 {
		poolConfig.MinConns = int32(cfg.MinConns)
	}
	poolConfig.MaxConnLifetime = cfg.MaxConnLifetime
	poolConfig.MaxConnIdleTime = cfg.MaxConnIdleTime
	poolConfig.HealthCheckPeriod = time.Minute
	poolConfig.ConnConfig.ConnectTimeout = 10 * time.Second
	poolConfig.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		pgxdecimal.Register(conn.TypeMap())
		return nil
	}

	logger.Info("connecting to database",
		zap.String("host", cfg.Host),
		zap.String("port", cfg.Port),
		zap.String("db", cfg.DBName),
		zap.Int32("max_conns", poolConfig.MaxConns))

	var pool *pgxpool.Pool
	policy := retry.Policy{MaxAttempts: cfg.ConnectAttempts, Delay: 2 * time.Second}
	err = policy.Do(ctx, func(ctx context.Context, attempt int) error {
		connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		defer cancel()

		p, err := pgxpool.NewWithConfig(connectCtx, poolConfig)
		if err != nil {
			logger.Warn("database pool creation failed", zap.Int("attempt", attempt), zap.Error(err))
			return err
		}
		if err := p.Ping(connectCtx); err != nil {
			p.Close()
			logger.Warn("database ping failed", zap.Int("attempt", attempt), zap.Error(err))
			return err
		}
		pool = p
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	logger.Info("connected to database",
		zap.Int32("idle_conns", pool.Stat().IdleConns()),
		zap.Int32("total_conns", pool.Stat().TotalConns()))

	return pool, nil
}
