package database

import (
	"context"
	"fmt"
	"net/url"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/pucco93/ebsi-access-control/internal/infra/config"
)

const aclSchema = "acl"

// outcomeHistoryDDL creates the audit table for Outcome records.
const outcomeHistoryDDL = `
CREATE SCHEMA IF NOT EXISTS acl;
CREATE TABLE IF NOT EXISTS acl.outcome_history (
	id          UUID PRIMARY KEY,
	kind        TEXT NOT NULL,
	operation   TEXT NOT NULL,
	status      TEXT NOT NULL,
	subject     TEXT NOT NULL,
	message     TEXT NOT NULL DEFAULT '',
	account     TEXT NOT NULL DEFAULT '',
	recorded_at TIMESTAMPTZ NOT NULL
);
ALTER TABLE acl.outcome_history ADD COLUMN IF NOT EXISTS request_id TEXT NOT NULL DEFAULT '';
CREATE INDEX IF NOT EXISTS outcome_history_recorded_at_idx ON acl.outcome_history (recorded_at DESC);
`

// Execer runs a statement; satisfied by *pgxpool.Pool and pgxmock pools.
type Execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// DSN renders the connection string for cfg.
func DSN(cfg config.PostgresSettings) string {
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(cfg.User, cfg.Password),
		Host:     fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Path:     cfg.Database,
		RawQuery: url.Values{"sslmode": []string{cfg.SSLMode}}.Encode(),
	}
	return u.String()
}

// NewPostgresPool opens the pool backing the outcome history.
func NewPostgresPool(ctx context.Context, cfg config.PostgresSettings, log *zap.Logger) (*pgxpool.Pool, error) {
	poolConfig, err := pgxpool.ParseConfig(DSN(cfg))
	if err != nil {
		return nil, fmt.Errorf("parse pgx pool config: %w", err)
	}

	if cfg.MaxConns > 0 {
		poolConfig.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		poolConfig.MinConns = cfg.MinConns
	}
	if cfg.MaxConnLifetime > 0 {
		poolConfig.MaxConnLifetime = cfg.MaxConnLifetime
	}
	if cfg.MaxConnIdleTime > 0 {
		poolConfig.MaxConnIdleTime = cfg.MaxConnIdleTime
	}
	if cfg.HealthCheckPeriod > 0 {
		poolConfig.HealthCheckPeriod = cfg.HealthCheckPeriod
	}

	if poolConfig.ConnConfig.RuntimeParams == nil {
		poolConfig.ConnConfig.RuntimeParams = make(map[string]string)
	}
	poolConfig.ConnConfig.RuntimeParams["search_path"] = fmt.Sprintf("%s,public", aclSchema)

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}

	log.Info("connected to postgres",
		zap.String("host", cfg.Host),
		zap.Int("port", cfg.Port),
		zap.String("database", cfg.Database),
		zap.Int32("max_conns", poolConfig.MaxConns),
	)

	return pool, nil
}

// Migrate creates the acl schema objects if they are missing.
func Migrate(ctx context.Context, exec Execer) error {
	if _, err := exec.Exec(ctx, outcomeHistoryDDL); err != nil {
		return fmt.Errorf("migrate outcome history: %w", err)
	}
	return nil
}
