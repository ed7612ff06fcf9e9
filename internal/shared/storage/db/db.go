package db

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib" // pgx as the database/sql driver

	"docflow-backend/internal/shared/telemetry"
)

const driverName = "pgx"

// Options describes the connection pool and the startup connectivity check.
// The API process may come up before Postgres does, so Connect retries the
// ping ConnectAttempts times with RetryBackoff between tries.
type Options struct {
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
	PingTimeout     time.Duration
	ConnectAttempts int
	RetryBackoff    time.Duration
}

var openDB = sql.Open

// DefaultServerOptions sizes the pool for the API process, which serves
// document reads and ingestion status writes concurrently.
func DefaultServerOptions() Options {
	return Options{
		MaxOpenConns:    10,
		MaxIdleConns:    5,
		ConnMaxLifetime: time.Hour,
		ConnMaxIdleTime: 2 * time.Minute,
		PingTimeout:     5 * time.Second,
		ConnectAttempts: 3,
		RetryBackoff:    time.Second,
	}
}

// DefaultMigrateOptions keeps a single connection for cmd/migrate.
func DefaultMigrateOptions() Options {
	opts := DefaultServerOptions()
	opts.MaxOpenConns = 1
	opts.MaxIdleConns = 1
	opts.ConnectAttempts = 1
	return opts
}

// OptionsFromEnv overlays DB_* variables on defaults. Malformed values are
// logged and ignored.
func OptionsFromEnv(defaults Options) Options {
	opts := defaults
	envInt("DB_MAX_OPEN_CONNS", &opts.MaxOpenConns)
	envInt("DB_MAX_IDLE_CONNS", &opts.MaxIdleConns)
	envInt("DB_CONNECT_ATTEMPTS", &opts.ConnectAttempts)
	envDuration("DB_CONN_MAX_LIFETIME", &opts.ConnMaxLifetime)
	envDuration("DB_CONN_MAX_IDLE_TIME", &opts.ConnMaxIdleTime)
	envDuration("DB_PING_TIMEOUT", &opts.PingTimeout)
	envDuration("DB_RETRY_BACKOFF", &opts.RetryBackoff)
	return opts
}

// Connect opens the shared pool for databaseURL and waits until it answers a ping.
func Connect(ctx context.Context, databaseURL string, opts Options) (*sql.DB, error) {
	if strings.TrimSpace(databaseURL) == "" {
		return nil, fmt.Errorf("DATABASE_URL is empty")
	}
	opts = opts.normalized()

	pool, err := openDB(driverName, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	pool.SetMaxOpenConns(opts.MaxOpenConns)
	pool.SetMaxIdleConns(opts.MaxIdleConns)
	pool.SetConnMaxLifetime(opts.ConnMaxLifetime)
	pool.SetConnMaxIdleTime(opts.ConnMaxIdleTime)

	if err := ping(ctx, pool, opts); err != nil {
		pool.Close()
		return nil, err
	}

	telemetry.Info("db.connected", map[string]any{
		"max_open": pool.Stats().MaxOpenConnections,
		"max_idle": opts.MaxIdleConns,
	})
	return pool, nil
}

func ping(ctx context.Context, pool *sql.DB, opts Options) error {
	var lastErr error
	for attempt := 1; attempt <= opts.ConnectAttempts; attempt++ {
		pingCtx, cancel := context.WithTimeout(ctx, opts.PingTimeout)
		lastErr = pool.PingContext(pingCtx)
		cancel()
		if lastErr == nil {
			return nil
		}
		if attempt == opts.ConnectAttempts {
			break
		}
		telemetry.Warn("db.ping_retry", map[string]any{"attempt": attempt, "error": lastErr})
		select {
		case <-ctx.Done():
			return fmt.Errorf("ping database: %w", ctx.Err())
		case <-time.After(opts.RetryBackoff):
		}
	}
	return fmt.Errorf("ping database after %d attempts: %w", opts.ConnectAttempts, lastErr)
}

func (o Options) normalized() Options {
	def := DefaultServerOptions()
	if o.MaxOpenConns <= 0 {
		o.MaxOpenConns = def.MaxOpenConns
	}
	if o.MaxIdleConns <= 0 || o.MaxIdleConns > o.MaxOpenConns {
		o.MaxIdleConns = min(def.MaxIdleConns, o.MaxOpenConns)
	}
	if o.ConnMaxLifetime <= 0 {
		o.ConnMaxLifetime = def.ConnMaxLifetime
	}
	if o.ConnMaxIdleTime <= 0 {
		o.ConnMaxIdleTime = def.ConnMaxIdleTime
	}
	if o.PingTimeout <= 0 {
		o.PingTimeout = def.PingTimeout
	}
	if o.ConnectAttempts <= 0 {
		o.ConnectAttempts = 1
	}
	if o.RetryBackoff < 0 {
		o.RetryBackoff = 0
	}
	return o
}

func envInt(key string, dst *int) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		telemetry.Warn("db.env_invalid", map[string]any{"key": key, "error": err})
		return
	}
	*dst = v
}

func envDuration(key string, dst *time.Duration) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return
	}
	v, err := time.ParseDuration(raw)
	if err != nil {
		telemetry.Warn("db.env_invalid", map[string]any{"key": key, "error": err})
		return
	}
	*dst = v
}
