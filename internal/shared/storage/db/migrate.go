package db

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"strings"

	"github.com/pressly/goose/v3"

	"docflow-backend/internal/shared/telemetry"
)

//go:embed migrations/*.sql
var migrationFiles embed.FS

const migrationsDir = "migrations"

// Direction selects which way Migrate moves the schema.
type Direction string

const (
	Up   Direction = "up"
	Down Direction = "down"
)

// ParseDirection accepts "up" or "down" in any case; empty means up.
func ParseDirection(raw string) (Direction, error) {
	switch Direction(strings.ToLower(strings.TrimSpace(raw))) {
	case "", Up:
		return Up, nil
	case Down:
		return Down, nil
	}
	return "", fmt.Errorf("unknown migration direction %q", raw)
}

// RunMigrations brings the documents/ingestions/users schema up to date.
// A nil database means the memory repositories are in use and nothing runs.
func RunMigrations(ctx context.Context, database *sql.DB) error {
	_, err := Migrate(ctx, database, Up)
	return err
}

// Migrate applies (Up) or rolls back one step of (Down) the embedded goose
// migrations and returns the schema version afterwards.
func Migrate(ctx context.Context, database *sql.DB, dir Direction) (int64, error) {
	if database == nil {
		return 0, nil
	}
	goose.SetBaseFS(migrationFiles)
	if err := goose.SetDialect("postgres"); err != nil {
		return 0, err
	}

	var err error
	switch dir {
	case Up:
		err = goose.UpContext(ctx, database, migrationsDir)
	case Down:
		err = goose.DownContext(ctx, database, migrationsDir)
	default:
		return 0, fmt.Errorf("unknown migration direction %q", dir)
	}
	if err != nil {
		return 0, fmt.Errorf("migrate %s: %w", dir, err)
	}

	version, err := goose.GetDBVersionContext(ctx, database)
	if err != nil {
		return 0, fmt.Errorf("read schema version: %w", err)
	}
	telemetry.Info("db.migrated", map[string]any{"direction": string(dir), "version": version})
	return version, nil
}
