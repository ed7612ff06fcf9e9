package main

// Apply or roll back the schema:
//   go run ./cmd/migrate            # up to latest
//   go run ./cmd/migrate -dir down  # roll back one version

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"docflow-backend/internal/shared/config"
	"docflow-backend/internal/shared/storage/db"
	"docflow-backend/internal/shared/telemetry"
)

func main() {
	rawDir := flag.String("dir", "up", "migration direction: up or down")
	flag.Parse()

	cfg := config.Load()
	telemetry.Init(cfg.Env)
	os.Exit(run(cfg, *rawDir))
}

func run(cfg config.Config, rawDir string) int {
	defer telemetry.Sync()

	dir, err := db.ParseDirection(rawDir)
	if err != nil {
		telemetry.Error("migrate.bad_flag", map[string]any{"error": err})
		return 2
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool, err := db.Connect(ctx, cfg.DatabaseURL, db.OptionsFromEnv(db.DefaultMigrateOptions()))
	if err != nil {
		telemetry.Error("migrate.connect_failed", map[string]any{"error": err})
		return 1
	}
	defer pool.Close()

	version, err := db.Migrate(ctx, pool, dir)
	if err != nil {
		telemetry.Error("migrate.failed", map[string]any{"direction": string(dir), "error": err})
		return 1
	}
	telemetry.Info("migrate.done", map[string]any{"direction": string(dir), "version": version})
	return 0
}
