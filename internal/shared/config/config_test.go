package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("ENV", "")
	t.Setenv("INGESTION_QUEUED_DELAY", "")
	t.Setenv("OBJECT_STORE", "")

	cfg := Load()
	if cfg.Env != "dev" {
		t.Fatalf("expected env dev, got %s", cfg.Env)
	}
	if cfg.ObjectStoreType != "local" {
		t.Fatalf("expected local store, got %s", cfg.ObjectStoreType)
	}
	if cfg.IngestionQueuedDelay != 2*time.Second {
		t.Fatalf("expected 2s queued delay, got %s", cfg.IngestionQueuedDelay)
	}
	if cfg.IngestionProcessingDelay != 3*time.Second {
		t.Fatalf("expected 3s processing delay, got %s", cfg.IngestionProcessingDelay)
	}
	if cfg.MaxUploadBytes != 3<<20 {
		t.Fatalf("expected 3MiB upload limit, got %d", cfg.MaxUploadBytes)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("ENV", "prod")
	t.Setenv("DATABASE_URL", "postgres://x")
	t.Setenv("OBJECT_STORE", "S3")
	t.Setenv("INGESTION_QUEUED_DELAY", "10ms")
	t.Setenv("INGESTION_RESUME_ON_START", "false")
	t.Setenv("MAX_UPLOAD_BYTES", "not-a-number")
	t.Setenv("ADMIN_EMAILS", " root@example.com, ,ops@example.com ")

	cfg := Load()
	if cfg.Env != "production" {
		t.Fatalf("expected production, got %s", cfg.Env)
	}
	if cfg.ObjectStoreType != "s3" {
		t.Fatalf("expected s3, got %s", cfg.ObjectStoreType)
	}
	if cfg.IngestionQueuedDelay != 10*time.Millisecond {
		t.Fatalf("expected 10ms, got %s", cfg.IngestionQueuedDelay)
	}
	if cfg.IngestionResumeOnStart {
		t.Fatalf("expected resume disabled")
	}
	if cfg.MaxUploadBytes != 3<<20 {
		t.Fatalf("expected fallback upload limit, got %d", cfg.MaxUploadBytes)
	}
	if len(cfg.AdminEmails) != 2 || cfg.AdminEmails[1] != "ops@example.com" {
		t.Fatalf("unexpected admin emails %v", cfg.AdminEmails)
	}
}

func TestLoadEnvFilesDoesNotOverride(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	if err := os.WriteFile(path, []byte("DOCFLOW_TEST_A=from-file\nDOCFLOW_TEST_B=\"quoted\"\n"), 0o600); err != nil {
		t.Fatalf("write env file: %v", err)
	}
	t.Setenv("DOCFLOW_TEST_A", "from-env")
	t.Setenv("DOCFLOW_TEST_B", "")
	os.Unsetenv("DOCFLOW_TEST_B")

	applied := loadEnvFiles(path, filepath.Join(dir, "missing.env"))
	if len(applied) != 1 || applied[0] != path {
		t.Fatalf("expected only %s applied, got %v", path, applied)
	}

	if got := os.Getenv("DOCFLOW_TEST_A"); got != "from-env" {
		t.Fatalf("expected env value to win, got %s", got)
	}
	if got := os.Getenv("DOCFLOW_TEST_B"); got != "quoted" {
		t.Fatalf("expected quoted value from file, got %s", got)
	}
}

func TestLoadEnvFilesEarlierFileWins(t *testing.T) {
	dir := t.TempDir()
	local := filepath.Join(dir, ".env.local")
	shared := filepath.Join(dir, ".env")
	if err := os.WriteFile(local, []byte("DOCFLOW_TEST_C=local\n"), 0o600); err != nil {
		t.Fatalf("write env file: %v", err)
	}
	if err := os.WriteFile(shared, []byte("DOCFLOW_TEST_C=shared\nDOCFLOW_TEST_D=shared\n"), 0o600); err != nil {
		t.Fatalf("write env file: %v", err)
	}
	t.Setenv("DOCFLOW_TEST_C", "")
	t.Setenv("DOCFLOW_TEST_D", "")
	os.Unsetenv("DOCFLOW_TEST_C")
	os.Unsetenv("DOCFLOW_TEST_D")

	loadEnvFiles(local, shared)

	if got := os.Getenv("DOCFLOW_TEST_C"); got != "local" {
		t.Fatalf("expected .env.local to win, got %s", got)
	}
	if got := os.Getenv("DOCFLOW_TEST_D"); got != "shared" {
		t.Fatalf("expected fallthrough to .env, got %s", got)
	}
}
