package config

import (
	"errors"
	"io/fs"
	"os"

	"github.com/joho/godotenv"

	"docflow-backend/internal/shared/telemetry"
)

// envFiles are consulted in order; a key set by an earlier file or by the
// process environment is never replaced by a later file.
var envFiles = []string{".env.local", ".env", "cmd/.env"}

// loadEnvFiles overlays KEY=VALUE pairs from paths onto the environment and
// returns the files that were applied. Unreadable files are logged and skipped.
func loadEnvFiles(paths ...string) []string {
	var applied []string
	for _, path := range paths {
		values, err := godotenv.Read(path)
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			telemetry.Warn("config.env_file_invalid", map[string]any{"path": path, "error": err})
			continue
		}
		for key, val := range values {
			if _, set := os.LookupEnv(key); !set {
				_ = os.Setenv(key, val)
			}
		}
		applied = append(applied, path)
	}
	return applied
}
