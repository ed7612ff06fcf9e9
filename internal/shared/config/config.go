package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"docflow-backend/internal/shared/telemetry"
)

// Config holds application configuration.
type Config struct {
	Port            string
	CORSAllowOrigin []string
	ObjectStoreType string
	LocalStoreDir   string
	AWSRegion       string
	S3Bucket        string
	S3Prefix        string
	DatabaseURL     string
	Env             string
	JWTSecret       string
	JWTTTL          time.Duration
	MaxUploadBytes  int64
	AdminEmails     []string

	IngestionQueuedDelay     time.Duration
	IngestionProcessingDelay time.Duration
	IngestionResumeOnStart   bool
	IngestionEventsQueueURL  string
	TriggerRatePerMinute     float64
}

// Load reads configuration from environment variables with sensible defaults.
func Load() Config {
	if files := loadEnvFiles(envFiles...); len(files) > 0 {
		telemetry.Debug("config.env_files", map[string]any{"files": files})
	}

	env := normalizeEnv(getEnv("ENV", "dev"))
	dbURL := os.Getenv("DATABASE_URL")

	if env == "production" && dbURL == "" {
		telemetry.Warn("config.database_url_missing", map[string]any{"env": env})
	}

	return Config{
		Port:            getEnv("PORT", "8080"),
		CORSAllowOrigin: splitAndTrim(getEnv("CORS_ALLOW_ORIGINS", "http://localhost:5173")),
		ObjectStoreType: normalizeStoreType(getEnv("OBJECT_STORE", "local")),
		LocalStoreDir:   getEnv("LOCAL_STORE_DIR", "./uploads"),
		AWSRegion:       getEnv("AWS_REGION", ""),
		S3Bucket:        getEnv("S3_BUCKET", ""),
		S3Prefix:        getEnv("S3_PREFIX", ""),
		DatabaseURL:     dbURL,
		Env:             env,
		JWTSecret:       getEnv("JWT_SECRET", ""),
		JWTTTL:          getDuration("JWT_TTL", 24*time.Hour),
		MaxUploadBytes:  getInt64("MAX_UPLOAD_BYTES", 3<<20),
		AdminEmails:     splitAndTrim(getEnv("ADMIN_EMAILS", "")),

		IngestionQueuedDelay:     getDuration("INGESTION_QUEUED_DELAY", 2*time.Second),
		IngestionProcessingDelay: getDuration("INGESTION_PROCESSING_DELAY", 3*time.Second),
		IngestionResumeOnStart:   getBool("INGESTION_RESUME_ON_START", true),
		IngestionEventsQueueURL:  getEnv("INGESTION_EVENTS_QUEUE_URL", ""),
		TriggerRatePerMinute:     getFloat("INGESTION_TRIGGER_RATE_PER_MINUTE", 30),
	}
}

func getEnv(key, def string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return def
}

func invalid(key, raw string) {
	telemetry.Warn("config.invalid_value", map[string]any{"key": key, "value": raw})
}

func getDuration(key string, def time.Duration) time.Duration {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	val, err := time.ParseDuration(raw)
	if err != nil {
		invalid(key, raw)
		return def
	}
	return val
}

func getInt64(key string, def int64) int64 {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	val, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || val <= 0 {
		invalid(key, raw)
		return def
	}
	return val
}

func getFloat(key string, def float64) float64 {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	val, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		invalid(key, raw)
		return def
	}
	return val
}

func getBool(key string, def bool) bool {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	val, err := strconv.ParseBool(raw)
	if err != nil {
		invalid(key, raw)
		return def
	}
	return val
}

func splitAndTrim(raw string) []string {
	parts := strings.Split(raw, ",")
	var out []string
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func normalizeEnv(raw string) string {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "production", "prod":
		return "production"
	case "staging":
		return "staging"
	case "local":
		return "local"
	case "development", "dev":
		return "dev"
	default:
		return "dev"
	}
}

func normalizeStoreType(raw string) string {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "s3":
		return "s3"
	default:
		return "local"
	}
}
