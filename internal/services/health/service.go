package health

import (
	"context"
	"time"

	"docflow-backend/internal/shared/telemetry"
)

const pingTimeout = 2 * time.Second

// Pinger reports whether a dependency is reachable.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// Status is the health payload.
type Status struct {
	OK       bool   `json:"ok"`
	Database string `json:"database"`
	Store    string `json:"store"`
}

// Service encapsulates health-related checks.
type Service struct {
	DB        Pinger
	StoreType string
}

// NewService constructs a new health service. A nil db means in-memory
// repositories are in use.
func NewService(db Pinger, storeType string) *Service {
	return &Service{DB: db, StoreType: storeType}
}

// Status checks the database, when one is configured.
func (s *Service) Status(ctx context.Context) Status {
	st := Status{OK: true, Database: "memory", Store: s.StoreType}
	if s.DB == nil {
		return st
	}
	ctx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	if err := s.DB.PingContext(ctx); err != nil {
		telemetry.Warn("health.database_unreachable", map[string]any{"error": err})
		st.OK = false
		st.Database = "down"
		return st
	}
	st.Database = "up"
	return st
}
