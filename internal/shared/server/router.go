package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"docflow-backend/internal/documents"
	"docflow-backend/internal/ingestions"
	"docflow-backend/internal/services/health"
	"docflow-backend/internal/shared/config"
	"docflow-backend/internal/shared/metrics"
	"docflow-backend/internal/shared/server/middleware"
	"docflow-backend/internal/shared/server/respond"
	"docflow-backend/internal/users"
)

const triggerBurst = 5

// RouterDeps holds the handlers mounted on the API.
type RouterDeps struct {
	Config           config.Config
	Verifier         middleware.TokenVerifier
	Health           *health.Service
	DocumentHandler  *documents.Handler
	IngestionHandler *ingestions.Handler
	UserHandler      *users.Handler
	RateLimiter      *middleware.RateLimiter
	// TestMode leaves the gin mode untouched.
	TestMode bool
}

// NewRouter constructs the Gin engine with middleware and routes registered.
func NewRouter(deps RouterDeps) *gin.Engine {
	if !deps.TestMode {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()

	r.Use(
		middleware.RequestID(),
		middleware.Logging(),
		middleware.Recovery(),
		middleware.CORS(deps.Config.CORSAllowOrigin),
	)

	r.GET("/metrics", metrics.Handler())

	api := r.Group("/api/v1")
	api.GET("/health", func(c *gin.Context) {
		if deps.Health == nil {
			respond.OK(c, gin.H{"ok": true})
			return
		}
		st := deps.Health.Status(c.Request.Context())
		status := http.StatusOK
		if !st.OK {
			status = http.StatusServiceUnavailable
		}
		respond.JSON(c, status, st)
	})
	if deps.UserHandler != nil {
		deps.UserHandler.RegisterPublicRoutes(api)
	}

	authed := api.Group("",
		middleware.Auth(deps.Verifier),
		middleware.RateLimit(middleware.RateLimitConfig{
			GroupFor: triggerGroup,
			Limiter:  deps.RateLimiter,
			Rules: map[string]middleware.RateLimitRule{
				middleware.TriggerRateLimitGroup: {
					Rate:  deps.Config.TriggerRatePerMinute / 60,
					Burst: triggerBurst,
				},
			},
		}),
	)
	registerMeRoutes(authed)
	if deps.DocumentHandler != nil {
		deps.DocumentHandler.RegisterRoutes(authed)
	}
	if deps.IngestionHandler != nil {
		deps.IngestionHandler.RegisterRoutes(authed)
	}
	if deps.UserHandler != nil {
		deps.UserHandler.RegisterRoutes(authed)
	}

	return r
}

func triggerGroup(c *gin.Context) string {
	if c.Request.Method == http.MethodPost && strings.HasSuffix(c.FullPath(), "/trigger") {
		return middleware.TriggerRateLimitGroup
	}
	return ""
}

// Addr normalizes the listen address.
func Addr(port string) string {
	if port == "" {
		return ":8080"
	}
	if port[0] == ':' {
		return port
	}
	return ":" + port
}
