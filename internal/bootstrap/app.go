package bootstrap

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/gin-gonic/gin"

	"docflow-backend/internal/documents"
	"docflow-backend/internal/ingestions"
	"docflow-backend/internal/queue"
	"docflow-backend/internal/services/health"
	"docflow-backend/internal/shared/auth"
	"docflow-backend/internal/shared/config"
	"docflow-backend/internal/shared/server"
	"docflow-backend/internal/shared/storage/db"
	"docflow-backend/internal/shared/storage/object"
	localstore "docflow-backend/internal/shared/storage/object/local"
	s3store "docflow-backend/internal/shared/storage/object/s3"
	"docflow-backend/internal/shared/telemetry"
	"docflow-backend/internal/users"
)

// App holds shared dependencies.
type App struct {
	Config            config.Config
	Router            *gin.Engine
	DB                *sql.DB
	Store             object.ObjectStore
	Events            queue.Client
	Signer            *auth.Signer
	Scheduler         *ingestions.Scheduler
	DocumentsService  *documents.Service
	IngestionsService *ingestions.Service
	UsersService      *users.Service
}

// Option adjusts the App before routes are wired.
type Option func(*App)

// WithAdvanceOptions overrides the ingestion timing and randomness.
func WithAdvanceOptions(opts ingestions.AdvanceOptions) Option {
	return func(a *App) {
		if a.IngestionsService != nil {
			a.IngestionsService.Options = opts
		}
	}
}

// Build prepares shared dependencies and the router.
func Build(ctx context.Context, cfg config.Config, opts ...Option) (*App, error) {
	if strings.TrimSpace(cfg.Env) == "" {
		cfg.Env = "dev"
	}
	if strings.TrimSpace(cfg.ObjectStoreType) == "" {
		cfg.ObjectStoreType = "local"
	}

	sqlDB, err := buildDB(ctx, cfg)
	if err != nil {
		return nil, err
	}
	store, err := buildStore(ctx, cfg)
	if err != nil {
		return nil, err
	}
	events, err := buildEvents(ctx, cfg)
	if err != nil {
		return nil, err
	}
	signer, err := auth.NewSigner(cfg.JWTSecret, cfg.JWTTTL, cfg.Env)
	if err != nil {
		return nil, err
	}

	app := &App{
		Config: cfg,
		DB:     sqlDB,
		Store:  store,
		Events: events,
		Signer: signer,
	}
	buildServices(app)
	for _, opt := range opts {
		opt(app)
	}

	var pinger health.Pinger
	if sqlDB != nil {
		pinger = sqlDB
	}
	app.Router = server.NewRouter(server.RouterDeps{
		Config:           cfg,
		Verifier:         signer,
		Health:           health.NewService(pinger, cfg.ObjectStoreType),
		DocumentHandler:  documents.NewHandler(app.DocumentsService, store, cfg.MaxUploadBytes),
		IngestionHandler: ingestions.NewHandler(app.IngestionsService),
		UserHandler:      users.NewHandler(app.UsersService),
		TestMode:         gin.Mode() == gin.TestMode,
	})
	return app, nil
}

// Start resumes ingestions left unfinished by a previous process.
func (a *App) Start(ctx context.Context) error {
	if !a.Config.IngestionResumeOnStart {
		return nil
	}
	n, err := a.IngestionsService.ResumePending(ctx)
	if err != nil {
		return fmt.Errorf("resume ingestions: %w", err)
	}
	telemetry.Info("bootstrap.ingestions_resumed", map[string]any{"count": n})
	return nil
}

// Shutdown waits for background ingestions and releases the database.
func (a *App) Shutdown(ctx context.Context) error {
	var errs []error
	if a.Scheduler != nil {
		if err := a.Scheduler.Shutdown(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	if a.DB != nil {
		if err := a.DB.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func buildDB(ctx context.Context, cfg config.Config) (*sql.DB, error) {
	if strings.TrimSpace(cfg.DatabaseURL) == "" {
		if isDevLike(cfg.Env) {
			telemetry.Warn("bootstrap.memory_repositories", map[string]any{"reason": "DATABASE_URL empty"})
			return nil, nil
		}
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	sqlDB, err := db.Connect(ctx, cfg.DatabaseURL, db.OptionsFromEnv(db.DefaultServerOptions()))
	if err != nil {
		if isDevLike(cfg.Env) {
			telemetry.Warn("bootstrap.memory_repositories", map[string]any{"reason": "database connect failed", "error": err})
			return nil, nil
		}
		return nil, err
	}
	if err := db.RunMigrations(ctx, sqlDB); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return sqlDB, nil
}

func buildStore(ctx context.Context, cfg config.Config) (object.ObjectStore, error) {
	switch cfg.ObjectStoreType {
	case "s3":
		return s3store.New(ctx, cfg.AWSRegion, cfg.S3Bucket, cfg.S3Prefix)
	default:
		return localstore.New(cfg.LocalStoreDir)
	}
}

func buildEvents(ctx context.Context, cfg config.Config) (queue.Client, error) {
	if strings.TrimSpace(cfg.IngestionEventsQueueURL) == "" {
		return queue.Nop{}, nil
	}
	return queue.NewSQSClient(ctx, cfg.AWSRegion, cfg.IngestionEventsQueueURL)
}

func buildServices(app *App) {
	var (
		docRepo       documents.Repo
		ingestionRepo ingestions.Repo
		userRepo      users.Repo
	)
	if app.DB != nil {
		docRepo = &documents.PGRepo{DB: app.DB}
		ingestionRepo = &ingestions.PGRepo{DB: app.DB}
		userRepo = &users.PGRepo{DB: app.DB}
	} else {
		docRepo = documents.NewMemoryRepo()
		ingestionRepo = ingestions.NewMemoryRepo()
		userRepo = users.NewMemoryRepo()
	}

	docSvc := documents.NewService(docRepo, app.Store)
	scheduler := ingestions.NewScheduler(0)
	ingestionSvc := ingestions.NewService(ingestionRepo, docSvc, scheduler, app.Events, ingestions.AdvanceOptions{
		QueuedDelay:     app.Config.IngestionQueuedDelay,
		ProcessingDelay: app.Config.IngestionProcessingDelay,
	})

	app.Scheduler = scheduler
	app.DocumentsService = docSvc
	app.IngestionsService = ingestionSvc
	app.UsersService = users.NewService(userRepo, app.Signer, docSvc, app.Config.AdminEmails)
}

func isDevLike(env string) bool {
	switch strings.ToLower(strings.TrimSpace(env)) {
	case "dev", "local":
		return true
	default:
		return false
	}
}
