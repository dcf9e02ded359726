package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/wpvault/wpvault/internal/api/handler"
	mw "github.com/wpvault/wpvault/internal/api/middleware"
	"github.com/wpvault/wpvault/internal/api/response"
	"github.com/wpvault/wpvault/internal/backup"
	"github.com/wpvault/wpvault/internal/backup/github"
	s3provider "github.com/wpvault/wpvault/internal/backup/s3"
	"github.com/wpvault/wpvault/internal/config"
	"github.com/wpvault/wpvault/internal/core"
	"github.com/wpvault/wpvault/internal/token"
)

type Server struct {
	router   chi.Router
	logger   zerolog.Logger
	services *core.Services
	pool     *pgxpool.Pool
	registry *backup.Registry
	engine   *token.Engine
	tokens   token.Store
	cfg      *config.Config
}

func NewServer(logger zerolog.Logger, pool *pgxpool.Pool, cfg *config.Config) *Server {
	services := core.NewServices(pool)

	registry := backup.NewRegistry(logger)
	registry.Register(github.NewFactory(cfg.GitHubAPIBaseURL, http.DefaultClient, logger))
	registry.Register(s3provider.NewFactory(logger))

	engine := token.NewEngine(cfg.OAuthClients, http.DefaultClient, logger)

	s := &Server{
		router:   chi.NewRouter(),
		logger:   logger,
		services: services,
		pool:     pool,
		registry: registry,
		engine:   engine,
		tokens:   token.NewMemoryStore(),
		cfg:      cfg,
	}

	s.setupMiddleware()
	s.setupRoutes()

	return s
}

func (s *Server) setupMiddleware() {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(mw.RequestLogger(s.logger))
	s.router.Use(middleware.Recoverer)
	s.router.Use(mw.Metrics)
}

func (s *Server) setupRoutes() {
	// Prometheus metrics endpoint
	s.router.Handle("/metrics", promhttp.Handler())

	// Health check endpoints
	s.router.Get("/healthz", s.handleHealthz)
	s.router.Get("/readyz", s.handleReadyz)

	s.router.Route("/api/v1", func(r chi.Router) {
		r.Use(mw.Auth(s.services.APIKey))
		r.Use(mw.Session)

		// Provider tokens
		tok := handler.NewToken(s.engine, s.tokens)
		r.Put("/tokens/{provider}", tok.Connect)
		r.Delete("/tokens/{provider}", tok.Disconnect)
		r.Post("/tokens/{provider}/refresh", tok.Refresh)

		// Provider types and connection tests
		provider := handler.NewProvider(s.registry, s.services.BackupConfig)
		r.Get("/providers", provider.List)

		// Backup configs
		backupConfig := handler.NewBackupConfig(s.services.BackupConfig, s.registry)
		r.Get("/backup-configs", backupConfig.List)
		r.Post("/backup-configs", backupConfig.Create)
		r.Get("/backup-configs/{id}", backupConfig.Get)
		r.Put("/backup-configs/{id}", backupConfig.Update)
		r.Delete("/backup-configs/{id}", backupConfig.Delete)
		r.Post("/backup-configs/{id}/test", provider.TestConnection)

		// Backups
		chain := backup.NewChainResolver(s.services.Backup, s.logger)
		bk := handler.NewBackup(s.services.Backup, s.services.BackupConfig, s.registry, chain)
		r.Post("/sites/{siteID}/backups", bk.Create)
		r.Get("/sites/{siteID}/backups", bk.List)
		r.Get("/backup-configs/{id}/backups", bk.ListRemote)
		r.Get("/backups/{id}", bk.Get)
		r.Delete("/backups/{id}", bk.Delete)
		r.Post("/backups/{id}/restore", bk.Restore)
		r.Get("/backups/{id}/chain", bk.Chain)
		r.Get("/backups/{id}/file", bk.DownloadFile)

		// API keys
		apiKey := handler.NewAPIKey(s.services.APIKey)
		r.Get("/api-keys", apiKey.List)
		r.Post("/api-keys", apiKey.Create)
		r.Delete("/api-keys/{id}", apiKey.Revoke)
	})
}

func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	response.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleReadyz(w http.ResponseWriter, r *http.Request) {
	if err := s.pool.Ping(r.Context()); err != nil {
		response.WriteError(w, http.StatusServiceUnavailable, "database unavailable")
		return
	}
	response.WriteJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

// Handler returns the root http handler.
func (s *Server) Handler() http.Handler {
	return s.router
}
