package app

import (
	"context"
	"database/sql"
	"net/http"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	libdb "smartcharge/backend/libs/db"
	libredis "smartcharge/backend/libs/redis"
	"smartcharge/backend/services/advisor-service/internal/advisory"
	"smartcharge/backend/services/advisor-service/internal/config"
	httpserver "smartcharge/backend/services/advisor-service/internal/http"
	"smartcharge/backend/services/advisor-service/internal/http/handlers"
	"smartcharge/backend/services/advisor-service/internal/http/middleware"
	"smartcharge/backend/services/advisor-service/internal/llm"
	redisstore "smartcharge/backend/services/advisor-service/internal/redis"
	"smartcharge/backend/services/advisor-service/internal/repository"
	"smartcharge/backend/services/advisor-service/internal/service"
)

// App wires advisor-service dependencies.
type App struct {
	server      *httpserver.Server
	db          *sql.DB
	redisClient *redis.Client
	logger      *zap.Logger
}

// New constructs the application graph. The record store and the grid store are
// optional; without them recommendations for the caller use defaults only.
func New(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*App, error) {
	invoker, err := NewInvoker(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}

	a := &App{logger: logger}
	svc, err := a.newService(cfg, invoker)
	if err != nil {
		a.Close()
		return nil, err
	}

	var auth func(http.Handler) http.Handler
	if cfg.AuthEnabled() {
		auth = middleware.AuthMiddleware(cfg.JWT.Secret)
	} else {
		logger.Warn("jwt secret not set, identity-bound routes are disabled")
	}

	router := httpserver.NewRouter(httpserver.RouterDeps{
		AdvisoryHandlers: handlers.NewAdvisoryHandlers(svc, logger),
		GridHandlers:     handlers.NewGridHandlers(svc, logger),
		HealthHandler:    handlers.NewHealthHandler(invoker.Model()),
	}, auth)

	a.server = httpserver.NewServer(
		cfg.HTTPAddress(),
		router,
		logger,
		middleware.RequestIDMiddleware(),
		middleware.LoggingMiddleware(logger),
		middleware.RecoveryMiddleware(logger),
	)
	return a, nil
}

// NewInvoker builds the Gemini model invoker from configuration.
func NewInvoker(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*llm.GeminiInvoker, error) {
	return llm.NewGeminiInvoker(ctx, llm.GeminiConfig{
		APIKey:      cfg.Gemini.APIKey,
		Model:       cfg.Gemini.Model,
		BaseURL:     cfg.Gemini.BaseURL,
		Timeout:     cfg.Gemini.Timeout,
		Temperature: cfg.Gemini.Temperature,
	}, logger)
}

func (a *App) newService(cfg *config.Config, invoker advisory.Invoker) (*service.AdvisorService, error) {
	patterns, err := advisory.NewPatternAnalysis(invoker, a.logger)
	if err != nil {
		return nil, err
	}
	recommendation, err := advisory.NewRecommendation(invoker, a.logger)
	if err != nil {
		return nil, err
	}

	var sessions service.SessionReader
	if cfg.DatabaseEnabled() {
		a.db, err = libdb.NewPostgresDB(cfg.Database.DSN, libdb.PoolOptions{
			MaxOpenConns: cfg.Database.MaxOpenConns,
			MaxIdleConns: cfg.Database.MaxIdleConns,
		})
		if err != nil {
			return nil, err
		}
		sessions = repository.NewSessionRepository(a.db)
	}

	var grid service.GridConditionsStore
	if cfg.RedisEnabled() {
		a.redisClient, err = libredis.NewRedisClient(libredis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err != nil {
			return nil, err
		}
		grid = redisstore.NewGridStore(a.redisClient, cfg.GridSnapshotTTL())
	}

	a.logger.Info("advisor configured",
		zap.Bool("record_store", sessions != nil),
		zap.Bool("grid_store", grid != nil),
		zap.Int("recent_sessions", cfg.Advisor.RecentSessions),
	)

	return service.NewAdvisorService(patterns, recommendation, sessions, grid, service.Options{
		RecentSessionsLimit: cfg.Advisor.RecentSessions,
		DefaultGrid:         cfg.DefaultGrid(),
	}, a.logger), nil
}

// Run starts HTTP server.
func (a *App) Run(ctx context.Context) error {
	return a.server.Run(ctx)
}

// Close releases resources.
func (a *App) Close() {
	if a.db != nil {
		if err := a.db.Close(); err != nil {
			a.logger.Warn("failed to close db", zap.Error(err))
		}
	}
	if a.redisClient != nil {
		if err := a.redisClient.Close(); err != nil {
			a.logger.Warn("failed to close redis", zap.Error(err))
		}
	}
}
