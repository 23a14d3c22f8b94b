package app

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"github.com/yungbote/neurobridge-mastery/internal/data/db"
	"github.com/yungbote/neurobridge-mastery/internal/http"
	"github.com/yungbote/neurobridge-mastery/internal/observability"
	"github.com/yungbote/neurobridge-mastery/internal/platform/logger"
)

type App struct {
	Log      *logger.Logger
	DB       *gorm.DB
	Cfg      Config
	Repos    Repos
	Services Services
	Server   *http.Server

	dbService    *db.Service
	redis        *redis.Client
	otelShutdown func(context.Context) error
	started      bool
}

func New() (*App, error) {
	logMode := os.Getenv("LOG_MODE")
	if logMode == "" {
		logMode = "development"
	}
	log, err := logger.New(logMode)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}

	log.Info("Loading environment variables...")
	cfg := LoadConfig(log)

	ctx := context.Background()
	tracing := observability.TracingConfigFromEnv(log)
	otelShutdown := observability.InitTracing(ctx, log, tracing)

	dbService, err := db.NewService(log, cfg.DB)
	if err != nil {
		log.Sync()
		return nil, fmt.Errorf("init db: %w", err)
	}
	if err := dbService.AutoMigrateAll(); err != nil {
		_ = dbService.Close()
		log.Sync()
		return nil, fmt.Errorf("db automigrate: %w", err)
	}
	theDB := dbService.DB()

	locker, redisClient, err := wireLocker(ctx, log, cfg)
	if err != nil {
		_ = dbService.Close()
		log.Sync()
		return nil, err
	}

	reposet := wireRepos(theDB, log)
	serviceset, err := wireServices(theDB, log, cfg, reposet, locker)
	if err != nil {
		_ = dbService.Close()
		log.Sync()
		return nil, err
	}
	handlerset := wireHandlers(log, serviceset)

	return &App{
		Log:          log,
		DB:           theDB,
		Cfg:          cfg,
		Repos:        reposet,
		Services:     serviceset,
		Server:       wireServer(log, cfg, tracing.ServiceName, handlerset),
		dbService:    dbService,
		redis:        redisClient,
		otelShutdown: otelShutdown,
	}, nil
}

// Start launches the maintenance scheduler.
func (a *App) Start() {
	if a == nil || a.started {
		return
	}
	a.started = true
	if a.Cfg.SchedulerEnabled && a.Services.Scheduler != nil {
		a.Services.Scheduler.Start()
	}
}

// Run serves HTTP until the server is shut down.
func (a *App) Run() error {
	if a == nil || a.Server == nil {
		return fmt.Errorf("app not initialized")
	}
	a.Log.Info("HTTP server listening", "addr", a.Cfg.HTTPAddr)
	return a.Server.Run()
}

// Close stops the HTTP server, then the scheduler, then releases clients. Each step shares
// the configured shutdown timeout.
func (a *App) Close() {
	if a == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), a.Cfg.ShutdownTimeout)
	defer cancel()

	if a.Server != nil {
		if err := a.Server.Shutdown(ctx); err != nil {
			a.Log.Warn("HTTP shutdown failed", "error", err)
		}
	}
	if a.Services.Scheduler != nil {
		a.Services.Scheduler.Stop(ctx)
	}
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			a.Log.Warn("Redis close failed", "error", err)
		}
	}
	if a.dbService != nil {
		if err := a.dbService.Close(); err != nil {
			a.Log.Warn("DB close failed", "error", err)
		}
	}
	if a.otelShutdown != nil {
		flushCtx, flushCancel := context.WithTimeout(context.Background(), 5*time.Second)
		_ = a.otelShutdown(flushCtx)
		flushCancel()
	}
	a.Log.Sync()
}
