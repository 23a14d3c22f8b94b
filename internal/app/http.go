package app

import (
	"github.com/yungbote/neurobridge-mastery/internal/http"
	httpH "github.com/yungbote/neurobridge-mastery/internal/http/handlers"
	"github.com/yungbote/neurobridge-mastery/internal/platform/logger"
)

type Handlers struct {
	Health      *httpH.HealthHandler
	Mastery     *httpH.MasteryHandler
	Progress    *httpH.ProgressHandler
	Cache       *httpH.CacheHandler
	Maintenance *httpH.MaintenanceHandler
}

func wireHandlers(log *logger.Logger, s Services) Handlers {
	log.Info("Wiring handlers...")
	return Handlers{
		Health:      httpH.NewHealthHandler(),
		Mastery:     httpH.NewMasteryHandler(s.Hooks, s.Cache, s.Schedule, s.Preferences),
		Progress:    httpH.NewProgressHandler(s.Tasks, s.Progression),
		Cache:       httpH.NewCacheHandler(s.Cache),
		Maintenance: httpH.NewMaintenanceHandler(s.Scheduler, s.Summaries),
	}
}

func wireServer(log *logger.Logger, cfg Config, serviceName string, h Handlers) *http.Server {
	return http.NewServer(cfg.HTTPAddr, http.RouterConfig{
		Log:                log,
		ServiceName:        serviceName,
		AllowedOrigins:     cfg.AllowedOrigins,
		HealthHandler:      h.Health,
		MasteryHandler:     h.Mastery,
		ProgressHandler:    h.Progress,
		CacheHandler:       h.Cache,
		MaintenanceHandler: h.Maintenance,
	})
}
