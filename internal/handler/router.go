package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/hw-lee/chulseok-api/internal/middleware"
	"github.com/hw-lee/chulseok-api/pkg/config"
	"github.com/hw-lee/chulseok-api/pkg/logger"
	"github.com/hw-lee/chulseok-api/pkg/middleware/cors"
	"github.com/hw-lee/chulseok-api/pkg/middleware/requestid"
)

// Handlers bundles everything the router mounts.
type Handlers struct {
	Students      *StudentHandler
	Attendance    *AttendanceHandler
	Backups       *BackupHandler
	History       *HistoryHandler
	Notifications *NotificationHandler
	Settings      *SettingsHandler
	Exports       *ExportHandler
	Maintenance   *MaintenanceHandler
}

// NewRouter assembles the gin engine with middleware and all routes.
func NewRouter(cfg *config.Config, log *zap.Logger, h Handlers) *gin.Engine {
	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(requestid.Middleware())
	engine.Use(logger.GinMiddleware(log))
	engine.Use(cors.New(cfg.CORS.AllowedOrigins))
	engine.Use(middleware.Metrics())

	engine.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	engine.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := engine.Group(cfg.APIPrefix)
	h.Students.Register(api)
	h.Attendance.Register(api)
	h.Backups.Register(api)
	h.History.Register(api)
	h.Notifications.Register(api)
	h.Settings.Register(api)
	h.Exports.Register(api)
	h.Maintenance.Register(api)

	return engine
}
