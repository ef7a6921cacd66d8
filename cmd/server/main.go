package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/hw-lee/chulseok-api/internal/handler"
	"github.com/hw-lee/chulseok-api/internal/repository"
	"github.com/hw-lee/chulseok-api/internal/service"
	"github.com/hw-lee/chulseok-api/pkg/cache"
	"github.com/hw-lee/chulseok-api/pkg/config"
	"github.com/hw-lee/chulseok-api/pkg/database"
	"github.com/hw-lee/chulseok-api/pkg/logger"
	"github.com/hw-lee/chulseok-api/pkg/storage"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "init logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync() //nolint:errcheck

	if err := run(cfg, log); err != nil {
		log.Fatal("server exited", zap.Error(err))
	}
}

func run(cfg *config.Config, log *zap.Logger) error {
	db, err := openDatabase(cfg)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	if err := database.Migrate(db); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	log.Info("database ready", zap.String("engine", cfg.Storage.Engine))

	store, err := storage.NewLocalStorage(cfg.Backup.StorageDir)
	if err != nil {
		return fmt.Errorf("init backup storage: %w", err)
	}

	studentRepo := repository.NewStudentRepository(db)
	attendanceRepo := repository.NewAttendanceRepository(db)
	historyRepo := repository.NewHistoryRepository(db)
	backupRepo := repository.NewBackupRepository(db)
	notificationRepo := repository.NewNotificationRepository(db)
	settingsRepo := repository.NewSettingsRepository(db)
	snapshotRepo := repository.NewSnapshotRepository(db)

	notifications := service.NewNotificationService(notificationRepo, log)

	var summaryCache *service.SummaryCache
	if cfg.Redis.Enabled {
		client, err := cache.NewRedis(cfg.Redis)
		if err != nil {
			log.Warn("redis unavailable, summaries served uncached", zap.Error(err))
		} else {
			defer client.Close()
			summaryCache = service.NewSummaryCache(client, cfg.Summary.CacheTTL, log)
		}
	}

	attendance := newAttendanceService(attendanceRepo, studentRepo, historyRepo, notifications, summaryCache, log)
	students := service.NewStudentService(studentRepo, snapshotRepo, historyRepo, notifications, log)
	backups := service.NewBackupService(backupRepo, studentRepo, attendanceRepo, settingsRepo, snapshotRepo, store, notifications, cfg.Backup.Retention, log)
	settings := service.NewSettingsService(settingsRepo, historyRepo, log)
	history := service.NewHistoryService(historyRepo, log)
	exports := service.NewExportService(students, attendance, log)
	maintenance := service.NewMaintenanceService(historyRepo, notificationRepo, studentRepo, attendanceRepo,
		cfg.Backup.HistoryRetention, cfg.Backup.ReadNotifTTL, log)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	scheduler := service.NewBackupScheduler(backups, cfg.Backup.Interval, log)
	scheduler.Start(ctx)
	maintenance.Start(ctx, cfg.Backup.CleanupInterval)

	engine := handler.NewRouter(cfg, log, handler.Handlers{
		Students:      handler.NewStudentHandler(students),
		Attendance:    handler.NewAttendanceHandler(attendance),
		Backups:       handler.NewBackupHandler(backups),
		History:       handler.NewHistoryHandler(history),
		Notifications: handler.NewNotificationHandler(notifications),
		Settings:      handler.NewSettingsHandler(settings),
		Exports:       handler.NewExportHandler(exports),
		Maintenance:   handler.NewMaintenanceHandler(maintenance),
	})

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("listening", zap.Int("port", cfg.Port))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	log.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Warn("http shutdown", zap.Error(err))
	}
	maintenance.Stop()
	// Stop writes the final snapshot, so it runs after the HTTP server has
	// drained and before the database closes.
	scheduler.Stop(shutdownCtx)

	log.Info("shutdown complete")
	return nil
}

func openDatabase(cfg *config.Config) (*sqlx.DB, error) {
	switch cfg.Storage.Engine {
	case config.EnginePostgres:
		return database.NewPostgres(cfg.Database)
	case config.EngineSQLite, "":
		return database.NewSQLite(cfg.SQLite)
	default:
		return nil, fmt.Errorf("unsupported storage engine %q", cfg.Storage.Engine)
	}
}

func newAttendanceService(repo *repository.AttendanceRepository, students *repository.StudentRepository, history *repository.HistoryRepository, notifications *service.NotificationService, summaryCache *service.SummaryCache, log *zap.Logger) *service.AttendanceService {
	// A nil *SummaryCache must stay a nil interface inside the service.
	if summaryCache == nil {
		return service.NewAttendanceService(repo, students, history, notifications, nil, log)
	}
	return service.NewAttendanceService(repo, students, history, notifications, summaryCache, log)
}
