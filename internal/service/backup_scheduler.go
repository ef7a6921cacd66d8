package service

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/hw-lee/chulseok-api/internal/models"
	"github.com/hw-lee/chulseok-api/pkg/jobs"
)

// BackupScheduler drives automatic snapshots on a fixed interval. Cycles run
// through a single-worker job queue and an in-flight flag drops ticks that
// land while a snapshot is still being written.
type BackupScheduler struct {
	backups  *BackupService
	interval time.Duration
	logger   *zap.Logger

	queue    *jobs.Queue
	inFlight atomic.Bool
	cancel   context.CancelFunc
	wg       sync.WaitGroup
}

// NewBackupScheduler constructs the scheduler. An interval of zero or less
// disables ticking; Stop still writes the final snapshot.
func NewBackupScheduler(backups *BackupService, interval time.Duration, logger *zap.Logger) *BackupScheduler {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &BackupScheduler{backups: backups, interval: interval, logger: logger}
	s.queue = jobs.NewQueue("autobackup", s.run, jobs.QueueConfig{
		Workers:    1,
		MaxRetries: 1,
		RetryDelay: 30 * time.Second,
		Logger:     logger,
	})
	return s
}

// Start launches the ticker loop.
func (s *BackupScheduler) Start(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.queue.Start(ctx)

	if s.interval <= 0 {
		s.logger.Info("autobackup disabled")
		return
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.enqueue()
			}
		}
	}()
	s.logger.Info("autobackup started", zap.Duration("interval", s.interval))
}

// Stop halts the ticker and workers, then writes one final snapshot so a
// shutdown never loses the latest state.
func (s *BackupScheduler) Stop(ctx context.Context) {
	if s.cancel != nil {
		s.cancel()
	}
	s.wg.Wait()
	s.queue.Stop()

	if _, err := s.backups.CreateSnapshot(ctx, models.BackupTypeAuto, "final backup on shutdown"); err != nil {
		s.logger.Error("final backup on shutdown", zap.Error(err))
	}
}

func (s *BackupScheduler) enqueue() {
	if !s.inFlight.CompareAndSwap(false, true) {
		s.logger.Debug("autobackup tick skipped, previous cycle still running")
		return
	}
	err := s.queue.Enqueue(jobs.Job{ID: uuid.NewString(), Type: "autobackup"})
	if err != nil {
		s.inFlight.Store(false)
		s.logger.Warn("enqueue autobackup", zap.Error(err))
	}
}

func (s *BackupScheduler) run(ctx context.Context, _ jobs.Job) error {
	defer s.inFlight.Store(false)
	_, err := s.backups.CreateSnapshot(ctx, models.BackupTypeAuto, "scheduled backup")
	return err
}
