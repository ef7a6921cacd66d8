package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/hw-lee/chulseok-api/internal/models"
	appErrors "github.com/hw-lee/chulseok-api/pkg/errors"
)

type historyRepository interface {
	List(ctx context.Context, filter models.HistoryFilter) ([]models.HistoryLog, int, error)
	DeleteOlderThan(ctx context.Context, cutoff int64) (int64, error)
}

// HistoryService reads the append-only audit log. Writes happen inline in the
// services that mutate data; pruning is the maintenance service's job.
type HistoryService struct {
	repo   historyRepository
	logger *zap.Logger
}

// NewHistoryService constructs the history service.
func NewHistoryService(repo historyRepository, logger *zap.Logger) *HistoryService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &HistoryService{repo: repo, logger: logger}
}

// List returns history records, newest first, with pagination metadata.
func (s *HistoryService) List(ctx context.Context, filter models.HistoryFilter) ([]models.HistoryLog, *models.Pagination, error) {
	logs, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list history")
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 200 {
		size = 50
	}
	return logs, &models.Pagination{Page: page, PageSize: size, TotalCount: total}, nil
}
