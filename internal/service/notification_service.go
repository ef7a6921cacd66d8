package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/hw-lee/chulseok-api/internal/models"
	appErrors "github.com/hw-lee/chulseok-api/pkg/errors"
)

type notificationRepository interface {
	Insert(ctx context.Context, n *models.Notification) error
	List(ctx context.Context, unreadOnly bool) ([]models.Notification, error)
	MarkRead(ctx context.Context, id string) (bool, error)
	DeleteReadOlderThan(ctx context.Context, cutoff int64) (int64, error)
}

// NotificationService persists user-facing notifications. Notify is
// best-effort: a failed insert is logged, never propagated, so notification
// plumbing cannot break the operation that triggered it.
type NotificationService struct {
	repo   notificationRepository
	logger *zap.Logger
}

// NewNotificationService constructs the notification service.
func NewNotificationService(repo notificationRepository, logger *zap.Logger) *NotificationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &NotificationService{repo: repo, logger: logger}
}

// Notify stores one notification.
func (s *NotificationService) Notify(ctx context.Context, kind, title, message string) {
	n := &models.Notification{
		ID:        uuid.NewString(),
		Type:      kind,
		Title:     title,
		Message:   message,
		Timestamp: time.Now().UnixMilli(),
		Read:      false,
	}
	if err := s.repo.Insert(ctx, n); err != nil {
		s.logger.Warn("insert notification", zap.String("title", title), zap.Error(err))
	}
}

// List returns notifications, newest first.
func (s *NotificationService) List(ctx context.Context, unreadOnly bool) ([]models.Notification, error) {
	notifications, err := s.repo.List(ctx, unreadOnly)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list notifications")
	}
	return notifications, nil
}

// MarkRead flags one notification as read.
func (s *NotificationService) MarkRead(ctx context.Context, id string) error {
	found, err := s.repo.MarkRead(ctx, id)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to mark notification read")
	}
	if !found {
		return appErrors.Clone(appErrors.ErrNotFound, "notification not found")
	}
	return nil
}
