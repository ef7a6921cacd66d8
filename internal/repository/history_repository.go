package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"

	"github.com/hw-lee/chulseok-api/internal/models"
)

// HistoryRepository persists the append-only audit log.
type HistoryRepository struct {
	db *sqlx.DB
}

// NewHistoryRepository constructs the repository.
func NewHistoryRepository(db *sqlx.DB) *HistoryRepository {
	return &HistoryRepository{db: db}
}

// Insert appends one history record.
func (r *HistoryRepository) Insert(ctx context.Context, log *models.HistoryLog) error {
	query := `INSERT INTO history_logs (id, action, entity_type, entity_id, changes, timestamp)
VALUES (?, ?, ?, ?, ?, ?)`
	if _, err := r.db.ExecContext(ctx, r.db.Rebind(query),
		log.ID, log.Action, log.EntityType, log.EntityID, []byte(log.Changes), log.Timestamp); err != nil {
		return fmt.Errorf("insert history log: %w", err)
	}
	return nil
}

// List returns history records, newest first.
func (r *HistoryRepository) List(ctx context.Context, filter models.HistoryFilter) ([]models.HistoryLog, int, error) {
	where := []string{"1=1"}
	args := []interface{}{}
	if filter.EntityType != "" {
		where = append(where, "entity_type = ?")
		args = append(args, filter.EntityType)
	}
	if filter.EntityID != "" {
		where = append(where, "entity_id = ?")
		args = append(args, filter.EntityID)
	}
	whereClause := strings.Join(where, " AND ")

	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 200 {
		size = 50
	}
	offset := (page - 1) * size

	query := fmt.Sprintf(`SELECT id, action, entity_type, entity_id, changes, timestamp
FROM history_logs WHERE %s ORDER BY timestamp DESC LIMIT %d OFFSET %d`, whereClause, size, offset)

	var logs []models.HistoryLog
	if err := r.db.SelectContext(ctx, &logs, r.db.Rebind(query), args...); err != nil {
		return nil, 0, fmt.Errorf("list history logs: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM history_logs WHERE %s", whereClause)
	var total int
	if err := r.db.GetContext(ctx, &total, r.db.Rebind(countQuery), args...); err != nil {
		return nil, 0, fmt.Errorf("count history logs: %w", err)
	}
	return logs, total, nil
}

// DeleteOlderThan prunes records before the cutoff (epoch ms). This is the
// only path that removes history.
func (r *HistoryRepository) DeleteOlderThan(ctx context.Context, cutoff int64) (int64, error) {
	res, err := r.db.ExecContext(ctx, r.db.Rebind(`DELETE FROM history_logs WHERE timestamp < ?`), cutoff)
	if err != nil {
		return 0, fmt.Errorf("prune history logs: %w", err)
	}
	deleted, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("prune history logs: %w", err)
	}
	return deleted, nil
}
