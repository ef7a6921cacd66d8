package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/hw-lee/chulseok-api/internal/models"
)

// BackupRepository persists snapshot metadata. Payloads live in external
// storage; only the BackupFile record is kept here.
type BackupRepository struct {
	db *sqlx.DB
}

// NewBackupRepository constructs the repository.
func NewBackupRepository(db *sqlx.DB) *BackupRepository {
	return &BackupRepository{db: db}
}

// Insert registers metadata for a freshly persisted snapshot.
func (r *BackupRepository) Insert(ctx context.Context, backup *models.BackupFile) error {
	query := `INSERT INTO backup_files (id, filename, created_at, size, checksum) VALUES (?, ?, ?, ?, ?)`
	if _, err := r.db.ExecContext(ctx, r.db.Rebind(query),
		backup.ID, backup.Filename, backup.CreatedAt, backup.Size, backup.Checksum); err != nil {
		return fmt.Errorf("insert backup metadata: %w", err)
	}
	return nil
}

// List returns all backups, newest first.
func (r *BackupRepository) List(ctx context.Context) ([]models.BackupFile, error) {
	var backups []models.BackupFile
	query := `SELECT id, filename, created_at, size, checksum FROM backup_files ORDER BY created_at DESC`
	if err := r.db.SelectContext(ctx, &backups, query); err != nil {
		return nil, fmt.Errorf("list backups: %w", err)
	}
	return backups, nil
}

// FindByID returns one backup record or sql.ErrNoRows.
func (r *BackupRepository) FindByID(ctx context.Context, id string) (*models.BackupFile, error) {
	query := `SELECT id, filename, created_at, size, checksum FROM backup_files WHERE id = ?`
	var backup models.BackupFile
	if err := r.db.GetContext(ctx, &backup, r.db.Rebind(query), id); err != nil {
		return nil, err
	}
	return &backup, nil
}

// Delete removes one metadata record.
func (r *BackupRepository) Delete(ctx context.Context, id string) (bool, error) {
	res, err := r.db.ExecContext(ctx, r.db.Rebind(`DELETE FROM backup_files WHERE id = ?`), id)
	if err != nil {
		return false, fmt.Errorf("delete backup metadata: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("delete backup metadata: %w", err)
	}
	return affected > 0, nil
}
