package core

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/wpvault/wpvault/internal/model"
)

const backupColumns = `id, config_id, provider, site_id, name, type, parent_backup_id,
		size_bytes, file_count, changed_files, metadata, status, status_message,
		created_at, started_at, completed_at, updated_at`

// BackupRecordService persists the dashboard's view of backups. The
// provider's metadata document stays canonical; these rows exist for
// listing and chain resolution without hitting the provider.
type BackupRecordService struct {
	db DB
}

func NewBackupRecordService(db DB) *BackupRecordService {
	return &BackupRecordService{db: db}
}

// Create inserts a backup record. Non-full backups must name an
// existing parent for the same site; full backups must not name one.
func (s *BackupRecordService) Create(ctx context.Context, b *model.Backup) error {
	if b.Type == model.BackupTypeFull && b.ParentBackupID != "" {
		return fmt.Errorf("full backup must not have a parent")
	}
	if b.Type != model.BackupTypeFull {
		if b.ParentBackupID == "" {
			return fmt.Errorf("%s backup requires a parent", b.Type)
		}
		parent, err := s.GetByID(ctx, b.ParentBackupID)
		if err != nil {
			return fmt.Errorf("resolve parent %s: %w", b.ParentBackupID, err)
		}
		if parent == nil {
			return fmt.Errorf("parent backup %s not found", b.ParentBackupID)
		}
		if parent.SiteID != b.SiteID {
			return fmt.Errorf("parent backup %s belongs to another site", b.ParentBackupID)
		}
	}

	var parentID *string
	if b.ParentBackupID != "" {
		parentID = &b.ParentBackupID
	}
	_, err := s.db.Exec(ctx,
		`INSERT INTO backups (id, config_id, provider, site_id, name, type, parent_backup_id,
		   size_bytes, file_count, changed_files, metadata, status, status_message,
		   created_at, started_at, completed_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)`,
		b.ID, b.ConfigID, b.Provider, b.SiteID, b.Name, b.Type, parentID,
		b.Size, b.FileCount, b.ChangedFiles, b.Metadata, b.Status, b.StatusMessage,
		b.Created, b.StartedAt, b.CompletedAt, b.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert backup: %w", err)
	}
	return nil
}

func (s *BackupRecordService) GetByID(ctx context.Context, id string) (*model.Backup, error) {
	row := s.db.QueryRow(ctx,
		`SELECT `+backupColumns+` FROM backups WHERE id = $1`, id)
	b, err := scanBackup(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get backup %s: %w", id, err)
	}
	return b, nil
}

// Lookup implements the chain resolver's record lookup.
func (s *BackupRecordService) Lookup(ctx context.Context, id string) (*model.Backup, error) {
	return s.GetByID(ctx, id)
}

func (s *BackupRecordService) ListBySite(ctx context.Context, siteID string, limit int, cursor string) ([]model.Backup, bool, error) {
	query := `SELECT ` + backupColumns + ` FROM backups WHERE site_id = $1 AND status != $2`
	args := []any{siteID, model.StatusDeleted}
	argIdx := 3

	if cursor != "" {
		query += fmt.Sprintf(` AND id > $%d`, argIdx)
		args = append(args, cursor)
		argIdx++
	}

	query += ` ORDER BY id`
	query += fmt.Sprintf(` LIMIT $%d`, argIdx)
	args = append(args, limit+1)

	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, false, fmt.Errorf("list backups for site %s: %w", siteID, err)
	}
	defer rows.Close()

	var backups []model.Backup
	for rows.Next() {
		b, err := scanBackup(rows)
		if err != nil {
			return nil, false, fmt.Errorf("scan backup: %w", err)
		}
		backups = append(backups, *b)
	}
	if err := rows.Err(); err != nil {
		return nil, false, fmt.Errorf("iterate backups: %w", err)
	}

	hasMore := len(backups) > limit
	if hasMore {
		backups = backups[:limit]
	}
	return backups, hasMore, nil
}

func (s *BackupRecordService) SetStatus(ctx context.Context, id, status string, message *string) error {
	tag, err := s.db.Exec(ctx,
		`UPDATE backups SET status = $1, status_message = $2, updated_at = now() WHERE id = $3`,
		status, message, id,
	)
	if err != nil {
		return fmt.Errorf("set backup %s status: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("backup %s not found", id)
	}
	return nil
}

// Complete records a finished backup: its final size, file counts and
// completion time, and flips the status to active.
func (s *BackupRecordService) Complete(ctx context.Context, id string, size int64, fileCount, changedFiles int) error {
	tag, err := s.db.Exec(ctx,
		`UPDATE backups
		 SET status = $1, size_bytes = $2, file_count = $3, changed_files = $4,
		     completed_at = now(), updated_at = now()
		 WHERE id = $5`,
		model.StatusActive, size, fileCount, changedFiles, id,
	)
	if err != nil {
		return fmt.Errorf("complete backup %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("backup %s not found", id)
	}
	return nil
}

func scanBackup(row interface{ Scan(dest ...any) error }) (*model.Backup, error) {
	var b model.Backup
	var parentID *string
	err := row.Scan(&b.ID, &b.ConfigID, &b.Provider, &b.SiteID, &b.Name, &b.Type, &parentID,
		&b.Size, &b.FileCount, &b.ChangedFiles, &b.Metadata, &b.Status, &b.StatusMessage,
		&b.Created, &b.StartedAt, &b.CompletedAt, &b.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if parentID != nil {
		b.ParentBackupID = *parentID
	}
	return &b, nil
}
