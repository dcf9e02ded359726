package core

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/wpvault/wpvault/internal/model"
)

type BackupConfigService struct {
	db DB
}

func NewBackupConfigService(db DB) *BackupConfigService {
	return &BackupConfigService{db: db}
}

func (s *BackupConfigService) Create(ctx context.Context, cfg *model.BackupConfig) error {
	_, err := s.db.Exec(ctx,
		`INSERT INTO backup_configs (id, provider, name, active, settings, schedule, retention, filters, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		cfg.ID, cfg.Provider, cfg.Name, cfg.Active, cfg.Settings,
		cfg.Schedule, cfg.Retention, cfg.Filters, cfg.CreatedAt, cfg.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert backup config: %w", err)
	}
	return nil
}

func (s *BackupConfigService) GetByID(ctx context.Context, id string) (*model.BackupConfig, error) {
	var cfg model.BackupConfig
	err := s.db.QueryRow(ctx,
		`SELECT id, provider, name, active, settings, schedule, retention, filters, created_at, updated_at
		 FROM backup_configs WHERE id = $1`, id,
	).Scan(&cfg.ID, &cfg.Provider, &cfg.Name, &cfg.Active, &cfg.Settings,
		&cfg.Schedule, &cfg.Retention, &cfg.Filters, &cfg.CreatedAt, &cfg.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get backup config %s: %w", id, err)
	}
	return &cfg, nil
}

func (s *BackupConfigService) List(ctx context.Context, onlyActive bool) ([]model.BackupConfig, error) {
	query := `SELECT id, provider, name, active, settings, schedule, retention, filters, created_at, updated_at
		 FROM backup_configs`
	if onlyActive {
		query += ` WHERE active`
	}
	query += ` ORDER BY created_at`

	rows, err := s.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list backup configs: %w", err)
	}
	defer rows.Close()

	var configs []model.BackupConfig
	for rows.Next() {
		var cfg model.BackupConfig
		if err := rows.Scan(&cfg.ID, &cfg.Provider, &cfg.Name, &cfg.Active, &cfg.Settings,
			&cfg.Schedule, &cfg.Retention, &cfg.Filters, &cfg.CreatedAt, &cfg.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan backup config: %w", err)
		}
		configs = append(configs, cfg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate backup configs: %w", err)
	}
	return configs, nil
}

func (s *BackupConfigService) Update(ctx context.Context, cfg *model.BackupConfig) error {
	tag, err := s.db.Exec(ctx,
		`UPDATE backup_configs
		 SET name = $1, active = $2, settings = $3, schedule = $4, retention = $5, filters = $6, updated_at = now()
		 WHERE id = $7`,
		cfg.Name, cfg.Active, cfg.Settings, cfg.Schedule, cfg.Retention, cfg.Filters, cfg.ID,
	)
	if err != nil {
		return fmt.Errorf("update backup config %s: %w", cfg.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("backup config %s not found", cfg.ID)
	}
	return nil
}

func (s *BackupConfigService) Delete(ctx context.Context, id string) error {
	tag, err := s.db.Exec(ctx, `DELETE FROM backup_configs WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete backup config %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("backup config %s not found", id)
	}
	return nil
}
