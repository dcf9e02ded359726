package core

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/wpvault/wpvault/internal/model"
)

func configRow(id, provider string, active bool) func(dest ...any) error {
	return func(dest ...any) error {
		*(dest[0].(*string)) = id
		*(dest[1].(*string)) = provider
		*(dest[3].(*bool)) = active
		return nil
	}
}

func TestBackupConfigService_Create(t *testing.T) {
	db := &mockDB{}
	svc := NewBackupConfigService(db)
	ctx := context.Background()

	db.On("Exec", ctx, mock.AnythingOfType("string"), mock.Anything).Return(pgconn.NewCommandTag("INSERT 0 1"), nil)

	cfg := &model.BackupConfig{
		ID:        "cfg-1",
		Provider:  "github",
		Name:      "github backups",
		Active:    true,
		Settings:  map[string]any{"token": "t", "owner": "acme"},
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}
	require.NoError(t, svc.Create(ctx, cfg))
	db.AssertExpectations(t)
}

func TestBackupConfigService_GetByID(t *testing.T) {
	db := &mockDB{}
	svc := NewBackupConfigService(db)
	ctx := context.Background()

	db.On("QueryRow", ctx, mock.AnythingOfType("string"), mock.Anything).
		Return(&mockRow{scanFunc: configRow("cfg-1", "github", true)})

	cfg, err := svc.GetByID(ctx, "cfg-1")
	require.NoError(t, err)
	require.NotNil(t, cfg)
	assert.Equal(t, "github", cfg.Provider)
	assert.True(t, cfg.Active)
}

func TestBackupConfigService_GetByID_NotFound(t *testing.T) {
	db := &mockDB{}
	svc := NewBackupConfigService(db)
	ctx := context.Background()

	db.On("QueryRow", ctx, mock.AnythingOfType("string"), mock.Anything).Return(&mockRow{scanFunc: noRows})

	cfg, err := svc.GetByID(ctx, "missing")
	require.NoError(t, err)
	assert.Nil(t, cfg)
}

func TestBackupConfigService_List(t *testing.T) {
	db := &mockDB{}
	svc := NewBackupConfigService(db)
	ctx := context.Background()

	rows := newMockRows(
		configRow("cfg-1", "github", true),
		configRow("cfg-2", "s3", false),
	)
	db.On("Query", ctx, mock.AnythingOfType("string"), mock.Anything).Return(rows, nil)

	configs, err := svc.List(ctx, false)
	require.NoError(t, err)
	require.Len(t, configs, 2)
	assert.Equal(t, "cfg-1", configs[0].ID)
	assert.Equal(t, "s3", configs[1].Provider)
}

func TestBackupConfigService_Update_NotFound(t *testing.T) {
	db := &mockDB{}
	svc := NewBackupConfigService(db)
	ctx := context.Background()

	db.On("Exec", ctx, mock.AnythingOfType("string"), mock.Anything).Return(pgconn.NewCommandTag("UPDATE 0"), nil)

	err := svc.Update(ctx, &model.BackupConfig{ID: "missing"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}

func TestBackupConfigService_Delete(t *testing.T) {
	db := &mockDB{}
	svc := NewBackupConfigService(db)
	ctx := context.Background()

	db.On("Exec", ctx, mock.AnythingOfType("string"), mock.Anything).Return(pgconn.NewCommandTag("DELETE 1"), nil)

	require.NoError(t, svc.Delete(ctx, "cfg-1"))
}

func TestBackupConfigService_List_QueryError(t *testing.T) {
	db := &mockDB{}
	svc := NewBackupConfigService(db)
	ctx := context.Background()

	db.On("Query", ctx, mock.AnythingOfType("string"), mock.Anything).Return(nil, errors.New("db error"))

	_, err := svc.List(ctx, true)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "list backup configs")
}
