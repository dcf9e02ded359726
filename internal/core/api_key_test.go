package core

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestAPIKeyService_Create(t *testing.T) {
	db := &mockDB{}
	svc := NewAPIKeyService(db)
	ctx := context.Background()

	db.On("Exec", ctx, mock.AnythingOfType("string"), mock.Anything).Return(pgconn.NewCommandTag("INSERT 0 1"), nil)
	db.On("QueryRow", ctx, mock.AnythingOfType("string"), mock.Anything).Return(&mockRow{scanFunc: func(dest ...any) error {
		*(dest[0].(*time.Time)) = time.Now()
		return nil
	}})

	key, rawKey, err := svc.Create(ctx, "dashboard")
	require.NoError(t, err)
	assert.Equal(t, "dashboard", key.Name)
	assert.True(t, len(rawKey) > 12)
	assert.Equal(t, rawKey[:12], key.KeyPrefix)

	// The stored hash is the sha256 of the raw key.
	hash := sha256.Sum256([]byte(rawKey))
	execArgs := db.Calls[0].Arguments.Get(2).([]any)
	assert.Equal(t, hex.EncodeToString(hash[:]), execArgs[2])
}

func TestAPIKeyService_LookupByHash_NotFound(t *testing.T) {
	db := &mockDB{}
	svc := NewAPIKeyService(db)
	ctx := context.Background()

	db.On("QueryRow", ctx, mock.AnythingOfType("string"), mock.Anything).Return(&mockRow{scanFunc: noRows})

	key, err := svc.LookupByHash(ctx, "deadbeef")
	require.NoError(t, err)
	assert.Nil(t, key)
}

func TestAPIKeyService_Revoke_NotFound(t *testing.T) {
	db := &mockDB{}
	svc := NewAPIKeyService(db)
	ctx := context.Background()

	db.On("Exec", ctx, mock.AnythingOfType("string"), mock.Anything).Return(pgconn.NewCommandTag("UPDATE 0"), nil)

	err := svc.Revoke(ctx, "missing")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}
