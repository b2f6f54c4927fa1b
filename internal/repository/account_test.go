package repository

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openclaw/account-server-go/internal/model"
)

func TestAccountRepository_Create(t *testing.T) {
	db := setupTestDB(t)
	repo := NewAccountRepository(db.DB)
	ctx := context.Background()

	account := seedAccount(t, db, "alice")
	assert.Equal(t, "alice", account.Username)
	assert.Equal(t, "code-alice", account.ActivationCode)

	t.Run("returns nil on duplicate username", func(t *testing.T) {
		seedCode(t, NewActivationCodeRepository(db.DB), "spare", model.CodeKindDay)
		dup, err := repo.Create(ctx, model.CreateAccountParams{
			ID:             uuid.NewString(),
			Username:       "alice",
			PasswordHash:   "other",
			ActivationCode: "spare",
			Now:            baseTime,
		})
		require.NoError(t, err)
		assert.Nil(t, dup)
	})

	t.Run("rejects unknown activation code", func(t *testing.T) {
		_, err := repo.Create(ctx, model.CreateAccountParams{
			ID:             uuid.NewString(),
			Username:       "bob",
			PasswordHash:   "hash",
			ActivationCode: "does-not-exist",
			Now:            baseTime,
		})
		assert.Error(t, err)
	})
}

func TestAccountRepository_Find(t *testing.T) {
	db := setupTestDB(t)
	repo := NewAccountRepository(db.DB)
	ctx := context.Background()
	account := seedAccount(t, db, "carol")

	byID, err := repo.FindByID(ctx, account.ID)
	require.NoError(t, err)
	assert.Equal(t, "carol", byID.Username)

	byName, err := repo.FindByUsername(ctx, "carol")
	require.NoError(t, err)
	assert.Equal(t, account.ID, byName.ID)

	missing, err := repo.FindByUsername(ctx, "nobody")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestAccountRepository_LockByID(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	account := seedAccount(t, db, "dave")

	err := db.WithTx(ctx, func(tx *sqlx.Tx) error {
		locked, err := NewAccountRepository(db.DB).WithTx(tx).LockByID(ctx, account.ID)
		require.NoError(t, err)
		require.NotNil(t, locked)
		assert.Equal(t, "dave", locked.Username)
		return nil
	})
	require.NoError(t, err)
}

func TestAccountRepository_UpdatePasswordHash(t *testing.T) {
	db := setupTestDB(t)
	repo := NewAccountRepository(db.DB)
	ctx := context.Background()
	account := seedAccount(t, db, "erin")

	later := baseTime.Add(time.Hour)
	updated, err := repo.UpdatePasswordHash(ctx, account.ID, "new-hash", later)
	require.NoError(t, err)
	assert.Equal(t, "new-hash", updated.PasswordHash)
	assert.WithinDuration(t, later, updated.UpdatedAt, 0)

	missing, err := repo.UpdatePasswordHash(ctx, uuid.NewString(), "x", later)
	require.NoError(t, err)
	assert.Nil(t, missing)
}
