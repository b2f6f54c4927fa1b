package repository

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/openclaw/account-server-go/internal/database"
	"github.com/openclaw/account-server-go/internal/database/dbtest"
	"github.com/openclaw/account-server-go/internal/model"
)

var baseTime = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func setupTestDB(t *testing.T) *database.DB {
	t.Helper()
	return dbtest.New(t)
}

func seedCode(t *testing.T, repo ActivationCodeRepository, code string, kind model.CodeKind) *model.ActivationCode {
	t.Helper()
	created, err := repo.Create(context.Background(), model.CreateActivationCodeParams{
		Code: code,
		Kind: kind,
		Now:  baseTime,
	})
	require.NoError(t, err)
	require.NotNil(t, created)
	return created
}

func seedAccount(t *testing.T, db *database.DB, username string) *model.Account {
	t.Helper()
	seedCode(t, NewActivationCodeRepository(db.DB), "code-"+username, model.CodeKindMonth)

	account, err := NewAccountRepository(db.DB).Create(context.Background(), model.CreateAccountParams{
		ID:             uuid.NewString(),
		Username:       username,
		PasswordHash:   "hash",
		ActivationCode: "code-" + username,
		Now:            baseTime,
	})
	require.NoError(t, err)
	require.NotNil(t, account)
	return account
}
