package repository

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/openclaw/account-server-go/internal/database"
	"github.com/openclaw/account-server-go/internal/model"
)

type AccountRepository interface {
	FindByID(ctx context.Context, id string) (*model.Account, error)
	FindByUsername(ctx context.Context, username string) (*model.Account, error)
	// LockByID holds the account row until the surrounding transaction ends.
	LockByID(ctx context.Context, id string) (*model.Account, error)
	// Create returns nil when the username is taken.
	Create(ctx context.Context, params model.CreateAccountParams) (*model.Account, error)
	UpdatePasswordHash(ctx context.Context, id, passwordHash string, now time.Time) (*model.Account, error)
	// WithTx returns a new repository that uses the given transaction
	WithTx(tx *sqlx.Tx) AccountRepository
}

type accountRepo struct {
	db sqlxDB
}

func NewAccountRepository(db *sqlx.DB) AccountRepository {
	return &accountRepo{db: db}
}

func (r *accountRepo) WithTx(tx *sqlx.Tx) AccountRepository {
	return &accountRepo{db: tx}
}

func (r *accountRepo) FindByID(ctx context.Context, id string) (*model.Account, error) {
	account, err := get[model.Account](ctx, r.db, `
		SELECT * FROM accounts WHERE id = ?
	`, id)
	return utcAccount(account, err)
}

func (r *accountRepo) FindByUsername(ctx context.Context, username string) (*model.Account, error) {
	account, err := get[model.Account](ctx, r.db, `
		SELECT * FROM accounts WHERE username = ?
	`, username)
	return utcAccount(account, err)
}

func (r *accountRepo) LockByID(ctx context.Context, id string) (*model.Account, error) {
	account, err := get[model.Account](ctx, r.db, `
		SELECT * FROM accounts WHERE id = ?`+database.DialectOf(r.db).LockRow(), id)
	return utcAccount(account, err)
}

func (r *accountRepo) Create(ctx context.Context, params model.CreateAccountParams) (*model.Account, error) {
	account, err := get[model.Account](ctx, r.db, `
		INSERT INTO accounts (id, username, password_hash, activation_code, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (username) DO NOTHING
		RETURNING *
	`, params.ID, params.Username, params.PasswordHash, params.ActivationCode, params.Now, params.Now)
	return utcAccount(account, err)
}

func (r *accountRepo) UpdatePasswordHash(ctx context.Context, id, passwordHash string, now time.Time) (*model.Account, error) {
	account, err := get[model.Account](ctx, r.db, `
		UPDATE accounts SET
			password_hash = ?,
			updated_at = ?
		WHERE id = ?
		RETURNING *
	`, passwordHash, now, id)
	return utcAccount(account, err)
}

func utcAccount(account *model.Account, err error) (*model.Account, error) {
	if account == nil || err != nil {
		return nil, err
	}
	normalized := account.UTC()
	return &normalized, nil
}
