package repository

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/openclaw/account-server-go/internal/model"
)

type SessionRepository interface {
	FindByID(ctx context.Context, id string) (*model.Session, error)
	FindByTokenHash(ctx context.Context, tokenHash string) (*model.Session, error)
	FindActiveByAccount(ctx context.Context, accountID string) (*model.Session, error)
	Create(ctx context.Context, params model.CreateSessionParams) (*model.Session, error)
	// DeactivateByAccount revokes every active session of the account.
	DeactivateByAccount(ctx context.Context, accountID string, now time.Time) (int64, error)
	Touch(ctx context.Context, id string, now time.Time) (*model.Session, error)
	// Extend only applies to active sessions and returns nil otherwise.
	Extend(ctx context.Context, id string, expiresAt, now time.Time) (*model.Session, error)
	// Revoke keeps the first revocation time when called again.
	Revoke(ctx context.Context, id string, now time.Time) (*model.Session, error)
	// DeleteStale removes sessions expired before now whose expiry or
	// revocation is older than cutoff.
	DeleteStale(ctx context.Context, now, cutoff time.Time) (int64, error)
	// WithTx returns a new repository that uses the given transaction
	WithTx(tx *sqlx.Tx) SessionRepository
}

type sessionRepo struct {
	db sqlxDB
}

func NewSessionRepository(db *sqlx.DB) SessionRepository {
	return &sessionRepo{db: db}
}

func (r *sessionRepo) WithTx(tx *sqlx.Tx) SessionRepository {
	return &sessionRepo{db: tx}
}

func (r *sessionRepo) FindByID(ctx context.Context, id string) (*model.Session, error) {
	session, err := get[model.Session](ctx, r.db, `
		SELECT * FROM sessions WHERE id = ?
	`, id)
	return utcSession(session, err)
}

func (r *sessionRepo) FindByTokenHash(ctx context.Context, tokenHash string) (*model.Session, error) {
	session, err := get[model.Session](ctx, r.db, `
		SELECT * FROM sessions WHERE token_hash = ?
	`, tokenHash)
	return utcSession(session, err)
}

func (r *sessionRepo) FindActiveByAccount(ctx context.Context, accountID string) (*model.Session, error) {
	session, err := get[model.Session](ctx, r.db, `
		SELECT * FROM sessions
		WHERE account_id = ? AND is_active = TRUE
	`, accountID)
	return utcSession(session, err)
}

func (r *sessionRepo) Create(ctx context.Context, params model.CreateSessionParams) (*model.Session, error) {
	var session model.Session
	err := r.db.GetContext(ctx, &session, r.db.Rebind(`
		INSERT INTO sessions (
			id, token_hash, account_id,
			device_id, device_name, user_agent, ip_address,
			is_active, expires_at, last_accessed_at, created_at, updated_at
		)
		VALUES (?, ?, ?, ?, ?, ?, ?, TRUE, ?, ?, ?, ?)
		RETURNING *
	`), params.ID, params.TokenHash, params.AccountID,
		params.Device.DeviceID, params.Device.DeviceName, params.Device.UserAgent, params.Device.IPAddress,
		params.ExpiresAt, params.Now, params.Now, params.Now)
	if err != nil {
		return nil, err
	}
	session = session.UTC()
	return &session, nil
}

func (r *sessionRepo) DeactivateByAccount(ctx context.Context, accountID string, now time.Time) (int64, error) {
	result, err := r.db.ExecContext(ctx, r.db.Rebind(`
		UPDATE sessions SET
			is_active = FALSE,
			revoked_at = ?,
			updated_at = ?
		WHERE account_id = ? AND is_active = TRUE
	`), now, now, accountID)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

func (r *sessionRepo) Touch(ctx context.Context, id string, now time.Time) (*model.Session, error) {
	session, err := get[model.Session](ctx, r.db, `
		UPDATE sessions SET
			last_accessed_at = ?,
			updated_at = ?
		WHERE id = ?
		RETURNING *
	`, now, now, id)
	return utcSession(session, err)
}

func (r *sessionRepo) Extend(ctx context.Context, id string, expiresAt, now time.Time) (*model.Session, error) {
	session, err := get[model.Session](ctx, r.db, `
		UPDATE sessions SET
			expires_at = ?,
			updated_at = ?
		WHERE id = ? AND is_active = TRUE
		RETURNING *
	`, expiresAt, now, id)
	return utcSession(session, err)
}

func (r *sessionRepo) Revoke(ctx context.Context, id string, now time.Time) (*model.Session, error) {
	session, err := get[model.Session](ctx, r.db, `
		UPDATE sessions SET
			is_active = FALSE,
			revoked_at = COALESCE(revoked_at, ?),
			updated_at = ?
		WHERE id = ?
		RETURNING *
	`, now, now, id)
	return utcSession(session, err)
}

func (r *sessionRepo) DeleteStale(ctx context.Context, now, cutoff time.Time) (int64, error) {
	result, err := r.db.ExecContext(ctx, r.db.Rebind(`
		DELETE FROM sessions
		WHERE expires_at < ?
		AND (
			expires_at < ?
			OR (is_active = FALSE AND revoked_at < ?)
		)
	`), now, cutoff, cutoff)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

func utcSession(session *model.Session, err error) (*model.Session, error) {
	if session == nil || err != nil {
		return nil, err
	}
	normalized := session.UTC()
	return &normalized, nil
}
