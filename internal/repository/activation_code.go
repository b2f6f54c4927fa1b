package repository

import (
	"context"
	"fmt"
	"sort"

	"github.com/jmoiron/sqlx"

	"github.com/openclaw/account-server-go/internal/database"
	"github.com/openclaw/account-server-go/internal/model"
)

// ActivationCodeRepository persists activation codes. Every state change is a
// conditional write on the status the caller observed, so a lost race shows
// up as a nil result rather than a silent overwrite.
type ActivationCodeRepository interface {
	// Create returns nil when the code already exists.
	Create(ctx context.Context, params model.CreateActivationCodeParams) (*model.ActivationCode, error)
	FindByCode(ctx context.Context, code string) (*model.ActivationCode, error)
	// ClaimUnused marks up to Count unused codes of Kind as distributed and
	// returns them in insertion order.
	ClaimUnused(ctx context.Context, params model.DistributeCodesParams) ([]model.ActivationCode, error)
	// Activate returns nil when the code is no longer in params.From.
	Activate(ctx context.Context, params model.ActivateCodeParams) (*model.ActivationCode, error)
	// Invalidate returns nil when the code is no longer in params.From.
	Invalidate(ctx context.Context, params model.InvalidateCodeParams) (*model.ActivationCode, error)
	CountByStatus(ctx context.Context, kind model.CodeKind) (map[model.CodeStatus]int, error)
	// WithTx returns a new repository that uses the given transaction
	WithTx(tx *sqlx.Tx) ActivationCodeRepository
}

type activationCodeRepo struct {
	db sqlxDB
}

func NewActivationCodeRepository(db *sqlx.DB) ActivationCodeRepository {
	return &activationCodeRepo{db: db}
}

func (r *activationCodeRepo) WithTx(tx *sqlx.Tx) ActivationCodeRepository {
	return &activationCodeRepo{db: tx}
}

func (r *activationCodeRepo) Create(ctx context.Context, params model.CreateActivationCodeParams) (*model.ActivationCode, error) {
	code, err := get[model.ActivationCode](ctx, r.db, `
		INSERT INTO activation_codes (code, kind, status, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (code) DO NOTHING
		RETURNING *
	`, params.Code, params.Kind, model.CodeStatusUnused, params.Now, params.Now)
	return utcCode(code, err)
}

func (r *activationCodeRepo) FindByCode(ctx context.Context, code string) (*model.ActivationCode, error) {
	found, err := get[model.ActivationCode](ctx, r.db, `
		SELECT * FROM activation_codes WHERE code = ?
	`, code)
	return utcCode(found, err)
}

func (r *activationCodeRepo) ClaimUnused(ctx context.Context, params model.DistributeCodesParams) ([]model.ActivationCode, error) {
	lock := database.DialectOf(r.db).LockSkip()

	var codes []model.ActivationCode
	err := r.db.SelectContext(ctx, &codes, r.db.Rebind(`
		UPDATE activation_codes SET
			status = ?,
			distributed_at = ?,
			updated_at = ?
		WHERE id IN (
			SELECT id FROM activation_codes
			WHERE kind = ? AND status = ?
			ORDER BY id
			LIMIT ?`+lock+`
		)
		RETURNING *
	`), model.CodeStatusDistributed, params.Now, params.Now,
		params.Kind, model.CodeStatusUnused, params.Count)
	if err != nil {
		return nil, err
	}

	sort.Slice(codes, func(i, j int) bool { return codes[i].ID < codes[j].ID })
	for i := range codes {
		codes[i] = codes[i].UTC()
	}
	return codes, nil
}

func (r *activationCodeRepo) Activate(ctx context.Context, params model.ActivateCodeParams) (*model.ActivationCode, error) {
	code, err := get[model.ActivationCode](ctx, r.db, `
		UPDATE activation_codes SET
			status = ?,
			activated_at = ?,
			expire_at = ?,
			updated_at = ?
		WHERE code = ? AND status = ?
		RETURNING *
	`, model.CodeStatusActivated, params.ActivatedAt, params.ExpireAt, params.ActivatedAt,
		params.Code, params.From)
	return utcCode(code, err)
}

func (r *activationCodeRepo) Invalidate(ctx context.Context, params model.InvalidateCodeParams) (*model.ActivationCode, error) {
	code, err := get[model.ActivationCode](ctx, r.db, `
		UPDATE activation_codes SET
			status = ?,
			invalidated_at = ?,
			updated_at = ?
		WHERE code = ? AND status = ?
		RETURNING *
	`, model.CodeStatusInvalid, params.Now, params.Now, params.Code, params.From)
	return utcCode(code, err)
}

func (r *activationCodeRepo) CountByStatus(ctx context.Context, kind model.CodeKind) (map[model.CodeStatus]int, error) {
	var rows []struct {
		Status model.CodeStatus `db:"status"`
		Count  int              `db:"count"`
	}
	err := r.db.SelectContext(ctx, &rows, r.db.Rebind(`
		SELECT status, COUNT(*) AS count
		FROM activation_codes
		WHERE kind = ?
		GROUP BY status
	`), kind)
	if err != nil {
		return nil, fmt.Errorf("count activation codes: %w", err)
	}

	counts := make(map[model.CodeStatus]int, len(model.AllCodeStatuses))
	for _, status := range model.AllCodeStatuses {
		counts[status] = 0
	}
	for _, row := range rows {
		counts[row.Status] = row.Count
	}
	return counts, nil
}

func utcCode(code *model.ActivationCode, err error) (*model.ActivationCode, error) {
	if code == nil || err != nil {
		return nil, err
	}
	normalized := code.UTC()
	return &normalized, nil
}
