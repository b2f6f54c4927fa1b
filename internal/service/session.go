package service

import (
	"context"
	"fmt"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog/log"

	"github.com/openclaw/account-server-go/internal/database"
	apperrors "github.com/openclaw/account-server-go/internal/errors"
	"github.com/openclaw/account-server-go/internal/model"
	"github.com/openclaw/account-server-go/internal/repository"
	"github.com/openclaw/account-server-go/internal/timepolicy"
	"github.com/openclaw/account-server-go/internal/util"
)

// SessionService enforces one active session per account. Sessions are
// looked up by the SHA-256 of their bearer token.
type SessionService struct {
	db          Transactor
	sessionRepo repository.SessionRepository
	accountRepo repository.AccountRepository
	now         func() time.Time
}

func NewSessionService(
	db Transactor,
	sessionRepo repository.SessionRepository,
	accountRepo repository.AccountRepository,
	opts ...Option,
) *SessionService {
	o := buildOptions(opts)
	return &SessionService{
		db:          db,
		sessionRepo: sessionRepo,
		accountRepo: accountRepo,
		now:         o.now,
	}
}

// CreateSession revokes the account's active session, if any, and issues a
// new one in the same transaction. The returned session carries the plain
// token.
func (s *SessionService) CreateSession(ctx context.Context, accountID string, device model.DeviceInfo, ttl time.Duration) (*model.Session, error) {
	if ttl <= 0 {
		return nil, apperrors.ValidationError("session ttl must be positive")
	}

	token, err := util.GenerateToken()
	if err != nil {
		return nil, fmt.Errorf("generate token: %w", err)
	}

	device = describeDevice(device)
	now := s.now()

	var session *model.Session
	var revoked int64
	err = s.db.WithTx(ctx, func(tx *sqlx.Tx) error {
		account, err := s.accountRepo.WithTx(tx).LockByID(ctx, accountID)
		if err != nil {
			return fmt.Errorf("lock account: %w", err)
		}
		if account == nil {
			return apperrors.NotFound("Account")
		}

		sessions := s.sessionRepo.WithTx(tx)
		revoked, err = sessions.DeactivateByAccount(ctx, accountID, now)
		if err != nil {
			return fmt.Errorf("revoke previous sessions: %w", err)
		}

		session, err = sessions.Create(ctx, model.CreateSessionParams{
			ID:        uuid.NewString(),
			TokenHash: util.HashToken(token),
			AccountID: accountID,
			Device:    device,
			ExpiresAt: timepolicy.SessionExpiry(now, ttl),
			Now:       now,
		})
		if database.IsUniqueViolation(err) {
			return apperrors.Wrap(apperrors.ErrCodeAlreadyExists, "Another session was created concurrently", err)
		}
		if err != nil {
			return fmt.Errorf("create session: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	session.Token = token

	log.Info().
		Str("sessionId", session.ID).
		Str("accountId", accountID).
		Str("device", session.DeviceName).
		Int64("revoked", revoked).
		Time("expiresAt", session.ExpiresAt).
		Msg("session created")

	return session, nil
}

func (s *SessionService) FindActiveSession(ctx context.Context, accountID string) (*model.Session, error) {
	session, err := s.sessionRepo.FindActiveByAccount(ctx, accountID)
	if err != nil {
		return nil, fmt.Errorf("find active session: %w", err)
	}
	return session, nil
}

func (s *SessionService) FindByToken(ctx context.Context, token string) (*model.Session, error) {
	if token == "" {
		return nil, nil
	}
	session, err := s.sessionRepo.FindByTokenHash(ctx, util.HashToken(token))
	if err != nil {
		return nil, fmt.Errorf("find session: %w", err)
	}
	return session, nil
}

// Validate checks expiry against the clock even when the session is still
// flagged active.
func (s *SessionService) Validate(ctx context.Context, token string) (*model.Session, error) {
	session, err := s.FindByToken(ctx, token)
	if err != nil {
		return nil, err
	}
	if session == nil {
		return nil, apperrors.NotFound("Session")
	}
	if !session.IsUsable(s.now()) {
		return nil, apperrors.TokenExpired()
	}
	return session, nil
}

func (s *SessionService) Touch(ctx context.Context, session *model.Session) (*model.Session, error) {
	touched, err := s.sessionRepo.Touch(ctx, session.ID, s.now())
	if err != nil {
		return nil, fmt.Errorf("touch session: %w", err)
	}
	if touched == nil {
		return nil, apperrors.NotFound("Session")
	}
	return touched, nil
}

// Extend sets the expiry to now + ttl. Revoked sessions cannot be extended.
func (s *SessionService) Extend(ctx context.Context, session *model.Session, ttl time.Duration) (*model.Session, error) {
	if ttl <= 0 {
		return nil, apperrors.ValidationError("session ttl must be positive")
	}

	now := s.now()
	extended, err := s.sessionRepo.Extend(ctx, session.ID, timepolicy.SessionExpiry(now, ttl), now)
	if err != nil {
		return nil, fmt.Errorf("extend session: %w", err)
	}
	if extended == nil {
		return nil, apperrors.TokenExpired()
	}

	log.Debug().
		Str("sessionId", extended.ID).
		Time("expiresAt", extended.ExpiresAt).
		Msg("session extended")

	return extended, nil
}

// Revoke is idempotent.
func (s *SessionService) Revoke(ctx context.Context, session *model.Session) (*model.Session, error) {
	revoked, err := s.sessionRepo.Revoke(ctx, session.ID, s.now())
	if err != nil {
		return nil, fmt.Errorf("revoke session: %w", err)
	}
	if revoked == nil {
		return nil, apperrors.NotFound("Session")
	}

	log.Info().
		Str("sessionId", revoked.ID).
		Str("accountId", revoked.AccountID).
		Msg("session revoked")

	return revoked, nil
}

func (s *SessionService) RevokeAll(ctx context.Context, accountID string) (int64, error) {
	return s.revokeAll(ctx, s.sessionRepo, accountID)
}

func (s *SessionService) revokeAll(ctx context.Context, sessions repository.SessionRepository, accountID string) (int64, error) {
	n, err := sessions.DeactivateByAccount(ctx, accountID, s.now())
	if err != nil {
		return 0, fmt.Errorf("revoke sessions: %w", err)
	}
	return n, nil
}

// Cleanup hard-deletes sessions whose expiry or revocation is older than
// retention. A non-positive retention uses timepolicy.DefaultRetention.
func (s *SessionService) Cleanup(ctx context.Context, retention time.Duration) (int64, error) {
	now := s.now()
	n, err := s.sessionRepo.DeleteStale(ctx, now, timepolicy.RetentionCutoff(now, retention))
	if err != nil {
		return 0, fmt.Errorf("delete stale sessions: %w", err)
	}
	return n, nil
}

// Column widths for the descriptive session fields.
const (
	maxDeviceIDLen   = 128
	maxDeviceNameLen = 64
	maxIPAddressLen  = 64
)

func describeDevice(device model.DeviceInfo) model.DeviceInfo {
	if device.DeviceName == "" {
		device.DeviceName = util.DeviceName(device.UserAgent)
	}
	if device.DeviceID == "" {
		device.DeviceID = util.DeviceFingerprint(device.UserAgent, device.IPAddress)
	}
	device.DeviceID = truncate(device.DeviceID, maxDeviceIDLen)
	device.DeviceName = truncate(device.DeviceName, maxDeviceNameLen)
	device.IPAddress = truncate(device.IPAddress, maxIPAddressLen)
	return device
}

func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}
