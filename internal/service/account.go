package service

import (
	"context"
	"fmt"
	"regexp"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog/log"

	apperrors "github.com/openclaw/account-server-go/internal/errors"
	"github.com/openclaw/account-server-go/internal/model"
	"github.com/openclaw/account-server-go/internal/repository"
	"github.com/openclaw/account-server-go/internal/timepolicy"
	"github.com/openclaw/account-server-go/internal/util"
)

const (
	minPasswordLen = 8
	// bcrypt ignores everything past 72 bytes.
	maxPasswordLen = 72
)

var usernamePattern = regexp.MustCompile(`^[A-Za-z0-9_.-]{3,64}$`)

type RegisterParams struct {
	Username string
	Password string
	Code     string
}

type LoginParams struct {
	Username string
	Password string
	Device   model.DeviceInfo
}

// AuthResult pairs an account with the session that authenticated it.
type AuthResult struct {
	Account *model.Account `json:"account"`
	Session *model.Session `json:"session"`
}

type AccountServiceConfig struct {
	SessionTTL       time.Duration
	RefreshThreshold time.Duration
}

// AccountService ties registration to code activation and login to the
// single-session policy.
type AccountService struct {
	db               Transactor
	accountRepo      repository.AccountRepository
	codeRepo         repository.ActivationCodeRepository
	activation       *ActivationService
	sessions         *SessionService
	hasher           PasswordHasher
	sessionTTL       time.Duration
	refreshThreshold time.Duration
	now              func() time.Time

	dummyOnce sync.Once
	dummyHash string
}

func NewAccountService(
	db Transactor,
	accountRepo repository.AccountRepository,
	codeRepo repository.ActivationCodeRepository,
	activation *ActivationService,
	sessions *SessionService,
	hasher PasswordHasher,
	cfg AccountServiceConfig,
	opts ...Option,
) *AccountService {
	o := buildOptions(opts)
	return &AccountService{
		db:               db,
		accountRepo:      accountRepo,
		codeRepo:         codeRepo,
		activation:       activation,
		sessions:         sessions,
		hasher:           hasher,
		sessionTTL:       cfg.SessionTTL,
		refreshThreshold: cfg.RefreshThreshold,
		now:              o.now,
	}
}

// Register activates the code and creates the account in one transaction, so
// a code is never left activated without an owner.
func (s *AccountService) Register(ctx context.Context, params RegisterParams) (*model.Account, error) {
	if err := validateCredentials(params.Username, params.Password); err != nil {
		return nil, err
	}
	if params.Code == "" {
		return nil, apperrors.MissingRequired("code")
	}

	passwordHash, err := s.hasher.Hash([]byte(params.Password))
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	var account *model.Account
	err = s.db.WithTx(ctx, func(tx *sqlx.Tx) error {
		code, err := s.activation.activate(ctx, s.codeRepo.WithTx(tx), params.Code)
		if err != nil {
			return err
		}

		account, err = s.accountRepo.WithTx(tx).Create(ctx, model.CreateAccountParams{
			ID:             uuid.NewString(),
			Username:       params.Username,
			PasswordHash:   passwordHash,
			ActivationCode: code.Code,
			Now:            s.now(),
		})
		if err != nil {
			return fmt.Errorf("create account: %w", err)
		}
		if account == nil {
			return apperrors.AlreadyExists("Username")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	log.Info().
		Str("accountId", account.ID).
		Str("username", account.Username).
		Str("code", util.MaskCode(account.ActivationCode)).
		Msg("account registered")

	return account, nil
}

// Login never reveals whether the username or the password was wrong.
func (s *AccountService) Login(ctx context.Context, params LoginParams) (*AuthResult, error) {
	if params.Username == "" || params.Password == "" {
		return nil, apperrors.AuthenticationFailed()
	}

	account, err := s.accountRepo.FindByUsername(ctx, params.Username)
	if err != nil {
		return nil, fmt.Errorf("find account: %w", err)
	}
	if account == nil {
		s.equalizeTiming(params.Password)
		return nil, apperrors.AuthenticationFailed()
	}
	if err := s.hasher.Compare(account.PasswordHash, []byte(params.Password)); err != nil {
		return nil, apperrors.AuthenticationFailed()
	}

	code, err := s.codeRepo.FindByCode(ctx, account.ActivationCode)
	if err != nil {
		return nil, fmt.Errorf("find activation code: %w", err)
	}
	if code != nil && code.IsExpired(s.now()) {
		return nil, apperrors.ActivationExpired()
	}

	session, err := s.sessions.CreateSession(ctx, account.ID, params.Device, s.sessionTTL)
	if err != nil {
		return nil, err
	}

	return &AuthResult{Account: account, Session: session}, nil
}

func (s *AccountService) Logout(ctx context.Context, token string) (*model.Session, error) {
	session, err := s.sessions.FindByToken(ctx, token)
	if err != nil {
		return nil, err
	}
	if session == nil {
		return nil, apperrors.NotFound("Session")
	}
	return s.sessions.Revoke(ctx, session)
}

func (s *AccountService) LogoutAll(ctx context.Context, accountID string) (int64, error) {
	return s.sessions.RevokeAll(ctx, accountID)
}

// Authenticate validates the token, records the access and renews the
// session once less than the refresh threshold remains.
func (s *AccountService) Authenticate(ctx context.Context, token string) (*AuthResult, error) {
	session, err := s.sessions.Validate(ctx, token)
	if err != nil {
		return nil, err
	}

	session, err = s.sessions.Touch(ctx, session)
	if err != nil {
		return nil, err
	}

	if timepolicy.NeedsRefresh(session.ExpiresAt, s.now(), s.refreshThreshold) {
		session, err = s.sessions.Extend(ctx, session, s.sessionTTL)
		if err != nil {
			return nil, err
		}
	}

	account, err := s.accountRepo.FindByID(ctx, session.AccountID)
	if err != nil {
		return nil, fmt.Errorf("find account: %w", err)
	}
	if account == nil {
		return nil, apperrors.NotFound("Account")
	}

	return &AuthResult{Account: account, Session: session}, nil
}

// ChangePassword signs the account out everywhere once the new hash is
// stored.
func (s *AccountService) ChangePassword(ctx context.Context, accountID, oldPassword, newPassword string) error {
	if err := validatePassword(newPassword); err != nil {
		return err
	}

	account, err := s.accountRepo.FindByID(ctx, accountID)
	if err != nil {
		return fmt.Errorf("find account: %w", err)
	}
	if account == nil {
		return apperrors.NotFound("Account")
	}
	if err := s.hasher.Compare(account.PasswordHash, []byte(oldPassword)); err != nil {
		return apperrors.AuthenticationFailed()
	}

	passwordHash, err := s.hasher.Hash([]byte(newPassword))
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}

	var revoked int64
	err = s.db.WithTx(ctx, func(tx *sqlx.Tx) error {
		if _, err := s.accountRepo.WithTx(tx).UpdatePasswordHash(ctx, accountID, passwordHash, s.now()); err != nil {
			return fmt.Errorf("update password: %w", err)
		}
		revoked, err = s.sessions.revokeAll(ctx, s.sessions.sessionRepo.WithTx(tx), accountID)
		return err
	})
	if err != nil {
		return err
	}

	log.Info().
		Str("accountId", accountID).
		Int64("revoked", revoked).
		Msg("password changed")

	return nil
}

// equalizeTiming spends a bcrypt comparison on unknown usernames.
func (s *AccountService) equalizeTiming(password string) {
	s.dummyOnce.Do(func() {
		hash, err := s.hasher.Hash([]byte("timing-equalizer"))
		if err != nil {
			log.Warn().Err(err).Msg("failed to prepare timing equalizer hash")
			return
		}
		s.dummyHash = hash
	})
	if s.dummyHash != "" {
		_ = s.hasher.Compare(s.dummyHash, []byte(password))
	}
}

func validateCredentials(username, password string) error {
	if !usernamePattern.MatchString(username) {
		return apperrors.ValidationError("username must be 3-64 characters of letters, digits, '.', '_' or '-'")
	}
	return validatePassword(password)
}

func validatePassword(password string) error {
	if len(password) < minPasswordLen || len(password) > maxPasswordLen {
		return apperrors.ValidationError(fmt.Sprintf("password must be %d-%d bytes", minPasswordLen, maxPasswordLen))
	}
	return nil
}
