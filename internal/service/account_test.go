package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	apperrors "github.com/openclaw/account-server-go/internal/errors"
	"github.com/openclaw/account-server-go/internal/model"
)

type mockHasher struct {
	mock.Mock
}

func (m *mockHasher) Hash(password []byte) (string, error) {
	args := m.Called(password)
	return args.String(0), args.Error(1)
}

func (m *mockHasher) Compare(hash string, password []byte) error {
	args := m.Called(hash, password)
	return args.Error(0)
}

func (e *testEnv) accountsWithHasher(hasher PasswordHasher) *AccountService {
	return NewAccountService(
		e.db,
		e.accountRepo,
		e.codeRepo,
		e.activation,
		e.sessions,
		hasher,
		AccountServiceConfig{SessionTTL: testSessionTTL, RefreshThreshold: testRefreshThreshold},
		WithClock(e.clock.Now),
	)
}

func TestAccountService_Register(t *testing.T) {
	ctx := context.Background()

	t.Run("activates the code and stores a hash", func(t *testing.T) {
		env := newTestEnv(t)
		code := env.distributedCode(t, model.CodeKindMonth)

		account, err := env.accounts.Register(ctx, RegisterParams{
			Username: "alice",
			Password: "password123",
			Code:     code,
		})
		require.NoError(t, err)
		assert.NotEmpty(t, account.ID)
		assert.Equal(t, "alice", account.Username)
		assert.Equal(t, code, account.ActivationCode)
		assert.NotEqual(t, "password123", account.PasswordHash)

		activated, err := env.activation.Get(ctx, code)
		require.NoError(t, err)
		assert.Equal(t, model.CodeStatusActivated, activated.Status)
		assert.WithinDuration(t, baseTime.Add(30*24*time.Hour+testGrace), *activated.ExpireAt, 0)
	})

	t.Run("duplicate username rolls back the activation", func(t *testing.T) {
		env := newTestEnv(t)
		env.registered(t, "alice", model.CodeKindMonth)
		code := env.distributedCode(t, model.CodeKindMonth)

		_, err := env.accounts.Register(ctx, RegisterParams{
			Username: "alice",
			Password: "password123",
			Code:     code,
		})
		assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeAlreadyExists))

		untouched, err := env.activation.Get(ctx, code)
		require.NoError(t, err)
		assert.Equal(t, model.CodeStatusDistributed, untouched.Status)
		assert.Nil(t, untouched.ActivatedAt)
		assert.Nil(t, untouched.ExpireAt)
	})

	t.Run("code cannot register twice", func(t *testing.T) {
		env := newTestEnv(t)
		alice := env.registered(t, "alice", model.CodeKindMonth)

		_, err := env.accounts.Register(ctx, RegisterParams{
			Username: "bob",
			Password: "password123",
			Code:     alice.ActivationCode,
		})
		assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeInvalidStateTransition))
	})

	t.Run("rejects undistributed and unknown codes", func(t *testing.T) {
		env := newTestEnv(t)
		issued, err := env.activation.IssueBatch(ctx, model.CodeKindDay, 1)
		require.NoError(t, err)

		_, err = env.accounts.Register(ctx, RegisterParams{Username: "alice", Password: "password123", Code: issued[0].Code})
		assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeInvalidStateTransition))

		_, err = env.accounts.Register(ctx, RegisterParams{Username: "alice", Password: "password123", Code: "nope"})
		assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeNotFound))
	})

	t.Run("validates credentials", func(t *testing.T) {
		env := newTestEnv(t)

		cases := []RegisterParams{
			{Username: "al", Password: "password123", Code: "c"},
			{Username: "alice smith", Password: "password123", Code: "c"},
			{Username: "alice", Password: "short", Code: "c"},
		}
		for _, params := range cases {
			_, err := env.accounts.Register(ctx, params)
			assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeValidation), "params %+v", params)
		}

		_, err := env.accounts.Register(ctx, RegisterParams{Username: "alice", Password: "password123"})
		assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeMissingRequired))
	})

	t.Run("hash failure leaves the code distributed", func(t *testing.T) {
		env := newTestEnv(t)
		code := env.distributedCode(t, model.CodeKindMonth)

		hasher := new(mockHasher)
		hasher.On("Hash", []byte("password123")).Return("", errors.New("boom"))

		_, err := env.accountsWithHasher(hasher).Register(ctx, RegisterParams{
			Username: "alice",
			Password: "password123",
			Code:     code,
		})
		require.Error(t, err)
		hasher.AssertExpectations(t)

		untouched, err := env.activation.Get(ctx, code)
		require.NoError(t, err)
		assert.Equal(t, model.CodeStatusDistributed, untouched.Status)
	})
}

func TestAccountService_Login(t *testing.T) {
	ctx := context.Background()

	t.Run("creates a session", func(t *testing.T) {
		env := newTestEnv(t)
		account := env.registered(t, "alice", model.CodeKindMonth)

		result, err := env.accounts.Login(ctx, LoginParams{
			Username: "alice",
			Password: "password123",
			Device:   testDevice("laptop"),
		})
		require.NoError(t, err)
		assert.Equal(t, account.ID, result.Account.ID)
		assert.NotEmpty(t, result.Session.Token)
		assert.WithinDuration(t, baseTime.Add(testSessionTTL), result.Session.ExpiresAt, 0)
	})

	t.Run("second login revokes the first", func(t *testing.T) {
		env := newTestEnv(t)
		env.registered(t, "alice", model.CodeKindMonth)

		first, err := env.accounts.Login(ctx, LoginParams{Username: "alice", Password: "password123", Device: testDevice("laptop")})
		require.NoError(t, err)
		second, err := env.accounts.Login(ctx, LoginParams{Username: "alice", Password: "password123", Device: testDevice("phone")})
		require.NoError(t, err)

		_, err = env.accounts.Authenticate(ctx, first.Session.Token)
		assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeTokenExpired))

		_, err = env.accounts.Authenticate(ctx, second.Session.Token)
		assert.NoError(t, err)
	})

	t.Run("wrong password and unknown user look the same", func(t *testing.T) {
		env := newTestEnv(t)
		env.registered(t, "alice", model.CodeKindMonth)

		_, wrongPassword := env.accounts.Login(ctx, LoginParams{Username: "alice", Password: "wrong-password"})
		_, unknownUser := env.accounts.Login(ctx, LoginParams{Username: "mallory", Password: "password123"})
		_, empty := env.accounts.Login(ctx, LoginParams{})

		for _, err := range []error{wrongPassword, unknownUser, empty} {
			appErr, ok := apperrors.AsAppError(err)
			require.True(t, ok)
			assert.Equal(t, apperrors.ErrCodeAuthenticationFailed, appErr.Code)
			assert.Equal(t, "Invalid username or password", appErr.Message)
		}
	})

	t.Run("unknown user still spends a comparison", func(t *testing.T) {
		env := newTestEnv(t)

		hasher := new(mockHasher)
		hasher.On("Hash", mock.Anything).Return("dummy-hash", nil).Once()
		hasher.On("Compare", "dummy-hash", []byte("password123")).Return(errors.New("mismatch")).Twice()

		accounts := env.accountsWithHasher(hasher)
		for i := 0; i < 2; i++ {
			_, err := accounts.Login(ctx, LoginParams{Username: "mallory", Password: "password123"})
			assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeAuthenticationFailed))
		}
		hasher.AssertExpectations(t)
	})

	t.Run("expired activation blocks login", func(t *testing.T) {
		env := newTestEnv(t)
		env.registered(t, "alice", model.CodeKindDay)

		env.clock.Advance(24*time.Hour + testGrace + time.Second)
		_, err := env.accounts.Login(ctx, LoginParams{Username: "alice", Password: "password123"})
		assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeActivationExpired))
	})
}

func TestAccountService_Authenticate(t *testing.T) {
	ctx := context.Background()

	t.Run("touches without renewing a fresh session", func(t *testing.T) {
		env := newTestEnv(t)
		env.registered(t, "alice", model.CodeKindMonth)
		login, err := env.accounts.Login(ctx, LoginParams{Username: "alice", Password: "password123"})
		require.NoError(t, err)

		env.clock.Advance(time.Hour)
		result, err := env.accounts.Authenticate(ctx, login.Session.Token)
		require.NoError(t, err)
		assert.Equal(t, "alice", result.Account.Username)
		assert.WithinDuration(t, baseTime.Add(time.Hour), result.Session.LastAccessedAt, 0)
		assert.WithinDuration(t, login.Session.ExpiresAt, result.Session.ExpiresAt, 0)
	})

	t.Run("renews a session near expiry", func(t *testing.T) {
		env := newTestEnv(t)
		env.registered(t, "alice", model.CodeKindMonth)
		login, err := env.accounts.Login(ctx, LoginParams{Username: "alice", Password: "password123"})
		require.NoError(t, err)

		env.clock.Advance(testSessionTTL - 30*time.Minute)
		result, err := env.accounts.Authenticate(ctx, login.Session.Token)
		require.NoError(t, err)
		assert.WithinDuration(t, env.clock.Now().Add(testSessionTTL), result.Session.ExpiresAt, 0)
	})

	t.Run("rejects expired and unknown tokens", func(t *testing.T) {
		env := newTestEnv(t)
		env.registered(t, "alice", model.CodeKindMonth)
		login, err := env.accounts.Login(ctx, LoginParams{Username: "alice", Password: "password123"})
		require.NoError(t, err)

		env.clock.Advance(testSessionTTL)
		_, err = env.accounts.Authenticate(ctx, login.Session.Token)
		assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeTokenExpired))

		_, err = env.accounts.Authenticate(ctx, "bogus")
		assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeNotFound))
	})
}

func TestAccountService_Logout(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	env.registered(t, "alice", model.CodeKindMonth)
	login, err := env.accounts.Login(ctx, LoginParams{Username: "alice", Password: "password123"})
	require.NoError(t, err)

	revoked, err := env.accounts.Logout(ctx, login.Session.Token)
	require.NoError(t, err)
	assert.False(t, revoked.IsActive)

	_, err = env.accounts.Authenticate(ctx, login.Session.Token)
	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeTokenExpired))

	_, err = env.accounts.Logout(ctx, "bogus")
	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeNotFound))
}

func TestAccountService_LogoutAll(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	account := env.registered(t, "alice", model.CodeKindMonth)
	_, err := env.accounts.Login(ctx, LoginParams{Username: "alice", Password: "password123"})
	require.NoError(t, err)

	n, err := env.accounts.LogoutAll(ctx, account.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	assert.Equal(t, 0, countActiveSessions(t, env, account.ID))
}

func TestAccountService_ChangePassword(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	account := env.registered(t, "alice", model.CodeKindMonth)
	login, err := env.accounts.Login(ctx, LoginParams{Username: "alice", Password: "password123"})
	require.NoError(t, err)

	err = env.accounts.ChangePassword(ctx, account.ID, "wrong-password", "new-password-1")
	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeAuthenticationFailed))

	err = env.accounts.ChangePassword(ctx, account.ID, "password123", "short")
	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeValidation))

	require.NoError(t, env.accounts.ChangePassword(ctx, account.ID, "password123", "new-password-1"))

	_, err = env.accounts.Authenticate(ctx, login.Session.Token)
	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeTokenExpired))

	_, err = env.accounts.Login(ctx, LoginParams{Username: "alice", Password: "password123"})
	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeAuthenticationFailed))

	_, err = env.accounts.Login(ctx, LoginParams{Username: "alice", Password: "new-password-1"})
	assert.NoError(t, err)

	err = env.accounts.ChangePassword(ctx, "missing", "password123", "new-password-1")
	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeNotFound))
}

// Issue, hand out, register, sign in, use the session, and let the code run
// out.
func TestAccountLifecycle(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)

	_, err := env.activation.IssueBatch(ctx, model.CodeKindDay, 3)
	require.NoError(t, err)

	codes, err := env.activation.Distribute(ctx, model.CodeKindDay, 1)
	require.NoError(t, err)

	stats, err := env.activation.Stats(ctx, model.CodeKindDay)
	require.NoError(t, err)
	assert.Equal(t, map[model.CodeStatus]int{
		model.CodeStatusUnused:      2,
		model.CodeStatusDistributed: 1,
		model.CodeStatusActivated:   0,
		model.CodeStatusInvalid:     0,
	}, stats)

	account, err := env.accounts.Register(ctx, RegisterParams{
		Username: "alice",
		Password: "password123",
		Code:     codes[0].Code,
	})
	require.NoError(t, err)

	login, err := env.accounts.Login(ctx, LoginParams{Username: "alice", Password: "password123", Device: testDevice("laptop")})
	require.NoError(t, err)

	env.clock.Advance(2 * time.Hour)
	auth, err := env.accounts.Authenticate(ctx, login.Session.Token)
	require.NoError(t, err)
	assert.Equal(t, account.ID, auth.Account.ID)

	_, err = env.accounts.Logout(ctx, login.Session.Token)
	require.NoError(t, err)

	env.clock.Advance(25 * time.Hour)
	_, err = env.accounts.Login(ctx, LoginParams{Username: "alice", Password: "password123"})
	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeActivationExpired))

	env.clock.Advance(8 * 24 * time.Hour)
	n, err := env.sessions.Cleanup(ctx, 7*24*time.Hour)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}
