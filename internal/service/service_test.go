package service

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/openclaw/account-server-go/internal/codegen"
	"github.com/openclaw/account-server-go/internal/database"
	"github.com/openclaw/account-server-go/internal/database/dbtest"
	"github.com/openclaw/account-server-go/internal/model"
	"github.com/openclaw/account-server-go/internal/repository"
	"github.com/openclaw/account-server-go/internal/security"
)

var baseTime = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

const (
	testGrace            = 2 * time.Hour
	testSessionTTL       = 24 * time.Hour
	testRefreshThreshold = time.Hour
)

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock() *testClock {
	return &testClock{now: baseTime}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// sequenceGenerator replays fixed candidates, then reports exhaustion.
type sequenceGenerator struct {
	mu     sync.Mutex
	values []string
}

func (g *sequenceGenerator) Generate() (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if len(g.values) == 0 {
		return "", fmt.Errorf("sequence exhausted")
	}
	v := g.values[0]
	g.values = g.values[1:]
	return v, nil
}

type testEnv struct {
	db          *database.DB
	clock       *testClock
	codeRepo    repository.ActivationCodeRepository
	accountRepo repository.AccountRepository
	sessionRepo repository.SessionRepository
	activation  *ActivationService
	sessions    *SessionService
	accounts    *AccountService
}

func newTestEnv(t *testing.T) *testEnv {
	return newTestEnvWithGenerator(t, codegen.NewRandom())
}

func newTestEnvWithGenerator(t *testing.T, generator codegen.Generator) *testEnv {
	t.Helper()
	return newTestEnvOn(t, dbtest.New(t), generator)
}

func newTestEnvOn(t *testing.T, db *database.DB, generator codegen.Generator) *testEnv {
	t.Helper()

	clock := newTestClock()
	opt := WithClock(clock.Now)

	env := &testEnv{
		db:          db,
		clock:       clock,
		codeRepo:    repository.NewActivationCodeRepository(db.DB),
		accountRepo: repository.NewAccountRepository(db.DB),
		sessionRepo: repository.NewSessionRepository(db.DB),
	}
	env.activation = NewActivationService(db, env.codeRepo, generator, testGrace, opt)
	env.sessions = NewSessionService(db, env.sessionRepo, env.accountRepo, opt)
	env.accounts = NewAccountService(
		db,
		env.accountRepo,
		env.codeRepo,
		env.activation,
		env.sessions,
		security.NewHasher(4),
		AccountServiceConfig{SessionTTL: testSessionTTL, RefreshThreshold: testRefreshThreshold},
		opt,
	)
	return env
}

// distributedCode issues and hands out one code of kind.
func (e *testEnv) distributedCode(t *testing.T, kind model.CodeKind) string {
	t.Helper()
	ctx := context.Background()

	_, err := e.activation.IssueBatch(ctx, kind, 1)
	require.NoError(t, err)
	codes, err := e.activation.Distribute(ctx, kind, 1)
	require.NoError(t, err)
	require.Len(t, codes, 1)
	return codes[0].Code
}

// registered creates an account with password "password123".
func (e *testEnv) registered(t *testing.T, username string, kind model.CodeKind) *model.Account {
	t.Helper()
	account, err := e.accounts.Register(context.Background(), RegisterParams{
		Username: username,
		Password: "password123",
		Code:     e.distributedCode(t, kind),
	})
	require.NoError(t, err)
	return account
}

func testDevice(name string) model.DeviceInfo {
	return model.DeviceInfo{
		DeviceName: name,
		UserAgent:  "Mozilla/5.0 (X11; Linux x86_64) Firefox/130.0",
		IPAddress:  "203.0.113.7",
	}
}
