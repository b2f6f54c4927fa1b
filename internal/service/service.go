package service

import (
	"context"
	"time"

	"github.com/openclaw/account-server-go/internal/database"
	"github.com/openclaw/account-server-go/internal/timepolicy"
)

// Transactor runs fn inside one database transaction. *database.DB
// satisfies it.
type Transactor interface {
	WithTx(ctx context.Context, fn database.TxFunc) error
}

// PasswordHasher is satisfied by *security.Hasher.
type PasswordHasher interface {
	Hash(password []byte) (string, error)
	Compare(hash string, password []byte) error
}

type Option func(*options)

type options struct {
	now func() time.Time
}

// WithClock replaces the wall clock. Readings are normalized to UTC.
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		o.now = func() time.Time { return timepolicy.Normalize(now()) }
	}
}

func buildOptions(opts []Option) options {
	o := options{now: timepolicy.Now}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}
