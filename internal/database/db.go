package database

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"

	"github.com/openclaw/account-server-go/internal/config"
)

func init() {
	sqlx.BindDriver(driverSQLite, sqlx.QUESTION)
}

const (
	driverPostgres = "postgres"
	driverSQLite   = "sqlite"
)

// sqlitePragmas keeps foreign keys on and forces a sortable time format so
// range comparisons on timestamp columns work as text.
const sqlitePragmas = "_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_time_format=sqlite"

// DBTX is an interface that both *sqlx.DB and *sqlx.Tx satisfy.
// This allows repositories to work with either a direct connection or a transaction.
type DBTX interface {
	GetContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
	SelectContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
	Rebind(query string) string
	DriverName() string
}

// Ensure *sqlx.DB and *sqlx.Tx implement DBTX
var _ DBTX = (*sqlx.DB)(nil)
var _ DBTX = (*sqlx.Tx)(nil)

type DB struct {
	*sqlx.DB
	Dialect Dialect
}

// Connect opens the database named by databaseURL. postgres:// and
// postgresql:// URLs use lib/pq; sqlite://path and sqlite::memory: use the
// pure Go SQLite driver.
func Connect(databaseURL string) (*DB, error) {
	switch {
	case strings.HasPrefix(databaseURL, "postgres://"), strings.HasPrefix(databaseURL, "postgresql://"):
		db, err := sqlx.Connect(driverPostgres, databaseURL)
		if err != nil {
			return nil, err
		}

		db.SetMaxOpenConns(config.DBMaxOpenConns)
		db.SetMaxIdleConns(config.DBMaxIdleConns)
		db.SetConnMaxLifetime(config.DBConnMaxLifetime)

		return &DB{DB: db, Dialect: DialectPostgres}, nil

	case strings.HasPrefix(databaseURL, "sqlite:"):
		path := strings.TrimPrefix(strings.TrimPrefix(databaseURL, "sqlite:"), "//")
		if path == "" {
			return nil, fmt.Errorf("sqlite url has no path: %q", databaseURL)
		}

		dsn := path + "?" + sqlitePragmas
		if path != ":memory:" {
			dsn += "&_pragma=journal_mode(WAL)"
		}

		db, err := sqlx.Connect(driverSQLite, dsn)
		if err != nil {
			return nil, err
		}

		// One connection: SQLite has a single writer, and :memory: databases
		// exist per connection.
		db.SetMaxOpenConns(1)
		db.SetMaxIdleConns(1)
		db.SetConnMaxLifetime(0)

		return &DB{DB: db, Dialect: DialectSQLite}, nil

	default:
		return nil, fmt.Errorf("unsupported database url scheme: %q", databaseURL)
	}
}

func (db *DB) Ping(ctx context.Context) error {
	return db.PingContext(ctx)
}

func (db *DB) Close() error {
	return db.DB.Close()
}

// TxFunc is a function that runs within a transaction.
type TxFunc func(tx *sqlx.Tx) error

// WithTx executes fn within a database transaction.
// If fn returns an error, the transaction is rolled back.
// Otherwise, the transaction is committed.
func (db *DB) WithTx(ctx context.Context, fn TxFunc) error {
	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
	}()

	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return fmt.Errorf("rollback failed: %v (original error: %w)", rbErr, err)
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}

	return nil
}
