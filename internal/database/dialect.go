package database

import (
	"errors"

	"github.com/lib/pq"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

type Dialect string

const (
	DialectPostgres Dialect = "postgres"
	DialectSQLite   Dialect = "sqlite"
)

// DialectOf reports the dialect behind a connection or transaction.
func DialectOf(q interface{ DriverName() string }) Dialect {
	if q.DriverName() == driverSQLite {
		return DialectSQLite
	}
	return DialectPostgres
}

// LockRow is appended to a SELECT that must hold its rows until commit.
// SQLite serializes writers, so it needs no clause.
func (d Dialect) LockRow() string {
	if d == DialectPostgres {
		return " FOR UPDATE"
	}
	return ""
}

// LockSkip is appended to a claim subquery so concurrent claimers pass over
// rows another transaction already holds.
func (d Dialect) LockSkip() string {
	if d == DialectPostgres {
		return " FOR UPDATE SKIP LOCKED"
	}
	return ""
}

func (d Dialect) gooseDialect() string {
	if d == DialectSQLite {
		return "sqlite3"
	}
	return "postgres"
}

// IsUniqueViolation reports whether err came from a unique constraint.
func IsUniqueViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23505"
	}

	var sqliteErr *sqlite.Error
	if errors.As(err, &sqliteErr) {
		code := sqliteErr.Code()
		return code == sqlite3.SQLITE_CONSTRAINT_UNIQUE || code == sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY
	}

	return false
}
