package sqldb

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pressly/goose/v3"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

const (
	dialectSQLite   = "sqlite"
	dialectPostgres = "postgres"

	// pgUniqueViolation is SQLSTATE unique_violation.
	pgUniqueViolation = "23505"
)

type dialect struct {
	name       string
	driverName string
	goose      goose.Dialect
	setup      []string
}

func dialectFor(driver string) (dialect, error) {
	switch strings.ToLower(driver) {
	case dialectSQLite, "sqlite3":
		return dialect{
			name:       dialectSQLite,
			driverName: "sqlite",
			goose:      goose.DialectSQLite3,
			setup: []string{
				"PRAGMA journal_mode=WAL",
				"PRAGMA foreign_keys=ON",
				"PRAGMA busy_timeout=5000",
			},
		}, nil
	case dialectPostgres, "postgresql", "pgx":
		return dialect{
			name:       dialectPostgres,
			driverName: "pgx",
			goose:      goose.DialectPostgres,
		}, nil
	default:
		return dialect{}, fmt.Errorf("sqldb: unsupported driver %q", driver)
	}
}

// rebind rewrites "?" placeholders for the dialect. Queries in this package
// never contain a literal question mark.
func (d dialect) rebind(query string) string {
	if d.name != dialectPostgres {
		return query
	}

	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// isUniqueViolation reports whether err is a UNIQUE constraint failure.
func (d dialect) isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}

	var sqliteErr *sqlite.Error
	if errors.As(err, &sqliteErr) {
		switch code := sqliteErr.Code(); {
		case code == sqlite3.SQLITE_CONSTRAINT_UNIQUE, code == sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY:
			return true
		case code&0xff == sqlite3.SQLITE_CONSTRAINT:
			// connection without extended result codes
			return strings.Contains(sqliteErr.Error(), "UNIQUE")
		}
		return false
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgUniqueViolation
	}

	return false
}

// placeholders returns "?, ?, ?" with n marks.
func placeholders(n int) string {
	if n <= 0 {
		return ""
	}
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}
