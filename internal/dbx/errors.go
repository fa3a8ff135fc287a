package dbx

import (
	"errors"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

const pgUniqueViolation = "23505"

// UniqueViolation reports whether err is a unique-constraint failure and
// names the violated target. For PostgreSQL that is the constraint name
// (e.g. "users_name_key"); for SQLite it is "table.column" (e.g. "users.name").
func UniqueViolation(err error) (string, bool) {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		if pgErr.Code != pgUniqueViolation {
			return "", false
		}
		return pgErr.ConstraintName, true
	}

	var liteErr *sqlite.Error
	if errors.As(err, &liteErr) {
		if liteErr.Code() != sqlite3.SQLITE_CONSTRAINT_UNIQUE && liteErr.Code() != sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY {
			return "", false
		}
		msg := liteErr.Error()
		const marker = "UNIQUE constraint failed: "
		if i := strings.Index(msg, marker); i >= 0 {
			target := msg[i+len(marker):]
			if j := strings.IndexAny(target, " ,("); j >= 0 {
				target = target[:j]
			}
			return target, true
		}
		return "", true
	}

	return "", false
}
