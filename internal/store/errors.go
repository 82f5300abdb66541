package store

import (
	"errors"

	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

var (
	// ErrNotFound is returned by owner-scoped operations when the row is
	// missing or belongs to someone else. The two cases are not distinguished.
	ErrNotFound = errors.New("not found")

	ErrDuplicateEmail = errors.New("duplicate email")
)

func isUniqueViolation(err error) bool {
	var se *sqlite.Error
	if errors.As(err, &se) {
		return se.Code() == sqlite3.SQLITE_CONSTRAINT_UNIQUE
	}
	return false
}
