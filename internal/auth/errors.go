package auth

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/dukerupert/fintrack/internal/store"
)

var (
	ErrUnauthenticated    = errors.New("authentication credentials were not provided")
	ErrForbidden          = errors.New("admin access required")
	ErrInvalidToken       = errors.New("invalid token")
	ErrTokenExpired       = fmt.Errorf("%w: token expired", ErrInvalidToken)
	ErrUserNotFound       = errors.New("user not found")
	ErrInvalidCredentials = errors.New("incorrect password")
	ErrSelfDelete         = errors.New("cannot delete your own account")

	// ErrDuplicateEmail is the store's sentinel so callers can match either.
	ErrDuplicateEmail = store.ErrDuplicateEmail
)

// ValidationError maps field names to human readable problems.
type ValidationError map[string][]string

func (v ValidationError) Error() string {
	fields := make([]string, 0, len(v))
	for f := range v {
		fields = append(fields, f)
	}
	sort.Strings(fields)
	parts := make([]string, 0, len(fields))
	for _, f := range fields {
		parts = append(parts, f+": "+strings.Join(v[f], ", "))
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

func (v ValidationError) Add(field, msg string) {
	v[field] = append(v[field], msg)
}

func (v ValidationError) errOrNil() error {
	if len(v) == 0 {
		return nil
	}
	return v
}
