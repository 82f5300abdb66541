package auth

import (
	"context"

	"github.com/dukerupert/fintrack/internal/model"
)

type contextKey struct{}

// Identity is the caller resolved from a verified session token.
type Identity struct {
	UserID    int64
	Email     string
	Role      string
	Superuser bool
}

// IdentityOf builds the identity for a stored user.
func IdentityOf(u *model.User) Identity {
	return Identity{
		UserID:    u.ID,
		Email:     u.Email,
		Role:      u.Role,
		Superuser: u.IsSuperuser,
	}
}

// IsAdmin is the single capability check for administrative access.
func (i Identity) IsAdmin() bool {
	return i.Role == model.RoleAdmin || i.Superuser
}

func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, contextKey{}, id)
}

func FromContext(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(contextKey{}).(Identity)
	return id, ok
}

func UserID(ctx context.Context) int64 {
	id, ok := FromContext(ctx)
	if !ok {
		return 0
	}
	return id.UserID
}

func IsAdmin(ctx context.Context) bool {
	id, ok := FromContext(ctx)
	if !ok {
		return false
	}
	return id.IsAdmin()
}
