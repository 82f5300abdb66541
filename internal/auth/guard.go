package auth

import "context"

// RequireAuthenticated returns the caller identity or ErrUnauthenticated.
func RequireAuthenticated(ctx context.Context) (Identity, error) {
	id, ok := FromContext(ctx)
	if !ok || id.UserID == 0 {
		return Identity{}, ErrUnauthenticated
	}
	return id, nil
}

// RequireAdmin returns the caller identity when it holds admin capability.
// An anonymous caller gets ErrUnauthenticated, an ordinary user ErrForbidden.
func RequireAdmin(ctx context.Context) (Identity, error) {
	id, err := RequireAuthenticated(ctx)
	if err != nil {
		return Identity{}, err
	}
	if !id.IsAdmin() {
		return Identity{}, ErrForbidden
	}
	return id, nil
}
