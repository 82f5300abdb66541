package auth

import (
	"context"
	"errors"
	"testing"

	"github.com/dukerupert/fintrack/internal/model"
)

func TestRequireAuthenticated(t *testing.T) {
	ctx := WithIdentity(context.Background(), Identity{UserID: 5, Role: model.RoleUser})
	id, err := RequireAuthenticated(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if id.UserID != 5 {
		t.Errorf("UserID = %d, want 5", id.UserID)
	}
}

func TestRequireAuthenticatedMissing(t *testing.T) {
	if _, err := RequireAuthenticated(context.Background()); !errors.Is(err, ErrUnauthenticated) {
		t.Errorf("err = %v, want ErrUnauthenticated", err)
	}
}

func TestRequireAdmin(t *testing.T) {
	tests := []struct {
		name string
		ctx  context.Context
		want error
	}{
		{"admin", WithIdentity(context.Background(), Identity{UserID: 1, Role: model.RoleAdmin}), nil},
		{"superuser", WithIdentity(context.Background(), Identity{UserID: 1, Role: model.RoleUser, Superuser: true}), nil},
		{"user", WithIdentity(context.Background(), Identity{UserID: 1, Role: model.RoleUser}), ErrForbidden},
		{"anonymous", context.Background(), ErrUnauthenticated},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := RequireAdmin(tt.ctx)
			if !errors.Is(err, tt.want) {
				t.Errorf("err = %v, want %v", err, tt.want)
			}
		})
	}
}
