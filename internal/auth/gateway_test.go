package auth

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/dukerupert/fintrack/internal/database"
	"github.com/dukerupert/fintrack/internal/model"
	"github.com/dukerupert/fintrack/internal/store"
	"golang.org/x/crypto/bcrypt"
)

func newTestGateway(t *testing.T) (*Gateway, *store.UserStore) {
	t.Helper()
	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	users := store.NewUserStore(db)
	return NewGateway(users, NewHasher(bcrypt.MinCost), NewTokens(testSecret, time.Hour)), users
}

func register(t *testing.T, g *Gateway, email, password string) model.UserView {
	t.Helper()
	v, err := g.Register(context.Background(), RegisterInput{Email: email, Password: password, Name: "Test"})
	if err != nil {
		t.Fatalf("register %s: %v", email, err)
	}
	return v
}

func strPtr(s string) *string { return &s }

func TestRegisterLoginAuthenticate(t *testing.T) {
	g, _ := newTestGateway(t)
	ctx := context.Background()

	v := register(t, g, "A@x.io", "pw123")
	if v.Email != "a@x.io" {
		t.Errorf("Email = %q, want normalized a@x.io", v.Email)
	}
	if v.Role != model.RoleUser {
		t.Errorf("Role = %q, want user", v.Role)
	}

	token, u, err := g.Login(ctx, "a@x.io", "pw123")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if u.ID != v.ID {
		t.Errorf("login user id = %d, want %d", u.ID, v.ID)
	}

	id, err := g.Authenticate(ctx, token)
	if err != nil {
		t.Fatalf("authenticate: %v", err)
	}
	if id.UserID != v.ID || id.Email != "a@x.io" {
		t.Errorf("identity = %+v", id)
	}
}

func TestRegisterIgnoresRole(t *testing.T) {
	g, _ := newTestGateway(t)
	v, err := g.Register(context.Background(), RegisterInput{Email: "b@x.io", Password: "pw", Name: "B", Role: model.RoleAdmin})
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if v.Role != model.RoleUser {
		t.Errorf("Role = %q, want user", v.Role)
	}
}

func TestRegisterDuplicateCaseVariant(t *testing.T) {
	g, _ := newTestGateway(t)
	register(t, g, "dup@x.io", "pw")

	_, err := g.Register(context.Background(), RegisterInput{Email: " DUP@x.io ", Password: "pw", Name: "Dup"})
	if !errors.Is(err, ErrDuplicateEmail) {
		t.Errorf("err = %v, want ErrDuplicateEmail", err)
	}
}

func TestRegisterValidation(t *testing.T) {
	g, _ := newTestGateway(t)

	_, err := g.Register(context.Background(), RegisterInput{Email: "", Password: "", Name: "  "})
	var verr ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("err = %v, want ValidationError", err)
	}
	for _, field := range []string{"email", "password", "name"} {
		if len(verr[field]) == 0 {
			t.Errorf("expected message for %s", field)
		}
	}
}

func TestRegisterPasswordTooLong(t *testing.T) {
	g, _ := newTestGateway(t)
	long := make([]byte, MaxPasswordBytes+1)
	for i := range long {
		long[i] = 'a'
	}

	_, err := g.Register(context.Background(), RegisterInput{Email: "l@x.io", Password: string(long), Name: "L"})
	var verr ValidationError
	if !errors.As(err, &verr) || len(verr["password"]) == 0 {
		t.Errorf("err = %v, want password ValidationError", err)
	}
}

func TestLoginFailures(t *testing.T) {
	g, _ := newTestGateway(t)
	register(t, g, "a@x.io", "pw123")
	ctx := context.Background()

	if _, _, err := g.Login(ctx, "nobody@x.io", "pw123"); !errors.Is(err, ErrUserNotFound) {
		t.Errorf("unknown email err = %v, want ErrUserNotFound", err)
	}
	if _, _, err := g.Login(ctx, "a@x.io", "wrong"); !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("wrong password err = %v, want ErrInvalidCredentials", err)
	}
	if _, _, err := g.Login(ctx, "A@X.IO", "pw123"); err != nil {
		t.Errorf("case-variant email login: %v", err)
	}
}

func TestAuthenticateRejects(t *testing.T) {
	g, users := newTestGateway(t)
	ctx := context.Background()
	v := register(t, g, "a@x.io", "pw")
	token, _, _ := g.Login(ctx, "a@x.io", "pw")

	if _, err := g.Authenticate(ctx, ""); !errors.Is(err, ErrUnauthenticated) {
		t.Errorf("empty token err = %v", err)
	}
	if _, err := g.Authenticate(ctx, token+"x"); !errors.Is(err, ErrUnauthenticated) {
		t.Errorf("tampered token err = %v", err)
	}

	if err := users.Delete(ctx, v.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := g.Authenticate(ctx, token); !errors.Is(err, ErrUnauthenticated) {
		t.Errorf("deleted user err = %v, want ErrUnauthenticated", err)
	}
}

func TestWhoAmI(t *testing.T) {
	g, _ := newTestGateway(t)
	v := register(t, g, "a@x.io", "pw")

	if _, err := g.WhoAmI(context.Background()); !errors.Is(err, ErrUnauthenticated) {
		t.Errorf("anonymous err = %v", err)
	}

	ctx := WithIdentity(context.Background(), Identity{UserID: v.ID, Role: v.Role})
	got, err := g.WhoAmI(ctx)
	if err != nil {
		t.Fatalf("whoami: %v", err)
	}
	if got != v {
		t.Errorf("whoami = %+v, want %+v", got, v)
	}
}

func TestUpdateSelf(t *testing.T) {
	g, _ := newTestGateway(t)
	v := register(t, g, "a@x.io", "pw")
	ctx := WithIdentity(context.Background(), Identity{UserID: v.ID, Role: model.RoleUser})

	got, err := g.UpdateSelf(ctx, UserPatch{Name: strPtr("Alice"), Password: strPtr("")})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if got.Name != "Alice" || got.Email != "a@x.io" {
		t.Errorf("updated = %+v", got)
	}
	// Empty password leaves the old one in place.
	if _, _, err := g.Login(context.Background(), "a@x.io", "pw"); err != nil {
		t.Errorf("login with old password: %v", err)
	}

	if _, err := g.UpdateSelf(ctx, UserPatch{Password: strPtr("newpw")}); err != nil {
		t.Fatalf("password change: %v", err)
	}
	if _, _, err := g.Login(context.Background(), "a@x.io", "newpw"); err != nil {
		t.Errorf("login with new password: %v", err)
	}
}

func TestUpdateSelfRoleForbidden(t *testing.T) {
	g, _ := newTestGateway(t)
	v := register(t, g, "a@x.io", "pw")
	ctx := WithIdentity(context.Background(), Identity{UserID: v.ID, Role: model.RoleUser})

	if _, err := g.UpdateSelf(ctx, UserPatch{Role: strPtr(model.RoleAdmin)}); !errors.Is(err, ErrForbidden) {
		t.Errorf("err = %v, want ErrForbidden", err)
	}
	// Sending the unchanged role is fine.
	if _, err := g.UpdateSelf(ctx, UserPatch{Role: strPtr(model.RoleUser)}); err != nil {
		t.Errorf("same role: %v", err)
	}
}

func TestUpdateSelfDuplicateEmail(t *testing.T) {
	g, _ := newTestGateway(t)
	register(t, g, "a@x.io", "pw")
	v := register(t, g, "b@x.io", "pw")
	ctx := WithIdentity(context.Background(), Identity{UserID: v.ID, Role: model.RoleUser})

	if _, err := g.UpdateSelf(ctx, UserPatch{Email: strPtr("A@x.io")}); !errors.Is(err, ErrDuplicateEmail) {
		t.Errorf("err = %v, want ErrDuplicateEmail", err)
	}
}

func TestCreateUserAndUpdateUser(t *testing.T) {
	g, _ := newTestGateway(t)
	ctx := context.Background()

	v, err := g.CreateUser(ctx, RegisterInput{Email: "boss@x.io", Password: "pw", Name: "Boss", Role: model.RoleAdmin})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if v.Role != model.RoleAdmin {
		t.Errorf("Role = %q, want admin", v.Role)
	}

	if _, err := g.CreateUser(ctx, RegisterInput{Email: "x@x.io", Password: "pw", Name: "X", Role: "owner"}); err == nil {
		t.Error("expected invalid role to fail")
	}

	got, err := g.UpdateUser(ctx, v.ID, UserPatch{Role: strPtr(model.RoleUser)})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if got.Role != model.RoleUser {
		t.Errorf("Role = %q, want user", got.Role)
	}

	if _, err := g.UpdateUser(ctx, 999, UserPatch{}); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("missing user err = %v, want store.ErrNotFound", err)
	}
}

func TestListUsers(t *testing.T) {
	g, _ := newTestGateway(t)
	register(t, g, "a@x.io", "pw")
	register(t, g, "b@x.io", "pw")

	views, err := g.ListUsers(context.Background())
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(views) != 2 {
		t.Fatalf("len = %d, want 2", len(views))
	}
	if views[0].Email != "a@x.io" || views[1].Email != "b@x.io" {
		t.Errorf("views = %+v", views)
	}
}

func TestDeleteUser(t *testing.T) {
	g, _ := newTestGateway(t)
	ctx := context.Background()
	admin := register(t, g, "admin@x.io", "pw")
	other := register(t, g, "other@x.io", "pw")
	caller := Identity{UserID: admin.ID, Role: model.RoleAdmin}

	if err := g.DeleteUser(ctx, caller, admin.ID); !errors.Is(err, ErrSelfDelete) {
		t.Errorf("self delete err = %v, want ErrSelfDelete", err)
	}
	if err := g.DeleteUser(ctx, caller, 999); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("missing err = %v, want store.ErrNotFound", err)
	}
	if err := g.DeleteUser(ctx, caller, other.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := g.GetUser(ctx, other.ID); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("after delete err = %v, want store.ErrNotFound", err)
	}
}
