package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/dukerupert/fintrack/internal/model"
	"github.com/dukerupert/fintrack/internal/store"
)

const (
	maxNameLen  = 255
	maxEmailLen = 255
)

// UserStore is the credential store the gateway depends on.
type UserStore interface {
	Create(ctx context.Context, email, name, passwordHash, role string) (*model.User, error)
	GetByID(ctx context.Context, id int64) (*model.User, error)
	GetByEmail(ctx context.Context, email string) (*model.User, error)
	List(ctx context.Context) ([]model.User, error)
	Save(ctx context.Context, u *model.User) error
	Delete(ctx context.Context, id int64) error
}

// Gateway implements registration, login and account management on top of
// the credential store, the password hasher and the token issuer.
type Gateway struct {
	users  UserStore
	hasher *Hasher
	tokens *Tokens
}

func NewGateway(users UserStore, hasher *Hasher, tokens *Tokens) *Gateway {
	return &Gateway{users: users, hasher: hasher, tokens: tokens}
}

func (g *Gateway) Tokens() *Tokens {
	return g.tokens
}

type RegisterInput struct {
	Email    string
	Password string
	Name     string
	// Role is honoured only by CreateUser; Register always creates users.
	Role string
}

// UserPatch is a partial update. Nil fields are left unchanged.
type UserPatch struct {
	Name     *string
	Email    *string
	Role     *string
	Password *string
}

// Register creates an ordinary user account.
func (g *Gateway) Register(ctx context.Context, in RegisterInput) (model.UserView, error) {
	in.Role = model.RoleUser
	u, err := g.create(ctx, in)
	if err != nil {
		return model.UserView{}, err
	}
	return u.View(), nil
}

// CreateUser creates an account with any valid role. Callers must have
// passed RequireAdmin.
func (g *Gateway) CreateUser(ctx context.Context, in RegisterInput) (model.UserView, error) {
	if in.Role == "" {
		in.Role = model.RoleUser
	}
	u, err := g.create(ctx, in)
	if err != nil {
		return model.UserView{}, err
	}
	return u.View(), nil
}

func (g *Gateway) create(ctx context.Context, in RegisterInput) (*model.User, error) {
	in.Name = strings.TrimSpace(in.Name)
	in.Email = store.NormalizeEmail(in.Email)

	verr := ValidationError{}
	validateName(verr, in.Name)
	validateEmail(verr, in.Email)
	validatePassword(verr, in.Password)
	if !model.ValidRole(in.Role) {
		verr.Add("role", fmt.Sprintf("%q is not a valid choice.", in.Role))
	}
	if err := verr.errOrNil(); err != nil {
		return nil, err
	}

	hash, err := g.hasher.Hash(in.Password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	u, err := g.users.Create(ctx, in.Email, in.Name, hash, in.Role)
	if err != nil {
		if errors.Is(err, store.ErrDuplicateEmail) {
			return nil, ErrDuplicateEmail
		}
		return nil, fmt.Errorf("create user: %w", err)
	}
	return u, nil
}

// Login checks the credentials and issues a session token. An unknown email
// yields ErrUserNotFound, a wrong password ErrInvalidCredentials.
func (g *Gateway) Login(ctx context.Context, email, password string) (string, *model.User, error) {
	u, err := g.users.GetByEmail(ctx, email)
	if err != nil {
		return "", nil, fmt.Errorf("login lookup: %w", err)
	}
	if u == nil {
		return "", nil, ErrUserNotFound
	}
	if !g.hasher.Verify(password, u.PasswordHash) {
		return "", nil, ErrInvalidCredentials
	}

	token, err := g.tokens.Issue(u.ID)
	if err != nil {
		return "", nil, err
	}
	return token, u, nil
}

// Authenticate resolves a raw token to the identity of a user that still
// exists. Any failure is ErrUnauthenticated wrapped with the cause.
func (g *Gateway) Authenticate(ctx context.Context, token string) (Identity, error) {
	if token == "" {
		return Identity{}, ErrUnauthenticated
	}
	id, err := g.tokens.Verify(token)
	if err != nil {
		return Identity{}, fmt.Errorf("%w: %w", ErrUnauthenticated, err)
	}
	u, err := g.users.GetByID(ctx, id)
	if err != nil {
		return Identity{}, fmt.Errorf("load user: %w", err)
	}
	if u == nil {
		return Identity{}, fmt.Errorf("%w: user no longer exists", ErrUnauthenticated)
	}
	return IdentityOf(u), nil
}

// WhoAmI returns the profile of the authenticated caller.
func (g *Gateway) WhoAmI(ctx context.Context) (model.UserView, error) {
	caller, err := RequireAuthenticated(ctx)
	if err != nil {
		return model.UserView{}, err
	}
	u, err := g.users.GetByID(ctx, caller.UserID)
	if err != nil {
		return model.UserView{}, fmt.Errorf("load user: %w", err)
	}
	if u == nil {
		return model.UserView{}, ErrUnauthenticated
	}
	return u.View(), nil
}

// UpdateSelf applies patch to the caller's own account. Changing the role is
// reserved for admins.
func (g *Gateway) UpdateSelf(ctx context.Context, patch UserPatch) (model.UserView, error) {
	caller, err := RequireAuthenticated(ctx)
	if err != nil {
		return model.UserView{}, err
	}
	u, err := g.users.GetByID(ctx, caller.UserID)
	if err != nil {
		return model.UserView{}, fmt.Errorf("load user: %w", err)
	}
	if u == nil {
		return model.UserView{}, ErrUnauthenticated
	}
	if patch.Role != nil && *patch.Role != u.Role && !caller.IsAdmin() {
		return model.UserView{}, ErrForbidden
	}
	if err := g.apply(ctx, u, patch); err != nil {
		return model.UserView{}, err
	}
	return u.View(), nil
}

func (g *Gateway) ListUsers(ctx context.Context) ([]model.UserView, error) {
	users, err := g.users.List(ctx)
	if err != nil {
		return nil, err
	}
	views := make([]model.UserView, 0, len(users))
	for i := range users {
		views = append(views, users[i].View())
	}
	return views, nil
}

// GetUser returns store.ErrNotFound for unknown ids.
func (g *Gateway) GetUser(ctx context.Context, id int64) (*model.User, error) {
	u, err := g.users.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("load user: %w", err)
	}
	if u == nil {
		return nil, store.ErrNotFound
	}
	return u, nil
}

// UpdateUser applies patch to any account, role included.
func (g *Gateway) UpdateUser(ctx context.Context, id int64, patch UserPatch) (model.UserView, error) {
	u, err := g.GetUser(ctx, id)
	if err != nil {
		return model.UserView{}, err
	}
	if err := g.apply(ctx, u, patch); err != nil {
		return model.UserView{}, err
	}
	return u.View(), nil
}

// DeleteUser removes an account. The caller can never delete itself.
func (g *Gateway) DeleteUser(ctx context.Context, caller Identity, id int64) error {
	if _, err := g.GetUser(ctx, id); err != nil {
		return err
	}
	if id == caller.UserID {
		return ErrSelfDelete
	}
	return g.users.Delete(ctx, id)
}

func (g *Gateway) apply(ctx context.Context, u *model.User, patch UserPatch) error {
	verr := ValidationError{}
	if patch.Name != nil {
		name := strings.TrimSpace(*patch.Name)
		validateName(verr, name)
		u.Name = name
	}
	if patch.Email != nil {
		email := store.NormalizeEmail(*patch.Email)
		validateEmail(verr, email)
		u.Email = email
	}
	if patch.Role != nil {
		if !model.ValidRole(*patch.Role) {
			verr.Add("role", fmt.Sprintf("%q is not a valid choice.", *patch.Role))
		}
		u.Role = *patch.Role
	}
	// An empty password in a patch means "leave unchanged".
	if patch.Password != nil && *patch.Password != "" {
		validatePassword(verr, *patch.Password)
	}
	if err := verr.errOrNil(); err != nil {
		return err
	}

	if patch.Password != nil && *patch.Password != "" {
		hash, err := g.hasher.Hash(*patch.Password)
		if err != nil {
			return fmt.Errorf("hash password: %w", err)
		}
		u.PasswordHash = hash
	}

	if err := g.users.Save(ctx, u); err != nil {
		if errors.Is(err, store.ErrDuplicateEmail) {
			return ErrDuplicateEmail
		}
		return fmt.Errorf("save user: %w", err)
	}
	return nil
}

func validateName(verr ValidationError, name string) {
	switch {
	case name == "":
		verr.Add("name", "This field may not be blank.")
	case len(name) > maxNameLen:
		verr.Add("name", fmt.Sprintf("Ensure this field has no more than %d characters.", maxNameLen))
	}
}

func validateEmail(verr ValidationError, email string) {
	switch {
	case email == "":
		verr.Add("email", "This field may not be blank.")
	case len(email) > maxEmailLen:
		verr.Add("email", fmt.Sprintf("Ensure this field has no more than %d characters.", maxEmailLen))
	}
}

func validatePassword(verr ValidationError, password string) {
	switch {
	case password == "":
		verr.Add("password", "This field may not be blank.")
	case len(password) > MaxPasswordBytes:
		verr.Add("password", fmt.Sprintf("Ensure this field has no more than %d bytes.", MaxPasswordBytes))
	}
}
