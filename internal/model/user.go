package model

import "time"

const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

type User struct {
	ID           int64     `json:"id"`
	Email        string    `json:"email"`
	Name         string    `json:"name"`
	PasswordHash string    `json:"-"`
	Role         string    `json:"role"`
	IsSuperuser  bool      `json:"-"`
	CreatedAt    time.Time `json:"-"`
	UpdatedAt    time.Time `json:"-"`
}

// UserView is the public representation of a user. It never carries the
// password hash.
type UserView struct {
	ID    int64  `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
	Role  string `json:"role"`
}

func (u *User) View() UserView {
	return UserView{ID: u.ID, Name: u.Name, Email: u.Email, Role: u.Role}
}

// UserDetail is the admin view of a single user with everything they own.
type UserDetail struct {
	UserView
	Goals        []Goal        `json:"goals"`
	Transactions []Transaction `json:"transactions"`
}

func ValidRole(role string) bool {
	return role == RoleUser || role == RoleAdmin
}
