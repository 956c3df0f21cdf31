package api

import "time"

// User is the profile of the signed in user.
type User struct {
	ID        string    `json:"id" validate:"required"`
	Email     string    `json:"email" validate:"required,email"`
	Name      *string   `json:"name,omitempty"`
	IsAdmin   bool      `json:"is_admin"`
	CreatedAt time.Time `json:"created_at"`
}

func (u User) GetID() string    { return u.ID }
func (u User) ParentID() string { return "" }
func (u User) SortKey() int64   { return u.CreatedAt.UnixMilli() }

// UserPatch is a partial update of the user profile.
type UserPatch struct {
	Name  *string `json:"name,omitempty"`
	Email *string `json:"email,omitempty" validate:"omitempty,email"`
}

// Credentials are used to sign in.
type Credentials struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// Registration is used to create an account.
type Registration struct {
	Email    string  `json:"email" validate:"required,email"`
	Password string  `json:"password" validate:"required,min=8"`
	Name     *string `json:"name,omitempty"`
}

// LoginResponse is returned by login and register. The session cookie is set by the server,
// AccessToken is only present when the server also issues a bearer token.
type LoginResponse struct {
	User        User   `json:"user" validate:"required"`
	AccessToken string `json:"access_token,omitempty"`
}
