package auth

import "time"

// User is an account that can authenticate and hold roles. PasswordHash is
// never serialized.
type User struct {
	ID           int64     `json:"id"`
	Name         string    `json:"name"`
	PhoneNumber  string    `json:"phone_number,omitempty"`
	Email        string    `json:"email"`
	Username     string    `json:"username"`
	PasswordHash string    `json:"-"`
	Active       bool      `json:"is_active"`
	Superuser    bool      `json:"is_superuser"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`

	// Roles with their permissions, eagerly loaded by the store.
	Roles []Role `json:"roles,omitempty"`
}

// Role groups permissions. Name is globally unique.
type Role struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`

	Permissions []Permission `json:"permissions,omitempty"`
}

// Permission grants an action on a resource. Name is globally unique;
// resource and action are matched by value, with "*" reserved as the
// universal match token.
type Permission struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	Resource    string    `json:"resource"`
	Action      string    `json:"action"`
	Description string    `json:"description,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// TokenPair is what login and refresh hand back to the client.
type TokenPair struct {
	AccessToken      string    `json:"access_token"`
	RefreshToken     string    `json:"refresh_token"`
	TokenType        string    `json:"token_type"`
	AccessExpiresAt  time.Time `json:"access_expires_at"`
	RefreshExpiresAt time.Time `json:"refresh_expires_at"`
}
