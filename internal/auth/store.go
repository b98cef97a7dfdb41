package auth

import (
	"context"
	"time"
)

// Store describes persistence operations required by the auth subsystem.
type Store interface {
	Users(ctx context.Context) UserStore
	Roles(ctx context.Context) RoleStore
	Permissions(ctx context.Context) PermissionStore
	RevokedTokens(ctx context.Context) RevocationStore

	// WithinTx runs fn against a transactional view of the store. The
	// transaction commits when fn returns nil and rolls back otherwise,
	// including on panic.
	WithinTx(ctx context.Context, fn func(ctx context.Context, s Store) error) error
}

// UserStore manages users. Find methods load roles with their permissions so
// the returned user is ready for Authorize.
type UserStore interface {
	Create(ctx context.Context, u *User) error
	FindByID(ctx context.Context, id int64) (*User, error)
	// FindByIdentifier matches username or email; the deployment decides
	// which one it sends.
	FindByIdentifier(ctx context.Context, identifier string) (*User, error)
	List(ctx context.Context, limit, offset int) ([]*User, error)
	Update(ctx context.Context, u *User) error
	SetActive(ctx context.Context, id int64, active bool) error
	AssignRole(ctx context.Context, userID, roleID int64) error
	RemoveRole(ctx context.Context, userID, roleID int64) error
}

// RoleStore manages roles and their permission links.
type RoleStore interface {
	Create(ctx context.Context, role *Role) error
	FindByID(ctx context.Context, id int64) (*Role, error)
	FindByName(ctx context.Context, name string) (*Role, error)
	List(ctx context.Context, limit, offset int) ([]*Role, error)
	Update(ctx context.Context, role *Role) error
	Delete(ctx context.Context, id int64) error
	AddPermission(ctx context.Context, roleID, permissionID int64) error
	RemovePermission(ctx context.Context, roleID, permissionID int64) error
}

// PermissionStore manages the permission catalog.
type PermissionStore interface {
	Create(ctx context.Context, perm *Permission) error
	FindByID(ctx context.Context, id int64) (*Permission, error)
	FindByName(ctx context.Context, name string) (*Permission, error)
	List(ctx context.Context, limit, offset int) ([]*Permission, error)
	Update(ctx context.Context, perm *Permission) error
	Delete(ctx context.Context, id int64) error
}

// RevocationStore is a denylist of rotated refresh tokens, keyed by jti.
// Only consulted when revoke-on-rotate is enabled.
type RevocationStore interface {
	Revoke(ctx context.Context, jti string, expiresAt time.Time) error
	IsRevoked(ctx context.Context, jti string) (bool, error)
}
