package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// RoleUpdate carries optional role changes; nil fields are left unchanged.
type RoleUpdate struct {
	Name        *string
	Description *string
}

// PermissionUpdate carries optional permission changes.
type PermissionUpdate struct {
	Name        *string
	Resource    *string
	Action      *string
	Description *string
}

// Admin exposes the management operations behind the RBAC endpoints: role and
// permission CRUD, role attachment and user administration. Input validation
// lives here so every transport gets the same rules.
type Admin struct {
	store Store
}

// NewAdmin builds the admin service.
func NewAdmin(store Store) (*Admin, error) {
	if store == nil {
		return nil, errors.New("auth: store is required")
	}
	return &Admin{store: store}, nil
}

// Roles ---------------------------------------------------------------------

func (a *Admin) CreateRole(ctx context.Context, name, description string) (*Role, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("%w: role name is required", ErrInvalidInput)
	}
	role := &Role{Name: name, Description: strings.TrimSpace(description)}
	if err := a.store.Roles(ctx).Create(ctx, role); err != nil {
		return nil, err
	}
	return role, nil
}

func (a *Admin) GetRole(ctx context.Context, id int64) (*Role, error) {
	return a.store.Roles(ctx).FindByID(ctx, id)
}

func (a *Admin) ListRoles(ctx context.Context, limit, offset int) ([]*Role, error) {
	return a.store.Roles(ctx).List(ctx, limit, offset)
}

func (a *Admin) UpdateRole(ctx context.Context, id int64, upd RoleUpdate) (*Role, error) {
	role, err := a.store.Roles(ctx).FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if upd.Name != nil {
		name := strings.TrimSpace(*upd.Name)
		if name == "" {
			return nil, fmt.Errorf("%w: role name is required", ErrInvalidInput)
		}
		role.Name = name
	}
	if upd.Description != nil {
		role.Description = strings.TrimSpace(*upd.Description)
	}
	if err := a.store.Roles(ctx).Update(ctx, role); err != nil {
		return nil, err
	}
	return role, nil
}

func (a *Admin) DeleteRole(ctx context.Context, id int64) error {
	return a.store.Roles(ctx).Delete(ctx, id)
}

// AttachPermission links a permission to a role. Both must exist; attaching
// an already linked permission is a no-op.
func (a *Admin) AttachPermission(ctx context.Context, roleID, permissionID int64) error {
	if _, err := a.store.Roles(ctx).FindByID(ctx, roleID); err != nil {
		return err
	}
	if _, err := a.store.Permissions(ctx).FindByID(ctx, permissionID); err != nil {
		return err
	}
	return a.store.Roles(ctx).AddPermission(ctx, roleID, permissionID)
}

func (a *Admin) DetachPermission(ctx context.Context, roleID, permissionID int64) error {
	if _, err := a.store.Roles(ctx).FindByID(ctx, roleID); err != nil {
		return err
	}
	return a.store.Roles(ctx).RemovePermission(ctx, roleID, permissionID)
}

// Permissions ---------------------------------------------------------------

func (a *Admin) CreatePermission(ctx context.Context, name, resource, action, description string) (*Permission, error) {
	resource = strings.TrimSpace(resource)
	action = strings.TrimSpace(action)
	if resource == "" || action == "" {
		return nil, fmt.Errorf("%w: resource and action are required", ErrInvalidInput)
	}
	name = strings.TrimSpace(name)
	if name == "" {
		name = resource + ":" + action
	}
	perm := &Permission{
		Name:        name,
		Resource:    resource,
		Action:      action,
		Description: strings.TrimSpace(description),
	}
	if err := a.store.Permissions(ctx).Create(ctx, perm); err != nil {
		return nil, err
	}
	return perm, nil
}

func (a *Admin) GetPermission(ctx context.Context, id int64) (*Permission, error) {
	return a.store.Permissions(ctx).FindByID(ctx, id)
}

func (a *Admin) ListPermissions(ctx context.Context, limit, offset int) ([]*Permission, error) {
	return a.store.Permissions(ctx).List(ctx, limit, offset)
}

func (a *Admin) UpdatePermission(ctx context.Context, id int64, upd PermissionUpdate) (*Permission, error) {
	perm, err := a.store.Permissions(ctx).FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if upd.Resource != nil {
		resource := strings.TrimSpace(*upd.Resource)
		if resource == "" {
			return nil, fmt.Errorf("%w: resource is required", ErrInvalidInput)
		}
		perm.Resource = resource
	}
	if upd.Action != nil {
		action := strings.TrimSpace(*upd.Action)
		if action == "" {
			return nil, fmt.Errorf("%w: action is required", ErrInvalidInput)
		}
		perm.Action = action
	}
	if upd.Name != nil {
		name := strings.TrimSpace(*upd.Name)
		if name == "" {
			return nil, fmt.Errorf("%w: permission name is required", ErrInvalidInput)
		}
		perm.Name = name
	}
	if upd.Description != nil {
		perm.Description = strings.TrimSpace(*upd.Description)
	}
	if err := a.store.Permissions(ctx).Update(ctx, perm); err != nil {
		return nil, err
	}
	return perm, nil
}

func (a *Admin) DeletePermission(ctx context.Context, id int64) error {
	return a.store.Permissions(ctx).Delete(ctx, id)
}

// Users ---------------------------------------------------------------------

func (a *Admin) ListUsers(ctx context.Context, limit, offset int) ([]*User, error) {
	return a.store.Users(ctx).List(ctx, limit, offset)
}

func (a *Admin) GetUser(ctx context.Context, id int64) (*User, error) {
	return a.store.Users(ctx).FindByID(ctx, id)
}

// AssignRole grants a role to a user. Assigning an already held role is a
// no-op.
func (a *Admin) AssignRole(ctx context.Context, userID, roleID int64) error {
	if _, err := a.store.Users(ctx).FindByID(ctx, userID); err != nil {
		return err
	}
	if _, err := a.store.Roles(ctx).FindByID(ctx, roleID); err != nil {
		return err
	}
	return a.store.Users(ctx).AssignRole(ctx, userID, roleID)
}

func (a *Admin) RemoveRole(ctx context.Context, userID, roleID int64) error {
	if _, err := a.store.Users(ctx).FindByID(ctx, userID); err != nil {
		return err
	}
	return a.store.Users(ctx).RemoveRole(ctx, userID, roleID)
}

// DeactivateUser soft-deletes an account: the record stays, logins and token
// refreshes stop working.
func (a *Admin) DeactivateUser(ctx context.Context, id int64) error {
	return a.store.Users(ctx).SetActive(ctx, id, false)
}

// ActivateUser reinstates a deactivated account.
func (a *Admin) ActivateUser(ctx context.Context, id int64) error {
	return a.store.Users(ctx).SetActive(ctx, id, true)
}
