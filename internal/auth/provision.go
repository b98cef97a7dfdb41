package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// SuperuserSpec is the input to the one-time superuser provisioning flow.
type SuperuserSpec struct {
	Email       string
	Username    string
	Name        string
	PhoneNumber string
	Password    string
}

// EnsureSuperuser runs the provisioning state machine inside one transaction:
// ensure the superuser role exists, ensure the wildcard permission exists and
// is attached to it, create the target user, attach the role. Role and
// permission steps are idempotent; creating the user fails with ErrConflict
// when the account already exists, so the flow can never silently
// re-provision.
func (s *Service) EnsureSuperuser(ctx context.Context, spec SuperuserSpec) (*User, error) {
	spec.Email = strings.TrimSpace(strings.ToLower(spec.Email))
	spec.Username = strings.TrimSpace(spec.Username)
	spec.Name = strings.TrimSpace(spec.Name)
	if spec.Email == "" || !strings.Contains(spec.Email, "@") {
		return nil, fmt.Errorf("%w: valid email is required", ErrInvalidInput)
	}
	if spec.Username == "" {
		return nil, fmt.Errorf("%w: username is required", ErrInvalidInput)
	}
	if spec.Password == "" {
		return nil, fmt.Errorf("%w: password is required", ErrInvalidInput)
	}
	hash, err := s.hasher.Hash(spec.Password)
	if err != nil {
		return nil, err
	}

	var created *User
	err = s.store.WithinTx(ctx, func(ctx context.Context, st Store) error {
		role, err := ensureSuperuserRole(ctx, st)
		if err != nil {
			return err
		}

		users := st.Users(ctx)
		for _, identifier := range []string{spec.Email, spec.Username} {
			if _, err := users.FindByIdentifier(ctx, identifier); err == nil {
				return fmt.Errorf("%w: user %s", ErrConflict, identifier)
			} else if !errors.Is(err, ErrNotFound) {
				return err
			}
		}

		user := &User{
			Name:         spec.Name,
			PhoneNumber:  spec.PhoneNumber,
			Email:        spec.Email,
			Username:     spec.Username,
			PasswordHash: hash,
			Active:       true,
			Superuser:    true,
		}
		if err := users.Create(ctx, user); err != nil {
			return err
		}
		if err := users.AssignRole(ctx, user.ID, role.ID); err != nil {
			return err
		}
		created = user
		return nil
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

// ensureSuperuserRole makes sure the superuser role and its wildcard
// permission exist. Lookups short-circuit creation, so re-running the flow
// never duplicates either.
func ensureSuperuserRole(ctx context.Context, st Store) (*Role, error) {
	roles := st.Roles(ctx)
	role, err := roles.FindByName(ctx, SuperuserRoleName)
	if errors.Is(err, ErrNotFound) {
		role = &Role{Name: SuperuserRoleName, Description: superuserRoleDesc}
		if err := roles.Create(ctx, role); err != nil {
			return nil, err
		}
	} else if err != nil {
		return nil, err
	}

	perms := st.Permissions(ctx)
	perm, err := perms.FindByName(ctx, WildcardPermissionName)
	if errors.Is(err, ErrNotFound) {
		perm = &Permission{
			Name:        WildcardPermissionName,
			Resource:    Wildcard,
			Action:      Wildcard,
			Description: wildcardPermissionDesc,
		}
		if err := perms.Create(ctx, perm); err != nil {
			return nil, err
		}
	} else if err != nil {
		return nil, err
	}

	if err := roles.AddPermission(ctx, role.ID, perm.ID); err != nil {
		return nil, err
	}
	return role, nil
}
