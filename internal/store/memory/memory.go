// Package memory implements auth.Store over process-local maps. It backs the
// httpapi test harness and cache-less development runs; production uses the
// Postgres store.
package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"pressline.org/internal/auth"
)

// Store holds all auth entities in memory. Safe for concurrent use.
// WithinTx provides no isolation: the store is single-process and the
// provisioning flow is the only multi-step writer.
type Store struct {
	mu sync.RWMutex

	userSeq int64
	roleSeq int64
	permSeq int64

	users map[int64]auth.User
	roles map[int64]auth.Role
	perms map[int64]auth.Permission

	userRoles map[int64]map[int64]struct{}
	rolePerms map[int64]map[int64]struct{}

	revoked map[string]time.Time
}

// New returns an empty in-memory store.
func New() *Store {
	return &Store{
		users:     make(map[int64]auth.User),
		roles:     make(map[int64]auth.Role),
		perms:     make(map[int64]auth.Permission),
		userRoles: make(map[int64]map[int64]struct{}),
		rolePerms: make(map[int64]map[int64]struct{}),
		revoked:   make(map[string]time.Time),
	}
}

var _ auth.Store = (*Store)(nil)

func (s *Store) Users(context.Context) auth.UserStore             { return (*userStore)(s) }
func (s *Store) Roles(context.Context) auth.RoleStore             { return (*roleStore)(s) }
func (s *Store) Permissions(context.Context) auth.PermissionStore { return (*permStore)(s) }
func (s *Store) RevokedTokens(context.Context) auth.RevocationStore {
	return (*revocationStore)(s)
}

func (s *Store) WithinTx(ctx context.Context, fn func(ctx context.Context, st auth.Store) error) error {
	return fn(ctx, s)
}

// User store ---------------------------------------------------------------

type userStore Store

func (s *userStore) Create(_ context.Context, u *auth.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.users {
		if strings.EqualFold(existing.Email, u.Email) || existing.Username == u.Username {
			return fmt.Errorf("%w: user %s", auth.ErrConflict, u.Username)
		}
	}
	s.userSeq++
	u.ID = s.userSeq
	now := time.Now().UTC()
	u.CreatedAt = now
	u.UpdatedAt = now
	s.users[u.ID] = *u
	return nil
}

func (s *userStore) FindByID(_ context.Context, id int64) (*auth.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[id]
	if !ok {
		return nil, auth.ErrNotFound
	}
	out := u
	out.Roles = (*Store)(s).rolesOfLocked(id)
	return &out, nil
}

func (s *userStore) FindByIdentifier(_ context.Context, identifier string) (*auth.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for id, u := range s.users {
		if strings.EqualFold(u.Email, identifier) || u.Username == identifier {
			out := u
			out.Roles = (*Store)(s).rolesOfLocked(id)
			return &out, nil
		}
	}
	return nil, auth.ErrNotFound
}

func (s *userStore) List(_ context.Context, limit, offset int) ([]*auth.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := make([]int64, 0, len(s.users))
	for id := range s.users {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	ids = window(ids, limit, offset)
	out := make([]*auth.User, 0, len(ids))
	for _, id := range ids {
		u := s.users[id]
		u.Roles = (*Store)(s).rolesOfLocked(id)
		out = append(out, &u)
	}
	return out, nil
}

func (s *userStore) Update(_ context.Context, u *auth.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[u.ID]; !ok {
		return auth.ErrNotFound
	}
	u.UpdatedAt = time.Now().UTC()
	stored := *u
	stored.Roles = nil
	s.users[u.ID] = stored
	return nil
}

func (s *userStore) SetActive(_ context.Context, id int64, active bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return auth.ErrNotFound
	}
	u.Active = active
	u.UpdatedAt = time.Now().UTC()
	s.users[id] = u
	return nil
}

func (s *userStore) AssignRole(_ context.Context, userID, roleID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[userID]; !ok {
		return auth.ErrNotFound
	}
	if _, ok := s.roles[roleID]; !ok {
		return auth.ErrNotFound
	}
	if s.userRoles[userID] == nil {
		s.userRoles[userID] = make(map[int64]struct{})
	}
	s.userRoles[userID][roleID] = struct{}{}
	return nil
}

func (s *userStore) RemoveRole(_ context.Context, userID, roleID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if set, ok := s.userRoles[userID]; ok {
		delete(set, roleID)
	}
	return nil
}

// Role store ---------------------------------------------------------------

type roleStore Store

func (s *roleStore) Create(_ context.Context, role *auth.Role) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.roles {
		if existing.Name == role.Name {
			return fmt.Errorf("%w: role %s", auth.ErrConflict, role.Name)
		}
	}
	s.roleSeq++
	role.ID = s.roleSeq
	now := time.Now().UTC()
	role.CreatedAt = now
	role.UpdatedAt = now
	stored := *role
	stored.Permissions = nil
	s.roles[role.ID] = stored
	return nil
}

func (s *roleStore) FindByID(_ context.Context, id int64) (*auth.Role, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	role, ok := s.roles[id]
	if !ok {
		return nil, auth.ErrNotFound
	}
	out := role
	out.Permissions = (*Store)(s).permsOfLocked(id)
	return &out, nil
}

func (s *roleStore) FindByName(_ context.Context, name string) (*auth.Role, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for id, role := range s.roles {
		if role.Name == name {
			out := role
			out.Permissions = (*Store)(s).permsOfLocked(id)
			return &out, nil
		}
	}
	return nil, auth.ErrNotFound
}

func (s *roleStore) List(_ context.Context, limit, offset int) ([]*auth.Role, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := make([]int64, 0, len(s.roles))
	for id := range s.roles {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	ids = window(ids, limit, offset)
	out := make([]*auth.Role, 0, len(ids))
	for _, id := range ids {
		role := s.roles[id]
		role.Permissions = (*Store)(s).permsOfLocked(id)
		out = append(out, &role)
	}
	return out, nil
}

func (s *roleStore) Update(_ context.Context, role *auth.Role) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.roles[role.ID]; !ok {
		return auth.ErrNotFound
	}
	role.UpdatedAt = time.Now().UTC()
	stored := *role
	stored.Permissions = nil
	s.roles[role.ID] = stored
	return nil
}

func (s *roleStore) Delete(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.roles[id]; !ok {
		return auth.ErrNotFound
	}
	delete(s.roles, id)
	delete(s.rolePerms, id)
	for _, set := range s.userRoles {
		delete(set, id)
	}
	return nil
}

func (s *roleStore) AddPermission(_ context.Context, roleID, permissionID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.roles[roleID]; !ok {
		return auth.ErrNotFound
	}
	if _, ok := s.perms[permissionID]; !ok {
		return auth.ErrNotFound
	}
	if s.rolePerms[roleID] == nil {
		s.rolePerms[roleID] = make(map[int64]struct{})
	}
	s.rolePerms[roleID][permissionID] = struct{}{}
	return nil
}

func (s *roleStore) RemovePermission(_ context.Context, roleID, permissionID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if set, ok := s.rolePerms[roleID]; ok {
		delete(set, permissionID)
	}
	return nil
}

// Permission store ---------------------------------------------------------

type permStore Store

func (s *permStore) Create(_ context.Context, perm *auth.Permission) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.perms {
		if existing.Name == perm.Name {
			return fmt.Errorf("%w: permission %s", auth.ErrConflict, perm.Name)
		}
	}
	s.permSeq++
	perm.ID = s.permSeq
	perm.CreatedAt = time.Now().UTC()
	s.perms[perm.ID] = *perm
	return nil
}

func (s *permStore) FindByID(_ context.Context, id int64) (*auth.Permission, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	perm, ok := s.perms[id]
	if !ok {
		return nil, auth.ErrNotFound
	}
	return &perm, nil
}

func (s *permStore) FindByName(_ context.Context, name string) (*auth.Permission, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, perm := range s.perms {
		if perm.Name == name {
			out := perm
			return &out, nil
		}
	}
	return nil, auth.ErrNotFound
}

func (s *permStore) List(_ context.Context, limit, offset int) ([]*auth.Permission, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := make([]int64, 0, len(s.perms))
	for id := range s.perms {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	ids = window(ids, limit, offset)
	out := make([]*auth.Permission, 0, len(ids))
	for _, id := range ids {
		perm := s.perms[id]
		out = append(out, &perm)
	}
	return out, nil
}

func (s *permStore) Update(_ context.Context, perm *auth.Permission) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.perms[perm.ID]; !ok {
		return auth.ErrNotFound
	}
	s.perms[perm.ID] = *perm
	return nil
}

func (s *permStore) Delete(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.perms[id]; !ok {
		return auth.ErrNotFound
	}
	delete(s.perms, id)
	for _, set := range s.rolePerms {
		delete(set, id)
	}
	return nil
}

// Revocation store ---------------------------------------------------------

type revocationStore Store

func (s *revocationStore) Revoke(_ context.Context, jti string, expiresAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.revoked[jti] = expiresAt
	return nil
}

func (s *revocationStore) IsRevoked(_ context.Context, jti string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.revoked[jti]
	return ok, nil
}

// helpers ------------------------------------------------------------------

// rolesOfLocked resolves a user's roles with permissions. Callers hold mu.
func (s *Store) rolesOfLocked(userID int64) []auth.Role {
	set := s.userRoles[userID]
	if len(set) == 0 {
		return nil
	}
	ids := make([]int64, 0, len(set))
	for id := range set {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	out := make([]auth.Role, 0, len(ids))
	for _, id := range ids {
		role, ok := s.roles[id]
		if !ok {
			continue
		}
		role.Permissions = s.permsOfLocked(id)
		out = append(out, role)
	}
	return out
}

// permsOfLocked resolves a role's permissions. Callers hold mu.
func (s *Store) permsOfLocked(roleID int64) []auth.Permission {
	set := s.rolePerms[roleID]
	if len(set) == 0 {
		return nil
	}
	ids := make([]int64, 0, len(set))
	for id := range set {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	out := make([]auth.Permission, 0, len(ids))
	for _, id := range ids {
		if perm, ok := s.perms[id]; ok {
			out = append(out, perm)
		}
	}
	return out
}

func window(ids []int64, limit, offset int) []int64 {
	if limit <= 0 {
		limit = 100
	}
	if offset < 0 {
		offset = 0
	}
	if offset >= len(ids) {
		return nil
	}
	ids = ids[offset:]
	if limit < len(ids) {
		ids = ids[:limit]
	}
	return ids
}
