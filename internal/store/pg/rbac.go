package pg

import (
	"context"

	"pressline.org/internal/auth"
)

// Role store ---------------------------------------------------------------

type roleStore struct{ q querier }

const roleColumns = `id, name, description, created_at, updated_at`

func (s *roleStore) Create(ctx context.Context, r *auth.Role) error {
	row := s.q.QueryRowContext(ctx,
		`insert into roles(name, description) values($1,$2) returning id, created_at, updated_at`,
		r.Name, r.Description)
	if err := row.Scan(&r.ID, &r.CreatedAt, &r.UpdatedAt); err != nil {
		return mapErr(err)
	}
	return nil
}

func (s *roleStore) FindByID(ctx context.Context, id int64) (*auth.Role, error) {
	return s.find(ctx, `select `+roleColumns+` from roles where id=$1`, id)
}

func (s *roleStore) FindByName(ctx context.Context, name string) (*auth.Role, error) {
	return s.find(ctx, `select `+roleColumns+` from roles where name=$1`, name)
}

func (s *roleStore) find(ctx context.Context, query string, arg any) (*auth.Role, error) {
	var r auth.Role
	row := s.q.QueryRowContext(ctx, query, arg)
	if err := row.Scan(&r.ID, &r.Name, &r.Description, &r.CreatedAt, &r.UpdatedAt); err != nil {
		return nil, mapErr(err)
	}
	perms, err := permissionsOfRole(ctx, s.q, r.ID)
	if err != nil {
		return nil, err
	}
	r.Permissions = perms
	return &r, nil
}

func (s *roleStore) List(ctx context.Context, limit, offset int) ([]*auth.Role, error) {
	if limit <= 0 {
		limit = 100
	}
	if offset < 0 {
		offset = 0
	}
	rows, err := s.q.QueryContext(ctx,
		`select `+roleColumns+` from roles order by id asc limit $1 offset $2`, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var res []*auth.Role
	for rows.Next() {
		var r auth.Role
		if err := rows.Scan(&r.ID, &r.Name, &r.Description, &r.CreatedAt, &r.UpdatedAt); err != nil {
			return nil, err
		}
		res = append(res, &r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for _, r := range res {
		if r.Permissions, err = permissionsOfRole(ctx, s.q, r.ID); err != nil {
			return nil, err
		}
	}
	return res, nil
}

func (s *roleStore) Update(ctx context.Context, r *auth.Role) error {
	row := s.q.QueryRowContext(ctx,
		`update roles set name=$2, description=$3, updated_at=now() where id=$1 returning updated_at`,
		r.ID, r.Name, r.Description)
	if err := row.Scan(&r.UpdatedAt); err != nil {
		return mapErr(err)
	}
	return nil
}

func (s *roleStore) Delete(ctx context.Context, id int64) error {
	res, err := s.q.ExecContext(ctx, `delete from roles where id=$1`, id)
	if err != nil {
		return mapErr(err)
	}
	return requireRow(res)
}

func (s *roleStore) AddPermission(ctx context.Context, roleID, permissionID int64) error {
	_, err := s.q.ExecContext(ctx,
		`insert into role_permissions(role_id, permission_id) values($1,$2) on conflict do nothing`,
		roleID, permissionID)
	return mapErr(err)
}

func (s *roleStore) RemovePermission(ctx context.Context, roleID, permissionID int64) error {
	_, err := s.q.ExecContext(ctx,
		`delete from role_permissions where role_id=$1 and permission_id=$2`, roleID, permissionID)
	return mapErr(err)
}

// Permission store ---------------------------------------------------------

type permissionStore struct{ q querier }

const permColumns = `id, name, resource, action, description, created_at`

func (s *permissionStore) Create(ctx context.Context, p *auth.Permission) error {
	row := s.q.QueryRowContext(ctx,
		`insert into permissions(name, resource, action, description)
		 values($1,$2,$3,$4) returning id, created_at`,
		p.Name, p.Resource, p.Action, p.Description)
	if err := row.Scan(&p.ID, &p.CreatedAt); err != nil {
		return mapErr(err)
	}
	return nil
}

func (s *permissionStore) FindByID(ctx context.Context, id int64) (*auth.Permission, error) {
	return s.find(ctx, `select `+permColumns+` from permissions where id=$1`, id)
}

func (s *permissionStore) FindByName(ctx context.Context, name string) (*auth.Permission, error) {
	return s.find(ctx, `select `+permColumns+` from permissions where name=$1`, name)
}

func (s *permissionStore) find(ctx context.Context, query string, arg any) (*auth.Permission, error) {
	var p auth.Permission
	row := s.q.QueryRowContext(ctx, query, arg)
	if err := row.Scan(&p.ID, &p.Name, &p.Resource, &p.Action, &p.Description, &p.CreatedAt); err != nil {
		return nil, mapErr(err)
	}
	return &p, nil
}

func (s *permissionStore) List(ctx context.Context, limit, offset int) ([]*auth.Permission, error) {
	if limit <= 0 {
		limit = 100
	}
	if offset < 0 {
		offset = 0
	}
	rows, err := s.q.QueryContext(ctx,
		`select `+permColumns+` from permissions order by id asc limit $1 offset $2`, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var res []*auth.Permission
	for rows.Next() {
		var p auth.Permission
		if err := rows.Scan(&p.ID, &p.Name, &p.Resource, &p.Action, &p.Description, &p.CreatedAt); err != nil {
			return nil, err
		}
		res = append(res, &p)
	}
	return res, rows.Err()
}

func (s *permissionStore) Update(ctx context.Context, p *auth.Permission) error {
	res, err := s.q.ExecContext(ctx,
		`update permissions set name=$2, resource=$3, action=$4, description=$5 where id=$1`,
		p.ID, p.Name, p.Resource, p.Action, p.Description)
	if err != nil {
		return mapErr(err)
	}
	return requireRow(res)
}

func (s *permissionStore) Delete(ctx context.Context, id int64) error {
	res, err := s.q.ExecContext(ctx, `delete from permissions where id=$1`, id)
	if err != nil {
		return mapErr(err)
	}
	return requireRow(res)
}

func permissionsOfRole(ctx context.Context, q querier, roleID int64) ([]auth.Permission, error) {
	rows, err := q.QueryContext(ctx,
		`select p.id, p.name, p.resource, p.action, p.description, p.created_at
		 from permissions p join role_permissions rp on rp.permission_id = p.id
		 where rp.role_id=$1 order by p.id asc`, roleID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var perms []auth.Permission
	for rows.Next() {
		var p auth.Permission
		if err := rows.Scan(&p.ID, &p.Name, &p.Resource, &p.Action, &p.Description, &p.CreatedAt); err != nil {
			return nil, err
		}
		perms = append(perms, p)
	}
	return perms, rows.Err()
}
