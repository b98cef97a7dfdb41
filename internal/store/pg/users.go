package pg

import (
	"context"
	"database/sql"

	"pressline.org/internal/auth"
)

type userStore struct{ q querier }

const userColumns = `id, name, phone_number, email, username, password_hash, is_active, is_superuser, created_at, updated_at`

func (s *userStore) Create(ctx context.Context, u *auth.User) error {
	row := s.q.QueryRowContext(ctx,
		`insert into users(name, phone_number, email, username, password_hash, is_active, is_superuser)
		 values($1,$2,$3,$4,$5,$6,$7)
		 returning id, created_at, updated_at`,
		u.Name, u.PhoneNumber, u.Email, u.Username, u.PasswordHash, u.Active, u.Superuser,
	)
	if err := row.Scan(&u.ID, &u.CreatedAt, &u.UpdatedAt); err != nil {
		return mapErr(err)
	}
	return nil
}

func (s *userStore) FindByID(ctx context.Context, id int64) (*auth.User, error) {
	row := s.q.QueryRowContext(ctx,
		`select `+userColumns+` from users where id=$1`, id)
	return s.scanWithRoles(ctx, row)
}

func (s *userStore) FindByIdentifier(ctx context.Context, identifier string) (*auth.User, error) {
	row := s.q.QueryRowContext(ctx,
		`select `+userColumns+` from users where username=$1 or lower(email)=lower($1)`, identifier)
	return s.scanWithRoles(ctx, row)
}

func (s *userStore) List(ctx context.Context, limit, offset int) ([]*auth.User, error) {
	if limit <= 0 {
		limit = 100
	}
	if offset < 0 {
		offset = 0
	}
	rows, err := s.q.QueryContext(ctx,
		`select `+userColumns+` from users order by id asc limit $1 offset $2`, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var res []*auth.User
	for rows.Next() {
		var u auth.User
		if err := scanUser(rows, &u); err != nil {
			return nil, err
		}
		res = append(res, &u)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for _, u := range res {
		if u.Roles, err = rolesOfUser(ctx, s.q, u.ID); err != nil {
			return nil, err
		}
	}
	return res, nil
}

func (s *userStore) Update(ctx context.Context, u *auth.User) error {
	row := s.q.QueryRowContext(ctx,
		`update users
		 set name=$2, phone_number=$3, email=$4, username=$5, password_hash=$6, is_active=$7, is_superuser=$8, updated_at=now()
		 where id=$1
		 returning updated_at`,
		u.ID, u.Name, u.PhoneNumber, u.Email, u.Username, u.PasswordHash, u.Active, u.Superuser,
	)
	if err := row.Scan(&u.UpdatedAt); err != nil {
		return mapErr(err)
	}
	return nil
}

func (s *userStore) SetActive(ctx context.Context, id int64, active bool) error {
	res, err := s.q.ExecContext(ctx,
		`update users set is_active=$2, updated_at=now() where id=$1`, id, active)
	if err != nil {
		return mapErr(err)
	}
	return requireRow(res)
}

func (s *userStore) AssignRole(ctx context.Context, userID, roleID int64) error {
	_, err := s.q.ExecContext(ctx,
		`insert into user_roles(user_id, role_id) values($1,$2) on conflict do nothing`,
		userID, roleID)
	return mapErr(err)
}

func (s *userStore) RemoveRole(ctx context.Context, userID, roleID int64) error {
	_, err := s.q.ExecContext(ctx,
		`delete from user_roles where user_id=$1 and role_id=$2`, userID, roleID)
	return mapErr(err)
}

func (s *userStore) scanWithRoles(ctx context.Context, row *sql.Row) (*auth.User, error) {
	var u auth.User
	if err := scanUser(row, &u); err != nil {
		return nil, mapErr(err)
	}
	roles, err := rolesOfUser(ctx, s.q, u.ID)
	if err != nil {
		return nil, err
	}
	u.Roles = roles
	return &u, nil
}

type scanner interface{ Scan(dest ...any) error }

func scanUser(sc scanner, u *auth.User) error {
	return sc.Scan(&u.ID, &u.Name, &u.PhoneNumber, &u.Email, &u.Username,
		&u.PasswordHash, &u.Active, &u.Superuser, &u.CreatedAt, &u.UpdatedAt)
}

// rolesOfUser loads a user's roles with their permissions attached.
func rolesOfUser(ctx context.Context, q querier, userID int64) ([]auth.Role, error) {
	rows, err := q.QueryContext(ctx,
		`select r.id, r.name, r.description, r.created_at, r.updated_at
		 from roles r join user_roles ur on ur.role_id = r.id
		 where ur.user_id=$1 order by r.id asc`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var roles []auth.Role
	for rows.Next() {
		var r auth.Role
		if err := rows.Scan(&r.ID, &r.Name, &r.Description, &r.CreatedAt, &r.UpdatedAt); err != nil {
			return nil, err
		}
		roles = append(roles, r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for i := range roles {
		if roles[i].Permissions, err = permissionsOfRole(ctx, q, roles[i].ID); err != nil {
			return nil, err
		}
	}
	return roles, nil
}

// requireRow converts an empty update into ErrNotFound.
func requireRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return auth.ErrNotFound
	}
	return nil
}
