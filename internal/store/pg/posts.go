package pg

import (
	"context"
	"database/sql"
	"errors"

	"pressline.org/internal/auth"
	"pressline.org/internal/content"
)

var _ content.Store = (*PostStore)(nil)

// PostStore implements content.Store backed by PostgreSQL.
type PostStore struct{ q querier }

// NewPostStore wraps an open database handle.
func NewPostStore(db *sql.DB) *PostStore {
	return &PostStore{q: db}
}

const postColumns = `id, title, content, published, author_id, created_at, updated_at`

func (s *PostStore) Create(ctx context.Context, p *content.Post) error {
	row := s.q.QueryRowContext(ctx,
		`insert into posts(title, content, published, author_id)
		 values($1,$2,$3,$4) returning id, created_at, updated_at`,
		p.Title, p.Content, p.Published, p.AuthorID)
	if err := row.Scan(&p.ID, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return mapPostErr(err)
	}
	return nil
}

func (s *PostStore) FindByID(ctx context.Context, id int64) (*content.Post, error) {
	var p content.Post
	row := s.q.QueryRowContext(ctx, `select `+postColumns+` from posts where id=$1`, id)
	if err := row.Scan(&p.ID, &p.Title, &p.Content, &p.Published, &p.AuthorID, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return nil, mapPostErr(err)
	}
	return &p, nil
}

func (s *PostStore) List(ctx context.Context, limit, offset int) ([]*content.Post, error) {
	if limit <= 0 {
		limit = 100
	}
	if offset < 0 {
		offset = 0
	}
	rows, err := s.q.QueryContext(ctx,
		`select `+postColumns+` from posts order by id asc limit $1 offset $2`, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var res []*content.Post
	for rows.Next() {
		var p content.Post
		if err := rows.Scan(&p.ID, &p.Title, &p.Content, &p.Published, &p.AuthorID, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, err
		}
		res = append(res, &p)
	}
	return res, rows.Err()
}

func (s *PostStore) Update(ctx context.Context, p *content.Post) error {
	row := s.q.QueryRowContext(ctx,
		`update posts set title=$2, content=$3, published=$4, updated_at=now()
		 where id=$1 returning updated_at`,
		p.ID, p.Title, p.Content, p.Published)
	if err := row.Scan(&p.UpdatedAt); err != nil {
		return mapPostErr(err)
	}
	return nil
}

func (s *PostStore) Delete(ctx context.Context, id int64) error {
	res, err := s.q.ExecContext(ctx, `delete from posts where id=$1`, id)
	if err != nil {
		return mapPostErr(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return content.ErrNotFound
	}
	return nil
}

// mapPostErr keeps the content package's error vocabulary at the boundary.
func mapPostErr(err error) error {
	err = mapErr(err)
	if errors.Is(err, auth.ErrNotFound) {
		return content.ErrNotFound
	}
	return err
}
