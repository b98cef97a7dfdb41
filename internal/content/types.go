package content

import (
	"errors"
	"time"
)

var (
	ErrNotFound     = errors.New("content: post not found")
	ErrForbidden    = errors.New("content: forbidden")
	ErrInvalidInput = errors.New("content: invalid input")
)

// Post is an authored article. AuthorID references the owning user; only the
// author or a superuser may mutate a post.
type Post struct {
	ID        int64     `json:"id"`
	Title     string    `json:"title"`
	Content   string    `json:"content"`
	Published bool      `json:"published"`
	AuthorID  int64     `json:"author_id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// CreateInput carries the fields a client may set on creation.
type CreateInput struct {
	Title     string
	Content   string
	Published *bool
}

// UpdateInput carries optional updates; nil fields are left unchanged.
type UpdateInput struct {
	Title     *string
	Content   *string
	Published *bool
}
