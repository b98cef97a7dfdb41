package content

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"pressline.org/internal/auth"
	"pressline.org/internal/cache"
)

// Store is the persistence collaborator for posts.
type Store interface {
	Create(ctx context.Context, post *Post) error
	FindByID(ctx context.Context, id int64) (*Post, error)
	List(ctx context.Context, limit, offset int) ([]*Post, error)
	Update(ctx context.Context, post *Post) error
	Delete(ctx context.Context, id int64) error
}

// Service implements post CRUD with the author-or-superuser ownership rule
// and an advisory read-through cache on single-post reads.
type Service struct {
	store    Store
	cache    cache.Cache
	cacheTTL time.Duration
}

// ServiceOption configures Service behavior.
type ServiceOption func(*Service)

// WithCache enables read-through caching of post lookups.
func WithCache(c cache.Cache, ttl time.Duration) ServiceOption {
	return func(s *Service) {
		if c != nil && ttl > 0 {
			s.cache = c
			s.cacheTTL = ttl
		}
	}
}

// NewService builds a post service over the given store.
func NewService(store Store, opts ...ServiceOption) (*Service, error) {
	if store == nil {
		return nil, errors.New("content: store is required")
	}
	svc := &Service{store: store}
	for _, opt := range opts {
		opt(svc)
	}
	return svc, nil
}

// Create stores a new post authored by actor. Published defaults to true.
func (s *Service) Create(ctx context.Context, actor *auth.User, in CreateInput) (*Post, error) {
	if actor == nil {
		return nil, ErrForbidden
	}
	title := strings.TrimSpace(in.Title)
	if title == "" {
		return nil, fmt.Errorf("%w: title is required", ErrInvalidInput)
	}
	if strings.TrimSpace(in.Content) == "" {
		return nil, fmt.Errorf("%w: content is required", ErrInvalidInput)
	}
	published := true
	if in.Published != nil {
		published = *in.Published
	}
	post := &Post{
		Title:     title,
		Content:   in.Content,
		Published: published,
		AuthorID:  actor.ID,
	}
	if err := s.store.Create(ctx, post); err != nil {
		return nil, err
	}
	return post, nil
}

// Get returns a post by id, consulting the cache first.
func (s *Service) Get(ctx context.Context, id int64) (*Post, error) {
	if s.cache != nil {
		if b, ok := s.cache.Get(ctx, postKey(id)); ok {
			var post Post
			if err := json.Unmarshal(b, &post); err == nil {
				return &post, nil
			}
		}
	}
	post, err := s.store.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	s.cachePut(ctx, post)
	return post, nil
}

// List returns posts ordered by creation time.
func (s *Service) List(ctx context.Context, limit, offset int) ([]*Post, error) {
	if limit <= 0 {
		limit = 100
	}
	if offset < 0 {
		offset = 0
	}
	return s.store.List(ctx, limit, offset)
}

// Update mutates a post. The RBAC gate has already run; this enforces the
// ownership rule on top: only the author or a superuser may update.
func (s *Service) Update(ctx context.Context, actor *auth.User, id int64, in UpdateInput) (*Post, error) {
	post, err := s.store.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.checkOwnership(actor, post); err != nil {
		return nil, err
	}
	if in.Title != nil {
		title := strings.TrimSpace(*in.Title)
		if title == "" {
			return nil, fmt.Errorf("%w: title is required", ErrInvalidInput)
		}
		post.Title = title
	}
	if in.Content != nil {
		if strings.TrimSpace(*in.Content) == "" {
			return nil, fmt.Errorf("%w: content is required", ErrInvalidInput)
		}
		post.Content = *in.Content
	}
	if in.Published != nil {
		post.Published = *in.Published
	}
	if err := s.store.Update(ctx, post); err != nil {
		return nil, err
	}
	s.invalidate(ctx, id)
	return post, nil
}

// Delete removes a post under the same ownership rule as Update.
func (s *Service) Delete(ctx context.Context, actor *auth.User, id int64) error {
	post, err := s.store.FindByID(ctx, id)
	if err != nil {
		return err
	}
	if err := s.checkOwnership(actor, post); err != nil {
		return err
	}
	if err := s.store.Delete(ctx, id); err != nil {
		return err
	}
	s.invalidate(ctx, id)
	return nil
}

func (s *Service) checkOwnership(actor *auth.User, post *Post) error {
	if actor == nil {
		return ErrForbidden
	}
	if post.AuthorID != actor.ID && !actor.Superuser {
		return ErrForbidden
	}
	return nil
}

func (s *Service) cachePut(ctx context.Context, post *Post) {
	if s.cache == nil || post == nil {
		return
	}
	if b, err := json.Marshal(post); err == nil {
		s.cache.Set(ctx, postKey(post.ID), b, s.cacheTTL)
	}
}

func (s *Service) invalidate(ctx context.Context, id int64) {
	if s.cache != nil {
		s.cache.Delete(ctx, postKey(id))
	}
}

func postKey(id int64) string {
	return fmt.Sprintf("post:%d", id)
}
