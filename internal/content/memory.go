package content

import (
	"context"
	"sort"
	"sync"
	"time"
)

// InMemoryStore is a Store for tests and cache-less development. All methods
// are safe for concurrent use.
type InMemoryStore struct {
	mu    sync.RWMutex
	seq   int64
	posts map[int64]Post
}

// NewInMemoryStore returns an empty in-memory post store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{posts: make(map[int64]Post)}
}

func (s *InMemoryStore) Create(_ context.Context, post *Post) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq++
	post.ID = s.seq
	now := time.Now().UTC()
	post.CreatedAt = now
	post.UpdatedAt = now
	s.posts[post.ID] = *post
	return nil
}

func (s *InMemoryStore) FindByID(_ context.Context, id int64) (*Post, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	post, ok := s.posts[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &post, nil
}

func (s *InMemoryStore) List(_ context.Context, limit, offset int) ([]*Post, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	all := make([]Post, 0, len(s.posts))
	for _, p := range s.posts {
		all = append(all, p)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].ID < all[j].ID })
	if offset >= len(all) {
		return nil, nil
	}
	all = all[offset:]
	if limit < len(all) {
		all = all[:limit]
	}
	out := make([]*Post, len(all))
	for i := range all {
		p := all[i]
		out[i] = &p
	}
	return out, nil
}

func (s *InMemoryStore) Update(_ context.Context, post *Post) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.posts[post.ID]; !ok {
		return ErrNotFound
	}
	post.UpdatedAt = time.Now().UTC()
	s.posts[post.ID] = *post
	return nil
}

func (s *InMemoryStore) Delete(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.posts[id]; !ok {
		return ErrNotFound
	}
	delete(s.posts, id)
	return nil
}
