package store

import (
	"context"
	"errors"
	"sync"
)

var (
	ErrNotFound = errors.New("store not found")
)

// Repository provides read access to stores.
type Repository interface {
	GetByID(ctx context.Context, id int64) (Store, error)
	GetBySlug(ctx context.Context, slug string) (Store, error)
}

// InMemoryRepository is used for tests and the in-memory server.
type InMemoryRepository struct {
	mu     sync.RWMutex
	stores []Store
}

func NewInMemoryRepository(seed []Store) *InMemoryRepository {
	r := &InMemoryRepository{stores: make([]Store, 0, len(seed))}
	r.stores = append(r.stores, seed...)
	return r
}

func (r *InMemoryRepository) GetByID(_ context.Context, id int64) (Store, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, s := range r.stores {
		if s.ID == id {
			return s, nil
		}
	}
	return Store{}, ErrNotFound
}

func (r *InMemoryRepository) GetBySlug(_ context.Context, slug string) (Store, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, s := range r.stores {
		if s.Slug == slug {
			return s, nil
		}
	}
	return Store{}, ErrNotFound
}
