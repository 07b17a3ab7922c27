package product

import (
	"context"
	"errors"
	"sync"

	"github.com/wichananm65/storefront/internal/infrastructure/database/inmemory"
)

var (
	ErrNotFound = errors.New("product not found")
)

// Repository provides catalog lookups and the per-product stock counter.
type Repository interface {
	GetByID(ctx context.Context, storeID, id int64) (Product, error)
	// ListByIDs returns the active products of the store among ids, keyed by id.
	ListByIDs(ctx context.Context, storeID int64, ids []int64) (map[int64]Product, error)
	// DecrementStock subtracts qty only when at least qty units remain. It
	// reports the units available before the attempt.
	DecrementStock(ctx context.Context, id int64, qty int) (available int, ok bool, err error)
	IncrementStock(ctx context.Context, id int64, qty int) error
}

// InMemoryRepository is a simple in-memory implementation useful for tests and
// seeding local data. Stock writes join the transaction on the context.
type InMemoryRepository struct {
	mu      sync.RWMutex
	storage map[int64]Product
}

func NewInMemoryRepository(seed []Product) *InMemoryRepository {
	r := &InMemoryRepository{storage: make(map[int64]Product, len(seed))}
	for _, p := range seed {
		r.storage[p.ID] = p
	}
	return r
}

func (r *InMemoryRepository) GetByID(_ context.Context, storeID, id int64) (Product, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.storage[id]
	if !ok || p.StoreID != storeID {
		return Product{}, ErrNotFound
	}
	return p, nil
}

func (r *InMemoryRepository) ListByIDs(_ context.Context, storeID int64, ids []int64) (map[int64]Product, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[int64]Product, len(ids))
	for _, id := range ids {
		if p, ok := r.storage[id]; ok && p.StoreID == storeID && p.Active {
			out[id] = p
		}
	}
	return out, nil
}

func (r *InMemoryRepository) DecrementStock(ctx context.Context, id int64, qty int) (int, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.storage[id]
	if !ok {
		return 0, false, ErrNotFound
	}
	available := p.Stock
	if available < qty {
		return available, false, nil
	}
	p.Stock -= qty
	r.storage[id] = p
	inmemory.Record(ctx, func() { r.adjust(id, qty) })
	return available, true, nil
}

func (r *InMemoryRepository) IncrementStock(ctx context.Context, id int64, qty int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.storage[id]
	if !ok {
		return ErrNotFound
	}
	p.Stock += qty
	r.storage[id] = p
	inmemory.Record(ctx, func() { r.adjust(id, -qty) })
	return nil
}

// Stock returns the current counter for id; used by tests and the demo server.
func (r *InMemoryRepository) Stock(id int64) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.storage[id].Stock
}

func (r *InMemoryRepository) adjust(id int64, delta int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p := r.storage[id]
	p.Stock += delta
	r.storage[id] = p
}
