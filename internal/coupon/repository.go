package coupon

import (
	"context"
	"strings"
	"sync"

	"github.com/wichananm65/storefront/internal/infrastructure/database/inmemory"
)

type Repository interface {
	FindByCode(ctx context.Context, storeID int64, code string) (Coupon, error)
	// IncrementUsage records one redemption, failing with ErrUsageExhausted
	// when the limit was reached in the meantime.
	IncrementUsage(ctx context.Context, storeID int64, code string) error
	// ReleaseUsage gives back one redemption of a cancelled order.
	ReleaseUsage(ctx context.Context, storeID int64, code string) error
}

type InMemoryRepository struct {
	mu      sync.RWMutex
	coupons []Coupon
}

func NewInMemoryRepository(seed []Coupon) *InMemoryRepository {
	r := &InMemoryRepository{coupons: make([]Coupon, 0, len(seed))}
	r.coupons = append(r.coupons, seed...)
	return r
}

func (r *InMemoryRepository) FindByCode(_ context.Context, storeID int64, code string) (Coupon, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if i := r.index(storeID, code); i >= 0 {
		return r.coupons[i], nil
	}
	return Coupon{}, ErrNotFound
}

func (r *InMemoryRepository) IncrementUsage(ctx context.Context, storeID int64, code string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	i := r.index(storeID, code)
	if i < 0 {
		return ErrNotFound
	}
	c := r.coupons[i]
	if c.UsageLimit != nil && c.UsedCount >= *c.UsageLimit {
		return ErrUsageExhausted
	}
	r.coupons[i].UsedCount++
	inmemory.Record(ctx, func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		r.coupons[i].UsedCount--
	})
	return nil
}

func (r *InMemoryRepository) ReleaseUsage(ctx context.Context, storeID int64, code string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	i := r.index(storeID, code)
	if i < 0 || r.coupons[i].UsedCount == 0 {
		return nil
	}
	r.coupons[i].UsedCount--
	inmemory.Record(ctx, func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		r.coupons[i].UsedCount++
	})
	return nil
}

func (r *InMemoryRepository) index(storeID int64, code string) int {
	for i, c := range r.coupons {
		if c.StoreID == storeID && strings.EqualFold(c.Code, code) {
			return i
		}
	}
	return -1
}
