package cart

import (
	"context"
	"sort"
	"sync"
)

// Repository provides access to cart operations. Quantities are stored so
// adding an existing line increments it.
type Repository interface {
	AddItem(ctx context.Context, owner Owner, productID int64, qty int, variants map[string]string) ([]Item, error)
	GetItems(ctx context.Context, owner Owner) ([]Item, error)
	Clear(ctx context.Context, owner Owner) error
}

type line struct {
	storeID int64
	key     string
	item    Item
	variant string
}

// InMemoryRepository is used for tests and local scenarios.
type InMemoryRepository struct {
	mu    sync.RWMutex
	lines []line
}

func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{}
}

// Seed puts items straight into the owner's cart.
func (r *InMemoryRepository) Seed(owner Owner, items ...Item) error {
	for _, it := range items {
		if _, err := r.AddItem(context.Background(), owner, it.ProductID, it.Quantity, it.Variants); err != nil {
			return err
		}
	}
	return nil
}

func (r *InMemoryRepository) AddItem(_ context.Context, owner Owner, productID int64, qty int, variants map[string]string) ([]Item, error) {
	key, err := owner.Key()
	if err != nil {
		return nil, err
	}
	vk := VariantKey(variants)

	r.mu.Lock()
	defer r.mu.Unlock()
	found := false
	for i := range r.lines {
		l := &r.lines[i]
		if l.storeID == owner.StoreID && l.key == key && l.item.ProductID == productID && l.variant == vk {
			l.item.Quantity += qty
			found = true
			break
		}
	}
	if !found && qty > 0 {
		r.lines = append(r.lines, line{storeID: owner.StoreID, key: key, variant: vk,
			item: Item{ProductID: productID, Quantity: qty, Variants: variants}})
	}
	// remove entries whose quantity dropped to zero or below
	kept := r.lines[:0]
	for _, l := range r.lines {
		if l.item.Quantity > 0 {
			kept = append(kept, l)
		}
	}
	r.lines = kept
	return r.itemsLocked(owner.StoreID, key), nil
}

func (r *InMemoryRepository) GetItems(_ context.Context, owner Owner) ([]Item, error) {
	key, err := owner.Key()
	if err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.itemsLocked(owner.StoreID, key), nil
}

func (r *InMemoryRepository) Clear(_ context.Context, owner Owner) error {
	key, err := owner.Key()
	if err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	kept := r.lines[:0]
	for _, l := range r.lines {
		if l.storeID != owner.StoreID || l.key != key {
			kept = append(kept, l)
		}
	}
	r.lines = kept
	return nil
}

func (r *InMemoryRepository) itemsLocked(storeID int64, key string) []Item {
	out := make([]Item, 0)
	for _, l := range r.lines {
		if l.storeID == storeID && l.key == key {
			out = append(out, l.item)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].ProductID < out[j].ProductID })
	return out
}
