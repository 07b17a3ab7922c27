package order

import (
	"context"
	"sort"
	"sync"

	"github.com/wichananm65/storefront/internal/infrastructure/database/inmemory"
)

// Repository defines persistence operations for orders. Writes join the
// transaction carried by ctx.
type Repository interface {
	// Create stores the order and its items and fills in their ids.
	Create(ctx context.Context, o *Order) error
	GetByID(ctx context.Context, id int64) (Order, error)
	GetByNumber(ctx context.Context, storeID int64, number string) (Order, error)
	// Lock reads the order and holds its row until the transaction on ctx
	// ends.
	Lock(ctx context.Context, id int64) (Order, error)
	// UpdatePayment writes the lifecycle and payment columns. Items and
	// monetary fields are never rewritten.
	UpdatePayment(ctx context.Context, o Order) error
	NumberExists(ctx context.Context, number string) (bool, error)
	ListByCustomer(ctx context.Context, storeID, customerID int64) ([]Order, error)
	ListBySession(ctx context.Context, storeID int64, sessionID string) ([]Order, error)
}

// InMemoryRepository keeps orders in a map. Row locking is provided by the
// serialised inmemory.TxManager.
type InMemoryRepository struct {
	mu       sync.RWMutex
	storage  map[int64]Order
	byNumber map[string]int64
	nextID   int64
	nextItem int64
}

func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{storage: map[int64]Order{}, byNumber: map[string]int64{}}
}

func (r *InMemoryRepository) Create(ctx context.Context, o *Order) error {
	if err := o.CheckTotals(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, taken := r.byNumber[o.Number]; taken {
		return ErrNumberExhausted
	}
	r.nextID++
	o.ID = r.nextID
	for i := range o.Items {
		r.nextItem++
		o.Items[i].ID = r.nextItem
	}
	r.storage[o.ID] = clone(*o)
	r.byNumber[o.Number] = o.ID
	id, number := o.ID, o.Number
	inmemory.Record(ctx, func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		delete(r.storage, id)
		delete(r.byNumber, number)
	})
	return nil
}

func (r *InMemoryRepository) GetByID(_ context.Context, id int64) (Order, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	o, ok := r.storage[id]
	if !ok {
		return Order{}, ErrNotFound
	}
	return clone(o), nil
}

func (r *InMemoryRepository) GetByNumber(_ context.Context, storeID int64, number string) (Order, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.byNumber[number]
	if !ok || r.storage[id].StoreID != storeID {
		return Order{}, ErrNotFound
	}
	return clone(r.storage[id]), nil
}

func (r *InMemoryRepository) Lock(ctx context.Context, id int64) (Order, error) {
	return r.GetByID(ctx, id)
}

func (r *InMemoryRepository) UpdatePayment(ctx context.Context, o Order) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	prev, ok := r.storage[o.ID]
	if !ok {
		return ErrNotFound
	}
	next := prev
	next.Status = o.Status
	next.PaymentStatus = o.PaymentStatus
	next.PaymentGateway = o.PaymentGateway
	next.PaymentTransactionID = o.PaymentTransactionID
	next.PaymentDetails = o.PaymentDetails
	next.CancelReason = o.CancelReason
	next.CancelledAt = o.CancelledAt
	next.ConfirmedAt = o.ConfirmedAt
	next.FulfilledAt = o.FulfilledAt
	next.UpdatedAt = o.UpdatedAt
	r.storage[o.ID] = next
	inmemory.Record(ctx, func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		r.storage[prev.ID] = prev
	})
	return nil
}

func (r *InMemoryRepository) NumberExists(_ context.Context, number string) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.byNumber[number]
	return ok, nil
}

func (r *InMemoryRepository) ListByCustomer(_ context.Context, storeID, customerID int64) ([]Order, error) {
	return r.list(func(o Order) bool {
		return o.StoreID == storeID && o.CustomerID != nil && *o.CustomerID == customerID
	}), nil
}

func (r *InMemoryRepository) ListBySession(_ context.Context, storeID int64, sessionID string) ([]Order, error) {
	if sessionID == "" {
		return []Order{}, nil
	}
	return r.list(func(o Order) bool {
		return o.StoreID == storeID && o.CustomerID == nil && o.SessionID == sessionID
	}), nil
}

// Count returns the number of stored orders.
func (r *InMemoryRepository) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.storage)
}

func (r *InMemoryRepository) list(match func(Order) bool) []Order {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Order, 0)
	for _, o := range r.storage {
		if match(o) {
			out = append(out, clone(o))
		}
	}
	// newest first
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out
}

func clone(o Order) Order {
	o.Items = append([]Item(nil), o.Items...)
	return o
}
