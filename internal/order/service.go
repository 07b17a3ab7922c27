package order

import (
	"context"
	"time"
)

// TxManager runs fn inside one database transaction.
type TxManager interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// Actor is who is asking: a signed-in customer or a guest session.
type Actor struct {
	CustomerID *int64
	SessionID  string
}

// Owns reports whether the order was placed by the actor.
func (a Actor) Owns(o Order) bool {
	if a.CustomerID != nil {
		return o.CustomerID != nil && *o.CustomerID == *a.CustomerID
	}
	return a.SessionID != "" && o.CustomerID == nil && o.SessionID == a.SessionID
}

// Service provides read access to orders and the post-payment lifecycle.
type Service struct {
	repo Repository
	tx   TxManager
	now  func() time.Time
}

func NewService(r Repository, tx TxManager) *Service {
	return &Service{repo: r, tx: tx, now: time.Now}
}

// Get returns the order when it belongs to the actor; other orders are
// reported as not found.
func (s *Service) Get(ctx context.Context, storeID int64, number string, actor Actor) (Order, error) {
	o, err := s.repo.GetByNumber(ctx, storeID, number)
	if err != nil {
		return Order{}, err
	}
	if !actor.Owns(o) {
		return Order{}, ErrNotFound
	}
	return o, nil
}

func (s *Service) List(ctx context.Context, storeID int64, actor Actor) ([]Order, error) {
	if actor.CustomerID != nil {
		return s.repo.ListByCustomer(ctx, storeID, *actor.CustomerID)
	}
	return s.repo.ListBySession(ctx, storeID, actor.SessionID)
}

// Fulfill marks a confirmed order as shipped.
func (s *Service) Fulfill(ctx context.Context, storeID int64, number string) (Order, error) {
	found, err := s.repo.GetByNumber(ctx, storeID, number)
	if err != nil {
		return Order{}, err
	}
	var out Order
	err = s.tx.WithinTx(ctx, func(ctx context.Context) error {
		o, err := s.repo.Lock(ctx, found.ID)
		if err != nil {
			return err
		}
		changed, err := o.Fulfill(s.now().UTC())
		if err != nil {
			return err
		}
		if changed {
			if err := s.repo.UpdatePayment(ctx, o); err != nil {
				return err
			}
		}
		out = o
		return nil
	})
	return out, err
}
