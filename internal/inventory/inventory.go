// Package inventory reserves and releases product stock for orders.
//
// Reserve and Release must run inside the same transaction as the order write
// they belong to; the Stock implementations join the transaction carried on
// the context.
package inventory

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/wichananm65/storefront/internal/order"
)

var (
	ErrInsufficientStock = errors.New("insufficient stock")
	ErrInvalidQuantity   = errors.New("quantity must be positive")
)

// InsufficientStockError reports which product could not cover a request.
type InsufficientStockError struct {
	ProductID int64
	Available int
	Requested int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for product %d: %d available, %d requested", e.ProductID, e.Available, e.Requested)
}

func (e *InsufficientStockError) Is(target error) bool {
	return target == ErrInsufficientStock
}

// Stock is the per-product counter. product.Repository satisfies it.
type Stock interface {
	DecrementStock(ctx context.Context, id int64, qty int) (available int, ok bool, err error)
	IncrementStock(ctx context.Context, id int64, qty int) error
}

// Line is a product/quantity pair to reserve or release.
type Line struct {
	ProductID int64
	Quantity  int
}

// LinesFromItems turns the recorded items of an order into ledger lines, so a
// release always mirrors the reservation made at creation.
func LinesFromItems(items []order.Item) []Line {
	lines := make([]Line, 0, len(items))
	for _, it := range items {
		lines = append(lines, Line{ProductID: it.ProductID, Quantity: it.Quantity})
	}
	return lines
}

type Ledger struct {
	stock Stock
}

func NewLedger(stock Stock) *Ledger {
	return &Ledger{stock: stock}
}

// Reserve decrements stock for every line or fails with
// *InsufficientStockError on the first product that cannot cover its
// quantity. Lines are merged per product and applied in product id order so
// concurrent reservations lock rows in the same sequence.
func (l *Ledger) Reserve(ctx context.Context, lines []Line) error {
	merged, err := merge(lines)
	if err != nil {
		return err
	}
	for _, ln := range merged {
		available, ok, err := l.stock.DecrementStock(ctx, ln.ProductID, ln.Quantity)
		if err != nil {
			return fmt.Errorf("inventory: reserve product %d: %w", ln.ProductID, err)
		}
		if !ok {
			return &InsufficientStockError{ProductID: ln.ProductID, Available: available, Requested: ln.Quantity}
		}
	}
	return nil
}

// Release gives back exactly the quantities of lines.
func (l *Ledger) Release(ctx context.Context, lines []Line) error {
	merged, err := merge(lines)
	if err != nil {
		return err
	}
	for _, ln := range merged {
		if err := l.stock.IncrementStock(ctx, ln.ProductID, ln.Quantity); err != nil {
			return fmt.Errorf("inventory: release product %d: %w", ln.ProductID, err)
		}
	}
	return nil
}

func merge(lines []Line) ([]Line, error) {
	totals := make(map[int64]int, len(lines))
	for _, ln := range lines {
		if ln.Quantity <= 0 {
			return nil, fmt.Errorf("%w: product %d", ErrInvalidQuantity, ln.ProductID)
		}
		totals[ln.ProductID] += ln.Quantity
	}
	out := make([]Line, 0, len(totals))
	for id, qty := range totals {
		out = append(out, Line{ProductID: id, Quantity: qty})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ProductID < out[j].ProductID })
	return out, nil
}
