package cart

import "context"

// Service orchestrates cart operations.
type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// AddToCart adjusts a line by qty; negative quantities decrement and a line
// reaching zero is removed.
func (s *Service) AddToCart(ctx context.Context, owner Owner, productID int64, qty int, variants map[string]string) ([]Item, error) {
	if productID <= 0 {
		return nil, ErrNotFound
	}
	// zero qty does nothing, but we still return the current cart
	if qty == 0 {
		return s.repo.GetItems(ctx, owner)
	}
	return s.repo.AddItem(ctx, owner, productID, qty, variants)
}

func (s *Service) GetCart(ctx context.Context, owner Owner) ([]Item, error) {
	return s.repo.GetItems(ctx, owner)
}

// ClearCart empties the owner's cart.
func (s *Service) ClearCart(ctx context.Context, owner Owner) error {
	return s.repo.Clear(ctx, owner)
}
