package product

import "context"

type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

func (s *Service) GetByID(ctx context.Context, storeID, id int64) (Product, error) {
	if storeID <= 0 || id <= 0 {
		return Product{}, ErrNotFound
	}
	return s.repo.GetByID(ctx, storeID, id)
}
