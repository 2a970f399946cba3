package products

import (
	"context"
)

// Service handles product catalog business logic.
type Service struct {
	repo  Repository
	cache *Cache
}

// NewService builds the product service. cache may be nil.
func NewService(repo Repository, cache *Cache) *Service {
	return &Service{repo: repo, cache: cache}
}

// Create validates and stores a new product.
func (s *Service) Create(ctx context.Context, p Product) (Product, error) {
	if err := p.Validate(); err != nil {
		return Product{}, err
	}
	created, err := s.repo.Create(ctx, p)
	if err != nil {
		return Product{}, err
	}
	s.cache.Put(ctx, created)
	return created, nil
}

// Update validates and stores a changed product, dropping the stale cache
// entry first so no request can read the old definition afterwards.
func (s *Service) Update(ctx context.Context, p Product) (Product, error) {
	if err := p.Validate(); err != nil {
		return Product{}, err
	}
	s.cache.Invalidate(ctx, p.Code)
	updated, err := s.repo.Update(ctx, p)
	if err != nil {
		return Product{}, err
	}
	s.cache.Put(ctx, updated)
	return updated, nil
}

// GetByCode returns one product, read-through cached.
func (s *Service) GetByCode(ctx context.Context, code string) (Product, error) {
	if cached, ok := s.cache.Get(ctx, code); ok {
		return cached, nil
	}
	product, err := s.repo.GetByCode(ctx, code)
	if err != nil {
		return Product{}, err
	}
	s.cache.Put(ctx, product)
	return product, nil
}

// List returns all products straight from the database.
func (s *Service) List(ctx context.Context) ([]Product, error) {
	return s.repo.List(ctx)
}
