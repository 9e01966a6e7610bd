package service

import (
	"context"

	"storefront/internal/model"
	"storefront/internal/repository"
)

// CatalogService is the read-only product surface. Stock is mutated only by
// the order workflow.
type CatalogService struct {
	products repository.ProductRepository
}

func NewCatalogService(products repository.ProductRepository) *CatalogService {
	return &CatalogService{products: products}
}

func (s *CatalogService) ListProducts(ctx context.Context, category string, skip, limit int) ([]model.Product, error) {
	if skip < 0 {
		skip = 0
	}
	if limit <= 0 || limit > 100 {
		limit = 100
	}
	return s.products.ListProducts(ctx, repository.ProductFilter{Category: category, Skip: skip, Limit: limit})
}

func (s *CatalogService) GetProduct(ctx context.Context, id int) (*model.Product, error) {
	return s.products.GetProduct(ctx, id)
}
