package service

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"storefront/internal/model"
	"storefront/internal/repository"
)

// CartService manages the reservation-free cart: adding an item checks the
// current stock but does not hold it. Availability is only authoritative at
// order placement.
type CartService struct {
	products repository.ProductRepository
	cart     repository.CartRepository
}

func NewCartService(products repository.ProductRepository, cart repository.CartRepository) *CartService {
	return &CartService{products: products, cart: cart}
}

// Cart is the read view of a user's cart with its running total.
type Cart struct {
	Items       []model.CartItem `json:"items"`
	TotalAmount decimal.Decimal  `json:"total_amount"`
}

// AddItem merges with an existing entry for the same product (quantities
// summed) or creates one. The stock check is advisory: concurrent adds can
// oversell a cart; order placement re-checks authoritatively.
func (s *CartService) AddItem(ctx context.Context, user *model.User, productID, quantity int) (*model.CartItem, error) {
	if quantity < 1 {
		return nil, fmt.Errorf("quantity must be >= 1: %w", ErrInvalidInput)
	}

	p, err := s.products.GetProduct(ctx, productID)
	if err != nil {
		return nil, err
	}
	if p.Stock < quantity {
		return nil, &InsufficientStockError{ProductID: p.ID, Requested: quantity, Available: p.Stock}
	}

	ci, err := s.cart.AddCartItem(ctx, user.ID, productID, quantity)
	if err != nil {
		return nil, err
	}
	ci.Product = p
	return ci, nil
}

func (s *CartService) RemoveItem(ctx context.Context, user *model.User, productID int) error {
	return s.cart.DeleteCartItem(ctx, user.ID, productID)
}

func (s *CartService) GetCart(ctx context.Context, user *model.User) (*Cart, error) {
	items, err := s.cart.GetCartItems(ctx, user.ID)
	if err != nil {
		return nil, err
	}

	total := decimal.Zero
	for _, ci := range items {
		if ci.Product != nil {
			total = total.Add(ci.Product.Price.Mul(decimal.NewFromInt(int64(ci.Quantity))))
		}
	}
	return &Cart{Items: items, TotalAmount: total}, nil
}
