package repository

import (
	"context"
	"errors"

	"storefront/internal/model"
)

// ErrNotFound is returned when an entity does not exist (or is not visible
// to the requesting user).
var ErrNotFound = errors.New("not found")

// ErrDuplicate is returned when a unique constraint is violated.
var ErrDuplicate = errors.New("duplicate")

// ErrConflict is returned when a transaction could not commit because of a
// concurrent mutation. Callers may retry.
var ErrConflict = errors.New("conflict")

// ProductFilter limits and pages the catalog listing.
type ProductFilter struct {
	Category string
	Skip     int
	Limit    int
}

type UserRepository interface {
	CreateUser(ctx context.Context, u *model.User) error
	GetUserByExternalUID(ctx context.Context, externalUID string) (*model.User, error)
	UpdateUser(ctx context.Context, u *model.User) error
}

type ProductRepository interface {
	ListProducts(ctx context.Context, f ProductFilter) ([]model.Product, error)
	GetProduct(ctx context.Context, id int) (*model.Product, error)
	// GetProductsForUpdate locks the product rows for the given ids in
	// ascending id order and returns those that exist.
	GetProductsForUpdate(ctx context.Context, ids []int) (map[int]*model.Product, error)
	// DecrementStock subtracts qty from the product's stock. It fails if the
	// decrement would drive the stock negative.
	DecrementStock(ctx context.Context, id, qty int) error
}

type CartRepository interface {
	GetCartItems(ctx context.Context, userID int) ([]model.CartItem, error)
	// AddCartItem merges with an existing (user, product) entry by summing
	// quantities, or creates one. Returns the resulting entry.
	AddCartItem(ctx context.Context, userID, productID, quantity int) (*model.CartItem, error)
	DeleteCartItem(ctx context.Context, userID, productID int) error
	ClearCart(ctx context.Context, userID int) error
}

type OrderRepository interface {
	// CreateOrder persists the order and its items, filling in generated ids
	// and timestamps.
	CreateOrder(ctx context.Context, o *model.Order) error
	ListOrdersByUser(ctx context.Context, userID, skip, limit int) ([]model.Order, error)
	GetOrder(ctx context.Context, userID, orderID int) (*model.Order, error)
}

// TxManager runs fn within a transaction: full commit or full rollback.
type TxManager interface {
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}
