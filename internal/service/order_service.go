package service

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/shopspring/decimal"

	"storefront/internal/model"
	"storefront/internal/obs"
	"storefront/internal/repository"
)

// OrderService converts a set of requested lines (or the stored cart) into
// a persisted order, adjusting catalog stock as one atomic unit.
type OrderService struct {
	products repository.ProductRepository
	orders   repository.OrderRepository
	cart     repository.CartRepository
	tx       repository.TxManager
}

func NewOrderService(products repository.ProductRepository, orders repository.OrderRepository, cart repository.CartRepository, tx repository.TxManager) *OrderService {
	return &OrderService{products: products, orders: orders, cart: cart, tx: tx}
}

// OrderLine is a single (product, quantity) pair within an order request.
type OrderLine struct {
	ProductID int
	Quantity  int
}

// PlaceOrder validates and applies the lines in caller order inside one
// transaction: product rows are locked in ascending id order, stock is
// checked and decremented, prices are snapshotted into order items, and the
// order is inserted. Any failed line rolls the whole order back.
//
// With no explicit lines the user's stored cart supplies them (cart
// checkout). The cart is cleared after the order commits; that cleanup is
// a separate transaction and its failure does not undo the order.
func (s *OrderService) PlaceOrder(ctx context.Context, user *model.User, shippingAddress string, lines []OrderLine) (*model.Order, error) {
	shippingAddress = strings.TrimSpace(shippingAddress)
	if shippingAddress == "" {
		return nil, fmt.Errorf("shipping address is required: %w", ErrInvalidInput)
	}

	if len(lines) == 0 {
		cartItems, err := s.cart.GetCartItems(ctx, user.ID)
		if err != nil {
			return nil, err
		}
		for _, ci := range cartItems {
			lines = append(lines, OrderLine{ProductID: ci.ProductID, Quantity: ci.Quantity})
		}
		if len(lines) == 0 {
			return nil, fmt.Errorf("order has no items and cart is empty: %w", ErrInvalidInput)
		}
	}

	for _, ln := range lines {
		if ln.ProductID <= 0 || ln.Quantity < 1 {
			return nil, fmt.Errorf("order line must have a product and quantity >= 1: %w", ErrInvalidInput)
		}
	}

	var created *model.Order
	err := s.tx.WithTransaction(ctx, func(ctx context.Context) error {
		locked, err := s.products.GetProductsForUpdate(ctx, uniqueProductIDs(lines))
		if err != nil {
			return err
		}

		// Validate in caller order against the locked snapshot. Repeated
		// product ids within one request draw down the same stock.
		remaining := make(map[int]int, len(locked))
		for id, p := range locked {
			remaining[id] = p.Stock
		}

		total := decimal.Zero
		items := make([]model.OrderItem, 0, len(lines))
		for _, ln := range lines {
			p, ok := locked[ln.ProductID]
			if !ok {
				return fmt.Errorf("product %d: %w", ln.ProductID, repository.ErrNotFound)
			}
			if remaining[p.ID] < ln.Quantity {
				return &InsufficientStockError{ProductID: p.ID, Requested: ln.Quantity, Available: remaining[p.ID]}
			}
			remaining[p.ID] -= ln.Quantity
			total = total.Add(p.Price.Mul(decimal.NewFromInt(int64(ln.Quantity))))
			items = append(items, model.OrderItem{ProductID: p.ID, Quantity: ln.Quantity, Price: p.Price})
		}

		for id, p := range locked {
			if dec := p.Stock - remaining[id]; dec > 0 {
				if err := s.products.DecrementStock(ctx, id, dec); err != nil {
					return err
				}
			}
		}

		o := &model.Order{
			UserID:          user.ID,
			Status:          model.OrderStatusPending,
			TotalAmount:     total,
			ShippingAddress: shippingAddress,
			Items:           items,
		}
		if err := s.orders.CreateOrder(ctx, o); err != nil {
			return err
		}
		created = o
		return nil
	})
	if err != nil {
		return nil, err
	}

	// Best-effort cleanup: the order stands even if the cart survives.
	if err := s.cart.ClearCart(ctx, user.ID); err != nil {
		obs.Logger.Warn("failed to clear cart after order commit",
			"user_id", user.ID, "order_id", created.ID, "error", err.Error())
	}

	return created, nil
}

func (s *OrderService) ListOrders(ctx context.Context, user *model.User, skip, limit int) ([]model.Order, error) {
	if skip < 0 {
		skip = 0
	}
	if limit <= 0 || limit > 100 {
		limit = 100
	}
	return s.orders.ListOrdersByUser(ctx, user.ID, skip, limit)
}

func (s *OrderService) GetOrder(ctx context.Context, user *model.User, orderID int) (*model.Order, error) {
	if orderID <= 0 {
		return nil, fmt.Errorf("order %d: %w", orderID, repository.ErrNotFound)
	}
	return s.orders.GetOrder(ctx, user.ID, orderID)
}

func uniqueProductIDs(lines []OrderLine) []int {
	seen := make(map[int]struct{}, len(lines))
	ids := make([]int, 0, len(lines))
	for _, ln := range lines {
		if _, ok := seen[ln.ProductID]; !ok {
			seen[ln.ProductID] = struct{}{}
			ids = append(ids, ln.ProductID)
		}
	}
	sort.Ints(ids)
	return ids
}
