package repository

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"storefront/internal/model"
)

// MemoryStore is an in-memory implementation of the repository interfaces.
// It backs the test suites and small local setups; the transaction boundary
// is a store-wide write lock with snapshot rollback.
type MemoryStore struct {
	mu sync.RWMutex

	nextUserID  int
	nextProdID  int
	nextCartID  int
	nextOrderID int

	usersByID    map[int]model.User
	usersByUID   map[string]int
	productsByID map[int]model.Product
	// cart entries keyed by (userID, productID); merge happens on the key
	cartByUser map[int]map[int]model.CartItem
	ordersByID map[int]model.Order
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		nextUserID:   1,
		nextProdID:   1,
		nextCartID:   1,
		nextOrderID:  1,
		usersByID:    make(map[int]model.User),
		usersByUID:   make(map[string]int),
		productsByID: make(map[int]model.Product),
		cartByUser:   make(map[int]map[int]model.CartItem),
		ordersByID:   make(map[int]model.Order),
	}
}

var (
	_ UserRepository    = (*MemoryStore)(nil)
	_ ProductRepository = (*MemoryStore)(nil)
	_ CartRepository    = (*MemoryStore)(nil)
	_ OrderRepository   = (*MemoryStore)(nil)
	_ TxManager         = (*MemoryStore)(nil)
)

// transaction-aware locking: inside WithTransaction the store lock is
// already held, so repository methods must skip their own locking.
type memTxKey struct{}

func inTx(ctx context.Context) bool {
	b, ok := ctx.Value(memTxKey{}).(bool)
	return ok && b
}

func (m *MemoryStore) rlock(ctx context.Context) {
	if !inTx(ctx) {
		m.mu.RLock()
	}
}

func (m *MemoryStore) runlock(ctx context.Context) {
	if !inTx(ctx) {
		m.mu.RUnlock()
	}
}

func (m *MemoryStore) wlock(ctx context.Context) {
	if !inTx(ctx) {
		m.mu.Lock()
	}
}

func (m *MemoryStore) wunlock(ctx context.Context) {
	if !inTx(ctx) {
		m.mu.Unlock()
	}
}

type memSnapshot struct {
	nextUserID, nextProdID, nextCartID, nextOrderID int

	usersByID    map[int]model.User
	usersByUID   map[string]int
	productsByID map[int]model.Product
	cartByUser   map[int]map[int]model.CartItem
	ordersByID   map[int]model.Order
}

func (m *MemoryStore) snapshot() memSnapshot {
	s := memSnapshot{
		nextUserID:   m.nextUserID,
		nextProdID:   m.nextProdID,
		nextCartID:   m.nextCartID,
		nextOrderID:  m.nextOrderID,
		usersByID:    make(map[int]model.User, len(m.usersByID)),
		usersByUID:   make(map[string]int, len(m.usersByUID)),
		productsByID: make(map[int]model.Product, len(m.productsByID)),
		cartByUser:   make(map[int]map[int]model.CartItem, len(m.cartByUser)),
		ordersByID:   make(map[int]model.Order, len(m.ordersByID)),
	}
	for k, v := range m.usersByID {
		s.usersByID[k] = v
	}
	for k, v := range m.usersByUID {
		s.usersByUID[k] = v
	}
	for k, v := range m.productsByID {
		s.productsByID[k] = v
	}
	for u, cart := range m.cartByUser {
		cp := make(map[int]model.CartItem, len(cart))
		for k, v := range cart {
			cp[k] = v
		}
		s.cartByUser[u] = cp
	}
	for k, v := range m.ordersByID {
		s.ordersByID[k] = v
	}
	return s
}

func (m *MemoryStore) restore(s memSnapshot) {
	m.nextUserID = s.nextUserID
	m.nextProdID = s.nextProdID
	m.nextCartID = s.nextCartID
	m.nextOrderID = s.nextOrderID
	m.usersByID = s.usersByID
	m.usersByUID = s.usersByUID
	m.productsByID = s.productsByID
	m.cartByUser = s.cartByUser
	m.ordersByID = s.ordersByID
}

// WithTransaction holds the write lock for the whole callback and restores
// the pre-transaction state if fn fails, so a failed multi-step mutation is
// never observable.
func (m *MemoryStore) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	snap := m.snapshot()
	if err := fn(context.WithValue(ctx, memTxKey{}, true)); err != nil {
		m.restore(snap)
		return err
	}
	return nil
}

// Users

func (m *MemoryStore) CreateUser(ctx context.Context, u *model.User) error {
	m.wlock(ctx)
	defer m.wunlock(ctx)

	if _, ok := m.usersByUID[u.ExternalUID]; ok {
		return fmt.Errorf("external uid %q: %w", u.ExternalUID, ErrDuplicate)
	}
	for _, existing := range m.usersByID {
		if existing.Email == u.Email {
			return fmt.Errorf("email %q: %w", u.Email, ErrDuplicate)
		}
	}
	u.ID = m.nextUserID
	m.nextUserID++
	u.CreatedAt = time.Now().UTC()
	m.usersByID[u.ID] = *u
	m.usersByUID[u.ExternalUID] = u.ID
	return nil
}

func (m *MemoryStore) GetUserByExternalUID(ctx context.Context, externalUID string) (*model.User, error) {
	m.rlock(ctx)
	defer m.runlock(ctx)

	id, ok := m.usersByUID[externalUID]
	if !ok {
		return nil, fmt.Errorf("user %q: %w", externalUID, ErrNotFound)
	}
	u := m.usersByID[id]
	return &u, nil
}

func (m *MemoryStore) UpdateUser(ctx context.Context, u *model.User) error {
	m.wlock(ctx)
	defer m.wunlock(ctx)

	if _, ok := m.usersByID[u.ID]; !ok {
		return fmt.Errorf("user %d: %w", u.ID, ErrNotFound)
	}
	now := time.Now().UTC()
	u.UpdatedAt = &now
	m.usersByID[u.ID] = *u
	return nil
}

// Products

// SeedProduct inserts a product directly. Catalog management is out of
// scope for the API, so this is the only write path besides stock updates.
func (m *MemoryStore) SeedProduct(p model.Product) model.Product {
	m.mu.Lock()
	defer m.mu.Unlock()

	if p.ID == 0 {
		p.ID = m.nextProdID
	}
	if p.ID >= m.nextProdID {
		m.nextProdID = p.ID + 1
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now().UTC()
	}
	m.productsByID[p.ID] = p
	return p
}

// SetPrice overwrites a product's price, bypassing the order path. Used to
// exercise the snapshot semantics of placed orders.
func (m *MemoryStore) SetPrice(id int, price decimal.Decimal) {
	m.mu.Lock()
	defer m.mu.Unlock()

	p, ok := m.productsByID[id]
	if !ok {
		return
	}
	p.Price = price
	m.productsByID[id] = p
}

func (m *MemoryStore) ListProducts(ctx context.Context, f ProductFilter) ([]model.Product, error) {
	m.rlock(ctx)
	defer m.runlock(ctx)

	ids := make([]int, 0, len(m.productsByID))
	for id, p := range m.productsByID {
		if f.Category != "" && p.Category != f.Category {
			continue
		}
		ids = append(ids, id)
	}
	sort.Ints(ids)

	out := []model.Product{}
	for i, id := range ids {
		if i < f.Skip {
			continue
		}
		if f.Limit > 0 && len(out) >= f.Limit {
			break
		}
		out = append(out, m.productsByID[id])
	}
	return out, nil
}

func (m *MemoryStore) GetProduct(ctx context.Context, id int) (*model.Product, error) {
	m.rlock(ctx)
	defer m.runlock(ctx)

	p, ok := m.productsByID[id]
	if !ok {
		return nil, fmt.Errorf("product %d: %w", id, ErrNotFound)
	}
	return &p, nil
}

func (m *MemoryStore) GetProductsForUpdate(ctx context.Context, ids []int) (map[int]*model.Product, error) {
	m.rlock(ctx)
	defer m.runlock(ctx)

	out := make(map[int]*model.Product, len(ids))
	for _, id := range ids {
		if p, ok := m.productsByID[id]; ok {
			cp := p
			out[id] = &cp
		}
	}
	return out, nil
}

func (m *MemoryStore) DecrementStock(ctx context.Context, id, qty int) error {
	m.wlock(ctx)
	defer m.wunlock(ctx)

	p, ok := m.productsByID[id]
	if !ok {
		return fmt.Errorf("product %d: %w", id, ErrNotFound)
	}
	if p.Stock < qty {
		return fmt.Errorf("product %d stock decrement: %w", id, ErrConflict)
	}
	p.Stock -= qty
	now := time.Now().UTC()
	p.UpdatedAt = &now
	m.productsByID[id] = p
	return nil
}

// Cart

func (m *MemoryStore) GetCartItems(ctx context.Context, userID int) ([]model.CartItem, error) {
	m.rlock(ctx)
	defer m.runlock(ctx)

	cart := m.cartByUser[userID]
	items := make([]model.CartItem, 0, len(cart))
	for _, ci := range cart {
		if p, ok := m.productsByID[ci.ProductID]; ok {
			cp := p
			ci.Product = &cp
		}
		items = append(items, ci)
	}
	sort.Slice(items, func(i, j int) bool { return items[i].ID < items[j].ID })
	return items, nil
}

func (m *MemoryStore) AddCartItem(ctx context.Context, userID, productID, quantity int) (*model.CartItem, error) {
	m.wlock(ctx)
	defer m.wunlock(ctx)

	cart := m.cartByUser[userID]
	if cart == nil {
		cart = make(map[int]model.CartItem)
		m.cartByUser[userID] = cart
	}
	ci, ok := cart[productID]
	if ok {
		ci.Quantity += quantity
	} else {
		ci = model.CartItem{
			ID:        m.nextCartID,
			UserID:    userID,
			ProductID: productID,
			Quantity:  quantity,
			CreatedAt: time.Now().UTC(),
		}
		m.nextCartID++
	}
	cart[productID] = ci
	cp := ci
	return &cp, nil
}

func (m *MemoryStore) DeleteCartItem(ctx context.Context, userID, productID int) error {
	m.wlock(ctx)
	defer m.wunlock(ctx)

	cart := m.cartByUser[userID]
	if _, ok := cart[productID]; !ok {
		return fmt.Errorf("cart item for product %d: %w", productID, ErrNotFound)
	}
	delete(cart, productID)
	return nil
}

func (m *MemoryStore) ClearCart(ctx context.Context, userID int) error {
	m.wlock(ctx)
	defer m.wunlock(ctx)

	delete(m.cartByUser, userID)
	return nil
}

// Orders

func (m *MemoryStore) CreateOrder(ctx context.Context, o *model.Order) error {
	m.wlock(ctx)
	defer m.wunlock(ctx)

	o.ID = m.nextOrderID
	m.nextOrderID++
	o.CreatedAt = time.Now().UTC()
	for i := range o.Items {
		o.Items[i].ID = i + 1
		o.Items[i].OrderID = o.ID
	}
	stored := *o
	stored.Items = append([]model.OrderItem(nil), o.Items...)
	m.ordersByID[o.ID] = stored
	return nil
}

func (m *MemoryStore) ListOrdersByUser(ctx context.Context, userID, skip, limit int) ([]model.Order, error) {
	m.rlock(ctx)
	defer m.runlock(ctx)

	all := []model.Order{}
	for _, o := range m.ordersByID {
		if o.UserID == userID {
			all = append(all, copyOrder(o))
		}
	}
	// newest first
	sort.Slice(all, func(i, j int) bool { return all[i].ID > all[j].ID })

	if skip < 0 {
		skip = 0
	}
	if skip > len(all) {
		skip = len(all)
	}
	all = all[skip:]
	if limit > 0 && len(all) > limit {
		all = all[:limit]
	}
	return all, nil
}

func (m *MemoryStore) GetOrder(ctx context.Context, userID, orderID int) (*model.Order, error) {
	m.rlock(ctx)
	defer m.runlock(ctx)

	o, ok := m.ordersByID[orderID]
	if !ok || o.UserID != userID {
		return nil, fmt.Errorf("order %d: %w", orderID, ErrNotFound)
	}
	cp := copyOrder(o)
	return &cp, nil
}

func copyOrder(o model.Order) model.Order {
	cp := o
	cp.Items = append([]model.OrderItem(nil), o.Items...)
	return cp
}
