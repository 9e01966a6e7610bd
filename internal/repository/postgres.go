package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"storefront/internal/model"
)

// Postgres implements the repository interfaces on a pgx pool.
type Postgres struct {
	db *pgxpool.Pool
}

func NewPostgres(db *pgxpool.Pool) *Postgres {
	return &Postgres{db: db}
}

var (
	_ UserRepository    = (*Postgres)(nil)
	_ ProductRepository = (*Postgres)(nil)
	_ CartRepository    = (*Postgres)(nil)
	_ OrderRepository   = (*Postgres)(nil)
	_ TxManager         = (*Postgres)(nil)
)

type txKey struct{}

// WithTransaction executes fn within a transaction. The transaction is
// carried in the context so that repository methods called from fn run on
// it instead of the pool.
func (r *Postgres) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	// Rollback is a no-op after a successful commit.
	defer tx.Rollback(ctx)

	if err := fn(context.WithValue(ctx, txKey{}, tx)); err != nil {
		return classifyPgError(err)
	}

	if err := tx.Commit(ctx); err != nil {
		return classifyPgError(fmt.Errorf("failed to commit transaction: %w", err))
	}

	return nil
}

func (r *Postgres) getExecutor(ctx context.Context) PgxExecutor {
	if tx, ok := ctx.Value(txKey{}).(pgx.Tx); ok {
		return tx
	}
	return r.db
}

// PgxExecutor is an interface that matches both *pgxpool.Pool and pgx.Tx
type PgxExecutor interface {
	Exec(ctx context.Context, sql string, arguments ...any) (commandTag pgconn.CommandTag, err error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// classifyPgError maps driver-level failures onto the repository sentinels.
// Serialization failures and deadlocks become ErrConflict so callers can
// distinguish "retry" from "out of stock".
func classifyPgError(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "40001", "40P01":
			return fmt.Errorf("%w: %s", ErrConflict, pgErr.Message)
		case "23505":
			return fmt.Errorf("%w: %s", ErrDuplicate, pgErr.ConstraintName)
		}
	}
	return err
}

// Users

func (r *Postgres) CreateUser(ctx context.Context, u *model.User) error {
	err := r.getExecutor(ctx).QueryRow(ctx,
		`INSERT INTO users (external_uid, email, full_name, phone_number)
		 VALUES ($1, $2, $3, $4)
		 RETURNING id, created_at`,
		u.ExternalUID, u.Email, u.FullName, u.PhoneNumber,
	).Scan(&u.ID, &u.CreatedAt)
	if err != nil {
		return classifyPgError(fmt.Errorf("failed to create user: %w", err))
	}
	return nil
}

func (r *Postgres) GetUserByExternalUID(ctx context.Context, externalUID string) (*model.User, error) {
	var u model.User
	err := r.getExecutor(ctx).QueryRow(ctx,
		`SELECT id, external_uid, email, full_name, phone_number, created_at, updated_at
		 FROM users WHERE external_uid = $1`,
		externalUID,
	).Scan(&u.ID, &u.ExternalUID, &u.Email, &u.FullName, &u.PhoneNumber, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("user %q: %w", externalUID, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return &u, nil
}

func (r *Postgres) UpdateUser(ctx context.Context, u *model.User) error {
	err := r.getExecutor(ctx).QueryRow(ctx,
		`UPDATE users SET full_name = $1, phone_number = $2, updated_at = now()
		 WHERE id = $3
		 RETURNING updated_at`,
		u.FullName, u.PhoneNumber, u.ID,
	).Scan(&u.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return fmt.Errorf("user %d: %w", u.ID, ErrNotFound)
		}
		return fmt.Errorf("failed to update user: %w", err)
	}
	return nil
}

// Products

const productColumns = `id, title, description, price, category, image_url, stock, created_at, updated_at`

func scanProduct(row pgx.Row) (*model.Product, error) {
	var p model.Product
	err := row.Scan(&p.ID, &p.Title, &p.Description, &p.Price, &p.Category, &p.ImageURL, &p.Stock, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *Postgres) ListProducts(ctx context.Context, f ProductFilter) ([]model.Product, error) {
	query := `SELECT ` + productColumns + ` FROM products`
	args := []any{}
	if f.Category != "" {
		query += ` WHERE category = $1`
		args = append(args, f.Category)
	}
	query += fmt.Sprintf(` ORDER BY id OFFSET $%d LIMIT $%d`, len(args)+1, len(args)+2)
	args = append(args, f.Skip, f.Limit)

	rows, err := r.getExecutor(ctx).Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list products: %w", err)
	}
	defer rows.Close()

	products := []model.Product{}
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan product: %w", err)
		}
		products = append(products, *p)
	}
	return products, rows.Err()
}

func (r *Postgres) GetProduct(ctx context.Context, id int) (*model.Product, error) {
	p, err := scanProduct(r.getExecutor(ctx).QueryRow(ctx,
		`SELECT `+productColumns+` FROM products WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("product %d: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get product: %w", err)
	}
	return p, nil
}

// GetProductsForUpdate locks the touched rows in ascending id order so that
// two multi-line orders over the same products cannot deadlock.
func (r *Postgres) GetProductsForUpdate(ctx context.Context, ids []int) (map[int]*model.Product, error) {
	rows, err := r.getExecutor(ctx).Query(ctx,
		`SELECT `+productColumns+` FROM products WHERE id = ANY($1) ORDER BY id FOR UPDATE`, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to lock products: %w", err)
	}
	defer rows.Close()

	products := make(map[int]*model.Product, len(ids))
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan product: %w", err)
		}
		products[p.ID] = p
	}
	return products, rows.Err()
}

func (r *Postgres) DecrementStock(ctx context.Context, id, qty int) error {
	// The conditional WHERE is a second line of defense under the row lock:
	// stock can never be driven negative even if a caller skips the lock.
	tag, err := r.getExecutor(ctx).Exec(ctx,
		`UPDATE products SET stock = stock - $1, updated_at = now()
		 WHERE id = $2 AND stock >= $1`,
		qty, id)
	if err != nil {
		return fmt.Errorf("failed to update product stock: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("product %d stock decrement: %w", id, ErrConflict)
	}
	return nil
}

// Cart

func (r *Postgres) GetCartItems(ctx context.Context, userID int) ([]model.CartItem, error) {
	rows, err := r.getExecutor(ctx).Query(ctx,
		`SELECT ci.id, ci.user_id, ci.product_id, ci.quantity, ci.created_at,
		        p.id, p.title, p.description, p.price, p.category, p.image_url, p.stock, p.created_at, p.updated_at
		 FROM cart_items ci
		 JOIN products p ON p.id = ci.product_id
		 WHERE ci.user_id = $1
		 ORDER BY ci.id`,
		userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list cart items: %w", err)
	}
	defer rows.Close()

	items := []model.CartItem{}
	for rows.Next() {
		var ci model.CartItem
		var p model.Product
		err := rows.Scan(&ci.ID, &ci.UserID, &ci.ProductID, &ci.Quantity, &ci.CreatedAt,
			&p.ID, &p.Title, &p.Description, &p.Price, &p.Category, &p.ImageURL, &p.Stock, &p.CreatedAt, &p.UpdatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan cart item: %w", err)
		}
		ci.Product = &p
		items = append(items, ci)
	}
	return items, rows.Err()
}

func (r *Postgres) AddCartItem(ctx context.Context, userID, productID, quantity int) (*model.CartItem, error) {
	var ci model.CartItem
	err := r.getExecutor(ctx).QueryRow(ctx,
		`INSERT INTO cart_items (user_id, product_id, quantity)
		 VALUES ($1, $2, $3)
		 ON CONFLICT (user_id, product_id)
		 DO UPDATE SET quantity = cart_items.quantity + EXCLUDED.quantity
		 RETURNING id, user_id, product_id, quantity, created_at`,
		userID, productID, quantity,
	).Scan(&ci.ID, &ci.UserID, &ci.ProductID, &ci.Quantity, &ci.CreatedAt)
	if err != nil {
		return nil, classifyPgError(fmt.Errorf("failed to add cart item: %w", err))
	}
	return &ci, nil
}

func (r *Postgres) DeleteCartItem(ctx context.Context, userID, productID int) error {
	tag, err := r.getExecutor(ctx).Exec(ctx,
		`DELETE FROM cart_items WHERE user_id = $1 AND product_id = $2`,
		userID, productID)
	if err != nil {
		return fmt.Errorf("failed to delete cart item: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("cart item for product %d: %w", productID, ErrNotFound)
	}
	return nil
}

func (r *Postgres) ClearCart(ctx context.Context, userID int) error {
	_, err := r.getExecutor(ctx).Exec(ctx,
		`DELETE FROM cart_items WHERE user_id = $1`, userID)
	if err != nil {
		return fmt.Errorf("failed to clear cart: %w", err)
	}
	return nil
}

// Orders

func (r *Postgres) CreateOrder(ctx context.Context, o *model.Order) error {
	exec := r.getExecutor(ctx)
	err := exec.QueryRow(ctx,
		`INSERT INTO orders (user_id, status, total_amount, shipping_address)
		 VALUES ($1, $2, $3, $4)
		 RETURNING id, created_at`,
		o.UserID, o.Status, o.TotalAmount, o.ShippingAddress,
	).Scan(&o.ID, &o.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create order: %w", err)
	}

	for i := range o.Items {
		item := &o.Items[i]
		item.OrderID = o.ID
		err := exec.QueryRow(ctx,
			`INSERT INTO order_items (order_id, product_id, quantity, price)
			 VALUES ($1, $2, $3, $4)
			 RETURNING id`,
			item.OrderID, item.ProductID, item.Quantity, item.Price,
		).Scan(&item.ID)
		if err != nil {
			return fmt.Errorf("failed to create order item: %w", err)
		}
	}
	return nil
}

func (r *Postgres) ListOrdersByUser(ctx context.Context, userID, skip, limit int) ([]model.Order, error) {
	rows, err := r.getExecutor(ctx).Query(ctx,
		`SELECT id, user_id, status, total_amount, shipping_address, created_at
		 FROM orders
		 WHERE user_id = $1
		 ORDER BY created_at DESC, id DESC
		 OFFSET $2 LIMIT $3`,
		userID, skip, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list orders: %w", err)
	}
	defer rows.Close()

	orders := []model.Order{}
	ids := []int{}
	for rows.Next() {
		var o model.Order
		err := rows.Scan(&o.ID, &o.UserID, &o.Status, &o.TotalAmount, &o.ShippingAddress, &o.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan order: %w", err)
		}
		orders = append(orders, o)
		ids = append(ids, o.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(orders) == 0 {
		return orders, nil
	}

	items, err := r.orderItems(ctx, ids)
	if err != nil {
		return nil, err
	}
	for i := range orders {
		orders[i].Items = items[orders[i].ID]
	}
	return orders, nil
}

func (r *Postgres) GetOrder(ctx context.Context, userID, orderID int) (*model.Order, error) {
	var o model.Order
	err := r.getExecutor(ctx).QueryRow(ctx,
		`SELECT id, user_id, status, total_amount, shipping_address, created_at
		 FROM orders WHERE id = $1 AND user_id = $2`,
		orderID, userID,
	).Scan(&o.ID, &o.UserID, &o.Status, &o.TotalAmount, &o.ShippingAddress, &o.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("order %d: %w", orderID, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get order: %w", err)
	}

	items, err := r.orderItems(ctx, []int{o.ID})
	if err != nil {
		return nil, err
	}
	o.Items = items[o.ID]
	return &o, nil
}

func (r *Postgres) orderItems(ctx context.Context, orderIDs []int) (map[int][]model.OrderItem, error) {
	rows, err := r.getExecutor(ctx).Query(ctx,
		`SELECT id, order_id, product_id, quantity, price
		 FROM order_items WHERE order_id = ANY($1) ORDER BY id`,
		orderIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to list order items: %w", err)
	}
	defer rows.Close()

	items := make(map[int][]model.OrderItem)
	for rows.Next() {
		var it model.OrderItem
		err := rows.Scan(&it.ID, &it.OrderID, &it.ProductID, &it.Quantity, &it.Price)
		if err != nil {
			return nil, fmt.Errorf("failed to scan order item: %w", err)
		}
		items[it.OrderID] = append(items[it.OrderID], it)
	}
	return items, rows.Err()
}
