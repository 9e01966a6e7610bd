package repository_test

import (
	"context"
	"fmt"
	"os"
	"testing"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"

	"storefront/internal/repository"
	"storefront/internal/service"
)

// These tests run against a real database prepared with migrations/. They
// are skipped when DATABASE_URL is not set.

func setupTestDB(t *testing.T) *pgxpool.Pool {
	_ = godotenv.Load("../../.env")

	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		t.Skip("DATABASE_URL not set, skipping database integration tests")
	}

	pool, err := pgxpool.New(context.Background(), dbURL)
	if err != nil {
		t.Fatalf("Unable to connect to database: %v", err)
	}

	if err := pool.Ping(context.Background()); err != nil {
		t.Fatalf("Unable to ping database: %v", err)
	}

	// Truncate tables to ensure clean state
	tables := []string{"order_items", "orders", "cart_items", "users", "products"} // Order matters due to FK
	for _, table := range tables {
		_, err := pool.Exec(context.Background(), fmt.Sprintf("TRUNCATE TABLE %s RESTART IDENTITY CASCADE", table))
		if err != nil {
			t.Fatalf("Failed to truncate table %s: %v", table, err)
		}
	}

	return pool
}

func seedDB(t *testing.T, pool *pgxpool.Pool) (userID, productID int) {
	ctx := context.Background()
	err := pool.QueryRow(ctx,
		"INSERT INTO users (external_uid, email, full_name) VALUES ('uid-it', 'it@example.com', 'IT User') RETURNING id",
	).Scan(&userID)
	if err != nil {
		t.Fatalf("Failed to seed user: %v", err)
	}
	err = pool.QueryRow(ctx,
		"INSERT INTO products (title, price, stock) VALUES ('Test Item', 10.00, 10) RETURNING id",
	).Scan(&productID)
	if err != nil {
		t.Fatalf("Failed to seed product: %v", err)
	}
	return userID, productID
}

func TestPostgres_PlaceOrder_Integration(t *testing.T) {
	pool := setupTestDB(t)
	defer pool.Close()
	ctx := context.Background()

	userID, productID := seedDB(t, pool)

	store := repository.NewPostgres(pool)
	svc := service.NewOrderService(store, store, store, store)

	user, err := store.GetUserByExternalUID(ctx, "uid-it")
	if err != nil {
		t.Fatalf("Failed to load user: %v", err)
	}

	order, err := svc.PlaceOrder(ctx, user, "1 Main St", []service.OrderLine{{ProductID: productID, Quantity: 3}})
	if err != nil {
		t.Fatalf("PlaceOrder failed: %v", err)
	}

	var newStock int
	if err := pool.QueryRow(ctx, "SELECT stock FROM products WHERE id = $1", productID).Scan(&newStock); err != nil {
		t.Fatalf("Failed to query stock: %v", err)
	}
	if newStock != 7 {
		t.Errorf("Expected stock 7, got %d", newStock)
	}

	var orderCount int
	if err := pool.QueryRow(ctx, "SELECT COUNT(*) FROM orders WHERE user_id = $1", userID).Scan(&orderCount); err != nil {
		t.Fatalf("Failed to query orders: %v", err)
	}
	if orderCount != 1 {
		t.Errorf("Expected 1 order, got %d", orderCount)
	}

	var itemCount int
	if err := pool.QueryRow(ctx, "SELECT COUNT(*) FROM order_items WHERE order_id = $1", order.ID).Scan(&itemCount); err != nil {
		t.Fatalf("Failed to query order items: %v", err)
	}
	if itemCount != 1 {
		t.Errorf("Expected 1 order item, got %d", itemCount)
	}
}

func TestPostgres_PlaceOrder_RollbackOnFailedLine(t *testing.T) {
	pool := setupTestDB(t)
	defer pool.Close()
	ctx := context.Background()

	_, productID := seedDB(t, pool)

	store := repository.NewPostgres(pool)
	svc := service.NewOrderService(store, store, store, store)

	user, err := store.GetUserByExternalUID(ctx, "uid-it")
	if err != nil {
		t.Fatalf("Failed to load user: %v", err)
	}

	// second line references an unknown product; the first line's decrement
	// must roll back with it
	_, err = svc.PlaceOrder(ctx, user, "1 Main St", []service.OrderLine{
		{ProductID: productID, Quantity: 3},
		{ProductID: 999999, Quantity: 1},
	})
	if err == nil {
		t.Fatalf("Expected PlaceOrder to fail")
	}

	var stock int
	if err := pool.QueryRow(ctx, "SELECT stock FROM products WHERE id = $1", productID).Scan(&stock); err != nil {
		t.Fatalf("Failed to query stock: %v", err)
	}
	if stock != 10 {
		t.Errorf("Expected stock 10 after rollback, got %d", stock)
	}

	var orderCount int
	if err := pool.QueryRow(ctx, "SELECT COUNT(*) FROM orders").Scan(&orderCount); err != nil {
		t.Fatalf("Failed to query orders: %v", err)
	}
	if orderCount != 0 {
		t.Errorf("Expected 0 orders, got %d", orderCount)
	}
}

func TestPostgres_PlaceOrder_Concurrency(t *testing.T) {
	pool := setupTestDB(t)
	defer pool.Close()
	ctx := context.Background()

	_, productID := seedDB(t, pool)

	store := repository.NewPostgres(pool)
	svc := service.NewOrderService(store, store, store, store)

	user, err := store.GetUserByExternalUID(ctx, "uid-it")
	if err != nil {
		t.Fatalf("Failed to load user: %v", err)
	}

	// Stock is 10. Launch 50 concurrent single-unit orders; exactly 10 may
	// commit.
	concurrentRequests := 50
	results := make(chan error, concurrentRequests)
	for i := 0; i < concurrentRequests; i++ {
		go func() {
			_, err := svc.PlaceOrder(ctx, user, "1 Main St", []service.OrderLine{{ProductID: productID, Quantity: 1}})
			results <- err
		}()
	}

	successCount := 0
	failCount := 0
	for i := 0; i < concurrentRequests; i++ {
		if err := <-results; err == nil {
			successCount++
		} else {
			failCount++
		}
	}

	if successCount != 10 {
		t.Errorf("Expected 10 successful orders, got %d", successCount)
	}
	if failCount != concurrentRequests-10 {
		t.Errorf("Expected %d failed orders, got %d", concurrentRequests-10, failCount)
	}

	var newStock int
	if err := pool.QueryRow(ctx, "SELECT stock FROM products WHERE id = $1", productID).Scan(&newStock); err != nil {
		t.Fatalf("Failed to query stock: %v", err)
	}
	if newStock != 0 {
		t.Errorf("Expected stock 0, got %d", newStock)
	}
}
