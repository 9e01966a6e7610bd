package service

import (
	"errors"
	"fmt"
)

// ErrInvalidInput covers malformed requests: non-positive quantities, empty
// shipping address, checkout of an empty cart.
var ErrInvalidInput = errors.New("invalid input")

// InsufficientStockError reports a line whose requested quantity exceeds
// the available stock at the authoritative check.
type InsufficientStockError struct {
	ProductID int
	Requested int
	Available int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for product %d: requested %d, available %d",
		e.ProductID, e.Requested, e.Available)
}
