package order

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidOrder      = errors.New("invalid order")
	ErrInsufficientStock = errors.New("insufficient stock")
	ErrOrderNotFound     = errors.New("order not found")
)

// InvalidOrderError carries the first validation rule the request broke.
type InvalidOrderError struct {
	Reason string
}

func (e *InvalidOrderError) Error() string { return e.Reason }

func (e *InvalidOrderError) Unwrap() error { return ErrInvalidOrder }

// InsufficientStockError reports the stock seen when the item was checked.
type InsufficientStockError struct {
	ProductID int64
	Requested int
	Available int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("Insufficient stock for product id: %d. Requested: %d, Available: %d",
		e.ProductID, e.Requested, e.Available)
}

func (e *InsufficientStockError) Unwrap() error { return ErrInsufficientStock }

type OrderNotFoundError struct {
	ID int64
}

func (e *OrderNotFoundError) Error() string {
	return fmt.Sprintf("Order not found with id: %d", e.ID)
}

func (e *OrderNotFoundError) Unwrap() error { return ErrOrderNotFound }

func invalid(reason string) error { return &InvalidOrderError{Reason: reason} }
