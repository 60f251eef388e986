package catalog

import (
	"errors"
	"fmt"
)

var (
	// ErrProductNotFound is the kind behind every ProductNotFoundError.
	ErrProductNotFound = errors.New("product not found")
	ErrNegativeStock   = errors.New("stock cannot be negative")
)

// ProductNotFoundError reports a lookup of an unknown product id.
type ProductNotFoundError struct {
	ProductID int64
}

func (e *ProductNotFoundError) Error() string {
	return fmt.Sprintf("Product not found with id: %d", e.ProductID)
}

func (e *ProductNotFoundError) Unwrap() error { return ErrProductNotFound }
