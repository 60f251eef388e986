package model

import (
	"time"

	"github.com/shopspring/decimal"
)

func init() {
	// Prices and totals go over the wire as JSON numbers, not quoted strings.
	decimal.MarshalJSONWithoutQuotes = true
}

// Product is a catalog entry. ID is assigned by the product store.
type Product struct {
	ID          int64           `json:"id"`
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Price       decimal.Decimal `json:"price"`
	ImageURL    string          `json:"imageUrl"`
	Stock       int             `json:"stock"`
}

// CustomerInfo is embedded by value in every Order.
type CustomerInfo struct {
	Name    string `json:"name"`
	Address string `json:"address"`
	Email   string `json:"email"`
}

// OrderItemRequest is one requested line. ProductID is a pointer so that a
// missing id can be told apart from id 0.
type OrderItemRequest struct {
	ProductID *int64 `json:"productId"`
	Quantity  int    `json:"quantity"`
}

// OrderRequest is the transient input of order creation.
type OrderRequest struct {
	CustomerInfo *CustomerInfo      `json:"customerInfo"`
	Items        []OrderItemRequest `json:"items"`
}

// OrderItem captures the unit price at the moment the order was created.
type OrderItem struct {
	ProductID int64           `json:"productId"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unitPrice"`
}

// LineTotal returns quantity x unit price.
func (it OrderItem) LineTotal() decimal.Decimal {
	return it.UnitPrice.Mul(decimal.NewFromInt(int64(it.Quantity)))
}

// Order is a persisted purchase. ID is zero until the order store assigns one.
type Order struct {
	ID           int64           `json:"id"`
	CustomerInfo CustomerInfo    `json:"customerInfo"`
	Items        []OrderItem     `json:"items"`
	TotalAmount  decimal.Decimal `json:"totalAmount"`
	OrderDate    time.Time       `json:"orderDate"`
}

// SumItems returns the sum of the line totals of items.
func SumItems(items []OrderItem) decimal.Decimal {
	total := decimal.Zero
	for _, it := range items {
		total = total.Add(it.LineTotal())
	}
	return total
}

// Int64 returns a pointer to v. Handy for building OrderItemRequests.
func Int64(v int64) *int64 { return &v }
