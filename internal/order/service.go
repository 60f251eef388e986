package order

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"webshop/internal/catalog"
	"webshop/internal/changelog"
	"webshop/internal/metrics"
	"webshop/internal/model"
	"webshop/internal/state"
)

// changelogTimeout bounds one append, which runs while the workflow lock is held.
const changelogTimeout = 5 * time.Second

// Now stamps new orders. Tests replace it.
var Now = func() time.Time { return time.Now().UTC() }

// ProductLookup resolves and mutates products. *catalog.Service satisfies it.
type ProductLookup interface {
	GetByID(ctx context.Context, id int64) (model.Product, error)
	UpdateStock(ctx context.Context, id int64, newStock int) error
}

// StockPolicy decides when stock is decremented during order creation.
type StockPolicy string

const (
	// PolicySequential decrements each item right after its check. A later
	// failure leaves earlier decrements in place.
	PolicySequential StockPolicy = "sequential"
	// PolicyTwoPhase checks every item before touching any stock.
	PolicyTwoPhase StockPolicy = "two-phase"
)

func ParseStockPolicy(s string) (StockPolicy, error) {
	switch StockPolicy(s) {
	case PolicySequential, PolicyTwoPhase:
		return StockPolicy(s), nil
	case "":
		return PolicySequential, nil
	default:
		return "", fmt.Errorf("unknown stock policy %q (want sequential|two-phase)", s)
	}
}

// Service runs the order creation workflow and serves order reads.
type Service struct {
	// mu serializes the read-compare-write of stock across requests.
	mu        sync.Mutex
	products  ProductLookup
	orders    *Store
	changelog changelog.Writer
	metrics   *metrics.Registry
	policy    StockPolicy
}

type Option func(*Service)

// WithChangelog appends an order.created entry for every persisted order.
func WithChangelog(w changelog.Writer) Option {
	return func(s *Service) { s.changelog = w }
}

func WithStockPolicy(p StockPolicy) Option {
	return func(s *Service) { s.policy = p }
}

func NewService(products ProductLookup, orders *Store, m *metrics.Registry, opts ...Option) *Service {
	s := &Service{
		products:  products,
		orders:    orders,
		changelog: changelog.Discard{},
		metrics:   m,
		policy:    PolicySequential,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Validate applies the request rules in order and reports the first one broken.
func Validate(req *model.OrderRequest) error {
	if req == nil {
		return invalid("Order request cannot be null")
	}
	ci := req.CustomerInfo
	if ci == nil {
		return invalid("Customer information is required")
	}
	if blank(ci.Name) {
		return invalid("Customer name is required")
	}
	if blank(ci.Email) {
		return invalid("Customer email is required")
	}
	if blank(ci.Address) {
		return invalid("Customer address is required")
	}
	if len(req.Items) == 0 {
		return invalid("Order must contain at least one item")
	}
	for _, it := range req.Items {
		if it.ProductID == nil {
			return invalid("Product ID is required for all items")
		}
		if it.Quantity <= 0 {
			return invalid("Quantity must be greater than 0")
		}
	}
	return nil
}

func blank(s string) bool { return strings.TrimSpace(s) == "" }

// CreateOrder validates req, reserves stock for every item, and persists the
// resulting order with unit prices captured at this moment.
func (s *Service) CreateOrder(ctx context.Context, req *model.OrderRequest) (model.Order, error) {
	o, err := s.createOrder(ctx, req)
	if err != nil {
		s.metrics.OrderFailures.WithLabelValues(failureReason(err)).Inc()
		return model.Order{}, err
	}
	s.metrics.OrdersCreated.Inc()
	s.metrics.OrderTotal.Observe(o.TotalAmount.InexactFloat64())
	return o, nil
}

func (s *Service) createOrder(ctx context.Context, req *model.OrderRequest) (model.Order, error) {
	if err := Validate(req); err != nil {
		return model.Order{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var (
		items []model.OrderItem
		err   error
	)
	if s.policy == PolicyTwoPhase {
		items, err = s.reserveTwoPhase(ctx, req.Items)
	} else {
		items, err = s.reserveSequential(ctx, req.Items)
	}
	if err != nil {
		return model.Order{}, err
	}

	saved, err := s.orders.Save(model.Order{
		CustomerInfo: *req.CustomerInfo,
		Items:        items,
		TotalAmount:  model.SumItems(items),
		OrderDate:    Now(),
	})
	if err != nil {
		return model.Order{}, err
	}
	log.Printf("orders: created order %d with %d item(s), total %s", saved.ID, len(saved.Items), saved.TotalAmount)

	// the order is already persisted; a lost changelog entry must not undo it,
	// and a caller that hangs up must not cancel the append
	appendCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), changelogTimeout)
	defer cancel()
	if err := s.changelog.Append(appendCtx, changelog.OrderCreated(saved)); err != nil {
		s.metrics.ChangelogFailed.Inc()
		log.Printf("orders: changelog append for order %d failed: %v", saved.ID, err)
	} else {
		s.metrics.ChangelogOK.Inc()
	}
	return saved, nil
}

func (s *Service) reserveSequential(ctx context.Context, reqItems []model.OrderItemRequest) ([]model.OrderItem, error) {
	items := make([]model.OrderItem, 0, len(reqItems))
	for _, it := range reqItems {
		p, err := s.products.GetByID(ctx, *it.ProductID)
		if err == nil && it.Quantity > p.Stock {
			err = &InsufficientStockError{ProductID: p.ID, Requested: it.Quantity, Available: p.Stock}
		}
		if err == nil {
			err = s.products.UpdateStock(ctx, p.ID, p.Stock-it.Quantity)
		}
		if err != nil {
			if len(items) > 0 {
				log.Printf("orders: request failed after decrementing stock for %d item(s); stock is not restored: %v", len(items), err)
			}
			return nil, err
		}
		items = append(items, model.OrderItem{ProductID: p.ID, Quantity: it.Quantity, UnitPrice: p.Price})
	}
	return items, nil
}

func (s *Service) reserveTwoPhase(ctx context.Context, reqItems []model.OrderItemRequest) ([]model.OrderItem, error) {
	items := make([]model.OrderItem, 0, len(reqItems))
	remaining := make(map[int64]int)
	var touched []int64
	for _, it := range reqItems {
		p, err := s.products.GetByID(ctx, *it.ProductID)
		if err != nil {
			return nil, err
		}
		// repeated lines for one product draw from the same remaining stock
		left, seen := remaining[p.ID]
		if !seen {
			left = p.Stock
			touched = append(touched, p.ID)
		}
		if it.Quantity > left {
			return nil, &InsufficientStockError{ProductID: p.ID, Requested: it.Quantity, Available: left}
		}
		remaining[p.ID] = left - it.Quantity
		items = append(items, model.OrderItem{ProductID: p.ID, Quantity: it.Quantity, UnitPrice: p.Price})
	}
	for _, id := range touched {
		if err := s.products.UpdateStock(ctx, id, remaining[id]); err != nil {
			return nil, fmt.Errorf("apply stock for product %d: %w", id, err)
		}
	}
	return items, nil
}

// GetAllOrders returns every order in creation order.
func (s *Service) GetAllOrders(_ context.Context) ([]model.Order, error) {
	orders, err := s.orders.ListAll()
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	return orders, nil
}

func (s *Service) GetOrderByID(_ context.Context, id int64) (model.Order, error) {
	o, err := s.orders.FindByID(id)
	if errors.Is(err, state.ErrNotFound) {
		return model.Order{}, &OrderNotFoundError{ID: id}
	}
	if err != nil {
		return model.Order{}, fmt.Errorf("lookup order %d: %w", id, err)
	}
	return o, nil
}

func failureReason(err error) string {
	switch {
	case errors.Is(err, ErrInvalidOrder):
		return "invalid"
	case errors.Is(err, catalog.ErrProductNotFound):
		return "product_not_found"
	case errors.Is(err, ErrInsufficientStock):
		return "insufficient_stock"
	default:
		return "internal"
	}
}

// Exclusive runs fn while no order is being created, giving fn a consistent
// view of stock, orders and the changelog offset.
func (s *Service) Exclusive(fn func() error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return fn()
}
