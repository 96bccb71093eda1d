package cart

import (
	"context"
	"fmt"
	"strings"
	"sync"

	pkgerrors "github.com/foodsearch/storefront/pkg/errors"
	"github.com/foodsearch/storefront/pkg/logger"
	"github.com/foodsearch/storefront/pkg/metrics"
	"github.com/shopspring/decimal"
)

// Snapshots is the durable slot the cart persists itself into. A single
// fixed-name slot, written wholesale after every mutation, read once at
// composition time, erased on clear.
type Snapshots interface {
	Load(ctx context.Context) ([]LineItem, error)
	Save(ctx context.Context, items []LineItem) error
	Erase(ctx context.Context) error
}

// Store owns the cart's line items and their persisted copy. All mutations
// are serialized; each persists before the next is admitted.
type Store struct {
	mu        sync.Mutex
	items     []LineItem
	snapshots Snapshots
	logg      *logger.Logger
	metrics   *metrics.CheckoutMetrics
	observers []func()
}

// NewStore builds a cart store seeded with the rehydrated items.
func NewStore(initial []LineItem, snapshots Snapshots, logg *logger.Logger, m *metrics.CheckoutMetrics) (*Store, error) {
	if snapshots == nil {
		return nil, fmt.Errorf("cart snapshots required")
	}
	items := make([]LineItem, len(initial))
	copy(items, initial)
	return &Store{
		items:     items,
		snapshots: snapshots,
		logg:      logg,
		metrics:   m,
	}, nil
}

// Rehydrate reads the persisted snapshot, mapping corruption to an empty
// cart. This is the only read of the slot in the process lifetime.
func Rehydrate(ctx context.Context, snapshots Snapshots, logg *logger.Logger) []LineItem {
	items, err := snapshots.Load(ctx)
	if err != nil {
		if logg != nil {
			logg.Warn(logg.WithField(ctx, "error", err.Error()), "cart.snapshot_unreadable, starting empty")
		}
		return nil
	}
	return items
}

// Subscribe registers fn to run after every committed mutation.
func (s *Store) Subscribe(fn func()) {
	if fn == nil {
		return
	}
	s.mu.Lock()
	s.observers = append(s.observers, fn)
	s.mu.Unlock()
}

// AddItem merges the product into the cart: an existing line gains quantity,
// otherwise a new line is appended.
func (s *Store) AddItem(ctx context.Context, product ProductSnapshot, quantity int) error {
	if product.ID == 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "product id is required")
	}
	if strings.TrimSpace(product.Name) == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "product name is required")
	}
	if product.UnitPrice.IsNegative() {
		return pkgerrors.New(pkgerrors.CodeValidation, "unit price cannot be negative")
	}
	if quantity < 1 {
		return pkgerrors.New(pkgerrors.CodeValidation, "quantity must be at least 1")
	}

	s.mu.Lock()
	next := make([]LineItem, len(s.items))
	copy(next, s.items)

	merged := false
	for i := range next {
		if next[i].ProductID == product.ID {
			next[i].Quantity += quantity
			merged = true
			break
		}
	}
	if !merged {
		next = append(next, LineItem{
			ProductID:    product.ID,
			Name:         product.Name,
			UnitPrice:    product.UnitPrice,
			Quantity:     quantity,
			CategoryName: product.CategoryName,
			Image:        product.Image,
		})
	}

	if err := s.commit(ctx, next); err != nil {
		s.mu.Unlock()
		return err
	}
	s.mu.Unlock()

	s.metrics.IncCartMutation("add")
	s.notify()
	return nil
}

// RemoveItem drops the line with the given product id. Removing an absent
// product is a no-op, not an error.
func (s *Store) RemoveItem(ctx context.Context, productID int64) error {
	s.mu.Lock()
	next := make([]LineItem, 0, len(s.items))
	found := false
	for _, item := range s.items {
		if item.ProductID == productID {
			found = true
			continue
		}
		next = append(next, item)
	}
	if !found {
		s.mu.Unlock()
		return nil
	}

	if err := s.commit(ctx, next); err != nil {
		s.mu.Unlock()
		return err
	}
	s.mu.Unlock()

	s.metrics.IncCartMutation("remove")
	s.notify()
	return nil
}

// Clear empties the cart and erases the persisted snapshot. Idempotent.
func (s *Store) Clear(ctx context.Context) error {
	s.mu.Lock()
	if len(s.items) == 0 {
		s.mu.Unlock()
		return nil
	}

	if err := s.snapshots.Erase(ctx); err != nil {
		s.mu.Unlock()
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "erase cart snapshot")
	}
	s.items = nil
	s.mu.Unlock()

	s.metrics.IncCartMutation("clear")
	s.notify()
	return nil
}

// Items returns a copy of the line items in insertion order.
func (s *Store) Items() []LineItem {
	s.mu.Lock()
	defer s.mu.Unlock()
	items := make([]LineItem, len(s.items))
	copy(items, s.items)
	return items
}

// Totals recomputes the aggregates from the current line items.
func (s *Store) Totals() Totals {
	s.mu.Lock()
	defer s.mu.Unlock()
	totals := Totals{TotalPrice: decimal.Zero}
	for _, item := range s.items {
		totals.TotalItems += item.Quantity
		totals.TotalPrice = totals.TotalPrice.Add(item.Subtotal())
	}
	return totals
}

// commit persists the candidate item set and swaps it in only on success,
// so a failed write leaves the prior state fully intact.
func (s *Store) commit(ctx context.Context, next []LineItem) error {
	if err := s.snapshots.Save(ctx, next); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "persist cart snapshot")
	}
	s.items = next
	return nil
}

func (s *Store) notify() {
	s.mu.Lock()
	observers := make([]func(), len(s.observers))
	copy(observers, s.observers)
	s.mu.Unlock()
	for _, fn := range observers {
		fn()
	}
}
