package checkout

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/foodsearch/storefront/internal/cart"
	"github.com/foodsearch/storefront/internal/orders"
	"github.com/foodsearch/storefront/pkg/enums"
	pkgerrors "github.com/foodsearch/storefront/pkg/errors"
	"github.com/foodsearch/storefront/pkg/logger"
	"github.com/foodsearch/storefront/pkg/metrics"
	"github.com/google/uuid"
)

// Details is everything the shopper fills in before submitting: where the
// order goes and how it gets paid. CardNumber is only meaningful for card
// payment methods.
type Details struct {
	PaymentMethod   enums.PaymentMethod
	CardNumber      string
	DeliveryAddress string
}

// cartAccess is the slice of the cart store the machine needs.
type cartAccess interface {
	Items() []cart.LineItem
	Totals() cart.Totals
	Clear(ctx context.Context) error
}

// submitter places orders against the backend.
type submitter interface {
	Submit(ctx context.Context, submission orders.Submission, token string) (*orders.Order, error)
}

// tokenSource yields the current access token, empty when logged out.
type tokenSource interface {
	AccessToken() string
}

// submitGuard claims a durable lock per submission attempt, keeping the
// one-submission-at-a-time rule across restarts.
type submitGuard interface {
	Acquire(ctx context.Context, attemptID string) (bool, error)
	Release(ctx context.Context, attemptID string) error
}

// Machine drives the checkout flow through its states. All transitions are
// guarded by the current state; the order exchange itself runs outside the
// lock and its result is discarded if the session ended in the meantime.
type Machine struct {
	mu         sync.Mutex
	state      enums.CheckoutState
	details    Details
	failReason string
	lastOrder  *orders.Order
	generation uint64

	cart    cartAccess
	orders  submitter
	tokens  tokenSource
	guard   submitGuard
	logg    *logger.Logger
	metrics *metrics.CheckoutMetrics

	observers []func(enums.CheckoutState)
}

// NewMachine builds a checkout machine in the browsing state. A nil guard
// leaves only the in-process duplicate-submission check in place.
func NewMachine(cartStore cartAccess, orderClient submitter, tokens tokenSource, guard submitGuard, logg *logger.Logger, m *metrics.CheckoutMetrics) (*Machine, error) {
	if cartStore == nil {
		return nil, fmt.Errorf("cart access required")
	}
	if orderClient == nil {
		return nil, fmt.Errorf("order client required")
	}
	if tokens == nil {
		return nil, fmt.Errorf("token source required")
	}
	return &Machine{
		state:   enums.CheckoutStateBrowsing,
		cart:    cartStore,
		orders:  orderClient,
		tokens:  tokens,
		guard:   guard,
		logg:    logg,
		metrics: m,
	}, nil
}

// State returns the current checkout state.
func (m *Machine) State() enums.CheckoutState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Details returns a copy of the collected details.
func (m *Machine) Details() Details {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.details
}

// FailReason returns the stored reason when the machine is in the failed
// state, empty otherwise.
func (m *Machine) FailReason() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.failReason
}

// LastOrder returns the confirmation of the most recent completed checkout.
func (m *Machine) LastOrder() *orders.Order {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastOrder
}

// Subscribe registers fn to run after every state change.
func (m *Machine) Subscribe(fn func(enums.CheckoutState)) {
	if fn == nil {
		return
	}
	m.mu.Lock()
	m.observers = append(m.observers, fn)
	m.mu.Unlock()
}

// BeginReview moves browsing into reviewing. The cart must have at least one
// line item.
func (m *Machine) BeginReview(ctx context.Context) error {
	if len(m.cart.Items()) == 0 {
		return pkgerrors.New(pkgerrors.CodeStateConflict, "cart is empty")
	}

	m.mu.Lock()
	if m.state != enums.CheckoutStateBrowsing {
		state := m.state
		m.mu.Unlock()
		return transitionError(state, "begin review")
	}
	m.setStateLocked(ctx, enums.CheckoutStateReviewing)
	m.mu.Unlock()

	m.notify(enums.CheckoutStateReviewing)
	return nil
}

// BeginDetails moves reviewing into collecting details. A failed checkout can
// also return here to let the shopper fix the details and try again.
func (m *Machine) BeginDetails(ctx context.Context) error {
	m.mu.Lock()
	if m.state != enums.CheckoutStateReviewing && m.state != enums.CheckoutStateFailed {
		state := m.state
		m.mu.Unlock()
		return transitionError(state, "collect details")
	}
	m.failReason = ""
	m.setStateLocked(ctx, enums.CheckoutStateCollectingDetails)
	m.mu.Unlock()

	m.notify(enums.CheckoutStateCollectingDetails)
	return nil
}

// SetPaymentMethod records the payment method. Choosing a non-card method
// drops any card number entered earlier.
func (m *Machine) SetPaymentMethod(method enums.PaymentMethod) error {
	if !method.IsValid() {
		return pkgerrors.New(pkgerrors.CodeValidation, "unknown payment method").WithDetails(map[string]any{
			"method": string(method),
		})
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state != enums.CheckoutStateCollectingDetails {
		return transitionError(m.state, "set payment method")
	}
	m.details.PaymentMethod = method
	if !requiresCard(method) {
		m.details.CardNumber = ""
	}
	return nil
}

// SetCardNumber records the card number for card payment methods.
func (m *Machine) SetCardNumber(number string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state != enums.CheckoutStateCollectingDetails {
		return transitionError(m.state, "set card number")
	}
	if !requiresCard(m.details.PaymentMethod) {
		return pkgerrors.New(pkgerrors.CodeValidation, "card number only applies to card payments")
	}
	m.details.CardNumber = strings.TrimSpace(number)
	return nil
}

// SetDeliveryAddress records where the order should be delivered.
func (m *Machine) SetDeliveryAddress(address string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state != enums.CheckoutStateCollectingDetails {
		return transitionError(m.state, "set delivery address")
	}
	m.details.DeliveryAddress = strings.TrimSpace(address)
	return nil
}

// Submit places the order. The machine snapshots the cart and details, holds
// the submitting state, and runs the exchange without the lock. The outcome
// is committed only if no reset happened while the request was in flight.
func (m *Machine) Submit(ctx context.Context) (*orders.Order, error) {
	m.mu.Lock()
	if m.state == enums.CheckoutStateSubmitting {
		m.mu.Unlock()
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "an order submission is already in flight")
	}
	if m.state != enums.CheckoutStateCollectingDetails && m.state != enums.CheckoutStateFailed {
		state := m.state
		m.mu.Unlock()
		return nil, transitionError(state, "submit")
	}
	if err := m.details.complete(); err != nil {
		m.mu.Unlock()
		return nil, err
	}

	items := m.cart.Items()
	if len(items) == 0 {
		m.mu.Unlock()
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "cart is empty")
	}

	details := m.details
	gen := m.generation
	prev := m.state
	m.failReason = ""
	m.setStateLocked(ctx, enums.CheckoutStateSubmitting)
	m.mu.Unlock()
	m.notify(enums.CheckoutStateSubmitting)

	attemptID := uuid.NewString()
	if m.guard != nil {
		ok, err := m.guard.Acquire(ctx, attemptID)
		if err != nil || !ok {
			m.mu.Lock()
			reverted := m.generation == gen
			if reverted {
				m.setStateLocked(ctx, prev)
			}
			m.mu.Unlock()
			if reverted {
				m.notify(prev)
			}
			if err != nil {
				return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "claim submit lock")
			}
			return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "an order submission is already in flight")
		}
	}

	submission := buildSubmission(items, details)
	order, submitErr := m.orders.Submit(ctx, submission, m.tokens.AccessToken())

	if m.guard != nil {
		if err := m.guard.Release(ctx, attemptID); err != nil && m.logg != nil {
			m.logg.Error(ctx, "checkout.submit_lock_release_failed", err)
		}
	}

	m.mu.Lock()
	if m.generation != gen {
		m.mu.Unlock()
		m.metrics.IncSubmission("discarded")
		if m.logg != nil {
			m.logg.Warn(ctx, "checkout.result_discarded, session ended mid-flight")
		}
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "session ended during submission")
	}

	if submitErr != nil {
		m.failReason = failureReason(submitErr)
		m.setStateLocked(ctx, enums.CheckoutStateFailed)
		m.mu.Unlock()

		m.metrics.IncSubmission("failed")
		m.notify(enums.CheckoutStateFailed)
		return nil, submitErr
	}

	m.lastOrder = order
	m.setStateLocked(ctx, enums.CheckoutStateCompleted)
	m.mu.Unlock()

	// The order is placed; the cart has served its purpose.
	if err := m.cart.Clear(ctx); err != nil && m.logg != nil {
		m.logg.Error(ctx, "checkout.cart_clear_failed", err)
	}

	m.metrics.IncSubmission("completed")
	m.notify(enums.CheckoutStateCompleted)
	return order, nil
}

// Reset returns the machine to browsing and invalidates any in-flight
// submission, whose result will be discarded when it lands.
func (m *Machine) Reset(ctx context.Context) {
	m.mu.Lock()
	m.generation++
	m.details = Details{}
	m.failReason = ""
	m.setStateLocked(ctx, enums.CheckoutStateBrowsing)
	m.mu.Unlock()

	m.notify(enums.CheckoutStateBrowsing)
}

func (m *Machine) setStateLocked(ctx context.Context, next enums.CheckoutState) {
	if m.logg != nil && m.state != next {
		m.logg.Info(m.logg.WithCheckoutState(ctx, next.String()), "checkout.transition")
	}
	m.state = next
}

func (m *Machine) notify(state enums.CheckoutState) {
	m.mu.Lock()
	observers := make([]func(enums.CheckoutState), len(m.observers))
	copy(observers, m.observers)
	m.mu.Unlock()
	for _, fn := range observers {
		fn(state)
	}
}

// complete validates that every required detail has been collected.
func (d Details) complete() error {
	missing := make([]string, 0, 3)
	if !d.PaymentMethod.IsValid() {
		missing = append(missing, "payment_method")
	}
	if requiresCard(d.PaymentMethod) && strings.TrimSpace(d.CardNumber) == "" {
		missing = append(missing, "card_number")
	}
	if strings.TrimSpace(d.DeliveryAddress) == "" {
		missing = append(missing, "delivery_address")
	}
	if len(missing) > 0 {
		return pkgerrors.New(pkgerrors.CodeStateConflict, "checkout details are incomplete").WithDetails(map[string]any{
			"missing": missing,
		})
	}
	return nil
}

func requiresCard(method enums.PaymentMethod) bool {
	return method == enums.PaymentMethodCredito || method == enums.PaymentMethodDebito
}

func buildSubmission(items []cart.LineItem, details Details) orders.Submission {
	submissionItems := make([]orders.SubmissionItem, 0, len(items))
	for _, item := range items {
		submissionItems = append(submissionItems, orders.SubmissionItem{
			ProductID: item.ProductID,
			Quantity:  item.Quantity,
		})
	}
	return orders.Submission{
		Items:           submissionItems,
		DeliveryAddress: details.DeliveryAddress,
		PaymentMethod:   details.PaymentMethod.String(),
		CardNumber:      details.CardNumber,
	}
}

func transitionError(state enums.CheckoutState, action string) error {
	return pkgerrors.New(pkgerrors.CodeStateConflict, "cannot "+action+" from the current checkout state").WithDetails(map[string]any{
		"state": state.String(),
	})
}

func failureReason(err error) string {
	if appErr := pkgerrors.As(err); appErr != nil {
		return appErr.Message()
	}
	return err.Error()
}
