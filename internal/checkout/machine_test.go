package checkout

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/foodsearch/storefront/internal/cart"
	"github.com/foodsearch/storefront/internal/orders"
	"github.com/foodsearch/storefront/pkg/enums"
	pkgerrors "github.com/foodsearch/storefront/pkg/errors"
	"github.com/shopspring/decimal"
)

type fakeCart struct {
	mu      sync.Mutex
	items   []cart.LineItem
	cleared int
}

func (f *fakeCart) Items() []cart.LineItem {
	f.mu.Lock()
	defer f.mu.Unlock()
	items := make([]cart.LineItem, len(f.items))
	copy(items, f.items)
	return items
}

func (f *fakeCart) Totals() cart.Totals {
	totals := cart.Totals{TotalPrice: decimal.Zero}
	for _, item := range f.Items() {
		totals.TotalItems += item.Quantity
		totals.TotalPrice = totals.TotalPrice.Add(item.Subtotal())
	}
	return totals
}

func (f *fakeCart) Clear(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.items = nil
	f.cleared++
	return nil
}

func (f *fakeCart) clearCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.cleared
}

type fakeSubmitter struct {
	submit func(orders.Submission, string) (*orders.Order, error)
	gate   chan struct{}
}

func (f *fakeSubmitter) Submit(_ context.Context, submission orders.Submission, token string) (*orders.Order, error) {
	if f.gate != nil {
		<-f.gate
	}
	return f.submit(submission, token)
}

type fakeTokens struct{ token string }

func (f *fakeTokens) AccessToken() string { return f.token }

func stockedCart() *fakeCart {
	return &fakeCart{items: []cart.LineItem{
		{ProductID: 1, Name: "Arroz", UnitPrice: decimal.RequireFromString("20.50"), Quantity: 2},
		{ProductID: 2, Name: "Feijão", UnitPrice: decimal.RequireFromString("8.25"), Quantity: 1},
	}}
}

func confirmedOrder() *orders.Order {
	return &orders.Order{ID: 42, Status: enums.OrderStatusOpen, Total: decimal.RequireFromString("49.25")}
}

func newTestMachine(t *testing.T, shopperCart *fakeCart, submitter *fakeSubmitter) *Machine {
	t.Helper()
	machine, err := NewMachine(shopperCart, submitter, &fakeTokens{token: "tok"}, nil, nil, nil)
	if err != nil {
		t.Fatalf("NewMachine failed: %v", err)
	}
	return machine
}

func advanceToDetails(t *testing.T, machine *Machine) {
	t.Helper()
	ctx := context.Background()
	if err := machine.BeginReview(ctx); err != nil {
		t.Fatalf("BeginReview failed: %v", err)
	}
	if err := machine.BeginDetails(ctx); err != nil {
		t.Fatalf("BeginDetails failed: %v", err)
	}
	if err := machine.SetPaymentMethod(enums.PaymentMethodPix); err != nil {
		t.Fatalf("SetPaymentMethod failed: %v", err)
	}
	if err := machine.SetDeliveryAddress("Rua das Flores, 100"); err != nil {
		t.Fatalf("SetDeliveryAddress failed: %v", err)
	}
}

func TestHappyPathCompletesAndClearsCart(t *testing.T) {
	t.Parallel()

	shopperCart := stockedCart()
	var gotSubmission orders.Submission
	submitter := &fakeSubmitter{submit: func(s orders.Submission, token string) (*orders.Order, error) {
		gotSubmission = s
		if token != "tok" {
			t.Errorf("expected access token to be forwarded, got %q", token)
		}
		return confirmedOrder(), nil
	}}
	machine := newTestMachine(t, shopperCart, submitter)
	advanceToDetails(t, machine)

	order, err := machine.Submit(context.Background())
	if err != nil {
		t.Fatalf("Submit failed: %v", err)
	}

	if machine.State() != enums.CheckoutStateCompleted {
		t.Fatalf("expected completed, got %s", machine.State())
	}
	if order.ID != 42 || machine.LastOrder().ID != 42 {
		t.Fatalf("confirmation not recorded: %+v", machine.LastOrder())
	}
	if shopperCart.clearCount() != 1 {
		t.Fatal("cart must be cleared exactly once after completion")
	}
	if len(gotSubmission.Items) != 2 || gotSubmission.Items[0].ProductID != 1 || gotSubmission.Items[0].Quantity != 2 {
		t.Fatalf("submission not built from the cart: %+v", gotSubmission)
	}
	if gotSubmission.PaymentMethod != "pix" || gotSubmission.DeliveryAddress != "Rua das Flores, 100" {
		t.Fatalf("submission missing details: %+v", gotSubmission)
	}
}

func TestBeginReviewRequiresItems(t *testing.T) {
	t.Parallel()

	machine := newTestMachine(t, &fakeCart{}, &fakeSubmitter{})
	err := machine.BeginReview(context.Background())
	if !pkgerrors.IsCode(err, pkgerrors.CodeStateConflict) {
		t.Fatalf("expected state conflict, got %v", err)
	}
	if machine.State() != enums.CheckoutStateBrowsing {
		t.Fatalf("state must not advance, got %s", machine.State())
	}
}

func TestSubmitRequiresCompleteDetails(t *testing.T) {
	t.Parallel()

	machine := newTestMachine(t, stockedCart(), &fakeSubmitter{})
	ctx := context.Background()
	if err := machine.BeginReview(ctx); err != nil {
		t.Fatalf("BeginReview failed: %v", err)
	}
	if err := machine.BeginDetails(ctx); err != nil {
		t.Fatalf("BeginDetails failed: %v", err)
	}

	_, err := machine.Submit(ctx)
	if !pkgerrors.IsCode(err, pkgerrors.CodeStateConflict) {
		t.Fatalf("expected state conflict for missing details, got %v", err)
	}
	if machine.State() != enums.CheckoutStateCollectingDetails {
		t.Fatalf("incomplete submit must not leave collecting, got %s", machine.State())
	}
}

func TestCardNumberOnlyForCardMethods(t *testing.T) {
	t.Parallel()

	machine := newTestMachine(t, stockedCart(), &fakeSubmitter{})
	ctx := context.Background()
	if err := machine.BeginReview(ctx); err != nil {
		t.Fatalf("BeginReview failed: %v", err)
	}
	if err := machine.BeginDetails(ctx); err != nil {
		t.Fatalf("BeginDetails failed: %v", err)
	}

	if err := machine.SetPaymentMethod(enums.PaymentMethodPix); err != nil {
		t.Fatalf("SetPaymentMethod failed: %v", err)
	}
	if err := machine.SetCardNumber("4111111111111111"); !pkgerrors.IsCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("card number must be rejected for pix, got %v", err)
	}

	if err := machine.SetPaymentMethod(enums.PaymentMethodCredito); err != nil {
		t.Fatalf("SetPaymentMethod failed: %v", err)
	}
	if err := machine.SetCardNumber("4111111111111111"); err != nil {
		t.Fatalf("SetCardNumber failed: %v", err)
	}

	// Switching back to a non-card method drops the number.
	if err := machine.SetPaymentMethod(enums.PaymentMethodBoleto); err != nil {
		t.Fatalf("SetPaymentMethod failed: %v", err)
	}
	if machine.Details().CardNumber != "" {
		t.Fatal("card number must be dropped when switching to a non-card method")
	}
}

func TestFailedSubmitKeepsCartAndAllowsRetry(t *testing.T) {
	t.Parallel()

	shopperCart := stockedCart()
	attempts := 0
	submitter := &fakeSubmitter{submit: func(orders.Submission, string) (*orders.Order, error) {
		attempts++
		if attempts == 1 {
			return nil, pkgerrors.New(pkgerrors.CodeRejected, "Estoque insuficiente para Arroz")
		}
		return confirmedOrder(), nil
	}}
	machine := newTestMachine(t, shopperCart, submitter)
	advanceToDetails(t, machine)
	ctx := context.Background()

	if _, err := machine.Submit(ctx); !pkgerrors.IsCode(err, pkgerrors.CodeRejected) {
		t.Fatalf("expected rejection to surface, got %v", err)
	}
	if machine.State() != enums.CheckoutStateFailed {
		t.Fatalf("expected failed, got %s", machine.State())
	}
	if machine.FailReason() != "Estoque insuficiente para Arroz" {
		t.Fatalf("expected backend reason, got %q", machine.FailReason())
	}
	if shopperCart.clearCount() != 0 {
		t.Fatal("failed submit must leave the cart untouched")
	}

	// Retry straight from failed with the same details.
	if _, err := machine.Submit(ctx); err != nil {
		t.Fatalf("retry failed: %v", err)
	}
	if machine.State() != enums.CheckoutStateCompleted {
		t.Fatalf("expected completed after retry, got %s", machine.State())
	}
	if machine.FailReason() != "" {
		t.Fatalf("fail reason must reset on retry, got %q", machine.FailReason())
	}
}

func TestConcurrentSubmitRejected(t *testing.T) {
	t.Parallel()

	gate := make(chan struct{})
	submitter := &fakeSubmitter{
		gate:   gate,
		submit: func(orders.Submission, string) (*orders.Order, error) { return confirmedOrder(), nil },
	}
	machine := newTestMachine(t, stockedCart(), submitter)
	advanceToDetails(t, machine)
	ctx := context.Background()

	done := make(chan error, 1)
	go func() {
		_, err := machine.Submit(ctx)
		done <- err
	}()

	waitForState(t, machine, enums.CheckoutStateSubmitting)

	if _, err := machine.Submit(ctx); !pkgerrors.IsCode(err, pkgerrors.CodeStateConflict) {
		t.Fatalf("expected conflict while in flight, got %v", err)
	}

	close(gate)
	if err := <-done; err != nil {
		t.Fatalf("first submit failed: %v", err)
	}
}

func TestResetMidFlightDiscardsResult(t *testing.T) {
	t.Parallel()

	shopperCart := stockedCart()
	gate := make(chan struct{})
	submitter := &fakeSubmitter{
		gate:   gate,
		submit: func(orders.Submission, string) (*orders.Order, error) { return confirmedOrder(), nil },
	}
	machine := newTestMachine(t, shopperCart, submitter)
	advanceToDetails(t, machine)
	ctx := context.Background()

	done := make(chan error, 1)
	go func() {
		_, err := machine.Submit(ctx)
		done <- err
	}()

	waitForState(t, machine, enums.CheckoutStateSubmitting)

	// Session ends while the request is in flight.
	machine.Reset(ctx)
	close(gate)

	if err := <-done; !pkgerrors.IsCode(err, pkgerrors.CodeStateConflict) {
		t.Fatalf("expected discarded result to surface as conflict, got %v", err)
	}
	if machine.State() != enums.CheckoutStateBrowsing {
		t.Fatalf("reset must win over the landing response, got %s", machine.State())
	}
	if machine.LastOrder() != nil {
		t.Fatal("discarded confirmation must not be recorded")
	}
	if shopperCart.clearCount() != 0 {
		t.Fatal("discarded completion must not clear the cart")
	}
}

func TestResetClearsDetailsAndFailure(t *testing.T) {
	t.Parallel()

	submitter := &fakeSubmitter{submit: func(orders.Submission, string) (*orders.Order, error) {
		return nil, pkgerrors.New(pkgerrors.CodeNetwork, "backend unreachable")
	}}
	machine := newTestMachine(t, stockedCart(), submitter)
	advanceToDetails(t, machine)
	ctx := context.Background()

	if _, err := machine.Submit(ctx); err == nil {
		t.Fatal("expected submit failure")
	}

	machine.Reset(ctx)
	if machine.State() != enums.CheckoutStateBrowsing {
		t.Fatalf("expected browsing after reset, got %s", machine.State())
	}
	if machine.Details() != (Details{}) {
		t.Fatalf("details must be wiped, got %+v", machine.Details())
	}
	if machine.FailReason() != "" {
		t.Fatalf("fail reason must be wiped, got %q", machine.FailReason())
	}
}

func TestObserversSeeTransitions(t *testing.T) {
	t.Parallel()

	machine := newTestMachine(t, stockedCart(), &fakeSubmitter{})
	var mu sync.Mutex
	var seen []enums.CheckoutState
	machine.Subscribe(func(state enums.CheckoutState) {
		mu.Lock()
		seen = append(seen, state)
		mu.Unlock()
	})

	ctx := context.Background()
	if err := machine.BeginReview(ctx); err != nil {
		t.Fatalf("BeginReview failed: %v", err)
	}
	if err := machine.BeginDetails(ctx); err != nil {
		t.Fatalf("BeginDetails failed: %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(seen) != 2 || seen[0] != enums.CheckoutStateReviewing || seen[1] != enums.CheckoutStateCollectingDetails {
		t.Fatalf("unexpected notifications: %v", seen)
	}
}

type fakeGuard struct {
	mu       sync.Mutex
	busy     bool
	acquired []string
	released []string
}

func (f *fakeGuard) Acquire(_ context.Context, attemptID string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.busy {
		return false, nil
	}
	f.acquired = append(f.acquired, attemptID)
	return true, nil
}

func (f *fakeGuard) Release(_ context.Context, attemptID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.released = append(f.released, attemptID)
	return nil
}

func newGuardedMachine(t *testing.T, shopperCart *fakeCart, submitter *fakeSubmitter, guard *fakeGuard) *Machine {
	t.Helper()
	machine, err := NewMachine(shopperCart, submitter, &fakeTokens{token: "tok"}, guard, nil, nil)
	if err != nil {
		t.Fatalf("NewMachine failed: %v", err)
	}
	return machine
}

func TestSubmitClaimsAndReleasesDurableLock(t *testing.T) {
	t.Parallel()

	guard := &fakeGuard{}
	submitter := &fakeSubmitter{submit: func(orders.Submission, string) (*orders.Order, error) {
		return confirmedOrder(), nil
	}}
	machine := newGuardedMachine(t, stockedCart(), submitter, guard)
	advanceToDetails(t, machine)

	if _, err := machine.Submit(context.Background()); err != nil {
		t.Fatalf("Submit failed: %v", err)
	}

	if len(guard.acquired) != 1 {
		t.Fatalf("expected one lock claim, got %d", len(guard.acquired))
	}
	if len(guard.released) != 1 || guard.released[0] != guard.acquired[0] {
		t.Fatalf("lock must be released with the claiming token: acquired=%v released=%v", guard.acquired, guard.released)
	}
	if guard.acquired[0] == "" {
		t.Fatal("attempt token must not be empty")
	}
}

func TestBusyDurableLockRejectsSubmit(t *testing.T) {
	t.Parallel()

	guard := &fakeGuard{busy: true}
	calls := 0
	submitter := &fakeSubmitter{submit: func(orders.Submission, string) (*orders.Order, error) {
		calls++
		return confirmedOrder(), nil
	}}
	machine := newGuardedMachine(t, stockedCart(), submitter, guard)
	advanceToDetails(t, machine)

	_, err := machine.Submit(context.Background())
	if !pkgerrors.IsCode(err, pkgerrors.CodeStateConflict) {
		t.Fatalf("expected conflict while the lock is held elsewhere, got %v", err)
	}
	if calls != 0 {
		t.Fatal("no order may be placed without holding the lock")
	}
	if machine.State() != enums.CheckoutStateCollectingDetails {
		t.Fatalf("machine must return to collecting details, got %s", machine.State())
	}

	// Lock frees up; the same attempt goes through.
	guard.mu.Lock()
	guard.busy = false
	guard.mu.Unlock()
	if _, err := machine.Submit(context.Background()); err != nil {
		t.Fatalf("Submit after lock release failed: %v", err)
	}
}

func TestFailedSubmitReleasesDurableLock(t *testing.T) {
	t.Parallel()

	guard := &fakeGuard{}
	submitter := &fakeSubmitter{submit: func(orders.Submission, string) (*orders.Order, error) {
		return nil, pkgerrors.New(pkgerrors.CodeNetwork, "backend unreachable")
	}}
	machine := newGuardedMachine(t, stockedCart(), submitter, guard)
	advanceToDetails(t, machine)

	if _, err := machine.Submit(context.Background()); err == nil {
		t.Fatal("expected submit failure")
	}
	if len(guard.released) != 1 {
		t.Fatalf("failed submit must still release the lock, released=%v", guard.released)
	}
}

func TestSubmitTransitionGuards(t *testing.T) {
	t.Parallel()

	attempts := 0
	submitter := &fakeSubmitter{submit: func(orders.Submission, string) (*orders.Order, error) {
		attempts++
		if attempts == 1 {
			return nil, pkgerrors.New(pkgerrors.CodeRejected, "Estoque insuficiente para Arroz")
		}
		return confirmedOrder(), nil
	}}
	machine := newTestMachine(t, stockedCart(), submitter)
	ctx := context.Background()

	// Neither browsing nor reviewing may submit.
	if _, err := machine.Submit(ctx); !pkgerrors.IsCode(err, pkgerrors.CodeStateConflict) {
		t.Fatalf("expected conflict from browsing, got %v", err)
	}
	if err := machine.BeginReview(ctx); err != nil {
		t.Fatalf("BeginReview failed: %v", err)
	}
	if _, err := machine.Submit(ctx); !pkgerrors.IsCode(err, pkgerrors.CodeStateConflict) {
		t.Fatalf("expected conflict from reviewing, got %v", err)
	}
	if attempts != 0 {
		t.Fatalf("no exchange may run before collecting details, got %d", attempts)
	}

	// Collecting details with complete details may submit; after a failure the
	// machine accepts a retry directly from failed.
	if err := machine.BeginDetails(ctx); err != nil {
		t.Fatalf("BeginDetails failed: %v", err)
	}
	if err := machine.SetPaymentMethod(enums.PaymentMethodPix); err != nil {
		t.Fatalf("SetPaymentMethod failed: %v", err)
	}
	if err := machine.SetDeliveryAddress("Rua das Flores, 100"); err != nil {
		t.Fatalf("SetDeliveryAddress failed: %v", err)
	}
	if _, err := machine.Submit(ctx); !pkgerrors.IsCode(err, pkgerrors.CodeRejected) {
		t.Fatalf("expected first attempt to surface the rejection, got %v", err)
	}
	if machine.State() != enums.CheckoutStateFailed {
		t.Fatalf("expected failed, got %s", machine.State())
	}
	if _, err := machine.Submit(ctx); err != nil {
		t.Fatalf("retry from failed must be accepted, got %v", err)
	}

	// Completed is terminal for submission.
	if _, err := machine.Submit(ctx); !pkgerrors.IsCode(err, pkgerrors.CodeStateConflict) {
		t.Fatalf("expected conflict from completed, got %v", err)
	}
}

func waitForState(t *testing.T, machine *Machine, want enums.CheckoutState) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if machine.State() == want {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("timed out waiting for state %s, at %s", want, machine.State())
}
