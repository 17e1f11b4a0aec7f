package checkout

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/tinysprouts/tinysprouts-backend/internal/cart"
	"github.com/tinysprouts/tinysprouts-backend/internal/orders"
	pkgerrors "github.com/tinysprouts/tinysprouts-backend/pkg/errors"
	"github.com/tinysprouts/tinysprouts-backend/pkg/logger"
	rzp "github.com/tinysprouts/tinysprouts-backend/pkg/razorpay"
)

type stubCart struct {
	state   cart.State
	cleared int
}

func (s *stubCart) Load(ctx context.Context, cartID string) cart.State {
	return s.state
}

func (s *stubCart) Clear(ctx context.Context, cartID string) cart.State {
	s.cleared++
	s.state = cart.EmptyState()
	return s.state
}

type stubGateway struct {
	createErr  error
	order      *rzp.Order
	verifyOK   bool
	created    int
	lastParams rzp.OrderCreateParams
}

func (s *stubGateway) CreateOrder(ctx context.Context, params rzp.OrderCreateParams) (*rzp.Order, error) {
	s.created++
	s.lastParams = params
	if s.createErr != nil {
		return nil, s.createErr
	}
	return s.order, nil
}

func (s *stubGateway) VerifyPaymentSignature(orderID, paymentID, signature string) bool {
	return s.verifyOK
}

func (s *stubGateway) KeyID() string { return "rzp_test_abc" }

type stubGuard struct {
	held map[string]bool
}

func newStubGuard() *stubGuard { return &stubGuard{held: make(map[string]bool)} }

func (s *stubGuard) SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error) {
	if s.held[key] {
		return false, nil
	}
	s.held[key] = true
	return true, nil
}

func (s *stubGuard) Del(ctx context.Context, keys ...string) error {
	for _, key := range keys {
		delete(s.held, key)
	}
	return nil
}

func (s *stubGuard) CheckoutGuardKey(cartID string) string {
	return "guard:" + cartID
}

type stubRecorder struct {
	recorded []orders.Confirmation
	err      error
}

func (s *stubRecorder) Record(ctx context.Context, conf orders.Confirmation) error {
	if s.err != nil {
		return s.err
	}
	s.recorded = append(s.recorded, conf)
	return nil
}

type fixture struct {
	svc      Service
	carts    *stubCart
	gateway  *stubGateway
	guard    *stubGuard
	recorder *stubRecorder
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	return newFixtureTTL(t, 10*time.Minute)
}

func newFixtureTTL(t *testing.T, processingTTL time.Duration) *fixture {
	t.Helper()
	carts := &stubCart{state: cartWithItem()}
	gateway := &stubGateway{
		order:    &rzp.Order{ID: "order_ABC", Status: "created"},
		verifyOK: true,
	}
	guard := newStubGuard()
	recorder := &stubRecorder{}

	cfg := testCheckoutConfig()
	cfg.ProcessingTTL = processingTTL
	svc, err := NewService(carts, gateway, guard, recorder, cfg, nil,
		logger.New(logger.Options{ServiceName: "checkout-test"}))
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	return &fixture{svc: svc, carts: carts, gateway: gateway, guard: guard, recorder: recorder}
}

func cartWithItem() cart.State {
	state := cart.Apply(cart.EmptyState(), cart.AddItem{Item: cart.LineItem{
		ProductID: "42",
		UnitPrice: decimal.RequireFromString("1000"),
		Name:      "Plush Bear",
	}})
	return state
}

func validForm() ShippingForm {
	return ShippingForm{
		FirstName: "Asha",
		Email:     "asha@example.com",
		Address:   "12 MG Road",
		Phone:     "9876543210",
	}
}

func advanceToReview(t *testing.T, f *fixture, cartID string) {
	t.Helper()
	ctx := context.Background()
	if _, err := f.svc.SubmitShipping(ctx, cartID, validForm()); err != nil {
		t.Fatalf("submit shipping: %v", err)
	}
	if _, err := f.svc.SubmitPayment(ctx, cartID, "online"); err != nil {
		t.Fatalf("submit payment: %v", err)
	}
}

func TestFlowStartsAtShipping(t *testing.T) {
	f := newFixture(t)
	flow := f.svc.Flow(context.Background(), "c1")
	if flow.Step != StepShipping {
		t.Fatalf("expected initial step shipping, got %s", flow.Step)
	}
	if flow.Processing() {
		t.Fatalf("new flow must not be processing")
	}
}

func TestSubmitShippingValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	form := validForm()
	form.FirstName = ""
	flow, err := f.svc.SubmitShipping(ctx, "c1", form)
	if err == nil {
		t.Fatalf("expected validation error")
	}
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeValidation {
		t.Fatalf("expected validation code, got %v", err)
	}
	details, ok := typed.Details().(map[string]string)
	if !ok || details["firstname"] == "" {
		t.Fatalf("expected field-level details, got %v", typed.Details())
	}
	if flow.Step != StepShipping {
		t.Fatalf("failed validation must not advance the step")
	}

	flow, err = f.svc.SubmitShipping(ctx, "c1", validForm())
	if err != nil {
		t.Fatalf("valid form rejected: %v", err)
	}
	if flow.Step != StepPayment {
		t.Fatalf("expected step payment, got %s", flow.Step)
	}
}

func TestStepOrderIsEnforced(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	// Payment cannot be submitted before shipping.
	if _, err := f.svc.SubmitPayment(ctx, "c1", "online"); err == nil {
		t.Fatalf("expected conflict submitting payment from shipping")
	}

	// Back from the first step is rejected.
	if _, err := f.svc.Back(ctx, "c1"); err == nil {
		t.Fatalf("expected error backing out of shipping")
	}

	advanceToReview(t, f, "c1")

	// Back walks Review -> Payment without revalidation.
	flow, err := f.svc.Back(ctx, "c1")
	if err != nil {
		t.Fatalf("back: %v", err)
	}
	if flow.Step != StepPayment {
		t.Fatalf("expected step payment after back, got %s", flow.Step)
	}
}

func TestReviewRecomputesQuote(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	advanceToReview(t, f, "c1")

	quote, err := f.svc.Review(ctx, "c1")
	if err != nil {
		t.Fatalf("review: %v", err)
	}
	if !quote.Subtotal.Equal(decimal.RequireFromString("1000")) {
		t.Fatalf("expected subtotal 1000, got %s", quote.Subtotal)
	}
	if !quote.Total.Equal(decimal.RequireFromString("1180")) {
		t.Fatalf("expected total 1180, got %s", quote.Total)
	}

	// The quote follows the live cart, not a stored copy.
	f.carts.state = cart.Apply(f.carts.state, cart.UpdateQuantity{
		Selector: cart.Selector{ProductID: "42"}, Quantity: 2,
	})
	quote, err = f.svc.Review(ctx, "c1")
	if err != nil {
		t.Fatalf("review: %v", err)
	}
	if !quote.Subtotal.Equal(decimal.RequireFromString("2000")) {
		t.Fatalf("expected subtotal 2000 after cart change, got %s", quote.Subtotal)
	}
}

func TestBeginCreatesGatewayOrder(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	advanceToReview(t, f, "c1")

	result, err := f.svc.Begin(ctx, Identity{CartID: "c1", UserID: "u1"})
	if err != nil {
		t.Fatalf("begin: %v", err)
	}
	if result.OrderID != "order_ABC" {
		t.Fatalf("unexpected order id %q", result.OrderID)
	}
	if result.AmountPaise != 118000 {
		t.Fatalf("expected 118000 paise, got %d", result.AmountPaise)
	}
	if result.KeyID != "rzp_test_abc" || result.Currency != "INR" {
		t.Fatalf("unexpected result %+v", result)
	}
	if result.Prefill.Name != "Asha" || result.Prefill.Email != "asha@example.com" {
		t.Fatalf("unexpected prefill %+v", result.Prefill)
	}
	if f.gateway.lastParams.Notes["cart_id"] != "c1" {
		t.Fatalf("cart id note missing: %+v", f.gateway.lastParams.Notes)
	}
	if !f.guard.held["guard:c1"] {
		t.Fatalf("processing guard must be held after begin")
	}
}

func TestBeginRejectsDuplicateSubmission(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	advanceToReview(t, f, "c1")

	if _, err := f.svc.Begin(ctx, Identity{CartID: "c1", UserID: "u1"}); err != nil {
		t.Fatalf("first begin: %v", err)
	}
	_, err := f.svc.Begin(ctx, Identity{CartID: "c1", UserID: "u1"})
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeConflict {
		t.Fatalf("expected conflict on duplicate begin, got %v", err)
	}
	if f.gateway.created != 1 {
		t.Fatalf("second begin must not reach the gateway, got %d calls", f.gateway.created)
	}
}

func TestBeginGatewayFailureReleasesGuard(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	advanceToReview(t, f, "c1")

	f.gateway.createErr = pkgerrors.Wrap(pkgerrors.CodeDependency, errors.New("gateway down"), "razorpay create order failed")
	_, err := f.svc.Begin(ctx, Identity{CartID: "c1", UserID: "u1"})
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeDependency {
		t.Fatalf("expected dependency error, got %v", err)
	}
	if f.guard.held["guard:c1"] {
		t.Fatalf("guard must be released when the gateway is unavailable")
	}
	if f.carts.cleared != 0 {
		t.Fatalf("cart must be untouched on gateway failure")
	}

	// The same review step can be retried once the gateway recovers.
	f.gateway.createErr = nil
	if _, err := f.svc.Begin(ctx, Identity{CartID: "c1", UserID: "u1"}); err != nil {
		t.Fatalf("retry after gateway recovery: %v", err)
	}
}

func TestBackUnblocksAfterHandoffExpires(t *testing.T) {
	f := newFixtureTTL(t, time.Nanosecond)
	ctx := context.Background()
	advanceToReview(t, f, "c1")

	if _, err := f.svc.Begin(ctx, Identity{CartID: "c1", UserID: "u1"}); err != nil {
		t.Fatalf("begin: %v", err)
	}

	// The guard TTL has lapsed by now; the abandoned handoff must not keep
	// the shopper stuck on the review step.
	flow, err := f.svc.Back(ctx, "c1")
	if err != nil {
		t.Fatalf("back after handoff expiry: %v", err)
	}
	if flow.Step != StepPayment {
		t.Fatalf("expected payment step, got %s", flow.Step)
	}
	if flow.Processing() {
		t.Fatalf("stale handoff must be cleared once the guard TTL lapses")
	}

	// Once redis drops the guard key, a fresh handoff can begin too.
	delete(f.guard.held, "guard:c1")
	if _, err := f.svc.SubmitPayment(ctx, "c1", "online"); err != nil {
		t.Fatalf("re-submit payment: %v", err)
	}
	if _, err := f.svc.Begin(ctx, Identity{CartID: "c1", UserID: "u1"}); err != nil {
		t.Fatalf("retry begin after expiry: %v", err)
	}
	if f.gateway.created != 2 {
		t.Fatalf("expected a second gateway order, got %d calls", f.gateway.created)
	}
}

func TestIdleFlowsAreSwept(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	if _, err := f.svc.SubmitShipping(ctx, "stale", validForm()); err != nil {
		t.Fatalf("shipping: %v", err)
	}

	svc := f.svc.(*service)
	svc.mu.Lock()
	svc.touched["stale"] = time.Now().Add(-2 * flowIdleTTL)
	svc.mu.Unlock()

	// Any flow access sweeps idle entries before serving the request.
	f.svc.Flow(ctx, "other")

	svc.mu.Lock()
	_, kept := svc.flows["stale"]
	svc.mu.Unlock()
	if kept {
		t.Fatalf("idle flow must be evicted")
	}
	if flow := f.svc.Flow(ctx, "stale"); flow.Step != StepShipping {
		t.Fatalf("evicted cart must restart at shipping, got %s", flow.Step)
	}
}

func TestBeginRejectsEmptyCart(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	advanceToReview(t, f, "c1")
	f.carts.state = cart.EmptyState()

	_, err := f.svc.Begin(ctx, Identity{CartID: "c1", UserID: "u1"})
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeValidation {
		t.Fatalf("expected validation error for empty cart, got %v", err)
	}
}

func TestHandleSuccessClearsCartAndRecordsConfirmation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	advanceToReview(t, f, "c1")

	if _, err := f.svc.Begin(ctx, Identity{CartID: "c1", UserID: "u1"}); err != nil {
		t.Fatalf("begin: %v", err)
	}

	conf, err := f.svc.HandleSuccess(ctx, Identity{CartID: "c1", UserID: "u1"}, SuccessParams{
		OrderID:   "order_ABC",
		PaymentID: "pay_XYZ",
		Signature: "sig",
	})
	if err != nil {
		t.Fatalf("handle success: %v", err)
	}
	if conf.PaymentID != "pay_XYZ" || conf.AmountPaise != 118000 {
		t.Fatalf("unexpected confirmation %+v", conf)
	}
	if f.carts.cleared != 1 {
		t.Fatalf("cart must be cleared exactly once, got %d", f.carts.cleared)
	}
	if len(f.recorder.recorded) != 1 {
		t.Fatalf("confirmation must be recorded")
	}
	if f.guard.held["guard:c1"] {
		t.Fatalf("guard must be released after success")
	}

	// Flow state is discarded: a fresh checkout starts at Shipping.
	if flow := f.svc.Flow(ctx, "c1"); flow.Step != StepShipping {
		t.Fatalf("expected fresh flow after success, got step %s", flow.Step)
	}
}

func TestHandleSuccessRejectsBadSignature(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	advanceToReview(t, f, "c1")

	if _, err := f.svc.Begin(ctx, Identity{CartID: "c1", UserID: "u1"}); err != nil {
		t.Fatalf("begin: %v", err)
	}

	f.gateway.verifyOK = false
	_, err := f.svc.HandleSuccess(ctx, Identity{CartID: "c1", UserID: "u1"}, SuccessParams{
		OrderID:   "order_ABC",
		PaymentID: "pay_XYZ",
		Signature: "forged",
	})
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeUnauthorized {
		t.Fatalf("expected unauthorized, got %v", err)
	}
	if f.carts.cleared != 0 {
		t.Fatalf("cart must be untouched on bad signature")
	}
	if len(f.recorder.recorded) != 0 {
		t.Fatalf("no confirmation may be recorded on bad signature")
	}
}

func TestHandleSuccessRejectsUnknownOrder(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	advanceToReview(t, f, "c1")

	if _, err := f.svc.Begin(ctx, Identity{CartID: "c1", UserID: "u1"}); err != nil {
		t.Fatalf("begin: %v", err)
	}

	_, err := f.svc.HandleSuccess(ctx, Identity{CartID: "c1", UserID: "u1"}, SuccessParams{
		OrderID:   "order_OTHER",
		PaymentID: "pay_XYZ",
		Signature: "sig",
	})
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeValidation {
		t.Fatalf("expected validation error for mismatched order, got %v", err)
	}
}

func TestHandleFailureResetsProcessing(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	advanceToReview(t, f, "c1")

	if _, err := f.svc.Begin(ctx, Identity{CartID: "c1", UserID: "u1"}); err != nil {
		t.Fatalf("begin: %v", err)
	}

	flow, err := f.svc.HandleFailure(ctx, "c1", FailureParams{Code: "PAYMENT_CANCELLED", Description: "user backed out"})
	if err != nil {
		t.Fatalf("handle failure: %v", err)
	}
	if flow.Processing() {
		t.Fatalf("processing must reset after failure")
	}
	if flow.Step != StepReview {
		t.Fatalf("flow must remain on review, got %s", flow.Step)
	}
	if f.guard.held["guard:c1"] {
		t.Fatalf("guard must be released after failure")
	}
	if f.carts.cleared != 0 {
		t.Fatalf("cart must be untouched on failure")
	}

	// Checkout can be retried from the same step.
	if _, err := f.svc.Begin(ctx, Identity{CartID: "c1", UserID: "u1"}); err != nil {
		t.Fatalf("retry after failure: %v", err)
	}
}

func TestPlaceCOD(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	if _, err := f.svc.SubmitShipping(ctx, "c1", validForm()); err != nil {
		t.Fatalf("submit shipping: %v", err)
	}
	if _, err := f.svc.SubmitPayment(ctx, "c1", "cod"); err != nil {
		t.Fatalf("submit payment: %v", err)
	}

	conf, err := f.svc.PlaceCOD(ctx, Identity{CartID: "c1", UserID: "u1"})
	if err != nil {
		t.Fatalf("place cod: %v", err)
	}
	// 1000 + 49 shipping + 180 tax = 1229 → 122900 paise.
	if conf.AmountPaise != 122900 {
		t.Fatalf("expected 122900 paise, got %d", conf.AmountPaise)
	}
	if conf.PaymentID != "" {
		t.Fatalf("cod confirmation must not carry a gateway payment id")
	}
	if f.carts.cleared != 1 {
		t.Fatalf("cart must be cleared after cod order")
	}
	if f.gateway.created != 0 {
		t.Fatalf("cod must not touch the gateway")
	}
	if f.guard.held["guard:c1"] {
		t.Fatalf("guard must be released after cod order")
	}
}

func TestPlaceCODRequiresCODMethod(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	advanceToReview(t, f, "c1") // selects online

	_, err := f.svc.PlaceCOD(ctx, Identity{CartID: "c1", UserID: "u1"})
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
}
