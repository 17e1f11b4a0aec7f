package checkout

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/tinysprouts/tinysprouts-backend/internal/cart"
	"github.com/tinysprouts/tinysprouts-backend/internal/orders"
	"github.com/tinysprouts/tinysprouts-backend/pkg/config"
	pkgerrors "github.com/tinysprouts/tinysprouts-backend/pkg/errors"
	"github.com/tinysprouts/tinysprouts-backend/pkg/logger"
	"github.com/tinysprouts/tinysprouts-backend/pkg/metrics"
	"github.com/tinysprouts/tinysprouts-backend/pkg/money"
	rzp "github.com/tinysprouts/tinysprouts-backend/pkg/razorpay"
)

type cartAccess interface {
	Load(ctx context.Context, cartID string) cart.State
	Clear(ctx context.Context, cartID string) cart.State
}

type gateway interface {
	CreateOrder(ctx context.Context, params rzp.OrderCreateParams) (*rzp.Order, error)
	VerifyPaymentSignature(orderID, paymentID, signature string) bool
	KeyID() string
}

type guardStore interface {
	SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error)
	Del(ctx context.Context, keys ...string) error
	CheckoutGuardKey(cartID string) string
}

type confirmationRecorder interface {
	Record(ctx context.Context, conf orders.Confirmation) error
}

// Identity names whose checkout this is: the cart session and the signed-in
// user behind it.
type Identity struct {
	CartID string
	UserID string
}

// BeginResult is what the client needs to open the gateway payment UI.
type BeginResult struct {
	OrderID     string  `json:"order_id"`
	AmountPaise int64   `json:"amount_paise"`
	Currency    string  `json:"currency"`
	KeyID       string  `json:"key_id"`
	Prefill     Prefill `json:"prefill"`
}

// Prefill seeds the gateway UI with the shopper's contact details.
type Prefill struct {
	Name    string `json:"name"`
	Email   string `json:"email"`
	Contact string `json:"contact,omitempty"`
}

// SuccessParams is the gateway's success callback payload.
type SuccessParams struct {
	OrderID   string `json:"razorpay_order_id" validate:"required"`
	PaymentID string `json:"razorpay_payment_id" validate:"required"`
	Signature string `json:"razorpay_signature" validate:"required"`
}

// FailureParams is the gateway's failure callback payload.
type FailureParams struct {
	Code        string `json:"code"`
	Description string `json:"description"`
}

// Service drives the three-step checkout and the gateway handoff.
type Service interface {
	Flow(ctx context.Context, cartID string) Flow
	SubmitShipping(ctx context.Context, cartID string, form ShippingForm) (Flow, error)
	SubmitPayment(ctx context.Context, cartID string, method string) (Flow, error)
	Back(ctx context.Context, cartID string) (Flow, error)
	Review(ctx context.Context, cartID string) (Quote, error)
	Begin(ctx context.Context, id Identity) (*BeginResult, error)
	PlaceCOD(ctx context.Context, id Identity) (*orders.Confirmation, error)
	HandleSuccess(ctx context.Context, id Identity, params SuccessParams) (*orders.Confirmation, error)
	HandleFailure(ctx context.Context, cartID string, params FailureParams) (Flow, error)
}

type service struct {
	carts         cartAccess
	gateway       gateway
	guard         guardStore
	confirmations confirmationRecorder
	pricing       Pricing
	processingTTL time.Duration
	metrics       *metrics.CheckoutMetrics
	logger        *logger.Logger
	validate      *validator.Validate

	mu      sync.Mutex
	flows   map[string]Flow
	touched map[string]time.Time
}

// flowIdleTTL bounds how long an untouched checkout flow survives in memory
// before the idle sweep drops it.
const flowIdleTTL = 24 * time.Hour

// NewService builds the checkout service.
func NewService(
	carts cartAccess,
	gw gateway,
	guard guardStore,
	confirmations confirmationRecorder,
	cfg config.CheckoutConfig,
	m *metrics.CheckoutMetrics,
	logg *logger.Logger,
) (Service, error) {
	if carts == nil {
		return nil, fmt.Errorf("cart store required")
	}
	if gw == nil {
		return nil, fmt.Errorf("payment gateway required")
	}
	if guard == nil {
		return nil, fmt.Errorf("guard store required")
	}
	if confirmations == nil {
		return nil, fmt.Errorf("confirmation recorder required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	pricing, err := NewPricing(cfg)
	if err != nil {
		return nil, fmt.Errorf("checkout pricing: %w", err)
	}
	if cfg.ProcessingTTL <= 0 {
		return nil, fmt.Errorf("processing ttl must be positive")
	}
	return &service{
		carts:         carts,
		gateway:       gw,
		guard:         guard,
		confirmations: confirmations,
		pricing:       pricing,
		processingTTL: cfg.ProcessingTTL,
		metrics:       m,
		logger:        logg,
		validate:      validator.New(validator.WithRequiredStructEnabled()),
		flows:         make(map[string]Flow),
		touched:       make(map[string]time.Time),
	}, nil
}

// Flow returns the cart's current checkout state, initializing it at
// Shipping on first access.
func (s *service) Flow(ctx context.Context, cartID string) Flow {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.flowLocked(cartID)
}

// SubmitShipping validates the required contact fields and advances to
// Payment. Validation failure leaves the step unchanged.
func (s *service) SubmitShipping(ctx context.Context, cartID string, form ShippingForm) (Flow, error) {
	if err := s.validate.Struct(form); err != nil {
		return s.Flow(ctx, cartID), s.fieldErrors(err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	flow := s.flowLocked(cartID)
	if flow.Step != StepShipping {
		return flow, pkgerrors.New(pkgerrors.CodeConflict, "shipping already submitted")
	}
	flow.Form = form
	flow.Step = StepPayment
	s.flows[cartID] = flow
	return flow, nil
}

// SubmitPayment records the shipping method and advances to Review. The
// payment step has no further local validation.
func (s *service) SubmitPayment(ctx context.Context, cartID string, method string) (Flow, error) {
	parsed, err := ParseShippingMethod(method)
	if err != nil {
		return s.Flow(ctx, cartID), pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid shipping method")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	flow := s.flowLocked(cartID)
	if flow.Step != StepPayment {
		return flow, pkgerrors.New(pkgerrors.CodeConflict, fmt.Sprintf("cannot submit payment from the %s step", flow.Step))
	}
	flow.Method = parsed
	flow.Step = StepReview
	s.flows[cartID] = flow
	return flow, nil
}

// Back steps the flow backward one step without revalidation.
func (s *service) Back(ctx context.Context, cartID string) (Flow, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	flow := s.flowLocked(cartID)
	if flow.Step == StepShipping {
		return flow, pkgerrors.New(pkgerrors.CodeValidation, "already at the first step")
	}
	if flow.Processing() {
		return flow, pkgerrors.New(pkgerrors.CodeConflict, "payment in progress")
	}
	flow.Step--
	s.flows[cartID] = flow
	return flow, nil
}

// Review recomputes the financial summary from the live cart contents.
func (s *service) Review(ctx context.Context, cartID string) (Quote, error) {
	s.mu.Lock()
	flow := s.flowLocked(cartID)
	s.mu.Unlock()
	if flow.Step != StepReview {
		return Quote{}, pkgerrors.New(pkgerrors.CodeConflict, fmt.Sprintf("checkout is at the %s step", flow.Step))
	}
	state := s.carts.Load(ctx, cartID)
	return s.pricing.QuoteFor(state.Total, flow.Method), nil
}

// Begin opens a gateway order for an online payment. It acquires the
// processing guard first; abandoning the gateway UI leaves the guard to
// expire with its TTL, after which Begin may be retried.
func (s *service) Begin(ctx context.Context, id Identity) (*BeginResult, error) {
	s.mu.Lock()
	flow := s.flowLocked(id.CartID)
	s.mu.Unlock()

	if flow.Step != StepReview {
		return nil, pkgerrors.New(pkgerrors.CodeConflict, fmt.Sprintf("checkout is at the %s step", flow.Step))
	}
	if flow.Method != MethodOnline {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "online payment was not selected")
	}

	state := s.carts.Load(ctx, id.CartID)
	if len(state.Items) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "cart is empty")
	}

	quote := s.pricing.QuoteFor(state.Total, flow.Method)
	amount := money.Paise(quote.Total)
	if amount <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "payable amount must be positive")
	}

	guardKey := s.guard.CheckoutGuardKey(id.CartID)
	acquired, err := s.guard.SetNX(ctx, guardKey, uuid.NewString(), s.processingTTL)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "acquiring checkout guard")
	}
	if !acquired {
		return nil, pkgerrors.New(pkgerrors.CodeConflict, "a payment attempt is already in progress")
	}

	order, err := s.gateway.CreateOrder(ctx, rzp.OrderCreateParams{
		AmountPaise: amount,
		Currency:    s.pricing.Currency,
		Notes: map[string]string{
			"cart_id": id.CartID,
			"user_id": id.UserID,
		},
	})
	if err != nil {
		// Gateway unavailability must not strand the shopper: release the
		// guard so the same review step can be retried, cart untouched.
		s.releaseGuard(ctx, guardKey)
		s.metrics.IncFailed(string(flow.Method))
		return nil, err
	}

	s.mu.Lock()
	flow = s.flowLocked(id.CartID)
	flow.OrderID = order.ID
	flow.AmountPaise = amount
	flow.BeganAt = time.Now()
	s.flows[id.CartID] = flow
	s.mu.Unlock()

	s.metrics.IncStarted(string(flow.Method))
	s.logger.Info(s.logger.WithFields(ctx, map[string]any{
		"order_id": order.ID,
		"amount":   amount,
	}), "checkout handed off to gateway")

	return &BeginResult{
		OrderID:     order.ID,
		AmountPaise: amount,
		Currency:    s.pricing.Currency,
		KeyID:       s.gateway.KeyID(),
		Prefill: Prefill{
			Name:    flow.Form.FullName(),
			Email:   flow.Form.Email,
			Contact: flow.Form.Phone,
		},
	}, nil
}

// PlaceCOD completes a cash-on-delivery checkout without the gateway.
func (s *service) PlaceCOD(ctx context.Context, id Identity) (*orders.Confirmation, error) {
	s.mu.Lock()
	flow := s.flowLocked(id.CartID)
	s.mu.Unlock()

	if flow.Step != StepReview {
		return nil, pkgerrors.New(pkgerrors.CodeConflict, fmt.Sprintf("checkout is at the %s step", flow.Step))
	}
	if flow.Method != MethodCOD {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "cash on delivery was not selected")
	}

	state := s.carts.Load(ctx, id.CartID)
	if len(state.Items) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "cart is empty")
	}

	guardKey := s.guard.CheckoutGuardKey(id.CartID)
	acquired, err := s.guard.SetNX(ctx, guardKey, uuid.NewString(), s.processingTTL)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "acquiring checkout guard")
	}
	if !acquired {
		return nil, pkgerrors.New(pkgerrors.CodeConflict, "an order is already being placed")
	}
	defer s.releaseGuard(ctx, guardKey)

	quote := s.pricing.QuoteFor(state.Total, flow.Method)
	conf := orders.Confirmation{
		OrderID:     "cod-" + uuid.NewString(),
		UserID:      id.UserID,
		AmountPaise: money.Paise(quote.Total),
		Currency:    s.pricing.Currency,
		PlacedAt:    time.Now(),
	}
	if err := s.confirmations.Record(ctx, conf); err != nil {
		return nil, err
	}

	s.carts.Clear(ctx, id.CartID)
	s.discardFlow(id.CartID)
	s.metrics.IncCompleted(string(MethodCOD))
	return &conf, nil
}

// HandleSuccess verifies the gateway's success callback server-side, then
// clears the cart and records the confirmation. A bad signature rejects the
// callback without touching the cart.
func (s *service) HandleSuccess(ctx context.Context, id Identity, params SuccessParams) (*orders.Confirmation, error) {
	if err := s.validate.Struct(params); err != nil {
		return nil, s.fieldErrors(err)
	}

	s.mu.Lock()
	flow := s.flowLocked(id.CartID)
	s.mu.Unlock()

	if !flow.Processing() || flow.OrderID != params.OrderID {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "callback does not match the pending payment order")
	}

	if !s.gateway.VerifyPaymentSignature(params.OrderID, params.PaymentID, params.Signature) {
		s.metrics.IncInvalidSignature()
		s.logger.Warn(s.logger.WithField(ctx, "order_id", params.OrderID), "payment signature verification failed")
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "payment signature verification failed")
	}

	conf := orders.Confirmation{
		OrderID:     params.OrderID,
		PaymentID:   params.PaymentID,
		UserID:      id.UserID,
		AmountPaise: flow.AmountPaise,
		Currency:    s.pricing.Currency,
		PlacedAt:    time.Now(),
	}
	if err := s.confirmations.Record(ctx, conf); err != nil {
		return nil, err
	}

	s.carts.Clear(ctx, id.CartID)
	s.releaseGuard(ctx, s.guard.CheckoutGuardKey(id.CartID))
	s.discardFlow(id.CartID)

	s.metrics.IncCompleted(string(MethodOnline))
	if !flow.BeganAt.IsZero() {
		s.metrics.ObserveDuration(string(MethodOnline), time.Since(flow.BeganAt))
	}
	return &conf, nil
}

// HandleFailure resets the processing state after a gateway failure or
// cancel. The cart is left untouched so checkout can be retried from Review.
func (s *service) HandleFailure(ctx context.Context, cartID string, params FailureParams) (Flow, error) {
	s.releaseGuard(ctx, s.guard.CheckoutGuardKey(cartID))

	s.mu.Lock()
	flow := s.flowLocked(cartID)
	if !flow.BeganAt.IsZero() {
		s.metrics.ObserveDuration(string(flow.Method), time.Since(flow.BeganAt))
	}
	flow.OrderID = ""
	flow.AmountPaise = 0
	flow.BeganAt = time.Time{}
	s.flows[cartID] = flow
	s.mu.Unlock()

	s.metrics.IncFailed(string(flow.Method))
	s.logger.Warn(s.logger.WithFields(ctx, map[string]any{
		"gateway_code": params.Code,
		"description":  params.Description,
	}), "gateway reported a payment failure")
	return flow, nil
}

func (s *service) flowLocked(cartID string) Flow {
	now := time.Now()
	s.sweepIdleLocked(now)

	flow, ok := s.flows[cartID]
	if !ok {
		flow = NewFlow()
	}
	// A handoff older than the redis guard TTL was abandoned at the gateway.
	// The guard key has lapsed by now, so drop the stale handoff in step with
	// it: Back and a fresh Begin become possible again.
	if flow.Processing() && now.Sub(flow.BeganAt) >= s.processingTTL {
		flow.OrderID = ""
		flow.AmountPaise = 0
		flow.BeganAt = time.Time{}
		s.metrics.IncFailed(string(flow.Method))
	}
	s.flows[cartID] = flow
	s.touched[cartID] = now
	return flow
}

// sweepIdleLocked evicts flows nobody has touched within flowIdleTTL so
// abandoned checkouts do not accumulate for the process lifetime.
func (s *service) sweepIdleLocked(now time.Time) {
	for id, at := range s.touched {
		if now.Sub(at) >= flowIdleTTL {
			delete(s.flows, id)
			delete(s.touched, id)
		}
	}
}

func (s *service) discardFlow(cartID string) {
	s.mu.Lock()
	delete(s.flows, cartID)
	delete(s.touched, cartID)
	s.mu.Unlock()
}

func (s *service) releaseGuard(ctx context.Context, key string) {
	if err := s.guard.Del(ctx, key); err != nil {
		s.logger.Error(ctx, "releasing checkout guard failed", err)
	}
}

// fieldErrors converts validator output into a field→message details map.
func (s *service) fieldErrors(err error) error {
	verrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid payload")
	}
	details := make(map[string]string, len(verrs))
	for _, fe := range verrs {
		details[strings.ToLower(fe.Field())] = fmt.Sprintf("failed %s validation", fe.Tag())
	}
	return pkgerrors.New(pkgerrors.CodeValidation, "invalid payload").WithDetails(details)
}
