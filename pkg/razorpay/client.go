package razorpay

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	rzpsdk "github.com/razorpay/razorpay-go"
	rzputils "github.com/razorpay/razorpay-go/utils"

	"github.com/tinysprouts/tinysprouts-backend/pkg/config"
	pkgerrors "github.com/tinysprouts/tinysprouts-backend/pkg/errors"
	"github.com/tinysprouts/tinysprouts-backend/pkg/logger"
)

const (
	testEnv = "test"
	liveEnv = "live"

	testKeyPrefix = "rzp_test_"
	liveKeyPrefix = "rzp_live_"
)

var (
	errKeyIDRequired     = errors.New("razorpay key id is required")
	errKeySecretRequired = errors.New("razorpay key secret is required")
	errInvalidEnv        = fmt.Errorf("razorpay environment must be %q or %q", testEnv, liveEnv)
	errKeyEnvMismatch    = errors.New("razorpay key id does not match the configured environment")
	errLoggerRequired    = errors.New("razorpay logger is required")
)

var keyPrefixes = map[string]string{
	testEnv: testKeyPrefix,
	liveEnv: liveKeyPrefix,
}

// Client exposes Razorpay primitives with centralized auth, logging, and error mapping.
type Client struct {
	sdk         *rzpsdk.Client
	keyID       string
	keySecret   string
	environment string
	logger      *logger.Logger
}

// NewClient initializes the Razorpay wrapper and validates the credentials.
func NewClient(ctx context.Context, cfg config.RazorpayConfig, logg *logger.Logger) (*Client, error) {
	if logg == nil {
		return nil, errLoggerRequired
	}
	env, err := normalizeEnv(cfg.Environment())
	if err != nil {
		return nil, err
	}

	keyID := strings.TrimSpace(cfg.KeyID)
	if keyID == "" {
		return nil, errKeyIDRequired
	}
	if !strings.HasPrefix(keyID, keyPrefixes[env]) {
		return nil, errKeyEnvMismatch
	}

	keySecret := strings.TrimSpace(cfg.KeySecret)
	if keySecret == "" {
		return nil, errKeySecretRequired
	}

	c := &Client{
		sdk:         rzpsdk.NewClient(keyID, keySecret),
		keyID:       keyID,
		keySecret:   keySecret,
		environment: env,
		logger:      logg,
	}

	logg.Info(ctx, "razorpay client initialized")
	return c, nil
}

// KeyID returns the public Razorpay key, safe to hand to browser checkout widgets.
func (c *Client) KeyID() string {
	if c == nil {
		return ""
	}
	return c.keyID
}

// Environment reports the normalized Razorpay environment.
func (c *Client) Environment() string {
	if c == nil {
		return ""
	}
	return c.environment
}

// NewReceipt returns a unique receipt identifier for Razorpay orders.
func (c *Client) NewReceipt(prefix string) string {
	receipt := strings.TrimSpace(prefix)
	if receipt == "" {
		receipt = "ts"
	}
	return fmt.Sprintf("%s-%s", receipt, uuid.NewString())
}

// CreateOrder registers a payable order with Razorpay and returns its identifier.
func (c *Client) CreateOrder(ctx context.Context, params OrderCreateParams) (*Order, error) {
	if err := params.validate(); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid razorpay order params")
	}
	if strings.TrimSpace(params.Receipt) == "" {
		params.Receipt = c.NewReceipt("order")
	}

	c.log(ctx, "request", "create_order", map[string]any{
		"amount":   params.AmountPaise,
		"currency": params.Currency,
		"receipt":  params.Receipt,
	})

	resp, err := c.sdk.Order.Create(params.toRequest(), nil)
	if err != nil {
		c.log(ctx, "error", "create_order", map[string]any{"error": err.Error()})
		return nil, c.mapError(err, "create order")
	}

	order := orderFromResponse(resp)
	c.log(ctx, "response", "create_order", map[string]any{
		"order_id": order.ID,
		"status":   order.Status,
	})
	return order, nil
}

// FetchPayment retrieves a payment by its Razorpay identifier.
func (c *Client) FetchPayment(ctx context.Context, paymentID string) (*Payment, error) {
	if strings.TrimSpace(paymentID) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "payment id is required")
	}

	c.log(ctx, "request", "fetch_payment", map[string]any{"payment_id": paymentID})

	resp, err := c.sdk.Payment.Fetch(paymentID, nil, nil)
	if err != nil {
		c.log(ctx, "error", "fetch_payment", map[string]any{"error": err.Error()})
		return nil, c.mapError(err, "fetch payment")
	}

	payment := paymentFromResponse(resp)
	c.log(ctx, "response", "fetch_payment", map[string]any{
		"payment_id": payment.ID,
		"status":     payment.Status,
	})
	return payment, nil
}

// VerifyPaymentSignature checks the HMAC Razorpay attaches to a successful
// checkout callback against the configured key secret.
func (c *Client) VerifyPaymentSignature(orderID, paymentID, signature string) bool {
	if strings.TrimSpace(orderID) == "" || strings.TrimSpace(paymentID) == "" || strings.TrimSpace(signature) == "" {
		return false
	}
	params := map[string]interface{}{
		"razorpay_order_id":   orderID,
		"razorpay_payment_id": paymentID,
	}
	return rzputils.VerifyPaymentSignature(params, signature, c.keySecret)
}

func (c *Client) log(ctx context.Context, phase, op string, fields map[string]any) {
	if c == nil || c.logger == nil {
		return
	}
	logFields := map[string]any{
		"operation": op,
		"phase":     phase,
	}
	for k, v := range fields {
		logFields[k] = c.redact(k, v)
	}
	ctx = c.logger.WithFields(ctx, logFields)
	switch phase {
	case "error":
		c.logger.Error(ctx, fmt.Sprintf("razorpay %s", op), errors.New(fmt.Sprint(fields["error"])))
	default:
		c.logger.Info(ctx, fmt.Sprintf("razorpay %s", phase))
	}
}

func (c *Client) redact(key string, value any) any {
	lower := strings.ToLower(key)
	for _, sensitive := range []string{"card", "vpa", "token", "secret", "signature", "email", "contact", "phone"} {
		if strings.Contains(lower, sensitive) {
			return "[REDACTED]"
		}
	}
	return value
}

func (c *Client) mapError(err error, op string) error {
	if err == nil {
		return nil
	}
	code := domainCodeForMessage(err.Error())
	return pkgerrors.Wrap(code, err, fmt.Sprintf("razorpay %s failed", op))
}

// domainCodeForMessage classifies SDK errors by the error code Razorpay
// embeds in its response bodies.
func domainCodeForMessage(msg string) pkgerrors.Code {
	upper := strings.ToUpper(msg)
	switch {
	case strings.Contains(upper, "BAD_REQUEST_ERROR"):
		return pkgerrors.CodeValidation
	case strings.Contains(upper, "UNAUTHORIZED") || strings.Contains(upper, "AUTHENTICATION"):
		return pkgerrors.CodeUnauthorized
	case strings.Contains(upper, "NOT_FOUND") || strings.Contains(upper, "DOES NOT EXIST"):
		return pkgerrors.CodeNotFound
	default:
		return pkgerrors.CodeDependency
	}
}

func normalizeEnv(raw string) (string, error) {
	env := strings.TrimSpace(strings.ToLower(raw))
	if env == "" {
		env = testEnv
	}
	switch env {
	case testEnv, liveEnv:
		return env, nil
	default:
		return "", errInvalidEnv
	}
}
