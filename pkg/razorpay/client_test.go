package razorpay

import (
	"context"
	"testing"

	"github.com/tinysprouts/tinysprouts-backend/pkg/config"
	pkgerrors "github.com/tinysprouts/tinysprouts-backend/pkg/errors"
	"github.com/tinysprouts/tinysprouts-backend/pkg/logger"
)

func testLogger() *logger.Logger {
	return logger.New(logger.Options{ServiceName: "razorpay-test"})
}

func TestNewClientValidation(t *testing.T) {
	ctx := context.Background()
	logg := testLogger()

	tests := []struct {
		name string
		cfg  config.RazorpayConfig
	}{
		{"missing key", config.RazorpayConfig{KeySecret: "secret", Env: "test"}},
		{"missing secret", config.RazorpayConfig{KeyID: "rzp_test_abc", Env: "test"}},
		{"bad env", config.RazorpayConfig{KeyID: "rzp_test_abc", KeySecret: "secret", Env: "staging"}},
		{"live key in test env", config.RazorpayConfig{KeyID: "rzp_live_abc", KeySecret: "secret", Env: "test"}},
	}
	for _, tt := range tests {
		if _, err := NewClient(ctx, tt.cfg, logg); err == nil {
			t.Fatalf("%s: expected error", tt.name)
		}
	}

	c, err := NewClient(ctx, config.RazorpayConfig{KeyID: "rzp_test_abc", KeySecret: "secret", Env: "test"}, logg)
	if err != nil {
		t.Fatalf("valid config rejected: %v", err)
	}
	if c.KeyID() != "rzp_test_abc" {
		t.Fatalf("unexpected key id %q", c.KeyID())
	}
	if c.Environment() != "test" {
		t.Fatalf("unexpected environment %q", c.Environment())
	}

	if _, err := NewClient(ctx, config.RazorpayConfig{KeyID: "rzp_test_abc", KeySecret: "secret", Env: "test"}, nil); err == nil {
		t.Fatalf("expected error for nil logger")
	}
}

func TestNewReceipt(t *testing.T) {
	c := &Client{}
	if got := c.NewReceipt(""); len(got) < 4 || got[:3] != "ts-" {
		t.Fatalf("default receipt prefix missing: %q", got)
	}
	if got := c.NewReceipt("order"); got[:6] != "order-" {
		t.Fatalf("receipt prefix not applied: %q", got)
	}
}

func TestRedact(t *testing.T) {
	c := &Client{}
	if out := c.redact("razorpay_signature", "abc123"); out != "[REDACTED]" {
		t.Fatalf("expected redacted value, got %v", out)
	}
	if v := c.redact("status", "created"); v != "created" {
		t.Fatalf("unexpected redaction for safe key")
	}
}

func TestDomainCodeForMessage(t *testing.T) {
	tests := []struct {
		msg  string
		code pkgerrors.Code
	}{
		{`{"error":{"code":"BAD_REQUEST_ERROR","description":"Amount exceeds maximum"}}`, pkgerrors.CodeValidation},
		{"Authentication failed", pkgerrors.CodeUnauthorized},
		{"The id provided does not exist", pkgerrors.CodeNotFound},
		{"connection reset by peer", pkgerrors.CodeDependency},
	}
	for _, tt := range tests {
		if got := domainCodeForMessage(tt.msg); got != tt.code {
			t.Fatalf("message %q expected %s got %s", tt.msg, tt.code, got)
		}
	}
}

func TestVerifyPaymentSignatureRejectsBlanks(t *testing.T) {
	c := &Client{keySecret: "secret"}
	if c.VerifyPaymentSignature("", "pay_1", "sig") {
		t.Fatalf("blank order id should fail verification")
	}
	if c.VerifyPaymentSignature("order_1", "", "sig") {
		t.Fatalf("blank payment id should fail verification")
	}
	if c.VerifyPaymentSignature("order_1", "pay_1", "") {
		t.Fatalf("blank signature should fail verification")
	}
}

func TestOrderCreateParams(t *testing.T) {
	p := OrderCreateParams{AmountPaise: 49900, Currency: "inr", Receipt: "order-1", Notes: map[string]string{"cart": "c1"}}
	if err := p.validate(); err != nil {
		t.Fatalf("valid params rejected: %v", err)
	}
	req := p.toRequest()
	if req["amount"] != int64(49900) {
		t.Fatalf("unexpected amount %v", req["amount"])
	}
	if req["currency"] != "INR" {
		t.Fatalf("currency not normalized: %v", req["currency"])
	}
	notes, ok := req["notes"].(map[string]interface{})
	if !ok || notes["cart"] != "c1" {
		t.Fatalf("notes not carried: %v", req["notes"])
	}

	if err := (OrderCreateParams{AmountPaise: 0, Currency: "INR"}).validate(); err == nil {
		t.Fatalf("zero amount should be rejected")
	}
	if err := (OrderCreateParams{AmountPaise: 100}).validate(); err == nil {
		t.Fatalf("missing currency should be rejected")
	}
}

func TestOrderFromResponse(t *testing.T) {
	resp := map[string]interface{}{
		"id":       "order_ABC",
		"amount":   float64(49900),
		"currency": "INR",
		"receipt":  "order-1",
		"status":   "created",
	}
	order := orderFromResponse(resp)
	if order.ID != "order_ABC" || order.AmountPaise != 49900 || order.Status != "created" {
		t.Fatalf("unexpected order %+v", order)
	}
}
