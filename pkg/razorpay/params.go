package razorpay

import (
	"errors"
	"strings"
)

// OrderCreateParams contains the fields required to open a Razorpay order.
type OrderCreateParams struct {
	AmountPaise int64
	Currency    string
	Receipt     string
	Notes       map[string]string
}

func (p OrderCreateParams) validate() error {
	if p.AmountPaise <= 0 {
		return errors.New("order amount must be positive")
	}
	if strings.TrimSpace(p.Currency) == "" {
		return errors.New("order currency is required")
	}
	return nil
}

func (p OrderCreateParams) toRequest() map[string]interface{} {
	req := map[string]interface{}{
		"amount":   p.AmountPaise,
		"currency": strings.ToUpper(strings.TrimSpace(p.Currency)),
		"receipt":  p.Receipt,
	}
	if len(p.Notes) > 0 {
		notes := make(map[string]interface{}, len(p.Notes))
		for k, v := range p.Notes {
			notes[k] = v
		}
		req["notes"] = notes
	}
	return req
}

// Order is the subset of the Razorpay order payload the service consumes.
type Order struct {
	ID          string
	AmountPaise int64
	Currency    string
	Receipt     string
	Status      string
}

func orderFromResponse(resp map[string]interface{}) *Order {
	return &Order{
		ID:          stringField(resp, "id"),
		AmountPaise: int64Field(resp, "amount"),
		Currency:    stringField(resp, "currency"),
		Receipt:     stringField(resp, "receipt"),
		Status:      stringField(resp, "status"),
	}
}

// Payment is the subset of the Razorpay payment payload the service consumes.
type Payment struct {
	ID          string
	OrderID     string
	AmountPaise int64
	Currency    string
	Status      string
	Method      string
}

func paymentFromResponse(resp map[string]interface{}) *Payment {
	return &Payment{
		ID:          stringField(resp, "id"),
		OrderID:     stringField(resp, "order_id"),
		AmountPaise: int64Field(resp, "amount"),
		Currency:    stringField(resp, "currency"),
		Status:      stringField(resp, "status"),
		Method:      stringField(resp, "method"),
	}
}

func stringField(m map[string]interface{}, key string) string {
	if m == nil {
		return ""
	}
	if v, ok := m[key].(string); ok {
		return v
	}
	return ""
}

func int64Field(m map[string]interface{}, key string) int64 {
	if m == nil {
		return 0
	}
	switch v := m[key].(type) {
	case int64:
		return v
	case int:
		return int64(v)
	case float64:
		return int64(v)
	}
	return 0
}
