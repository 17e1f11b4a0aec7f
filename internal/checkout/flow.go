package checkout

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Step is one stage of the three-step checkout progression.
type Step int

const (
	StepShipping Step = iota
	StepPayment
	StepReview
)

func (s Step) String() string {
	switch s {
	case StepShipping:
		return "shipping"
	case StepPayment:
		return "payment"
	case StepReview:
		return "review"
	default:
		return "unknown"
	}
}

// MarshalJSON renders the step as its label so clients never see raw ints.
func (s Step) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

// ShippingMethod selects who collects the payment and what delivery costs.
type ShippingMethod string

const (
	MethodCOD    ShippingMethod = "cod"
	MethodOnline ShippingMethod = "online"
)

// ParseShippingMethod normalizes a raw method label.
func ParseShippingMethod(raw string) (ShippingMethod, error) {
	switch ShippingMethod(strings.ToLower(strings.TrimSpace(raw))) {
	case MethodCOD:
		return MethodCOD, nil
	case MethodOnline:
		return MethodOnline, nil
	default:
		return "", fmt.Errorf("unknown shipping method %q", raw)
	}
}

// ShippingForm is the contact and address data collected on the first step.
// First name, address, and email must be present before the flow advances.
type ShippingForm struct {
	FirstName  string `json:"first_name" validate:"required"`
	LastName   string `json:"last_name"`
	Email      string `json:"email" validate:"required,email"`
	Phone      string `json:"phone" validate:"omitempty,numeric,len=10"`
	Address    string `json:"address" validate:"required"`
	City       string `json:"city"`
	State      string `json:"state"`
	PostalCode string `json:"postal_code" validate:"omitempty,numeric,len=6"`
}

// FullName joins the name fields for gateway prefill.
func (f ShippingForm) FullName() string {
	return strings.TrimSpace(strings.TrimSpace(f.FirstName) + " " + strings.TrimSpace(f.LastName))
}

// Flow is one cart's checkout progress. It lives in memory per session;
// the cross-instance processing guard lives in Redis.
type Flow struct {
	Step        Step           `json:"step"`
	Form        ShippingForm   `json:"form"`
	Method      ShippingMethod `json:"method,omitempty"`
	OrderID     string         `json:"order_id,omitempty"`
	AmountPaise int64          `json:"amount_paise,omitempty"`
	BeganAt     time.Time      `json:"began_at,omitempty"`
}

// Processing reports whether a gateway attempt is awaiting its callback.
func (f Flow) Processing() bool {
	return f.OrderID != ""
}

// NewFlow returns a checkout at its initial step.
func NewFlow() Flow {
	return Flow{Step: StepShipping}
}
