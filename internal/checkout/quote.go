package checkout

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/tinysprouts/tinysprouts-backend/pkg/config"
	"github.com/tinysprouts/tinysprouts-backend/pkg/money"
)

// Pricing holds the parsed checkout rates. Built once from config.
type Pricing struct {
	Currency          string
	TaxRate           decimal.Decimal
	CODCost           decimal.Decimal
	OnlineCost        decimal.Decimal
	FreeShippingAbove *decimal.Decimal
}

// NewPricing parses the configured rates into decimals.
func NewPricing(cfg config.CheckoutConfig) (Pricing, error) {
	taxRate, err := money.ParsePercent(cfg.TaxRatePercent)
	if err != nil {
		return Pricing{}, fmt.Errorf("tax rate: %w", err)
	}
	codCost, err := decimal.NewFromString(cfg.CODCost)
	if err != nil {
		return Pricing{}, fmt.Errorf("cod cost: %w", err)
	}
	onlineCost, err := decimal.NewFromString(cfg.OnlineCost)
	if err != nil {
		return Pricing{}, fmt.Errorf("online cost: %w", err)
	}
	p := Pricing{
		Currency:   strings.ToUpper(strings.TrimSpace(cfg.Currency)),
		TaxRate:    taxRate,
		CODCost:    codCost,
		OnlineCost: onlineCost,
	}
	if threshold := strings.TrimSpace(cfg.FreeShippingAbove); threshold != "" {
		parsed, err := decimal.NewFromString(threshold)
		if err != nil {
			return Pricing{}, fmt.Errorf("free shipping threshold: %w", err)
		}
		p.FreeShippingAbove = &parsed
	}
	return p, nil
}

// Quote is the derived financial summary shown on the review step. Values
// are recomputed from the cart on every read, never stored.
type Quote struct {
	Subtotal     decimal.Decimal `json:"subtotal"`
	ShippingCost decimal.Decimal `json:"shipping_cost"`
	Tax          decimal.Decimal `json:"tax"`
	Total        decimal.Decimal `json:"total"`
	Currency     string          `json:"currency"`
}

// QuoteFor derives the review figures from the cart subtotal and method.
func (p Pricing) QuoteFor(subtotal decimal.Decimal, method ShippingMethod) Quote {
	shipping := p.shippingCost(subtotal, method)
	tax := subtotal.Mul(p.TaxRate).Round(2)
	return Quote{
		Subtotal:     subtotal,
		ShippingCost: shipping,
		Tax:          tax,
		Total:        subtotal.Add(shipping).Add(tax),
		Currency:     p.Currency,
	}
}

func (p Pricing) shippingCost(subtotal decimal.Decimal, method ShippingMethod) decimal.Decimal {
	if p.FreeShippingAbove != nil && subtotal.GreaterThanOrEqual(*p.FreeShippingAbove) {
		return decimal.Zero
	}
	if method == MethodCOD {
		return p.CODCost
	}
	return p.OnlineCost
}
