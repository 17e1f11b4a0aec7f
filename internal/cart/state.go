package cart

import (
	"strings"

	"github.com/shopspring/decimal"

	"github.com/tinysprouts/tinysprouts-backend/pkg/money"
)

// LineItem is one row in a cart. Identity is the canonical product id plus
// variant and color; the remaining fields are carried for display only.
type LineItem struct {
	ProductID     string           `json:"product_id"`
	VariantID     *string          `json:"variant_id,omitempty"`
	SelectedColor *string          `json:"selected_color,omitempty"`
	UnitPrice     decimal.Decimal  `json:"unit_price"`
	SalePrice     *decimal.Decimal `json:"sale_price,omitempty"`
	Quantity      int              `json:"quantity"`
	Name          string           `json:"name"`
	Emoji         string           `json:"emoji,omitempty"`
	Category      string           `json:"category,omitempty"`
}

// CanonicalProductID normalizes a raw product identifier for identity checks.
func CanonicalProductID(raw string) string {
	return strings.TrimSpace(raw)
}

// sameLine reports whether two stored items occupy the same cart line.
// Absent variant/color compare as values here, not as wildcards.
func (l LineItem) sameLine(other LineItem) bool {
	return CanonicalProductID(l.ProductID) == CanonicalProductID(other.ProductID) &&
		ptrEqual(l.VariantID, other.VariantID) &&
		ptrEqual(l.SelectedColor, other.SelectedColor)
}

// lineTotal is the item's contribution to the cart total.
func (l LineItem) lineTotal() decimal.Decimal {
	return money.LineTotal(l.UnitPrice, l.SalePrice, l.Quantity)
}

// Selector targets cart lines for removal or quantity updates. Nil optional
// fields are wildcards and match any stored value.
type Selector struct {
	ProductID     string  `json:"product_id"`
	VariantID     *string `json:"variant_id,omitempty"`
	SelectedColor *string `json:"selected_color,omitempty"`
}

// Matches reports whether the selector targets the given line.
func (sel Selector) Matches(item LineItem) bool {
	if CanonicalProductID(sel.ProductID) != CanonicalProductID(item.ProductID) {
		return false
	}
	if sel.VariantID != nil && !ptrEqual(sel.VariantID, item.VariantID) {
		return false
	}
	if sel.SelectedColor != nil && !ptrEqual(sel.SelectedColor, item.SelectedColor) {
		return false
	}
	return true
}

// State is the full cart snapshot: ordered lines, the panel visibility flag,
// and a total derived from the lines.
type State struct {
	Items  []LineItem      `json:"items"`
	IsOpen bool            `json:"is_open"`
	Total  decimal.Decimal `json:"total"`
}

// EmptyState returns a fresh closed cart.
func EmptyState() State {
	return State{Items: nil, IsOpen: false, Total: decimal.Zero}
}

// RecomputeTotal returns the state with Total rebuilt from its items.
func (s State) RecomputeTotal() State {
	total := decimal.Zero
	for _, item := range s.Items {
		total = total.Add(item.lineTotal())
	}
	s.Total = total
	return s
}

// ItemCount sums quantities across all lines.
func (s State) ItemCount() int {
	count := 0
	for _, item := range s.Items {
		count += item.Quantity
	}
	return count
}

// clone deep-copies the item slice so reducer output never aliases input.
func (s State) clone() State {
	out := s
	if s.Items != nil {
		out.Items = make([]LineItem, len(s.Items))
		copy(out.Items, s.Items)
	}
	return out
}

func ptrEqual(a, b *string) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}
