package catalog

import (
	"time"

	"github.com/shopspring/decimal"
)

// Product is an upstream catalog record. The backend never stores these;
// they are fetched per request and passed through.
type Product struct {
	ID          string           `json:"id"`
	Name        string           `json:"name"`
	Emoji       string           `json:"emoji,omitempty"`
	Category    string           `json:"category,omitempty"`
	Price       decimal.Decimal  `json:"price"`
	SalePrice   *decimal.Decimal `json:"sale_price,omitempty"`
	Colors      []string         `json:"colors,omitempty"`
	Variants    []Variant        `json:"variants,omitempty"`
	Description string           `json:"description,omitempty"`
}

// Variant is a purchasable variation of a product.
type Variant struct {
	ID    string           `json:"id"`
	Name  string           `json:"name"`
	Price *decimal.Decimal `json:"price,omitempty"`
}

// User is the upstream account record resolved during phone sign-in.
type User struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Phone string `json:"phone"`
	Email string `json:"email,omitempty"`
}

// Order is an upstream order-history record.
type Order struct {
	ID        string          `json:"id"`
	Status    string          `json:"status"`
	Total     decimal.Decimal `json:"total"`
	CreatedAt time.Time       `json:"created_at"`
	Items     []OrderItem     `json:"items,omitempty"`
}

// OrderItem is one purchased line within an order.
type OrderItem struct {
	ProductID string          `json:"product_id"`
	Name      string          `json:"name"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
}
