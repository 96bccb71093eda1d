package cart

import (
	"github.com/shopspring/decimal"
)

// LineItem is a single product entry in the cart. The catalog fields are a
// snapshot frozen at add time; later catalog edits do not touch the cart.
// JSON tags match the persisted snapshot format.
type LineItem struct {
	ProductID    int64           `json:"produto_id"`
	Name         string          `json:"nome"`
	UnitPrice    decimal.Decimal `json:"preco"`
	Quantity     int             `json:"quantidade"`
	CategoryName string          `json:"categoria_nome,omitempty"`
	Image        string          `json:"imagem,omitempty"`
}

// Subtotal returns quantity times unit price for this line.
func (li LineItem) Subtotal() decimal.Decimal {
	return li.UnitPrice.Mul(decimal.NewFromInt(int64(li.Quantity)))
}

// Totals aggregates the cart. Always derived from the line items, never stored.
type Totals struct {
	TotalItems int             `json:"total_items"`
	TotalPrice decimal.Decimal `json:"total_price"`
}

// ProductSnapshot captures the catalog fields the cart freezes when a product
// is added.
type ProductSnapshot struct {
	ID           int64
	Name         string
	UnitPrice    decimal.Decimal
	CategoryName string
	Image        string
}
