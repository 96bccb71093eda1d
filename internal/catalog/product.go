package catalog

import (
	"github.com/foodsearch/storefront/internal/cart"
	"github.com/shopspring/decimal"
)

// Product is a catalog entry as served by the product API.
type Product struct {
	ID           int64           `json:"id"`
	Name         string          `json:"nome" validate:"required"`
	Description  string          `json:"descricao,omitempty"`
	UnitPrice    decimal.Decimal `json:"preco"`
	Stock        int             `json:"estoque"`
	CategoryID   int64           `json:"categoria"`
	CategoryName string          `json:"categoria_nome,omitempty"`
	Image        string          `json:"imagem,omitempty"`
	Calories     int             `json:"calorias,omitempty"`
}

// Snapshot converts a product into the immutable view the cart keeps.
func (p Product) Snapshot() cart.ProductSnapshot {
	return cart.ProductSnapshot{
		ID:           p.ID,
		Name:         p.Name,
		UnitPrice:    p.UnitPrice,
		CategoryName: p.CategoryName,
		Image:        p.Image,
	}
}

// Category groups products on the storefront.
type Category struct {
	ID   int64  `json:"id"`
	Name string `json:"nome"`
}
