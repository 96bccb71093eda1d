package orders

import (
	"time"

	"github.com/foodsearch/storefront/pkg/enums"
	"github.com/shopspring/decimal"
)

// Submission is the write-only projection sent to the order service.
// Field names follow the backend's wire format.
type Submission struct {
	Items           []SubmissionItem `json:"itens"`
	DeliveryAddress string           `json:"endereco_entrega"`
	PaymentMethod   string           `json:"forma_pagamento"`
	CardNumber      string           `json:"numero_cartao"`
}

// SubmissionItem pairs a product id with the quantity ordered.
type SubmissionItem struct {
	ProductID int64 `json:"produto"`
	Quantity  int   `json:"quantidade"`
}

// Order is the backend's view of a pedido, returned on submission and in the
// order history listing.
type Order struct {
	ID        int64             `json:"id"`
	UserID    int64             `json:"usuario"`
	Status    enums.OrderStatus `json:"status"`
	CreatedAt time.Time         `json:"data_criacao"`
	Total     decimal.Decimal   `json:"total"`
	Items     []OrderItem       `json:"itens"`
}

// OrderItem is a line of a placed order as echoed by the backend.
type OrderItem struct {
	ProductID   int64           `json:"produto"`
	ProductName string          `json:"produto_nome"`
	Quantity    int             `json:"quantidade"`
	UnitPrice   decimal.Decimal `json:"preco_unitario"`
	Subtotal    decimal.Decimal `json:"subtotal"`
}
