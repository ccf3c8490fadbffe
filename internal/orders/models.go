package orders

import (
	"time"

	"github.com/shopspring/decimal"
)

// ProductRef is the order service's shadow of a catalogue product: just
// enough to price and validate order lines without calling the product
// service.
type ProductRef struct {
	ID        string          `json:"id"`
	Price     decimal.Decimal `json:"price"`
	IsActive  bool            `json:"isActive"`
	UpdatedAt time.Time       `json:"updatedAt"`
}

// Line is one priced order line.
type Line struct {
	ProductID string          `json:"productId"`
	Quantity  int64           `json:"quantity"`
	Price     decimal.Decimal `json:"price"`
}

type Quote struct {
	Lines []Line          `json:"items"`
	Total decimal.Decimal `json:"total"`
}
