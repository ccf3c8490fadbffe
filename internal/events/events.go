// Package events defines the message bodies exchanged over the broker and
// one typed union per queue.
package events

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

type Kind string

const (
	ProductCreated Kind = "PRODUCT_CREATED"
	ProductUpdated Kind = "PRODUCT_UPDATED"
	ProductDeleted Kind = "PRODUCT_DELETED"

	OrderCreated   Kind = "ORDER_CREATED"
	OrderCancelled Kind = "ORDER_CANCELLED"

	UserCreated Kind = "USER_CREATED"
	UserUpdated Kind = "USER_UPDATED"
	UserDeleted Kind = "USER_DELETED"

	StockCompensation Kind = "STOCK_COMPENSATION"
)

// Event is the sole message body on every queue except the user queues.
// It carries no id or timestamp.
type Event struct {
	Type Kind            `json:"type"`
	Data json.RawMessage `json:"data"`
}

// ---- payloads ----

// SearchProduct is the full record sent to the search queue.
type SearchProduct struct {
	ID          string          `json:"id" validate:"required"`
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Price       decimal.Decimal `json:"price"`
	Stock       int64           `json:"stock"`
	Category    string          `json:"category"`
	Images      []string        `json:"images"`
	IsActive    *bool           `json:"isActive,omitempty"`
	SellerID    string          `json:"sellerId"`
	CreatedAt   time.Time       `json:"createdAt"`
}

// Active treats a missing flag as active.
func (p SearchProduct) Active() bool { return p.IsActive == nil || *p.IsActive }

// RefProduct is the partial record sent to the order-ref-sync queue.
type RefProduct struct {
	ID       string          `json:"id" validate:"required"`
	Price    decimal.Decimal `json:"price"`
	IsActive *bool           `json:"isActive,omitempty"`
}

type ProductID struct {
	ID string `json:"id" validate:"required"`
}

type OrderItem struct {
	ProductID string `json:"productId" validate:"required"`
	Quantity  int64  `json:"quantity" validate:"gt=0"`
}

type OrderPayload struct {
	OrderID string      `json:"orderId" validate:"required"`
	Items   []OrderItem `json:"items" validate:"dive"`
}

// CompensationEntry undoes one already-applied ledger entry. Key is the
// ledger key of the entry being undone.
type CompensationEntry struct {
	Key       string `json:"key" validate:"required"`
	ProductID string `json:"productId" validate:"required"`
	Delta     int64  `json:"delta" validate:"ne=0"`
}

type StockCompensationPayload struct {
	OrderID string              `json:"orderId" validate:"required"`
	Origin  Kind                `json:"origin" validate:"oneof=ORDER_CREATED ORDER_CANCELLED"`
	Entries []CompensationEntry `json:"entries" validate:"min=1,dive"`
}

// UserPayload is the bare body on the USER_* queues.
type UserPayload struct {
	UserID   string `json:"userId"`
	Username string `json:"username,omitempty"`
	Role     string `json:"role,omitempty"`
}
