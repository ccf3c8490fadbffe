package orders

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

var (
	ErrNoItems         = errors.New("order needs at least one item")
	ErrInactiveProduct = errors.New("product is no longer active")
	ErrInvalidQuantity = errors.New("quantity must be positive")
)

type ItemInput struct {
	ProductID string `json:"productId"`
	Quantity  int64  `json:"quantity"`
}

// PriceItems validates every line against the local refs and prices it at
// the current ref price. The first bad line aborts with an error wrapping
// ErrNotFound, ErrInactiveProduct or ErrInvalidQuantity.
func PriceItems(ctx context.Context, refs RefStore, items []ItemInput) (Quote, error) {
	if len(items) == 0 {
		return Quote{}, ErrNoItems
	}
	q := Quote{Lines: make([]Line, 0, len(items)), Total: decimal.Zero}
	for _, it := range items {
		if it.Quantity <= 0 {
			return Quote{}, fmt.Errorf("%w: %s", ErrInvalidQuantity, it.ProductID)
		}
		ref, err := refs.Get(ctx, it.ProductID)
		if err != nil {
			return Quote{}, fmt.Errorf("%s: %w", it.ProductID, err)
		}
		if !ref.IsActive {
			return Quote{}, fmt.Errorf("%w: %s", ErrInactiveProduct, it.ProductID)
		}
		q.Lines = append(q.Lines, Line{ProductID: ref.ID, Quantity: it.Quantity, Price: ref.Price})
		q.Total = q.Total.Add(ref.Price.Mul(decimal.NewFromInt(it.Quantity)))
	}
	return q, nil
}
