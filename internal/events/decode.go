package events

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/go-playground/validator/v10"
)

var ErrInvalidEvent = errors.New("invalid event")

var (
	validateOnce sync.Once
	validate     *validator.Validate
)

func v() *validator.Validate {
	validateOnce.Do(func() { validate = validator.New() })
	return validate
}

// SearchIndexEvent is the union carried by QueueSearchIndex. Exactly one of
// Product or Deleted is set for known kinds; both are nil otherwise.
type SearchIndexEvent struct {
	Type    Kind
	Product *SearchProduct
	Deleted *ProductID
}

// OrderRefSyncEvent is the union carried by QueueOrderRefSync.
type OrderRefSyncEvent struct {
	Type Kind
	Ref  *RefProduct
}

// OrderLifecycleEvent is the union carried by QueueOrderEvents.
type OrderLifecycleEvent struct {
	Type  Kind
	Order *OrderPayload
}

// CompensationEvent is the union carried by QueueStockCompensation.
type CompensationEvent struct {
	Type         Kind
	Compensation *StockCompensationPayload
}

func DecodeSearchIndex(b []byte) (SearchIndexEvent, error) {
	env, err := decodeEnvelope(b)
	if err != nil {
		return SearchIndexEvent{}, err
	}
	out := SearchIndexEvent{Type: env.Type}
	switch env.Type {
	case ProductCreated, ProductUpdated:
		out.Product, err = decodeData[SearchProduct](env)
	case ProductDeleted:
		out.Deleted, err = decodeData[ProductID](env)
	}
	return out, err
}

func DecodeOrderRefSync(b []byte) (OrderRefSyncEvent, error) {
	env, err := decodeEnvelope(b)
	if err != nil {
		return OrderRefSyncEvent{}, err
	}
	out := OrderRefSyncEvent{Type: env.Type}
	switch env.Type {
	case ProductCreated, ProductUpdated, ProductDeleted:
		out.Ref, err = decodeData[RefProduct](env)
	}
	return out, err
}

func DecodeOrderLifecycle(b []byte) (OrderLifecycleEvent, error) {
	env, err := decodeEnvelope(b)
	if err != nil {
		return OrderLifecycleEvent{}, err
	}
	out := OrderLifecycleEvent{Type: env.Type}
	switch env.Type {
	case OrderCreated, OrderCancelled:
		out.Order, err = decodeData[OrderPayload](env)
	}
	return out, err
}

func DecodeCompensation(b []byte) (CompensationEvent, error) {
	env, err := decodeEnvelope(b)
	if err != nil {
		return CompensationEvent{}, err
	}
	out := CompensationEvent{Type: env.Type}
	if env.Type == StockCompensation {
		out.Compensation, err = decodeData[StockCompensationPayload](env)
	}
	return out, err
}

// DecodeUser decodes the bare user payload. The kind comes from the queue.
func DecodeUser(b []byte) (UserPayload, error) {
	var p UserPayload
	if err := json.Unmarshal(b, &p); err != nil {
		return p, fmt.Errorf("%w: %v", ErrInvalidEvent, err)
	}
	return p, nil
}

func decodeEnvelope(b []byte) (Event, error) {
	var env Event
	if err := json.Unmarshal(b, &env); err != nil {
		return env, fmt.Errorf("%w: %v", ErrInvalidEvent, err)
	}
	if env.Type == "" {
		return env, fmt.Errorf("%w: missing type", ErrInvalidEvent)
	}
	return env, nil
}

func decodeData[T any](env Event) (*T, error) {
	var t T
	if len(env.Data) == 0 || string(env.Data) == "null" {
		return nil, fmt.Errorf("%w: %s without data", ErrInvalidEvent, env.Type)
	}
	if err := json.Unmarshal(env.Data, &t); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrInvalidEvent, env.Type, err)
	}
	if err := v().Struct(t); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrInvalidEvent, env.Type, err)
	}
	return &t, nil
}
