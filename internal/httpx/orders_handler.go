package httpx

import (
	"context"
	"encoding/json"
	"errors"
	"github.com/ariefcatur/go-catalog-sync/internal/events"
	"github.com/ariefcatur/go-catalog-sync/internal/orders"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"log/slog"
	"net/http"
	"time"
)

type OrdersHandler struct {
	Refs   orders.RefStore
	Events events.OrderPublisher
	Log    *slog.Logger
}

type CreateOrderReq struct {
	Items []orders.ItemInput `json:"items"`
}

type CreateOrderResp struct {
	OrderID string          `json:"orderId"`
	Items   []orders.Line   `json:"items"`
	Total   decimal.Decimal `json:"total"`
}

func (h *OrdersHandler) Register(r chi.Router) {
	r.Get("/product-refs/{id}", h.getRef)
	r.Post("/orders", h.createOrder)
	r.Post("/orders/{id}/cancel", h.cancelOrder)
}

func (h *OrdersHandler) getRef(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	ref, err := h.Refs.Get(ctx, chi.URLParam(r, "id"))
	if errors.Is(err, orders.ErrNotFound) {
		writeError(w, http.StatusNotFound, "product not found")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, ref)
}

// createOrder harga diambil dari ProductRef lokal, bukan dari client.
func (h *OrdersHandler) createOrder(w http.ResponseWriter, r *http.Request) {
	var req CreateOrderReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	q, err := orders.PriceItems(ctx, h.Refs, req.Items)
	if err != nil {
		writeError(w, orderErrorStatus(err), err.Error())
		return
	}

	orderID := uuid.NewString()
	h.Events.Created(events.OrderPayload{OrderID: orderID, Items: toEventItems(req.Items)})
	h.Log.Info("order created", "order_id", orderID, "items", len(q.Lines), "total", q.Total.String())
	writeJSON(w, http.StatusCreated, CreateOrderResp{OrderID: orderID, Items: q.Lines, Total: q.Total})
}

func (h *OrdersHandler) cancelOrder(w http.ResponseWriter, r *http.Request) {
	var req CreateOrderReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}
	if len(req.Items) == 0 {
		writeError(w, http.StatusBadRequest, orders.ErrNoItems.Error())
		return
	}
	for _, it := range req.Items {
		if it.ProductID == "" || it.Quantity <= 0 {
			writeError(w, http.StatusBadRequest, "invalid item")
			return
		}
	}
	orderID := chi.URLParam(r, "id")
	h.Events.Cancelled(events.OrderPayload{OrderID: orderID, Items: toEventItems(req.Items)})
	h.Log.Info("order cancelled", "order_id", orderID, "items", len(req.Items))
	writeJSON(w, http.StatusAccepted, map[string]string{"orderId": orderID})
}

func orderErrorStatus(err error) int {
	switch {
	case errors.Is(err, orders.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, orders.ErrInactiveProduct),
		errors.Is(err, orders.ErrInvalidQuantity),
		errors.Is(err, orders.ErrNoItems):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func toEventItems(items []orders.ItemInput) []events.OrderItem {
	out := make([]events.OrderItem, 0, len(items))
	for _, it := range items {
		out = append(out, events.OrderItem{ProductID: it.ProductID, Quantity: it.Quantity})
	}
	return out
}
