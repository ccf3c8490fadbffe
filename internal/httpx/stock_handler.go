package httpx

import (
	"context"
	"encoding/json"
	"errors"
	"github.com/ariefcatur/go-catalog-sync/internal/inventory"
	"github.com/go-chi/chi/v5"
	"net/http"
	"time"
)

// StockStore is the manual stock surface of the inventory repo.
type StockStore interface {
	Adjust(ctx context.Context, id string, delta int64) (int64, error)
	Get(ctx context.Context, id string) (inventory.Product, error)
}

type StockHandler struct {
	Stock StockStore
}

type adjustReq struct {
	Delta *int64 `json:"delta"`
}

func (h *StockHandler) Register(r chi.Router) {
	r.Get("/products/{id}/stock", h.getStock)
	r.Post("/products/{id}/stock", h.adjustStock)
}

func (h *StockHandler) getStock(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	p, err := h.Stock.Get(ctx, chi.URLParam(r, "id"))
	if errors.Is(err, inventory.ErrProductNotFound) {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (h *StockHandler) adjustStock(w http.ResponseWriter, r *http.Request) {
	var req adjustReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Delta == nil {
		writeError(w, http.StatusBadRequest, "body must be {\"delta\": <int>}")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	id := chi.URLParam(r, "id")
	stock, err := h.Stock.Adjust(ctx, id, *req.Delta)
	if errors.Is(err, inventory.ErrProductNotFound) {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"id": id, "stock": stock})
}
