package httpx

import (
	"context"
	"errors"
	"github.com/ariefcatur/go-catalog-sync/internal/search"
	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

type SearchHandler struct {
	Reader *search.Reader
}

func (h *SearchHandler) Register(r chi.Router) {
	r.Get("/api/search", h.list)
	r.Get("/api/search/suggestions", h.suggestions)
	r.Get("/api/search/product/{id}", h.product)
}

func (h *SearchHandler) list(w http.ResponseWriter, r *http.Request) {
	f, err := parseFilter(r.URL.Query())
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	page, err := h.Reader.List(ctx, f)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, page)
}

func (h *SearchHandler) suggestions(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	s, err := h.Reader.Suggest(ctx, r.URL.Query().Get("q"))
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string][]string{"suggestions": s})
}

func (h *SearchHandler) product(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	p, err := h.Reader.Get(ctx, chi.URLParam(r, "id"))
	if errors.Is(err, search.ErrNotFound) {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func parseFilter(v url.Values) (search.Filter, error) {
	f := search.Filter{Q: v.Get("q"), Category: v.Get("category")}
	var err error
	if f.MinPrice, err = optDecimal(v, "minPrice"); err != nil {
		return f, err
	}
	if f.MaxPrice, err = optDecimal(v, "maxPrice"); err != nil {
		return f, err
	}
	if f.Page, err = optInt(v, "page"); err != nil {
		return f, err
	}
	if f.Limit, err = optInt(v, "limit"); err != nil {
		return f, err
	}
	return f, nil
}

func optDecimal(v url.Values, key string) (*decimal.Decimal, error) {
	s := v.Get(key)
	if s == "" {
		return nil, nil
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return nil, errors.New("invalid " + key)
	}
	return &d, nil
}

// optInt returns 0 for a missing value; the reader applies the defaults.
func optInt(v url.Values, key string) (int, error) {
	s := v.Get(key)
	if s == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, errors.New("invalid " + key)
	}
	return n, nil
}
