// Package search maintains the Redis product index and answers listing and
// autocomplete queries from it.
package search

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/ariefcatur/go-catalog-sync/internal/redisx"
	"github.com/shopspring/decimal"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

type Product struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Price       decimal.Decimal `json:"price"`
	Stock       int64           `json:"stock"`
	Category    string          `json:"category"`
	IsActive    bool            `json:"isActive"`
	Images      []string        `json:"images"`
	SellerID    string          `json:"sellerId"`
	CreatedAt   time.Time       `json:"createdAt"`
}

// fold lowercases for keys and matching. A Caser is stateful, so one is
// built per call.
func fold(s string) string {
	return cases.Lower(language.Und).String(s)
}

func productKey(id string) string { return fmt.Sprintf(redisx.KeyProduct, id) }

func categoryKey(foldedCategory string) string {
	return fmt.Sprintf(redisx.KeyCategory, foldedCategory)
}

// ladder lists the autocomplete members for a folded name: one per prefix of
// two runes or more.
func ladder(id, foldedName string) []string {
	runes := []rune(foldedName)
	if len(runes) < 2 {
		return nil
	}
	out := make([]string, 0, len(runes)-1)
	for i := 2; i <= len(runes); i++ {
		out = append(out, string(runes[:i])+redisx.LadderSep+id+redisx.LadderSep+foldedName)
	}
	return out
}

// parseLadder splits a member into its id and folded name.
func parseLadder(member string) (id, name string, ok bool) {
	parts := strings.SplitN(member, redisx.LadderSep, 3)
	if len(parts) != 3 {
		return "", "", false
	}
	return parts[1], parts[2], true
}

func toHash(p Product) map[string]any {
	images := p.Images
	if images == nil {
		images = []string{}
	}
	imgs, _ := json.Marshal(images)
	return map[string]any{
		"id":          p.ID,
		"name":        p.Name,
		"description": p.Description,
		"price":       p.Price.String(),
		"stock":       strconv.FormatInt(p.Stock, 10),
		"category":    p.Category,
		"isActive":    strconv.FormatBool(p.IsActive),
		"images":      string(imgs),
		"sellerId":    p.SellerID,
		"createdAt":   p.CreatedAt.UTC().Format(time.RFC3339Nano),
	}
}

// fromHash decodes a record hash. Unparseable numeric fields read as zero,
// the same way a missing field does.
func fromHash(h map[string]string) (Product, bool) {
	if h["id"] == "" {
		return Product{}, false
	}
	p := Product{
		ID:          h["id"],
		Name:        h["name"],
		Description: h["description"],
		Category:    h["category"],
		IsActive:    h["isActive"] == "true",
		SellerID:    h["sellerId"],
		Images:      []string{},
	}
	p.Price, _ = decimal.NewFromString(h["price"])
	p.Stock, _ = strconv.ParseInt(h["stock"], 10, 64)
	if raw := h["images"]; raw != "" {
		_ = json.Unmarshal([]byte(raw), &p.Images)
	}
	p.CreatedAt, _ = time.Parse(time.RFC3339Nano, h["createdAt"])
	return p, true
}
