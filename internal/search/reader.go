package search

import (
	"context"
	"errors"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/ariefcatur/go-catalog-sync/internal/redisx"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
)

var ErrNotFound = errors.New("product not found")

const (
	DefaultLimit   = 10
	MaxLimit       = 100
	MaxSuggestions = 5
	MinQueryRunes  = 2
)

type Filter struct {
	Q        string
	Category string
	MinPrice *decimal.Decimal
	MaxPrice *decimal.Decimal
	Page     int
	Limit    int
}

type Pagination struct {
	Page  int `json:"page"`
	Limit int `json:"limit"`
	Total int `json:"total"`
	Pages int `json:"pages"`
}

type Page struct {
	Products   []Product  `json:"products"`
	Pagination Pagination `json:"pagination"`
}

type Reader struct {
	rdb *redis.Client
	// suggestScan bounds the lex range read per suggestion query.
	suggestScan int64
}

func NewReader(rdb *redis.Client, suggestScan int) *Reader {
	if suggestScan < MaxSuggestions {
		suggestScan = MaxSuggestions
	}
	return &Reader{rdb: rdb, suggestScan: int64(suggestScan)}
}

// List returns active products matching f, newest first. Ties on createdAt
// are broken by id so pages never overlap.
func (r *Reader) List(ctx context.Context, f Filter) (Page, error) {
	if f.Page < 1 {
		f.Page = 1
	}
	if f.Limit < 1 {
		f.Limit = DefaultLimit
	}
	if f.Limit > MaxLimit {
		f.Limit = MaxLimit
	}
	out := Page{Products: []Product{}, Pagination: Pagination{Page: f.Page, Limit: f.Limit}}

	var (
		ids []string
		err error
	)
	if f.Category != "" {
		ids, err = r.rdb.SMembers(ctx, categoryKey(fold(f.Category))).Result()
	} else {
		ids, err = r.rdb.ZRevRange(ctx, redisx.KeyProductsAll, 0, -1).Result()
	}
	if err != nil {
		return Page{}, err
	}
	if len(ids) == 0 {
		return out, nil
	}

	records, err := r.load(ctx, ids)
	if err != nil {
		return Page{}, err
	}

	q := fold(f.Q)
	matched := make([]Product, 0, len(records))
	for _, p := range records {
		if !p.IsActive {
			continue
		}
		if q != "" && !strings.Contains(fold(p.Name), q) && !strings.Contains(fold(p.Description), q) {
			continue
		}
		if f.MinPrice != nil && p.Price.LessThan(*f.MinPrice) {
			continue
		}
		if f.MaxPrice != nil && p.Price.GreaterThan(*f.MaxPrice) {
			continue
		}
		matched = append(matched, p)
	}
	sort.Slice(matched, func(i, j int) bool {
		a, b := matched[i], matched[j]
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.After(b.CreatedAt)
		}
		return a.ID < b.ID
	})

	total := len(matched)
	out.Pagination.Total = total
	out.Pagination.Pages = (total + f.Limit - 1) / f.Limit
	// past the last page; also keeps (Page-1)*Limit from overflowing
	if f.Page > out.Pagination.Pages {
		return out, nil
	}
	start := (f.Page - 1) * f.Limit
	end := min(start+f.Limit, total)
	out.Products = matched[start:end]
	return out, nil
}

// load reads the record hashes in one pipeline. Ids whose hash is gone are
// skipped.
func (r *Reader) load(ctx context.Context, ids []string) ([]Product, error) {
	pipe := r.rdb.Pipeline()
	cmds := make([]*redis.MapStringStringCmd, len(ids))
	for i, id := range ids {
		cmds[i] = pipe.HGetAll(ctx, productKey(id))
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, err
	}
	out := make([]Product, 0, len(ids))
	for _, c := range cmds {
		if p, ok := fromHash(c.Val()); ok {
			out = append(out, p)
		}
	}
	return out, nil
}

// Suggest returns up to five distinct product names starting with q. Queries
// shorter than two characters return nothing.
func (r *Reader) Suggest(ctx context.Context, q string) ([]string, error) {
	prefix := fold(q)
	if utf8.RuneCountInString(prefix) < MinQueryRunes {
		return []string{}, nil
	}
	members, err := r.rdb.ZRangeByLex(ctx, redisx.KeyAutocomplete, &redis.ZRangeBy{
		Min:   "[" + prefix,
		Max:   "[" + prefix + "\xff",
		Count: r.suggestScan,
	}).Result()
	if err != nil {
		return nil, err
	}

	type hit struct{ id, folded string }
	seen := map[string]bool{}
	hits := make([]hit, 0, MaxSuggestions)
	for _, m := range members {
		id, name, ok := parseLadder(m)
		if !ok || seen[name] {
			continue
		}
		seen[name] = true
		hits = append(hits, hit{id: id, folded: name})
		if len(hits) == MaxSuggestions {
			break
		}
	}
	if len(hits) == 0 {
		return []string{}, nil
	}

	pipe := r.rdb.Pipeline()
	names := make([]*redis.StringCmd, len(hits))
	for i, h := range hits {
		names[i] = pipe.HGet(ctx, productKey(h.id), "name")
	}
	if _, err := pipe.Exec(ctx); err != nil && !errors.Is(err, redis.Nil) {
		return nil, err
	}
	out := make([]string, len(hits))
	for i, h := range hits {
		out[i] = h.folded
		if n := names[i].Val(); n != "" {
			out[i] = n
		}
	}
	return out, nil
}

func (r *Reader) Get(ctx context.Context, id string) (Product, error) {
	h, err := r.rdb.HGetAll(ctx, productKey(id)).Result()
	if err != nil {
		return Product{}, err
	}
	p, ok := fromHash(h)
	if !ok {
		return Product{}, ErrNotFound
	}
	return p, nil
}
