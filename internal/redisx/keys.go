package redisx

const (
	// Record hash: product:{id} -> id, name, description, price, stock, category, isActive, images, sellerId, createdAt
	KeyProduct = "product:%s"

	// Recency zset: member id, score createdAt (unix ms)
	KeyProductsAll = "products:all"

	// Category set: products:category:{lowercase category} -> ids
	KeyCategory = "products:category:%s"

	// Autocomplete zset, semua score 0: member "{prefix}\x00{id}\x00{lowercase name}"
	KeyAutocomplete = "search:autocomplete"
)

// LadderSep separates the parts of an autocomplete member. It sorts below
// every printable byte so a shorter prefix never interleaves with a longer one.
const LadderSep = "\x00"
