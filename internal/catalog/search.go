package catalog

import (
	"sort"
	"strings"

	"github.com/lithammer/fuzzysearch/fuzzy"

	"sunmatch/internal"
	"sunmatch/internal/util"
)

// SearchResult is one catalog product scored against a free-text query.
type SearchResult struct {
	Product internal.Product `json:"product"`
	Score   float64          `json:"score"`
	Brand   BrandMatch       `json:"brand"`
}

// Search answers a free-text equipment query against the catalog.
//
// When a brand resolves from the query, filtering is brand-strict: only that
// brand's products are scored and returned, whatever the model portion says.
// When no brand resolves, the whole catalog is scored fuzzily and the result
// is capped at limit (the explicit unscoped fallback).
func (idx *Index) Search(query string, limit int) []SearchResult {
	normalized := util.NormalizeBrand(query)
	if normalized == "" || idx.Len() == 0 {
		return nil
	}
	if limit <= 0 {
		limit = 50
	}

	brand := idx.Brands.Resolve(normalized)
	if brand.Tier != TierNone {
		if _, known := idx.ByBrand[brand.Canonical]; known {
			return idx.searchWithinBrand(normalized, brand, limit)
		}
		// Brand resolved but absent from this catalog; an empty result is
		// more honest than leaking other brands.
		return []SearchResult{}
	}

	return idx.searchUnscoped(normalized, limit)
}

func (idx *Index) searchWithinBrand(query string, brand BrandMatch, limit int) []SearchResult {
	queryTokens := util.Tokenize(query)
	out := make([]SearchResult, 0, len(idx.ByBrand[brand.Canonical]))
	for _, pos := range idx.ByBrand[brand.Canonical] {
		entry := idx.Entries[pos]
		out = append(out, SearchResult{
			Product: entry.Product,
			Score:   scoreAgainstQuery(query, queryTokens, entry),
			Brand:   brand,
		})
	}
	sortResults(out)
	if len(out) > limit {
		out = out[:limit]
	}
	return out
}

func (idx *Index) searchUnscoped(query string, limit int) []SearchResult {
	queryTokens := util.Tokenize(query)
	out := make([]SearchResult, 0, idx.Len())
	for _, entry := range idx.Entries {
		out = append(out, SearchResult{
			Product: entry.Product,
			Score:   scoreAgainstQuery(query, queryTokens, entry),
			Brand:   BrandMatch{Tier: TierNone},
		})
	}
	sortResults(out)
	if len(out) > limit {
		out = out[:limit]
	}
	return out
}

// scoreAgainstQuery blends token overlap with normalized edit distance
// against the product's best alias.
func scoreAgainstQuery(query string, queryTokens []string, entry Entry) float64 {
	surface := entry.Product.Brand + " " + entry.Product.Model
	best := similarity(query, surface)
	for _, alias := range entry.Aliases {
		if s := similarity(query, alias); s > best {
			best = s
		}
	}

	if len(queryTokens) == 0 {
		return best
	}

	entryTokens := map[string]struct{}{}
	for _, t := range util.Tokenize(surface) {
		entryTokens[t] = struct{}{}
	}
	overlap := 0
	for _, t := range queryTokens {
		if _, ok := entryTokens[t]; ok {
			overlap++
		}
	}
	tokenScore := float64(overlap) / float64(len(queryTokens))

	return 0.55*best + 0.45*tokenScore
}

func similarity(a, b string) float64 {
	a = strings.ToLower(a)
	b = strings.ToLower(b)
	if a == b {
		return 1
	}
	longest := len(a)
	if len(b) > longest {
		longest = len(b)
	}
	if longest == 0 {
		return 0
	}
	dist := fuzzy.LevenshteinDistance(a, b)
	score := 1 - float64(dist)/float64(longest)
	if score < 0 {
		return 0
	}
	return score
}

func sortResults(out []SearchResult) {
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].Product.ID < out[j].Product.ID
	})
}
