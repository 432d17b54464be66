package catalog

import (
	"fmt"
	"regexp"
	"runtime"
	"sort"
	"strings"
	"sync"

	"go.uber.org/zap"

	"sunmatch/internal"
	"sunmatch/internal/util"
)

// AliasSurface is one literal detection surface for a product. Folded
// surfaces are scanned against the OCR-folded shadow of the document text.
type AliasSurface struct {
	Literal string
	Re      *regexp.Regexp
	Folded  bool
}

// Entry is the precomputed search state for one product. Pattern is nil when
// the generated expression failed to compile; the entry then matches through
// its aliases only.
type Entry struct {
	Product     internal.Product
	Pattern     *regexp.Regexp
	Aliases     []string
	Surfaces    []AliasSurface
	ModelTokens []string
	BrandRe     *regexp.Regexp
}

// Index is the immutable per-catalog search structure. Built once per catalog
// load, passed by reference into every matching run; nothing mutates it after
// construction.
type Index struct {
	Entries []Entry
	ByBrand map[string][]int
	Brands  *BrandAliasTable
	Defects []string
	Skipped int
}

// BuildIndex precomputes patterns and alias surfaces for every product.
// Products are independent, so entries are built in parallel; the result
// keeps catalog order (sorted by product ID) for deterministic scans.
// Malformed products are logged and skipped, never fatal.
func BuildIndex(products []internal.Product, brands *BrandAliasTable, logger *zap.Logger) *Index {
	if logger == nil {
		logger = zap.NewNop()
	}
	if brands == nil {
		brands = NewBrandAliasTable()
	}

	ordered := make([]internal.Product, len(products))
	copy(ordered, products)
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].ID < ordered[j].ID })

	type built struct {
		entry   *Entry
		defects []string
		skipped bool
		reason  string
	}
	results := make([]built, len(ordered))

	workers := runtime.NumCPU()
	if workers > len(ordered) {
		workers = len(ordered)
	}
	if workers < 1 {
		workers = 1
	}

	jobs := make(chan int)
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				entry, defects, reason := buildEntry(ordered[i])
				results[i] = built{entry: entry, defects: defects, skipped: entry == nil, reason: reason}
			}
		}()
	}
	for i := range ordered {
		jobs <- i
	}
	close(jobs)
	wg.Wait()

	idx := &Index{ByBrand: map[string][]int{}, Brands: brands}
	for i, res := range results {
		if res.skipped {
			idx.Skipped++
			logger.Warn("catalog entry skipped",
				zap.String("productId", ordered[i].ID),
				zap.String("reason", res.reason))
			continue
		}
		idx.Defects = append(idx.Defects, res.defects...)
		for _, d := range res.defects {
			logger.Warn("catalog data defect", zap.String("productId", ordered[i].ID), zap.String("defect", d))
		}
		pos := len(idx.Entries)
		idx.Entries = append(idx.Entries, *res.entry)
		idx.ByBrand[res.entry.Product.Brand] = append(idx.ByBrand[res.entry.Product.Brand], pos)
	}

	return idx
}

// Len reports how many products are searchable.
func (idx *Index) Len() int { return len(idx.Entries) }

// ProductsOfBrand returns the entries for one canonical brand, in catalog
// order.
func (idx *Index) ProductsOfBrand(brand string) []Entry {
	out := make([]Entry, 0, len(idx.ByBrand[brand]))
	for _, pos := range idx.ByBrand[brand] {
		out = append(out, idx.Entries[pos])
	}
	return out
}

func buildEntry(p internal.Product) (*Entry, []string, string) {
	brand := util.NormalizeBrand(p.Brand)
	model := util.NormalizeModel(p.Model)
	if brand == "" || model == "" {
		return nil, nil, "empty brand or model after normalization"
	}
	if !p.Type.Valid() {
		return nil, nil, fmt.Sprintf("unknown product type %q", p.Type)
	}

	p.Brand = brand
	p.Model = model

	entry := &Entry{Product: p}
	var defects []string

	patternSrc := `\b` + regexp.QuoteMeta(brand) + `[-\s]*` + flexibleModel(model) + `\b`
	pattern, err := regexp.Compile(patternSrc)
	if err != nil {
		// Alias-only fallback; a data-quality defect, never fatal.
		defects = append(defects, fmt.Sprintf("pattern does not compile: %v", err))
	} else {
		entry.Pattern = pattern
	}

	aliases := generateAliases(brand, model, p.Type, p.Spec)
	if entry.Pattern != nil {
		for _, alias := range aliases {
			if entry.Pattern.MatchString(alias) || entry.Pattern.MatchString(brand+" "+alias) {
				continue
			}
			defects = append(defects, fmt.Sprintf("pattern does not cover alias %q", alias))
		}
	}

	addSurface := func(literal string, folded bool) {
		re, err := regexp.Compile(util.WordBounded(literal))
		if err != nil {
			defects = append(defects, fmt.Sprintf("alias does not compile: %q", literal))
			return
		}
		entry.Surfaces = append(entry.Surfaces, AliasSurface{Literal: literal, Re: re, Folded: folded})
	}

	for _, alias := range aliases {
		addSurface(alias, false)
	}

	// OCR-confusion variants (0<->O, 1<->I) scan the folded document shadow
	// so garbled text still meets its clean catalog form; positions line up
	// because folding is byte-for-byte.
	foldedSet := make([]string, 0, len(aliases))
	for _, alias := range aliases {
		folded := util.OCRFold(alias)
		if folded != alias {
			foldedSet = append(foldedSet, folded)
		}
	}
	for _, folded := range dedupe(foldedSet) {
		addSurface(folded, true)
		aliases = append(aliases, folded)
	}
	aliases = dedupe(aliases)
	entry.Aliases = aliases

	for _, token := range util.Tokenize(model) {
		if len(token) >= 3 {
			entry.ModelTokens = append(entry.ModelTokens, token)
		}
	}

	entry.BrandRe = regexp.MustCompile(util.WordBounded(brand))

	return entry, defects, ""
}

// flexibleModel rewrites a model designator into a regex fragment with
// flexible separators: '-' may appear as hyphen, whitespace or nothing; '/'
// also admits a hyphen; '.' stays literal; spaces become optional.
func flexibleModel(model string) string {
	var b strings.Builder
	for _, r := range model {
		switch r {
		case '-':
			b.WriteString(`[-\s]?`)
		case '/':
			b.WriteString(`[/\-\s]?`)
		case '.':
			b.WriteString(`\.`)
		case ' ':
			b.WriteString(`\s?`)
		default:
			b.WriteString(regexp.QuoteMeta(string(r)))
		}
	}
	return b.String()
}

// generateAliases produces the literal surfaces for brand+model: common
// separator renderings, the model alone, the separator-stripped model, and
// brand+model+spec concatenations when a rating is present. Order-insensitive
// set; dedupe keeps first occurrence.
func generateAliases(brand, model string, ptype internal.ProductType, spec *float64) []string {
	stripped := util.StripSeparators(model)
	out := []string{
		brand + " " + model,
		brand + model,
		brand + "-" + model,
		brand + "/" + model,
		model,
		stripped,
		brand + " " + stripped,
	}

	if spec != nil {
		unit := strings.ToUpper(ptype.SpecUnit())
		figure := strings.TrimSuffix(fmt.Sprintf("%.1f", *spec), ".0")
		out = append(out,
			brand+" "+model+" "+figure+unit,
			model+" "+figure+unit,
		)
	}

	return dedupe(out)
}

func dedupe(in []string) []string {
	seen := map[string]struct{}{}
	out := make([]string, 0, len(in))
	for _, s := range in {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}
