package catalog

import (
	"sort"
	"strings"

	"github.com/agnivade/levenshtein"

	"sunmatch/internal/util"
)

// BrandTier reports how a raw token was resolved to a canonical brand.
type BrandTier string

const (
	TierExact BrandTier = "exact"
	TierAlias BrandTier = "alias"
	TierFuzzy BrandTier = "fuzzy"
	TierNone  BrandTier = "none"
)

// BrandMatch is the resolver output. Canonical is empty iff Tier is none.
type BrandMatch struct {
	Canonical string
	Tier      BrandTier
}

// BrandAliasTable maps canonical brand names (uppercase) to lowercase alias
// tokens, including legal-suffix variants and common misspellings/OCR
// confusions. Read-only at match time.
type BrandAliasTable struct {
	aliases map[string][]string
	order   []string
}

// defaultBrandAliases is hand-curated from brands seen in Australian solar
// proposals. Every brand lists at least its own name; spacing, suffix and
// OCR variants follow.
var defaultBrandAliases = map[string][]string{
	"AIKO":           {"aiko", "aiko solar"},
	"ALPHAESS":       {"alphaess", "alpha ess", "alpha-ess"},
	"BYD":            {"byd"},
	"CANADIAN SOLAR": {"canadian solar", "canadian", "canadiansolar"},
	"EGING":          {"eging", "eging pv", "eging solar", "e-ging"},
	"ENPHASE":        {"enphase", "enphase energy"},
	"FOXESS":         {"foxess", "fox ess", "fox-ess"},
	"FRONIUS":        {"fronius"},
	"GOODWE":         {"goodwe", "good we", "good-we", "g00dwe", "goodwee"},
	"GROWATT":        {"growatt", "gr0watt"},
	"HUAWEI":         {"huawei"},
	"JA SOLAR":       {"ja solar", "jasolar", "ja-solar"},
	"JINKO":          {"jinko", "jinko solar", "jinkosolar", "j1nko"},
	"LG":             {"lg", "lg chem", "lg energy solution", "lg es"},
	"LONGI":          {"longi", "longi solar", "long1", "lon gi"},
	"PYLONTECH":      {"pylontech", "pylon tech", "pylon-tech"},
	"QCELLS":         {"qcells", "q cells", "q-cells", "q.cells", "hanwha q cells", "hanwha"},
	"REC":            {"rec", "rec solar", "rec group"},
	"RISEN":          {"risen", "risen energy", "r1sen"},
	"SERAPHIM":       {"seraphim", "seraphim solar"},
	"SIGENERGY":      {"sigenergy", "sigen", "sigenstor"},
	"SMA":            {"sma", "sma solar"},
	"SOLAREDGE":      {"solaredge", "solar edge", "solar-edge"},
	"SOLIS":          {"solis", "s0lis", "ginlong", "ginlong solis"},
	"SONNEN":         {"sonnen", "sonnen batterie", "sonnenbatterie"},
	"SUNGROW":        {"sungrow", "sun grow", "sungr0w"},
	"SUNPOWER":       {"sunpower", "sun power", "maxeon"},
	"TESLA":          {"tesla", "tesla energy", "powerwall"},
	"TRINA":          {"trina", "trina solar", "trinasolar", "tr1na"},
}

// NewBrandAliasTable builds the default table. The canonical iteration order
// is sorted so resolution is deterministic.
func NewBrandAliasTable() *BrandAliasTable {
	return NewBrandAliasTableFrom(defaultBrandAliases)
}

// NewBrandAliasTableFrom builds a table from an explicit mapping; canonical
// keys are uppercased, aliases lowercased.
func NewBrandAliasTableFrom(source map[string][]string) *BrandAliasTable {
	t := &BrandAliasTable{aliases: map[string][]string{}}
	for canonical, list := range source {
		key := util.NormalizeBrand(canonical)
		if key == "" {
			continue
		}
		seen := map[string]struct{}{}
		clean := make([]string, 0, len(list)+1)
		for _, alias := range append([]string{strings.ToLower(key)}, list...) {
			alias = strings.ToLower(strings.TrimSpace(alias))
			if alias == "" {
				continue
			}
			if _, ok := seen[alias]; ok {
				continue
			}
			seen[alias] = struct{}{}
			clean = append(clean, alias)
		}
		t.aliases[key] = clean
		t.order = append(t.order, key)
	}
	sort.Strings(t.order)
	return t
}

// Canonicals returns all canonical brands in sorted order.
func (t *BrandAliasTable) Canonicals() []string {
	out := make([]string, len(t.order))
	copy(out, t.order)
	return out
}

// Resolve maps a raw brand token onto a canonical brand. Matching order:
// exact alias equality, then token containment against aliases of length >= 3,
// then word-level fuzzy comparison (edit distance <= 1, or <= 2 for longer
// words, covering OCR damage). Tier none means the caller should fall back to
// an unscoped search.
func (t *BrandAliasTable) Resolve(raw string) BrandMatch {
	token := strings.ToLower(strings.TrimSpace(raw))
	if token == "" {
		return BrandMatch{Tier: TierNone}
	}

	for _, canonical := range t.order {
		for _, alias := range t.aliases[canonical] {
			if token == alias {
				return BrandMatch{Canonical: canonical, Tier: TierExact}
			}
		}
	}

	for _, canonical := range t.order {
		for _, alias := range t.aliases[canonical] {
			if len(alias) < 3 {
				continue
			}
			if strings.Contains(token, alias) || (len(token) >= 3 && strings.Contains(alias, token)) {
				return BrandMatch{Canonical: canonical, Tier: TierAlias}
			}
		}
	}

	for _, word := range strings.Fields(token) {
		if len(word) < 3 {
			continue
		}
		for _, canonical := range t.order {
			for _, alias := range t.aliases[canonical] {
				if fuzzyWordMatch(word, alias) {
					return BrandMatch{Canonical: canonical, Tier: TierFuzzy}
				}
			}
		}
	}

	return BrandMatch{Tier: TierNone}
}

func fuzzyWordMatch(word, alias string) bool {
	if len(alias) < 3 {
		return false
	}
	limit := 1
	if len(alias) >= 6 {
		limit = 2
	}
	diff := len(word) - len(alias)
	if diff < -limit || diff > limit {
		return false
	}
	return levenshtein.ComputeDistance(word, alias) <= limit
}
