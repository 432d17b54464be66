package pipeline

import (
	"sort"

	"sunmatch/internal"
	"sunmatch/internal/catalog"
	"sunmatch/internal/util"
)

// locatedMatch is one raw positional hit before scoring.
type locatedMatch struct {
	kind  internal.EvidenceKind
	start int
	end   int
}

// locateParams bound the scans; values come from config.
type locateParams struct {
	contextWindow int
	brandWindow   int
}

// locateProduct scans the document for one catalog entry. All three surfaces
// are attempted (pattern, aliases, brand window) and the union kept, except
// that overlapping hits collapse to the strongest kind: a pattern hit and an
// alias hit over the same span are one observation, not two.
//
// Every surviving hit must pass the cross-type validation gate; a battery
// capacity figure must not produce panel evidence and vice versa.
func locateProduct(doc Document, entry catalog.Entry, p locateParams) []locatedMatch {
	var hits []locatedMatch

	if entry.Pattern != nil {
		for _, span := range entry.Pattern.FindAllStringIndex(doc.Text, -1) {
			hits = append(hits, locatedMatch{kind: internal.EvidencePattern, start: span[0], end: span[1]})
		}
	}

	for _, surface := range entry.Surfaces {
		buffer := doc.Text
		if surface.Folded {
			buffer = doc.Folded
		}
		for _, span := range surface.Re.FindAllStringIndex(buffer, -1) {
			hits = append(hits, locatedMatch{kind: internal.EvidenceAlias, start: span[0], end: span[1]})
		}
	}

	hits = collapseOverlaps(hits)

	// Brand-window heuristic: weakest evidence, only added where no pattern
	// or alias hit already covers the brand occurrence.
	for _, span := range entry.BrandRe.FindAllStringIndex(doc.Text, -1) {
		if overlapsAny(hits, span[0], span[1]) {
			continue
		}
		windowEnd := span[1] + p.brandWindow
		if windowEnd > len(doc.Text) {
			windowEnd = len(doc.Text)
		}
		if windowContainsModelToken(doc.Text[span[1]:windowEnd], entry.ModelTokens) {
			hits = append(hits, locatedMatch{kind: internal.EvidenceBrandOnly, start: span[0], end: span[1]})
		}
	}

	out := hits[:0]
	for _, h := range hits {
		ctx := doc.Context(h.start, h.end, p.contextWindow)
		if passesTypeGate(entry.Product.Type, ctx) {
			out = append(out, h)
		}
	}

	sort.Slice(out, func(i, j int) bool { return out[i].start < out[j].start })
	return out
}

// collapseOverlaps keeps the strongest kind per overlapping span. Kind
// priority: pattern > alias > brandOnly; within a kind, the earlier and then
// longer span wins.
func collapseOverlaps(hits []locatedMatch) []locatedMatch {
	sort.Slice(hits, func(i, j int) bool {
		pi, pj := kindPriority(hits[i].kind), kindPriority(hits[j].kind)
		if pi != pj {
			return pi > pj
		}
		if hits[i].start != hits[j].start {
			return hits[i].start < hits[j].start
		}
		return hits[i].end-hits[i].start > hits[j].end-hits[j].start
	})

	kept := make([]locatedMatch, 0, len(hits))
	for _, h := range hits {
		if overlapsAny(kept, h.start, h.end) {
			continue
		}
		kept = append(kept, h)
	}
	return kept
}

func overlapsAny(hits []locatedMatch, start, end int) bool {
	for _, h := range hits {
		if start < h.end && h.start < end {
			return true
		}
	}
	return false
}

func kindPriority(kind internal.EvidenceKind) int {
	switch kind {
	case internal.EvidencePattern:
		return 3
	case internal.EvidenceAlias:
		return 2
	default:
		return 1
	}
}

func windowContainsModelToken(window string, modelTokens []string) bool {
	if len(modelTokens) == 0 {
		return false
	}
	present := map[string]struct{}{}
	for _, t := range util.Tokenize(window) {
		present[t] = struct{}{}
	}
	for _, t := range modelTokens {
		if _, ok := present[t]; ok {
			return true
		}
	}
	return false
}

// passesTypeGate enforces spec-consistency around a hit:
//
//	panel:    a plausible wattage figure (or a kW figure convertible to a
//	          panel wattage) and no kWh figure nearby
//	battery:  a kWh figure nearby
//	inverter: a bare-kW figure and no kWh figure nearby
func passesTypeGate(t internal.ProductType, ctx string) bool {
	kwh := util.KWhTokens(ctx)
	switch t {
	case internal.TypePanel:
		if len(kwh) > 0 {
			return false
		}
		if len(util.WattTokens(ctx)) > 0 {
			return true
		}
		for _, kw := range util.KWTokens(ctx) {
			if kw >= 0.2 && kw <= 0.8 {
				return true
			}
		}
		return false
	case internal.TypeBattery:
		return len(kwh) > 0
	case internal.TypeInverter:
		return len(kwh) == 0 && len(util.KWTokens(ctx)) > 0
	}
	return false
}
