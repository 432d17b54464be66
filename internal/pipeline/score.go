package pipeline

import (
	"math"

	"sunmatch/internal"
	"sunmatch/internal/util"
)

// Evidence scoring constants. Base score by match kind, additive boosts for
// section proximity and spec consistency, capped so one row never reaches
// certainty.
const (
	basePatternScore   = 0.60
	baseAliasScore     = 0.40
	baseBrandOnlyScore = 0.30

	anchorBoost = 0.25
	specBoost   = 0.30

	evidenceScoreCap = 0.99
	confidenceCap    = 0.99
)

// AcceptancePolicy holds the needs-confirmation thresholds: a default and
// per-brand overrides (tuned from historical correction data upstream; the
// engine treats them as injected data).
type AcceptancePolicy struct {
	Default  float64
	PerBrand map[string]float64
}

// ThresholdFor returns the auto-accept threshold for a canonical brand.
func (p AcceptancePolicy) ThresholdFor(brand string) float64 {
	if t, ok := p.PerBrand[brand]; ok {
		return t
	}
	if p.Default > 0 {
		return p.Default
	}
	return 0.85
}

// buildEvidence converts one located hit into a scored EvidenceRow.
func buildEvidence(doc Document, product internal.Product, hit locatedMatch, contextWindow, anchorWindow int) internal.EvidenceRow {
	ctx := doc.Context(hit.start, hit.end, contextWindow)
	nearAnchor := doc.NearAnchor(hit.start, anchorWindow)
	specHit := specConsistent(product, ctx)

	score := baseScore(hit.kind)
	if nearAnchor {
		score += anchorBoost
	}
	if specHit {
		score += specBoost
	}
	if score > evidenceScoreCap {
		score = evidenceScoreCap
	}

	return internal.EvidenceRow{
		Snippet:           doc.Text[hit.start:hit.end],
		Position:          hit.start,
		Kind:              hit.kind,
		Score:             score,
		NearSectionAnchor: nearAnchor,
		SpecInContext:     specHit,
	}
}

func baseScore(kind internal.EvidenceKind) float64 {
	switch kind {
	case internal.EvidencePattern:
		return basePatternScore
	case internal.EvidenceAlias:
		return baseAliasScore
	default:
		return baseBrandOnlyScore
	}
}

// specConsistent checks the candidate's declared rating against figures in
// the context window. Panels want the exact wattage (or its kW rendering);
// batteries allow ±15% or ±1 kWh, whichever is larger; inverters want the
// exact kW figure.
func specConsistent(product internal.Product, ctx string) bool {
	if product.Spec == nil {
		return false
	}
	want := *product.Spec

	switch product.Type {
	case internal.TypePanel:
		for _, w := range util.WattTokens(ctx) {
			if w == want {
				return true
			}
		}
		for _, kw := range util.KWTokens(ctx) {
			if math.Abs(kw*1000-want) < 0.5 {
				return true
			}
		}
	case internal.TypeBattery:
		tolerance := math.Max(0.15*want, 1.0)
		for _, kwh := range util.KWhTokens(ctx) {
			if math.Abs(kwh-want) <= tolerance {
				return true
			}
		}
	case internal.TypeInverter:
		for _, kw := range util.KWTokens(ctx) {
			if math.Abs(kw-want) < 0.01 {
				return true
			}
		}
	}
	return false
}

// aggregateConfidence is the arithmetic mean of evidence scores, clamped.
// Mean, not sum: many weak repeated matches must not inflate confidence.
// brandOnly rows are support-only in the aggregate: they fold into the mean
// when they raise it, but a weak brand mention must never drag down a
// candidate already established by pattern or alias evidence.
func aggregateConfidence(evidence []internal.EvidenceRow) float64 {
	if len(evidence) == 0 {
		return 0
	}
	total := 0.0
	primaryTotal, primaryCount := 0.0, 0
	for _, ev := range evidence {
		total += ev.Score
		if ev.Kind != internal.EvidenceBrandOnly {
			primaryTotal += ev.Score
			primaryCount++
		}
	}
	mean := total / float64(len(evidence))
	if primaryCount > 0 {
		if primary := primaryTotal / float64(primaryCount); primary > mean {
			mean = primary
		}
	}
	if mean > confidenceCap {
		return confidenceCap
	}
	if mean < 0 {
		return 0
	}
	return mean
}

// accepted is the hard filter deciding whether a candidate is returned at
// all: enough aggregate confidence, or a pattern hit, or two independent
// alias hits. Candidates whose evidence is entirely brandOnly are never
// accepted; that surface corroborates, it does not establish.
func accepted(c internal.MatchCandidate, minConfidence float64) bool {
	patterns, aliases, others := 0, 0, 0
	for _, ev := range c.Evidence {
		switch ev.Kind {
		case internal.EvidencePattern:
			patterns++
		case internal.EvidenceAlias:
			aliases++
		default:
			others++
		}
	}
	if patterns == 0 && aliases == 0 {
		return false
	}
	if c.Confidence >= minConfidence {
		return true
	}
	return patterns >= 1 || aliases >= 2
}
