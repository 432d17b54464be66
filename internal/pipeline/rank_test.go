package pipeline

import (
	"testing"

	"sunmatch/internal"
)

func candidate(id, brand string, confidence float64, position int) internal.MatchCandidate {
	return internal.MatchCandidate{
		Product:    internal.Product{ID: id, Brand: brand, Type: internal.TypePanel},
		Confidence: confidence,
		Evidence:   []internal.EvidenceRow{{Position: position, Kind: internal.EvidencePattern, Score: confidence}},
	}
}

func TestRankCandidates(t *testing.T) {
	in := []internal.MatchCandidate{
		candidate("c", "EGING", 0.80, 10),
		candidate("a", "EGING", 0.95, 500),
		candidate("b", "TRINA", 0.80, 5),
	}

	out := rankCandidates(in, 0)
	if out[0].Product.ID != "a" {
		t.Fatalf("highest confidence first, got %q", out[0].Product.ID)
	}
	// Equal confidence breaks toward the earlier document position.
	if out[1].Product.ID != "b" || out[2].Product.ID != "c" {
		t.Fatalf("position tiebreak wrong: %q, %q", out[1].Product.ID, out[2].Product.ID)
	}
}

func TestRankCandidatesCap(t *testing.T) {
	in := []internal.MatchCandidate{
		candidate("a", "EGING", 0.9, 1),
		candidate("b", "EGING", 0.8, 2),
		candidate("c", "EGING", 0.7, 3),
	}
	out := rankCandidates(in, 2)
	if len(out) != 2 {
		t.Fatalf("cap not applied: %d", len(out))
	}
}

func TestSelectPrimaryAboveThreshold(t *testing.T) {
	policy := AcceptancePolicy{Default: 0.85}
	sel := SelectPrimary([]internal.MatchCandidate{
		candidate("a", "EGING", 0.90, 1),
		candidate("b", "EGING", 0.80, 2),
	}, policy)
	if sel.Best == nil || sel.Best.Product.ID != "a" {
		t.Fatalf("best = %+v", sel.Best)
	}
	if len(sel.Alternatives) != 0 {
		t.Fatalf("no alternatives expected, got %d", len(sel.Alternatives))
	}
}

func TestSelectPrimaryBelowThresholdOffersSameBrand(t *testing.T) {
	policy := AcceptancePolicy{Default: 0.85}
	sel := SelectPrimary([]internal.MatchCandidate{
		candidate("a", "EGING", 0.80, 1),
		candidate("b", "EGING", 0.75, 2),
		candidate("c", "TRINA", 0.70, 3),
	}, policy)
	if sel.Best != nil {
		t.Fatalf("no best expected below threshold, got %+v", sel.Best)
	}
	if len(sel.Alternatives) != 2 {
		t.Fatalf("expected 2 same-brand alternatives, got %d", len(sel.Alternatives))
	}
	for _, alt := range sel.Alternatives {
		if alt.Product.Brand != "EGING" {
			t.Fatalf("alternative from wrong brand: %q", alt.Product.Brand)
		}
	}
}

func TestSelectPrimaryPerBrandOverride(t *testing.T) {
	policy := AcceptancePolicy{Default: 0.85, PerBrand: map[string]float64{"EGING": 0.95}}
	sel := SelectPrimary([]internal.MatchCandidate{candidate("a", "EGING", 0.90, 1)}, policy)
	if sel.Best != nil {
		t.Fatal("0.90 must not clear the per-brand 0.95 override")
	}
}

func TestThresholdForFallback(t *testing.T) {
	var p AcceptancePolicy
	if got := p.ThresholdFor("ANY"); got != 0.85 {
		t.Fatalf("zero-value policy fallback = %v", got)
	}
}
