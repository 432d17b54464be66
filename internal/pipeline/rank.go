package pipeline

import (
	"sort"

	"sunmatch/internal"
)

// rankCandidates orders one category's accepted candidates by descending
// confidence; ties break toward the earlier document position (proposals
// list primary equipment first), then product ID for determinism. The list
// is capped at the per-type policy limit.
func rankCandidates(candidates []internal.MatchCandidate, cap int) []internal.MatchCandidate {
	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].Confidence != candidates[j].Confidence {
			return candidates[i].Confidence > candidates[j].Confidence
		}
		pi, pj := candidates[i].FirstPosition(), candidates[j].FirstPosition()
		if pi != pj {
			return pi < pj
		}
		return candidates[i].Product.ID < candidates[j].Product.ID
	})
	if cap > 0 && len(candidates) > cap {
		candidates = candidates[:cap]
	}
	return candidates
}

// Selection is the single best-per-type pick used downstream in a quote.
// When no candidate clears its brand's acceptance threshold, Best stays nil
// and Alternatives carries every same-brand candidate of that type so a
// human can choose instead of the engine guessing.
type Selection struct {
	Best         *internal.MatchCandidate `json:"best,omitempty"`
	Alternatives []internal.MatchCandidate `json:"alternatives,omitempty"`
}

// SelectPrimary applies the acceptance policy to an ordered candidate list.
func SelectPrimary(candidates []internal.MatchCandidate, policy AcceptancePolicy) Selection {
	if len(candidates) == 0 {
		return Selection{}
	}

	top := candidates[0]
	if top.Confidence >= policy.ThresholdFor(top.Product.Brand) {
		best := top
		return Selection{Best: &best}
	}

	alternatives := make([]internal.MatchCandidate, 0, len(candidates))
	for _, c := range candidates {
		if c.Product.Brand == top.Product.Brand {
			alternatives = append(alternatives, c)
		}
	}
	return Selection{Alternatives: alternatives}
}
