package pipeline

import (
	"sort"

	"go.uber.org/zap"

	"sunmatch/internal"
	"sunmatch/internal/catalog"
	"sunmatch/internal/config"
)

// Engine runs the full matching pass for one document against one catalog
// index. It is safe for concurrent use; all state is read-only after New.
type Engine struct {
	idx    *catalog.Index
	cfg    config.Config
	policy AcceptancePolicy
	logger *zap.Logger
}

// NewEngine validates the index up front so callers fail fast on an empty
// catalog instead of silently producing empty results for every document.
func NewEngine(idx *catalog.Index, cfg config.Config, logger *zap.Logger) (*Engine, error) {
	if idx == nil || idx.Len() == 0 {
		return nil, internal.ErrEmptyCatalog
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{
		idx: idx,
		cfg: cfg,
		policy: AcceptancePolicy{
			Default:  cfg.AcceptThresholdDefault,
			PerBrand: cfg.AcceptOverrides,
		},
		logger: logger,
	}, nil
}

// MatchDocument scans one document and returns ranked candidates per product
// type plus the auxiliary fields. Empty or whitespace-only text is not an
// error: the result is simply empty. The same text and catalog always produce
// the same result.
func (e *Engine) MatchDocument(raw string, method internal.ExtractionMethod) (*internal.DocumentMatchResult, error) {
	result := &internal.DocumentMatchResult{
		Panels:    []internal.MatchCandidate{},
		Batteries: []internal.MatchCandidate{},
		Inverters: []internal.MatchCandidate{},
		Method:    method,
	}

	doc := PrepareDocument(raw, method)
	if doc.Empty() {
		return result, nil
	}

	params := locateParams{
		contextWindow: e.cfg.ContextWindow,
		brandWindow:   e.cfg.BrandWindow,
	}

	byType := map[internal.ProductType][]internal.MatchCandidate{}
	for _, entry := range e.idx.Entries {
		hits := locateProduct(doc, entry, params)
		if len(hits) == 0 {
			continue
		}

		evidence := make([]internal.EvidenceRow, 0, len(hits))
		for _, hit := range hits {
			evidence = append(evidence, buildEvidence(doc, entry.Product, hit, e.cfg.ContextWindow, e.cfg.AnchorWindow))
		}

		candidate := internal.MatchCandidate{
			Product:    entry.Product,
			Evidence:   evidence,
			Confidence: aggregateConfidence(evidence),
		}
		if !accepted(candidate, e.cfg.MinConfidence) {
			continue
		}
		candidate.NeedsConfirmation = candidate.Confidence < e.policy.ThresholdFor(entry.Product.Brand)
		byType[entry.Product.Type] = append(byType[entry.Product.Type], candidate)
	}

	result.Panels = rankCandidates(dedupeCandidates(byType[internal.TypePanel]), e.cfg.TopPanels)
	result.Batteries = rankCandidates(dedupeCandidates(byType[internal.TypeBattery]), e.cfg.TopBatteries)
	result.Inverters = rankCandidates(dedupeCandidates(byType[internal.TypeInverter]), e.cfg.TopInverters)

	size, cost, postcode, installer := extractFields(raw)
	result.SystemSizeKW = size
	result.TotalCost = cost
	result.Postcode = postcode
	result.Installer = installer

	e.logger.Debug("document matched",
		zap.Int("panels", len(result.Panels)),
		zap.Int("batteries", len(result.Batteries)),
		zap.Int("inverters", len(result.Inverters)),
		zap.String("method", string(method)))

	return result, nil
}

// dedupeCandidates keeps the highest-confidence candidate per product ID.
// Duplicate IDs can only arise from catalog import mistakes, but a duplicate
// in the output would double-count a product downstream.
func dedupeCandidates(candidates []internal.MatchCandidate) []internal.MatchCandidate {
	if len(candidates) < 2 {
		return candidates
	}
	best := map[string]internal.MatchCandidate{}
	for _, c := range candidates {
		prev, ok := best[c.Product.ID]
		if !ok || c.Confidence > prev.Confidence {
			best[c.Product.ID] = c
		}
	}
	out := make([]internal.MatchCandidate, 0, len(best))
	for _, c := range best {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Product.ID < out[j].Product.ID })
	return out
}
