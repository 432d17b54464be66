package pipeline

import (
	"errors"
	"math"
	"reflect"
	"testing"

	"go.uber.org/zap"

	"sunmatch/internal"
	"sunmatch/internal/catalog"
	"sunmatch/internal/config"
)

func testCatalog() []internal.Product {
	return []internal.Product{
		{ID: "p-eging-440", Type: internal.TypePanel, Brand: "EGING", Model: "EG-440NT54-HL/BF-DG", Spec: internal.FloatPtr(440)},
		{ID: "p-trina-440", Type: internal.TypePanel, Brand: "Trina", Model: "TSM-440NEG9R.28", Spec: internal.FloatPtr(440)},
		{ID: "b-goodwe-128", Type: internal.TypeBattery, Brand: "GoodWe", Model: "LX F12.8-H-20", Spec: internal.FloatPtr(12.8)},
		{ID: "i-goodwe-6000", Type: internal.TypeInverter, Brand: "GoodWe", Model: "GW6000-EH", Spec: internal.FloatPtr(6)},
		{ID: "i-sungrow-5", Type: internal.TypeInverter, Brand: "Sungrow", Model: "SH5.0RS", Spec: internal.FloatPtr(5)},
	}
}

func newTestEngine(t *testing.T, mutate func(*config.Config)) *Engine {
	t.Helper()
	cfg, _ := config.Load()
	if mutate != nil {
		mutate(&cfg)
	}
	idx := catalog.BuildIndex(testCatalog(), catalog.NewBrandAliasTable(), zap.NewNop())
	engine, err := NewEngine(idx, cfg, zap.NewNop())
	if err != nil {
		t.Fatal(err)
	}
	return engine
}

func TestEmptyCatalogRejected(t *testing.T) {
	cfg, _ := config.Load()
	idx := catalog.BuildIndex(nil, catalog.NewBrandAliasTable(), zap.NewNop())
	if _, err := NewEngine(idx, cfg, zap.NewNop()); !errors.Is(err, internal.ErrEmptyCatalog) {
		t.Fatalf("expected ErrEmptyCatalog, got %v", err)
	}
	if _, err := NewEngine(nil, cfg, zap.NewNop()); !errors.Is(err, internal.ErrEmptyCatalog) {
		t.Fatalf("expected ErrEmptyCatalog for nil index, got %v", err)
	}
}

func TestEmptyDocument(t *testing.T) {
	engine := newTestEngine(t, nil)
	for _, text := range []string{"", "   \n\t  "} {
		result, err := engine.MatchDocument(text, internal.MethodNative)
		if err != nil {
			t.Fatalf("empty text must not error: %v", err)
		}
		if len(result.Panels)+len(result.Batteries)+len(result.Inverters) != 0 {
			t.Fatal("empty text must produce no candidates")
		}
		if result.Panels == nil || result.Batteries == nil || result.Inverters == nil {
			t.Fatal("candidate slices must be empty, not nil")
		}
	}
}

func TestPatternWithAnchorAndSpec(t *testing.T) {
	engine := newTestEngine(t, nil)
	text := "EQUIPMENT LIST\n30 x EGING EG-440NT54-HL/BF-DG 440W solar panels"

	result, err := engine.MatchDocument(text, internal.MethodNative)
	if err != nil {
		t.Fatal(err)
	}
	if len(result.Panels) != 1 {
		t.Fatalf("expected 1 panel, got %d", len(result.Panels))
	}

	panel := result.Panels[0]
	if panel.Product.ID != "p-eging-440" {
		t.Fatalf("wrong product: %q", panel.Product.ID)
	}
	if panel.Confidence < 0.85 {
		t.Fatalf("pattern+anchor+spec should auto-accept, confidence=%v", panel.Confidence)
	}
	if panel.NeedsConfirmation {
		t.Fatal("should not need confirmation")
	}
	if len(panel.Evidence) != 1 {
		t.Fatalf("overlapping hits must collapse to one row, got %d", len(panel.Evidence))
	}
	ev := panel.Evidence[0]
	if ev.Kind != internal.EvidencePattern || !ev.NearSectionAnchor || !ev.SpecInContext {
		t.Fatalf("unexpected evidence: %+v", ev)
	}
}

func TestPatternWithSpecNoAnchor(t *testing.T) {
	engine := newTestEngine(t, nil)
	text := "1 x GOODWE LX F12.8-H-20 battery 12.8kWh installed on the wall"

	result, err := engine.MatchDocument(text, internal.MethodNative)
	if err != nil {
		t.Fatal(err)
	}
	if len(result.Batteries) != 1 {
		t.Fatalf("expected 1 battery, got %d", len(result.Batteries))
	}

	battery := result.Batteries[0]
	if math.Abs(battery.Confidence-0.90) > 1e-9 {
		t.Fatalf("expected confidence 0.90, got %v", battery.Confidence)
	}
	if battery.NeedsConfirmation {
		t.Fatal("0.90 clears the default 0.85 threshold")
	}
	if battery.Evidence[0].NearSectionAnchor {
		t.Fatal("no section anchor in this text")
	}
}

func TestCrossTypeGate(t *testing.T) {
	engine := newTestEngine(t, nil)

	// A panel designator next to an energy figure is battery context; the
	// panel must not surface.
	result, err := engine.MatchDocument("EGING EG-440NT54-HL/BF-DG 12.8kWh", internal.MethodNative)
	if err != nil {
		t.Fatal(err)
	}
	if len(result.Panels) != 0 {
		t.Fatalf("panel must be gated out by kWh context, got %v", result.Panels)
	}

	// An inverter designator near a kWh figure is equally suspect.
	result, err = engine.MatchDocument("GOODWE GW6000-EH 6kW 13.5kWh", internal.MethodNative)
	if err != nil {
		t.Fatal(err)
	}
	if len(result.Inverters) != 0 {
		t.Fatalf("inverter must be gated out by kWh context, got %v", result.Inverters)
	}
}

func TestOCRFoldedMatch(t *testing.T) {
	engine := newTestEngine(t, nil)
	text := "G00dWe GW6OOO-EH 6kW hybrid"

	result, err := engine.MatchDocument(text, internal.MethodNative)
	if err != nil {
		t.Fatal(err)
	}
	if len(result.Inverters) != 1 {
		t.Fatalf("expected OCR-damaged inverter to match, got %d", len(result.Inverters))
	}
	inv := result.Inverters[0]
	if inv.Product.ID != "i-goodwe-6000" {
		t.Fatalf("wrong product: %q", inv.Product.ID)
	}
	if inv.Evidence[0].Kind != internal.EvidenceAlias {
		t.Fatalf("folded surface should report alias evidence, got %q", inv.Evidence[0].Kind)
	}
}

func TestBrandOnlyNeverAlone(t *testing.T) {
	engine := newTestEngine(t, nil)
	// Brand plus a model token in the window, but never the full designator.
	text := "GOODWE GW6000 range 5kW options available"

	result, err := engine.MatchDocument(text, internal.MethodNative)
	if err != nil {
		t.Fatal(err)
	}
	if len(result.Inverters) != 0 {
		t.Fatalf("brandOnly evidence alone must not produce a candidate, got %v", result.Inverters)
	}
}

func TestTwoAliasesAcceptBelowConfidence(t *testing.T) {
	engine := newTestEngine(t, nil)
	// Two independent alias hits, no anchor, wrong kW figure so no spec
	// boost: mean 0.40 is under MinConfidence but the two-alias rule holds.
	text := "GW6000-EH unit rated 5kW and a spare GW6000-EH cartoned 5kW"

	result, err := engine.MatchDocument(text, internal.MethodNative)
	if err != nil {
		t.Fatal(err)
	}
	if len(result.Inverters) != 1 {
		t.Fatalf("expected 1 inverter, got %d", len(result.Inverters))
	}
	inv := result.Inverters[0]
	if len(inv.Evidence) != 2 {
		t.Fatalf("expected 2 alias rows, got %d", len(inv.Evidence))
	}
	if !inv.NeedsConfirmation {
		t.Fatal("low-confidence accept must be flagged for confirmation")
	}
}

func TestLowConfidencePatternFlagged(t *testing.T) {
	engine := newTestEngine(t, nil)
	// Wattage present (gate passes) but inconsistent with the catalog spec.
	text := "EGING EG-440NT54-HL/BF-DG 435W"

	result, err := engine.MatchDocument(text, internal.MethodNative)
	if err != nil {
		t.Fatal(err)
	}
	if len(result.Panels) != 1 {
		t.Fatalf("expected 1 panel, got %d", len(result.Panels))
	}
	panel := result.Panels[0]
	if panel.Evidence[0].SpecInContext {
		t.Fatal("435W must not count as the 440W spec")
	}
	if !panel.NeedsConfirmation {
		t.Fatal("bare pattern hit under threshold must need confirmation")
	}
}

func TestBrandsMatchIndependently(t *testing.T) {
	engine := newTestEngine(t, nil)
	text := "EQUIPMENT\n" +
		"30 x EGING EG-440NT54-HL/BF-DG 440W panels backed by a strong product warranty\n" +
		"1 x SUNGROW SH5.0RS 5kW hybrid unit"

	result, err := engine.MatchDocument(text, internal.MethodNative)
	if err != nil {
		t.Fatal(err)
	}
	if len(result.Panels) != 1 || result.Panels[0].Product.Brand != "EGING" {
		t.Fatalf("panels = %v", result.Panels)
	}
	if len(result.Inverters) != 1 || result.Inverters[0].Product.Brand != "SUNGROW" {
		t.Fatalf("inverters = %v", result.Inverters)
	}
}

func TestCorroboratingEvidenceNeverLowers(t *testing.T) {
	engine := newTestEngine(t, nil)

	bare, err := engine.MatchDocument("EGING EG-440NT54-HL/BF-DG 440W", internal.MethodNative)
	if err != nil {
		t.Fatal(err)
	}
	anchored, err := engine.MatchDocument("EQUIPMENT\nEGING EG-440NT54-HL/BF-DG 440W", internal.MethodNative)
	if err != nil {
		t.Fatal(err)
	}
	if len(bare.Panels) != 1 || len(anchored.Panels) != 1 {
		t.Fatalf("both texts must match: %d / %d", len(bare.Panels), len(anchored.Panels))
	}
	if anchored.Panels[0].Confidence < bare.Panels[0].Confidence {
		t.Fatalf("anchor context lowered confidence: %v < %v",
			anchored.Panels[0].Confidence, bare.Panels[0].Confidence)
	}
}

func TestBrandOnlyCorroborationNeverLowers(t *testing.T) {
	engine := newTestEngine(t, nil)

	base, err := engine.MatchDocument(
		"EQUIPMENT\n30 x EGING EG-440NT54-HL/BF-DG 440W solar panels", internal.MethodNative)
	if err != nil {
		t.Fatal(err)
	}
	// Same document plus a later brand mention with a model token nearby: the
	// locator adds a brandOnly row for the same candidate.
	corroborated, err := engine.MatchDocument(
		"EQUIPMENT\n30 x EGING EG-440NT54-HL/BF-DG 440W solar panels\n"+
			"The EGING 440NT54 series ships with 440W output as standard", internal.MethodNative)
	if err != nil {
		t.Fatal(err)
	}

	if len(base.Panels) != 1 || len(corroborated.Panels) != 1 {
		t.Fatalf("both texts must match: %d / %d", len(base.Panels), len(corroborated.Panels))
	}
	if got := len(corroborated.Panels[0].Evidence); got != 2 {
		t.Fatalf("expected the extra mention to add a second evidence row, got %d", got)
	}
	if corroborated.Panels[0].Evidence[1].Kind != internal.EvidenceBrandOnly {
		t.Fatalf("second row should be brandOnly, got %q", corroborated.Panels[0].Evidence[1].Kind)
	}
	if corroborated.Panels[0].Confidence < base.Panels[0].Confidence {
		t.Fatalf("corroborating evidence lowered confidence: %v < %v",
			corroborated.Panels[0].Confidence, base.Panels[0].Confidence)
	}
}

func TestAggregateConfidenceBrandOnlySupportOnly(t *testing.T) {
	pattern := func(score float64) internal.EvidenceRow {
		return internal.EvidenceRow{Kind: internal.EvidencePattern, Score: score}
	}
	brandOnly := func(score float64) internal.EvidenceRow {
		return internal.EvidenceRow{Kind: internal.EvidenceBrandOnly, Score: score}
	}

	cases := []struct {
		name     string
		evidence []internal.EvidenceRow
		want     float64
	}{
		{"pattern alone", []internal.EvidenceRow{pattern(0.99)}, 0.99},
		{"weak brandOnly never drags down", []internal.EvidenceRow{pattern(0.99), brandOnly(0.85)}, 0.99},
		{"strong brandOnly still lifts", []internal.EvidenceRow{pattern(0.60), brandOnly(0.85)}, 0.725},
		{"brandOnly only falls back to plain mean", []internal.EvidenceRow{brandOnly(0.85)}, 0.85},
	}

	for _, tc := range cases {
		if got := aggregateConfidence(tc.evidence); math.Abs(got-tc.want) > 1e-9 {
			t.Errorf("%s: got %v, want %v", tc.name, got, tc.want)
		}
	}
}

func TestMatchIsDeterministic(t *testing.T) {
	engine := newTestEngine(t, nil)
	text := "EQUIPMENT\nEGING EG-440NT54-HL/BF-DG 440W\nGOODWE LX F12.8-H-20 12.8kWh battery system installed neatly"

	first, err := engine.MatchDocument(text, internal.MethodNative)
	if err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 5; i++ {
		again, err := engine.MatchDocument(text, internal.MethodNative)
		if err != nil {
			t.Fatal(err)
		}
		if !reflect.DeepEqual(first, again) {
			t.Fatalf("run %d differs from first run", i)
		}
	}
}

func TestPerBrandThresholdOverride(t *testing.T) {
	engine := newTestEngine(t, func(cfg *config.Config) {
		cfg.AcceptOverrides = map[string]float64{"GOODWE": 0.95}
	})
	text := "1 x GOODWE LX F12.8-H-20 battery 12.8kWh"

	result, err := engine.MatchDocument(text, internal.MethodNative)
	if err != nil {
		t.Fatal(err)
	}
	if len(result.Batteries) != 1 {
		t.Fatalf("expected 1 battery, got %d", len(result.Batteries))
	}
	if !result.Batteries[0].NeedsConfirmation {
		t.Fatal("0.90 must not clear the 0.95 per-brand override")
	}
}

func TestPerTypeCaps(t *testing.T) {
	engine := newTestEngine(t, func(cfg *config.Config) {
		cfg.TopPanels = 1
	})
	text := "EQUIPMENT\n" +
		"EGING EG-440NT54-HL/BF-DG 440W panels plus some filler words here\n" +
		"TRINA TSM-440NEG9R.28 440W panels as the alternative option"

	result, err := engine.MatchDocument(text, internal.MethodNative)
	if err != nil {
		t.Fatal(err)
	}
	if len(result.Panels) != 1 {
		t.Fatalf("cap of 1 not applied: got %d", len(result.Panels))
	}
}
