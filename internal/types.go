package internal

import "errors"

// ProductType is the closed set of equipment categories the engine knows
// about. Adding a category is a code change, not configuration.
type ProductType string

const (
	TypePanel    ProductType = "panel"
	TypeBattery  ProductType = "battery"
	TypeInverter ProductType = "inverter"
)

func (t ProductType) Valid() bool {
	switch t {
	case TypePanel, TypeBattery, TypeInverter:
		return true
	}
	return false
}

// SpecUnit returns the unit the Spec field is expressed in for this type.
func (t ProductType) SpecUnit() string {
	switch t {
	case TypePanel:
		return "W"
	case TypeBattery:
		return "kWh"
	case TypeInverter:
		return "kW"
	}
	return ""
}

// Product is one catalog entry. Brand and Model are canonical
// (post-normalization); Spec holds the type-dependent rating: wattage for
// panels, usable kWh for batteries, AC kW for inverters. Spec may be nil when
// the catalog source did not carry a rating.
type Product struct {
	ID    string      `json:"id"`
	Type  ProductType `json:"type"`
	Brand string      `json:"brand"`
	Model string      `json:"model"`
	Spec  *float64    `json:"spec,omitempty"`
}

// ExtractionMethod records how the document text was produced. Provenance
// only; never a scoring input.
type ExtractionMethod string

const (
	MethodNative ExtractionMethod = "native"
	MethodOCR    ExtractionMethod = "ocr"
	MethodHybrid ExtractionMethod = "hybrid"
)

// EvidenceKind tags how one occurrence of a product was located in text.
type EvidenceKind string

const (
	EvidencePattern   EvidenceKind = "pattern"
	EvidenceAlias     EvidenceKind = "alias"
	EvidenceBrandOnly EvidenceKind = "brandOnly"
)

// EvidenceRow is one located occurrence of a candidate product.
type EvidenceRow struct {
	Snippet           string       `json:"snippet"`
	Position          int          `json:"position"`
	Kind              EvidenceKind `json:"kind"`
	Score             float64      `json:"score"`
	NearSectionAnchor bool         `json:"nearSectionAnchor"`
	SpecInContext     bool         `json:"specInContext"`
}

// MatchCandidate aggregates all evidence for one product within one document.
type MatchCandidate struct {
	Product           Product       `json:"product"`
	Evidence          []EvidenceRow `json:"evidence"`
	Confidence        float64       `json:"confidence"`
	NeedsConfirmation bool          `json:"needsConfirmation"`
}

// FirstPosition is the earliest evidence offset, used as the ranking
// tiebreaker (proposals list primary equipment first).
func (c MatchCandidate) FirstPosition() int {
	pos := -1
	for _, ev := range c.Evidence {
		if pos < 0 || ev.Position < pos {
			pos = ev.Position
		}
	}
	return pos
}

// NumberField is an optionally-extracted numeric scalar with its own
// confidence. Absent fields are nil pointers, never zero-filled.
type NumberField struct {
	Value      float64 `json:"value"`
	Raw        string  `json:"raw"`
	Confidence float64 `json:"confidence"`
}

// TextField is an optionally-extracted string scalar with its own confidence.
type TextField struct {
	Value      string  `json:"value"`
	Confidence float64 `json:"confidence"`
}

// DocumentMatchResult is the engine output: per-category candidate lists
// ordered by descending confidence, plus independently extracted scalar
// fields.
type DocumentMatchResult struct {
	Panels    []MatchCandidate `json:"panels"`
	Batteries []MatchCandidate `json:"batteries"`
	Inverters []MatchCandidate `json:"inverters"`

	SystemSizeKW *NumberField `json:"systemSizeKw,omitempty"`
	TotalCost    *NumberField `json:"totalCost,omitempty"`
	Postcode     *TextField   `json:"postcode,omitempty"`
	Installer    *TextField   `json:"installer,omitempty"`

	Method ExtractionMethod `json:"method"`
}

// Candidates returns the list for one product type.
func (r *DocumentMatchResult) Candidates(t ProductType) []MatchCandidate {
	switch t {
	case TypePanel:
		return r.Panels
	case TypeBattery:
		return r.Batteries
	case TypeInverter:
		return r.Inverters
	}
	return nil
}

// DocumentRow is a stored proposal document.
type DocumentRow struct {
	ID         int
	Provider   string
	MessageID  string
	Subject    string
	Sender     string
	ReceivedAt string
	Hash       string
	Status     string
	RawRef     string
	Method     string
}

// FetchedMailMessage is one raw message pulled from a mail connector.
type FetchedMailMessage struct {
	Provider   string
	MessageID  string
	Subject    string
	From       string
	ReceivedAt string
	Hash       string
	Raw        []byte
}

// MatchExportRow is one flattened candidate row for XLSX export.
type MatchExportRow struct {
	DocumentID        int
	ProductType       string
	Rank              int
	ProductID         string
	Brand             string
	Model             string
	Spec              *float64
	Confidence        float64
	NeedsConfirmation bool
	EvidenceCount     int
	BestSnippet       string
}

var (
	// ErrEmptyCatalog is the hard precondition failure for a matching run
	// with no products to match against.
	ErrEmptyCatalog = errors.New("catalog is empty")

	// ErrUnsupportedInput is returned for input files the extractor does not
	// understand.
	ErrUnsupportedInput = errors.New("unsupported input type")

	// ErrDocumentNotFound is returned when a stored document lookup misses.
	ErrDocumentNotFound = errors.New("document not found")
)

// StringPtr returns a pointer to v.
func StringPtr(v string) *string { return &v }

// FloatPtr returns a pointer to v.
func FloatPtr(v float64) *float64 { return &v }
