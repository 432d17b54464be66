package pipeline

import (
	"strings"

	"sunmatch/internal"
	"sunmatch/internal/util"
)

// sectionAnchors are heading-like strings that mark the equipment portion of
// a proposal. Matches near an anchor score higher.
var sectionAnchors = []string{
	"EQUIPMENT",
	"INCLUSIONS",
	"SYSTEM COMPONENTS",
	"SOLAR PANELS",
	"BATTERY STORAGE",
	"INVERTER",
	"QUOTATION",
	"YOUR SOLUTION",
	"YOUR QUOTE",
}

// Document is one proposal prepared for scanning: normalized text, its
// OCR-folded shadow, anchor offsets, raw lines for the field extractor, and
// extraction provenance. Immutable for the duration of a matching run.
type Document struct {
	Text    string
	Folded  string
	Anchors []int
	Raw     string
	Method  internal.ExtractionMethod
}

// PrepareDocument normalizes raw text once; every scan and every evidence
// position refers to the normalized buffer.
func PrepareDocument(raw string, method internal.ExtractionMethod) Document {
	text := util.NormalizeText(raw)
	doc := Document{
		Text:   text,
		Folded: util.OCRFold(text),
		Raw:    raw,
		Method: method,
	}

	for _, anchor := range sectionAnchors {
		from := 0
		for {
			i := strings.Index(doc.Text[from:], anchor)
			if i < 0 {
				break
			}
			doc.Anchors = append(doc.Anchors, from+i)
			from += i + len(anchor)
		}
	}

	return doc
}

// Empty reports whether there is nothing to scan.
func (d Document) Empty() bool {
	return strings.TrimSpace(d.Text) == ""
}

// NearAnchor reports whether pos falls within window chars of any section
// anchor.
func (d Document) NearAnchor(pos, window int) bool {
	for _, a := range d.Anchors {
		delta := pos - a
		if delta < 0 {
			delta = -delta
		}
		if delta <= window {
			return true
		}
	}
	return false
}

// Context returns the bounded substring around a match, used for
// spec-consistency validation.
func (d Document) Context(start, end, window int) string {
	lo := start - window
	if lo < 0 {
		lo = 0
	}
	hi := end + window
	if hi > len(d.Text) {
		hi = len(d.Text)
	}
	return d.Text[lo:hi]
}
