package util

import (
	"regexp"
	"strings"
)

var (
	reHyphenBreak = regexp.MustCompile(`([A-Za-z0-9])-\r?\n[ \t]*([A-Za-z0-9])`)
	reSpaces      = regexp.MustCompile(`\s+`)
	reNonToken    = regexp.MustCompile(`[^A-Z0-9.]+`)
)

var dashFolder = strings.NewReplacer(
	"‐", "-", // hyphen
	"‑", "-", // non-breaking hyphen
	"‒", "-", // figure dash
	"–", "-", // en dash
	"—", "-", // em dash
	"−", "-", // minus sign
)

// NormalizeText prepares raw document text for scanning: rejoin words broken
// across lines by a trailing hyphen, uppercase, fold dash variants to ASCII
// hyphen, collapse whitespace runs to one space. Runs once per document; every
// evidence position refers to the output of this function.
func NormalizeText(input string) string {
	s := reHyphenBreak.ReplaceAllString(input, "$1$2")
	s = strings.ToUpper(s)
	s = dashFolder.Replace(s)
	s = reSpaces.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}

// NormalizeBrand canonicalizes a brand or model fragment: uppercase, dashes
// folded, internal whitespace collapsed.
func NormalizeBrand(input string) string {
	s := strings.ToUpper(strings.TrimSpace(input))
	s = dashFolder.Replace(s)
	return reSpaces.ReplaceAllString(s, " ")
}

// NormalizeModel is NormalizeBrand; a separate name keeps call sites honest.
func NormalizeModel(input string) string { return NormalizeBrand(input) }

// StripSeparators removes separator characters from a model designator so
// "EG-440NT54-HL/BF-DG" and "EG440NT54HLBFDG" compare equal. Dots stay:
// "F12.8" is a capacity figure, not a separator run.
func StripSeparators(input string) string {
	out := strings.Builder{}
	for _, r := range input {
		switch r {
		case '-', '/', ' ', '_':
			continue
		}
		out.WriteRune(r)
	}
	return out.String()
}

// OCRFold maps the classic OCR letter/digit confusions onto digits: O and
// Q-less lookalikes fold to 0, I and l fold to 1. Folding both aliases and a
// shadow copy of the document text makes "G00dWe GW6OOO-EH" meet
// "GOODWE GW6000-EH" halfway. The mapping is byte-length preserving so
// positions in the folded text line up with the normalized text.
func OCRFold(input string) string {
	out := make([]byte, len(input))
	for i := 0; i < len(input); i++ {
		switch input[i] {
		case 'O':
			out[i] = '0'
		case 'I', 'L':
			out[i] = '1'
		default:
			out[i] = input[i]
		}
	}
	return string(out)
}

// Tokenize splits normalized text into alphanumeric tokens of length >= 2.
func Tokenize(input string) []string {
	parts := reNonToken.Split(NormalizeBrand(input), -1)
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.Trim(p, ".")
		if len(p) >= 2 {
			out = append(out, p)
		}
	}
	return out
}

// WordBounded wraps an escaped literal in word boundaries for whole-token
// regex matching.
func WordBounded(literal string) string {
	return `\b` + regexp.QuoteMeta(literal) + `\b`
}
