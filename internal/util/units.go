package util

import (
	"regexp"
	"strconv"
	"strings"
)

// Token scanners for power/energy/price figures. They expect text already
// passed through NormalizeText (uppercase, single spaces), but tolerate raw
// case via (?i).

var (
	reWatt  = regexp.MustCompile(`(?i)\b(\d{3,4})\s*W\b`)
	reKW    = regexp.MustCompile(`(?i)\b(\d{1,3}(?:\.\d{1,2})?)\s*KW\b`)
	reKWh   = regexp.MustCompile(`(?i)\b(\d{1,3}(?:\.\d{1,2})?)\s*KWH\b`)
	reMoney = regexp.MustCompile(`\$\s*(\d{1,3}(?:,\d{3})+(?:\.\d{2})?|\d+(?:\.\d{2})?)`)
)

// WattTokens returns every plausible panel-wattage figure (3-4 digit W token)
// in the text.
func WattTokens(text string) []float64 {
	return captureFloats(reWatt, text)
}

// KWTokens returns every bare-kW figure. A kWh token is not a kW token; the
// \b after KW rejects the trailing H.
func KWTokens(text string) []float64 {
	return captureFloats(reKW, text)
}

// KWhTokens returns every kWh figure.
func KWhTokens(text string) []float64 {
	return captureFloats(reKWh, text)
}

// MoneyTokens returns every dollar amount with its raw token text.
func MoneyTokens(text string) ([]float64, []string) {
	matches := reMoney.FindAllStringSubmatch(text, -1)
	values := make([]float64, 0, len(matches))
	raws := make([]string, 0, len(matches))
	for _, m := range matches {
		v, err := strconv.ParseFloat(strings.ReplaceAll(m[1], ",", ""), 64)
		if err != nil {
			continue
		}
		values = append(values, v)
		raws = append(raws, m[0])
	}
	return values, raws
}

func captureFloats(re *regexp.Regexp, text string) []float64 {
	matches := re.FindAllStringSubmatch(text, -1)
	out := make([]float64, 0, len(matches))
	for _, m := range matches {
		v, err := strconv.ParseFloat(m[1], 64)
		if err != nil {
			continue
		}
		out = append(out, v)
	}
	return out
}
