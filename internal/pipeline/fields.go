package pipeline

import (
	"regexp"
	"strconv"
	"strings"

	"sunmatch/internal"
	"sunmatch/internal/util"
)

// Auxiliary field extraction: four scalar fields scanned independently of
// product matching, line by line, top to bottom, first match wins per field.
// A field that never matches stays absent (nil), never zero-filled.

var systemSizePatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\b(\d{1,3}(?:\.\d{1,2})?)\s*KW\s+(?:SOLAR|PV)\s+SYSTEM\b`),
	regexp.MustCompile(`(?i)\b(\d{1,3}(?:\.\d{1,2})?)\s*KW\s+(?:SOLAR|SYSTEM|CAPACITY|INSTALL|PV)\b`),
	regexp.MustCompile(`(?i)\bSYSTEM\s+SIZE\s*[:\-]?\s*(\d{1,3}(?:\.\d{1,2})?)\s*KW\b`),
}

var costKeywords = regexp.MustCompile(`(?i)\b(TOTAL|PRICE|COST|INCLUDING|INVESTMENT)\b`)

var installerPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\b(?:INSTALLER|COMPANY|PROVIDER)\s*[:\-]\s*([A-Z][A-Za-z&'.]+(?:\s+[A-Z][A-Za-z&'.]+){0,4})`),
	regexp.MustCompile(`\b([A-Z][A-Za-z&'.]+(?:\s+[A-Z][A-Za-z&'.]+){0,3}\s+(?:Solar|Energy|Electric|Electrical|Power|Group))\b`),
}

var postcodePattern = regexp.MustCompile(`\b(\d{4})\b`)

// extractFields scans the raw (pre-normalization) text so the installer
// pattern can see original capitalization.
func extractFields(raw string) (size, cost *internal.NumberField, postcode, installer *internal.TextField) {
	lines := strings.Split(strings.ReplaceAll(raw, "\r\n", "\n"), "\n")

	for _, line := range lines {
		if size == nil {
			size = matchSystemSize(line)
		}
		if cost == nil {
			cost = matchTotalCost(line)
		}
		if postcode == nil {
			postcode = matchPostcode(line)
		}
		if installer == nil {
			installer = matchInstaller(line)
		}
		if size != nil && cost != nil && postcode != nil && installer != nil {
			break
		}
	}
	return
}

func matchSystemSize(line string) *internal.NumberField {
	for _, re := range systemSizePatterns {
		m := re.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		v, err := strconv.ParseFloat(m[1], 64)
		if err != nil || v <= 0 || v > 300 {
			continue
		}
		return &internal.NumberField{Value: v, Raw: strings.TrimSpace(m[0]), Confidence: 0.9}
	}
	return nil
}

// matchTotalCost wants a dollar figure on a line that also talks about
// totals or pricing, sanity-bounded to a plausible residential range so
// unrelated numbers don't qualify.
func matchTotalCost(line string) *internal.NumberField {
	if !costKeywords.MatchString(line) {
		return nil
	}
	values, raws := util.MoneyTokens(line)
	for i, v := range values {
		if v < 1000 || v > 500000 {
			continue
		}
		confidence := 0.6
		upper := strings.ToUpper(line)
		if strings.Contains(upper, "TOTAL") {
			confidence = 0.8
		} else if strings.Contains(upper, "PRICE") || strings.Contains(upper, "COST") {
			confidence = 0.7
		}
		return &internal.NumberField{Value: v, Raw: raws[i], Confidence: confidence}
	}
	return nil
}

// matchPostcode takes any 4-digit token in the Australian postcode range.
// Known limitation: wattages, cost fragments and other 4-digit numbers can
// collide with this; the two cheap rejects below (unit suffix, dollar prefix)
// only trim the obvious cases.
func matchPostcode(line string) *internal.TextField {
	for _, loc := range postcodePattern.FindAllStringSubmatchIndex(line, -1) {
		token := line[loc[2]:loc[3]]
		v, err := strconv.Atoi(token)
		if err != nil || v < 1000 || v > 9999 {
			continue
		}
		if next := followingRune(line, loc[3]); next == 'W' || next == 'w' || next == 'K' || next == 'k' {
			continue
		}
		if prev := precedingRune(line, loc[2]); prev == '$' || prev == '.' || prev == ',' {
			continue
		}
		return &internal.TextField{Value: token, Confidence: 0.75}
	}
	return nil
}

func matchInstaller(line string) *internal.TextField {
	for _, re := range installerPatterns {
		m := re.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		name := strings.TrimSpace(m[1])
		if len(name) < 3 {
			continue
		}
		return &internal.TextField{Value: name, Confidence: 0.7}
	}
	return nil
}

// followingRune returns the first rune after idx, skipping at most one
// space, so "4000 W" is still seen as a wattage.
func followingRune(line string, idx int) rune {
	rest := line[idx:]
	skippedSpace := false
	for _, r := range rest {
		if r == ' ' && !skippedSpace {
			skippedSpace = true
			continue
		}
		return r
	}
	return 0
}

func precedingRune(line string, idx int) rune {
	if idx == 0 {
		return 0
	}
	return rune(line[idx-1])
}
