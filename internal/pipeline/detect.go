package pipeline

import (
	"regexp"
	"strings"
)

// DetectResult classifies an ingested document as a solar proposal or not.
type DetectResult struct {
	IsProposal bool
	Score      float64
	Reason     string
}

var detectKeywords = []string{"solar", "inverter", "panel", "battery", "quote", "proposal", "feed-in", "rebate", "stc"}

var detectUnitTokens = regexp.MustCompile(`(?i)\b\d{1,4}(?:\.\d{1,2})?\s*KWH?\b|\b\d{3,4}\s*W\b`)

// DetectProposal scores subject, body text and attachment names with cheap
// rules. Order confirmations, invoices and unrelated mail in a shared inbox
// should not burn a matching pass.
func DetectProposal(subject, text string, attachmentNames []string) DetectResult {
	subject = strings.ToLower(subject)
	lower := strings.ToLower(text)

	score := 0.0
	for _, kw := range detectKeywords {
		if strings.Contains(subject, kw) {
			score += 0.2
		}
		if strings.Contains(lower, kw) {
			score += 0.1
		}
	}

	unitHits := len(detectUnitTokens.FindAllString(text, 4))
	if unitHits >= 2 {
		score += 0.4
	} else if unitHits == 1 {
		score += 0.2
	}

	for _, name := range attachmentNames {
		ln := strings.ToLower(name)
		if strings.HasSuffix(ln, ".pdf") {
			score += 0.25
			break
		}
	}

	if score > 1 {
		score = 1
	}

	isProposal := score >= 0.45
	reason := "rules_negative"
	if isProposal {
		reason = "rules_positive"
	}

	return DetectResult{IsProposal: isProposal, Score: score, Reason: reason}
}
