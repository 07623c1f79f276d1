package staging

import (
	"regexp"
	"strings"
)

// Business-value scoring: a keyword/regex heuristic approximating whether an
// agent response is actually useful. Thresholds are intentionally loose;
// the signal the suites care about is "substantive answer" vs "boilerplate
// or truncated output", not response quality grading.

// ValueScore is the outcome of scoring a response body.
type ValueScore struct {
	Score   int
	Length  int
	Signals []string
}

// MeetsBar reports whether the score clears the given minimum.
func (s ValueScore) MeetsBar(min int) bool {
	return s.Score >= min
}

var (
	actionablePattern = regexp.MustCompile(`(?i)\b(recommend|suggest|should|consider|configure|enable|next steps?|start by|you can)\b`)
	specificPattern   = regexp.MustCompile(`\b\d+(\.\d+)?%?\b`)
	structurePattern  = regexp.MustCompile(`(?m)^\s*([-*•]|\d+[.)])\s+`)
	hedgingPattern    = regexp.MustCompile(`(?i)\b(i can't|i cannot|i'm unable|as an ai|i don't have access)\b`)
)

const (
	minSubstantiveLength = 50
	solidResponseLength  = 300
)

// ScoreResponse computes a 0-100 business-value score for an agent response.
func ScoreResponse(text string) ValueScore {
	trimmed := strings.TrimSpace(text)
	score := ValueScore{Length: len(trimmed)}
	if score.Length == 0 {
		return score
	}

	if score.Length >= minSubstantiveLength {
		score.Score += 25
		score.Signals = append(score.Signals, "substantive_length")
	}
	if score.Length >= solidResponseLength {
		score.Score += 15
		score.Signals = append(score.Signals, "detailed_length")
	}
	if actionablePattern.MatchString(trimmed) {
		score.Score += 25
		score.Signals = append(score.Signals, "actionable")
	}
	if specificPattern.MatchString(trimmed) {
		score.Score += 15
		score.Signals = append(score.Signals, "specific")
	}
	if structurePattern.MatchString(trimmed) {
		score.Score += 20
		score.Signals = append(score.Signals, "structured")
	}
	if hedgingPattern.MatchString(trimmed) {
		score.Score -= 30
		score.Signals = append(score.Signals, "hedging")
	}
	if score.Score < 0 {
		score.Score = 0
	}
	if score.Score > 100 {
		score.Score = 100
	}
	return score
}

// MatchKeywords returns the subset of keywords present in text
// (case-insensitive substring match).
func MatchKeywords(text string, keywords []string) []string {
	lower := strings.ToLower(text)
	var matched []string
	for _, kw := range keywords {
		if kw == "" {
			continue
		}
		if strings.Contains(lower, strings.ToLower(kw)) {
			matched = append(matched, kw)
		}
	}
	return matched
}
