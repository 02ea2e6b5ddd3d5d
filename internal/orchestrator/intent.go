package orchestrator

import (
	"regexp"
	"strings"

	"github.com/xkilldash9x/wayfinder/api/schemas"
)

// automationKeywords each add a small amount of evidence that the user wants
// the browser driven rather than a conversational answer.
var automationKeywords = []string{
	"open", "navigate", "go to", "visit", "browse", "click", "search",
	"find", "fill", "type", "submit", "scroll", "download", "login",
	"log in", "sign in", "buy", "order", "book", "website", "page",
}

// automationPatterns are strong phrasings that almost always mean a browser
// task. Only the first match contributes.
var automationPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)^(?:please\s+)?(?:open|go to|navigate to|visit)\b`),
	regexp.MustCompile(`(?i)\bsearch (?:for|on)\b`),
	regexp.MustCompile(`(?i)\bon (?:the )?(?:web|internet|site|website)\b`),
	regexp.MustCompile(`(?i)\bfill (?:in|out)\b`),
}

var urlPattern = regexp.MustCompile(`(?i)(?:https?://|www\.|\.com|\.org|\.net)`)

const (
	keywordWeight    = 0.15
	keywordScoreCap  = 0.6
	urlWeight        = 0.2
	patternWeight    = 0.3
	automationCutoff = 0.3
)

// ClassifyIntent scores a message for automation intent. The score is the
// capped sum of keyword, URL, and pattern evidence; anything at or below the
// cutoff is treated as chat.
func ClassifyIntent(message string) (schemas.IntentType, float64) {
	lower := strings.ToLower(message)

	score := 0.0
	keywordScore := 0.0
	for _, kw := range automationKeywords {
		if strings.Contains(lower, kw) {
			keywordScore += keywordWeight
		}
	}
	if keywordScore > keywordScoreCap {
		keywordScore = keywordScoreCap
	}
	score += keywordScore

	if urlPattern.MatchString(message) {
		score += urlWeight
	}
	for _, p := range automationPatterns {
		if p.MatchString(message) {
			score += patternWeight
			break
		}
	}
	if score > 1.0 {
		score = 1.0
	}

	if score > automationCutoff {
		return schemas.IntentAutomation, score
	}
	return schemas.IntentChat, score
}
