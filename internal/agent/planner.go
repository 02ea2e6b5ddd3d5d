// internal/agent/planner.go
package agent

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/xkilldash9x/wayfinder/api/schemas"
	"github.com/xkilldash9x/wayfinder/internal/config"
)

// ErrNoRuleApplies signals that none of the deterministic rules fired and
// arbitration should fall through to the oracle.
var ErrNoRuleApplies = errors.New("no planning rule applies")

// ActionPlanner decides exactly one next action from the goal, the observed
// state, and the run's history.
type ActionPlanner interface {
	Decide(
		ctx context.Context,
		goal string,
		state schemas.PageState,
		history schemas.History,
		failures schemas.History,
		strategic schemas.StrategicState,
	) (schemas.ActionDecision, error)
}

// RulePlanner is the deterministic primary planner. Its ordered rules cover
// the common cases cheaply so the oracle is consulted only when nothing else
// fires.
type RulePlanner struct {
	cfg    config.AgentConfig
	logger *zap.Logger
}

// NewRulePlanner creates the deterministic planner.
func NewRulePlanner(cfg config.AgentConfig, logger *zap.Logger) *RulePlanner {
	return &RulePlanner{cfg: cfg, logger: logger.Named("rule_planner")}
}

var _ ActionPlanner = (*RulePlanner)(nil)

// Decide applies the ordered rule set; the first applicable rule wins. It
// returns ErrNoRuleApplies when the oracle should take over.
func (p *RulePlanner) Decide(
	_ context.Context,
	goal string,
	state schemas.PageState,
	history schemas.History,
	failures schemas.History,
	strategic schemas.StrategicState,
) (schemas.ActionDecision, error) {

	goalTokens := tokenize(goal)

	// Rule 1: stuck override. Skip everything else and explore.
	if strategic.IsStuck {
		return p.exploreDecision(history, "strategic state is stuck"), nil
	}

	// Rule 2: goal satisfied. Suppressed while recent failures make the
	// current observation untrustworthy.
	if strategic.FailureRate <= p.cfg.FailureRateLimit && p.goalSatisfied(goal, goalTokens, state) {
		return decision(schemas.ActionFinish, "", "",
			0.9, "goal appears satisfied by the current page content"), nil
	}

	// Rule 3: stuck-selector avoidance. Only failures inside the analysis
	// window count; a selector that failed early in the run must not shadow
	// the rules below for the rest of it.
	avoid := strategic.RepeatedSelector
	if avoid == "" {
		recent := history.Window(p.cfg.AnalysisWindow).Failures()
		avoid = repeatedSelector(recent, p.cfg.SelectorRepeatLimit)
	}
	if avoid != "" {
		return decision(schemas.ActionScroll, "", "",
			0.6, fmt.Sprintf("avoiding selector %s after repeated failures", avoid)), nil
	}

	// Rule 4: repetition breaker. Three identical actions in a row force a
	// category switch regardless of what the rules below would pick.
	if repeat := trailingRepeat(history); repeat != "" && trailingRepeatCount(history) >= p.cfg.ActionRepeatLimit {
		return p.breakRepetition(repeat, goalTokens, state), nil
	}

	// Rule 5: best element match.
	if sel, score := p.bestElementMatch(goalTokens, state, avoid); sel != "" && score > p.cfg.MatchThreshold {
		return decision(schemas.ActionClick, sel, "",
			schemas.ClampConfidence(score),
			fmt.Sprintf("element matches goal tokens with score %.2f", score)), nil
	}

	// Rule 6: search-intent match. Skipped when typing is itself the
	// repeated failing action.
	if strategic.RepeatedAction != schemas.ActionTypeText {
		if sel := findSearchInput(state); sel != "" && looksLikeQuery(goal) {
			return decision(schemas.ActionTypeText, sel, extractQuery(goal),
				0.75, "goal reads as a query and a search input is present"), nil
		}
	}

	// Rule 7: long-page exploration.
	if p.pageIsLong(state) && !recentlyScrolled(history) {
		return decision(schemas.ActionScroll, "", "",
			0.55, "long page not yet explored"), nil
	}

	return schemas.ActionDecision{}, ErrNoRuleApplies
}

// exploreDecision picks the stuck-override action: scroll, or navigate back
// when scrolling was just tried twice.
func (p *RulePlanner) exploreDecision(history schemas.History, why string) schemas.ActionDecision {
	tail := history.Window(2)
	scrolls := 0
	for _, r := range tail {
		if r.Decision.Action == schemas.ActionScroll {
			scrolls++
		}
	}
	if scrolls >= 2 {
		return decision(schemas.ActionNavigate, "", "back", 0.5, why+"; scrolling exhausted, going back")
	}
	return decision(schemas.ActionScroll, "", "", 0.5, why+"; exploring by scrolling")
}

// breakRepetition switches to a different action category than the one that
// repeated.
func (p *RulePlanner) breakRepetition(repeated schemas.ActionType, goalTokens []string, state schemas.PageState) schemas.ActionDecision {
	why := fmt.Sprintf("breaking %s repetition", repeated)
	switch repeated {
	case schemas.ActionScroll:
		if sel, _ := p.bestElementMatch(goalTokens, state, ""); sel != "" {
			return decision(schemas.ActionClick, sel, "", 0.5, why)
		}
		return decision(schemas.ActionWait, "", "", 0.4, why)
	default:
		return decision(schemas.ActionScroll, "", "", 0.5, why)
	}
}

// goalSatisfied applies the two-tier satisfaction test: high keyword density
// on substantial content plus a corroborating signal, or very high density on
// clearly substantial content.
func (p *RulePlanner) goalSatisfied(goal string, goalTokens []string, state schemas.PageState) bool {
	if len(goalTokens) == 0 {
		return false
	}
	text := strings.ToLower(state.Text)
	density := tokenDensity(goalTokens, text)

	if density >= p.cfg.StrongDensity && len(state.Text) > p.cfg.StrongContentLength {
		return true
	}
	if density >= p.cfg.KeywordDensity && len(state.Text) > p.cfg.MinContentLength {
		if containsSatisfactionKeyword(text) || urlMatchesGoalCategory(goal, state.URL) {
			return true
		}
	}
	return false
}

// bestElementMatch scores every visible interactive element by token overlap
// with the goal, weighting buttons slightly higher than links.
func (p *RulePlanner) bestElementMatch(goalTokens []string, state schemas.PageState, avoid string) (string, float64) {
	if len(goalTokens) == 0 {
		return "", 0
	}
	bestSel, bestScore := "", 0.0
	for _, el := range state.Elements {
		if !el.Visible || el.Selector == "" || el.Selector == avoid {
			continue
		}
		elText := strings.ToLower(el.Text + " " + el.Placeholder)
		if elText == " " {
			continue
		}
		score := tokenDensity(goalTokens, elText)
		if el.Tag == "button" || el.Type == "submit" || el.Type == "button" {
			score *= p.cfg.ButtonBoost
		}
		if score > bestScore {
			bestSel, bestScore = el.Selector, score
		}
	}
	return bestSel, bestScore
}

// pageIsLong applies the exploration heuristic: enough text, or enough
// interactive elements, to make scrolling worthwhile.
func (p *RulePlanner) pageIsLong(state schemas.PageState) bool {
	if len(state.Text) > p.cfg.LongPageTextLength {
		return true
	}
	interactive := 0
	for _, el := range state.Elements {
		if el.Tag == "a" || el.Tag == "button" {
			interactive++
		}
	}
	return interactive > p.cfg.LongPageElementCount
}

// -- shared planning helpers --

func decision(action schemas.ActionType, selector, input string, confidence float64, why string) schemas.ActionDecision {
	return schemas.ActionDecision{
		Thought:        why,
		Action:         action,
		TargetSelector: selector,
		InputText:      input,
		Confidence:     schemas.ClampConfidence(confidence),
		Explanation:    why,
		Timestamp:      time.Now(),
	}
}

var stopwords = map[string]bool{
	"a": true, "an": true, "and": true, "the": true, "to": true, "of": true,
	"for": true, "in": true, "on": true, "at": true, "is": true, "it": true,
	"me": true, "my": true, "please": true, "pls": true, "can": true,
	"you": true, "with": true, "that": true, "this": true,
}

var tokenPattern = regexp.MustCompile(`[a-z0-9]+`)

// tokenize lowercases, splits, and drops stopwords and single characters.
func tokenize(s string) []string {
	raw := tokenPattern.FindAllString(strings.ToLower(s), -1)
	out := make([]string, 0, len(raw))
	for _, t := range raw {
		if len(t) < 2 || stopwords[t] {
			continue
		}
		out = append(out, t)
	}
	return out
}

// tokenDensity is the fraction of tokens present in text.
func tokenDensity(tokens []string, text string) float64 {
	if len(tokens) == 0 {
		return 0
	}
	hits := 0
	for _, t := range tokens {
		if strings.Contains(text, t) {
			hits++
		}
	}
	return float64(hits) / float64(len(tokens))
}

var satisfactionKeywords = []string{
	"results", "showing", "found", "displayed", "items", "matches",
}

func containsSatisfactionKeyword(text string) bool {
	for _, kw := range satisfactionKeywords {
		if strings.Contains(text, kw) {
			return true
		}
	}
	return false
}

// goalURLCategories maps goal vocabulary to URL fragments that corroborate
// the goal having been reached.
var goalURLCategories = map[string][]string{
	"search":  {"search", "q=", "query="},
	"video":   {"video", "watch", "youtube"},
	"shop":    {"shop", "product", "cart", "store"},
	"buy":     {"shop", "product", "cart", "store"},
	"news":    {"news", "article"},
	"read":    {"article", "blog", "wiki"},
	"login":   {"login", "signin", "account"},
	"sign":    {"login", "signin", "signup", "account"},
	"docs":    {"docs", "documentation"},
	"weather": {"weather", "forecast"},
}

func urlMatchesGoalCategory(goal, url string) bool {
	goalLower := strings.ToLower(goal)
	urlLower := strings.ToLower(url)
	for keyword, fragments := range goalURLCategories {
		if !strings.Contains(goalLower, keyword) {
			continue
		}
		for _, frag := range fragments {
			if strings.Contains(urlLower, frag) {
				return true
			}
		}
	}
	return false
}

var queryVerbs = []string{"search for", "search", "look for", "find", "query"}

func looksLikeQuery(goal string) bool {
	goalLower := strings.ToLower(goal)
	for _, v := range queryVerbs {
		if strings.Contains(goalLower, v) {
			return true
		}
	}
	return false
}

// extractQuery strips the leading query verb from the goal to get the term to
// type.
func extractQuery(goal string) string {
	goalLower := strings.ToLower(strings.TrimSpace(goal))
	for _, v := range queryVerbs {
		if idx := strings.Index(goalLower, v); idx != -1 {
			query := strings.TrimSpace(goal[idx+len(v):])
			if query != "" {
				return query
			}
		}
	}
	return goal
}

// findSearchInput returns the selector of the most plausible search field.
func findSearchInput(state schemas.PageState) string {
	for _, el := range state.Elements {
		if !el.Visible || el.Tag != "input" && el.Tag != "textarea" {
			continue
		}
		if el.Type == "search" {
			return el.Selector
		}
		placeholder := strings.ToLower(el.Placeholder)
		if strings.Contains(placeholder, "search") || strings.Contains(el.Selector, `[name="q"]`) || el.Selector == "#q" {
			return el.Selector
		}
	}
	return ""
}

func trailingRepeat(history schemas.History) schemas.ActionType {
	if len(history) == 0 {
		return ""
	}
	return history[len(history)-1].Decision.Action
}

func trailingRepeatCount(history schemas.History) int {
	if len(history) == 0 {
		return 0
	}
	last := history[len(history)-1].Decision.Action
	count := 0
	for i := len(history) - 1; i >= 0; i-- {
		if history[i].Decision.Action != last {
			break
		}
		count++
	}
	return count
}

func recentlyScrolled(history schemas.History) bool {
	for _, r := range history.Window(2) {
		if r.Decision.Action == schemas.ActionScroll {
			return true
		}
	}
	return false
}
