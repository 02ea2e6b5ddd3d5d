package agent

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/xkilldash9x/wayfinder/api/schemas"
)

func searchPage() schemas.PageState {
	return schemas.PageState{
		URL:   "https://example.com",
		Title: "Example",
		Text:  "Welcome to Example. Short landing page.",
		Elements: []schemas.PageElement{
			{Tag: "input", Selector: `input[name="q"]`, Type: "text", Placeholder: "Search the site", Visible: true},
			{Tag: "button", Selector: "#go", Text: "Go", Type: "submit", Visible: true},
		},
	}
}

func TestRulePlannerTypesIntoSearchInput(t *testing.T) {
	p := NewRulePlanner(testAgentConfig(), zap.NewNop())

	d, err := p.Decide(context.Background(), "search for golang generics", searchPage(), nil, nil, schemas.StrategicState{})
	require.NoError(t, err)
	assert.Equal(t, schemas.ActionTypeText, d.Action)
	assert.Equal(t, `input[name="q"]`, d.TargetSelector)
	assert.Equal(t, "golang generics", d.InputText)
}

func TestRulePlannerFinishesWhenGoalSatisfied(t *testing.T) {
	p := NewRulePlanner(testAgentConfig(), zap.NewNop())

	state := schemas.PageState{
		URL:   "https://example.com/search?q=golang+generics",
		Title: "golang generics - results",
		Text:  "Search results for golang generics. " + strings.Repeat("Generics in golang let you write type parameters. ", 20),
	}
	d, err := p.Decide(context.Background(), "search for golang generics", state, nil, nil, schemas.StrategicState{})
	require.NoError(t, err)
	assert.Equal(t, schemas.ActionFinish, d.Action)
	assert.GreaterOrEqual(t, d.Confidence, 0.9)
}

func TestRulePlannerRejectsFinishOnThinContent(t *testing.T) {
	p := NewRulePlanner(testAgentConfig(), zap.NewNop())

	// Every goal token is present, but the page is near-empty: an error
	// page or a stub can score perfect density without holding anything.
	state := schemas.PageState{
		URL:   "https://example.com/search?q=golang+generics",
		Title: "golang generics - results",
		Text:  "Search results for golang generics found.",
	}
	d, err := p.Decide(context.Background(), "search for golang generics", state, nil, nil, schemas.StrategicState{})
	if err == nil {
		assert.NotEqual(t, schemas.ActionFinish, d.Action)
	} else {
		assert.ErrorIs(t, err, ErrNoRuleApplies)
	}
}

func TestRulePlannerSuppressesFinishWhileFailing(t *testing.T) {
	cfg := testAgentConfig()
	p := NewRulePlanner(cfg, zap.NewNop())

	state := schemas.PageState{
		URL:  "https://example.com/search?q=golang+generics",
		Text: "Search results for golang generics. " + strings.Repeat("golang generics content. ", 40),
	}
	strategic := schemas.StrategicState{FailureRate: cfg.FailureRateLimit + 0.2}

	d, err := p.Decide(context.Background(), "search for golang generics", state, nil, nil, strategic)
	require.NoError(t, err)
	assert.NotEqual(t, schemas.ActionFinish, d.Action)
}

func TestRulePlannerStuckOverrideExplores(t *testing.T) {
	p := NewRulePlanner(testAgentConfig(), zap.NewNop())

	d, err := p.Decide(context.Background(), "search for cats", searchPage(), nil, nil, schemas.StrategicState{IsStuck: true})
	require.NoError(t, err)
	assert.Equal(t, schemas.ActionScroll, d.Action)
}

func TestRulePlannerStuckOverrideGoesBackAfterScrolling(t *testing.T) {
	p := NewRulePlanner(testAgentConfig(), zap.NewNop())

	h := schemas.History{
		record(1, schemas.ActionScroll, "", schemas.StatusSuccess),
		record(2, schemas.ActionScroll, "", schemas.StatusSuccess),
	}
	d, err := p.Decide(context.Background(), "search for cats", searchPage(), h, nil, schemas.StrategicState{IsStuck: true})
	require.NoError(t, err)
	assert.Equal(t, schemas.ActionNavigate, d.Action)
	assert.Equal(t, "back", d.InputText)
}

func TestRulePlannerAvoidsRepeatedlyFailingSelector(t *testing.T) {
	p := NewRulePlanner(testAgentConfig(), zap.NewNop())

	strategic := schemas.StrategicState{RepeatedSelector: "#submit"}
	d, err := p.Decide(context.Background(), "press submit", searchPage(), nil, nil, strategic)
	require.NoError(t, err)
	assert.Equal(t, schemas.ActionScroll, d.Action)
}

func TestRulePlannerIgnoresStaleSelectorFailures(t *testing.T) {
	cfg := testAgentConfig()
	p := NewRulePlanner(cfg, zap.NewNop())

	// Two old failures on #old, then a long stretch of successes on varied
	// selectors. The stale failures fall outside the analysis window, so
	// the perfect #checkout match must still win.
	failures := schemas.History{
		record(1, schemas.ActionClick, "#old", schemas.StatusFailed),
		record(2, schemas.ActionClick, "#old", schemas.StatusFailed),
	}
	var h schemas.History
	h = append(h, failures...)
	for i := 3; i <= 30; i++ {
		action := schemas.ActionClick
		sel := "#item" + string(rune('a'+i%7))
		if i%2 == 0 {
			action, sel = schemas.ActionRead, ""
		}
		h = append(h, record(i, action, sel, schemas.StatusSuccess))
	}

	state := schemas.PageState{
		URL:  "https://shop.example.com",
		Text: "A storefront.",
		Elements: []schemas.PageElement{
			{Tag: "button", Selector: "#checkout", Text: "checkout cart now", Type: "submit", Visible: true},
		},
	}
	d, err := p.Decide(context.Background(), "checkout the cart", state, h, failures, schemas.StrategicState{})
	require.NoError(t, err)
	assert.Equal(t, schemas.ActionClick, d.Action)
	assert.Equal(t, "#checkout", d.TargetSelector)
}

func TestRulePlannerStillAvoidsRecentSelectorFailures(t *testing.T) {
	cfg := testAgentConfig()
	p := NewRulePlanner(cfg, zap.NewNop())

	failures := schemas.History{
		record(1, schemas.ActionClick, "#checkout", schemas.StatusFailed),
		record(2, schemas.ActionClick, "#checkout", schemas.StatusFailed),
	}
	state := schemas.PageState{
		URL:  "https://shop.example.com",
		Text: "A storefront.",
		Elements: []schemas.PageElement{
			{Tag: "button", Selector: "#checkout", Text: "checkout cart now", Type: "submit", Visible: true},
		},
	}
	d, err := p.Decide(context.Background(), "checkout the cart", state, failures, failures, schemas.StrategicState{})
	require.NoError(t, err)
	assert.Equal(t, schemas.ActionScroll, d.Action)
}

func TestRulePlannerBreaksRepetition(t *testing.T) {
	cfg := testAgentConfig()
	p := NewRulePlanner(cfg, zap.NewNop())

	var h schemas.History
	for i := 1; i <= cfg.ActionRepeatLimit; i++ {
		h = append(h, record(i, schemas.ActionScroll, "", schemas.StatusSuccess))
	}
	d, err := p.Decide(context.Background(), "look around", searchPage(), h, nil, schemas.StrategicState{})
	require.NoError(t, err)
	assert.NotEqual(t, schemas.ActionScroll, d.Action)
}

func TestRulePlannerClicksBestMatchingElement(t *testing.T) {
	p := NewRulePlanner(testAgentConfig(), zap.NewNop())

	state := schemas.PageState{
		URL:  "https://shop.example.com",
		Text: "A storefront.",
		Elements: []schemas.PageElement{
			{Tag: "a", Selector: "#about", Text: "About us", Visible: true},
			{Tag: "button", Selector: "#checkout", Text: "checkout cart now", Type: "submit", Visible: true},
		},
	}
	d, err := p.Decide(context.Background(), "checkout the cart", state, nil, nil, schemas.StrategicState{})
	require.NoError(t, err)
	assert.Equal(t, schemas.ActionClick, d.Action)
	assert.Equal(t, "#checkout", d.TargetSelector)
}

func TestRulePlannerScrollsLongUnexploredPage(t *testing.T) {
	cfg := testAgentConfig()
	p := NewRulePlanner(cfg, zap.NewNop())

	state := schemas.PageState{
		URL:  "https://example.com/article",
		Text: strings.Repeat("paragraph text ", 100),
	}
	d, err := p.Decide(context.Background(), "zzzz qqqq", state, nil, nil, schemas.StrategicState{})
	require.NoError(t, err)
	assert.Equal(t, schemas.ActionScroll, d.Action)
}

func TestRulePlannerNoRuleApplies(t *testing.T) {
	p := NewRulePlanner(testAgentConfig(), zap.NewNop())

	state := schemas.PageState{URL: "https://example.com", Text: "tiny page"}
	_, err := p.Decide(context.Background(), "zzzz qqqq", state, nil, nil, schemas.StrategicState{})
	assert.ErrorIs(t, err, ErrNoRuleApplies)
}

func TestExtractQuery(t *testing.T) {
	assert.Equal(t, "golang generics", extractQuery("search for golang generics"))
	assert.Equal(t, "cheap flights", extractQuery("Find cheap flights"))
	assert.Equal(t, "just a goal", extractQuery("just a goal"))
}

func TestTokenizeDropsStopwordsAndShortTokens(t *testing.T) {
	tokens := tokenize("Please find the best price for a TV")
	assert.NotContains(t, tokens, "the")
	assert.NotContains(t, tokens, "a")
	assert.Contains(t, tokens, "best")
	assert.Contains(t, tokens, "price")
}
