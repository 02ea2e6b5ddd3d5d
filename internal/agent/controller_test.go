package agent

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap"

	"github.com/xkilldash9x/wayfinder/api/schemas"
	"github.com/xkilldash9x/wayfinder/internal/config"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// fakeObserver serves scripted page states, repeating the last one once the
// script runs out.
type fakeObserver struct {
	states []schemas.PageState
	i      int
}

func (f *fakeObserver) Observe(ctx context.Context) schemas.PageState {
	if len(f.states) == 0 {
		return schemas.PageState{}
	}
	s := f.states[min(f.i, len(f.states)-1)]
	f.i++
	return s
}

// fakeDispatcher returns scripted results keyed by call order.
type fakeDispatcher struct {
	fn    func(call int, name string, params map[string]interface{}) schemas.ToolResult
	calls int
	names []string
}

func (f *fakeDispatcher) Execute(ctx context.Context, name string, params map[string]interface{}) schemas.ToolResult {
	f.calls++
	f.names = append(f.names, name)
	return f.fn(f.calls, name, params)
}

// scriptedPlanner returns decisions in order, repeating the last.
type scriptedPlanner struct {
	decisions []schemas.ActionDecision
	i         int
}

func (s *scriptedPlanner) Decide(
	ctx context.Context,
	goal string,
	state schemas.PageState,
	history schemas.History,
	failures schemas.History,
	strategic schemas.StrategicState,
) (schemas.ActionDecision, error) {
	d := s.decisions[min(s.i, len(s.decisions)-1)]
	s.i++
	return d, nil
}

func controllerConfig() config.AgentConfig {
	cfg := testAgentConfig()
	cfg.MaxSteps = 10
	return cfg
}

func changingPages(n int) []schemas.PageState {
	pages := make([]schemas.PageState, n)
	for i := range pages {
		pages[i] = schemas.PageState{
			URL:   "https://example.com/page",
			Title: "Example",
			Text:  string(rune('a'+i%26)) + " page content that differs substantially between observations, repeated enough to matter " + string(make([]byte, i*200)),
		}
	}
	return pages
}

func successDispatcher() *fakeDispatcher {
	height := 0
	return &fakeDispatcher{fn: func(call int, name string, params map[string]interface{}) schemas.ToolResult {
		height += 500
		return schemas.SuccessResult(map[string]interface{}{"page_height": height})
	}}
}

func TestRunCompletesOnFinishDecision(t *testing.T) {
	planner := &scriptedPlanner{decisions: []schemas.ActionDecision{
		decision(schemas.ActionFinish, "", "", 0.95, "goal reached"),
	}}
	c := NewController(controllerConfig(), &fakeObserver{states: changingPages(2)}, successDispatcher(), planner, planner, zap.NewNop())

	report := c.Run(context.Background(), "any goal")
	assert.Equal(t, schemas.RunCompleted, report.Status)
	require.Len(t, report.History, 1)
	assert.Equal(t, schemas.StatusCompleted, report.History[0].Status)
	assert.NotEmpty(t, report.ID)
}

func TestRunErrorsAfterFailedRecovery(t *testing.T) {
	planner := &scriptedPlanner{decisions: []schemas.ActionDecision{
		decision(schemas.ActionWait, "", "", 0.5, "try"),
	}}
	dispatcher := &fakeDispatcher{fn: func(call int, name string, params map[string]interface{}) schemas.ToolResult {
		return schemas.ErrorResult("execution_error: element vanished")
	}}
	c := NewController(controllerConfig(), &fakeObserver{states: changingPages(12)}, dispatcher, planner, planner, zap.NewNop())

	report := c.Run(context.Background(), "any goal")
	assert.Equal(t, schemas.RunError, report.Status)
	// Two failures trigger one forced recovery; its failure ends the run.
	assert.Equal(t, 3, dispatcher.calls)
	assert.Len(t, report.History, 3)
}

func TestRunDetectsLoop(t *testing.T) {
	cfg := controllerConfig()
	planner := &scriptedPlanner{decisions: []schemas.ActionDecision{
		decision(schemas.ActionWait, "", "", 0.5, "wait"),
	}}
	c := NewController(cfg, &fakeObserver{states: changingPages(20)}, successDispatcher(), planner, planner, zap.NewNop())

	report := c.Run(context.Background(), "any goal")
	assert.Equal(t, schemas.RunLoopDetected, report.Status)
	assert.Equal(t, cfg.LoopWindow, len(report.History))
}

func TestRunStopsAtMaxSteps(t *testing.T) {
	cfg := controllerConfig()
	cfg.MaxSteps = 3
	cfg.LoopWindow = 10

	planner := &scriptedPlanner{decisions: []schemas.ActionDecision{
		decision(schemas.ActionRead, "", "", 0.5, "read"),
		decision(schemas.ActionWait, "", "", 0.5, "wait"),
		decision(schemas.ActionRead, "", "", 0.5, "read"),
	}}
	c := NewController(cfg, &fakeObserver{states: changingPages(10)}, successDispatcher(), planner, planner, zap.NewNop())

	report := c.Run(context.Background(), "any goal")
	assert.Equal(t, schemas.RunMaxStepsReached, report.Status)
	assert.Equal(t, 3, report.StepsTaken)
}

func TestRunSynthesizesSoftFailureOnDrift(t *testing.T) {
	cfg := controllerConfig()
	cfg.MaxSteps = 3
	cfg.LoopWindow = 10

	// The page never changes, so successful steps make no progress.
	still := schemas.PageState{URL: "https://example.com", Title: "Static", Text: "unchanging content"}
	planner := &scriptedPlanner{decisions: []schemas.ActionDecision{
		decision(schemas.ActionRead, "", "", 0.5, "read"),
		decision(schemas.ActionWait, "", "", 0.5, "wait"),
	}}
	c := NewController(cfg, &fakeObserver{states: []schemas.PageState{still}}, successDispatcher(), planner, planner, zap.NewNop())

	report := c.Run(context.Background(), "any goal")
	soft := 0
	for _, r := range report.History {
		if r.Status == schemas.StatusSoftFailure {
			soft++
		}
	}
	assert.GreaterOrEqual(t, soft, 1)
}

func TestRunTranslatesNavigateBackToPreviousURL(t *testing.T) {
	cfg := controllerConfig()
	cfg.MaxSteps = 2

	pages := []schemas.PageState{
		{URL: "https://example.com/a", Title: "A", Text: "page a content"},
		{URL: "https://example.com/a", Title: "A", Text: "page a content"},
		{URL: "https://example.com/b", Title: "B", Text: "page b content entirely different"},
		{URL: "https://example.com/b", Title: "B", Text: "page b content entirely different"},
	}
	planner := &scriptedPlanner{decisions: []schemas.ActionDecision{
		decision(schemas.ActionNavigate, "", "https://example.com/b", 0.8, "go to b"),
		decision(schemas.ActionNavigate, "", "back", 0.6, "return"),
	}}

	var backURL string
	dispatcher := &fakeDispatcher{fn: func(call int, name string, params map[string]interface{}) schemas.ToolResult {
		if call == 2 {
			backURL, _ = params["url"].(string)
		}
		return schemas.SuccessResult(map[string]interface{}{"status": "success"})
	}}

	c := NewController(cfg, &fakeObserver{states: pages}, dispatcher, planner, planner, zap.NewNop())
	report := c.Run(context.Background(), "any goal")

	assert.Equal(t, schemas.RunMaxStepsReached, report.Status)
	assert.Equal(t, "https://example.com/a", backURL)
	assert.Equal(t, []string{"open_url", "open_url"}, dispatcher.names)
}

func TestRunAbortsOnCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	planner := &scriptedPlanner{decisions: []schemas.ActionDecision{
		decision(schemas.ActionWait, "", "", 0.5, "wait"),
	}}
	c := NewController(controllerConfig(), &fakeObserver{}, successDispatcher(), planner, planner, zap.NewNop())

	report := c.Run(ctx, "any goal")
	assert.Equal(t, schemas.RunError, report.Status)
	assert.Empty(t, report.History)
}
