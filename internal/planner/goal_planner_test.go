package planner

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/xkilldash9x/wayfinder/api/schemas"
	"github.com/xkilldash9x/wayfinder/internal/config"
)

// scriptedLLM returns canned replies in order.
type scriptedLLM struct {
	replies []string
	err     error
	calls   int
}

func (s *scriptedLLM) Generate(ctx context.Context, req schemas.GenerationRequest) (string, error) {
	if s.err != nil {
		return "", s.err
	}
	i := s.calls
	if i >= len(s.replies) {
		i = len(s.replies) - 1
	}
	s.calls++
	return s.replies[i], nil
}
func (s *scriptedLLM) Close() error { return nil }

func newPlanner(llm schemas.LLMClient, deliberation bool) *GoalPlanner {
	cfg := config.NewDefaultConfig().Agent()
	cfg.Deliberation = deliberation
	return NewGoalPlanner(llm, cfg, 0, zap.NewNop())
}

const automationDraft = `{
	"mode": "controlled_automation",
	"goal": "search for cats on example.com",
	"plan": [
		{"step": 5, "action": "Navigate", "parameters": {"url": "https://example.com"}},
		{"step": 9, "action": "type"}
	]
}`

func TestPlanNormalizesAutomationPlan(t *testing.T) {
	p := newPlanner(&scriptedLLM{replies: []string{automationDraft}}, false)

	plan := p.Plan(context.Background(), "search for cats on example.com")
	assert.Equal(t, schemas.ModeControlledAutomation, plan.Mode)
	require.Len(t, plan.Steps, 2)
	assert.Equal(t, 1, plan.Steps[0].Step)
	assert.Equal(t, "navigate", plan.Steps[0].Action)
	assert.Equal(t, 2, plan.Steps[1].Step)
	assert.NotNil(t, plan.Steps[1].Parameters)
	assert.Nil(t, plan.Deliberation)
}

func TestPlanChatModePassesThrough(t *testing.T) {
	p := newPlanner(&scriptedLLM{replies: []string{`{"mode": "chat", "message": "No browsing needed: 2+2 is 4."}`}}, false)

	plan := p.Plan(context.Background(), "what is 2+2?")
	assert.Equal(t, schemas.ModeChat, plan.Mode)
	assert.Contains(t, plan.Message, "2+2")
	assert.Empty(t, plan.Steps)
}

func TestPlanDegradesToChatOnOracleError(t *testing.T) {
	p := newPlanner(&scriptedLLM{err: errors.New("unavailable")}, false)

	plan := p.Plan(context.Background(), "open example.com")
	assert.Equal(t, schemas.ModeChat, plan.Mode)
	assert.NotEmpty(t, plan.Message)
}

func TestPlanEmptyAutomationPlanCollapsesToChat(t *testing.T) {
	p := newPlanner(&scriptedLLM{replies: []string{`{"mode": "controlled_automation", "goal": "do a thing", "plan": []}`}}, false)

	plan := p.Plan(context.Background(), "do a thing")
	assert.Equal(t, schemas.ModeChat, plan.Mode)
}

func TestPlanDeliberationAcceptedDraft(t *testing.T) {
	llm := &scriptedLLM{replies: []string{automationDraft, "OK"}}
	p := newPlanner(llm, true)

	plan := p.Plan(context.Background(), "search for cats on example.com")
	assert.Equal(t, schemas.ModeControlledAutomation, plan.Mode)
	require.NotNil(t, plan.Deliberation)
	assert.Equal(t, "OK", plan.Deliberation.CriticFeedback)
	assert.Empty(t, plan.Deliberation.RefinedPlan)
	assert.Equal(t, 2, llm.calls)
}

func TestPlanDeliberationRefinesAfterCritique(t *testing.T) {
	refined := `{
		"mode": "controlled_automation",
		"goal": "search for cats on example.com",
		"plan": [
			{"step": 1, "action": "navigate", "parameters": {"url": "https://example.com"}},
			{"step": 2, "action": "type", "parameters": {"selector": "#q", "text": "cats"}},
			{"step": 3, "action": "read"}
		]
	}`
	llm := &scriptedLLM{replies: []string{automationDraft, "The draft never reads the results.", refined}}
	p := newPlanner(llm, true)

	plan := p.Plan(context.Background(), "search for cats on example.com")
	require.NotNil(t, plan.Deliberation)
	assert.NotEmpty(t, plan.Deliberation.RefinedPlan)
	require.Len(t, plan.Steps, 3)
	assert.Equal(t, "read", plan.Steps[2].Action)
	assert.Equal(t, 3, llm.calls)
}

func TestPlanDeliberationSkippedForChat(t *testing.T) {
	llm := &scriptedLLM{replies: []string{`{"mode": "chat", "message": "hello"}`}}
	p := newPlanner(llm, true)

	plan := p.Plan(context.Background(), "hello")
	assert.Equal(t, schemas.ModeChat, plan.Mode)
	assert.Equal(t, 1, llm.calls)
}
