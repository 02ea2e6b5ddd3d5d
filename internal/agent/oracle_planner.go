// internal/agent/oracle_planner.go
package agent

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/xkilldash9x/wayfinder/api/schemas"
	"github.com/xkilldash9x/wayfinder/internal/config"
	"github.com/xkilldash9x/wayfinder/internal/llmutil"
)

// ErrOraclePlanning marks oracle output that failed to parse or validate.
// The hybrid planner degrades to its safety net instead of surfacing it.
var ErrOraclePlanning = errors.New("oracle planning failed")

const oracleSystemPrompt = `You are a precise browser automation planner.
Given a goal and the current page, choose exactly ONE next action.
Respond ONLY with a JSON object, no prose:
{"thought": "...", "action": "click|type|scroll|wait|navigate|read|finish",
 "target_selector": "...", "input_text": "...", "confidence": 0.0,
 "explanation": "..."}
Rules: target_selector is required for click and type and must be one of the
listed selectors. Use finish only when the goal is clearly achieved.`

// OraclePlanner consults the reasoning oracle when no deterministic rule
// fires. Its raw output is treated as untrusted and is parsed and validated
// before anything executes.
type OraclePlanner struct {
	llm     schemas.LLMClient
	cfg     config.AgentConfig
	timeout time.Duration
	logger  *zap.Logger
}

// NewOraclePlanner creates the oracle-backed planner. timeout bounds each
// oracle call separately from the per-action timeout.
func NewOraclePlanner(llm schemas.LLMClient, cfg config.AgentConfig, timeout time.Duration, logger *zap.Logger) *OraclePlanner {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &OraclePlanner{
		llm:     llm,
		cfg:     cfg,
		timeout: timeout,
		logger:  logger.Named("oracle_planner"),
	}
}

var _ ActionPlanner = (*OraclePlanner)(nil)

// oracleDecision is the wire shape expected back from the oracle.
type oracleDecision struct {
	Thought        string  `json:"thought"`
	Action         string  `json:"action"`
	TargetSelector string  `json:"target_selector"`
	InputText      string  `json:"input_text"`
	Confidence     float64 `json:"confidence"`
	Explanation    string  `json:"explanation"`
}

// Decide builds a bounded prompt, queries the oracle, and maps the extracted
// JSON onto an ActionDecision.
func (p *OraclePlanner) Decide(
	ctx context.Context,
	goal string,
	state schemas.PageState,
	history schemas.History,
	failures schemas.History,
	strategic schemas.StrategicState,
) (schemas.ActionDecision, error) {

	callCtx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	raw, err := p.llm.Generate(callCtx, schemas.GenerationRequest{
		SystemPrompt: oracleSystemPrompt,
		UserPrompt:   p.buildPrompt(goal, state, history, failures, strategic),
		Tier:         schemas.TierFast,
		Options: schemas.GenerationOptions{
			Temperature:     0.2,
			ForceJSONFormat: true,
			MaxTokens:       400,
		},
	})
	if err != nil {
		return schemas.ActionDecision{}, fmt.Errorf("%w: %v", ErrOraclePlanning, err)
	}

	parsed, err := llmutil.ParseJSONResponse[oracleDecision](raw)
	if err != nil {
		p.logger.Warn("Oracle returned unparseable decision.", zap.Error(err))
		return schemas.ActionDecision{}, fmt.Errorf("%w: %v", ErrOraclePlanning, err)
	}

	action := schemas.ActionType(strings.ToLower(strings.TrimSpace(parsed.Action)))
	if !action.Valid() {
		return schemas.ActionDecision{}, fmt.Errorf("%w: action %q outside allowed set", ErrOraclePlanning, parsed.Action)
	}

	return schemas.ActionDecision{
		Thought:        parsed.Thought,
		Action:         action,
		TargetSelector: parsed.TargetSelector,
		InputText:      parsed.InputText,
		Confidence:     schemas.ClampConfidence(parsed.Confidence),
		Explanation:    parsed.Explanation,
		Timestamp:      time.Now(),
	}, nil
}

// buildPrompt assembles the bounded-size user prompt: goal, page summary,
// top-N elements, and the last-N history and failure lines.
func (p *OraclePlanner) buildPrompt(
	goal string,
	state schemas.PageState,
	history schemas.History,
	failures schemas.History,
	strategic schemas.StrategicState,
) string {
	var sb strings.Builder

	fmt.Fprintf(&sb, "GOAL: %s\n\n", goal)
	fmt.Fprintf(&sb, "PAGE: url=%s title=%q text_length=%d\n", state.URL, state.Title, len(state.Text))
	fmt.Fprintf(&sb, "STRATEGY: failure_rate=%.2f stuck=%v no_progress_streak=%d\n\n",
		strategic.FailureRate, strategic.IsStuck, strategic.NoProgressStreak)

	sb.WriteString("ELEMENTS:\n")
	count := 0
	for _, el := range state.Elements {
		if !el.Visible {
			continue
		}
		if count >= p.cfg.MaxPromptElements {
			break
		}
		fmt.Fprintf(&sb, "- %s %s %q", el.Tag, el.Selector, el.Text)
		if el.Placeholder != "" {
			fmt.Fprintf(&sb, " placeholder=%q", el.Placeholder)
		}
		sb.WriteByte('\n')
		count++
	}

	sb.WriteString("\nRECENT STEPS:\n")
	for _, r := range history.Window(p.cfg.MaxPromptHistory) {
		fmt.Fprintf(&sb, "- step %d: %s %s -> %s\n",
			r.StepNumber, r.Decision.Action, r.Decision.TargetSelector, r.Status)
	}

	if len(failures) > 0 {
		sb.WriteString("\nRECENT FAILURES:\n")
		for _, r := range failures.Window(p.cfg.MaxPromptHistory) {
			fmt.Fprintf(&sb, "- step %d: %s %s: %s\n",
				r.StepNumber, r.Decision.Action, r.Decision.TargetSelector, r.Details)
		}
	}

	sb.WriteString("\nRespond with the single JSON decision object.")
	return sb.String()
}
