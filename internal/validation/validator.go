// Package validation decides, after a batch of executed steps, whether the
// goal is actually achieved and produces a corrective follow-up plan when it
// is not.
package validation

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/xkilldash9x/wayfinder/api/schemas"
	"github.com/xkilldash9x/wayfinder/internal/config"
	"github.com/xkilldash9x/wayfinder/internal/llmutil"
)

const validatorSystemPrompt = `You are a strict completion auditor for a browser
automation agent. You are given the original goal, the plan that was attempted,
and the execution trace. Judge ONLY from the evidence given whether the goal is
fully achieved. Respond ONLY with a JSON object, no prose:
{"completed": true|false, "completion_percentage": 0-100, "reason": "...",
 "missing_steps": ["..."], "next_plan": [{"step": 1, "action": "...",
 "parameters": {}}]}
next_plan must be present and non-empty only when completed is false and a
concrete continuation exists. Allowed next_plan actions: navigate, click, type,
scroll, wait, read, finish.`

// Agent asks the oracle whether a goal is fully achieved. Unparseable or
// missing oracle output degrades to "not completed" with no continuation,
// never to a false positive.
type Agent struct {
	llm     schemas.LLMClient
	cfg     config.AgentConfig
	timeout time.Duration
	logger  *zap.Logger
}

// NewAgent creates the validator. timeout bounds each oracle call.
func NewAgent(llm schemas.LLMClient, cfg config.AgentConfig, timeout time.Duration, logger *zap.Logger) *Agent {
	if timeout <= 0 {
		timeout = 45 * time.Second
	}
	return &Agent{
		llm:     llm,
		cfg:     cfg,
		timeout: timeout,
		logger:  logger.Named("validator"),
	}
}

// Validate judges the run outcome against the goal. It always returns a
// usable result: oracle failure yields an honest incomplete verdict.
func (a *Agent) Validate(
	ctx context.Context,
	goal string,
	plan []schemas.GoalStep,
	history schemas.History,
) schemas.ValidationResult {

	callCtx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	raw, err := a.llm.Generate(callCtx, schemas.GenerationRequest{
		SystemPrompt: validatorSystemPrompt,
		UserPrompt:   a.buildPrompt(goal, plan, history),
		Tier:         schemas.TierPowerful,
		Options: schemas.GenerationOptions{
			Temperature:     0.1,
			ForceJSONFormat: true,
			MaxTokens:       800,
		},
	})
	if err != nil {
		a.logger.Warn("Validation oracle call failed, reporting incomplete.", zap.Error(err))
		return degradedResult(fmt.Sprintf("validation unavailable: %v", err))
	}

	parsed, err := llmutil.ParseJSONResponse[schemas.ValidationResult](raw)
	if err != nil {
		a.logger.Warn("Validation response unparseable, reporting incomplete.", zap.Error(err))
		return degradedResult("validation response could not be parsed")
	}

	return normalize(*parsed)
}

// buildPrompt summarizes the attempted plan and the execution trace. History
// lines are bounded so a long run cannot blow the prompt.
func (a *Agent) buildPrompt(goal string, plan []schemas.GoalStep, history schemas.History) string {
	var sb strings.Builder

	fmt.Fprintf(&sb, "GOAL: %s\n\n", goal)

	if len(plan) > 0 {
		sb.WriteString("ATTEMPTED PLAN:\n")
		for _, s := range plan {
			fmt.Fprintf(&sb, "- step %d: %s %v\n", s.Step, s.Action, s.Parameters)
		}
		sb.WriteByte('\n')
	}

	sb.WriteString("EXECUTION TRACE:\n")
	window := history
	if max := a.cfg.MaxSteps; len(window) > max && max > 0 {
		window = window.Window(max)
	}
	for _, r := range window {
		fmt.Fprintf(&sb, "- step %d: %s %s -> %s", r.StepNumber, r.Decision.Action, r.Decision.TargetSelector, r.Status)
		if r.Details != "" {
			fmt.Fprintf(&sb, " (%s)", truncate(r.Details, 160))
		}
		sb.WriteByte('\n')
	}

	sb.WriteString("\nRespond with the single JSON verdict object.")
	return sb.String()
}

// degradedResult is the safe verdict when the oracle cannot be consulted: the
// goal is treated as incomplete, but no fabricated continuation is offered.
func degradedResult(reason string) schemas.ValidationResult {
	return schemas.ValidationResult{
		Completed:     false,
		CompletionPct: 0,
		Reason:        reason,
	}
}

// normalize repairs common oracle sloppiness: the percentage is clamped, a
// completed verdict never carries a continuation, and continuation steps are
// renumbered contiguously with non-nil parameters.
func normalize(v schemas.ValidationResult) schemas.ValidationResult {
	if v.CompletionPct < 0 {
		v.CompletionPct = 0
	}
	if v.CompletionPct > 100 {
		v.CompletionPct = 100
	}
	if v.Completed {
		v.CompletionPct = 100
		v.MissingSteps = nil
		v.NextPlan = nil
		return v
	}

	steps := make([]schemas.GoalStep, 0, len(v.NextPlan))
	for _, s := range v.NextPlan {
		s.Action = strings.ToLower(strings.TrimSpace(s.Action))
		if s.Action == "" {
			continue
		}
		if s.Parameters == nil {
			s.Parameters = map[string]interface{}{}
		}
		s.Step = len(steps) + 1
		steps = append(steps, s)
	}
	v.NextPlan = steps
	return v
}

// truncate bounds s to max bytes, backing up to a rune boundary so the cut
// never leaves invalid UTF-8.
func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	cut := max
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "..."
}
