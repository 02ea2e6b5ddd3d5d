// Package planner turns a raw user request into a structured multi-step goal
// plan, optionally running a draft, critique, refine deliberation pass before
// committing to it.
package planner

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/xkilldash9x/wayfinder/api/schemas"
	"github.com/xkilldash9x/wayfinder/internal/config"
	"github.com/xkilldash9x/wayfinder/internal/llmutil"
)

const plannerSystemPrompt = `You are a browser automation task planner. Turn
the user's request into a short ordered plan of browser steps, or answer
directly when no browsing is needed. Respond ONLY with a JSON object:
{"mode": "chat"|"controlled_automation", "message": "...", "goal": "...",
 "plan": [{"step": 1, "action": "...", "parameters": {}}]}
Use mode "chat" with a message when the request needs no browser. Use mode
"controlled_automation" with goal and plan otherwise. Allowed plan actions:
navigate, click, type, scroll, wait, read, finish. Keep plans under eight
steps.`

const criticSystemPrompt = `You are a skeptical reviewer of browser automation
plans. Point out missing steps, wrong ordering, unsafe assumptions, and steps
that cannot work with the stated actions. Reply with terse plain-text feedback,
three sentences at most. If the plan is sound, reply exactly: OK`

const refineSystemPrompt = `You are a browser automation task planner revising
a draft plan against reviewer feedback. Respond ONLY with the corrected JSON
plan object in the same schema as the draft.`

// GoalPlanner produces structured plans from user requests. It degrades to a
// chat-mode plan when the oracle output cannot be used, so callers never
// receive an unusable plan.
type GoalPlanner struct {
	llm     schemas.LLMClient
	cfg     config.AgentConfig
	timeout time.Duration
	logger  *zap.Logger
}

// NewGoalPlanner creates the planner. timeout bounds each oracle call, not
// the whole deliberation.
func NewGoalPlanner(llm schemas.LLMClient, cfg config.AgentConfig, timeout time.Duration, logger *zap.Logger) *GoalPlanner {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &GoalPlanner{
		llm:     llm,
		cfg:     cfg,
		timeout: timeout,
		logger:  logger.Named("goal_planner"),
	}
}

// Plan builds the goal plan for a request. With deliberation enabled the
// draft is critiqued and refined before being returned, and the full trace is
// attached to the plan.
func (p *GoalPlanner) Plan(ctx context.Context, request string) schemas.GoalPlan {
	draft, raw, err := p.draft(ctx, request)
	if err != nil {
		p.logger.Warn("Goal planning failed, degrading to chat mode.", zap.Error(err))
		return degradedPlan(request)
	}

	if !p.cfg.Deliberation || draft.Mode != schemas.ModeControlledAutomation {
		return normalizePlan(draft, request)
	}

	feedback, err := p.critique(ctx, request, raw)
	if err != nil {
		p.logger.Warn("Critique pass failed, keeping the draft plan.", zap.Error(err))
		return normalizePlan(draft, request)
	}

	trace := &schemas.Deliberation{PlannerPlan: raw, CriticFeedback: feedback}
	if strings.TrimSpace(feedback) == "OK" {
		draft.Deliberation = trace
		return normalizePlan(draft, request)
	}

	refined, refinedRaw, err := p.refine(ctx, request, raw, feedback)
	if err != nil {
		p.logger.Warn("Refine pass failed, keeping the draft plan.", zap.Error(err))
		draft.Deliberation = trace
		return normalizePlan(draft, request)
	}
	trace.RefinedPlan = refinedRaw
	refined.Deliberation = trace
	return normalizePlan(refined, request)
}

func (p *GoalPlanner) draft(ctx context.Context, request string) (schemas.GoalPlan, string, error) {
	raw, err := p.generate(ctx, plannerSystemPrompt, "REQUEST: "+request, true)
	if err != nil {
		return schemas.GoalPlan{}, "", err
	}
	plan, err := llmutil.ParseJSONResponse[schemas.GoalPlan](raw)
	if err != nil {
		return schemas.GoalPlan{}, "", fmt.Errorf("draft plan unparseable: %w", err)
	}
	return *plan, raw, nil
}

func (p *GoalPlanner) critique(ctx context.Context, request, draftRaw string) (string, error) {
	prompt := fmt.Sprintf("REQUEST: %s\n\nDRAFT PLAN:\n%s", request, draftRaw)
	return p.generate(ctx, criticSystemPrompt, prompt, false)
}

func (p *GoalPlanner) refine(ctx context.Context, request, draftRaw, feedback string) (schemas.GoalPlan, string, error) {
	prompt := fmt.Sprintf("REQUEST: %s\n\nDRAFT PLAN:\n%s\n\nREVIEWER FEEDBACK:\n%s",
		request, draftRaw, feedback)
	raw, err := p.generate(ctx, refineSystemPrompt, prompt, true)
	if err != nil {
		return schemas.GoalPlan{}, "", err
	}
	plan, err := llmutil.ParseJSONResponse[schemas.GoalPlan](raw)
	if err != nil {
		return schemas.GoalPlan{}, "", fmt.Errorf("refined plan unparseable: %w", err)
	}
	return *plan, raw, nil
}

func (p *GoalPlanner) generate(ctx context.Context, system, user string, jsonOut bool) (string, error) {
	callCtx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	return p.llm.Generate(callCtx, schemas.GenerationRequest{
		SystemPrompt: system,
		UserPrompt:   user,
		Tier:         schemas.TierPowerful,
		Options: schemas.GenerationOptions{
			Temperature:     0.3,
			ForceJSONFormat: jsonOut,
			MaxTokens:       1200,
		},
	})
}

// degradedPlan is the fallback when planning is impossible: answer in chat
// mode rather than pretend to have an automation plan.
func degradedPlan(request string) schemas.GoalPlan {
	return schemas.GoalPlan{
		Mode:    schemas.ModeChat,
		Message: "I could not build an automation plan for that request right now. Please rephrase it or try again.",
		Goal:    request,
	}
}

// normalizePlan repairs the oracle's structural sloppiness: unknown modes
// collapse to chat, automation plans get a goal and contiguously numbered
// steps with non-nil parameters, and an automation plan with no usable steps
// collapses to chat.
func normalizePlan(plan schemas.GoalPlan, request string) schemas.GoalPlan {
	if plan.Mode != schemas.ModeControlledAutomation {
		plan.Mode = schemas.ModeChat
		if plan.Message == "" {
			plan.Message = plan.Goal
		}
		plan.Steps = nil
		return plan
	}

	if strings.TrimSpace(plan.Goal) == "" {
		plan.Goal = request
	}

	steps := make([]schemas.GoalStep, 0, len(plan.Steps))
	for _, s := range plan.Steps {
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
	plan.Steps = steps

	if len(plan.Steps) == 0 {
		plan.Mode = schemas.ModeChat
		if plan.Message == "" {
			plan.Message = "The request needs browsing but I could not derive concrete steps. Please add more detail."
		}
	}
	return plan
}
