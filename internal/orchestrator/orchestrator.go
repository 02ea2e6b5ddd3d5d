// Package orchestrator is the top-level conversational surface: it routes
// messages between chat and controlled automation, gates plans behind user
// approval, and drives the plan, execute, validate, re-plan cycle.
package orchestrator

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/xkilldash9x/wayfinder/api/schemas"
	"github.com/xkilldash9x/wayfinder/internal/config"
)

const chatSystemPrompt = `You are a concise, helpful assistant embedded in a
browser automation tool. Answer directly in plain text. If the user seems to
want the browser driven, suggest they phrase it as a task.`

// GoalRunner executes one goal to a terminal state. Satisfied by the agent
// controller.
type GoalRunner interface {
	Run(ctx context.Context, goal string) schemas.RunReport
}

// Validator judges whether a finished run achieved its goal. Satisfied by the
// validation agent.
type Validator interface {
	Validate(ctx context.Context, goal string, plan []schemas.GoalStep, history schemas.History) schemas.ValidationResult
}

// GoalPlanner turns a request into a structured plan. Satisfied by the goal
// planner.
type GoalPlanner interface {
	Plan(ctx context.Context, request string) schemas.GoalPlan
}

// Orchestrator owns the conversation loop. It serves one conversation at a
// time; the pending-approval state is still guarded so concurrent callers
// cannot corrupt it.
type Orchestrator struct {
	cfg       config.AgentConfig
	llm       schemas.LLMClient
	planner   GoalPlanner
	runner    GoalRunner
	validator Validator
	store     schemas.RunStore
	session   schemas.SessionManager
	logger    *zap.Logger

	mu      sync.Mutex
	pending *schemas.GoalPlan
}

// New wires the orchestrator. store may be nil to disable persistence, and
// session may be nil when the caller owns browser shutdown.
func New(
	cfg config.AgentConfig,
	llm schemas.LLMClient,
	planner GoalPlanner,
	runner GoalRunner,
	validator Validator,
	store schemas.RunStore,
	session schemas.SessionManager,
	logger *zap.Logger,
) *Orchestrator {
	return &Orchestrator{
		cfg:       cfg,
		llm:       llm,
		planner:   planner,
		runner:    runner,
		validator: validator,
		store:     store,
		session:   session,
		logger:    logger.Named("orchestrator"),
	}
}

// HandleMessage processes one user message and returns the reply to print.
// It is the single entry point for the chat surface: approval replies,
// chat questions, and automation requests all come through here.
func (o *Orchestrator) HandleMessage(ctx context.Context, message string) (string, error) {
	if plan := o.takePendingIfDecided(message); plan != nil {
		switch ParseApproval(message) {
		case schemas.ApprovalGranted:
			return o.runApproved(ctx, plan)
		case schemas.ApprovalRejected:
			return "Understood, the plan is discarded. What would you like to do instead?", nil
		}
	}
	if o.hasPending() {
		return "I still have a plan waiting for approval. Reply yes to run it or no to discard it.", nil
	}

	intent, score := ClassifyIntent(message)
	o.logger.Debug("Message classified.",
		zap.String("intent", string(intent)),
		zap.Float64("score", score),
	)

	if intent == schemas.IntentChat {
		return o.chatReply(ctx, message)
	}

	plan := o.planner.Plan(ctx, message)
	if plan.Mode != schemas.ModeControlledAutomation {
		if plan.Message != "" {
			return plan.Message, nil
		}
		return o.chatReply(ctx, message)
	}

	o.setPending(&plan)
	return renderPlanForApproval(plan), nil
}

// RunGoal drives the full autonomous cycle for an already-approved goal:
// execute, validate, and substitute the validator's continuation plan, up to
// the configured number of plan iterations.
func (o *Orchestrator) RunGoal(ctx context.Context, goal string, plan []schemas.GoalStep) (schemas.RunReport, schemas.ValidationResult) {
	var (
		report  schemas.RunReport
		verdict schemas.ValidationResult
	)
	currentGoal := goal

	for iteration := 1; iteration <= o.cfg.MaxPlanIterations; iteration++ {
		o.logger.Info("Starting plan iteration.",
			zap.Int("iteration", iteration),
			zap.String("goal", currentGoal),
		)

		report = o.runner.Run(ctx, currentGoal)
		o.persist(ctx, &report)

		if o.validator == nil {
			verdict = schemas.ValidationResult{
				Completed:     report.Status == schemas.RunCompleted,
				CompletionPct: completionPctFor(report.Status),
				Reason:        report.Summary,
			}
			return report, verdict
		}

		verdict = o.validator.Validate(ctx, goal, plan, report.History)
		if verdict.Completed || !verdict.NeedsContinuation() {
			return report, verdict
		}
		if ctx.Err() != nil {
			return report, verdict
		}

		plan = verdict.NextPlan
		currentGoal = continuationGoal(goal, verdict)
	}

	o.logger.Warn("Plan iteration budget exhausted without completion.",
		zap.Int("iterations", o.cfg.MaxPlanIterations))
	return report, verdict
}

// Close shuts the shared resources down concurrently.
func (o *Orchestrator) Close(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)
	if o.session != nil {
		g.Go(func() error { return o.session.Close(gctx) })
	}
	if o.llm != nil {
		g.Go(func() error { return o.llm.Close() })
	}
	return g.Wait()
}

func (o *Orchestrator) runApproved(ctx context.Context, plan *schemas.GoalPlan) (string, error) {
	report, verdict := o.RunGoal(ctx, plan.Goal, plan.Steps)
	return renderOutcome(report, verdict), nil
}

func (o *Orchestrator) chatReply(ctx context.Context, message string) (string, error) {
	reply, err := o.llm.Generate(ctx, schemas.GenerationRequest{
		SystemPrompt: chatSystemPrompt,
		UserPrompt:   message,
		Tier:         schemas.TierFast,
		Options:      schemas.GenerationOptions{Temperature: 0.7, MaxTokens: 800},
	})
	if err != nil {
		return "", fmt.Errorf("chat reply failed: %w", err)
	}
	return strings.TrimSpace(reply), nil
}

func (o *Orchestrator) persist(ctx context.Context, report *schemas.RunReport) {
	if o.store == nil {
		return
	}
	saveCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()
	if err := o.store.SaveRun(saveCtx, report); err != nil {
		o.logger.Warn("Failed to persist run report.",
			zap.String("run_id", report.ID), zap.Error(err))
	}
}

// takePendingIfDecided clears and returns the pending plan when the message
// is a decisive approval reply, leaving it in place otherwise.
func (o *Orchestrator) takePendingIfDecided(message string) *schemas.GoalPlan {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.pending == nil {
		return nil
	}
	if ParseApproval(message) == schemas.ApprovalUndecided {
		return nil
	}
	plan := o.pending
	o.pending = nil
	return plan
}

func (o *Orchestrator) hasPending() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.pending != nil
}

func (o *Orchestrator) setPending(plan *schemas.GoalPlan) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.pending = plan
}

// continuationGoal folds the validator's findings into the next iteration's
// goal so the controller knows what remains.
func continuationGoal(goal string, verdict schemas.ValidationResult) string {
	var sb strings.Builder
	sb.WriteString(goal)
	if len(verdict.MissingSteps) > 0 {
		sb.WriteString(" (remaining: ")
		sb.WriteString(strings.Join(verdict.MissingSteps, "; "))
		sb.WriteString(")")
	} else if verdict.Reason != "" {
		sb.WriteString(" (continue: ")
		sb.WriteString(verdict.Reason)
		sb.WriteString(")")
	}
	return sb.String()
}

func completionPctFor(status schemas.RunStatus) int {
	if status == schemas.RunCompleted {
		return 100
	}
	return 0
}

func renderPlanForApproval(plan schemas.GoalPlan) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "I propose the following plan for: %s\n", plan.Goal)
	for _, s := range plan.Steps {
		fmt.Fprintf(&sb, "  %d. %s", s.Step, s.Action)
		if len(s.Parameters) > 0 {
			fmt.Fprintf(&sb, " %v", s.Parameters)
		}
		sb.WriteByte('\n')
	}
	sb.WriteString("Shall I proceed? (yes/no)")
	return sb.String()
}

func renderOutcome(report schemas.RunReport, verdict schemas.ValidationResult) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Run %s finished with status %s after %d steps.\n",
		report.ID, report.Status, report.StepsTaken)
	if verdict.Completed {
		fmt.Fprintf(&sb, "Goal achieved: %s", verdict.Reason)
	} else {
		fmt.Fprintf(&sb, "Goal not fully achieved (%d%%): %s", verdict.CompletionPct, verdict.Reason)
		if len(verdict.MissingSteps) > 0 {
			fmt.Fprintf(&sb, "\nStill missing: %s", strings.Join(verdict.MissingSteps, "; "))
		}
	}
	return sb.String()
}
