// internal/agent/controller.go
package agent

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/xkilldash9x/wayfinder/api/schemas"
	"github.com/xkilldash9x/wayfinder/internal/config"
	"github.com/xkilldash9x/wayfinder/internal/tools"
)

// PageObserver supplies page snapshots to the loop.
type PageObserver interface {
	Observe(ctx context.Context) schemas.PageState
}

// ToolDispatcher is the seam through which the loop touches side-effecting
// capabilities.
type ToolDispatcher interface {
	Execute(ctx context.Context, name string, params map[string]interface{}) schemas.ToolResult
}

// Controller is the execution control loop: observe, analyze, decide, act,
// record, and evaluate termination and safety conditions, bounded by
// max_steps. It always terminates in one of the four run states and always
// returns the full history for audit.
type Controller struct {
	cfg      config.AgentConfig
	logger   *zap.Logger
	observer PageObserver
	dispatch ToolDispatcher
	planner  ActionPlanner
	fallback ActionPlanner
}

// NewController wires the loop. planner is the primary (hybrid) planner;
// fallback is the deterministic instance used for forced exploratory
// re-decisions.
func NewController(
	cfg config.AgentConfig,
	observer PageObserver,
	dispatch ToolDispatcher,
	planner ActionPlanner,
	fallback ActionPlanner,
	logger *zap.Logger,
) *Controller {
	return &Controller{
		cfg:      cfg,
		logger:   logger.Named("controller"),
		observer: observer,
		dispatch: dispatch,
		planner:  planner,
		fallback: fallback,
	}
}

// Run drives the loop for one goal until a terminal state is reached.
func (c *Controller) Run(ctx context.Context, goal string) (report schemas.RunReport) {
	report = schemas.RunReport{
		ID:        uuid.New().String(),
		Goal:      goal,
		StartedAt: time.Now(),
	}

	var (
		history           schemas.History
		noProgressStreak  int
		recoveryAttempted bool
		forceFallback     bool
		lastScrollHeight  = -1
		scrollDeadEnds    int
		urlTrail          []string
	)

	defer func() {
		report.History = history
		report.StepsTaken = len(history)
		report.FinishedAt = time.Now()
		c.logger.Info("Run finished.",
			zap.String("run_id", report.ID),
			zap.String("status", string(report.Status)),
			zap.Int("steps", report.StepsTaken),
		)
	}()

	for step := 1; step <= c.cfg.MaxSteps; step++ {
		if ctx.Err() != nil {
			report.Status = schemas.RunError
			report.Summary = fmt.Sprintf("run aborted: %v", ctx.Err())
			return report
		}

		// 1. Observe. A failed observation yields a minimal state, never an
		// abort.
		state := c.observer.Observe(ctx)
		if len(urlTrail) == 0 || urlTrail[len(urlTrail)-1] != state.URL {
			urlTrail = append(urlTrail, state.URL)
		}

		// 2. Analyze.
		strategic := Analyze(history, noProgressStreak, c.cfg)

		// 3. Decide.
		decision := c.decide(ctx, goal, state, history, strategic, forceFallback)
		forceFallback = false

		c.logger.Info("Step decided.",
			zap.Int("step", step),
			zap.String("action", string(decision.Action)),
			zap.String("selector", decision.TargetSelector),
			zap.Float64("confidence", decision.Confidence),
		)

		// Terminal: finish.
		if decision.Action == schemas.ActionFinish {
			history = append(history, schemas.ExecutionRecord{
				StepNumber: step,
				Decision:   decision,
				Status:     schemas.StatusCompleted,
				Details:    decision.Explanation,
				Timestamp:  time.Now(),
			})
			report.Status = schemas.RunCompleted
			report.Summary = "goal reported complete: " + decision.Explanation
			return report
		}

		// 4. Fingerprint before acting.
		preFingerprint := state.Fingerprint()

		// 5. Act via dispatch.
		name, params := c.toolCallFor(decision, urlTrail)
		result := c.dispatch.Execute(ctx, name, params)

		// 6. Record.
		record := schemas.ExecutionRecord{
			StepNumber: step,
			Decision:   decision,
			Timestamp:  time.Now(),
		}
		if result.OK() {
			record.Status = schemas.StatusSuccess
			record.Details = fmt.Sprintf("%v", result.Data)
			recoveryAttempted = false
		} else {
			record.Status = schemas.StatusFailed
			record.Details = result.Error
		}
		history = append(history, record)

		// Scroll dead end: page height unchanged across consecutive scrolls
		// forces a re-plan through the fallback planner.
		if decision.Action == schemas.ActionScroll && result.OK() {
			height := scrollHeightFrom(result)
			if height >= 0 && height == lastScrollHeight {
				scrollDeadEnds++
				if scrollDeadEnds >= 2 {
					c.logger.Debug("Scroll dead end detected, forcing re-plan.")
					forceFallback = true
					scrollDeadEnds = 0
				}
			} else {
				scrollDeadEnds = 0
			}
			lastScrollHeight = height
		}

		// 7. Drift check: success that changed nothing counts toward the
		// stagnation streak, and at the threshold a soft failure is
		// synthesized so the next strategic analysis notices.
		postFingerprint := c.observer.Observe(ctx).Fingerprint()
		if result.OK() && !postFingerprint.ChangedFrom(preFingerprint, c.cfg.ContentDeltaLimit) {
			noProgressStreak++
			if noProgressStreak >= c.cfg.SoftFailureStreak {
				history = append(history, schemas.ExecutionRecord{
					StepNumber: step,
					Decision:   decision,
					Status:     schemas.StatusSoftFailure,
					Details:    fmt.Sprintf("no page change after %d successful steps", noProgressStreak),
					Timestamp:  time.Now(),
				})
				noProgressStreak = 0
			}
		} else if !result.OK() {
			// Failures are tracked by their own records; the streak only
			// counts successful-but-inert steps.
		} else {
			noProgressStreak = 0
		}

		// 8. Consecutive-failure recovery: two failures in a row get exactly
		// one forced exploratory re-plan; a failed recovery terminates the
		// run.
		if lastTwoFailed(history) {
			if recoveryAttempted {
				report.Status = schemas.RunError
				report.Summary = "consecutive failures persisted after recovery attempt"
				return report
			}
			c.logger.Warn("Two consecutive failures, attempting one forced recovery.")
			recoveryAttempted = true
			forceFallback = true
		}

		// 9. Loop detection.
		if DetectLoop(history, c.cfg) {
			report.Status = schemas.RunLoopDetected
			report.Summary = "repetitive behavior detected across the trailing window"
			return report
		}

		// Pace the loop so the session is not hammered.
		if c.cfg.StepDelay > 0 && step < c.cfg.MaxSteps {
			select {
			case <-time.After(c.cfg.StepDelay):
			case <-ctx.Done():
				report.Status = schemas.RunError
				report.Summary = fmt.Sprintf("run aborted: %v", ctx.Err())
				return report
			}
		}
	}

	report.Status = schemas.RunMaxStepsReached
	report.Summary = fmt.Sprintf("stopped after the configured maximum of %d steps", c.cfg.MaxSteps)
	return report
}

// decide picks the planner for this iteration and validates its output,
// falling back to a forced exploratory decision when the primary misbehaves
// or the last three decisions were identical.
func (c *Controller) decide(
	ctx context.Context,
	goal string,
	state schemas.PageState,
	history schemas.History,
	strategic schemas.StrategicState,
	forceFallback bool,
) schemas.ActionDecision {
	failures := history.Failures()

	if forceFallback || identicalDecisions(history, 3) {
		return c.forcedExploration(ctx, goal, state, history, failures, strategic)
	}

	d, err := c.planner.Decide(ctx, goal, state, history, failures, strategic)
	if err != nil || !d.Action.Valid() || (d.Action.RequiresSelector() && d.TargetSelector == "") {
		if err != nil {
			c.logger.Warn("Primary planner failed, re-deciding via fallback.", zap.Error(err))
		} else {
			c.logger.Warn("Primary planner produced invalid decision, re-deciding via fallback.",
				zap.String("action", string(d.Action)))
		}
		return c.forcedExploration(ctx, goal, state, history, failures, strategic)
	}
	return d
}

// forcedExploration re-decides through the fallback planner with the stuck
// flag raised, which deterministically yields an exploratory action.
func (c *Controller) forcedExploration(
	ctx context.Context,
	goal string,
	state schemas.PageState,
	history schemas.History,
	failures schemas.History,
	strategic schemas.StrategicState,
) schemas.ActionDecision {
	forced := strategic
	forced.IsStuck = true

	d, err := c.fallback.Decide(ctx, goal, state, history, failures, forced)
	if err != nil {
		return decision(schemas.ActionScroll, "", "", 0.3, "fallback planner unavailable; exploring")
	}
	return d
}

// toolCallFor maps a decision onto a dispatch call. Navigate-back resolves
// against the tracked URL trail since the capability surface has no
// dedicated back operation.
func (c *Controller) toolCallFor(d schemas.ActionDecision, urlTrail []string) (string, map[string]interface{}) {
	switch d.Action {
	case schemas.ActionClick:
		return tools.ToolClick, map[string]interface{}{"selector": d.TargetSelector}
	case schemas.ActionTypeText:
		return tools.ToolType, map[string]interface{}{"selector": d.TargetSelector, "text": d.InputText}
	case schemas.ActionScroll:
		return tools.ToolScroll, map[string]interface{}{"direction": "down"}
	case schemas.ActionWait:
		return tools.ToolWait, map[string]interface{}{"seconds": 1.0}
	case schemas.ActionNavigate:
		target := d.InputText
		if target == "back" || target == "" {
			if len(urlTrail) >= 2 {
				target = urlTrail[len(urlTrail)-2]
			} else {
				// Nowhere to go back to; scrolling is the safe substitute.
				return tools.ToolScroll, map[string]interface{}{"direction": "down"}
			}
		}
		return tools.ToolOpenURL, map[string]interface{}{"url": target}
	case schemas.ActionRead:
		return tools.ToolExtractContent, map[string]interface{}{}
	default:
		return tools.ToolScroll, map[string]interface{}{"direction": "down"}
	}
}

func lastTwoFailed(history schemas.History) bool {
	if len(history) < 2 {
		return false
	}
	return history[len(history)-1].Status == schemas.StatusFailed &&
		history[len(history)-2].Status == schemas.StatusFailed
}

// scrollHeightFrom digs the reported page height out of a scroll result.
func scrollHeightFrom(result schemas.ToolResult) int {
	m, ok := result.Data.(map[string]interface{})
	if !ok {
		return -1
	}
	switch v := m["page_height"].(type) {
	case int:
		return v
	case float64:
		return int(v)
	default:
		return -1
	}
}
