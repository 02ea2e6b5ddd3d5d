// internal/agent/hybrid.go
package agent

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/xkilldash9x/wayfinder/api/schemas"
	"github.com/xkilldash9x/wayfinder/internal/config"
)

// HybridPlanner arbitrates between the deterministic rule planner and the
// oracle: rules first, oracle only when no rule fires. Every decision,
// including oracle output, passes through sanitize before leaving the
// planner, which is what makes the oracle path safe to trust at all.
type HybridPlanner struct {
	rules  ActionPlanner
	oracle ActionPlanner
	cfg    config.AgentConfig
	logger *zap.Logger
}

// NewHybridPlanner composes the two planner implementations. oracle may be
// nil, in which case the safety-net scroll covers the fallthrough case.
func NewHybridPlanner(rules, oracle ActionPlanner, cfg config.AgentConfig, logger *zap.Logger) *HybridPlanner {
	return &HybridPlanner{
		rules:  rules,
		oracle: oracle,
		cfg:    cfg,
		logger: logger.Named("hybrid_planner"),
	}
}

var _ ActionPlanner = (*HybridPlanner)(nil)

// Decide runs the arbitration and always returns a sanitized, executable
// decision. It never returns an error: planner failure degrades to a safe
// exploratory action.
func (p *HybridPlanner) Decide(
	ctx context.Context,
	goal string,
	state schemas.PageState,
	history schemas.History,
	failures schemas.History,
	strategic schemas.StrategicState,
) (schemas.ActionDecision, error) {

	d, err := p.rules.Decide(ctx, goal, state, history, failures, strategic)
	if err == nil {
		return p.sanitize(d, state, strategic), nil
	}
	if !errors.Is(err, ErrNoRuleApplies) {
		p.logger.Warn("Rule planner failed, falling through to oracle.", zap.Error(err))
	}

	if p.oracle != nil {
		d, err = p.oracle.Decide(ctx, goal, state, history, failures, strategic)
		if err == nil {
			return p.sanitize(d, state, strategic), nil
		}
		p.logger.Warn("Oracle planning failed, using safety net.", zap.Error(err))
	}

	return p.sanitize(decision(schemas.ActionScroll, "", "",
		0.3, "no rule fired and oracle was unavailable; exploring"), state, strategic), nil
}

// sanitize enforces the planner's output contract: the action must be in the
// allowed set, click/type must target an element that actually exists in the
// observed state, confidence is clamped, and a high recent failure rate
// down-weights confidence.
func (p *HybridPlanner) sanitize(d schemas.ActionDecision, state schemas.PageState, strategic schemas.StrategicState) schemas.ActionDecision {
	if !d.Action.Valid() {
		p.logger.Debug("Correcting invalid action to scroll.", zap.String("action", string(d.Action)))
		d.Action = schemas.ActionScroll
		d.TargetSelector = ""
		d.Explanation = "corrected invalid action to scroll"
	}

	if d.Action.RequiresSelector() {
		if _, ok := state.FindElement(d.TargetSelector); !ok {
			p.logger.Debug("Correcting decision with unknown selector to scroll.",
				zap.String("selector", d.TargetSelector))
			d.Action = schemas.ActionScroll
			d.TargetSelector = ""
			d.InputText = ""
			d.Explanation = "corrected unknown selector to scroll"
		}
	}

	d.Confidence = schemas.ClampConfidence(d.Confidence)
	if strategic.FailureRate > p.cfg.FailureRateLimit {
		d.Confidence = schemas.ClampConfidence(d.Confidence * 0.8)
	}
	return d
}
