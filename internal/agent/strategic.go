// internal/agent/strategic.go
package agent

import (
	"github.com/xkilldash9x/wayfinder/api/schemas"
	"github.com/xkilldash9x/wayfinder/internal/config"
)

// Analyze recomputes the advisory strategic state from the trailing window of
// execution history. It is pure bookkeeping: nothing here touches the page or
// the oracle.
func Analyze(history schemas.History, noProgressStreak int, cfg config.AgentConfig) schemas.StrategicState {
	window := history.Window(cfg.AnalysisWindow)
	state := schemas.StrategicState{NoProgressStreak: noProgressStreak}

	if len(window) > 0 {
		failures := window.Failures()
		state.FailureRate = float64(len(failures)) / float64(len(window))
		state.RepeatedSelector = repeatedSelector(failures, cfg.SelectorRepeatLimit)
		state.RepeatedAction = repeatedAction(window, cfg.ActionRepeatLimit)
	}

	state.IsStuck = state.FailureRate > cfg.FailureRateLimit ||
		state.RepeatedSelector != "" ||
		state.RepeatedAction != "" ||
		noProgressStreak >= cfg.StagnationThreshold

	return state
}

// repeatedSelector returns the most common selector among recent failures
// once it has been seen at least limit times.
func repeatedSelector(failures schemas.History, limit int) string {
	counts := make(map[string]int)
	best, bestCount := "", 0
	for _, r := range failures {
		sel := r.Decision.TargetSelector
		if sel == "" {
			continue
		}
		counts[sel]++
		if counts[sel] > bestCount {
			best, bestCount = sel, counts[sel]
		}
	}
	if bestCount >= limit && limit > 0 {
		return best
	}
	return ""
}

// repeatedAction returns the action that dominated the window once it has
// been taken at least limit times.
func repeatedAction(window schemas.History, limit int) schemas.ActionType {
	counts := make(map[schemas.ActionType]int)
	var best schemas.ActionType
	bestCount := 0
	for _, r := range window {
		counts[r.Decision.Action]++
		if counts[r.Decision.Action] > bestCount {
			best, bestCount = r.Decision.Action, counts[r.Decision.Action]
		}
	}
	if bestCount >= limit && limit > 0 {
		return best
	}
	return ""
}

// DetectLoop reports whether the trailing window shows the agent circling:
// either every record in a full window repeats the same action, or the same
// selector was clicked at least twice among three or more click attempts.
func DetectLoop(history schemas.History, cfg config.AgentConfig) bool {
	window := history.Window(cfg.LoopWindow)
	if len(window) >= cfg.LoopWindow && cfg.LoopWindow > 0 {
		same := true
		first := window[0].Decision.Action
		for _, r := range window[1:] {
			if r.Decision.Action != first {
				same = false
				break
			}
		}
		if same {
			return true
		}
	}

	clickSelectors := make(map[string]int)
	clicks := 0
	for _, r := range window {
		if r.Decision.Action == schemas.ActionClick {
			clicks++
			if r.Decision.TargetSelector != "" {
				clickSelectors[r.Decision.TargetSelector]++
			}
		}
	}
	if clicks >= 3 {
		for _, n := range clickSelectors {
			if n >= 2 {
				return true
			}
		}
	}
	return false
}

// identicalDecisions reports whether the last n history entries carry the
// same action and selector, which forces a re-decide through the fallback
// planner.
func identicalDecisions(history schemas.History, n int) bool {
	if n <= 0 || len(history) < n {
		return false
	}
	tail := history[len(history)-n:]
	first := tail[0].Decision
	for _, r := range tail[1:] {
		if r.Decision.Action != first.Action || r.Decision.TargetSelector != first.TargetSelector {
			return false
		}
	}
	return true
}
