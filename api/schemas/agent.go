package schemas

import (
	"math"
	"time"
)

// ActionType enumerates the actions the agent is allowed to take against a
// page. Anything outside this set is corrected to a safe scroll before
// execution.
type ActionType string

const (
	ActionClick    ActionType = "click"
	ActionTypeText ActionType = "type"
	ActionScroll   ActionType = "scroll"
	ActionWait     ActionType = "wait"
	ActionNavigate ActionType = "navigate"
	ActionRead     ActionType = "read"
	ActionFinish   ActionType = "finish"
)

// AllowedActions is the canonical set used for schema validation of planner
// and oracle output.
var AllowedActions = map[ActionType]bool{
	ActionClick:    true,
	ActionTypeText: true,
	ActionScroll:   true,
	ActionWait:     true,
	ActionNavigate: true,
	ActionRead:     true,
	ActionFinish:   true,
}

// Valid reports whether the action is a member of the allowed set.
func (a ActionType) Valid() bool { return AllowedActions[a] }

// RequiresSelector reports whether the action cannot execute without a target
// element.
func (a ActionType) RequiresSelector() bool {
	return a == ActionClick || a == ActionTypeText
}

// ActionDecision is the single next step chosen for one loop iteration. It is
// produced fresh each iteration and never mutated after creation.
type ActionDecision struct {
	Thought        string     `json:"thought"`
	Action         ActionType `json:"action"`
	TargetSelector string     `json:"target_selector,omitempty"`
	InputText      string     `json:"input_text,omitempty"`
	Confidence     float64    `json:"confidence"`
	Explanation    string     `json:"explanation"`
	Timestamp      time.Time  `json:"timestamp"`
}

// ClampConfidence returns the confidence forced into [0, 1].
func ClampConfidence(c float64) float64 {
	if math.IsNaN(c) {
		return 0
	}
	return math.Min(1, math.Max(0, c))
}

// ExecutionStatus describes how a single dispatched step concluded.
type ExecutionStatus string

const (
	StatusSuccess ExecutionStatus = "success"
	StatusFailed  ExecutionStatus = "failed"
	// StatusCompleted marks the record produced by a finish action.
	StatusCompleted ExecutionStatus = "completed"
	// StatusSoftFailure is synthesized when an action reports success but the
	// page fingerprint shows no meaningful change for several steps.
	StatusSoftFailure ExecutionStatus = "soft_failure"
)

// ExecutionRecord is one append-only entry in a run's execution history.
type ExecutionRecord struct {
	StepNumber int             `json:"step_number"`
	Decision   ActionDecision  `json:"decision"`
	Status     ExecutionStatus `json:"execution_status"`
	Details    string          `json:"execution_details,omitempty"`
	Timestamp  time.Time       `json:"timestamp"`
}

// IsFailure reports whether the record counts toward the failure history.
func (r ExecutionRecord) IsFailure() bool {
	return r.Status == StatusFailed || r.Status == StatusSoftFailure
}

// History is the ordered sequence of execution records for one run.
type History []ExecutionRecord

// Window returns the trailing n records (or the whole history if shorter).
func (h History) Window(n int) History {
	if n <= 0 || len(h) <= n {
		return h
	}
	return h[len(h)-n:]
}

// Failures returns the derived failure history: every record whose status is
// failed or soft_failure. The result is a view, not a second source of truth.
func (h History) Failures() History {
	var out History
	for _, r := range h {
		if r.IsFailure() {
			out = append(out, r)
		}
	}
	return out
}

// StrategicState is advisory input to the planner, recomputed each step from
// the trailing window of history. It is never persisted.
type StrategicState struct {
	FailureRate      float64    `json:"failure_rate"`
	RepeatedSelector string     `json:"repeated_selector,omitempty"`
	RepeatedAction   ActionType `json:"repeated_action,omitempty"`
	IsStuck          bool       `json:"is_stuck"`
	NoProgressStreak int        `json:"no_progress_streak"`
}

// PageFingerprint is a cheap before/after snapshot used to detect whether an
// action actually changed anything.
type PageFingerprint struct {
	URL           string `json:"url"`
	Title         string `json:"title"`
	ContentLength int    `json:"content_length"`
}

// ChangedFrom reports whether the page meaningfully changed relative to prev:
// the URL or title differs, or the content length moved by more than maxDelta
// (a fraction, e.g. 0.10). Going from zero content to any content counts as a
// change.
func (f PageFingerprint) ChangedFrom(prev PageFingerprint, maxDelta float64) bool {
	if f.URL != prev.URL || f.Title != prev.Title {
		return true
	}
	if prev.ContentLength == 0 {
		return f.ContentLength != 0
	}
	delta := math.Abs(float64(f.ContentLength-prev.ContentLength)) / float64(prev.ContentLength)
	return delta > maxDelta
}

// PageElement is one interactive element visible in an observation.
type PageElement struct {
	Tag         string `json:"tag"`
	Selector    string `json:"selector"`
	Text        string `json:"text,omitempty"`
	Type        string `json:"type,omitempty"`
	Placeholder string `json:"placeholder,omitempty"`
	Visible     bool   `json:"visible"`
}

// PageState is a snapshot of the observable page, taken at the top of each
// loop iteration. A failed observation yields a zero-value state rather than
// an error.
type PageState struct {
	URL        string        `json:"url"`
	Title      string        `json:"title"`
	Text       string        `json:"text"`
	Elements   []PageElement `json:"elements"`
	PageHeight int           `json:"page_height"`
	CapturedAt time.Time     `json:"captured_at"`
}

// Fingerprint derives the drift-detection snapshot from the observation.
func (p PageState) Fingerprint() PageFingerprint {
	return PageFingerprint{URL: p.URL, Title: p.Title, ContentLength: len(p.Text)}
}

// FindElement returns the element with the given selector, if present.
func (p PageState) FindElement(selector string) (PageElement, bool) {
	for _, el := range p.Elements {
		if el.Selector == selector {
			return el, true
		}
	}
	return PageElement{}, false
}

// RunStatus is the terminal state of one control-loop run.
type RunStatus string

const (
	RunCompleted       RunStatus = "completed"
	RunMaxStepsReached RunStatus = "max_steps_reached"
	RunLoopDetected    RunStatus = "loop_detected"
	RunError           RunStatus = "error"
)

// RunReport is the structured terminal report of a run, always produced even
// when the run aborts, so failures stay auditable.
type RunReport struct {
	ID         string    `json:"id"`
	Goal       string    `json:"goal"`
	Status     RunStatus `json:"status"`
	StepsTaken int       `json:"steps_taken"`
	Summary    string    `json:"summary"`
	History    History   `json:"history"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
}
