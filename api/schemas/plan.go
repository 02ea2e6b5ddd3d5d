package schemas

// PlanMode selects how a user message should be handled by the orchestrator.
type PlanMode string

const (
	ModeChat                 PlanMode = "chat"
	ModeControlledAutomation PlanMode = "controlled_automation"
)

// GoalStep is one entry in a multi-step plan.
type GoalStep struct {
	Step       int                    `json:"step"`
	Action     string                 `json:"action"`
	Parameters map[string]interface{} `json:"parameters"`
}

// Deliberation captures the draft, critique, refine trace of the goal
// planner when deliberative planning is enabled.
type Deliberation struct {
	PlannerPlan    string `json:"planner_plan"`
	CriticFeedback string `json:"critic_feedback"`
	RefinedPlan    string `json:"refined_plan"`
}

// GoalPlan is a structured multi-step plan produced by the goal planner,
// distinct from the single-step decisions of the action planner.
type GoalPlan struct {
	Mode         PlanMode      `json:"mode"`
	Goal         string        `json:"goal,omitempty"`
	Message      string        `json:"message,omitempty"`
	Steps        []GoalStep    `json:"plan,omitempty"`
	Deliberation *Deliberation `json:"deliberation,omitempty"`
}

// ValidationResult is the outcome of asking the oracle whether a goal is
// fully achieved after a batch of executed steps.
type ValidationResult struct {
	Completed     bool       `json:"completed"`
	CompletionPct int        `json:"completion_percentage"`
	Reason        string     `json:"reason"`
	MissingSteps  []string   `json:"missing_steps,omitempty"`
	NextPlan      []GoalStep `json:"next_plan,omitempty"`
}

// NeedsContinuation reports whether the goal is incomplete and a follow-up
// plan is available to run.
func (v ValidationResult) NeedsContinuation() bool {
	return !v.Completed && len(v.NextPlan) > 0
}

// IntentType classifies a user message.
type IntentType string

const (
	IntentChat       IntentType = "chat"
	IntentAutomation IntentType = "automation"
)

// ApprovalDecision is the parsed outcome of an approval prompt. Undecided
// means the reply matched neither keyword set and the user must be re-asked.
type ApprovalDecision string

const (
	ApprovalGranted   ApprovalDecision = "approved"
	ApprovalRejected  ApprovalDecision = "rejected"
	ApprovalUndecided ApprovalDecision = "undecided"
)
