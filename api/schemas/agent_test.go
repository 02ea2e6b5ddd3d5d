package schemas

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestActionTypeValidity(t *testing.T) {
	for a := range AllowedActions {
		assert.True(t, a.Valid(), "expected %s to be valid", a)
	}
	assert.False(t, ActionType("teleport").Valid())
	assert.False(t, ActionType("").Valid())
}

func TestRequiresSelector(t *testing.T) {
	assert.True(t, ActionClick.RequiresSelector())
	assert.True(t, ActionTypeText.RequiresSelector())
	assert.False(t, ActionScroll.RequiresSelector())
	assert.False(t, ActionFinish.RequiresSelector())
}

func TestClampConfidence(t *testing.T) {
	assert.Equal(t, 0.0, ClampConfidence(-0.5))
	assert.Equal(t, 1.0, ClampConfidence(1.7))
	assert.Equal(t, 0.42, ClampConfidence(0.42))
}

func TestHistoryWindowAndFailures(t *testing.T) {
	h := History{
		{StepNumber: 1, Status: StatusSuccess},
		{StepNumber: 2, Status: StatusFailed},
		{StepNumber: 3, Status: StatusSoftFailure},
		{StepNumber: 4, Status: StatusSuccess},
	}

	assert.Len(t, h.Window(2), 2)
	assert.Equal(t, 3, h.Window(2)[0].StepNumber)
	assert.Len(t, h.Window(10), 4)
	assert.Empty(t, History{}.Window(3))

	failures := h.Failures()
	assert.Len(t, failures, 2)
	assert.Equal(t, 2, failures[0].StepNumber)
	assert.Equal(t, 3, failures[1].StepNumber)
}

func TestFingerprintChangedFrom(t *testing.T) {
	base := PageState{URL: "https://example.com", Title: "Example", Text: strings.Repeat("a", 1000)}.Fingerprint()

	t.Run("url change", func(t *testing.T) {
		next := base
		next.URL = "https://example.com/results"
		assert.True(t, next.ChangedFrom(base, 0.10))
	})

	t.Run("title change", func(t *testing.T) {
		next := base
		next.Title = "Results"
		assert.True(t, next.ChangedFrom(base, 0.10))
	})

	t.Run("small content delta is noise", func(t *testing.T) {
		next := base
		next.ContentLength = 1050
		assert.False(t, next.ChangedFrom(base, 0.10))
	})

	t.Run("large content delta is change", func(t *testing.T) {
		next := base
		next.ContentLength = 1500
		assert.True(t, next.ChangedFrom(base, 0.10))
	})

	t.Run("zero to nonzero is change", func(t *testing.T) {
		empty := PageFingerprint{}
		next := PageFingerprint{ContentLength: 5}
		assert.True(t, next.ChangedFrom(empty, 0.10))
		assert.False(t, PageFingerprint{}.ChangedFrom(empty, 0.10))
	})
}

func TestValidationResultNeedsContinuation(t *testing.T) {
	assert.False(t, ValidationResult{Completed: true}.NeedsContinuation())
	assert.False(t, ValidationResult{Completed: false}.NeedsContinuation())
	assert.True(t, ValidationResult{
		Completed: false,
		NextPlan:  []GoalStep{{Step: 1, Action: "navigate"}},
	}.NeedsContinuation())
}
