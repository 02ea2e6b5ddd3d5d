package orchestrator

import (
	"strings"

	"github.com/xkilldash9x/wayfinder/api/schemas"
)

var affirmativeReplies = map[string]bool{
	"yes": true, "sure": true, "ok": true, "okay": true,
	"proceed": true, "go": true, "start": true,
}

var negativeReplies = map[string]bool{
	"no": true, "nope": true, "cancel": true, "stop": true,
	"don't": true, "dont": true,
}

// ParseApproval maps a free-form reply onto an approval decision. Anything
// that matches neither keyword set is undecided and the user is asked again.
func ParseApproval(reply string) schemas.ApprovalDecision {
	normalized := strings.ToLower(strings.TrimSpace(reply))
	normalized = strings.TrimRight(normalized, ".!?")

	if affirmativeReplies[normalized] {
		return schemas.ApprovalGranted
	}
	if negativeReplies[normalized] {
		return schemas.ApprovalRejected
	}

	// Multi-word replies count when the first word is decisive, so "yes
	// please" approves and "no thanks" rejects.
	if first, _, ok := strings.Cut(normalized, " "); ok {
		first = strings.TrimRight(first, ",.!?")
		if affirmativeReplies[first] {
			return schemas.ApprovalGranted
		}
		if negativeReplies[first] {
			return schemas.ApprovalRejected
		}
	}
	return schemas.ApprovalUndecided
}
