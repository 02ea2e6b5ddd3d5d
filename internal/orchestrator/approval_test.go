package orchestrator

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/xkilldash9x/wayfinder/api/schemas"
)

func TestParseApproval(t *testing.T) {
	cases := []struct {
		reply string
		want  schemas.ApprovalDecision
	}{
		{"yes", schemas.ApprovalGranted},
		{"Yes!", schemas.ApprovalGranted},
		{"  okay  ", schemas.ApprovalGranted},
		{"proceed", schemas.ApprovalGranted},
		{"yes please", schemas.ApprovalGranted},
		{"no", schemas.ApprovalRejected},
		{"Nope.", schemas.ApprovalRejected},
		{"cancel", schemas.ApprovalRejected},
		{"no, do something else", schemas.ApprovalRejected},
		{"maybe later", schemas.ApprovalUndecided},
		{"what will step 2 do?", schemas.ApprovalUndecided},
		{"", schemas.ApprovalUndecided},
	}

	for _, tc := range cases {
		t.Run(tc.reply, func(t *testing.T) {
			assert.Equal(t, tc.want, ParseApproval(tc.reply))
		})
	}
}
