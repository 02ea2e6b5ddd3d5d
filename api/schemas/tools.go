package schemas

// ToolStatus is the outcome half of the universal tool contract.
type ToolStatus string

const (
	ToolSuccess ToolStatus = "success"
	ToolError   ToolStatus = "error"
)

// ToolResult is the uniform shape every dispatched capability resolves to,
// regardless of what it internally returned or panicked with.
type ToolResult struct {
	Status ToolStatus  `json:"status"`
	Data   interface{} `json:"data,omitempty"`
	Error  string      `json:"error,omitempty"`
}

// OK reports whether the dispatched call succeeded.
func (r ToolResult) OK() bool { return r.Status == ToolSuccess }

// SuccessResult wraps a bare value in the uniform contract.
func SuccessResult(data interface{}) ToolResult {
	return ToolResult{Status: ToolSuccess, Data: data}
}

// ErrorResult wraps an error message in the uniform contract.
func ErrorResult(msg string) ToolResult {
	return ToolResult{Status: ToolError, Error: msg}
}
