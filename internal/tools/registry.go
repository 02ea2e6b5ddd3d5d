// internal/tools/registry.go
package tools

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"go.uber.org/zap"

	"github.com/xkilldash9x/wayfinder/api/schemas"
	"github.com/xkilldash9x/wayfinder/internal/browser"
)

// ToolFunc is the signature every registered capability implements.
type ToolFunc func(ctx context.Context, params map[string]interface{}) (interface{}, error)

// Registry maps capability names to operations and normalizes every possible
// outcome into the uniform ToolResult contract. Execute never panics out and
// never returns an error: the control loop above it treats browser clicks,
// file writes, and anything else identically through this one seam.
type Registry struct {
	logger  *zap.Logger
	session schemas.SessionManager

	mu    sync.RWMutex
	tools map[string]ToolFunc
}

// NewRegistry creates an empty registry. session may be nil; when present it
// enables the stale-session reset-and-retry path.
func NewRegistry(session schemas.SessionManager, logger *zap.Logger) *Registry {
	return &Registry{
		logger:  logger.Named("tool_registry"),
		session: session,
		tools:   make(map[string]ToolFunc),
	}
}

// Register adds or replaces a capability.
func (r *Registry) Register(name string, fn ToolFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.tools[name]; exists {
		r.logger.Warn("Overwriting registered tool.", zap.String("tool", name))
	}
	r.tools[name] = fn
}

// Names returns the registered capability names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.tools))
	for name := range r.tools {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Execute runs the named capability and resolves its outcome into a
// ToolResult. A stale-session failure triggers exactly one session reset and
// one retry of the same call before the failure is surfaced.
func (r *Registry) Execute(ctx context.Context, name string, params map[string]interface{}) (result schemas.ToolResult) {
	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Error("Tool dispatch panicked.",
				zap.String("tool", name), zap.Any("panic", rec))
			result = schemas.ErrorResult(fmt.Sprintf("panic: %v", rec))
		}
	}()

	r.mu.RLock()
	fn, ok := r.tools[name]
	r.mu.RUnlock()
	if !ok {
		return schemas.ErrorResult(fmt.Sprintf("tool not registered: %s", name))
	}

	value, err := r.invoke(ctx, name, fn, params)
	if err != nil && browser.IsStaleError(err) && r.session != nil {
		r.logger.Warn("Stale session detected, resetting and retrying once.",
			zap.String("tool", name), zap.Error(err))
		if resetErr := r.session.Reset(ctx); resetErr != nil {
			return schemas.ErrorResult(fmt.Sprintf("stale_resource: reset failed: %v", resetErr))
		}
		value, err = r.invoke(ctx, name, fn, params)
	}

	if err != nil {
		return schemas.ErrorResult(fmt.Sprintf("%s: %v", errorKind(err), err))
	}
	return normalize(value)
}

// invoke calls the tool, converting a panic inside the tool body into an
// ordinary error so it is subject to the same normalization.
func (r *Registry) invoke(ctx context.Context, name string, fn ToolFunc, params map[string]interface{}) (value interface{}, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Error("Tool body panicked.",
				zap.String("tool", name), zap.Any("panic", rec))
			err = fmt.Errorf("panic in tool %s: %v", name, rec)
		}
	}()
	return fn(ctx, params)
}

// errorKind classifies an error for the "<kind>: <message>" error string.
func errorKind(err error) string {
	switch {
	case browser.IsStaleError(err):
		return "stale_resource"
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	default:
		return "execution_error"
	}
}

// normalize maps whatever the tool returned onto the uniform contract:
// nil and bare values become success results; a map that already carries a
// "status" key passes through with data/error defaulted; a ToolResult is
// kept as is.
func normalize(value interface{}) schemas.ToolResult {
	switch v := value.(type) {
	case schemas.ToolResult:
		if v.Status == "" {
			v.Status = schemas.ToolSuccess
		}
		return v
	case *schemas.ToolResult:
		if v == nil {
			return schemas.SuccessResult(nil)
		}
		return normalize(*v)
	case map[string]interface{}:
		status, hasStatus := v["status"].(string)
		if !hasStatus {
			return schemas.SuccessResult(v)
		}
		out := schemas.ToolResult{Status: schemas.ToolStatus(status)}
		if out.Status != schemas.ToolSuccess && out.Status != schemas.ToolError {
			out.Status = schemas.ToolError
		}
		out.Data = v["data"]
		if msg, ok := v["error"].(string); ok {
			out.Error = msg
		} else if out.Status == schemas.ToolError {
			out.Error = "unspecified tool error"
		}
		return out
	default:
		return schemas.SuccessResult(value)
	}
}
