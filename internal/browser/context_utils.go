// internal/browser/context_utils.go
package browser

import (
	"context"
)

// CombineContext creates a new context derived from ctx1 (the session context
// carrying CDP connection info) that is canceled when *either* ctx1 or ctx2
// (the operational context carrying the caller's deadline) is canceled. It
// inherits values from ctx1, which is what chromedp needs to route commands
// to the right target.
func CombineContext(ctx1, ctx2 context.Context) (context.Context, context.CancelFunc) {
	combinedCtx, cancel := context.WithCancel(ctx1)

	// Link ctx2's lifecycle to the combined context. The goroutine stops when
	// either context is done.
	go func() {
		select {
		case <-ctx2.Done():
			cancel()
		case <-combinedCtx.Done():
		}
	}()

	return combinedCtx, cancel
}
