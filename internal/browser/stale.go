// internal/browser/stale.go
package browser

import (
	"strings"
)

// staleErrorSubstrings identifies "the session silently died underneath us"
// failures by message text. CDP surfaces these as ordinary errors with no
// dedicated type, so substring matching is the classification mechanism, not
// a heuristic shortcut.
var staleErrorSubstrings = []string{
	"target closed",
	"target crashed",
	"session closed",
	"context or browser has been closed",
	"browser process exited",
	"page crashed",
	"websocket: close",
	"connection refused",
	"context canceled",
	"net::ERR",
}

// IsStaleError reports whether err indicates a dead session layer. A stale
// error entitles the caller to exactly one Reset + retry of the same step.
func IsStaleError(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	for _, sub := range staleErrorSubstrings {
		if strings.Contains(msg, strings.ToLower(sub)) {
			return true
		}
	}
	return false
}
