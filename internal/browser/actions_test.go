// internal/browser/actions_test.go
package browser

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
)

func TestCapText(t *testing.T) {
	t.Run("ShortInputUnchanged", func(t *testing.T) {
		assert.Equal(t, "hello", capText("hello", 10))
	})

	t.Run("ZeroCapDisablesTrimming", func(t *testing.T) {
		assert.Equal(t, "hello", capText("hello", 0))
	})

	t.Run("TrimsToCap", func(t *testing.T) {
		assert.Equal(t, "hel", capText("hello", 3))
	})

	t.Run("NeverSplitsARune", func(t *testing.T) {
		// "héllo wörld" repeated: multi-byte runes land on many byte offsets.
		s := strings.Repeat("héllo wörld ", 10)
		for cap := 1; cap < len(s); cap++ {
			out := capText(s, cap)
			assert.True(t, utf8.ValidString(out), "cap %d produced invalid UTF-8", cap)
			assert.LessOrEqual(t, len(out), cap)
		}
	})
}
