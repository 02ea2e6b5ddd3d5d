// internal/browser/observer_test.go
package browser

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExtractText(t *testing.T) {
	t.Run("StripsNonContentNodes", func(t *testing.T) {
		raw := `<html><head><style>body{color:red}</style><script>var x = 1;</script></head>` +
			`<body><h1>Title</h1><p>First paragraph.</p><div>Nested <b>bold</b> text</div>` +
			`<noscript>enable javascript</noscript></body></html>`

		out := ExtractText(raw)
		assert.Equal(t, "Title First paragraph. Nested bold text", out)
	})

	t.Run("ToleratesMalformedMarkup", func(t *testing.T) {
		out := ExtractText(`<p>unclosed <b>tags <div>everywhere`)
		assert.Contains(t, out, "unclosed")
		assert.Contains(t, out, "everywhere")
	})

	t.Run("PlainTextPassesThrough", func(t *testing.T) {
		assert.Equal(t, "just words", ExtractText("just words"))
	})

	t.Run("EmptyInput", func(t *testing.T) {
		assert.Equal(t, "", ExtractText(""))
	})
}
