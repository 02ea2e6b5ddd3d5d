package llmutil

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type decision struct {
	Action     string  `json:"action"`
	Confidence float64 `json:"confidence"`
}

func TestParseJSONResponsePlainObject(t *testing.T) {
	out, err := ParseJSONResponse[decision](`{"action": "click", "confidence": 0.8}`)
	require.NoError(t, err)
	assert.Equal(t, "click", out.Action)
	assert.InDelta(t, 0.8, out.Confidence, 1e-9)
}

func TestParseJSONResponseMarkdownFence(t *testing.T) {
	raw := "```json\n{\"action\": \"scroll\", \"confidence\": 0.4}\n```"
	out, err := ParseJSONResponse[decision](raw)
	require.NoError(t, err)
	assert.Equal(t, "scroll", out.Action)
}

func TestParseJSONResponseConversationalWrapper(t *testing.T) {
	raw := `Sure! Here is the decision you asked for:
{"action": "type", "confidence": 0.7}
Let me know if you need anything else.`
	out, err := ParseJSONResponse[decision](raw)
	require.NoError(t, err)
	assert.Equal(t, "type", out.Action)
}

func TestParseJSONResponseTruncatedFails(t *testing.T) {
	_, err := ParseJSONResponse[decision](`{"action": "click", "confi`)
	require.Error(t, err)
}

func TestParseJSONResponseEmptyFails(t *testing.T) {
	_, err := ParseJSONResponse[decision]("   ")
	require.Error(t, err)
}

func TestExtractJSONObjectBalancedBraces(t *testing.T) {
	text := `prefix {"a": {"b": "}"}, "c": [1, 2]} suffix`
	obj, ok := ExtractJSONObject(text)
	require.True(t, ok)
	assert.JSONEq(t, `{"a": {"b": "}"}, "c": [1, 2]}`, obj)
}

func TestExtractJSONObjectSkipsInvalidCandidates(t *testing.T) {
	text := `{not json} and then {"valid": true}`
	obj, ok := ExtractJSONObject(text)
	require.True(t, ok)
	assert.JSONEq(t, `{"valid": true}`, obj)
}

func TestExtractJSONObjectNoObject(t *testing.T) {
	_, ok := ExtractJSONObject("no braces here")
	assert.False(t, ok)
}
