package llmclient

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/xkilldash9x/wayfinder/api/schemas"
	"github.com/xkilldash9x/wayfinder/internal/config"
	"github.com/xkilldash9x/wayfinder/internal/retry"
)

func geminiReply(text string) string {
	return `{"candidates": [{"content": {"parts": [{"text": ` + string(mustJSON(text)) + `}]}, "finishReason": "STOP"}]}`
}

func mustJSON(v interface{}) []byte {
	b, _ := json.Marshal(v)
	return b
}

func newTestGeminiClient(t *testing.T, url string) *GeminiClient {
	t.Helper()
	c, err := NewGeminiClient(config.LLMModelConfig{
		Provider:   config.ProviderGeminiHTTP,
		Model:      "gemini-2.5-flash",
		APIKey:     "test-key",
		Endpoint:   url,
		APITimeout: 5 * time.Second,
	}, zap.NewNop())
	require.NoError(t, err)
	c.policy = retry.Policy{MaxAttempts: 3, InitialInterval: time.Millisecond, MaxInterval: time.Millisecond, MaxElapsedTime: time.Second}
	return c
}

func TestGeminiGenerateSuccess(t *testing.T) {
	var captured geminiRequestPayload
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "test-key", r.Header.Get("x-goog-api-key"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&captured))
		w.Write([]byte(geminiReply(`{"action": "scroll"}`)))
	}))
	defer srv.Close()

	c := newTestGeminiClient(t, srv.URL)
	out, err := c.Generate(context.Background(), schemas.GenerationRequest{
		SystemPrompt: "be terse",
		UserPrompt:   "what next?",
		Options:      schemas.GenerationOptions{Temperature: 0.2, ForceJSONFormat: true, MaxTokens: 400},
	})
	require.NoError(t, err)
	assert.JSONEq(t, `{"action": "scroll"}`, out)

	require.Len(t, captured.Contents, 1)
	assert.Equal(t, "what next?", captured.Contents[0].Parts[0].Text)
	assert.Equal(t, "be terse", captured.SystemInstruction.Parts[0].Text)
	assert.Equal(t, "application/json", captured.GenerationConfig.ResponseMimeType)
	assert.Equal(t, 400, captured.GenerationConfig.MaxOutputTokens)
}

func TestGeminiGenerateRetriesTransientErrors(t *testing.T) {
	attempts := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		if attempts < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte(geminiReply("recovered")))
	}))
	defer srv.Close()

	c := newTestGeminiClient(t, srv.URL)
	out, err := c.Generate(context.Background(), schemas.GenerationRequest{UserPrompt: "hi"})
	require.NoError(t, err)
	assert.Equal(t, "recovered", out)
	assert.Equal(t, 3, attempts)
}

func TestGeminiGenerateStopsOnClientError(t *testing.T) {
	attempts := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"error": {"message": "invalid argument"}}`))
	}))
	defer srv.Close()

	c := newTestGeminiClient(t, srv.URL)
	_, err := c.Generate(context.Background(), schemas.GenerationRequest{UserPrompt: "hi"})
	require.Error(t, err)
	assert.Equal(t, 1, attempts)
}

func TestGeminiGenerateBlockedIsPermanent(t *testing.T) {
	attempts := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		w.Write([]byte(`{"candidates": [{"content": {"parts": []}, "finishReason": "SAFETY"}]}`))
	}))
	defer srv.Close()

	c := newTestGeminiClient(t, srv.URL)
	_, err := c.Generate(context.Background(), schemas.GenerationRequest{UserPrompt: "hi"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "SAFETY")
	assert.Equal(t, 1, attempts)
}

func TestGeminiClientRequiresAPIKey(t *testing.T) {
	_, err := NewGeminiClient(config.LLMModelConfig{Model: "gemini-2.5-flash"}, zap.NewNop())
	require.Error(t, err)
}
