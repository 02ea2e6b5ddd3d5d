package llmclient

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/xkilldash9x/wayfinder/api/schemas"
)

type recordingClient struct {
	name   string
	calls  int
	closes int
}

func (r *recordingClient) Generate(ctx context.Context, req schemas.GenerationRequest) (string, error) {
	r.calls++
	return r.name, nil
}

func (r *recordingClient) Close() error {
	r.closes++
	return nil
}

func TestRouterRoutesByTier(t *testing.T) {
	fast := &recordingClient{name: "fast"}
	powerful := &recordingClient{name: "powerful"}
	router, err := NewLLMRouter(zap.NewNop(), fast, powerful, 0)
	require.NoError(t, err)

	out, err := router.Generate(context.Background(), schemas.GenerationRequest{Tier: schemas.TierFast})
	require.NoError(t, err)
	assert.Equal(t, "fast", out)

	out, err = router.Generate(context.Background(), schemas.GenerationRequest{Tier: schemas.TierPowerful})
	require.NoError(t, err)
	assert.Equal(t, "powerful", out)
}

func TestRouterDefaultsToPowerful(t *testing.T) {
	fast := &recordingClient{name: "fast"}
	powerful := &recordingClient{name: "powerful"}
	router, err := NewLLMRouter(zap.NewNop(), fast, powerful, 0)
	require.NoError(t, err)

	out, err := router.Generate(context.Background(), schemas.GenerationRequest{})
	require.NoError(t, err)
	assert.Equal(t, "powerful", out)
	assert.Zero(t, fast.calls)
}

func TestRouterRequiresBothClients(t *testing.T) {
	_, err := NewLLMRouter(zap.NewNop(), nil, &recordingClient{}, 0)
	assert.Error(t, err)
}

func TestRouterCloseDedupesSharedClient(t *testing.T) {
	shared := &recordingClient{name: "shared"}
	router, err := NewLLMRouter(zap.NewNop(), shared, shared, 0)
	require.NoError(t, err)

	require.NoError(t, router.Close())
	assert.Equal(t, 1, shared.closes)
}
