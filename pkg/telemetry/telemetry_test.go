package telemetry_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/covenant-labs/covenant/pkg/account"
	"github.com/covenant-labs/covenant/pkg/telemetry"
)

func TestDefaultConfigDisabled(t *testing.T) {
	cfg := telemetry.DefaultConfig()
	assert.False(t, cfg.Enabled)
	assert.Equal(t, "covenant", cfg.ServiceName)
	assert.Equal(t, "localhost:4317", cfg.OTLPEndpoint)
}

func TestDisabledProviderIsNoOp(t *testing.T) {
	ctx := context.Background()
	provider, err := telemetry.New(ctx, nil)
	require.NoError(t, err)

	// Every recorder method and span helper must be safe to call.
	provider.IntentCreated("pkg::Witness")
	provider.IntentExecuted("pay-1")
	provider.ActionProcessed("pay-1")
	provider.IntentRemoved("pay-1", true)

	spanCtx, span := provider.StartSpan(ctx, "test")
	assert.NotNil(t, spanCtx)
	assert.NotNil(t, span)
	span.End()

	assert.NoError(t, provider.Shutdown(ctx))
}

func TestProviderSatisfiesRecorder(t *testing.T) {
	provider, err := telemetry.New(context.Background(), telemetry.DefaultConfig())
	require.NoError(t, err)
	var _ account.Recorder = provider
}
