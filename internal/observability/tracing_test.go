package observability

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetupTracing_DefaultEndpoint(t *testing.T) {
	t.Parallel()

	cfg := Config{
		Environment: "test",
		ServiceName: "test-service",
	}

	ctx := context.Background()
	shutdown, err := SetupTracing(ctx, cfg)

	require.NoError(t, err)
	require.NotNil(t, shutdown)

	assert.NoError(t, shutdown(ctx))
}

func TestSetupTracing_CustomEndpoint(t *testing.T) {
	t.Parallel()

	cfg := Config{
		Endpoint:    "collector.internal:4318",
		Environment: "staging",
		ServiceName: "anchor",
	}

	ctx := context.Background()
	shutdown, err := SetupTracing(ctx, cfg)

	require.NoError(t, err)
	require.NotNil(t, shutdown)

	assert.NoError(t, shutdown(ctx))
}

func TestSetupTracing_CollectorUnavailable_GracefulDegradation(t *testing.T) {
	t.Parallel()

	// Exporter creation succeeds even with an unreachable collector; spans
	// fail to export without affecting the service.
	cfg := Config{
		Endpoint:    "localhost:1",
		Environment: "test",
		ServiceName: "graceful-test",
	}

	ctx := context.Background()
	shutdown, err := SetupTracing(ctx, cfg)

	require.NoError(t, err)
	require.NotNil(t, shutdown)

	assert.NoError(t, shutdown(ctx))
}

func TestDefaultEndpoint_Value(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "localhost:4318", DefaultEndpoint)
}
