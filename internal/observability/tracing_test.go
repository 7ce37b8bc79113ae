package observability

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pbassistant/backend/internal/config"
	"pbassistant/backend/internal/logger"
)

func TestNewTracerProviderExportsSpans(t *testing.T) {
	var buf bytes.Buffer
	ctx := context.Background()
	tp, err := NewTracerProvider(ctx, config.TracingConfig{Enabled: true, ServiceName: "test-svc", SampleRatio: 1}, &buf)
	require.NoError(t, err)

	_, span := tp.Tracer(TracerName).Start(ctx, "plan.generate")
	span.End()
	require.NoError(t, tp.Shutdown(ctx))

	assert.Contains(t, buf.String(), `"Name":"plan.generate"`)
	assert.Contains(t, buf.String(), "test-svc")
}

func TestNewTracerProviderZeroRatioDropsSpans(t *testing.T) {
	var buf bytes.Buffer
	ctx := context.Background()
	tp, err := NewTracerProvider(ctx, config.TracingConfig{SampleRatio: -1}, &buf)
	require.NoError(t, err)

	_, span := tp.Tracer(TracerName).Start(ctx, "dropped")
	span.End()
	require.NoError(t, tp.Shutdown(ctx))
	assert.Empty(t, buf.String())
}

func TestInitTracingDisabled(t *testing.T) {
	shutdown, err := InitTracing(context.Background(), logger.NewNop(), config.TracingConfig{Enabled: false})
	require.NoError(t, err)
	assert.NoError(t, shutdown(context.Background()))
}

func TestClampRatio(t *testing.T) {
	assert.Equal(t, 0.0, clampRatio(-0.5))
	assert.Equal(t, 1.0, clampRatio(3))
	assert.Equal(t, 0.25, clampRatio(0.25))
}
