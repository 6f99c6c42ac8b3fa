package tracing

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/hupe1980/opsmesh/internal/config"
)

func TestNew_Disabled(t *testing.T) {
	p, err := New(context.Background(), config.TracingConfig{Enabled: false})
	require.NoError(t, err)
	assert.False(t, p.Enabled())

	_, span := p.TracerProvider().Tracer("test").Start(context.Background(), "op")
	assert.False(t, span.SpanContext().IsValid())
	span.End()

	assert.NoError(t, p.Shutdown(context.Background()))
}

func TestNew_MissingEndpoint(t *testing.T) {
	_, err := New(context.Background(), config.TracingConfig{Enabled: true})
	assert.ErrorIs(t, err, ErrMissingEndpoint)
}

func TestNew_Enabled(t *testing.T) {
	// The gRPC exporter connects lazily, so no collector is needed here.
	p, err := New(context.Background(), config.TracingConfig{
		Enabled:     true,
		Endpoint:    "localhost:4317",
		Insecure:    true,
		ServiceName: "opsmesh-test",
		SampleRatio: 1,
	})
	require.NoError(t, err)
	assert.True(t, p.Enabled())

	_, span := p.TracerProvider().Tracer("test").Start(context.Background(), "op")
	assert.True(t, span.SpanContext().IsValid())
	assert.True(t, span.SpanContext().IsSampled())
	span.End()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_ = p.Shutdown(ctx)
}

func TestSampler(t *testing.T) {
	tests := []struct {
		name  string
		ratio float64
		want  string
	}{
		{name: "always", ratio: 1, want: sdktrace.ParentBased(sdktrace.AlwaysSample()).Description()},
		{name: "above one", ratio: 2, want: sdktrace.ParentBased(sdktrace.AlwaysSample()).Description()},
		{name: "never", ratio: 0, want: sdktrace.ParentBased(sdktrace.NeverSample()).Description()},
		{name: "ratio", ratio: 0.25, want: sdktrace.ParentBased(sdktrace.TraceIDRatioBased(0.25)).Description()},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Sampler(tt.ratio).Description())
		})
	}
}

func TestServiceName(t *testing.T) {
	assert.Equal(t, DefaultServiceName, serviceName(config.TracingConfig{}))
	assert.Equal(t, "svc", serviceName(config.TracingConfig{ServiceName: "svc"}))
}
