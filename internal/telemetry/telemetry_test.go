package telemetry

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	tracenoop "go.opentelemetry.io/otel/trace/noop"
)

func TestSetupDisabled(t *testing.T) {
	p, err := Setup(context.Background(), Config{}, "test")
	require.NoError(t, err)

	assert.IsType(t, tracenoop.TracerProvider{}, p.TracerProvider())
	assert.IsType(t, metricnoop.MeterProvider{}, p.MeterProvider())
	assert.NoError(t, p.Shutdown(context.Background()))
}

func TestSetupEnabled(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()

	// Exporters connect lazily, so no collector needs to listen here.
	p, err := Setup(ctx, Config{Endpoint: "127.0.0.1:4317", Insecure: true, SampleRate: 0.5, Environment: "test"}, "test")
	require.NoError(t, err)
	require.NotNil(t, p.tracerProvider)
	require.NotNil(t, p.meterProvider)

	_, span := p.TracerProvider().Tracer("test").Start(ctx, "span")
	span.End()

	// Flushing to an absent collector may fail; it must not hang past ctx.
	_ = p.Shutdown(ctx)
}

func TestSampler(t *testing.T) {
	tests := []struct {
		rate float64
		want string
	}{
		{0, "AlwaysOnSampler"},
		{1, "AlwaysOnSampler"},
		{0.25, "TraceIDRatioBased{0.25}"},
	}
	for _, tt := range tests {
		got := Sampler(tt.rate).Description()
		if !strings.Contains(got, tt.want) {
			t.Errorf("Sampler(%v) = %s, want it to contain %s", tt.rate, got, tt.want)
		}
	}
}
