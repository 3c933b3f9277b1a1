package observability

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/Mindburn-Labs/thawgate/pkg/programerr"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

func TestDefaultConfig(t *testing.T) {
	config := DefaultConfig()
	require.Equal(t, "thawgate", config.ServiceName)
	require.Equal(t, "localhost:4317", config.OTLPEndpoint)
	require.Equal(t, 1.0, config.SampleRate)
	require.False(t, config.Enabled)
	require.True(t, config.Insecure)
}

func TestNewProviderDisabled(t *testing.T) {
	p, err := New(context.Background(), &Config{Enabled: false})
	require.NoError(t, err)
	require.NotNil(t, p.Tracer())
	require.NotNil(t, p.Meter())
	require.NoError(t, p.Shutdown(context.Background()))
}

func TestNewProviderNilConfig(t *testing.T) {
	p, err := New(context.Background(), nil)
	require.NoError(t, err)
	require.NotNil(t, p)
}

func TestTrackOperationDisabled(t *testing.T) {
	p, err := New(context.Background(), nil)
	require.NoError(t, err)

	ctx, done := p.TrackOperation(context.Background(), "instruction", attribute.String("op", "add_wallet"))
	require.NotNil(t, ctx)
	done(nil)

	_, done = p.TrackOperation(context.Background(), "instruction")
	done(programerr.ErrAccountBlocked)

	p.RecordVerdict(context.Background(), false, "AccountBlocked")
}

func TestErrorName(t *testing.T) {
	require.Equal(t, "AccountBlocked", errorName(programerr.ErrAccountBlocked))
	require.Equal(t, "*errors.errorString", errorName(errors.New("boom")))
}

func TestErrorNameWrapped(t *testing.T) {
	require.Equal(t, "InvalidData", errorName(fmt.Errorf("mode 9: %w", programerr.ErrInvalidData)))
}

func TestSampler(t *testing.T) {
	require.Equal(t, sdktrace.AlwaysSample().Description(), sampler(1.5).Description())
	require.Equal(t, sdktrace.NeverSample().Description(), sampler(0).Description())
	require.Equal(t, sdktrace.TraceIDRatioBased(0.25).Description(), sampler(0.25).Description())
}

func TestNoopShutdown(t *testing.T) {
	p := Noop()
	_, done := p.TrackOperation(context.Background(), "ledger.execute")
	done(errors.New("boom"))
	require.NoError(t, p.Shutdown(context.Background()))
}
