package instrumentation

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewProviderDisabled(t *testing.T) {
	p, err := NewProvider(context.Background(), Config{Enabled: false})
	require.NoError(t, err)

	assert.False(t, p.Enabled())
	require.NotNil(t, p.Metrics())
	assert.NoError(t, p.Shutdown(context.Background()))

	// The no-op recorder must be safe to use.
	p.Metrics().RecordToolInvocation(context.Background(), "damien_list_emails", StatusSuccess, 0)
}

func TestNewProviderRejectsUnknownMetricsExporter(t *testing.T) {
	_, err := NewProvider(context.Background(), Config{
		Enabled:         true,
		ServiceName:     "damien-mcp-server",
		MetricsExporter: "statsd",
	})
	assert.ErrorContains(t, err, "unsupported metrics exporter")
}

func TestNewProviderRequiresOTLPEndpoint(t *testing.T) {
	_, err := NewProvider(context.Background(), Config{
		Enabled:         true,
		ServiceName:     "damien-mcp-server",
		MetricsExporter: ExporterOTLP,
	})
	assert.ErrorContains(t, err, "OTLP endpoint is required")
}
