package observability

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetricsRegisterOnRegistry(t *testing.T) {
	reg := NewRegistry()
	m := NewMetrics(reg)
	m.WebhookEvents.WithLabelValues("processed").Inc()
	m.GatewayRequests.WithLabelValues("anthropic", "ok").Inc()

	count, err := testutil.GatherAndCount(reg, "gains_webhook_events_total", "gains_gateway_requests_total")
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}

func TestGathererIncludesDefaultCollectors(t *testing.T) {
	families, err := Gatherer(prometheus.NewRegistry()).Gather()
	require.NoError(t, err)

	names := make([]string, 0, len(families))
	for _, f := range families {
		names = append(names, f.GetName())
	}
	assert.Contains(t, names, "go_goroutines")
}

func TestNopMetricsAreUsable(t *testing.T) {
	m := NewNopMetrics()
	assert.NotPanics(t, func() {
		m.HTTPRequests.WithLabelValues("GET", "/", "200").Inc()
	})
}
