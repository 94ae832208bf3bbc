package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestMetricsRecord(t *testing.T) {
	m := New()
	m.ObserveSend("success")
	m.ObserveSend("success")
	m.ObserveDegraded("docs", "unreachable")
	m.SetAgentHealth("docs", true)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.sends.WithLabelValues("success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.degraded.WithLabelValues("docs", "unreachable")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.agentHealth.WithLabelValues("docs")))
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.ObserveSend("success")
		m.ObservePersistFailure("write")
		m.ObserveDegraded("a", "b")
		m.SetAgentHealth("a", false)
	})
	assert.NotNil(t, m.Handler())
}
