package jobmetrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestRunRecordsOutcome(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())

	assert.NoError(t, m.Track("ledger:integrity").End(nil))
	boom := errors.New("boom")
	assert.Same(t, boom, m.Track("ledger:integrity").End(boom))

	assert.Equal(t, 1.0, testutil.ToFloat64(m.runs.WithLabelValues("ledger:integrity", "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.runs.WithLabelValues("ledger:integrity", "failure")))
}

func TestCompanyChecked(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())
	m.now = func() time.Time { return time.Unix(1700000000, 0) }

	m.CompanyChecked(7, true, 2)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.findings.WithLabelValues(FindingImbalance, "7")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.findings.WithLabelValues(FindingDrift, "7")))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.healthy.WithLabelValues("7")))
	assert.Equal(t, 1700000000.0, testutil.ToFloat64(m.lastCheck.WithLabelValues("7")))

	m.CompanyChecked(7, false, 0)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.healthy.WithLabelValues("7")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.findings.WithLabelValues(FindingDrift, "7")))
}

func TestNilMetricsIsSafe(t *testing.T) {
	var m *Metrics
	m.CompanyChecked(1, true, 1)
	assert.NoError(t, m.Track("x").End(nil))
}
