package jobmetrics

import (
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Finding kinds reported by the integrity check.
const (
	FindingImbalance = "imbalance"
	FindingDrift     = "drift"
)

// Metrics holds the worker's collectors. A nil *Metrics records nothing.
type Metrics struct {
	runs      *prometheus.CounterVec
	duration  *prometheus.HistogramVec
	findings  *prometheus.CounterVec
	lastCheck *prometheus.GaugeVec
	healthy   *prometheus.GaugeVec
	now       func() time.Time
}

var (
	defaultOnce    sync.Once
	defaultMetrics *Metrics
)

// NewMetrics registers against registerer, or once against the default
// registerer when it is nil.
func NewMetrics(registerer prometheus.Registerer) *Metrics {
	if registerer != nil {
		return register(registerer)
	}
	defaultOnce.Do(func() { defaultMetrics = register(prometheus.DefaultRegisterer) })
	return defaultMetrics
}

func register(registerer prometheus.Registerer) *Metrics {
	m := &Metrics{
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "odyssey_jobs_total",
			Help: "Job runs by job name and status.",
		}, []string{"job", "status"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "odyssey_job_duration_seconds",
			Help:    "Job run duration.",
			Buckets: prometheus.ExponentialBuckets(0.25, 2, 12),
		}, []string{"job"}),
		findings: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "odyssey_ledger_integrity_findings_total",
			Help: "Integrity findings by kind and company.",
		}, []string{"kind", "company"}),
		lastCheck: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "odyssey_ledger_integrity_last_check_timestamp_seconds",
			Help: "Unix time of the last completed integrity check per company.",
		}, []string{"company"}),
		healthy: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "odyssey_ledger_integrity_healthy",
			Help: "1 when the last integrity check of the company found nothing.",
		}, []string{"company"}),
		now: time.Now,
	}
	registerer.MustRegister(m.runs, m.duration, m.findings, m.lastCheck, m.healthy)
	return m
}

// Run times one execution of a job.
type Run struct {
	metrics *Metrics
	job     string
	start   time.Time
}

func (m *Metrics) Track(job string) *Run {
	return &Run{metrics: m, job: job, start: time.Now()}
}

// End records the outcome and hands err back unchanged.
func (r *Run) End(err error) error {
	if r == nil || r.metrics == nil {
		return err
	}
	status := "success"
	if err != nil {
		status = "failure"
	}
	r.metrics.runs.WithLabelValues(r.job, status).Inc()
	r.metrics.duration.WithLabelValues(r.job).Observe(time.Since(r.start).Seconds())
	return err
}

// CompanyChecked records one company's integrity result.
func (m *Metrics) CompanyChecked(companyID int64, imbalanced bool, drifted int) {
	if m == nil {
		return
	}
	company := strconv.FormatInt(companyID, 10)
	healthy := 1.0
	if imbalanced {
		m.findings.WithLabelValues(FindingImbalance, company).Inc()
		healthy = 0
	}
	if drifted > 0 {
		m.findings.WithLabelValues(FindingDrift, company).Add(float64(drifted))
		healthy = 0
	}
	m.healthy.WithLabelValues(company).Set(healthy)
	m.lastCheck.WithLabelValues(company).Set(float64(m.now().Unix()))
}
