package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCronJobMetricsRecordsOutcomes(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewCronJobMetrics(reg)
	m.now = func() time.Time { return time.Unix(1780000000, 0) }

	m.ObserveDuration("ledger-health", 250*time.Millisecond)
	m.IncSuccess("ledger-health")
	m.IncSuccess("ledger-health")
	m.IncFailure("ledger-health")

	mfs, err := reg.Gather()
	require.NoError(t, err)

	runs := findMetricFamily(mfs, "ledger_cron_job_runs_total")
	require.NotNil(t, runs)
	byOutcome := map[string]float64{}
	for _, metric := range runs.GetMetric() {
		require.True(t, matchesLabel(metric.GetLabel(), "job", "ledger-health"))
		for _, lp := range metric.GetLabel() {
			if lp.GetName() == "outcome" {
				byOutcome[lp.GetValue()] = metric.GetCounter().GetValue()
			}
		}
	}
	assert.Equal(t, 2.0, byOutcome["success"])
	assert.Equal(t, 1.0, byOutcome["failure"])

	duration := findMetricFamily(mfs, "ledger_cron_job_duration_seconds")
	require.NotNil(t, duration)
	assert.InDelta(t, 0.25, duration.GetMetric()[0].GetHistogram().GetSampleSum(), 1e-9)

	assert.Equal(t, 1780000000.0, gaugeValue(t, mfs, "ledger_cron_job_last_success_timestamp_seconds"))
}

func TestCronJobMetricsNilSafe(t *testing.T) {
	var nilMetrics *CronJobMetrics
	nilMetrics.IncSuccess("x")
	nilMetrics.IncFailure("x")
	nilMetrics.ObserveDuration("x", time.Second)

	unregistered := NewCronJobMetrics(nil)
	unregistered.IncSuccess("x")
}

func findMetricFamily(mfs []*dto.MetricFamily, name string) *dto.MetricFamily {
	for _, mf := range mfs {
		if mf.GetName() == name {
			return mf
		}
	}
	return nil
}

func matchesLabel(labels []*dto.LabelPair, name, value string) bool {
	for _, lp := range labels {
		if lp.GetName() == name && lp.GetValue() == value {
			return true
		}
	}
	return false
}
