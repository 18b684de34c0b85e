package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/require"
)

func gather(t *testing.T, reg *prometheus.Registry) []*dto.MetricFamily {
	t.Helper()
	mfs, err := reg.Gather()
	require.NoError(t, err)
	return mfs
}

// sample returns the series of family name carrying every label in labels,
// or nil.
func sample(mfs []*dto.MetricFamily, name string, labels map[string]string) *dto.Metric {
	for _, mf := range mfs {
		if mf.GetName() != name {
			continue
		}
		for _, m := range mf.GetMetric() {
			if hasLabels(m, labels) {
				return m
			}
		}
	}
	return nil
}

func hasLabels(m *dto.Metric, want map[string]string) bool {
	got := make(map[string]string, len(m.GetLabel()))
	for _, lp := range m.GetLabel() {
		got[lp.GetName()] = lp.GetValue()
	}
	for k, v := range want {
		if got[k] != v {
			return false
		}
	}
	return true
}

func counter(t *testing.T, mfs []*dto.MetricFamily, name string, labels map[string]string) float64 {
	t.Helper()
	m := sample(mfs, name, labels)
	require.NotNil(t, m, "no %s sample with %v", name, labels)
	return m.GetCounter().GetValue()
}

func gauge(t *testing.T, mfs []*dto.MetricFamily, name string, labels map[string]string) float64 {
	t.Helper()
	m := sample(mfs, name, labels)
	require.NotNil(t, m, "no %s sample with %v", name, labels)
	return m.GetGauge().GetValue()
}

func histogram(t *testing.T, mfs []*dto.MetricFamily, name string, labels map[string]string) *dto.Histogram {
	t.Helper()
	m := sample(mfs, name, labels)
	require.NotNil(t, m, "no %s sample with %v", name, labels)
	return m.GetHistogram()
}
