package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestCacheMetricsCounters(t *testing.T) {
	m := NewCacheMetrics()
	m.IncHit()
	m.IncHit()
	m.IncMiss()
	m.IncDriftRepair()
	m.IncEmbedFallback()
	m.IncGenerationFailure()
	m.ObserveResolveSeconds(0.2)

	require.Equal(t, float64(2), testutil.ToFloat64(m.hits))
	require.Equal(t, float64(1), testutil.ToFloat64(m.misses))
	require.Equal(t, float64(1), testutil.ToFloat64(m.driftRepairs))
	require.Equal(t, float64(1), testutil.ToFloat64(m.embedFallbacks))
	require.Equal(t, float64(1), testutil.ToFloat64(m.generationFailures))
}

func TestCacheMetricsNilIsSafe(t *testing.T) {
	var m *CacheMetrics
	m.IncHit()
	m.IncMiss()
	m.IncDriftRepair()
	m.IncEmbedFallback()
	m.IncGenerationFailure()
	m.ObserveResolveSeconds(1)
	require.NotNil(t, m.Handler())
}
