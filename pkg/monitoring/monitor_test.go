package monitoring

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCollect(t *testing.T) {
	m, err := NewSelfMonitor(4)
	require.NoError(t, err)

	s, err := m.Collect(context.Background())
	require.NoError(t, err)
	assert.NotZero(t, s.MemoryBytes)
	assert.False(t, s.Timestamp.IsZero())

	latest, ok := m.Latest()
	require.True(t, ok)
	assert.Equal(t, s, latest)
}

func TestCollectCanceled(t *testing.T) {
	m, err := NewSelfMonitor(4)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err = m.Collect(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestHistoryIsBounded(t *testing.T) {
	m, err := NewSelfMonitor(3)
	require.NoError(t, err)

	for i := range 5 {
		m.record(Sample{CPUPercent: float64(i)})
	}

	assert.Equal(t, 3, m.Summary().SampleCount)
	latest, ok := m.Latest()
	require.True(t, ok)
	assert.InDelta(t, 4, latest.CPUPercent, 1e-12)
}

func TestSummary(t *testing.T) {
	cases := []struct {
		desc    string
		samples []Sample
		want    Summary
	}{
		{
			desc: "no samples",
			want: Summary{},
		},
		{
			desc: "several samples",
			samples: []Sample{
				{CPUPercent: 10, MemoryBytes: 100},
				{CPUPercent: 30, MemoryBytes: 300},
				{CPUPercent: 20, MemoryBytes: 200},
			},
			want: Summary{AvgCPUPercent: 20, MaxCPUPercent: 30, AvgMemoryBytes: 200, MaxMemoryBytes: 300, SampleCount: 3},
		},
	}

	for _, tc := range cases {
		t.Run(tc.desc, func(t *testing.T) {
			m, err := NewSelfMonitor(8)
			require.NoError(t, err)
			for _, s := range tc.samples {
				m.record(s)
			}
			assert.Equal(t, tc.want, m.Summary())
		})
	}
}

func TestStartStopsWithContext(t *testing.T) {
	m, err := NewSelfMonitor(8)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	var seen atomic.Int32
	done := make(chan error, 1)
	go func() {
		done <- m.Start(ctx, 5*time.Millisecond, func(Sample) { seen.Add(1) })
	}()

	require.Eventually(t, func() bool { return seen.Load() >= 2 }, 5*time.Second, 5*time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("monitor did not stop")
	}
}
