// Package monitoring samples the resource usage of the training process.
package monitoring

import (
	"context"
	"os"
	"sync"
	"time"

	"github.com/shirou/gopsutil/v3/process"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

const DefaultHistorySize = 512

type Sample struct {
	CPUPercent    float64   `json:"cpu_percent"`
	MemoryBytes   uint64    `json:"memory_bytes"`
	MemoryPercent float32   `json:"memory_percent"`
	ThreadCount   int32     `json:"thread_count"`
	UptimeSeconds int64     `json:"uptime_seconds"`
	Timestamp     time.Time `json:"timestamp"`
}

type Summary struct {
	AvgCPUPercent  float64 `json:"avg_cpu_percent"`
	MaxCPUPercent  float64 `json:"max_cpu_percent"`
	AvgMemoryBytes uint64  `json:"avg_memory_bytes"`
	MaxMemoryBytes uint64  `json:"max_memory_bytes"`
	SampleCount    int     `json:"sample_count"`
}

type Monitor struct {
	proc        *process.Process
	historySize int
	startTime   time.Time

	mu      sync.RWMutex
	history []Sample
}

func NewMonitor(pid int32, historySize int) (*Monitor, error) {
	proc, err := process.NewProcess(pid)
	if err != nil {
		return nil, err
	}
	if historySize <= 0 {
		historySize = DefaultHistorySize
	}

	return &Monitor{
		proc:        proc,
		historySize: historySize,
		startTime:   time.Now(),
		history:     make([]Sample, 0, historySize),
	}, nil
}

// NewSelfMonitor watches the calling process.
func NewSelfMonitor(historySize int) (*Monitor, error) {
	return NewMonitor(int32(os.Getpid()), historySize)
}

// Collect takes one sample. Counters the platform cannot report stay zero.
func (m *Monitor) Collect(ctx context.Context) (Sample, error) {
	if err := ctx.Err(); err != nil {
		return Sample{}, err
	}

	s := Sample{
		Timestamp:     time.Now(),
		UptimeSeconds: int64(time.Since(m.startTime).Seconds()),
	}
	if cpu, err := m.proc.CPUPercentWithContext(ctx); err == nil {
		s.CPUPercent = cpu
	}
	if mem, err := m.proc.MemoryInfoWithContext(ctx); err == nil {
		s.MemoryBytes = mem.RSS
	}
	if pct, err := m.proc.MemoryPercentWithContext(ctx); err == nil {
		s.MemoryPercent = pct
	}
	if n, err := m.proc.NumThreadsWithContext(ctx); err == nil {
		s.ThreadCount = n
	}

	m.record(s)

	return s, nil
}

func (m *Monitor) record(s Sample) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.history = append(m.history, s)
	if len(m.history) > m.historySize {
		m.history = m.history[1:]
	}
}

// Start samples every interval until ctx is done, handing each sample to
// onSample when it is not nil.
func (m *Monitor) Start(ctx context.Context, interval time.Duration, onSample func(Sample)) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			s, err := m.Collect(ctx)
			if err != nil {
				if ctx.Err() != nil {
					return nil
				}

				return err
			}
			if onSample != nil {
				onSample(s)
			}
		}
	}
}

func (m *Monitor) Latest() (Sample, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if len(m.history) == 0 {
		return Sample{}, false
	}

	return m.history[len(m.history)-1], true
}

func (m *Monitor) Summary() Summary {
	m.mu.RLock()
	defer m.mu.RUnlock()

	n := len(m.history)
	if n == 0 {
		return Summary{}
	}

	cpu := make([]float64, n)
	mem := make([]float64, n)
	for i, s := range m.history {
		cpu[i] = s.CPUPercent
		mem[i] = float64(s.MemoryBytes)
	}

	return Summary{
		AvgCPUPercent:  stat.Mean(cpu, nil),
		MaxCPUPercent:  floats.Max(cpu),
		AvgMemoryBytes: uint64(stat.Mean(mem, nil)),
		MaxMemoryBytes: uint64(floats.Max(mem)),
		SampleCount:    n,
	}
}
