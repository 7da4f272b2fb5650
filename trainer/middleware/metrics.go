package middleware

import (
	"context"
	"time"

	"github.com/absmach/tuner/pkg/schedule"
	"github.com/absmach/tuner/trainer"
	"github.com/go-kit/kit/metrics"
)

var _ trainer.Service = (*metricsMiddleware)(nil)

type metricsMiddleware struct {
	counter metrics.Counter
	latency metrics.Histogram
	svc     trainer.Service
}

func Metrics(counter metrics.Counter, latency metrics.Histogram, svc trainer.Service) trainer.Service {
	return &metricsMiddleware{
		counter: counter,
		latency: latency,
		svc:     svc,
	}
}

func (mm *metricsMiddleware) Train(ctx context.Context, archivePath string, cfg trainer.RunConfig) (trainer.Run, error) {
	defer func(begin time.Time) {
		mm.counter.With("method", "train").Add(1)
		mm.latency.With("method", "train").Observe(time.Since(begin).Seconds())
	}(time.Now())

	return mm.svc.Train(ctx, archivePath, cfg)
}

func (mm *metricsMiddleware) GetRun(ctx context.Context, id string) (trainer.Run, error) {
	defer func(begin time.Time) {
		mm.counter.With("method", "get-run").Add(1)
		mm.latency.With("method", "get-run").Observe(time.Since(begin).Seconds())
	}(time.Now())

	return mm.svc.GetRun(ctx, id)
}

func (mm *metricsMiddleware) ListRuns(ctx context.Context, offset, limit uint64) (trainer.RunPage, error) {
	defer func(begin time.Time) {
		mm.counter.With("method", "list-runs").Add(1)
		mm.latency.With("method", "list-runs").Observe(time.Since(begin).Seconds())
	}(time.Now())

	return mm.svc.ListRuns(ctx, offset, limit)
}

func (mm *metricsMiddleware) GetHistory(ctx context.Context, id string) (trainer.History, error) {
	defer func(begin time.Time) {
		mm.counter.With("method", "get-history").Add(1)
		mm.latency.With("method", "get-history").Observe(time.Since(begin).Seconds())
	}(time.Now())

	return mm.svc.GetHistory(ctx, id)
}

func (mm *metricsMiddleware) PreviewSchedule(ctx context.Context, cfg schedule.Config) (trainer.SchedulePreview, error) {
	defer func(begin time.Time) {
		mm.counter.With("method", "preview-schedule").Add(1)
		mm.latency.With("method", "preview-schedule").Observe(time.Since(begin).Seconds())
	}(time.Now())

	return mm.svc.PreviewSchedule(ctx, cfg)
}
