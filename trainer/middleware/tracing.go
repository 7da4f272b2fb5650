package middleware

import (
	"context"

	"github.com/absmach/tuner/pkg/schedule"
	"github.com/absmach/tuner/trainer"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var _ trainer.Service = (*tracing)(nil)

type tracing struct {
	tracer trace.Tracer
	svc    trainer.Service
}

func Tracing(tracer trace.Tracer, svc trainer.Service) trainer.Service {
	return &tracing{tracer, svc}
}

func (tm *tracing) Train(ctx context.Context, archivePath string, cfg trainer.RunConfig) (resp trainer.Run, err error) {
	ctx, span := tm.tracer.Start(ctx, "train", trace.WithAttributes(
		attribute.String("archive", archivePath),
		attribute.Int("epochs", cfg.Epochs),
		attribute.Int("batch_size", cfg.BatchSize),
		attribute.Float64("peak_learning_rate", cfg.PeakLearningRate),
	))
	defer span.End()

	resp, err = tm.svc.Train(ctx, archivePath, cfg)
	span.SetAttributes(
		attribute.String("id", resp.ID),
		attribute.String("status", resp.Status.String()),
	)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}

	return resp, err
}

func (tm *tracing) GetRun(ctx context.Context, id string) (resp trainer.Run, err error) {
	ctx, span := tm.tracer.Start(ctx, "get-run", trace.WithAttributes(
		attribute.String("id", id),
	))
	defer span.End()

	return tm.svc.GetRun(ctx, id)
}

func (tm *tracing) ListRuns(ctx context.Context, offset, limit uint64) (resp trainer.RunPage, err error) {
	ctx, span := tm.tracer.Start(ctx, "list-runs", trace.WithAttributes(
		attribute.Int64("offset", int64(offset)),
		attribute.Int64("limit", int64(limit)),
	))
	defer span.End()

	return tm.svc.ListRuns(ctx, offset, limit)
}

func (tm *tracing) GetHistory(ctx context.Context, id string) (resp trainer.History, err error) {
	ctx, span := tm.tracer.Start(ctx, "get-history", trace.WithAttributes(
		attribute.String("id", id),
	))
	defer span.End()

	return tm.svc.GetHistory(ctx, id)
}

func (tm *tracing) PreviewSchedule(ctx context.Context, cfg schedule.Config) (resp trainer.SchedulePreview, err error) {
	ctx, span := tm.tracer.Start(ctx, "preview-schedule", trace.WithAttributes(
		attribute.Float64("peak_learning_rate", cfg.PeakLearningRate),
		attribute.Int("total_steps", cfg.TotalSteps),
		attribute.Int("warmup_steps", cfg.WarmupSteps),
	))
	defer span.End()

	return tm.svc.PreviewSchedule(ctx, cfg)
}
