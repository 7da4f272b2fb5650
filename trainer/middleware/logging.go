package middleware

import (
	"context"
	"log/slog"
	"time"

	"github.com/absmach/tuner/pkg/schedule"
	"github.com/absmach/tuner/trainer"
)

var _ trainer.Service = (*loggingMiddleware)(nil)

type loggingMiddleware struct {
	logger *slog.Logger
	svc    trainer.Service
}

func Logging(logger *slog.Logger, svc trainer.Service) trainer.Service {
	return &loggingMiddleware{
		logger: logger,
		svc:    svc,
	}
}

func (lm *loggingMiddleware) Train(ctx context.Context, archivePath string, cfg trainer.RunConfig) (resp trainer.Run, err error) {
	defer func(begin time.Time) {
		args := []any{
			slog.String("duration", time.Since(begin).String()),
			slog.String("archive", archivePath),
			slog.Group("run",
				slog.String("id", resp.ID),
				slog.String("name", resp.Name),
				slog.String("status", resp.Status.String()),
				slog.Int("epochs", cfg.Epochs),
				slog.Float64("peak_learning_rate", cfg.PeakLearningRate),
			),
		}
		if err != nil {
			args = append(args, slog.Any("error", err))
			lm.logger.Warn("Train failed", args...)

			return
		}
		lm.logger.Info("Train completed successfully", args...)
	}(time.Now())

	return lm.svc.Train(ctx, archivePath, cfg)
}

func (lm *loggingMiddleware) GetRun(ctx context.Context, id string) (resp trainer.Run, err error) {
	defer func(begin time.Time) {
		args := []any{
			slog.String("duration", time.Since(begin).String()),
			slog.Group("run",
				slog.String("id", id),
			),
		}
		if err != nil {
			args = append(args, slog.Any("error", err))
			lm.logger.Warn("Get run failed", args...)

			return
		}
		lm.logger.Info("Get run completed successfully", args...)
	}(time.Now())

	return lm.svc.GetRun(ctx, id)
}

func (lm *loggingMiddleware) ListRuns(ctx context.Context, offset, limit uint64) (resp trainer.RunPage, err error) {
	defer func(begin time.Time) {
		args := []any{
			slog.String("duration", time.Since(begin).String()),
			slog.Uint64("offset", offset),
			slog.Uint64("limit", limit),
		}
		if err != nil {
			args = append(args, slog.Any("error", err))
			lm.logger.Warn("List runs failed", args...)

			return
		}
		lm.logger.Info("List runs completed successfully", args...)
	}(time.Now())

	return lm.svc.ListRuns(ctx, offset, limit)
}

func (lm *loggingMiddleware) GetHistory(ctx context.Context, id string) (resp trainer.History, err error) {
	defer func(begin time.Time) {
		args := []any{
			slog.String("duration", time.Since(begin).String()),
			slog.Group("run",
				slog.String("id", id),
				slog.Int("epochs", len(resp)),
			),
		}
		if err != nil {
			args = append(args, slog.Any("error", err))
			lm.logger.Warn("Get history failed", args...)

			return
		}
		lm.logger.Info("Get history completed successfully", args...)
	}(time.Now())

	return lm.svc.GetHistory(ctx, id)
}

func (lm *loggingMiddleware) PreviewSchedule(ctx context.Context, cfg schedule.Config) (resp trainer.SchedulePreview, err error) {
	defer func(begin time.Time) {
		args := []any{
			slog.String("duration", time.Since(begin).String()),
			slog.Group("schedule",
				slog.Float64("peak_learning_rate", cfg.PeakLearningRate),
				slog.Int("total_steps", cfg.TotalSteps),
				slog.Int("warmup_steps", cfg.WarmupSteps),
			),
		}
		if err != nil {
			args = append(args, slog.Any("error", err))
			lm.logger.Warn("Preview schedule failed", args...)

			return
		}
		lm.logger.Info("Preview schedule completed successfully", args...)
	}(time.Now())

	return lm.svc.PreviewSchedule(ctx, cfg)
}
