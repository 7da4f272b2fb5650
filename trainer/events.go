package trainer

import (
	"context"
	"log/slog"
	"time"

	"github.com/absmach/tuner/pkg/mqtt"
	"github.com/absmach/tuner/pkg/run"
)

const (
	EventRunStarted     = "run_started"
	EventEpochCompleted = "epoch_completed"
	EventRunCompleted   = "run_completed"
	EventRunFailed      = "run_failed"
)

// Event is the payload published on the run's events topic.
type Event struct {
	Event      string        `json:"event"`
	RunID      string        `json:"run_id"`
	Status     run.Status    `json:"status"`
	Epoch      *EpochMetrics `json:"epoch,omitempty"`
	Evaluation *Evaluation   `json:"evaluation,omitempty"`
	Error      string        `json:"error,omitempty"`
	Timestamp  time.Time     `json:"timestamp"`
}

// publish never fails the run; a lost progress event is only logged.
func (svc *service) publish(ctx context.Context, e Event) {
	e.Timestamp = time.Now()
	if err := svc.publisher.Publish(ctx, mqtt.RunEventsTopic(e.RunID), e); err != nil {
		svc.logger.Warn("failed to publish run event",
			slog.String("event", e.Event),
			slog.String("run_id", e.RunID),
			slog.Any("error", err),
		)
	}
}
