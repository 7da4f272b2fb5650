// Package trainer runs fine-tuning jobs: it turns a review archive into a
// trained sentiment classifier and records the run as it progresses.
package trainer

import (
	"context"
	"errors"

	pkgerrors "github.com/absmach/tuner/pkg/errors"
	"github.com/absmach/tuner/pkg/run"
	"github.com/absmach/tuner/pkg/schedule"
)

type (
	Run          = run.Run
	RunConfig    = run.Config
	RunPage      = run.Page
	EpochMetrics = run.EpochMetrics
	Evaluation   = run.Evaluation
	History      = run.History
)

var ErrInvalidRunConfig = pkgerrors.ErrInvalidRunConfig

// SchedulePreview is the learning rate of every step of a schedule.
type SchedulePreview struct {
	Schedule schedule.Config `json:"schedule"`
	Rates    []float64       `json:"rates"`
}

type Service interface {
	// Train runs the whole pipeline for one archive and blocks until the
	// run completes or fails. The returned run is the final record.
	Train(ctx context.Context, archivePath string, cfg RunConfig) (Run, error)
	GetRun(ctx context.Context, id string) (Run, error)
	ListRuns(ctx context.Context, offset, limit uint64) (RunPage, error)
	GetHistory(ctx context.Context, id string) (History, error)
	PreviewSchedule(ctx context.Context, cfg schedule.Config) (SchedulePreview, error)
}

func validateRunConfig(cfg RunConfig) error {
	switch {
	case cfg.Epochs <= 0:
		return errors.Join(ErrInvalidRunConfig, errors.New("epochs must be positive"))
	case cfg.BatchSize <= 0:
		return errors.Join(ErrInvalidRunConfig, errors.New("batch size must be positive"))
	case cfg.WarmupFraction < 0 || cfg.WarmupFraction > 1:
		return errors.Join(ErrInvalidRunConfig, errors.New("warmup fraction must be in [0, 1]"))
	case cfg.ValidationSplit <= 0 || cfg.ValidationSplit >= 1:
		return errors.Join(ErrInvalidRunConfig, errors.New("validation split must be in (0, 1)"))
	case cfg.Dropout < 0 || cfg.Dropout >= 1:
		return errors.Join(ErrInvalidRunConfig, errors.New("dropout must be in [0, 1)"))
	case cfg.SequenceLength < 3:
		return errors.Join(ErrInvalidRunConfig, errors.New("sequence length must leave room for the special tokens"))
	case cfg.WorkDir == "":
		return errors.Join(ErrInvalidRunConfig, errors.New("work dir is required"))
	}

	return nil
}
