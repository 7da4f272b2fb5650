package storage

import (
	"context"

	"github.com/absmach/tuner/pkg/run"
)

// RunRepository persists fine-tuning runs. List returns the newest runs
// first together with the total number of stored runs.
type RunRepository interface {
	Create(ctx context.Context, r run.Run) (run.Run, error)
	Get(ctx context.Context, id string) (run.Run, error)
	Update(ctx context.Context, r run.Run) error
	List(ctx context.Context, offset, limit uint64) ([]run.Run, uint64, error)
	Delete(ctx context.Context, id string) error
}
