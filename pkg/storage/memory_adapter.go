package storage

import (
	"context"
	"slices"

	pkgerrors "github.com/absmach/tuner/pkg/errors"
	"github.com/absmach/tuner/pkg/run"
)

type memoryRunRepo struct {
	storage Storage
}

func newMemoryRunRepository(s Storage) RunRepository {
	return &memoryRunRepo{storage: s}
}

func (r *memoryRunRepo) Create(ctx context.Context, rn run.Run) (run.Run, error) {
	if err := r.storage.Create(ctx, rn.ID, rn); err != nil {
		return run.Run{}, err
	}

	return rn, nil
}

func (r *memoryRunRepo) Get(ctx context.Context, id string) (run.Run, error) {
	data, err := r.storage.Get(ctx, id)
	if err != nil {
		return run.Run{}, err
	}
	rn, ok := data.(run.Run)
	if !ok {
		return run.Run{}, pkgerrors.ErrInvalidData
	}

	return rn, nil
}

func (r *memoryRunRepo) Update(ctx context.Context, rn run.Run) error {
	return r.storage.Update(ctx, rn.ID, rn)
}

func (r *memoryRunRepo) List(ctx context.Context, offset, limit uint64) ([]run.Run, uint64, error) {
	data, total, err := r.storage.List(ctx, 0, ^uint64(0))
	if err != nil {
		return nil, 0, err
	}

	runs := make([]run.Run, 0, len(data))
	for _, d := range data {
		rn, ok := d.(run.Run)
		if !ok {
			return nil, 0, pkgerrors.ErrInvalidData
		}
		runs = append(runs, rn)
	}
	slices.Reverse(runs)
	slices.SortStableFunc(runs, func(a, b run.Run) int {
		return b.CreatedAt.Compare(a.CreatedAt)
	})

	if offset >= uint64(len(runs)) {
		return []run.Run{}, total, nil
	}
	end := min(offset+limit, uint64(len(runs)))

	return runs[offset:end], total, nil
}

func (r *memoryRunRepo) Delete(ctx context.Context, id string) error {
	return r.storage.Delete(ctx, id)
}
