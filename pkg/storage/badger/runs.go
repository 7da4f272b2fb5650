package badger

import (
	"cmp"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"

	pkgerrors "github.com/absmach/tuner/pkg/errors"
	"github.com/absmach/tuner/pkg/run"
)

const runPrefix = "run:"

type runRepo struct {
	db *Database
}

func NewRunRepository(db *Database) RunRepository {
	return &runRepo{db: db}
}

func runKey(id string) []byte {
	return []byte(runPrefix + id)
}

func (r *runRepo) Create(_ context.Context, rn run.Run) (run.Run, error) {
	if rn.ID == "" {
		return run.Run{}, pkgerrors.ErrEmptyKey
	}
	ok, err := r.db.exists(runKey(rn.ID))
	if err != nil {
		return run.Run{}, err
	}
	if ok {
		return run.Run{}, fmt.Errorf("%w: %w", ErrCreate, pkgerrors.ErrEntityExists)
	}

	val, err := json.Marshal(rn)
	if err != nil {
		return run.Run{}, fmt.Errorf("%w: %w", ErrCreate, err)
	}
	if err := r.db.set(runKey(rn.ID), val); err != nil {
		return run.Run{}, fmt.Errorf("%w: %w", ErrCreate, err)
	}

	return rn, nil
}

func (r *runRepo) Get(_ context.Context, id string) (run.Run, error) {
	val, err := r.db.get(runKey(id))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return run.Run{}, fmt.Errorf("run %w", pkgerrors.ErrNotFound)
		}

		return run.Run{}, err
	}

	var rn run.Run
	if err := json.Unmarshal(val, &rn); err != nil {
		return run.Run{}, fmt.Errorf("%w: %w", ErrDBScan, err)
	}

	return rn, nil
}

func (r *runRepo) Update(_ context.Context, rn run.Run) error {
	ok, err := r.db.exists(runKey(rn.ID))
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("run %w", pkgerrors.ErrNotFound)
	}

	val, err := json.Marshal(rn)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrUpdate, err)
	}

	return r.db.set(runKey(rn.ID), val)
}

func (r *runRepo) List(_ context.Context, offset, limit uint64) ([]run.Run, uint64, error) {
	items, err := r.db.listWithPrefix([]byte(runPrefix))
	if err != nil {
		return nil, 0, err
	}

	runs := make([]run.Run, 0, len(items))
	for _, item := range items {
		var rn run.Run
		if err := json.Unmarshal(item, &rn); err != nil {
			return nil, 0, fmt.Errorf("%w: %w", ErrDBScan, err)
		}
		runs = append(runs, rn)
	}
	// Keys are ordered by ID; present newest first like the SQL backends.
	slices.SortStableFunc(runs, func(a, b run.Run) int {
		return cmp.Compare(b.CreatedAt.UnixNano(), a.CreatedAt.UnixNano())
	})

	total := uint64(len(runs))
	if offset >= total {
		return []run.Run{}, total, nil
	}
	end := min(offset+limit, total)

	return runs[offset:end], total, nil
}

func (r *runRepo) Delete(_ context.Context, id string) error {
	return r.db.delete(runKey(id))
}
