package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	pkgerrors "github.com/absmach/tuner/pkg/errors"
	"github.com/absmach/tuner/pkg/run"
)

const runColumns = `id, name, status, archive_path, output_dir, config, schedule, class_names, history, evaluation, error, start_time, finish_time, created_at, updated_at`

type runRepo struct {
	db *Database
}

func NewRunRepository(db *Database) RunRepository {
	return &runRepo{db: db}
}

type dbRun struct {
	ID          string       `db:"id"`
	Name        string       `db:"name"`
	Status      uint8        `db:"status"`
	ArchivePath string       `db:"archive_path"`
	OutputDir   *string      `db:"output_dir"`
	Config      []byte       `db:"config"`
	Schedule    []byte       `db:"schedule"`
	ClassNames  []byte       `db:"class_names"`
	History     []byte       `db:"history"`
	Evaluation  []byte       `db:"evaluation"`
	Error       *string      `db:"error"`
	StartTime   sql.NullTime `db:"start_time"`
	FinishTime  sql.NullTime `db:"finish_time"`
	CreatedAt   sql.NullTime `db:"created_at"`
	UpdatedAt   sql.NullTime `db:"updated_at"`
}

func (r *runRepo) Create(ctx context.Context, rn run.Run) (run.Run, error) {
	query := `INSERT INTO runs (` + runColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	d, err := fromRun(rn)
	if err != nil {
		return run.Run{}, err
	}

	_, err = r.db.ExecContext(ctx, query,
		d.ID, d.Name, d.Status, d.ArchivePath, d.OutputDir,
		d.Config, d.Schedule, d.ClassNames, d.History, d.Evaluation,
		d.Error, d.StartTime, d.FinishTime, d.CreatedAt, d.UpdatedAt,
	)
	if err != nil {
		return run.Run{}, fmt.Errorf("%w: %w", ErrCreate, err)
	}

	return rn, nil
}

func (r *runRepo) Get(ctx context.Context, id string) (run.Run, error) {
	query := `SELECT ` + runColumns + ` FROM runs WHERE id = ?`

	var d dbRun
	if err := r.db.GetContext(ctx, &d, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return run.Run{}, fmt.Errorf("run %w", pkgerrors.ErrNotFound)
		}

		return run.Run{}, fmt.Errorf("%w: %w", ErrDBQuery, err)
	}

	return toRun(d)
}

func (r *runRepo) Update(ctx context.Context, rn run.Run) error {
	query := `UPDATE runs SET
		name = ?,
		status = ?,
		archive_path = ?,
		output_dir = ?,
		config = ?,
		schedule = ?,
		class_names = ?,
		history = ?,
		evaluation = ?,
		error = ?,
		start_time = ?,
		finish_time = ?,
		updated_at = ?
	WHERE id = ?`

	d, err := fromRun(rn)
	if err != nil {
		return err
	}

	res, err := r.db.ExecContext(ctx, query,
		d.Name, d.Status, d.ArchivePath, d.OutputDir,
		d.Config, d.Schedule, d.ClassNames, d.History, d.Evaluation,
		d.Error, d.StartTime, d.FinishTime, d.UpdatedAt, d.ID,
	)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrUpdate, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%w: %w", ErrUpdate, err)
	}
	if n == 0 {
		return fmt.Errorf("run %w", pkgerrors.ErrNotFound)
	}

	return nil
}

func (r *runRepo) List(ctx context.Context, offset, limit uint64) ([]run.Run, uint64, error) {
	var total uint64
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) FROM runs"); err != nil {
		return nil, 0, fmt.Errorf("%w: %w", ErrDBQuery, err)
	}

	query := `SELECT ` + runColumns + ` FROM runs ORDER BY created_at DESC LIMIT ? OFFSET ?`

	var rows []dbRun
	if err := r.db.SelectContext(ctx, &rows, query, limit, offset); err != nil {
		return nil, 0, fmt.Errorf("%w: %w", ErrDBQuery, err)
	}

	runs := make([]run.Run, 0, len(rows))
	for _, d := range rows {
		rn, err := toRun(d)
		if err != nil {
			return nil, 0, fmt.Errorf("%w: %w", ErrDBScan, err)
		}
		runs = append(runs, rn)
	}

	return runs, total, nil
}

func (r *runRepo) Delete(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM runs WHERE id = ?`, id); err != nil {
		return fmt.Errorf("%w: %w", ErrDelete, err)
	}

	return nil
}

func fromRun(rn run.Run) (dbRun, error) {
	d := dbRun{
		ID:          rn.ID,
		Name:        rn.Name,
		Status:      uint8(rn.Status),
		ArchivePath: rn.ArchivePath,
		OutputDir:   nullString(rn.OutputDir),
		Error:       nullString(rn.Error),
		StartTime:   nullTime(rn.StartTime),
		FinishTime:  nullTime(rn.FinishTime),
		CreatedAt:   nullTime(rn.CreatedAt),
		UpdatedAt:   nullTime(rn.UpdatedAt),
	}

	var err error
	if d.Config, err = json.Marshal(rn.Config); err != nil {
		return dbRun{}, fmt.Errorf("marshal error: %w", err)
	}
	if d.Schedule, err = json.Marshal(rn.Schedule); err != nil {
		return dbRun{}, fmt.Errorf("marshal error: %w", err)
	}
	if d.ClassNames, err = jsonBytes(rn.ClassNames); err != nil {
		return dbRun{}, fmt.Errorf("marshal error: %w", err)
	}
	if d.History, err = jsonBytes(rn.History); err != nil {
		return dbRun{}, fmt.Errorf("marshal error: %w", err)
	}
	if rn.Evaluation != nil {
		if d.Evaluation, err = json.Marshal(rn.Evaluation); err != nil {
			return dbRun{}, fmt.Errorf("marshal error: %w", err)
		}
	}

	return d, nil
}

func toRun(d dbRun) (run.Run, error) {
	rn := run.Run{
		ID:          d.ID,
		Name:        d.Name,
		Status:      run.Status(d.Status),
		ArchivePath: d.ArchivePath,
		CreatedAt:   d.CreatedAt.Time,
		UpdatedAt:   d.UpdatedAt.Time,
	}
	if d.OutputDir != nil {
		rn.OutputDir = *d.OutputDir
	}
	if d.Error != nil {
		rn.Error = *d.Error
	}
	if d.StartTime.Valid {
		rn.StartTime = d.StartTime.Time
	}
	if d.FinishTime.Valid {
		rn.FinishTime = d.FinishTime.Time
	}
	if err := jsonUnmarshal(d.Config, &rn.Config); err != nil {
		return run.Run{}, err
	}
	if err := jsonUnmarshal(d.Schedule, &rn.Schedule); err != nil {
		return run.Run{}, err
	}
	if err := jsonUnmarshal(d.ClassNames, &rn.ClassNames); err != nil {
		return run.Run{}, err
	}
	if err := jsonUnmarshal(d.History, &rn.History); err != nil {
		return run.Run{}, err
	}
	if d.Evaluation != nil {
		rn.Evaluation = &run.Evaluation{}
		if err := jsonUnmarshal(d.Evaluation, rn.Evaluation); err != nil {
			return run.Run{}, err
		}
	}

	return rn, nil
}

func jsonBytes[T any](v []T) ([]byte, error) {
	if v == nil {
		return nil, nil
	}

	return json.Marshal(v)
}

func jsonUnmarshal(data []byte, v any) error {
	if len(data) == 0 {
		return nil
	}

	return json.Unmarshal(data, v)
}

func nullString(s string) *string {
	if s == "" {
		return nil
	}

	return &s
}

func nullTime(t time.Time) sql.NullTime {
	if t.IsZero() {
		return sql.NullTime{}
	}

	return sql.NullTime{Time: t, Valid: true}
}
