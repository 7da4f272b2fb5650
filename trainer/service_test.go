package trainer_test

import (
	"archive/tar"
	"bytes"
	"compress/gzip"
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/absmach/tuner/pkg/archive"
	"github.com/absmach/tuner/pkg/dataset"
	pkgerrors "github.com/absmach/tuner/pkg/errors"
	"github.com/absmach/tuner/pkg/hub"
	"github.com/absmach/tuner/pkg/model"
	"github.com/absmach/tuner/pkg/mqtt/mocks"
	"github.com/absmach/tuner/pkg/run"
	"github.com/absmach/tuner/pkg/schedule"
	"github.com/absmach/tuner/pkg/storage"
	"github.com/absmach/tuner/trainer"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

var (
	positive = []string{
		"a wonderful film with a great cast",
		"loved every minute, brilliant and moving",
		"an amazing story, superb acting",
		"beautiful, funny and smart",
		"one of the best movies this year",
	}
	negative = []string{
		"a boring mess with terrible dialogue",
		"awful pacing and a dull plot",
		"the worst film i have seen in ages",
		"poorly acted and painfully long",
		"a waste of time, truly bad",
	}
)

func reviews(t *testing.T) []byte {
	t.Helper()

	var buf bytes.Buffer
	gw := gzip.NewWriter(&buf)
	tw := tar.NewWriter(gw)

	write := func(name, body string) {
		require.NoError(t, tw.WriteHeader(&tar.Header{
			Name:     name,
			Typeflag: tar.TypeReg,
			Mode:     0o644,
			Size:     int64(len(body)),
		}))
		_, err := tw.Write([]byte(body))
		require.NoError(t, err)
	}
	for _, split := range []string{"train", "test"} {
		for i := range 10 {
			write(fmt.Sprintf("aclImdb/%s/pos/%d_9.txt", split, i), positive[i%len(positive)])
			write(fmt.Sprintf("aclImdb/%s/neg/%d_2.txt", split, i), negative[i%len(negative)])
		}
	}
	write("aclImdb/train/unsup/0_0.txt", "unlabeled review")

	require.NoError(t, tw.Close())
	require.NoError(t, gw.Close())

	return buf.Bytes()
}

func writeFile(t *testing.T, name string, data []byte) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, data, 0o644))

	return path
}

type fixture struct {
	svc   trainer.Service
	runs  storage.RunRepository
	pub   *mocks.MockPubSub
	calls func() []trainer.Event
}

func newFixture(t *testing.T, publishErr error) fixture {
	t.Helper()

	repos, err := storage.NewRepositories(storage.Config{Type: "memory"})
	require.NoError(t, err)

	h, err := hub.New(hub.Config{})
	require.NoError(t, err)

	pub := new(mocks.MockPubSub)
	pub.On("Publish", mock.Anything, mock.Anything, mock.Anything).Return(publishErr)

	svc := trainer.NewService(
		repos.Runs,
		archive.NewExtractor(),
		dataset.NewLoader(),
		h,
		pub,
		trainer.NopTrainingMetrics(),
		slog.New(slog.DiscardHandler),
		trainer.WithMonitorInterval(10*time.Millisecond),
	)

	return fixture{
		svc:  svc,
		runs: repos.Runs,
		pub:  pub,
		calls: func() []trainer.Event {
			var events []trainer.Event
			for _, c := range pub.Calls {
				if e, ok := c.Arguments.Get(2).(trainer.Event); ok {
					events = append(events, e)
				}
			}

			return events
		},
	}
}

func testConfig(t *testing.T) trainer.RunConfig {
	cfg := run.DefaultConfig()
	cfg.Epochs = 2
	cfg.BatchSize = 4
	cfg.WarmupFraction = 0.25
	cfg.SequenceLength = 16
	cfg.Workers = 2
	cfg.WorkDir = t.TempDir()

	return cfg
}

func eventNames(events []trainer.Event) []string {
	names := make([]string, len(events))
	for i, e := range events {
		names[i] = e.Event
	}

	return names
}

func TestTrain(t *testing.T) {
	f := newFixture(t, nil)
	archivePath := writeFile(t, "aclImdb_v1.tar.gz", reviews(t))
	cfg := testConfig(t)

	r, err := f.svc.Train(context.Background(), archivePath, cfg)
	require.NoError(t, err)

	assert.Equal(t, run.Completed, r.Status)
	assert.NotEmpty(t, r.ID)
	assert.NotEmpty(t, r.Name)
	assert.Empty(t, r.Error)
	assert.Equal(t, []string{"neg", "pos"}, r.ClassNames)
	assert.False(t, r.StartTime.IsZero())
	assert.False(t, r.FinishTime.Before(r.StartTime))

	// 20 training reviews, 4 held out for validation, batches of 4.
	assert.Equal(t, schedule.Config{PeakLearningRate: cfg.PeakLearningRate, TotalSteps: 8, WarmupSteps: 2}, r.Schedule)
	require.Len(t, r.History, 2)
	for i, m := range r.History {
		assert.Equal(t, i+1, m.Epoch)
		assert.Equal(t, 4*(i+1), m.Steps)
		assert.Greater(t, m.Loss, 0.0)
		assert.GreaterOrEqual(t, m.BinaryAccuracy, 0.0)
		assert.LessOrEqual(t, m.BinaryAccuracy, 1.0)
		assert.Greater(t, m.ValLoss, 0.0)
	}
	require.NotNil(t, r.Evaluation)
	assert.Equal(t, 20, r.Evaluation.Examples)

	assert.FileExists(t, filepath.Join(r.OutputDir, "history.json"))
	ckpt, err := model.LoadCheckpoint(filepath.Join(r.OutputDir, model.CheckpointFile))
	require.NoError(t, err)
	assert.True(t, ckpt.HasHead())
	assert.Equal(t, r.ClassNames, ckpt.ClassNames)
	assert.Equal(t, 16, ckpt.SequenceLength)

	stored, err := f.runs.Get(context.Background(), r.ID)
	require.NoError(t, err)
	assert.Equal(t, run.Completed, stored.Status)
	assert.Len(t, stored.History, 2)

	assert.Equal(t, []string{
		trainer.EventRunStarted,
		trainer.EventEpochCompleted,
		trainer.EventEpochCompleted,
		trainer.EventRunCompleted,
	}, eventNames(f.calls()))
}

func TestTrainWithEncoderReference(t *testing.T) {
	f := newFixture(t, nil)
	archivePath := writeFile(t, "aclImdb_v1.tar.gz", reviews(t))

	pre, err := model.NewPreprocessor(2000, 16)
	require.NoError(t, err)
	enc, err := model.NewEmbeddingBag(2000, 8, 7)
	require.NoError(t, err)
	head, err := model.NewHead(8, 0.1, 7)
	require.NoError(t, err)
	clf, err := model.NewClassifier(pre, enc, head, 7)
	require.NoError(t, err)
	encPath := filepath.Join(t.TempDir(), "encoder.cbor")
	require.NoError(t, model.SaveCheckpoint(encPath, clf.Checkpoint(nil)))

	cfg := testConfig(t)
	cfg.Epochs = 1
	cfg.EncoderRef = encPath

	r, err := f.svc.Train(context.Background(), archivePath, cfg)
	require.NoError(t, err)
	assert.Equal(t, run.Completed, r.Status)

	ckpt, err := model.LoadCheckpoint(filepath.Join(r.OutputDir, model.CheckpointFile))
	require.NoError(t, err)
	assert.Equal(t, 2000, ckpt.VocabSize)
	assert.Equal(t, 8, ckpt.HiddenSize)
}

func TestTrainFailures(t *testing.T) {
	archivePath := writeFile(t, "aclImdb_v1.tar.gz", reviews(t))
	corrupt := writeFile(t, "corrupt.tar.gz", []byte{0x1f, 0x8b, 0x00, 0x01, 0x02})

	cases := []struct {
		desc    string
		archive string
		cfg     func(trainer.RunConfig) trainer.RunConfig
		err     error
		stored  bool
	}{
		{
			desc:    "zero epochs",
			archive: archivePath,
			cfg: func(c trainer.RunConfig) trainer.RunConfig {
				c.Epochs = 0
				return c
			},
			err: pkgerrors.ErrInvalidRunConfig,
		},
		{
			desc:    "validation split of one",
			archive: archivePath,
			cfg: func(c trainer.RunConfig) trainer.RunConfig {
				c.ValidationSplit = 1
				return c
			},
			err: trainer.ErrInvalidRunConfig,
		},
		{
			desc:    "missing archive",
			archive: filepath.Join(t.TempDir(), "missing.tar.gz"),
			cfg:     func(c trainer.RunConfig) trainer.RunConfig { return c },
			err:     os.ErrNotExist,
		},
		{
			desc:    "corrupt archive",
			archive: corrupt,
			cfg:     func(c trainer.RunConfig) trainer.RunConfig { return c },
			stored:  true,
		},
		{
			desc:    "missing encoder",
			archive: archivePath,
			cfg: func(c trainer.RunConfig) trainer.RunConfig {
				c.EncoderRef = filepath.Join(t.TempDir(), "missing.cbor")
				return c
			},
			err:    os.ErrNotExist,
			stored: true,
		},
	}

	for _, tc := range cases {
		t.Run(tc.desc, func(t *testing.T) {
			f := newFixture(t, nil)

			r, err := f.svc.Train(context.Background(), tc.archive, tc.cfg(testConfig(t)))
			require.Error(t, err)
			if tc.err != nil {
				assert.ErrorIs(t, err, tc.err)
			}

			_, total, err := f.runs.List(context.Background(), 0, 10)
			require.NoError(t, err)
			if !tc.stored {
				assert.Zero(t, total)
				return
			}
			assert.Equal(t, uint64(1), total)

			assert.Equal(t, run.Failed, r.Status)
			assert.NotEmpty(t, r.Error)
			stored, err := f.runs.Get(context.Background(), r.ID)
			require.NoError(t, err)
			assert.Equal(t, run.Failed, stored.Status)
			assert.Equal(t, r.Error, stored.Error)

			events := f.calls()
			require.NotEmpty(t, events)
			last := events[len(events)-1]
			assert.Equal(t, trainer.EventRunFailed, last.Event)
			assert.Equal(t, r.ID, last.RunID)
		})
	}
}

func TestTrainCanceled(t *testing.T) {
	f := newFixture(t, nil)
	archivePath := writeFile(t, "aclImdb_v1.tar.gz", reviews(t))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	r, err := f.svc.Train(ctx, archivePath, testConfig(t))
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, run.Failed, r.Status)

	stored, err := f.runs.Get(context.Background(), r.ID)
	require.NoError(t, err)
	assert.Equal(t, run.Failed, stored.Status)
}

func TestTrainPublishFailureDoesNotFailRun(t *testing.T) {
	f := newFixture(t, fmt.Errorf("broker unavailable"))
	archivePath := writeFile(t, "aclImdb_v1.tar.gz", reviews(t))
	cfg := testConfig(t)
	cfg.Epochs = 1

	r, err := f.svc.Train(context.Background(), archivePath, cfg)
	require.NoError(t, err)
	assert.Equal(t, run.Completed, r.Status)
	assert.Len(t, f.calls(), 3)
}

func TestGetHistory(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	now := time.Now().UTC()
	pending := trainer.Run{ID: "pending", Status: run.Pending, Config: run.DefaultConfig(), CreatedAt: now, UpdatedAt: now}
	running := trainer.Run{ID: "running", Status: run.Running, Config: run.DefaultConfig(), CreatedAt: now, UpdatedAt: now}
	done := trainer.Run{
		ID:        "done",
		Status:    run.Completed,
		Config:    run.DefaultConfig(),
		History:   trainer.History{{Epoch: 1, Loss: 0.5}},
		CreatedAt: now,
		UpdatedAt: now,
	}
	for _, r := range []trainer.Run{pending, running, done} {
		_, err := f.runs.Create(ctx, r)
		require.NoError(t, err)
	}

	cases := []struct {
		desc    string
		id      string
		history trainer.History
		err     error
	}{
		{desc: "pending run", id: "pending", err: pkgerrors.ErrRunNotStarted},
		{desc: "running run without epochs", id: "running", history: trainer.History{}},
		{desc: "completed run", id: "done", history: done.History},
		{desc: "missing run", id: "missing", err: pkgerrors.ErrNotFound},
	}

	for _, tc := range cases {
		t.Run(tc.desc, func(t *testing.T) {
			h, err := f.svc.GetHistory(ctx, tc.id)
			if tc.err != nil {
				assert.ErrorIs(t, err, tc.err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.history, h)
		})
	}
}

func TestListRuns(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	base := time.Now().UTC()
	for i := range 3 {
		_, err := f.runs.Create(ctx, trainer.Run{
			ID:        fmt.Sprintf("run-%d", i),
			Config:    run.DefaultConfig(),
			CreatedAt: base.Add(time.Duration(i) * time.Minute),
		})
		require.NoError(t, err)
	}

	page, err := f.svc.ListRuns(ctx, 1, 5)
	require.NoError(t, err)
	assert.Equal(t, uint64(3), page.Total)
	assert.Equal(t, uint64(1), page.Offset)
	assert.Equal(t, uint64(5), page.Limit)
	require.Len(t, page.Runs, 2)
	assert.Equal(t, "run-1", page.Runs[0].ID)
	assert.Equal(t, "run-0", page.Runs[1].ID)

	r, err := f.svc.GetRun(ctx, "run-2")
	require.NoError(t, err)
	assert.Equal(t, "run-2", r.ID)
}

func TestPreviewSchedule(t *testing.T) {
	f := newFixture(t, nil)

	cases := []struct {
		desc  string
		cfg   schedule.Config
		rates []float64
		err   error
	}{
		{
			desc:  "warmup then decay",
			cfg:   schedule.Config{PeakLearningRate: 1, TotalSteps: 4, WarmupSteps: 2},
			rates: []float64{0.5, 1, 1, 0.5},
		},
		{
			desc: "no steps",
			cfg:  schedule.Config{PeakLearningRate: 1},
			err:  schedule.ErrInvalidConfig,
		},
	}

	for _, tc := range cases {
		t.Run(tc.desc, func(t *testing.T) {
			p, err := f.svc.PreviewSchedule(context.Background(), tc.cfg)
			if tc.err != nil {
				assert.ErrorIs(t, err, tc.err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.cfg, p.Schedule)
			assert.InDeltaSlice(t, tc.rates, p.Rates, 1e-12)
		})
	}
}
