package sdk_test

import (
	"log/slog"
	"net/http/httptest"
	"testing"
	"time"

	pkgerrors "github.com/absmach/tuner/pkg/errors"
	"github.com/absmach/tuner/pkg/run"
	"github.com/absmach/tuner/pkg/schedule"
	"github.com/absmach/tuner/pkg/sdk"
	"github.com/absmach/tuner/trainer"
	"github.com/absmach/tuner/trainer/api"
	"github.com/absmach/tuner/trainer/mocks"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

const runID = "9e2c3a1f-6b1a-4f43-9a4e-1a2f3c4d5e6f"

func setup(t *testing.T) (sdk.SDK, *mocks.MockService) {
	t.Helper()

	svc := new(mocks.MockService)
	ts := httptest.NewServer(api.MakeHandler(svc, slog.New(slog.DiscardHandler), "instance"))
	t.Cleanup(ts.Close)

	return sdk.NewSDK(sdk.Config{ServerURL: ts.URL, Timeout: 5 * time.Second}), svc
}

func TestGetRun(t *testing.T) {
	client, svc := setup(t)

	want := trainer.Run{
		ID:        runID,
		Name:      "quirky-lovelace",
		Status:    run.Running,
		Config:    run.DefaultConfig(),
		CreatedAt: time.Now().UTC().Truncate(time.Second),
	}
	svc.On("GetRun", mock.Anything, runID).Return(want, nil)
	svc.On("GetRun", mock.Anything, "missing").Return(trainer.Run{}, pkgerrors.ErrNotFound)

	cases := []struct {
		desc string
		id   string
		err  bool
	}{
		{desc: "existing run", id: runID},
		{desc: "missing run", id: "missing", err: true},
	}

	for _, tc := range cases {
		t.Run(tc.desc, func(t *testing.T) {
			got, err := client.GetRun(tc.id)
			if tc.err {
				assert.ErrorContains(t, err, "404")

				return
			}
			require.NoError(t, err)
			assert.Equal(t, want.ID, got.ID)
			assert.Equal(t, want.Status, got.Status)
			assert.True(t, want.CreatedAt.Equal(got.CreatedAt))
		})
	}
}

func TestListRuns(t *testing.T) {
	client, svc := setup(t)

	svc.On("ListRuns", mock.Anything, uint64(2), uint64(10)).Return(trainer.RunPage{
		Offset: 2,
		Limit:  10,
		Total:  3,
		Runs:   []trainer.Run{{ID: runID, Status: run.Completed}},
	}, nil)

	page, err := client.ListRuns(2, 10)
	require.NoError(t, err)
	assert.Equal(t, uint64(3), page.Total)
	require.Len(t, page.Runs, 1)
	assert.Equal(t, run.Completed, page.Runs[0].Status)
}

func TestGetHistory(t *testing.T) {
	client, svc := setup(t)

	svc.On("GetHistory", mock.Anything, runID).Return(trainer.History{
		{Epoch: 1, Loss: 0.7, ValLoss: 0.65},
	}, nil)

	h, err := client.GetHistory(runID)
	require.NoError(t, err)
	assert.Equal(t, runID, h.RunID)
	assert.Equal(t, []float64{0.7}, h.Series["loss"])
	assert.Len(t, h.Epochs, 1)
}

func TestPreviewSchedule(t *testing.T) {
	client, svc := setup(t)

	cfg := schedule.Config{PeakLearningRate: 2, TotalSteps: 2, WarmupSteps: 1}
	svc.On("PreviewSchedule", mock.Anything, cfg).Return(trainer.SchedulePreview{
		Schedule: cfg,
		Rates:    []float64{2, 2},
	}, nil)

	p, err := client.PreviewSchedule(cfg)
	require.NoError(t, err)
	assert.Equal(t, []float64{2, 2}, p.Rates)
	assert.Equal(t, cfg, p.Schedule)
}
