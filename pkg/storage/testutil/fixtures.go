package testutil

import (
	"testing"
	"time"

	"github.com/absmach/tuner/pkg/run"
	"github.com/absmach/tuner/pkg/schedule"
	"github.com/stretchr/testify/assert"
)

func TestRun(id string) run.Run {
	now := time.Now().UTC().Truncate(time.Millisecond)

	return run.Run{
		ID:          id,
		Name:        "test-run-" + id,
		Status:      run.Pending,
		ArchivePath: "/tmp/aclImdb_v1.tar.gz",
		OutputDir:   "/tmp/runs/" + id,
		Config:      run.DefaultConfig(),
		Schedule:    schedule.Config{PeakLearningRate: 3e-5, TotalSteps: 3125, WarmupSteps: 312},
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

func CompletedRun(id string) run.Run {
	r := TestRun(id)
	r.Status = run.Completed
	r.ClassNames = []string{"neg", "pos"}
	r.History = run.History{
		{Epoch: 1, Steps: 625, Loss: 0.49, BinaryAccuracy: 0.74, ValLoss: 0.38, ValBinaryAccuracy: 0.83, LearningRate: 2.4e-5, Duration: time.Minute},
		{Epoch: 2, Steps: 625, Loss: 0.33, BinaryAccuracy: 0.85, ValLoss: 0.37, ValBinaryAccuracy: 0.84, LearningRate: 1.8e-5, Duration: time.Minute},
	}
	r.Evaluation = &run.Evaluation{Loss: 0.45, BinaryAccuracy: 0.85, Examples: 25000}
	r.StartTime = r.CreatedAt
	r.FinishTime = r.CreatedAt.Add(2 * time.Minute)

	return r
}

// AssertRunEqual compares runs with time values checked by instant, since
// backends may hand back a different location or precision.
func AssertRunEqual(t *testing.T, want, got run.Run) {
	t.Helper()

	assert.True(t, want.CreatedAt.Equal(got.CreatedAt), "created_at: want %v, got %v", want.CreatedAt, got.CreatedAt)
	assert.True(t, want.UpdatedAt.Equal(got.UpdatedAt), "updated_at: want %v, got %v", want.UpdatedAt, got.UpdatedAt)
	assert.True(t, want.StartTime.Equal(got.StartTime), "start_time: want %v, got %v", want.StartTime, got.StartTime)
	assert.True(t, want.FinishTime.Equal(got.FinishTime), "finish_time: want %v, got %v", want.FinishTime, got.FinishTime)

	want.CreatedAt, got.CreatedAt = time.Time{}, time.Time{}
	want.UpdatedAt, got.UpdatedAt = time.Time{}, time.Time{}
	want.StartTime, got.StartTime = time.Time{}, time.Time{}
	want.FinishTime, got.FinishTime = time.Time{}, time.Time{}
	assert.Equal(t, want, got)
}
