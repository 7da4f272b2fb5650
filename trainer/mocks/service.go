package mocks

import (
	"context"

	"github.com/absmach/tuner/pkg/schedule"
	"github.com/absmach/tuner/trainer"
	"github.com/stretchr/testify/mock"
)

var _ trainer.Service = (*MockService)(nil)

// MockService is a mock implementation of the trainer.Service interface
type MockService struct {
	mock.Mock
}

// Train runs a training pipeline
func (m *MockService) Train(ctx context.Context, archivePath string, cfg trainer.RunConfig) (trainer.Run, error) {
	args := m.Called(ctx, archivePath, cfg)
	return args.Get(0).(trainer.Run), args.Error(1)
}

// GetRun retrieves a run by ID
func (m *MockService) GetRun(ctx context.Context, id string) (trainer.Run, error) {
	args := m.Called(ctx, id)
	return args.Get(0).(trainer.Run), args.Error(1)
}

// ListRuns lists runs with pagination
func (m *MockService) ListRuns(ctx context.Context, offset, limit uint64) (trainer.RunPage, error) {
	args := m.Called(ctx, offset, limit)
	return args.Get(0).(trainer.RunPage), args.Error(1)
}

// GetHistory retrieves the per-epoch metrics of a run
func (m *MockService) GetHistory(ctx context.Context, id string) (trainer.History, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(trainer.History), args.Error(1)
}

// PreviewSchedule computes a learning rate curve
func (m *MockService) PreviewSchedule(ctx context.Context, cfg schedule.Config) (trainer.SchedulePreview, error) {
	args := m.Called(ctx, cfg)
	return args.Get(0).(trainer.SchedulePreview), args.Error(1)
}
