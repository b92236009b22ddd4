package mocks

import (
	"context"
	"time"

	"github.com/davidrs-dev/jobtrack/internal/models"
	"github.com/davidrs-dev/jobtrack/internal/storage"
	"github.com/stretchr/testify/mock"
)

type JobRepoMock struct {
	mock.Mock
}

func (m *JobRepoMock) Create(ctx context.Context, nextAttemptAt *time.Time, message string) (*models.Job, error) {
	args := m.Called(ctx, nextAttemptAt, message)

	job, _ := args.Get(0).(*models.Job)
	return job, args.Error(1)
}

func (m *JobRepoMock) Get(ctx context.Context, id uint) (*models.Job, error) {
	args := m.Called(ctx, id)

	job, _ := args.Get(0).(*models.Job)
	return job, args.Error(1)
}

func (m *JobRepoMock) List(ctx context.Context, status *models.JobStatus, skip, limit int) ([]models.Job, error) {
	args := m.Called(ctx, status, skip, limit)

	jobs, _ := args.Get(0).([]models.Job)
	return jobs, args.Error(1)
}

func (m *JobRepoMock) ListHistory(ctx context.Context, jobID uint, skip, limit int) ([]models.JobHistory, error) {
	args := m.Called(ctx, jobID, skip, limit)

	entries, _ := args.Get(0).([]models.JobHistory)
	return entries, args.Error(1)
}

func (m *JobRepoMock) InFlightCounts(ctx context.Context) (int64, int64, error) {
	args := m.Called(ctx)
	return args.Get(0).(int64), args.Get(1).(int64), args.Error(2)
}

func (m *JobRepoMock) ListMature(ctx context.Context, pendingBefore, runningBefore time.Time) ([]models.Job, error) {
	args := m.Called(ctx, pendingBefore, runningBefore)

	jobs, _ := args.Get(0).([]models.Job)
	return jobs, args.Error(1)
}

func (m *JobRepoMock) UpdateStatus(ctx context.Context, jobID uint, target models.JobStatus, opts storage.TransitionOptions) (*models.Job, error) {
	args := m.Called(ctx, jobID, target, opts)

	job, _ := args.Get(0).(*models.Job)
	return job, args.Error(1)
}
