package mocks

import (
	"context"

	"github.com/davidrs-dev/jobtrack/internal/dto"
	"github.com/stretchr/testify/mock"
)

type JobServiceMock struct {
	mock.Mock
}

func (m *JobServiceMock) CreateJob(ctx context.Context, req *dto.JobCreateDTO) (*dto.JobResponseDTO, error) {
	args := m.Called(ctx, req)

	job, _ := args.Get(0).(*dto.JobResponseDTO)
	return job, args.Error(1)
}

func (m *JobServiceMock) GetJob(ctx context.Context, id uint) (*dto.JobResponseDTO, error) {
	args := m.Called(ctx, id)

	job, _ := args.Get(0).(*dto.JobResponseDTO)
	return job, args.Error(1)
}

func (m *JobServiceMock) ListJobs(ctx context.Context, status string, skip, limit int) ([]dto.JobResponseDTO, error) {
	args := m.Called(ctx, status, skip, limit)

	jobs, _ := args.Get(0).([]dto.JobResponseDTO)
	return jobs, args.Error(1)
}

func (m *JobServiceMock) GetHistory(ctx context.Context, jobID uint, skip, limit int) ([]dto.JobHistoryResponseDTO, error) {
	args := m.Called(ctx, jobID, skip, limit)

	entries, _ := args.Get(0).([]dto.JobHistoryResponseDTO)
	return entries, args.Error(1)
}

func (m *JobServiceMock) CancelJob(ctx context.Context, jobID uint, req *dto.CancelJobDTO) (*dto.JobResponseDTO, error) {
	args := m.Called(ctx, jobID, req)

	job, _ := args.Get(0).(*dto.JobResponseDTO)
	return job, args.Error(1)
}

func (m *JobServiceMock) Summary(ctx context.Context) (*dto.SystemSummaryDTO, error) {
	args := m.Called(ctx)

	summary, _ := args.Get(0).(*dto.SystemSummaryDTO)
	return summary, args.Error(1)
}

// AdvancerMock fakes the simulator pass the service runs before each
// externally observable operation.
type AdvancerMock struct {
	mock.Mock
}

func (m *AdvancerMock) Advance(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}
