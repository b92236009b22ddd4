package job

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/davidrs-dev/jobtrack/common"
	"github.com/davidrs-dev/jobtrack/internal/dto"
	"github.com/davidrs-dev/jobtrack/internal/lifecycle"
	"github.com/davidrs-dev/jobtrack/internal/models"
	"github.com/davidrs-dev/jobtrack/internal/storage"
	"go.uber.org/zap"
)

type JobService struct {
	repo JobRepoInterface
	sim  Advancer
	log  *zap.Logger
}

func NewJobService(repo JobRepoInterface, sim Advancer, log *zap.Logger) *JobService {
	return &JobService{repo: repo, sim: sim, log: log}
}

var _ JobServiceInterface = (*JobService)(nil)

// advance runs a simulation pass so the caller observes matured jobs. A
// failed pass is logged but never fails the request itself.
func (s *JobService) advance(ctx context.Context) {
	if s.sim == nil {
		return
	}
	if err := s.sim.Advance(ctx); err != nil {
		s.log.Error("failed to advance jobs", zap.Error(err))
	}
}

// CreateJob inserts a new PENDING job. The attempt time defaults to now and
// the message to blank when not supplied.
func (s *JobService) CreateJob(ctx context.Context, req *dto.JobCreateDTO) (*dto.JobResponseDTO, error) {
	if err := ctx.Err(); err != nil {
		return nil, common.Errf(http.StatusRequestTimeout, "request canceled or timed out")
	}

	s.advance(ctx)

	job, err := s.repo.Create(ctx, req.NextAttemptAt, req.Message)
	if err != nil {
		return nil, s.mapRepoError(err, "failed to create job")
	}

	return toJobDTO(job), nil
}

// GetJob retrieves one job by id.
func (s *JobService) GetJob(ctx context.Context, id uint) (*dto.JobResponseDTO, error) {
	if err := ctx.Err(); err != nil {
		return nil, common.Errf(http.StatusRequestTimeout, "request timed out")
	}

	s.advance(ctx)

	job, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, s.mapRepoError(err, "failed to get job")
	}

	return toJobDTO(job), nil
}

// ListJobs returns a page of jobs, optionally filtered by status. An
// unknown status string is a client error, not an empty result.
func (s *JobService) ListJobs(ctx context.Context, status string, skip, limit int) ([]dto.JobResponseDTO, error) {
	if err := ctx.Err(); err != nil {
		return nil, common.Errf(http.StatusRequestTimeout, "request timed out")
	}

	var filter *models.JobStatus
	if status != "" {
		parsed, err := models.ParseJobStatus(status)
		if err != nil {
			return nil, common.NewAPIError(
				http.StatusBadRequest,
				"invalid status",
				map[string]any{
					"provided": status,
					"allowed": []models.JobStatus{
						models.StatusPending,
						models.StatusRunning,
						models.StatusDone,
						models.StatusCanceled,
					},
				},
			)
		}
		filter = &parsed
	}

	s.advance(ctx)

	jobs, err := s.repo.List(ctx, filter, skip, limit)
	if err != nil {
		return nil, s.mapRepoError(err, "failed to list jobs")
	}

	dtos := make([]dto.JobResponseDTO, len(jobs))
	for i := range jobs {
		dtos[i] = *toJobDTO(&jobs[i])
	}
	return dtos, nil
}

// GetHistory returns a page of one job's audit entries. The job's existence
// is checked first so an unknown id is a 404 rather than an empty page.
func (s *JobService) GetHistory(ctx context.Context, jobID uint, skip, limit int) ([]dto.JobHistoryResponseDTO, error) {
	if err := ctx.Err(); err != nil {
		return nil, common.Errf(http.StatusRequestTimeout, "request timed out")
	}

	s.advance(ctx)

	if _, err := s.repo.Get(ctx, jobID); err != nil {
		return nil, s.mapRepoError(err, "failed to get job")
	}

	entries, err := s.repo.ListHistory(ctx, jobID, skip, limit)
	if err != nil {
		return nil, s.mapRepoError(err, "failed to list job history")
	}

	dtos := make([]dto.JobHistoryResponseDTO, len(entries))
	for i, entry := range entries {
		dtos[i] = dto.JobHistoryResponseDTO{
			JobHistoryID: entry.JobHistoryID,
			Status:       entry.Status.String(),
			StatusAt:     entry.StatusAt,
			Message:      entry.Message,
		}
	}
	return dtos, nil
}

// CancelJob transitions a job to CANCELED. Only PENDING jobs can be
// canceled; anything else surfaces as a conflict carrying the job's
// current state.
func (s *JobService) CancelJob(ctx context.Context, jobID uint, req *dto.CancelJobDTO) (*dto.JobResponseDTO, error) {
	if err := ctx.Err(); err != nil {
		return nil, common.Errf(http.StatusRequestTimeout, "request timed out")
	}

	s.advance(ctx)

	job, err := s.repo.UpdateStatus(ctx, jobID, models.StatusCanceled, storage.TransitionOptions{
		NextAttemptAt: req.NextAttemptAt,
		Message:       req.Message,
	})
	if err != nil {
		var conflict *lifecycle.BadPriorStatusError
		if errors.As(err, &conflict) {
			fields := map[string]any{"observed_status": conflict.Observed.String()}
			if current, getErr := s.repo.Get(ctx, jobID); getErr == nil {
				fields["job"] = toJobDTO(current)
			}
			return nil, common.NewAPIError(
				http.StatusConflict,
				fmt.Sprintf("unable to cancel job in %s state", conflict.Observed),
				fields,
			)
		}
		return nil, s.mapRepoError(err, "failed to cancel job")
	}

	return toJobDTO(job), nil
}

// Summary reports how many jobs are in flight.
func (s *JobService) Summary(ctx context.Context) (*dto.SystemSummaryDTO, error) {
	if err := ctx.Err(); err != nil {
		return nil, common.Errf(http.StatusRequestTimeout, "request timed out")
	}

	s.advance(ctx)

	pending, running, err := s.repo.InFlightCounts(ctx)
	if err != nil {
		return nil, s.mapRepoError(err, "failed to count in-flight jobs")
	}

	return &dto.SystemSummaryDTO{
		PendingCount: pending,
		RunningCount: running,
	}, nil
}

func (s *JobService) mapRepoError(err error, fallback string) error {
	switch {
	case errors.Is(err, storage.ErrJobNotFound):
		return common.Errf(http.StatusNotFound, "job not found")
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return common.Errf(http.StatusRequestTimeout, "request timed out")
	default:
		s.log.Error(fallback, zap.Error(err))
		return common.Errf(http.StatusInternalServerError, "%s", fallback)
	}
}

// toJobDTO projects a job for external consumption. next_attempt_at only
// means anything while the job is PENDING, so it reads as absent for every
// other status even though the column keeps its last value.
func toJobDTO(job *models.Job) *dto.JobResponseDTO {
	resp := &dto.JobResponseDTO{
		JobID:     job.JobID,
		CreatedAt: job.CreatedAt,
		Status:    job.Status.String(),
		StatusAt:  job.StatusAt,
		Message:   job.Message,
	}
	if job.Status == models.StatusPending {
		attemptAt := job.NextAttemptAt
		resp.NextAttemptAt = &attemptAt
	}
	return resp
}
