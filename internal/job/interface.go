package job

import (
	"context"
	"time"

	"github.com/davidrs-dev/jobtrack/internal/dto"
	"github.com/davidrs-dev/jobtrack/internal/models"
	"github.com/davidrs-dev/jobtrack/internal/storage"
	"github.com/gin-gonic/gin"
)

// JobRepoInterface defines the contract for job repository operations.
type JobRepoInterface interface {
	Create(ctx context.Context, nextAttemptAt *time.Time, message string) (*models.Job, error)
	Get(ctx context.Context, id uint) (*models.Job, error)
	List(ctx context.Context, status *models.JobStatus, skip, limit int) ([]models.Job, error)
	ListHistory(ctx context.Context, jobID uint, skip, limit int) ([]models.JobHistory, error)
	InFlightCounts(ctx context.Context) (int64, int64, error)
	UpdateStatus(ctx context.Context, jobID uint, target models.JobStatus, opts storage.TransitionOptions) (*models.Job, error)
}

// Advancer runs one lifecycle-simulation pass. The service calls it before
// every externally observable operation so responses reflect matured jobs.
type Advancer interface {
	Advance(ctx context.Context) error
}

// JobServiceInterface defines the contract for job business logic operations.
type JobServiceInterface interface {
	CreateJob(ctx context.Context, req *dto.JobCreateDTO) (*dto.JobResponseDTO, error)
	GetJob(ctx context.Context, id uint) (*dto.JobResponseDTO, error)
	ListJobs(ctx context.Context, status string, skip, limit int) ([]dto.JobResponseDTO, error)
	GetHistory(ctx context.Context, jobID uint, skip, limit int) ([]dto.JobHistoryResponseDTO, error)
	CancelJob(ctx context.Context, jobID uint, req *dto.CancelJobDTO) (*dto.JobResponseDTO, error)
	Summary(ctx context.Context) (*dto.SystemSummaryDTO, error)
}

// JobHandlerInterface defines the contract for HTTP request handlers.
type JobHandlerInterface interface {
	Create(c *gin.Context)
	Get(c *gin.Context)
	History(c *gin.Context)
	Cancel(c *gin.Context)
	List(c *gin.Context)
	Summary(c *gin.Context)
}
