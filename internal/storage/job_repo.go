package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/davidrs-dev/jobtrack/internal/lifecycle"
	"github.com/davidrs-dev/jobtrack/internal/models"
	"gorm.io/gorm"
)

// ErrJobNotFound is returned when a referenced job id does not exist.
var ErrJobNotFound = errors.New("job not found")

// TransitionOptions carries the optional inputs of a status transition.
type TransitionOptions struct {
	// NextAttemptAt, when set, replaces the job's next attempt time. When
	// nil the stored value is left alone (it is only meaningful while the
	// job is PENDING anyway).
	NextAttemptAt *time.Time

	// Message replaces the job's message. An absent message means blank,
	// not "keep the previous one".
	Message string

	// StatusAt overrides the transition timestamp. Only the simulator uses
	// this, to backdate or forward-date for deterministic scheduling.
	// When nil the transition is stamped with the current time.
	StatusAt *time.Time
}

type JobRepository struct {
	db  *gorm.DB
	now func() time.Time
}

func NewJobRepository(db *gorm.DB) *JobRepository {
	return &JobRepository{db: db, now: time.Now}
}

// Create inserts a new job in PENDING. created_at and status_at are stamped
// with the same instant; next_attempt_at defaults to that instant when the
// caller does not schedule one. Returns the persisted row including its
// generated id.
func (r *JobRepository) Create(ctx context.Context, nextAttemptAt *time.Time, message string) (*models.Job, error) {
	now := r.now().UTC()

	attemptAt := now
	if nextAttemptAt != nil {
		attemptAt = nextAttemptAt.UTC()
	}

	job := models.Job{
		CreatedAt:     now,
		NextAttemptAt: attemptAt,
		Status:        models.StatusPending,
		StatusAt:      now,
		Message:       message,
	}
	if err := r.db.WithContext(ctx).Create(&job).Error; err != nil {
		return nil, fmt.Errorf("create job: %w", err)
	}
	return &job, nil
}

// Get retrieves a single job by id. Returns ErrJobNotFound (wrapped) when
// the id does not exist.
func (r *JobRepository) Get(ctx context.Context, id uint) (*models.Job, error) {
	var job models.Job
	if err := r.db.WithContext(ctx).First(&job, "job_id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("job %d: %w", id, ErrJobNotFound)
		}
		return nil, fmt.Errorf("get job: %w", err)
	}
	return &job, nil
}

// List returns jobs ordered by created_at descending with job_id descending
// as the tie-break, optionally filtered by status. skip/limit are a plain
// offset/count window; bounds checking is the caller's job.
func (r *JobRepository) List(ctx context.Context, status *models.JobStatus, skip, limit int) ([]models.Job, error) {
	q := r.db.WithContext(ctx).Model(&models.Job{})
	if status != nil {
		q = q.Where("status = ?", *status)
	}

	var jobs []models.Job
	if err := q.
		Order("created_at DESC").
		Order("job_id DESC").
		Offset(skip).
		Limit(limit).
		Find(&jobs).Error; err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	return jobs, nil
}

// ListHistory returns one job's audit entries ordered by status_at
// descending with job_history_id descending as the tie-break.
func (r *JobRepository) ListHistory(ctx context.Context, jobID uint, skip, limit int) ([]models.JobHistory, error) {
	var entries []models.JobHistory
	if err := r.db.WithContext(ctx).
		Where("job_id = ?", jobID).
		Order("status_at DESC").
		Order("job_history_id DESC").
		Offset(skip).
		Limit(limit).
		Find(&entries).Error; err != nil {
		return nil, fmt.Errorf("list job histories: %w", err)
	}
	return entries, nil
}

// InFlightCounts returns how many jobs are currently PENDING and RUNNING.
func (r *JobRepository) InFlightCounts(ctx context.Context) (pending int64, running int64, err error) {
	if err := r.db.WithContext(ctx).
		Model(&models.Job{}).
		Where("status = ?", models.StatusPending).
		Count(&pending).Error; err != nil {
		return 0, 0, fmt.Errorf("count pending jobs: %w", err)
	}

	if err := r.db.WithContext(ctx).
		Model(&models.Job{}).
		Where("status = ?", models.StatusRunning).
		Count(&running).Error; err != nil {
		return 0, 0, fmt.Errorf("count running jobs: %w", err)
	}

	return pending, running, nil
}

// ListMature returns the jobs the simulator should advance: PENDING jobs
// whose next_attempt_at is before pendingBefore, and RUNNING jobs whose
// status_at is before runningBefore.
func (r *JobRepository) ListMature(ctx context.Context, pendingBefore, runningBefore time.Time) ([]models.Job, error) {
	var jobs []models.Job
	if err := r.db.WithContext(ctx).
		Where("(status = ? AND next_attempt_at < ?) OR (status = ? AND status_at < ?)",
			models.StatusPending, pendingBefore.UTC(),
			models.StatusRunning, runningBefore.UTC(),
		).
		Order("job_id").
		Find(&jobs).Error; err != nil {
		return nil, fmt.Errorf("list mature jobs: %w", err)
	}
	return jobs, nil
}

// UpdateStatus is the transition engine. It applies the status change as a
// single conditional write guarded on the required prior status for target
// (the compare-and-swap; no lock is taken), and appends one history row
// snapshotting the state being left. Both effects run in one transaction
// and commit together or not at all.
//
// When the guard matches zero rows the job was raced by another caller:
// nothing is mutated and a *lifecycle.BadPriorStatusError carrying the
// observed status is returned. Retrying is the caller's decision.
func (r *JobRepository) UpdateStatus(ctx context.Context, jobID uint, target models.JobStatus, opts TransitionOptions) (*models.Job, error) {
	required, ok := lifecycle.RequiredPrior(target)
	if !ok {
		return nil, fmt.Errorf("no transition leads to status %q", target)
	}

	statusAt := r.now().UTC()
	if opts.StatusAt != nil {
		statusAt = opts.StatusAt.UTC()
	}

	var updated models.Job
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var prior models.Job
		if err := tx.First(&prior, "job_id = ?", jobID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("job %d: %w", jobID, ErrJobNotFound)
			}
			return fmt.Errorf("load job: %w", err)
		}

		columns := map[string]any{
			"status":    target,
			"status_at": statusAt,
			"message":   opts.Message,
		}
		if opts.NextAttemptAt != nil {
			columns["next_attempt_at"] = opts.NextAttemptAt.UTC()
		}

		res := tx.Model(&models.Job{}).
			Where("job_id = ? AND status = ?", jobID, required).
			Updates(columns)
		if res.Error != nil {
			return fmt.Errorf("update job status: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			// Lost the race: some other caller moved the job first.
			return &lifecycle.BadPriorStatusError{
				JobID:    jobID,
				Target:   target,
				Required: required,
				Observed: prior.Status,
			}
		}

		history := models.JobHistory{
			JobID:    prior.JobID,
			Status:   prior.Status,
			StatusAt: prior.StatusAt,
			Message:  prior.Message,
		}
		if err := tx.Create(&history).Error; err != nil {
			return fmt.Errorf("append job history: %w", err)
		}

		if err := tx.First(&updated, "job_id = ?", jobID).Error; err != nil {
			return fmt.Errorf("reload job: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &updated, nil
}
