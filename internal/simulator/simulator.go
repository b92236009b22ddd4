// Package simulator stands in for a real executor: it probabilistically
// advances jobs whose schedule has matured, driving them through the
// transition engine the same way external callers do.
package simulator

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/davidrs-dev/jobtrack/internal/lifecycle"
	"github.com/davidrs-dev/jobtrack/internal/models"
	"github.com/davidrs-dev/jobtrack/internal/storage"
	"go.uber.org/zap"
)

const (
	// A PENDING job must be overdue by this much before it "starts".
	pendingGrace = 2 * time.Second
	// A RUNNING job must have been running this long before it concludes.
	runningFloor = 10 * time.Second
	// Temporary failures are rescheduled this far past their completion.
	retryDelay = 10 * time.Second
)

// Repo is the slice of the job repository the simulator needs.
type Repo interface {
	ListMature(ctx context.Context, pendingBefore, runningBefore time.Time) ([]models.Job, error)
	UpdateStatus(ctx context.Context, jobID uint, target models.JobStatus, opts storage.TransitionOptions) (*models.Job, error)
}

type Simulator struct {
	repo Repo
	log  *zap.Logger

	// Injectable for deterministic tests.
	now     func() time.Time
	intn    func(n int) int
	randFloat func() float64
}

func New(repo Repo, log *zap.Logger) *Simulator {
	return &Simulator{
		repo:    repo,
		log:     log,
		now:     time.Now,
		intn:    rand.Intn,
		randFloat: rand.Float64,
	}
}

// Advance runs one simulation pass: scan for mature jobs, advance each
// independently, and rescan until the scan comes back empty. Calling it
// with nothing eligible is a no-op, and it is safe to run concurrently
// with other transition callers; a job raced away mid-pass is logged and
// skipped, never retried within the pass.
func (s *Simulator) Advance(ctx context.Context) error {
	for {
		now := s.now().UTC()
		jobs, err := s.repo.ListMature(ctx, now.Add(-pendingGrace), now.Add(-runningFloor))
		if err != nil {
			return fmt.Errorf("scan mature jobs: %w", err)
		}
		if len(jobs) == 0 {
			return nil
		}

		for i := range jobs {
			if err := s.advanceJob(ctx, &jobs[i]); err != nil {
				return err
			}
		}
	}
}

func (s *Simulator) advanceJob(ctx context.Context, job *models.Job) error {
	var target models.JobStatus
	var opts storage.TransitionOptions

	switch job.Status {
	case models.StatusPending:
		// Starting incurs some latency after the scheduled attempt.
		startedAt := job.NextAttemptAt.Add(s.jitter(250*time.Millisecond, 1500*time.Millisecond))
		target = models.StatusRunning
		opts.StatusAt = &startedAt

	case models.StatusRunning:
		completedAt := job.StatusAt.Add(s.jitter(5*time.Second, 15*time.Second))
		opts.StatusAt = &completedAt

		switch d10 := s.intn(10); {
		case d10 == 0:
			// 10% permanent failures
			target = models.StatusDone
			opts.Message = "Permanent failure"
		case d10 <= 3:
			// 30% temporary failures, rescheduled for another attempt
			retryAt := completedAt.Add(retryDelay)
			target = models.StatusPending
			opts.NextAttemptAt = &retryAt
			opts.Message = "Temporary failure"
		default:
			// the rest succeed
			target = models.StatusDone
		}

	default:
		s.log.Warn("unexpected job status in simulation pass",
			zap.Uint("job_id", job.JobID),
			zap.String("status", job.Status.String()),
		)
		return nil
	}

	if _, err := s.repo.UpdateStatus(ctx, job.JobID, target, opts); err != nil {
		var conflict *lifecycle.BadPriorStatusError
		if errors.As(err, &conflict) {
			// Another caller moved this job first; abandon it for this pass.
			s.log.Warn("job transitioned elsewhere, skipping",
				zap.Uint("job_id", job.JobID),
				zap.String("target", target.String()),
				zap.String("observed", conflict.Observed.String()),
			)
			return nil
		}
		return fmt.Errorf("advance job %d to %s: %w", job.JobID, target, err)
	}
	return nil
}

// jitter draws a uniformly distributed duration from [lo, hi).
func (s *Simulator) jitter(lo, hi time.Duration) time.Duration {
	return lo + time.Duration(s.randFloat()*float64(hi-lo))
}
