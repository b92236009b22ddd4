package storage

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/davidrs-dev/jobtrack/internal/lifecycle"
	"github.com/davidrs-dev/jobtrack/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func TestJobRepository_Create(t *testing.T) {
	scheduled := time.Date(2026, 3, 14, 9, 26, 53, 0, time.UTC)

	tests := []struct {
		name          string
		nextAttemptAt *time.Time
		message       string
		check         func(t *testing.T, job *models.Job)
	}{
		{
			name: "defaults seed pending with next attempt now",
			check: func(t *testing.T, job *models.Job) {
				assert.Equal(t, models.StatusPending, job.Status)
				assert.Empty(t, job.Message)
				assert.Equal(t, job.CreatedAt, job.StatusAt)
				assert.Equal(t, job.CreatedAt, job.NextAttemptAt)
			},
		},
		{
			name:          "explicit schedule and message",
			nextAttemptAt: &scheduled,
			message:       "nightly batch",
			check: func(t *testing.T, job *models.Job) {
				assert.Equal(t, models.StatusPending, job.Status)
				assert.Equal(t, "nightly batch", job.Message)
				assert.True(t, job.NextAttemptAt.Equal(scheduled))
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := NewJobRepository(SetupTestDB(t))

			job, err := repo.Create(context.Background(), tt.nextAttemptAt, tt.message)
			require.NoError(t, err)
			require.NotZero(t, job.JobID)

			var saved models.Job
			require.NoError(t, repo.db.First(&saved, "job_id = ?", job.JobID).Error)
			tt.check(t, &saved)

			// Creation is not a transition, so no history yet.
			var count int64
			require.NoError(t, repo.db.Model(&models.JobHistory{}).Count(&count).Error)
			assert.Zero(t, count)
		})
	}
}

func TestJobRepository_Create_MonotonicIDs(t *testing.T) {
	repo := NewJobRepository(SetupTestDB(t))

	var last uint
	for i := 0; i < 5; i++ {
		job, err := repo.Create(context.Background(), nil, "")
		require.NoError(t, err)
		assert.Greater(t, job.JobID, last)
		last = job.JobID
	}
}

func TestJobRepository_Get(t *testing.T) {
	repo := NewJobRepository(SetupTestDB(t))

	created, err := repo.Create(context.Background(), nil, "hello")
	require.NoError(t, err)

	got, err := repo.Get(context.Background(), created.JobID)
	require.NoError(t, err)
	assert.Equal(t, created.JobID, got.JobID)
	assert.Equal(t, "hello", got.Message)

	_, err = repo.Get(context.Background(), created.JobID+1000)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrJobNotFound)
}

func TestJobRepository_UpdateStatus(t *testing.T) {
	future := time.Date(2026, 12, 1, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name    string
		prepare func(t *testing.T, repo *JobRepository, id uint)
		target  models.JobStatus
		opts    TransitionOptions
		check   func(t *testing.T, job *models.Job)
	}{
		{
			name:   "pending to running",
			target: models.StatusRunning,
			check: func(t *testing.T, job *models.Job) {
				assert.Equal(t, models.StatusRunning, job.Status)
			},
		},
		{
			name: "running to done replaces message",
			prepare: func(t *testing.T, repo *JobRepository, id uint) {
				_, err := repo.UpdateStatus(context.Background(), id, models.StatusRunning, TransitionOptions{})
				require.NoError(t, err)
			},
			target: models.StatusDone,
			opts:   TransitionOptions{Message: "Permanent failure"},
			check: func(t *testing.T, job *models.Job) {
				assert.Equal(t, models.StatusDone, job.Status)
				assert.Equal(t, "Permanent failure", job.Message)
			},
		},
		{
			name: "running back to pending reschedules",
			prepare: func(t *testing.T, repo *JobRepository, id uint) {
				_, err := repo.UpdateStatus(context.Background(), id, models.StatusRunning, TransitionOptions{})
				require.NoError(t, err)
			},
			target: models.StatusPending,
			opts:   TransitionOptions{NextAttemptAt: &future, Message: "Temporary failure"},
			check: func(t *testing.T, job *models.Job) {
				assert.Equal(t, models.StatusPending, job.Status)
				assert.True(t, job.NextAttemptAt.Equal(future))
				assert.Equal(t, "Temporary failure", job.Message)
			},
		},
		{
			name:   "pending to canceled",
			target: models.StatusCanceled,
			opts:   TransitionOptions{Message: "X"},
			check: func(t *testing.T, job *models.Job) {
				assert.Equal(t, models.StatusCanceled, job.Status)
				assert.Equal(t, "X", job.Message)
			},
		},
		{
			name: "absent message blanks a previous one",
			prepare: func(t *testing.T, repo *JobRepository, id uint) {
				_, err := repo.UpdateStatus(context.Background(), id, models.StatusRunning, TransitionOptions{Message: "started"})
				require.NoError(t, err)
			},
			target: models.StatusDone,
			check: func(t *testing.T, job *models.Job) {
				assert.Empty(t, job.Message)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := NewJobRepository(SetupTestDB(t))

			created, err := repo.Create(context.Background(), nil, "")
			require.NoError(t, err)
			if tt.prepare != nil {
				tt.prepare(t, repo, created.JobID)
			}

			var before models.Job
			require.NoError(t, repo.db.First(&before, "job_id = ?", created.JobID).Error)
			var historyBefore int64
			require.NoError(t, repo.db.Model(&models.JobHistory{}).Count(&historyBefore).Error)

			updated, err := repo.UpdateStatus(context.Background(), created.JobID, tt.target, tt.opts)
			require.NoError(t, err)
			tt.check(t, updated)

			// Exactly one new history row, snapshotting the pre-transition state.
			entries, err := repo.ListHistory(context.Background(), created.JobID, 0, 100)
			require.NoError(t, err)
			require.Len(t, entries, int(historyBefore)+1)

			latest := entries[0]
			assert.Equal(t, before.Status, latest.Status)
			assert.True(t, latest.StatusAt.Equal(before.StatusAt))
			assert.Equal(t, before.Message, latest.Message)
		})
	}
}

func TestJobRepository_UpdateStatus_StatusAtOverride(t *testing.T) {
	repo := NewJobRepository(SetupTestDB(t))

	created, err := repo.Create(context.Background(), nil, "")
	require.NoError(t, err)

	backdated := time.Now().UTC().Add(-42 * time.Second).Truncate(time.Millisecond)
	updated, err := repo.UpdateStatus(context.Background(), created.JobID, models.StatusRunning, TransitionOptions{
		StatusAt: &backdated,
	})
	require.NoError(t, err)
	assert.True(t, updated.StatusAt.Equal(backdated))
}

func TestJobRepository_UpdateStatus_KeepsNextAttemptWhenAbsent(t *testing.T) {
	repo := NewJobRepository(SetupTestDB(t))

	scheduled := time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)
	created, err := repo.Create(context.Background(), &scheduled, "")
	require.NoError(t, err)

	updated, err := repo.UpdateStatus(context.Background(), created.JobID, models.StatusRunning, TransitionOptions{})
	require.NoError(t, err)
	assert.True(t, updated.NextAttemptAt.Equal(scheduled))
}

func TestJobRepository_UpdateStatus_BadPrior(t *testing.T) {
	repo := NewJobRepository(SetupTestDB(t))

	created, err := repo.Create(context.Background(), nil, "original")
	require.NoError(t, err)
	_, err = repo.UpdateStatus(context.Background(), created.JobID, models.StatusRunning, TransitionOptions{Message: "running"})
	require.NoError(t, err)

	// CANCELED requires PENDING; the job is RUNNING.
	_, err = repo.UpdateStatus(context.Background(), created.JobID, models.StatusCanceled, TransitionOptions{Message: "too late"})
	require.Error(t, err)

	var conflict *lifecycle.BadPriorStatusError
	require.ErrorAs(t, err, &conflict)
	assert.Equal(t, created.JobID, conflict.JobID)
	assert.Equal(t, models.StatusCanceled, conflict.Target)
	assert.Equal(t, models.StatusPending, conflict.Required)
	assert.Equal(t, models.StatusRunning, conflict.Observed)

	// No partial writes: job untouched, exactly one history row (from the
	// successful transition), nothing appended by the failed one.
	job, err := repo.Get(context.Background(), created.JobID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusRunning, job.Status)
	assert.Equal(t, "running", job.Message)

	entries, err := repo.ListHistory(context.Background(), created.JobID, 0, 100)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestJobRepository_UpdateStatus_UnknownTarget(t *testing.T) {
	repo := NewJobRepository(SetupTestDB(t))

	created, err := repo.Create(context.Background(), nil, "")
	require.NoError(t, err)

	_, err = repo.UpdateStatus(context.Background(), created.JobID, models.JobStatus("EXPLODED"), TransitionOptions{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no transition")
}

func TestJobRepository_UpdateStatus_NotFound(t *testing.T) {
	repo := NewJobRepository(SetupTestDB(t))

	_, err := repo.UpdateStatus(context.Background(), 999, models.StatusRunning, TransitionOptions{})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrJobNotFound)
}

func TestJobRepository_UpdateStatus_ConcurrentRace(t *testing.T) {
	repo := NewJobRepository(SetupTestDB(t))

	created, err := repo.Create(context.Background(), nil, "")
	require.NoError(t, err)

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = repo.UpdateStatus(context.Background(), created.JobID, models.StatusRunning, TransitionOptions{})
		}(i)
	}
	wg.Wait()

	var conflicts, successes int
	for _, err := range errs {
		if err == nil {
			successes++
			continue
		}
		var conflict *lifecycle.BadPriorStatusError
		require.ErrorAs(t, err, &conflict)
		conflicts++
	}
	assert.Equal(t, 1, successes, "exactly one transition must win")
	assert.Equal(t, 1, conflicts, "exactly one transition must lose")

	// The loser must not have appended history.
	entries, err := repo.ListHistory(context.Background(), created.JobID, 0, 100)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestJobRepository_List_Pagination(t *testing.T) {
	repo := NewJobRepository(SetupTestDB(t))
	// A fixed clock gives every job the same created_at, forcing the
	// job_id tie-break to carry the whole ordering.
	repo.now = func() time.Time { return time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC) }

	const total = 205
	for i := 0; i < total; i++ {
		_, err := repo.Create(context.Background(), nil, "")
		require.NoError(t, err)
	}

	seen := make(map[uint]bool)
	var prev uint
	for _, skip := range []int{0, 100, 200} {
		page, err := repo.List(context.Background(), nil, skip, 100)
		require.NoError(t, err)

		if skip < 200 {
			require.Len(t, page, 100)
		} else {
			require.Len(t, page, 5)
		}

		for _, job := range page {
			assert.False(t, seen[job.JobID], "job %d returned twice", job.JobID)
			seen[job.JobID] = true
			if prev != 0 {
				assert.Less(t, job.JobID, prev, "ids must descend across pages")
			}
			prev = job.JobID
		}
	}
	assert.Len(t, seen, total)
}

func TestJobRepository_List_StatusFilter(t *testing.T) {
	repo := NewJobRepository(SetupTestDB(t))

	for i := 0; i < 6; i++ {
		job, err := repo.Create(context.Background(), nil, "")
		require.NoError(t, err)
		if i%2 == 0 {
			_, err := repo.UpdateStatus(context.Background(), job.JobID, models.StatusRunning, TransitionOptions{})
			require.NoError(t, err)
		}
	}

	running := models.StatusRunning
	jobs, err := repo.List(context.Background(), &running, 0, 100)
	require.NoError(t, err)
	require.Len(t, jobs, 3)
	for _, job := range jobs {
		assert.Equal(t, models.StatusRunning, job.Status)
	}

	pending := models.StatusPending
	jobs, err = repo.List(context.Background(), &pending, 0, 100)
	require.NoError(t, err)
	assert.Len(t, jobs, 3)
}

func TestJobRepository_ListHistory_Pagination(t *testing.T) {
	repo := NewJobRepository(SetupTestDB(t))

	job, err := repo.Create(context.Background(), nil, "")
	require.NoError(t, err)

	// 205 transitions bouncing between RUNNING and PENDING.
	for i := 0; i < 205; i++ {
		target := models.StatusRunning
		if i%2 == 1 {
			target = models.StatusPending
		}
		_, err := repo.UpdateStatus(context.Background(), job.JobID, target, TransitionOptions{})
		require.NoError(t, err)
	}

	seen := make(map[uint]bool)
	var prev uint
	for _, skip := range []int{0, 100, 200} {
		page, err := repo.ListHistory(context.Background(), job.JobID, skip, 100)
		require.NoError(t, err)

		if skip < 200 {
			require.Len(t, page, 100)
		} else {
			require.Len(t, page, 5)
		}

		for _, entry := range page {
			assert.False(t, seen[entry.JobHistoryID], "entry %d returned twice", entry.JobHistoryID)
			seen[entry.JobHistoryID] = true
			if prev != 0 {
				assert.Less(t, entry.JobHistoryID, prev)
			}
			prev = entry.JobHistoryID
		}
	}
	assert.Len(t, seen, 205)

	// History scoping: another job's transitions never leak in.
	other, err := repo.Create(context.Background(), nil, "")
	require.NoError(t, err)
	entries, err := repo.ListHistory(context.Background(), other.JobID, 0, 100)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestJobRepository_InFlightCounts(t *testing.T) {
	repo := NewJobRepository(SetupTestDB(t))
	ctx := context.Background()

	for i := 0; i < 48; i++ {
		job, err := repo.Create(ctx, nil, "")
		require.NoError(t, err)

		switch {
		case i%4 == 0:
			_, err = repo.UpdateStatus(ctx, job.JobID, models.StatusCanceled, TransitionOptions{})
			require.NoError(t, err)
		case i%3 == 0:
			_, err = repo.UpdateStatus(ctx, job.JobID, models.StatusRunning, TransitionOptions{})
			require.NoError(t, err)
			_, err = repo.UpdateStatus(ctx, job.JobID, models.StatusDone, TransitionOptions{})
			require.NoError(t, err)
		case i%2 == 0:
			_, err = repo.UpdateStatus(ctx, job.JobID, models.StatusRunning, TransitionOptions{})
			require.NoError(t, err)
		}
	}

	pending, running, err := repo.InFlightCounts(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(16), pending)
	assert.Equal(t, int64(8), running)
}

func TestJobRepository_ListMature(t *testing.T) {
	repo := NewJobRepository(SetupTestDB(t))
	ctx := context.Background()
	now := time.Now().UTC()

	readyAt := now.Add(-3 * time.Second)
	ready, err := repo.Create(ctx, &readyAt, "")
	require.NoError(t, err)

	laterAt := now.Add(24 * time.Hour)
	_, err = repo.Create(ctx, &laterAt, "")
	require.NoError(t, err)

	staleStart := now.Add(-11 * time.Second)
	stale, err := repo.Create(ctx, nil, "")
	require.NoError(t, err)
	_, err = repo.UpdateStatus(ctx, stale.JobID, models.StatusRunning, TransitionOptions{StatusAt: &staleStart})
	require.NoError(t, err)

	freshStart := now.Add(-5 * time.Second)
	fresh, err := repo.Create(ctx, nil, "")
	require.NoError(t, err)
	_, err = repo.UpdateStatus(ctx, fresh.JobID, models.StatusRunning, TransitionOptions{StatusAt: &freshStart})
	require.NoError(t, err)

	doneJob, err := repo.Create(ctx, &readyAt, "")
	require.NoError(t, err)
	_, err = repo.UpdateStatus(ctx, doneJob.JobID, models.StatusRunning, TransitionOptions{})
	require.NoError(t, err)
	_, err = repo.UpdateStatus(ctx, doneJob.JobID, models.StatusDone, TransitionOptions{})
	require.NoError(t, err)

	mature, err := repo.ListMature(ctx, now.Add(-2*time.Second), now.Add(-10*time.Second))
	require.NoError(t, err)

	ids := make([]uint, 0, len(mature))
	for _, job := range mature {
		ids = append(ids, job.JobID)
	}
	assert.ElementsMatch(t, []uint{ready.JobID, stale.JobID}, ids)
}

// A transaction callback error must roll back every write inside it.
func TestJobRepository_TransactionAtomicity(t *testing.T) {
	repo := NewJobRepository(SetupTestDB(t))

	created, err := repo.Create(context.Background(), nil, "keep me")
	require.NoError(t, err)

	boom := errors.New("boom")
	err = repo.db.Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.Job{}).
			Where("job_id = ?", created.JobID).
			Update("message", "clobbered")
		require.NoError(t, res.Error)
		return boom
	})
	require.ErrorIs(t, err, boom)

	job, err := repo.Get(context.Background(), created.JobID)
	require.NoError(t, err)
	assert.Equal(t, "keep me", job.Message)
}
