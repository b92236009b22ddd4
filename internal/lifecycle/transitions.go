// Package lifecycle holds the job state machine: the fixed table of legal
// status transitions and the conflict error raised when a guarded write
// loses a race.
package lifecycle

import (
	"fmt"

	"github.com/davidrs-dev/jobtrack/internal/models"
)

// requiredPrior maps a target status to the single status a job must
// currently hold for the transition to be legal. CANCELED is deliberately
// reachable only from PENDING; canceling a RUNNING job would need its own
// transition and is not supported.
var requiredPrior = map[models.JobStatus]models.JobStatus{
	models.StatusPending:  models.StatusRunning,
	models.StatusRunning:  models.StatusPending,
	models.StatusDone:     models.StatusRunning,
	models.StatusCanceled: models.StatusPending,
}

// RequiredPrior returns the status a job must be in before it may move to
// target. The second return is false when target is not a legal transition
// destination at all.
func RequiredPrior(target models.JobStatus) (models.JobStatus, bool) {
	prior, ok := requiredPrior[target]
	return prior, ok
}

// BadPriorStatusError reports an optimistic-concurrency conflict: the job's
// persisted status no longer matched the transition's required predecessor
// at write time. Nothing was mutated. The caller decides whether to surface
// a conflict or reload and retry.
type BadPriorStatusError struct {
	JobID    uint
	Target   models.JobStatus
	Required models.JobStatus
	Observed models.JobStatus
}

func (e *BadPriorStatusError) Error() string {
	return fmt.Sprintf(
		"job %d: cannot move to %s: status is %s, want %s",
		e.JobID, e.Target, e.Observed, e.Required,
	)
}
