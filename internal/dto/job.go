package dto

import (
	"time"
)

type JobCreateDTO struct {
	NextAttemptAt *time.Time `json:"next_attempt_at,omitempty"`
	Message       string     `json:"message,omitempty"`
}

type CancelJobDTO struct {
	NextAttemptAt *time.Time `json:"next_attempt_at,omitempty"`
	Message       string     `json:"message,omitempty"`
}

// JobResponseDTO is the external projection of a job. NextAttemptAt is nil
// whenever Status is not PENDING, regardless of what the store holds.
type JobResponseDTO struct {
	JobID         uint       `json:"job_id"`
	CreatedAt     time.Time  `json:"created_at"`
	Status        string     `json:"status"`
	StatusAt      time.Time  `json:"status_at"`
	NextAttemptAt *time.Time `json:"next_attempt_at"`
	Message       string     `json:"message"`
}

// JobHistoryResponseDTO is one audit entry: the job's state immediately
// before a transition.
type JobHistoryResponseDTO struct {
	JobHistoryID uint      `json:"job_history_id"`
	Status       string    `json:"status"`
	StatusAt     time.Time `json:"status_at"`
	Message      string    `json:"message"`
}

type SystemSummaryDTO struct {
	PendingCount int64 `json:"pending_count"`
	RunningCount int64 `json:"running_count"`
}

// PageQuery is the shared skip/limit window for listing endpoints.
type PageQuery struct {
	Skip  int `form:"skip,default=0" validate:"gte=0"`
	Limit int `form:"limit,default=100" validate:"gte=1,lte=100"`
}

type ListJobsQuery struct {
	Status string `form:"status"`
	Skip   int    `form:"skip,default=0" validate:"gte=0"`
	Limit  int    `form:"limit,default=100" validate:"gte=1,lte=100"`
}
