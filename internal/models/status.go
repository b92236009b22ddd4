package models

import "fmt"

// JobStatus is the lifecycle state of a job. Values match what is stored
// in the status column.
type JobStatus string

const (
	StatusPending  JobStatus = "PENDING"
	StatusRunning  JobStatus = "RUNNING"
	StatusDone     JobStatus = "DONE"
	StatusCanceled JobStatus = "CANCELED"
)

// ParseJobStatus converts a raw string (e.g. a query parameter) into a
// JobStatus, rejecting anything outside the four known states.
func ParseJobStatus(s string) (JobStatus, error) {
	status := JobStatus(s)
	if !status.Valid() {
		return "", fmt.Errorf("unknown job status %q", s)
	}
	return status, nil
}

func (s JobStatus) Valid() bool {
	switch s {
	case StatusPending, StatusRunning, StatusDone, StatusCanceled:
		return true
	}
	return false
}

func (s JobStatus) String() string {
	return string(s)
}
