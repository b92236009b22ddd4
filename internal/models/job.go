package models

import (
	"time"
)

// Job is a single tracked unit of asynchronous work. Rows are created once
// in PENDING and only ever mutated through the transition engine; they are
// never deleted.
//
// NextAttemptAt is only meaningful while Status == PENDING. The column keeps
// its last value after the job leaves PENDING, so external projections must
// blank it for non-PENDING rows.
type Job struct {
	JobID         uint      `gorm:"primaryKey;autoIncrement"`
	CreatedAt     time.Time `gorm:"not null"`
	NextAttemptAt time.Time `gorm:"not null"`
	Status        JobStatus `gorm:"type:varchar(16);not null;default:'PENDING'"`
	StatusAt      time.Time `gorm:"not null"`
	Message       string    `gorm:"type:text;not null;default:''"`

	History []JobHistory `gorm:"foreignKey:JobID;references:JobID"`
}

// JobHistory is the append-only audit record of a transition. Each row
// snapshots the job's status, status_at and message as they were immediately
// before the transition that produced it. Rows are never updated or deleted.
type JobHistory struct {
	JobHistoryID uint      `gorm:"primaryKey;autoIncrement"`
	JobID        uint      `gorm:"not null;index"`
	Status       JobStatus `gorm:"type:varchar(16);not null"`
	StatusAt     time.Time `gorm:"not null"`
	Message      string    `gorm:"type:text;not null;default:''"`
}

func (JobHistory) TableName() string {
	return "job_histories"
}
