package models

import (
	"encoding/json"
	"time"
)

// JobType determines what the completion callback does with a job's result.
type JobType string

const (
	JobTypeValidation JobType = "VALIDATION"
	JobTypeTemplate   JobType = "TEMPLATE"
	JobTypeExplore    JobType = "EXPLORE"
)

// JobStatus is the job state machine: PENDING -> PROCESSING -> COMPLETED|FAILED.
// Transitions are forward-only; terminal states are sticky.
type JobStatus string

const (
	JobStatusPending    JobStatus = "PENDING"
	JobStatusProcessing JobStatus = "PROCESSING"
	JobStatusCompleted  JobStatus = "COMPLETED"
	JobStatusFailed     JobStatus = "FAILED"
)

// IsTerminal reports whether no further transitions are permitted.
func (s JobStatus) IsTerminal() bool {
	return s == JobStatusCompleted || s == JobStatusFailed
}

// IsValid reports whether s is a known status value.
func (s JobStatus) IsValid() bool {
	switch s {
	case JobStatusPending, JobStatusProcessing, JobStatusCompleted, JobStatusFailed:
		return true
	}
	return false
}

// CanTransitionTo enforces monotonic forward transitions.
func (s JobStatus) CanTransitionTo(next JobStatus) bool {
	if s.IsTerminal() {
		return false
	}
	switch s {
	case JobStatusPending:
		return next == JobStatusProcessing || next.IsTerminal()
	case JobStatusProcessing:
		return next.IsTerminal()
	}
	return false
}

// Job is a durable record of asynchronous work completed via an external
// callback. Created by the triggering request handler; after creation it is
// mutated only by the callback path.
type Job struct {
	ID        string          `json:"id"`
	Type      JobType         `json:"type"`
	Status    JobStatus       `json:"status"`
	Payload   json.RawMessage `json:"payload,omitempty"`
	Result    json.RawMessage `json:"result,omitempty"`
	Error     string          `json:"error,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

func (t JobType) IsValid() bool {
	switch t {
	case JobTypeValidation, JobTypeTemplate, JobTypeExplore:
		return true
	}
	return false
}
