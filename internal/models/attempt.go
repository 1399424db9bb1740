package models

import "time"

// AttemptOutcome classifies a single provider attempt within a chain run.
type AttemptOutcome string

const (
	AttemptSuccess AttemptOutcome = "success"
	AttemptTimeout AttemptOutcome = "timeout"
	AttemptError   AttemptOutcome = "error"
	AttemptSkipped AttemptOutcome = "skipped"
)

// ProviderAttempt is an in-memory record of one attempt in a chain run.
// It is never part of any response; it feeds logging and the audit sink.
type ProviderAttempt struct {
	RequestID string
	Provider  string
	StartedAt time.Time
	Latency   time.Duration
	Outcome   AttemptOutcome
	Detail    string
}
