package models

import "time"

// RateLimitPolicy is a fixed window/limit pair chosen by the calling
// endpoint, never by the caller.
type RateLimitPolicy struct {
	Name        string
	MaxRequests int
	Window      time.Duration
}

// RateLimitDecision is the outcome of an admission check. ResetAt is when
// the oldest in-window event ages out (now + window when the window is empty).
type RateLimitDecision struct {
	Allowed   bool
	Limit     int
	Remaining int
	ResetAt   time.Time
}
