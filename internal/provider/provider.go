// Package provider defines the capability interface for analysis backends
// and the concrete members of the fallback chain: the external workflow
// engine, the primary AI provider, and the deterministic local scorer.
package provider

import (
	"context"
	"errors"
	"fmt"
	"time"

	"coach-service/internal/models"
)

// ErrInvalidResponse marks a provider reply that arrived but did not parse
// into a usable analysis. A 200 with garbage is a failure for chain purposes.
var ErrInvalidResponse = errors.New("provider returned an invalid response")

// Input is the unit of work handed to each chain member.
type Input struct {
	RequestID    string
	Title        string
	Description  string
	TargetMarket string
}

// Result is a validated analysis plus attribution.
type Result struct {
	Analysis models.ValidationAnalysis
	Provider string
}

// Provider is one backend in the fallback chain. Attempt must honor ctx
// cancellation; the orchestrator applies Timeout() around each attempt and
// discards late results.
type Provider interface {
	Name() string
	Timeout() time.Duration
	Attempt(ctx context.Context, in Input) (*Result, error)
}

// validateAnalysis rejects structurally unusable analyses so the chain
// advances instead of serving junk.
func validateAnalysis(a *models.ValidationAnalysis) error {
	if a == nil {
		return ErrInvalidResponse
	}
	if a.Score < 0 || a.Score > 100 {
		return fmt.Errorf("%w: score %d out of range", ErrInvalidResponse, a.Score)
	}
	if a.Verdict == "" {
		return fmt.Errorf("%w: empty verdict", ErrInvalidResponse)
	}
	return nil
}
