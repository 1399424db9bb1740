package service

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"coach-service/internal/models"
	"coach-service/internal/provider"
	"coach-service/internal/repository"
	"coach-service/internal/util"
)

var (
	// ErrAllProvidersFailed is the single aggregated error raised when the
	// chain is exhausted. Upstream failure detail stays in the logs.
	ErrAllProvidersFailed = errors.New("all providers failed")

	// ErrNoProviders means the chain was constructed empty, which is a
	// deployment bug rather than a runtime failure mode.
	ErrNoProviders = errors.New("no providers configured")
)

// ChainService tries an ordered list of providers until one yields a valid
// result. Providers are attempted strictly in priority order, never
// concurrently, each bounded by its own timeout; worst-case latency is the
// sum of configured timeouts.
type ChainService struct {
	providers []provider.Provider
	audit     repository.AttemptSink // nil when auditing is disabled
	logger    *zap.Logger
}

func NewChainService(providers []provider.Provider, audit repository.AttemptSink, logger *zap.Logger) *ChainService {
	return &ChainService{
		providers: providers,
		audit:     audit,
		logger:    logger,
	}
}

// Providers lists chain member names in attempt order.
func (s *ChainService) Providers() []string {
	names := make([]string, len(s.providers))
	for i, p := range s.providers {
		names[i] = p.Name()
	}
	return names
}

// Run executes the chain for one unit of work. On success the result carries
// which provider produced it; intermediate failures are invisible to the
// caller.
func (s *ChainService) Run(ctx context.Context, in provider.Input) (*provider.Result, error) {
	if len(s.providers) == 0 {
		return nil, ErrNoProviders
	}
	if in.RequestID == "" {
		in.RequestID = uuid.NewString()
	}

	for _, p := range s.providers {
		result, err := s.attempt(ctx, p, in)
		if err == nil {
			return result, nil
		}
		if ctx.Err() != nil {
			// The request itself is gone; stop burning providers.
			break
		}
	}

	return nil, ErrAllProvidersFailed
}

func (s *ChainService) attempt(ctx context.Context, p provider.Provider, in provider.Input) (*provider.Result, error) {
	attemptCtx := ctx
	cancel := context.CancelFunc(func() {})
	if timeout := p.Timeout(); timeout > 0 {
		attemptCtx, cancel = context.WithTimeout(ctx, timeout)
	}
	// Cancelling here discards any late result from a timed-out attempt.
	defer cancel()

	started := time.Now()
	result, err := p.Attempt(attemptCtx, in)
	latency := time.Since(started)

	outcome := models.AttemptSuccess
	detail := ""
	if err != nil {
		outcome = models.AttemptError
		detail = err.Error()
		if errors.Is(attemptCtx.Err(), context.DeadlineExceeded) {
			outcome = models.AttemptTimeout
		}
	}

	s.record(models.ProviderAttempt{
		RequestID: in.RequestID,
		Provider:  p.Name(),
		StartedAt: started,
		Latency:   latency,
		Outcome:   outcome,
		Detail:    detail,
	})

	if err != nil {
		util.Warn("Provider attempt failed, advancing chain",
			zap.String("request_id", in.RequestID),
			zap.String("provider", p.Name()),
			zap.String("outcome", string(outcome)),
			zap.Duration("latency", latency),
			zap.Error(err))
		return nil, err
	}

	util.Info("Provider attempt succeeded",
		zap.String("request_id", in.RequestID),
		zap.String("provider", p.Name()),
		zap.Duration("latency", latency))

	return result, nil
}

func (s *ChainService) record(attempt models.ProviderAttempt) {
	if s.audit != nil {
		s.audit.Record(attempt)
	}
}
