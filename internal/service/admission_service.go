package service

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"coach-service/internal/hashing"
	"coach-service/internal/models"
	"coach-service/internal/repository"
	"coach-service/internal/util"
)

// Admission policies are fixed per endpoint; callers never choose their own.
var (
	PolicyValidatePerDay = models.RateLimitPolicy{Name: "validate", MaxRequests: 1, Window: 24 * time.Hour}
	PolicyAuthReset      = models.RateLimitPolicy{Name: "auth-reset", MaxRequests: 5, Window: 15 * time.Minute}
	PolicyCoachChat      = models.RateLimitPolicy{Name: "coach-chat", MaxRequests: 10, Window: time.Minute}
	PolicyNudge          = models.RateLimitPolicy{Name: "nudge", MaxRequests: 3, Window: time.Hour}
)

// unknownIdentifier pools all callers whose identity could not be resolved
// into one shared quota. Deliberate coarsening.
const unknownIdentifier = "unknown"

// AdmissionService is the sliding-window admission controller. With no
// counter store configured (or the store failing) it degrades open: every
// request is admitted and quota enforcement is suspended, because product
// availability must not depend on optional infrastructure.
type AdmissionService struct {
	store  repository.CounterStore // nil in degrade-open mode
	hasher *hashing.IdentifierHasher
	logger *zap.Logger

	degradeWarn sync.Once
}

func NewAdmissionService(store repository.CounterStore, hasher *hashing.IdentifierHasher, logger *zap.Logger) *AdmissionService {
	return &AdmissionService{
		store:  store,
		hasher: hasher,
		logger: logger,
	}
}

// Check runs one atomic check-and-record against the shared store. It never
// returns an error: store trouble is converted into an admit.
func (s *AdmissionService) Check(ctx context.Context, policy models.RateLimitPolicy, identifier string) models.RateLimitDecision {
	if identifier == "" {
		identifier = unknownIdentifier
	}
	key := policy.Name + ":" + identifier

	if s.store == nil {
		s.degradeWarn.Do(func() {
			s.logger.Warn("Admission controller running degrade-open: no counter store configured, all requests admitted")
		})
		return s.openDecision(policy)
	}

	allowed, count, oldestMs, err := s.store.SlidingWindow(ctx, key, policy.MaxRequests, policy.Window)
	if err != nil {
		util.Error("Admission check failed, admitting request",
			zap.String("policy", policy.Name),
			zap.String("identifier", identifier),
			zap.Error(err))
		return s.openDecision(policy)
	}

	remaining := policy.MaxRequests - count
	if remaining < 0 {
		remaining = 0
	}

	resetAt := time.Now().Add(policy.Window)
	if oldestMs > 0 {
		resetAt = time.UnixMilli(oldestMs).Add(policy.Window)
	}

	if !allowed {
		util.Info("Request rejected by admission controller",
			zap.String("policy", policy.Name),
			zap.String("identifier", identifier),
			zap.Int("count", count),
			zap.Int("limit", policy.MaxRequests))
	}

	return models.RateLimitDecision{
		Allowed:   allowed,
		Limit:     policy.MaxRequests,
		Remaining: remaining,
		ResetAt:   resetAt,
	}
}

// EmailKey derives a store-safe identifier from an email address. The raw
// address never reaches the counter store.
func (s *AdmissionService) EmailKey(prefix, email string) string {
	if email == "" {
		return unknownIdentifier
	}
	return prefix + "_" + s.hasher.HashIdentifier(email)
}

func (s *AdmissionService) openDecision(policy models.RateLimitPolicy) models.RateLimitDecision {
	return models.RateLimitDecision{
		Allowed:   true,
		Limit:     policy.MaxRequests,
		Remaining: policy.MaxRequests,
		ResetAt:   time.Now().Add(policy.Window),
	}
}
