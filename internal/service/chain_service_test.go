package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"coach-service/internal/models"
	"coach-service/internal/provider"
)

// stubProvider is a scriptable chain member for orchestration tests.
type stubProvider struct {
	name    string
	timeout time.Duration
	delay   time.Duration
	err     error

	mu    sync.Mutex
	calls int
}

func (p *stubProvider) Name() string           { return p.name }
func (p *stubProvider) Timeout() time.Duration { return p.timeout }

func (p *stubProvider) Attempt(ctx context.Context, in provider.Input) (*provider.Result, error) {
	p.mu.Lock()
	p.calls++
	p.mu.Unlock()

	if p.delay > 0 {
		select {
		case <-time.After(p.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if p.err != nil {
		return nil, p.err
	}
	return &provider.Result{
		Analysis: models.ValidationAnalysis{Score: 50, Verdict: "ok", Provider: p.name},
		Provider: p.name,
	}, nil
}

func (p *stubProvider) callCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls
}

// recordingSink captures attempt audit rows.
type recordingSink struct {
	mu       sync.Mutex
	attempts []models.ProviderAttempt
}

func (s *recordingSink) Record(a models.ProviderAttempt) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.attempts = append(s.attempts, a)
}

func (s *recordingSink) recorded() []models.ProviderAttempt {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.ProviderAttempt(nil), s.attempts...)
}

func TestChainFirstSuccessShortCircuits(t *testing.T) {
	first := &stubProvider{name: "first"}
	second := &stubProvider{name: "second"}
	chain := NewChainService([]provider.Provider{first, second}, nil, zap.NewNop())

	result, err := chain.Run(context.Background(), provider.Input{Title: "t", Description: "d"})
	require.NoError(t, err)
	assert.Equal(t, "first", result.Provider)
	assert.Equal(t, 1, first.callCount())
	assert.Equal(t, 0, second.callCount(), "later providers must not be attempted after a success")
}

func TestChainAdvancesPastFailures(t *testing.T) {
	first := &stubProvider{name: "first", err: errors.New("boom")}
	second := &stubProvider{name: "second", err: errors.New("also boom")}
	third := &stubProvider{name: "third"}
	chain := NewChainService([]provider.Provider{first, second, third}, nil, zap.NewNop())

	result, err := chain.Run(context.Background(), provider.Input{Title: "t"})
	require.NoError(t, err)
	assert.Equal(t, "third", result.Provider)
	assert.Equal(t, 1, first.callCount())
	assert.Equal(t, 1, second.callCount())
}

func TestChainExhaustionReturnsSingleAggregateError(t *testing.T) {
	first := &stubProvider{name: "first", err: errors.New("upstream 500")}
	second := &stubProvider{name: "second", err: errors.New("upstream 503")}
	chain := NewChainService([]provider.Provider{first, second}, nil, zap.NewNop())

	result, err := chain.Run(context.Background(), provider.Input{Title: "t"})
	assert.Nil(t, result)
	require.ErrorIs(t, err, ErrAllProvidersFailed)
	// Upstream detail stays out of the returned error.
	assert.NotContains(t, err.Error(), "upstream")
}

func TestChainEmptyReturnsErrNoProviders(t *testing.T) {
	chain := NewChainService(nil, nil, zap.NewNop())

	_, err := chain.Run(context.Background(), provider.Input{Title: "t"})
	assert.ErrorIs(t, err, ErrNoProviders)
}

func TestChainTimeoutAdvancesToNextProvider(t *testing.T) {
	slow := &stubProvider{name: "slow", timeout: 20 * time.Millisecond, delay: time.Second}
	fast := &stubProvider{name: "fast"}
	chain := NewChainService([]provider.Provider{slow, fast}, nil, zap.NewNop())

	started := time.Now()
	result, err := chain.Run(context.Background(), provider.Input{Title: "t"})
	require.NoError(t, err)
	assert.Equal(t, "fast", result.Provider)
	assert.Less(t, time.Since(started), 500*time.Millisecond,
		"the slow provider must be cut off at its own timeout")
}

func TestChainStopsWhenRequestContextDies(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	first := &stubProvider{name: "first", err: errors.New("boom")}
	second := &stubProvider{name: "second"}
	chain := NewChainService([]provider.Provider{first, second}, nil, zap.NewNop())

	_, err := chain.Run(ctx, provider.Input{Title: "t"})
	require.ErrorIs(t, err, ErrAllProvidersFailed)
	assert.Equal(t, 0, second.callCount(), "a dead request must not burn further providers")
}

func TestChainRecordsEveryAttempt(t *testing.T) {
	sink := &recordingSink{}
	first := &stubProvider{name: "first", err: errors.New("boom")}
	second := &stubProvider{name: "second"}
	chain := NewChainService([]provider.Provider{first, second}, sink, zap.NewNop())

	_, err := chain.Run(context.Background(), provider.Input{RequestID: "req-1", Title: "t"})
	require.NoError(t, err)

	attempts := sink.recorded()
	require.Len(t, attempts, 2)
	assert.Equal(t, "first", attempts[0].Provider)
	assert.Equal(t, models.AttemptError, attempts[0].Outcome)
	assert.Equal(t, "boom", attempts[0].Detail)
	assert.Equal(t, "second", attempts[1].Provider)
	assert.Equal(t, models.AttemptSuccess, attempts[1].Outcome)
	for _, a := range attempts {
		assert.Equal(t, "req-1", a.RequestID)
	}
}

func TestChainAssignsRequestIDWhenMissing(t *testing.T) {
	sink := &recordingSink{}
	chain := NewChainService([]provider.Provider{&stubProvider{name: "only"}}, sink, zap.NewNop())

	_, err := chain.Run(context.Background(), provider.Input{Title: "t"})
	require.NoError(t, err)

	attempts := sink.recorded()
	require.Len(t, attempts, 1)
	assert.NotEmpty(t, attempts[0].RequestID)
}
