// Package memory provides in-process implementations of the storage
// interfaces. The factory falls back to these when Redis is not configured
// (single-instance development mode) and tests use them directly.
package memory

import (
	"context"
	"encoding/json"
	"sort"
	"sync"
	"time"

	"coach-service/internal/models"
	"coach-service/internal/repository"
)

// CounterStore keeps sliding-window events per key under one mutex, which
// gives the same check-and-record atomicity the Redis script provides.
type CounterStore struct {
	mu     sync.Mutex
	events map[string][]int64 // epoch millis, ascending
}

func NewCounterStore() *CounterStore {
	return &CounterStore{events: make(map[string][]int64)}
}

func (s *CounterStore) SlidingWindow(_ context.Context, key string, limit int, window time.Duration) (bool, int, int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	nowMs := time.Now().UnixMilli()
	windowStart := nowMs - window.Milliseconds()

	kept := s.events[key][:0]
	for _, ts := range s.events[key] {
		if ts > windowStart {
			kept = append(kept, ts)
		}
	}

	allowed := len(kept) < limit
	if allowed {
		kept = append(kept, nowMs)
	}
	s.events[key] = kept

	var oldest int64
	if len(kept) > 0 {
		oldest = kept[0]
	}
	return allowed, len(kept), oldest, nil
}

// JobStore is a mutex-guarded map with the same transition rules as the
// Redis Lua script: terminal states sticky, no backward moves.
type JobStore struct {
	mu   sync.RWMutex
	jobs map[string]*models.Job
}

func NewJobStore() *JobStore {
	return &JobStore{jobs: make(map[string]*models.Job)}
}

func (s *JobStore) Create(_ context.Context, job *models.Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs[job.ID] = cloneJob(job)
	return nil
}

func (s *JobStore) Get(_ context.Context, id string) (*models.Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	job, ok := s.jobs[id]
	if !ok {
		return nil, repository.ErrJobNotFound
	}
	return cloneJob(job), nil
}

func (s *JobStore) Update(_ context.Context, id string, status models.JobStatus, result json.RawMessage, errMsg string) (*models.Job, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.jobs[id]
	if !ok {
		return nil, false, repository.ErrJobNotFound
	}

	applied := job.Status.CanTransitionTo(status)
	if applied {
		job.Status = status
		job.UpdatedAt = time.Now().UTC()
		if len(result) > 0 {
			job.Result = append(json.RawMessage(nil), result...)
		}
		if errMsg != "" {
			job.Error = errMsg
		}
	}
	return cloneJob(job), applied, nil
}

// IdeaStore is the in-memory idea record store used when Scylla is absent.
type IdeaStore struct {
	mu    sync.RWMutex
	ideas []*models.IdeaRecord
}

func NewIdeaStore() *IdeaStore {
	return &IdeaStore{}
}

func (s *IdeaStore) SaveIdea(_ context.Context, rec *models.IdeaRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	clone := *rec
	s.ideas = append(s.ideas, &clone)
	return nil
}

func (s *IdeaStore) RecentIdeas(_ context.Context, limit int) ([]*models.IdeaRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*models.IdeaRecord, len(s.ideas))
	for i, rec := range s.ideas {
		clone := *rec
		out[i] = &clone
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func cloneJob(job *models.Job) *models.Job {
	clone := *job
	clone.Payload = append(json.RawMessage(nil), job.Payload...)
	clone.Result = append(json.RawMessage(nil), job.Result...)
	return &clone
}
