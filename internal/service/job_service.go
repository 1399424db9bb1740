package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"coach-service/internal/client"
	"coach-service/internal/models"
	"coach-service/internal/repository"
	"coach-service/internal/util"
)

var (
	ErrJobNotFound      = repository.ErrJobNotFound
	ErrInvalidJobInput  = errors.New("invalid job input")
	ErrInvalidJobStatus = errors.New("invalid job status")
)

// JobService tracks asynchronous work units. Jobs are created by the
// triggering request handler and mutated afterwards only through
// CompleteJob, driven by the external engine's callback.
type JobService struct {
	store  repository.JobStore
	ideas  repository.IdeaStore  // nil when no record store is configured
	events *client.KafkaProducer // nil when the events topic is disabled
	logger *zap.Logger
}

func NewJobService(store repository.JobStore, ideas repository.IdeaStore, events *client.KafkaProducer, logger *zap.Logger) *JobService {
	return &JobService{
		store:  store,
		ideas:  ideas,
		events: events,
		logger: logger,
	}
}

// CreateJob allocates a new PENDING job. Fast and local: no external engine
// call happens here.
func (s *JobService) CreateJob(ctx context.Context, jobType models.JobType, payload json.RawMessage) (*models.Job, error) {
	if !jobType.IsValid() {
		return nil, fmt.Errorf("%w: unknown job type %q", ErrInvalidJobInput, jobType)
	}

	now := time.Now().UTC()
	job := &models.Job{
		ID:        uuid.NewString(),
		Type:      jobType,
		Status:    models.JobStatusPending,
		Payload:   payload,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := s.store.Create(ctx, job); err != nil {
		return nil, fmt.Errorf("failed to create job: %w", err)
	}

	s.logger.Info("Job created",
		util.String("job_id", job.ID),
		util.String("type", string(jobType)))

	return job, nil
}

// MarkProcessing records that the external engine picked the job up.
func (s *JobService) MarkProcessing(ctx context.Context, id string) (*models.Job, error) {
	job, _, err := s.store.Update(ctx, id, models.JobStatusProcessing, nil, "")
	return job, err
}

// GetJob returns the current job state, ErrJobNotFound for unknown ids.
func (s *JobService) GetJob(ctx context.Context, id string) (*models.Job, error) {
	return s.store.Get(ctx, id)
}

// CompleteJob applies a terminal callback. Duplicate terminal calls are
// no-ops that return the stored job; the completion side effect (persisting
// the validated idea, publishing the event) runs only on the call that
// actually lands the transition, and its failure is logged, never surfaced.
func (s *JobService) CompleteJob(ctx context.Context, id string, status models.JobStatus, result json.RawMessage, errMsg string) (*models.Job, error) {
	if !status.IsTerminal() {
		return nil, fmt.Errorf("%w: %q is not terminal", ErrInvalidJobStatus, status)
	}

	job, applied, err := s.store.Update(ctx, id, status, result, errMsg)
	if err != nil {
		return nil, err
	}

	if applied && job.Status == models.JobStatusCompleted && job.Type == models.JobTypeValidation {
		s.persistValidatedIdea(ctx, job)
	}

	s.logger.Info("Job completion processed",
		util.String("job_id", id),
		util.String("status", string(job.Status)),
		util.Bool("applied", applied))

	return job, nil
}

// ideaEvent is the payload published to the events topic on completion.
type ideaEvent struct {
	JobID   string    `json:"job_id"`
	IdeaID  string    `json:"idea_id"`
	Score   int       `json:"score"`
	Verdict string    `json:"verdict"`
	At      time.Time `json:"at"`
}

func (s *JobService) persistValidatedIdea(ctx context.Context, job *models.Job) {
	var analysis models.ValidationAnalysis
	if err := json.Unmarshal(job.Result, &analysis); err != nil {
		s.logger.Warn("Completed validation job has unparseable result, skipping idea record",
			util.String("job_id", job.ID),
			util.ErrorField(err))
		return
	}

	var req models.ValidateRequest
	if len(job.Payload) > 0 {
		_ = json.Unmarshal(job.Payload, &req)
	}

	rec := &models.IdeaRecord{
		ID:          uuid.NewString(),
		JobID:       job.ID,
		Title:       req.Title,
		Description: req.Description,
		Score:       analysis.Score,
		Verdict:     analysis.Verdict,
		CreatedAt:   time.Now().UTC(),
	}

	if s.ideas != nil {
		if err := s.ideas.SaveIdea(ctx, rec); err != nil {
			// Secondary write only; the job's own completion is authoritative.
			s.logger.Error("Failed to persist validated idea record",
				util.String("job_id", job.ID),
				util.String("idea_id", rec.ID),
				util.ErrorField(err))
		}
	}

	if s.events != nil {
		event, err := json.Marshal(ideaEvent{
			JobID:   job.ID,
			IdeaID:  rec.ID,
			Score:   analysis.Score,
			Verdict: analysis.Verdict,
			At:      rec.CreatedAt,
		})
		if err == nil {
			if err := s.events.Publish(ctx, []byte(job.ID), event); err != nil {
				s.logger.Warn("Failed to publish idea completion event",
					util.String("job_id", job.ID),
					util.ErrorField(err))
			}
		}
	}
}

// RecentIdeas exposes the derived record store for diagnostics reads.
func (s *JobService) RecentIdeas(ctx context.Context, limit int) ([]*models.IdeaRecord, error) {
	if s.ideas == nil {
		return nil, nil
	}
	return s.ideas.RecentIdeas(ctx, limit)
}
