package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	"coach-service/internal/client"
	"coach-service/internal/models"
	"coach-service/internal/repository"
	"coach-service/internal/util"
)

const (
	jobPrefix = "job:"
	jobTTL    = 48 * time.Hour
)

// updateJobScript guards the job state machine inside Redis so the write is
// atomic for a given id. Terminal states are sticky; backward transitions
// are ignored rather than rejected, tolerating at-least-once callbacks.
// Returns 0 = not found, 1 = updated, 2 = ignored.
const updateJobScript = `
local key = KEYS[1]
local next = ARGV[1]
local result = ARGV[2]
local err_msg = ARGV[3]
local now = ARGV[4]

local cur = redis.call('HGET', key, 'status')
if not cur then
    return 0
end
if cur == 'COMPLETED' or cur == 'FAILED' then
    return 2
end
if next == 'PROCESSING' and cur ~= 'PENDING' then
    return 2
end
if next == 'PENDING' then
    return 2
end

redis.call('HSET', key, 'status', next, 'updated_at', now)
if result ~= '' then
    redis.call('HSET', key, 'result', result)
end
if err_msg ~= '' then
    redis.call('HSET', key, 'error', err_msg)
end
return 1
`

// JobStore implements repository.JobStore on Redis hashes.
type JobStore struct {
	client *client.RedisClient
}

func NewJobStore(c *client.RedisClient) *JobStore {
	return &JobStore{client: c}
}

func (s *JobStore) Create(ctx context.Context, job *models.Job) error {
	key := jobPrefix + job.ID

	fields := []interface{}{
		"id", job.ID,
		"type", string(job.Type),
		"status", string(job.Status),
		"created_at", job.CreatedAt.Format(time.RFC3339Nano),
		"updated_at", job.UpdatedAt.Format(time.RFC3339Nano),
	}
	if len(job.Payload) > 0 {
		fields = append(fields, "payload", string(job.Payload))
	}

	if err := s.client.HSet(ctx, key, fields...); err != nil {
		return fmt.Errorf("failed to create job %s: %w", job.ID, err)
	}
	if err := s.client.Expire(ctx, key, jobTTL); err != nil {
		util.Warn("Failed to set job TTL", zap.String("job_id", job.ID), zap.Error(err))
	}
	return nil
}

func (s *JobStore) Get(ctx context.Context, id string) (*models.Job, error) {
	values, err := s.client.HGetAll(ctx, jobPrefix+id)
	if err != nil {
		return nil, fmt.Errorf("failed to read job %s: %w", id, err)
	}
	if len(values) == 0 {
		return nil, repository.ErrJobNotFound
	}
	return jobFromHash(values), nil
}

func (s *JobStore) Update(ctx context.Context, id string, status models.JobStatus, result json.RawMessage, errMsg string) (*models.Job, bool, error) {
	key := jobPrefix + id
	now := time.Now().UTC().Format(time.RFC3339Nano)

	code, err := s.client.Eval(ctx, updateJobScript, []string{key},
		string(status), string(result), errMsg, now)
	if err != nil {
		return nil, false, fmt.Errorf("failed to update job %s: %w", id, err)
	}

	applied := false
	switch code.(int64) {
	case 0:
		return nil, false, repository.ErrJobNotFound
	case 1:
		applied = true
	case 2:
		util.Debug("Job update ignored",
			zap.String("job_id", id),
			zap.String("requested_status", string(status)))
	}

	job, err := s.Get(ctx, id)
	return job, applied, err
}

func jobFromHash(values map[string]string) *models.Job {
	job := &models.Job{
		ID:     values["id"],
		Type:   models.JobType(values["type"]),
		Status: models.JobStatus(values["status"]),
		Error:  values["error"],
	}
	if p := values["payload"]; p != "" {
		job.Payload = json.RawMessage(p)
	}
	if r := values["result"]; r != "" {
		job.Result = json.RawMessage(r)
	}
	if t, err := time.Parse(time.RFC3339Nano, values["created_at"]); err == nil {
		job.CreatedAt = t
	}
	if t, err := time.Parse(time.RFC3339Nano, values["updated_at"]); err == nil {
		job.UpdatedAt = t
	}
	return job
}
