package memory

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"coach-service/internal/models"
	"coach-service/internal/repository"
)

func TestCounterStoreSlidingWindow(t *testing.T) {
	store := NewCounterStore()
	ctx := context.Background()

	allowed, count, oldest, err := store.SlidingWindow(ctx, "k", 2, time.Minute)
	require.NoError(t, err)
	assert.True(t, allowed)
	assert.Equal(t, 1, count)
	assert.NotZero(t, oldest)

	allowed, count, _, err = store.SlidingWindow(ctx, "k", 2, time.Minute)
	require.NoError(t, err)
	assert.True(t, allowed)
	assert.Equal(t, 2, count)

	allowed, count, oldest, err = store.SlidingWindow(ctx, "k", 2, time.Minute)
	require.NoError(t, err)
	assert.False(t, allowed)
	assert.Equal(t, 2, count, "rejected requests must not be recorded")
	assert.LessOrEqual(t, oldest, time.Now().UnixMilli())
}

func TestCounterStoreRejectedRequestsDoNotExtendWindow(t *testing.T) {
	store := NewCounterStore()
	ctx := context.Background()

	allowed, _, _, err := store.SlidingWindow(ctx, "k", 1, 50*time.Millisecond)
	require.NoError(t, err)
	require.True(t, allowed)

	// Hammering while over quota must not push the reset further out.
	for i := 0; i < 5; i++ {
		allowed, _, _, err = store.SlidingWindow(ctx, "k", 1, 50*time.Millisecond)
		require.NoError(t, err)
		require.False(t, allowed)
	}

	time.Sleep(60 * time.Millisecond)

	allowed, _, _, err = store.SlidingWindow(ctx, "k", 1, 50*time.Millisecond)
	require.NoError(t, err)
	assert.True(t, allowed)
}

func TestJobStoreLifecycle(t *testing.T) {
	store := NewJobStore()
	ctx := context.Background()

	job := &models.Job{
		ID:      "j1",
		Type:    models.JobTypeValidation,
		Status:  models.JobStatusPending,
		Payload: json.RawMessage(`{"a":1}`),
	}
	require.NoError(t, store.Create(ctx, job))

	got, err := store.Get(ctx, "j1")
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusPending, got.Status)

	// Mutating the returned copy must not leak into the store.
	got.Status = models.JobStatusFailed
	got, err = store.Get(ctx, "j1")
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusPending, got.Status)

	updated, applied, err := store.Update(ctx, "j1", models.JobStatusCompleted, json.RawMessage(`{"ok":true}`), "")
	require.NoError(t, err)
	assert.True(t, applied)
	assert.Equal(t, models.JobStatusCompleted, updated.Status)

	// Terminal-sticky: the late FAILED is reported as ignored.
	updated, applied, err = store.Update(ctx, "j1", models.JobStatusFailed, nil, "late")
	require.NoError(t, err)
	assert.False(t, applied)
	assert.Equal(t, models.JobStatusCompleted, updated.Status)
	assert.Empty(t, updated.Error)
}

func TestJobStoreUnknownID(t *testing.T) {
	store := NewJobStore()

	_, err := store.Get(context.Background(), "missing")
	assert.ErrorIs(t, err, repository.ErrJobNotFound)

	_, _, err = store.Update(context.Background(), "missing", models.JobStatusCompleted, nil, "")
	assert.ErrorIs(t, err, repository.ErrJobNotFound)
}

func TestIdeaStoreRecentOrderAndLimit(t *testing.T) {
	store := NewIdeaStore()
	ctx := context.Background()

	base := time.Now().UTC()
	for i := 0; i < 5; i++ {
		require.NoError(t, store.SaveIdea(ctx, &models.IdeaRecord{
			ID:        string(rune('a' + i)),
			CreatedAt: base.Add(time.Duration(i) * time.Second),
		}))
	}

	recs, err := store.RecentIdeas(ctx, 3)
	require.NoError(t, err)
	require.Len(t, recs, 3)
	assert.Equal(t, "e", recs[0].ID)
	assert.Equal(t, "d", recs[1].ID)
	assert.Equal(t, "c", recs[2].ID)
}
