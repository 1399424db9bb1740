package scylla

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"coach-service/internal/bucketing"
	"coach-service/internal/client"
	"coach-service/internal/models"
	"coach-service/internal/util"
)

// IdeaRepository persists validated idea records. Rows land in Scylla,
// partitioned by (day, bucket); when Elasticsearch is configured the record
// is also indexed for search. Both writes run in parallel and the repository
// reports an error only when the primary (Scylla) write fails.
type IdeaRepository struct {
	client    *ScyllaClient
	esClient  *client.ESClient // nil when search indexing is disabled
	bucketing *bucketing.BucketingManager
	logger    *zap.Logger
}

func NewIdeaRepository(c *ScyllaClient, es *client.ESClient, bm *bucketing.BucketingManager, logger *zap.Logger) *IdeaRepository {
	return &IdeaRepository{
		client:    c,
		esClient:  es,
		bucketing: bm,
		logger:    logger,
	}
}

func (r *IdeaRepository) SaveIdea(ctx context.Context, rec *models.IdeaRecord) error {
	rec.Bucket = r.bucketing.IdeaBucket(rec.ID)
	day := r.bucketing.DayKey(rec.CreatedAt)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		err := r.client.Prepared.InsertIdea.WithContext(gctx).Bind(
			day, rec.Bucket, rec.CreatedAt, rec.ID, rec.JobID,
			rec.Title, rec.Description, rec.Score, rec.Verdict,
		).Exec()
		if err != nil {
			return fmt.Errorf("failed to insert idea %s: %w", rec.ID, err)
		}
		return nil
	})

	if r.esClient != nil {
		g.Go(func() error {
			body, err := json.Marshal(rec)
			if err != nil {
				return nil
			}
			// Index write is best-effort; never fail the save over it.
			if err := r.esClient.IndexDocument(gctx, rec.ID, body); err != nil {
				r.logger.Warn("Failed to index idea record",
					zap.String("idea_id", rec.ID),
					zap.Error(err))
			}
			return nil
		})
	}

	return g.Wait()
}

// RecentIdeas reads today's partitions in parallel, one query per bucket,
// and merges the results by recency.
func (r *IdeaRepository) RecentIdeas(ctx context.Context, limit int) ([]*models.IdeaRecord, error) {
	day := r.bucketing.DayKey(time.Now())

	var mu sync.Mutex
	var all []*models.IdeaRecord

	g, gctx := errgroup.WithContext(ctx)
	for bucket := 0; bucket < r.bucketing.Buckets(); bucket++ {
		bucket := bucket
		g.Go(func() error {
			iter := r.client.Prepared.SelectIdeasByDay.WithContext(gctx).Bind(day, bucket, limit).Iter()

			var batch []*models.IdeaRecord
			for {
				rec := &models.IdeaRecord{}
				if !iter.Scan(&rec.ID, &rec.Bucket, &rec.JobID, &rec.Title,
					&rec.Description, &rec.Score, &rec.Verdict, &rec.CreatedAt) {
					break
				}
				batch = append(batch, rec)
			}
			if err := iter.Close(); err != nil {
				return fmt.Errorf("failed to read ideas for bucket %d: %w", bucket, err)
			}

			mu.Lock()
			all = append(all, batch...)
			mu.Unlock()
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	sort.Slice(all, func(i, j int) bool { return all[i].CreatedAt.After(all[j].CreatedAt) })
	if limit > 0 && len(all) > limit {
		all = all[:limit]
	}

	util.Debug("Recent ideas read", zap.Int("count", len(all)))
	return all, nil
}
