package bucketing

import (
	"hash"
	"sync"
	"time"

	"github.com/spaolacci/murmur3"

	"coach-service/internal/config"
)

// BucketingManager assigns idea records to partitions so write volume
// spreads across the idea table instead of piling onto one row per day.
type BucketingManager struct {
	ideaBuckets int
	hasherPool  sync.Pool
}

func NewBucketingManager(cfg *config.Config) *BucketingManager {
	bm := &BucketingManager{
		ideaBuckets: cfg.Bucketing.IdeaBuckets,
	}

	// Pool of hash functions to avoid allocation overhead
	bm.hasherPool = sync.Pool{
		New: func() interface{} {
			return murmur3.New64()
		},
	}

	return bm
}

// Buckets returns the configured bucket count.
func (bm *BucketingManager) Buckets() int {
	return bm.ideaBuckets
}

// IdeaBucket returns a consistent bucket for an idea id (0 to ideaBuckets-1).
func (bm *BucketingManager) IdeaBucket(id string) int {
	h := bm.hasherPool.Get().(hash.Hash64)
	defer func() {
		h.Reset()
		bm.hasherPool.Put(h)
	}()

	_, _ = h.Write([]byte(id))
	return int(h.Sum64() % uint64(bm.ideaBuckets))
}

// DayKey returns the UTC date partition key for a timestamp.
func (bm *BucketingManager) DayKey(t time.Time) string {
	return t.UTC().Format("2006-01-02")
}
