// Package clickhouse holds the provider attempt audit sink. Attempts are
// buffered in-process and flushed in batches; the chain never waits on it.
package clickhouse

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"coach-service/internal/client"
	"coach-service/internal/models"
)

const (
	auditBufferSize = 1024
	flushInterval   = 5 * time.Second
	flushBatchSize  = 200
)

// AttemptAudit implements repository.AttemptSink on ClickHouse.
type AttemptAudit struct {
	client *client.ClickHouseClient
	logger *zap.Logger

	incoming chan models.ProviderAttempt
	done     chan struct{}
	wg       sync.WaitGroup
	dropped  int64
	mu       sync.Mutex
}

func NewAttemptAudit(c *client.ClickHouseClient, logger *zap.Logger) *AttemptAudit {
	a := &AttemptAudit{
		client:   c,
		logger:   logger,
		incoming: make(chan models.ProviderAttempt, auditBufferSize),
		done:     make(chan struct{}),
	}
	a.wg.Add(1)
	go a.run()
	return a
}

// Record enqueues an attempt without blocking. Rows are dropped when the
// buffer is full; admission and chain latency always win over audit.
func (a *AttemptAudit) Record(attempt models.ProviderAttempt) {
	select {
	case a.incoming <- attempt:
	default:
		a.mu.Lock()
		a.dropped++
		a.mu.Unlock()
	}
}

func (a *AttemptAudit) run() {
	defer a.wg.Done()

	ticker := time.NewTicker(flushInterval)
	defer ticker.Stop()

	var batch []models.ProviderAttempt
	flush := func() {
		if len(batch) == 0 {
			return
		}
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		if err := a.client.InsertAttempts(ctx, batch); err != nil {
			a.logger.Warn("Failed to flush provider attempt audit batch",
				zap.Int("batch_size", len(batch)),
				zap.Error(err))
		}
		cancel()
		batch = batch[:0]
	}

	for {
		select {
		case attempt := <-a.incoming:
			batch = append(batch, attempt)
			if len(batch) >= flushBatchSize {
				flush()
			}
		case <-ticker.C:
			flush()
		case <-a.done:
			for {
				select {
				case attempt := <-a.incoming:
					batch = append(batch, attempt)
				default:
					flush()
					return
				}
			}
		}
	}
}

// Close flushes buffered rows and stops the background writer.
func (a *AttemptAudit) Close() {
	close(a.done)
	a.wg.Wait()

	a.mu.Lock()
	dropped := a.dropped
	a.mu.Unlock()
	if dropped > 0 {
		a.logger.Warn("Provider attempt audit dropped rows under pressure",
			zap.Int64("dropped", dropped))
	}
}
