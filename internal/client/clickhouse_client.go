package client

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	ch "github.com/ClickHouse/clickhouse-go/v2"
	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
	"go.uber.org/zap"

	"coach-service/internal/config"
	"coach-service/internal/models"
	"coach-service/internal/util"
)

// ClickHouseClient writes provider attempt rows for offline analysis.
// Optional infrastructure; the audit sink drops rows when it is absent.
type ClickHouseClient struct {
	conn   driver.Conn
	config *config.ClickhouseConfig
}

func NewClickHouseClient(cfg *config.Config, logger *zap.Logger) (*ClickHouseClient, error) {
	chConfig := cfg.Clickhouse

	opts := &ch.Options{
		Addr: []string{extractHostPort(chConfig.URL)},
		Auth: ch.Auth{
			Username: chConfig.Username,
			Password: chConfig.Password,
			Database: chConfig.Database,
		},
		DialTimeout:      10 * time.Second,
		MaxOpenConns:     20,
		MaxIdleConns:     10,
		ConnMaxLifetime:  time.Hour,
		ConnOpenStrategy: ch.ConnOpenInOrder,
	}

	conn, err := ch.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open ClickHouse connection: %w", err)
	}

	util.Info("ClickHouse client initialized",
		zap.String("url", chConfig.URL),
		zap.String("database", chConfig.Database))

	return &ClickHouseClient{
		conn:   conn,
		config: &chConfig,
	}, nil
}

func (c *ClickHouseClient) HealthCheck(ctx context.Context) error {
	if err := c.conn.Ping(ctx); err != nil {
		return fmt.Errorf("clickhouse ping failed: %w", err)
	}
	return nil
}

func (c *ClickHouseClient) Close() error {
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}

// InsertAttempts batch-inserts provider attempt rows.
func (c *ClickHouseClient) InsertAttempts(ctx context.Context, attempts []models.ProviderAttempt) error {
	if len(attempts) == 0 {
		return nil
	}

	batch, err := c.conn.PrepareBatch(ctx,
		"INSERT INTO provider_attempts (request_id, provider, started_at, latency_ms, outcome, detail)")
	if err != nil {
		return fmt.Errorf("failed to prepare attempt batch: %w", err)
	}

	for _, a := range attempts {
		if err := batch.Append(
			a.RequestID,
			a.Provider,
			a.StartedAt,
			a.Latency.Milliseconds(),
			string(a.Outcome),
			a.Detail,
		); err != nil {
			return fmt.Errorf("failed to append attempt row: %w", err)
		}
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("failed to send attempt batch: %w", err)
	}
	return nil
}

func extractHostPort(raw string) string {
	if u, err := url.Parse(raw); err == nil && u.Host != "" {
		return u.Host
	}
	return strings.TrimPrefix(strings.TrimPrefix(raw, "clickhouse://"), "tcp://")
}
