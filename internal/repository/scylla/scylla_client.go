package scylla

import (
	"fmt"
	"time"

	"github.com/gocql/gocql"
	"go.uber.org/zap"

	"coach-service/internal/config"
	"coach-service/internal/util"
)

// PreparedStatements holds the statements the idea repository uses.
type PreparedStatements struct {
	InsertIdea       *gocql.Query
	SelectIdeasByDay *gocql.Query
}

type ScyllaClient struct {
	Session  *gocql.Session
	config   *config.ScyllaConfig
	Prepared *PreparedStatements
}

func NewScyllaClient(cfg *config.Config, logger *zap.Logger) (*ScyllaClient, error) {
	scyllaConfig := cfg.Scylla

	cluster := gocql.NewCluster(scyllaConfig.Nodes...)
	cluster.Keyspace = scyllaConfig.Keyspace
	cluster.Consistency = gocql.LocalQuorum
	cluster.Timeout = 10 * time.Second
	cluster.ConnectTimeout = 10 * time.Second
	cluster.NumConns = 2
	cluster.SocketKeepalive = 30 * time.Second
	cluster.PageSize = 1000
	cluster.RetryPolicy = &gocql.ExponentialBackoffRetryPolicy{
		Min:        time.Second,
		Max:        10 * time.Second,
		NumRetries: 3,
	}

	if scyllaConfig.Username != "" && scyllaConfig.Password != "" {
		cluster.Authenticator = gocql.PasswordAuthenticator{
			Username: scyllaConfig.Username,
			Password: scyllaConfig.Password,
		}
	}

	session, err := cluster.CreateSession()
	if err != nil {
		return nil, fmt.Errorf("failed to create scylla session: %w", err)
	}

	client := &ScyllaClient{
		Session: session,
		config:  &scyllaConfig,
	}
	client.prepareStatements()

	util.Info("ScyllaDB client initialized",
		zap.Strings("nodes", scyllaConfig.Nodes),
		zap.String("keyspace", scyllaConfig.Keyspace))

	return client, nil
}

func (c *ScyllaClient) prepareStatements() {
	c.Prepared = &PreparedStatements{
		InsertIdea: c.Session.Query(
			`INSERT INTO ideas_by_day (day, bucket, created_at, id, job_id, title, description, score, verdict)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`),
		SelectIdeasByDay: c.Session.Query(
			`SELECT id, bucket, job_id, title, description, score, verdict, created_at
			 FROM ideas_by_day WHERE day = ? AND bucket = ? LIMIT ?`),
	}
}

func (c *ScyllaClient) HealthCheck() error {
	if c.Session == nil || c.Session.Closed() {
		return fmt.Errorf("scylla session not available")
	}
	return c.Session.Query("SELECT now() FROM system.local").Exec()
}

func (c *ScyllaClient) Close() {
	if c.Session != nil {
		c.Session.Close()
	}
}
