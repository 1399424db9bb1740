package factory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"coach-service/internal/bucketing"
	"coach-service/internal/client"
	"coach-service/internal/config"
	"coach-service/internal/hashing"
	"coach-service/internal/provider"
	"coach-service/internal/repository"
	chrepo "coach-service/internal/repository/clickhouse"
	"coach-service/internal/repository/memory"
	redisrepo "coach-service/internal/repository/redis"
	"coach-service/internal/repository/scylla"
	"coach-service/internal/service"
	"coach-service/internal/util"
)

// Factory manages the lifecycle of all application dependencies. Optional
// infrastructure degrades with a warning instead of failing startup: the
// pipeline's availability never depends on any single backend.
type Factory struct {
	config *config.Config

	// Clients
	redisClient      *client.RedisClient
	scyllaClient     *scylla.ScyllaClient
	kafkaProducer    *client.KafkaProducer
	esClient         *client.ESClient
	clickhouseClient *client.ClickHouseClient

	// Stores
	counterStore repository.CounterStore
	jobStore     repository.JobStore
	ideaStore    repository.IdeaStore
	attemptAudit *chrepo.AttemptAudit

	// Managers
	hasher           *hashing.IdentifierHasher
	bucketingManager *bucketing.BucketingManager

	providers []provider.Provider

	serviceFactory *service.ServiceFactory

	closeOnce sync.Once
}

// NewFactory creates and initializes all application dependencies
func NewFactory() (*Factory, error) {
	cfg := config.LoadConfig()

	util.Init(cfg.Environment, cfg.Logging.Level, cfg.Logging.Format)

	factory := &Factory{
		config: cfg,
	}

	if err := factory.initializeClients(); err != nil {
		return nil, fmt.Errorf("failed to initialize clients: %w", err)
	}

	factory.initializeManagers()
	factory.initializeStores()
	factory.initializeProviders()

	util.Info("Factory initialized successfully",
		util.String("environment", cfg.Environment),
		util.Bool("rate_limit_enforced", factory.counterStore != nil),
		util.Bool("workflow_engine", cfg.Capabilities.WorkflowEngine),
		util.Bool("primary_ai", cfg.Capabilities.PrimaryAI),
		util.Bool("events_topic", factory.kafkaProducer != nil),
		util.Bool("attempt_audit", factory.clickhouseClient != nil),
	)

	return factory, nil
}

// initializeClients initializes external service clients with health checks.
// Only Redis in production is load-bearing enough to abort startup over.
func (f *Factory) initializeClients() error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	caps := f.config.Capabilities

	// Redis backs admission counters and job records
	if caps.RateLimitEnforced {
		if c, err := client.NewRedisClient(f.config, util.Get()); err != nil {
			if f.config.IsProduction() {
				return fmt.Errorf("redis: %w", err)
			}
			util.Warn("Redis initialization failed - admission degrades open, jobs held in memory", util.ErrorField(err))
		} else {
			f.redisClient = c
			if err := f.redisClient.HealthCheck(ctx); err != nil {
				util.Warn("Redis health check failed", util.ErrorField(err))
			} else {
				util.Info("Redis client initialized and healthy")
			}
		}
	} else {
		util.Warn("No Redis configured - admission controller degrades open")
	}

	// Scylla holds derived idea records
	if caps.IdeaStore {
		if c, err := scylla.NewScyllaClient(f.config, util.Get()); err != nil {
			util.Warn("Scylla initialization failed - idea records held in memory", util.ErrorField(err))
		} else {
			f.scyllaClient = c
			util.Info("ScyllaDB client initialized")
		}
	}

	// Kafka carries completion events; never blocks startup
	if caps.EventsTopic {
		if producer, err := client.NewKafkaProducer(f.config, util.Get()); err != nil {
			util.Warn("Kafka producer initialization failed - proceeding without events", util.ErrorField(err))
		} else {
			f.kafkaProducer = producer
			util.Info("Kafka producer initialized")
		}
	}

	// Elasticsearch mirrors idea records for search
	if caps.IdeaIndex {
		if c, err := client.NewElasticsearchClient(f.config, util.Get()); err != nil {
			util.Warn("Elasticsearch initialization failed - proceeding without idea index", util.ErrorField(err))
		} else {
			f.esClient = c
			util.Info("Elasticsearch client initialized and healthy")
		}
	}

	// ClickHouse receives the provider attempt audit trail
	if caps.AttemptAudit {
		if c, err := client.NewClickHouseClient(f.config, util.Get()); err != nil {
			util.Warn("ClickHouse initialization failed - proceeding without attempt audit", util.ErrorField(err))
		} else {
			f.clickhouseClient = c
			if err := f.clickhouseClient.HealthCheck(ctx); err != nil {
				util.Warn("ClickHouse health check failed", util.ErrorField(err))
			} else {
				util.Info("ClickHouse client initialized and healthy")
			}
		}
	}

	return nil
}

func (f *Factory) initializeManagers() {
	f.hasher = hashing.NewIdentifierHasher(f.config)
	f.bucketingManager = bucketing.NewBucketingManager(f.config)
}

func (f *Factory) initializeStores() {
	if f.redisClient != nil {
		f.counterStore = redisrepo.NewCounterStore(f.redisClient)
		f.jobStore = redisrepo.NewJobStore(f.redisClient)
	} else {
		// counterStore stays nil: that is the degrade-open signal.
		f.jobStore = memory.NewJobStore()
		util.Warn("Job records are in-memory only; restarts lose pending jobs")
	}

	if f.scyllaClient != nil {
		f.ideaStore = scylla.NewIdeaRepository(f.scyllaClient, f.esClient, f.bucketingManager, util.Get())
	} else {
		f.ideaStore = memory.NewIdeaStore()
	}

	if f.clickhouseClient != nil {
		f.attemptAudit = chrepo.NewAttemptAudit(f.clickhouseClient, util.Get())
	}
}

// initializeProviders assembles the fallback chain from whichever backends
// have credentials. The heuristic scorer is always present and always last.
func (f *Factory) initializeProviders() {
	p := f.config.Providers

	if f.config.Capabilities.WorkflowEngine {
		f.providers = append(f.providers,
			provider.NewWorkflowProvider(p.WorkflowURL, p.WorkflowToken, p.WorkflowTimeout))
	}
	if f.config.Capabilities.PrimaryAI {
		f.providers = append(f.providers,
			provider.NewOpenAIProvider(p.OpenAIKey, p.OpenAIBaseURL, p.OpenAIModel, p.OpenAITimeout))
	}
	f.providers = append(f.providers, provider.NewHeuristicProvider())
}

// ServiceFactory returns the lazily-built service factory.
func (f *Factory) ServiceFactory() *service.ServiceFactory {
	if f.serviceFactory == nil {
		var audit repository.AttemptSink
		if f.attemptAudit != nil {
			audit = f.attemptAudit
		}
		f.serviceFactory = service.NewServiceFactory(
			f.counterStore,
			f.jobStore,
			f.ideaStore,
			audit,
			f.kafkaProducer,
			f.providers,
			f.hasher,
			f.config.Dispatch,
			util.Get(),
		)
	}
	return f.serviceFactory
}

// HealthCheck reports per-backend health for the optional infrastructure.
func (f *Factory) HealthCheck(ctx context.Context) map[string]error {
	healthErrors := make(map[string]error)

	if f.redisClient != nil {
		if err := f.redisClient.HealthCheck(ctx); err != nil {
			healthErrors["redis"] = err
		}
	}
	if f.scyllaClient != nil {
		if err := f.scyllaClient.HealthCheck(); err != nil {
			healthErrors["scylla"] = err
		}
	}
	if f.kafkaProducer != nil {
		if err := f.kafkaProducer.HealthCheck(ctx); err != nil {
			healthErrors["kafka"] = err
		}
	}
	if f.clickhouseClient != nil {
		if err := f.clickhouseClient.HealthCheck(ctx); err != nil {
			healthErrors["clickhouse"] = err
		}
	}

	return healthErrors
}

func (f *Factory) Close() error {
	f.closeOnce.Do(func() {
		util.Info("Shutting down factory...")

		if f.serviceFactory != nil {
			f.serviceFactory.Cleanup()
			util.Info("Service factory cleaned up")
		}

		if f.attemptAudit != nil {
			f.attemptAudit.Close()
			util.Info("Attempt audit flushed and closed")
		}

		if f.clickhouseClient != nil {
			if err := f.clickhouseClient.Close(); err != nil {
				util.Error("Failed to close ClickHouse client", util.ErrorField(err))
			} else {
				util.Info("ClickHouse client closed")
			}
		}

		if f.esClient != nil {
			f.esClient.Close()
			util.Info("Elasticsearch client closed")
		}

		if f.kafkaProducer != nil {
			if err := f.kafkaProducer.Close(); err != nil {
				util.Error("Failed to close Kafka producer", util.ErrorField(err))
			} else {
				util.Info("Kafka producer closed")
			}
		}

		if f.scyllaClient != nil {
			f.scyllaClient.Close()
			util.Info("ScyllaDB client closed")
		}

		if f.redisClient != nil {
			if err := f.redisClient.Close(); err != nil {
				util.Error("Failed to close Redis client", util.ErrorField(err))
			} else {
				util.Info("Redis client closed")
			}
		}

		util.Sync()
		util.Info("Factory shutdown completed")
	})

	return nil
}

func (f *Factory) Config() *config.Config {
	return f.config
}
