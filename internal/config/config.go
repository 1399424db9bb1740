package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all environment-derived settings for the service.
type Config struct {
	Environment string

	Server        ServerConfig
	Logging       LoggingConfig
	Redis         RedisConfig
	Scylla        ScyllaConfig
	Kafka         KafkaConfig
	Clickhouse    ClickhouseConfig
	Elasticsearch ElasticsearchConfig
	Providers     ProviderConfig
	Dispatch      DispatchConfig
	Hashing       HashingConfig
	Bucketing     BucketingConfig

	Capabilities Capabilities
}

type ServerConfig struct {
	Host         string
	Port         int
	CertFile     string
	KeyFile      string
	EnableTLS    bool
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

type LoggingConfig struct {
	Level  string
	Format string
}

type RedisConfig struct {
	URL      string
	Password string
	DB       int
	PoolSize int
}

type ScyllaConfig struct {
	Nodes    []string
	Keyspace string
	Username string
	Password string
}

type KafkaConfig struct {
	Brokers     []string
	EventsTopic string
}

type ClickhouseConfig struct {
	URL      string
	Username string
	Password string
	Database string
}

type ElasticsearchConfig struct {
	URL       string
	Username  string
	Password  string
	IdeaIndex string
}

// ProviderConfig configures the fallback chain members. A provider with an
// empty URL/key is excluded from the chain entirely rather than attempted.
type ProviderConfig struct {
	WorkflowURL     string
	WorkflowToken   string
	WorkflowTimeout time.Duration
	OpenAIKey       string
	OpenAIBaseURL   string
	OpenAIModel     string
	OpenAITimeout   time.Duration
}

type DispatchConfig struct {
	EngineURL string
	Timeout   time.Duration
}

type HashingConfig struct {
	IdentifierPepper string
}

type BucketingConfig struct {
	IdeaBuckets int
}

// Capabilities are computed once at load time from which credentials are
// present. Components receive these flags instead of re-checking env vars
// at each call site.
type Capabilities struct {
	RateLimitEnforced bool // Redis configured; false means the limiter degrades open
	WorkflowEngine    bool
	PrimaryAI         bool
	IdeaStore         bool
	IdeaIndex         bool
	EventsTopic       bool
	AttemptAudit      bool
	Dispatcher        bool
}

var (
	global *Config
	mu     sync.RWMutex
)

// LoadConfig reads configuration from the environment. A local .env file is
// loaded first when present; real environment variables win.
func LoadConfig() *Config {
	_ = godotenv.Load()

	cfg := &Config{
		Environment: getEnv("ENVIRONMENT", "development"),
		Server: ServerConfig{
			Host:         getEnv("SERVER_HOST", "0.0.0.0"),
			Port:         getEnvInt("SERVER_PORT", 8080),
			CertFile:     getEnv("SERVER_CERT_FILE", ""),
			KeyFile:      getEnv("SERVER_KEY_FILE", ""),
			ReadTimeout:  getEnvDuration("SERVER_READ_TIMEOUT", 15*time.Second),
			WriteTimeout: getEnvDuration("SERVER_WRITE_TIMEOUT", 60*time.Second),
			IdleTimeout:  getEnvDuration("SERVER_IDLE_TIMEOUT", 120*time.Second),
		},
		Logging: LoggingConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
		},
		Redis: RedisConfig{
			URL:      getEnv("REDIS_URL", ""),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvInt("REDIS_DB", 0),
			PoolSize: getEnvInt("REDIS_POOL_SIZE", 50),
		},
		Scylla: ScyllaConfig{
			Nodes:    splitList(getEnv("SCYLLA_NODES", "")),
			Keyspace: getEnv("SCYLLA_KEYSPACE", "coach"),
			Username: getEnv("SCYLLA_USERNAME", ""),
			Password: getEnv("SCYLLA_PASSWORD", ""),
		},
		Kafka: KafkaConfig{
			Brokers:     splitList(getEnv("KAFKA_BROKERS", "")),
			EventsTopic: getEnv("KAFKA_EVENTS_TOPIC", "idea-events"),
		},
		Clickhouse: ClickhouseConfig{
			URL:      getEnv("CLICKHOUSE_URL", ""),
			Username: getEnv("CLICKHOUSE_USERNAME", "default"),
			Password: getEnv("CLICKHOUSE_PASSWORD", ""),
			Database: getEnv("CLICKHOUSE_DATABASE", "coach"),
		},
		Elasticsearch: ElasticsearchConfig{
			URL:       getEnv("ELASTICSEARCH_URL", ""),
			Username:  getEnv("ELASTICSEARCH_USERNAME", ""),
			Password:  getEnv("ELASTICSEARCH_PASSWORD", ""),
			IdeaIndex: getEnv("ELASTICSEARCH_IDEA_INDEX", "ideas"),
		},
		Providers: ProviderConfig{
			WorkflowURL:     getEnv("WORKFLOW_WEBHOOK_URL", ""),
			WorkflowToken:   getEnv("WORKFLOW_WEBHOOK_TOKEN", ""),
			WorkflowTimeout: getEnvDuration("WORKFLOW_TIMEOUT", 10*time.Second),
			OpenAIKey:       getEnv("OPENAI_API_KEY", ""),
			OpenAIBaseURL:   getEnv("OPENAI_BASE_URL", "https://api.openai.com/v1"),
			OpenAIModel:     getEnv("OPENAI_MODEL", "gpt-4o-mini"),
			OpenAITimeout:   getEnvDuration("OPENAI_TIMEOUT", 8*time.Second),
		},
		Dispatch: DispatchConfig{
			EngineURL: getEnv("DISPATCH_ENGINE_URL", ""),
			Timeout:   getEnvDuration("DISPATCH_TIMEOUT", 5*time.Second),
		},
		Hashing: HashingConfig{
			IdentifierPepper: getEnv("IDENTIFIER_PEPPER", "coach-service-dev-pepper"),
		},
		Bucketing: BucketingConfig{
			IdeaBuckets: getEnvInt("IDEA_BUCKETS", 16),
		},
	}

	cfg.Capabilities = Capabilities{
		RateLimitEnforced: cfg.Redis.URL != "",
		WorkflowEngine:    cfg.Providers.WorkflowURL != "",
		PrimaryAI:         cfg.Providers.OpenAIKey != "",
		IdeaStore:         len(cfg.Scylla.Nodes) > 0,
		IdeaIndex:         cfg.Elasticsearch.URL != "",
		EventsTopic:       len(cfg.Kafka.Brokers) > 0,
		AttemptAudit:      cfg.Clickhouse.URL != "",
		Dispatcher:        cfg.Dispatch.EngineURL != "",
	}

	cfg.Server.EnableTLS = cfg.Server.CertFile != "" && cfg.Server.KeyFile != ""

	mu.Lock()
	global = cfg
	mu.Unlock()

	return cfg
}

// Get returns the last loaded configuration, loading it on first use.
func Get() *Config {
	mu.RLock()
	cfg := global
	mu.RUnlock()
	if cfg != nil {
		return cfg
	}
	return LoadConfig()
}

func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

func (c *Config) IsDevelopment() bool {
	return !c.IsProduction()
}

func (c *Config) GetServerAddress() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func splitList(value string) []string {
	if value == "" {
		return nil
	}
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
