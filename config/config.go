package config

import (
	"fmt"
	"net/url"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Log backends supported by the log match source
const (
	LogBackendSQLite     = "sqlite"
	LogBackendClickHouse = "clickhouse"
	LogBackendMongoDB    = "mongodb"
)

// DataPaths holds data directory and file path configuration
type DataPaths struct {
	// DataDir is the base data directory (IOCHUNT_DATA_DIR, default: ./data)
	DataDir string `mapstructure:"data_dir"`
	// SQLitePath is the SQLite database file path (IOCHUNT_SQLITE_PATH, default: ${DataDir}/iochunt.db)
	SQLitePath string `mapstructure:"sqlite_path"`
}

// SourceConfig tunes one match source adapter
type SourceConfig struct {
	ResultCap int           `mapstructure:"result_cap"`
	Timeout   time.Duration `mapstructure:"timeout"`
}

// Config holds all configuration for the hunt service
type Config struct {
	DataPaths DataPaths `mapstructure:"data_paths"`

	API struct {
		Host      string `mapstructure:"host"`
		Port      int    `mapstructure:"port"`
		RateLimit struct {
			RequestsPerSecond float64 `mapstructure:"requests_per_second"`
			Burst             int     `mapstructure:"burst"`
		} `mapstructure:"rate_limit"`
		ReadTimeout  time.Duration `mapstructure:"read_timeout"`
		WriteTimeout time.Duration `mapstructure:"write_timeout"`
		Swagger      bool          `mapstructure:"swagger"`
	} `mapstructure:"api"`

	Hunt struct {
		MaxConcurrentHunts   int           `mapstructure:"max_concurrent_hunts"`
		MaxConcurrentQueries int           `mapstructure:"max_concurrent_queries"`
		MaxHuntDuration      time.Duration `mapstructure:"max_hunt_duration"`
		ShutdownTimeout      time.Duration `mapstructure:"shutdown_timeout"`
	} `mapstructure:"hunt"`

	Sources struct {
		Inventory SourceConfig `mapstructure:"inventory"`
		Log       struct {
			SourceConfig `mapstructure:",squash"`
			Backend      string `mapstructure:"backend"`
		} `mapstructure:"log"`
		CircuitBreaker struct {
			MaxFailures uint32        `mapstructure:"max_failures"`
			Timeout     time.Duration `mapstructure:"timeout"`
		} `mapstructure:"circuit_breaker"`
	} `mapstructure:"sources"`

	ClickHouse struct {
		Addr        string `mapstructure:"addr"`
		Database    string `mapstructure:"database"`
		Username    string `mapstructure:"username"`
		Password    string `mapstructure:"password"`
		TLS         bool   `mapstructure:"tls"`
		MaxPoolSize int    `mapstructure:"max_pool_size"`
	} `mapstructure:"clickhouse"`

	MongoDB struct {
		URI         string `mapstructure:"uri"`
		Database    string `mapstructure:"database"`
		Collection  string `mapstructure:"collection"`
		MaxPoolSize uint64 `mapstructure:"max_pool_size"`
	} `mapstructure:"mongodb"`

	Redis struct {
		Enabled  bool          `mapstructure:"enabled"`
		Addr     string        `mapstructure:"addr"`
		Password string        `mapstructure:"password"`
		DB       int           `mapstructure:"db"`
		LockTTL  time.Duration `mapstructure:"lock_ttl"`
	} `mapstructure:"redis"`

	NATS struct {
		Enabled       bool          `mapstructure:"enabled"`
		URL           string        `mapstructure:"url"`
		SubjectPrefix string        `mapstructure:"subject_prefix"`
		Timeout       time.Duration `mapstructure:"timeout"`
	} `mapstructure:"nats"`

	Tracing struct {
		Enabled      bool    `mapstructure:"enabled"`
		OTLPEndpoint string  `mapstructure:"otlp_endpoint"`
		Insecure     bool    `mapstructure:"insecure"`
		ServiceName  string  `mapstructure:"service_name"`
		SampleRatio  float64 `mapstructure:"sample_ratio"`
	} `mapstructure:"tracing"`

	EndpointCache struct {
		Size int           `mapstructure:"size"`
		TTL  time.Duration `mapstructure:"ttl"`
	} `mapstructure:"endpoint_cache"`

	Logging struct {
		Level       string `mapstructure:"level"`
		Development bool   `mapstructure:"development"`
	} `mapstructure:"logging"`

	Secrets struct {
		Provider string `mapstructure:"provider"` // env, vault or aws
		Vault    struct {
			Address string `mapstructure:"address"`
			Token   string `mapstructure:"token"`
			Path    string `mapstructure:"path"`
		} `mapstructure:"vault"`
		AWS struct {
			Region    string `mapstructure:"region"`
			SecretID  string `mapstructure:"secret_id"`
			AccessKey string `mapstructure:"access_key"`
			SecretKey string `mapstructure:"secret_key"`
			Endpoint  string `mapstructure:"endpoint"`
		} `mapstructure:"aws"`
	} `mapstructure:"secrets"`
}

func setDefaults() {
	viper.SetDefault("data_paths.data_dir", "./data")
	viper.SetDefault("data_paths.sqlite_path", "") // Empty = derive from data_dir

	viper.SetDefault("api.host", "0.0.0.0")
	viper.SetDefault("api.port", 8081)
	viper.SetDefault("api.rate_limit.requests_per_second", 20.0)
	viper.SetDefault("api.rate_limit.burst", 40)
	viper.SetDefault("api.read_timeout", 15*time.Second)
	viper.SetDefault("api.write_timeout", 5*time.Minute)
	viper.SetDefault("api.swagger", true)

	viper.SetDefault("hunt.max_concurrent_hunts", 3)
	viper.SetDefault("hunt.max_concurrent_queries", 4)
	viper.SetDefault("hunt.max_hunt_duration", time.Hour)
	viper.SetDefault("hunt.shutdown_timeout", 30*time.Second)

	// Inventory and log caps differ on purpose; see DESIGN.md.
	viper.SetDefault("sources.inventory.result_cap", 500)
	viper.SetDefault("sources.inventory.timeout", 30*time.Second)
	viper.SetDefault("sources.log.result_cap", 100)
	viper.SetDefault("sources.log.timeout", 30*time.Second)
	viper.SetDefault("sources.log.backend", LogBackendSQLite)
	viper.SetDefault("sources.circuit_breaker.max_failures", 5)
	viper.SetDefault("sources.circuit_breaker.timeout", 60*time.Second)

	viper.SetDefault("clickhouse.addr", "localhost:9000")
	viper.SetDefault("clickhouse.database", "iochunt")
	viper.SetDefault("clickhouse.username", "default")
	viper.SetDefault("clickhouse.password", "")
	viper.SetDefault("clickhouse.tls", false)
	viper.SetDefault("clickhouse.max_pool_size", 10)

	viper.SetDefault("mongodb.uri", "mongodb://localhost:27017")
	viper.SetDefault("mongodb.database", "iochunt")
	viper.SetDefault("mongodb.collection", "endpoint_logs")
	viper.SetDefault("mongodb.max_pool_size", 10)

	viper.SetDefault("redis.enabled", false)
	viper.SetDefault("redis.addr", "localhost:6379")
	viper.SetDefault("redis.db", 0)
	viper.SetDefault("redis.lock_ttl", 2*time.Hour)

	viper.SetDefault("nats.enabled", false)
	viper.SetDefault("nats.url", "nats://localhost:4222")
	viper.SetDefault("nats.subject_prefix", "iochunt.hunt")
	viper.SetDefault("nats.timeout", 5*time.Second)

	viper.SetDefault("tracing.enabled", false)
	viper.SetDefault("tracing.otlp_endpoint", "localhost:4317")
	viper.SetDefault("tracing.insecure", true)
	viper.SetDefault("tracing.service_name", "iochunt")
	viper.SetDefault("tracing.sample_ratio", 1.0)

	viper.SetDefault("endpoint_cache.size", 10000)
	viper.SetDefault("endpoint_cache.ttl", 5*time.Minute)

	viper.SetDefault("logging.level", "info")
	viper.SetDefault("logging.development", false)

	viper.SetDefault("secrets.provider", "env")
	viper.SetDefault("secrets.vault.address", "http://127.0.0.1:8200")
	viper.SetDefault("secrets.vault.path", "secret/iochunt")
	viper.SetDefault("secrets.aws.region", "us-east-1")
	viper.SetDefault("secrets.aws.secret_id", "iochunt/secrets")
}

func loadFromEnv() {
	viper.SetEnvPrefix("IOCHUNT")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	// Shorter names for the settings operators override most
	_ = viper.BindEnv("data_paths.data_dir", "IOCHUNT_DATA_DIR")
	_ = viper.BindEnv("data_paths.sqlite_path", "IOCHUNT_SQLITE_PATH")
	_ = viper.BindEnv("sources.log.backend", "IOCHUNT_LOG_BACKEND")
	_ = viper.BindEnv("clickhouse.password", "IOCHUNT_CLICKHOUSE_PASSWORD")
	_ = viper.BindEnv("redis.password", "IOCHUNT_REDIS_PASSWORD")
}

// LoadConfig loads configuration from defaults, an optional config file and the
// environment. An empty path searches ./config.yaml and ./config/config.yaml.
func LoadConfig(path string) (*Config, error) {
	viper.Reset()

	if path != "" {
		viper.SetConfigFile(path)
	} else {
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")
		viper.AddConfigPath("./config")
	}

	setDefaults()
	loadFromEnv()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok && path != "" {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
		// No config file: defaults and env vars only
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}

	config.ResolveDataPaths()

	if err := LoadSecrets(&config); err != nil {
		return nil, err
	}

	if err := validateConfig(&config); err != nil {
		return nil, err
	}

	return &config, nil
}

// ResolveDataPaths derives unset paths from data_dir
func (c *Config) ResolveDataPaths() {
	dataDir := c.DataPaths.DataDir
	if dataDir == "" {
		dataDir = "./data"
	}

	if c.DataPaths.SQLitePath == "" {
		c.DataPaths.SQLitePath = filepath.Join(dataDir, "iochunt.db")
	} else if c.DataPaths.SQLitePath != ":memory:" && !filepath.IsAbs(c.DataPaths.SQLitePath) {
		c.DataPaths.SQLitePath = filepath.Clean(c.DataPaths.SQLitePath)
	}

	c.DataPaths.DataDir = dataDir
}

// GetDataDir returns the resolved base data directory
func (c *Config) GetDataDir() string {
	if c.DataPaths.DataDir == "" {
		return "./data"
	}
	return c.DataPaths.DataDir
}

// GetSQLitePath returns the resolved SQLite database path
func (c *Config) GetSQLitePath() string {
	if c.DataPaths.SQLitePath == "" {
		return filepath.Join(c.GetDataDir(), "iochunt.db")
	}
	return c.DataPaths.SQLitePath
}

// validateConfig validates the configuration for correctness
func validateConfig(config *Config) error {
	if config.API.Port <= 0 || config.API.Port > 65535 {
		return fmt.Errorf("invalid api port: %d", config.API.Port)
	}
	if config.API.RateLimit.RequestsPerSecond <= 0 || config.API.RateLimit.Burst <= 0 {
		return fmt.Errorf("api rate limit must be positive")
	}

	if config.Hunt.MaxConcurrentHunts <= 0 {
		return fmt.Errorf("hunt.max_concurrent_hunts must be greater than 0")
	}
	if config.Hunt.MaxConcurrentQueries <= 0 {
		return fmt.Errorf("hunt.max_concurrent_queries must be greater than 0")
	}
	if config.Hunt.MaxHuntDuration <= 0 {
		return fmt.Errorf("hunt.max_hunt_duration must be greater than 0")
	}

	sources := map[string]SourceConfig{
		"inventory": config.Sources.Inventory,
		"log":       config.Sources.Log.SourceConfig,
	}
	for name, src := range sources {
		if src.ResultCap <= 0 {
			return fmt.Errorf("sources.%s.result_cap must be greater than 0", name)
		}
		if src.Timeout <= 0 {
			return fmt.Errorf("sources.%s.timeout must be greater than 0", name)
		}
	}
	if config.Sources.CircuitBreaker.MaxFailures == 0 || config.Sources.CircuitBreaker.Timeout <= 0 {
		return fmt.Errorf("sources.circuit_breaker requires max_failures and timeout")
	}

	switch config.Sources.Log.Backend {
	case LogBackendSQLite:
	case LogBackendClickHouse:
		if config.ClickHouse.Addr == "" {
			return fmt.Errorf("clickhouse.addr is required for the clickhouse log backend")
		}
	case LogBackendMongoDB:
		if !strings.HasPrefix(config.MongoDB.URI, "mongodb://") && !strings.HasPrefix(config.MongoDB.URI, "mongodb+srv://") {
			return fmt.Errorf("invalid MongoDB URI: must start with mongodb:// or mongodb+srv://")
		}
		parsed, err := url.Parse(config.MongoDB.URI)
		if err != nil {
			return fmt.Errorf("invalid MongoDB URI: %w", err)
		}
		if parsed.Host == "" {
			return fmt.Errorf("invalid MongoDB URI: missing host")
		}
		if config.MongoDB.Database == "" || config.MongoDB.Collection == "" {
			return fmt.Errorf("MongoDB database and collection cannot be empty")
		}
	default:
		return fmt.Errorf("unknown log backend %q (expected sqlite, clickhouse or mongodb)", config.Sources.Log.Backend)
	}

	if config.Redis.Enabled && config.Redis.Addr == "" {
		return fmt.Errorf("redis.addr is required when redis is enabled")
	}
	if config.NATS.Enabled && config.NATS.URL == "" {
		return fmt.Errorf("nats.url is required when nats is enabled")
	}
	if config.Tracing.Enabled && (config.Tracing.SampleRatio < 0 || config.Tracing.SampleRatio > 1) {
		return fmt.Errorf("tracing.sample_ratio must be between 0 and 1")
	}

	switch config.Secrets.Provider {
	case "", "env", "vault", "aws":
	default:
		return fmt.Errorf("unsupported secret provider: %s", config.Secrets.Provider)
	}

	switch strings.ToLower(config.Logging.Level) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid logging level %q", config.Logging.Level)
	}

	return nil
}
