package common

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all application configuration
type Config struct {
	Database   DatabaseConfig   `yaml:"database"`
	Server     ServerConfig     `yaml:"server"`
	DocIntel   DocIntelConfig   `yaml:"docintel"`
	Extraction ExtractionConfig `yaml:"extraction"`
	Storage    StorageConfig    `yaml:"storage"`
	Output     OutputConfig     `yaml:"output"`
}

// DatabaseConfig holds database-related configuration
type DatabaseConfig struct {
	DSN              string        `yaml:"dsn"`
	MaxConns         int32         `yaml:"max_conns"`
	MinConns         int32         `yaml:"min_conns"`
	MaxConnLifetime  time.Duration `yaml:"max_conn_lifetime"`
	MaxConnIdleTime  time.Duration `yaml:"max_conn_idle_time"`
	DialTimeout      time.Duration `yaml:"dial_timeout"`
	StatementTimeout time.Duration `yaml:"statement_timeout"`
	// SQLitePath is used for the usage ledger when DSN is empty.
	SQLitePath string `yaml:"sqlite_path"`
}

// ServerConfig holds server-related configuration
type ServerConfig struct {
	GRPCAddr   string `yaml:"grpc_addr"`
	QueueSize  int    `yaml:"queue_size"`
	JobWorkers int    `yaml:"job_workers"`
}

// DocIntelConfig holds the document-intelligence service settings
type DocIntelConfig struct {
	Endpoint          string        `yaml:"endpoint"`
	APIKey            string        `yaml:"api_key"`
	APIVersion        string        `yaml:"api_version"`
	PollInterval      time.Duration `yaml:"poll_interval"`
	Timeout           time.Duration `yaml:"timeout"`
	RequestsPerSecond float64       `yaml:"requests_per_second"`
}

// ExtractionConfig tunes chunking, concurrency and table cleanup
type ExtractionConfig struct {
	ChunkSize               int           `yaml:"chunk_size"`
	Workers                 int           `yaml:"workers"`
	ChunkTimeout            time.Duration `yaml:"chunk_timeout"`
	FilterTables            bool          `yaml:"filter_tables"`
	DropLatestYearColumn    bool          `yaml:"drop_latest_year_column"`
	FinanceKeywordThreshold float64       `yaml:"finance_keyword_threshold"`
	MaxPagesWithoutConfig   int           `yaml:"max_pages_without_config"`
	// PageAllowance caps pages charged per owner; 0 disables the check.
	PageAllowance int `yaml:"page_allowance"`
}

// StorageConfig holds the object store root and the optional manifest drop folder
type StorageConfig struct {
	Root          string        `yaml:"root"`
	WatchDir      string        `yaml:"watch_dir"`
	WatchDebounce time.Duration `yaml:"watch_debounce"`
}

// OutputConfig holds where local artifacts are written
type OutputConfig struct {
	Dir string `yaml:"dir"`
}

// LoadConfig loads configuration from environment variables
func LoadConfig() *Config {
	cfg := defaultConfig()
	applyEnv(cfg)
	return cfg
}

// LoadConfigFile reads a YAML file and then lets environment variables override it.
// An empty path behaves like LoadConfig.
func LoadConfigFile(path string) (*Config, error) {
	cfg := defaultConfig()
	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(raw, cfg); err != nil {
			return nil, NewAppError("CONFIG_ERROR", "parse config "+path, err)
		}
	}
	applyEnv(cfg)
	return cfg, nil
}

func defaultConfig() *Config {
	return &Config{
		Database: DatabaseConfig{
			MaxConns:        20,
			MinConns:        5,
			MaxConnLifetime: 30 * time.Minute,
			MaxConnIdleTime: 5 * time.Minute,
			DialTimeout:     3 * time.Second,
			SQLitePath:      "./data/ledger.db",
		},
		Server: ServerConfig{
			GRPCAddr:   ":8080",
			QueueSize:  256,
			JobWorkers: 2,
		},
		DocIntel: DocIntelConfig{
			APIVersion:        "2024-11-30",
			PollInterval:      2 * time.Second,
			Timeout:           60 * time.Second,
			RequestsPerSecond: 5,
		},
		Extraction: ExtractionConfig{
			ChunkSize:               2,
			Workers:                 2,
			ChunkTimeout:            3 * time.Minute,
			FinanceKeywordThreshold: 0.25,
			MaxPagesWithoutConfig:   10,
		},
		Storage: StorageConfig{Root: "./data", WatchDebounce: 500 * time.Millisecond},
		Output:  OutputConfig{Dir: "./tmp"},
	}
}

func applyEnv(c *Config) {
	c.Database.DSN = getEnv("DB_URL", c.Database.DSN)
	c.Database.MaxConns = getEnvAsInt32("DB_MAX_CONNS", c.Database.MaxConns)
	c.Database.MinConns = getEnvAsInt32("DB_MIN_CONNS", c.Database.MinConns)
	c.Database.MaxConnLifetime = getEnvAsDuration("DB_MAX_CONN_LIFETIME", c.Database.MaxConnLifetime)
	c.Database.MaxConnIdleTime = getEnvAsDuration("DB_MAX_CONN_IDLE_TIME", c.Database.MaxConnIdleTime)
	c.Database.DialTimeout = getEnvAsDuration("DB_DIAL_TIMEOUT", c.Database.DialTimeout)
	c.Database.StatementTimeout = getEnvAsDuration("DB_STATEMENT_TIMEOUT", c.Database.StatementTimeout)
	c.Database.SQLitePath = getEnv("SQLITE_PATH", c.Database.SQLitePath)

	c.Server.GRPCAddr = getEnv("GRPC_ADDR", c.Server.GRPCAddr)
	c.Server.QueueSize = getEnvAsInt("JOB_QUEUE_SIZE", c.Server.QueueSize)
	c.Server.JobWorkers = getEnvAsInt("JOB_WORKERS", c.Server.JobWorkers)

	c.DocIntel.Endpoint = getEnv("DOCINTEL_ENDPOINT", c.DocIntel.Endpoint)
	c.DocIntel.APIKey = getEnv("DOCINTEL_API_KEY", c.DocIntel.APIKey)
	c.DocIntel.APIVersion = getEnv("DOCINTEL_API_VERSION", c.DocIntel.APIVersion)
	c.DocIntel.PollInterval = getEnvAsDuration("DOCINTEL_POLL_INTERVAL", c.DocIntel.PollInterval)
	c.DocIntel.Timeout = getEnvAsDuration("DOCINTEL_TIMEOUT", c.DocIntel.Timeout)
	c.DocIntel.RequestsPerSecond = getEnvAsFloat64("DOCINTEL_RPS", c.DocIntel.RequestsPerSecond)

	c.Extraction.ChunkSize = getEnvAsInt("EXTRACT_CHUNK_SIZE", c.Extraction.ChunkSize)
	c.Extraction.Workers = getEnvAsInt("EXTRACT_WORKERS", c.Extraction.Workers)
	c.Extraction.ChunkTimeout = getEnvAsDuration("EXTRACT_CHUNK_TIMEOUT", c.Extraction.ChunkTimeout)
	c.Extraction.FilterTables = getEnvAsBool("EXTRACT_FILTER_TABLES", c.Extraction.FilterTables)
	c.Extraction.DropLatestYearColumn = getEnvAsBool("EXTRACT_DROP_LATEST_YEAR", c.Extraction.DropLatestYearColumn)
	c.Extraction.FinanceKeywordThreshold = getEnvAsFloat64("EXTRACT_FINANCE_THRESHOLD", c.Extraction.FinanceKeywordThreshold)
	c.Extraction.MaxPagesWithoutConfig = getEnvAsInt("EXTRACT_MAX_PAGES_WITHOUT_CONFIG", c.Extraction.MaxPagesWithoutConfig)
	c.Extraction.PageAllowance = getEnvAsInt("EXTRACT_PAGE_ALLOWANCE", c.Extraction.PageAllowance)

	c.Storage.Root = getEnv("STORAGE_ROOT", c.Storage.Root)
	c.Storage.WatchDir = getEnv("WATCH_DIR", c.Storage.WatchDir)
	c.Storage.WatchDebounce = getEnvAsDuration("WATCH_DEBOUNCE", c.Storage.WatchDebounce)
	c.Output.Dir = getEnv("OUTPUT_DIR", c.Output.Dir)
}

// Helper functions for environment variable parsing
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsInt32(key string, defaultValue int32) int32 {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.ParseInt(value, 10, 32); err == nil {
			return int32(intVal)
		}
	}
	return defaultValue
}

func getEnvAsFloat64(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 64); err == nil {
			return floatVal
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

// Validate checks the settings every binary needs. The database is optional
// because local runs fall back to SQLite.
func (c *Config) Validate() error {
	if c.DocIntel.Endpoint == "" {
		return NewAppError("CONFIG_ERROR", "DOCINTEL_ENDPOINT is required", ErrConfig)
	}
	if c.DocIntel.APIKey == "" {
		return NewAppError("CONFIG_ERROR", "DOCINTEL_API_KEY is required", ErrConfig)
	}
	if c.Extraction.ChunkSize <= 0 {
		return NewAppError("CONFIG_ERROR", "EXTRACT_CHUNK_SIZE must be positive", ErrConfig)
	}
	if c.Extraction.Workers <= 0 {
		return NewAppError("CONFIG_ERROR", "EXTRACT_WORKERS must be positive", ErrConfig)
	}
	if c.Extraction.FinanceKeywordThreshold < 0 || c.Extraction.FinanceKeywordThreshold > 1 {
		return NewAppError("CONFIG_ERROR", "EXTRACT_FINANCE_THRESHOLD must be within [0,1]", ErrConfig)
	}
	return nil
}
