package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Backend names accepted in the docstore, search and reports sections.
const (
	BackendMemory   = "memory"
	BackendPostgres = "postgres"
	BackendDynamo   = "dynamo"
	BackendRedis    = "redis"
	BackendHosted   = "hosted"
	BackendS3       = "s3"
	BackendFile     = "file"
)

// Config holds all configuration for the application
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	DocStore DocStoreConfig `yaml:"docstore"`
	Search   SearchConfig   `yaml:"search"`
	Sync     SyncConfig     `yaml:"sync"`
	Reports  ReportsConfig  `yaml:"reports"`
	Log      LogConfig      `yaml:"log"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port               int      `yaml:"port"`
	Host               string   `yaml:"host"`
	AllowedOrigins     []string `yaml:"allowed_origins"`
	ReadTimeoutSeconds int      `yaml:"read_timeout_seconds"`
}

// GetHost returns the server host, with ECS detection
func (c ServerConfig) GetHost() string {
	// On ECS/container, listen on all interfaces
	if os.Getenv("ECS_CONTAINER_METADATA_URI") != "" || os.Getenv("AWS_EXECUTION_ENV") != "" {
		return "0.0.0.0"
	}
	if host := os.Getenv("SERVER_HOST"); host != "" {
		return host
	}
	return c.Host
}

// Addr is the listen address.
func (c ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.GetHost(), c.Port)
}

// ReadTimeout returns the request read timeout as a duration
func (c ServerConfig) ReadTimeout() time.Duration {
	return time.Duration(c.ReadTimeoutSeconds) * time.Second
}

// DocStoreConfig selects the canonical document store.
type DocStoreConfig struct {
	Backend       string `yaml:"backend"` // postgres, dynamo or memory
	DatabaseURL   string `yaml:"database_url"`
	DynamoDBTable string `yaml:"dynamodb_table"`
	AWSRegion     string `yaml:"aws_region"`
	AWSProfile    string `yaml:"aws_profile"` // Empty string uses default credential chain (IAM role on ECS)
}

// GetAWSProfile returns the AWS profile, with environment variable override
func (c DocStoreConfig) GetAWSProfile() string {
	return awsProfile(c.AWSProfile)
}

// SearchConfig selects the secondary search index.
type SearchConfig struct {
	Backend        string `yaml:"backend"` // redis, hosted or memory
	RedisURL       string `yaml:"redis_url"`
	AppID          string `yaml:"app_id"`
	APIKey         string `yaml:"api_key"`
	IndexName      string `yaml:"index_name"`
	BaseURL        string `yaml:"base_url"`
	MaxRetries     int    `yaml:"max_retries"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
	ApplySettings  bool   `yaml:"apply_settings"`
}

// Timeout returns the configured timeout as a duration
func (c SearchConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// SyncConfig holds synchronizer and backfill settings.
type SyncConfig struct {
	Collections        []string `yaml:"collections"`
	PageSize           int      `yaml:"page_size"`
	CanonicalChunkSize int      `yaml:"canonical_chunk_size"`
	IndexChunkSize     int      `yaml:"index_chunk_size"`
	LockKey            string   `yaml:"lock_key"`
	LockTTLSeconds     int      `yaml:"lock_ttl_seconds"`
}

// LockTTL returns the backfill lock TTL as a duration
func (c SyncConfig) LockTTL() time.Duration {
	return time.Duration(c.LockTTLSeconds) * time.Second
}

// ReportsConfig selects where backfill reports are archived.
type ReportsConfig struct {
	Backend    string `yaml:"backend"` // s3, file, or empty to disable
	S3Bucket   string `yaml:"s3_bucket"`
	S3Prefix   string `yaml:"s3_prefix"`
	AWSRegion  string `yaml:"aws_region"`
	AWSProfile string `yaml:"aws_profile"`
	LocalPath  string `yaml:"local_path"`
}

// GetAWSProfile returns the AWS profile, with environment variable override
func (c ReportsConfig) GetAWSProfile() string {
	return awsProfile(c.AWSProfile)
}

// LogConfig holds logger settings.
type LogConfig struct {
	Level     string `yaml:"level"`
	RedactPII *bool  `yaml:"redact_pii"`
}

// Redact reports whether PII redaction is on. It defaults to true.
func (c LogConfig) Redact() bool {
	return c.RedactPII == nil || *c.RedactPII
}

func awsProfile(configured string) string {
	if envProfile := os.Getenv("AWS_PROFILE_OVERRIDE"); envProfile != "" {
		if envProfile == "none" || envProfile == "iam" {
			return "" // Use default credential chain (IAM role)
		}
		return envProfile
	}
	// On ECS/Lambda, don't use a profile - use IAM role
	if os.Getenv("ECS_CONTAINER_METADATA_URI") != "" || os.Getenv("AWS_EXECUTION_ENV") != "" {
		return ""
	}
	return configured
}

// Load reads and parses the configuration file
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	cfg.applyDefaults()
	return &cfg, nil
}

func (cfg *Config) applyDefaults() {
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if cfg.Server.ReadTimeoutSeconds == 0 {
		cfg.Server.ReadTimeoutSeconds = 15
	}
	if cfg.DocStore.Backend == "" {
		cfg.DocStore.Backend = BackendMemory
	}
	if cfg.DocStore.AWSRegion == "" {
		cfg.DocStore.AWSRegion = "ap-northeast-1"
	}
	if cfg.DocStore.DynamoDBTable == "" {
		cfg.DocStore.DynamoDBTable = "memorial-crm-documents"
	}
	if cfg.Search.Backend == "" {
		cfg.Search.Backend = BackendMemory
	}
	if cfg.Search.IndexName == "" {
		cfg.Search.IndexName = "customers"
	}
	if cfg.Search.MaxRetries == 0 {
		cfg.Search.MaxRetries = 3
	}
	if cfg.Search.TimeoutSeconds == 0 {
		cfg.Search.TimeoutSeconds = 30
	}
	if len(cfg.Sync.Collections) == 0 {
		cfg.Sync.Collections = []string{"Customers"}
	}
	if cfg.Sync.PageSize == 0 {
		cfg.Sync.PageSize = 1000
	}
	if cfg.Sync.CanonicalChunkSize == 0 {
		cfg.Sync.CanonicalChunkSize = 450
	}
	if cfg.Sync.IndexChunkSize == 0 {
		cfg.Sync.IndexChunkSize = 1000
	}
	if cfg.Sync.LockKey == "" {
		cfg.Sync.LockKey = "customer-backfill"
	}
	if cfg.Sync.LockTTLSeconds == 0 {
		cfg.Sync.LockTTLSeconds = 300
	}
	if cfg.Reports.AWSRegion == "" {
		cfg.Reports.AWSRegion = cfg.DocStore.AWSRegion
	}
	if cfg.Reports.S3Prefix == "" {
		cfg.Reports.S3Prefix = "backfill-reports"
	}
	if cfg.Reports.LocalPath == "" {
		cfg.Reports.LocalPath = "./data/reports"
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
}

// Validate checks backend names and the settings each backend needs.
func (cfg *Config) Validate() error {
	switch cfg.DocStore.Backend {
	case BackendMemory, BackendDynamo:
	case BackendPostgres:
		if cfg.DocStore.DatabaseURL == "" {
			return fmt.Errorf("docstore: postgres backend requires database_url")
		}
	default:
		return fmt.Errorf("docstore: unknown backend %q", cfg.DocStore.Backend)
	}

	switch cfg.Search.Backend {
	case BackendMemory:
	case BackendRedis:
		if cfg.Search.RedisURL == "" {
			return fmt.Errorf("search: redis backend requires redis_url")
		}
	case BackendHosted:
		if cfg.Search.AppID == "" || cfg.Search.APIKey == "" {
			return fmt.Errorf("search: hosted backend requires app_id and api_key")
		}
	default:
		return fmt.Errorf("search: unknown backend %q", cfg.Search.Backend)
	}

	switch cfg.Reports.Backend {
	case "", BackendFile:
	case BackendS3:
		if cfg.Reports.S3Bucket == "" {
			return fmt.Errorf("reports: s3 backend requires s3_bucket")
		}
	default:
		return fmt.Errorf("reports: unknown backend %q", cfg.Reports.Backend)
	}
	return nil
}

// LoadFromEnv loads configuration with environment variable overrides.
// It automatically loads a .env file (if present) before reading env vars,
// so secrets can live in .env locally and in real env vars on ECS.
func LoadFromEnv(path string) (*Config, error) {
	// Load .env file if it exists (no error if missing)
	_ = godotenv.Load()

	cfg, err := Load(path)
	if err != nil {
		return nil, err
	}

	// Database override (critical for ECS deployment where config.yaml has local defaults)
	if dbURL := os.Getenv("DATABASE_URL"); dbURL != "" {
		cfg.DocStore.DatabaseURL = dbURL
		if cfg.DocStore.Backend == BackendMemory {
			cfg.DocStore.Backend = BackendPostgres
		}
	}
	if v := os.Getenv("DOCSTORE_BACKEND"); v != "" {
		cfg.DocStore.Backend = v
	}
	if v := os.Getenv("DYNAMODB_TABLE"); v != "" {
		cfg.DocStore.DynamoDBTable = v
	}

	if v := os.Getenv("REDIS_URL"); v != "" {
		cfg.Search.RedisURL = v
	}
	if v := os.Getenv("SEARCH_BACKEND"); v != "" {
		cfg.Search.Backend = v
	}
	if v := os.Getenv("SEARCH_APP_ID"); v != "" {
		cfg.Search.AppID = v
	}
	if v := os.Getenv("SEARCH_API_KEY"); v != "" {
		cfg.Search.APIKey = v
	}
	if v := os.Getenv("SEARCH_INDEX"); v != "" {
		cfg.Search.IndexName = v
	}

	if v := os.Getenv("REPORTS_S3_BUCKET"); v != "" {
		cfg.Reports.S3Bucket = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if v := os.Getenv("PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}

	return cfg, nil
}
