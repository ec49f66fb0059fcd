package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the application
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Identity  IdentityConfig  `yaml:"identity"`
	Sources   SourcesConfig   `yaml:"sources"`
	Storage   StorageConfig   `yaml:"storage"`
	Snowflake SnowflakeConfig `yaml:"snowflake"`
	Postgres  PostgresConfig  `yaml:"postgres"`
	Redis     RedisConfig     `yaml:"redis"`
	Bedrock   BedrockConfig   `yaml:"bedrock"`
	Scoring   ScoringConfig   `yaml:"scoring"`
	Refresh   RefreshConfig   `yaml:"refresh"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port                int      `yaml:"port"`
	Host                string   `yaml:"host"`
	ReadTimeoutSeconds  int      `yaml:"read_timeout_seconds"`
	WriteTimeoutSeconds int      `yaml:"write_timeout_seconds"`
	MaxUploadMB         int      `yaml:"max_upload_mb"`
	CORSOrigins         []string `yaml:"cors_origins"`
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

// Addr returns host:port for the listener.
func (c ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.GetHost(), c.Port)
}

func (c ServerConfig) ReadTimeout() time.Duration {
	return time.Duration(c.ReadTimeoutSeconds) * time.Second
}

func (c ServerConfig) WriteTimeout() time.Duration {
	return time.Duration(c.WriteTimeoutSeconds) * time.Second
}

// MaxUploadBytes is the multipart upload ceiling.
func (c ServerConfig) MaxUploadBytes() int64 {
	return int64(c.MaxUploadMB) << 20
}

// IdentityConfig controls how identity keys are matched across sources.
type IdentityConfig struct {
	// NormalizeEmail lowercases and trims emails before joining. Off means
	// exact string match.
	NormalizeEmail bool `yaml:"normalize_email"`
}

// Source kinds.
const (
	SourceFile      = "file"
	SourceS3        = "s3"
	SourceSnowflake = "snowflake"
	SourcePostgres  = "postgres"
	SourceHTTP      = "http"
)

// SourceConfig locates one upstream extract.
type SourceConfig struct {
	Kind   string `yaml:"kind"`   // file, s3, snowflake, postgres, http
	Path   string `yaml:"path"`   // file
	Bucket string `yaml:"bucket"` // s3; empty uses storage.s3_bucket
	Key    string `yaml:"key"`    // s3
	Query  string `yaml:"query"`  // snowflake, postgres
	URL    string `yaml:"url"`    // http, e.g. a presigned export link
}

// SourcesConfig holds the three extracts of a batch.
type SourcesConfig struct {
	Subscription SourceConfig `yaml:"subscription"`
	Engagement   SourceConfig `yaml:"engagement"`
	Support      SourceConfig `yaml:"support"`
}

// Configured reports whether every source has a kind.
func (c SourcesConfig) Configured() bool {
	return c.Subscription.Kind != "" && c.Engagement.Kind != "" && c.Support.Kind != ""
}

// StorageConfig holds export storage configuration
type StorageConfig struct {
	Type            string `yaml:"type"` // "local" or "aws"
	LocalPath       string `yaml:"local_path"`
	S3Bucket        string `yaml:"s3_bucket"`
	S3Prefix        string `yaml:"s3_prefix"`
	AWSRegion       string `yaml:"aws_region"`
	AWSProfile      string `yaml:"aws_profile"` // Empty string uses default credential chain (IAM role on ECS)
	AccessKeyID     string `yaml:"access_key_id"`
	SecretAccessKey string `yaml:"secret_access_key"`

	// HistoryTable names a DynamoDB table for the run history. Empty keeps
	// the history in memory.
	HistoryTable   string `yaml:"history_table"`
	HistoryTTLDays int    `yaml:"history_ttl_days"`
}

// HistoryTTL returns the run history retention.
func (c StorageConfig) HistoryTTL() time.Duration {
	return time.Duration(c.HistoryTTLDays) * 24 * time.Hour
}

// GetAWSProfile returns the AWS profile, with environment variable override
func (c StorageConfig) GetAWSProfile() string {
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
	return c.AWSProfile
}

// SnowflakeConfig holds Snowflake connection settings for warehouse-backed sources
type SnowflakeConfig struct {
	ConnectionString string `yaml:"connection_string"`
	Account          string `yaml:"account"`
	User             string `yaml:"user"`
	Password         string `yaml:"password"`
	Database         string `yaml:"database"`
	Schema           string `yaml:"schema"`
	Warehouse        string `yaml:"warehouse"`
	Role             string `yaml:"role"`
	Enabled          bool   `yaml:"enabled"`
}

// PostgresConfig holds the database used for SQL sources and saved rule sets.
type PostgresConfig struct {
	DatabaseURL  string `yaml:"database_url"`
	MaxOpenConns int    `yaml:"max_open_conns"`
	MaxIdleConns int    `yaml:"max_idle_conns"`
}

// RedisConfig holds the snapshot cache connection.
type RedisConfig struct {
	URL                string `yaml:"url"`
	SnapshotTTLMinutes int    `yaml:"snapshot_ttl_minutes"`
}

func (c RedisConfig) SnapshotTTL() time.Duration {
	return time.Duration(c.SnapshotTTLMinutes) * time.Minute
}

// BedrockConfig holds the threshold suggestion model settings.
type BedrockConfig struct {
	Enabled        bool   `yaml:"enabled"`
	Region         string `yaml:"region"`
	ModelID        string `yaml:"model_id"`
	MaxTokens      int    `yaml:"max_tokens"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
	SampleRows     int    `yaml:"sample_rows"`
	AllowWeights   bool   `yaml:"allow_weights"`
}

func (c BedrockConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// ScoringConfig selects the rule set used when a request does not name one.
type ScoringConfig struct {
	RulesFile   string `yaml:"rules_file"`
	RuleSetName string `yaml:"rule_set_name"`
}

// RefreshConfig schedules periodic load-and-score runs against the
// configured sources.
type RefreshConfig struct {
	Enabled         bool   `yaml:"enabled"`
	IntervalMinutes int    `yaml:"interval_minutes"`
	RuleSet         string `yaml:"rule_set"` // empty scores with the default rules
}

// Interval returns the refresh period.
func (c RefreshConfig) Interval() time.Duration {
	return time.Duration(c.IntervalMinutes) * time.Minute
}

// LoggingConfig holds logger settings.
type LoggingConfig struct {
	Level     string `yaml:"level"`
	RedactPII bool   `yaml:"redact_pii"`
}

// Default returns a configuration with every default applied.
func Default() *Config {
	cfg := &Config{}
	applyDefaults(cfg)
	return cfg
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	applyDefaults(&cfg)
	return &cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if cfg.Server.ReadTimeoutSeconds == 0 {
		cfg.Server.ReadTimeoutSeconds = 60
	}
	if cfg.Server.WriteTimeoutSeconds == 0 {
		cfg.Server.WriteTimeoutSeconds = 120
	}
	if cfg.Server.MaxUploadMB == 0 {
		cfg.Server.MaxUploadMB = 64
	}
	if len(cfg.Server.CORSOrigins) == 0 {
		cfg.Server.CORSOrigins = []string{"http://localhost:5173", "http://localhost:8080"}
	}
	if cfg.Storage.Type == "" {
		cfg.Storage.Type = "local"
	}
	if cfg.Storage.LocalPath == "" {
		cfg.Storage.LocalPath = "./data"
	}
	if cfg.Storage.AWSRegion == "" {
		cfg.Storage.AWSRegion = "us-west-2"
	}
	if cfg.Refresh.IntervalMinutes == 0 {
		cfg.Refresh.IntervalMinutes = 24 * 60
	}
	if cfg.Storage.HistoryTTLDays == 0 {
		cfg.Storage.HistoryTTLDays = 90
	}
	if cfg.Storage.S3Prefix == "" {
		cfg.Storage.S3Prefix = "churn"
	}
	if cfg.Postgres.MaxOpenConns == 0 {
		cfg.Postgres.MaxOpenConns = 10
	}
	if cfg.Postgres.MaxIdleConns == 0 {
		cfg.Postgres.MaxIdleConns = 5
	}
	if cfg.Redis.SnapshotTTLMinutes == 0 {
		cfg.Redis.SnapshotTTLMinutes = 24 * 60
	}
	if cfg.Bedrock.Region == "" {
		cfg.Bedrock.Region = "us-west-2"
	}
	if cfg.Bedrock.ModelID == "" {
		cfg.Bedrock.ModelID = "anthropic.claude-3-haiku-20240307-v1:0"
	}
	if cfg.Bedrock.MaxTokens == 0 {
		cfg.Bedrock.MaxTokens = 1024
	}
	if cfg.Bedrock.TimeoutSeconds == 0 {
		cfg.Bedrock.TimeoutSeconds = 60
	}
	if cfg.Bedrock.SampleRows == 0 {
		cfg.Bedrock.SampleRows = 200
	}
	if cfg.Scoring.RuleSetName == "" {
		cfg.Scoring.RuleSetName = "configured"
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
}

func LoadFromEnv(path string) (*Config, error) {
	_ = godotenv.Load()

	var cfg *Config
	if path == "" {
		cfg = Default()
	} else {
		var err error
		if cfg, err = Load(path); err != nil {
			return nil, err
		}
	}

	if v := os.Getenv("DATABASE_URL"); v != "" {
		cfg.Postgres.DatabaseURL = v
	}
	if v := os.Getenv("REDIS_URL"); v != "" {
		cfg.Redis.URL = v
	}
	if v := os.Getenv("SNOWFLAKE_CONNECTION_STRING"); v != "" {
		cfg.Snowflake.ConnectionString = v
		cfg.Snowflake.Enabled = true
	}
	if v := os.Getenv("SNOWFLAKE_PASSWORD"); v != "" {
		cfg.Snowflake.Password = v
	}
	if v := os.Getenv("CHURN_S3_BUCKET"); v != "" {
		cfg.Storage.S3Bucket = v
	}
	if v := os.Getenv("CHURN_REFRESH_ENABLED"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Refresh.Enabled = b
		}
	}
	if v := os.Getenv("CHURN_HISTORY_TABLE"); v != "" {
		cfg.Storage.HistoryTable = v
	}
	if v := os.Getenv("AWS_REGION"); v != "" {
		cfg.Storage.AWSRegion = v
	}
	if v := os.Getenv("AWS_ACCESS_KEY_ID"); v != "" {
		cfg.Storage.AccessKeyID = v
	}
	if v := os.Getenv("AWS_SECRET_ACCESS_KEY"); v != "" {
		cfg.Storage.SecretAccessKey = v
	}
	if v := os.Getenv("BEDROCK_MODEL_ID"); v != "" {
		cfg.Bedrock.ModelID = v
	}
	if v := os.Getenv("BEDROCK_ENABLED"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Bedrock.Enabled = b
		}
	}
	if v := os.Getenv("CHURN_RULES_FILE"); v != "" {
		cfg.Scoring.RulesFile = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("PORT"); v != "" {
		if p, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = p
		}
	}

	return cfg, nil
}
