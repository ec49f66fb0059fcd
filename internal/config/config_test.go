package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad(t *testing.T) {
	// Create a temporary config file
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	configContent := `
server:
  port: 9090
  host: "0.0.0.0"

identity:
  normalize_email: true

sources:
  subscription:
    kind: file
    path: ./exports/stripe.csv
  engagement:
    kind: s3
    key: exports/braze.csv
  support:
    kind: snowflake
    query: SELECT * FROM ZENDESK_TICKETS

storage:
  type: "aws"
  s3_bucket: "churn-exports"
  aws_region: "us-east-1"

redis:
  url: "redis://localhost:6379/0"
  snapshot_ttl_minutes: 30

bedrock:
  enabled: true
  allow_weights: true

scoring:
  rules_file: rules.yaml

logging:
  level: debug
  redact_pii: true
`
	err := os.WriteFile(configPath, []byte(configContent), 0644)
	require.NoError(t, err)

	cfg, err := Load(configPath)
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "0.0.0.0", cfg.Server.Host)
	assert.True(t, cfg.Identity.NormalizeEmail)

	assert.True(t, cfg.Sources.Configured())
	assert.Equal(t, SourceFile, cfg.Sources.Subscription.Kind)
	assert.Equal(t, "./exports/stripe.csv", cfg.Sources.Subscription.Path)
	assert.Equal(t, "exports/braze.csv", cfg.Sources.Engagement.Key)
	assert.Equal(t, SourceSnowflake, cfg.Sources.Support.Kind)

	assert.Equal(t, "aws", cfg.Storage.Type)
	assert.Equal(t, "churn-exports", cfg.Storage.S3Bucket)
	assert.Equal(t, "us-east-1", cfg.Storage.AWSRegion)

	assert.Equal(t, 30*time.Minute, cfg.Redis.SnapshotTTL())
	assert.True(t, cfg.Bedrock.Enabled)
	assert.True(t, cfg.Bedrock.AllowWeights)
	assert.Equal(t, "rules.yaml", cfg.Scoring.RulesFile)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.True(t, cfg.Logging.RedactPII)
}

func TestLoadDefaults(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	err := os.WriteFile(configPath, []byte("identity:\n  normalize_email: false\n"), 0644)
	require.NoError(t, err)

	cfg, err := Load(configPath)
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "localhost", cfg.Server.Host)
	assert.Equal(t, 60*time.Second, cfg.Server.ReadTimeout())
	assert.Equal(t, int64(64<<20), cfg.Server.MaxUploadBytes())
	assert.Equal(t, "local", cfg.Storage.Type)
	assert.Equal(t, "churn", cfg.Storage.S3Prefix)
	assert.Equal(t, 24*time.Hour, cfg.Redis.SnapshotTTL())
	assert.Equal(t, 1024, cfg.Bedrock.MaxTokens)
	assert.Equal(t, time.Minute, cfg.Bedrock.Timeout())
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.False(t, cfg.Identity.NormalizeEmail)
	assert.False(t, cfg.Sources.Configured())
}

func TestLoadFromEnv(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	configContent := `
postgres:
  database_url: "postgres://file/db"
redis:
  url: "redis://file:6379"
`
	err := os.WriteFile(configPath, []byte(configContent), 0644)
	require.NoError(t, err)

	t.Setenv("DATABASE_URL", "postgres://env/db")
	t.Setenv("REDIS_URL", "redis://env:6379")
	t.Setenv("BEDROCK_ENABLED", "true")
	t.Setenv("PORT", "9999")

	cfg, err := LoadFromEnv(configPath)
	require.NoError(t, err)

	// Environment variables should override file values
	assert.Equal(t, "postgres://env/db", cfg.Postgres.DatabaseURL)
	assert.Equal(t, "redis://env:6379", cfg.Redis.URL)
	assert.True(t, cfg.Bedrock.Enabled)
	assert.Equal(t, 9999, cfg.Server.Port)
}

func TestLoadFromEnv_NoFile(t *testing.T) {
	t.Setenv("LOG_LEVEL", "warn")
	t.Setenv("PORT", "")

	cfg, err := LoadFromEnv("")
	require.NoError(t, err)
	assert.Equal(t, "warn", cfg.Logging.Level)
	assert.Equal(t, 8080, cfg.Server.Port)
}

func TestLoadFileNotFound(t *testing.T) {
	_, err := Load("/nonexistent/path/config.yaml")
	assert.Error(t, err)
}

func TestGetAWSProfile(t *testing.T) {
	t.Setenv("ECS_CONTAINER_METADATA_URI", "")
	t.Setenv("AWS_EXECUTION_ENV", "")

	cfg := StorageConfig{AWSProfile: "dev"}
	t.Setenv("AWS_PROFILE_OVERRIDE", "")
	assert.Equal(t, "dev", cfg.GetAWSProfile())

	t.Setenv("AWS_PROFILE_OVERRIDE", "iam")
	assert.Equal(t, "", cfg.GetAWSProfile())

	t.Setenv("AWS_PROFILE_OVERRIDE", "prod")
	assert.Equal(t, "prod", cfg.GetAWSProfile())
}
