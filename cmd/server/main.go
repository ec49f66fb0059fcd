package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/lib/pq" // PostgreSQL driver
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/redis/go-redis/v9"

	"github.com/ignite/churn-radar/internal/api"
	"github.com/ignite/churn-radar/internal/config"
	"github.com/ignite/churn-radar/internal/datanorm"
	"github.com/ignite/churn-radar/internal/export"
	"github.com/ignite/churn-radar/internal/metrics"
	"github.com/ignite/churn-radar/internal/pipeline"
	"github.com/ignite/churn-radar/internal/pkg/distlock"
	"github.com/ignite/churn-radar/internal/pkg/logger"
	"github.com/ignite/churn-radar/internal/repository/dynamo"
	"github.com/ignite/churn-radar/internal/repository/postgres"
	"github.com/ignite/churn-radar/internal/scoring"
	"github.com/ignite/churn-radar/internal/service/rules"
	"github.com/ignite/churn-radar/internal/snapshot"
	"github.com/ignite/churn-radar/internal/snowflake"
	"github.com/ignite/churn-radar/internal/source"
	"github.com/ignite/churn-radar/internal/storage"
	"github.com/ignite/churn-radar/internal/suggest"
	"github.com/ignite/churn-radar/internal/unify"
	"github.com/ignite/churn-radar/internal/worker"
)

var Version = "dev"

// loadLockTTL bounds how long a crashed replica can block loads. The lock
// is renewed while a load runs.
const loadLockTTL = time.Minute

// checkPortAvailable verifies that the target port is not already in use.
func checkPortAvailable(addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("address %s is already in use: %v", addr, err)
	}
	ln.Close()
	return nil
}

func configPath() string {
	if p := os.Getenv("CHURN_CONFIG"); p != "" {
		return p
	}
	if _, err := os.Stat("config/config.yaml"); err == nil {
		return "config/config.yaml"
	}
	return ""
}

func openPostgres(ctx context.Context, cfg config.PostgresConfig) (*sql.DB, error) {
	db, err := sql.Open("postgres", cfg.DatabaseURL)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(30 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

func openRedis(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		opts = &redis.Options{Addr: url}
	}
	client := redis.NewClient(opts)
	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, err
	}
	return client, nil
}

// seedRulesFile stores the configured rules file as a new version of the
// configured rule set name.
func seedRulesFile(ctx context.Context, svc *rules.Service, cfg config.ScoringConfig) error {
	data, err := os.ReadFile(cfg.RulesFile)
	if err != nil {
		return err
	}
	rs, err := scoring.ParseRuleSet(data)
	if err != nil {
		return err
	}
	saved, err := svc.Save(ctx, cfg.RuleSetName, rs, rules.OriginFile)
	if err != nil {
		return err
	}
	logger.Info("rules file loaded", "name", saved.Name, "version", saved.Version, "rules", len(saved.Rules))
	return nil
}

func main() {
	cfg, err := config.LoadFromEnv(configPath())
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	logger.Configure(cfg.Logging.Level, cfg.Logging.RedactPII)

	if err := checkPortAvailable(cfg.Server.Addr()); err != nil {
		log.Fatalf("Pre-flight check FAILED: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	store, err := storage.New(ctx, cfg.Storage)
	if err != nil {
		log.Fatalf("Failed to initialize storage: %v", err)
	}

	var db *sql.DB
	if cfg.Postgres.DatabaseURL != "" {
		if db, err = openPostgres(ctx, cfg.Postgres); err != nil {
			log.Fatalf("Failed to connect to PostgreSQL: %v", err)
		}
		defer db.Close()
		logger.Info("postgres connected")
	}

	var redisClient *redis.Client
	snapshots := snapshot.Store(snapshot.NewMemoryStore(0))
	if cfg.Redis.URL != "" {
		if redisClient, err = openRedis(ctx, cfg.Redis.URL); err != nil {
			logger.Warn("redis unavailable, snapshots stay in memory", "error", err)
		} else {
			defer redisClient.Close()
			snapshots = snapshot.NewRedisStore(redisClient, cfg.Redis.SnapshotTTL())
			logger.Info("redis snapshot cache enabled", "ttl", cfg.Redis.SnapshotTTL())
		}
	}

	var (
		warehouse api.Pinger
		querier   source.TableQuerier
	)
	if cfg.Snowflake.Enabled {
		sf, err := snowflake.NewClient(snowflake.FromConfig(cfg.Snowflake))
		if err != nil {
			log.Fatalf("Failed to initialize Snowflake: %v", err)
		}
		defer sf.Close()
		warehouse, querier = sf, sf
	}

	var ruleRepo rules.Repository
	if db != nil {
		repo := postgres.NewRuleSetRepo(db)
		if err := repo.EnsureSchema(ctx); err != nil {
			log.Fatalf("Failed to prepare rule store: %v", err)
		}
		ruleRepo = repo
	}
	ruleSvc := rules.NewService(ruleRepo)
	if cfg.Scoring.RulesFile != "" {
		if ruleRepo == nil {
			logger.Warn("rules file ignored: no rule store configured", "path", cfg.Scoring.RulesFile)
		} else if err := seedRulesFile(ctx, ruleSvc, cfg.Scoring); err != nil {
			log.Fatalf("Failed to load rules file %s: %v", cfg.Scoring.RulesFile, err)
		}
	}

	var sources *source.Set
	if cfg.Sources.Configured() {
		set, err := source.Factory{Store: store, Postgres: db, Snowflake: querier}.Build(cfg.Sources)
		if err != nil {
			log.Fatalf("Invalid source configuration: %v", err)
		}
		sources = &set
	}

	var suggester suggest.Suggester
	if cfg.Bedrock.Enabled {
		if suggester, err = suggest.NewBedrockSuggester(ctx, cfg.Bedrock); err != nil {
			log.Fatalf("Failed to initialize Bedrock: %v", err)
		}
		logger.Info("threshold suggestions enabled", "model", cfg.Bedrock.ModelID)
	}

	history, err := openHistory(ctx, cfg.Storage)
	if err != nil {
		log.Fatalf("Failed to initialize run history: %v", err)
	}

	reg := metrics.NewRegistry()
	svc := pipeline.NewService(pipeline.Options{
		Normalizer: datanorm.NewNormalizer(datanorm.Options{NormalizeEmail: cfg.Identity.NormalizeEmail}),
		Unifier:    unify.NewUnifier(unify.DefaultFillPolicy()),
		Snapshots:  snapshots,
		Exporter:   export.NewExporter(store),
		Metrics:    reg,
		History:    history,
		LoadLock:   distlock.NewLock(redisClient, db, "churn:pipeline:load", loadLockTTL),
	})

	var refresher *worker.RefreshScheduler
	if cfg.Refresh.Enabled {
		if sources == nil {
			log.Fatalf("refresh.enabled requires all three sources to be configured")
		}
		refresher = worker.NewRefreshScheduler(svc, ruleSvc, *sources, cfg.Refresh.RuleSet, cfg.Refresh.Interval())
		if err := refresher.Start(); err != nil {
			log.Fatalf("Failed to start refresh scheduler: %v", err)
		}
	}

	server := api.NewServer(cfg.Server, api.Deps{
		Pipeline:  svc,
		Rules:     ruleSvc,
		Sources:   sources,
		Suggester: suggester,
		Metrics:   reg,
		Health:    api.NewHealthChecker(db, redisClient, warehouse, Version),
	})

	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		logger.Info("server starting", "addr", cfg.Server.Addr(), "version", Version)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("Server error: %v", err)
		}
	}()

	<-done
	logger.Info("shutting down")
	if refresher != nil {
		refresher.Stop()
	}
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", "error", err)
	}
	logger.Info("server stopped")
}

// openHistory uses DynamoDB when a history table is configured and an
// in-memory log otherwise.
func openHistory(ctx context.Context, cfg config.StorageConfig) (pipeline.History, error) {
	if cfg.HistoryTable == "" {
		return pipeline.NewMemoryHistory(0), nil
	}
	awsCfg, err := storage.LoadAWSConfig(ctx, cfg.AWSRegion, cfg.GetAWSProfile(), cfg.AccessKeyID, cfg.SecretAccessKey)
	if err != nil {
		return nil, err
	}
	logger.Info("run history in DynamoDB", "table", cfg.HistoryTable, "ttl", cfg.HistoryTTL())
	return dynamo.NewHistoryRepo(dynamodb.NewFromConfig(awsCfg), cfg.HistoryTable, cfg.HistoryTTL()), nil
}
