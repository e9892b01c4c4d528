// Package app builds the runtime object graph shared by the server and the
// backfill command from a loaded configuration.
package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"net/http"
	"time"

	_ "github.com/lib/pq" // PostgreSQL driver
	"github.com/redis/go-redis/v9"

	"github.com/ignite/memorial-crm/internal/api"
	"github.com/ignite/memorial-crm/internal/config"
	"github.com/ignite/memorial-crm/internal/docstore"
	"github.com/ignite/memorial-crm/internal/metrics"
	"github.com/ignite/memorial-crm/internal/pkg/distlock"
	"github.com/ignite/memorial-crm/internal/pkg/httpretry"
	"github.com/ignite/memorial-crm/internal/pkg/logger"
	"github.com/ignite/memorial-crm/internal/repository/postgres"
	"github.com/ignite/memorial-crm/internal/searchindex"
	"github.com/ignite/memorial-crm/internal/segmentation"
	"github.com/ignite/memorial-crm/internal/service/customersync"
	"github.com/ignite/memorial-crm/internal/service/searchlist"
	"github.com/ignite/memorial-crm/internal/storage"
)

// App holds the wired services and the connections that back them.
type App struct {
	Config  *config.Config
	DB      *sql.DB
	Redis   *redis.Client
	Store   docstore.Store
	Index   searchindex.Index
	Metrics *metrics.Metrics

	Customers *customersync.Service
	Lists     *searchlist.Service
	Engine    *segmentation.Engine
	Backfill  *customersync.Backfill
	Health    *api.HealthChecker
}

// Build connects the configured backends and wires the services. Close
// releases the connections.
func Build(ctx context.Context, cfg *config.Config) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	logger.SetLevel(logger.ParseLevel(cfg.Log.Level))
	logger.SetRedactPII(cfg.Log.Redact())

	a := &App{Config: cfg, Metrics: metrics.New(), Health: api.NewHealthChecker()}
	if err := a.openStore(ctx); err != nil {
		a.Close()
		return nil, err
	}
	if err := a.openIndex(ctx); err != nil {
		a.Close()
		return nil, err
	}

	a.Customers = customersync.NewService(a.Store, a.Index).WithMetrics(a.Metrics)
	a.Lists = searchlist.NewService(a.Store)
	a.Engine = segmentation.NewEngine(a.Index, a.Lists).WithMetrics(a.Metrics)
	a.Backfill = customersync.NewBackfill(a.Store, a.Index).WithMetrics(a.Metrics)

	if lock := a.lock(); lock != nil {
		a.Backfill.WithLock(lock)
	}
	archive, err := a.archive(ctx)
	if err != nil {
		a.Close()
		return nil, err
	}
	if archive != nil {
		a.Backfill.WithArchive(archive)
	}
	return a, nil
}

// BackfillOptions returns the configured backfill defaults.
func (a *App) BackfillOptions() customersync.BackfillOptions {
	s := a.Config.Sync
	return customersync.BackfillOptions{
		Collections:        s.Collections,
		PageSize:           s.PageSize,
		CanonicalChunkSize: s.CanonicalChunkSize,
		IndexChunkSize:     s.IndexChunkSize,
	}
}

// Close releases database and Redis connections.
func (a *App) Close() error {
	var errs []error
	if a.Redis != nil {
		errs = append(errs, a.Redis.Close())
	}
	if a.DB != nil {
		errs = append(errs, a.DB.Close())
	}
	return errors.Join(errs...)
}

func (a *App) openStore(ctx context.Context) error {
	cfg := a.Config.DocStore
	switch cfg.Backend {
	case config.BackendPostgres:
		db, err := sql.Open("postgres", cfg.DatabaseURL)
		if err != nil {
			return fmt.Errorf("open database: %w", err)
		}
		db.SetMaxOpenConns(10)
		db.SetMaxIdleConns(5)
		db.SetConnMaxLifetime(5 * time.Minute)
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		if err := db.PingContext(pingCtx); err != nil {
			db.Close()
			return fmt.Errorf("ping database: %w", err)
		}
		a.DB = db
		a.Store = postgres.NewDocumentStore(db)
		a.Health.AddCheck("database", true, time.Second, db.PingContext)
		log.Printf("[app] document store: postgres")

	case config.BackendDynamo:
		awsCfg, err := storage.LoadAWSConfig(ctx, cfg.AWSRegion, cfg.GetAWSProfile())
		if err != nil {
			return err
		}
		a.Store = storage.NewDynamoStore(storage.NewDynamoClient(awsCfg), cfg.DynamoDBTable)
		log.Printf("[app] document store: dynamodb table %s (%s)", cfg.DynamoDBTable, cfg.AWSRegion)

	default:
		a.Store = docstore.NewMemoryStore()
		log.Printf("[app] document store: in-memory (data is not persisted)")
	}
	return nil
}

func (a *App) openIndex(ctx context.Context) error {
	cfg := a.Config.Search
	switch cfg.Backend {
	case config.BackendRedis:
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			opts = &redis.Options{Addr: cfg.RedisURL}
		}
		client := redis.NewClient(opts)
		pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
		defer cancel()
		if err := client.Ping(pingCtx).Err(); err != nil {
			client.Close()
			return fmt.Errorf("ping redis: %w", err)
		}
		a.Redis = client
		a.Index = searchindex.NewRedisIndex(client, cfg.IndexName)
		a.Health.AddCheck("redis", true, 500*time.Millisecond, func(ctx context.Context) error {
			return client.Ping(ctx).Err()
		})
		log.Printf("[app] search index: redis %s", cfg.IndexName)

	case config.BackendHosted:
		doer := httpretry.NewRetryClient(&http.Client{Timeout: cfg.Timeout()}, cfg.MaxRetries)
		a.Index = searchindex.NewHostedIndex(searchindex.HostedConfig{
			AppID:     cfg.AppID,
			APIKey:    cfg.APIKey,
			IndexName: cfg.IndexName,
			BaseURL:   cfg.BaseURL,
		}, doer)
		log.Printf("[app] search index: hosted %s/%s", cfg.AppID, cfg.IndexName)

	default:
		a.Index = searchindex.NewMemoryIndex()
		log.Printf("[app] search index: in-memory")
	}

	if cfg.ApplySettings {
		if c, ok := a.Index.(searchindex.Configurable); ok {
			if err := c.SetSettings(ctx, searchindex.DefaultSettings()); err != nil {
				return fmt.Errorf("apply index settings: %w", err)
			}
		}
	}
	return nil
}

// lock prefers Redis and falls back to a Postgres advisory lock. Without
// either, backfills are only serialized within the process.
func (a *App) lock() customersync.Locker {
	var rc redis.UniversalClient
	if a.Redis != nil {
		rc = a.Redis
	}
	l, err := distlock.NewLock(rc, a.DB, a.Config.Sync.LockKey, a.Config.Sync.LockTTL())
	if err != nil {
		log.Printf("[app] backfill lock disabled: %v", err)
		return nil
	}
	return l
}

func (a *App) archive(ctx context.Context) (customersync.ReportArchive, error) {
	cfg := a.Config.Reports
	switch cfg.Backend {
	case config.BackendS3:
		awsCfg, err := storage.LoadAWSConfig(ctx, cfg.AWSRegion, cfg.GetAWSProfile())
		if err != nil {
			return nil, err
		}
		return storage.NewS3ReportArchive(storage.NewS3Client(awsCfg), cfg.S3Bucket, cfg.S3Prefix), nil
	case config.BackendFile:
		return storage.NewFileReportArchive(cfg.LocalPath), nil
	}
	return nil, nil
}
