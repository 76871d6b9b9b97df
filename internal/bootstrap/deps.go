// Package bootstrap assembles the runtime graph shared by the API server and the worker.
package bootstrap

import (
	"context"
	"fmt"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"brandkit/internal/adapter/repo"
	"brandkit/internal/generation"
	"brandkit/internal/infra"
	"brandkit/internal/infra/credentials"
	"brandkit/internal/prediction"
	"brandkit/internal/storage"
	"brandkit/migrations"
)

// Deps holds the wired components. Close releases them.
type Deps struct {
	Pool      *pgxpool.Pool
	SQL       *infra.SQLRunner
	Registry  *prediction.Registry
	FileStore *storage.FileStore
	Jobs      *repo.JobRepositoryPG
	Client    *prediction.Client
	Service   *generation.Service
}

// Build connects to the database, optionally migrates it and wires the generation service.
func Build(ctx context.Context, cfg *infra.Config, logger infra.Logger) (*Deps, error) {
	if cfg.AutoMigrate {
		if err := infra.Migrate(ctx, cfg.DatabaseURL, migrations.FS, logger); err != nil {
			return nil, err
		}
	}

	pool, err := infra.NewDBPool(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}
	d := &Deps{Pool: pool, SQL: infra.NewSQLRunner(pool, logger)}

	if err := d.wire(ctx, cfg, logger); err != nil {
		pool.Close()
		return nil, err
	}
	return d, nil
}

func (d *Deps) wire(ctx context.Context, cfg *infra.Config, logger infra.Logger) error {
	token, err := credentials.NewStore(d.SQL).ResolvePredictionToken(ctx, cfg.PredictionAPIToken)
	if err != nil {
		return fmt.Errorf("prediction token: %w", err)
	}

	d.Registry = prediction.DefaultRegistry()
	if path := strings.TrimSpace(cfg.ModelRegistryPath); path != "" {
		if d.Registry, err = prediction.LoadRegistry(path); err != nil {
			return err
		}
	}

	store, err := d.objectStore(ctx, cfg, logger)
	if err != nil {
		return err
	}

	httpClient := &http.Client{Timeout: 60 * time.Second}
	d.Client, err = prediction.NewClient(prediction.Options{
		BaseURL:      cfg.PredictionAPIURL,
		Token:        token,
		HTTPClient:   httpClient,
		Registry:     d.Registry,
		Store:        store,
		Logger:       &logger,
		PollInterval: cfg.PredictionPollInterval,
		Timeout:      cfg.PredictionTimeout,
	})
	if err != nil {
		return fmt.Errorf("prediction client: %w", err)
	}

	d.Jobs = repo.NewJobRepository(d.SQL)
	d.Service, err = generation.NewService(generation.Options{
		Predictor:     d.Client,
		Generations:   repo.NewGenerationRepository(d.SQL),
		Notifications: repo.NewNotificationRepository(d.SQL),
		Jobs:          d.Jobs,
		HTTPClient:    httpClient,
		Logger:        &logger,
	})
	return err
}

func (d *Deps) objectStore(ctx context.Context, cfg *infra.Config, logger infra.Logger) (prediction.ImageStore, error) {
	if cfg.StorageDriver == "s3" {
		return storage.NewS3Store(ctx, storage.S3Options{
			Bucket:          cfg.S3Bucket,
			Region:          cfg.S3Region,
			Endpoint:        cfg.S3Endpoint,
			AccessKeyID:     cfg.S3AccessKeyID,
			SecretAccessKey: cfg.S3SecretKey,
			UsePathStyle:    cfg.S3UsePathStyle,
			PublicBaseURL:   cfg.S3PublicBaseURL,
		}, logger)
	}
	path := cfg.StoragePath
	if abs, err := filepath.Abs(path); err == nil {
		path = abs
	}
	fileStore, err := storage.NewFileStore(path, cfg.StorageBaseURL)
	if err != nil {
		return nil, err
	}
	d.FileStore = fileStore
	return fileStore, nil
}

// Close releases the database pool.
func (d *Deps) Close() {
	if d != nil && d.Pool != nil {
		d.Pool.Close()
	}
}
