package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"path/filepath"

	"github.com/Lartitiz/nowadaysagency-sub004/internal/api/v1"
	"github.com/Lartitiz/nowadaysagency-sub004/internal/config"
	"github.com/Lartitiz/nowadaysagency-sub004/internal/exporter"
	"github.com/Lartitiz/nowadaysagency-sub004/internal/importer"
	"github.com/Lartitiz/nowadaysagency-sub004/internal/service/excel"
	"github.com/Lartitiz/nowadaysagency-sub004/internal/service/inference"
	"github.com/Lartitiz/nowadaysagency-sub004/internal/service/mapping"
	"github.com/Lartitiz/nowadaysagency-sub004/internal/service/stats"
	"github.com/Lartitiz/nowadaysagency-sub004/internal/service/wizard"
	"github.com/Lartitiz/nowadaysagency-sub004/internal/session"
	"github.com/Lartitiz/nowadaysagency-sub004/internal/storage"
	"github.com/Lartitiz/nowadaysagency-sub004/internal/store"
	"github.com/Lartitiz/nowadaysagency-sub004/internal/store/postgres"
)

// Repository persistance commune aux pilotes SQLite et PostgreSQL
type Repository interface {
	importer.Repository
	stats.Repository
	wizard.DraftStore
	v1.ImportLogLister
	Close() error
}

// Components services assemblés depuis la configuration
type Components struct {
	Repo     Repository
	Imports  *importer.Coordinator
	Stats    *stats.Service
	Wizards  *wizard.Manager
	Exporter *exporter.Exporter
	Status   v1.StatusInfo
	closers  []func() error
}

// Build ouvre les backends configurés et assemble les services
func Build(ctx context.Context, cfg *config.AppConfig, dataDir string) (*Components, error) {
	c := &Components{Status: v1.StatusInfo{
		StorageDriver:     cfg.Storage.Driver,
		InferenceProvider: cfg.Inference.Provider,
		SessionBackend:    cfg.Session.Backend,
		ArchiveBackend:    cfg.Archive.Backend,
	}}

	repo, err := openRepository(ctx, cfg, dataDir)
	if err != nil {
		return nil, err
	}
	c.Repo = repo
	c.closers = append(c.closers, repo.Close)

	sessions, err := c.openSessions(ctx, cfg)
	if err != nil {
		c.Close()
		return nil, err
	}

	archive, err := openArchive(ctx, cfg, dataDir)
	if err != nil {
		c.Close()
		return nil, err
	}

	inferrer, err := openInferrer(ctx, cfg)
	if err != nil {
		// l'analyse échouera avec un message explicite ; les mappings enregistrés restent utilisables
		slog.Warn("inference provider unavailable", "provider", cfg.Inference.Provider, "error", err)
	}
	resolver := mapping.NewResolver(repo, inferrer).WithSampleRows(cfg.Import.SampleRows)

	c.Imports = importer.NewCoordinator(excel.NewReader(), resolver, repo, sessions, importer.Options{
		BaseYear: cfg.Import.BaseYear,
		Archive:  archive,
	})
	c.Stats = stats.NewService(repo)
	c.Exporter = exporter.NewExporter(repo)
	c.Wizards = wizard.NewManager(repo, nil, wizard.DefaultDebounce)
	return c, nil
}

// Close enregistre les brouillons en attente puis ferme les backends
func (c *Components) Close() error {
	var errs []error
	if c.Wizards != nil {
		if err := c.Wizards.Close(context.Background()); err != nil {
			errs = append(errs, err)
		}
	}
	for i := len(c.closers) - 1; i >= 0; i-- {
		if err := c.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func openRepository(ctx context.Context, cfg *config.AppConfig, dataDir string) (Repository, error) {
	switch cfg.Storage.Driver {
	case "postgres":
		pg, err := postgres.Open(ctx, cfg.Storage.PostgresDSN)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize database: %w", err)
		}
		slog.Info("storage ready", "driver", "postgres")
		return pg, nil
	default:
		path := config.SQLitePath(cfg, dataDir)
		st, err := store.New(path)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize database: %w", err)
		}
		slog.Info("storage ready", "driver", "sqlite", "path", path)
		return st, nil
	}
}

func (c *Components) openSessions(ctx context.Context, cfg *config.AppConfig) (session.Store, error) {
	if cfg.Session.Backend != "redis" {
		return session.NewMemoryStore(cfg.SessionTTL()), nil
	}
	client, err := session.Dial(ctx, cfg.Session.RedisURL)
	if err != nil {
		return nil, err
	}
	c.closers = append(c.closers, client.Close)
	return session.NewRedisStore(client, cfg.SessionTTL()), nil
}

func openArchive(ctx context.Context, cfg *config.AppConfig, dataDir string) (storage.Archive, error) {
	switch cfg.Archive.Backend {
	case "s3":
		a, err := storage.NewS3Archive(ctx, storage.S3Config{
			Bucket: cfg.Archive.Bucket,
			Prefix: cfg.Archive.Prefix,
			Region: cfg.Archive.Region,
		})
		if err != nil {
			return nil, err
		}
		return a, nil
	case "local":
		a, err := storage.NewLocalArchive(filepath.Join(dataDir, "uploads"))
		if err != nil {
			return nil, err
		}
		return a, nil
	default:
		return nil, nil
	}
}

func openInferrer(ctx context.Context, cfg *config.AppConfig) (mapping.Inferrer, error) {
	switch cfg.Inference.Provider {
	case "gemini":
		g, err := inference.NewGeminiInferrer(ctx, cfg.Inference.APIKey, cfg.Inference.Model)
		if err != nil {
			return nil, err
		}
		return g, nil
	default:
		if cfg.Inference.Endpoint == "" {
			return nil, errors.New("inference endpoint not configured")
		}
		client := inference.NewRetryClient(&http.Client{Timeout: cfg.InferenceTimeout()}, cfg.Inference.MaxRetries)
		return inference.NewHTTPInferrer(cfg.Inference.Endpoint, cfg.Inference.APIKey, client), nil
	}
}
