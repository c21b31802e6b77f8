// Package app builds the long-lived services behind the CLI commands from a
// loaded configuration and releases them on Close.
package app

import (
	"context"
	"errors"
	"fmt"

	"cloud.google.com/go/pubsub"
	gcsstorage "cloud.google.com/go/storage"
	"go.uber.org/zap"

	"github.com/JakeFAU/ir-disclosure-crawler/internal/api"
	"github.com/JakeFAU/ir-disclosure-crawler/internal/apiclient"
	"github.com/JakeFAU/ir-disclosure-crawler/internal/config"
	"github.com/JakeFAU/ir-disclosure-crawler/internal/extractor"
	"github.com/JakeFAU/ir-disclosure-crawler/internal/fetcher/auto"
	collyfetcher "github.com/JakeFAU/ir-disclosure-crawler/internal/fetcher/colly"
	"github.com/JakeFAU/ir-disclosure-crawler/internal/fetcher/headless"
	"github.com/JakeFAU/ir-disclosure-crawler/internal/headless/detector"
	"github.com/JakeFAU/ir-disclosure-crawler/internal/ingest"
	"github.com/JakeFAU/ir-disclosure-crawler/internal/publisher"
	pspublisher "github.com/JakeFAU/ir-disclosure-crawler/internal/publisher/pubsub"
	"github.com/JakeFAU/ir-disclosure-crawler/internal/retry"
	"github.com/JakeFAU/ir-disclosure-crawler/internal/snapshot"
	"github.com/JakeFAU/ir-disclosure-crawler/internal/snapshot/gcs"
	"github.com/JakeFAU/ir-disclosure-crawler/internal/snapshot/local"
	"github.com/JakeFAU/ir-disclosure-crawler/internal/storage"
	"github.com/JakeFAU/ir-disclosure-crawler/internal/storage/memory"
	"github.com/JakeFAU/ir-disclosure-crawler/internal/storage/postgres"
	"github.com/JakeFAU/ir-disclosure-crawler/internal/storage/sqlite"
)

// App holds the services built for one command invocation.
type App struct {
	logger  *zap.Logger
	server  *api.Server
	repo    storage.Repository
	driver  *ingest.Driver
	closers []func() error
}

// NewServer opens the repository and optional publisher and wires the storage API.
func NewServer(ctx context.Context, cfg config.Config, logger *zap.Logger) (*App, error) {
	a := &App{logger: logger}

	repo, err := OpenRepository(ctx, cfg.DB)
	if err != nil {
		return nil, err
	}
	a.repo = repo
	a.addCloser(repo.Close)
	logger.Info("repository opened", zap.String("driver", cfg.DB.Driver))

	pub, err := a.openPublisher(ctx, cfg.PubSub)
	if err != nil {
		_ = a.Close()
		return nil, err
	}

	a.server = api.NewServer(repo, pub, api.Config{RequestTimeout: cfg.Server.RequestTimeout}, logger.Named("api"))
	return a, nil
}

// NewCrawler builds the fetcher, extractor, storage client and snapshot archive for a crawl.
func NewCrawler(ctx context.Context, cfg config.Config, logger *zap.Logger) (*App, error) {
	a := &App{logger: logger}

	fetcher, err := a.openFetcher(cfg)
	if err != nil {
		return nil, err
	}
	ext, err := extractor.New(cfg.Crawler.BaseDomain)
	if err != nil {
		_ = a.Close()
		return nil, fmt.Errorf("init extractor: %w", err)
	}
	retryCfg := retry.Config{
		MaxAttempts: cfg.Retry.MaxAttempts,
		BaseDelay:   cfg.Retry.BaseDelay,
		MaxDelay:    cfg.Retry.MaxDelay,
	}
	client, err := apiclient.New(apiclient.Config{
		Endpoint: cfg.StorageAPI.Endpoint,
		Timeout:  cfg.StorageAPI.Timeout,
		Retry:    retryCfg,
	}, logger.Named("apiclient"))
	if err != nil {
		_ = a.Close()
		return nil, fmt.Errorf("init storage client: %w", err)
	}
	archiver, err := a.openArchiver(ctx, cfg.Snapshot)
	if err != nil {
		_ = a.Close()
		return nil, err
	}

	// A nil *snapshot.Archiver must not become a non-nil interface.
	var arch ingest.Archiver
	if archiver != nil {
		arch = archiver
	}
	driver, err := ingest.New(ingest.Config{
		CrawlTarget:     cfg.Crawler.TargetURL,
		BaseDomain:      cfg.Crawler.BaseDomain,
		MinYear:         cfg.Crawler.MinYear,
		StorageEndpoint: cfg.StorageAPI.Endpoint,
		FetchRetry:      retryCfg,
	}, fetcher, ext, client, arch, logger.Named("ingest"))
	if err != nil {
		_ = a.Close()
		return nil, fmt.Errorf("init driver: %w", err)
	}
	a.driver = driver
	return a, nil
}

// Server returns the storage API built by NewServer.
func (a *App) Server() *api.Server { return a.server }

// Repository returns the repository opened by NewServer.
func (a *App) Repository() storage.Repository { return a.repo }

// Driver returns the ingestion driver built by NewCrawler.
func (a *App) Driver() *ingest.Driver { return a.driver }

// Close releases services in reverse order of creation.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}

func (a *App) addCloser(fn func() error) {
	a.closers = append(a.closers, fn)
}

// OpenRepository opens the configured document store.
func OpenRepository(ctx context.Context, cfg config.DBConfig) (storage.Repository, error) {
	switch cfg.Driver {
	case config.DriverSQLite:
		repo, err := sqlite.New(ctx, sqlite.Config{Path: cfg.DSN, Table: cfg.Table})
		if err != nil {
			return nil, fmt.Errorf("open sqlite repository: %w", err)
		}
		return repo, nil
	case config.DriverPostgres:
		repo, err := postgres.New(ctx, postgres.Config{DSN: cfg.DSN, Table: cfg.Table, MaxConns: cfg.MaxConns})
		if err != nil {
			return nil, fmt.Errorf("open postgres repository: %w", err)
		}
		return repo, nil
	case config.DriverMemory:
		return memory.NewDocumentStore(), nil
	default:
		return nil, fmt.Errorf("unknown db driver: %s", cfg.Driver)
	}
}

func (a *App) openPublisher(ctx context.Context, cfg config.PubSubConfig) (publisher.Publisher, error) {
	if !cfg.Enabled() {
		a.logger.Info("pubsub disabled; document events will not be published")
		return nil, nil
	}
	client, err := pubsub.NewClient(ctx, cfg.ProjectID)
	if err != nil {
		return nil, fmt.Errorf("create pubsub client: %w", err)
	}
	pub := pspublisher.New(client.Topic(cfg.Topic))
	a.addCloser(client.Close)
	a.addCloser(func() error {
		pub.Stop()
		return nil
	})
	a.logger.Info("publishing document events", zap.String("topic", cfg.Topic))
	return pub, nil
}

func (a *App) openFetcher(cfg config.Config) (ingest.PageFetcher, error) {
	static := func() *collyfetcher.Fetcher {
		return collyfetcher.New(collyfetcher.Config{
			UserAgent:         cfg.Crawler.UserAgent,
			RespectRobots:     cfg.Crawler.RespectRobots,
			Timeout:           cfg.Fetcher.NavigationTimeout,
			RequestsPerSecond: cfg.Fetcher.RequestsPerSecond,
		}, a.logger.Named("fetcher"))
	}
	browser := func() (*headless.Fetcher, error) {
		f, err := headless.New(headless.Config{
			UserAgent:         cfg.Crawler.UserAgent,
			NavigationTimeout: cfg.Fetcher.NavigationTimeout,
			SettleDelay:       cfg.Fetcher.SettleDelay,
			MaxScrollAttempts: cfg.Fetcher.MaxScrollAttempts,
			RequestsPerSecond: cfg.Fetcher.RequestsPerSecond,
		}, a.logger.Named("fetcher"))
		if err != nil {
			return nil, fmt.Errorf("init headless fetcher: %w", err)
		}
		return f, nil
	}

	switch cfg.Fetcher.Mode {
	case config.FetcherStatic:
		return static(), nil
	case config.FetcherHeadless:
		f, err := browser()
		if err != nil {
			return nil, err
		}
		a.addCloser(f.Close)
		return f, nil
	case config.FetcherAuto:
		f := auto.New(static(), func() (auto.PageFetcher, error) {
			b, err := browser()
			if err != nil {
				return nil, err
			}
			return b, nil
		}, detector.NewHeuristic(cfg.Fetcher.PromotionThreshold), a.logger.Named("fetcher"))
		a.addCloser(f.Close)
		return f, nil
	default:
		return nil, fmt.Errorf("unknown fetcher mode: %s", cfg.Fetcher.Mode)
	}
}

func (a *App) openArchiver(ctx context.Context, cfg config.SnapshotConfig) (*snapshot.Archiver, error) {
	switch cfg.Backend {
	case config.SnapshotNone, "":
		return nil, nil
	case config.SnapshotLocal:
		store, err := local.New(local.Config{BaseDir: cfg.Dir})
		if err != nil {
			return nil, fmt.Errorf("init local snapshots: %w", err)
		}
		return snapshot.NewArchiver(store, cfg.Prefix), nil
	case config.SnapshotGCS:
		client, err := gcsstorage.NewClient(ctx)
		if err != nil {
			return nil, fmt.Errorf("create gcs client: %w", err)
		}
		a.addCloser(client.Close)
		store, err := gcs.New(client, gcs.Config{Bucket: cfg.Bucket})
		if err != nil {
			return nil, fmt.Errorf("init gcs snapshots: %w", err)
		}
		return snapshot.NewArchiver(store, cfg.Prefix), nil
	default:
		return nil, fmt.Errorf("unknown snapshot backend: %s", cfg.Backend)
	}
}
