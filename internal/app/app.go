// Package app wires the webshop components from a Config. The HTTP server,
// the Lambda entry point and the tests all build the same graph through it.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"

	"webshop/internal/api"
	"webshop/internal/catalog"
	"webshop/internal/changelog"
	"webshop/internal/config"
	"webshop/internal/manifest"
	"webshop/internal/metrics"
	"webshop/internal/order"
	"webshop/internal/snapshot"
	"webshop/internal/state"
)

type App struct {
	Metrics   *metrics.Registry
	Catalog   *catalog.Service
	Orders    *order.Service
	Handler   *api.Handler
	Changelog *changelog.CountingWriter
	Snapshots *snapshot.Job

	products   *catalog.ProductStore
	orderStore *order.Store
	closers    []io.Closer
}

// Build opens storage, seeds the catalog and connects every configured sink.
// On error everything opened so far is closed again.
func Build(ctx context.Context, cfg config.Config) (*App, error) {
	a := &App{Metrics: metrics.NewRegistry()}
	if err := a.build(ctx, cfg); err != nil {
		_ = a.Close()
		return nil, err
	}
	log.Printf("app: ready (state=%s events=%s manifest=%s policy=%s)", cfg.StateBackend, cfg.EventSink, cfg.ManifestSink, cfg.StockPolicy)
	return a, nil
}

func (a *App) build(ctx context.Context, cfg config.Config) error {
	db, err := state.Open(ctx, cfg.StateBackend, cfg.DataDir, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("open state: %w", err)
	}
	a.closers = append(a.closers, db)

	var cache catalog.Cache
	if cfg.RedisAddr != "" {
		rc, err := catalog.NewRedisCache(ctx, cfg.RedisAddr, cfg.CacheTTL)
		if err != nil {
			return fmt.Errorf("init product cache: %w", err)
		}
		a.closers = append(a.closers, rc)
		cache = rc
	}

	ptbl, err := db.Table(catalog.TableName)
	if err != nil {
		return err
	}
	if a.products, err = catalog.NewProductStore(ptbl); err != nil {
		return err
	}
	a.Catalog = catalog.NewService(a.products, cache, a.Metrics)
	if err := a.Catalog.Seed(ctx, catalog.DefaultCatalog()); err != nil {
		return fmt.Errorf("seed catalog: %w", err)
	}

	otbl, err := db.Table(order.TableName)
	if err != nil {
		return err
	}
	if a.orderStore, err = order.NewStore(otbl); err != nil {
		return err
	}

	clog, start, err := a.openChangelog(cfg)
	if err != nil {
		return err
	}
	a.Changelog = changelog.NewCountingWriter(clog, start)
	a.Orders = order.NewService(a.Catalog, a.orderStore, a.Metrics,
		order.WithChangelog(a.Changelog),
		order.WithStockPolicy(cfg.StockPolicy),
	)

	pub, err := a.openManifest(cfg)
	if err != nil {
		return err
	}
	a.Snapshots = snapshot.NewJob(snapshot.NewFilesystemSnapshotter(cfg.SnapshotDir), pub, a.capture, a.Metrics)
	// The seeded catalog and a possibly reset changelog no longer match the
	// manifest of a previous run, so point it at the starting state right away.
	if _, err := a.Snapshots.Run(ctx); err != nil {
		return fmt.Errorf("baseline snapshot: %w", err)
	}
	a.Handler = api.New(a.Orders, a.Catalog, a.Metrics)
	return nil
}

// openChangelog returns the writer for cfg.EventSink and the offset to continue from.
// In-memory state dies with the process, so its file changelog starts over too.
func (a *App) openChangelog(cfg config.Config) (changelog.Writer, int64, error) {
	var (
		writers []changelog.Writer
		start   int64
	)
	if cfg.FileChangelog() {
		fw, err := changelog.NewFileWriter(cfg.ChangelogDir, config.ChangelogFile)
		if err != nil {
			return nil, 0, fmt.Errorf("init changelog file: %w", err)
		}
		if cfg.StateBackend == state.BackendMemory {
			if err := fw.Reset(); err != nil {
				return nil, 0, err
			}
		} else if start, err = fw.Lines(); err != nil {
			return nil, 0, fmt.Errorf("count changelog: %w", err)
		}
		writers = append(writers, fw)
	}
	switch cfg.EventSink {
	case "kafka", "both":
		kw := changelog.NewKafkaWriter(cfg.KafkaBootstrap, cfg.EventTopic)
		a.closers = append(a.closers, kw)
		writers = append(writers, kw)
	case "confluent":
		cw, err := changelog.NewConfluentWriter(cfg.KafkaBootstrap, cfg.EventTopic)
		if err != nil {
			return nil, 0, fmt.Errorf("init confluent changelog: %w", err)
		}
		a.closers = append(a.closers, cw)
		writers = append(writers, cw)
	}
	switch len(writers) {
	case 0:
		return changelog.Discard{}, 0, nil
	case 1:
		return writers[0], start, nil
	default:
		return changelog.NewMultiWriter(writers...), start, nil
	}
}

func (a *App) openManifest(cfg config.Config) (manifest.Publisher, error) {
	fs := manifest.NewFilesystemManifest(cfg.SnapshotDir)
	switch cfg.ManifestSink {
	case "kafka", "both":
		km := manifest.NewKafkaManifest(cfg.KafkaBootstrap, cfg.ManifestTopic, manifest.DefaultKey)
		a.closers = append(a.closers, km)
		if cfg.ManifestSink == "kafka" {
			return km, nil
		}
		return manifest.MultiPublisher(fs, km), nil
	default:
		return fs, nil
	}
}

// capture reads products, orders and the changelog offset while no order is in flight.
func (a *App) capture() (snapshot.State, int64, error) {
	var (
		st     snapshot.State
		offset int64
	)
	err := a.Orders.Exclusive(func() error {
		var err error
		if st.Products, err = a.products.ListAll(); err != nil {
			return err
		}
		if st.Orders, err = a.orderStore.ListAll(); err != nil {
			return err
		}
		offset = a.Changelog.Offset()
		return nil
	})
	return st, offset, err
}

// Close releases sinks first and storage last.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i].Close(); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
