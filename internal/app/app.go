// Package app wires the loader, the session registry, the HTTP surface and
// the optional refresh consumer into one service.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/mohammed-shakir/passmap/internal/api"
	"github.com/mohammed-shakir/passmap/internal/cache/redisstore"
	"github.com/mohammed-shakir/passmap/internal/core/config"
	"github.com/mohammed-shakir/passmap/internal/core/httpclient"
	"github.com/mohammed-shakir/passmap/internal/core/server"
	"github.com/mohammed-shakir/passmap/internal/engine/headless"
	"github.com/mohammed-shakir/passmap/internal/filter"
	"github.com/mohammed-shakir/passmap/internal/loader"
	"github.com/mohammed-shakir/passmap/internal/passes"
	"github.com/mohammed-shakir/passmap/internal/refresh/kafkaconsumer"
	"github.com/mohammed-shakir/passmap/internal/session"
)

const (
	retryMin = time.Second
	retryMax = 30 * time.Second
)

type App struct {
	cfg      config.Config
	logger   *slog.Logger
	zl       *zerolog.Logger
	client   *http.Client
	cache    *redisstore.Client
	loader   *loader.Loader
	sessions *session.Registry

	// serializes loads so broadcasts land in fetch order
	loadMu   sync.Mutex
	loadedAt atomic.Int64
}

type Option func(*App)

// WithHTTPClient replaces the outbound client used for document fetches.
func WithHTTPClient(c *http.Client) Option {
	return func(a *App) { a.client = c }
}

// New builds the service. A cache that cannot be reached is logged and
// skipped; documents are then fetched upstream every time.
func New(ctx context.Context, cfg config.Config, logger *slog.Logger, zl *zerolog.Logger, opts ...Option) (*App, error) {
	if logger == nil {
		logger = slog.Default()
	}
	a := &App{cfg: cfg, logger: logger, zl: zl}
	for _, o := range opts {
		o(a)
	}
	if a.client == nil {
		a.client = httpclient.NewOutbound(cfg.FetchTimeout)
	}

	var lopts []loader.Option
	if cfg.DocCacheEnabled {
		c, err := redisstore.New(ctx, cfg.RedisAddr, redisOptions(cfg)...)
		if err != nil {
			logger.Warn("document cache disabled", "addr", cfg.RedisAddr, "err", err)
		} else {
			a.cache = c
			lopts = append(lopts, loader.WithCache(c))
		}
	}
	a.loader = loader.New(logger.With("component", "loader"), a.client, loader.Config{
		MetadataURL: cfg.MetadataURL,
		CatalogURL:  cfg.CatalogURL,
		StatusURL:   cfg.StatusURL,
		PathsURL:    cfg.PathsURL,
		CacheTTL:    cfg.DocCacheTTL,
	}, lopts...)

	reg, err := session.NewRegistry(cfg.SessionsMax, session.Config{
		Layer:        cfg.PassLayer,
		Debounce:     cfg.PassDebounce,
		InitialDelay: cfg.PassInitialDelay,
		Passes:       passes.Options{Max: cfg.PassMax, Bucket: cfg.PassBucket},
	}, logger)
	if err != nil {
		_ = a.closeCache()
		return nil, err
	}
	a.sessions = reg
	return a, nil
}

func redisOptions(cfg config.Config) []redisstore.Option {
	var opts []redisstore.Option
	if cfg.RedisPoolSize > 0 {
		opts = append(opts, redisstore.WithPoolSize(cfg.RedisPoolSize))
	}
	if cfg.RedisTimeout > 0 {
		opts = append(opts,
			redisstore.WithDialTimeout(2*cfg.RedisTimeout),
			redisstore.WithReadTimeout(cfg.RedisTimeout),
			redisstore.WithWriteTimeout(cfg.RedisTimeout))
	}
	return opts
}

func (a *App) Sessions() *session.Registry { return a.sessions }

// Load fetches every document and pushes the result to all sessions. The
// catalog is optional: when it fails the previous one stays in place.
func (a *App) Load(ctx context.Context) error {
	a.loadMu.Lock()
	defer a.loadMu.Unlock()

	start := time.Now()
	meta, err := a.loader.FetchMetadata(ctx)
	if err != nil {
		return fmt.Errorf("load metadata: %w", err)
	}
	catalog, err := a.loader.FetchCatalog(ctx)
	if err != nil {
		a.logger.Warn("satellite catalog unavailable; options will not be narrowed", "err", err)
		catalog = nil
	} else if err := filter.ValidateCatalog(catalog); err != nil {
		a.logger.Warn("satellite catalog rejected; keeping the previous one", "err", err)
		catalog = nil
	}
	raw, err := a.loader.FetchPaths(ctx)
	if err != nil {
		return fmt.Errorf("load paths: %w", err)
	}
	tiles, err := headless.DecodeTileSet(raw, a.cfg.RenderH3Res)
	if err != nil {
		return fmt.Errorf("load paths: %w", err)
	}

	if err := a.sessions.Broadcast(session.Dataset{Metadata: &meta, Catalog: catalog, Tiles: tiles}); err != nil {
		return fmt.Errorf("apply dataset: %w", err)
	}
	a.loadedAt.Store(time.Now().UnixMilli())
	a.logger.Info("dataset loaded",
		"features", tiles.Features(),
		"fragments", tiles.Fragments(),
		"skipped", tiles.Skipped(),
		"satellites", len(catalog),
		"took", time.Since(start).String())
	return nil
}

// Reload drops cached documents and loads again. It serves refresh events.
func (a *App) Reload(ctx context.Context) error {
	if err := a.loader.Invalidate(ctx); err != nil {
		return err
	}
	return a.Load(ctx)
}

// Readiness is ready once a dataset has been loaded.
func (a *App) Readiness() (bool, map[string]string) {
	checks := map[string]string{"dataset": "missing", "doc_cache": "disabled"}
	ready := a.loadedAt.Load() != 0
	if ready {
		checks["dataset"] = "loaded"
	}
	if a.cache != nil {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		if err := a.cache.Ping(ctx); err != nil {
			checks["doc_cache"] = "unreachable"
		} else {
			checks["doc_cache"] = "ok"
		}
	}
	return ready, checks
}

func (a *App) Handler() http.Handler {
	return server.NewRouter(a.logger, api.New(a.logger, a.sessions, a.loader).Routes(), a)
}

// Run loads the dataset in the background, starts the refresh consumer when
// enabled and serves HTTP until ctx is done.
func (a *App) Run(ctx context.Context) error {
	go a.loadWithRetry(ctx)

	if a.cfg.Refresh.Enabled {
		c := kafkaconsumer.New(kafkaconsumer.FromRefresh(a.cfg.Refresh), a.logger, a.zl, a)
		go func() {
			if err := c.Start(ctx); err != nil {
				a.logger.Error("refresh consumer stopped", "err", err)
			}
		}()
	}

	return server.Run(ctx, a.cfg, a.logger, a.Handler())
}

func (a *App) loadWithRetry(ctx context.Context) {
	wait := retryMin
	for {
		err := a.Load(ctx)
		if err == nil || ctx.Err() != nil {
			return
		}
		a.logger.Error("initial load failed", "err", err, "retry_in", wait.String())
		select {
		case <-ctx.Done():
			return
		case <-time.After(wait):
		}
		wait = min(wait*2, retryMax)
	}
}

// Close ends every session and releases the cache connection.
func (a *App) Close() error {
	a.sessions.Close()
	return a.closeCache()
}

func (a *App) closeCache() error {
	if a.cache == nil {
		return nil
	}
	return a.cache.Close()
}
