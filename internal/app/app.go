package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/Adda-Baaj/bazaar-khobor/internal/api"
	"github.com/Adda-Baaj/bazaar-khobor/internal/config"
	"github.com/Adda-Baaj/bazaar-khobor/internal/crawler"
	"github.com/Adda-Baaj/bazaar-khobor/internal/logger"
	"github.com/Adda-Baaj/bazaar-khobor/pkg/analyzer"
	"github.com/Adda-Baaj/bazaar-khobor/pkg/extractor"
	"github.com/Adda-Baaj/bazaar-khobor/pkg/fetcher"
	"github.com/Adda-Baaj/bazaar-khobor/pkg/locks"
	"github.com/Adda-Baaj/bazaar-khobor/pkg/pipeline"
	"github.com/Adda-Baaj/bazaar-khobor/pkg/providers"
	"github.com/Adda-Baaj/bazaar-khobor/pkg/publishers"
	"github.com/Adda-Baaj/bazaar-khobor/pkg/store"
)

// App holds the wired components for one process.
type App struct {
	Config       config.Config
	Log          logger.Logger
	Orchestrator *pipeline.Orchestrator
	Store        store.Store
	// Harvester is nil when no providers are configured.
	Harvester *crawler.Harvester

	closers []func() error
}

// pacedRunner applies a minimum pause between batch items.
type pacedRunner struct {
	*pipeline.Orchestrator
	floor time.Duration
}

func (p pacedRunner) Batch(ctx context.Context, items []pipeline.Item, progress pipeline.Progress) []pipeline.Outcome {
	paced := make([]pipeline.Item, len(items))
	for i, it := range items {
		it.Delay = max(it.Delay, p.floor)
		paced[i] = it
	}
	return p.Orchestrator.Batch(ctx, paced, progress)
}

// Paced returns a batch runner that waits at least cfg.Batch.Delay between items.
func (a *App) Paced() crawler.BatchRunner {
	return pacedRunner{Orchestrator: a.Orchestrator, floor: a.Config.Batch.Delay}
}

// New validates cfg and builds every component. Partially built resources
// are released on error.
func New(ctx context.Context, cfg config.Config, log logger.Logger) (_ *App, err error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	a := &App{Config: cfg, Log: logger.Ensure(log)}
	defer func() {
		if err != nil {
			_ = a.Close()
		}
	}()

	chain, err := fetcher.FromConfig(cfg.Fetcher, a.Log)
	if err != nil {
		return nil, fmt.Errorf("build fetcher: %w", err)
	}
	an, err := analyzer.FromConfig(cfg.Analyzer, a.Log)
	if err != nil {
		return nil, fmt.Errorf("build analyzer: %w", err)
	}

	st, err := store.Open(ctx, cfg.Store, a.Log)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	a.Store = st
	a.closers = append(a.closers, st.Close)

	var locker locks.Locker = locks.NoopLocker{}
	if cfg.Lock.RedisURL != "" {
		rl, err := locks.NewRedisLocker(ctx, cfg.Lock.RedisURL, cfg.Lock.TTL, a.Log)
		if err != nil {
			return nil, fmt.Errorf("connect lock store: %w", err)
		}
		locker = rl
		a.closers = append(a.closers, rl.Close)
	}

	zone := store.Zone(cfg.Store.UTCOffsetHours)
	fanout, err := publishers.FromFile(ctx, cfg.Publishers.File, zone, a.Log)
	if err != nil {
		return nil, fmt.Errorf("load publishers: %w", err)
	}
	var notifier pipeline.Notifier
	if fanout.Len() > 0 {
		notifier = fanout
	}

	a.Orchestrator = pipeline.New(chain, extractor.New(extractor.Options{Readability: cfg.Extractor.Readability}), an, st, pipeline.Options{
		Locker:     locker,
		Notifier:   notifier,
		RunTimeout: runTimeout(cfg, len(chain.Names())),
	}, a.Log)

	ps, err := loadProviders(cfg.Discovery.ProvidersFile)
	if err != nil {
		return nil, err
	}
	if len(ps) > 0 {
		reg := providers.DefaultRegistry(providers.DefaultHTTPClient(), cfg.Discovery.FinnhubAPIKey)
		a.Harvester = crawler.NewHarvester(ps, reg, st, a.Paced(), a.Log)
	}

	a.Log.InfoObj("app ready", "app_ready", map[string]any{
		"fetch_strategies": chain.Names(),
		"analyzer":         cfg.Analyzer.Provider,
		"store":            cfg.Store.Driver,
		"redis_lock":       cfg.Lock.RedisURL != "",
		"publishers":       fanout.Len(),
		"providers":        len(ps),
	})
	return a, nil
}

// runTimeout covers every fetch strategy timing out plus the two model calls
// (stock lookup and analysis), with a minute for storage and publishing.
func runTimeout(cfg config.Config, strategies int) time.Duration {
	return time.Duration(strategies)*cfg.Fetcher.Timeout + 2*cfg.Analyzer.Timeout + time.Minute
}

// loadProviders treats a missing providers file as "no discovery".
func loadProviders(path string) ([]providers.Provider, error) {
	if path == "" {
		return nil, nil
	}
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	ps, err := providers.LoadProviders(path)
	if err != nil {
		return nil, fmt.Errorf("load providers: %w", err)
	}
	return ps, nil
}

// Serve runs the HTTP API until ctx is cancelled, then drains in-flight
// requests.
func (a *App) Serve(ctx context.Context) error {
	var harvester api.Harvester
	if a.Harvester != nil {
		harvester = a.Harvester
	}
	h := api.NewHandler(ctx, a.Orchestrator, harvester, a.Log)
	srv := &http.Server{
		Addr:              a.Config.Server.Addr(),
		Handler:           api.NewRouter(h, a.Config.Server, a.Log),
		ReadHeaderTimeout: a.Config.Server.ReadTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		a.Log.InfoObj("http server listening", "server_start", map[string]any{"addr": srv.Addr})
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	a.Log.InfoObj("shutting down http server", "server_stop", nil)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown http server: %w", err)
	}
	return nil
}

// Close releases resources in reverse order of acquisition.
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
