package service

import (
	"fmt"

	"github.com/rosterkit/rosterkit/internal/resultcache"
	"github.com/rosterkit/rosterkit/pkg/fetch"
	"github.com/rosterkit/rosterkit/pkg/loader"
	"github.com/rosterkit/rosterkit/pkg/logger"
	"github.com/rosterkit/rosterkit/pkg/worker"
)

// Service holds the wired pipeline. Every instance is explicitly
// constructed and owned here; nothing reaches for ambient globals, so
// tests and multi-tenant hosts can run several side by side.
type Service struct {
	Logger  logger.Logger
	Fetcher fetch.Fetcher
	Cache   *resultcache.Cache
	Loader  *loader.Loader

	// Executor is nil when the background pool is disabled; the loader
	// then runs everything inline.
	Executor worker.Executor
}

// New assembles fetcher, worker executor, cache and loader from cfg.
func New(cfg Config) (*Service, error) {
	if err := cfg.Verify(); err != nil {
		return nil, err
	}

	log, err := logger.NewLogger(cfg.Log.Format, cfg.Log.Level)
	if err != nil {
		return nil, fmt.Errorf("building logger: %w", err)
	}

	var fetcher fetch.Fetcher
	switch cfg.Fetch.Mode {
	case FetchModeFile:
		fetcher = fetch.NewFileFetcher(cfg.Fetch.DataDir)
	case FetchModeHTTP:
		fetcher = fetch.NewHTTPFetcher(cfg.Fetch.BaseURL, fetch.WithRetryMax(cfg.Fetch.RetryMax))
	}

	cache := resultcache.New(
		resultcache.WithMaxEntries(cfg.Cache.MaxEntries),
		resultcache.WithMaxAge(cfg.Cache.MaxAge),
	)

	var executor worker.Executor
	if cfg.Worker.Enabled {
		executor = worker.NewPool(log,
			worker.WithSize(cfg.Worker.Size),
			worker.WithQueueDepth(cfg.Worker.QueueDepth),
			worker.WithTaskTimeout(cfg.Worker.TaskTimeout),
		)
	}

	loaderOpts := []loader.Opt{
		loader.WithCache(cache),
		loader.WithAsyncThreshold(cfg.Loader.AsyncThreshold),
	}
	if executor != nil {
		loaderOpts = append(loaderOpts, loader.WithExecutor(executor))
	}

	return &Service{
		Logger:   log,
		Fetcher:  fetcher,
		Cache:    cache,
		Loader:   loader.New(log, fetcher, loaderOpts...),
		Executor: executor,
	}, nil
}

// Close releases the service's background resources.
func (s *Service) Close() {
	if s.Executor != nil {
		s.Executor.Close()
	}
}
