// Package service is the composition root: it turns a Config into
// wired, ready-to-use pipeline instances. The CLI is its only consumer;
// library users compose fetcher, executor, cache and loader by hand.
package service

import (
	"fmt"
	"time"

	"github.com/rosterkit/rosterkit/internal/resultcache"
	"github.com/rosterkit/rosterkit/pkg/loader"
	"github.com/rosterkit/rosterkit/pkg/worker"
)

// Fetch modes.
const (
	FetchModeFile = "file"
	FetchModeHTTP = "http"
)

// LogConfig configures the structured logger.
type LogConfig struct {
	// Format is "text" or "json".
	Format string

	// Level is one of none, debug, info, warn, error, panic, fatal.
	Level string
}

// FetchConfig selects and configures the transport the loader pulls raw
// dataset bytes through.
type FetchConfig struct {
	// Mode is "file" or "http".
	Mode string

	// DataDir is the root directory for file mode.
	DataDir string

	// BaseURL is the dataset endpoint for http mode.
	BaseURL string

	// RetryMax bounds HTTP transport retries.
	RetryMax int
}

// CacheConfig bounds the result cache.
type CacheConfig struct {
	MaxEntries int
	MaxAge     time.Duration
}

// WorkerConfig configures the background pool. Disabled or zero-sized
// pools make the loader run everything inline.
type WorkerConfig struct {
	Enabled     bool
	Size        int
	QueueDepth  int
	TaskTimeout time.Duration
}

// LoaderConfig configures the orchestrator.
type LoaderConfig struct {
	// AsyncThreshold is the record count from which processing is
	// offloaded to the background pool.
	AsyncThreshold int
}

// Config assembles the whole pipeline.
type Config struct {
	Log    LogConfig
	Fetch  FetchConfig
	Cache  CacheConfig
	Worker WorkerConfig
	Loader LoaderConfig
}

// DefaultConfig returns the documented defaults: file transport rooted
// at the working directory, bounded cache, background pool sized to the
// machine.
func DefaultConfig() Config {
	return Config{
		Log: LogConfig{
			Format: "text",
			Level:  "info",
		},
		Fetch: FetchConfig{
			Mode:     FetchModeFile,
			DataDir:  ".",
			RetryMax: 3,
		},
		Cache: CacheConfig{
			MaxEntries: resultcache.DefaultMaxEntries,
			MaxAge:     resultcache.DefaultMaxAge,
		},
		Worker: WorkerConfig{
			Enabled:     true,
			Size:        worker.DefaultPoolSize(),
			QueueDepth:  worker.DefaultQueueDepth,
			TaskTimeout: worker.DefaultTaskTimeout,
		},
		Loader: LoaderConfig{
			AsyncThreshold: loader.DefaultAsyncThreshold,
		},
	}
}

// Verify rejects configurations the pipeline cannot run with.
func (c Config) Verify() error {
	switch c.Fetch.Mode {
	case FetchModeFile:
		if c.Fetch.DataDir == "" {
			return fmt.Errorf("config 'fetch.data-dir' must be set in %q mode", FetchModeFile)
		}
	case FetchModeHTTP:
		if c.Fetch.BaseURL == "" {
			return fmt.Errorf("config 'fetch.base-url' must be set in %q mode", FetchModeHTTP)
		}
	default:
		return fmt.Errorf("config 'fetch.mode' must be one of %q or %q, got %q", FetchModeFile, FetchModeHTTP, c.Fetch.Mode)
	}

	if c.Cache.MaxEntries < 1 {
		return fmt.Errorf("config 'cache.max-entries' must be at least 1")
	}
	if c.Cache.MaxAge <= 0 {
		return fmt.Errorf("config 'cache.max-age' must be positive")
	}
	if c.Worker.Enabled && c.Worker.Size < 1 {
		return fmt.Errorf("config 'worker.size' must be at least 1 when the pool is enabled")
	}
	if c.Loader.AsyncThreshold < 1 {
		return fmt.Errorf("config 'loader.async-threshold' must be at least 1")
	}
	return nil
}
