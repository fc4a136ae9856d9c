package cmd

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/rosterkit/rosterkit/cmd/util"
	"github.com/rosterkit/rosterkit/internal/service"
)

// bindPipelineFlags binds the cobra cmd flags shared by the load and
// query commands to the equivalent config values managed by viper. This
// bridges the config between cobra flags and viper flags.
func bindPipelineFlags(command *cobra.Command) {
	defaultConfig := service.DefaultConfig()
	flags := command.Flags()

	flags.String("log-format", defaultConfig.Log.Format, "the log format to output logs in ('text' or 'json')")
	util.MustBindPFlag("log.format", flags.Lookup("log-format"))
	util.MustBindEnv("log.format", "ROSTERKIT_LOG_FORMAT")

	flags.String("log-level", defaultConfig.Log.Level, "the log level to use ('none', 'debug', 'info', 'warn', 'error', 'panic', 'fatal')")
	util.MustBindPFlag("log.level", flags.Lookup("log-level"))
	util.MustBindEnv("log.level", "ROSTERKIT_LOG_LEVEL")

	flags.String("fetch-mode", defaultConfig.Fetch.Mode, "where dataset sources are fetched from ('file' or 'http')")
	util.MustBindPFlag("fetch.mode", flags.Lookup("fetch-mode"))
	util.MustBindEnv("fetch.mode", "ROSTERKIT_FETCH_MODE")

	flags.String("data-dir", defaultConfig.Fetch.DataDir, "the root directory dataset sources are read from in 'file' mode")
	util.MustBindPFlag("fetch.data-dir", flags.Lookup("data-dir"))
	util.MustBindEnv("fetch.data-dir", "ROSTERKIT_FETCH_DATA_DIR")

	flags.String("base-url", defaultConfig.Fetch.BaseURL, "the base URL dataset sources are fetched from in 'http' mode")
	util.MustBindPFlag("fetch.base-url", flags.Lookup("base-url"))
	util.MustBindEnv("fetch.base-url", "ROSTERKIT_FETCH_BASE_URL")

	flags.Int("fetch-retry-max", defaultConfig.Fetch.RetryMax, "the maximum number of transport-level retries per fetch in 'http' mode")
	util.MustBindPFlag("fetch.retry-max", flags.Lookup("fetch-retry-max"))
	util.MustBindEnv("fetch.retry-max", "ROSTERKIT_FETCH_RETRY_MAX")

	flags.Int("cache-max-entries", defaultConfig.Cache.MaxEntries, "the maximum number of result sets kept in the cache")
	util.MustBindPFlag("cache.max-entries", flags.Lookup("cache-max-entries"))
	util.MustBindEnv("cache.max-entries", "ROSTERKIT_CACHE_MAX_ENTRIES")

	flags.Duration("cache-max-age", defaultConfig.Cache.MaxAge, "how long a cached result set stays fresh")
	util.MustBindPFlag("cache.max-age", flags.Lookup("cache-max-age"))
	util.MustBindEnv("cache.max-age", "ROSTERKIT_CACHE_MAX_AGE")

	flags.Bool("worker-enabled", defaultConfig.Worker.Enabled, "enable/disable the background worker pool (disabled runs everything inline)")
	util.MustBindPFlag("worker.enabled", flags.Lookup("worker-enabled"))
	util.MustBindEnv("worker.enabled", "ROSTERKIT_WORKER_ENABLED")

	flags.Int("worker-size", defaultConfig.Worker.Size, "the number of pool workers")
	util.MustBindPFlag("worker.size", flags.Lookup("worker-size"))
	util.MustBindEnv("worker.size", "ROSTERKIT_WORKER_SIZE")

	flags.Int("worker-queue-depth", defaultConfig.Worker.QueueDepth, "the capacity of the pool's task queue")
	util.MustBindPFlag("worker.queue-depth", flags.Lookup("worker-queue-depth"))
	util.MustBindEnv("worker.queue-depth", "ROSTERKIT_WORKER_QUEUE_DEPTH")

	flags.Duration("worker-task-timeout", defaultConfig.Worker.TaskTimeout, "the deadline after which a pool task is abandoned")
	util.MustBindPFlag("worker.task-timeout", flags.Lookup("worker-task-timeout"))
	util.MustBindEnv("worker.task-timeout", "ROSTERKIT_WORKER_TASK_TIMEOUT")

	flags.Int("async-threshold", defaultConfig.Loader.AsyncThreshold, "the record count from which processing is offloaded to the pool")
	util.MustBindPFlag("loader.async-threshold", flags.Lookup("async-threshold"))
	util.MustBindEnv("loader.async-threshold", "ROSTERKIT_LOADER_ASYNC_THRESHOLD")

	flags.StringSlice("token", nil, "an identity token of the caller (repeatable), e.g. 'members_read' or 'region_North'")
	util.MustBindPFlag("identity.tokens", flags.Lookup("token"))
	util.MustBindEnv("identity.tokens", "ROSTERKIT_IDENTITY_TOKENS")

	flags.Bool("derive-fields", true, "compute the derived attributes (display name, age, membership years, registration year)")
	util.MustBindPFlag("load.derive-fields", flags.Lookup("derive-fields"))
	util.MustBindEnv("load.derive-fields", "ROSTERKIT_LOAD_DERIVE_FIELDS")

	flags.Bool("regional-filtering", true, "restrict records to the identity's visible regions")
	util.MustBindPFlag("load.regional-filtering", flags.Lookup("regional-filtering"))
	util.MustBindEnv("load.regional-filtering", "ROSTERKIT_LOAD_REGIONAL_FILTERING")
}

// configFromViper materializes the service config from whatever viper
// collected out of flags, environment and config file.
func configFromViper() service.Config {
	cfg := service.DefaultConfig()
	cfg.Log.Format = viper.GetString("log.format")
	cfg.Log.Level = viper.GetString("log.level")
	cfg.Fetch.Mode = viper.GetString("fetch.mode")
	cfg.Fetch.DataDir = viper.GetString("fetch.data-dir")
	cfg.Fetch.BaseURL = viper.GetString("fetch.base-url")
	cfg.Fetch.RetryMax = viper.GetInt("fetch.retry-max")
	cfg.Cache.MaxEntries = viper.GetInt("cache.max-entries")
	cfg.Cache.MaxAge = viper.GetDuration("cache.max-age")
	cfg.Worker.Enabled = viper.GetBool("worker.enabled")
	cfg.Worker.Size = viper.GetInt("worker.size")
	cfg.Worker.QueueDepth = viper.GetInt("worker.queue-depth")
	cfg.Worker.TaskTimeout = viper.GetDuration("worker.task-timeout")
	cfg.Loader.AsyncThreshold = viper.GetInt("loader.async-threshold")
	return cfg
}
