package service

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/rosterkit/rosterkit/pkg/identity"
	"github.com/rosterkit/rosterkit/pkg/loader"
)

func TestDefaultConfigVerifies(t *testing.T) {
	require.NoError(t, DefaultConfig().Verify())
}

func TestConfigVerify(t *testing.T) {
	for _, tc := range []struct {
		name   string
		mutate func(*Config)
	}{
		{"unknown_fetch_mode", func(c *Config) { c.Fetch.Mode = "carrier-pigeon" }},
		{"file_mode_without_data_dir", func(c *Config) { c.Fetch.DataDir = "" }},
		{"http_mode_without_base_url", func(c *Config) { c.Fetch.Mode = FetchModeHTTP }},
		{"zero_cache_entries", func(c *Config) { c.Cache.MaxEntries = 0 }},
		{"zero_cache_age", func(c *Config) { c.Cache.MaxAge = 0 }},
		{"enabled_pool_with_zero_size", func(c *Config) { c.Worker.Size = 0 }},
		{"zero_async_threshold", func(c *Config) { c.Loader.AsyncThreshold = 0 }},
	} {
		t.Run(tc.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tc.mutate(&cfg)
			require.Error(t, cfg.Verify())
		})
	}
}

func TestNewRejectsInvalidConfig(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Fetch.Mode = "carrier-pigeon"
	_, err := New(cfg)
	require.Error(t, err)
}

func TestNewAssemblesWorkingPipeline(t *testing.T) {
	dir := t.TempDir()
	data, err := json.Marshal([]map[string]any{
		{"id": "m-1", "firstName": "Anna", "lastName": "Bakker", "region": "North"},
		{"id": "m-2", "firstName": "Jan", "lastName": "Berg", "region": "South"},
	})
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "members.json"), data, 0o600))

	cfg := DefaultConfig()
	cfg.Log.Level = "none"
	cfg.Fetch.DataDir = dir

	svc, err := New(cfg)
	require.NoError(t, err)
	t.Cleanup(svc.Close)
	require.NotNil(t, svc.Executor)

	res, err := svc.Loader.Load(context.Background(),
		"members.json",
		identity.New(identity.PermissionRead, "region_North"),
		loader.DefaultOptions(),
	)
	require.NoError(t, err)
	require.Equal(t, 1, res.RecordCount)
	require.Equal(t, "m-1", res.Records[0].ID())
}

func TestNewWithoutPool(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Log.Level = "none"
	cfg.Worker.Enabled = false

	svc, err := New(cfg)
	require.NoError(t, err)
	t.Cleanup(svc.Close)
	require.Nil(t, svc.Executor)
}
