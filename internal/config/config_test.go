package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setRequiredEnv(t *testing.T) {
	t.Setenv("SUPABASE_URL", "https://example.supabase.co")
	t.Setenv("SUPABASE_ANON_KEY", "anon-key")
}

func TestLoadConfig(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		setRequiredEnv(t)

		cfg, err := LoadConfig()
		require.NoError(t, err)
		assert.Equal(t, ":8080", cfg.ServerAddress)
		assert.Equal(t, "development", cfg.Environment)
		assert.Equal(t, "posts", cfg.StorageBucket)
		assert.Equal(t, 50, cfg.Tunables.FeedPageSize)
		assert.Equal(t, 50, cfg.Tunables.ActivityPageSize)
		assert.Equal(t, 30*time.Second, cfg.HeartbeatInterval)
		assert.True(t, cfg.EnableMetrics)
		assert.True(t, cfg.IsDevelopment())
	})

	t.Run("environment overrides", func(t *testing.T) {
		setRequiredEnv(t)
		t.Setenv("SERVER_ADDRESS", ":9999")
		t.Setenv("ENVIRONMENT", "production")
		t.Setenv("FEED_PAGE_SIZE", "25")
		t.Setenv("REALTIME_HEARTBEAT_INTERVAL", "5s")
		t.Setenv("ENABLE_METRICS", "false")

		cfg, err := LoadConfig()
		require.NoError(t, err)
		assert.Equal(t, ":9999", cfg.ServerAddress)
		assert.True(t, cfg.IsProduction())
		assert.Equal(t, 25, cfg.Tunables.FeedPageSize)
		assert.Equal(t, 5*time.Second, cfg.HeartbeatInterval)
		assert.False(t, cfg.EnableMetrics)
	})

	t.Run("missing data service URL fails", func(t *testing.T) {
		t.Setenv("SUPABASE_URL", "")
		t.Setenv("SUPABASE_ANON_KEY", "anon-key")

		_, err := LoadConfig()
		assert.Error(t, err)
	})

	t.Run("missing anon key fails", func(t *testing.T) {
		t.Setenv("SUPABASE_URL", "https://example.supabase.co")
		t.Setenv("SUPABASE_ANON_KEY", "")

		_, err := LoadConfig()
		assert.Error(t, err)
	})

	t.Run("invalid page size fails validation", func(t *testing.T) {
		setRequiredEnv(t)
		t.Setenv("FEED_PAGE_SIZE", "0")

		_, err := LoadConfig()
		assert.Error(t, err)
	})
}

func TestTunablesLoadFile(t *testing.T) {
	t.Run("overlay overrides listed values only", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "tunables.yaml")
		require.NoError(t, os.WriteFile(path, []byte("feed_page_size: 10\n"), 0o644))

		tunables := Tunables{
			FeedPageSize:     50,
			ActivityPageSize: 50,
			SearchPageSize:   50,
		}
		require.NoError(t, tunables.LoadFile(path))
		assert.Equal(t, 10, tunables.FeedPageSize)
		assert.Equal(t, 50, tunables.ActivityPageSize)
	})

	t.Run("missing file is an error", func(t *testing.T) {
		tunables := Tunables{}
		err := tunables.LoadFile(filepath.Join(t.TempDir(), "absent.yaml"))
		assert.True(t, os.IsNotExist(err))
	})

	t.Run("applied through LoadConfig", func(t *testing.T) {
		setRequiredEnv(t)
		path := filepath.Join(t.TempDir(), "tunables.yaml")
		require.NoError(t, os.WriteFile(path, []byte("feed_page_size: 7\nsearch_page_size: 9\n"), 0o644))
		t.Setenv("TUNABLES_FILE", path)

		cfg, err := LoadConfig()
		require.NoError(t, err)
		assert.Equal(t, 7, cfg.Tunables.FeedPageSize)
		assert.Equal(t, 9, cfg.Tunables.SearchPageSize)
		assert.Equal(t, 50, cfg.Tunables.ActivityPageSize)
	})
}
