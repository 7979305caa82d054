package slogengine

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetDefaults(t *testing.T) {
	cfg := SiteConfig{}.WithDefaults()
	assert.Equal(t, ":5000", cfg.Addr)
	assert.Equal(t, "wwwroot/blogs", cfg.BlogsDir)
	assert.Equal(t, "markdown", cfg.Format)
	assert.Equal(t, 24*time.Hour, cfg.TempRetention)
	assert.Equal(t, int64(10<<20), cfg.MaxUploadSize)
	assert.Equal(t, []string{"*"}, cfg.AllowOrigins)
	assert.Equal(t, time.Minute, cfg.PostCacheTTL)

	cfg = SiteConfig{Addr: ":9000", Format: "json"}.WithDefaults()
	assert.Equal(t, ":9000", cfg.Addr)
	assert.Equal(t, "json", cfg.Format)
}

func TestLoadConfigFileOverlays(t *testing.T) {
	path := filepath.Join(t.TempDir(), "slogengine.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
name: My Blogs
blogs_dir: /srv/blogs
temp_retention: 12h
allow_origins:
  - https://a.example
  - https://b.example
`), 0o644))

	cfg := SiteConfig{Addr: ":7000", Name: "env name"}
	require.NoError(t, LoadConfigFile(path, &cfg))
	assert.Equal(t, "My Blogs", cfg.Name)
	assert.Equal(t, ":7000", cfg.Addr)
	assert.Equal(t, "/srv/blogs", cfg.BlogsDir)
	assert.Equal(t, 12*time.Hour, cfg.TempRetention)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.AllowOrigins)
}

func TestLoadConfigFileErrors(t *testing.T) {
	assert.Error(t, LoadConfigFile(filepath.Join(t.TempDir(), "missing.yaml"), &SiteConfig{}))

	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("addr: [unclosed"), 0o644))
	assert.Error(t, LoadConfigFile(path, &SiteConfig{}))
}

func TestConfigFromEnv(t *testing.T) {
	t.Setenv("SLOG_ADDR", ":8081")
	t.Setenv("SLOG_FORMAT", "json")
	t.Setenv("SLOG_ALLOW_ORIGINS", "https://a.example, ,https://b.example")
	t.Setenv("SLOG_TEMP_RETENTION", "2h")
	t.Setenv("SLOG_MAX_UPLOAD_SIZE", "1048576")

	cfg, err := ConfigFromEnv()
	require.NoError(t, err)
	assert.Equal(t, ":8081", cfg.Addr)
	assert.Equal(t, "json", cfg.Format)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.AllowOrigins)
	assert.Equal(t, 2*time.Hour, cfg.TempRetention)
	assert.Equal(t, int64(1<<20), cfg.MaxUploadSize)

	t.Setenv("SLOG_UPLOAD_RATE_LIMIT", "lots")
	_, err = ConfigFromEnv()
	assert.Error(t, err)
}

func TestEnvOr(t *testing.T) {
	t.Setenv("SLOG_TEST_VALUE", "set")
	assert.Equal(t, "set", EnvOr("SLOG_TEST_VALUE", "fallback"))
	assert.Equal(t, "fallback", EnvOr("SLOG_TEST_UNSET_VALUE", "fallback"))
}
