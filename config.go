package slogengine

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"

	"github.com/slogengine/slogengine/images"
	"github.com/slogengine/slogengine/poststore"
)

// SiteConfig holds all configuration for a slogengine server.
type SiteConfig struct {
	Name        string `yaml:"name"`        // Site name used in feeds (default "SlogEngine")
	URL         string `yaml:"url"`         // Canonical URL (default "http://localhost:5000")
	Description string `yaml:"description"` // Feed description

	Addr     string `yaml:"addr"`      // Listen address (default ":5000")
	BlogsDir string `yaml:"blogs_dir"` // Storage root, served under /blogs (default "wwwroot/blogs")
	Format   string `yaml:"format"`    // Post file format: "markdown" or "json" (default "markdown")

	TempRetention   time.Duration `yaml:"temp_retention"`    // Age after which unadopted uploads are swept (default 24h)
	MaxUploadSize   int64         `yaml:"max_upload_size"`   // Upload size limit in bytes (default 10MB)
	MaxImageWidth   int           `yaml:"max_image_width"`   // Wider JPEG/PNG uploads are scaled down; 0 disables (default 1920)
	UploadRateLimit int           `yaml:"upload_rate_limit"` // Uploads per client IP per minute (default 30)
	PostCacheTTL    time.Duration `yaml:"post_cache_ttl"`    // Listing cache TTL (default 1min)

	LogLevel     string   `yaml:"log_level"`     // debug, info, warn, error (default "info")
	LogFormat    string   `yaml:"log_format"`    // json or console (default "json")
	AllowOrigins []string `yaml:"allow_origins"` // CORS origins (default ["*"])

	LedgerPath string `yaml:"ledger_path"` // Import ledger SQLite path (default "data/ledger.db")
}

func (c *SiteConfig) setDefaults() {
	if c.Name == "" {
		c.Name = "SlogEngine"
	}
	if c.URL == "" {
		c.URL = "http://localhost:5000"
	}
	if c.Addr == "" {
		c.Addr = ":5000"
	}
	if c.BlogsDir == "" {
		c.BlogsDir = "wwwroot/blogs"
	}
	if c.Format == "" {
		c.Format = poststore.FormatMarkdown
	}
	if c.TempRetention == 0 {
		c.TempRetention = images.DefaultTempRetention
	}
	if c.MaxUploadSize == 0 {
		c.MaxUploadSize = images.DefaultMaxUploadSize
	}
	if c.MaxImageWidth == 0 {
		c.MaxImageWidth = 1920
	}
	if c.UploadRateLimit == 0 {
		c.UploadRateLimit = 30
	}
	if c.PostCacheTTL == 0 {
		c.PostCacheTTL = time.Minute
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.LogFormat == "" {
		c.LogFormat = "json"
	}
	if len(c.AllowOrigins) == 0 {
		c.AllowOrigins = []string{"*"}
	}
	if c.LedgerPath == "" {
		c.LedgerPath = "data/ledger.db"
	}
}

// WithDefaults returns c with every unset field filled in.
func (c SiteConfig) WithDefaults() SiteConfig {
	c.setDefaults()
	return c
}

// ConfigFromEnv reads the SLOG_* environment variables. Unset variables
// leave the zero value for setDefaults to fill.
func ConfigFromEnv() (SiteConfig, error) {
	cfg := SiteConfig{
		Name:        os.Getenv("SLOG_NAME"),
		URL:         os.Getenv("SLOG_URL"),
		Description: os.Getenv("SLOG_DESCRIPTION"),
		Addr:        os.Getenv("SLOG_ADDR"),
		BlogsDir:    os.Getenv("SLOG_BLOGS_DIR"),
		Format:      os.Getenv("SLOG_FORMAT"),
		LogLevel:    os.Getenv("SLOG_LOG_LEVEL"),
		LogFormat:   os.Getenv("SLOG_LOG_FORMAT"),
		LedgerPath:  os.Getenv("SLOG_LEDGER_PATH"),
	}
	if v := os.Getenv("SLOG_ALLOW_ORIGINS"); v != "" {
		cfg.AllowOrigins = FilterEmpty(strings.Split(v, ","))
	}
	var err error
	if cfg.TempRetention, err = envDuration("SLOG_TEMP_RETENTION"); err != nil {
		return cfg, err
	}
	if cfg.PostCacheTTL, err = envDuration("SLOG_POST_CACHE_TTL"); err != nil {
		return cfg, err
	}
	var n int
	if n, err = envInt("SLOG_MAX_UPLOAD_SIZE"); err != nil {
		return cfg, err
	}
	cfg.MaxUploadSize = int64(n)
	if cfg.MaxImageWidth, err = envInt("SLOG_MAX_IMAGE_WIDTH"); err != nil {
		return cfg, err
	}
	if cfg.UploadRateLimit, err = envInt("SLOG_UPLOAD_RATE_LIMIT"); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// LoadConfigFile overlays the YAML file at path onto cfg. Keys missing from
// the file keep their current values.
func LoadConfigFile(path string, cfg *SiteConfig) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	return nil
}

func envDuration(key string) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return d, nil
}

func envInt(key string) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return n, nil
}

// EnvOr returns the value of the environment variable key, or fallback if empty.
func EnvOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// Option configures additional App behavior.
type Option func(*App)

// WithCustomRoutes registers additional routes on the Echo instance.
// The callback receives the App after the built-in routes are set up.
func WithCustomRoutes(fn func(*App)) Option {
	return func(a *App) {
		a.customRoutes = append(a.customRoutes, fn)
	}
}

// WithLogger replaces the logger built from LogLevel and LogFormat.
func WithLogger(log zerolog.Logger) Option {
	return func(a *App) {
		a.Log = log
		a.logSet = true
	}
}
