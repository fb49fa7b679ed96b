package config

import (
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/designpress/go-services/internal/apperr"
)

// Config holds application configuration. It is loaded once at process start
// and passed by reference into the handlers, so missing-configuration paths
// can be exercised in tests by constructing a Config directly.
type Config struct {
	Server    ServerConfig
	Webflow   WebflowConfig
	Render    RenderConfig
	Archive   ArchiveConfig
	Redis     RedisConfig
	RateLimit RateLimitConfig
	LogLevel  string
}

type ServerConfig struct {
	Port         string
	Host         string
	Environment  string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// WebflowConfig holds the CMS credentials and endpoint family.
type WebflowConfig struct {
	APIToken     string
	CollectionID string
	SiteID       string
	// BaseURL lets tests point the client at a local server.
	BaseURL string
	// PageURLTemplate turns a created item's slug into a public page URL,
	// e.g. "https://mysite.webflow.io/designs/%s". Used by the submit client.
	PageURLTemplate string
}

// Validate reports whether the minimum CMS credentials are present. The site
// ID is checked separately because item creation works without it.
func (w WebflowConfig) Validate() error {
	if w.APIToken == "" || w.CollectionID == "" {
		return apperr.Configuration("Server configuration error: Webflow API credentials missing.")
	}
	return nil
}

// ValidateAssets reports whether asset uploads can be performed.
func (w WebflowConfig) ValidateAssets() error {
	if err := w.Validate(); err != nil {
		return err
	}
	if w.SiteID == "" {
		return apperr.Configuration("Server configuration error: Webflow site ID missing.")
	}
	return nil
}

type RenderConfig struct {
	// Timeout bounds navigation plus printing for one request.
	Timeout time.Duration
	// MarginPx is applied to all four sides of the printed page.
	MarginPx float64
	// RemoteURL points at an already-running Chrome (e.g. a sidecar
	// container). When empty a local browser is launched per request.
	RemoteURL string
	NoSandbox bool
}

// ArchiveConfig configures the optional MinIO copy of rendered PDFs.
// The archive is disabled when Endpoint is empty.
type ArchiveConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	UseSSL    bool
	Bucket    string
}

func (a ArchiveConfig) Enabled() bool { return a.Endpoint != "" }

type RedisConfig struct {
	Host     string
	Port     string
	Password string
}

type RateLimitConfig struct {
	Enabled       bool
	RPS           float64
	Burst         int
	UseRedis      bool
	WindowSeconds int
}

// LoadConfig loads configuration from environment variables and a .env file.
func LoadConfig() (*Config, error) {
	_ = godotenv.Load()

	viper.AutomaticEnv()

	viper.SetDefault("SERVER_PORT", "5020")
	viper.SetDefault("SERVER_HOST", "0.0.0.0")
	viper.SetDefault("SERVER_ENVIRONMENT", "development")
	viper.SetDefault("WEBFLOW_BASE_URL", "https://api.webflow.com")
	viper.SetDefault("RENDER_TIMEOUT_SECONDS", 30)
	viper.SetDefault("RENDER_MARGIN_PX", 20)
	viper.SetDefault("RENDER_NO_SANDBOX", true)
	viper.SetDefault("ARCHIVE_BUCKET", "designpress-pdfs")
	viper.SetDefault("RATE_LIMIT_RPS", 5.0)
	viper.SetDefault("RATE_LIMIT_BURST", 10)
	viper.SetDefault("RATE_LIMIT_WINDOW_SECONDS", 1)

	cfg := &Config{
		Server: ServerConfig{
			Port:         viper.GetString("SERVER_PORT"),
			Host:         viper.GetString("SERVER_HOST"),
			Environment:  viper.GetString("SERVER_ENVIRONMENT"),
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 60 * time.Second,
		},
		Webflow: WebflowConfig{
			APIToken:        viper.GetString("WEBFLOW_API_KEY"),
			CollectionID:    viper.GetString("WEBFLOW_COLLECTION_ID"),
			SiteID:          viper.GetString("WEBFLOW_SITE_ID"),
			BaseURL:         viper.GetString("WEBFLOW_BASE_URL"),
			PageURLTemplate: viper.GetString("WEBFLOW_PAGE_URL_TEMPLATE"),
		},
		Render: RenderConfig{
			Timeout:   time.Duration(viper.GetInt("RENDER_TIMEOUT_SECONDS")) * time.Second,
			MarginPx:  viper.GetFloat64("RENDER_MARGIN_PX"),
			RemoteURL: viper.GetString("RENDER_REMOTE_URL"),
			NoSandbox: viper.GetBool("RENDER_NO_SANDBOX"),
		},
		Archive: ArchiveConfig{
			Endpoint:  viper.GetString("MINIO_ENDPOINT"),
			AccessKey: viper.GetString("MINIO_ACCESS_KEY"),
			SecretKey: viper.GetString("MINIO_SECRET_KEY"),
			UseSSL:    viper.GetBool("MINIO_USE_SSL"),
			Bucket:    viper.GetString("ARCHIVE_BUCKET"),
		},
		Redis: RedisConfig{
			Host:     viper.GetString("REDIS_HOST"),
			Port:     viper.GetString("REDIS_PORT"),
			Password: viper.GetString("REDIS_PASSWORD"),
		},
		RateLimit: RateLimitConfig{
			Enabled:       viper.GetBool("RATE_LIMIT_ENABLED"),
			RPS:           viper.GetFloat64("RATE_LIMIT_RPS"),
			Burst:         viper.GetInt("RATE_LIMIT_BURST"),
			UseRedis:      viper.GetBool("RATE_LIMIT_USE_REDIS"),
			WindowSeconds: viper.GetInt("RATE_LIMIT_WINDOW_SECONDS"),
		},
		LogLevel: viper.GetString("LOG_LEVEL"),
	}

	return cfg, nil
}
