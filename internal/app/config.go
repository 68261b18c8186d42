package app

import (
	"io/fs"
	"os"
	"time"

	"github.com/cristalhq/aconfig"
	"github.com/cristalhq/aconfig/aconfigyaml"
	"github.com/go-faster/errors"
	"github.com/joho/godotenv"

	"github.com/xenking/pricewatch/internal/catalog"
	"github.com/xenking/pricewatch/internal/gateway"
)

// Config holds the complete application configuration, loadable from
// environment variables (PRICEWATCH_ prefix), a .env file, flags, or YAML
// config files.
type Config struct {
	Addr         string `default:"0.0.0.0:8080" usage:"API server listen address"`
	ImageBaseURL string `default:"" usage:"Base URL for relative product image paths" flag:"image-base-url"`
	Remote       RemoteConfig
	Cache        CacheConfig
	Seed         SeedConfig
	RateLimit    RateLimitConfig
	CORS         CORSConfig
	Graceful     GracefulConfig
}

// RemoteConfig points at the remote catalog store.
type RemoteConfig struct {
	URL       string        `usage:"Remote catalog store base URL (PRICEWATCH_REMOTE_URL or STORE_URL)" flag:"remote-url"`
	Timeout   time.Duration `default:"10s" usage:"Timeout of a single remote call"`
	RateLimit float64       `default:"50"  usage:"Max remote calls per second, 0 disables throttling"`
	Burst     int           `default:"10"  usage:"Remote call burst size"`
}

// CacheConfig sets the staleness window of each query kind.
type CacheConfig struct {
	ProductStaleTime time.Duration `default:"0s"  usage:"Staleness window of product lists and details"`
	PriceStaleTime   time.Duration `default:"30s" usage:"Staleness window of price entries"`
	InsightStaleTime time.Duration `default:"30s" usage:"Staleness window of AI insights"`
	CardConcurrency  int           `default:"8"   usage:"Parallel price reads when building product cards"`
}

// SeedConfig selects the seed dataset.
type SeedConfig struct {
	Dataset string `default:"" usage:"Seed dataset file (.json or .json.gz), empty for the embedded sample catalog" flag:"seed-dataset"`
}

// RateLimitConfig controls the per-client token bucket rate limiter.
type RateLimitConfig struct {
	RPS     float64       `default:"20"  usage:"Sustained requests per second per client, 0 disables limiting"`
	Burst   int           `default:"40"  usage:"Request burst per client"`
	IdleTTL time.Duration `default:"10m" usage:"How long idle client buckets are kept"`
}

// CORSConfig controls Cross-Origin Resource Sharing headers.
type CORSConfig struct {
	Origins          []string `default:"*" usage:"Allowed CORS origins"`
	AllowCredentials bool     `default:"false" usage:"Allow credentials (cookies, auth headers)" flag:"cors-credentials"`
}

// GracefulConfig controls graceful shutdown timing.
type GracefulConfig struct {
	ReadinessDelay  time.Duration `default:"3s"  usage:"Delay after readiness=false before shutdown" flag:"readiness-delay"`
	ShutdownTimeout time.Duration `default:"15s" usage:"Maximum shutdown duration" flag:"shutdown-timeout"`
}

// LoadConfig loads an optional .env file, then configuration from
// environment variables, YAML config files and flags.
func LoadConfig() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, errors.Wrap(err, "load .env")
	}

	var cfg Config
	loader := aconfig.LoaderFor(&cfg, aconfig.Config{
		EnvPrefix: "PRICEWATCH",
		Files:     []string{"config.yaml", "/etc/pricewatch/config.yaml"},
		FileDecoders: map[string]aconfig.FileDecoder{
			".yaml": aconfigyaml.New(),
		},
	})
	if err := loader.Load(); err != nil {
		return nil, errors.Wrap(err, "load config")
	}
	cfg.applyPlatformDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate reports missing or inconsistent settings.
func (c *Config) Validate() error {
	if c.Remote.URL == "" {
		return errors.New("remote store URL is required: set PRICEWATCH_REMOTE_URL or STORE_URL")
	}
	if c.Remote.RateLimit < 0 {
		return errors.Errorf("remote rate limit %v must not be negative", c.Remote.RateLimit)
	}
	if c.RateLimit.RPS < 0 {
		return errors.Errorf("rate limit rps %v must not be negative", c.RateLimit.RPS)
	}
	if c.Cache.ProductStaleTime < 0 || c.Cache.PriceStaleTime < 0 || c.Cache.InsightStaleTime < 0 {
		return errors.New("cache staleness windows must not be negative")
	}
	return nil
}

// applyPlatformDefaults maps platform-provided environment variables that use
// standard names like PORT to the PRICEWATCH_-prefixed configuration.
func (c *Config) applyPlatformDefaults() {
	if c.Remote.URL == "" {
		if v := os.Getenv("STORE_URL"); v != "" {
			c.Remote.URL = v
		}
	}
	if port := os.Getenv("PORT"); port != "" && c.Addr == "0.0.0.0:8080" {
		c.Addr = "0.0.0.0:" + port
	}
}

// Catalog returns the catalog cache configuration.
func (c *Config) Catalog() catalog.Config {
	return catalog.Config{
		ProductStaleTime: c.Cache.ProductStaleTime,
		PriceStaleTime:   c.Cache.PriceStaleTime,
		InsightStaleTime: c.Cache.InsightStaleTime,
		CardConcurrency:  c.Cache.CardConcurrency,
	}
}

// Gateway returns the remote store client configuration without telemetry
// providers.
func (c *Config) Gateway() gateway.Config {
	return gateway.Config{
		BaseURL:   c.Remote.URL,
		Timeout:   c.Remote.Timeout,
		RateLimit: c.Remote.RateLimit,
		Burst:     c.Remote.Burst,
	}
}
