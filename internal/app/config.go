package app

import (
	"os"
	"strconv"
	"time"

	"github.com/cristalhq/aconfig"
	"github.com/cristalhq/aconfig/aconfigyaml"
	"github.com/go-faster/errors"

	"github.com/solient/storefront/internal/domain/purchaselimit"
)

// Config holds the complete application configuration, loadable from
// environment variables (SHOP_ prefix), flags, or YAML config files.
type Config struct {
	Addr          string `default:"0.0.0.0:8080" usage:"API server listen address"`
	DatabaseURL   string `usage:"PostgreSQL connection URL (SHOP_DATABASE_URL or DATABASE_URL)" flag:"database-url"`
	APIKeyPepper  string `usage:"HMAC pepper for API key hashing (SHOP_API_KEY_PEPPER)" flag:"api-key-pepper"`
	PurchaseLimit PurchaseLimitConfig
	RateLimit     RateLimitConfig
	CORS          CORSConfig
	Graceful      GracefulConfig
}

// PurchaseLimitConfig caps how many units of one product a user may buy
// within the sliding window. Invalid or missing values silently fall back
// to the defaults.
type PurchaseLimitConfig struct {
	PerProduct    int `default:"1"  usage:"Max units of one product a user may buy per window" flag:"purchase-limit"`
	WindowSeconds int `default:"60" usage:"Purchase limit sliding window in seconds" flag:"purchase-window"`
}

// Evaluator converts the raw config into the domain limiter config.
func (c PurchaseLimitConfig) Evaluator() purchaselimit.Config {
	return purchaselimit.Config{
		PerProduct: c.PerProduct,
		Window:     time.Duration(c.WindowSeconds) * time.Second,
	}
}

// RateLimitConfig controls the per-client HTTP sliding window rate limiter.
type RateLimitConfig struct {
	Max    int           `default:"100" usage:"Max requests per window"`
	Window time.Duration `default:"1m"  usage:"Rate limit window duration"`
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

// LoadConfig loads configuration from environment variables, YAML config
// files, and applies platform defaults.
func LoadConfig() (*Config, error) {
	var cfg Config
	loader := aconfig.LoaderFor(&cfg, aconfig.Config{
		EnvPrefix: "SHOP",
		Files:     []string{"config.yaml", "/etc/storefront/config.yaml"},
		FileDecoders: map[string]aconfig.FileDecoder{
			".yaml": aconfigyaml.New(),
		},
	})
	if err := loader.Load(); err != nil {
		return nil, errors.Wrap(err, "load config")
	}
	cfg.applyPlatformDefaults()

	if cfg.DatabaseURL == "" {
		return nil, errors.New("database URL is required: set SHOP_DATABASE_URL or DATABASE_URL")
	}

	return &cfg, nil
}

// applyPlatformDefaults maps environment variables that use conventional
// names (DATABASE_URL, PORT, PURCHASE_RATE_LIMIT_*) onto the SHOP_-prefixed
// configuration, and restores defaults for invalid purchase-limit values.
func (c *Config) applyPlatformDefaults() {
	if c.DatabaseURL == "" {
		if v := os.Getenv("DATABASE_URL"); v != "" {
			c.DatabaseURL = v
		}
	}
	if port := os.Getenv("PORT"); port != "" && c.Addr == "0.0.0.0:8080" {
		c.Addr = "0.0.0.0:" + port
	}

	if v := positiveEnvInt("PURCHASE_RATE_LIMIT_PER_PRODUCT"); v > 0 {
		c.PurchaseLimit.PerProduct = v
	}
	if v := positiveEnvInt("PURCHASE_RATE_LIMIT_WINDOW_SECONDS"); v > 0 {
		c.PurchaseLimit.WindowSeconds = v
	}

	// Invalid values fall back to defaults silently.
	if c.PurchaseLimit.PerProduct <= 0 {
		c.PurchaseLimit.PerProduct = 1
	}
	if c.PurchaseLimit.WindowSeconds <= 0 {
		c.PurchaseLimit.WindowSeconds = 60
	}
}

// positiveEnvInt parses name as a positive integer, returning 0 for
// missing or invalid values.
func positiveEnvInt(name string) int {
	v := os.Getenv(name)
	if v == "" {
		return 0
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return 0
	}
	return n
}
