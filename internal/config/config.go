package config

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Supplier  SupplierConfig  `yaml:"supplier" mapstructure:"supplier"`
	Crawl     CrawlConfig     `yaml:"crawl" mapstructure:"crawl"`
	Deliver   DeliverConfig   `yaml:"deliver" mapstructure:"deliver"`
	Normalize NormalizeConfig `yaml:"normalize" mapstructure:"normalize"`
	Browser   BrowserConfig   `yaml:"browser" mapstructure:"browser"`
	Log       LogConfig       `yaml:"log" mapstructure:"log"`
}

// SupplierConfig identifies the storefront being crawled and the account
// used to see trade pricing. Email and password are optional; without them
// the crawl runs anonymously.
type SupplierConfig struct {
	BaseURL       string `yaml:"base_url" mapstructure:"base_url"`
	CollectionURL string `yaml:"collection_url" mapstructure:"collection_url"`
	Email         string `yaml:"email" mapstructure:"email"`
	Password      string `yaml:"password" mapstructure:"password"`
	Source        string `yaml:"source" mapstructure:"source"`
	DefaultVendor string `yaml:"default_vendor" mapstructure:"default_vendor"`
}

// CrawlConfig configures pagination and fan-out behavior.
type CrawlConfig struct {
	MaxPages            int     `yaml:"max_pages" mapstructure:"max_pages"`
	Concurrency         int     `yaml:"concurrency" mapstructure:"concurrency"`
	RatePerSec          float64 `yaml:"rate_per_sec" mapstructure:"rate_per_sec"`
	ContinueOnPageError bool    `yaml:"continue_on_page_error" mapstructure:"continue_on_page_error"`
	ScreenshotDir       string  `yaml:"screenshot_dir" mapstructure:"screenshot_dir"`
}

// DeliverConfig configures the webhook sink.
type DeliverConfig struct {
	WebhookURL  string `yaml:"webhook_url" mapstructure:"webhook_url"`
	Mode        string `yaml:"mode" mapstructure:"mode"`
	BatchSize   int    `yaml:"batch_size" mapstructure:"batch_size"`
	Retries     int    `yaml:"retries" mapstructure:"retries"`
	BaseDelayMs int    `yaml:"base_delay_ms" mapstructure:"base_delay_ms"`
	TimeoutSecs int    `yaml:"timeout_secs" mapstructure:"timeout_secs"`
}

// NormalizeConfig configures record normalization.
type NormalizeConfig struct {
	DefaultCurrency string `yaml:"default_currency" mapstructure:"default_currency"`
}

// BrowserConfig selects and tunes the page driver.
type BrowserConfig struct {
	Driver         string `yaml:"driver" mapstructure:"driver"`
	Headless       bool   `yaml:"headless" mapstructure:"headless"`
	NavTimeoutSecs int    `yaml:"nav_timeout_secs" mapstructure:"nav_timeout_secs"`
	UserAgent      string `yaml:"user_agent" mapstructure:"user_agent"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Validate checks the fields required for the given command mode
// ("crawl" or "scrape"). It collects every problem rather than stopping
// at the first.
func (c *Config) Validate(mode string) error {
	var problems []string

	switch mode {
	case "crawl":
		if c.Supplier.CollectionURL == "" {
			problems = append(problems, "supplier.collection_url is required")
		}
		if c.Crawl.MaxPages < 1 {
			problems = append(problems, "crawl.max_pages must be >= 1")
		}
		if c.Crawl.Concurrency < 1 || c.Crawl.Concurrency > 32 {
			problems = append(problems, "crawl.concurrency must be between 1 and 32")
		}
	case "scrape":
		// Product URL comes from the command argument, nothing extra here.
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	switch c.Browser.Driver {
	case "http", "chromedp":
	default:
		problems = append(problems, "browser.driver must be http or chromedp")
	}
	switch c.Deliver.Mode {
	case "stream", "collect":
	default:
		problems = append(problems, "deliver.mode must be stream or collect")
	}
	if c.Deliver.BatchSize < 1 {
		problems = append(problems, "deliver.batch_size must be >= 1")
	}
	if c.Deliver.Retries < 0 {
		problems = append(problems, "deliver.retries must be >= 0")
	}

	if len(problems) > 0 {
		return eris.New("config: " + strings.Join(problems, "; "))
	}
	return nil
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("CATALOG")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("supplier.source", "solutiontech")
	v.SetDefault("supplier.default_vendor", "Epson")
	v.SetDefault("crawl.max_pages", 10)
	v.SetDefault("crawl.concurrency", 4)
	v.SetDefault("crawl.rate_per_sec", 0)
	v.SetDefault("crawl.continue_on_page_error", false)
	v.SetDefault("deliver.mode", "stream")
	v.SetDefault("deliver.batch_size", 50)
	v.SetDefault("deliver.retries", 4)
	v.SetDefault("deliver.base_delay_ms", 500)
	v.SetDefault("deliver.timeout_secs", 30)
	v.SetDefault("normalize.default_currency", "ZAR")
	v.SetDefault("browser.driver", "http")
	v.SetDefault("browser.headless", true)
	v.SetDefault("browser.nav_timeout_secs", 120)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
