package config

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Browser    BrowserConfig    `mapstructure:"browser"`
	Scraper    ScraperConfig    `mapstructure:"scraper"`
	Discovery  DiscoveryConfig  `mapstructure:"discovery"`
	Extraction ExtractionConfig `mapstructure:"extraction"`
	Logging    LoggingConfig    `mapstructure:"logging"`
}

type BrowserConfig struct {
	Headless       bool   `mapstructure:"headless"`
	UserAgent      string `mapstructure:"user_agent"`
	ViewportWidth  int    `mapstructure:"viewport_width"`
	ViewportHeight int    `mapstructure:"viewport_height"`
	Locale         string `mapstructure:"locale"`
	TimezoneID     string `mapstructure:"timezone_id"`
	AcceptLanguage string `mapstructure:"accept_language"`
	ProxyServer    string `mapstructure:"proxy_server"`
}

type ScraperConfig struct {
	MaxRetries     int           `mapstructure:"max_retries"`
	BackoffBase    time.Duration `mapstructure:"backoff_base"`
	InitialTimeout time.Duration `mapstructure:"initial_timeout"`
	PageTimeout    time.Duration `mapstructure:"page_timeout"`
}

type DiscoveryConfig struct {
	PageDelayMin time.Duration `mapstructure:"page_delay_min"`
	PageDelayMax time.Duration `mapstructure:"page_delay_max"`
	PageSize     int           `mapstructure:"page_size"`
	MaxPages     int           `mapstructure:"max_pages"`
}

type ExtractionConfig struct {
	VariantDelayMin time.Duration `mapstructure:"variant_delay_min"`
	VariantDelayMax time.Duration `mapstructure:"variant_delay_max"`
	VariantTimeout  time.Duration `mapstructure:"variant_timeout"`
	MinQuantity     int           `mapstructure:"min_quantity"`
	MaxQuantity     int           `mapstructure:"max_quantity"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Load reads configuration from an optional YAML file and POS_-prefixed
// environment variables, with defaults for every knob. path overrides the
// config file search when non-empty.
func Load(path string) (*Config, error) {
	v := viper.New()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}

	v.SetEnvPrefix("POS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		// no config file: environment variables and defaults apply
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("browser.headless", true)
	v.SetDefault("browser.user_agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36")
	v.SetDefault("browser.viewport_width", 1920)
	v.SetDefault("browser.viewport_height", 1080)
	v.SetDefault("browser.locale", "en-US")
	v.SetDefault("browser.timezone_id", "America/New_York")
	v.SetDefault("browser.accept_language", "en-US,en;q=0.9")
	v.SetDefault("browser.proxy_server", "")

	v.SetDefault("scraper.max_retries", 3)
	v.SetDefault("scraper.backoff_base", "2s")
	v.SetDefault("scraper.initial_timeout", "90s")
	v.SetDefault("scraper.page_timeout", "60s")

	v.SetDefault("discovery.page_delay_min", "1500ms")
	v.SetDefault("discovery.page_delay_max", "2500ms")
	v.SetDefault("discovery.page_size", 30)
	v.SetDefault("discovery.max_pages", 40)

	v.SetDefault("extraction.variant_delay_min", "500ms")
	v.SetDefault("extraction.variant_delay_max", "1500ms")
	v.SetDefault("extraction.variant_timeout", "45s")
	v.SetDefault("extraction.min_quantity", 50)
	v.SetDefault("extraction.max_quantity", 100000)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "text")
}

func (c *Config) Validate() error {
	if c.Scraper.MaxRetries < 1 {
		return fmt.Errorf("scraper.max_retries must be at least 1, got %d", c.Scraper.MaxRetries)
	}
	if c.Discovery.PageSize < 1 {
		return fmt.Errorf("discovery.page_size must be at least 1, got %d", c.Discovery.PageSize)
	}
	if c.Discovery.MaxPages < 1 {
		return fmt.Errorf("discovery.max_pages must be at least 1, got %d", c.Discovery.MaxPages)
	}
	if c.Discovery.PageDelayMin > c.Discovery.PageDelayMax {
		return fmt.Errorf("discovery.page_delay_min exceeds page_delay_max")
	}
	if c.Extraction.VariantDelayMin > c.Extraction.VariantDelayMax {
		return fmt.Errorf("extraction.variant_delay_min exceeds variant_delay_max")
	}
	if c.Extraction.MinQuantity < 1 || c.Extraction.MinQuantity >= c.Extraction.MaxQuantity {
		return fmt.Errorf("extraction quantity bounds must satisfy 1 <= min < max, got %d..%d", c.Extraction.MinQuantity, c.Extraction.MaxQuantity)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level must be one of debug, info, warn, error, got %q", c.Logging.Level)
	}
	return nil
}

// SlogLevel maps the configured level name onto a slog level.
func (c *LoggingConfig) SlogLevel() slog.Level {
	switch c.Level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
