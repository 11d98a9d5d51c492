package config

import (
	"log/slog"
	"os"
	"testing"
	"time"
)

func TestLoad(t *testing.T) {
	cleanupEnv := func() {
		os.Unsetenv("POS_BROWSER_HEADLESS")
		os.Unsetenv("POS_BROWSER_LOCALE")
		os.Unsetenv("POS_SCRAPER_MAX_RETRIES")
		os.Unsetenv("POS_SCRAPER_PAGE_TIMEOUT")
		os.Unsetenv("POS_DISCOVERY_PAGE_SIZE")
		os.Unsetenv("POS_DISCOVERY_MAX_PAGES")
		os.Unsetenv("POS_EXTRACTION_MIN_QUANTITY")
		os.Unsetenv("POS_EXTRACTION_MAX_QUANTITY")
		os.Unsetenv("POS_LOGGING_LEVEL")
	}

	t.Run("loads with defaults when no env vars set", func(t *testing.T) {
		cleanupEnv()
		defer cleanupEnv()

		cfg, err := Load("")
		if err != nil {
			t.Fatalf("Load() error = %v, want nil", err)
		}

		if !cfg.Browser.Headless {
			t.Error("Browser.Headless = false, want true")
		}
		if cfg.Browser.Locale != "en-US" {
			t.Errorf("Browser.Locale = %s, want en-US", cfg.Browser.Locale)
		}
		if cfg.Scraper.MaxRetries != 3 {
			t.Errorf("Scraper.MaxRetries = %d, want 3", cfg.Scraper.MaxRetries)
		}
		if cfg.Scraper.InitialTimeout != 90*time.Second {
			t.Errorf("Scraper.InitialTimeout = %v, want 90s", cfg.Scraper.InitialTimeout)
		}
		if cfg.Discovery.PageSize != 30 {
			t.Errorf("Discovery.PageSize = %d, want 30", cfg.Discovery.PageSize)
		}
		if cfg.Discovery.PageDelayMin != 1500*time.Millisecond {
			t.Errorf("Discovery.PageDelayMin = %v, want 1.5s", cfg.Discovery.PageDelayMin)
		}
		if cfg.Extraction.MinQuantity != 50 || cfg.Extraction.MaxQuantity != 100000 {
			t.Errorf("Extraction quantity bounds = %d..%d, want 50..100000", cfg.Extraction.MinQuantity, cfg.Extraction.MaxQuantity)
		}
		if cfg.Logging.Level != "info" {
			t.Errorf("Logging.Level = %s, want info", cfg.Logging.Level)
		}
	})

	t.Run("loads custom values from environment variables", func(t *testing.T) {
		cleanupEnv()
		os.Setenv("POS_BROWSER_LOCALE", "en-GB")
		os.Setenv("POS_SCRAPER_MAX_RETRIES", "5")
		os.Setenv("POS_SCRAPER_PAGE_TIMEOUT", "30s")
		os.Setenv("POS_DISCOVERY_PAGE_SIZE", "60")
		os.Setenv("POS_LOGGING_LEVEL", "debug")
		defer cleanupEnv()

		cfg, err := Load("")
		if err != nil {
			t.Fatalf("Load() error = %v, want nil", err)
		}

		if cfg.Browser.Locale != "en-GB" {
			t.Errorf("Browser.Locale = %s, want en-GB", cfg.Browser.Locale)
		}
		if cfg.Scraper.MaxRetries != 5 {
			t.Errorf("Scraper.MaxRetries = %d, want 5", cfg.Scraper.MaxRetries)
		}
		if cfg.Scraper.PageTimeout != 30*time.Second {
			t.Errorf("Scraper.PageTimeout = %v, want 30s", cfg.Scraper.PageTimeout)
		}
		if cfg.Discovery.PageSize != 60 {
			t.Errorf("Discovery.PageSize = %d, want 60", cfg.Discovery.PageSize)
		}
		if cfg.Logging.Level != "debug" {
			t.Errorf("Logging.Level = %s, want debug", cfg.Logging.Level)
		}
	})

	t.Run("fails validation for unknown log level", func(t *testing.T) {
		cleanupEnv()
		os.Setenv("POS_LOGGING_LEVEL", "verbose")
		defer cleanupEnv()

		if _, err := Load(""); err == nil {
			t.Error("Load() error = nil, want error for unknown log level")
		}
	})

	t.Run("fails for missing explicit config file", func(t *testing.T) {
		cleanupEnv()
		defer cleanupEnv()

		if _, err := Load("/nonexistent/config.yaml"); err == nil {
			t.Error("Load() error = nil, want error for missing explicit config file")
		}
	})
}

func TestValidate(t *testing.T) {
	base := func() *Config {
		return &Config{
			Scraper:    ScraperConfig{MaxRetries: 3},
			Discovery:  DiscoveryConfig{PageSize: 30, MaxPages: 40, PageDelayMin: time.Second, PageDelayMax: 2 * time.Second},
			Extraction: ExtractionConfig{MinQuantity: 50, MaxQuantity: 100000},
			Logging:    LoggingConfig{Level: "info"},
		}
	}

	t.Run("valid config", func(t *testing.T) {
		if err := base().Validate(); err != nil {
			t.Errorf("Validate() error = %v, want nil", err)
		}
	})

	t.Run("zero retries", func(t *testing.T) {
		cfg := base()
		cfg.Scraper.MaxRetries = 0
		if err := cfg.Validate(); err == nil {
			t.Error("Validate() error = nil, want error for zero retries")
		}
	})

	t.Run("delay min above max", func(t *testing.T) {
		cfg := base()
		cfg.Discovery.PageDelayMin = 3 * time.Second
		if err := cfg.Validate(); err == nil {
			t.Error("Validate() error = nil, want error for inverted delay bounds")
		}
	})

	t.Run("quantity bounds inverted", func(t *testing.T) {
		cfg := base()
		cfg.Extraction.MinQuantity = 100000
		cfg.Extraction.MaxQuantity = 50
		if err := cfg.Validate(); err == nil {
			t.Error("Validate() error = nil, want error for inverted quantity bounds")
		}
	})
}

func TestSlogLevel(t *testing.T) {
	tests := []struct {
		level    string
		expected slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"error", slog.LevelError},
		{"", slog.LevelInfo},
	}

	for _, tt := range tests {
		cfg := LoggingConfig{Level: tt.level}
		if got := cfg.SlogLevel(); got != tt.expected {
			t.Errorf("SlogLevel(%q) = %v, want %v", tt.level, got, tt.expected)
		}
	}
}
