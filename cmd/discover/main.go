package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"net/url"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"

	"github.com/ayam04/pos-scraper/internal/browser"
	"github.com/ayam04/pos-scraper/internal/config"
	"github.com/ayam04/pos-scraper/internal/discovery"
	"github.com/ayam04/pos-scraper/internal/report"
)

func main() {
	var (
		targetURL  = flag.String("url", "", "Category page URL to discover products under")
		output     = flag.String("output", "discovery.json", "Destination path for the result document")
		headless   = flag.Bool("headless", true, "Run browser in headless mode")
		configPath = flag.String("config", "", "Path to a config file (optional)")
	)
	flag.Parse()

	if *targetURL == "" {
		flag.Usage()
		os.Exit(2)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: cfg.Logging.SlogLevel(),
	})).With("run_id", uuid.NewString())
	slog.SetDefault(logger)
	logger.Info("Starting product URL discovery", "url", *targetURL)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigChan
		logger.Info("Shutdown signal received")
		cancel()
	}()

	// run owns the browser session; exiting only after it returns keeps
	// the deferred teardown on every failure path
	if err := run(ctx, logger, cfg, *targetURL, *output, *headless); err != nil {
		logger.Error("Discovery failed", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, logger *slog.Logger, cfg *config.Config, targetURL, output string, headless bool) error {
	if _, err := url.ParseRequestURI(targetURL); err != nil {
		return fmt.Errorf("invalid target url %q: %w", targetURL, err)
	}

	browserOpts := &browser.Options{
		Headless:       headless && cfg.Browser.Headless,
		Timeout:        cfg.Scraper.PageTimeout,
		UserAgent:      cfg.Browser.UserAgent,
		ViewportWidth:  cfg.Browser.ViewportWidth,
		ViewportHeight: cfg.Browser.ViewportHeight,
		AcceptLanguage: cfg.Browser.AcceptLanguage,
		TimezoneID:     cfg.Browser.TimezoneID,
		Locale:         cfg.Browser.Locale,
		ProxyServer:    cfg.Browser.ProxyServer,
		ExtraHeaders:   browser.DefaultOptions().ExtraHeaders,
	}

	b, err := browser.New(browserOpts)
	if err != nil {
		return fmt.Errorf("failed to start browser session: %w", err)
	}
	defer b.Close()

	crawler := discovery.NewCrawler(b, cfg)
	result, err := crawler.Run(ctx, targetURL)
	if err != nil {
		return err
	}

	if err := report.WriteDiscovery(output, result); err != nil {
		return fmt.Errorf("failed to write result: %w", err)
	}

	logger.Info("Discovery complete",
		"output", output,
		"total_urls", result.Stats.TotalURLs,
		"base_products", result.Stats.BaseProducts,
		"variant_urls", result.Stats.VariantURLs)
	return nil
}
