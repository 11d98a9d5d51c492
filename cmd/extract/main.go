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
	"github.com/ayam04/pos-scraper/internal/matrix"
	"github.com/ayam04/pos-scraper/internal/report"
)

func main() {
	var (
		targetURL  = flag.String("url", "", "Product page URL to extract variants from")
		output     = flag.String("output", "extraction.json", "Destination path for the result document")
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
	logger.Info("Starting variant matrix extraction", "url", *targetURL)

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
		logger.Error("Extraction failed", "error", err)
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

	builder := matrix.NewBuilder(b, cfg)
	result, err := builder.Run(ctx, targetURL)
	if err != nil {
		return err
	}

	stats := builder.Stats()
	if stats.Omitted > 0 {
		logger.Warn("Some combinations could not be priced",
			"omitted", stats.Omitted, "combinations", stats.Combinations)
	}

	if err := report.WriteExtraction(output, result); err != nil {
		return fmt.Errorf("failed to write result: %w", err)
	}

	logger.Info("Extraction complete",
		"output", output,
		"options", len(result.Options),
		"variants", len(result.Variants),
		"omitted", stats.Omitted)
	return nil
}
