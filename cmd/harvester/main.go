package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/gamecorpus/harvester/config"
	"github.com/gamecorpus/harvester/harvest"
	"github.com/gamecorpus/harvester/models"
	"github.com/gamecorpus/harvester/providers"
	"github.com/gamecorpus/harvester/ratelimit"
)

func main() {
	var (
		provider     = flag.String("provider", config.ProviderSteamSpy, "Catalog provider: steamspy, rawg, or igdb")
		pages        = flag.Int("pages", 0, "Catalog pages to walk (provider default when unset)")
		pageDelay    = flag.Duration("page-delay", 0, "Pause between pages that yielded new items")
		itemDelay    = flag.Duration("item-delay", 0, "Minimum spacing between provider requests")
		dataDir      = flag.String("data-dir", "", "Root directory for harvested data")
		configPath   = flag.String("config", "", "Optional json5 config file")
		apiKey       = flag.String("api-key", "", "RAWG API key")
		clientID     = flag.String("client-id", "", "IGDB client id")
		clientSecret = flag.String("client-secret", "", "IGDB client secret")
		baseURL      = flag.String("base-url", "", "Override the provider API endpoint")
		metricsAddr  = flag.String("metrics-addr", "", "Prometheus metrics listen address (e.g. :9090)")
		verbose      = flag.Bool("v", false, "Enable verbose logging")
	)
	flag.Parse()

	cfg := config.Default(*provider)
	if *configPath != "" {
		if err := config.LoadFile(*configPath, cfg); err != nil {
			fmt.Fprintf(os.Stderr, "load config: %v\n", err)
			os.Exit(1)
		}
		// A provider named in the file gets its own defaults, unless
		// the flag was given explicitly.
		if cfg.Provider != *provider && !flagWasSet("provider") {
			cfg = config.Default(cfg.Provider)
			if err := config.LoadFile(*configPath, cfg); err != nil {
				fmt.Fprintf(os.Stderr, "load config: %v\n", err)
				os.Exit(1)
			}
		} else {
			cfg.Provider = *provider
		}
	}
	if err := cfg.ApplyEnv(); err != nil {
		fmt.Fprintf(os.Stderr, "read environment: %v\n", err)
		os.Exit(1)
	}

	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "pages":
			cfg.Pages = *pages
		case "page-delay":
			cfg.PageDelay = *pageDelay
		case "item-delay":
			cfg.ItemDelay = *itemDelay
		case "data-dir":
			cfg.DataDir = *dataDir
		case "api-key":
			cfg.APIKey = *apiKey
		case "client-id":
			cfg.ClientID = *clientID
		case "client-secret":
			cfg.ClientSecret = *clientSecret
		case "base-url":
			cfg.BaseURL = *baseURL
		case "metrics-addr":
			cfg.MetricsAddr = *metricsAddr
		case "v":
			cfg.Verbose = *verbose
		}
	})

	logger, level := newLogger(cfg.Verbose)
	slog.SetDefault(logger)
	setLogLoggerLevel(level.Level())

	if err := cfg.Validate(); err != nil {
		slog.Error("invalid configuration", slog.Any("error", err))
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	go func() {
		<-ctx.Done()
		slog.Info("shutdown signal received, finishing the current item")
	}()

	if err := run(ctx, cfg); err != nil {
		slog.Error("harvest failed", slog.Any("error", err))
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config) error {
	limiter := ratelimit.New(cfg.ItemDelay)

	src, err := providers.New(cfg, limiter, slog.Default())
	if err != nil {
		return err
	}

	session, err := harvest.OpenSession(cfg, src.Describe(), limiter, slog.Default())
	if err != nil {
		return err
	}
	defer func() {
		if err := session.Close(); err != nil {
			slog.Error("release session lock", slog.Any("error", err))
		}
	}()

	engine := harvest.NewEngine(cfg, src, session, slog.Default())
	if isTerminal(os.Stdout) {
		engine.OnProgress = printProgress
	}

	var metricsServer *http.Server
	if cfg.MetricsAddr != "" {
		metricsServer = &http.Server{
			Addr:    cfg.MetricsAddr,
			Handler: promhttp.HandlerFor(engine.Metrics().Registry, promhttp.HandlerOpts{}),
		}
		go func() {
			if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				slog.Error("metrics server failed", slog.Any("error", err))
			}
		}()
		slog.Info("metrics server enabled", slog.String("addr", cfg.MetricsAddr))
	}

	result, err := engine.Run(ctx)

	if metricsServer != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if serr := metricsServer.Shutdown(shutdownCtx); serr != nil {
			slog.Error("metrics server shutdown failed", slog.Any("error", serr))
		}
		cancel()
	}

	if err != nil {
		return err
	}

	if result.NewItems == 0 {
		slog.Info("nothing new today", slog.String("provider", result.Provider))
	}
	printSummary(result)
	return nil
}

func flagWasSet(name string) bool {
	set := false
	flag.Visit(func(f *flag.Flag) {
		if f.Name == name {
			set = true
		}
	})
	return set
}

func printProgress(index, total int, label string) {
	fmt.Printf("\r  %s: %d/%d", label, index, total)
	if index == total {
		fmt.Println()
	}
}

func printSummary(result *models.RunResult) {
	separator := "--------------------------------------------------"
	fmt.Println("\n" + separator)
	fmt.Println("Harvest complete")
	fmt.Printf("  Provider:      %s\n", result.Provider)
	fmt.Printf("  Pages:         %d\n", result.PagesScraped)
	fmt.Printf("  New items:     %d\n", result.NewItems)
	fmt.Printf("  Duplicates:    %d\n", result.Duplicates)
	fmt.Printf("  Filtered:      %d\n", result.Filtered)
	fmt.Printf("  Failed:        %d\n", result.Failed)
	if len(result.ErrorsByType) > 0 {
		fmt.Printf("  Error types:   %v\n", result.ErrorsByType)
	}

	duration := result.EndTime.Sub(result.StartTime)
	fmt.Printf("  Duration:      %v\n", duration.Round(time.Millisecond))
	itemsPerSec := 0.0
	if duration.Seconds() > 0 {
		itemsPerSec = float64(result.NewItems) / duration.Seconds()
	}
	fmt.Printf("  Items/sec:     %.2f\n", itemsPerSec)
	fmt.Printf("  Output dir:    %s\n", result.OutputDir)
	fmt.Println(separator)
}

func newLogger(verbose bool) (*slog.Logger, *slog.LevelVar) {
	level := &slog.LevelVar{}
	if verbose {
		level.Set(slog.LevelDebug)
	} else {
		level.Set(slog.LevelInfo)
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if isTerminal(os.Stdout) {
		handler = slog.NewTextHandler(os.Stdout, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}

	return slog.New(handler), level
}

func isTerminal(f *os.File) bool {
	info, err := f.Stat()
	if err != nil {
		return false
	}
	return (info.Mode() & os.ModeCharDevice) != 0
}
