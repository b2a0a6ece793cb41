// Command catalog reduces already-extracted marketplace listings into a
// deduplicated, relevance-scored offer catalog.
//
// Input is a JSON file of part queries with their captured raw offers,
// as produced by the external scraping collaborator.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/torobtools/offercatalog/cache"
	"github.com/torobtools/offercatalog/config"
	"github.com/torobtools/offercatalog/models"
	"github.com/torobtools/offercatalog/pipeline"
)

// captureFile is the input format: one entry per part query, with the
// raw offers its search captured and optional product page drill-downs.
type captureFile struct {
	Queries []captureEntry `json:"queries"`
}

type captureEntry struct {
	Query    models.PartQuery                  `json:"query"`
	Offers   []models.Offer                    `json:"offers"`
	Products map[string]*models.ProductDetails `json:"products,omitempty"`
}

// captureFetcher serves captured records through the pipeline.Fetcher
// interface.
type captureFetcher struct {
	searches map[string][]models.Offer
	products map[string]*models.ProductDetails
}

func newCaptureFetcher(entries []captureEntry) *captureFetcher {
	f := &captureFetcher{
		searches: make(map[string][]models.Offer, len(entries)),
		products: make(map[string]*models.ProductDetails),
	}
	for _, e := range entries {
		f.searches[e.Query.Keywords] = e.Offers
		for url, details := range e.Products {
			f.products[url] = details
		}
	}
	return f
}

func (f *captureFetcher) SearchParts(_ context.Context, keywords string) ([]models.Offer, error) {
	offers, ok := f.searches[keywords]
	if !ok {
		return nil, fmt.Errorf("no captured offers for %q", keywords)
	}
	return offers, nil
}

func (f *captureFetcher) ProductDetails(_ context.Context, productURL string) (*models.ProductDetails, error) {
	return f.products[productURL], nil
}

func main() {
	defaultCfg := config.DefaultConfig()
	workersDefault := defaultCfg.MaxWorkers
	if value, ok, err := config.EnvInt("CATALOG_WORKERS"); err != nil {
		fmt.Fprintf(os.Stderr, "invalid CATALOG_WORKERS: %v\n", err)
		os.Exit(1)
	} else if ok {
		workersDefault = value
	}
	outputDefault := defaultCfg.OutputFile
	if value, ok := config.EnvString("CATALOG_OUTPUT"); ok {
		outputDefault = value
	}
	cacheDefault := defaultCfg.CachePath
	if value, ok := config.EnvString("CATALOG_CACHE"); ok {
		cacheDefault = value
	}

	inputFile := flag.String("input", "", "Captured listings file (JSON)")
	outputFile := flag.String("output", outputDefault, "Output file path")
	outputFormat := flag.String("format", "csv", "Output format: csv, json, or dual")
	cachePath := flag.String("cache", cacheDefault, "Cache store path")
	cacheDisabled := flag.Bool("no-cache", false, "Disable the cache store")
	ttlHours := flag.Int("cache-ttl", 24, "Cache TTL (hours)")
	cacheSizeMB := flag.Int("cache-size", 100, "Cache size ceiling (MB)")
	noParallel := flag.Bool("no-parallel", false, "Process queries sequentially")
	maxWorkers := flag.Int("workers", workersDefault, "Concurrent workers per batch")
	batchSize := flag.Int("batch-size", defaultCfg.BatchSize, "Queries per scheduling batch")
	minRelevance := flag.Float64("min-relevance", defaultCfg.MinRelevance, "Minimum relevance score")
	negativeKeywords := flag.String("negative-keywords", "", "Extra negative keywords (comma separated)")
	metricsAddr := flag.String("metrics-addr", "", "Prometheus metrics listen address (e.g. :9090)")
	verbose := flag.Bool("v", false, "Enable verbose logging")

	flag.Parse()

	logger, level := newLogger(*verbose)
	slog.SetDefault(logger)
	slog.SetLogLoggerLevel(level.Level())

	if *inputFile == "" {
		slog.Error("missing required -input file")
		os.Exit(1)
	}

	cfg := defaultCfg
	cfg.CachePath = *cachePath
	cfg.CacheEnabled = !*cacheDisabled
	cfg.CacheTTL = time.Duration(*ttlHours) * time.Hour
	cfg.CacheMaxSizeMB = *cacheSizeMB
	cfg.SchedulerEnabled = !*noParallel
	cfg.MaxWorkers = *maxWorkers
	cfg.BatchSize = *batchSize
	cfg.MinRelevance = *minRelevance
	cfg.OutputFile = *outputFile
	cfg.OutputFormat = strings.ToLower(*outputFormat)
	cfg.MetricsAddr = *metricsAddr
	cfg.Verbose = *verbose
	if *negativeKeywords != "" {
		for _, kw := range strings.Split(*negativeKeywords, ",") {
			if kw = strings.TrimSpace(kw); kw != "" {
				cfg.NegativeKeywords = append(cfg.NegativeKeywords, kw)
			}
		}
	}
	if err := cfg.Validate(); err != nil {
		slog.Error("invalid configuration", slog.Any("error", err))
		os.Exit(1)
	}

	capture, err := loadCapture(*inputFile)
	if err != nil {
		slog.Error("loading input", slog.Any("error", err))
		os.Exit(1)
	}

	store, err := cache.Open(cfg.CachePath, cache.Options{
		Enabled:       cfg.CacheEnabled,
		TTL:           cfg.CacheTTL,
		MaxSizeBytes:  cfg.CacheMaxSizeBytes(),
		MemoryEntries: cfg.CacheMemoryEntries,
	})
	if err != nil {
		slog.Error("opening cache store", slog.Any("error", err))
		os.Exit(1)
	}
	defer store.Close()

	catalog, err := pipeline.New(cfg, newCaptureFetcher(capture.Queries), store)
	if err != nil {
		slog.Error("initialising catalog", slog.Any("error", err))
		os.Exit(1)
	}

	writer, err := createWriter(cfg.OutputFormat, cfg.OutputFile)
	if err != nil {
		slog.Error("creating writer", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := writer.Close(); err != nil {
			slog.Error("close writer", slog.Any("error", err))
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var metricsServer *http.Server
	if cfg.MetricsAddr != "" {
		metricsServer = &http.Server{
			Addr:    cfg.MetricsAddr,
			Handler: promhttp.HandlerFor(catalog.Metrics.Registry, promhttp.HandlerOpts{}),
		}
		go func() {
			if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				slog.Error("metrics server failed", slog.Any("error", err))
			}
		}()
		slog.Info("metrics server enabled", slog.String("addr", cfg.MetricsAddr))
	}

	queries := make([]models.PartQuery, len(capture.Queries))
	for i, entry := range capture.Queries {
		queries[i] = entry.Query
	}

	slog.Info("starting catalog run",
		slog.Int("queries", len(queries)),
		slog.Bool("parallel", cfg.SchedulerEnabled),
		slog.Int("batch_size", cfg.BatchSize),
	)

	results, stats := catalog.ProcessAll(ctx, queries)

	for _, result := range results {
		if result == nil || len(result.Offers) == 0 {
			continue
		}
		if err := writer.Write(result.Offers); err != nil {
			slog.Error("writing offers", slog.Any("error", err))
			os.Exit(1)
		}
	}

	if stats.TotalOffers > 0 {
		if err := writer.Validate(); err != nil {
			slog.Error("output validation failed", slog.Any("error", err))
			os.Exit(1)
		}
	}

	if metricsServer != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := metricsServer.Shutdown(shutdownCtx); err != nil {
			slog.Error("metrics server shutdown failed", slog.Any("error", err))
		}
		cancel()
	}

	printSummary(stats, store.Stats(), cfg.OutputFile)
}

func loadCapture(path string) (*captureFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read input file: %w", err)
	}
	var capture captureFile
	if err := json.Unmarshal(data, &capture); err != nil {
		return nil, fmt.Errorf("decode input file: %w", err)
	}
	if len(capture.Queries) == 0 {
		return nil, fmt.Errorf("input file has no queries")
	}
	return &capture, nil
}

func createWriter(format, filename string) (pipeline.OutputWriter, error) {
	switch format {
	case "json":
		return pipeline.NewJSONWriter(filename)
	case "csv":
		return pipeline.NewCSVWriter(filename)
	case "dual":
		jsonFilename := strings.TrimSuffix(filename, ".csv") + ".json"
		return pipeline.NewDualWriter(filename, jsonFilename)
	default:
		return nil, fmt.Errorf("unsupported format: %s", format)
	}
}

func printSummary(stats pipeline.RunStats, cacheStats cache.Stats, outputFile string) {
	separator := "--------------------------------------------------"
	fmt.Println("\n" + separator)
	fmt.Println("Catalog run complete")
	fmt.Printf("  Parts processed: %d\n", stats.PartsProcessed)
	fmt.Printf("  Parts failed:    %d\n", stats.PartsFailed)
	fmt.Printf("  Offers kept:     %d\n", stats.TotalOffers)
	fmt.Printf("  Unique sellers:  %d\n", stats.UniqueSellers)
	fmt.Printf("  Avg relevance:   %.2f\n", stats.AvgRelevance)
	fmt.Printf("  Cache hits/miss: %d/%d\n", cacheStats.Hits, cacheStats.Misses)
	fmt.Printf("  Duration:        %v\n", stats.Elapsed)
	fmt.Printf("  Output file:     %s\n", outputFile)
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
