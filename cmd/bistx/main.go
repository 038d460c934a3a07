// bistx fetches historical OHLCV bars and instrument metadata for the
// BIST100 subset from the Yahoo Finance chart API, exports the batch as
// CSV and Parquet, and upserts everything into a SQLite store with a
// run-audit log.
//
// Usage:
//
//	bistx --range 60d --interval 5m [--db-path data/bist100_prices.db]
package main

import (
	"context"
	"flag"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"syscall"
	"time"

	"bistx/internal/bist"
	"bistx/internal/config"
	"bistx/internal/store"
	"bistx/internal/util"
	"bistx/internal/yahoo"
)

func main() {
	var (
		cfgPath  = flag.String("config", "", "path to YAML config (optional)")
		rng      = flag.String("range", "", "Yahoo Finance range, e.g. 60d, 1y, 10d (required)")
		interval = flag.String("interval", "", "interval, e.g. 1d, 30m, 5m, 1m (required)")
		dbPath   = flag.String("db-path", "", "SQLite path (created if missing)")
		prefix   = flag.String("prefix", "", "output file prefix for CSV/Parquet")
		sleepMin = flag.Float64("sleep-min", -1, "min sleep between requests, seconds")
		sleepMax = flag.Float64("sleep-max", -1, "max sleep between requests, seconds")
	)
	flag.Parse()

	if *rng == "" || *interval == "" {
		flag.Usage()
		os.Exit(2)
	}

	cfg := config.Default()
	if p := *cfgPath; p == "" {
		p = os.Getenv("BISTX_CONFIG")
		if p != "" {
			*cfgPath = p
		}
	}
	if *cfgPath != "" {
		loaded, err := config.Load(*cfgPath)
		if err != nil {
			log.Fatalf("failed to load config: %v", err)
		}
		cfg = loaded
	}

	// Flags take final precedence over config and environment.
	cfg.Batch.Range = *rng
	cfg.Batch.Interval = *interval
	if *dbPath != "" {
		cfg.Storage.SQLitePath = *dbPath
	}
	if *prefix != "" {
		cfg.Batch.Prefix = *prefix
	}
	if *sleepMin >= 0 {
		cfg.Batch.SleepMin = *sleepMin
	}
	if *sleepMax >= 0 {
		cfg.Batch.SleepMax = *sleepMax
	}

	logger := util.NewLogger(cfg.Logging.Level, cfg.Logging.Format)
	util.SetDefault(logger)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Fetch.
	session := yahoo.NewSession(yahoo.SessionOptions{
		MaxRetries:    cfg.Fetch.MaxRetries,
		BackoffFactor: cfg.Fetch.BackoffFactor,
		Timeout:       time.Duration(cfg.Fetch.TimeoutSec) * time.Second,
	})
	client := yahoo.NewChartClient(session)
	if len(cfg.Fetch.Hosts) > 0 {
		client.Hosts = cfg.Fetch.Hosts
	}

	batch := yahoo.NewBatch(client, cfg.Batch.Range, cfg.Batch.Interval,
		secs(cfg.Batch.SleepMin), secs(cfg.Batch.SleepMax))

	symbols := bist.Subset()
	result, err := batch.Run(ctx, symbols)
	if err != nil {
		log.Fatalf("batch aborted: %v", err)
	}

	slog.Info("batch complete",
		"rows", len(result.Table.Rows),
		"symbols", len(result.Metas),
		"errors", len(result.Errors),
	)
	for _, sym := range sampleKeys(result.Errors, 5) {
		slog.Warn("symbol failed", "symbol", sym, "err", result.Errors[sym])
	}

	// Export CSV + Parquet.
	csvPath, parquetPath, err := store.ExportTable(result.Table,
		cfg.Batch.Range, cfg.Batch.Interval, cfg.Batch.Prefix, cfg.Storage.DataDir)
	if err != nil {
		log.Fatalf("export failed: %v", err)
	}
	slog.Info("exported", "csv", csvPath, "parquet", parquetPath)

	// Persist.
	if dir := filepath.Dir(cfg.Storage.SQLitePath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			log.Fatalf("creating db dir: %v", err)
		}
	}
	st, err := store.Open(cfg.Storage.SQLitePath)
	if err != nil {
		log.Fatalf("opening store: %v", err)
	}
	defer st.Close()

	if err := st.InitSchema(ctx); err != nil {
		log.Fatalf("initializing schema: %v", err)
	}

	runID, err := st.UpsertPrices(ctx, result.Table, cfg.Batch.Range, cfg.Batch.Interval,
		store.UpsertOptions{Note: "bistx 0.1.0"})
	if err != nil {
		log.Fatalf("ingesting prices: %v", err)
	}
	if err := st.UpsertMeta(ctx, result.Metas, runID); err != nil {
		log.Fatalf("ingesting meta: %v", err)
	}

	total, err := st.CountPrices(ctx)
	if err != nil {
		log.Fatalf("counting prices: %v", err)
	}
	slog.Info("sqlite updated",
		"path", cfg.Storage.SQLitePath,
		"runID", runID,
		"totalRows", total,
	)
}

func secs(v float64) time.Duration {
	return time.Duration(v * float64(time.Second))
}

// sampleKeys returns up to n map keys in sorted order, for stable log output.
func sampleKeys(m map[string]string, n int) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	if len(keys) > n {
		keys = keys[:n]
	}
	return keys
}
