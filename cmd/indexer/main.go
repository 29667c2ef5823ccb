// Package main runs the PumpSwap indexer:
// - live: push-feed ingestion plus the query API
// - batch: one scan of a mint's recent signatures, report printed as JSON
// - serve: query API only, over existing storage
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	apihttp "pumpswap-indexer/internal/api/http"
	"pumpswap-indexer/internal/config"
	"pumpswap-indexer/internal/ingestion"
	"pumpswap-indexer/internal/logging"
	"pumpswap-indexer/internal/observability"
	"pumpswap-indexer/internal/solana"
)

func main() {
	mode := flag.String("mode", "live", "Run mode: live, batch or serve")
	mint := flag.String("mint", "", "Mint to scan (batch mode)")
	limit := flag.Int("limit", 0, "Signatures to scan in batch mode (0 uses batch.limit)")
	configPath := flag.String("config", "", "Path to a YAML config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}

	log, err := logging.New(cfg.Logging.Level, cfg.Logging.Format)
	if err != nil {
		fmt.Fprintf(os.Stderr, "build logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	for _, w := range cfg.Warnings {
		log.Warn(w)
	}

	if *mode == "batch" && *mint == "" {
		log.Fatal("-mint is required in batch mode")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan struct{})
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		select {
		case sig := <-sigCh:
			log.Info("shutting down", zap.Stringer("signal", sig))
			cancel()
		case <-done:
			return
		}

		select {
		case sig := <-sigCh:
			log.Warn("second signal, forcing exit", zap.Stringer("signal", sig))
			os.Exit(1)
		case <-time.After(30 * time.Second):
			log.Error("graceful shutdown timed out after 30s, forcing exit")
			os.Exit(1)
		case <-done:
		}
	}()

	a, err := newApp(ctx, cfg, log)
	if err != nil {
		log.Fatal("startup failed", zap.Error(err))
	}

	switch *mode {
	case "live":
		err = runLive(ctx, a)
	case "batch":
		err = runBatch(ctx, a, *mint, *limit)
	case "serve":
		err = runServe(ctx, a)
	default:
		err = fmt.Errorf("unknown mode %q", *mode)
	}

	a.Close()
	close(done)

	if err != nil && !errors.Is(err, context.Canceled) {
		log.Fatal("indexer failed", zap.String("mode", *mode), zap.Error(err))
	}
	log.Info("shutdown complete")
}

// runLive ingests from the logs feed and serves queries until ctx is done.
func runLive(ctx context.Context, a *app) error {
	channel := ingestion.NewLiveChannel(ingestion.LiveOptions{
		Dialer:    solana.NewWSDialer(a.cfg.RPC.WSEndpoint, nil),
		Fetcher:   a.fetcher,
		Extractor: a.extractor,
		Sink:      a.sink,
		Dedupe:    a.dedupe,
		Logger:    a.log,
	})

	a.prices.StartBackground(ctx, a.cfg.PriceCache.RefreshInterval, nil)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return channel.Run(gctx) })
	g.Go(func() error {
		return serveHTTP(gctx, a, func() string { return channel.State().String() })
	})
	return g.Wait()
}

// runServe answers queries without ingesting.
func runServe(ctx context.Context, a *app) error {
	a.prices.StartBackground(ctx, a.cfg.PriceCache.RefreshInterval, nil)
	return serveHTTP(ctx, a, nil)
}

// runBatch scans one mint and prints the report.
func runBatch(ctx context.Context, a *app, mint string, limit int) error {
	if limit <= 0 {
		limit = a.cfg.Batch.Limit
	}

	report, err := ingestion.NewBatch(ingestion.BatchOptions{
		RPC:       a.rpc,
		Fetcher:   a.fetcher,
		Extractor: a.extractor,
		Sink:      a.sink,
		Logger:    a.log,
	}).Run(ctx, mint, limit)
	if err != nil {
		return err
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(report)
}

func serveHTTP(ctx context.Context, a *app, feedState func() string) error {
	api := apihttp.NewAPI(apihttp.Deps{
		Volumes:     a.volumes,
		Metadata:    a.metadata,
		FeedState:   feedState,
		StoragePing: a.ping,
		Logger:      a.log,
	})

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return apihttp.NewServer(a.cfg.HTTP.Addr, api).Run(gctx) })

	if addr := a.cfg.Metrics.Addr; addr != "" && addr != a.cfg.HTTP.Addr {
		g.Go(func() error { return serveMetrics(gctx, addr, a.log) })
	}
	return g.Wait()
}

func serveMetrics(ctx context.Context, addr string, log *zap.Logger) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", observability.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	log.Info("metrics server listening", zap.String("addr", addr))
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
