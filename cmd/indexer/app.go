package main

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"pumpswap-indexer/internal/config"
	"pumpswap-indexer/internal/dedupe"
	"pumpswap-indexer/internal/extractor"
	"pumpswap-indexer/internal/ingestion"
	"pumpswap-indexer/internal/metadata"
	"pumpswap-indexer/internal/pricecache"
	"pumpswap-indexer/internal/pubsub"
	natspub "pumpswap-indexer/internal/pubsub/nats"
	"pumpswap-indexer/internal/solana"
	"pumpswap-indexer/internal/storage"
	chstore "pumpswap-indexer/internal/storage/clickhouse"
	"pumpswap-indexer/internal/storage/memory"
	"pumpswap-indexer/internal/storage/migrations"
	pgstore "pumpswap-indexer/internal/storage/postgres"
	rdb "pumpswap-indexer/internal/storage/redis"
	"pumpswap-indexer/internal/volume"
	"pumpswap-indexer/internal/window"
)

// app holds every long-lived component. It is built once and passed to the
// mode runners; nothing is global.
type app struct {
	cfg *config.Config
	log *zap.Logger

	rpc       *solana.HTTPClient
	fetcher   *ingestion.TransactionFetcher
	extractor *extractor.Extractor

	backend string
	trades  storage.TradeStore
	tokens  storage.TokenMetadataStore
	// ping checks the durable trade store; nil for the memory backend.
	ping func(context.Context) error

	redis     *rdb.Client
	dedupe    dedupe.Deduper
	publisher pubsub.TradePublisher

	prices   *pricecache.Cache
	index    *window.Index
	volumes  *volume.Service
	metadata *metadata.Service
	sink     *ingestion.Sink

	closers []func()
}

func newApp(ctx context.Context, cfg *config.Config, log *zap.Logger) (*app, error) {
	a := &app{cfg: cfg, log: log}

	rpcOpts := []solana.ClientOption{
		solana.WithTimeout(cfg.RPC.Timeout),
		solana.WithCommitment(cfg.RPC.Commitment),
		solana.WithLogger(log.Named("rpc")),
	}
	a.rpc = solana.NewHTTPClient(cfg.RPC.Endpoint, rpcOpts...)
	// the fetcher owns the transaction retry policy
	txRPC := solana.NewHTTPClient(cfg.RPC.Endpoint, append(rpcOpts, solana.WithMaxRetries(0))...)
	a.fetcher = ingestion.NewTransactionFetcher(txRPC, ingestion.FetcherOptions{
		Attempts:  cfg.RPC.MaxRetries,
		BaseDelay: cfg.RPC.RetryDelay,
		Logger:    log,
	})
	a.extractor = extractor.New(cfg.Venue.ProgramIDs...)

	if err := a.openStorage(ctx); err != nil {
		a.Close()
		return nil, err
	}
	if err := a.openRedis(ctx); err != nil {
		a.Close()
		return nil, err
	}
	if err := a.openPublisher(); err != nil {
		a.Close()
		return nil, err
	}

	stables := cfg.StableSet()
	oracles := cfg.OracleAccounts()

	var shared pricecache.SharedTier
	if a.redis != nil {
		tier, err := pricecache.NewRedisTier(a.redis, cfg.Redis.Prefix)
		if err != nil {
			a.Close()
			return nil, err
		}
		shared = tier
	}
	a.prices = pricecache.New(pricecache.Options{
		TTL: cfg.PriceCache.TTL,
		Source: pricecache.NewOracleSource(a.rpc, oracles,
			pricecache.WithHeuristicScan(true),
			pricecache.WithOracleLogger(log),
		),
		Accounts: a.rpc,
		Oracles:  oracles,
		Shared:   shared,
		Logger:   log,
	})
	a.closers = append(a.closers, a.prices.StopBackground)

	a.index = window.NewIndex(window.WithPrices(a.prices), window.WithStables(stables))
	a.volumes = volume.New(volume.Options{
		Index:   a.index,
		Store:   a.trades,
		Prices:  a.prices,
		Stables: stables,
		Logger:  log,
	})
	a.metadata = metadata.New(metadata.Options{
		RPC:    a.rpc,
		Prices: a.prices,
		Store:  a.tokens,
		Logger: log,
	})
	a.sink = ingestion.NewSink(ingestion.SinkOptions{
		Store:     a.trades,
		Backend:   a.backend,
		Index:     a.index,
		Publisher: a.publisher,
		Logger:    log,
	})

	return a, nil
}

func (a *app) openStorage(ctx context.Context) error {
	a.backend = a.cfg.Storage.Backend

	switch a.backend {
	case config.BackendMemory:
		a.trades = memory.NewTradeStore()
		a.tokens = memory.NewTokenMetadataStore()

	case config.BackendPostgres:
		pool, err := a.openPostgres(ctx)
		if err != nil {
			return err
		}
		a.trades = pgstore.NewTradeStore(pool)
		a.ping = pool.Ping
		a.tokens = pgstore.NewTokenMetadataStore(pool)

	case config.BackendClickHouse:
		conn, err := migrations.RunClickhouseMigrations(ctx, a.cfg.Storage.ClickHouseDSN, a.cfg.Storage.StatementTimeout, a.log)
		if err != nil {
			return fmt.Errorf("clickhouse: %w", err)
		}
		a.closers = append(a.closers, func() { _ = conn.Close() })
		a.trades = chstore.NewTradeStore(conn)
		a.ping = conn.Ping

		// token metadata lives in postgres when it is configured alongside
		if a.cfg.Storage.PostgresDSN != "" {
			pool, err := a.openPostgres(ctx)
			if err != nil {
				return err
			}
			a.tokens = pgstore.NewTokenMetadataStore(pool)
		} else {
			a.tokens = memory.NewTokenMetadataStore()
		}

	default:
		return fmt.Errorf("unknown storage backend %q", a.backend)
	}

	a.log.Info("storage ready", zap.String("backend", a.backend))
	return nil
}

func (a *app) openPostgres(ctx context.Context) (*pgstore.Pool, error) {
	pool, err := pgstore.NewPool(ctx, a.cfg.Storage.PostgresDSN,
		pgstore.WithMaxConns(a.cfg.Storage.PostgresMaxConns),
		pgstore.WithStatementTimeout(a.cfg.Storage.StatementTimeout),
	)
	if err != nil {
		return nil, fmt.Errorf("postgres: %w", err)
	}
	a.closers = append(a.closers, pool.Close)
	if err := migrations.RunPostgresMigrations(ctx, pool, a.log); err != nil {
		return nil, fmt.Errorf("postgres migrations: %w", err)
	}
	return pool, nil
}

func (a *app) openRedis(ctx context.Context) error {
	if a.cfg.Redis.Addr == "" {
		md := dedupe.NewMemoryDeduper(a.cfg.Dedupe.TTL, time.Minute)
		a.closers = append(a.closers, md.Close)
		a.dedupe = md
		return nil
	}

	client, err := rdb.New(ctx, rdb.Options{
		Addr:     a.cfg.Redis.Addr,
		Password: a.cfg.Redis.Password,
		DB:       a.cfg.Redis.DB,
	})
	if err != nil {
		return fmt.Errorf("redis: %w", err)
	}
	a.closers = append(a.closers, func() { _ = client.Close() })
	a.redis = client

	rd, err := dedupe.NewRedisDeduper(client, a.cfg.Redis.Prefix, a.cfg.Dedupe.TTL)
	if err != nil {
		return err
	}
	a.dedupe = rd
	a.log.Info("redis ready", zap.String("addr", a.cfg.Redis.Addr))
	return nil
}

func (a *app) openPublisher() error {
	if a.cfg.NATS.URL == "" {
		return nil
	}
	pub, err := natspub.Connect(natspub.Config{
		URL:           a.cfg.NATS.URL,
		SubjectPrefix: a.cfg.NATS.SubjectPrefix,
	}, a.log)
	if err != nil {
		return fmt.Errorf("nats: %w", err)
	}
	a.closers = append(a.closers, func() { _ = pub.Close() })
	a.publisher = pub
	return nil
}

// Close releases resources in reverse order of acquisition.
func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}
