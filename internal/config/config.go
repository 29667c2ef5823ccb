// Package config loads indexer configuration from a YAML file and the
// environment.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"

	"pumpswap-indexer/internal/domain"
	"pumpswap-indexer/internal/extractor"
)

// EnvPrefix prefixes every environment override, e.g. PUMPSWAP_RPC_ENDPOINT.
const EnvPrefix = "PUMPSWAP"

// Unprefixed overrides kept for compatibility with existing deployments.
const (
	EnvStablecoinMints   = "STABLECOIN_MINTS"
	EnvPythPriceAccounts = "PYTH_PRICE_ACCOUNTS"
)

// Storage backends.
const (
	BackendMemory     = "memory"
	BackendPostgres   = "postgres"
	BackendClickHouse = "clickhouse"
)

type Config struct {
	RPC         RPCConfig        `mapstructure:"rpc"`
	Venue       VenueConfig      `mapstructure:"venue"`
	Stablecoins []string         `mapstructure:"stablecoins"`
	Pyth        PythConfig       `mapstructure:"pyth"`
	PriceCache  PriceCacheConfig `mapstructure:"price_cache"`
	Storage     StorageConfig    `mapstructure:"storage"`
	Redis       RedisConfig      `mapstructure:"redis"`
	NATS        NATSConfig       `mapstructure:"nats"`
	Dedupe      DedupeConfig     `mapstructure:"dedupe"`
	HTTP        HTTPConfig       `mapstructure:"http"`
	Metrics     MetricsConfig    `mapstructure:"metrics"`
	Logging     LoggingConfig    `mapstructure:"logging"`
	Batch       BatchConfig      `mapstructure:"batch"`

	// Warnings lists overrides that were ignored while loading. They are
	// reported once a logger exists.
	Warnings []string `mapstructure:"-"`
}

type RPCConfig struct {
	Endpoint   string        `mapstructure:"endpoint"`
	WSEndpoint string        `mapstructure:"ws_endpoint"`
	MaxRetries int           `mapstructure:"max_retries"`
	RetryDelay time.Duration `mapstructure:"retry_delay"`
	Timeout    time.Duration `mapstructure:"timeout"`
	Commitment string        `mapstructure:"commitment"`
}

type VenueConfig struct {
	ProgramIDs []string `mapstructure:"program_ids"`
}

// PriceAccount maps a mint to its oracle price account. A list is used
// instead of a map because viper folds map keys to lower case.
type PriceAccount struct {
	Mint    string `mapstructure:"mint"`
	Account string `mapstructure:"account"`
}

type PythConfig struct {
	PriceAccounts []PriceAccount `mapstructure:"price_accounts"`
}

type PriceCacheConfig struct {
	TTL             time.Duration `mapstructure:"ttl"`
	RefreshInterval time.Duration `mapstructure:"refresh_interval"` // 0 means TTL
}

type StorageConfig struct {
	Backend       string `mapstructure:"backend"` // memory|postgres|clickhouse
	PostgresDSN   string `mapstructure:"postgres_dsn"`
	ClickHouseDSN string `mapstructure:"clickhouse_dsn"`

	PostgresMaxConns int32         `mapstructure:"postgres_max_conns"`
	StatementTimeout time.Duration `mapstructure:"statement_timeout"`
}

type RedisConfig struct {
	Addr     string `mapstructure:"addr"` // empty disables the shared price tier and dedupe
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	Prefix   string `mapstructure:"prefix"`
}

type NATSConfig struct {
	URL           string `mapstructure:"url"` // empty disables publishing
	SubjectPrefix string `mapstructure:"subject_prefix"`
}

type DedupeConfig struct {
	TTL time.Duration `mapstructure:"ttl"`
}

type HTTPConfig struct {
	Addr string `mapstructure:"addr"`
}

type MetricsConfig struct {
	Addr string `mapstructure:"addr"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`  // debug|info|warn|error
	Format string `mapstructure:"format"` // json|console
}

type BatchConfig struct {
	Limit int `mapstructure:"limit"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("rpc.endpoint", "https://api.mainnet-beta.solana.com")
	v.SetDefault("rpc.ws_endpoint", "wss://api.mainnet-beta.solana.com/")
	v.SetDefault("rpc.max_retries", 6)
	v.SetDefault("rpc.retry_delay", 500*time.Millisecond)
	v.SetDefault("rpc.timeout", 30*time.Second)
	v.SetDefault("rpc.commitment", "confirmed")
	v.SetDefault("venue.program_ids", []string{extractor.PumpSwapProgramID})
	v.SetDefault("stablecoins", []string{domain.USDCMint, domain.USDTMint})
	v.SetDefault("pyth.price_accounts", []PriceAccount{})
	v.SetDefault("price_cache.ttl", 30*time.Second)
	v.SetDefault("price_cache.refresh_interval", time.Duration(0))
	v.SetDefault("storage.backend", BackendMemory)
	v.SetDefault("storage.postgres_dsn", "")
	v.SetDefault("storage.clickhouse_dsn", "")
	v.SetDefault("storage.postgres_max_conns", 8)
	v.SetDefault("storage.statement_timeout", 15*time.Second)
	v.SetDefault("redis.addr", "")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.prefix", "pumpswap:")
	v.SetDefault("nats.url", "")
	v.SetDefault("nats.subject_prefix", "pumpswap.trades")
	v.SetDefault("dedupe.ttl", 10*time.Minute)
	v.SetDefault("http.addr", ":8000")
	v.SetDefault("metrics.addr", ":9090")
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("batch.limit", 100)
}

// Load reads configuration. With an empty path it looks for config.yaml in
// the working directory and ./configs, and runs on defaults when none exists.
// Environment variables override file values.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("read config: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}

	cfg.applyEnvOverrides()
	if cfg.PriceCache.RefreshInterval <= 0 {
		cfg.PriceCache.RefreshInterval = cfg.PriceCache.TTL
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyEnvOverrides() {
	if raw := os.Getenv(EnvStablecoinMints); raw != "" {
		if mints := splitCSV(raw); len(mints) > 0 {
			c.Stablecoins = mints
		}
	}

	if raw := os.Getenv(EnvPythPriceAccounts); raw != "" {
		var m map[string]string
		if err := json.Unmarshal([]byte(raw), &m); err != nil {
			c.Warnings = append(c.Warnings, fmt.Sprintf("ignoring malformed %s: %v", EnvPythPriceAccounts, err))
			return
		}
		c.Pyth.PriceAccounts = c.Pyth.PriceAccounts[:0]
		for mint, account := range m {
			c.Pyth.PriceAccounts = append(c.Pyth.PriceAccounts, PriceAccount{Mint: mint, Account: account})
		}
	}
}

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	switch c.Storage.Backend {
	case BackendMemory:
	case BackendPostgres:
		if c.Storage.PostgresDSN == "" {
			return errors.New("storage.postgres_dsn is required for the postgres backend")
		}
	case BackendClickHouse:
		if c.Storage.ClickHouseDSN == "" {
			return errors.New("storage.clickhouse_dsn is required for the clickhouse backend")
		}
	default:
		return fmt.Errorf("unknown storage.backend %q", c.Storage.Backend)
	}
	if c.RPC.Endpoint == "" {
		return errors.New("rpc.endpoint is required")
	}
	if c.RPC.MaxRetries < 1 {
		return errors.New("rpc.max_retries must be at least 1")
	}
	if len(c.Venue.ProgramIDs) == 0 {
		return errors.New("venue.program_ids must not be empty")
	}
	if c.PriceCache.TTL <= 0 {
		return errors.New("price_cache.ttl must be positive")
	}
	return nil
}

// StableSet returns the configured stablecoin mints.
func (c *Config) StableSet() domain.StableSet {
	return domain.NewStableSet(c.Stablecoins...)
}

// OracleAccounts returns the mint to price account mapping.
func (c *Config) OracleAccounts() map[string]string {
	out := make(map[string]string, len(c.Pyth.PriceAccounts))
	for _, pa := range c.Pyth.PriceAccounts {
		if pa.Mint != "" && pa.Account != "" {
			out[pa.Mint] = pa.Account
		}
	}
	return out
}

func splitCSV(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
