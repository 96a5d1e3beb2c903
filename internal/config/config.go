// Package config provides configuration loading and validation.
package config

import (
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/viper"
)

// MaxFee is the fee denominator: fees are parts-per-100000 of the amount kept.
const MaxFee = 100000

// Config holds all application configuration.
type Config struct {
	App       AppConfig       `mapstructure:"app"`
	Ethereum  EthereumConfig  `mapstructure:"ethereum"`
	Account   AccountConfig   `mapstructure:"account"`
	Exchange  ExchangeConfig  `mapstructure:"exchange"`
	Tokens    []TokenConfig   `mapstructure:"tokens"`
	Markets   []MarketConfig  `mapstructure:"markets"`
	Router    RouterConfig    `mapstructure:"router"`
	Subgraph  SubgraphConfig  `mapstructure:"subgraph"`
	Store     StoreConfig     `mapstructure:"store"`
	Feed      FeedConfig      `mapstructure:"feed"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
	Health    HealthConfig    `mapstructure:"health"`
	UI        UIConfig        `mapstructure:"-"` // runtime only
}

type AppConfig struct {
	Name        string `mapstructure:"name"`
	Environment string `mapstructure:"environment"`
	LogLevel    string `mapstructure:"log_level"`
}

// EthereumConfig holds node endpoints and log polling limits.
type EthereumConfig struct {
	WebSocketURL      string        `mapstructure:"websocket_url"`
	HTTPURL           string        `mapstructure:"http_url"`
	ChainID           uint64        `mapstructure:"chain_id"`
	PollInterval      time.Duration `mapstructure:"poll_interval"`
	ReconnectDelay    time.Duration `mapstructure:"reconnect_delay"`
	StartBlock        uint64        `mapstructure:"start_block"`
	MaxBlockRange     uint64        `mapstructure:"max_block_range"`
	RequestsPerMinute int           `mapstructure:"requests_per_minute"`
}

// AccountConfig identifies the connected wallet. Empty means observe-only.
type AccountConfig struct {
	Address string `mapstructure:"address"`
}

// ExchangeConfig holds the event topics emitted by the exchange contracts.
type ExchangeConfig struct {
	OrderTopic  string `mapstructure:"order_topic"`
	TradeTopic  string `mapstructure:"trade_topic"`
	DedupWindow int    `mapstructure:"dedup_window"`
}

// TokenConfig is one row of the token table.
type TokenConfig struct {
	Address  string `mapstructure:"address"`
	Ticker   string `mapstructure:"ticker"`
	Name     string `mapstructure:"name"`
	Decimals uint8  `mapstructure:"decimals"`
	ImageRef string `mapstructure:"image_ref"`
}

// MarketConfig is one row of the market table. Large integers are strings.
type MarketConfig struct {
	Base        string `mapstructure:"base"`
	Quote       string `mapstructure:"quote"`
	Contract    string `mapstructure:"contract"`
	ScaleFactor string `mapstructure:"scale_factor"`
	PriceFactor string `mapstructure:"price_factor"`
	Fee         uint64 `mapstructure:"fee"`
	MinSize     string `mapstructure:"min_size"`
	MaxPrice    string `mapstructure:"max_price"`
	TickSize    string `mapstructure:"tick_size"`
}

// Key returns the ticker-pair key, e.g. "ETH/USDC".
func (m MarketConfig) Key() string {
	return strings.ToUpper(m.Base) + "/" + strings.ToUpper(m.Quote)
}

// RouterConfig names the tickers used for the native/wrapped pseudo-market.
type RouterConfig struct {
	NativeTicker  string `mapstructure:"native_ticker"`
	WrappedTicker string `mapstructure:"wrapped_ticker"`
	StableTicker  string `mapstructure:"stable_ticker"`
}

type SubgraphConfig struct {
	Enabled           bool          `mapstructure:"enabled"`
	URL               string        `mapstructure:"url"`
	PageSize          int           `mapstructure:"page_size"`
	Timeout           time.Duration `mapstructure:"timeout"`
	RequestsPerMinute int           `mapstructure:"requests_per_minute"`
}

type StoreConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Driver  string `mapstructure:"driver"` // sqlite | postgres
	DSN     string `mapstructure:"dsn"`
}

type FeedConfig struct {
	Enabled bool `mapstructure:"enabled"`
	Port    int  `mapstructure:"port"`
}

type TelemetryConfig struct {
	Enabled        bool   `mapstructure:"enabled"`
	ServiceName    string `mapstructure:"service_name"`
	Provider       string `mapstructure:"provider"` // zipkin | otlp-grpc | otlp-http | console
	OTLPEndpoint   string `mapstructure:"otlp_endpoint"`
	OTLPHeaders    string `mapstructure:"otlp_headers"`
	PrometheusPort int    `mapstructure:"prometheus_port"`
}

type HealthConfig struct {
	Port       int           `mapstructure:"port"`
	MaxSyncLag time.Duration `mapstructure:"max_sync_lag"`
}

// UIConfig is set from flags at runtime.
type UIConfig struct {
	TUIMode bool
}

// Load loads configuration from file and environment variables.
func Load(configPath string) (*Config, error) {
	v := viper.New()

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}

	v.SetEnvPrefix("DEX")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	bindEnvVars(v)
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &cfg, nil
}

func bindEnvVars(v *viper.Viper) {
	_ = v.BindEnv("app.name", "DEX_APP_NAME", "SERVICE_NAME")
	_ = v.BindEnv("app.environment", "DEX_ENVIRONMENT", "ENVIRONMENT")
	_ = v.BindEnv("app.log_level", "DEX_LOG_LEVEL", "LOG_LEVEL")

	_ = v.BindEnv("ethereum.websocket_url", "DEX_ETH_WS_URL", "ETH_WS_URL")
	_ = v.BindEnv("ethereum.http_url", "DEX_ETH_HTTP_URL", "ETH_HTTP_URL")
	_ = v.BindEnv("ethereum.chain_id", "DEX_ETH_CHAIN_ID", "ETH_CHAIN_ID")
	_ = v.BindEnv("ethereum.start_block", "DEX_START_BLOCK")

	_ = v.BindEnv("account.address", "DEX_ACCOUNT_ADDRESS", "WALLET_ADDRESS")
	_ = v.BindEnv("exchange.order_topic", "DEX_ORDER_TOPIC")
	_ = v.BindEnv("exchange.trade_topic", "DEX_TRADE_TOPIC")

	_ = v.BindEnv("subgraph.url", "DEX_SUBGRAPH_URL")
	_ = v.BindEnv("store.dsn", "DEX_STORE_DSN", "DATABASE_URL")

	_ = v.BindEnv("telemetry.enabled", "DEX_OTEL_ENABLED", "OTEL_ENABLED")
	_ = v.BindEnv("telemetry.service_name", "DEX_OTEL_SERVICE_NAME", "OTEL_SERVICE_NAME")
	_ = v.BindEnv("telemetry.otlp_endpoint", "DEX_OTEL_ENDPOINT", "OTEL_EXPORTER_OTLP_ENDPOINT")
	_ = v.BindEnv("telemetry.otlp_headers", "DEX_OTEL_HEADERS", "OTEL_EXPORTER_OTLP_HEADERS")
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "dex-trader")
	v.SetDefault("app.environment", "development")
	v.SetDefault("app.log_level", "info")

	v.SetDefault("ethereum.chain_id", 1)
	v.SetDefault("ethereum.poll_interval", "12s")
	v.SetDefault("ethereum.reconnect_delay", "5s")
	v.SetDefault("ethereum.max_block_range", 2000)
	v.SetDefault("ethereum.requests_per_minute", 300)

	v.SetDefault("exchange.dedup_window", 1000)

	v.SetDefault("router.native_ticker", "ETH")
	v.SetDefault("router.wrapped_ticker", "WETH")
	v.SetDefault("router.stable_ticker", "USDC")

	v.SetDefault("subgraph.enabled", false)
	v.SetDefault("subgraph.page_size", 100)
	v.SetDefault("subgraph.timeout", "10s")
	v.SetDefault("subgraph.requests_per_minute", 60)

	v.SetDefault("store.enabled", false)
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.dsn", "file:dex-trader.db?cache=shared")

	v.SetDefault("feed.enabled", false)
	v.SetDefault("feed.port", 8090)

	v.SetDefault("telemetry.enabled", false)
	v.SetDefault("telemetry.service_name", "dex-trader")
	v.SetDefault("telemetry.provider", "zipkin")
	v.SetDefault("telemetry.prometheus_port", 9090)

	v.SetDefault("health.port", 8081)
	v.SetDefault("health.max_sync_lag", "2m")
}

// Validate checks required fields and the token/market tables.
func (c *Config) Validate() error {
	if c.Ethereum.HTTPURL == "" {
		return errors.New("ethereum.http_url is required")
	}
	if c.Ethereum.MaxBlockRange == 0 {
		return errors.New("ethereum.max_block_range must be positive")
	}
	if c.Account.Address != "" && !common.IsHexAddress(c.Account.Address) {
		return fmt.Errorf("invalid account.address: %s", c.Account.Address)
	}
	if !isTopic(c.Exchange.OrderTopic) {
		return fmt.Errorf("invalid exchange.order_topic: %s", c.Exchange.OrderTopic)
	}
	if !isTopic(c.Exchange.TradeTopic) {
		return fmt.Errorf("invalid exchange.trade_topic: %s", c.Exchange.TradeTopic)
	}

	tickers := make(map[string]bool, len(c.Tokens))
	for i, t := range c.Tokens {
		if t.Ticker == "" {
			return fmt.Errorf("tokens[%d]: ticker is required", i)
		}
		if !common.IsHexAddress(t.Address) {
			return fmt.Errorf("tokens[%d] %s: invalid address %q", i, t.Ticker, t.Address)
		}
		tickers[strings.ToUpper(t.Ticker)] = true
	}

	seen := make(map[string]bool, len(c.Markets))
	for i, m := range c.Markets {
		if err := m.validate(tickers); err != nil {
			return fmt.Errorf("markets[%d] %s: %w", i, m.Key(), err)
		}
		if seen[m.Key()] {
			return fmt.Errorf("markets[%d]: duplicate market %s", i, m.Key())
		}
		seen[m.Key()] = true
	}

	if c.Subgraph.Enabled && c.Subgraph.URL == "" {
		return errors.New("subgraph.url is required when subgraph is enabled")
	}
	if c.Store.Enabled && c.Store.Driver != "sqlite" && c.Store.Driver != "postgres" {
		return fmt.Errorf("unsupported store.driver: %s", c.Store.Driver)
	}
	return nil
}

func (m MarketConfig) validate(tickers map[string]bool) error {
	if !tickers[strings.ToUpper(m.Base)] {
		return fmt.Errorf("unknown base token %q", m.Base)
	}
	if !tickers[strings.ToUpper(m.Quote)] {
		return fmt.Errorf("unknown quote token %q", m.Quote)
	}
	if !common.IsHexAddress(m.Contract) {
		return fmt.Errorf("invalid contract %q", m.Contract)
	}
	if m.Fee > MaxFee {
		return fmt.Errorf("fee %d exceeds %d", m.Fee, MaxFee)
	}
	for name, s := range map[string]string{"scale_factor": m.ScaleFactor, "price_factor": m.PriceFactor} {
		n, ok := ParseBig(s)
		if !ok || n.Sign() <= 0 {
			return fmt.Errorf("%s must be a positive integer, got %q", name, s)
		}
	}
	for name, s := range map[string]string{"min_size": m.MinSize, "max_price": m.MaxPrice, "tick_size": m.TickSize} {
		if s == "" {
			continue
		}
		if n, ok := ParseBig(s); !ok || n.Sign() < 0 {
			return fmt.Errorf("%s must be a non-negative integer, got %q", name, s)
		}
	}
	return nil
}

// ParseBig parses a base-10 (or 0x-prefixed hex) integer. Empty parses as zero.
func ParseBig(s string) (*big.Int, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return new(big.Int), true
	}
	return new(big.Int).SetString(s, 0)
}

func isTopic(s string) bool {
	s = strings.TrimPrefix(s, "0x")
	if len(s) != 64 {
		return false
	}
	for _, c := range s {
		if !strings.ContainsRune("0123456789abcdefABCDEF", c) {
			return false
		}
	}
	return true
}
