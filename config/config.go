package config

import (
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/mirrorlabs/copytrader/pkg/errors"
	"github.com/mirrorlabs/copytrader/pkg/policy"
)

// ChainConfig holds the RPC endpoint and stablecoin contract used by the
// balance probe.
type ChainConfig struct {
	RPCURL       string `yaml:"rpc_url"`
	USDCContract string `yaml:"usdc_contract_address"`
}

// ExchangeConfig holds the exchange surfaces the bot talks to.
type ExchangeConfig struct {
	DataAPIHost string `yaml:"data_api_host"`
	ClobHost    string `yaml:"clob_host"`
	ClobAPIKey  string `yaml:"clob_api_key"`
}

// MongoConfig locates the activity store.
type MongoConfig struct {
	URI      string `yaml:"uri"`
	Database string `yaml:"database"`
}

// CopyConfig is the raw copy-strategy configuration; Strategy() turns it
// into a policy.Config.
type CopyConfig struct {
	Strategy           string  `yaml:"strategy"`
	CopySize           float64 `yaml:"copy_size"`
	MaxOrderSizeUSD    float64 `yaml:"max_order_size_usd"`
	MinOrderSizeUSD    float64 `yaml:"min_order_size_usd"`
	MaxPositionSizeUSD float64 `yaml:"max_position_size_usd"`
	AdaptiveMinPercent float64 `yaml:"adaptive_min_percent"`
	AdaptiveMaxPercent float64 `yaml:"adaptive_max_percent"`
	AdaptiveThreshold  float64 `yaml:"adaptive_threshold"`
	TradeMultiplier    float64 `yaml:"trade_multiplier"`
	TieredMultipliers  string  `yaml:"tiered_multipliers"`
}

// TraderConfig controls the polling loop and pipeline behavior.
type TraderConfig struct {
	Leaders                  []string `yaml:"leaders"`
	FollowerAddress          string   `yaml:"follower_address"`
	PollIntervalSeconds      int      `yaml:"poll_interval_seconds"`
	Workers                  int      `yaml:"workers"`
	NetworkRetryLimit        int      `yaml:"network_retry_limit"`
	RequestTimeoutMS         int      `yaml:"request_timeout_ms"`
	AggregationWindowSeconds int      `yaml:"trade_aggregation_window_seconds"`
	MaxTradeAgeSeconds       int      `yaml:"max_trade_age_seconds"`
}

// LoggerConfig represents logger configuration
type LoggerConfig struct {
	Development bool `yaml:"development"`
}

// Config represents the main configuration structure
type Config struct {
	Chain    ChainConfig    `yaml:"chain"`
	Exchange ExchangeConfig `yaml:"exchange"`
	Mongo    MongoConfig    `yaml:"mongo"`
	Copy     CopyConfig     `yaml:"copy"`
	Trader   TraderConfig   `yaml:"trader"`
	Logger   LoggerConfig   `yaml:"logger"`
}

// LoadConfig loads configuration from a YAML file and environment variables
func LoadConfig(path string) (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	var cfg Config
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, errors.NewConfigurationError("config", "LoadConfig", "failed to read config file", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, errors.NewConfigurationError("config", "LoadConfig", "failed to parse config file", err)
		}
	}

	applyEnvOverrides(&cfg)
	applyDefaults(&cfg)

	if err := validateConfig(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Strategy converts the raw copy section into a policy configuration.
func (c *Config) Strategy() (policy.Config, error) {
	tiers, err := policy.ParseTieredMultipliers(c.Copy.TieredMultipliers)
	if err != nil {
		return policy.Config{}, errors.NewConfigurationError("config", "Strategy", "invalid tiered multipliers", err)
	}

	cfg := policy.Config{
		Strategy:           policy.Strategy(strings.ToUpper(c.Copy.Strategy)),
		CopySize:           c.Copy.CopySize,
		MaxOrderSizeUSD:    c.Copy.MaxOrderSizeUSD,
		MinOrderSizeUSD:    c.Copy.MinOrderSizeUSD,
		MaxPositionSizeUSD: c.Copy.MaxPositionSizeUSD,
		AdaptiveMinPercent: c.Copy.AdaptiveMinPercent,
		AdaptiveMaxPercent: c.Copy.AdaptiveMaxPercent,
		AdaptiveThreshold:  c.Copy.AdaptiveThreshold,
		TradeMultiplier:    c.Copy.TradeMultiplier,
		TieredMultipliers:  tiers,
	}

	if problems := policy.ValidateConfig(cfg); len(problems) > 0 {
		return policy.Config{}, errors.NewConfigurationError("config", "Strategy",
			"invalid copy strategy: "+strings.Join(problems, "; "), nil)
	}
	return cfg, nil
}

// validateConfig validates the configuration
func validateConfig(cfg *Config) error {
	if strings.TrimSpace(cfg.Chain.RPCURL) == "" {
		return errors.NewConfigurationError("config", "validateConfig", "RPC_URL is required", nil)
	}
	if strings.TrimSpace(cfg.Chain.USDCContract) == "" {
		return errors.NewConfigurationError("config", "validateConfig", "USDC_CONTRACT_ADDRESS is required", nil)
	}
	if strings.TrimSpace(cfg.Exchange.DataAPIHost) == "" {
		return errors.NewConfigurationError("config", "validateConfig", "data API host is required", nil)
	}
	if strings.TrimSpace(cfg.Trader.FollowerAddress) == "" {
		return errors.NewConfigurationError("config", "validateConfig", "follower address is required", nil)
	}
	if len(cfg.Trader.Leaders) == 0 {
		return errors.NewConfigurationError("config", "validateConfig", "at least one leader is required", nil)
	}
	if cfg.Trader.NetworkRetryLimit < 1 {
		return errors.NewConfigurationError("config", "validateConfig", "NETWORK_RETRY_LIMIT must be >= 1", nil)
	}
	if cfg.Trader.RequestTimeoutMS <= 0 {
		return errors.NewConfigurationError("config", "validateConfig", "REQUEST_TIMEOUT_MS must be positive", nil)
	}
	if cfg.Trader.AggregationWindowSeconds < 0 {
		return errors.NewConfigurationError("config", "validateConfig", "TRADE_AGGREGATION_WINDOW_SECONDS cannot be negative", nil)
	}
	if _, err := cfg.Strategy(); err != nil {
		return err
	}
	return nil
}

func applyDefaults(cfg *Config) {
	if cfg.Trader.NetworkRetryLimit == 0 {
		cfg.Trader.NetworkRetryLimit = 3
	}
	if cfg.Trader.RequestTimeoutMS == 0 {
		cfg.Trader.RequestTimeoutMS = 10000
	}
	if cfg.Trader.PollIntervalSeconds == 0 {
		cfg.Trader.PollIntervalSeconds = 10
	}
	if cfg.Trader.MaxTradeAgeSeconds == 0 {
		cfg.Trader.MaxTradeAgeSeconds = 300
	}
	if cfg.Mongo.Database == "" {
		cfg.Mongo.Database = "copytrader"
	}
	if cfg.Copy.Strategy == "" {
		cfg.Copy.Strategy = string(policy.StrategyPercentage)
	}
}

// applyEnvOverrides applies environment variable overrides to configuration
func applyEnvOverrides(cfg *Config) {
	if rpcURL := os.Getenv("RPC_URL"); rpcURL != "" {
		cfg.Chain.RPCURL = rpcURL
	}
	if usdc := os.Getenv("USDC_CONTRACT_ADDRESS"); usdc != "" {
		cfg.Chain.USDCContract = usdc
	}

	if dataHost := os.Getenv("DATA_API_HOST"); dataHost != "" {
		cfg.Exchange.DataAPIHost = dataHost
	}
	if clobHost := os.Getenv("CLOB_HOST"); clobHost != "" {
		cfg.Exchange.ClobHost = clobHost
	}
	if clobKey := os.Getenv("CLOB_API_KEY"); clobKey != "" {
		cfg.Exchange.ClobAPIKey = clobKey
	}

	if mongoURI := os.Getenv("MONGODB_URI"); mongoURI != "" {
		cfg.Mongo.URI = mongoURI
	}
	if mongoDB := os.Getenv("MONGODB_DATABASE"); mongoDB != "" {
		cfg.Mongo.Database = mongoDB
	}

	if follower := os.Getenv("FOLLOWER_ADDRESS"); follower != "" {
		cfg.Trader.FollowerAddress = follower
	}
	if leaders := os.Getenv("LEADER_ADDRESSES"); leaders != "" {
		cfg.Trader.Leaders = splitAndTrim(leaders)
	}
	if retryLimit := os.Getenv("NETWORK_RETRY_LIMIT"); retryLimit != "" {
		if parsed, err := strconv.Atoi(retryLimit); err == nil {
			cfg.Trader.NetworkRetryLimit = parsed
		}
	}
	if timeoutMS := os.Getenv("REQUEST_TIMEOUT_MS"); timeoutMS != "" {
		if parsed, err := strconv.Atoi(timeoutMS); err == nil {
			cfg.Trader.RequestTimeoutMS = parsed
		}
	}
	if window := os.Getenv("TRADE_AGGREGATION_WINDOW_SECONDS"); window != "" {
		if parsed, err := strconv.Atoi(window); err == nil {
			cfg.Trader.AggregationWindowSeconds = parsed
		}
	}
	if maxAge := os.Getenv("MAX_TRADE_AGE_SECONDS"); maxAge != "" {
		if parsed, err := strconv.Atoi(maxAge); err == nil {
			cfg.Trader.MaxTradeAgeSeconds = parsed
		}
	}

	if strategy := os.Getenv("COPY_STRATEGY"); strategy != "" {
		cfg.Copy.Strategy = strategy
	}
	if copySize := os.Getenv("COPY_SIZE"); copySize != "" {
		if parsed, err := strconv.ParseFloat(copySize, 64); err == nil {
			cfg.Copy.CopySize = parsed
		}
	}
	if maxOrder := os.Getenv("MAX_ORDER_SIZE_USD"); maxOrder != "" {
		if parsed, err := strconv.ParseFloat(maxOrder, 64); err == nil {
			cfg.Copy.MaxOrderSizeUSD = parsed
		}
	}
	if minOrder := os.Getenv("MIN_ORDER_SIZE_USD"); minOrder != "" {
		if parsed, err := strconv.ParseFloat(minOrder, 64); err == nil {
			cfg.Copy.MinOrderSizeUSD = parsed
		}
	}
	if maxPosition := os.Getenv("MAX_POSITION_SIZE_USD"); maxPosition != "" {
		if parsed, err := strconv.ParseFloat(maxPosition, 64); err == nil {
			cfg.Copy.MaxPositionSizeUSD = parsed
		}
	}
	if adaptiveMin := os.Getenv("ADAPTIVE_MIN_PERCENT"); adaptiveMin != "" {
		if parsed, err := strconv.ParseFloat(adaptiveMin, 64); err == nil {
			cfg.Copy.AdaptiveMinPercent = parsed
		}
	}
	if adaptiveMax := os.Getenv("ADAPTIVE_MAX_PERCENT"); adaptiveMax != "" {
		if parsed, err := strconv.ParseFloat(adaptiveMax, 64); err == nil {
			cfg.Copy.AdaptiveMaxPercent = parsed
		}
	}
	if threshold := os.Getenv("ADAPTIVE_THRESHOLD"); threshold != "" {
		if parsed, err := strconv.ParseFloat(threshold, 64); err == nil {
			cfg.Copy.AdaptiveThreshold = parsed
		}
	}
	if multiplier := os.Getenv("TRADE_MULTIPLIER"); multiplier != "" {
		if parsed, err := strconv.ParseFloat(multiplier, 64); err == nil {
			cfg.Copy.TradeMultiplier = parsed
		}
	}
	if tiers := os.Getenv("TIERED_MULTIPLIERS"); tiers != "" {
		cfg.Copy.TieredMultipliers = tiers
	}

	if loggerDebug := os.Getenv("LOGGER_DEBUG"); loggerDebug != "" {
		if parsed, err := strconv.ParseBool(loggerDebug); err == nil {
			cfg.Logger.Development = parsed
		}
	}
}

func splitAndTrim(value string) []string {
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
