package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
)

type Server struct {
	Port              string `mapstructure:"port"`
	RequestTimeoutSec int    `mapstructure:"request_timeout_sec"`
}

type Log struct {
	Level string `mapstructure:"level"`
}

// Provider holds the knobs shared by every upstream client. BaseURL is left
// empty to use each client's production endpoint; tests point it at a local
// server.
type Provider struct {
	Enabled               bool   `mapstructure:"enabled"`
	BaseURL               string `mapstructure:"base_url"`
	APIKey                string `mapstructure:"api_key"`
	TimeoutSec            int    `mapstructure:"timeout_sec"`
	MaxRequestsPerMinute  int    `mapstructure:"max_requests_per_minute"`
	Burst                 int    `mapstructure:"burst"`
	MinRequestIntervalSec int    `mapstructure:"min_request_interval_sec"`
}

// Chains gives the provider priority order per asset class. Names must match
// the provider identifiers (binance, bybit, okx, frankfurter, erapi, yahoo).
type Chains struct {
	Crypto      []string `mapstructure:"crypto"`
	Forex       []string `mapstructure:"forex"`
	Stocks      []string `mapstructure:"stocks"`
	Commodities []string `mapstructure:"commodities"`
	Indices     []string `mapstructure:"indices"`
}

type Engine struct {
	ProviderTimeoutSec int      `mapstructure:"provider_timeout_sec"`
	CacheTTLSeconds    int      `mapstructure:"cache_ttl_sec"`
	CacheMaxItems      int      `mapstructure:"cache_max_items"`
	RacePolicy         string   `mapstructure:"race_policy"`
	QuoteAsset         string   `mapstructure:"quote_asset"`
	ForexPairs         []string `mapstructure:"forex_pairs"`
	ForexLookbackDays  int      `mapstructure:"forex_lookback_days"`
}

type Config struct {
	Server Server `mapstructure:"server"`
	Log    Log    `mapstructure:"log"`
	Engine Engine `mapstructure:"engine"`
	Chains Chains `mapstructure:"chains"`

	Binance     Provider `mapstructure:"binance"`
	Bybit       Provider `mapstructure:"bybit"`
	OKX         Provider `mapstructure:"okx"`
	Frankfurter Provider `mapstructure:"frankfurter"`
	ERAPI       Provider `mapstructure:"erapi"`
	Yahoo       Provider `mapstructure:"yahoo"`
}

// Load reads YAML config from path. If path is empty it looks for config.yaml
// in the working directory; a missing file yields defaults. Environment
// variables prefixed MARKETFEED_ override any key (dots become underscores,
// e.g. MARKETFEED_BINANCE_API_KEY).
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(".")
	}
	setDefaults(v)
	v.SetEnvPrefix("MARKETFEED")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config file failed: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg, func(dc *mapstructure.DecoderConfig) {
		dc.WeaklyTypedInput = true
	}); err != nil {
		return nil, fmt.Errorf("parsing config failed: %w", err)
	}
	if err := validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.request_timeout_sec", 30)
	v.SetDefault("log.level", "info")

	v.SetDefault("engine.provider_timeout_sec", 10)
	v.SetDefault("engine.cache_ttl_sec", 60)
	v.SetDefault("engine.cache_max_items", 4096)
	v.SetDefault("engine.race_policy", "let-finish")
	v.SetDefault("engine.quote_asset", "USDT")
	v.SetDefault("engine.forex_lookback_days", 7)

	v.SetDefault("chains.crypto", []string{"binance", "bybit", "okx"})
	v.SetDefault("chains.forex", []string{"frankfurter", "erapi"})
	v.SetDefault("chains.stocks", []string{"yahoo"})
	v.SetDefault("chains.commodities", []string{"yahoo"})
	v.SetDefault("chains.indices", []string{"yahoo"})

	// every key needs a default so AutomaticEnv can bind it during Unmarshal
	for _, p := range []string{"binance", "bybit", "okx", "frankfurter", "erapi", "yahoo"} {
		v.SetDefault(p+".enabled", true)
		v.SetDefault(p+".base_url", "")
		v.SetDefault(p+".api_key", "")
		v.SetDefault(p+".timeout_sec", 10)
		v.SetDefault(p+".max_requests_per_minute", 0)
		v.SetDefault(p+".burst", 1)
		v.SetDefault(p+".min_request_interval_sec", 0)
	}
}

func validate(cfg *Config) error {
	switch cfg.Engine.RacePolicy {
	case "let-finish", "cancel-on-win":
	default:
		return fmt.Errorf("engine.race_policy must be let-finish or cancel-on-win, got %q", cfg.Engine.RacePolicy)
	}
	known := map[string]bool{
		"binance": true, "bybit": true, "okx": true,
		"frankfurter": true, "erapi": true, "yahoo": true,
	}
	for class, chain := range map[string][]string{
		"crypto":      cfg.Chains.Crypto,
		"forex":       cfg.Chains.Forex,
		"stocks":      cfg.Chains.Stocks,
		"commodities": cfg.Chains.Commodities,
		"indices":     cfg.Chains.Indices,
	} {
		for _, name := range chain {
			if !known[name] {
				return fmt.Errorf("chains.%s: unknown provider %q", class, name)
			}
		}
	}
	return nil
}

// ProviderByName returns the section for a chain entry.
func (c *Config) ProviderByName(name string) (Provider, bool) {
	switch name {
	case "binance":
		return c.Binance, true
	case "bybit":
		return c.Bybit, true
	case "okx":
		return c.OKX, true
	case "frankfurter":
		return c.Frankfurter, true
	case "erapi":
		return c.ERAPI, true
	case "yahoo":
		return c.Yahoo, true
	default:
		return Provider{}, false
	}
}
