// Package config loads the autotrade configuration from a YAML file, a .env file and
// the process environment. Environment values win over the file.
package config

import (
	"bytes"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/rxtech-lab/argo-autotrade/internal/health"
	"github.com/rxtech-lab/argo-autotrade/internal/kis"
	"github.com/rxtech-lab/argo-autotrade/internal/trading/engine"
	tradingprovider "github.com/rxtech-lab/argo-autotrade/internal/trading/provider"
	"github.com/rxtech-lab/argo-autotrade/internal/types"
	"github.com/rxtech-lab/argo-autotrade/internal/version"
	"github.com/rxtech-lab/argo-autotrade/internal/watchlist"
	"github.com/rxtech-lab/argo-autotrade/pkg/errors"
	"github.com/rxtech-lab/argo-autotrade/pkg/marketdata/provider"
	"github.com/rxtech-lab/argo-autotrade/pkg/utils"
	"gopkg.in/yaml.v3"
)

// Environment variable names.
const (
	EnvAppKey             = "APP_KEY"
	EnvAppSecret          = "APP_SECRET"
	EnvAccountNumber      = "CANO"
	EnvAccountProduct     = "ACNT_PRDT_CD"
	EnvDiscordWebhookURL  = "DISCORD_WEBHOOK_URL"
	EnvBaseURL            = "URL_BASE"
	EnvPort               = "PORT"
	EnvPolygonAPIKey      = "POLYGON_API_KEY"
	EnvLogLevel           = "LOG_LEVEL"
	EnvTradingProvider    = "TRADING_PROVIDER"
	EnvMarketDataProvider = "MARKET_DATA_PROVIDER"
	EnvOutputDir          = "OUTPUT_DIR"
)

// DefaultWatchList is the NASDAQ list the bot trades when none is configured.
var DefaultWatchList = []string{"PLTR", "AVGO", "LRCX", "NVDA", "AAPL", "MU", "LYFT", "MSFT"}

// HealthConfig configures the health-check HTTP server.
type HealthConfig struct {
	// Port of the health server. Zero disables it.
	Port int `yaml:"port" json:"port" jsonschema:"title=Port,description=Health server port (0 disables),default=8080" validate:"gte=0,lte=65535"`
	// StaleAfter marks /health unhealthy when no tick happened for this long. Zero disables the check.
	StaleAfter time.Duration `yaml:"stale_after" json:"stale_after" jsonschema:"title=Stale After,description=Heartbeat age after which /health fails" validate:"gte=0"`
}

// Config is the full process configuration.
type Config struct {
	Version            string                      `yaml:"version" json:"version" jsonschema:"title=Version,description=Configuration format version"`
	LogLevel           string                      `yaml:"log_level" json:"log_level" jsonschema:"title=Log Level,enum=debug,enum=info,enum=warn,enum=error,default=info" validate:"oneof=debug info warn error"`
	TradingProvider    string                      `yaml:"trading_provider" json:"trading_provider" jsonschema:"title=Trading Provider,enum=kis-live,enum=kis-paper,enum=paper,default=kis-live" validate:"required,oneof=kis-live kis-paper paper"`
	MarketDataProvider string                      `yaml:"market_data_provider" json:"market_data_provider" jsonschema:"title=Market Data Provider,enum=kis,enum=polygon,default=kis" validate:"required,oneof=kis polygon"`
	KIS                kis.Config                  `yaml:"kis" json:"kis" jsonschema:"title=KIS,description=Open API credentials and account"`
	Paper              tradingprovider.PaperConfig `yaml:"paper" json:"paper" jsonschema:"title=Paper,description=Local paper executor"`
	PolygonAPIKey      string                      `yaml:"polygon_api_key" json:"polygon_api_key" jsonschema:"title=Polygon API Key"`
	DiscordWebhookURL  string                      `yaml:"discord_webhook_url" json:"discord_webhook_url" jsonschema:"title=Discord Webhook URL" validate:"omitempty,url"`
	OutputDir          string                      `yaml:"output_dir" json:"output_dir" jsonschema:"title=Output Directory,description=Where per-run stats are written (empty disables)"`
	Health             HealthConfig                `yaml:"health" json:"health" jsonschema:"title=Health"`
	Session            engine.SessionEngineConfig  `yaml:"session" json:"session" jsonschema:"title=Session"`
}

// Default returns a configuration with every default filled in and no credentials.
func Default() Config {
	session := engine.DefaultSessionEngineConfig()

	session.WatchList = make([]watchlist.Entry, 0, len(DefaultWatchList))
	for _, code := range DefaultWatchList {
		session.WatchList = append(session.WatchList, watchlist.Entry{Code: code, Segment: string(types.SegmentNASDAQ)})
	}

	return Config{
		Version:            version.ConfigVersion,
		LogLevel:           "info",
		TradingProvider:    string(tradingprovider.ProviderKISLive),
		MarketDataProvider: string(provider.ProviderKIS),
		KIS: kis.Config{
			BaseURL:        "",
			AppKey:         "",
			AppSecret:      "",
			AccountNumber:  "",
			AccountProduct: "01",
			Timeout:        30 * time.Second,
			RetryCount:     3,
			Paper:          false,
		},
		Paper:             tradingprovider.PaperConfig{InitialCashUSD: 10000},
		PolygonAPIKey:     "",
		DiscordWebhookURL: "",
		OutputDir:         "",
		Health: HealthConfig{
			Port:       health.DefaultPort,
			StaleAfter: 2 * time.Minute,
		},
		Session: session,
	}
}

// Load reads the YAML file at path (skipped when path is empty or missing), then the
// .env files (missing files are ignored), then applies the environment and validates.
func Load(path string, envFiles ...string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)

		switch {
		case err == nil:
			if err := Decode(data, &cfg); err != nil {
				return nil, err
			}
		case os.IsNotExist(err):
		default:
			return nil, errors.Wrapf(errors.ErrCodeInvalidConfiguration, err, "failed to read config file %s", path)
		}
	}

	if err := loadEnvFiles(envFiles); err != nil {
		return nil, err
	}

	if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Decode strictly decodes YAML over cfg. Unknown keys are an error.
func Decode(data []byte, cfg *Config) error {
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)

	if err := decoder.Decode(cfg); err != nil {
		return errors.Wrap(errors.ErrCodeInvalidConfiguration, "failed to parse config file", err)
	}

	return version.CheckConfigCompatibility(version.ConfigVersion, cfg.Version)
}

func loadEnvFiles(files []string) error {
	existing := make([]string, 0, len(files))

	for _, f := range files {
		if _, err := os.Stat(f); err == nil {
			existing = append(existing, f)
		}
	}

	if len(existing) == 0 {
		return nil
	}

	// Load does not override variables already set in the process environment.
	if err := godotenv.Load(existing...); err != nil {
		return errors.Wrap(errors.ErrCodeInvalidConfiguration, "failed to load .env file", err)
	}

	return nil
}

// ApplyEnv overrides fields from the environment.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && strings.TrimSpace(v) != "" {
			*dst = strings.TrimSpace(v)
		}
	}

	str(EnvAppKey, &c.KIS.AppKey)
	str(EnvAppSecret, &c.KIS.AppSecret)
	str(EnvAccountNumber, &c.KIS.AccountNumber)
	str(EnvAccountProduct, &c.KIS.AccountProduct)
	str(EnvBaseURL, &c.KIS.BaseURL)
	str(EnvDiscordWebhookURL, &c.DiscordWebhookURL)
	str(EnvPolygonAPIKey, &c.PolygonAPIKey)
	str(EnvLogLevel, &c.LogLevel)
	str(EnvTradingProvider, &c.TradingProvider)
	str(EnvMarketDataProvider, &c.MarketDataProvider)
	str(EnvOutputDir, &c.OutputDir)

	if v, ok := lookup(EnvPort); ok && strings.TrimSpace(v) != "" {
		port, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return errors.Wrapf(errors.ErrCodeInvalidConfiguration, err, "invalid %s %q", EnvPort, v)
		}

		c.Health.Port = port
	}

	c.LogLevel = strings.ToLower(c.LogLevel)

	return nil
}

// UsesKIS reports whether any configured provider talks to the KIS open API.
func (c *Config) UsesKIS() bool {
	return c.TradingProvider != string(tradingprovider.ProviderPaper) || c.MarketDataProvider == string(provider.ProviderKIS)
}

// KISConfig returns the KIS config with the base URL and paper flag resolved for the trading provider.
func (c *Config) KISConfig() kis.Config {
	out := c.KIS
	out.Paper = c.TradingProvider == string(tradingprovider.ProviderKISPaper)

	if out.BaseURL == "" {
		out.BaseURL = kis.LiveBaseURL
		if out.Paper {
			out.BaseURL = kis.PaperBaseURL
		}
	}

	return out
}

// Validate validates the configuration and the sections the selected providers need.
func (c *Config) Validate() error {
	validate := validator.New()
	if err := validate.Struct(struct {
		LogLevel           string       `validate:"oneof=debug info warn error"`
		TradingProvider    string       `validate:"required,oneof=kis-live kis-paper paper"`
		MarketDataProvider string       `validate:"required,oneof=kis polygon"`
		DiscordWebhookURL  string       `validate:"omitempty,url"`
		Health             HealthConfig `validate:"required"`
	}{
		LogLevel:           c.LogLevel,
		TradingProvider:    c.TradingProvider,
		MarketDataProvider: c.MarketDataProvider,
		DiscordWebhookURL:  c.DiscordWebhookURL,
		Health:             c.Health,
	}); err != nil {
		return errors.Wrap(errors.ErrCodeInvalidConfiguration, "invalid config", err)
	}

	if c.UsesKIS() {
		kisCfg := c.KISConfig()
		if err := kisCfg.Validate(); err != nil {
			return errors.Wrap(errors.ErrCodeInvalidConfiguration, "kis section", err)
		}
	}

	if c.TradingProvider == string(tradingprovider.ProviderPaper) {
		if err := c.Paper.Validate(); err != nil {
			return err
		}
	}

	if c.MarketDataProvider == string(provider.ProviderPolygon) && c.PolygonAPIKey == "" {
		return errors.Newf(errors.ErrCodeMissingParameter, "%s is required for the polygon market data provider", EnvPolygonAPIKey)
	}

	return c.Session.Validate()
}

// Redacted returns a copy safe to print.
func (c Config) Redacted() Config {
	mask := func(s string) string {
		if s == "" {
			return ""
		}

		if len(s) <= 4 {
			return "****"
		}

		return s[:2] + strings.Repeat("*", len(s)-4) + s[len(s)-2:]
	}

	c.KIS.AppKey = mask(c.KIS.AppKey)
	c.KIS.AppSecret = mask(c.KIS.AppSecret)
	c.KIS.AccountNumber = mask(c.KIS.AccountNumber)
	c.PolygonAPIKey = mask(c.PolygonAPIKey)
	c.DiscordWebhookURL = mask(c.DiscordWebhookURL)

	return c
}

// Marshal renders the configuration as YAML.
func (c Config) Marshal() ([]byte, error) {
	out, err := yaml.Marshal(c)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeParseFailed, "failed to encode config", err)
	}

	return out, nil
}

// Schema returns the JSON schema of the configuration file.
func Schema() (string, error) {
	return utils.ToJSONSchema(Config{}) //nolint:exhaustruct // Empty config for schema generation
}
