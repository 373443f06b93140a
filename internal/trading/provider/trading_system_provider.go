package tradingprovider

import (
	"context"
	"sort"

	"github.com/rxtech-lab/argo-autotrade/internal/kis"
	"github.com/rxtech-lab/argo-autotrade/internal/types"
	"github.com/rxtech-lab/argo-autotrade/pkg/errors"
	"github.com/rxtech-lab/argo-autotrade/pkg/utils"
)

// TradeExecutor submits orders and reports the account state.
type TradeExecutor interface {
	// Buy submits a market buy. A broker refusal is ErrCodeOrderRejected.
	Buy(ctx context.Context, order types.OrderRequest) (types.OrderResult, error)
	// Sell submits a market sell. A broker refusal is ErrCodeOrderRejected.
	Sell(ctx context.Context, order types.OrderRequest) (types.OrderResult, error)
	// Holdings lists the positions the broker reports, including ones opened outside this process.
	Holdings(ctx context.Context) ([]types.Holding, error)
	// Balance returns holdings with evaluation figures.
	Balance(ctx context.Context) (types.BalanceReport, error)
	// AccountInfo returns buying power in USD.
	AccountInfo(ctx context.Context) (types.AccountInfo, error)
	// CheckConnection verifies the broker is reachable and the credentials are accepted.
	CheckConnection(ctx context.Context) error
}

type ProviderType string

const (
	ProviderKISLive  ProviderType = "kis-live"
	ProviderKISPaper ProviderType = "kis-paper"
	ProviderPaper    ProviderType = "paper"
)

type ProviderInfo struct {
	Name           string `json:"name"`
	DisplayName    string `json:"displayName"`
	Description    string `json:"description"`
	IsPaperTrading bool   `json:"isPaperTrading"`
}

var providerRegistry = map[ProviderType]ProviderInfo{
	ProviderKISLive: {
		Name:           string(ProviderKISLive),
		DisplayName:    "KIS Live",
		Description:    "Korea Investment & Securities overseas stock trading with real funds",
		IsPaperTrading: false,
	},
	ProviderKISPaper: {
		Name:           string(ProviderKISPaper),
		DisplayName:    "KIS Virtual",
		Description:    "Korea Investment & Securities virtual trading domain",
		IsPaperTrading: true,
	},
	ProviderPaper: {
		Name:           string(ProviderPaper),
		DisplayName:    "Local Paper",
		Description:    "In-process simulated fills at the reference price, no broker connection",
		IsPaperTrading: true,
	},
}

// GetSupportedProviders returns the provider names, sorted.
func GetSupportedProviders() []string {
	providers := make([]string, 0, len(providerRegistry))
	for providerType := range providerRegistry {
		providers = append(providers, string(providerType))
	}

	sort.Strings(providers)

	return providers
}

// GetProviderInfo returns metadata for a specific trading provider.
func GetProviderInfo(providerName string) (ProviderInfo, error) {
	info, exists := providerRegistry[ProviderType(providerName)]
	if !exists {
		return ProviderInfo{}, errors.Newf(errors.ErrCodeInvalidParameter, "unsupported trading provider: %s", providerName)
	}

	return info, nil
}

// GetProviderConfigSchema returns the JSON schema for a provider's configuration.
func GetProviderConfigSchema(providerName string) (string, error) {
	switch ProviderType(providerName) {
	case ProviderKISPaper, ProviderKISLive:
		return utils.ToJSONSchema(kis.Config{}) //nolint:exhaustruct // Empty config for schema generation
	case ProviderPaper:
		return utils.ToJSONSchema(PaperConfig{}) //nolint:exhaustruct // Empty config for schema generation
	default:
		return "", errors.Newf(errors.ErrCodeInvalidParameter, "unsupported trading provider: %s", providerName)
	}
}

// ParseProviderConfig parses a JSON configuration string for the given provider.
func ParseProviderConfig(providerName string, jsonConfig string) (any, error) {
	switch ProviderType(providerName) {
	case ProviderKISPaper, ProviderKISLive:
		return parseKISConfig(jsonConfig, ProviderType(providerName) == ProviderKISPaper)
	case ProviderPaper:
		return parsePaperConfig(jsonConfig)
	default:
		return nil, errors.Newf(errors.ErrCodeInvalidParameter, "unsupported trading provider: %s", providerName)
	}
}

// NewTradeExecutor creates a TradeExecutor based on the provider type.
func NewTradeExecutor(providerType ProviderType, config any, segments []types.ExchangeSegment) (TradeExecutor, error) {
	switch providerType {
	case ProviderKISLive, ProviderKISPaper:
		cfg, ok := config.(*kis.Config)
		if !ok {
			return nil, errors.Newf(errors.ErrCodeInvalidParameter, "invalid config type for %s provider", providerType)
		}

		c := *cfg
		c.Paper = providerType == ProviderKISPaper

		if c.BaseURL == "" {
			c.BaseURL = kis.LiveBaseURL
			if c.Paper {
				c.BaseURL = kis.PaperBaseURL
			}
		}

		client, err := kis.NewClient(c, nil)
		if err != nil {
			return nil, err
		}

		return NewKISExecutor(client, segments), nil
	case ProviderPaper:
		cfg, ok := config.(*PaperConfig)
		if !ok {
			return nil, errors.Newf(errors.ErrCodeInvalidParameter, "invalid config type for %s provider", providerType)
		}

		return NewPaperExecutor(*cfg, nil), nil
	default:
		return nil, errors.Newf(errors.ErrCodeInvalidParameter, "unsupported trading provider: %s", providerType)
	}
}
