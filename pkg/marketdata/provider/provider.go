package provider

import (
	"github.com/rxtech-lab/argo-autotrade/internal/kis"
	"github.com/rxtech-lab/argo-autotrade/pkg/errors"
)

// ProviderType defines the type of market data provider.
type ProviderType string

const (
	ProviderKIS     ProviderType = "kis"
	ProviderPolygon ProviderType = "polygon"
)

// NewMarketDataProvider creates a MarketDataPort based on the provider type.
// KIS expects a kis.Config or an existing KISQuoteClient; Polygon expects an API key string.
func NewMarketDataProvider(providerType ProviderType, config any) (MarketDataPort, error) {
	switch providerType {
	case ProviderKIS:
		switch cfg := config.(type) {
		case KISQuoteClient:
			return NewKISMarketData(cfg), nil
		case kis.Config:
			return NewKISMarketDataFromConfig(cfg)
		default:
			return nil, errors.New(errors.ErrCodeInvalidParameter, "kis provider requires a kis.Config or client")
		}
	case ProviderPolygon:
		apiKey, ok := config.(string)
		if !ok {
			return nil, errors.New(errors.ErrCodeInvalidParameter, "polygon provider requires API key string config")
		}

		return NewPolygonMarketData(apiKey)
	default:
		return nil, errors.Newf(errors.ErrCodeInvalidParameter, "unsupported market data provider: %s", providerType)
	}
}

// SupportedProviders lists the provider names accepted by NewMarketDataProvider.
func SupportedProviders() []string {
	return []string{string(ProviderKIS), string(ProviderPolygon)}
}
