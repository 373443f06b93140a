package provider

import (
	"context"

	"github.com/rxtech-lab/argo-autotrade/internal/kis"
	"github.com/rxtech-lab/argo-autotrade/internal/types"
	"github.com/rxtech-lab/argo-autotrade/pkg/errors"
)

// KISQuoteClient is the part of the KIS client used for quotes.
type KISQuoteClient interface {
	CurrentPrice(ctx context.Context, symbol types.Symbol) (float64, error)
	DailyBars(ctx context.Context, symbol types.Symbol) ([]types.DailyBar, error)
}

// KISMarketData serves quotes from the brokerage's quotation endpoints.
type KISMarketData struct {
	client KISQuoteClient
}

var _ MarketDataPort = (*KISMarketData)(nil)

func NewKISMarketData(client KISQuoteClient) *KISMarketData {
	return &KISMarketData{client: client}
}

// NewKISMarketDataFromConfig builds its own client. Used when quotes and orders use different apps.
func NewKISMarketDataFromConfig(cfg kis.Config) (*KISMarketData, error) {
	client, err := kis.NewClient(cfg, nil)
	if err != nil {
		return nil, err
	}

	return NewKISMarketData(client), nil
}

func (k *KISMarketData) CurrentPrice(ctx context.Context, symbol types.Symbol) (float64, error) {
	return k.client.CurrentPrice(ctx, symbol)
}

func (k *KISMarketData) DailyHistory(ctx context.Context, symbol types.Symbol, days int) ([]types.DailyBar, error) {
	if days <= 0 {
		return nil, errors.Newf(errors.ErrCodeInvalidParameter, "days must be positive, got %d", days)
	}

	bars, err := k.client.DailyBars(ctx, symbol)
	if err != nil {
		return nil, err
	}

	if len(bars) > days {
		bars = bars[:days]
	}

	return bars, nil
}
