package provider

import (
	"context"
	"time"

	polygon "github.com/polygon-io/client-go/rest"
	"github.com/polygon-io/client-go/rest/models"
	"github.com/rxtech-lab/argo-autotrade/internal/types"
	"github.com/rxtech-lab/argo-autotrade/pkg/errors"
)

// PolygonAggsIterator is the iterator returned by ListAggs.
type PolygonAggsIterator interface {
	Next() bool
	Item() models.Agg
	Err() error
}

// PolygonAPIClient is the subset of the Polygon REST client used here.
type PolygonAPIClient interface {
	GetLastTrade(ctx context.Context, params *models.GetLastTradeParams, opts ...models.RequestOption) (*models.GetLastTradeResponse, error)
	ListAggs(ctx context.Context, params *models.ListAggsParams, opts ...models.RequestOption) PolygonAggsIterator
}

type realPolygonClient struct {
	client *polygon.Client
}

func (r *realPolygonClient) GetLastTrade(ctx context.Context, params *models.GetLastTradeParams, opts ...models.RequestOption) (*models.GetLastTradeResponse, error) {
	return r.client.GetLastTrade(ctx, params, opts...)
}

func (r *realPolygonClient) ListAggs(ctx context.Context, params *models.ListAggsParams, opts ...models.RequestOption) PolygonAggsIterator {
	return r.client.ListAggs(ctx, params, opts...)
}

// PolygonMarketData serves quotes from Polygon.io. Symbols are looked up by code only.
type PolygonMarketData struct {
	apiClient PolygonAPIClient
	now       func() time.Time
}

var _ MarketDataPort = (*PolygonMarketData)(nil)

func NewPolygonMarketData(apiKey string) (*PolygonMarketData, error) {
	if apiKey == "" {
		return nil, errors.New(errors.ErrCodeMissingParameter, "polygon api key is required")
	}

	return NewPolygonMarketDataWithAPI(&realPolygonClient{client: polygon.New(apiKey)}, time.Now), nil
}

func NewPolygonMarketDataWithAPI(api PolygonAPIClient, now func() time.Time) *PolygonMarketData {
	if now == nil {
		now = time.Now
	}

	return &PolygonMarketData{
		apiClient: api,
		now:       now,
	}
}

func (p *PolygonMarketData) CurrentPrice(ctx context.Context, symbol types.Symbol) (float64, error) {
	resp, err := p.apiClient.GetLastTrade(ctx, &models.GetLastTradeParams{Ticker: symbol.Code})
	if err != nil {
		return 0, errors.Wrapf(errors.ErrCodeTransient, err, "polygon last trade %s", symbol.Code)
	}

	if resp == nil || resp.Results.Price <= 0 {
		return 0, errors.Newf(errors.ErrCodeDataUnavailable, "polygon last trade %s: no price", symbol.Code)
	}

	return resp.Results.Price, nil
}

// DailyHistory lists daily aggregates newest first. Weekends and holidays are covered by
// looking back twice the requested number of calendar days.
func (p *PolygonMarketData) DailyHistory(ctx context.Context, symbol types.Symbol, days int) ([]types.DailyBar, error) {
	if days <= 0 {
		return nil, errors.Newf(errors.ErrCodeInvalidParameter, "days must be positive, got %d", days)
	}

	end := p.now()
	start := end.AddDate(0, 0, -(days*2 + 7))

	//nolint:exhaustruct // third-party struct with many optional fields
	params := models.ListAggsParams{
		Ticker:     symbol.Code,
		Multiplier: 1,
		Timespan:   models.Day,
		From:       models.Millis(start),
		To:         models.Millis(end),
	}.WithOrder(models.Desc).WithLimit(days).WithAdjusted(true)

	iter := p.apiClient.ListAggs(ctx, params)

	bars := make([]types.DailyBar, 0, days)
	for iter.Next() && len(bars) < days {
		agg := iter.Item()
		bars = append(bars, types.DailyBar{
			Date:  time.Time(agg.Timestamp).UTC(),
			Open:  agg.Open,
			High:  agg.High,
			Low:   agg.Low,
			Close: agg.Close,
		})
	}

	if err := iter.Err(); err != nil {
		return nil, errors.Wrapf(errors.ErrCodeTransient, err, "polygon aggregates %s", symbol.Code)
	}

	if len(bars) == 0 {
		return nil, errors.Newf(errors.ErrCodeDataNotFound, "polygon aggregates %s: no rows", symbol.Code)
	}

	return bars, nil
}
