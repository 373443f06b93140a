package provider

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/polygon-io/client-go/rest/models"
	"github.com/rxtech-lab/argo-autotrade/internal/types"
	apperrors "github.com/rxtech-lab/argo-autotrade/pkg/errors"
	"github.com/stretchr/testify/suite"
)

// mockPolygonAPIClient implements PolygonAPIClient for testing.
type mockPolygonAPIClient struct {
	iterator   PolygonAggsIterator
	lastTrade  *models.GetLastTradeResponse
	tradeErr   error
	lastParams *models.ListAggsParams
}

func (m *mockPolygonAPIClient) GetLastTrade(_ context.Context, _ *models.GetLastTradeParams, _ ...models.RequestOption) (*models.GetLastTradeResponse, error) {
	return m.lastTrade, m.tradeErr
}

func (m *mockPolygonAPIClient) ListAggs(_ context.Context, params *models.ListAggsParams, _ ...models.RequestOption) PolygonAggsIterator {
	m.lastParams = params

	return m.iterator
}

// mockPolygonIterator implements PolygonAggsIterator for testing.
type mockPolygonIterator struct {
	aggs  []models.Agg
	index int
	err   error
}

func (m *mockPolygonIterator) Next() bool {
	if m.index < len(m.aggs) {
		m.index++
		return true
	}
	return false
}

func (m *mockPolygonIterator) Item() models.Agg {
	if m.index > 0 && m.index <= len(m.aggs) {
		return m.aggs[m.index-1]
	}
	return models.Agg{}
}

func (m *mockPolygonIterator) Err() error {
	return m.err
}

type PolygonMarketDataTestSuite struct {
	suite.Suite
	now    time.Time
	symbol types.Symbol
}

func TestPolygonMarketDataSuite(t *testing.T) {
	suite.Run(t, new(PolygonMarketDataTestSuite))
}

func (suite *PolygonMarketDataTestSuite) SetupTest() {
	suite.now = time.Date(2025, 6, 4, 15, 0, 0, 0, time.UTC)
	suite.symbol = types.Symbol{Code: "AAPL", Segment: types.SegmentNASDAQ}
}

func (suite *PolygonMarketDataTestSuite) clock() time.Time {
	return suite.now
}

func (suite *PolygonMarketDataTestSuite) TestCurrentPrice() {
	api := &mockPolygonAPIClient{
		lastTrade: &models.GetLastTradeResponse{Results: models.LastTrade{Price: 201.5}},
	}
	port := NewPolygonMarketDataWithAPI(api, suite.clock)

	price, err := port.CurrentPrice(context.Background(), suite.symbol)
	suite.Require().NoError(err)
	suite.Equal(201.5, price)
}

func (suite *PolygonMarketDataTestSuite) TestCurrentPriceErrors() {
	port := NewPolygonMarketDataWithAPI(&mockPolygonAPIClient{tradeErr: errors.New("boom")}, suite.clock)
	_, err := port.CurrentPrice(context.Background(), suite.symbol)
	suite.True(apperrors.HasCode(err, apperrors.ErrCodeTransient))

	port = NewPolygonMarketDataWithAPI(&mockPolygonAPIClient{lastTrade: &models.GetLastTradeResponse{}}, suite.clock)
	_, err = port.CurrentPrice(context.Background(), suite.symbol)
	suite.True(apperrors.HasCode(err, apperrors.ErrCodeDataUnavailable))
}

func (suite *PolygonMarketDataTestSuite) TestDailyHistory() {
	api := &mockPolygonAPIClient{
		iterator: &mockPolygonIterator{aggs: []models.Agg{
			{Open: 200, High: 203, Low: 199, Close: 202, Timestamp: models.Millis(suite.now)},
			{Open: 198, High: 201, Low: 197, Close: 200},
			{Open: 195, High: 199, Low: 194, Close: 198},
		}},
	}
	port := NewPolygonMarketDataWithAPI(api, suite.clock)

	bars, err := port.DailyHistory(context.Background(), suite.symbol, 2)
	suite.Require().NoError(err)
	suite.Require().Len(bars, 2)
	suite.Equal(200.0, bars[0].Open)
	suite.Equal(197.0, bars[1].Low)
	suite.Equal(suite.now, bars[0].Date)

	suite.Require().NotNil(api.lastParams)
	suite.Equal("AAPL", api.lastParams.Ticker)
	suite.Equal(models.Day, api.lastParams.Timespan)
	suite.Equal(models.Desc, *api.lastParams.Order)
}

func (suite *PolygonMarketDataTestSuite) TestDailyHistoryErrors() {
	port := NewPolygonMarketDataWithAPI(&mockPolygonAPIClient{iterator: &mockPolygonIterator{err: errors.New("rate limited")}}, suite.clock)
	_, err := port.DailyHistory(context.Background(), suite.symbol, 5)
	suite.True(apperrors.HasCode(err, apperrors.ErrCodeTransient))

	port = NewPolygonMarketDataWithAPI(&mockPolygonAPIClient{iterator: &mockPolygonIterator{}}, suite.clock)
	_, err = port.DailyHistory(context.Background(), suite.symbol, 5)
	suite.True(apperrors.HasCode(err, apperrors.ErrCodeDataNotFound))

	_, err = port.DailyHistory(context.Background(), suite.symbol, 0)
	suite.True(apperrors.HasCode(err, apperrors.ErrCodeInvalidParameter))
}
