package provider

import (
	"context"
	"testing"

	"github.com/rxtech-lab/argo-autotrade/internal/kis"
	"github.com/rxtech-lab/argo-autotrade/internal/kis/kistest"
	"github.com/rxtech-lab/argo-autotrade/internal/logger"
	"github.com/rxtech-lab/argo-autotrade/internal/types"
	"github.com/rxtech-lab/argo-autotrade/pkg/errors"
	"github.com/stretchr/testify/suite"
)

type ProviderTestSuite struct {
	suite.Suite
}

func TestProviderSuite(t *testing.T) {
	suite.Run(t, new(ProviderTestSuite))
}

func (suite *ProviderTestSuite) TestNewMarketDataProvider() {
	port, err := NewMarketDataProvider(ProviderPolygon, "key")
	suite.Require().NoError(err)
	suite.IsType(&PolygonMarketData{}, port)

	_, err = NewMarketDataProvider(ProviderPolygon, 42)
	suite.True(errors.HasCode(err, errors.ErrCodeInvalidParameter))

	_, err = NewMarketDataProvider(ProviderPolygon, "")
	suite.True(errors.HasCode(err, errors.ErrCodeMissingParameter))

	port, err = NewMarketDataProvider(ProviderKIS, kis.Config{
		BaseURL:       kis.LiveBaseURL,
		AppKey:        "k",
		AppSecret:     "s",
		AccountNumber: "12345678",
	})
	suite.Require().NoError(err)
	suite.IsType(&KISMarketData{}, port)

	_, err = NewMarketDataProvider(ProviderKIS, "nope")
	suite.Error(err)

	_, err = NewMarketDataProvider("binance", nil)
	suite.Error(err)

	suite.ElementsMatch([]string{"kis", "polygon"}, SupportedProviders())
}

func (suite *ProviderTestSuite) TestKISMarketDataTruncatesHistory() {
	server := kistest.NewMockKISServer(kistest.ServerConfig{
		AppKey:    "k",
		AppSecret: "s",
		Prices:    map[string]float64{"AVGO": 170.5},
		Daily: map[string][]map[string]string{
			"AVGO": {
				kistest.Row("20250604", 170, 172, 168, 171),
				kistest.Row("20250603", 166, 169, 165, 168),
				kistest.Row("20250602", 160, 167, 159, 166),
			},
		},
	})
	suite.Require().NoError(server.Start(""))
	defer func() { suite.NoError(server.Stop()) }()

	client, err := kis.NewClient(kis.Config{
		BaseURL:       server.BaseURL(),
		AppKey:        "k",
		AppSecret:     "s",
		AccountNumber: "12345678",
	}, logger.NewNopLogger())
	suite.Require().NoError(err)

	port := NewKISMarketData(client)
	avgo := types.Symbol{Code: "AVGO", Segment: types.SegmentNASDAQ}

	price, err := port.CurrentPrice(context.Background(), avgo)
	suite.Require().NoError(err)
	suite.Equal(170.5, price)

	bars, err := port.DailyHistory(context.Background(), avgo, 2)
	suite.Require().NoError(err)
	suite.Require().Len(bars, 2)
	suite.Equal(171.0, bars[0].Close)
	suite.Equal(168.0, bars[1].Close)

	_, err = port.DailyHistory(context.Background(), avgo, 0)
	suite.True(errors.HasCode(err, errors.ErrCodeInvalidParameter))
}
