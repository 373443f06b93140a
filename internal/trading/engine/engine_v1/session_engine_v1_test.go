package engine_v1

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rxtech-lab/argo-autotrade/internal/logger"
	"github.com/rxtech-lab/argo-autotrade/internal/notify"
	"github.com/rxtech-lab/argo-autotrade/internal/trading/engine"
	"github.com/rxtech-lab/argo-autotrade/internal/types"
	"github.com/rxtech-lab/argo-autotrade/internal/watchlist"
	"github.com/rxtech-lab/argo-autotrade/mocks"
	"github.com/rxtech-lab/argo-autotrade/pkg/errors"
	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"
)

// fakeClock advances its time by d on every After call and fires immediately.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.now
}

func (c *fakeClock) After(d time.Duration) <-chan time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.now = c.now.Add(d)
	ch := make(chan time.Time, 1)
	ch <- c.now

	return ch
}

type SessionEngineV1TestSuite struct {
	suite.Suite
	ctrl       *gomock.Controller
	marketData *mocks.MockMarketDataPort
	executor   *mocks.MockTradeExecutor
	recorder   *notify.Recorder
	clock      *fakeClock
	ny         *time.Location
	start      time.Time

	mu       sync.Mutex
	prices   map[string][]float64
	holdings []types.Holding
	orders   []types.OrderRequest
}

func TestSessionEngineV1Suite(t *testing.T) {
	suite.Run(t, new(SessionEngineV1TestSuite))
}

func (suite *SessionEngineV1TestSuite) SetupTest() {
	ny, err := time.LoadLocation("America/New_York")
	suite.Require().NoError(err)

	suite.ny = ny
	suite.ctrl = gomock.NewController(suite.T())
	suite.marketData = mocks.NewMockMarketDataPort(suite.ctrl)
	suite.executor = mocks.NewMockTradeExecutor(suite.ctrl)
	suite.recorder = notify.NewRecorder()
	suite.prices = make(map[string][]float64)
	suite.holdings = nil
	suite.orders = nil
}

func (suite *SessionEngineV1TestSuite) TearDownTest() {
	suite.ctrl.Finish()
}

// at returns 2025-06-02 (a Monday) at hh:mm New York time.
func (suite *SessionEngineV1TestSuite) at(hour, minute int) time.Time {
	return time.Date(2025, 6, 2, hour, minute, 0, 0, suite.ny)
}

func (suite *SessionEngineV1TestSuite) config(buyCount int) engine.SessionEngineConfig {
	cfg := engine.DefaultSessionEngineConfig()
	cfg.WatchList = []watchlist.Entry{
		{Code: "NVDA", Segment: "NASD"},
		{Code: "AAPL", Segment: "NASD"},
	}
	cfg.TargetBuyCount = buyCount
	cfg.PollInterval = time.Minute
	cfg.BalanceInterval = 0

	return cfg
}

func (suite *SessionEngineV1TestSuite) newEngine(startAt time.Time, buyCount int) *SessionEngineV1 {
	return suite.newEngineWithConfig(startAt, suite.config(buyCount))
}

func (suite *SessionEngineV1TestSuite) newEngineWithConfig(startAt time.Time, cfg engine.SessionEngineConfig) *SessionEngineV1 {
	suite.start = startAt
	suite.clock = &fakeClock{mu: sync.Mutex{}, now: startAt}

	e := NewSessionEngineV1WithClock(logger.NewNopLogger(), suite.clock)
	suite.Require().NoError(e.Initialize(cfg))
	suite.Require().NoError(e.SetMarketDataProvider(suite.marketData))
	suite.Require().NoError(e.SetTradeExecutor(suite.executor))
	suite.Require().NoError(e.SetNotifier(suite.recorder))

	return e
}

// script sets the price returned for code on tick i (one tick per minute from start).
// The last price repeats.
func (suite *SessionEngineV1TestSuite) script(code string, prices ...float64) {
	suite.prices[code] = prices
}

func (suite *SessionEngineV1TestSuite) priceNow(code string) float64 {
	prices := suite.prices[code]
	if len(prices) == 0 {
		return 0
	}

	tick := int(suite.clock.Now().Sub(suite.start) / time.Minute)
	if tick >= len(prices) {
		tick = len(prices) - 1
	}

	return prices[tick]
}

// history yields a target of 100 + (102-98)*0.7 = 102.8 (fallback volatility, lowest tier).
func history() []types.DailyBar {
	return []types.DailyBar{
		{Date: time.Date(2025, 6, 2, 0, 0, 0, 0, time.UTC), Open: 100, High: 100, Low: 100, Close: 100},
		{Date: time.Date(2025, 5, 30, 0, 0, 0, 0, time.UTC), Open: 99, High: 102, Low: 98, Close: 100},
	}
}

func (suite *SessionEngineV1TestSuite) expectBroker(buyingPower float64, startupHoldings []types.Holding) {
	suite.holdings = startupHoldings

	suite.executor.EXPECT().CheckConnection(gomock.Any()).Return(nil)
	suite.executor.EXPECT().AccountInfo(gomock.Any()).Return(types.AccountInfo{
		BuyingPowerUSD: buyingPower,
		CashKRW:        0,
		ExchangeRate:   0,
	}, nil)
	suite.executor.EXPECT().Balance(gomock.Any()).Return(types.BalanceReport{
		Holdings:      nil,
		EvaluationPnL: 0,
		TotalPnL:      0,
	}, nil).AnyTimes()
	suite.executor.EXPECT().Holdings(gomock.Any()).DoAndReturn(func(context.Context) ([]types.Holding, error) {
		suite.mu.Lock()
		defer suite.mu.Unlock()

		out := make([]types.Holding, len(suite.holdings))
		copy(out, suite.holdings)

		return out, nil
	}).AnyTimes()

	fill := func(_ context.Context, order types.OrderRequest) (types.OrderResult, error) {
		suite.mu.Lock()
		defer suite.mu.Unlock()

		suite.orders = append(suite.orders, order)

		if order.Side == types.PurchaseTypeBuy {
			suite.holdings = append(suite.holdings, types.Holding{Code: order.Symbol.Code, Name: order.Symbol.Code, Quantity: order.Quantity})
		} else {
			kept := suite.holdings[:0]
			for _, h := range suite.holdings {
				if h.Code != order.Symbol.Code {
					kept = append(kept, h)
				}
			}
			suite.holdings = kept
		}

		return types.OrderResult{OrderID: "0001", Status: types.OrderStatusFilled, Message: "ok", SubmittedAt: suite.clock.Now()}, nil
	}
	suite.executor.EXPECT().Buy(gomock.Any(), gomock.Any()).DoAndReturn(fill).AnyTimes()
	suite.executor.EXPECT().Sell(gomock.Any(), gomock.Any()).DoAndReturn(fill).AnyTimes()
}

func (suite *SessionEngineV1TestSuite) expectMarketData() {
	suite.marketData.EXPECT().DailyHistory(gomock.Any(), gomock.Any(), gomock.Any()).Return(history(), nil).AnyTimes()
	suite.marketData.EXPECT().CurrentPrice(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, sym types.Symbol) (float64, error) {
			return suite.priceNow(sym.Code), nil
		}).AnyTimes()
}

// cancelAfter returns callbacks that cancel the run after n ticks and record phases and status.
func cancelAfter(n int, cancel context.CancelFunc, phases *[]types.Phase, statuses *[]types.EngineStatus) engine.SessionCallbacks {
	ticks := 0
	onTick := engine.OnTickCallback(func(_ time.Time, _ types.Phase, _ int) {
		ticks++
		if n > 0 && ticks >= n {
			cancel()
		}
	})
	onPhase := engine.OnPhaseChangeCallback(func(_ types.Phase, to types.Phase) error {
		*phases = append(*phases, to)

		return nil
	})
	onStatus := engine.OnStatusUpdateCallback(func(status types.EngineStatus) error {
		*statuses = append(*statuses, status)

		return nil
	})

	return engine.SessionCallbacks{
		OnEngineStart:  nil,
		OnEngineStop:   nil,
		OnTick:         &onTick,
		OnPhaseChange:  &onPhase,
		OnOrderPlaced:  nil,
		OnOrderFilled:  nil,
		OnOrderFailed:  nil,
		OnExitSignal:   nil,
		OnError:        nil,
		OnStatsUpdate:  nil,
		OnStatusUpdate: &onStatus,
	}
}

func (suite *SessionEngineV1TestSuite) containsMessage(substr string, urgent bool) bool {
	for _, m := range suite.recorder.Messages() {
		if m.Urgent == urgent && strings.Contains(m.Text, substr) {
			return true
		}
	}

	return false
}

func (suite *SessionEngineV1TestSuite) TestInitializeRejectsEmptyWatchList() {
	e := NewSessionEngineV1WithClock(logger.NewNopLogger(), nil)

	cfg := engine.DefaultSessionEngineConfig()
	err := e.Initialize(cfg)
	suite.Error(err)
	suite.Equal(errors.ErrCodeInvalidConfiguration, errors.GetCode(err))
}

func (suite *SessionEngineV1TestSuite) TestInitializeRejectsUnknownSegment() {
	e := NewSessionEngineV1WithClock(logger.NewNopLogger(), nil)

	cfg := suite.config(4)
	cfg.WatchList = append(cfg.WatchList, watchlist.Entry{Code: "SONY", Segment: "TSE"})
	suite.Error(e.Initialize(cfg))
}

func (suite *SessionEngineV1TestSuite) TestRunRequiresInitialize() {
	e := NewSessionEngineV1WithClock(logger.NewNopLogger(), nil)

	var stopErr error

	onStop := engine.OnEngineStopCallback(func(err error) { stopErr = err })
	err := e.Run(context.Background(), engine.SessionCallbacks{OnEngineStop: &onStop}) //nolint:exhaustruct
	suite.Error(err)
	suite.Contains(err.Error(), "not initialized")
	suite.Equal(err, stopErr)
}

func (suite *SessionEngineV1TestSuite) TestRunRequiresCollaborators() {
	suite.clock = &fakeClock{mu: sync.Mutex{}, now: suite.at(10, 0)}
	e := NewSessionEngineV1WithClock(logger.NewNopLogger(), suite.clock)
	suite.Require().NoError(e.Initialize(suite.config(4)))

	err := e.Run(context.Background(), engine.SessionCallbacks{}) //nolint:exhaustruct
	suite.Error(err)
	suite.Contains(err.Error(), "market data provider not set")

	suite.Error(e.SetMarketDataProvider(nil))
	suite.Error(e.SetTradeExecutor(nil))
	suite.Error(e.SetNotifier(nil))
}

func (suite *SessionEngineV1TestSuite) TestMarketClosedAtStartExitsWithoutBrokerCalls() {
	sink := mocks.NewMockSink(suite.ctrl)
	sink.EXPECT().Notify(gomock.Any(), gomock.Any(), true).Times(1)

	e := suite.newEngine(time.Date(2025, 6, 7, 11, 0, 0, 0, suite.ny), 4)
	suite.Require().NoError(e.SetNotifier(sink))

	var phases []types.Phase

	var statuses []types.EngineStatus

	err := e.Run(context.Background(), cancelAfter(0, func() {}, &phases, &statuses))
	suite.NoError(err)
	suite.Equal([]types.EngineStatus{types.EngineStatusStarting, types.EngineStatusStopped}, statuses)
}

func (suite *SessionEngineV1TestSuite) TestConnectionFailureIsFatal() {
	e := suite.newEngine(suite.at(10, 0), 4)
	suite.executor.EXPECT().CheckConnection(gomock.Any()).Return(errors.New(errors.ErrCodeAuthFailed, "token rejected"))

	var phases []types.Phase

	var statuses []types.EngineStatus

	err := e.Run(context.Background(), cancelAfter(0, func() {}, &phases, &statuses))
	suite.Error(err)
	suite.Equal(errors.ErrCodeFatal, errors.GetCode(err))
	suite.Equal(types.EngineStatusFailed, statuses[len(statuses)-1])
	suite.True(suite.containsMessage("broker connection failed", true))
}

func (suite *SessionEngineV1TestSuite) TestAccountFailureIsFatal() {
	e := suite.newEngine(suite.at(10, 0), 4)
	suite.executor.EXPECT().CheckConnection(gomock.Any()).Return(nil)
	suite.executor.EXPECT().AccountInfo(gomock.Any()).Return(types.AccountInfo{}, errors.New(errors.ErrCodeTransient, "timeout")) //nolint:exhaustruct

	err := e.Run(context.Background(), engine.SessionCallbacks{}) //nolint:exhaustruct
	suite.Equal(errors.ErrCodeFatal, errors.GetCode(err))
}

func (suite *SessionEngineV1TestSuite) TestEntryRespectsBuyCountAndClosesOutBeforeTheBell() {
	dir := suite.T().TempDir()
	e := suite.newEngine(suite.at(15, 43), 1)
	suite.Require().NoError(e.SetDataOutputPath(dir))
	suite.expectBroker(4000, nil)
	suite.expectMarketData()

	// Both symbols break out on the first tick; only one slot is available.
	suite.script("NVDA", 105, 105.5, 106)
	suite.script("AAPL", 104)

	var phases []types.Phase

	var statuses []types.EngineStatus

	err := e.Run(context.Background(), cancelAfter(0, func() {}, &phases, &statuses))
	suite.NoError(err)

	suite.Require().Len(suite.orders, 2)

	buy := suite.orders[0]
	suite.Equal(types.PurchaseTypeBuy, buy.Side)
	suite.Equal("NVDA", buy.Symbol.Code)
	suite.Equal(9, buy.Quantity)
	suite.Equal(105.0, buy.ReferencePrice)
	suite.Equal(types.OrderReasonBreakout, buy.Reason.Reason)

	sell := suite.orders[1]
	suite.Equal(types.PurchaseTypeSell, sell.Side)
	suite.Equal("NVDA", sell.Symbol.Code)
	suite.Equal(9, sell.Quantity)
	suite.Equal(types.OrderReasonCloseOutFlatten, sell.Reason.Reason)

	suite.Equal([]types.Phase{types.PhaseCloseOutFlatten, types.PhaseTerminated}, phases)
	suite.Equal(types.EngineStatusStopped, statuses[len(statuses)-1])
	suite.Equal(0, e.ledger.Len())

	daily := e.statsTracker.GetDailyStats()
	suite.Equal(1, daily.TradeResult.NumberOfTrades)
	suite.InDelta(9.0, daily.TradePnl.RealizedPnL, 1e-9)
	suite.Equal(1, daily.Orders.Buys)
	suite.Equal(1, daily.Orders.Sells)

	suite.True(suite.containsMessage("[BUY] NVDA x9 @ $105.00 (breakout)", true))
	suite.True(suite.containsMessage("Target buy count: 1", true))
	suite.True(suite.containsMessage("Session ended", true))

	_, statErr := os.Stat(filepath.Join(dir, "2025-06-02", "run_1", "stats.yaml"))
	suite.NoError(statErr)
}

func (suite *SessionEngineV1TestSuite) TestTargetsAnnouncedOncePerDay() {
	e := suite.newEngine(suite.at(15, 43), 4)
	suite.expectBroker(4000, nil)
	suite.expectMarketData()
	suite.script("NVDA", 101)
	suite.script("AAPL", 101)

	suite.NoError(e.Run(context.Background(), engine.SessionCallbacks{})) //nolint:exhaustruct

	count := 0
	for _, m := range suite.recorder.Urgent() {
		if strings.Contains(m.Text, "NVDA") && strings.Contains(m.Text, "102.80") {
			count++
		}
	}

	suite.Equal(1, count)
	suite.Empty(suite.orders)
}

func (suite *SessionEngineV1TestSuite) TestStopLossSellsAndDoesNotReenterBelowTarget() {
	e := suite.newEngine(suite.at(10, 0), 4)
	suite.expectBroker(4000, nil)
	suite.expectMarketData()
	suite.script("NVDA", 105, 102.5)
	suite.script("AAPL", 101)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var phases []types.Phase

	var statuses []types.EngineStatus

	err := e.Run(ctx, cancelAfter(3, cancel, &phases, &statuses))
	suite.ErrorIs(err, context.Canceled)
	suite.Equal(types.EngineStatusStopped, statuses[len(statuses)-1])

	suite.Require().Len(suite.orders, 2)
	suite.Equal(types.OrderReasonStopLoss, suite.orders[1].Reason.Reason)
	suite.Equal(9, suite.orders[1].Quantity)
	suite.Equal(0, e.ledger.Len())
	suite.True(suite.containsMessage("[STOP LOSS] NVDA", true))

	daily := e.statsTracker.GetDailyStats()
	suite.InDelta(-22.5, daily.TradePnl.RealizedPnL, 1e-9)
	suite.Equal(1, daily.ExitReasons[types.OrderReasonStopLoss])
}

func (suite *SessionEngineV1TestSuite) TestArmedTrailingStopSupersedesTakeProfit() {
	e := suite.newEngine(suite.at(10, 0), 4)
	suite.expectBroker(4000, nil)
	suite.expectMarketData()
	// 109 clears take-profit (108.15) but the trailing stop is armed, so it holds.
	suite.script("NVDA", 105, 108, 109, 106.5)
	suite.script("AAPL", 101)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var exits []types.ExitDecision

	var phases []types.Phase

	var statuses []types.EngineStatus

	callbacks := cancelAfter(5, cancel, &phases, &statuses)
	onExit := engine.OnExitSignalCallback(func(pos types.Position, decision types.ExitDecision, _ float64) {
		suite.Equal(109.0, pos.HighWaterMark)
		exits = append(exits, decision)
	})
	callbacks.OnExitSignal = &onExit

	suite.ErrorIs(e.Run(ctx, callbacks), context.Canceled)

	suite.Equal([]types.ExitDecision{types.ExitDecisionTrailingStop}, exits)

	// 106.5 is still above the 102.8 target, so the freed slot is bought again.
	suite.Require().Len(suite.orders, 3)
	suite.Equal(types.OrderReasonTrailingStop, suite.orders[1].Reason.Reason)
	suite.Equal(types.PurchaseTypeBuy, suite.orders[2].Side)
	suite.Equal(1, e.ledger.Len())
	suite.InDelta(13.5, e.statsTracker.GetDailyStats().TradePnl.RealizedPnL, 1e-9)
}

func (suite *SessionEngineV1TestSuite) TestResidualHoldingsFlattenedOnceAfterOpen() {
	e := suite.newEngine(suite.at(9, 30), 4)
	suite.expectBroker(4000, []types.Holding{
		{Code: "TSLA", Name: "TESLA", Quantity: 5},
		{Code: "NVDA", Name: "NVIDIA", Quantity: 2},
	})
	suite.expectMarketData()
	suite.script("TSLA", 200)
	suite.script("NVDA", 101)
	suite.script("AAPL", 101)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var phases []types.Phase

	var statuses []types.EngineStatus

	suite.ErrorIs(e.Run(ctx, cancelAfter(3, cancel, &phases, &statuses)), context.Canceled)

	suite.Require().Len(suite.orders, 2)

	for _, order := range suite.orders {
		suite.Equal(types.PurchaseTypeSell, order.Side)
		suite.Equal(types.OrderReasonPreOpenFlatten, order.Reason.Reason)
	}

	suite.Equal("TSLA", suite.orders[0].Symbol.Code)
	suite.Equal(types.SegmentNASDAQ, suite.orders[0].Symbol.Segment)
	suite.Equal(5, suite.orders[0].Quantity)
	suite.Empty(e.residual)
	suite.True(e.preOpenDone)
	suite.True(suite.containsMessage("sold 2 of 2 holdings", true))
}

func (suite *SessionEngineV1TestSuite) TestResidualHoldingsCountTowardBuyCount() {
	e := suite.newEngine(suite.at(10, 0), 1)
	suite.expectBroker(4000, []types.Holding{{Code: "TSLA", Name: "TESLA", Quantity: 5}})
	suite.expectMarketData()
	suite.script("NVDA", 105)
	suite.script("AAPL", 105)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var phases []types.Phase

	var statuses []types.EngineStatus

	suite.ErrorIs(e.Run(ctx, cancelAfter(2, cancel, &phases, &statuses)), context.Canceled)
	suite.Empty(suite.orders)
	suite.Equal(1, e.heldCount())
}

func (suite *SessionEngineV1TestSuite) TestResidualHoldingRetriedUntilPriced() {
	e := suite.newEngine(suite.at(9, 30), 4)
	suite.expectBroker(4000, []types.Holding{{Code: "TSLA", Name: "TESLA", Quantity: 5}})
	suite.expectMarketData()
	// No quote on the first tick.
	suite.script("TSLA", 0, 200)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var phases []types.Phase

	var statuses []types.EngineStatus

	suite.ErrorIs(e.Run(ctx, cancelAfter(3, cancel, &phases, &statuses)), context.Canceled)

	suite.Require().Len(suite.orders, 1)
	suite.Equal("TSLA", suite.orders[0].Symbol.Code)
	suite.Equal(5, suite.orders[0].Quantity)
	suite.Equal(200.0, suite.orders[0].ReferencePrice)
	suite.Equal(types.OrderReasonPreOpenFlatten, suite.orders[0].Reason.Reason)
	suite.Empty(e.residual)
	suite.True(e.preOpenDone)
	suite.True(suite.containsMessage("sold 0 of 1 holdings, 1 waiting for a price", false))
	suite.True(suite.containsMessage("sold 1 of 1 holdings", true))
}

func (suite *SessionEngineV1TestSuite) TestCloseOutFallsBackToLastQuote() {
	e := suite.newEngine(suite.at(15, 43), 4)
	suite.expectBroker(4000, nil)
	suite.expectMarketData()
	// Buy at 105, last quote 104, then no quote once close-out starts.
	suite.script("NVDA", 105, 104, 0)
	suite.script("AAPL", 101)

	var phases []types.Phase

	var statuses []types.EngineStatus

	suite.NoError(e.Run(context.Background(), cancelAfter(0, func() {}, &phases, &statuses)))

	suite.Require().Len(suite.orders, 2)

	sell := suite.orders[1]
	suite.Equal(types.PurchaseTypeSell, sell.Side)
	suite.Equal("NVDA", sell.Symbol.Code)
	suite.Equal(9, sell.Quantity)
	suite.Equal(104.0, sell.ReferencePrice)
	suite.Equal(types.OrderReasonCloseOutFlatten, sell.Reason.Reason)

	suite.True(e.closeOutDone)
	suite.Equal(0, e.ledger.Len())
	suite.InDelta(-9.0, e.statsTracker.GetDailyStats().TradePnl.RealizedPnL, 1e-9)
}

func (suite *SessionEngineV1TestSuite) TestMidSessionStartAnnouncesCurrentPhase() {
	e := suite.newEngine(suite.at(10, 0), 4)
	suite.expectBroker(4000, nil)
	suite.expectMarketData()
	suite.script("NVDA", 101)
	suite.script("AAPL", 101)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var phases []types.Phase

	var statuses []types.EngineStatus

	suite.ErrorIs(e.Run(ctx, cancelAfter(1, cancel, &phases, &statuses)), context.Canceled)
	suite.True(suite.containsMessage("Phase: ACTIVE", true))
	suite.Empty(phases)
}

func (suite *SessionEngineV1TestSuite) TestRejectedBuyLeavesLedgerUnchanged() {
	e := suite.newEngine(suite.at(10, 0), 4)
	suite.executor.EXPECT().CheckConnection(gomock.Any()).Return(nil)
	suite.executor.EXPECT().AccountInfo(gomock.Any()).Return(types.AccountInfo{BuyingPowerUSD: 4000, CashKRW: 0, ExchangeRate: 0}, nil)
	suite.executor.EXPECT().Holdings(gomock.Any()).Return(nil, nil).AnyTimes()
	suite.executor.EXPECT().Balance(gomock.Any()).Return(types.BalanceReport{}, nil).AnyTimes() //nolint:exhaustruct
	suite.executor.EXPECT().Buy(gomock.Any(), gomock.Any()).
		Return(types.OrderResult{}, errors.New(errors.ErrCodeOrderRejected, "insufficient buying power")).Times(2) //nolint:exhaustruct
	suite.expectMarketData()
	suite.script("NVDA", 105)
	suite.script("AAPL", 101)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var failed []types.OrderStatus

	var phases []types.Phase

	var statuses []types.EngineStatus

	callbacks := cancelAfter(2, cancel, &phases, &statuses)
	onFailed := engine.OnOrderFailedCallback(func(_ types.OrderRequest, status types.OrderStatus, _ error) {
		failed = append(failed, status)
	})
	callbacks.OnOrderFailed = &onFailed

	suite.ErrorIs(e.Run(ctx, callbacks), context.Canceled)
	suite.Equal(0, e.ledger.Len())
	suite.Equal([]types.OrderStatus{types.OrderStatusRejected, types.OrderStatusRejected}, failed)
	suite.Equal(2, e.statsTracker.GetDailyStats().Orders.Rejected)
	suite.True(suite.containsMessage("[BUY FAILED] NVDA", true))
}

func (suite *SessionEngineV1TestSuite) TestSymbolFailureDoesNotStopThePass() {
	e := suite.newEngine(suite.at(10, 0), 4)
	suite.expectBroker(4000, nil)
	suite.marketData.EXPECT().DailyHistory(gomock.Any(), gomock.Any(), gomock.Any()).Return(history(), nil).AnyTimes()
	suite.marketData.EXPECT().CurrentPrice(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, sym types.Symbol) (float64, error) {
			if sym.Code == "NVDA" {
				panic("quote decoder exploded")
			}

			return 105, nil
		}).AnyTimes()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var errs []error

	var phases []types.Phase

	var statuses []types.EngineStatus

	callbacks := cancelAfter(1, cancel, &phases, &statuses)
	onError := engine.OnErrorCallback(func(err error) { errs = append(errs, err) })
	callbacks.OnError = &onError

	suite.ErrorIs(e.Run(ctx, callbacks), context.Canceled)
	suite.Require().Len(suite.orders, 1)
	suite.Equal("AAPL", suite.orders[0].Symbol.Code)
	suite.Require().NotEmpty(errs)
	suite.Contains(errs[0].Error(), "panic while processing NVDA")
}

func (suite *SessionEngineV1TestSuite) TestHungQuoteTimesOutAndPassContinues() {
	cfg := suite.config(4)
	cfg.CallTimeout = 50 * time.Millisecond
	e := suite.newEngineWithConfig(suite.at(10, 0), cfg)
	suite.expectBroker(4000, nil)
	suite.marketData.EXPECT().DailyHistory(gomock.Any(), gomock.Any(), gomock.Any()).Return(history(), nil).AnyTimes()
	suite.marketData.EXPECT().CurrentPrice(gomock.Any(), gomock.Any()).DoAndReturn(
		func(ctx context.Context, sym types.Symbol) (float64, error) {
			if sym.Code == "NVDA" {
				<-ctx.Done()

				return 0, ctx.Err()
			}

			return 105, nil
		}).AnyTimes()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var errs []error

	var phases []types.Phase

	var statuses []types.EngineStatus

	callbacks := cancelAfter(1, cancel, &phases, &statuses)
	onError := engine.OnErrorCallback(func(err error) { errs = append(errs, err) })
	callbacks.OnError = &onError

	started := time.Now()
	suite.ErrorIs(e.Run(ctx, callbacks), context.Canceled)
	suite.Less(time.Since(started), 5*time.Second)

	suite.Require().Len(suite.orders, 1)
	suite.Equal("AAPL", suite.orders[0].Symbol.Code)
	suite.Equal(1, e.ledger.Len())

	suite.Require().Len(errs, 1)
	suite.True(errors.IsTransient(errs[0]))
	suite.ErrorIs(errs[0], context.DeadlineExceeded)
	suite.Contains(errs[0].Error(), "NVDA")
}

func (suite *SessionEngineV1TestSuite) TestTargetErrorSkipsSymbol() {
	e := suite.newEngine(suite.at(10, 0), 4)
	suite.expectBroker(4000, nil)
	suite.marketData.EXPECT().DailyHistory(gomock.Any(), gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, sym types.Symbol, _ int) ([]types.DailyBar, error) {
			if sym.Code == "NVDA" {
				return history()[:1], nil
			}

			return history(), nil
		}).AnyTimes()
	suite.marketData.EXPECT().CurrentPrice(gomock.Any(), gomock.Any()).Return(105.0, nil).AnyTimes()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var phases []types.Phase

	var statuses []types.EngineStatus

	suite.ErrorIs(e.Run(ctx, cancelAfter(1, cancel, &phases, &statuses)), context.Canceled)
	suite.True(suite.containsMessage("[target error] NVDA", false))
	suite.Require().Len(suite.orders, 1)
	suite.Equal("AAPL", suite.orders[0].Symbol.Code)
}

func (suite *SessionEngineV1TestSuite) TestNewTradingDayResetsDayState() {
	e := suite.newEngine(suite.at(10, 0), 4)
	e.beginDay(suite.at(10, 0))

	_, err := e.ledger.Open(types.Symbol{Code: "NVDA", Segment: types.SegmentNASDAQ}, 100, 1)
	suite.Require().NoError(err)
	e.announcements.MarkAnnounced("NVDA")
	e.preOpenDone = true
	e.closeOutDone = true
	e.residual["TSLA"] = 3

	e.beginDay(suite.at(15, 0))
	suite.Equal(1, e.ledger.Len())

	e.beginDay(time.Date(2025, 6, 3, 9, 31, 0, 0, suite.ny))
	suite.Equal(0, e.ledger.Len())
	suite.Equal(0, e.announcements.Len())
	suite.False(e.preOpenDone)
	suite.False(e.closeOutDone)
	suite.Empty(e.residual)
	suite.Equal("2025-06-03", e.tradingDate)
}

func (suite *SessionEngineV1TestSuite) TestGetConfigSchema() {
	e := NewSessionEngineV1WithClock(logger.NewNopLogger(), nil)

	schema, err := e.GetConfigSchema()
	suite.NoError(err)
	suite.Contains(schema, "watch_list")
	suite.Contains(schema, "target_buy_count")
}

func TestFormatBalance(t *testing.T) {
	report := types.BalanceReport{
		Holdings: []types.Holding{
			{Code: "NVDA", Name: "NVIDIA", Quantity: 9},
			{Code: "AAPL", Name: "APPLE", Quantity: 0},
		},
		EvaluationPnL: 12.5,
		TotalPnL:      -3,
	}

	out := FormatBalance(report)
	if !strings.Contains(out, "NVIDIA(NVDA): 9 shares") || strings.Contains(out, "AAPL") {
		t.Fatalf("unexpected holdings section: %q", out)
	}

	if !strings.Contains(out, "Evaluation PnL: $12.50") || !strings.Contains(out, "Total PnL: $-3.00") {
		t.Fatalf("unexpected totals: %q", out)
	}

	empty := FormatBalance(types.BalanceReport{}) //nolint:exhaustruct
	if !strings.Contains(empty, "(none)") {
		t.Fatalf("expected empty marker: %q", empty)
	}
}
