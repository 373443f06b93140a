package engine_v1

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rxtech-lab/argo-autotrade/internal/logger"
	"github.com/rxtech-lab/argo-autotrade/internal/notify"
	"github.com/rxtech-lab/argo-autotrade/internal/risk"
	"github.com/rxtech-lab/argo-autotrade/internal/strategy/breakout"
	"github.com/rxtech-lab/argo-autotrade/internal/trading/engine"
	"github.com/rxtech-lab/argo-autotrade/internal/trading/engine/engine_v1/session"
	"github.com/rxtech-lab/argo-autotrade/internal/trading/engine/engine_v1/stats"
	"github.com/rxtech-lab/argo-autotrade/internal/trading/ledger"
	tradingprovider "github.com/rxtech-lab/argo-autotrade/internal/trading/provider"
	"github.com/rxtech-lab/argo-autotrade/internal/types"
	"github.com/rxtech-lab/argo-autotrade/internal/utils"
	"github.com/rxtech-lab/argo-autotrade/internal/watchlist"
	"github.com/rxtech-lab/argo-autotrade/pkg/errors"
	"github.com/rxtech-lab/argo-autotrade/pkg/marketdata/provider"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const statsFileName = "stats.yaml"

// SessionEngineV1 drives one trading day: flatten residual holdings after the open,
// manage risk and enter breakouts while active, flatten everything before the close.
type SessionEngineV1 struct {
	config         engine.SessionEngineConfig
	marketData     provider.MarketDataPort
	executor       tradingprovider.TradeExecutor
	sink           notify.Sink
	clock          session.Clock
	log            *logger.Logger
	initialized    bool
	dataOutputPath string

	watchList     *watchlist.WatchList
	calendar      *session.Calendar
	evaluator     *risk.Evaluator
	ledger        *ledger.Ledger
	announcements *breakout.AnnouncementSet
	targets       *breakout.TargetService

	sessionManager *session.SessionManager
	statsTracker   *stats.StatsTracker

	// Day-scoped state, reset when the trading date changes.
	tradingDate  string
	phase        types.Phase
	preOpenDone  bool
	closeOutDone bool
	residual     map[string]int
	allocation   float64

	// lastPrices keeps the latest quote per code; it prices a flatten sell when a quote fails.
	lastPrices map[string]float64
}

var _ engine.SessionEngine = (*SessionEngineV1)(nil)

// NewSessionEngineV1 creates a session engine on the system clock.
func NewSessionEngineV1() (engine.SessionEngine, error) {
	log, err := logger.NewLogger()
	if err != nil {
		return nil, err
	}

	return NewSessionEngineV1WithClock(log, session.SystemClock{}), nil
}

// NewSessionEngineV1WithClock creates a session engine with an explicit logger and clock.
func NewSessionEngineV1WithClock(log *logger.Logger, clock session.Clock) *SessionEngineV1 {
	if clock == nil {
		clock = session.SystemClock{}
	}

	return &SessionEngineV1{
		config:         engine.SessionEngineConfig{}, //nolint:exhaustruct // initialized via Initialize()
		marketData:     nil,
		executor:       nil,
		sink:           nil,
		clock:          clock,
		log:            log.Named("session_engine"),
		initialized:    false,
		dataOutputPath: "",
		watchList:      nil,
		calendar:       nil,
		evaluator:      nil,
		ledger:         nil,
		announcements:  nil,
		targets:        nil,
		sessionManager: nil,
		statsTracker:   nil,
		tradingDate:    "",
		phase:          types.PhaseClosed,
		preOpenDone:    false,
		closeOutDone:   false,
		residual:       make(map[string]int),
		allocation:     0,
		lastPrices:     make(map[string]float64),
	}
}

// Initialize implements engine.SessionEngine.
func (e *SessionEngineV1) Initialize(config engine.SessionEngineConfig) error {
	if config.TargetBuyCount <= 0 {
		config.TargetBuyCount = engine.DefaultTargetBuyCount
	}

	if config.SlotFraction <= 0 {
		config.SlotFraction = engine.DefaultSlotFraction
	}

	if config.PollInterval <= 0 {
		config.PollInterval = engine.DefaultPollInterval
	}

	if config.CallTimeout <= 0 {
		config.CallTimeout = engine.DefaultCallTimeout
	}

	if err := config.Validate(); err != nil {
		return err
	}

	watchList, err := watchlist.New(config.WatchList)
	if err != nil {
		return err
	}

	calendar, err := session.NewCalendar(config.Calendar)
	if err != nil {
		return err
	}

	e.config = config
	e.watchList = watchList
	e.calendar = calendar
	e.evaluator = risk.NewEvaluator(config.Risk)
	e.ledger = ledger.New(e.clock.Now)
	e.announcements = breakout.NewAnnouncementSet()
	e.sessionManager = session.NewSessionManager(calendar, e.log)
	e.statsTracker = stats.NewStatsTracker(e.log, e.clock.Now)
	e.initialized = true

	e.log.Info("Session engine initialized",
		zap.Strings("watch_list", watchList.Codes()),
		zap.Int("target_buy_count", config.TargetBuyCount),
		zap.Float64("slot_fraction", config.SlotFraction),
		zap.Duration("poll_interval", config.PollInterval),
		zap.String("calendar", config.Calendar.Timezone),
	)

	return nil
}

// SetMarketDataProvider implements engine.SessionEngine.
func (e *SessionEngineV1) SetMarketDataProvider(marketData provider.MarketDataPort) error {
	if marketData == nil {
		return errors.New(errors.ErrCodeMissingParameter, "market data provider is nil")
	}

	e.marketData = marketData

	return nil
}

// SetTradeExecutor implements engine.SessionEngine.
func (e *SessionEngineV1) SetTradeExecutor(executor tradingprovider.TradeExecutor) error {
	if executor == nil {
		return errors.New(errors.ErrCodeMissingParameter, "trade executor is nil")
	}

	e.executor = executor

	return nil
}

// SetNotifier implements engine.SessionEngine.
func (e *SessionEngineV1) SetNotifier(sink notify.Sink) error {
	if sink == nil {
		return errors.New(errors.ErrCodeMissingParameter, "notification sink is nil")
	}

	e.sink = sink

	return nil
}

// SetDataOutputPath implements engine.SessionEngine.
func (e *SessionEngineV1) SetDataOutputPath(path string) error {
	e.dataOutputPath = path

	return nil
}

// GetConfigSchema implements engine.SessionEngine.
func (e *SessionEngineV1) GetConfigSchema() (string, error) {
	return engine.GetConfigSchema()
}

// Run implements engine.SessionEngine.
func (e *SessionEngineV1) Run(ctx context.Context, callbacks engine.SessionCallbacks) error {
	var runErr error

	// Always call OnEngineStop when Run exits
	defer func() {
		status := types.EngineStatusStopped
		if runErr != nil && !errors.Is(runErr, context.Canceled) {
			status = types.EngineStatusFailed
		}

		if callbacks.OnStatusUpdate != nil {
			_ = (*callbacks.OnStatusUpdate)(status)
		}

		if e.statsTracker != nil {
			if err := e.statsTracker.WriteStatsYAML(); err != nil {
				e.log.Warn("Failed to write final stats", zap.Error(err))
			}
		}

		if callbacks.OnEngineStop != nil {
			(*callbacks.OnEngineStop)(runErr)
		}
	}()

	if err := e.preRunCheck(); err != nil {
		runErr = err

		return err
	}

	e.targets = breakout.NewTargetService(e.marketData, e.config.Breakout,
		breakout.NewNotifyAnnouncer(e.announcements, e.sink), e.log,
		breakout.WithTradingDate(func() string { return e.tradingDate }))

	if callbacks.OnStatusUpdate != nil {
		_ = (*callbacks.OnStatusUpdate)(types.EngineStatusStarting)
	}

	now := e.clock.Now()
	e.beginDay(now)

	e.phase = e.calendar.Phase(now)
	if e.phase.Ends() {
		e.notify(ctx, fmt.Sprintf("Market is not open (%s). Exiting.", e.phase), true)

		return nil
	}

	if err := e.startSession(ctx, callbacks, now); err != nil {
		runErr = err

		return err
	}

	if callbacks.OnStatusUpdate != nil {
		_ = (*callbacks.OnStatusUpdate)(types.EngineStatusRunning)
	}

	loopCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	g, gctx := errgroup.WithContext(loopCtx)

	if e.config.BalanceInterval > 0 {
		g.Go(func() error {
			e.balanceLoop(gctx)

			return nil
		})
	}

	g.Go(func() error {
		defer cancel()

		return e.loop(gctx, callbacks)
	})

	runErr = g.Wait()

	return runErr
}

// preRunCheck validates that all required components are configured before running.
func (e *SessionEngineV1) preRunCheck() error {
	if !e.initialized {
		return errors.New(errors.ErrCodeSessionInitFailed, "engine not initialized - call Initialize() first")
	}

	if e.marketData == nil {
		return errors.New(errors.ErrCodeSessionInitFailed, "market data provider not set - call SetMarketDataProvider() first")
	}

	if e.executor == nil {
		return errors.New(errors.ErrCodeSessionInitFailed, "trade executor not set - call SetTradeExecutor() first")
	}

	if e.sink == nil {
		return errors.New(errors.ErrCodeSessionInitFailed, "notifier not set - call SetNotifier() first")
	}

	return nil
}

// startSession checks the broker, sizes the slots, loads residual holdings and
// sends the opening banner. Broker failures here are fatal.
func (e *SessionEngineV1) startSession(ctx context.Context, callbacks engine.SessionCallbacks, now time.Time) error {
	callCtx, cancel := e.callContext(ctx)
	err := e.executor.CheckConnection(callCtx)

	cancel()

	if err != nil {
		e.notify(ctx, fmt.Sprintf("[FATAL] broker connection failed: %v", err), true)

		return errors.Wrap(errors.ErrCodeFatal, "broker connection check failed", err)
	}

	callCtx, cancel = e.callContext(ctx)
	account, err := e.executor.AccountInfo(callCtx)

	cancel()

	if err != nil {
		e.notify(ctx, fmt.Sprintf("[FATAL] failed to load account: %v", err), true)

		return errors.Wrap(errors.ErrCodeFatal, "failed to load account info", err)
	}

	e.allocation = utils.SlotAllocation(account.BuyingPowerUSD, e.config.SlotFraction)

	if e.dataOutputPath != "" {
		if err := e.sessionManager.Initialize(e.dataOutputPath, now); err != nil {
			return err
		}

		e.statsTracker.SetOutputPath(e.sessionManager.GetFilePath(statsFileName))
	}

	e.statsTracker.Initialize(e.watchList.Codes(), e.sessionManager.GetRunID(), now, e.tradingDate)
	e.statsTracker.SetPhase(e.phase)
	e.loadResidualHoldings(ctx, callbacks)

	e.notify(ctx, "=== US stock auto-trade started ===", true)
	e.notify(ctx, fmt.Sprintf("Target buy count: %d, slot fraction: %.0f%%, buying power: $%.2f, per slot: $%.2f",
		e.config.TargetBuyCount, e.config.SlotFraction*100, account.BuyingPowerUSD, e.allocation), true)

	rc := e.evaluator.Config()
	e.notify(ctx, fmt.Sprintf("Risk: stop-loss %.1f%%, take-profit %.1f%%, trailing stop %.1f%% once up %.1f%%",
		rc.StopLossPct*100, rc.ProfitPct*100, rc.TrailingPct*100, rc.ActivationPct*100), true)
	e.notify(ctx, "Session: "+e.calendar.Describe(now), false)
	e.notify(ctx, fmt.Sprintf("Phase: %s", e.phase), true)

	e.announceTargets(ctx)
	e.reportBalance(ctx)

	if callbacks.OnEngineStart != nil {
		if err := (*callbacks.OnEngineStart)(e.watchList.Codes(), account.BuyingPowerUSD, e.allocation); err != nil {
			return errors.Wrap(errors.ErrCodeCallbackFailed, "OnEngineStart callback failed", err)
		}
	}

	return nil
}

// loadResidualHoldings records broker positions this process did not open.
// They count toward the held total and are sold by the next flatten.
func (e *SessionEngineV1) loadResidualHoldings(ctx context.Context, callbacks engine.SessionCallbacks) {
	callCtx, cancel := e.callContext(ctx)
	defer cancel()

	holdings, err := e.executor.Holdings(callCtx)
	if err != nil {
		e.reportError(ctx, callbacks, errors.Wrap(errors.ErrCodeDataUnavailable, "failed to load holdings", err))

		return
	}

	for _, h := range holdings {
		if h.Quantity <= 0 || e.ledger.Held(h.Code) {
			continue
		}

		e.residual[h.Code] = h.Quantity
	}

	if len(e.residual) > 0 {
		e.log.Info("Residual holdings loaded", zap.Int("count", len(e.residual)))
	}
}

// announceTargets computes every watch-list target up front so the day's levels are posted at startup.
func (e *SessionEngineV1) announceTargets(ctx context.Context) {
	for _, sym := range e.watchList.Symbols() {
		callCtx, cancel := e.callContext(ctx)
		_, err := e.targets.Target(callCtx, sym)

		cancel()

		if err != nil {
			e.notify(ctx, fmt.Sprintf("[target error] %s: %v", sym.Code, err), false)
		}
	}
}

func (e *SessionEngineV1) loop(ctx context.Context, callbacks engine.SessionCallbacks) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		now := e.clock.Now()
		e.beginDay(now)

		phase := e.calendar.Phase(now)
		if phase != e.phase {
			if err := e.changePhase(ctx, callbacks, phase); err != nil {
				return err
			}
		}

		if phase.Ends() {
			e.finishSession(ctx, callbacks)

			return nil
		}

		switch phase {
		case types.PhasePreOpenFlatten:
			if !e.preOpenDone {
				e.preOpenDone = e.flatten(ctx, callbacks, types.OrderReasonPreOpenFlatten)
			}
		case types.PhaseActive:
			e.riskPass(ctx, callbacks)
			e.entryPass(ctx, callbacks)
		case types.PhaseCloseOutFlatten:
			if !e.closeOutDone {
				e.closeOutDone = e.flatten(ctx, callbacks, types.OrderReasonCloseOutFlatten)
			}
		case types.PhaseClosed, types.PhaseTerminated:
		}

		if callbacks.OnTick != nil {
			(*callbacks.OnTick)(now, phase, e.heldCount())
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-e.clock.After(e.config.PollInterval):
		}
	}
}

func (e *SessionEngineV1) changePhase(ctx context.Context, callbacks engine.SessionCallbacks, phase types.Phase) error {
	from := e.phase
	e.phase = phase
	e.statsTracker.SetPhase(phase)

	e.log.Info("Session phase changed", zap.String("from", string(from)), zap.String("to", string(phase)))
	e.notify(ctx, fmt.Sprintf("Phase: %s -> %s", from, phase), true)

	if callbacks.OnPhaseChange != nil {
		if err := (*callbacks.OnPhaseChange)(from, phase); err != nil {
			return errors.Wrap(errors.ErrCodeCallbackFailed, "OnPhaseChange callback failed", err)
		}
	}

	return nil
}

func (e *SessionEngineV1) finishSession(ctx context.Context, callbacks engine.SessionCallbacks) {
	e.publishStats(callbacks)
	e.reportBalance(ctx)
	e.notify(ctx, fmt.Sprintf("Session ended (%s). Open positions: %d.", e.phase, e.heldCount()), true)
}

// beginDay resets day-scoped state when the trading date moves.
func (e *SessionEngineV1) beginDay(now time.Time) {
	date := e.calendar.TradingDate(now)
	if date == e.tradingDate {
		return
	}

	previous := e.tradingDate
	e.tradingDate = date

	if previous == "" {
		return
	}

	e.ledger.Reset()
	e.announcements.Reset()
	e.preOpenDone = false
	e.closeOutDone = false
	e.residual = make(map[string]int)
	e.statsTracker.HandleDateBoundary(date)

	if e.dataOutputPath != "" && e.sessionManager.GetRunID() != "" {
		if _, err := e.sessionManager.HandleDateBoundary(now); err != nil {
			e.log.Warn("Failed to move session folder", zap.Error(err))
		} else {
			e.statsTracker.SetOutputPath(e.sessionManager.GetFilePath(statsFileName))
		}
	}

	e.log.Info("New trading day", zap.String("previous", previous), zap.String("date", date))
}

// riskPass evaluates held positions in watch-list order.
func (e *SessionEngineV1) riskPass(ctx context.Context, callbacks engine.SessionCallbacks) {
	for _, sym := range e.watchList.Symbols() {
		if ctx.Err() != nil {
			return
		}

		if !e.ledger.Held(sym.Code) {
			continue
		}

		e.guard(ctx, callbacks, sym, func() {
			e.checkExit(ctx, callbacks, sym)
		})
	}
}

func (e *SessionEngineV1) checkExit(ctx context.Context, callbacks engine.SessionCallbacks, sym types.Symbol) {
	price, err := e.currentPrice(ctx, sym)
	if err != nil {
		e.reportError(ctx, callbacks, err)

		return
	}

	// The mark must include this price before the rules are applied.
	e.ledger.UpdateHighWaterMark(sym.Code, price)

	held := e.ledger.Get(sym.Code)
	if held.IsNone() {
		return
	}

	pos := held.Unwrap()

	ev := e.evaluator.Evaluate(pos, price)
	if !ev.Decision.ShouldExit() {
		return
	}

	e.log.Info("Exit signal",
		zap.String("symbol", sym.Code),
		zap.String("decision", string(ev.Decision)),
		zap.Float64("price", price),
		zap.Float64("entry", pos.EntryPrice),
		zap.Float64("high_water_mark", pos.HighWaterMark),
	)

	if callbacks.OnExitSignal != nil {
		(*callbacks.OnExitSignal)(pos, ev.Decision, price)
	}

	e.notify(ctx, risk.Describe(pos, price, ev), true)

	order := types.NewOrderRequest(sym, types.PurchaseTypeSell, pos.Quantity, price, ev.Decision.OrderReason(),
		fmt.Sprintf("%.2f%% from %.2f", ev.ChangePct*100, ev.ReferencePrice))

	if !e.submit(ctx, callbacks, order) {
		return
	}

	e.closePosition(sym.Code, price, ev.Decision.OrderReason())
	e.publishStats(callbacks)
	e.reportBalance(ctx)
}

// entryPass buys breakouts in watch-list order while slots are free.
func (e *SessionEngineV1) entryPass(ctx context.Context, callbacks engine.SessionCallbacks) {
	for _, sym := range e.watchList.Symbols() {
		if ctx.Err() != nil {
			return
		}

		if e.heldCount() >= e.config.TargetBuyCount {
			return
		}

		if e.isHeld(sym.Code) {
			continue
		}

		e.guard(ctx, callbacks, sym, func() {
			e.tryEnter(ctx, callbacks, sym)
		})
	}
}

func (e *SessionEngineV1) tryEnter(ctx context.Context, callbacks engine.SessionCallbacks, sym types.Symbol) {
	callCtx, cancel := e.callContext(ctx)
	target, err := e.targets.Target(callCtx, sym)

	cancel()

	if err != nil {
		e.reportError(ctx, callbacks, err)

		return
	}

	price, err := e.currentPrice(ctx, sym)
	if err != nil {
		e.reportError(ctx, callbacks, err)

		return
	}

	if !(target.Price < price) {
		return
	}

	qty := utils.CalculateMaxQuantity(e.allocation, price)
	if qty <= 0 {
		e.log.Debug("Slot too small for one share",
			zap.String("symbol", sym.Code),
			zap.Float64("price", price),
			zap.Float64("allocation", e.allocation),
		)

		return
	}

	order := types.NewOrderRequest(sym, types.PurchaseTypeBuy, qty, price, types.OrderReasonBreakout,
		fmt.Sprintf("target %.2f < current %.2f", target.Price, price))

	if !e.submit(ctx, callbacks, order) {
		return
	}

	if _, err := e.ledger.Open(sym, price, qty); err != nil {
		e.reportError(ctx, callbacks, err)

		return
	}

	e.publishStats(callbacks)
	e.reportBalance(ctx)
}

type flattenOutcome int

const (
	flattenSold flattenOutcome = iota
	flattenFailed
	// flattenDeferred means no price was available; the next tick retries the holding.
	flattenDeferred
)

// flatten sells every broker holding. It returns false when the holdings could not be
// loaded or a holding could not be priced, so the next tick in the window tries again.
// Orders the broker refused are reported and not retried.
func (e *SessionEngineV1) flatten(ctx context.Context, callbacks engine.SessionCallbacks, reason string) bool {
	callCtx, cancel := e.callContext(ctx)
	holdings, err := e.executor.Holdings(callCtx)

	cancel()

	if err != nil {
		e.reportError(ctx, callbacks, errors.Wrap(errors.ErrCodeDataUnavailable, "failed to load holdings for flatten", err))

		return false
	}

	sold, deferred := 0, 0

	for _, h := range holdings {
		if h.Quantity <= 0 {
			continue
		}

		sym, ok := e.watchList.Lookup(h.Code)
		if !ok {
			sym = types.Symbol{Code: h.Code, Segment: types.SegmentNASDAQ}
		}

		e.guard(ctx, callbacks, sym, func() {
			switch e.flattenHolding(ctx, callbacks, sym, h.Quantity, reason) {
			case flattenSold:
				sold++
			case flattenDeferred:
				deferred++
			case flattenFailed:
			}
		})
	}

	if deferred > 0 {
		e.notify(ctx, fmt.Sprintf("Flatten (%s): sold %d of %d holdings, %d waiting for a price",
			reason, sold, countPositive(holdings), deferred), false)
	} else {
		e.notify(ctx, fmt.Sprintf("Flatten (%s): sold %d of %d holdings", reason, sold, countPositive(holdings)), true)
	}

	if sold > 0 {
		e.publishStats(callbacks)
		e.reportBalance(ctx)
	}

	return deferred == 0
}

func (e *SessionEngineV1) flattenHolding(ctx context.Context, callbacks engine.SessionCallbacks, sym types.Symbol, quantity int, reason string) flattenOutcome {
	price, err := e.currentPrice(ctx, sym)
	if err != nil {
		fallback, ok := e.fallbackPrice(sym.Code)
		if !ok {
			e.reportError(ctx, callbacks, err)

			return flattenDeferred
		}

		e.log.Warn("Flattening at last known price",
			zap.String("symbol", sym.Code),
			zap.Float64("price", fallback),
			zap.Error(err),
		)

		price = fallback
	}

	order := types.NewOrderRequest(sym, types.PurchaseTypeSell, quantity, price, reason, "flatten")
	if !e.submit(ctx, callbacks, order) {
		return flattenFailed
	}

	delete(e.residual, sym.Code)

	if e.ledger.Held(sym.Code) {
		e.closePosition(sym.Code, price, reason)
	}

	return flattenSold
}

// fallbackPrice is the last quote seen for code, else the ledger's high-water mark.
func (e *SessionEngineV1) fallbackPrice(code string) (float64, bool) {
	if price, ok := e.lastPrices[code]; ok {
		return price, true
	}

	held := e.ledger.Get(code)
	if held.IsNone() {
		return 0, false
	}

	return held.Unwrap().HighWaterMark, true
}

// submit sends the order on a context detached from session cancellation so an
// in-flight order is never abandoned. It reports the outcome and returns true on success.
func (e *SessionEngineV1) submit(ctx context.Context, callbacks engine.SessionCallbacks, order types.OrderRequest) bool {
	if err := order.Validate(); err != nil {
		e.reportError(ctx, callbacks, err)

		return false
	}

	if callbacks.OnOrderPlaced != nil {
		if err := (*callbacks.OnOrderPlaced)(order); err != nil {
			e.log.Warn("OnOrderPlaced callback failed", zap.Error(err))
		}
	}

	orderCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), e.config.CallTimeout)
	defer cancel()

	var (
		result types.OrderResult
		err    error
	)

	if order.Side == types.PurchaseTypeBuy {
		result, err = e.executor.Buy(orderCtx, order)
	} else {
		result, err = e.executor.Sell(orderCtx, order)
	}

	if err != nil {
		status := types.OrderStatusFailed
		if errors.HasCode(err, errors.ErrCodeOrderRejected) {
			status = types.OrderStatusRejected
		}

		e.statsTracker.RecordOrder(order.Side, status)
		e.log.Warn("Order failed",
			zap.String("symbol", order.Symbol.Code),
			zap.String("side", string(order.Side)),
			zap.String("status", string(status)),
			zap.Error(err),
		)
		e.notify(ctx, fmt.Sprintf("[%s FAILED] %s x%d: %v", order.Side, order.Symbol.Code, order.Quantity, err), true)

		if callbacks.OnOrderFailed != nil {
			(*callbacks.OnOrderFailed)(order, status, err)
		}

		return false
	}

	e.statsTracker.RecordOrder(order.Side, types.OrderStatusFilled)
	e.log.Info("Order accepted",
		zap.String("symbol", order.Symbol.Code),
		zap.String("side", string(order.Side)),
		zap.Int("quantity", order.Quantity),
		zap.Float64("reference_price", order.ReferencePrice),
		zap.String("reason", order.Reason.Reason),
		zap.String("order_id", result.OrderID),
	)
	e.notify(ctx, fmt.Sprintf("[%s] %s x%d @ $%.2f (%s)",
		order.Side, order.Symbol.Code, order.Quantity, order.ReferencePrice, order.Reason.Reason), true)

	if callbacks.OnOrderFilled != nil {
		if err := (*callbacks.OnOrderFilled)(order, result); err != nil {
			e.log.Warn("OnOrderFilled callback failed", zap.Error(err))
		}
	}

	return true
}

func (e *SessionEngineV1) closePosition(code string, price float64, reason string) {
	pos, err := e.ledger.Close(code)
	if err != nil {
		e.log.Warn("Failed to close position", zap.String("symbol", code), zap.Error(err))

		return
	}

	e.statsTracker.RecordRoundTrip(pos, price, reason, e.clock.Now())
}

func (e *SessionEngineV1) currentPrice(ctx context.Context, sym types.Symbol) (float64, error) {
	callCtx, cancel := e.callContext(ctx)
	defer cancel()

	price, err := e.marketData.CurrentPrice(callCtx, sym)
	if err != nil {
		return 0, errors.Wrapf(errors.ErrCodeTransient, err, "failed to get price for %s", sym.Code)
	}

	if price <= 0 {
		return 0, errors.Newf(errors.ErrCodeDataUnavailable, "no price for %s", sym.Code)
	}

	e.lastPrices[sym.Code] = price

	return price, nil
}

// balanceLoop posts the balance report every BalanceInterval until ctx ends.
func (e *SessionEngineV1) balanceLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-e.clock.After(e.config.BalanceInterval):
			e.reportBalance(ctx)
		}
	}
}

func (e *SessionEngineV1) reportBalance(ctx context.Context) {
	callCtx, cancel := e.callContext(ctx)
	defer cancel()

	report, err := e.executor.Balance(callCtx)
	if err != nil {
		e.log.Warn("Failed to load balance", zap.Error(err))

		return
	}

	e.notify(ctx, FormatBalance(report), false)
}

// FormatBalance renders the holdings report.
func FormatBalance(report types.BalanceReport) string {
	var b strings.Builder

	b.WriteString("=== Holdings ===")

	count := 0

	for _, h := range report.Holdings {
		if h.Quantity <= 0 {
			continue
		}

		count++

		fmt.Fprintf(&b, "\n%s(%s): %d shares", h.Name, h.Code, h.Quantity)
	}

	if count == 0 {
		b.WriteString("\n(none)")
	}

	fmt.Fprintf(&b, "\nEvaluation PnL: $%.2f\nTotal PnL: $%.2f", report.EvaluationPnL, report.TotalPnL)

	return b.String()
}

func (e *SessionEngineV1) publishStats(callbacks engine.SessionCallbacks) {
	if err := e.statsTracker.WriteStatsYAML(); err != nil {
		e.log.Warn("Failed to write stats", zap.Error(err))
	}

	if callbacks.OnStatsUpdate != nil {
		if err := (*callbacks.OnStatsUpdate)(e.statsTracker.GetDailyStats()); err != nil {
			e.log.Warn("OnStatsUpdate callback failed", zap.Error(err))
		}
	}
}

// guard isolates one symbol's work: a panic is reported and the pass moves on.
func (e *SessionEngineV1) guard(ctx context.Context, callbacks engine.SessionCallbacks, sym types.Symbol, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			e.reportError(ctx, callbacks, errors.Newf(errors.ErrCodeUnknown, "panic while processing %s: %v", sym.Code, r))
		}
	}()

	fn()
}

func (e *SessionEngineV1) reportError(ctx context.Context, callbacks engine.SessionCallbacks, err error) {
	e.log.Warn("Session error", zap.Error(err))
	e.notify(ctx, "[error] "+err.Error(), false)

	if callbacks.OnError != nil {
		(*callbacks.OnError)(err)
	}
}

func (e *SessionEngineV1) notify(ctx context.Context, text string, urgent bool) {
	if e.sink == nil {
		return
	}

	e.sink.Notify(context.WithoutCancel(ctx), text, urgent)
}

func (e *SessionEngineV1) callContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, e.config.CallTimeout)
}

func (e *SessionEngineV1) isHeld(code string) bool {
	if e.ledger.Held(code) {
		return true
	}

	_, residual := e.residual[code]

	return residual
}

func (e *SessionEngineV1) heldCount() int {
	return e.ledger.Len() + len(e.residual)
}

func countPositive(holdings []types.Holding) int {
	n := 0

	for _, h := range holdings {
		if h.Quantity > 0 {
			n++
		}
	}

	return n
}
