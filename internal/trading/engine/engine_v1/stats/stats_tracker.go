package stats

import (
	"sync"
	"time"

	"github.com/rxtech-lab/argo-autotrade/internal/logger"
	"github.com/rxtech-lab/argo-autotrade/internal/types"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// StatsAccumulator holds running statistics for closed round trips and order outcomes.
type StatsAccumulator struct {
	TotalTrades   int
	WinningTrades int
	LosingTrades  int
	RealizedPnL   decimal.Decimal
	MaxProfit     decimal.Decimal
	MaxLoss       decimal.Decimal
	HoldingTimes  []int // in seconds
	Orders        types.OrderCounts
	ExitReasons   map[string]int
}

// StatsTracker tracks trading statistics for the running session.
// PnL is measured from reference prices; the broker's fill prices are not known.
type StatsTracker struct {
	symbols      []string
	runID        string
	sessionStart time.Time
	currentDate  string
	lastPhase    types.Phase

	// Daily accumulators (reset on date boundary)
	dailyStats *StatsAccumulator

	// Cumulative accumulators (from session start)
	cumulativeStats *StatsAccumulator

	statsOutputPath string

	mu     sync.Mutex
	logger *logger.Logger
	now    func() time.Time
}

// NewStatsTracker creates a new StatsTracker instance.
func NewStatsTracker(log *logger.Logger, now func() time.Time) *StatsTracker {
	if now == nil {
		now = time.Now
	}

	return &StatsTracker{
		symbols:         nil,
		runID:           "",
		sessionStart:    time.Time{},
		currentDate:     "",
		lastPhase:       types.PhaseClosed,
		dailyStats:      newStatsAccumulator(),
		cumulativeStats: newStatsAccumulator(),
		statsOutputPath: "",
		mu:              sync.Mutex{},
		logger:          log.Named("stats"),
		now:             now,
	}
}

func newStatsAccumulator() *StatsAccumulator {
	return &StatsAccumulator{
		TotalTrades:   0,
		WinningTrades: 0,
		LosingTrades:  0,
		RealizedPnL:   decimal.Zero,
		MaxProfit:     decimal.Zero,
		MaxLoss:       decimal.Zero,
		HoldingTimes:  make([]int, 0),
		Orders:        types.OrderCounts{Buys: 0, Sells: 0, Rejected: 0, Failed: 0},
		ExitReasons:   make(map[string]int),
	}
}

// Initialize sets up the stats tracker with session information.
func (s *StatsTracker) Initialize(symbols []string, runID string, sessionStart time.Time, tradingDate string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.symbols = symbols
	s.runID = runID
	s.sessionStart = sessionStart
	s.currentDate = tradingDate

	s.logger.Info("Stats tracker initialized",
		zap.String("run_id", runID),
		zap.Strings("symbols", symbols),
	)
}

// SetOutputPath sets where WriteStatsYAML writes. An empty path disables writing.
func (s *StatsTracker) SetOutputPath(path string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.statsOutputPath = path
}

// RecordOrder counts an order submission by side and outcome.
func (s *StatsTracker) RecordOrder(side types.PurchaseType, status types.OrderStatus) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, acc := range []*StatsAccumulator{s.dailyStats, s.cumulativeStats} {
		switch status {
		case types.OrderStatusFilled:
			if side == types.PurchaseTypeBuy {
				acc.Orders.Buys++
			} else {
				acc.Orders.Sells++
			}
		case types.OrderStatusRejected:
			acc.Orders.Rejected++
		case types.OrderStatusFailed:
			acc.Orders.Failed++
		}
	}
}

// RecordRoundTrip records a closed position sold at exitPrice.
func (s *StatsTracker) RecordRoundTrip(pos types.Position, exitPrice float64, reason string, closedAt time.Time) {
	pnl := decimal.NewFromFloat(exitPrice).
		Sub(decimal.NewFromFloat(pos.EntryPrice)).
		Mul(decimal.NewFromInt(int64(pos.Quantity))).
		Round(2)

	holding := 0
	if !pos.OpenedAt.IsZero() && closedAt.After(pos.OpenedAt) {
		holding = int(closedAt.Sub(pos.OpenedAt).Seconds())
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.updateAccumulator(s.dailyStats, pnl, holding, reason)
	s.updateAccumulator(s.cumulativeStats, pnl, holding, reason)

	s.logger.Debug("Round trip recorded",
		zap.String("symbol", pos.Symbol.Code),
		zap.String("pnl", pnl.StringFixed(2)),
		zap.String("reason", reason),
		zap.Int("total_trades", s.cumulativeStats.TotalTrades),
	)
}

//nolint:funcorder // helper method used by RecordRoundTrip
func (s *StatsTracker) updateAccumulator(acc *StatsAccumulator, pnl decimal.Decimal, holding int, reason string) {
	acc.TotalTrades++
	acc.RealizedPnL = acc.RealizedPnL.Add(pnl)

	if pnl.IsPositive() {
		acc.WinningTrades++
	} else if pnl.IsNegative() {
		acc.LosingTrades++
	}

	if pnl.GreaterThan(acc.MaxProfit) {
		acc.MaxProfit = pnl
	}

	if pnl.LessThan(acc.MaxLoss) {
		acc.MaxLoss = pnl
	}

	if holding > 0 {
		acc.HoldingTimes = append(acc.HoldingTimes, holding)
	}

	if reason != "" {
		acc.ExitReasons[reason]++
	}
}

// SetPhase records the latest session phase.
func (s *StatsTracker) SetPhase(phase types.Phase) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.lastPhase = phase
}

// HandleDateBoundary resets daily stats while keeping cumulative stats.
func (s *StatsTracker) HandleDateBoundary(newDate string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	oldDate := s.currentDate
	s.currentDate = newDate
	s.dailyStats = newStatsAccumulator()

	s.logger.Info("Date boundary handled, daily stats reset",
		zap.String("old_date", oldDate),
		zap.String("new_date", newDate),
	)
}

// GetDailyStats returns the current daily statistics.
func (s *StatsTracker) GetDailyStats() types.LiveTradeStats {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.buildLiveTradeStats(s.dailyStats, s.currentDate)
}

// GetCumulativeStats returns the cumulative statistics from session start.
func (s *StatsTracker) GetCumulativeStats() types.LiveTradeStats {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.buildLiveTradeStats(s.cumulativeStats, s.currentDate)
}

//nolint:funcorder // helper method used by GetDailyStats, GetCumulativeStats, WriteStatsYAML
func (s *StatsTracker) buildLiveTradeStats(acc *StatsAccumulator, date string) types.LiveTradeStats {
	winRate := 0.0
	if acc.TotalTrades > 0 {
		winRate = float64(acc.WinningTrades) / float64(acc.TotalTrades)
	}

	holdingTime := types.TradeHoldingTime{
		Min: 0,
		Max: 0,
		Avg: 0,
	}

	if len(acc.HoldingTimes) > 0 {
		minTime := acc.HoldingTimes[0]
		maxTime := acc.HoldingTimes[0]
		totalTime := 0

		for _, t := range acc.HoldingTimes {
			totalTime += t
			minTime = min(minTime, t)
			maxTime = max(maxTime, t)
		}

		holdingTime.Min = minTime
		holdingTime.Max = maxTime
		holdingTime.Avg = totalTime / len(acc.HoldingTimes)
	}

	reasons := make(map[string]int, len(acc.ExitReasons))
	for k, v := range acc.ExitReasons {
		reasons[k] = v
	}

	realized, _ := acc.RealizedPnL.Float64()
	maxProfit, _ := acc.MaxProfit.Float64()
	maxLoss, _ := acc.MaxLoss.Float64()

	return types.LiveTradeStats{
		ID:           s.runID,
		Date:         date,
		SessionStart: s.sessionStart,
		LastUpdated:  s.now(),
		Symbols:      s.symbols,
		TradeResult: types.TradeResult{
			NumberOfTrades:        acc.TotalTrades,
			NumberOfWinningTrades: acc.WinningTrades,
			NumberOfLosingTrades:  acc.LosingTrades,
			WinRate:               winRate,
		},
		TradePnl: types.TradePnl{
			RealizedPnL:   realized,
			MaximumLoss:   maxLoss,
			MaximumProfit: maxProfit,
		},
		TradeHoldingTime: holdingTime,
		Orders:           acc.Orders,
		ExitReasons:      reasons,
		LastPhase:        s.lastPhase,
	}
}

// WriteStatsYAML writes the current daily stats to the stats.yaml file.
func (s *StatsTracker) WriteStatsYAML() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.statsOutputPath == "" {
		return nil
	}

	return types.WriteLiveTradeStats(s.statsOutputPath, s.buildLiveTradeStats(s.dailyStats, s.currentDate))
}

func (s *StatsTracker) GetStatsOutputPath() string {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.statsOutputPath
}

func (s *StatsTracker) GetCurrentDate() string {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.currentDate
}

func (s *StatsTracker) GetRunID() string {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.runID
}
