package types

import (
	"os"
	"time"

	"github.com/rxtech-lab/argo-autotrade/pkg/errors"
	"gopkg.in/yaml.v3"
)

// TradeHoldingTime is in seconds.
type TradeHoldingTime struct {
	Min int `yaml:"min" json:"min"`
	Max int `yaml:"max" json:"max"`
	Avg int `yaml:"avg" json:"avg"`
}

// TradePnl is in USD, measured from reference prices.
type TradePnl struct {
	RealizedPnL   float64 `yaml:"realized_pnl" json:"realized_pnl"`
	MaximumLoss   float64 `yaml:"maximum_loss" json:"maximum_loss"`
	MaximumProfit float64 `yaml:"maximum_profit" json:"maximum_profit"`
}

// TradeResult counts closed round trips.
type TradeResult struct {
	NumberOfTrades        int     `yaml:"number_of_trades" json:"number_of_trades"`
	NumberOfWinningTrades int     `yaml:"number_of_winning_trades" json:"number_of_winning_trades"`
	NumberOfLosingTrades  int     `yaml:"number_of_losing_trades" json:"number_of_losing_trades"`
	WinRate               float64 `yaml:"win_rate" json:"win_rate"`
}

// OrderCounts counts order submissions by outcome.
type OrderCounts struct {
	Buys     int `yaml:"buys" json:"buys"`
	Sells    int `yaml:"sells" json:"sells"`
	Rejected int `yaml:"rejected" json:"rejected"`
	Failed   int `yaml:"failed" json:"failed"`
}

// LiveTradeStats contains statistics for one trading day of a session.
type LiveTradeStats struct {
	// ID is the run folder name (e.g., "run_1").
	ID string `yaml:"id" json:"id"`

	// Date is the trading date in YYYY-MM-DD format.
	Date string `yaml:"date" json:"date"`

	SessionStart time.Time `yaml:"session_start" json:"session_start"`
	LastUpdated  time.Time `yaml:"last_updated" json:"last_updated"`

	Symbols []string `yaml:"symbols" json:"symbols"`

	TradeResult      TradeResult      `yaml:"trade_result" json:"trade_result"`
	TradePnl         TradePnl         `yaml:"trade_pnl" json:"trade_pnl"`
	TradeHoldingTime TradeHoldingTime `yaml:"trade_holding_time" json:"trade_holding_time"`
	Orders           OrderCounts      `yaml:"orders" json:"orders"`

	// ExitReasons counts closing sells by reason (stop_loss, trailing_stop, ...).
	ExitReasons map[string]int `yaml:"exit_reasons" json:"exit_reasons"`

	// LastPhase is the most recent session phase.
	LastPhase Phase `yaml:"last_phase" json:"last_phase"`
}

// WriteLiveTradeStats writes live trade statistics to a YAML file.
func WriteLiveTradeStats(path string, stats LiveTradeStats) error {
	data, err := yaml.Marshal(stats)
	if err != nil {
		return errors.Wrap(errors.ErrCodeParseFailed, "failed to marshal live trade stats to YAML", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return errors.Wrap(errors.ErrCodeSessionInitFailed, "failed to write live trade stats to file", err)
	}

	return nil
}

// ReadLiveTradeStats reads live trade statistics from a YAML file.
func ReadLiveTradeStats(path string) (LiveTradeStats, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return LiveTradeStats{}, errors.Wrap(errors.ErrCodeDataNotFound, "failed to read live trade stats file", err)
	}

	var stats LiveTradeStats
	if err := yaml.Unmarshal(data, &stats); err != nil {
		return LiveTradeStats{}, errors.Wrap(errors.ErrCodeParseFailed, "failed to unmarshal live trade stats", err)
	}

	return stats, nil
}

// NewLiveTradeStats creates a new LiveTradeStats with initialized values.
func NewLiveTradeStats(runID string, symbols []string, now time.Time) LiveTradeStats {
	return LiveTradeStats{
		ID:           runID,
		Date:         now.Format("2006-01-02"),
		SessionStart: now,
		LastUpdated:  now,
		Symbols:      symbols,
		TradeResult: TradeResult{
			NumberOfTrades:        0,
			NumberOfWinningTrades: 0,
			NumberOfLosingTrades:  0,
			WinRate:               0,
		},
		TradePnl: TradePnl{
			RealizedPnL:   0,
			MaximumLoss:   0,
			MaximumProfit: 0,
		},
		TradeHoldingTime: TradeHoldingTime{
			Min: 0,
			Max: 0,
			Avg: 0,
		},
		Orders: OrderCounts{
			Buys:     0,
			Sells:    0,
			Rejected: 0,
			Failed:   0,
		},
		ExitReasons: make(map[string]int),
		LastPhase:   PhaseClosed,
	}
}
