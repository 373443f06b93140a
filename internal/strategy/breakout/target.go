// Package breakout computes the volatility-adaptive breakout target price.
package breakout

import (
	"github.com/rxtech-lab/argo-autotrade/internal/indicator"
	"github.com/rxtech-lab/argo-autotrade/internal/types"
	"github.com/rxtech-lab/argo-autotrade/pkg/errors"
)

// Target is a computed entry threshold for one symbol.
type Target struct {
	Symbol        types.Symbol
	Price         float64
	TodayOpen     float64
	PreviousRange float64
	Volatility    indicator.VolatilityEstimate
	Multiplier    float64
}

// ComputeTarget derives today's target from bars ordered most-recent first:
//
//	target = today.Open + (yesterday.High - yesterday.Low) * multiplier(volatility)
//
// It has no side effects. Missing or inconsistent bars yield ErrCodeDataUnavailable.
func ComputeTarget(symbol types.Symbol, history []types.DailyBar, cfg Config) (Target, error) {
	if len(history) < 2 {
		return Target{}, errors.Newf(errors.ErrCodeDataUnavailable,
			"%s: need today and previous daily bars, got %d", symbol.Code, len(history))
	}

	today, yesterday := history[0], history[1]

	if today.Open <= 0 {
		return Target{}, errors.Newf(errors.ErrCodeDataUnavailable, "%s: missing today's open", symbol.Code)
	}

	if yesterday.High <= 0 || yesterday.Low <= 0 || yesterday.High < yesterday.Low {
		return Target{}, errors.Newf(errors.ErrCodeDataUnavailable,
			"%s: invalid previous range high=%.4f low=%.4f", symbol.Code, yesterday.High, yesterday.Low)
	}

	vol := indicator.NewVolatility()
	if err := vol.Config(cfg.VolatilityPeriod); err != nil {
		return Target{}, errors.Wrap(errors.ErrCodeInvalidConfiguration, "invalid volatility period", err)
	}

	estimate := vol.Estimate(symbol.Code, history)
	multiplier := cfg.Multiplier(estimate.Value)
	previousRange := yesterday.High - yesterday.Low

	return Target{
		Symbol:        symbol,
		Price:         today.Open + previousRange*multiplier,
		TodayOpen:     today.Open,
		PreviousRange: previousRange,
		Volatility:    estimate,
		Multiplier:    multiplier,
	}, nil
}

const sessionDateLayout = "2006-01-02"

// CheckSessionBar verifies that the newest bar is the tradingDate (YYYY-MM-DD) session.
// Providers that have not posted today's bar yet would otherwise shift the target back a day.
func CheckSessionBar(symbol types.Symbol, history []types.DailyBar, tradingDate string) error {
	if len(history) == 0 {
		return errors.Newf(errors.ErrCodeDataUnavailable, "%s: no daily bars", symbol.Code)
	}

	if history[0].Date.IsZero() {
		return errors.Newf(errors.ErrCodeDataUnavailable, "%s: newest daily bar has no date", symbol.Code)
	}

	if got := history[0].Date.Format(sessionDateLayout); got != tradingDate {
		return errors.Newf(errors.ErrCodeDataUnavailable,
			"%s: newest daily bar is %s, want today's session %s", symbol.Code, got, tradingDate)
	}

	return nil
}
