package indicator

import (
	"math"

	"github.com/rxtech-lab/argo-autotrade/internal/types"
	"github.com/rxtech-lab/argo-autotrade/pkg/errors"
)

const (
	// DefaultVolatilityPeriod is the number of daily returns used for the estimate.
	DefaultVolatilityPeriod = 20
	// FallbackVolatility is returned when fewer than two returns can be computed.
	FallbackVolatility = 0.20
	// TradingDaysPerYear annualizes a daily standard deviation.
	TradingDaysPerYear = 252
)

// VolatilityEstimate is the result of a volatility calculation.
// When Fallback is set, Value is FallbackVolatility and Warning explains why.
type VolatilityEstimate struct {
	Value    float64
	Returns  int
	Fallback bool
	Warning  error
}

// Volatility estimates annualized volatility from daily closes.
type Volatility struct {
	period int
}

// NewVolatility creates a Volatility estimator with the default period.
func NewVolatility() *Volatility {
	return &Volatility{
		period: DefaultVolatilityPeriod,
	}
}

// Config configures the estimator. Expected parameters: period (int, at least 2).
func (v *Volatility) Config(params ...any) error {
	if len(params) != 1 {
		return errors.New(errors.ErrCodeMissingParameter, "Config expects 1 parameter: period (int)")
	}

	period, ok := params[0].(int)
	if !ok {
		return errors.New(errors.ErrCodeInvalidParameter, "invalid type for period parameter, expected int")
	}

	if period < 2 {
		return errors.Newf(errors.ErrCodeInvalidParameter, "period must be at least 2, got %d", period)
	}

	v.period = period

	return nil
}

// Period returns the configured number of returns.
func (v *Volatility) Period() int {
	return v.period
}

// HistoryDays is the number of daily bars needed to fill the period.
func (v *Volatility) HistoryDays() int {
	return v.period + 1
}

// Estimate computes volatility from bars ordered most-recent first.
// It never fails: missing data yields the fallback estimate with a warning.
func (v *Volatility) Estimate(symbol string, bars []types.DailyBar) VolatilityEstimate {
	if len(bars) == 0 {
		return fallbackEstimate(0, errors.NewInsufficientDataErrorf(2, 0, symbol,
			"no daily bars for %s, using fallback volatility %.2f", symbol, FallbackVolatility))
	}

	closes := make([]float64, len(bars))
	for i, bar := range bars {
		closes[i] = bar.Close
	}

	returns := DailyReturns(closes, v.period)
	if len(returns) < 2 {
		return fallbackEstimate(len(returns), errors.NewInsufficientDataErrorf(2, len(returns), symbol,
			"only %d valid daily returns for %s, using fallback volatility %.2f", len(returns), symbol, FallbackVolatility))
	}

	return VolatilityEstimate{
		Value:    AnnualizedVolatility(returns),
		Returns:  len(returns),
		Fallback: false,
		Warning:  nil,
	}
}

func fallbackEstimate(returns int, warning error) VolatilityEstimate {
	return VolatilityEstimate{
		Value:    FallbackVolatility,
		Returns:  returns,
		Fallback: true,
		Warning:  warning,
	}
}

// DailyReturns computes simple returns from closes ordered most-recent first,
// looking at most period pairs. A pair with a non-positive close on either side is skipped.
func DailyReturns(closes []float64, period int) []float64 {
	pairs := min(period, len(closes)-1)
	if pairs <= 0 {
		return nil
	}

	returns := make([]float64, 0, pairs)

	for i := 0; i < pairs; i++ {
		today, yesterday := closes[i], closes[i+1]
		if today <= 0 || yesterday <= 0 {
			continue
		}

		returns = append(returns, (today-yesterday)/yesterday)
	}

	return returns
}

// AnnualizedVolatility returns the sample standard deviation of returns times sqrt(252).
// It returns 0 for fewer than two returns.
func AnnualizedVolatility(returns []float64) float64 {
	n := len(returns)
	if n < 2 {
		return 0
	}

	mean := 0.0
	for _, r := range returns {
		mean += r
	}

	mean /= float64(n)

	var sumSq float64

	for _, r := range returns {
		d := r - mean
		sumSq += d * d
	}

	return math.Sqrt(sumSq/float64(n-1)) * math.Sqrt(TradingDaysPerYear)
}
