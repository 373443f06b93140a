package breakout

import (
	"github.com/go-playground/validator/v10"
	"github.com/rxtech-lab/argo-autotrade/internal/indicator"
	"github.com/rxtech-lab/argo-autotrade/pkg/errors"
)

// Config holds the volatility tiers that scale the previous day's range.
type Config struct {
	HighVolatility   float64 `yaml:"high_volatility" json:"high_volatility" jsonschema:"title=High Volatility,description=Annualized volatility above which the high multiplier applies,default=0.4" validate:"gt=0"`
	HighMultiplier   float64 `yaml:"high_multiplier" json:"high_multiplier" jsonschema:"title=High Multiplier,default=0.3" validate:"gt=0"`
	MediumVolatility float64 `yaml:"medium_volatility" json:"medium_volatility" jsonschema:"title=Medium Volatility,description=Annualized volatility above which the medium multiplier applies,default=0.25" validate:"gt=0,ltfield=HighVolatility"`
	MediumMultiplier float64 `yaml:"medium_multiplier" json:"medium_multiplier" jsonschema:"title=Medium Multiplier,default=0.5" validate:"gt=0"`
	LowMultiplier    float64 `yaml:"low_multiplier" json:"low_multiplier" jsonschema:"title=Low Multiplier,default=0.7" validate:"gt=0"`
	VolatilityPeriod int     `yaml:"volatility_period" json:"volatility_period" jsonschema:"title=Volatility Period,description=Number of daily returns in the volatility estimate,default=20" validate:"gte=2"`
}

// DefaultConfig returns the standard tiers: 0.3 above 40%, 0.5 above 25%, 0.7 otherwise.
func DefaultConfig() Config {
	return Config{
		HighVolatility:   0.40,
		HighMultiplier:   0.3,
		MediumVolatility: 0.25,
		MediumMultiplier: 0.5,
		LowMultiplier:    0.7,
		VolatilityPeriod: indicator.DefaultVolatilityPeriod,
	}
}

// Validate validates the Config struct.
func (c *Config) Validate() error {
	validate := validator.New()
	if err := validate.Struct(c); err != nil {
		return errors.Wrap(errors.ErrCodeInvalidConfiguration, "invalid breakout config", err)
	}

	return nil
}

// Multiplier picks the range multiplier for an annualized volatility.
// Thresholds are strict: exactly 0.40 falls in the medium tier.
func (c Config) Multiplier(volatility float64) float64 {
	switch {
	case volatility > c.HighVolatility:
		return c.HighMultiplier
	case volatility > c.MediumVolatility:
		return c.MediumMultiplier
	default:
		return c.LowMultiplier
	}
}

// HistoryDays is how many daily bars a target computation needs.
func (c Config) HistoryDays() int {
	return c.VolatilityPeriod + 1
}
