// Package risk classifies open positions against the layered exit rules.
package risk

import (
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/rxtech-lab/argo-autotrade/internal/types"
	"github.com/rxtech-lab/argo-autotrade/pkg/errors"
)

// Config holds the exit thresholds as fractions (0.02 = 2%).
type Config struct {
	StopLossPct   float64 `yaml:"stop_loss_pct" json:"stop_loss_pct" jsonschema:"title=Stop Loss,description=Loss from entry that closes the position,default=0.02" validate:"gt=0,lt=1"`
	TrailingPct   float64 `yaml:"trailing_pct" json:"trailing_pct" jsonschema:"title=Trailing Stop,description=Drop from the high-water mark that closes an armed position,default=0.02" validate:"gt=0,lt=1"`
	ActivationPct float64 `yaml:"activation_pct" json:"activation_pct" jsonschema:"title=Trailing Activation,description=Gain of the high-water mark over entry that arms the trailing stop,default=0.02" validate:"gte=0"`
	ProfitPct     float64 `yaml:"profit_pct" json:"profit_pct" jsonschema:"title=Take Profit,description=Gain from entry that closes an unarmed position,default=0.03" validate:"gt=0"`
}

func DefaultConfig() Config {
	return Config{
		StopLossPct:   0.02,
		TrailingPct:   0.02,
		ActivationPct: 0.02,
		ProfitPct:     0.03,
	}
}

// Validate validates the Config struct.
func (c *Config) Validate() error {
	validate := validator.New()
	if err := validate.Struct(c); err != nil {
		return errors.Wrap(errors.ErrCodeInvalidConfiguration, "invalid risk config", err)
	}

	return nil
}

// Evaluation is the outcome for one position at one price.
type Evaluation struct {
	Decision types.ExitDecision
	// ChangePct is the move that triggered the decision: from the high-water mark for
	// a trailing stop, from entry otherwise.
	ChangePct float64
	// ReferencePrice is the price ChangePct is measured from.
	ReferencePrice float64
	TrailingArmed  bool
}

// Evaluator applies the exit rules. It holds no state.
type Evaluator struct {
	cfg Config
}

func NewEvaluator(cfg Config) *Evaluator {
	return &Evaluator{cfg: cfg}
}

func (e *Evaluator) Config() Config {
	return e.cfg
}

// TrailingArmed reports whether the high-water mark has cleared the activation threshold.
func (e *Evaluator) TrailingArmed(pos types.Position) bool {
	return pos.HighWaterMark > pos.EntryPrice*(1+e.cfg.ActivationPct)
}

// Evaluate checks, in order: stop-loss, trailing stop (when armed), take-profit (when not armed).
// The high-water mark must already include price.
func (e *Evaluator) Evaluate(pos types.Position, price float64) Evaluation {
	fromEntry := pos.UnrealizedChange(price)
	armed := e.TrailingArmed(pos)

	if price <= pos.EntryPrice*(1-e.cfg.StopLossPct) {
		return Evaluation{
			Decision:       types.ExitDecisionStopLoss,
			ChangePct:      fromEntry,
			ReferencePrice: pos.EntryPrice,
			TrailingArmed:  armed,
		}
	}

	if armed {
		if price <= pos.HighWaterMark*(1-e.cfg.TrailingPct) {
			return Evaluation{
				Decision:       types.ExitDecisionTrailingStop,
				ChangePct:      fromEntry,
				ReferencePrice: pos.HighWaterMark,
				TrailingArmed:  true,
			}
		}

		return hold(pos, fromEntry, true)
	}

	if price >= pos.EntryPrice*(1+e.cfg.ProfitPct) {
		return Evaluation{
			Decision:       types.ExitDecisionTakeProfit,
			ChangePct:      fromEntry,
			ReferencePrice: pos.EntryPrice,
			TrailingArmed:  false,
		}
	}

	return hold(pos, fromEntry, false)
}

func hold(pos types.Position, change float64, armed bool) Evaluation {
	return Evaluation{
		Decision:       types.ExitDecisionHold,
		ChangePct:      change,
		ReferencePrice: pos.EntryPrice,
		TrailingArmed:  armed,
	}
}

// Describe renders the trigger notification for an exit decision.
func Describe(pos types.Position, price float64, ev Evaluation) string {
	switch ev.Decision {
	case types.ExitDecisionStopLoss:
		return fmt.Sprintf("[STOP LOSS] %s: entry $%.2f -> current $%.2f (%.2f%%)",
			pos.Symbol.Code, pos.EntryPrice, price, ev.ChangePct*100)
	case types.ExitDecisionTrailingStop:
		return fmt.Sprintf("[TRAILING STOP] %s: high $%.2f -> current $%.2f (%.2f%% from entry)",
			pos.Symbol.Code, pos.HighWaterMark, price, ev.ChangePct*100)
	case types.ExitDecisionTakeProfit:
		return fmt.Sprintf("[TAKE PROFIT] %s: entry $%.2f -> current $%.2f (%.2f%%)",
			pos.Symbol.Code, pos.EntryPrice, price, ev.ChangePct*100)
	default:
		return fmt.Sprintf("[HOLD] %s: current $%.2f", pos.Symbol.Code, price)
	}
}
