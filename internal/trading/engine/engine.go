package engine

import (
	"context"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rxtech-lab/argo-autotrade/internal/notify"
	"github.com/rxtech-lab/argo-autotrade/internal/risk"
	"github.com/rxtech-lab/argo-autotrade/internal/strategy/breakout"
	"github.com/rxtech-lab/argo-autotrade/internal/trading/engine/engine_v1/session"
	tradingprovider "github.com/rxtech-lab/argo-autotrade/internal/trading/provider"
	"github.com/rxtech-lab/argo-autotrade/internal/types"
	"github.com/rxtech-lab/argo-autotrade/internal/watchlist"
	"github.com/rxtech-lab/argo-autotrade/pkg/errors"
	"github.com/rxtech-lab/argo-autotrade/pkg/marketdata/provider"
	"github.com/rxtech-lab/argo-autotrade/pkg/utils"
)

// Lifecycle callback types for the trading session.
// All callbacks with error return can abort execution if they return an error.

// OnEngineStartCallback is called once the session is set up and before the first tick.
type OnEngineStartCallback func(symbols []string, buyingPowerUSD float64, allocationPerSlot float64) error

// OnEngineStopCallback is called when the engine stops (always called via defer).
type OnEngineStopCallback func(err error)

// OnTickCallback is called once per scheduler tick. It carries the heartbeat.
type OnTickCallback func(at time.Time, phase types.Phase, openPositions int)

// OnPhaseChangeCallback is called when the session phase changes.
type OnPhaseChangeCallback func(from types.Phase, to types.Phase) error

// OnOrderPlacedCallback is called before an order is submitted.
type OnOrderPlacedCallback func(order types.OrderRequest) error

// OnOrderFilledCallback is called when the broker accepts an order.
type OnOrderFilledCallback func(order types.OrderRequest, result types.OrderResult) error

// OnOrderFailedCallback is called when an order is rejected or fails.
type OnOrderFailedCallback func(order types.OrderRequest, status types.OrderStatus, err error)

// OnExitSignalCallback is called when the risk evaluator asks to close a position.
type OnExitSignalCallback func(position types.Position, decision types.ExitDecision, price float64)

// OnErrorCallback is called when a non-fatal error occurs.
type OnErrorCallback func(err error)

// OnStatsUpdateCallback is called when trading statistics are updated.
type OnStatsUpdateCallback func(stats types.LiveTradeStats) error

// OnStatusUpdateCallback is called when engine status changes.
type OnStatusUpdateCallback func(status types.EngineStatus) error

// SessionCallbacks holds all lifecycle callback functions for the session engine.
// All fields are pointers - nil means no callback will be invoked.
type SessionCallbacks struct {
	OnEngineStart *OnEngineStartCallback
	OnEngineStop  *OnEngineStopCallback
	OnTick        *OnTickCallback
	OnPhaseChange *OnPhaseChangeCallback
	OnOrderPlaced *OnOrderPlacedCallback
	OnOrderFilled *OnOrderFilledCallback
	OnOrderFailed *OnOrderFailedCallback
	OnExitSignal  *OnExitSignalCallback
	OnError       *OnErrorCallback
	OnStatsUpdate *OnStatsUpdateCallback

	// OnStatusUpdate is called when engine status changes.
	OnStatusUpdate *OnStatusUpdateCallback
}

// Default configuration values.
const (
	DefaultTargetBuyCount  = 4
	DefaultSlotFraction    = 0.25
	DefaultPollInterval    = 10 * time.Second
	DefaultBalanceInterval = 30 * time.Minute
	DefaultCallTimeout     = 30 * time.Second
)

// SessionEngineConfig holds the configuration for the session engine.
type SessionEngineConfig struct {
	// WatchList is the ordered list of symbols the session may trade.
	WatchList []watchlist.Entry `json:"watch_list" yaml:"watch_list" jsonschema:"title=Watch List,description=Symbols in priority order" validate:"required,min=1,dive"`

	// TargetBuyCount is the maximum number of positions held at once.
	TargetBuyCount int `json:"target_buy_count" yaml:"target_buy_count" jsonschema:"title=Target Buy Count,description=Maximum concurrent positions,default=4" validate:"gte=1"`

	// SlotFraction is the share of starting buying power allocated to each position.
	SlotFraction float64 `json:"slot_fraction" yaml:"slot_fraction" jsonschema:"title=Slot Fraction,description=Buying power share per position,default=0.25" validate:"gt=0,lte=1"`

	// PollInterval is the delay between ticks.
	PollInterval time.Duration `json:"poll_interval" yaml:"poll_interval" jsonschema:"title=Poll Interval,description=Delay between scheduler ticks" validate:"gt=0"`

	// BalanceInterval is the period of the balance report. Zero disables it.
	BalanceInterval time.Duration `json:"balance_interval" yaml:"balance_interval" jsonschema:"title=Balance Interval,description=Period of the balance report (0 disables)" validate:"gte=0"`

	// CallTimeout bounds every market data and broker call.
	CallTimeout time.Duration `json:"call_timeout" yaml:"call_timeout" jsonschema:"title=Call Timeout,description=Timeout of each market data or broker call" validate:"gt=0"`

	Risk     risk.Config            `json:"risk" yaml:"risk" jsonschema:"title=Risk,description=Exit rules"`
	Breakout breakout.Config        `json:"breakout" yaml:"breakout" jsonschema:"title=Breakout,description=Target price tiers"`
	Calendar session.CalendarConfig `json:"calendar" yaml:"calendar" jsonschema:"title=Calendar,description=Market hours and holidays"`
}

// DefaultSessionEngineConfig returns the defaults for everything but the watch-list.
func DefaultSessionEngineConfig() SessionEngineConfig {
	return SessionEngineConfig{
		WatchList:       nil,
		TargetBuyCount:  DefaultTargetBuyCount,
		SlotFraction:    DefaultSlotFraction,
		PollInterval:    DefaultPollInterval,
		BalanceInterval: DefaultBalanceInterval,
		CallTimeout:     DefaultCallTimeout,
		Risk:            risk.DefaultConfig(),
		Breakout:        breakout.DefaultConfig(),
		Calendar:        session.DefaultCalendarConfig(),
	}
}

// Validate validates the config and its nested sections.
func (c *SessionEngineConfig) Validate() error {
	validate := validator.New()
	if err := validate.Struct(c); err != nil {
		return errors.Wrap(errors.ErrCodeInvalidConfiguration, "invalid session engine config", err)
	}

	if err := c.Risk.Validate(); err != nil {
		return err
	}

	if err := c.Breakout.Validate(); err != nil {
		return err
	}

	return c.Calendar.Validate()
}

// GetConfigSchema returns the JSON schema for SessionEngineConfig.
func GetConfigSchema() (string, error) {
	return utils.ToJSONSchema(SessionEngineConfig{}) //nolint:exhaustruct // Empty config for schema generation
}

// SessionEngine runs one trading session per call to Run.
type SessionEngine interface {
	// Initialize sets up the engine with the given configuration.
	Initialize(config SessionEngineConfig) error

	// SetMarketDataProvider configures the price and history source.
	SetMarketDataProvider(provider provider.MarketDataPort) error

	// SetTradeExecutor configures the broker.
	SetTradeExecutor(executor tradingprovider.TradeExecutor) error

	// SetNotifier configures where user-visible messages go.
	SetNotifier(sink notify.Sink) error

	// SetDataOutputPath sets the base directory for session output (stats.yaml).
	// Must be called before Run() if persistence is desired.
	SetDataOutputPath(path string) error

	// Run trades one session. It returns nil when the market is closed or the
	// session ends, ctx.Err() when cancelled, and an ErrCodeFatal error when the
	// broker cannot be reached at startup.
	Run(ctx context.Context, callbacks SessionCallbacks) error

	// GetConfigSchema returns the JSON schema for engine configuration.
	GetConfigSchema() (string, error)
}
