package main

import (
	"time"

	"github.com/rxtech-lab/argo-autotrade/internal/health"
	"github.com/rxtech-lab/argo-autotrade/internal/logger"
	"github.com/rxtech-lab/argo-autotrade/internal/trading/engine"
	"github.com/rxtech-lab/argo-autotrade/internal/types"
	"go.uber.org/zap"
)

// newCallbacks feeds engine events into the health status and the metrics.
func newCallbacks(status *health.Status, metrics *health.Metrics, log *logger.Logger) engine.SessionCallbacks {
	onStart := engine.OnEngineStartCallback(func(symbols []string, buyingPowerUSD float64, allocation float64) error {
		metrics.SetBuyingPower(buyingPowerUSD)
		log.Info("Session started",
			zap.Strings("symbols", symbols),
			zap.Float64("buying_power_usd", buyingPowerUSD),
			zap.Float64("allocation_per_slot", allocation),
		)

		return nil
	})
	onStop := engine.OnEngineStopCallback(func(err error) {
		if err != nil {
			log.Warn("Session stopped with error", zap.Error(err))

			return
		}

		log.Info("Session stopped")
	})
	onTick := engine.OnTickCallback(func(at time.Time, phase types.Phase, openPositions int) {
		status.Beat(at, phase, openPositions)
		metrics.ObserveTick(at, phase, openPositions)
	})
	onPhase := engine.OnPhaseChangeCallback(func(_ types.Phase, to types.Phase) error {
		metrics.SetPhase(to)

		return nil
	})
	onFilled := engine.OnOrderFilledCallback(func(order types.OrderRequest, result types.OrderResult) error {
		metrics.ObserveOrder(order.Side, result.Status)

		return nil
	})
	onFailed := engine.OnOrderFailedCallback(func(order types.OrderRequest, orderStatus types.OrderStatus, _ error) {
		metrics.ObserveOrder(order.Side, orderStatus)
	})
	onExit := engine.OnExitSignalCallback(func(_ types.Position, decision types.ExitDecision, _ float64) {
		metrics.ObserveExit(decision.OrderReason())
	})
	onError := engine.OnErrorCallback(func(err error) {
		metrics.ObserveError()
		status.SetStatus(types.EngineStatusRunning, err)
	})
	onStatus := engine.OnStatusUpdateCallback(func(engineStatus types.EngineStatus) error {
		status.SetStatus(engineStatus, nil)

		return nil
	})

	return engine.SessionCallbacks{
		OnEngineStart:  &onStart,
		OnEngineStop:   &onStop,
		OnTick:         &onTick,
		OnPhaseChange:  &onPhase,
		OnOrderPlaced:  nil,
		OnOrderFilled:  &onFilled,
		OnOrderFailed:  &onFailed,
		OnExitSignal:   &onExit,
		OnError:        &onError,
		OnStatsUpdate:  nil,
		OnStatusUpdate: &onStatus,
	}
}
