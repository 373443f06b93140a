package types

// Phase is the daily session phase derived from wall-clock time.
type Phase string

const (
	PhaseClosed          Phase = "CLOSED"
	PhasePreOpenFlatten  Phase = "PRE_OPEN_FLATTEN"
	PhaseActive          Phase = "ACTIVE"
	PhaseCloseOutFlatten Phase = "CLOSE_OUT_FLATTEN"
	PhaseTerminated      Phase = "TERMINATED"
)

// Ends reports whether the scheduler loop must exit in this phase.
func (p Phase) Ends() bool {
	return p == PhaseClosed || p == PhaseTerminated
}

// EngineStatus represents the current state of the trading engine.
type EngineStatus string

const (
	// EngineStatusStarting is reported before the first tick.
	EngineStatusStarting EngineStatus = "starting"

	// EngineStatusRunning indicates the session loop is ticking.
	EngineStatusRunning EngineStatus = "running"

	// EngineStatusStopped indicates the engine has stopped.
	EngineStatusStopped EngineStatus = "stopped"

	// EngineStatusFailed indicates the engine stopped on a fatal error.
	EngineStatusFailed EngineStatus = "failed"
)
