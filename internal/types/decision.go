package types

// ExitDecision is the outcome of evaluating an open position against the exit rules.
type ExitDecision string

const (
	ExitDecisionHold         ExitDecision = "HOLD"
	ExitDecisionStopLoss     ExitDecision = "STOP_LOSS"
	ExitDecisionTrailingStop ExitDecision = "TRAILING_STOP"
	ExitDecisionTakeProfit   ExitDecision = "TAKE_PROFIT"
)

// ShouldExit reports whether the decision closes the position.
func (d ExitDecision) ShouldExit() bool {
	return d == ExitDecisionStopLoss || d == ExitDecisionTrailingStop || d == ExitDecisionTakeProfit
}

// OrderReason maps the decision to the reason recorded on the sell order.
func (d ExitDecision) OrderReason() string {
	switch d {
	case ExitDecisionStopLoss:
		return OrderReasonStopLoss
	case ExitDecisionTrailingStop:
		return OrderReasonTrailingStop
	case ExitDecisionTakeProfit:
		return OrderReasonTakeProfit
	default:
		return ""
	}
}
