package types

import (
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/rxtech-lab/argo-autotrade/pkg/errors"
)

type PurchaseType string

type OrderStatus string

const (
	OrderStatusFilled   OrderStatus = "FILLED"
	OrderStatusRejected OrderStatus = "REJECTED"
	OrderStatusFailed   OrderStatus = "FAILED"
)

const (
	PurchaseTypeBuy  PurchaseType = "BUY"
	PurchaseTypeSell PurchaseType = "SELL"
)

const (
	OrderReasonStopLoss        string = "stop_loss"
	OrderReasonTakeProfit      string = "take_profit"
	OrderReasonTrailingStop    string = "trailing_stop"
	OrderReasonBreakout        string = "breakout"
	OrderReasonPreOpenFlatten  string = "pre_open_flatten"
	OrderReasonCloseOutFlatten string = "close_out_flatten"
)

type Reason struct {
	Reason  string `yaml:"reason" json:"reason" validate:"required"`
	Message string `yaml:"message" json:"message"`
}

// OrderRequest is a market order submitted through a TradeExecutor.
// ReferencePrice is the price observed when the decision was made; the actual fill may differ.
type OrderRequest struct {
	ID             string       `yaml:"id" json:"id" validate:"required,uuid"`
	Symbol         Symbol       `yaml:"symbol" json:"symbol" validate:"required"`
	Side           PurchaseType `yaml:"side" json:"side" validate:"required,oneof=BUY SELL"`
	Quantity       int          `yaml:"quantity" json:"quantity" validate:"required,gt=0"`
	ReferencePrice float64      `yaml:"reference_price" json:"reference_price" validate:"required,gt=0"`
	Reason         Reason       `yaml:"reason" json:"reason" validate:"required"`
}

// NewOrderRequest builds a market order request with a fresh id.
func NewOrderRequest(symbol Symbol, side PurchaseType, quantity int, referencePrice float64, reason string, message string) OrderRequest {
	return OrderRequest{
		ID:             uuid.New().String(),
		Symbol:         symbol,
		Side:           side,
		Quantity:       quantity,
		ReferencePrice: referencePrice,
		Reason: Reason{
			Reason:  reason,
			Message: message,
		},
	}
}

// Validate validates the order request.
func (o OrderRequest) Validate() error {
	validate := validator.New()
	if err := validate.Struct(o); err != nil {
		return errors.Wrap(errors.ErrCodeInvalidOrder, "invalid order request", err)
	}

	return nil
}

// OrderResult is the broker's acknowledgement of an accepted order.
type OrderResult struct {
	OrderID     string      `yaml:"order_id" json:"order_id"`
	Status      OrderStatus `yaml:"status" json:"status"`
	Message     string      `yaml:"message" json:"message"`
	SubmittedAt time.Time   `yaml:"submitted_at" json:"submitted_at"`
}
