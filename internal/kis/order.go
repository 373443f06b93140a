package kis

import (
	"context"
	"fmt"

	"github.com/rxtech-lab/argo-autotrade/internal/types"
	"github.com/rxtech-lab/argo-autotrade/pkg/errors"
)

const pathOrder = "/uapi/overseas-stock/v1/trading/order"

type orderBody struct {
	AccountNumber  string `json:"CANO"`
	AccountProduct string `json:"ACNT_PRDT_CD"`
	Exchange       string `json:"OVRS_EXCG_CD"`
	Code           string `json:"PDNO"`
	OrderDivision  string `json:"ORD_DVSN"`
	Quantity       string `json:"ORD_QTY"`
	Price          string `json:"OVRS_ORD_UNPR"`
	ServerDivision string `json:"ORD_SVR_DVSN_CD"`
}

type orderResponse struct {
	envelope
	Output struct {
		OrgNo   string `json:"KRX_FWDG_ORD_ORGNO"`
		OrderNo string `json:"ODNO"`
		Time    string `json:"ORD_TMD"`
	} `json:"output"`
}

// OrderAck is the broker's response to an accepted order.
type OrderAck struct {
	OrderNo string
	Message string
}

// PlaceOrder submits a hash-signed order at the given unit price.
// A response with rt_cd other than "0" is an ErrCodeOrderRejected error carrying msg1.
func (c *Client) PlaceOrder(ctx context.Context, side types.PurchaseType, symbol types.Symbol, quantity int, price float64) (OrderAck, error) {
	if quantity <= 0 {
		return OrderAck{}, errors.Newf(errors.ErrCodeInvalidOrder, "quantity must be positive, got %d", quantity)
	}

	var trID string

	switch side {
	case types.PurchaseTypeBuy:
		trID = c.trIDs().buy
	case types.PurchaseTypeSell:
		trID = c.trIDs().sell
	default:
		return OrderAck{}, errors.Newf(errors.ErrCodeInvalidOrder, "unsupported side %q", side)
	}

	body := orderBody{
		AccountNumber:  c.cfg.AccountNumber,
		AccountProduct: c.cfg.AccountProduct,
		Exchange:       symbol.Segment.OrderCode(),
		Code:           symbol.Code,
		OrderDivision:  "00",
		Quantity:       fmt.Sprintf("%d", quantity),
		Price:          fmt.Sprintf("%.2f", price),
		ServerDivision: "0",
	}

	var out orderResponse
	if err := c.postOrder(ctx, pathOrder, trID, body, &out); err != nil {
		return OrderAck{}, err
	}

	if out.RtCd != "0" {
		return OrderAck{}, errors.Newf(errors.ErrCodeOrderRejected, "%s %s rejected: %s", side, symbol.Code, out.Msg1)
	}

	return OrderAck{OrderNo: out.Output.OrderNo, Message: out.Msg1}, nil
}
