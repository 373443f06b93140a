package kis

import (
	"context"
	"math"

	"github.com/rxtech-lab/argo-autotrade/internal/types"
	"github.com/rxtech-lab/argo-autotrade/pkg/errors"
)

const (
	pathBalance        = "/uapi/overseas-stock/v1/trading/inquire-balance"
	pathOrderableCash  = "/uapi/domestic-stock/v1/trading/inquire-psbl-order"
	pathPresentBalance = "/uapi/overseas-stock/v1/trading/inquire-present-balance"

	// DefaultExchangeRate is used when the posted USD/KRW rate is unavailable.
	DefaultExchangeRate = 1270.0
)

type trIDs struct {
	balance, cash, presentBalance, buy, sell string
}

var (
	liveTRIDs  = trIDs{balance: "JTTT3012R", cash: "TTTC8908R", presentBalance: "CTRP6504R", buy: "TTTT1002U", sell: "TTTT1006U"}
	paperTRIDs = trIDs{balance: "VTTS3012R", cash: "VTTC8908R", presentBalance: "VTRP6504R", buy: "VTTT1002U", sell: "VTTT1001U"}
)

func (c *Client) trIDs() trIDs {
	if c.cfg.Paper {
		return paperTRIDs
	}

	return liveTRIDs
}

type balanceResponse struct {
	envelope
	Output1 []struct {
		Code     string `json:"ovrs_pdno"`
		Name     string `json:"ovrs_item_name"`
		Quantity string `json:"ovrs_cblc_qty"`
	} `json:"output1"`
	Output2 struct {
		EvaluationPnL string `json:"tot_evlu_pfls_amt"`
		TotalPnL      string `json:"ovrs_tot_pfls"`
	} `json:"output2"`
}

type orderableCashResponse struct {
	envelope
	Output struct {
		Cash string `json:"ord_psbl_cash"`
	} `json:"output"`
}

type presentBalanceResponse struct {
	envelope
	Output2 []struct {
		FirstPostedRate string `json:"frst_bltn_exrt"`
	} `json:"output2"`
}

// Balance returns the holdings of the account on the given venue with evaluation figures.
// Lines with zero quantity are dropped.
func (c *Client) Balance(ctx context.Context, segment types.ExchangeSegment) (types.BalanceReport, error) {
	var out balanceResponse

	err := c.get(ctx, pathBalance, c.trIDs().balance, map[string]string{
		"CANO":           c.cfg.AccountNumber,
		"ACNT_PRDT_CD":   c.cfg.AccountProduct,
		"OVRS_EXCG_CD":   segment.OrderCode(),
		"TR_CRCY_CD":     "USD",
		"CTX_AREA_FK200": "",
		"CTX_AREA_NK200": "",
	}, &out)
	if err != nil {
		return types.BalanceReport{}, err
	}

	if !out.ok() {
		return types.BalanceReport{}, errors.Newf(errors.ErrCodeDataUnavailable, "balance: %s", out.Msg1)
	}

	report := types.BalanceReport{
		Holdings:      make([]types.Holding, 0, len(out.Output1)),
		EvaluationPnL: 0,
		TotalPnL:      0,
	}

	for _, line := range out.Output1 {
		qty, err := parseQuantity(line.Quantity)
		if err != nil {
			return types.BalanceReport{}, errors.Wrapf(errors.ErrCodeParseFailed, err, "balance quantity for %s", line.Code)
		}

		if qty <= 0 {
			continue
		}

		report.Holdings = append(report.Holdings, types.Holding{Code: line.Code, Name: line.Name, Quantity: qty})
	}

	report.EvaluationPnL, _ = parseFloat(out.Output2.EvaluationPnL)
	report.TotalPnL, _ = parseFloat(out.Output2.TotalPnL)

	return report, nil
}

// OrderableCashKRW returns the cash available for orders in KRW.
func (c *Client) OrderableCashKRW(ctx context.Context) (float64, error) {
	var out orderableCashResponse

	err := c.get(ctx, pathOrderableCash, c.trIDs().cash, map[string]string{
		"CANO":                 c.cfg.AccountNumber,
		"ACNT_PRDT_CD":         c.cfg.AccountProduct,
		"PDNO":                 "005930",
		"ORD_UNPR":             "65500",
		"ORD_DVSN":             "01",
		"CMA_EVLU_AMT_ICLD_YN": "Y",
		"OVRS_ICLD_YN":         "Y",
	}, &out)
	if err != nil {
		return 0, err
	}

	if !out.ok() {
		return 0, errors.Newf(errors.ErrCodeDataUnavailable, "orderable cash: %s", out.Msg1)
	}

	cash, err := parseFloat(out.Output.Cash)
	if err != nil {
		return 0, errors.Wrapf(errors.ErrCodeParseFailed, err, "orderable cash %q", out.Output.Cash)
	}

	return cash, nil
}

// ExchangeRate returns the first posted USD/KRW rate. It never fails: any problem yields
// DefaultExchangeRate together with the cause.
func (c *Client) ExchangeRate(ctx context.Context) (float64, error) {
	var out presentBalanceResponse

	err := c.get(ctx, pathPresentBalance, c.trIDs().presentBalance, map[string]string{
		"CANO":              c.cfg.AccountNumber,
		"ACNT_PRDT_CD":      c.cfg.AccountProduct,
		"OVRS_EXCG_CD":      types.SegmentNASDAQ.OrderCode(),
		"WCRC_FRCR_DVSN_CD": "01",
		"NATN_CD":           "840",
		"TR_MKET_CD":        "01",
		"INQR_DVSN_CD":      "00",
	}, &out)
	if err != nil {
		return DefaultExchangeRate, err
	}

	if !out.ok() || len(out.Output2) == 0 {
		return DefaultExchangeRate, errors.Newf(errors.ErrCodeDataUnavailable, "exchange rate unavailable: %s", out.Msg1)
	}

	rate, err := parseFloat(out.Output2[0].FirstPostedRate)
	if err != nil || rate <= 0 {
		return DefaultExchangeRate, errors.Newf(errors.ErrCodeDataUnavailable, "invalid exchange rate %q", out.Output2[0].FirstPostedRate)
	}

	return rate, nil
}

func parseQuantity(s string) (int, error) {
	f, err := parseFloat(s)
	if err != nil {
		return 0, err
	}

	return int(math.Round(f)), nil
}
