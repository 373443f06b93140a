package kis

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/rxtech-lab/argo-autotrade/internal/types"
	"github.com/rxtech-lab/argo-autotrade/pkg/errors"
)

const (
	pathPrice      = "/uapi/overseas-price/v1/quotations/price"
	pathDailyPrice = "/uapi/overseas-price/v1/quotations/dailyprice"

	trIDPrice      = "HHDFS00000300"
	trIDDailyPrice = "HHDFS76240000"
)

// closeKeys lists the daily row fields that may carry the close, in order of preference.
var closeKeys = []string{"clos", "last", "base", "close"}

type priceResponse struct {
	envelope
	Output struct {
		Last string `json:"last"`
	} `json:"output"`
}

type dailyPriceResponse struct {
	envelope
	Output2 []map[string]string `json:"output2"`
}

// CurrentPrice returns the last traded price.
func (c *Client) CurrentPrice(ctx context.Context, symbol types.Symbol) (float64, error) {
	var out priceResponse

	err := c.get(ctx, pathPrice, trIDPrice, map[string]string{
		"AUTH": "",
		"EXCD": symbol.Segment.QuoteCode(),
		"SYMB": symbol.Code,
	}, &out)
	if err != nil {
		return 0, err
	}

	if !out.ok() {
		return 0, errors.Newf(errors.ErrCodeDataUnavailable, "price %s: %s", symbol.Code, out.Msg1)
	}

	price, err := parseFloat(out.Output.Last)
	if err != nil || price <= 0 {
		return 0, errors.Newf(errors.ErrCodeDataUnavailable, "price %s: invalid last %q", symbol.Code, out.Output.Last)
	}

	return price, nil
}

// DailyBars returns the daily rows the API provides, most recent first.
// Rows whose close cannot be parsed keep a zero Close.
func (c *Client) DailyBars(ctx context.Context, symbol types.Symbol) ([]types.DailyBar, error) {
	var out dailyPriceResponse

	err := c.get(ctx, pathDailyPrice, trIDDailyPrice, map[string]string{
		"AUTH": "",
		"EXCD": symbol.Segment.QuoteCode(),
		"SYMB": symbol.Code,
		"GUBN": "0",
		"BYMD": "",
		"MODP": "0",
	}, &out)
	if err != nil {
		return nil, err
	}

	if !out.ok() {
		return nil, errors.Newf(errors.ErrCodeDataUnavailable, "daily %s: %s", symbol.Code, out.Msg1)
	}

	if len(out.Output2) == 0 {
		return nil, errors.Newf(errors.ErrCodeDataNotFound, "daily %s: no rows", symbol.Code)
	}

	bars := make([]types.DailyBar, 0, len(out.Output2))
	for _, row := range out.Output2 {
		bars = append(bars, ParseDailyRow(row))
	}

	return bars, nil
}

// ParseDailyRow converts one output2 row. Unparseable numbers become zero.
func ParseDailyRow(row map[string]string) types.DailyBar {
	open, _ := parseFloat(row["open"])
	high, _ := parseFloat(row["high"])
	low, _ := parseFloat(row["low"])

	var date time.Time
	if d, err := time.Parse("20060102", row["xymd"]); err == nil {
		date = d
	}

	return types.DailyBar{
		Date:  date,
		Open:  open,
		High:  high,
		Low:   low,
		Close: ParseClose(row),
	}
}

// ParseClose returns the first parseable positive value among clos, last, base and close.
func ParseClose(row map[string]string) float64 {
	for _, key := range closeKeys {
		raw, ok := row[key]
		if !ok {
			continue
		}

		if v, err := parseFloat(raw); err == nil && v > 0 {
			return v
		}
	}

	return 0
}

func parseFloat(s string) (float64, error) {
	return strconv.ParseFloat(strings.ReplaceAll(strings.TrimSpace(s), ",", ""), 64)
}
