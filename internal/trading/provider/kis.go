package tradingprovider

import (
	"context"
	"time"

	"github.com/rxtech-lab/argo-autotrade/internal/kis"
	"github.com/rxtech-lab/argo-autotrade/internal/types"
	"github.com/rxtech-lab/argo-autotrade/internal/utils"
	"github.com/rxtech-lab/argo-autotrade/pkg/errors"
)

// KISClient is the part of the KIS client used for trading. It is satisfied by *kis.Client.
type KISClient interface {
	Authenticate(ctx context.Context) error
	PlaceOrder(ctx context.Context, side types.PurchaseType, symbol types.Symbol, quantity int, price float64) (kis.OrderAck, error)
	Balance(ctx context.Context, segment types.ExchangeSegment) (types.BalanceReport, error)
	OrderableCashKRW(ctx context.Context) (float64, error)
	ExchangeRate(ctx context.Context) (float64, error)
}

// KISExecutor trades through the KIS overseas stock API.
// It is stateless; every call goes to the broker.
type KISExecutor struct {
	client   KISClient
	segments []types.ExchangeSegment
	now      func() time.Time
}

var _ TradeExecutor = (*KISExecutor)(nil)

// NewKISExecutor creates an executor whose balance queries cover the given segments.
// With no segments only NASD is queried.
func NewKISExecutor(client KISClient, segments []types.ExchangeSegment) *KISExecutor {
	seen := make(map[types.ExchangeSegment]bool)
	unique := make([]types.ExchangeSegment, 0, len(segments))

	for _, s := range segments {
		if !seen[s] {
			seen[s] = true
			unique = append(unique, s)
		}
	}

	if len(unique) == 0 {
		unique = append(unique, types.SegmentNASDAQ)
	}

	return &KISExecutor{
		client:   client,
		segments: unique,
		now:      time.Now,
	}
}

func (k *KISExecutor) Buy(ctx context.Context, order types.OrderRequest) (types.OrderResult, error) {
	return k.place(ctx, types.PurchaseTypeBuy, order)
}

func (k *KISExecutor) Sell(ctx context.Context, order types.OrderRequest) (types.OrderResult, error) {
	return k.place(ctx, types.PurchaseTypeSell, order)
}

func (k *KISExecutor) place(ctx context.Context, side types.PurchaseType, order types.OrderRequest) (types.OrderResult, error) {
	if order.Side != side {
		return types.OrderResult{}, errors.Newf(errors.ErrCodeInvalidOrder, "expected %s order, got %s", side, order.Side)
	}

	if err := order.Validate(); err != nil {
		return types.OrderResult{}, err
	}

	ack, err := k.client.PlaceOrder(ctx, side, order.Symbol, order.Quantity, order.ReferencePrice)
	if err != nil {
		return types.OrderResult{}, err
	}

	return types.OrderResult{
		OrderID:     ack.OrderNo,
		Status:      types.OrderStatusFilled,
		Message:     ack.Message,
		SubmittedAt: k.now(),
	}, nil
}

func (k *KISExecutor) Holdings(ctx context.Context) ([]types.Holding, error) {
	report, err := k.Balance(ctx)
	if err != nil {
		return nil, err
	}

	return report.Holdings, nil
}

// Balance merges the per-segment balance inquiries. A venue inquiry can cover other US
// venues (live NASD returns every US holding), so holdings are keyed by code and a later
// inquiry that adds no new holding does not add its totals again.
func (k *KISExecutor) Balance(ctx context.Context) (types.BalanceReport, error) {
	merged := types.BalanceReport{
		Holdings:      nil,
		EvaluationPnL: 0,
		TotalPnL:      0,
	}
	seen := make(map[string]bool)

	for i, segment := range k.segments {
		report, err := k.client.Balance(ctx, segment)
		if err != nil {
			return types.BalanceReport{}, err
		}

		added := 0

		for _, h := range report.Holdings {
			if seen[h.Code] {
				continue
			}

			seen[h.Code] = true
			merged.Holdings = append(merged.Holdings, h)
			added++
		}

		if i > 0 && added == 0 {
			continue
		}

		merged.EvaluationPnL += report.EvaluationPnL
		merged.TotalPnL += report.TotalPnL
	}

	return merged, nil
}

// AccountInfo converts orderable KRW cash to USD at the first posted rate.
// When the rate is unavailable the client's fallback rate is used.
func (k *KISExecutor) AccountInfo(ctx context.Context) (types.AccountInfo, error) {
	cash, err := k.client.OrderableCashKRW(ctx)
	if err != nil {
		return types.AccountInfo{}, err
	}

	rate, _ := k.client.ExchangeRate(ctx)
	if rate <= 0 {
		rate = kis.DefaultExchangeRate
	}

	return types.AccountInfo{
		BuyingPowerUSD: utils.ConvertToUSD(cash, rate),
		CashKRW:        cash,
		ExchangeRate:   rate,
	}, nil
}

func (k *KISExecutor) CheckConnection(ctx context.Context) error {
	return k.client.Authenticate(ctx)
}
