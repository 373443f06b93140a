package tradingprovider

import (
	"context"
	"encoding/json"
	"sort"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/rxtech-lab/argo-autotrade/internal/types"
	"github.com/rxtech-lab/argo-autotrade/internal/utils"
	"github.com/rxtech-lab/argo-autotrade/pkg/errors"
	"github.com/shopspring/decimal"
)

// PaperConfig configures the in-process paper executor.
type PaperConfig struct {
	InitialCashUSD float64 `json:"initialCashUsd" yaml:"initial_cash_usd" jsonschema:"title=Initial Cash,description=Starting USD buying power,default=10000" validate:"gt=0"`
}

// Validate validates the PaperConfig struct.
func (c *PaperConfig) Validate() error {
	validate := validator.New()
	if err := validate.Struct(c); err != nil {
		return errors.Wrap(errors.ErrCodeInvalidParameter, "invalid paper provider config", err)
	}

	return nil
}

func parsePaperConfig(jsonConfig string) (*PaperConfig, error) {
	config := PaperConfig{InitialCashUSD: 10000}
	if err := json.Unmarshal([]byte(jsonConfig), &config); err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidParameter, "failed to parse paper config", err)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return &config, nil
}

// PaperExecutor fills every order immediately at its reference price.
type PaperExecutor struct {
	mu       sync.Mutex
	cash     decimal.Decimal
	holdings map[string]types.Holding
	orders   []types.OrderResult
	realized decimal.Decimal
	cost     map[string]decimal.Decimal
	now      func() time.Time
}

var _ TradeExecutor = (*PaperExecutor)(nil)

func NewPaperExecutor(cfg PaperConfig, now func() time.Time) *PaperExecutor {
	if now == nil {
		now = time.Now
	}

	return &PaperExecutor{
		mu:       sync.Mutex{},
		cash:     decimal.NewFromFloat(cfg.InitialCashUSD),
		holdings: make(map[string]types.Holding),
		orders:   nil,
		realized: decimal.Zero,
		cost:     make(map[string]decimal.Decimal),
		now:      now,
	}
}

func (p *PaperExecutor) Buy(_ context.Context, order types.OrderRequest) (types.OrderResult, error) {
	if err := validateSide(order, types.PurchaseTypeBuy); err != nil {
		return types.OrderResult{}, err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	notional := utils.Notional(order.Quantity, order.ReferencePrice)
	if notional.GreaterThan(p.cash) {
		return types.OrderResult{}, errors.Newf(errors.ErrCodeOrderRejected,
			"insufficient buying power for %s: need %s, have %s", order.Symbol.Code, notional.StringFixed(2), p.cash.StringFixed(2))
	}

	p.cash = p.cash.Sub(notional)
	p.cost[order.Symbol.Code] = p.cost[order.Symbol.Code].Add(notional)

	h := p.holdings[order.Symbol.Code]
	h.Code = order.Symbol.Code
	h.Name = order.Symbol.Code
	h.Quantity += order.Quantity
	p.holdings[order.Symbol.Code] = h

	return p.record("paper buy filled"), nil
}

func (p *PaperExecutor) Sell(_ context.Context, order types.OrderRequest) (types.OrderResult, error) {
	if err := validateSide(order, types.PurchaseTypeSell); err != nil {
		return types.OrderResult{}, err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	h, ok := p.holdings[order.Symbol.Code]
	if !ok || h.Quantity < order.Quantity {
		return types.OrderResult{}, errors.Newf(errors.ErrCodeOrderRejected,
			"cannot sell %d %s: %d held", order.Quantity, order.Symbol.Code, h.Quantity)
	}

	proceeds := utils.Notional(order.Quantity, order.ReferencePrice)
	costBasis := p.cost[order.Symbol.Code].Mul(decimal.NewFromInt(int64(order.Quantity))).Div(decimal.NewFromInt(int64(h.Quantity)))

	p.cash = p.cash.Add(proceeds)
	p.realized = p.realized.Add(proceeds.Sub(costBasis))
	p.cost[order.Symbol.Code] = p.cost[order.Symbol.Code].Sub(costBasis)

	h.Quantity -= order.Quantity
	if h.Quantity == 0 {
		delete(p.holdings, order.Symbol.Code)
		delete(p.cost, order.Symbol.Code)
	} else {
		p.holdings[order.Symbol.Code] = h
	}

	return p.record("paper sell filled"), nil
}

func (p *PaperExecutor) record(message string) types.OrderResult {
	result := types.OrderResult{
		OrderID:     uuid.New().String(),
		Status:      types.OrderStatusFilled,
		Message:     message,
		SubmittedAt: p.now(),
	}
	p.orders = append(p.orders, result)

	return result
}

func validateSide(order types.OrderRequest, side types.PurchaseType) error {
	if order.Side != side {
		return errors.Newf(errors.ErrCodeInvalidOrder, "expected %s order, got %s", side, order.Side)
	}

	return order.Validate()
}

func (p *PaperExecutor) Holdings(_ context.Context) ([]types.Holding, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	out := make([]types.Holding, 0, len(p.holdings))
	for _, h := range p.holdings {
		out = append(out, h)
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })

	return out, nil
}

// Balance reports realized PnL as both evaluation and total figures; the paper
// executor has no quotes to mark open holdings.
func (p *PaperExecutor) Balance(ctx context.Context) (types.BalanceReport, error) {
	holdings, _ := p.Holdings(ctx)

	p.mu.Lock()
	realized, _ := p.realized.Float64()
	p.mu.Unlock()

	return types.BalanceReport{
		Holdings:      holdings,
		EvaluationPnL: realized,
		TotalPnL:      realized,
	}, nil
}

func (p *PaperExecutor) AccountInfo(_ context.Context) (types.AccountInfo, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	cash, _ := p.cash.Float64()

	return types.AccountInfo{
		BuyingPowerUSD: cash,
		CashKRW:        0,
		ExchangeRate:   0,
	}, nil
}

func (p *PaperExecutor) CheckConnection(_ context.Context) error {
	return nil
}

// Orders returns the fills recorded so far.
func (p *PaperExecutor) Orders() []types.OrderResult {
	p.mu.Lock()
	defer p.mu.Unlock()

	return append([]types.OrderResult(nil), p.orders...)
}
