package provider

import (
	"context"

	"github.com/rxtech-lab/argo-autotrade/internal/types"
)

// MarketDataPort is the quote source the trading session polls.
type MarketDataPort interface {
	// CurrentPrice returns the latest traded price for the symbol.
	CurrentPrice(ctx context.Context, symbol types.Symbol) (float64, error)
	// DailyHistory returns at most days daily bars ordered most-recent first.
	// Index 0 is the current session (its Open is today's open), index 1 is the previous session.
	DailyHistory(ctx context.Context, symbol types.Symbol, days int) ([]types.DailyBar, error)
}
