// Package ledger owns the set of positions opened during the current trading day.
package ledger

import (
	"sort"
	"sync"
	"time"

	"github.com/moznion/go-optional"
	"github.com/rxtech-lab/argo-autotrade/internal/types"
	"github.com/rxtech-lab/argo-autotrade/pkg/errors"
)

// Ledger maps symbol codes to open positions. At most one position exists per symbol.
// All methods are safe for concurrent use.
type Ledger struct {
	mu        sync.RWMutex
	positions map[string]types.Position
	now       func() time.Time
}

// New creates an empty ledger. A nil now defaults to time.Now.
func New(now func() time.Time) *Ledger {
	if now == nil {
		now = time.Now
	}

	return &Ledger{
		mu:        sync.RWMutex{},
		positions: make(map[string]types.Position),
		now:       now,
	}
}

// Open records a new position with the high-water mark at the entry price.
func (l *Ledger) Open(symbol types.Symbol, entryPrice float64, quantity int) (types.Position, error) {
	if entryPrice <= 0 {
		return types.Position{}, errors.Newf(errors.ErrCodeInvalidParameter, "entry price must be positive, got %f", entryPrice)
	}

	if quantity <= 0 {
		return types.Position{}, errors.Newf(errors.ErrCodeInvalidParameter, "quantity must be positive, got %d", quantity)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if _, ok := l.positions[symbol.Code]; ok {
		return types.Position{}, errors.Newf(errors.ErrCodePositionAlreadyOpen, "position already open for %s", symbol.Code)
	}

	pos := types.Position{
		Symbol:        symbol,
		EntryPrice:    entryPrice,
		HighWaterMark: entryPrice,
		Quantity:      quantity,
		OpenedAt:      l.now(),
	}
	l.positions[symbol.Code] = pos

	return pos, nil
}

// Close removes the position and returns it.
func (l *Ledger) Close(code string) (types.Position, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	pos, ok := l.positions[code]
	if !ok {
		return types.Position{}, errors.Newf(errors.ErrCodePositionNotOpen, "no open position for %s", code)
	}

	delete(l.positions, code)

	return pos, nil
}

// UpdateHighWaterMark raises the mark to price when price is higher.
// It returns the resulting mark, or false when no position is open.
func (l *Ledger) UpdateHighWaterMark(code string, price float64) (float64, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	pos, ok := l.positions[code]
	if !ok {
		return 0, false
	}

	if price > pos.HighWaterMark {
		pos.HighWaterMark = price
		l.positions[code] = pos
	}

	return pos.HighWaterMark, true
}

// Get returns a snapshot of the position for code.
func (l *Ledger) Get(code string) optional.Option[types.Position] {
	l.mu.RLock()
	defer l.mu.RUnlock()

	pos, ok := l.positions[code]
	if !ok {
		return optional.None[types.Position]()
	}

	return optional.Some(pos)
}

// Held reports whether a position is open for code.
func (l *Ledger) Held(code string) bool {
	return l.Get(code).IsSome()
}

// Positions returns snapshots ordered by open time, then code.
func (l *Ledger) Positions() []types.Position {
	l.mu.RLock()
	out := make([]types.Position, 0, len(l.positions))

	for _, pos := range l.positions {
		out = append(out, pos)
	}
	l.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].OpenedAt.Equal(out[j].OpenedAt) {
			return out[i].Symbol.Code < out[j].Symbol.Code
		}

		return out[i].OpenedAt.Before(out[j].OpenedAt)
	})

	return out
}

func (l *Ledger) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()

	return len(l.positions)
}

// Reset drops every position.
func (l *Ledger) Reset() {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.positions = make(map[string]types.Position)
}
