// Package watchlist resolves the fixed set of tradable symbols and their exchange segments.
package watchlist

import (
	"github.com/rxtech-lab/argo-autotrade/internal/types"
	"github.com/rxtech-lab/argo-autotrade/pkg/errors"
)

// Entry is one configured watch-list line.
type Entry struct {
	Code    string `yaml:"code" json:"code" jsonschema:"title=Code,description=Ticker symbol" validate:"required"`
	Segment string `yaml:"segment" json:"segment" jsonschema:"title=Segment,description=Exchange segment,enum=NASD,enum=NYSE,enum=AMEX" validate:"required"`
}

// WatchList is an ordered, read-only mapping of symbol code to segment-tagged Symbol.
type WatchList struct {
	symbols []types.Symbol
	index   map[string]types.Symbol
}

// New builds a WatchList. Order is preserved; duplicate codes are rejected.
func New(entries []Entry) (*WatchList, error) {
	w := &WatchList{
		symbols: make([]types.Symbol, 0, len(entries)),
		index:   make(map[string]types.Symbol, len(entries)),
	}

	for _, e := range entries {
		segment, err := types.ParseExchangeSegment(e.Segment)
		if err != nil {
			return nil, errors.Wrapf(errors.ErrCodeInvalidConfiguration, err, "watch-list entry %q", e.Code)
		}

		sym, err := types.NewSymbol(e.Code, segment)
		if err != nil {
			return nil, err
		}

		if _, exists := w.index[sym.Code]; exists {
			return nil, errors.Newf(errors.ErrCodeInvalidConfiguration, "duplicate watch-list symbol: %s", sym.Code)
		}

		w.symbols = append(w.symbols, sym)
		w.index[sym.Code] = sym
	}

	if len(w.symbols) == 0 {
		return nil, errors.New(errors.ErrCodeInvalidConfiguration, "watch-list is empty")
	}

	return w, nil
}

// FromSegments builds a WatchList from per-segment code lists, NASD first, then NYSE, then AMEX.
func FromSegments(bySegment map[types.ExchangeSegment][]string) (*WatchList, error) {
	var entries []Entry

	for _, segment := range types.Segments {
		for _, code := range bySegment[segment] {
			entries = append(entries, Entry{Code: code, Segment: string(segment)})
		}
	}

	return New(entries)
}

// Lookup returns the segment-tagged symbol for a code.
func (w *WatchList) Lookup(code string) (types.Symbol, bool) {
	sym, ok := w.index[code]

	return sym, ok
}

// Symbols returns the symbols in watch-list order. The slice is a copy.
func (w *WatchList) Symbols() []types.Symbol {
	out := make([]types.Symbol, len(w.symbols))
	copy(out, w.symbols)

	return out
}

// Codes returns the symbol codes in watch-list order.
func (w *WatchList) Codes() []string {
	out := make([]string, len(w.symbols))
	for i, s := range w.symbols {
		out[i] = s.Code
	}

	return out
}

// Len returns the number of symbols.
func (w *WatchList) Len() int {
	return len(w.symbols)
}
