package types

import (
	"fmt"
	"strings"

	"github.com/rxtech-lab/argo-autotrade/pkg/errors"
)

// ExchangeSegment identifies the US venue a symbol trades on.
// The brokerage routes orders and quotes with different codes for the same venue.
type ExchangeSegment string

const (
	SegmentNASDAQ ExchangeSegment = "NASD"
	SegmentNYSE   ExchangeSegment = "NYSE"
	SegmentAMEX   ExchangeSegment = "AMEX"
)

// Segments lists every supported segment.
var Segments = []ExchangeSegment{SegmentNASDAQ, SegmentNYSE, SegmentAMEX}

// ParseExchangeSegment accepts either the order code (NASD) or the quote code (NAS), case-insensitive.
func ParseExchangeSegment(s string) (ExchangeSegment, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "NASD", "NAS", "NASDAQ":
		return SegmentNASDAQ, nil
	case "NYSE", "NYS":
		return SegmentNYSE, nil
	case "AMEX", "AMS":
		return SegmentAMEX, nil
	default:
		return "", errors.Newf(errors.ErrCodeInvalidSegment, "unsupported exchange segment: %q", s)
	}
}

// OrderCode is the venue code used when submitting orders and inquiring balances.
func (s ExchangeSegment) OrderCode() string {
	return string(s)
}

// QuoteCode is the venue code used by the price endpoints.
func (s ExchangeSegment) QuoteCode() string {
	switch s {
	case SegmentNASDAQ:
		return "NAS"
	case SegmentNYSE:
		return "NYS"
	case SegmentAMEX:
		return "AMS"
	default:
		return ""
	}
}

// Valid reports whether s is one of the supported segments.
func (s ExchangeSegment) Valid() bool {
	return s.QuoteCode() != ""
}

// Symbol is a ticker tagged with the segment it trades on.
type Symbol struct {
	Code    string          `yaml:"code" json:"code" validate:"required"`
	Segment ExchangeSegment `yaml:"segment" json:"segment" validate:"required,oneof=NASD NYSE AMEX"`
}

// NewSymbol builds a Symbol, normalizing the code to upper case.
func NewSymbol(code string, segment ExchangeSegment) (Symbol, error) {
	code = strings.ToUpper(strings.TrimSpace(code))
	if code == "" {
		return Symbol{}, errors.New(errors.ErrCodeInvalidSymbol, "symbol code must not be empty")
	}

	if !segment.Valid() {
		return Symbol{}, errors.Newf(errors.ErrCodeInvalidSegment, "unsupported exchange segment %q for %s", segment, code)
	}

	return Symbol{Code: code, Segment: segment}, nil
}

func (s Symbol) String() string {
	return fmt.Sprintf("%s:%s", s.Segment, s.Code)
}
