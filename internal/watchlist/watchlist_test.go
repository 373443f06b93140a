package watchlist

import (
	"testing"

	"github.com/rxtech-lab/argo-autotrade/internal/types"
	"github.com/rxtech-lab/argo-autotrade/pkg/errors"
	"github.com/stretchr/testify/suite"
)

type WatchListTestSuite struct {
	suite.Suite
}

func TestWatchListSuite(t *testing.T) {
	suite.Run(t, new(WatchListTestSuite))
}

func (suite *WatchListTestSuite) TestNewPreservesOrder() {
	w, err := New([]Entry{
		{Code: "PLTR", Segment: "NASD"},
		{Code: "ko", Segment: "NYS"},
		{Code: "SPY", Segment: "AMEX"},
	})
	suite.Require().NoError(err)

	suite.Equal([]string{"PLTR", "KO", "SPY"}, w.Codes())
	suite.Equal(3, w.Len())

	ko, ok := w.Lookup("KO")
	suite.True(ok)
	suite.Equal(types.SegmentNYSE, ko.Segment)
	suite.Equal("NYS", ko.Segment.QuoteCode())
	suite.Equal("NYSE", ko.Segment.OrderCode())
}

func (suite *WatchListTestSuite) TestLookupMissing() {
	w, err := New([]Entry{{Code: "AAPL", Segment: "NASD"}})
	suite.Require().NoError(err)

	_, ok := w.Lookup("MSFT")
	suite.False(ok)
}

func (suite *WatchListTestSuite) TestDuplicateRejected() {
	_, err := New([]Entry{
		{Code: "AAPL", Segment: "NASD"},
		{Code: "aapl", Segment: "NASD"},
	})
	suite.Error(err)
	suite.True(errors.HasCode(err, errors.ErrCodeInvalidConfiguration))
}

func (suite *WatchListTestSuite) TestUnknownSegment() {
	_, err := New([]Entry{{Code: "AAPL", Segment: "TSE"}})
	suite.Error(err)
	suite.True(errors.HasCode(err, errors.ErrCodeInvalidConfiguration))
}

func (suite *WatchListTestSuite) TestEmpty() {
	_, err := New(nil)
	suite.Error(err)
}

func (suite *WatchListTestSuite) TestFromSegments() {
	w, err := FromSegments(map[types.ExchangeSegment][]string{
		types.SegmentAMEX:   {"SPY"},
		types.SegmentNASDAQ: {"NVDA", "MU"},
	})
	suite.Require().NoError(err)
	suite.Equal([]string{"NVDA", "MU", "SPY"}, w.Codes())
}

func (suite *WatchListTestSuite) TestSymbolsIsCopy() {
	w, err := New([]Entry{{Code: "AAPL", Segment: "NASD"}})
	suite.Require().NoError(err)

	syms := w.Symbols()
	syms[0].Code = "CHANGED"

	suite.Equal("AAPL", w.Symbols()[0].Code)
}
