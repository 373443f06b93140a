package breakout

import (
	"context"

	"github.com/rxtech-lab/argo-autotrade/internal/logger"
	"github.com/rxtech-lab/argo-autotrade/internal/types"
	"github.com/rxtech-lab/argo-autotrade/pkg/errors"
	"github.com/rxtech-lab/argo-autotrade/pkg/marketdata/provider"
	"go.uber.org/zap"
)

// TargetService fetches history, computes the target and hands it to the announcer.
type TargetService struct {
	port      provider.MarketDataPort
	cfg       Config
	announcer Announcer
	log       *logger.Logger

	tradingDate func() string
}

// ServiceOption configures a TargetService.
type ServiceOption func(*TargetService)

// WithTradingDate makes the service reject history whose newest bar is not the session
// returned by fn (YYYY-MM-DD). An empty date skips the check.
func WithTradingDate(fn func() string) ServiceOption {
	return func(s *TargetService) {
		s.tradingDate = fn
	}
}

func NewTargetService(port provider.MarketDataPort, cfg Config, announcer Announcer, log *logger.Logger, opts ...ServiceOption) *TargetService {
	s := &TargetService{
		port:        port,
		cfg:         cfg,
		announcer:   announcer,
		log:         log.Named("breakout"),
		tradingDate: nil,
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Target returns the symbol's target price for today.
// Transport errors keep their code so callers can tell transient failures from bad data.
func (s *TargetService) Target(ctx context.Context, symbol types.Symbol) (Target, error) {
	history, err := s.port.DailyHistory(ctx, symbol, s.cfg.HistoryDays())
	if err != nil {
		if errors.GetCode(err) != errors.ErrCodeUnknown {
			return Target{}, err
		}

		return Target{}, errors.Wrapf(errors.ErrCodeDataUnavailable, err, "failed to fetch daily history for %s", symbol.Code)
	}

	if s.tradingDate != nil {
		if date := s.tradingDate(); date != "" {
			if err := CheckSessionBar(symbol, history, date); err != nil {
				return Target{}, err
			}
		}
	}

	target, err := ComputeTarget(symbol, history, s.cfg)
	if err != nil {
		return Target{}, err
	}

	if target.Volatility.Fallback {
		s.log.Debug("Using fallback volatility",
			zap.String("symbol", symbol.Code),
			zap.Int("returns", target.Volatility.Returns),
		)
	}

	s.announcer.AnnounceOnce(ctx, target)

	return target, nil
}

// ResetDay clears the day's announcements.
func (s *TargetService) ResetDay() {
	s.announcer.Reset()
}
