package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rxtech-lab/argo-autotrade/internal/config"
	"github.com/rxtech-lab/argo-autotrade/internal/health"
	"github.com/rxtech-lab/argo-autotrade/internal/kis"
	"github.com/rxtech-lab/argo-autotrade/internal/logger"
	"github.com/rxtech-lab/argo-autotrade/internal/notify"
	"github.com/rxtech-lab/argo-autotrade/internal/trading/engine"
	enginev1 "github.com/rxtech-lab/argo-autotrade/internal/trading/engine/engine_v1"
	"github.com/rxtech-lab/argo-autotrade/internal/trading/engine/engine_v1/session"
	tradingprovider "github.com/rxtech-lab/argo-autotrade/internal/trading/provider"
	"github.com/rxtech-lab/argo-autotrade/internal/types"
	"github.com/rxtech-lab/argo-autotrade/internal/watchlist"
	"github.com/rxtech-lab/argo-autotrade/pkg/errors"
	"github.com/rxtech-lab/argo-autotrade/pkg/marketdata/provider"
	"github.com/urfave/cli/v3"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// providers bundles the collaborators built from the configuration.
type providers struct {
	marketData provider.MarketDataPort
	executor   tradingprovider.TradeExecutor
}

// buildProviders creates the market data source and the trade executor.
// When both use KIS they share one client so only one access token is issued.
func buildProviders(cfg *config.Config, log *logger.Logger) (providers, error) {
	wl, err := watchlist.New(cfg.Session.WatchList)
	if err != nil {
		return providers{}, err
	}

	segments := make([]types.ExchangeSegment, 0, wl.Len())
	for _, sym := range wl.Symbols() {
		segments = append(segments, sym.Segment)
	}

	var client *kis.Client

	if cfg.UsesKIS() {
		client, err = kis.NewClient(cfg.KISConfig(), log)
		if err != nil {
			return providers{}, err
		}
	}

	var marketData provider.MarketDataPort

	switch provider.ProviderType(cfg.MarketDataProvider) {
	case provider.ProviderKIS:
		marketData, err = provider.NewMarketDataProvider(provider.ProviderKIS, client)
	case provider.ProviderPolygon:
		marketData, err = provider.NewMarketDataProvider(provider.ProviderPolygon, cfg.PolygonAPIKey)
	default:
		err = errors.Newf(errors.ErrCodeInvalidConfiguration, "unsupported market data provider: %s", cfg.MarketDataProvider)
	}

	if err != nil {
		return providers{}, err
	}

	var executor tradingprovider.TradeExecutor

	switch tradingprovider.ProviderType(cfg.TradingProvider) {
	case tradingprovider.ProviderKISLive, tradingprovider.ProviderKISPaper:
		executor = tradingprovider.NewKISExecutor(client, segments)
	case tradingprovider.ProviderPaper:
		paper := cfg.Paper
		executor, err = tradingprovider.NewTradeExecutor(tradingprovider.ProviderPaper, &paper, segments)
	default:
		err = errors.Newf(errors.ErrCodeInvalidConfiguration, "unsupported trading provider: %s", cfg.TradingProvider)
	}

	if err != nil {
		return providers{}, err
	}

	return providers{marketData: marketData, executor: executor}, nil
}

func newSink(cfg *config.Config, log *logger.Logger) notify.Sink {
	sinks := []notify.Sink{notify.NewLogSink(log)}
	if cfg.DiscordWebhookURL != "" {
		sinks = append(sinks, notify.NewDiscordSink(cfg.DiscordWebhookURL, log))
	}

	return notify.NewMultiSink(sinks...)
}

func runAction(ctx context.Context, cmd *cli.Command) error {
	cfg, err := config.Load(cmd.String("config"), cmd.StringSlice("env-file")...)
	if err != nil {
		return err
	}

	log, err := logger.NewLoggerWithLevel(cfg.LogLevel)
	if err != nil {
		return err
	}

	defer func() { _ = log.Sync() }()

	deps, err := buildProviders(cfg, log)
	if err != nil {
		return err
	}

	calendar, err := session.NewCalendar(cfg.Session.Calendar)
	if err != nil {
		return err
	}

	eng := enginev1.NewSessionEngineV1WithClock(log, session.SystemClock{})
	if err := eng.Initialize(cfg.Session); err != nil {
		return err
	}

	if err := eng.SetMarketDataProvider(deps.marketData); err != nil {
		return err
	}

	if err := eng.SetTradeExecutor(deps.executor); err != nil {
		return err
	}

	if err := eng.SetNotifier(newSink(cfg, log)); err != nil {
		return err
	}

	if err := eng.SetDataOutputPath(cfg.OutputDir); err != nil {
		return err
	}

	status := health.NewStatus(time.Now)
	metrics := health.NewMetrics()
	callbacks := newCallbacks(status, metrics, log)

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	g, gctx := errgroup.WithContext(runCtx)

	if cfg.Health.Port > 0 {
		server := health.NewServer(status, metrics, cfg.Health.StaleAfter, log)
		addr := fmt.Sprintf(":%d", cfg.Health.Port)

		g.Go(func() error {
			return server.Run(gctx, addr)
		})
	}

	g.Go(func() error {
		// The health server stops with the last session.
		defer cancel()

		return runSessions(gctx, eng, calendar, cmd.Bool("daemon"), callbacks, log)
	})

	err = g.Wait()
	if errors.Is(err, context.Canceled) {
		log.Info("Stopped")

		return nil
	}

	return err
}

// runSessions runs one session, or in daemon mode every session until ctx is cancelled.
func runSessions(ctx context.Context, eng engine.SessionEngine, calendar *session.Calendar, daemon bool,
	callbacks engine.SessionCallbacks, log *logger.Logger) error {
	for {
		if err := eng.Run(ctx, callbacks); err != nil {
			return err
		}

		if !daemon {
			return nil
		}

		next := calendar.NextOpen(time.Now())
		log.Info("Waiting for the next session", zap.Time("open", next))

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(time.Until(next)):
		}
	}
}

func checkAction(ctx context.Context, cmd *cli.Command) error {
	cfg, err := config.Load(cmd.String("config"), cmd.StringSlice("env-file")...)
	if err != nil {
		return err
	}

	out, err := cfg.Redacted().Marshal()
	if err != nil {
		return err
	}

	fmt.Println(string(out))

	if cmd.Bool("offline") {
		fmt.Println("Configuration OK")

		return nil
	}

	log, err := logger.NewLoggerWithLevel(cfg.LogLevel)
	if err != nil {
		return err
	}

	defer func() { _ = log.Sync() }()

	deps, err := buildProviders(cfg, log)
	if err != nil {
		return err
	}

	checkCtx, cancel := context.WithTimeout(ctx, cfg.Session.CallTimeout)
	defer cancel()

	if err := deps.executor.CheckConnection(checkCtx); err != nil {
		return errors.Wrap(errors.ErrCodeFatal, "broker connection failed", err)
	}

	account, err := deps.executor.AccountInfo(checkCtx)
	if err != nil {
		return err
	}

	fmt.Printf("Broker OK: buying power $%.2f (cash %.0f KRW at %.2f)\n",
		account.BuyingPowerUSD, account.CashKRW, account.ExchangeRate)

	return nil
}

func schemaAction(_ context.Context, cmd *cli.Command) error {
	var (
		schema string
		err    error
	)

	if name := cmd.String("provider"); name != "" {
		schema, err = tradingprovider.GetProviderConfigSchema(name)
	} else {
		schema, err = config.Schema()
	}

	if err != nil {
		return err
	}

	fmt.Println(schema)

	return nil
}
