package mocks

//go:generate mockgen -destination=./mock_marketdata.go -package=mocks github.com/rxtech-lab/argo-autotrade/pkg/marketdata/provider MarketDataPort
//go:generate mockgen -destination=./mock_trade_executor.go -package=mocks github.com/rxtech-lab/argo-autotrade/internal/trading/provider TradeExecutor
//go:generate mockgen -destination=./mock_notify.go -package=mocks github.com/rxtech-lab/argo-autotrade/internal/notify Sink
