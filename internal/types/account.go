package types

// AccountInfo represents the brokerage account state the scheduler sizes orders from.
type AccountInfo struct {
	// BuyingPowerUSD is the cash available for new purchases, converted to USD
	BuyingPowerUSD float64 `json:"buying_power_usd" yaml:"buying_power_usd"`
	// CashKRW is the orderable cash as reported by the broker in KRW (zero for USD-native brokers)
	CashKRW float64 `json:"cash_krw" yaml:"cash_krw"`
	// ExchangeRate is the USD/KRW rate used for the conversion
	ExchangeRate float64 `json:"exchange_rate" yaml:"exchange_rate"`
}

// BalanceReport is a snapshot of broker holdings with evaluation figures.
type BalanceReport struct {
	Holdings []Holding `json:"holdings" yaml:"holdings"`
	// EvaluationPnL is the total evaluated profit/loss amount of the holdings
	EvaluationPnL float64 `json:"evaluation_pnl" yaml:"evaluation_pnl"`
	// TotalPnL is the overall overseas profit/loss
	TotalPnL float64 `json:"total_pnl" yaml:"total_pnl"`
}
