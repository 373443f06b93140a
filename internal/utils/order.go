package utils

import (
	"github.com/shopspring/decimal"
)

// CalculateMaxQuantity returns how many whole shares balance buys at price.
// Fractional shares are not supported by the brokerage, so the result is floored.
func CalculateMaxQuantity(balance float64, price float64) int {
	if price <= 0 || balance <= 0 {
		return 0
	}

	qty := decimal.NewFromFloat(balance).Div(decimal.NewFromFloat(price)).Floor()

	return int(qty.IntPart())
}

// SlotAllocation is the USD budget of one position slot.
func SlotAllocation(buyingPower float64, fraction float64) float64 {
	if buyingPower <= 0 || fraction <= 0 {
		return 0
	}

	alloc, _ := decimal.NewFromFloat(buyingPower).Mul(decimal.NewFromFloat(fraction)).Float64()

	return alloc
}

// ConvertToUSD converts a KRW amount at the given USD/KRW rate.
func ConvertToUSD(amountKRW float64, rate float64) float64 {
	if rate <= 0 {
		return 0
	}

	usd, _ := decimal.NewFromFloat(amountKRW).Div(decimal.NewFromFloat(rate)).Round(2).Float64()

	return usd
}

// Notional returns quantity * price rounded to cents.
func Notional(quantity int, price float64) decimal.Decimal {
	return decimal.NewFromInt(int64(quantity)).Mul(decimal.NewFromFloat(price)).Round(2)
}
