package types

import "time"

// Position is an open long position owned by the position ledger.
// HighWaterMark only ever increases while the position is held; it may sit below EntryPrice.
type Position struct {
	Symbol        Symbol    `yaml:"symbol" json:"symbol"`
	EntryPrice    float64   `yaml:"entry_price" json:"entry_price"`
	HighWaterMark float64   `yaml:"high_water_mark" json:"high_water_mark"`
	Quantity      int       `yaml:"quantity" json:"quantity"`
	OpenedAt      time.Time `yaml:"opened_at" json:"opened_at"`
}

// UnrealizedChange returns (price - entry) / entry.
func (p Position) UnrealizedChange(price float64) float64 {
	if p.EntryPrice <= 0 {
		return 0
	}

	return (price - p.EntryPrice) / p.EntryPrice
}

// Holding is a broker-reported balance line.
type Holding struct {
	Code     string `yaml:"code" json:"code"`
	Name     string `yaml:"name" json:"name"`
	Quantity int    `yaml:"quantity" json:"quantity"`
}
