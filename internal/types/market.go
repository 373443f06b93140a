package types

import "time"

// DailyBar is one day of OHLC data. Close is zero when the upstream row could not be parsed.
type DailyBar struct {
	Date  time.Time `yaml:"date" json:"date"`
	Open  float64   `yaml:"open" json:"open"`
	High  float64   `yaml:"high" json:"high"`
	Low   float64   `yaml:"low" json:"low"`
	Close float64   `yaml:"close" json:"close"`
}

// Quote is a current price observation.
type Quote struct {
	Symbol Symbol    `yaml:"symbol" json:"symbol"`
	Price  float64   `yaml:"price" json:"price"`
	Time   time.Time `yaml:"time" json:"time"`
}
