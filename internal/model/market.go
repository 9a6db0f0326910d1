package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Bar is one OHLC candle of historical data for a single symbol.
type Bar struct {
	Symbol    string          `json:"symbol" db:"symbol"`
	Open      decimal.Decimal `json:"o" db:"open"`
	High      decimal.Decimal `json:"h" db:"high"`
	Low       decimal.Decimal `json:"l" db:"low"`
	Close     decimal.Decimal `json:"c" db:"close"`
	Volume    decimal.Decimal `json:"v" db:"volume"`
	Timestamp time.Time       `json:"t" db:"time"`
}

// Series extracts float64 price series from a bar slice for indicator math.
// Bars must already be sorted by timestamp.
func Series(bars []Bar) (high, low, closes []float64) {
	high = make([]float64, len(bars))
	low = make([]float64, len(bars))
	closes = make([]float64, len(bars))
	for i, b := range bars {
		high[i] = b.High.InexactFloat64()
		low[i] = b.Low.InexactFloat64()
		closes[i] = b.Close.InexactFloat64()
	}
	return high, low, closes
}
