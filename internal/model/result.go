package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// EquityPoint is one (timestamp, total equity) sample of the equity curve.
type EquityPoint struct {
	Timestamp time.Time       `json:"timestamp"`
	Equity    decimal.Decimal `json:"equity"`
}

// PortfolioSummary condenses the terminal ledger state of a run.
type PortfolioSummary struct {
	InitialCapital decimal.Decimal `json:"initial_capital"`
	FinalCapital   decimal.Decimal `json:"final_capital"`
	FinalEquity    decimal.Decimal `json:"final_equity"`
	TotalTrades    int             `json:"total_trades"`
}

// BacktestResult is everything a completed simulation produces: the full
// equity curve (one point per simulated timestamp), the ordered trade log,
// and every order ever created, including cancelled and never-filled ones.
type BacktestResult struct {
	EquityCurve []EquityPoint    `json:"equity_curve"`
	TradeLog    []TradeRecord    `json:"trade_log"`
	Orders      []*Order         `json:"orders"`
	Summary     PortfolioSummary `json:"portfolio_summary"`
}
