// Package analyzer computes performance statistics over a finished
// backtest: profit measures, drawdown, risk-adjusted return and
// per-trade statistics.
package analyzer

import (
	"math"

	"github.com/shopspring/decimal"

	"github.com/heishi1HUMANITY/adaptive-turtle-system/internal/model"
)

// tradingDaysPerYear is the conventional annualization base for daily bars.
const tradingDaysPerYear = 252

// NetProfit is the final equity minus the initial capital.
func NetProfit(initialCapital decimal.Decimal, equityCurve []model.EquityPoint) decimal.Decimal {
	if len(equityCurve) == 0 {
		return decimal.Zero
	}
	return equityCurve[len(equityCurve)-1].Equity.Sub(initialCapital)
}

// ProfitFactor is gross profit divided by gross loss over closed trades.
// With no losing trades it is +Inf when there is any profit, 0 otherwise.
func ProfitFactor(trades []model.TradeRecord) float64 {
	grossProfit := decimal.Zero
	grossLoss := decimal.Zero
	for _, t := range trades {
		if !closesPosition(t) {
			continue
		}
		if t.RealizedPnL.IsPositive() {
			grossProfit = grossProfit.Add(t.RealizedPnL)
		} else {
			grossLoss = grossLoss.Add(t.RealizedPnL.Abs())
		}
	}
	if grossLoss.IsZero() {
		if grossProfit.IsPositive() {
			return math.Inf(1)
		}
		return 0
	}
	pf, _ := grossProfit.Div(grossLoss).Float64()
	return pf
}

// MaxDrawdown returns the largest peak-to-trough decline of the equity
// curve, as an absolute amount and as a fraction of the peak.
func MaxDrawdown(equityCurve []model.EquityPoint) (abs decimal.Decimal, pct float64) {
	if len(equityCurve) == 0 {
		return decimal.Zero, 0
	}
	peak := equityCurve[0].Equity
	for _, p := range equityCurve {
		if p.Equity.GreaterThan(peak) {
			peak = p.Equity
		}
		dd := peak.Sub(p.Equity)
		if dd.GreaterThan(abs) {
			abs = dd
			if peak.IsPositive() {
				pct, _ = dd.Div(peak).Float64()
			}
		}
	}
	return abs, pct
}

// SharpeRatio computes the annualized Sharpe ratio from the equity curve,
// assuming one point per trading day. riskFreeAnnual is the annual
// risk-free rate, e.g. 0.02. Returns 0 when there are fewer than two
// points or the return series has zero variance.
func SharpeRatio(equityCurve []model.EquityPoint, riskFreeAnnual float64) float64 {
	if len(equityCurve) < 2 {
		return 0
	}
	returns := make([]float64, 0, len(equityCurve)-1)
	for i := 1; i < len(equityCurve); i++ {
		prev, _ := equityCurve[i-1].Equity.Float64()
		cur, _ := equityCurve[i].Equity.Float64()
		if prev == 0 {
			returns = append(returns, 0)
			continue
		}
		returns = append(returns, cur/prev-1)
	}

	mean := 0.0
	for _, r := range returns {
		mean += r
	}
	mean /= float64(len(returns))

	variance := 0.0
	for _, r := range returns {
		d := r - mean
		variance += d * d
	}
	variance /= float64(len(returns))
	std := math.Sqrt(variance)
	if std == 0 {
		return 0
	}

	riskFreeDaily := riskFreeAnnual / tradingDaysPerYear
	return (mean - riskFreeDaily) / std * math.Sqrt(tradingDaysPerYear)
}

// TradeStats summarizes the closed trades of a backtest.
type TradeStats struct {
	Total      int             `json:"total_trades"`
	Wins       int             `json:"winning_trades"`
	Losses     int             `json:"losing_trades"`
	Breakeven  int             `json:"breakeven_trades"`
	WinRate    float64         `json:"win_rate"`
	AvgProfit  decimal.Decimal `json:"average_profit"`
	AvgLoss    decimal.Decimal `json:"average_loss"`
	BestTrade  decimal.Decimal `json:"best_trade"`
	WorstTrade decimal.Decimal `json:"worst_trade"`
}

// TradeStatistics aggregates realized results over exit and reduction
// records; entry records carry no realized P&L and are ignored.
func TradeStatistics(trades []model.TradeRecord) TradeStats {
	var s TradeStats
	sumProfit := decimal.Zero
	sumLoss := decimal.Zero
	first := true
	for _, t := range trades {
		if !closesPosition(t) {
			continue
		}
		s.Total++
		pnl := t.RealizedPnL
		switch {
		case pnl.IsPositive():
			s.Wins++
			sumProfit = sumProfit.Add(pnl)
		case pnl.IsNegative():
			s.Losses++
			sumLoss = sumLoss.Add(pnl)
		default:
			s.Breakeven++
		}
		if first {
			s.BestTrade = pnl
			s.WorstTrade = pnl
			first = false
			continue
		}
		if pnl.GreaterThan(s.BestTrade) {
			s.BestTrade = pnl
		}
		if pnl.LessThan(s.WorstTrade) {
			s.WorstTrade = pnl
		}
	}
	if s.Total > 0 {
		s.WinRate = float64(s.Wins) / float64(s.Total)
	}
	if s.Wins > 0 {
		s.AvgProfit = sumProfit.Div(decimal.NewFromInt(int64(s.Wins)))
	}
	if s.Losses > 0 {
		s.AvgLoss = sumLoss.Div(decimal.NewFromInt(int64(s.Losses)))
	}
	return s
}

func closesPosition(t model.TradeRecord) bool {
	return t.Type == model.TradeTypeExit || t.Type == model.TradeTypeReduction
}

// Report bundles every KPI computed for a backtest result.
type Report struct {
	InitialCapital decimal.Decimal `json:"initial_capital"`
	FinalEquity    decimal.Decimal `json:"final_equity"`
	NetProfit      decimal.Decimal `json:"net_profit"`
	NetProfitPct   float64         `json:"net_profit_pct"`
	ProfitFactor   float64         `json:"profit_factor"`
	MaxDrawdown    decimal.Decimal `json:"max_drawdown"`
	MaxDrawdownPct float64         `json:"max_drawdown_pct"`
	SharpeRatio    float64         `json:"sharpe_ratio"`
	Trades         TradeStats      `json:"trades"`
}

// CalculateAllKPIs flattens the report's scalar metrics into a map keyed by
// metric name.
func CalculateAllKPIs(result *model.BacktestResult, riskFreeAnnual float64) map[string]float64 {
	r := Analyze(result, riskFreeAnnual)
	netProfit, _ := r.NetProfit.Float64()
	maxDD, _ := r.MaxDrawdown.Float64()
	return map[string]float64{
		"net_profit":       netProfit,
		"net_profit_pct":   r.NetProfitPct,
		"profit_factor":    r.ProfitFactor,
		"max_drawdown":     maxDD,
		"max_drawdown_pct": r.MaxDrawdownPct,
		"sharpe_ratio":     r.SharpeRatio,
		"total_trades":     float64(r.Trades.Total),
		"winning_trades":   float64(r.Trades.Wins),
		"losing_trades":    float64(r.Trades.Losses),
		"breakeven_trades": float64(r.Trades.Breakeven),
		"win_rate":         r.Trades.WinRate,
	}
}

// Analyze computes the full KPI report for a backtest result.
func Analyze(result *model.BacktestResult, riskFreeAnnual float64) Report {
	r := Report{
		InitialCapital: result.Summary.InitialCapital,
		FinalEquity:    result.Summary.FinalEquity,
	}
	r.NetProfit = NetProfit(result.Summary.InitialCapital, result.EquityCurve)
	if result.Summary.InitialCapital.IsPositive() {
		r.NetProfitPct, _ = r.NetProfit.Div(result.Summary.InitialCapital).Float64()
	}
	r.ProfitFactor = ProfitFactor(result.TradeLog)
	r.MaxDrawdown, r.MaxDrawdownPct = MaxDrawdown(result.EquityCurve)
	r.SharpeRatio = SharpeRatio(result.EquityCurve, riskFreeAnnual)
	r.Trades = TradeStatistics(result.TradeLog)
	return r
}
