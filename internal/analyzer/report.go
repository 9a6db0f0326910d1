package analyzer

import (
	"fmt"
	"io"
	"math"
)

// WriteText renders the report as a plain-text summary block.
func (r Report) WriteText(w io.Writer) error {
	pf := fmt.Sprintf("%.2f", r.ProfitFactor)
	if math.IsInf(r.ProfitFactor, 1) {
		pf = "inf"
	}
	_, err := fmt.Fprintf(w, `=== Backtest Performance Report ===
Initial capital:   %s
Final equity:      %s
Net profit:        %s (%.2f%%)
Profit factor:     %s
Max drawdown:      %s (%.2f%%)
Sharpe ratio:      %.2f
Trades:            %d (won %d, lost %d, breakeven %d, win rate %.1f%%)
Average profit:    %s
Average loss:      %s
Best trade:        %s
Worst trade:       %s
`,
		r.InitialCapital.StringFixed(2),
		r.FinalEquity.StringFixed(2),
		r.NetProfit.StringFixed(2), r.NetProfitPct*100,
		pf,
		r.MaxDrawdown.StringFixed(2), r.MaxDrawdownPct*100,
		r.SharpeRatio,
		r.Trades.Total, r.Trades.Wins, r.Trades.Losses, r.Trades.Breakeven, r.Trades.WinRate*100,
		r.Trades.AvgProfit.StringFixed(2),
		r.Trades.AvgLoss.StringFixed(2),
		r.Trades.BestTrade.StringFixed(2),
		r.Trades.WorstTrade.StringFixed(2),
	)
	return err
}
