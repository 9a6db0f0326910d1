package engine

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/heishi1HUMANITY/adaptive-turtle-system/internal/config"
	"github.com/heishi1HUMANITY/adaptive-turtle-system/internal/indicator"
	"github.com/heishi1HUMANITY/adaptive-turtle-system/internal/infrastructure"
	"github.com/heishi1HUMANITY/adaptive-turtle-system/internal/model"
	"github.com/heishi1HUMANITY/adaptive-turtle-system/internal/signal"
)

// Simulator drives one backtest run: indicators are precomputed per symbol,
// then every timestamp in the union of all symbols' data is replayed in
// order. All times come from the data's own index, never the wall clock, so
// identical inputs reproduce identical output.
type Simulator struct {
	cfg    *config.StrategyConfig
	logger *zap.Logger
}

// NewSimulator builds a simulator for one validated strategy configuration.
func NewSimulator(cfg *config.StrategyConfig, logger *zap.Logger) *Simulator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Simulator{cfg: cfg, logger: logger}
}

// symbolState is the per-symbol working set of a run: sorted bars, the
// precomputed indicator series, a timestamp index, and the position state
// machine (flat/long/short) carried across bars.
type symbolState struct {
	symbol     string
	bars       []model.Bar
	closes     []float64
	entryUpper []float64
	entryLower []float64
	exitUpper  []float64 // short-exit band
	exitLower  []float64 // long-exit band
	atr        []float64
	tsIndex    map[int64]int
	state      int // signal.Long, signal.Short or signal.None
}

// Run executes the simulation over the supplied historical data, keyed by
// symbol. Symbols configured but absent from the data are skipped with a
// warning; a missing bar for one symbol at one timestamp never aborts the
// run.
func (s *Simulator) Run(ctx context.Context, data map[string][]model.Bar) (*model.BacktestResult, error) {
	if err := s.cfg.Validate(); err != nil {
		return nil, err
	}

	states := make([]*symbolState, 0, len(s.cfg.Markets))
	for _, symbol := range s.cfg.Markets {
		bars, ok := data[symbol]
		if !ok || len(bars) == 0 {
			s.logger.Warn("no historical data for configured market", zap.String("symbol", symbol))
			continue
		}
		st, err := s.prepareSymbol(symbol, bars)
		if err != nil {
			return nil, fmt.Errorf("prepare %s: %w", symbol, err)
		}
		states = append(states, st)
	}
	if len(states) == 0 {
		return nil, fmt.Errorf("engine: no historical data for any configured market")
	}

	if s.cfg.EmergencyStop {
		s.logger.Warn("EMERGENCY STOP ACTIVATED: new trade entries are disabled")
	}

	timeline := unionTimeline(states)
	portfolio := NewPortfolio(decimal.NewFromFloat(s.cfg.InitialCapital), s.logger)
	equityCurve := make([]model.EquityPoint, 0, len(timeline))
	lastPrices := make(map[string]decimal.Decimal)

	for _, ts := range timeline {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		// Prices of symbols that have a bar at this timestamp. Positions in
		// absent symbols keep their previous mark.
		prices := make(map[string]decimal.Decimal)
		for _, st := range states {
			if idx, ok := st.tsIndex[ts]; ok {
				prices[st.symbol] = st.bars[idx].Close
			}
		}
		portfolio.UpdateUnrealizedPnL(prices)

		for _, st := range states {
			idx, ok := st.tsIndex[ts]
			if !ok {
				continue
			}
			if err := s.step(portfolio, st, idx, prices); err != nil {
				return nil, fmt.Errorf("simulate %s at %s: %w", st.symbol, st.bars[idx].Timestamp, err)
			}
		}

		equityCurve = append(equityCurve, model.EquityPoint{
			Timestamp: timeFromKey(states, ts),
			Equity:    portfolio.TotalEquity(prices),
		})
		for sym, price := range prices {
			lastPrices[sym] = price
		}
	}

	result := &model.BacktestResult{
		EquityCurve: equityCurve,
		TradeLog:    portfolio.TradeLog(),
		Orders:      portfolio.Orders(),
		Summary:     portfolio.Summary(lastPrices),
	}
	infrastructure.TradesSimulated.Add(float64(len(result.TradeLog)))
	return result, nil
}

// step applies the per-bar state machine for one symbol: stops first, then
// new entries, then channel exits. A position stopped out or opened on this
// bar is not eligible for a channel exit on the same bar.
func (s *Simulator) step(portfolio *Portfolio, st *symbolState, idx int, prices map[string]decimal.Decimal) error {
	bar := st.bars[idx]
	prevState := st.state
	stoppedThisBar := false
	enteredThisBar := false

	// Section A: pending stop orders against this bar's range.
	if stop := portfolio.PendingStopOrder(st.symbol); stop != nil {
		triggered := (stop.Side == model.SideSell && bar.Low.LessThanOrEqual(stop.TriggerPrice)) ||
			(stop.Side == model.SideBuy && bar.High.GreaterThanOrEqual(stop.TriggerPrice))
		if triggered {
			if err := ExecuteOrder(stop, bar.Close, s.fillParams(st.symbol), bar.Timestamp); err != nil {
				return err
			}
			if err := portfolio.ClosePosition(st.symbol, stop.FillPrice, bar.Timestamp, stop.ID, stop.Commission, stop.Slippage); err != nil {
				return err
			}
			st.state = signal.None
			stoppedThisBar = true
			s.logger.Info("stop loss triggered",
				zap.String("symbol", st.symbol),
				zap.String("fill_price", stop.FillPrice.String()),
				zap.Time("time", bar.Timestamp),
			)
		}
	}

	// Section B: breakout entries for flat symbols.
	if portfolio.Position(st.symbol) == nil && !s.cfg.EmergencyStop {
		if sig := signal.EntryAt(st.closes, st.entryUpper, st.entryLower, idx); sig != signal.None {
			entered, err := s.enter(portfolio, st, idx, sig, prices)
			if err != nil {
				return err
			}
			enteredThisBar = entered
		}
	}

	// Section C: channel exits for positions held when the bar opened.
	if prevState != signal.None && !stoppedThisBar && !enteredThisBar && portfolio.Position(st.symbol) != nil && idx > 0 {
		exit := false
		if prevState == signal.Long && signal.LongExit(st.closes[idx], st.exitLower[idx-1]) {
			exit = true
		}
		if prevState == signal.Short && signal.ShortExit(st.closes[idx], st.exitUpper[idx-1]) {
			exit = true
		}
		if exit {
			if err := s.exit(portfolio, st, bar); err != nil {
				return err
			}
		}
	}
	return nil
}

// enter sizes, submits and fills a market entry, then opens the position
// with its ATR-based protective stop. Returns false when sizing declines the
// trade.
func (s *Simulator) enter(portfolio *Portfolio, st *symbolState, idx int, sig int, prices map[string]decimal.Decimal) (bool, error) {
	bar := st.bars[idx]
	atrVal := st.atr[idx]
	if math.IsNaN(atrVal) || atrVal <= 0 {
		s.logger.Debug("entry signal without usable ATR, skipping",
			zap.String("symbol", st.symbol), zap.Time("time", bar.Timestamp))
		return false, nil
	}

	pipPoint := s.cfg.PipPointValue[st.symbol]
	equity := portfolio.TotalEquity(prices)
	units, err := SizePosition(SizeRequest{
		Equity:             equity,
		RiskPerTrade:       s.cfg.RiskPerTrade,
		ATRPips:            atrVal / pipPoint,
		StopATRMultiplier:  s.cfg.StopLossATRMultiplier,
		PipValuePerLot:     s.cfg.PipValuePerLot(st.symbol),
		LotSize:            s.cfg.LotSize[st.symbol],
		MaxUnitsForMarket:  s.cfg.MaxUnitsPerMarket[st.symbol],
		CurrentUnitsHeld:   portfolio.CurrentUnits(st.symbol),
		TotalRiskLimit:     s.cfg.TotalPortfolioRiskLimit,
		CurrentOpenRiskPct: portfolio.OpenRiskPercentage(prices),
	})
	if err != nil {
		return false, err
	}
	if units <= 0 {
		s.logger.Debug("entry signal sized to zero units",
			zap.String("symbol", st.symbol), zap.Time("time", bar.Timestamp))
		return false, nil
	}

	side := model.SideBuy
	if sig == signal.Short {
		side = model.SideSell
	}
	order := portfolio.NewOrder(st.symbol, model.OrderKindMarket, side, units, decimal.Zero, bar.Timestamp)
	if err := ExecuteOrder(order, bar.Close, s.fillParams(st.symbol), bar.Timestamp); err != nil {
		return false, err
	}

	stopDistance := decimal.NewFromFloat(s.cfg.StopLossATRMultiplier * atrVal)
	var stopPrice decimal.Decimal
	if side == model.SideBuy {
		stopPrice = order.FillPrice.Sub(stopDistance)
	} else {
		stopPrice = order.FillPrice.Add(stopDistance)
	}

	if err := portfolio.OpenPosition(st.symbol, side, units, order.FillPrice, bar.Timestamp, stopPrice, order.ID, order.Commission, order.Slippage); err != nil {
		return false, err
	}
	st.state = sig
	s.logger.Info("entered position",
		zap.String("symbol", st.symbol),
		zap.String("side", string(side)),
		zap.Int64("units", units),
		zap.String("fill_price", order.FillPrice.String()),
		zap.String("stop_price", stopPrice.String()),
		zap.Time("time", bar.Timestamp),
	)
	return true, nil
}

// exit fills a market order against the bar close and fully closes the
// position, cancelling its linked stop.
func (s *Simulator) exit(portfolio *Portfolio, st *symbolState, bar model.Bar) error {
	pos := portfolio.Position(st.symbol)
	side := model.SideSell
	if pos.Quantity < 0 {
		side = model.SideBuy
	}
	order := portfolio.NewOrder(st.symbol, model.OrderKindMarket, side, pos.AbsQuantity(), decimal.Zero, bar.Timestamp)
	if err := ExecuteOrder(order, bar.Close, s.fillParams(st.symbol), bar.Timestamp); err != nil {
		return err
	}
	if err := portfolio.ClosePosition(st.symbol, order.FillPrice, bar.Timestamp, order.ID, order.Commission, order.Slippage); err != nil {
		return err
	}
	st.state = signal.None
	s.logger.Info("exited position on channel break",
		zap.String("symbol", st.symbol),
		zap.String("fill_price", order.FillPrice.String()),
		zap.Time("time", bar.Timestamp),
	)
	return nil
}

// prepareSymbol sorts the bars and precomputes every indicator series used
// by the loop.
func (s *Simulator) prepareSymbol(symbol string, bars []model.Bar) (*symbolState, error) {
	sorted := make([]model.Bar, len(bars))
	copy(sorted, bars)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Timestamp.Before(sorted[j].Timestamp) })

	high, low, closes := model.Series(sorted)

	entryUpper, entryLower, err := indicator.DonchianChannel(high, low, s.cfg.EntryDonchianPeriod)
	if err != nil {
		return nil, err
	}
	_, exitLower, err := indicator.DonchianChannel(high, low, s.cfg.TakeProfitLongExitPeriod)
	if err != nil {
		return nil, err
	}
	exitUpper, _, err := indicator.DonchianChannel(high, low, s.cfg.TakeProfitShortExitPeriod)
	if err != nil {
		return nil, err
	}
	atr, err := indicator.ATR(high, low, closes, s.cfg.ATRPeriod)
	if err != nil {
		return nil, err
	}

	tsIndex := make(map[int64]int, len(sorted))
	for i, b := range sorted {
		tsIndex[b.Timestamp.UnixNano()] = i
	}

	return &symbolState{
		symbol:     symbol,
		bars:       sorted,
		closes:     closes,
		entryUpper: entryUpper,
		entryLower: entryLower,
		exitUpper:  exitUpper,
		exitLower:  exitLower,
		atr:        atr,
		tsIndex:    tsIndex,
		state:      signal.None,
	}, nil
}

func (s *Simulator) fillParams(symbol string) FillParams {
	return FillParams{
		SlippagePips:     s.cfg.SlippagePips,
		CommissionPerLot: s.cfg.CommissionPerLot,
		PipPointValue:    s.cfg.PipPointValue[symbol],
		LotSize:          s.cfg.LotSize[symbol],
	}
}

// unionTimeline merges every symbol's timestamps into one sorted, deduped
// sequence of unix-nano keys.
func unionTimeline(states []*symbolState) []int64 {
	seen := make(map[int64]struct{})
	keys := make([]int64, 0)
	for _, st := range states {
		for k := range st.tsIndex {
			if _, ok := seen[k]; !ok {
				seen[k] = struct{}{}
				keys = append(keys, k)
			}
		}
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}

// timeFromKey resolves a unix-nano timeline key back to the bar timestamp of
// any symbol trading at that instant.
func timeFromKey(states []*symbolState, key int64) time.Time {
	for _, st := range states {
		if idx, ok := st.tsIndex[key]; ok {
			return st.bars[idx].Timestamp
		}
	}
	return time.Unix(0, key)
}
