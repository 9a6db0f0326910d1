package engine

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"

	"github.com/heishi1HUMANITY/adaptive-turtle-system/internal/config"
	"github.com/heishi1HUMANITY/adaptive-turtle-system/internal/model"
)

// testStrategyConfig uses a synthetic instrument where one pip is one price
// unit and one lot is one unit, so sized quantities and P&L can be checked
// by hand.
func testStrategyConfig() *config.StrategyConfig {
	return &config.StrategyConfig{
		Markets:                   []string{"SYN"},
		EntryDonchianPeriod:       3,
		TakeProfitLongExitPeriod:  2,
		TakeProfitShortExitPeriod: 2,
		ATRPeriod:                 2,
		StopLossATRMultiplier:     2,
		RiskPerTrade:              0.01,
		TotalPortfolioRiskLimit:   0.1,
		SlippagePips:              0,
		CommissionPerLot:          0,
		PipPointValue:             map[string]float64{"SYN": 1},
		LotSize:                   map[string]int64{"SYN": 1},
		MaxUnitsPerMarket:         map[string]int64{"SYN": 10000},
		InitialCapital:            100000,
	}
}

// dojiBars builds bars where open, high, low and close all equal the given
// price, one bar per day.
func dojiBars(symbol string, prices []float64) []model.Bar {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	bars := make([]model.Bar, len(prices))
	for i, p := range prices {
		d := decimal.NewFromFloat(p)
		bars[i] = model.Bar{
			Symbol: symbol, Open: d, High: d, Low: d, Close: d,
			Timestamp: start.AddDate(0, 0, i),
		}
	}
	return bars
}

func TestSimulator_LongEntryAndStopOut(t *testing.T) {
	// Breakout at 105 over the 100 channel; ATR(2) there is (0+5)/2 = 2.5,
	// stop distance 5, so the stop sits at 100. Risk 1000 / 5 = 200 units.
	bars := dojiBars("SYN", []float64{100, 100, 100, 100, 105, 106, 0})
	last := &bars[6]
	last.Open = decimal.NewFromFloat(104)
	last.High = decimal.NewFromFloat(106)
	last.Low = decimal.NewFromFloat(99.5)
	last.Close = decimal.NewFromFloat(101)

	sim := NewSimulator(testStrategyConfig(), zap.NewNop())
	result, err := sim.Run(context.Background(), map[string][]model.Bar{"SYN": bars})
	assert.NoError(t, err)

	assert.Len(t, result.EquityCurve, 7)
	assert.Len(t, result.TradeLog, 2)

	entry := result.TradeLog[0]
	assert.Equal(t, model.TradeTypeEntry, entry.Type)
	assert.Equal(t, model.SideBuy, entry.Action)
	assert.Equal(t, int64(200), entry.Quantity)
	assert.True(t, entry.Price.Equal(decimal.NewFromInt(105)), "entry price %s", entry.Price)

	// Low 99.5 pierces the stop at 100; the stop fills at its trigger.
	exit := result.TradeLog[1]
	assert.Equal(t, model.TradeTypeExit, exit.Type)
	assert.True(t, exit.Price.Equal(decimal.NewFromInt(100)), "exit price %s", exit.Price)
	// (100-105)*200 = -1000, exactly the 1% risked
	assert.True(t, exit.RealizedPnL.Equal(decimal.NewFromInt(-1000)), "pnl %s", exit.RealizedPnL)

	final := result.EquityCurve[6].Equity
	assert.True(t, final.Equal(decimal.NewFromInt(99000)), "final equity %s", final)
	assert.Equal(t, 1, result.Summary.TotalTrades)
}

func TestSimulator_ChannelExit(t *testing.T) {
	// Same entry at 105 with stop at 100; price rises then closes at 103,
	// below the previous 2-bar low of 106, without touching the stop.
	bars := dojiBars("SYN", []float64{100, 100, 100, 100, 105, 106, 107, 103})

	sim := NewSimulator(testStrategyConfig(), zap.NewNop())
	result, err := sim.Run(context.Background(), map[string][]model.Bar{"SYN": bars})
	assert.NoError(t, err)

	assert.Len(t, result.TradeLog, 2)
	exit := result.TradeLog[1]
	assert.True(t, exit.Price.Equal(decimal.NewFromInt(103)))
	// (103-105)*200 = -400
	assert.True(t, exit.RealizedPnL.Equal(decimal.NewFromInt(-400)), "pnl %s", exit.RealizedPnL)

	// The protective stop must have been cancelled, not left dangling
	for _, o := range result.Orders {
		if o.Kind == model.OrderKindStop {
			assert.Equal(t, model.OrderStatusCancelled, o.Status)
		}
	}
}

func TestSimulator_StopPreemptsChannelExitSameBar(t *testing.T) {
	// The final bar both pierces the stop (low 99) and closes below the
	// exit band (101 < 105). Only the stop may fire.
	bars := dojiBars("SYN", []float64{100, 100, 100, 100, 105, 106, 0})
	last := &bars[6]
	last.Open = decimal.NewFromFloat(104)
	last.High = decimal.NewFromFloat(106)
	last.Low = decimal.NewFromFloat(99)
	last.Close = decimal.NewFromFloat(101)

	sim := NewSimulator(testStrategyConfig(), zap.NewNop())
	result, err := sim.Run(context.Background(), map[string][]model.Bar{"SYN": bars})
	assert.NoError(t, err)

	assert.Len(t, result.TradeLog, 2)
	assert.True(t, result.TradeLog[1].Price.Equal(decimal.NewFromInt(100)))
}

func TestSimulator_ShortEntry(t *testing.T) {
	// Breakdown at 94 under the 100 channel; ATR(2) is (0+6)/2 = 3, stop
	// distance 6. Risk 1000 / 6 floors to 166 units.
	bars := dojiBars("SYN", []float64{100, 100, 100, 100, 94})

	sim := NewSimulator(testStrategyConfig(), zap.NewNop())
	result, err := sim.Run(context.Background(), map[string][]model.Bar{"SYN": bars})
	assert.NoError(t, err)

	assert.Len(t, result.TradeLog, 1)
	entry := result.TradeLog[0]
	assert.Equal(t, model.SideSell, entry.Action)
	assert.Equal(t, int64(166), entry.Quantity)

	// The protective stop is a pending buy at 94+6
	var stop *model.Order
	for _, o := range result.Orders {
		if o.Kind == model.OrderKindStop {
			stop = o
		}
	}
	assert.NotNil(t, stop)
	assert.Equal(t, model.OrderStatusPending, stop.Status)
	assert.Equal(t, model.SideBuy, stop.Side)
	assert.True(t, stop.TriggerPrice.Equal(decimal.NewFromInt(100)), "trigger %s", stop.TriggerPrice)
}

func TestSimulator_EmergencyStopBlocksEntries(t *testing.T) {
	bars := dojiBars("SYN", []float64{100, 100, 100, 100, 105, 106, 107})

	cfg := testStrategyConfig()
	cfg.EmergencyStop = true
	sim := NewSimulator(cfg, zap.NewNop())
	result, err := sim.Run(context.Background(), map[string][]model.Bar{"SYN": bars})
	assert.NoError(t, err)

	assert.Empty(t, result.TradeLog)
	assert.Len(t, result.EquityCurve, 7)
	assert.True(t, result.EquityCurve[6].Equity.Equal(decimal.NewFromInt(100000)))
}

func TestSimulator_NoDataForAnyMarket(t *testing.T) {
	sim := NewSimulator(testStrategyConfig(), zap.NewNop())
	_, err := sim.Run(context.Background(), map[string][]model.Bar{})
	assert.Error(t, err)
}

func TestSimulator_InvalidConfig(t *testing.T) {
	cfg := testStrategyConfig()
	cfg.ATRPeriod = 0
	sim := NewSimulator(cfg, zap.NewNop())
	_, err := sim.Run(context.Background(), map[string][]model.Bar{"SYN": dojiBars("SYN", []float64{100})})
	assert.Error(t, err)
}

func TestSimulator_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	sim := NewSimulator(testStrategyConfig(), zap.NewNop())
	_, err := sim.Run(ctx, map[string][]model.Bar{"SYN": dojiBars("SYN", []float64{100, 101})})
	assert.ErrorIs(t, err, context.Canceled)
}

func twoSymbolConfig() *config.StrategyConfig {
	cfg := testStrategyConfig()
	cfg.Markets = []string{"SYN1", "SYN2"}
	cfg.PipPointValue = map[string]float64{"SYN1": 1, "SYN2": 1}
	cfg.LotSize = map[string]int64{"SYN1": 1, "SYN2": 1}
	cfg.MaxUnitsPerMarket = map[string]int64{"SYN1": 10000, "SYN2": 10000}
	return cfg
}

func TestSimulator_TotalRiskCapsSecondEntry(t *testing.T) {
	// Both symbols break out at 105 on the same bar. The first entry takes
	// 200 units risking 1% (1000). With a 1.2% total limit only 0.2%
	// headroom (200) remains, so the second entry scales to 200/5 = 40
	// units instead of its raw 200.
	cfg := twoSymbolConfig()
	cfg.TotalPortfolioRiskLimit = 0.012

	prices := []float64{100, 100, 100, 100, 105}
	sim := NewSimulator(cfg, zap.NewNop())
	result, err := sim.Run(context.Background(), map[string][]model.Bar{
		"SYN1": dojiBars("SYN1", prices),
		"SYN2": dojiBars("SYN2", prices),
	})
	assert.NoError(t, err)

	assert.Len(t, result.TradeLog, 2)
	first := result.TradeLog[0]
	assert.Equal(t, "SYN1", first.Symbol)
	assert.Equal(t, int64(200), first.Quantity)

	second := result.TradeLog[1]
	assert.Equal(t, "SYN2", second.Symbol)
	assert.Equal(t, int64(40), second.Quantity)
}

func TestSimulator_SymbolsTradeIndependently(t *testing.T) {
	// With ample risk headroom both symbols take their full size and each
	// carries its own protective stop.
	cfg := twoSymbolConfig()

	prices := []float64{100, 100, 100, 100, 105}
	sim := NewSimulator(cfg, zap.NewNop())
	result, err := sim.Run(context.Background(), map[string][]model.Bar{
		"SYN1": dojiBars("SYN1", prices),
		"SYN2": dojiBars("SYN2", prices),
	})
	assert.NoError(t, err)

	assert.Len(t, result.TradeLog, 2)
	assert.Equal(t, int64(200), result.TradeLog[0].Quantity)
	assert.Equal(t, int64(200), result.TradeLog[1].Quantity)

	stops := make(map[string]bool)
	for _, o := range result.Orders {
		if o.Kind == model.OrderKindStop && o.Status == model.OrderStatusPending {
			stops[o.Symbol] = true
		}
	}
	assert.True(t, stops["SYN1"])
	assert.True(t, stops["SYN2"])
}

func TestSimulator_OneSymbolEndsEarly(t *testing.T) {
	// SYN2's history stops after 3 bars; the union timeline still covers
	// all 7 timestamps and SYN1 trades normally on the later bars.
	cfg := twoSymbolConfig()

	sim := NewSimulator(cfg, zap.NewNop())
	result, err := sim.Run(context.Background(), map[string][]model.Bar{
		"SYN1": dojiBars("SYN1", []float64{100, 100, 100, 100, 105, 106, 107}),
		"SYN2": dojiBars("SYN2", []float64{100, 100, 100}),
	})
	assert.NoError(t, err)

	assert.Len(t, result.EquityCurve, 7)
	assert.Len(t, result.TradeLog, 1)
	assert.Equal(t, "SYN1", result.TradeLog[0].Symbol)
}

func TestSimulator_ConfiguredMarketWithoutData(t *testing.T) {
	// A configured market absent from the data map is skipped with a
	// warning, not an error.
	cfg := twoSymbolConfig()

	sim := NewSimulator(cfg, zap.NewNop())
	result, err := sim.Run(context.Background(), map[string][]model.Bar{
		"SYN1": dojiBars("SYN1", []float64{100, 100, 100, 100, 105}),
	})
	assert.NoError(t, err)

	assert.Len(t, result.TradeLog, 1)
	assert.Equal(t, "SYN1", result.TradeLog[0].Symbol)
}

func TestSimulator_Deterministic(t *testing.T) {
	bars := dojiBars("SYN", []float64{100, 100, 100, 100, 105, 106, 107, 103, 104, 110, 111, 102})

	sim := NewSimulator(testStrategyConfig(), zap.NewNop())
	first, err := sim.Run(context.Background(), map[string][]model.Bar{"SYN": bars})
	assert.NoError(t, err)
	second, err := sim.Run(context.Background(), map[string][]model.Bar{"SYN": bars})
	assert.NoError(t, err)

	assert.Equal(t, len(first.TradeLog), len(second.TradeLog))
	for i := range first.TradeLog {
		assert.True(t, first.TradeLog[i].Price.Equal(second.TradeLog[i].Price))
		assert.True(t, first.TradeLog[i].RealizedPnL.Equal(second.TradeLog[i].RealizedPnL))
	}
	for i := range first.EquityCurve {
		assert.True(t, first.EquityCurve[i].Equity.Equal(second.EquityCurve[i].Equity))
	}
}
