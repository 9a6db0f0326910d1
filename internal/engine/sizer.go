package engine

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// Sizing validation errors. Degenerate market inputs (flat ATR, zero pip
// value, exhausted risk budget) are not errors: they size to zero units.
var (
	ErrNonPositiveEquity = errors.New("engine: account equity must be positive")
	ErrInvalidRiskPct    = errors.New("engine: risk percentage per trade must be in (0, 1)")
	ErrInvalidRiskLimit  = errors.New("engine: total risk percentage limit must be in (0, 1]")
	ErrNegativeUnits     = errors.New("engine: unit counts cannot be negative")
)

// SizeRequest carries every input of the position-sizing algorithm. ATR is
// expressed in pips; the stop distance is StopATRMultiplier x ATR.
type SizeRequest struct {
	Equity             decimal.Decimal
	RiskPerTrade       float64
	ATRPips            float64
	StopATRMultiplier  float64
	PipValuePerLot     float64
	LotSize            int64
	MaxUnitsForMarket  int64
	CurrentUnitsHeld   int64
	TotalRiskLimit     float64
	CurrentOpenRiskPct float64
}

// SizePosition computes the unit count for a new trade under three caps
// applied in order: the per-trade risk budget, the per-market unit cap, then
// the total-portfolio risk headroom. Each stage can only shrink the previous
// stage's result. Returns 0 when no trade should be made.
func SizePosition(req SizeRequest) (int64, error) {
	if !req.Equity.IsPositive() {
		return 0, fmt.Errorf("%w: got %s", ErrNonPositiveEquity, req.Equity)
	}
	if req.RiskPerTrade <= 0 || req.RiskPerTrade >= 1 {
		return 0, fmt.Errorf("%w: got %g", ErrInvalidRiskPct, req.RiskPerTrade)
	}
	if req.LotSize <= 0 {
		return 0, fmt.Errorf("%w: got %d", ErrInvalidLotSize, req.LotSize)
	}
	if req.MaxUnitsForMarket < 0 || req.CurrentUnitsHeld < 0 {
		return 0, fmt.Errorf("%w: max=%d current=%d", ErrNegativeUnits, req.MaxUnitsForMarket, req.CurrentUnitsHeld)
	}
	if req.TotalRiskLimit <= 0 || req.TotalRiskLimit > 1 {
		return 0, fmt.Errorf("%w: got %g", ErrInvalidRiskLimit, req.TotalRiskLimit)
	}
	if req.ATRPips <= 0 {
		// Flat or missing volatility cannot be sized.
		return 0, nil
	}
	if req.PipValuePerLot <= 0 {
		return 0, nil
	}
	if req.CurrentOpenRiskPct >= req.TotalRiskLimit {
		return 0, nil
	}

	lotSize := decimal.NewFromInt(req.LotSize)
	riskAmount := req.Equity.Mul(decimal.NewFromFloat(req.RiskPerTrade))
	stopPips := decimal.NewFromFloat(req.StopATRMultiplier * req.ATRPips)
	riskPerLot := stopPips.Mul(decimal.NewFromFloat(req.PipValuePerLot))
	if !riskPerLot.IsPositive() {
		return 0, nil
	}

	units := riskAmount.Div(riskPerLot).Mul(lotSize).Floor().IntPart()
	if units <= 0 {
		return 0, nil
	}

	headroom := req.MaxUnitsForMarket - req.CurrentUnitsHeld
	if headroom < 0 {
		headroom = 0
	}
	if units > headroom {
		units = headroom
	}
	if units <= 0 {
		return 0, nil
	}

	maxAdditionalRisk := req.Equity.Mul(decimal.NewFromFloat(req.TotalRiskLimit)).
		Sub(req.Equity.Mul(decimal.NewFromFloat(req.CurrentOpenRiskPct)))
	if maxAdditionalRisk.IsNegative() {
		maxAdditionalRisk = decimal.Zero
	}
	tradeRisk := decimal.NewFromInt(units).Div(lotSize).Mul(riskPerLot)
	if tradeRisk.GreaterThan(maxAdditionalRisk) {
		units = maxAdditionalRisk.Div(riskPerLot).Mul(lotSize).Floor().IntPart()
	}

	if units <= 0 {
		return 0, nil
	}
	return units, nil
}
