// Package engine contains the strategy simulation core: simulated order
// execution, the portfolio ledger, risk-based position sizing and the
// bar-by-bar simulation loop.
package engine

import (
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/heishi1HUMANITY/adaptive-turtle-system/internal/model"
)

var (
	// ErrUnknownOrderKind reports an order kind the fill model cannot price.
	ErrUnknownOrderKind = errors.New("engine: unknown order kind")
	// ErrUnknownSide reports an unrecognized trade direction.
	ErrUnknownSide = errors.New("engine: unknown trade direction")
	// ErrInvalidLotSize reports a non-positive lot size.
	ErrInvalidLotSize = errors.New("engine: lot size must be positive")
)

// FillParams carries the execution-cost model for one symbol.
type FillParams struct {
	SlippagePips     float64
	CommissionPerLot float64
	PipPointValue    float64 // price units per pip
	LotSize          int64
}

// ExecuteOrder simulates the fill of a pending order against a reference
// price. Market orders fill at the reference price moved against the trader
// by the slippage; stop orders fill at their trigger price moved the same
// way. Filling sets price, commission, slippage and timestamp exactly once
// and flips status to filled. Non-pending orders are left untouched.
func ExecuteOrder(order *model.Order, referencePrice decimal.Decimal, p FillParams, fillTime time.Time) error {
	if order.Status != model.OrderStatusPending {
		return nil
	}
	if p.LotSize <= 0 {
		return fmt.Errorf("%w: got %d", ErrInvalidLotSize, p.LotSize)
	}

	slip := decimal.NewFromFloat(p.SlippagePips * p.PipPointValue)

	var base decimal.Decimal
	switch order.Kind {
	case model.OrderKindMarket:
		base = referencePrice
	case model.OrderKindStop:
		base = order.TriggerPrice
	default:
		return fmt.Errorf("%w: %q", ErrUnknownOrderKind, order.Kind)
	}

	var fill decimal.Decimal
	switch order.Side {
	case model.SideBuy:
		fill = base.Add(slip)
	case model.SideSell:
		fill = base.Sub(slip)
	default:
		return fmt.Errorf("%w: %q", ErrUnknownSide, order.Side)
	}

	commission := decimal.NewFromInt(order.Quantity).
		Div(decimal.NewFromInt(p.LotSize)).
		Mul(decimal.NewFromFloat(p.CommissionPerLot))

	order.FillPrice = fill
	order.Commission = commission
	order.Slippage = slip
	order.FilledAt = fillTime
	order.Status = model.OrderStatusFilled
	return nil
}
