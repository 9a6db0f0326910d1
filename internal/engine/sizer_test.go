package engine

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func baseSizeRequest() SizeRequest {
	return SizeRequest{
		Equity:             decimal.NewFromInt(100000),
		RiskPerTrade:       0.01,
		ATRPips:            50,
		StopATRMultiplier:  2,
		PipValuePerLot:     10,
		LotSize:            100000,
		MaxUnitsForMarket:  150000,
		CurrentUnitsHeld:   0,
		TotalRiskLimit:     0.1,
		CurrentOpenRiskPct: 0,
	}
}

func TestSizePosition(t *testing.T) {
	// risk amount 1000, stop 100 pips, risk per lot 1000 -> exactly 1 lot
	units, err := SizePosition(baseSizeRequest())
	assert.NoError(t, err)
	assert.Equal(t, int64(100000), units)
}

func TestSizePosition_MarketUnitCap(t *testing.T) {
	req := baseSizeRequest()
	req.CurrentUnitsHeld = 100000
	// headroom 150000-100000 caps the 100000 raw units
	units, err := SizePosition(req)
	assert.NoError(t, err)
	assert.Equal(t, int64(50000), units)
}

func TestSizePosition_AtMarketUnitCap(t *testing.T) {
	req := baseSizeRequest()
	req.CurrentUnitsHeld = 150000
	units, err := SizePosition(req)
	assert.NoError(t, err)
	assert.Equal(t, int64(0), units)
}

func TestSizePosition_TotalRiskHeadroom(t *testing.T) {
	req := baseSizeRequest()
	req.TotalRiskLimit = 0.05
	req.CurrentOpenRiskPct = 0.0475
	// max additional risk 250, risk per lot 1000 -> quarter lot
	units, err := SizePosition(req)
	assert.NoError(t, err)
	assert.Equal(t, int64(25000), units)
}

func TestSizePosition_AtTotalRiskLimit(t *testing.T) {
	req := baseSizeRequest()
	req.TotalRiskLimit = 0.05
	req.CurrentOpenRiskPct = 0.05
	units, err := SizePosition(req)
	assert.NoError(t, err)
	assert.Equal(t, int64(0), units)
}

func TestSizePosition_DegenerateInputsSizeZero(t *testing.T) {
	req := baseSizeRequest()
	req.ATRPips = 0
	units, err := SizePosition(req)
	assert.NoError(t, err)
	assert.Equal(t, int64(0), units)

	req = baseSizeRequest()
	req.PipValuePerLot = 0
	units, err = SizePosition(req)
	assert.NoError(t, err)
	assert.Equal(t, int64(0), units)
}

func TestSizePosition_FractionalUnitsFloor(t *testing.T) {
	req := baseSizeRequest()
	req.ATRPips = 33
	// risk per lot 660, 1000/660*100000 = 151515.15 -> floored
	units, err := SizePosition(req)
	assert.NoError(t, err)
	// then capped by the 150000 market limit
	assert.Equal(t, int64(150000), units)

	req.MaxUnitsForMarket = 1000000
	units, err = SizePosition(req)
	assert.NoError(t, err)
	assert.Equal(t, int64(151515), units)
}

func TestSizePosition_ValidationErrors(t *testing.T) {
	req := baseSizeRequest()
	req.Equity = decimal.Zero
	_, err := SizePosition(req)
	assert.ErrorIs(t, err, ErrNonPositiveEquity)

	req = baseSizeRequest()
	req.RiskPerTrade = 0
	_, err = SizePosition(req)
	assert.ErrorIs(t, err, ErrInvalidRiskPct)

	req = baseSizeRequest()
	req.RiskPerTrade = 1
	_, err = SizePosition(req)
	assert.ErrorIs(t, err, ErrInvalidRiskPct)

	req = baseSizeRequest()
	req.TotalRiskLimit = 1.5
	_, err = SizePosition(req)
	assert.ErrorIs(t, err, ErrInvalidRiskLimit)

	req = baseSizeRequest()
	req.LotSize = 0
	_, err = SizePosition(req)
	assert.ErrorIs(t, err, ErrInvalidLotSize)

	req = baseSizeRequest()
	req.CurrentUnitsHeld = -1
	_, err = SizePosition(req)
	assert.ErrorIs(t, err, ErrNegativeUnits)
}
