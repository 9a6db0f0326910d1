package indicator

import (
	"fmt"
	"math"
)

// TrueRange computes the per-bar true range:
// max(high-low, |high-prevClose|, |low-prevClose|). The first bar has no
// previous close, so its true range is NaN.
func TrueRange(high, low, closes []float64) ([]float64, error) {
	if len(high) != len(low) || len(low) != len(closes) {
		return nil, fmt.Errorf("indicator: high/low/close length mismatch: %d/%d/%d", len(high), len(low), len(closes))
	}

	tr := make([]float64, len(high))
	for i := range high {
		if i == 0 {
			tr[i] = math.NaN()
			continue
		}
		prev := closes[i-1]
		tr[i] = math.Max(high[i]-low[i], math.Max(math.Abs(high[i]-prev), math.Abs(low[i]-prev)))
	}
	return tr, nil
}

// ATR is the simple moving average of the true range over period bars.
// Values are NaN until period true-range values are available, i.e. the
// first defined ATR sits at index period (the first true range itself is
// undefined).
func ATR(high, low, closes []float64, period int) ([]float64, error) {
	if period <= 0 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidPeriod, period)
	}
	tr, err := TrueRange(high, low, closes)
	if err != nil {
		return nil, err
	}

	atr := make([]float64, len(tr))
	for i := range atr {
		atr[i] = math.NaN()
	}
	for i := period; i < len(tr); i++ {
		sum := 0.0
		defined := true
		for j := i - period + 1; j <= i; j++ {
			if math.IsNaN(tr[j]) {
				defined = false
				break
			}
			sum += tr[j]
		}
		if defined {
			atr[i] = sum / float64(period)
		}
	}
	return atr, nil
}
