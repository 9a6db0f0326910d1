// Package indicator provides the pure series math behind the trend strategy:
// Donchian channel bands and Average True Range. Series are plain []float64;
// indices with insufficient history hold NaN, mirroring how downstream signal
// code treats "no value" comparisons as false.
package indicator

import (
	"errors"
	"fmt"
	"math"
)

// ErrInvalidPeriod reports a non-positive lookback period.
var ErrInvalidPeriod = errors.New("indicator: period must be a positive integer")

// DonchianChannel computes the rolling max of high and rolling min of low
// over a trailing window of period bars, inclusive of the current bar.
// The first period-1 outputs are NaN.
func DonchianChannel(high, low []float64, period int) (upper, lower []float64, err error) {
	if period <= 0 {
		return nil, nil, fmt.Errorf("%w: got %d", ErrInvalidPeriod, period)
	}
	if len(high) != len(low) {
		return nil, nil, fmt.Errorf("indicator: high/low length mismatch: %d vs %d", len(high), len(low))
	}

	n := len(high)
	upper = make([]float64, n)
	lower = make([]float64, n)
	for i := 0; i < n; i++ {
		if i < period-1 {
			upper[i] = math.NaN()
			lower[i] = math.NaN()
			continue
		}
		hi := math.Inf(-1)
		lo := math.Inf(1)
		for j := i - period + 1; j <= i; j++ {
			if math.IsNaN(high[j]) || math.IsNaN(low[j]) {
				hi = math.NaN()
				lo = math.NaN()
				break
			}
			if high[j] > hi {
				hi = high[j]
			}
			if low[j] < lo {
				lo = low[j]
			}
		}
		upper[i] = hi
		lower[i] = lo
	}
	return upper, lower, nil
}
