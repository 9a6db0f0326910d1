// Package signal turns indicator and price series into discrete entry/exit
// signals. Bands are always compared one bar back: the close at index i is
// measured against the band value at index i-1, so no bar looks ahead at a
// channel that includes itself.
package signal

import (
	"errors"
	"fmt"
	"math"
)

// Signal values shared by entry and exit series.
const (
	Long  = 1
	Short = -1
	None  = 0
)

// ErrInvalidPeriod reports a non-positive period argument.
var ErrInvalidPeriod = errors.New("signal: period must be a positive integer")

// ErrSeriesMismatch reports input series of unequal length.
var ErrSeriesMismatch = errors.New("signal: input series must have equal length")

// Entries generates breakout entry signals: Long when the close exceeds the
// previous bar's upper band, Short when it falls below the previous bar's
// lower band. Comparisons against NaN bands yield None. When both conditions
// could hold, short wins by evaluation order; with upper >= lower that cannot
// happen for real inputs.
func Entries(closes, upperBand, lowerBand []float64, period int) ([]int, error) {
	if period <= 0 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidPeriod, period)
	}
	if len(closes) != len(upperBand) || len(closes) != len(lowerBand) {
		return nil, fmt.Errorf("%w: close=%d upper=%d lower=%d", ErrSeriesMismatch, len(closes), len(upperBand), len(lowerBand))
	}

	signals := make([]int, len(closes))
	for i := 1; i < len(closes); i++ {
		prevUpper := upperBand[i-1]
		prevLower := lowerBand[i-1]
		if !math.IsNaN(prevUpper) && closes[i] > prevUpper {
			signals[i] = Long
		}
		if !math.IsNaN(prevLower) && closes[i] < prevLower {
			signals[i] = Short
		}
	}
	return signals, nil
}

// Exits generates channel exit signals for bars where a position is held per
// positionState (Long, Short or None per bar). A long exits (-1) when the
// close drops below the previous bar's exit lower band; a short exits (+1)
// when the close rises above the previous bar's exit upper band.
func Exits(closes, upperExit, lowerExit []float64, longPeriod, shortPeriod int, positionState []int) ([]int, error) {
	if longPeriod <= 0 {
		return nil, fmt.Errorf("%w: long exit period %d", ErrInvalidPeriod, longPeriod)
	}
	if shortPeriod <= 0 {
		return nil, fmt.Errorf("%w: short exit period %d", ErrInvalidPeriod, shortPeriod)
	}
	if len(closes) != len(upperExit) || len(closes) != len(lowerExit) || len(closes) != len(positionState) {
		return nil, fmt.Errorf("%w: close=%d upper=%d lower=%d state=%d",
			ErrSeriesMismatch, len(closes), len(upperExit), len(lowerExit), len(positionState))
	}

	signals := make([]int, len(closes))
	for i := 1; i < len(closes); i++ {
		switch positionState[i] {
		case Long:
			if prev := lowerExit[i-1]; !math.IsNaN(prev) && closes[i] < prev {
				signals[i] = -1
			}
		case Short:
			if prev := upperExit[i-1]; !math.IsNaN(prev) && closes[i] > prev {
				signals[i] = 1
			}
		}
	}
	return signals, nil
}

// LongExit reports whether a held long should exit on this bar, given the
// previous bar's exit lower band. Scalar form used by the simulation loop.
func LongExit(closePrice, prevLowerExit float64) bool {
	return !math.IsNaN(prevLowerExit) && closePrice < prevLowerExit
}

// ShortExit reports whether a held short should exit on this bar, given the
// previous bar's exit upper band.
func ShortExit(closePrice, prevUpperExit float64) bool {
	return !math.IsNaN(prevUpperExit) && closePrice > prevUpperExit
}

// EntryAt evaluates the breakout entry rule for a single bar index against
// the previous bar's bands. Returns Long, Short or None.
func EntryAt(closes, upperBand, lowerBand []float64, i int) int {
	if i <= 0 || i >= len(closes) {
		return None
	}
	if prev := lowerBand[i-1]; !math.IsNaN(prev) && closes[i] < prev {
		return Short
	}
	if prev := upperBand[i-1]; !math.IsNaN(prev) && closes[i] > prev {
		return Long
	}
	return None
}
