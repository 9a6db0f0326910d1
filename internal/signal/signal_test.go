package signal

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEntries(t *testing.T) {
	closes := []float64{10, 10, 12, 13, 8, 7}
	upper := []float64{11, 11, 12.5, 13.5, 13.5, 13.5}
	lower := []float64{9, 9, 9, 9, 9, 9}

	got, err := Entries(closes, upper, lower, 3)
	assert.NoError(t, err)

	// Each close is compared against the band one bar back
	assert.Equal(t, []int{0, 0, Long, Long, Short, Short}, got)
}

func TestEntries_NaNBandsYieldNone(t *testing.T) {
	nan := math.NaN()
	closes := []float64{10, 100, 1}
	upper := []float64{nan, nan, nan}
	lower := []float64{nan, nan, nan}

	got, err := Entries(closes, upper, lower, 2)
	assert.NoError(t, err)
	assert.Equal(t, []int{None, None, None}, got)
}

func TestEntries_TouchIsNotBreakout(t *testing.T) {
	closes := []float64{10, 11, 9}
	upper := []float64{11, 11, 11}
	lower := []float64{9, 9, 9}

	got, err := Entries(closes, upper, lower, 2)
	assert.NoError(t, err)
	// close == band never triggers
	assert.Equal(t, []int{None, None, None}, got)
}

func TestEntries_Errors(t *testing.T) {
	_, err := Entries([]float64{1}, []float64{1}, []float64{1}, 0)
	assert.ErrorIs(t, err, ErrInvalidPeriod)

	_, err = Entries([]float64{1, 2}, []float64{1}, []float64{1, 2}, 2)
	assert.ErrorIs(t, err, ErrSeriesMismatch)
}

func TestExits(t *testing.T) {
	closes := []float64{10, 8, 12, 12, 12}
	upperExit := []float64{11, 11, 11, 11, 11}
	lowerExit := []float64{9, 9, 9, 9, 9}
	state := []int{Long, Long, None, Short, None}

	got, err := Exits(closes, upperExit, lowerExit, 2, 2, state)
	assert.NoError(t, err)

	// Long at i=1 exits on close 8 < 9; short at i=3 exits on close 12 > 11.
	// Bars with no held position never signal.
	assert.Equal(t, []int{0, -1, 0, 1, 0}, got)
}

func TestExits_Errors(t *testing.T) {
	_, err := Exits([]float64{1}, []float64{1}, []float64{1}, 0, 2, []int{0})
	assert.ErrorIs(t, err, ErrInvalidPeriod)

	_, err = Exits([]float64{1}, []float64{1}, []float64{1}, 2, -1, []int{0})
	assert.ErrorIs(t, err, ErrInvalidPeriod)

	_, err = Exits([]float64{1, 2}, []float64{1, 2}, []float64{1, 2}, 2, 2, []int{0})
	assert.ErrorIs(t, err, ErrSeriesMismatch)
}

func TestScalarHelpers(t *testing.T) {
	assert.True(t, LongExit(8, 9))
	assert.False(t, LongExit(9, 9))
	assert.False(t, LongExit(8, math.NaN()))

	assert.True(t, ShortExit(12, 11))
	assert.False(t, ShortExit(11, 11))
	assert.False(t, ShortExit(12, math.NaN()))
}

func TestEntryAt(t *testing.T) {
	closes := []float64{10, 12, 8}
	upper := []float64{11, 11, 11}
	lower := []float64{9, 9, 9}

	assert.Equal(t, None, EntryAt(closes, upper, lower, 0))
	assert.Equal(t, Long, EntryAt(closes, upper, lower, 1))
	assert.Equal(t, Short, EntryAt(closes, upper, lower, 2))
	assert.Equal(t, None, EntryAt(closes, upper, lower, 5))
}
