package engine

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/heishi1HUMANITY/adaptive-turtle-system/internal/infrastructure"
	"github.com/heishi1HUMANITY/adaptive-turtle-system/internal/model"
)

// csvTimeLayouts are tried in order when parsing the timestamp column.
var csvTimeLayouts = []string{
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// LoadBarsCSV reads OHLC bars for one symbol from a CSV file. The header
// must contain Timestamp, Open, High, Low and Close columns (case
// insensitive); Volume is optional. Rows are returned in file order.
func LoadBarsCSV(path, symbol string) ([]model.Bar, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	bars, err := readBarsCSV(f, symbol)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	infrastructure.BarsLoaded.WithLabelValues("csv").Add(float64(len(bars)))
	return bars, nil
}

func readBarsCSV(r io.Reader, symbol string) ([]model.Bar, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	col := make(map[string]int, len(header))
	for i, name := range header {
		col[strings.ToLower(strings.TrimSpace(name))] = i
	}
	for _, required := range []string{"timestamp", "open", "high", "low", "close"} {
		if _, ok := col[required]; !ok {
			return nil, fmt.Errorf("missing column %q", required)
		}
	}
	volIdx, hasVolume := col["volume"]

	var bars []model.Bar
	line := 1
	for {
		record, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		line++

		ts, err := parseCSVTime(record[col["timestamp"]])
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		b := model.Bar{Symbol: symbol, Timestamp: ts}
		if b.Open, err = decimal.NewFromString(record[col["open"]]); err != nil {
			return nil, fmt.Errorf("line %d: open: %w", line, err)
		}
		if b.High, err = decimal.NewFromString(record[col["high"]]); err != nil {
			return nil, fmt.Errorf("line %d: high: %w", line, err)
		}
		if b.Low, err = decimal.NewFromString(record[col["low"]]); err != nil {
			return nil, fmt.Errorf("line %d: low: %w", line, err)
		}
		if b.Close, err = decimal.NewFromString(record[col["close"]]); err != nil {
			return nil, fmt.Errorf("line %d: close: %w", line, err)
		}
		if hasVolume && volIdx < len(record) && record[volIdx] != "" {
			if b.Volume, err = decimal.NewFromString(record[volIdx]); err != nil {
				return nil, fmt.Errorf("line %d: volume: %w", line, err)
			}
		}
		bars = append(bars, b)
	}
	return bars, nil
}

func parseCSVTime(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range csvTimeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp %q", s)
}
