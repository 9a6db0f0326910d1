package engine

import (
	"context"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"

	"github.com/heishi1HUMANITY/adaptive-turtle-system/internal/infrastructure"
	"github.com/heishi1HUMANITY/adaptive-turtle-system/internal/model"
)

// DataLoader reads historical OHLC bars from Postgres.
type DataLoader struct {
	pool *pgxpool.Pool
}

func NewDataLoader(pool *pgxpool.Pool) *DataLoader {
	return &DataLoader{pool: pool}
}

// LoadBars returns the bars for one symbol in [start, end], oldest first.
func (l *DataLoader) LoadBars(ctx context.Context, symbol string, start, end time.Time) ([]model.Bar, error) {
	rows, err := l.pool.Query(ctx, `
		SELECT time, symbol, open, high, low, close, volume
		FROM bars
		WHERE symbol = $1 AND time >= $2 AND time <= $3
		ORDER BY time ASC`,
		symbol, start, end)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var bars []model.Bar
	for rows.Next() {
		var b model.Bar
		if err := rows.Scan(&b.Timestamp, &b.Symbol, &b.Open, &b.High, &b.Low, &b.Close, &b.Volume); err != nil {
			return nil, err
		}
		bars = append(bars, b)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	infrastructure.BarsLoaded.WithLabelValues("postgres").Add(float64(len(bars)))
	return bars, nil
}

// LoadAll fetches bars for every symbol in the list, keyed by symbol.
// Symbols with no rows are simply absent from the map.
func (l *DataLoader) LoadAll(ctx context.Context, symbols []string, start, end time.Time) (map[string][]model.Bar, error) {
	data := make(map[string][]model.Bar, len(symbols))
	for _, symbol := range symbols {
		bars, err := l.LoadBars(ctx, symbol, start, end)
		if err != nil {
			return nil, err
		}
		if len(bars) > 0 {
			data[symbol] = bars
		}
	}
	return data, nil
}
