package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// OrderKind distinguishes immediate fills from stop-triggered ones.
type OrderKind string

const (
	OrderKindMarket OrderKind = "market"
	OrderKindStop   OrderKind = "stop"
)

// Side is the trade direction of an order.
type Side string

const (
	SideBuy  Side = "buy"
	SideSell Side = "sell"
)

// OrderStatus is the lifecycle state of an order.
type OrderStatus string

const (
	OrderStatusPending   OrderStatus = "pending"
	OrderStatusFilled    OrderStatus = "filled"
	OrderStatusCancelled OrderStatus = "cancelled"
)

// Order is a single trade instruction. Fill fields are written exactly once,
// while the order is still pending; a filled or cancelled order is immutable.
type Order struct {
	ID           int64           `json:"order_id"`
	Symbol       string          `json:"symbol"`
	Kind         OrderKind       `json:"kind"`
	Side         Side            `json:"side"`
	Quantity     int64           `json:"quantity"` // always positive units
	TriggerPrice decimal.Decimal `json:"trigger_price,omitempty"`
	Status       OrderStatus     `json:"status"`
	FillPrice    decimal.Decimal `json:"fill_price,omitempty"`
	Commission   decimal.Decimal `json:"commission,omitempty"`
	Slippage     decimal.Decimal `json:"slippage,omitempty"`
	CreatedAt    time.Time       `json:"created_at"`
	FilledAt     time.Time       `json:"filled_at,omitempty"`
}

// Position is an open holding in one symbol. Quantity is signed: positive is
// long, negative is short. A position with zero quantity does not exist.
type Position struct {
	Symbol        string          `json:"symbol"`
	Quantity      int64           `json:"quantity"`
	AvgEntryPrice decimal.Decimal `json:"avg_entry_price"`
	OpenOrderID   int64           `json:"open_order_id"`
	InitialStop   decimal.Decimal `json:"initial_stop"`
	CurrentStop   decimal.Decimal `json:"current_stop"`
	TakeProfit    decimal.Decimal `json:"take_profit,omitempty"` // unused by the Donchian exit, kept for extensibility
	UnrealizedPnL decimal.Decimal `json:"unrealized_pnl"`
	RealizedPnL   decimal.Decimal `json:"realized_pnl"`
	StopOrderID   int64           `json:"stop_order_id"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

// IsLong reports whether the position is held long.
func (p *Position) IsLong() bool { return p.Quantity > 0 }

// AbsQuantity returns the unsigned unit count.
func (p *Position) AbsQuantity() int64 {
	if p.Quantity < 0 {
		return -p.Quantity
	}
	return p.Quantity
}

// TradeType classifies trade-log records.
type TradeType string

const (
	TradeTypeEntry     TradeType = "entry"
	TradeTypeExit      TradeType = "exit"
	TradeTypeReduction TradeType = "reduction"
)

// TradeRecord is one executed trade in the ledger's ordered trade log.
// RealizedPnL is only meaningful for exit and reduction records.
type TradeRecord struct {
	OrderID     int64           `json:"order_id"`
	Symbol      string          `json:"symbol"`
	Action      Side            `json:"action"`
	Quantity    int64           `json:"quantity"`
	Price       decimal.Decimal `json:"price"`
	Timestamp   time.Time       `json:"timestamp"`
	Commission  decimal.Decimal `json:"commission"`
	Slippage    decimal.Decimal `json:"slippage"`
	Type        TradeType       `json:"type"`
	RealizedPnL decimal.Decimal `json:"realized_pnl"`
}
