package engine

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/heishi1HUMANITY/adaptive-turtle-system/internal/model"
)

var (
	// ErrNoPosition reports a close or reduce against a symbol with no open
	// position. This is a caller bug, not a market condition.
	ErrNoPosition = errors.New("engine: no open position for symbol")
	// ErrOpposingDirection reports an attempt to open a trade against an
	// existing position without closing or reducing it first.
	ErrOpposingDirection = errors.New("engine: position exists in opposing direction")
	// ErrInvalidReduce reports a non-positive or oversized reduction quantity.
	ErrInvalidReduce = errors.New("engine: invalid reduce quantity")
)

// Portfolio is the ledger of one simulation run: cash capital, open
// positions, every order ever created and the ordered trade log. Each run
// owns its own Portfolio; nothing here is shared between runs.
type Portfolio struct {
	initialCapital decimal.Decimal
	capital        decimal.Decimal
	positions      map[string]*model.Position
	orders         []*model.Order
	tradeLog       []model.TradeRecord
	nextOrderID    int64
	logger         *zap.Logger
}

// NewPortfolio creates a ledger seeded with the initial capital.
func NewPortfolio(initialCapital decimal.Decimal, logger *zap.Logger) *Portfolio {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Portfolio{
		initialCapital: initialCapital,
		capital:        initialCapital,
		positions:      make(map[string]*model.Position),
		orders:         make([]*model.Order, 0),
		tradeLog:       make([]model.TradeRecord, 0),
		nextOrderID:    1,
		logger:         logger,
	}
}

// NewOrder creates a pending order owned by the ledger and returns it.
// triggerPrice is ignored for market orders.
func (p *Portfolio) NewOrder(symbol string, kind model.OrderKind, side model.Side, quantity int64, triggerPrice decimal.Decimal, createdAt time.Time) *model.Order {
	o := &model.Order{
		ID:        p.nextOrderID,
		Symbol:    symbol,
		Kind:      kind,
		Side:      side,
		Quantity:  quantity,
		Status:    model.OrderStatusPending,
		CreatedAt: createdAt,
	}
	if kind == model.OrderKindStop {
		o.TriggerPrice = triggerPrice
	}
	p.nextOrderID++
	p.orders = append(p.orders, o)
	return o
}

// CancelPendingOrders cancels every still-pending order for a symbol except
// the one identified by keepID (pass 0 to cancel all).
func (p *Portfolio) CancelPendingOrders(symbol string, keepID int64) {
	for _, o := range p.orders {
		if o.Symbol == symbol && o.Status == model.OrderStatusPending && o.ID != keepID {
			o.Status = model.OrderStatusCancelled
		}
	}
}

// OpenPosition records an entry fill: it creates the position (or merges a
// same-direction addition by volume-weighted average price), debits the
// commission, appends an entry trade record, and auto-creates the pending
// stop order covering the position's total quantity at stopLoss.
func (p *Portfolio) OpenPosition(symbol string, side model.Side, quantity int64, price decimal.Decimal, at time.Time, stopLoss decimal.Decimal, orderID int64, commission, slippage decimal.Decimal) error {
	if quantity <= 0 {
		return fmt.Errorf("engine: open quantity must be positive, got %d", quantity)
	}

	signed := quantity
	if side == model.SideSell {
		signed = -quantity
	}

	pos, exists := p.positions[symbol]
	if exists {
		if (pos.Quantity > 0) != (signed > 0) {
			return fmt.Errorf("%w: %s holds %d, refusing %s %d", ErrOpposingDirection, symbol, pos.Quantity, side, quantity)
		}
		// Volume-weighted average entry over the combined quantity.
		oldAbs := decimal.NewFromInt(pos.AbsQuantity())
		addAbs := decimal.NewFromInt(quantity)
		totalAbs := oldAbs.Add(addAbs)
		pos.AvgEntryPrice = pos.AvgEntryPrice.Mul(oldAbs).Add(price.Mul(addAbs)).Div(totalAbs)
		pos.Quantity += signed
		pos.OpenOrderID = orderID
		pos.CurrentStop = stopLoss
		pos.UpdatedAt = at
		// The old stop no longer covers the full size.
		if pos.StopOrderID != 0 {
			p.cancelOrderByID(pos.StopOrderID)
		}
	} else {
		pos = &model.Position{
			Symbol:        symbol,
			Quantity:      signed,
			AvgEntryPrice: price,
			OpenOrderID:   orderID,
			InitialStop:   stopLoss,
			CurrentStop:   stopLoss,
			UpdatedAt:     at,
		}
		p.positions[symbol] = pos
	}

	p.capital = p.capital.Sub(commission)
	p.tradeLog = append(p.tradeLog, model.TradeRecord{
		OrderID:    orderID,
		Symbol:     symbol,
		Action:     side,
		Quantity:   quantity,
		Price:      price,
		Timestamp:  at,
		Commission: commission,
		Slippage:   slippage,
		Type:       model.TradeTypeEntry,
	})

	stopSide := model.SideSell
	if pos.Quantity < 0 {
		stopSide = model.SideBuy
	}
	stop := p.NewOrder(symbol, model.OrderKindStop, stopSide, pos.AbsQuantity(), stopLoss, at)
	pos.StopOrderID = stop.ID

	p.logger.Debug("position opened",
		zap.String("symbol", symbol),
		zap.Int64("quantity", pos.Quantity),
		zap.String("avg_entry", pos.AvgEntryPrice.String()),
		zap.String("stop", stopLoss.String()),
	)
	return nil
}

// ClosePosition records a full exit: realized P&L net of commission is
// credited to capital, an exit trade record is appended, the position is
// deleted and any remaining pending orders for the symbol (notably the
// linked stop) are cancelled.
func (p *Portfolio) ClosePosition(symbol string, exitPrice decimal.Decimal, at time.Time, orderID int64, commission, slippage decimal.Decimal) error {
	pos, ok := p.positions[symbol]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNoPosition, symbol)
	}

	gross := p.grossPnL(pos, exitPrice, pos.AbsQuantity())
	net := gross.Sub(commission)
	p.capital = p.capital.Add(net)

	action := model.SideSell
	if pos.Quantity < 0 {
		action = model.SideBuy
	}
	p.tradeLog = append(p.tradeLog, model.TradeRecord{
		OrderID:     orderID,
		Symbol:      symbol,
		Action:      action,
		Quantity:    pos.AbsQuantity(),
		Price:       exitPrice,
		Timestamp:   at,
		Commission:  commission,
		Slippage:    slippage,
		Type:        model.TradeTypeExit,
		RealizedPnL: net,
	})

	delete(p.positions, symbol)
	p.CancelPendingOrders(symbol, orderID)

	p.logger.Debug("position closed",
		zap.String("symbol", symbol),
		zap.String("exit_price", exitPrice.String()),
		zap.String("realized_pnl", net.String()),
	)
	return nil
}

// ReducePosition records a partial exit of qtyToClose units. The average
// entry price is unchanged; the quantity shrinks toward zero. A reduction of
// the full held quantity delegates to ClosePosition.
func (p *Portfolio) ReducePosition(symbol string, qtyToClose int64, exitPrice decimal.Decimal, at time.Time, orderID int64, commission, slippage decimal.Decimal) error {
	pos, ok := p.positions[symbol]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNoPosition, symbol)
	}
	if qtyToClose <= 0 {
		return fmt.Errorf("%w: %d", ErrInvalidReduce, qtyToClose)
	}
	held := pos.AbsQuantity()
	if qtyToClose > held {
		return fmt.Errorf("%w: %d exceeds held %d for %s", ErrInvalidReduce, qtyToClose, held, symbol)
	}
	if qtyToClose == held {
		return p.ClosePosition(symbol, exitPrice, at, orderID, commission, slippage)
	}

	gross := p.grossPnL(pos, exitPrice, qtyToClose)
	net := gross.Sub(commission)
	p.capital = p.capital.Add(net)
	pos.RealizedPnL = pos.RealizedPnL.Add(net)

	action := model.SideSell
	if pos.Quantity < 0 {
		action = model.SideBuy
	}
	if pos.Quantity > 0 {
		pos.Quantity -= qtyToClose
	} else {
		pos.Quantity += qtyToClose
	}
	pos.UpdatedAt = at

	p.tradeLog = append(p.tradeLog, model.TradeRecord{
		OrderID:     orderID,
		Symbol:      symbol,
		Action:      action,
		Quantity:    qtyToClose,
		Price:       exitPrice,
		Timestamp:   at,
		Commission:  commission,
		Slippage:    slippage,
		Type:        model.TradeTypeReduction,
		RealizedPnL: net,
	})
	return nil
}

// grossPnL is the realized profit before commission for closing qty units of
// a position at exitPrice.
func (p *Portfolio) grossPnL(pos *model.Position, exitPrice decimal.Decimal, qty int64) decimal.Decimal {
	q := decimal.NewFromInt(qty)
	if pos.Quantity > 0 {
		return exitPrice.Sub(pos.AvgEntryPrice).Mul(q)
	}
	return pos.AvgEntryPrice.Sub(exitPrice).Mul(q)
}

// UpdateUnrealizedPnL recomputes every open position's unrealized P&L from
// the supplied current prices. Positions whose symbol is absent are skipped
// with a warning and keep their previous value.
func (p *Portfolio) UpdateUnrealizedPnL(currentPrices map[string]decimal.Decimal) {
	for symbol, pos := range p.positions {
		price, ok := currentPrices[symbol]
		if !ok {
			p.logger.Warn("no current price for open position, unrealized pnl is stale",
				zap.String("symbol", symbol))
			continue
		}
		pos.UnrealizedPnL = price.Sub(pos.AvgEntryPrice).Mul(decimal.NewFromInt(pos.Quantity))
	}
}

// TotalEquity refreshes unrealized P&L and returns capital plus the sum of
// unrealized P&L across open positions.
func (p *Portfolio) TotalEquity(currentPrices map[string]decimal.Decimal) decimal.Decimal {
	p.UpdateUnrealizedPnL(currentPrices)
	equity := p.capital
	for _, pos := range p.positions {
		equity = equity.Add(pos.UnrealizedPnL)
	}
	return equity
}

// OpenRiskPercentage sums, across open positions with a valid stop and a
// valid current price, the monetary distance to the stop in the unfavorable
// direction, and divides by total equity. Returns +Inf when risk is positive
// but equity is not, and 0 when both are non-positive.
func (p *Portfolio) OpenRiskPercentage(currentPrices map[string]decimal.Decimal) float64 {
	totalRisk := decimal.Zero
	for _, pos := range p.positions {
		price, ok := currentPrices[pos.Symbol]
		if !ok {
			continue
		}
		if !pos.CurrentStop.IsPositive() {
			continue
		}
		var dist decimal.Decimal
		if pos.Quantity > 0 {
			dist = price.Sub(pos.CurrentStop)
		} else {
			dist = pos.CurrentStop.Sub(price)
		}
		if dist.IsNegative() {
			dist = decimal.Zero
		}
		totalRisk = totalRisk.Add(dist.Mul(decimal.NewFromInt(pos.AbsQuantity())))
	}

	equity := p.TotalEquity(currentPrices)
	if !equity.IsPositive() {
		if totalRisk.IsPositive() {
			return math.Inf(1)
		}
		return 0.0
	}
	risk, _ := totalRisk.Div(equity).Float64()
	return risk
}

// CurrentUnits returns the unsigned unit count held for a symbol, zero when
// flat.
func (p *Portfolio) CurrentUnits(symbol string) int64 {
	if pos, ok := p.positions[symbol]; ok {
		return pos.AbsQuantity()
	}
	return 0
}

// Position returns the open position for symbol, or nil.
func (p *Portfolio) Position(symbol string) *model.Position {
	return p.positions[symbol]
}

// Capital returns the current cash capital.
func (p *Portfolio) Capital() decimal.Decimal { return p.capital }

// Orders returns the ledger's full order list, including cancelled and
// never-filled orders.
func (p *Portfolio) Orders() []*model.Order { return p.orders }

// TradeLog returns the ordered list of executed trades.
func (p *Portfolio) TradeLog() []model.TradeRecord { return p.tradeLog }

// PendingStopOrder returns the position's linked stop order if it is still
// pending, or nil.
func (p *Portfolio) PendingStopOrder(symbol string) *model.Order {
	pos, ok := p.positions[symbol]
	if !ok || pos.StopOrderID == 0 {
		return nil
	}
	for _, o := range p.orders {
		if o.ID == pos.StopOrderID && o.Status == model.OrderStatusPending {
			return o
		}
	}
	return nil
}

// Summary condenses the terminal ledger state.
func (p *Portfolio) Summary(currentPrices map[string]decimal.Decimal) model.PortfolioSummary {
	closed := 0
	for _, t := range p.tradeLog {
		if t.Type == model.TradeTypeExit || t.Type == model.TradeTypeReduction {
			closed++
		}
	}
	return model.PortfolioSummary{
		InitialCapital: p.initialCapital,
		FinalCapital:   p.capital,
		FinalEquity:    p.TotalEquity(currentPrices),
		TotalTrades:    closed,
	}
}

func (p *Portfolio) cancelOrderByID(id int64) {
	for _, o := range p.orders {
		if o.ID == id && o.Status == model.OrderStatusPending {
			o.Status = model.OrderStatusCancelled
			return
		}
	}
}
