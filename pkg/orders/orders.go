// Package orders implements the order lifecycle state machine:
// placement validation and reservation accounting, fill application,
// cancellation, and stop-order activation. It borrows pkg/accounts and
// pkg/market rather than owning balance or symbol state itself.
package orders

import (
	"sort"
	"sync"

	"github.com/tradeforge/engine/pkg/ids"
	"github.com/tradeforge/engine/pkg/numeric"
	"github.com/tradeforge/engine/pkg/state"
	"github.com/tradeforge/engine/pkg/tferrors"
)

type OrderType string

const (
	Limit      OrderType = "LIMIT"
	Market     OrderType = "MARKET"
	StopLimit  OrderType = "STOP_LIMIT"
	StopMarket OrderType = "STOP_MARKET"
)

type Side string

const (
	Buy  Side = "BUY"
	Sell Side = "SELL"
)

type Tif string

const (
	GTC Tif = "GTC"
	IOC Tif = "IOC"
	FOK Tif = "FOK"
)

type Status string

const (
	New             Status = "NEW"
	Open            Status = "OPEN"
	PartiallyFilled Status = "PARTIALLY_FILLED"
	Filled          Status = "FILLED"
	Canceled        Status = "CANCELED"
	Rejected        Status = "REJECTED"
)

func (s Status) Terminal() bool {
	return s == Filled || s == Canceled || s == Rejected
}

type TriggerDirection string

const (
	Up   TriggerDirection = "UP"
	Down TriggerDirection = "DOWN"
)

// Liquidity is the role an order plays in a given fill.
type Liquidity string

const (
	Maker Liquidity = "MAKER"
	Taker Liquidity = "TAKER"
)

// RejectReason is attached to a rejected or remainder-canceled order. It
// is never an error type: per the propagation policy, order-level
// failures surface as a status transition, not a thrown error.
type RejectReason string

const (
	UnknownSymbol        RejectReason = "UNKNOWN_SYMBOL"
	UnsupportedExecution RejectReason = "UNSUPPORTED_EXECUTION"
	InsufficientFunds    RejectReason = "INSUFFICIENT_FUNDS"
	InvalidParams        RejectReason = "INVALID_PARAMS"
)

// Reservation tracks the currency and outstanding amount locked in the
// account on behalf of a working order.
type Reservation struct {
	Currency  string
	Total     numeric.Int
	Remaining numeric.Int
}

// Fees accumulates per-liquidity-role fee totals paid by an order across
// all of its fills.
type Fees struct {
	Maker numeric.Int
	Taker numeric.Int
}

// Fill is one execution against an order. Immutable once appended.
type Fill struct {
	Ts              int64
	OrderId         ids.OrderId
	Price           numeric.Int
	Qty             numeric.Int
	Side            Side
	Liquidity       Liquidity
	TradeRef        string
	SourceAggressor Side
}

// Order is the full lifecycle record for one placed order.
type Order struct {
	Id               ids.OrderId
	TsCreated        int64
	TsUpdated        int64
	Symbol           ids.SymbolId
	Type             OrderType
	Side             Side
	Tif              Tif
	Price            *numeric.Int
	Qty              numeric.Int
	Status           Status
	AccountId        ids.AccountId
	ExecutedQty      numeric.Int
	CumulativeQuote  numeric.Int
	Fees             Fees
	Fills            []Fill
	Reserved         *Reservation
	TriggerPrice     *numeric.Int
	TriggerDirection TriggerDirection
	Activated        bool
	RejectReason     RejectReason
}

// Remaining returns qty - executedQty.
func (o *Order) Remaining() numeric.Int {
	r, err := numeric.Sub(o.Qty, o.ExecutedQty)
	if err != nil {
		return numeric.Zero()
	}
	return r
}

// PlaceOrderInput is the request to place a new order.
type PlaceOrderInput struct {
	AccountId        ids.AccountId
	Symbol           ids.SymbolId
	Type             OrderType
	Side             Side
	Tif              Tif
	Price            *numeric.Int
	Qty              numeric.Int
	TriggerPrice     *numeric.Int
	TriggerDirection TriggerDirection
	Ts               int64
}

// Service is the thread-safe order book: the live order map plus the
// open/stop indexes, partitioned by symbol.
type Service struct {
	mu          sync.RWMutex
	state       *state.ExchangeState
	orders      map[ids.OrderId]*Order
	openOrders  map[ids.SymbolId]map[ids.OrderId]*Order
	stopOrders  map[ids.SymbolId]map[ids.OrderId]*Order
}

// NewService returns an order book bound to the given exchange state
// (symbol registry, fee schedule, account ledger, order-id sequence).
func NewService(st *state.ExchangeState) *Service {
	return &Service{
		state:      st,
		orders:     make(map[ids.OrderId]*Order),
		openOrders: make(map[ids.SymbolId]map[ids.OrderId]*Order),
		stopOrders: make(map[ids.SymbolId]map[ids.OrderId]*Order),
	}
}

func isStopType(t OrderType) bool { return t == StopLimit || t == StopMarket }

func collapseType(t OrderType) OrderType {
	switch t {
	case StopLimit:
		return Limit
	case StopMarket:
		return Market
	default:
		return t
	}
}

// Get returns the live order (not a copy) by id.
func (s *Service) Get(id ids.OrderId) (*Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	o, ok := s.orders[id]
	if !ok {
		return nil, tferrors.NewNotFoundError("order", string(id))
	}
	return o, nil
}

// OpenOrdersForSymbol returns a snapshot slice of the open (non-stop, or
// activated-stop) orders for a symbol, for the matching loop to sort and
// scan. The slice is a shallow copy of the index; the *Order pointers
// still refer to live, mutable orders.
func (s *Service) OpenOrdersForSymbol(symbol ids.SymbolId) []*Order {
	s.mu.RLock()
	defer s.mu.RUnlock()
	idx := s.openOrders[symbol]
	out := make([]*Order, 0, len(idx))
	for _, o := range idx {
		out = append(out, o)
	}
	return out
}

// StopOrdersForSymbol returns a snapshot slice of the working (not yet
// activated) stop orders for a symbol.
func (s *Service) StopOrdersForSymbol(symbol ids.SymbolId) []*Order {
	s.mu.RLock()
	defer s.mu.RUnlock()
	idx := s.stopOrders[symbol]
	out := make([]*Order, 0, len(idx))
	for _, o := range idx {
		out = append(out, o)
	}
	return out
}

// Comparator is the matching comparator used to sort open/stop orders
// into time priority: older tsCreated first, then lexicographically
// smaller id. Exported so pkg/matching can reuse it when it snapshots
// and sorts orders outside this package.
func Comparator(orders []*Order) {
	sort.SliceStable(orders, func(i, j int) bool {
		if orders[i].TsCreated != orders[j].TsCreated {
			return orders[i].TsCreated < orders[j].TsCreated
		}
		return orders[i].Id < orders[j].Id
	})
}

func (s *Service) reject(symbol ids.SymbolId, in PlaceOrderInput, reason RejectReason) *Order {
	id := s.state.OrderSeq.NextOrderId()
	return &Order{
		Id:              id,
		TsCreated:       in.Ts,
		TsUpdated:       in.Ts,
		Symbol:          symbol,
		Type:            in.Type,
		Side:            in.Side,
		Tif:             in.Tif,
		Price:           in.Price,
		Qty:             in.Qty,
		Status:          Rejected,
		AccountId:       in.AccountId,
		ExecutedQty:     numeric.Zero(),
		CumulativeQuote: numeric.Zero(),
		RejectReason:    reason,
	}
}

// PlaceOrder validates and, if accepted, reserves funds and indexes the
// order. It never returns an error for a business-rule rejection — the
// returned *Order carries Status=REJECTED and a RejectReason instead,
// per the propagation policy in spec.md §7. It does return an error for
// a lookup/arithmetic fault that should not happen given valid input
// (e.g. the account id does not exist).
func (s *Service) PlaceOrder(in PlaceOrderInput) (*Order, error) {
	cfg, err := s.state.Symbols.Get(in.Symbol)
	if err != nil {
		return s.reject(in.Symbol, in, UnknownSymbol), nil
	}

	if in.Qty.Sign() <= 0 {
		return s.reject(in.Symbol, in, InvalidParams), nil
	}
	if in.Tif != GTC && in.Tif != IOC && in.Tif != FOK {
		return s.reject(in.Symbol, in, InvalidParams), nil
	}
	if in.Side != Buy && in.Side != Sell {
		return s.reject(in.Symbol, in, InvalidParams), nil
	}
	if in.Type == Market && in.Tif == FOK {
		return s.reject(in.Symbol, in, UnsupportedExecution), nil
	}

	if (in.Type == Limit || in.Type == StopLimit) && (in.Price == nil || in.Price.Sign() <= 0) {
		return s.reject(in.Symbol, in, InvalidParams), nil
	}
	if isStopType(in.Type) {
		if in.TriggerPrice == nil || in.TriggerPrice.Sign() <= 0 {
			return s.reject(in.Symbol, in, InvalidParams), nil
		}
		if in.TriggerDirection != Up && in.TriggerDirection != Down {
			return s.reject(in.Symbol, in, InvalidParams), nil
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.state.OrderSeq.NextOrderId()
	order := &Order{
		Id:               id,
		TsCreated:        in.Ts,
		TsUpdated:        in.Ts,
		Symbol:           in.Symbol,
		Type:             in.Type,
		Side:             in.Side,
		Tif:              in.Tif,
		Price:            in.Price,
		Qty:              in.Qty,
		AccountId:        in.AccountId,
		ExecutedQty:      numeric.Zero(),
		CumulativeQuote:  numeric.Zero(),
		TriggerPrice:     in.TriggerPrice,
		TriggerDirection: in.TriggerDirection,
	}

	switch {
	case (in.Type == Limit || in.Type == StopLimit) && in.Side == Buy:
		notional := numeric.MulDiv(*in.Price, in.Qty, numeric.Pow10(cfg.QtyScale))
		fee := numeric.MulDiv(notional, numeric.FromInt64(s.state.Fee.MakerBps), numeric.FromInt64(10000))
		total := numeric.Add(notional, fee)
		ok, lockErr := s.state.Accounts.Lock(in.AccountId, cfg.Quote, total)
		if lockErr != nil {
			return nil, lockErr
		}
		if !ok {
			return s.reject(in.Symbol, in, InsufficientFunds), nil
		}
		order.Reserved = &Reservation{Currency: cfg.Quote, Total: total, Remaining: total}

	case (in.Type == Limit || in.Type == StopLimit || in.Type == Market || in.Type == StopMarket) && in.Side == Sell:
		ok, lockErr := s.state.Accounts.Lock(in.AccountId, cfg.Base, in.Qty)
		if lockErr != nil {
			return nil, lockErr
		}
		if !ok {
			return s.reject(in.Symbol, in, InsufficientFunds), nil
		}
		order.Reserved = &Reservation{Currency: cfg.Base, Total: in.Qty, Remaining: in.Qty}

	case (in.Type == Market || in.Type == StopMarket) && in.Side == Buy:
		// No pre-reservation; ensureReservationCapacity runs at fill time.
	}

	order.Status = Open
	s.index(order)
	return order, nil
}

func (s *Service) index(order *Order) {
	s.orders[order.Id] = order
	if isStopType(order.Type) && !order.Activated {
		idx, ok := s.stopOrders[order.Symbol]
		if !ok {
			idx = make(map[ids.OrderId]*Order)
			s.stopOrders[order.Symbol] = idx
		}
		idx[order.Id] = order
		return
	}
	idx, ok := s.openOrders[order.Symbol]
	if !ok {
		idx = make(map[ids.OrderId]*Order)
		s.openOrders[order.Symbol] = idx
	}
	idx[order.Id] = order
}

func (s *Service) unindexLocked(order *Order) {
	if idx, ok := s.openOrders[order.Symbol]; ok {
		delete(idx, order.Id)
	}
	if idx, ok := s.stopOrders[order.Symbol]; ok {
		delete(idx, order.Id)
	}
}

// CancelOrder unlocks any outstanding reservation and moves the order to
// CANCELED. Canceling an already-terminal order is a no-op (idempotent),
// per spec.md §4.3.
func (s *Service) CancelOrder(id ids.OrderId, ts int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	order, ok := s.orders[id]
	if !ok {
		return tferrors.NewNotFoundError("order", string(id))
	}
	if order.Status.Terminal() {
		return nil
	}
	if order.Reserved != nil && order.Reserved.Remaining.Sign() > 0 {
		if err := s.state.Accounts.Unlock(order.AccountId, order.Reserved.Currency, order.Reserved.Remaining); err != nil {
			return err
		}
		order.Reserved.Remaining = numeric.Zero()
	}
	order.Status = Canceled
	order.TsUpdated = ts
	s.unindexLocked(order)
	return nil
}

// ApplyFill applies one execution to an active order: settles the
// reservation/ledger sides of the trade, appends the fill, and
// transitions status to PARTIALLY_FILLED or FILLED. For a MARKET/
// STOP_MARKET BUY with insufficient standing reservation, it attempts to
// extend the lock just-in-time; if that fails, it returns
// tferrors.ErrValidation-wrapped insufficient-funds and applies nothing
// for this fill (the caller, pkg/matching, then calls RejectRemainder).
func (s *Service) ApplyFill(id ids.OrderId, fill Fill) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	order, ok := s.orders[id]
	if !ok {
		return tferrors.NewNotFoundError("order", string(id))
	}
	if order.Status != Open && order.Status != PartiallyFilled {
		return tferrors.NewValidationError("status", "applyFill precondition requires an active order")
	}

	symCfg, err := s.state.Symbols.Get(order.Symbol)
	if err != nil {
		return err
	}

	notional := numeric.MulDiv(fill.Price, fill.Qty, numeric.Pow10(symCfg.QtyScale))
	bps := s.state.Fee.TakerBps
	if fill.Liquidity == Maker {
		bps = s.state.Fee.MakerBps
	}
	fee := numeric.MulDiv(notional, numeric.FromInt64(bps), numeric.FromInt64(10000))

	if order.Side == Buy {
		needed := numeric.Add(notional, fee)
		if order.Reserved == nil || numeric.LessThan(order.Reserved.Remaining, needed) {
			extra, err := numeric.Sub(needed, reservedRemaining(order))
			if err != nil {
				extra = needed
			}
			ok, lockErr := s.state.Accounts.Lock(order.AccountId, symCfg.Quote, extra)
			if lockErr != nil {
				return lockErr
			}
			if !ok {
				return tferrors.NewValidationError("funds", "insufficient funds to extend reservation for market buy fill")
			}
			if order.Reserved == nil {
				order.Reserved = &Reservation{Currency: symCfg.Quote, Total: extra, Remaining: extra}
			} else {
				order.Reserved.Total = numeric.Add(order.Reserved.Total, extra)
				order.Reserved.Remaining = numeric.Add(order.Reserved.Remaining, extra)
			}
		}

		if err := s.state.Accounts.ConsumeLocked(order.AccountId, symCfg.Quote, notional); err != nil {
			return err
		}
		if err := s.state.Accounts.ApplyTradeFees(order.AccountId, symCfg.Quote, fee, true); err != nil {
			return err
		}
		if err := s.state.Accounts.CreditFree(order.AccountId, symCfg.Base, fill.Qty); err != nil {
			return err
		}
		order.Reserved.Remaining, err = numeric.Sub(order.Reserved.Remaining, needed)
		if err != nil {
			order.Reserved.Remaining = numeric.Zero()
		}
	} else {
		if err := s.state.Accounts.ConsumeLocked(order.AccountId, symCfg.Base, fill.Qty); err != nil {
			return err
		}
		if err := s.state.Accounts.CreditFree(order.AccountId, symCfg.Quote, notional); err != nil {
			return err
		}
		if err := s.state.Accounts.ApplyTradeFees(order.AccountId, symCfg.Quote, fee, false); err != nil {
			return err
		}
		if order.Reserved != nil {
			rem, subErr := numeric.Sub(order.Reserved.Remaining, fill.Qty)
			if subErr != nil {
				rem = numeric.Zero()
			}
			order.Reserved.Remaining = rem
		}
	}

	if fill.Liquidity == Maker {
		order.Fees.Maker = numeric.Add(order.Fees.Maker, fee)
	} else {
		order.Fees.Taker = numeric.Add(order.Fees.Taker, fee)
	}
	order.ExecutedQty = numeric.Add(order.ExecutedQty, fill.Qty)
	order.CumulativeQuote = numeric.Add(order.CumulativeQuote, notional)
	order.Fills = append(order.Fills, fill)
	order.TsUpdated = fill.Ts

	if numeric.Equal(order.ExecutedQty, order.Qty) {
		order.Status = Filled
	} else {
		order.Status = PartiallyFilled
	}
	return nil
}

func reservedRemaining(order *Order) numeric.Int {
	if order.Reserved == nil {
		return numeric.Zero()
	}
	return order.Reserved.Remaining
}

// CloseOrder sweeps a FILLED or CANCELED order from the open index and
// releases any residual reservation left over from price improvement
// (the fill price was better than the limit price, so less was
// ultimately consumed than was reserved at placement).
func (s *Service) CloseOrder(id ids.OrderId, status Status) error {
	if status != Filled && status != Canceled {
		return tferrors.NewValidationError("status", "closeOrder requires FILLED or CANCELED")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	order, ok := s.orders[id]
	if !ok {
		return tferrors.NewNotFoundError("order", string(id))
	}
	if order.Reserved != nil && order.Reserved.Remaining.Sign() > 0 {
		if err := s.state.Accounts.Unlock(order.AccountId, order.Reserved.Currency, order.Reserved.Remaining); err != nil {
			return err
		}
		order.Reserved.Remaining = numeric.Zero()
	}
	order.Status = status
	s.unindexLocked(order)
	return nil
}

// RejectRemainder is invoked by the matching loop when a just-in-time
// reservation extension fails mid-fill. If no fill has yet been applied
// the order is REJECTED outright (matching the NEW->OPEN->REJECTED edge
// in the lifecycle); if partial fills already landed, the order's
// lifecycle only allows PARTIALLY_FILLED to reach FILLED or CANCELED, so
// the remainder is canceled instead, with the reason recorded for
// diagnostics even though the terminal status is CANCELED rather than
// REJECTED. See DESIGN.md for why this departs from a literal reading of
// "emit REJECTED on the remainder".
func (s *Service) RejectRemainder(id ids.OrderId, ts int64, reason RejectReason) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	order, ok := s.orders[id]
	if !ok {
		return tferrors.NewNotFoundError("order", string(id))
	}
	if order.Reserved != nil && order.Reserved.Remaining.Sign() > 0 {
		if err := s.state.Accounts.Unlock(order.AccountId, order.Reserved.Currency, order.Reserved.Remaining); err != nil {
			return err
		}
		order.Reserved.Remaining = numeric.Zero()
	}
	order.RejectReason = reason
	order.TsUpdated = ts
	if order.ExecutedQty.IsZero() {
		order.Status = Rejected
	} else {
		order.Status = Canceled
	}
	s.unindexLocked(order)
	return nil
}

// ActivateStopOrder moves a triggered stop order from stopOrders to
// openOrders, collapsing its type (STOP_LIMIT->LIMIT, STOP_MARKET->
// MARKET) and refreshing its timestamps to the activation time. A
// STOP_MARKET BUY gets a best-effort conservative reservation locked
// here (actual capacity is still verified/extended per fill in
// ApplyFill); a stop SELL's reservation was already locked at placement
// and is left untouched.
func (s *Service) ActivateStopOrder(id ids.OrderId, ts int64, tradePrice numeric.Int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	order, ok := s.orders[id]
	if !ok {
		return tferrors.NewNotFoundError("order", string(id))
	}
	if idx, ok := s.stopOrders[order.Symbol]; ok {
		delete(idx, order.Id)
	}

	symCfg, err := s.state.Symbols.Get(order.Symbol)
	if err != nil {
		return err
	}

	wasStopMarket := order.Type == StopMarket
	order.Type = collapseType(order.Type)
	order.TsCreated = ts
	order.TsUpdated = ts
	order.Activated = true

	if wasStopMarket && order.Side == Buy {
		notional := numeric.MulDiv(tradePrice, order.Qty, numeric.Pow10(symCfg.QtyScale))
		fee := numeric.MulDiv(notional, numeric.FromInt64(s.state.Fee.TakerBps), numeric.FromInt64(10000))
		total := numeric.Add(notional, fee)
		if ok, lockErr := s.state.Accounts.Lock(order.AccountId, symCfg.Quote, total); lockErr == nil && ok {
			order.Reserved = &Reservation{Currency: symCfg.Quote, Total: total, Remaining: total}
		}
	}

	idx, ok := s.openOrders[order.Symbol]
	if !ok {
		idx = make(map[ids.OrderId]*Order)
		s.openOrders[order.Symbol] = idx
	}
	idx[order.Id] = order
	return nil
}

// AllOrders returns a snapshot slice of every order this service has
// ever seen, live or terminal, for checkpoint serialization.
func (s *Service) AllOrders() []*Order {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*Order, 0, len(s.orders))
	for _, o := range s.orders {
		out = append(out, o)
	}
	return out
}

// RestoreOrder inserts an order rebuilt from a checkpoint into the raw
// order map without touching the open/stop indexes; Reindex populates
// those afterward from the checkpoint's own id lists. Used only during
// checkpoint restore.
func (s *Service) RestoreOrder(o *Order) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.orders[o.Id] = o
}

// Reindex rebuilds the open/stop indexes from two id lists, requiring
// every id to already be present via RestoreOrder. Used only during
// checkpoint restore, after every order has been inserted.
func (s *Service) Reindex(openIds, stopIds []ids.OrderId) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range openIds {
		order, ok := s.orders[id]
		if !ok {
			return tferrors.NewCheckpointError("open order id not present in checkpoint state: " + string(id))
		}
		idx, ok := s.openOrders[order.Symbol]
		if !ok {
			idx = make(map[ids.OrderId]*Order)
			s.openOrders[order.Symbol] = idx
		}
		idx[order.Id] = order
	}
	for _, id := range stopIds {
		order, ok := s.orders[id]
		if !ok {
			return tferrors.NewCheckpointError("stop order id not present in checkpoint state: " + string(id))
		}
		idx, ok := s.stopOrders[order.Symbol]
		if !ok {
			idx = make(map[ids.OrderId]*Order)
			s.stopOrders[order.Symbol] = idx
		}
		idx[order.Id] = order
	}
	return nil
}

// OpenOrderIds and StopOrderIds report the id lists for checkpoint
// serialization, in no particular order (the checkpoint's determinism
// guarantee rests on reindexing content, not list order).
func (s *Service) OpenOrderIds() []ids.OrderId {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []ids.OrderId
	for _, idx := range s.openOrders {
		for id := range idx {
			out = append(out, id)
		}
	}
	return out
}

func (s *Service) StopOrderIds() []ids.OrderId {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []ids.OrderId
	for _, idx := range s.stopOrders {
		for id := range idx {
			out = append(out, id)
		}
	}
	return out
}
