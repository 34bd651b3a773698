// Package matching implements the per-trade matching/execution loop: stop
// activation, TIF semantics (GTC/IOC/FOK), maker/taker liquidity
// assignment and participation-factor throttling, applied against the
// orders and accounts services.
package matching

import (
	"errors"

	"github.com/tradeforge/engine/pkg/ids"
	"github.com/tradeforge/engine/pkg/numeric"
	"github.com/tradeforge/engine/pkg/orders"
	"github.com/tradeforge/engine/pkg/tferrors"
)

// Config holds the matching loop's tunable policy knobs, all with
// spec-given defaults.
type Config struct {
	// ParticipationFactor multiplies a trade's printed quantity to get
	// the quantity available to resting orders on this event. Default 1;
	// 0 disables matching entirely (depth-only replay).
	ParticipationFactor int64

	// TreatLimitAsMaker assigns MAKER liquidity to any resting LIMIT
	// order regardless of aggressor, checked before UseAggressorForLiquidity.
	TreatLimitAsMaker bool

	// UseAggressorForLiquidity, when TreatLimitAsMaker does not already
	// decide the fill, assigns MAKER when the trade's aggressor side
	// equals the resting order's own side, TAKER otherwise.
	UseAggressorForLiquidity bool
}

// DefaultConfig returns the spec's default policy: participation 1,
// limit orders always treated as maker.
func DefaultConfig() Config {
	return Config{ParticipationFactor: 1, TreatLimitAsMaker: true}
}

// TradeEvent is one public trade print drawn from the merged timeline.
type TradeEvent struct {
	Ts          int64
	Symbol      ids.SymbolId
	Price       numeric.Int
	Qty         numeric.Int
	Aggressor   orders.Side
	HasAggressor bool
}

// ReportKind tags the shape of an execution report.
type ReportKind string

const (
	ReportFill    ReportKind = "FILL"
	ReportUpdated ReportKind = "ORDER_UPDATED"
	ReportEnd     ReportKind = "END"
)

// Patch carries the mutated subset of an order's fields, for downstream
// consumers that maintain their own projection of order state.
type Patch struct {
	Status          orders.Status
	ExecutedQty     numeric.Int
	CumulativeQuote numeric.Int
	Fees            orders.Fees
	TsUpdated       int64
}

// Report is one execution report emitted by the matching loop.
type Report struct {
	Ts      int64
	Kind    ReportKind
	OrderId ids.OrderId
	Fill    *orders.Fill
	Patch   *Patch
}

// Engine runs the matching loop against one orders service.
type Engine struct {
	orders *orders.Service
	cfg    Config
	lastTs int64
}

// NewEngine binds a matching engine to an orders service and policy.
func NewEngine(svc *orders.Service, cfg Config) *Engine {
	return &Engine{orders: svc, cfg: cfg}
}

// OnTrade applies one trade event to the book: stop activation, then
// crossing against the resting open orders for that symbol, in time
// priority, honoring TIF semantics and participation throttling.
func (e *Engine) OnTrade(ev TradeEvent) []Report {
	e.lastTs = ev.Ts
	var reports []Report

	reports = append(reports, e.activateTriggeredStops(ev)...)

	remaining := participationQty(ev.Qty, e.cfg.ParticipationFactor)
	if remaining.IsZero() {
		return reports
	}

	open := e.orders.OpenOrdersForSymbol(ev.Symbol)
	orders.Comparator(open)

	var touchedIOC []*orders.Order
	exhausted := false

	for _, o := range open {
		if remaining.IsZero() {
			exhausted = true
		}
		cur, err := e.orders.Get(o.Id)
		if err != nil || cur.Status.Terminal() {
			continue
		}
		if cur.Tif == orders.IOC {
			touchedIOC = append(touchedIOC, cur)
		}

		crossed := crosses(cur, ev.Price)

		if cur.Tif == orders.FOK {
			if !crossed || numeric.LessThan(remaining, cur.Remaining()) {
				if err := e.orders.CancelOrder(cur.Id, ev.Ts); err == nil {
					reports = append(reports, e.patchReport(ev.Ts, cur.Id))
				}
				continue
			}
		}

		if exhausted {
			continue
		}

		fillQty := numeric.Min(cur.Remaining(), remaining)
		if !crossed || fillQty.IsZero() {
			continue
		}

		fill := orders.Fill{
			Ts:        ev.Ts,
			OrderId:   cur.Id,
			Price:     ev.Price,
			Qty:       fillQty,
			Side:      cur.Side,
			Liquidity: e.assignLiquidity(cur, ev),
		}
		if ev.HasAggressor {
			fill.SourceAggressor = ev.Aggressor
		}

		if err := e.orders.ApplyFill(cur.Id, fill); err != nil {
			// A MARKET BUY whose just-in-time reservation extension fails
			// is ended here; completed fills stand.
			if cur.Type == orders.Market && cur.Side == orders.Buy && errors.Is(err, tferrors.ErrValidation) {
				if rerr := e.orders.RejectRemainder(cur.Id, ev.Ts, orders.InsufficientFunds); rerr == nil {
					reports = append(reports, e.patchReport(ev.Ts, cur.Id))
				}
			}
			continue
		}
		reports = append(reports, Report{Ts: ev.Ts, Kind: ReportFill, OrderId: cur.Id, Fill: &fill})
		if r, err := numeric.Sub(remaining, fillQty); err == nil {
			remaining = r
		}

		updated, err := e.orders.Get(cur.Id)
		if err == nil && updated.Status.Terminal() {
			_ = e.orders.CloseOrder(cur.Id, updated.Status)
			reports = append(reports, e.patchReport(ev.Ts, cur.Id))
		}
	}

	for _, o := range touchedIOC {
		cur, err := e.orders.Get(o.Id)
		if err != nil || cur.Status.Terminal() {
			continue
		}
		if err := e.orders.CancelOrder(cur.Id, ev.Ts); err == nil {
			reports = append(reports, e.patchReport(ev.Ts, cur.Id))
		}
	}

	return reports
}

// End emits the terminal report carrying the last observed timestamp.
func (e *Engine) End() Report {
	return Report{Ts: e.lastTs, Kind: ReportEnd}
}

func (e *Engine) activateTriggeredStops(ev TradeEvent) []Report {
	stops := e.orders.StopOrdersForSymbol(ev.Symbol)
	var triggered []*orders.Order
	for _, o := range stops {
		if stopTriggers(o, ev.Price) {
			triggered = append(triggered, o)
		}
	}
	orders.Comparator(triggered)

	var reports []Report
	for _, o := range triggered {
		if err := e.orders.ActivateStopOrder(o.Id, ev.Ts, ev.Price); err == nil {
			reports = append(reports, e.patchReport(ev.Ts, o.Id))
		}
	}
	return reports
}

func (e *Engine) assignLiquidity(o *orders.Order, ev TradeEvent) orders.Liquidity {
	if e.cfg.TreatLimitAsMaker && o.Type == orders.Limit {
		return orders.Maker
	}
	if e.cfg.UseAggressorForLiquidity && ev.HasAggressor {
		if ev.Aggressor == o.Side {
			return orders.Maker
		}
		return orders.Taker
	}
	return orders.Taker
}

func (e *Engine) patchReport(ts int64, id ids.OrderId) Report {
	o, err := e.orders.Get(id)
	if err != nil {
		return Report{Ts: ts, Kind: ReportUpdated, OrderId: id}
	}
	return Report{
		Ts:      ts,
		Kind:    ReportUpdated,
		OrderId: id,
		Patch: &Patch{
			Status:          o.Status,
			ExecutedQty:     o.ExecutedQty,
			CumulativeQuote: o.CumulativeQuote,
			Fees:            o.Fees,
			TsUpdated:       o.TsUpdated,
		},
	}
}

func crosses(o *orders.Order, tradePrice numeric.Int) bool {
	switch o.Type {
	case orders.Market:
		return true
	case orders.Limit:
		if o.Price == nil {
			return false
		}
		if o.Side == orders.Buy {
			return numeric.LessOrEqual(tradePrice, *o.Price)
		}
		return numeric.GreaterOrEqual(tradePrice, *o.Price)
	default:
		return false
	}
}

func stopTriggers(o *orders.Order, tradePrice numeric.Int) bool {
	if o.TriggerPrice == nil {
		return false
	}
	switch o.TriggerDirection {
	case orders.Up:
		return numeric.GreaterOrEqual(tradePrice, *o.TriggerPrice)
	case orders.Down:
		return numeric.LessOrEqual(tradePrice, *o.TriggerPrice)
	default:
		return false
	}
}

func participationQty(tradeQty numeric.Int, factor int64) numeric.Int {
	if factor <= 0 {
		return numeric.Zero()
	}
	return numeric.MulDiv(tradeQty, numeric.FromInt64(factor), numeric.FromInt64(1))
}
