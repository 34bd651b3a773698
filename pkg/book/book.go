// Package book implements the real-time L2 order-book mirror: a sorted
// bid/ask view maintained from a stream of depth diffs, used for
// market-order liquidity planning during realtime operation. The
// historical matching loop in pkg/matching does not consult this
// mirror; it is owned exclusively by the realtime adapter.
package book

import (
	"sort"

	"github.com/tradeforge/engine/pkg/numeric"
	"github.com/tradeforge/engine/pkg/tferrors"
)

// Level is one price/quantity pair on a side of the book.
type Level struct {
	Price numeric.Int
	Qty   numeric.Int
}

// Diff is one incoming update: a set of level upserts/deletes tagged with
// the sequence number and timestamp they were observed at. A q==0 level
// deletes that price.
type Diff struct {
	Ts   int64
	Seq  int64
	Bids [][2]numeric.Int
	Asks [][2]numeric.Int
}

// Snapshot is a point-in-time read of the mirror, top-depth levels on
// each side plus the inside market.
type Snapshot struct {
	Bids    []Level
	Asks    []Level
	BestBid *numeric.Int
	BestAsk *numeric.Int
	Seq     int64
	Ts      int64
}

// TradePrint is forwarded to trade observers alongside book updates so a
// single subscriber can watch both without wiring two feeds.
type TradePrint struct {
	Ts    int64
	Price numeric.Int
	Qty   numeric.Int
}

// Mirror holds one symbol's L2 book, keyed internally by the price's
// canonical decimal string (numeric.Int is not map-key comparable by
// value, only by pointer identity, so the string form is the key).
type Mirror struct {
	bids map[string]Level
	asks map[string]Level
	seq  int64
	ts   int64

	onUpdate []func(Snapshot)
	onTrade  []func(TradePrint)
}

// New builds an empty mirror.
func New() *Mirror {
	return &Mirror{
		bids: make(map[string]Level),
		asks: make(map[string]Level),
	}
}

// OnUpdate registers an observer invoked with the new snapshot after
// every accepted diff.
func (m *Mirror) OnUpdate(fn func(Snapshot)) {
	m.onUpdate = append(m.onUpdate, fn)
}

// OnTrade registers an observer invoked by NotifyTrade.
func (m *Mirror) OnTrade(fn func(TradePrint)) {
	m.onTrade = append(m.onTrade, fn)
}

// NotifyTrade forwards a trade print to registered trade observers
// without mutating book state; the mirror carries no trade history of
// its own.
func (m *Mirror) NotifyTrade(tp TradePrint) {
	for _, fn := range m.onTrade {
		fn(tp)
	}
}

// ApplyDiff upserts or deletes levels from the diff. A diff whose seq or
// ts regresses relative to the last applied diff is rejected.
func (m *Mirror) ApplyDiff(d Diff) error {
	if d.Seq < m.seq {
		return tferrors.NewValidationError("seq", "book diff sequence regressed")
	}
	if d.Ts < m.ts {
		return tferrors.NewValidationError("ts", "book diff timestamp regressed")
	}

	for _, lvl := range d.Bids {
		applyLevel(m.bids, lvl)
	}
	for _, lvl := range d.Asks {
		applyLevel(m.asks, lvl)
	}
	m.seq = d.Seq
	m.ts = d.Ts

	snap := m.GetSnapshot(0)
	for _, fn := range m.onUpdate {
		fn(snap)
	}
	return nil
}

func applyLevel(side map[string]Level, lvl [2]numeric.Int) {
	price, qty := lvl[0], lvl[1]
	key := price.DecimalString()
	if qty.IsZero() {
		delete(side, key)
		return
	}
	side[key] = Level{Price: price, Qty: qty}
}

// GetSnapshot returns the top depth levels on each side, bids sorted
// descending by price and asks ascending, along with the inside market.
// depth<=0 returns every level.
func (m *Mirror) GetSnapshot(depth int) Snapshot {
	bids := sortedLevels(m.bids, true)
	asks := sortedLevels(m.asks, false)
	if depth > 0 {
		if len(bids) > depth {
			bids = bids[:depth]
		}
		if len(asks) > depth {
			asks = asks[:depth]
		}
	}

	snap := Snapshot{Bids: bids, Asks: asks, Seq: m.seq, Ts: m.ts}
	if len(bids) > 0 {
		p := bids[0].Price
		snap.BestBid = &p
	}
	if len(asks) > 0 {
		p := asks[0].Price
		snap.BestAsk = &p
	}
	return snap
}

func sortedLevels(side map[string]Level, descending bool) []Level {
	out := make([]Level, 0, len(side))
	for _, lvl := range side {
		out = append(out, lvl)
	}
	sort.Slice(out, func(i, j int) bool {
		c := numeric.Cmp(out[i].Price, out[j].Price)
		if descending {
			return c > 0
		}
		return c < 0
	})
	return out
}
