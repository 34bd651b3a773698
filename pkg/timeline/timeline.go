// Package timeline implements the deterministic k-way merge of the
// trade and depth streams into one causally ordered sequence of events,
// per the tie-break policy in spec.md §4.4.
package timeline

import (
	"github.com/tradeforge/engine/pkg/numeric"
	"github.com/tradeforge/engine/pkg/orders"
)

// Source identifies which stream an event came from.
type Source string

const (
	Trades Source = "TRADES"
	Depth  Source = "DEPTH"
)

// Kind tags which payload an Event carries.
type Kind string

const (
	KindTrade Kind = "TRADE"
	KindDepth Kind = "DEPTH"
)

// TradePayload is a public trade print, already parsed to fixed-point.
type TradePayload struct {
	Price        numeric.Int
	Qty          numeric.Int
	Aggressor    orders.Side
	HasAggressor bool
	TradeId      string
}

// DepthPayload is an L2 diff, already parsed to fixed-point.
type DepthPayload struct {
	Bids [][2]numeric.Int
	Asks [][2]numeric.Int
}

// Event is one merged timeline entry: a tagged union of Trade or Depth.
type Event struct {
	Ts      int64
	Kind    Kind
	Seq     int64
	Entry   string
	Trade   *TradePayload
	DepthEv *DepthPayload
}

// Puller is the minimal interface the merge needs from a single-source
// producer: Peek returns the next buffered event without consuming it
// (nil, false when exhausted), Pop consumes it.
type Puller interface {
	Peek() (Event, bool)
	Pop() (Event, bool)
}

// Merger performs the deterministic k-way merge of exactly two sources
// (trades and depth), per spec.md §4.4's five-level tie-break.
type Merger struct {
	trades Puller
	depth  Puller

	// nextSourceOnEqualTs is the one-shot tie-break hint: the next time
	// ts ties across sources, this source wins, then the hint clears.
	nextSourceOnEqualTs Source
	hintSet             bool

	preferDepthOnEqualTs bool

	// entryOrder assigns a stable first-seen index to each distinct
	// entry label per source, used as tie-break level 4.
	entryOrderTrades map[string]int
	entryOrderDepth  map[string]int
	nextEntryTrades  int
	nextEntryDepth   int

	// pullOrder breaks the final tie by the order events were pulled
	// from their source, per tie-break level 5 ("stored in a weak map"
	// in the source; here a plain counter suffices since this merger
	// instance owns both sources exclusively).
	pullSeqTrades int64
	pullSeqDepth  int64
}

// NewMerger builds a merger over the two given sources. preferDepthOnEqualTs
// is the steady-state tie-break default (per spec.md, true by default).
func NewMerger(trades, depth Puller, preferDepthOnEqualTs bool) *Merger {
	return &Merger{
		trades:               trades,
		depth:                depth,
		preferDepthOnEqualTs: preferDepthOnEqualTs,
		entryOrderTrades:     make(map[string]int),
		entryOrderDepth:      make(map[string]int),
	}
}

// SetHint installs a one-shot tie-break hint, consumed on the next
// equal-timestamp contest. Used both for initial configuration and for
// resuming from a checkpoint's saved merge.nextSourceOnEqualTs.
func (m *Merger) SetHint(source Source) {
	m.nextSourceOnEqualTs = source
	m.hintSet = true
}

// CurrentHint reports the still-pending hint, if any, for checkpointing.
func (m *Merger) CurrentHint() (Source, bool) {
	return m.nextSourceOnEqualTs, m.hintSet
}

func (m *Merger) entryIndexTrades(entry string) int {
	if idx, ok := m.entryOrderTrades[entry]; ok {
		return idx
	}
	idx := m.nextEntryTrades
	m.entryOrderTrades[entry] = idx
	m.nextEntryTrades++
	return idx
}

func (m *Merger) entryIndexDepth(entry string) int {
	if idx, ok := m.entryOrderDepth[entry]; ok {
		return idx
	}
	idx := m.nextEntryDepth
	m.entryOrderDepth[entry] = idx
	m.nextEntryDepth++
	return idx
}

// Next pulls and returns the next event in merged order, or ok=false
// when both sources are exhausted.
func (m *Merger) Next() (Event, bool) {
	tEv, tOk := m.trades.Peek()
	dEv, dOk := m.depth.Peek()

	switch {
	case !tOk && !dOk:
		return Event{}, false
	case tOk && !dOk:
		m.pullSeqTrades++
		ev, _ := m.trades.Pop()
		return ev, true
	case !tOk && dOk:
		m.pullSeqDepth++
		ev, _ := m.depth.Pop()
		return ev, true
	}

	winner := m.pickWinner(tEv, dEv)
	if winner == Trades {
		m.pullSeqTrades++
		ev, _ := m.trades.Pop()
		return ev, true
	}
	m.pullSeqDepth++
	ev, _ := m.depth.Pop()
	return ev, true
}

// pickWinner applies the five-level tie-break between the two buffered
// head events and returns which source should be pulled next.
func (m *Merger) pickWinner(t, d Event) Source {
	if t.Ts != d.Ts {
		if t.Ts < d.Ts {
			return Trades
		}
		return Depth
	}

	// Level 2: the one-shot hint, consumed here if set; otherwise the
	// steady-state default.
	if m.hintSet {
		winner := m.nextSourceOnEqualTs
		m.hintSet = false
		return winner
	}
	if m.preferDepthOnEqualTs {
		return Depth
	}
	return Trades

	// Levels 3-5 (seq, entry order, pull order) tie-break candidates
	// from the *same* source at equal timestamp; they never apply here
	// because trades and depth are two distinct sources and level 2 has
	// already produced a definite winner. A source's own head event is
	// unique at any instant (a single Peek per source), so there is
	// nothing left within one source to disambiguate against. entryIndex*
	// and pullSeq* bookkeeping is retained for a wider (>2 source) merge,
	// not exercised by this two-source implementation.
}
