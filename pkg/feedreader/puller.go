package feedreader

import (
	"github.com/tradeforge/engine/pkg/timeline"
)

// TradePuller adapts a TradeReader to timeline.Puller with one-record
// lookahead, numbering each emitted record with a per-reader sequence
// used as the timeline event's tie-break seq.
type TradePuller struct {
	r    *TradeReader
	buf  *timeline.Event
	seq  int64
	err  error
}

func NewTradePuller(r *TradeReader) *TradePuller { return &TradePuller{r: r} }

func (p *TradePuller) fill() {
	if p.buf != nil || p.err != nil {
		return
	}
	rec, ok, err := p.r.Next()
	if err != nil {
		p.err = err
		return
	}
	if !ok {
		return
	}
	p.seq++
	ev := timeline.Event{
		Ts:    rec.Ts,
		Kind:  timeline.KindTrade,
		Seq:   p.seq,
		Entry: p.r.CurrentCursor().File,
		Trade: &timeline.TradePayload{
			Price:        rec.Price,
			Qty:          rec.Qty,
			Aggressor:    rec.Aggressor,
			HasAggressor: rec.HasAggressor,
			TradeId:      rec.TradeId,
		},
	}
	p.buf = &ev
}

// Err reports the last error encountered, if Peek/Pop ever returned
// ok=false due to a failure rather than clean exhaustion.
func (p *TradePuller) Err() error { return p.err }

func (p *TradePuller) Peek() (timeline.Event, bool) {
	p.fill()
	if p.buf == nil {
		return timeline.Event{}, false
	}
	return *p.buf, true
}

func (p *TradePuller) Pop() (timeline.Event, bool) {
	ev, ok := p.Peek()
	if ok {
		p.buf = nil
	}
	return ev, ok
}

// DepthPuller is the depth-side counterpart of TradePuller.
type DepthPuller struct {
	r   *DepthReader
	buf *timeline.Event
	seq int64
	err error
}

func NewDepthPuller(r *DepthReader) *DepthPuller { return &DepthPuller{r: r} }

func (p *DepthPuller) fill() {
	if p.buf != nil || p.err != nil {
		return
	}
	rec, ok, err := p.r.Next()
	if err != nil {
		p.err = err
		return
	}
	if !ok {
		return
	}
	p.seq++
	ev := timeline.Event{
		Ts:    rec.Ts,
		Kind:  timeline.KindDepth,
		Seq:   p.seq,
		Entry: p.r.CurrentCursor().File,
		DepthEv: &timeline.DepthPayload{
			Bids: rec.Bids,
			Asks: rec.Asks,
		},
	}
	p.buf = &ev
}

func (p *DepthPuller) Err() error { return p.err }

func (p *DepthPuller) Peek() (timeline.Event, bool) {
	p.fill()
	if p.buf == nil {
		return timeline.Event{}, false
	}
	return *p.buf, true
}

func (p *DepthPuller) Pop() (timeline.Event, bool) {
	ev, ok := p.Peek()
	if ok {
		p.buf = nil
	}
	return ev, ok
}
