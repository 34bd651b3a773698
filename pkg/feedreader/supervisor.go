package feedreader

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/tradeforge/engine/pkg/timeline"
)

// ChanPuller adapts a buffered channel of events to timeline.Puller,
// the consumer side of a producer goroutine supervised by RunProducers.
type ChanPuller struct {
	ch  <-chan timeline.Event
	buf *timeline.Event
	done bool
}

func newChanPuller(ch <-chan timeline.Event) *ChanPuller {
	return &ChanPuller{ch: ch}
}

func (p *ChanPuller) fill() {
	if p.buf != nil || p.done {
		return
	}
	ev, ok := <-p.ch
	if !ok {
		p.done = true
		return
	}
	p.buf = &ev
}

func (p *ChanPuller) Peek() (timeline.Event, bool) {
	p.fill()
	if p.buf == nil {
		return timeline.Event{}, false
	}
	return *p.buf, true
}

func (p *ChanPuller) Pop() (timeline.Event, bool) {
	ev, ok := p.Peek()
	if ok {
		p.buf = nil
	}
	return ev, ok
}

// RunProducers starts the trade and depth pullers as independent
// producer goroutines, each pushing into its own bounded channel of
// capacity queueSize, supervised by an errgroup so that either
// producer's failure cancels the other and is reported through wait.
// The matching loop drains the two returned ChanPullers sequentially
// (typically via a timeline.Merger composed over them), decoupling file
// I/O from the single-logical-thread matching loop per the concurrency
// model: readers are concurrent producers, the matcher is the sole
// consumer.
func RunProducers(ctx context.Context, trades *TradePuller, depth *DepthPuller, queueSize int) (*ChanPuller, *ChanPuller, func() error) {
	g, ctx := errgroup.WithContext(ctx)
	tradeCh := make(chan timeline.Event, queueSize)
	depthCh := make(chan timeline.Event, queueSize)

	g.Go(func() error {
		defer close(tradeCh)
		for {
			ev, ok := trades.Pop()
			if !ok {
				return trades.Err()
			}
			select {
			case tradeCh <- ev:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	})

	g.Go(func() error {
		defer close(depthCh)
		for {
			ev, ok := depth.Pop()
			if !ok {
				return depth.Err()
			}
			select {
			case depthCh <- ev:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	})

	return newChanPuller(tradeCh), newChanPuller(depthCh), g.Wait
}
