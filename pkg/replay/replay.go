// Package replay drives the matching loop at a clock-controlled pace
// over a merged timeline, with pause/resume, hard limits, and an
// auto-checkpoint cadence coalesced across both an event-count and a
// wall-time trigger.
package replay

import (
	"context"
	"time"

	"github.com/tradeforge/engine/pkg/timeline"
)

// Source is the minimal interface the driver needs from a merged
// timeline: pull the next event, or report exhaustion.
type Source interface {
	Next() (timeline.Event, bool)
}

// Limits bounds a replay run; zero means unbounded for that dimension.
type Limits struct {
	MaxEvents     int64
	MaxSimTimeMs  int64
	MaxWallTimeMs int64
}

func (l Limits) reached(eventsOut, simElapsed, wallElapsed int64) bool {
	if l.MaxEvents > 0 && eventsOut >= l.MaxEvents {
		return true
	}
	if l.MaxSimTimeMs > 0 && simElapsed >= l.MaxSimTimeMs {
		return true
	}
	if l.MaxWallTimeMs > 0 && wallElapsed >= l.MaxWallTimeMs {
		return true
	}
	return false
}

// AutoCheckpoint configures periodic checkpointing during a run. Build
// constructs the checkpoint payload (typically a snapshot of current
// exchange state, cursors and merge hint); Save persists it. Both may be
// called concurrently with nothing else since the driver is
// single-threaded, but Save may block on I/O — a slow Save simply delays
// the next event, which matches the single-logical-thread model.
type AutoCheckpoint struct {
	IntervalEvents int64
	IntervalWallMs int64
	Build          func() (any, error)
	Save           func(cp any) error
	OnError        func(err error)
}

func (a *AutoCheckpoint) due(eventsSinceCp, wallSinceCpMs int64) bool {
	if a.IntervalEvents > 0 && eventsSinceCp >= a.IntervalEvents {
		return true
	}
	if a.IntervalWallMs > 0 && wallSinceCpMs >= a.IntervalWallMs {
		return true
	}
	return false
}

func (a *AutoCheckpoint) fire() {
	cp, err := a.Build()
	if err != nil {
		if a.OnError != nil {
			a.OnError(err)
		}
		return
	}
	if err := a.Save(cp); err != nil {
		if a.OnError != nil {
			a.OnError(err)
		}
	}
}

// Stats reports the outcome of a completed or interrupted run.
type Stats struct {
	EventsOut   int64
	WallStartMs int64
	WallLastMs  int64
	SimStartTs  int64
	SimLastTs   int64
	haveSimTs   bool
}

// Input bundles everything one replay run needs.
type Input struct {
	Timeline   Source
	Clock      Clock
	Limits     Limits
	Controller *Controller
	OnEvent    func(ev timeline.Event)
	OnProgress func(Stats)
	AutoCp     *AutoCheckpoint
}

// Run pulls events from the timeline at the clock's pace, applying
// OnEvent to each, until the timeline is exhausted, a limit is reached,
// or ctx is canceled. It returns the final stats and, if the pacing
// clock or pause controller was canceled, the triggering error.
func Run(ctx context.Context, in Input) (Stats, error) {
	stats := Stats{WallStartMs: in.Clock.Now()}

	var firstTs int64
	haveFirst := false
	var eventsSinceCp int64
	wallAtLastCp := stats.WallStartMs

	for {
		ev, ok := in.Timeline.Next()
		if !ok {
			break
		}
		if !haveFirst {
			firstTs = ev.Ts
			haveFirst = true
		}
		simElapsed := ev.Ts - firstTs
		wallTarget := in.Clock.Start() + simElapsed
		if err := in.Clock.TickUntil(ctx, wallTarget); err != nil {
			return stats, err
		}
		if in.Controller != nil {
			if err := in.Controller.WaitUntilResumed(ctx); err != nil {
				return stats, err
			}
		}

		if in.OnEvent != nil {
			in.OnEvent(ev)
		}

		stats.EventsOut++
		stats.SimLastTs = ev.Ts
		if !stats.haveSimTs {
			stats.SimStartTs = ev.Ts
			stats.haveSimTs = true
		}
		stats.WallLastMs = in.Clock.Now()
		eventsSinceCp++

		if in.OnProgress != nil {
			in.OnProgress(stats)
		}

		if in.AutoCp != nil && in.AutoCp.due(eventsSinceCp, stats.WallLastMs-wallAtLastCp) {
			eventsSinceCp = 0
			wallAtLastCp = stats.WallLastMs
			in.AutoCp.fire()
		}

		if in.Limits.reached(stats.EventsOut, simElapsed, stats.WallLastMs-stats.WallStartMs) {
			break
		}
	}
	return stats, nil
}

// WaitGrace awaits ctx cancellation or the grace period, whichever comes
// first, used by cancellation paths that must let a producer goroutine
// observe its own cancellation before forcing resource release.
func WaitGrace(ctx context.Context, grace time.Duration) {
	t := time.NewTimer(grace)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
