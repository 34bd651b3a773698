package book

import (
	"testing"

	"github.com/tradeforge/engine/pkg/numeric"
)

func p(s string) numeric.Int {
	v, err := numeric.ToPriceInt(s, 2)
	if err != nil {
		panic(err)
	}
	return v
}

func q(s string) numeric.Int {
	v, err := numeric.ToQtyInt(s, 3)
	if err != nil {
		panic(err)
	}
	return v
}

func lvl(price, qty string) [2]numeric.Int {
	return [2]numeric.Int{p(price), q(qty)}
}

func TestApplyDiffUpsertsAndSortsLevels(t *testing.T) {
	m := New()
	err := m.ApplyDiff(Diff{
		Ts:  1,
		Seq: 1,
		Bids: [][2]numeric.Int{
			lvl("100.00", "1.000"),
			lvl("101.00", "2.000"),
		},
		Asks: [][2]numeric.Int{
			lvl("103.00", "1.000"),
			lvl("102.00", "2.000"),
		},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	snap := m.GetSnapshot(0)
	if len(snap.Bids) != 2 || numeric.Cmp(snap.Bids[0].Price, p("101.00")) != 0 {
		t.Fatalf("expected bids sorted descending, got %+v", snap.Bids)
	}
	if len(snap.Asks) != 2 || numeric.Cmp(snap.Asks[0].Price, p("102.00")) != 0 {
		t.Fatalf("expected asks sorted ascending, got %+v", snap.Asks)
	}
	if snap.BestBid == nil || numeric.Cmp(*snap.BestBid, p("101.00")) != 0 {
		t.Fatalf("unexpected best bid: %+v", snap.BestBid)
	}
	if snap.BestAsk == nil || numeric.Cmp(*snap.BestAsk, p("102.00")) != 0 {
		t.Fatalf("unexpected best ask: %+v", snap.BestAsk)
	}
}

func TestApplyDiffZeroQtyDeletesLevel(t *testing.T) {
	m := New()
	if err := m.ApplyDiff(Diff{Ts: 1, Seq: 1, Bids: [][2]numeric.Int{lvl("100.00", "1.000")}}); err != nil {
		t.Fatalf("seed diff: %v", err)
	}
	if err := m.ApplyDiff(Diff{Ts: 2, Seq: 2, Bids: [][2]numeric.Int{lvl("100.00", "0")}}); err != nil {
		t.Fatalf("delete diff: %v", err)
	}
	snap := m.GetSnapshot(0)
	if len(snap.Bids) != 0 {
		t.Fatalf("expected the level to be deleted, got %+v", snap.Bids)
	}
	if snap.BestBid != nil {
		t.Fatalf("expected no best bid once the book is empty, got %v", snap.BestBid)
	}
}

func TestApplyDiffRejectsSeqRegression(t *testing.T) {
	m := New()
	if err := m.ApplyDiff(Diff{Ts: 5, Seq: 5}); err != nil {
		t.Fatalf("seed diff: %v", err)
	}
	if err := m.ApplyDiff(Diff{Ts: 6, Seq: 3}); err == nil {
		t.Fatal("expected a seq regression to be rejected")
	}
}

func TestApplyDiffRejectsTsRegression(t *testing.T) {
	m := New()
	if err := m.ApplyDiff(Diff{Ts: 5, Seq: 1}); err != nil {
		t.Fatalf("seed diff: %v", err)
	}
	if err := m.ApplyDiff(Diff{Ts: 2, Seq: 2}); err == nil {
		t.Fatal("expected a ts regression to be rejected")
	}
}

func TestGetSnapshotRespectsDepth(t *testing.T) {
	m := New()
	err := m.ApplyDiff(Diff{
		Ts:  1,
		Seq: 1,
		Bids: [][2]numeric.Int{
			lvl("100.00", "1.000"),
			lvl("99.00", "1.000"),
			lvl("98.00", "1.000"),
		},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	snap := m.GetSnapshot(2)
	if len(snap.Bids) != 2 {
		t.Fatalf("expected depth-limited result of 2, got %d", len(snap.Bids))
	}
}

func TestOnUpdateFiresAfterEachAcceptedDiff(t *testing.T) {
	m := New()
	var calls int
	m.OnUpdate(func(Snapshot) { calls++ })
	if err := m.ApplyDiff(Diff{Ts: 1, Seq: 1, Bids: [][2]numeric.Int{lvl("1.00", "1.000")}}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := m.ApplyDiff(Diff{Ts: 2, Seq: 2, Bids: [][2]numeric.Int{lvl("2.00", "1.000")}}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if calls != 2 {
		t.Fatalf("expected 2 update callbacks, got %d", calls)
	}
	if err := m.ApplyDiff(Diff{Ts: 0, Seq: 0}); err == nil {
		t.Fatal("expected the regressed diff to be rejected")
	}
	if calls != 2 {
		t.Fatalf("expected rejected diffs not to fire update callbacks, got %d", calls)
	}
}

func TestNotifyTradeFiresTradeObservers(t *testing.T) {
	m := New()
	var seen TradePrint
	m.OnTrade(func(tp TradePrint) { seen = tp })
	m.NotifyTrade(TradePrint{Ts: 1, Price: p("10.00"), Qty: q("1.000")})
	if seen.Ts != 1 || numeric.Cmp(seen.Price, p("10.00")) != 0 {
		t.Fatalf("unexpected trade print observed: %+v", seen)
	}
}
