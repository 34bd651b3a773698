package archive

import (
	"path/filepath"
	"testing"

	"github.com/google/uuid"

	"github.com/tradeforge/engine/pkg/matching"
	"github.com/tradeforge/engine/pkg/orders"
)

func openStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "archive")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestSaveAndLoadRecentReportsOrdersNewestFirst(t *testing.T) {
	s := openStore(t)
	runId := uuid.New()

	for i, ts := range []int64{10, 20, 30} {
		report := matching.Report{Ts: ts, Kind: matching.ReportEnd}
		if err := s.SaveReport(runId, "BTCUSDT", uint64(i), report); err != nil {
			t.Fatalf("save report %d: %v", i, err)
		}
	}

	recs, err := s.LoadRecentReports("BTCUSDT", 2)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(recs) != 2 {
		t.Fatalf("expected 2 records, got %d", len(recs))
	}
	if recs[0].Report.Ts != 30 || recs[1].Report.Ts != 20 {
		t.Fatalf("expected newest-first order, got ts=%d,%d", recs[0].Report.Ts, recs[1].Report.Ts)
	}
}

func TestLoadRecentReportsIsolatesBySymbol(t *testing.T) {
	s := openStore(t)
	runId := uuid.New()
	if err := s.SaveReport(runId, "BTCUSDT", 0, matching.Report{Ts: 1, Kind: matching.ReportEnd}); err != nil {
		t.Fatalf("save: %v", err)
	}
	if err := s.SaveReport(runId, "ETHUSDT", 0, matching.Report{Ts: 1, Kind: matching.ReportEnd}); err != nil {
		t.Fatalf("save: %v", err)
	}
	recs, err := s.LoadRecentReports("BTCUSDT", 10)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(recs) != 1 || recs[0].Symbol != "BTCUSDT" {
		t.Fatalf("expected only the BTCUSDT record, got %+v", recs)
	}
}

func TestLoadReportsInRangeFiltersByTimestamp(t *testing.T) {
	s := openStore(t)
	runId := uuid.New()
	for i, ts := range []int64{5, 15, 25, 35} {
		if err := s.SaveReport(runId, "BTCUSDT", uint64(i), matching.Report{Ts: ts, Kind: matching.ReportEnd}); err != nil {
			t.Fatalf("save: %v", err)
		}
	}
	recs, err := s.LoadReportsInRange("BTCUSDT", 10, 30)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(recs) != 2 || recs[0].Report.Ts != 15 || recs[1].Report.Ts != 25 {
		t.Fatalf("unexpected range filter result: %+v", recs)
	}
}

func TestSaveReportPersistsFillPayload(t *testing.T) {
	s := openStore(t)
	runId := uuid.New()
	fill := &orders.Fill{OrderId: "ord-1", Side: orders.Buy, Liquidity: orders.Maker}
	report := matching.Report{Ts: 7, Kind: matching.ReportFill, OrderId: "ord-1", Fill: fill}
	if err := s.SaveReport(runId, "BTCUSDT", 0, report); err != nil {
		t.Fatalf("save: %v", err)
	}
	recs, err := s.LoadRecentReports("BTCUSDT", 1)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(recs) != 1 || recs[0].Report.Fill == nil || recs[0].Report.Fill.OrderId != "ord-1" {
		t.Fatalf("expected the fill payload to round-trip, got %+v", recs)
	}
}
