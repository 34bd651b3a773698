// Package archive implements the cold store for execution reports: a
// pebble-backed, symbol/timestamp-ordered log a completed (or still
// running) replay writes to, independent of the checkpoint snapshot
// pkg/checkpoint maintains for resume.
package archive

import (
	"encoding/json"
	"fmt"

	"github.com/cockroachdb/pebble"
	"github.com/google/uuid"

	"github.com/tradeforge/engine/pkg/ids"
	"github.com/tradeforge/engine/pkg/matching"
	"github.com/tradeforge/engine/pkg/tferrors"
)

// Store is a pebble-backed append-only log of execution reports, keyed
// for efficient "most recent N for this symbol" scans.
type Store struct {
	db *pebble.DB
}

// Open opens (creating if absent) a pebble store at path.
func Open(path string) (*Store, error) {
	db, err := pebble.Open(path, &pebble.Options{})
	if err != nil {
		return nil, tferrors.NewCheckpointError("opening archive store: " + err.Error())
	}
	return &Store{db: db}, nil
}

// Close releases the underlying pebble handles.
func (s *Store) Close() error { return s.db.Close() }

// reportKey format: "report:<symbol>:<20-digit-zero-padded-ts>:<runId>:<seq>"
// Zero-padding the timestamp preserves lexicographic order as
// chronological order, the same trick the teacher's tradeKey uses.
func reportKey(symbol ids.SymbolId, ts int64, runId uuid.UUID, seq uint64) []byte {
	return []byte(fmt.Sprintf("report:%s:%020d:%s:%020d", symbol, ts, runId, seq))
}

func reportPrefix(symbol ids.SymbolId) []byte {
	return []byte(fmt.Sprintf("report:%s:", symbol))
}

func keyUpperBound(prefix []byte) []byte {
	bound := make([]byte, len(prefix))
	copy(bound, prefix)
	bound[len(bound)-1]++
	return bound
}

// Record is one archived report, tagged with the symbol and run it
// belongs to (matching.Report itself carries neither).
type Record struct {
	RunId  uuid.UUID      `json:"runId"`
	Symbol ids.SymbolId   `json:"symbol"`
	Seq    uint64         `json:"seq"`
	Report matching.Report `json:"report"`
}

// SaveReport appends one execution report to the cold store. seq should
// be a per-run monotonic counter the caller maintains, distinguishing
// multiple reports sharing one timestamp.
func (s *Store) SaveReport(runId uuid.UUID, symbol ids.SymbolId, seq uint64, report matching.Report) error {
	rec := Record{RunId: runId, Symbol: symbol, Seq: seq, Report: report}
	data, err := json.Marshal(rec)
	if err != nil {
		return tferrors.NewCheckpointError("marshal report: " + err.Error())
	}
	key := reportKey(symbol, report.Ts, runId, seq)
	if err := s.db.Set(key, data, pebble.NoSync); err != nil {
		return tferrors.NewCheckpointError("save report: " + err.Error())
	}
	return nil
}

// LoadRecentReports returns up to limit most recent reports for symbol,
// newest first.
func (s *Store) LoadRecentReports(symbol ids.SymbolId, limit int) ([]Record, error) {
	prefix := reportPrefix(symbol)
	iter, err := s.db.NewIter(&pebble.IterOptions{
		LowerBound: prefix,
		UpperBound: keyUpperBound(prefix),
	})
	if err != nil {
		return nil, tferrors.NewCheckpointError("open iterator: " + err.Error())
	}
	defer iter.Close()

	var out []Record
	for iter.Last(); iter.Valid() && len(out) < limit; iter.Prev() {
		var rec Record
		if err := json.Unmarshal(iter.Value(), &rec); err != nil {
			continue
		}
		out = append(out, rec)
	}
	return out, nil
}

// LoadReportsInRange returns every archived report for symbol with
// ts in [fromMs, toMs], in chronological order.
func (s *Store) LoadReportsInRange(symbol ids.SymbolId, fromMs, toMs int64) ([]Record, error) {
	prefix := reportPrefix(symbol)
	iter, err := s.db.NewIter(&pebble.IterOptions{
		LowerBound: prefix,
		UpperBound: keyUpperBound(prefix),
	})
	if err != nil {
		return nil, tferrors.NewCheckpointError("open iterator: " + err.Error())
	}
	defer iter.Close()

	var out []Record
	for iter.First(); iter.Valid(); iter.Next() {
		var rec Record
		if err := json.Unmarshal(iter.Value(), &rec); err != nil {
			continue
		}
		if rec.Report.Ts < fromMs || rec.Report.Ts > toMs {
			continue
		}
		out = append(out, rec)
	}
	return out, nil
}
