// Package feedreader implements the line-oriented cursor readers over
// trade/depth JSONL archives: plain, gzip-compressed, or zip-packaged,
// with start-cursor resume, time filtering, and monotonic timestamp
// assertion.
package feedreader

import (
	"github.com/tradeforge/engine/pkg/tferrors"
)

// TradeReader yields TradeRecords from one or more input archives, in
// file order, applying an optional time filter, start cursor, and
// monotonic assertion.
type TradeReader struct {
	src        *rawSource
	parse      func([]byte) (int64, TradeRecord, error)
	filter     TimeFilter
	seek       *seekState
	monotonic  bool
	lastTsByFile map[string]int64
}

// NewTradeReader builds a trade reader over the given files, scaling
// decimal prices/quantities to priceScale/qtyScale.
func NewTradeReader(paths []string, priceScale, qtyScale int, filter TimeFilter, start *Cursor, assertMonotonic bool) *TradeReader {
	return &TradeReader{
		src:          newRawSource(paths),
		parse:        parseTrade(priceScale, qtyScale),
		filter:       filter,
		seek:         newSeekState(start),
		monotonic:    assertMonotonic,
		lastTsByFile: make(map[string]int64),
	}
}

// Next returns the next admitted record, or ok=false once the inputs
// are exhausted (or, if a start cursor was requested but never located,
// with a ReaderError).
func (r *TradeReader) Next() (TradeRecord, bool, error) {
	for {
		file, line, ok, err := r.src.next()
		if err != nil {
			return TradeRecord{}, false, err
		}
		if !ok {
			if r.seek.start != nil && !r.seek.foundTarget {
				return TradeRecord{}, false, tferrors.NewReaderError(r.seek.start.File, "start cursor file not found in inputs")
			}
			return TradeRecord{}, false, nil
		}

		ts, rec, err := r.parse(line)
		if err != nil {
			return TradeRecord{}, false, err
		}
		if r.monotonic {
			if prev, seen := r.lastTsByFile[file]; seen && ts < prev {
				return TradeRecord{}, false, tferrors.NewReaderError(file, "timestamp regressed")
			}
			r.lastTsByFile[file] = ts
		}
		if r.filter.excludes(ts) {
			continue
		}
		if !r.seek.admit(file) {
			continue
		}
		return rec, true, nil
	}
}

// CurrentCursor reports the cursor of the next record to be emitted.
func (r *TradeReader) CurrentCursor() Cursor { return r.seek.current() }

// Close releases the reader's open file handle, idempotent.
func (r *TradeReader) Close() error { return r.src.Close() }

// DepthReader is the depth-side counterpart of TradeReader.
type DepthReader struct {
	src          *rawSource
	parse        func([]byte) (int64, DepthRecord, error)
	filter       TimeFilter
	seek         *seekState
	monotonic    bool
	lastTsByFile map[string]int64
}

// NewDepthReader builds a depth reader over the given files.
func NewDepthReader(paths []string, priceScale, qtyScale int, filter TimeFilter, start *Cursor, assertMonotonic bool) *DepthReader {
	return &DepthReader{
		src:          newRawSource(paths),
		parse:        parseDepth(priceScale, qtyScale),
		filter:       filter,
		seek:         newSeekState(start),
		monotonic:    assertMonotonic,
		lastTsByFile: make(map[string]int64),
	}
}

// Next returns the next admitted record, or ok=false once exhausted.
func (r *DepthReader) Next() (DepthRecord, bool, error) {
	for {
		file, line, ok, err := r.src.next()
		if err != nil {
			return DepthRecord{}, false, err
		}
		if !ok {
			if r.seek.start != nil && !r.seek.foundTarget {
				return DepthRecord{}, false, tferrors.NewReaderError(r.seek.start.File, "start cursor file not found in inputs")
			}
			return DepthRecord{}, false, nil
		}

		ts, rec, err := r.parse(line)
		if err != nil {
			return DepthRecord{}, false, err
		}
		if r.monotonic {
			if prev, seen := r.lastTsByFile[file]; seen && ts < prev {
				return DepthRecord{}, false, tferrors.NewReaderError(file, "timestamp regressed")
			}
			r.lastTsByFile[file] = ts
		}
		if r.filter.excludes(ts) {
			continue
		}
		if !r.seek.admit(file) {
			continue
		}
		return rec, true, nil
	}
}

// CurrentCursor reports the cursor of the next record to be emitted.
func (r *DepthReader) CurrentCursor() Cursor { return r.seek.current() }

// Close releases the reader's open file handle, idempotent.
func (r *DepthReader) Close() error { return r.src.Close() }
