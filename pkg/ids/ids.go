// Package ids provides branded identifier types for accounts, orders and
// symbols. Each is a distinct string newtype so the compiler rejects
// passing an OrderId where an AccountId is expected, even though both
// are strings underneath.
package ids

import (
	"strconv"
	"sync/atomic"
)

// AccountId identifies an account, process-unique, assigned in order of
// creation.
type AccountId string

// OrderId identifies an order, process-unique, assigned in order of
// placement (including stop orders, which receive an id at placement,
// before activation).
type OrderId string

// SymbolId identifies a registered trading symbol, e.g. "BTCUSDT".
type SymbolId string

// EntryId identifies a zip archive entry within a file, used by reader
// cursors; unlike the other three this is caller-supplied (the entry
// name inside the archive), not counter-generated.
type EntryId string

// AccountSeq and OrderSeq are the monotonic counters backing
// NextAccountId/NextOrderId. ExchangeState owns one of each; they are
// exposed as distinct types so a counter cannot be threaded into the
// wrong generator by mistake.
type AccountSeq struct{ n atomic.Uint64 }
type OrderSeq struct{ n atomic.Uint64 }

// NextAccountId returns a fresh, process-unique account id and advances
// the counter.
func (s *AccountSeq) NextAccountId() AccountId {
	n := s.n.Add(1)
	return AccountId("acc-" + strconv.FormatUint(n, 10))
}

// NextOrderId returns a fresh, process-unique order id and advances the
// counter.
func (s *OrderSeq) NextOrderId() OrderId {
	n := s.n.Add(1)
	return OrderId("ord-" + strconv.FormatUint(n, 10))
}

// Value exposes the current counter value, used by checkpoint
// serialization to persist accountSeq/orderSeq across a resume.
func (s *AccountSeq) Value() uint64 { return s.n.Load() }
func (s *OrderSeq) Value() uint64   { return s.n.Load() }

// Restore sets the counter to a previously observed value, used when
// rebuilding ExchangeState from a checkpoint. It never moves the counter
// backwards: a restore to a lower value than already observed is a no-op,
// since ids already handed out under the higher value must stay unique.
func (s *AccountSeq) Restore(n uint64) {
	for {
		cur := s.n.Load()
		if n <= cur {
			return
		}
		if s.n.CompareAndSwap(cur, n) {
			return
		}
	}
}

func (s *OrderSeq) Restore(n uint64) {
	for {
		cur := s.n.Load()
		if n <= cur {
			return
		}
		if s.n.CompareAndSwap(cur, n) {
			return
		}
	}
}
