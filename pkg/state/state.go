// Package state composes the exchange's typed containers — the symbol
// registry, fee schedule, account ledger and the counters every other
// service shares — into the single root the orders and matching services
// operate against. Mirrors spec's "Exchange state" entity: {symbols,
// fee, accounts, orders, openOrders, stopOrders, accountSeq, orderSeq,
// tsCounter}, except here "orders"/"openOrders"/"stopOrders" live inside
// pkg/orders.Service rather than as bare maps on this struct — each
// sub-service keeps its own fine-grained lock instead of one exchange-
// wide mutex, which is the idiomatic Go shape for this kind of
// composition (see DESIGN.md).
package state

import (
	"sync/atomic"

	"github.com/tradeforge/engine/pkg/accounts"
	"github.com/tradeforge/engine/pkg/ids"
	"github.com/tradeforge/engine/pkg/market"
)

// TsCounter is a monotonic millisecond-timestamp source used wherever an
// event needs a synthetic, strictly increasing timestamp (e.g. stop
// activation, or an order's tsCreated when the caller does not supply a
// clock-derived one directly).
type TsCounter struct{ n atomic.Int64 }

// Next returns the next value, guaranteed greater than every previously
// returned value from this counter.
func (c *TsCounter) Next() int64 { return c.n.Add(1) }

// Value reports the counter's current floor without advancing it, used
// by checkpoint serialization to read the counter without perturbing
// it.
func (c *TsCounter) Value() int64 { return c.n.Load() }

// Seed sets the counter's floor so resumed replay continues strictly
// after the last timestamp observed before a checkpoint.
func (c *TsCounter) Seed(floor int64) {
	for {
		cur := c.n.Load()
		if floor <= cur {
			return
		}
		if c.n.CompareAndSwap(cur, floor) {
			return
		}
	}
}

// ExchangeState is the composition root: the symbol registry, the fee
// schedule, the account ledger, and the three counters the rest of the
// engine shares.
type ExchangeState struct {
	Symbols    *market.Registry
	Fee        market.FeeSchedule
	Accounts   *accounts.Service
	AccountSeq *ids.AccountSeq
	OrderSeq   *ids.OrderSeq
	TsCounter  *TsCounter
}

// New builds a fresh ExchangeState with empty symbol registry and
// account ledger, and zeroed counters.
func New(fee market.FeeSchedule) *ExchangeState {
	accountSeq := &ids.AccountSeq{}
	return &ExchangeState{
		Symbols:    market.NewRegistry(),
		Fee:        fee,
		Accounts:   accounts.NewService(accountSeq),
		AccountSeq: accountSeq,
		OrderSeq:   &ids.OrderSeq{},
		TsCounter:  &TsCounter{},
	}
}
