// Package checkpoint implements the v1 snapshot format: capturing
// exchange state, the open/stop order indexes, reader cursors and the
// merge tie-break hint into one JSON document, and rebuilding an
// equivalent engine from it. The determinism contract this exists to
// serve: a full run and a run interrupted by a checkpoint then resumed
// must produce identical final serialized state.
package checkpoint

import (
	"encoding/json"
	"os"
	"sort"

	"github.com/tradeforge/engine/pkg/accounts"
	"github.com/tradeforge/engine/pkg/feedreader"
	"github.com/tradeforge/engine/pkg/ids"
	"github.com/tradeforge/engine/pkg/market"
	"github.com/tradeforge/engine/pkg/orders"
	"github.com/tradeforge/engine/pkg/state"
	"github.com/tradeforge/engine/pkg/tferrors"
	"github.com/tradeforge/engine/pkg/timeline"
)

const Version = 1

// Meta carries the run-identifying fields that have no other home in
// the serialized state (the symbol this run trades, an optional
// freeform operator note).
type Meta struct {
	Symbol ids.SymbolId `json:"symbol"`
	Note   string       `json:"note,omitempty"`
}

// Cursors captures where each reader should resume from.
type Cursors struct {
	Trades *feedreader.Cursor `json:"trades,omitempty"`
	Depth  *feedreader.Cursor `json:"depth,omitempty"`
}

// MergeHint carries the merger's still-pending one-shot tie-break, if
// any was set and not yet consumed at checkpoint time.
type MergeHint struct {
	NextSourceOnEqualTs timeline.Source `json:"nextSourceOnEqualTs,omitempty"`
}

// EngineIndexes lists the order ids the open/stop indexes held at
// checkpoint time, sorted for a stable diff between successive
// checkpoints of the same run.
type EngineIndexes struct {
	OpenOrderIds []ids.OrderId `json:"openOrderIds"`
	StopOrderIds []ids.OrderId `json:"stopOrderIds"`
}

// SerializedAccount is one account's checkpointed balances.
type SerializedAccount struct {
	Id       ids.AccountId              `json:"id"`
	ApiKey   string                     `json:"apiKey"`
	Balances map[string]accounts.Balance `json:"balances"`
}

// SerializedState is the full exchange state: symbol registry, fee
// schedule, the two id sequences, accounts and every order this run has
// ever seen (terminal orders included, since fills/fees history lives
// only on the order itself).
type SerializedState struct {
	Symbols    []market.SymbolConfig `json:"symbols"`
	Fee        market.FeeSchedule    `json:"fee"`
	AccountSeq uint64                `json:"accountSeq"`
	OrderSeq   uint64                `json:"orderSeq"`
	TsCounter  int64                 `json:"tsCounter"`
	Accounts   []SerializedAccount   `json:"accounts"`
	Orders     []*orders.Order       `json:"orders"`
}

// V1 is the checkpoint document itself.
type V1 struct {
	Version     int           `json:"version"`
	CreatedAtMs int64         `json:"createdAtMs"`
	Meta        Meta          `json:"meta"`
	Cursors     Cursors       `json:"cursors"`
	Merge       MergeHint     `json:"merge"`
	Engine      EngineIndexes `json:"engine"`
	State       SerializedState `json:"state"`
}

// BuildInput gathers everything needed to assemble a V1 checkpoint.
type BuildInput struct {
	CreatedAtMs int64
	Symbol      ids.SymbolId
	Note        string
	Cursors     Cursors
	Merge       MergeHint
	State       *state.ExchangeState
	Orders      *orders.Service
}

// MakeCheckpointV1 snapshots the given state and orders service into a
// V1 document. Account and order lists are sorted by id so that two
// checkpoints of otherwise-identical state serialize byte-identically.
func MakeCheckpointV1(in BuildInput) V1 {
	symbols := in.State.Symbols.List()
	sort.Slice(symbols, func(i, j int) bool { return symbols[i].Symbol < symbols[j].Symbol })

	rawAccounts := in.State.Accounts.AllAccounts()
	serializedAccounts := make([]SerializedAccount, 0, len(rawAccounts))
	for _, acc := range rawAccounts {
		serializedAccounts = append(serializedAccounts, SerializedAccount{
			Id:       acc.Id,
			ApiKey:   acc.ApiKey,
			Balances: acc.Balances,
		})
	}
	sort.Slice(serializedAccounts, func(i, j int) bool { return serializedAccounts[i].Id < serializedAccounts[j].Id })

	allOrders := in.Orders.AllOrders()
	sort.Slice(allOrders, func(i, j int) bool { return allOrders[i].Id < allOrders[j].Id })

	openIds := in.Orders.OpenOrderIds()
	sort.Slice(openIds, func(i, j int) bool { return openIds[i] < openIds[j] })
	stopIds := in.Orders.StopOrderIds()
	sort.Slice(stopIds, func(i, j int) bool { return stopIds[i] < stopIds[j] })

	return V1{
		Version:     Version,
		CreatedAtMs: in.CreatedAtMs,
		Meta:        Meta{Symbol: in.Symbol, Note: in.Note},
		Cursors:     in.Cursors,
		Merge:       in.Merge,
		Engine:      EngineIndexes{OpenOrderIds: openIds, StopOrderIds: stopIds},
		State: SerializedState{
			Symbols:    symbols,
			Fee:        in.State.Fee,
			AccountSeq: in.State.AccountSeq.Value(),
			OrderSeq:   in.State.OrderSeq.Value(),
			TsCounter:  in.State.TsCounter.Value(),
			Accounts:   serializedAccounts,
			Orders:     allOrders,
		},
	}
}

// SaveCheckpoint writes cp to path as JSON. Struct field order is fixed
// by declaration (itself a stable, deterministic ordering) and every
// map-typed field (Balances) is serialized by encoding/json with its
// keys already sorted, satisfying the "keys sorted for stability"
// requirement without a custom encoder.
func SaveCheckpoint(path string, cp V1) error {
	data, err := json.MarshalIndent(cp, "", "  ")
	if err != nil {
		return tferrors.NewCheckpointError("marshal failed: " + err.Error())
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return tferrors.NewCheckpointError("write failed: " + err.Error())
	}
	return nil
}

// LoadCheckpoint reads and structurally validates a checkpoint file.
func LoadCheckpoint(path string) (V1, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return V1{}, tferrors.NewCheckpointError("read failed: " + err.Error())
	}
	var cp V1
	if err := json.Unmarshal(data, &cp); err != nil {
		return V1{}, tferrors.NewCheckpointError("malformed json: " + err.Error())
	}
	if err := Validate(cp); err != nil {
		return V1{}, err
	}
	return cp, nil
}

// Validate structurally checks a checkpoint: version, required fields,
// and that cursor record indexes are non-negative.
func Validate(cp V1) error {
	if cp.Version != Version {
		return tferrors.NewCheckpointError("unsupported checkpoint version")
	}
	if cp.Meta.Symbol == "" {
		return tferrors.NewCheckpointError("meta.symbol is required")
	}
	if cp.Cursors.Trades != nil && cp.Cursors.Trades.RecordIndex < 0 {
		return tferrors.NewCheckpointError("cursors.trades.recordIndex must be non-negative")
	}
	if cp.Cursors.Depth != nil && cp.Cursors.Depth.RecordIndex < 0 {
		return tferrors.NewCheckpointError("cursors.depth.recordIndex must be non-negative")
	}
	return nil
}

// DeserializeExchangeState rebuilds an ExchangeState from a checkpoint's
// serialized state: re-registers symbols, restores accounts and
// counters. It does not touch orders; RestoreEngineFromSnapshot does
// that against a separately constructed orders.Service bound to this
// state.
func DeserializeExchangeState(s SerializedState) (*state.ExchangeState, error) {
	st := state.New(s.Fee)
	for _, cfg := range s.Symbols {
		if err := st.Symbols.Register(cfg); err != nil {
			return nil, tferrors.NewCheckpointError("re-registering symbol " + string(cfg.Symbol) + ": " + err.Error())
		}
	}
	for _, sa := range s.Accounts {
		st.Accounts.Restore(&accounts.Account{Id: sa.Id, ApiKey: sa.ApiKey, Balances: sa.Balances})
	}
	st.AccountSeq.Restore(s.AccountSeq)
	st.OrderSeq.Restore(s.OrderSeq)
	st.TsCounter.Seed(s.TsCounter)
	return st, nil
}

// RestoreEngineFromSnapshot rebuilds an orders.Service's raw order map
// and its open/stop indexes from a checkpoint, requiring every id the
// checkpoint's engine section names to already be present among
// cp.State.Orders.
func RestoreEngineFromSnapshot(svc *orders.Service, cp V1) error {
	for _, o := range cp.State.Orders {
		svc.RestoreOrder(o)
	}
	return svc.Reindex(cp.Engine.OpenOrderIds, cp.Engine.StopOrderIds)
}
