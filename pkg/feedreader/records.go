package feedreader

import (
	"encoding/json"

	"github.com/tradeforge/engine/pkg/numeric"
	"github.com/tradeforge/engine/pkg/orders"
	"github.com/tradeforge/engine/pkg/tferrors"
)

// TradeRecord is one public trade print as read from an input archive,
// with prices/quantities parsed into the symbol's fixed-point scale.
type TradeRecord struct {
	Ts           int64
	Price        numeric.Int
	Qty          numeric.Int
	Aggressor    orders.Side
	HasAggressor bool
	TradeId      string
}

// DepthRecord is one L2 diff as read from an input archive.
type DepthRecord struct {
	Ts   int64
	Bids [][2]numeric.Int
	Asks [][2]numeric.Int
}

// rawTrade mirrors the tolerant JSONL shape from §6: ts may be spelled
// ts/timestamp/time, side may be spelled side/aggressor, and the
// maker-flag convention isBuyerMaker may stand in for either.
type rawTrade struct {
	Ts            *int64   `json:"ts"`
	Timestamp     *int64   `json:"timestamp"`
	Time          *int64   `json:"time"`
	Price         json.Number `json:"price"`
	Qty           json.Number `json:"qty"`
	Side          string   `json:"side"`
	Aggressor     string   `json:"aggressor"`
	IsBuyerMaker  *bool    `json:"isBuyerMaker"`
	Id            string   `json:"id"`
}

func parseTrade(priceScale, qtyScale int) func([]byte) (int64, TradeRecord, error) {
	return func(raw []byte) (int64, TradeRecord, error) {
		var rt rawTrade
		if err := json.Unmarshal(raw, &rt); err != nil {
			return 0, TradeRecord{}, tferrors.NewValidationError("trade", "invalid json: "+err.Error())
		}
		ts, err := firstTs(rt.Ts, rt.Timestamp, rt.Time)
		if err != nil {
			return 0, TradeRecord{}, err
		}
		price, err := numeric.ToPriceInt(rt.Price.String(), priceScale)
		if err != nil {
			return 0, TradeRecord{}, err
		}
		qty, err := numeric.ToQtyInt(rt.Qty.String(), qtyScale)
		if err != nil {
			return 0, TradeRecord{}, err
		}

		rec := TradeRecord{Ts: ts, Price: price, Qty: qty, TradeId: rt.Id}
		switch {
		case rt.Side != "":
			rec.Aggressor, rec.HasAggressor = orders.Side(rt.Side), true
		case rt.Aggressor != "":
			rec.Aggressor, rec.HasAggressor = orders.Side(rt.Aggressor), true
		case rt.IsBuyerMaker != nil:
			// isBuyerMaker=true means the resting order was the buyer, so
			// the trade's aggressor was the seller.
			if *rt.IsBuyerMaker {
				rec.Aggressor = orders.Sell
			} else {
				rec.Aggressor = orders.Buy
			}
			rec.HasAggressor = true
		}
		return ts, rec, nil
	}
}

type rawLevel struct {
	Price json.Number
	Qty   json.Number
}

// UnmarshalJSON accepts either `[price, qty]` or `{"price":..,"qty":..}`.
func (l *rawLevel) UnmarshalJSON(b []byte) error {
	var pair [2]json.Number
	if err := json.Unmarshal(b, &pair); err == nil {
		l.Price, l.Qty = pair[0], pair[1]
		return nil
	}
	var obj struct {
		Price json.Number `json:"price"`
		Qty   json.Number `json:"qty"`
	}
	if err := json.Unmarshal(b, &obj); err != nil {
		return err
	}
	l.Price, l.Qty = obj.Price, obj.Qty
	return nil
}

type rawDepth struct {
	Ts        *int64     `json:"ts"`
	Timestamp *int64     `json:"timestamp"`
	Bids      []rawLevel `json:"bids"`
	Asks      []rawLevel `json:"asks"`
}

func parseDepth(priceScale, qtyScale int) func([]byte) (int64, DepthRecord, error) {
	return func(raw []byte) (int64, DepthRecord, error) {
		var rd rawDepth
		if err := json.Unmarshal(raw, &rd); err != nil {
			return 0, DepthRecord{}, tferrors.NewValidationError("depth", "invalid json: "+err.Error())
		}
		ts, err := firstTs(rd.Ts, rd.Timestamp)
		if err != nil {
			return 0, DepthRecord{}, err
		}
		bids, err := convertLevels(rd.Bids, priceScale, qtyScale)
		if err != nil {
			return 0, DepthRecord{}, err
		}
		asks, err := convertLevels(rd.Asks, priceScale, qtyScale)
		if err != nil {
			return 0, DepthRecord{}, err
		}
		return ts, DepthRecord{Ts: ts, Bids: bids, Asks: asks}, nil
	}
}

func convertLevels(levels []rawLevel, priceScale, qtyScale int) ([][2]numeric.Int, error) {
	out := make([][2]numeric.Int, 0, len(levels))
	for _, lvl := range levels {
		p, err := numeric.ToPriceInt(lvl.Price.String(), priceScale)
		if err != nil {
			return nil, err
		}
		q, err := numeric.ToQtyInt(lvl.Qty.String(), qtyScale)
		if err != nil {
			return nil, err
		}
		out = append(out, [2]numeric.Int{p, q})
	}
	return out, nil
}

func firstTs(candidates ...*int64) (int64, error) {
	for _, c := range candidates {
		if c != nil {
			return *c, nil
		}
	}
	return 0, tferrors.NewValidationError("ts", "record missing a timestamp field")
}
