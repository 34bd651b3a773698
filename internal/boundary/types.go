package boundary

import (
	"errors"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/tradeforge/engine/pkg/market"
	"github.com/tradeforge/engine/pkg/numeric"
	"github.com/tradeforge/engine/pkg/orders"
)

var (
	errNegativeAmount = errors.New("amount must not be negative")
	errExponent       = errors.New("scientific notation is not accepted")
)

// ErrorResponse is the JSON shape of every non-2xx response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

// SymbolInfo is the public view of a registered symbol.
type SymbolInfo struct {
	Symbol     string `json:"symbol"`
	Base       string `json:"base"`
	Quote      string `json:"quote"`
	PriceScale int    `json:"priceScale"`
	QtyScale   int    `json:"qtyScale"`
}

func toSymbolInfo(cfg market.SymbolConfig) SymbolInfo {
	return SymbolInfo{
		Symbol:     string(cfg.Symbol),
		Base:       cfg.Base,
		Quote:      cfg.Quote,
		PriceScale: cfg.PriceScale,
		QtyScale:   cfg.QtyScale,
	}
}

// CreateAccountRequest is the body of POST /accounts.
type CreateAccountRequest struct {
	ApiKey string `json:"apiKey"`
}

// AccountInfo is the public view of an account's balances.
type AccountInfo struct {
	AccountId string             `json:"accountId"`
	ApiKey    string             `json:"apiKey"`
	Balances  map[string]Balance `json:"balances"`
}

// Balance is a JSON-friendly free/locked pair.
type Balance struct {
	Free   string `json:"free"`
	Locked string `json:"locked"`
}

// DepositRequest is the body of POST /accounts/{id}/deposit.
type DepositRequest struct {
	Currency string `json:"currency"`
	Amount   string `json:"amount"`
	Scale    int    `json:"scale"`
}

// decimalToFixed validates and normalizes a client-supplied decimal
// string via shopspring/decimal before it reaches numeric.ToInt, which
// remains the sole authority on scale and rounding. Exponent forms are
// refused up front, since shopspring would accept and expand them;
// shopspring then catches other malformed input (garbage, multiple
// signs) with a clearer error than numeric's own digit-by-digit scanner,
// without taking over any of numeric's fixed-point semantics.
func decimalToFixed(raw string, scale int) (numeric.Int, error) {
	if strings.ContainsAny(raw, "eE") {
		return numeric.Int{}, errExponent
	}
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return numeric.Int{}, err
	}
	if d.Sign() < 0 {
		return numeric.Int{}, errNegativeAmount
	}
	return numeric.ToInt(d.String(), scale, false)
}

// PlaceOrderRequest is the body of POST /orders.
type PlaceOrderRequest struct {
	AccountId        string `json:"accountId"`
	Symbol           string `json:"symbol"`
	Type             string `json:"type"`
	Side             string `json:"side"`
	Tif              string `json:"tif,omitempty"`
	Price            string `json:"price,omitempty"`
	Qty              string `json:"qty"`
	TriggerPrice     string `json:"triggerPrice,omitempty"`
	TriggerDirection string `json:"triggerDirection,omitempty"`
}

// CancelOrderRequest is the body of POST /orders/cancel.
type CancelOrderRequest struct {
	OrderId string `json:"orderId"`
}

// OrderInfo is the public JSON view of an order.
type OrderInfo struct {
	OrderId         string `json:"orderId"`
	AccountId       string `json:"accountId"`
	Symbol          string `json:"symbol"`
	Type            string `json:"type"`
	Side            string `json:"side"`
	Tif             string `json:"tif"`
	Price           string `json:"price,omitempty"`
	Qty             string `json:"qty"`
	ExecutedQty     string `json:"executedQty"`
	Status          string `json:"status"`
	RejectReason    string `json:"rejectReason,omitempty"`
	TsCreated       int64  `json:"tsCreated"`
	TsUpdated       int64  `json:"tsUpdated"`
}

func toOrderInfo(o *orders.Order, cfg market.SymbolConfig) OrderInfo {
	info := OrderInfo{
		OrderId:      string(o.Id),
		AccountId:    string(o.AccountId),
		Symbol:       string(o.Symbol),
		Type:         string(o.Type),
		Side:         string(o.Side),
		Tif:          string(o.Tif),
		Qty:          numeric.FromQtyInt(o.Qty, cfg.QtyScale),
		ExecutedQty:  numeric.FromQtyInt(o.ExecutedQty, cfg.QtyScale),
		Status:       string(o.Status),
		RejectReason: string(o.RejectReason),
		TsCreated:    o.TsCreated,
		TsUpdated:    o.TsUpdated,
	}
	if o.Price != nil {
		info.Price = numeric.FromPriceInt(*o.Price, cfg.PriceScale)
	}
	return info
}

// OrderbookLevel is one price/qty pair in a depth snapshot response.
type OrderbookLevel struct {
	Price string `json:"price"`
	Qty   string `json:"qty"`
}

// OrderbookSnapshot is the public JSON view of pkg/book.Snapshot.
type OrderbookSnapshot struct {
	Symbol string           `json:"symbol"`
	Bids   []OrderbookLevel `json:"bids"`
	Asks   []OrderbookLevel `json:"asks"`
	Seq    int64            `json:"seq"`
	Ts     int64            `json:"ts"`
}

// ReportEvent is one execution report pushed over the WebSocket stream.
type ReportEvent struct {
	Type    string `json:"type"`
	Ts      int64  `json:"ts"`
	Kind    string `json:"kind"`
	OrderId string `json:"orderId"`
	Symbol  string `json:"symbol,omitempty"`
}
