package boundary

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/tradeforge/engine/pkg/ids"
	"github.com/tradeforge/engine/pkg/orders"
)

func (s *Server) handlePlaceOrder(w http.ResponseWriter, r *http.Request) {
	var req PlaceOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}

	symbol := ids.SymbolId(req.Symbol)
	cfg, err := s.state.Symbols.Get(symbol)
	if err != nil {
		respondError(w, http.StatusNotFound, "unknown symbol", req.Symbol)
		return
	}

	qty, err := decimalToFixed(req.Qty, cfg.QtyScale)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid qty", err.Error())
		return
	}

	in := orders.PlaceOrderInput{
		AccountId:        ids.AccountId(req.AccountId),
		Symbol:           symbol,
		Type:             orders.OrderType(req.Type),
		Side:             orders.Side(req.Side),
		Tif:              orders.Tif(req.Tif),
		Qty:              qty,
		TriggerDirection: orders.TriggerDirection(req.TriggerDirection),
		Ts:               s.state.TsCounter.Next(),
	}

	if req.Price != "" {
		price, err := decimalToFixed(req.Price, cfg.PriceScale)
		if err != nil {
			respondError(w, http.StatusBadRequest, "invalid price", err.Error())
			return
		}
		in.Price = &price
	}
	if req.TriggerPrice != "" {
		trigger, err := decimalToFixed(req.TriggerPrice, cfg.PriceScale)
		if err != nil {
			respondError(w, http.StatusBadRequest, "invalid triggerPrice", err.Error())
			return
		}
		in.TriggerPrice = &trigger
	}

	order, err := s.orders.PlaceOrder(in)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "place order failed", err.Error())
		return
	}
	respondJSON(w, http.StatusCreated, toOrderInfo(order, cfg))
}

func (s *Server) handleGetOrder(w http.ResponseWriter, r *http.Request) {
	id := ids.OrderId(mux.Vars(r)["id"])
	order, err := s.orders.Get(id)
	if err != nil {
		respondError(w, http.StatusNotFound, "order not found", string(id))
		return
	}
	cfg, err := s.state.Symbols.Get(order.Symbol)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "symbol lookup failed", err.Error())
		return
	}
	respondJSON(w, http.StatusOK, toOrderInfo(order, cfg))
}

func (s *Server) handleCancelOrder(w http.ResponseWriter, r *http.Request) {
	var req CancelOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}
	id := ids.OrderId(req.OrderId)
	if err := s.orders.CancelOrder(id, s.state.TsCounter.Next()); err != nil {
		respondError(w, http.StatusNotFound, "cancel failed", err.Error())
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "canceled", "orderId": string(id)})
}
