// Package boundary is a thin REST + WebSocket adapter over the engine's
// accounts/orders/book services, realizing the service boundary
// contracts: accounts CRUD, order placement/cancellation, open-order
// listing, balance snapshots, and execution-report streaming. It owns
// no persistence, no authorization, and no middleware beyond CORS —
// every handler calls straight into pkg/accounts or pkg/orders and
// marshals the result.
package boundary

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/rs/cors"
	"go.uber.org/zap"

	"github.com/tradeforge/engine/pkg/book"
	"github.com/tradeforge/engine/pkg/ids"
	"github.com/tradeforge/engine/pkg/numeric"
	"github.com/tradeforge/engine/pkg/orders"
	"github.com/tradeforge/engine/pkg/state"
)

// Server exposes the exchange's accounts/orders/book services over
// HTTP and WebSocket.
type Server struct {
	state  *state.ExchangeState
	orders *orders.Service
	books  map[ids.SymbolId]*book.Mirror
	log    *zap.Logger
	router *mux.Router
	hub    *Hub
}

// NewServer wires a boundary Server over the given exchange services.
// books may be nil or incomplete; a symbol with no registered Mirror
// simply has no working depth endpoint.
func NewServer(st *state.ExchangeState, ordersSvc *orders.Service, books map[ids.SymbolId]*book.Mirror, log *zap.Logger) *Server {
	if books == nil {
		books = make(map[ids.SymbolId]*book.Mirror)
	}
	s := &Server{
		state:  st,
		orders: ordersSvc,
		books:  books,
		log:    log,
		router: mux.NewRouter(),
		hub:    NewHub(),
	}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	api := s.router.PathPrefix("/api/v1").Subrouter()

	api.HandleFunc("/symbols", s.handleListSymbols).Methods("GET")
	api.HandleFunc("/symbols/{symbol}/orderbook", s.handleGetOrderbook).Methods("GET")

	api.HandleFunc("/accounts", s.handleCreateAccount).Methods("POST")
	api.HandleFunc("/accounts/{id}", s.handleGetAccount).Methods("GET")
	api.HandleFunc("/accounts/{id}/deposit", s.handleDeposit).Methods("POST")
	api.HandleFunc("/accounts/{id}/orders", s.handleGetOpenOrders).Methods("GET")

	api.HandleFunc("/orders", s.handlePlaceOrder).Methods("POST")
	api.HandleFunc("/orders/{id}", s.handleGetOrder).Methods("GET")
	api.HandleFunc("/orders/cancel", s.handleCancelOrder).Methods("POST")

	s.router.HandleFunc("/ws", s.handleWebSocket)
	s.router.HandleFunc("/health", s.handleHealth).Methods("GET")
}

// Handler returns the CORS-wrapped http.Handler, for use by cmd/tradeforge-replay
// or directly by httptest in tests.
func (s *Server) Handler() http.Handler {
	c := cors.New(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type"},
		AllowCredentials: false,
	})
	return c.Handler(s.router)
}

// Start runs the hub loop and serves HTTP on addr until the process
// exits or ListenAndServe returns an error.
func (s *Server) Start(addr string) error {
	go s.hub.Run()
	s.log.Info("boundary server starting", zap.String("addr", addr))
	return http.ListenAndServe(addr, s.Handler())
}

// BroadcastReport pushes one execution report to every WebSocket client
// subscribed to "reports:<symbol>".
func (s *Server) BroadcastReport(symbol ids.SymbolId, ev ReportEvent) {
	s.hub.BroadcastToChannel("reports:"+string(symbol), ev)
}

// BroadcastOrderbook pushes the current depth snapshot for symbol to
// every client subscribed to "orderbook:<symbol>". Silently does
// nothing if symbol is not a registered symbol.
func (s *Server) BroadcastOrderbook(symbol ids.SymbolId, snap book.Snapshot) {
	cfg, err := s.state.Symbols.Get(symbol)
	if err != nil {
		return
	}
	s.hub.BroadcastToChannel("orderbook:"+string(symbol), toOrderbookSnapshot(symbol, snap, cfg.PriceScale, cfg.QtyScale))
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, errMsg, message string) {
	respondJSON(w, status, ErrorResponse{Error: errMsg, Message: message})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleListSymbols(w http.ResponseWriter, r *http.Request) {
	cfgs := s.state.Symbols.List()
	out := make([]SymbolInfo, len(cfgs))
	for i, c := range cfgs {
		out[i] = toSymbolInfo(c)
	}
	respondJSON(w, http.StatusOK, out)
}

func (s *Server) handleGetOrderbook(w http.ResponseWriter, r *http.Request) {
	symbol := ids.SymbolId(mux.Vars(r)["symbol"])
	mirror, ok := s.books[symbol]
	if !ok {
		respondError(w, http.StatusNotFound, "orderbook not found", string(symbol))
		return
	}
	cfg, err := s.state.Symbols.Get(symbol)
	if err != nil {
		respondError(w, http.StatusNotFound, "symbol not found", string(symbol))
		return
	}
	snap := mirror.GetSnapshot(0)
	respondJSON(w, http.StatusOK, toOrderbookSnapshot(symbol, snap, cfg.PriceScale, cfg.QtyScale))
}

func toOrderbookSnapshot(symbol ids.SymbolId, snap book.Snapshot, priceScale, qtyScale int) OrderbookSnapshot {
	bids := make([]OrderbookLevel, len(snap.Bids))
	for i, l := range snap.Bids {
		bids[i] = OrderbookLevel{Price: numeric.FromPriceInt(l.Price, priceScale), Qty: numeric.FromQtyInt(l.Qty, qtyScale)}
	}
	asks := make([]OrderbookLevel, len(snap.Asks))
	for i, l := range snap.Asks {
		asks[i] = OrderbookLevel{Price: numeric.FromPriceInt(l.Price, priceScale), Qty: numeric.FromQtyInt(l.Qty, qtyScale)}
	}
	return OrderbookSnapshot{Symbol: string(symbol), Bids: bids, Asks: asks, Seq: snap.Seq, Ts: snap.Ts}
}
