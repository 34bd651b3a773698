package boundary

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/tradeforge/engine/pkg/accounts"
	"github.com/tradeforge/engine/pkg/ids"
)

// toAccountInfo reports balances as raw fixed-point integer strings,
// the same representation pkg/checkpoint uses: a currency's scale is
// decided per-symbol at order placement time, not tracked globally on
// the ledger, so there is no single scale to render a balance against
// here.
func toAccountInfo(id ids.AccountId, apiKey string, balances map[string]accounts.Balance) AccountInfo {
	out := AccountInfo{AccountId: string(id), ApiKey: apiKey, Balances: make(map[string]Balance, len(balances))}
	for cur, b := range balances {
		out.Balances[cur] = Balance{Free: b.Free.DecimalString(), Locked: b.Locked.DecimalString()}
	}
	return out
}

func (s *Server) handleCreateAccount(w http.ResponseWriter, r *http.Request) {
	var req CreateAccountRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}
	acc := s.state.Accounts.CreateAccount(req.ApiKey)
	respondJSON(w, http.StatusCreated, toAccountInfo(acc.Id, acc.ApiKey, nil))
}

func (s *Server) handleGetAccount(w http.ResponseWriter, r *http.Request) {
	id := ids.AccountId(mux.Vars(r)["id"])
	acc, err := s.state.Accounts.Get(id)
	if err != nil {
		respondError(w, http.StatusNotFound, "account not found", string(id))
		return
	}
	bal, err := s.state.Accounts.GetBalancesSnapshot(id)
	if err != nil {
		respondError(w, http.StatusNotFound, "account not found", string(id))
		return
	}
	respondJSON(w, http.StatusOK, toAccountInfo(acc.Id, acc.ApiKey, bal))
}

func (s *Server) handleDeposit(w http.ResponseWriter, r *http.Request) {
	id := ids.AccountId(mux.Vars(r)["id"])
	var req DepositRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}
	amount, err := decimalToFixed(req.Amount, req.Scale)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid amount", err.Error())
		return
	}
	bal, err := s.state.Accounts.Deposit(id, req.Currency, amount)
	if err != nil {
		respondError(w, http.StatusBadRequest, "deposit failed", err.Error())
		return
	}
	respondJSON(w, http.StatusOK, Balance{Free: bal.Free.DecimalString(), Locked: bal.Locked.DecimalString()})
}

func (s *Server) handleGetOpenOrders(w http.ResponseWriter, r *http.Request) {
	id := ids.AccountId(mux.Vars(r)["id"])
	var out []OrderInfo
	for _, cfg := range s.state.Symbols.List() {
		for _, o := range s.orders.OpenOrdersForSymbol(cfg.Symbol) {
			if o.AccountId != id {
				continue
			}
			out = append(out, toOrderInfo(o, cfg))
		}
	}
	if out == nil {
		out = []OrderInfo{}
	}
	respondJSON(w, http.StatusOK, out)
}
