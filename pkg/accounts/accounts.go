// Package accounts implements the balance ledger: per-account,
// per-currency free/locked balances, with the lock/unlock/consume/
// deposit primitives the orders and matching services build reservation
// accounting on top of.
package accounts

import (
	"sync"

	"github.com/tradeforge/engine/pkg/ids"
	"github.com/tradeforge/engine/pkg/numeric"
	"github.com/tradeforge/engine/pkg/tferrors"
)

// Balance is a non-negative {free, locked} pair for one currency on one
// account. free+locked equals cumulative deposits minus cumulative
// out-flows; locked never exceeds the sum of that account's live order
// reservations in this currency.
type Balance struct {
	Free   numeric.Int
	Locked numeric.Int
}

// Account is {id, apiKey, balances}. Created once by Service.CreateAccount and
// never destroyed for the lifetime of a run.
type Account struct {
	Id       ids.AccountId
	ApiKey   string
	Balances map[string]Balance
}

// Service is the thread-safe balance ledger over every account in the
// exchange. It borrows an *ids.AccountSeq rather than owning one, so a
// single counter can be shared with checkpoint restore.
type Service struct {
	mu       sync.RWMutex
	accounts map[ids.AccountId]*Account
	seq      *ids.AccountSeq
}

// NewService returns a ledger backed by the given account-id sequence.
func NewService(seq *ids.AccountSeq) *Service {
	return &Service{accounts: make(map[ids.AccountId]*Account), seq: seq}
}

// CreateAccount allocates a fresh account id and an empty balance map.
func (s *Service) CreateAccount(apiKey string) *Account {
	s.mu.Lock()
	defer s.mu.Unlock()
	acc := &Account{
		Id:       s.seq.NextAccountId(),
		ApiKey:   apiKey,
		Balances: make(map[string]Balance),
	}
	s.accounts[acc.Id] = acc
	return acc
}

// Restore inserts an account built from a checkpoint, preserving its
// existing id rather than allocating a new one. Used only by
// pkg/checkpoint during state rebuild.
func (s *Service) Restore(acc *Account) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.accounts[acc.Id] = acc
}

func (s *Service) getLocked(id ids.AccountId) (*Account, error) {
	acc, ok := s.accounts[id]
	if !ok {
		return nil, tferrors.NewNotFoundError("account", string(id))
	}
	return acc, nil
}

// Get returns the live account (not a copy); callers inside this package
// and pkg/orders rely on mutating it under the service's lock.
func (s *Service) Get(id ids.AccountId) (*Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.getLocked(id)
}

// Deposit increments free balance of currency by amount (>= 0),
// creating the currency's Balance entry if this is the first deposit.
func (s *Service) Deposit(id ids.AccountId, currency string, amount numeric.Int) (Balance, error) {
	if amount.Sign() < 0 {
		return Balance{}, tferrors.NewValidationError("amount", "deposit amount must be non-negative")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	acc, err := s.getLocked(id)
	if err != nil {
		return Balance{}, err
	}
	bal := acc.Balances[currency]
	bal.Free = numeric.Add(bal.Free, amount)
	acc.Balances[currency] = bal
	return bal, nil
}

// Lock atomically moves amount from free to locked. Returns false
// (without error) if free < amount, per spec.md's "returns false if
// free < amount" contract — this is an expected outcome, not a failure.
func (s *Service) Lock(id ids.AccountId, currency string, amount numeric.Int) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	acc, err := s.getLocked(id)
	if err != nil {
		return false, err
	}
	bal := acc.Balances[currency]
	if numeric.LessThan(bal.Free, amount) {
		return false, nil
	}
	newFree, err := numeric.Sub(bal.Free, amount)
	if err != nil {
		return false, nil
	}
	bal.Free = newFree
	bal.Locked = numeric.Add(bal.Locked, amount)
	acc.Balances[currency] = bal
	return true, nil
}

// Unlock moves amount from locked back to free. Fails with a
// ValidationError if locked < amount.
func (s *Service) Unlock(id ids.AccountId, currency string, amount numeric.Int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	acc, err := s.getLocked(id)
	if err != nil {
		return err
	}
	bal := acc.Balances[currency]
	newLocked, err := numeric.Sub(bal.Locked, amount)
	if err != nil {
		return tferrors.NewValidationError("amount", "unlock exceeds locked balance")
	}
	bal.Locked = newLocked
	bal.Free = numeric.Add(bal.Free, amount)
	acc.Balances[currency] = bal
	return nil
}

// ConsumeLocked decreases locked by amount without re-crediting free,
// used when settling the outgoing side of a fill (the locked funds leave
// the account entirely rather than becoming available again).
func (s *Service) ConsumeLocked(id ids.AccountId, currency string, amount numeric.Int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	acc, err := s.getLocked(id)
	if err != nil {
		return err
	}
	bal := acc.Balances[currency]
	newLocked, err := numeric.Sub(bal.Locked, amount)
	if err != nil {
		return tferrors.NewValidationError("amount", "consumeLocked exceeds locked balance")
	}
	bal.Locked = newLocked
	acc.Balances[currency] = bal
	return nil
}

// CreditFree increases free balance directly, used to settle the
// incoming side of a fill (e.g. base credited to a buyer, quote credited
// to a seller) without going through the reservation machinery.
func (s *Service) CreditFree(id ids.AccountId, currency string, amount numeric.Int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	acc, err := s.getLocked(id)
	if err != nil {
		return err
	}
	bal := acc.Balances[currency]
	bal.Free = numeric.Add(bal.Free, amount)
	acc.Balances[currency] = bal
	return nil
}

// DebitFree decreases free balance directly (used for a fee charged to
// the credited side of a fill, e.g. the quote a seller receives net of
// the taker fee).
func (s *Service) DebitFree(id ids.AccountId, currency string, amount numeric.Int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	acc, err := s.getLocked(id)
	if err != nil {
		return err
	}
	bal := acc.Balances[currency]
	newFree, err := numeric.Sub(bal.Free, amount)
	if err != nil {
		return tferrors.NewValidationError("amount", "debitFree exceeds free balance")
	}
	bal.Free = newFree
	acc.Balances[currency] = bal
	return nil
}

// ApplyTradeFees subtracts fee from the locked or free bucket of
// currency, depending on which side of a fill is settling. preferLocked
// is set by the orders service when the fee is paid out of funds already
// reserved for this order (the BUY side, fee taken from locked quote);
// it is false when the fee is paid out of funds just credited (the SELL
// side, fee taken from the free quote the sale proceeds land in).
func (s *Service) ApplyTradeFees(id ids.AccountId, currency string, fee numeric.Int, preferLocked bool) error {
	if fee.IsZero() {
		return nil
	}
	if preferLocked {
		return s.ConsumeLocked(id, currency, fee)
	}
	return s.DebitFree(id, currency, fee)
}

// AllAccounts returns a snapshot slice of every account, for checkpoint
// serialization. Balance maps are not deep-copied; callers must not
// mutate them.
func (s *Service) AllAccounts() []*Account {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*Account, 0, len(s.accounts))
	for _, acc := range s.accounts {
		out = append(out, acc)
	}
	return out
}

// GetBalancesSnapshot returns a deep copy of an account's balances, used
// by external readers and service-boundary handlers that must not
// observe mutation of live ledger state.
func (s *Service) GetBalancesSnapshot(id ids.AccountId) (map[string]Balance, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	acc, err := s.getLocked(id)
	if err != nil {
		return nil, err
	}
	out := make(map[string]Balance, len(acc.Balances))
	for currency, bal := range acc.Balances {
		out[currency] = bal
	}
	return out, nil
}
