// Package market holds symbol configuration and fee schedules: the
// static, immutable-after-registration trading parameters every other
// service reads but none of them mutate at runtime.
package market

import (
	"sync"

	"github.com/tradeforge/engine/pkg/ids"
	"github.com/tradeforge/engine/pkg/tferrors"
)

// SymbolConfig describes a single tradeable symbol. Immutable after
// registration: priceScale/qtyScale decide how decimal strings convert
// to fixed-point integers for every order and fill on this symbol.
type SymbolConfig struct {
	Symbol     ids.SymbolId
	Base       string
	Quote      string
	PriceScale int
	QtyScale   int
}

// FeeSchedule is the maker/taker basis-point rate applied to a fill's
// notional. Fee = floor(notional * bps / 10_000).
type FeeSchedule struct {
	MakerBps int64
	TakerBps int64
}

// Registry is a thread-safe store of registered symbol configs, keyed by
// SymbolId. Registration is expected at startup; lookups happen on every
// order placement and fill.
type Registry struct {
	mu      sync.RWMutex
	symbols map[ids.SymbolId]SymbolConfig
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{symbols: make(map[ids.SymbolId]SymbolConfig)}
}

// Register adds a symbol config. Returns a ValidationError if the scale
// fields are negative, or if the symbol was already registered —
// registration is one-shot, per spec.md's "immutable after registration".
func (r *Registry) Register(cfg SymbolConfig) error {
	if cfg.PriceScale < 0 || cfg.QtyScale < 0 {
		return tferrors.NewValidationError("scale", "priceScale and qtyScale must be >= 0")
	}
	if cfg.Symbol == "" {
		return tferrors.NewValidationError("symbol", "symbol id must not be empty")
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.symbols[cfg.Symbol]; exists {
		return tferrors.NewValidationError("symbol", "symbol already registered: "+string(cfg.Symbol))
	}
	r.symbols[cfg.Symbol] = cfg
	return nil
}

// Get returns the config for a symbol, or a NotFoundError.
func (r *Registry) Get(symbol ids.SymbolId) (SymbolConfig, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	cfg, ok := r.symbols[symbol]
	if !ok {
		return SymbolConfig{}, tferrors.NewNotFoundError("symbol", string(symbol))
	}
	return cfg, nil
}

// Exists reports whether a symbol is registered.
func (r *Registry) Exists(symbol ids.SymbolId) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.symbols[symbol]
	return ok
}

// List returns all registered symbol configs in no particular order.
func (r *Registry) List() []SymbolConfig {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]SymbolConfig, 0, len(r.symbols))
	for _, cfg := range r.symbols {
		out = append(out, cfg)
	}
	return out
}

// Count returns the number of registered symbols.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.symbols)
}
