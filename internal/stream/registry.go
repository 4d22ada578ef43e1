package stream

import (
	"sort"
	"sync"

	"github.com/efreitasn/papertrade/internal/domain"
)

// Registry maps connection IDs to the symbols each connection watches. It
// is the only owner of subscription state.
type Registry struct {
	known func(symbol string) bool

	mu   sync.RWMutex
	subs map[string][]string // connID → sorted symbols
}

// NewRegistry creates a registry that accepts only symbols for which known
// returns true.
func NewRegistry(known func(symbol string) bool) *Registry {
	return &Registry{
		known: known,
		subs:  make(map[string][]string),
	}
}

// Subscribe replaces the subscription of connID with the known subset of
// symbols. Symbols are normalized and deduplicated. When no requested
// symbol is known the existing subscription is left untouched and accepted
// is empty.
func (r *Registry) Subscribe(connID string, symbols []string) (accepted, rejected []string) {
	seen := make(map[string]bool, len(symbols))
	for _, raw := range symbols {
		sym := domain.NormalizeSymbol(raw)
		if sym == "" || seen[sym] {
			continue
		}
		seen[sym] = true
		if r.known(sym) {
			accepted = append(accepted, sym)
		} else {
			rejected = append(rejected, sym)
		}
	}
	if len(accepted) == 0 {
		return nil, rejected
	}
	sort.Strings(accepted)

	r.mu.Lock()
	r.subs[connID] = accepted
	r.mu.Unlock()
	return accepted, rejected
}

// Unsubscribe removes the subscription of connID and reports whether one
// existed. It is idempotent.
func (r *Registry) Unsubscribe(connID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.subs[connID]
	delete(r.subs, connID)
	return ok
}

// OnDisconnect releases everything held for connID.
func (r *Registry) OnDisconnect(connID string) {
	r.Unsubscribe(connID)
}

// Symbols returns the symbols connID watches.
func (r *Registry) Symbols(connID string) ([]string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	syms, ok := r.subs[connID]
	if !ok {
		return nil, false
	}
	out := make([]string, len(syms))
	copy(out, syms)
	return out, true
}

// Len returns the number of active subscriptions.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.subs)
}

// Each calls fn for every subscription. The symbol slices are shared and
// must not be modified.
func (r *Registry) Each(fn func(connID string, symbols []string)) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for id, syms := range r.subs {
		fn(id, syms)
	}
}
