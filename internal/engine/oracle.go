package engine

import (
	"math/rand/v2"
	"sync"
	"time"

	"github.com/efreitasn/papertrade/internal/domain"
	"github.com/google/btree"
	"github.com/shopspring/decimal"
)

// Walk parameters. Bounds and bounce are fractions of the base price.
const maxStep = 0.02

var (
	lowerBound  = decimal.RequireFromString("0.7")
	upperBound  = decimal.RequireFromString("1.3")
	bounceRange = decimal.RequireFromString("0.05")
)

const (
	// HistorySize is the number of prices kept per symbol.
	HistorySize = 100
	// DefaultHistoryLimit is used when History is called with limit <= 0.
	DefaultHistoryLimit = 50
)

// Rand is the random source used by the walk. *rand.Rand satisfies it.
type Rand interface {
	Float64() float64
}

// NextPrice advances current by one random-walk step around base. A step
// that would leave [0.7·base, 1.3·base] bounces back inside by up to
// 5% of base. The result is rounded to cents and always within the bounds.
func NextPrice(current, base decimal.Decimal, r Rand) decimal.Decimal {
	delta := -maxStep + 2*maxStep*r.Float64()
	candidate := current.Mul(decimal.NewFromFloat(1 + delta))

	lo := base.Mul(lowerBound)
	hi := base.Mul(upperBound)
	switch {
	case candidate.LessThan(lo):
		candidate = lo.Add(base.Mul(bounceRange).Mul(decimal.NewFromFloat(r.Float64())))
	case candidate.GreaterThan(hi):
		candidate = hi.Sub(base.Mul(bounceRange).Mul(decimal.NewFromFloat(r.Float64())))
	}

	candidate = domain.RoundMoney(candidate)
	if floor := lo.RoundCeil(domain.MoneyPlaces); candidate.LessThan(floor) {
		return floor
	}
	if ceil := hi.RoundFloor(domain.MoneyPlaces); candidate.GreaterThan(ceil) {
		return ceil
	}
	return candidate
}

// PricePoint is one entry of a symbol's price history.
type PricePoint struct {
	Price decimal.Decimal
	At    time.Time
}

// Snapshot is a consistent view of every price after a tick.
type Snapshot struct {
	Seq    uint64
	At     time.Time
	Prices map[string]domain.PriceState
}

// Select returns the states for symbols in the given order, skipping any
// the snapshot does not contain.
func (s Snapshot) Select(symbols []string) []domain.PriceState {
	out := make([]domain.PriceState, 0, len(symbols))
	for _, sym := range symbols {
		if ps, ok := s.Prices[sym]; ok {
			out = append(out, ps)
		}
	}
	return out
}

// WatchlistItem is the compact per-symbol view used by watchlist screens.
type WatchlistItem struct {
	Name    string  `json:"name"`
	Price   float64 `json:"price"`
	Percent string  `json:"percent"`
	IsDown  bool    `json:"isDown"`
}

type priceEntry struct {
	state   domain.PriceState
	history []PricePoint
}

func entryLess(a, b *priceEntry) bool {
	return a.state.Symbol < b.state.Symbol
}

// Oracle owns the simulated price of every catalog symbol. Tick is the only
// writer of walk state; all other methods return copies.
type Oracle struct {
	catalog *domain.Catalog
	rng     Rand
	now     func() time.Time

	mu     sync.RWMutex
	prices *btree.BTreeG[*priceEntry] // ordered by symbol
	seq    uint64
	at     time.Time
}

// NewOracle creates an oracle with every catalog symbol at its base price.
// A nil rng selects a randomly seeded PCG source.
func NewOracle(catalog *domain.Catalog, rng Rand) *Oracle {
	if rng == nil {
		rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	o := &Oracle{
		catalog: catalog,
		rng:     rng,
		now:     time.Now,
		prices:  btree.NewG[*priceEntry](16, entryLess),
	}
	o.ResetAll()
	return o
}

// Tick advances every symbol by one walk step and returns the resulting
// snapshot. Ticks are serialized against each other.
func (o *Oracle) Tick() Snapshot {
	o.mu.Lock()
	defer o.mu.Unlock()

	now := o.now()
	o.prices.Ascend(func(e *priceEntry) bool {
		next := NextPrice(e.state.CurrentPrice, e.state.BasePrice, o.rng)
		e.state = domain.NewPriceState(e.state.Symbol, e.state.BasePrice, next, now)
		e.history = appendHistory(e.history, PricePoint{Price: next, At: now})
		return true
	})
	o.seq++
	o.at = now
	return o.snapshotLocked()
}

// Snapshot returns the current prices without advancing them.
func (o *Oracle) Snapshot() Snapshot {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.snapshotLocked()
}

func (o *Oracle) snapshotLocked() Snapshot {
	prices := make(map[string]domain.PriceState, o.prices.Len())
	o.prices.Ascend(func(e *priceEntry) bool {
		prices[e.state.Symbol] = e.state
		return true
	})
	return Snapshot{Seq: o.seq, At: o.at, Prices: prices}
}

// Price returns the state for symbol (case-insensitive). The bool is false
// for symbols the oracle does not track.
func (o *Oracle) Price(symbol string) (domain.PriceState, bool) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	e, ok := o.get(domain.NormalizeSymbol(symbol))
	if !ok {
		return domain.PriceState{}, false
	}
	return e.state, true
}

// Has reports whether symbol is tracked.
func (o *Oracle) Has(symbol string) bool {
	_, ok := o.catalog.Base(symbol)
	return ok
}

// All returns every price state ordered by symbol.
func (o *Oracle) All() []domain.PriceState {
	o.mu.RLock()
	defer o.mu.RUnlock()
	out := make([]domain.PriceState, 0, o.prices.Len())
	o.prices.Ascend(func(e *priceEntry) bool {
		out = append(out, e.state)
		return true
	})
	return out
}

// Symbols returns the tracked symbols in ascending order.
func (o *Oracle) Symbols() []string {
	return o.catalog.Symbols()
}

// LastUpdated returns the time of the most recent tick or reset.
func (o *Oracle) LastUpdated() time.Time {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.at
}

// History returns up to limit of the most recent prices for symbol, oldest
// first. limit <= 0 selects DefaultHistoryLimit.
func (o *Oracle) History(symbol string, limit int) ([]PricePoint, bool) {
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	o.mu.RLock()
	defer o.mu.RUnlock()
	e, ok := o.get(domain.NormalizeSymbol(symbol))
	if !ok {
		return nil, false
	}
	h := e.history
	if len(h) > limit {
		h = h[len(h)-limit:]
	}
	out := make([]PricePoint, len(h))
	copy(out, h)
	return out, true
}

// Watchlist returns the compact view of every symbol ordered by symbol.
func (o *Oracle) Watchlist() []WatchlistItem {
	states := o.All()
	out := make([]WatchlistItem, len(states))
	for i, ps := range states {
		sign := ""
		if !ps.ChangePercent.IsNegative() {
			sign = "+"
		}
		out[i] = WatchlistItem{
			Name:    ps.Symbol,
			Price:   domain.ToFloat(ps.CurrentPrice),
			Percent: sign + ps.ChangePercent.StringFixed(2) + "%",
			IsDown:  ps.IsDown,
		}
	}
	return out
}

// Reset restores symbol to its base price and truncates its history. It
// returns false for unknown symbols.
func (o *Oracle) Reset(symbol string) bool {
	symbol = domain.NormalizeSymbol(symbol)
	base, ok := o.catalog.Base(symbol)
	if !ok {
		return false
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	now := o.now()
	o.prices.ReplaceOrInsert(newEntry(symbol, base, now))
	o.at = now
	return true
}

// ResetAll restores every symbol to its base price.
func (o *Oracle) ResetAll() {
	o.mu.Lock()
	defer o.mu.Unlock()
	now := o.now()
	for _, symbol := range o.catalog.Symbols() {
		base, _ := o.catalog.Base(symbol)
		o.prices.ReplaceOrInsert(newEntry(symbol, base, now))
	}
	o.at = now
}

func (o *Oracle) get(symbol string) (*priceEntry, bool) {
	return o.prices.Get(&priceEntry{state: domain.PriceState{Symbol: symbol}})
}

func newEntry(symbol string, base decimal.Decimal, at time.Time) *priceEntry {
	return &priceEntry{
		state:   domain.NewPriceState(symbol, base, base, at),
		history: []PricePoint{{Price: base, At: at}},
	}
}

func appendHistory(h []PricePoint, p PricePoint) []PricePoint {
	h = append(h, p)
	if len(h) > HistorySize {
		h = append(h[:0:0], h[len(h)-HistorySize:]...)
	}
	return h
}
