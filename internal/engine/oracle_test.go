package engine

import (
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/efreitasn/papertrade/internal/domain"
	"github.com/shopspring/decimal"
)

// seqRand replays a fixed sequence of draws, repeating the last one.
type seqRand struct {
	mu     sync.Mutex
	values []float64
	i      int
}

func (r *seqRand) Float64() float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	v := r.values[r.i]
	if r.i < len(r.values)-1 {
		r.i++
	}
	return v
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func newTestOracle(t *testing.T, draws ...float64) *Oracle {
	t.Helper()
	catalog, err := domain.NewCatalog(map[string]decimal.Decimal{
		"AAPL": dec("100"),
		"INFY": dec("1450"),
		"TCS":  dec("3200"),
	})
	if err != nil {
		t.Fatalf("NewCatalog: %v", err)
	}
	if len(draws) == 0 {
		draws = []float64{0.5}
	}
	return NewOracle(catalog, &seqRand{values: draws})
}

func TestNextPrice(t *testing.T) {
	tests := []struct {
		name    string
		current string
		base    string
		draws   []float64
		want    string
	}{
		{"no movement", "100", "100", []float64{0.5}, "100"},
		{"max up step", "100", "100", []float64{1.0}, "102"},
		{"max down step", "100", "100", []float64{0}, "98"},
		{"bounce off floor", "70", "100", []float64{0, 0.5}, "72.5"},
		{"bounce off ceiling", "130", "100", []float64{1.0, 0.2}, "129"},
		{"rounds to cents", "123.45", "100", []float64{0.75}, "124.68"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := NextPrice(dec(tt.current), dec(tt.base), &seqRand{values: tt.draws})
			if !got.Equal(dec(tt.want)) {
				t.Errorf("NextPrice(%s, %s) = %s, want %s", tt.current, tt.base, got, tt.want)
			}
		})
	}
}

func TestNextPrice_ClampsAfterRounding(t *testing.T) {
	// 0.7 × 1.01 = 0.707; rounding the bounce target must not fall below it.
	got := NextPrice(dec("0.71"), dec("1.01"), &seqRand{values: []float64{0}})
	if got.LessThan(dec("0.707")) {
		t.Errorf("NextPrice = %s, below floor 0.707", got)
	}
}

func TestOracle_InitialState(t *testing.T) {
	o := newTestOracle(t)

	ps, ok := o.Price("infy")
	if !ok {
		t.Fatal("Price(infy) not found")
	}
	if !ps.CurrentPrice.Equal(ps.BasePrice) || !ps.Change.IsZero() || ps.IsDown {
		t.Errorf("initial state = %+v, want current == base and no change", ps)
	}
	if _, ok := o.Price("MSFT"); ok {
		t.Error("Price(MSFT) should not be found")
	}
	if !o.Has("tcs") || o.Has("MSFT") {
		t.Error("Has() mismatch")
	}
	if snap := o.Snapshot(); snap.Seq != 0 || len(snap.Prices) != 3 {
		t.Errorf("Snapshot() = seq %d, %d prices, want 0 and 3", snap.Seq, len(snap.Prices))
	}
}

func TestOracle_TickUpdatesAllSymbols(t *testing.T) {
	o := newTestOracle(t, 1.0)
	at := time.Date(2025, 1, 1, 9, 15, 0, 0, time.UTC)
	o.now = func() time.Time { return at }

	snap := o.Tick()
	if snap.Seq != 1 {
		t.Errorf("Seq = %d, want 1", snap.Seq)
	}
	if !snap.At.Equal(at) {
		t.Errorf("At = %v, want %v", snap.At, at)
	}
	want := map[string]string{"AAPL": "102", "INFY": "1479", "TCS": "3264"}
	for sym, price := range want {
		ps := snap.Prices[sym]
		if !ps.CurrentPrice.Equal(dec(price)) {
			t.Errorf("%s = %s, want %s", sym, ps.CurrentPrice, price)
		}
		if !ps.ChangePercent.Equal(dec("2")) {
			t.Errorf("%s changePercent = %s, want 2", sym, ps.ChangePercent)
		}
		if !ps.LastUpdated.Equal(at) {
			t.Errorf("%s lastUpdated = %v, want %v", sym, ps.LastUpdated, at)
		}
	}

	if o.Tick().Seq != 2 {
		t.Error("Seq should increase on every tick")
	}
}

func TestOracle_SnapshotIsIsolated(t *testing.T) {
	o := newTestOracle(t, 1.0)
	before := o.Snapshot()
	o.Tick()
	if !before.Prices["AAPL"].CurrentPrice.Equal(dec("100")) {
		t.Error("earlier snapshot must not observe later ticks")
	}
}

func TestOracle_AllAndSymbolsSorted(t *testing.T) {
	o := newTestOracle(t)
	all := o.All()
	if len(all) != 3 {
		t.Fatalf("len(All()) = %d, want 3", len(all))
	}
	if !sort.SliceIsSorted(all, func(i, j int) bool { return all[i].Symbol < all[j].Symbol }) {
		t.Error("All() should be ordered by symbol")
	}
	if got := o.Symbols(); len(got) != 3 || got[0] != "AAPL" || got[2] != "TCS" {
		t.Errorf("Symbols() = %v", got)
	}
}

func TestOracle_Reset(t *testing.T) {
	o := newTestOracle(t, 1.0)
	o.Tick()
	o.Tick()

	if !o.Reset("aapl") {
		t.Fatal("Reset(aapl) = false, want true")
	}
	aapl, _ := o.Price("AAPL")
	if !aapl.CurrentPrice.Equal(dec("100")) || !aapl.Change.IsZero() {
		t.Errorf("AAPL after reset = %+v, want base price", aapl)
	}
	infy, _ := o.Price("INFY")
	if infy.CurrentPrice.Equal(infy.BasePrice) {
		t.Error("Reset(AAPL) must not touch INFY")
	}
	if h, _ := o.History("AAPL", 0); len(h) != 1 {
		t.Errorf("history after reset has %d entries, want 1", len(h))
	}
	if o.Reset("MSFT") {
		t.Error("Reset(MSFT) = true, want false")
	}

	o.ResetAll()
	for _, ps := range o.All() {
		if !ps.CurrentPrice.Equal(ps.BasePrice) {
			t.Errorf("%s after ResetAll = %s, want %s", ps.Symbol, ps.CurrentPrice, ps.BasePrice)
		}
	}
}

func TestOracle_History(t *testing.T) {
	o := newTestOracle(t)
	for i := 0; i < HistorySize+20; i++ {
		o.Tick()
	}

	h, ok := o.History("INFY", 1000)
	if !ok {
		t.Fatal("History(INFY) not found")
	}
	if len(h) != HistorySize {
		t.Errorf("len(history) = %d, want %d", len(h), HistorySize)
	}
	if h, _ := o.History("INFY", 0); len(h) != DefaultHistoryLimit {
		t.Errorf("default limit returned %d entries, want %d", len(h), DefaultHistoryLimit)
	}
	if h, _ := o.History("INFY", 5); len(h) != 5 {
		t.Errorf("limit 5 returned %d entries", len(h))
	}
	if _, ok := o.History("MSFT", 5); ok {
		t.Error("History(MSFT) should not be found")
	}
}

func TestOracle_Watchlist(t *testing.T) {
	o := newTestOracle(t, 0)
	o.Tick()

	items := o.Watchlist()
	if len(items) != 3 {
		t.Fatalf("len(Watchlist()) = %d, want 3", len(items))
	}
	first := items[0]
	if first.Name != "AAPL" || first.Price != 98 || first.Percent != "-2.00%" || !first.IsDown {
		t.Errorf("Watchlist()[0] = %+v", first)
	}

	o.ResetAll()
	if got := o.Watchlist()[0].Percent; got != "+0.00%" {
		t.Errorf("flat percent = %q, want +0.00%%", got)
	}
}

func TestOracle_ConcurrentReadsDuringTicks(t *testing.T) {
	o := newTestOracle(t)
	var wg sync.WaitGroup
	done := make(chan struct{})

	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-done:
					return
				default:
					o.Price("INFY")
					o.All()
					o.History("TCS", 10)
				}
			}
		}()
	}
	for i := 0; i < 200; i++ {
		o.Tick()
	}
	close(done)
	wg.Wait()
}
