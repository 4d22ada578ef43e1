package service

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/efreitasn/papertrade/internal/domain"
	"github.com/efreitasn/papertrade/internal/engine"
	"github.com/efreitasn/papertrade/internal/metrics"
	"github.com/efreitasn/papertrade/internal/store"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// stubPrices is a PriceSource with prices set by the test.
type stubPrices struct {
	mu     sync.Mutex
	prices map[string]decimal.Decimal
}

func (p *stubPrices) Price(symbol string) (domain.PriceState, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	sym := domain.NormalizeSymbol(symbol)
	price, ok := p.prices[sym]
	if !ok {
		return domain.PriceState{}, false
	}
	return domain.NewPriceState(sym, price, price, time.Now()), true
}

func (p *stubPrices) Symbols() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.prices))
	for s := range p.prices {
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}

func (p *stubPrices) set(symbol, price string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.prices[symbol] = decimal.RequireFromString(price)
}

type testEnv struct {
	db        *store.DB
	prices    *stubPrices
	locks     *engine.UserLocks
	wallets   *WalletService
	holdings  *HoldingService
	orders    *store.OrderStore
	svc       *OrderService
	portfolio *PortfolioService
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestEnv(t *testing.T) *testEnv {
	return newTestEnvWithTimeout(t, 5*time.Second)
}

func newTestEnvWithTimeout(t *testing.T, timeout time.Duration) *testEnv {
	t.Helper()
	return newTestEnvWith(t, envConfig{timeout: timeout})
}

// envConfig overrides the defaults of newTestEnvWith. Zero fields keep the
// default.
type envConfig struct {
	timeout  time.Duration
	attempts int
	metrics  *metrics.Metrics
	// wrapOrders lets a test intercept order persistence.
	wrapOrders func(OrderLog) OrderLog
}

func newTestEnvWith(t *testing.T, cfg envConfig) *testEnv {
	t.Helper()
	if cfg.timeout == 0 {
		cfg.timeout = 5 * time.Second
	}
	if cfg.attempts == 0 {
		cfg.attempts = 3
	}
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared&_busy_timeout=5000", uuid.NewString())
	db, err := store.Open("sqlite", dsn)
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	if err := db.Migrate(context.Background()); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	prices := &stubPrices{prices: map[string]decimal.Decimal{
		"INFY": decimal.RequireFromString("150"),
		"TCS":  decimal.RequireFromString("3200"),
	}}
	locks := engine.NewUserLocks()
	wallets := NewWalletService(db, store.NewWalletStore(db), decimal.NewFromInt(100000), "USD")
	holdings := NewHoldingService(db, store.NewHoldingStore(db))
	orders := store.NewOrderStore(db)
	var log OrderLog = orders
	if cfg.wrapOrders != nil {
		log = cfg.wrapOrders(orders)
	}
	svc := NewOrderService(db, prices, wallets, holdings, log, locks, cfg.timeout, cfg.attempts, cfg.metrics, discardLogger())

	return &testEnv{
		db:        db,
		prices:    prices,
		locks:     locks,
		wallets:   wallets,
		holdings:  holdings,
		orders:    orders,
		svc:       svc,
		portfolio: NewPortfolioService(wallets, holdings, prices),
	}
}

func (env *testEnv) place(t *testing.T, userID, symbol string, qty float64, mode string) (*PlaceOrderResult, error) {
	t.Helper()
	return env.svc.PlaceOrder(context.Background(), PlaceOrderRequest{
		UserID:   userID,
		Symbol:   symbol,
		Quantity: qty,
		Mode:     mode,
	})
}

func (env *testEnv) balance(t *testing.T, userID string) decimal.Decimal {
	t.Helper()
	b, err := env.wallets.GetBalance(context.Background(), nil, userID)
	if err != nil {
		t.Fatalf("GetBalance: %v", err)
	}
	return b
}

func (env *testEnv) orderCount(t *testing.T, userID string) int64 {
	t.Helper()
	n, err := env.orders.CountByUser(context.Background(), nil, userID)
	if err != nil {
		t.Fatalf("CountByUser: %v", err)
	}
	return n
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}
