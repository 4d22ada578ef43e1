package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/efreitasn/papertrade/internal/domain"
	"github.com/efreitasn/papertrade/internal/engine"
	"github.com/efreitasn/papertrade/internal/metrics"
	"github.com/efreitasn/papertrade/internal/store"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const (
	maxOrderQuantity  = 1_000_000_000
	defaultOrderLimit = 20
	maxOrderLimit     = 100
)

// PlaceOrderRequest represents the input for order placement.
type PlaceOrderRequest struct {
	UserID   string
	Symbol   string
	Quantity float64
	Mode     string
	Price    *float64 // informational; settlement always uses the oracle price
}

// PlaceOrderResult is the outcome of a settled order.
type PlaceOrderResult struct {
	Order   *domain.Order
	Balance decimal.Decimal
	Holding *domain.Holding // nil when the position was fully sold
}

// OrderService settles market orders against the live price, moving cash
// and shares in a single transaction.
type OrderService struct {
	db       *store.DB
	prices   PriceSource
	wallets  *WalletService
	holdings *HoldingService
	orders   OrderLog
	locks    *engine.UserLocks
	timeout  time.Duration
	attempts int
	metrics  *metrics.Metrics
	logger   *slog.Logger
}

// NewOrderService creates a new OrderService. timeout bounds the wait for a
// user's settlement slot plus the settlement itself; attempts is the number
// of tries made when a concurrent writer invalidates a settlement.
func NewOrderService(
	db *store.DB,
	prices PriceSource,
	wallets *WalletService,
	holdings *HoldingService,
	orders OrderLog,
	locks *engine.UserLocks,
	timeout time.Duration,
	attempts int,
	m *metrics.Metrics,
	logger *slog.Logger,
) *OrderService {
	if attempts < 1 {
		attempts = 1
	}
	return &OrderService{
		db:       db,
		prices:   prices,
		wallets:  wallets,
		holdings: holdings,
		orders:   orders,
		locks:    locks,
		timeout:  timeout,
		attempts: attempts,
		metrics:  m,
		logger:   logger,
	}
}

// validOrder is a request that passed validation.
type validOrder struct {
	userID string
	symbol string
	qty    int64
	mode   domain.Mode
}

// PlaceOrder validates the request, resolves the current price and settles
// the order. Either the wallet, the holding and the order log are all
// updated, or none of them is.
func (s *OrderService) PlaceOrder(ctx context.Context, req PlaceOrderRequest) (*PlaceOrderResult, error) {
	start := time.Now()

	o, err := validateOrder(req)
	if err != nil {
		mode, ok := domain.ParseMode(req.Mode)
		if !ok {
			mode = "INVALID"
		}
		s.metrics.ObserveOrder(string(mode), metrics.OutcomeRejected, time.Since(start))
		return nil, err
	}

	res, err := s.settleWithRetry(ctx, o, req.Price)
	s.metrics.ObserveOrder(string(o.mode), outcomeOf(err), time.Since(start))
	if err != nil {
		return nil, err
	}
	return res, nil
}

func validateOrder(req PlaceOrderRequest) (validOrder, error) {
	if req.UserID == "" {
		return validOrder{}, domain.ErrUnauthorized
	}

	symbol := domain.NormalizeSymbol(req.Symbol)
	if symbol == "" {
		return validOrder{}, &domain.ValidationError{Message: "symbol is required"}
	}
	if !domain.ValidSymbol(symbol) {
		return validOrder{}, &domain.ValidationError{Message: fmt.Sprintf("invalid symbol: %s", req.Symbol)}
	}

	q := req.Quantity
	if math.IsNaN(q) || math.IsInf(q, 0) || q <= 0 || q != math.Trunc(q) || q > maxOrderQuantity {
		return validOrder{}, &domain.ValidationError{
			Message: fmt.Sprintf("qty must be a whole number between 1 and %d", maxOrderQuantity),
		}
	}

	mode, ok := domain.ParseMode(req.Mode)
	if !ok {
		return validOrder{}, &domain.ValidationError{Message: "mode must be BUY or SELL"}
	}

	return validOrder{userID: req.UserID, symbol: symbol, qty: int64(q), mode: mode}, nil
}

func (s *OrderService) settleWithRetry(ctx context.Context, o validOrder, clientPrice *float64) (*PlaceOrderResult, error) {
	if _, ok := s.prices.Price(o.symbol); !ok {
		return nil, &domain.UnknownSymbolError{Symbol: o.symbol, Available: s.prices.Symbols()}
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	unlock, err := s.locks.Lock(ctx, o.userID)
	if err != nil && errors.Is(ctx.Err(), context.Canceled) {
		s.logger.Info("order abandoned by client",
			slog.String("user_id", o.userID),
			slog.String("symbol", o.symbol),
			slog.String("mode", string(o.mode)),
		)
		return nil, context.Canceled
	}
	if err != nil {
		s.logger.Warn("settlement slot busy",
			slog.String("user_id", o.userID),
			slog.String("symbol", o.symbol),
			slog.String("mode", string(o.mode)),
		)
		return nil, err
	}
	defer unlock()

	for attempt := 1; ; attempt++ {
		ps, ok := s.prices.Price(o.symbol)
		if !ok {
			return nil, &domain.UnknownSymbolError{Symbol: o.symbol, Available: s.prices.Symbols()}
		}
		price := ps.CurrentPrice
		if clientPrice != nil && attempt == 1 {
			if cp, err := domain.ParseAmount(*clientPrice); err != nil || !cp.Equal(price) {
				s.logger.Debug("client price ignored",
					slog.String("user_id", o.userID),
					slog.String("symbol", o.symbol),
					slog.Float64("client_price", *clientPrice),
					slog.String("price", price.StringFixed(2)),
				)
			}
		}

		res, err := s.settle(ctx, o, price)
		if err == nil {
			s.logger.Info("order settled",
				slog.String("order_id", res.Order.OrderID),
				slog.String("user_id", o.userID),
				slog.String("symbol", o.symbol),
				slog.String("mode", string(o.mode)),
				slog.Int64("qty", o.qty),
				slog.String("price", price.StringFixed(2)),
				slog.String("balance", res.Balance.StringFixed(2)),
			)
			return res, nil
		}

		if errors.Is(err, domain.ErrConcurrencyConflict) && attempt < s.attempts && ctx.Err() == nil {
			s.metrics.ObserveRetry()
			s.logger.Debug("settlement conflict, retrying",
				slog.String("user_id", o.userID),
				slog.Int("attempt", attempt),
			)
			continue
		}
		return nil, s.classify(ctx, err, o, price)
	}
}

// settle runs one settlement attempt in a single transaction.
func (s *OrderService) settle(ctx context.Context, o validOrder, price decimal.Decimal) (*PlaceOrderResult, error) {
	order := &domain.Order{
		OrderID:   uuid.NewString(),
		UserID:    o.userID,
		Symbol:    o.symbol,
		Quantity:  o.qty,
		Price:     price,
		Mode:      o.mode,
		CreatedAt: time.Now().UTC(),
	}
	total := order.Total()
	details := TransactionDetails{Symbol: o.symbol, Quantity: o.qty, Price: price}

	res := &PlaceOrderResult{Order: order}
	err := s.db.Transaction(ctx, func(tx *store.Tx) error {
		switch o.mode {
		case domain.ModeBuy:
			balance, err := s.wallets.GetBalance(ctx, tx, o.userID)
			if err != nil {
				return err
			}
			if balance.LessThan(total) {
				return &domain.InsufficientFundsError{Required: total, Available: balance}
			}
			w, _, err := s.wallets.ApplyTransaction(ctx, tx, o.userID, domain.ModeBuy, total, details)
			if err != nil {
				return err
			}
			h, err := s.holdings.ApplyBuy(ctx, tx, o.userID, o.symbol, o.qty, price)
			if err != nil {
				return err
			}
			res.Balance, res.Holding = w.Balance, h

		case domain.ModeSell:
			h, err := s.holdings.ApplySell(ctx, tx, o.userID, o.symbol, o.qty, price)
			if err != nil {
				return err
			}
			w, _, err := s.wallets.ApplyTransaction(ctx, tx, o.userID, domain.ModeSell, total, details)
			if err != nil {
				return err
			}
			res.Balance, res.Holding = w.Balance, h
		}

		return s.orders.Create(ctx, tx, order)
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

// classify logs a failed settlement and maps timeouts to domain.ErrBusy.
// Business rejections and client cancellation are returned unchanged.
func (s *OrderService) classify(ctx context.Context, err error, o validOrder, price decimal.Decimal) error {
	attrs := []any{
		slog.String("user_id", o.userID),
		slog.String("symbol", o.symbol),
		slog.String("mode", string(o.mode)),
		slog.Int64("qty", o.qty),
		slog.String("price", price.StringFixed(2)),
		slog.String("amount", domain.RoundMoney(price.Mul(decimal.NewFromInt(o.qty))).StringFixed(2)),
	}

	switch {
	case errors.Is(err, domain.ErrInsufficientFunds),
		errors.Is(err, domain.ErrInsufficientPosition),
		errors.Is(err, domain.ErrInvalidOrder),
		errors.Is(err, domain.ErrUnauthorized):
		s.logger.Info("order rejected", append(attrs, slog.String("reason", err.Error()))...)
		return err
	case errors.Is(err, domain.ErrConcurrencyConflict):
		s.logger.Warn("order abandoned after conflicts", append(attrs, slog.Int("attempts", s.attempts))...)
		return err
	case errors.Is(err, context.DeadlineExceeded) && ctx.Err() != nil:
		s.logger.Warn("settlement timed out", attrs...)
		return domain.ErrBusy
	case errors.Is(err, context.Canceled):
		s.logger.Info("order abandoned by client", attrs...)
		return context.Canceled
	default:
		s.logger.Error("settlement failed", append(attrs, slog.String("error", err.Error()))...)
		if errors.Is(err, domain.ErrStorageFailure) {
			return err
		}
		return fmt.Errorf("%w: %w", domain.ErrStorageFailure, err)
	}
}

func outcomeOf(err error) string {
	switch {
	case err == nil:
		return metrics.OutcomeSettled
	case domain.IsRetryable(err):
		return metrics.OutcomeBusy
	case errors.Is(err, context.Canceled):
		return metrics.OutcomeCanceled
	case errors.Is(err, domain.ErrStorageFailure):
		return metrics.OutcomeFailed
	default:
		return metrics.OutcomeRejected
	}
}

// OrderHistory is a page of a user's orders and how many they placed in
// total.
type OrderHistory struct {
	Orders []*domain.Order
	Total  int64
}

// GetOrderHistory returns the user's orders newest first. limit <= 0
// selects 20; larger values are capped at 100.
func (s *OrderService) GetOrderHistory(ctx context.Context, userID string, limit int) (*OrderHistory, error) {
	if userID == "" {
		return nil, domain.ErrUnauthorized
	}
	orders, err := s.orders.ListByUser(ctx, nil, userID, clampLimit(limit, defaultOrderLimit, maxOrderLimit))
	if err != nil {
		return nil, err
	}
	total, err := s.orders.CountByUser(ctx, nil, userID)
	if err != nil {
		return nil, err
	}
	return &OrderHistory{Orders: orders, Total: total}, nil
}
