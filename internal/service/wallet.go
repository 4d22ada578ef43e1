package service

import (
	"context"
	"time"

	"github.com/efreitasn/papertrade/internal/domain"
	"github.com/efreitasn/papertrade/internal/store"
	"github.com/shopspring/decimal"
)

const (
	defaultTransactionLimit = 10
	maxTransactionLimit     = 100
)

// TransactionDetails describes the trade behind a wallet transaction.
type TransactionDetails struct {
	Symbol   string
	Quantity int64
	Price    decimal.Decimal
}

// WalletService is the ledger of user cash balances. It is the only writer
// of wallets and their transaction log.
type WalletService struct {
	db       *store.DB
	wallets  *store.WalletStore
	opening  decimal.Decimal
	currency string
}

// NewWalletService creates a WalletService whose new wallets start with
// opening in currency.
func NewWalletService(db *store.DB, wallets *store.WalletStore, opening decimal.Decimal, currency string) *WalletService {
	return &WalletService{
		db:       db,
		wallets:  wallets,
		opening:  opening,
		currency: currency,
	}
}

// GetOrCreateWallet returns the user's wallet, creating it with the opening
// balance on first access. Concurrent first accesses yield one wallet.
func (s *WalletService) GetOrCreateWallet(ctx context.Context, tx *store.Tx, userID string) (*domain.Wallet, error) {
	if userID == "" {
		return nil, domain.ErrUnauthorized
	}
	return s.wallets.GetOrCreate(ctx, tx, userID, s.opening, s.currency)
}

// GetBalance returns the user's current balance.
func (s *WalletService) GetBalance(ctx context.Context, tx *store.Tx, userID string) (decimal.Decimal, error) {
	w, err := s.GetOrCreateWallet(ctx, tx, userID)
	if err != nil {
		return decimal.Zero, err
	}
	return w.Balance, nil
}

// ApplyTransaction debits (BUY) or credits (SELL) amount and appends the
// matching log entry. A BUY that would take the balance below zero fails
// with *domain.InsufficientFundsError and writes nothing. With a nil tx the
// call runs in its own transaction.
func (s *WalletService) ApplyTransaction(
	ctx context.Context,
	tx *store.Tx,
	userID string,
	mode domain.Mode,
	amount decimal.Decimal,
	details TransactionDetails,
) (*domain.Wallet, *domain.Transaction, error) {
	if userID == "" {
		return nil, nil, domain.ErrUnauthorized
	}
	if mode != domain.ModeBuy && mode != domain.ModeSell {
		return nil, nil, &domain.ValidationError{Message: "mode must be BUY or SELL"}
	}
	if amount.IsNegative() {
		return nil, nil, &domain.ValidationError{Message: "amount must be >= 0"}
	}
	amount = domain.RoundMoney(amount)

	var (
		wallet *domain.Wallet
		entry  *domain.Transaction
	)
	err := inTx(ctx, s.db, tx, func(tx *store.Tx) error {
		w, err := s.GetOrCreateWallet(ctx, tx, userID)
		if err != nil {
			return err
		}

		newBalance := w.Balance.Add(amount)
		if mode == domain.ModeBuy {
			newBalance = w.Balance.Sub(amount)
			if newBalance.IsNegative() {
				return &domain.InsufficientFundsError{Required: amount, Available: w.Balance}
			}
		}

		if err := s.wallets.UpdateBalance(ctx, tx, w, newBalance); err != nil {
			return err
		}

		t := &domain.Transaction{
			Type:         mode,
			Amount:       amount,
			Symbol:       details.Symbol,
			Quantity:     details.Quantity,
			Price:        details.Price,
			BalanceAfter: newBalance,
			Timestamp:    time.Now().UTC(),
		}
		if err := s.wallets.AppendTransaction(ctx, tx, userID, t); err != nil {
			return err
		}
		wallet, entry = w, t
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	return wallet, entry, nil
}

// GetTransactionHistory returns the user's transactions newest first.
// limit <= 0 selects 10; larger values are capped at 100.
func (s *WalletService) GetTransactionHistory(ctx context.Context, userID string, limit int) ([]domain.Transaction, error) {
	if userID == "" {
		return nil, domain.ErrUnauthorized
	}
	return s.wallets.ListTransactions(ctx, nil, userID, clampLimit(limit, defaultTransactionLimit, maxTransactionLimit))
}

// Currency returns the currency of newly created wallets.
func (s *WalletService) Currency() string {
	return s.currency
}
