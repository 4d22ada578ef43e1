package store

import (
	"context"
	"time"

	"github.com/efreitasn/papertrade/internal/domain"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// WalletStore persists wallets and their transaction log.
type WalletStore struct {
	db *DB
}

func NewWalletStore(db *DB) *WalletStore {
	return &WalletStore{db: db}
}

// GetOrCreate returns the wallet for userID, inserting one with the given
// opening balance if none exists. Concurrent creators all receive the
// single row that won the insert. Inside a transaction the row is locked
// for update on databases that support it.
func (s *WalletStore) GetOrCreate(ctx context.Context, tx *Tx, userID string, opening decimal.Decimal, currency string) (*domain.Wallet, error) {
	conn := s.db.conn(ctx, tx)

	m := &walletModel{
		UserID:   userID,
		Balance:  opening,
		Currency: currency,
		Version:  1,
	}
	err := conn.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}},
		DoNothing: true,
	}).Create(m).Error
	if err != nil {
		return nil, storageErr("create wallet", err)
	}

	return s.get(conn, tx != nil, userID)
}

func (s *WalletStore) get(conn *gorm.DB, lock bool, userID string) (*domain.Wallet, error) {
	if lock {
		conn = conn.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	var m walletModel
	if err := conn.Where("user_id = ?", userID).First(&m).Error; err != nil {
		return nil, storageErr("get wallet", err)
	}
	return toWallet(&m), nil
}

// UpdateBalance sets the balance of w if its version is still current. It
// returns domain.ErrConcurrencyConflict when another writer got there first.
// On success w reflects the stored row.
func (s *WalletStore) UpdateBalance(ctx context.Context, tx *Tx, w *domain.Wallet, balance decimal.Decimal) error {
	now := time.Now().UTC()
	res := s.db.conn(ctx, tx).Model(&walletModel{}).
		Where("user_id = ? AND version = ?", w.UserID, w.Version).
		Updates(map[string]any{
			"balance":    balance,
			"version":    w.Version + 1,
			"updated_at": now,
		})
	if res.Error != nil {
		return storageErr("update wallet", res.Error)
	}
	if res.RowsAffected == 0 {
		return domain.ErrConcurrencyConflict
	}
	w.Balance = balance
	w.Version++
	w.UpdatedAt = now
	return nil
}

// AppendTransaction adds an entry to the user's wallet log.
func (s *WalletStore) AppendTransaction(ctx context.Context, tx *Tx, userID string, t *domain.Transaction) error {
	m := &transactionModel{
		UserID:       userID,
		Type:         string(t.Type),
		Amount:       t.Amount,
		Symbol:       t.Symbol,
		Quantity:     t.Quantity,
		Price:        t.Price,
		BalanceAfter: t.BalanceAfter,
		CreatedAt:    t.Timestamp,
	}
	if err := s.db.conn(ctx, tx).Create(m).Error; err != nil {
		return storageErr("append transaction", err)
	}
	t.Timestamp = m.CreatedAt
	return nil
}

// ListTransactions returns up to limit entries for userID, newest first.
func (s *WalletStore) ListTransactions(ctx context.Context, tx *Tx, userID string, limit int) ([]domain.Transaction, error) {
	var models []transactionModel
	err := s.db.conn(ctx, tx).
		Where("user_id = ?", userID).
		Order("id DESC").
		Limit(limit).
		Find(&models).Error
	if err != nil {
		return nil, storageErr("list transactions", err)
	}
	out := make([]domain.Transaction, len(models))
	for i := range models {
		out[i] = toTransaction(&models[i])
	}
	return out, nil
}
