package store

import (
	"context"

	"github.com/efreitasn/papertrade/internal/domain"
)

// OrderStore persists the append-only order log.
type OrderStore struct {
	db *DB
}

func NewOrderStore(db *DB) *OrderStore {
	return &OrderStore{db: db}
}

// Create appends o. CreatedAt is filled in by the database layer when zero.
func (s *OrderStore) Create(ctx context.Context, tx *Tx, o *domain.Order) error {
	m := &orderModel{
		OrderID:     o.OrderID,
		UserID:      o.UserID,
		Symbol:      o.Symbol,
		Quantity:    o.Quantity,
		Price:       o.Price,
		TotalAmount: o.Total(),
		Mode:        string(o.Mode),
		CreatedAt:   o.CreatedAt,
	}
	if err := s.db.conn(ctx, tx).Create(m).Error; err != nil {
		return storageErr("create order", err)
	}
	o.CreatedAt = m.CreatedAt
	return nil
}

// ListByUser returns up to limit orders for userID, newest first.
func (s *OrderStore) ListByUser(ctx context.Context, tx *Tx, userID string, limit int) ([]*domain.Order, error) {
	var models []orderModel
	err := s.db.conn(ctx, tx).
		Where("user_id = ?", userID).
		Order("id DESC").
		Limit(limit).
		Find(&models).Error
	if err != nil {
		return nil, storageErr("list orders", err)
	}
	out := make([]*domain.Order, len(models))
	for i := range models {
		out[i] = toOrder(&models[i])
	}
	return out, nil
}

// CountByUser returns the number of orders recorded for userID.
func (s *OrderStore) CountByUser(ctx context.Context, tx *Tx, userID string) (int64, error) {
	var n int64
	if err := s.db.conn(ctx, tx).Model(&orderModel{}).Where("user_id = ?", userID).Count(&n).Error; err != nil {
		return 0, storageErr("count orders", err)
	}
	return n, nil
}
