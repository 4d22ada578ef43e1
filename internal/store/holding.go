package store

import (
	"context"
	"time"

	"github.com/efreitasn/papertrade/internal/domain"
	"github.com/shopspring/decimal"
	"gorm.io/gorm/clause"
)

// HoldingStore persists per-(user, symbol) positions.
type HoldingStore struct {
	db *DB
}

func NewHoldingStore(db *DB) *HoldingStore {
	return &HoldingStore{db: db}
}

// Get returns the holding or domain.ErrHoldingNotFound.
func (s *HoldingStore) Get(ctx context.Context, tx *Tx, userID, symbol string) (*domain.Holding, error) {
	conn := s.db.conn(ctx, tx)
	if tx != nil {
		conn = conn.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	var models []holdingModel
	err := conn.Where("user_id = ? AND symbol = ?", userID, symbol).Limit(1).Find(&models).Error
	if err != nil {
		return nil, storageErr("get holding", err)
	}
	if len(models) == 0 {
		return nil, domain.ErrHoldingNotFound
	}
	return toHolding(&models[0]), nil
}

// List returns every holding of userID ordered by symbol.
func (s *HoldingStore) List(ctx context.Context, tx *Tx, userID string) ([]*domain.Holding, error) {
	var models []holdingModel
	err := s.db.conn(ctx, tx).Where("user_id = ?", userID).Order("symbol ASC").Find(&models).Error
	if err != nil {
		return nil, storageErr("list holdings", err)
	}
	out := make([]*domain.Holding, len(models))
	for i := range models {
		out[i] = toHolding(&models[i])
	}
	return out, nil
}

// Create inserts h. A concurrent insert for the same (user, symbol)
// surfaces as domain.ErrConcurrencyConflict.
func (s *HoldingStore) Create(ctx context.Context, tx *Tx, h *domain.Holding) error {
	m := &holdingModel{
		UserID:    h.UserID,
		Symbol:    h.Symbol,
		Quantity:  h.Quantity,
		AvgCost:   h.AvgCost,
		LastPrice: h.LastPrice,
		Version:   1,
	}
	if err := s.db.conn(ctx, tx).Create(m).Error; err != nil {
		return storageErr("create holding", err)
	}
	*h = *toHolding(m)
	return nil
}

// Update writes the position of h if its version is still current.
func (s *HoldingStore) Update(ctx context.Context, tx *Tx, h *domain.Holding, qty int64, avgCost, lastPrice decimal.Decimal) error {
	now := time.Now().UTC()
	res := s.db.conn(ctx, tx).Model(&holdingModel{}).
		Where("user_id = ? AND symbol = ? AND version = ?", h.UserID, h.Symbol, h.Version).
		Updates(map[string]any{
			"quantity":   qty,
			"avg_cost":   avgCost,
			"last_price": lastPrice,
			"version":    h.Version + 1,
			"updated_at": now,
		})
	if res.Error != nil {
		return storageErr("update holding", res.Error)
	}
	if res.RowsAffected == 0 {
		return domain.ErrConcurrencyConflict
	}
	h.Quantity = qty
	h.AvgCost = avgCost
	h.LastPrice = lastPrice
	h.Version++
	h.UpdatedAt = now
	return nil
}

// Delete removes h if its version is still current.
func (s *HoldingStore) Delete(ctx context.Context, tx *Tx, h *domain.Holding) error {
	res := s.db.conn(ctx, tx).
		Where("user_id = ? AND symbol = ? AND version = ?", h.UserID, h.Symbol, h.Version).
		Delete(&holdingModel{})
	if res.Error != nil {
		return storageErr("delete holding", res.Error)
	}
	if res.RowsAffected == 0 {
		return domain.ErrConcurrencyConflict
	}
	return nil
}
