package service

import (
	"context"

	"github.com/efreitasn/papertrade/internal/domain"
	"github.com/efreitasn/papertrade/internal/store"
)

// PriceSource resolves live prices. *engine.Oracle implements it.
type PriceSource interface {
	Price(symbol string) (domain.PriceState, bool)
	Symbols() []string
}

// OrderLog persists settled orders. *store.OrderStore implements it.
type OrderLog interface {
	Create(ctx context.Context, tx *store.Tx, o *domain.Order) error
	ListByUser(ctx context.Context, tx *store.Tx, userID string, limit int) ([]*domain.Order, error)
	CountByUser(ctx context.Context, tx *store.Tx, userID string) (int64, error)
}

// inTx runs fn inside tx when the caller supplied one, otherwise inside a
// new transaction owned by this call.
func inTx(ctx context.Context, db *store.DB, tx *store.Tx, fn func(tx *store.Tx) error) error {
	if tx != nil {
		return fn(tx)
	}
	return db.Transaction(ctx, fn)
}

// clampLimit applies a default to non-positive limits and caps the rest.
func clampLimit(limit, def, ceiling int) int {
	if limit <= 0 {
		return def
	}
	if limit > ceiling {
		return ceiling
	}
	return limit
}
