package service

import (
	"context"
	"errors"

	"github.com/efreitasn/papertrade/internal/domain"
	"github.com/efreitasn/papertrade/internal/store"
	"github.com/shopspring/decimal"
)

// HoldingService is the book of user positions. Positions change only
// through ApplyBuy and ApplySell.
type HoldingService struct {
	db       *store.DB
	holdings *store.HoldingStore
}

func NewHoldingService(db *store.DB, holdings *store.HoldingStore) *HoldingService {
	return &HoldingService{db: db, holdings: holdings}
}

// ApplyBuy adds qty shares bought at price, creating the holding on the
// first buy and otherwise recomputing the weighted average cost.
func (s *HoldingService) ApplyBuy(ctx context.Context, tx *store.Tx, userID, symbol string, qty int64, price decimal.Decimal) (*domain.Holding, error) {
	if err := validatePosition(userID, qty, price); err != nil {
		return nil, err
	}

	var out *domain.Holding
	err := inTx(ctx, s.db, tx, func(tx *store.Tx) error {
		h, err := s.holdings.Get(ctx, tx, userID, symbol)
		if errors.Is(err, domain.ErrHoldingNotFound) {
			h = &domain.Holding{
				UserID:    userID,
				Symbol:    symbol,
				Quantity:  qty,
				AvgCost:   price,
				LastPrice: price,
			}
			if err := s.holdings.Create(ctx, tx, h); err != nil {
				return err
			}
			out = h
			return nil
		}
		if err != nil {
			return err
		}

		avg := domain.WeightedAvgCost(h.Quantity, h.AvgCost, qty, price)
		if err := s.holdings.Update(ctx, tx, h, h.Quantity+qty, avg, price); err != nil {
			return err
		}
		out = h
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// ApplySell removes qty shares sold at price. Selling the whole position
// deletes the holding and returns nil. The average cost is unchanged.
func (s *HoldingService) ApplySell(ctx context.Context, tx *store.Tx, userID, symbol string, qty int64, price decimal.Decimal) (*domain.Holding, error) {
	if err := validatePosition(userID, qty, price); err != nil {
		return nil, err
	}

	var out *domain.Holding
	err := inTx(ctx, s.db, tx, func(tx *store.Tx) error {
		h, err := s.holdings.Get(ctx, tx, userID, symbol)
		if errors.Is(err, domain.ErrHoldingNotFound) {
			return &domain.InsufficientPositionError{Symbol: symbol, Requested: qty, Available: 0}
		}
		if err != nil {
			return err
		}
		if h.Quantity < qty {
			return &domain.InsufficientPositionError{Symbol: symbol, Requested: qty, Available: h.Quantity}
		}

		remaining := h.Quantity - qty
		if remaining == 0 {
			return s.holdings.Delete(ctx, tx, h)
		}
		if err := s.holdings.Update(ctx, tx, h, remaining, h.AvgCost, price); err != nil {
			return err
		}
		out = h
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Get returns a single holding or domain.ErrHoldingNotFound.
func (s *HoldingService) Get(ctx context.Context, userID, symbol string) (*domain.Holding, error) {
	if userID == "" {
		return nil, domain.ErrUnauthorized
	}
	return s.holdings.Get(ctx, nil, userID, domain.NormalizeSymbol(symbol))
}

// List returns all holdings of a user ordered by symbol.
func (s *HoldingService) List(ctx context.Context, userID string) ([]*domain.Holding, error) {
	if userID == "" {
		return nil, domain.ErrUnauthorized
	}
	return s.holdings.List(ctx, nil, userID)
}

func validatePosition(userID string, qty int64, price decimal.Decimal) error {
	if userID == "" {
		return domain.ErrUnauthorized
	}
	if qty <= 0 {
		return &domain.ValidationError{Message: "qty must be > 0"}
	}
	if price.IsNegative() {
		return &domain.ValidationError{Message: "price must be >= 0"}
	}
	return nil
}
