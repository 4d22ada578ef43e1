package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Holding represents a user's position in a single symbol. A holding with
// zero quantity is never persisted.
type Holding struct {
	UserID    string
	Symbol    string
	Quantity  int64
	AvgCost   decimal.Decimal
	LastPrice decimal.Decimal
	Version   int64
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Invested returns quantity × average cost.
func (h *Holding) Invested() decimal.Decimal {
	return RoundMoney(h.AvgCost.Mul(decimal.NewFromInt(h.Quantity)))
}

// MarketValue returns quantity × price.
func (h *Holding) MarketValue(price decimal.Decimal) decimal.Decimal {
	return RoundMoney(price.Mul(decimal.NewFromInt(h.Quantity)))
}

// WeightedAvgCost returns the quantity-weighted average cost after adding
// qty shares bought at price to a position of oldQty at oldAvg.
func WeightedAvgCost(oldQty int64, oldAvg decimal.Decimal, qty int64, price decimal.Decimal) decimal.Decimal {
	total := oldQty + qty
	if total == 0 {
		return decimal.Zero
	}
	cost := oldAvg.Mul(decimal.NewFromInt(oldQty)).Add(price.Mul(decimal.NewFromInt(qty)))
	return cost.DivRound(decimal.NewFromInt(total), AvgCostPlaces)
}
