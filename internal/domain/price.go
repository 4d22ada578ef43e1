package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// PriceState is the oracle's view of one symbol.
type PriceState struct {
	Symbol        string
	BasePrice     decimal.Decimal
	CurrentPrice  decimal.Decimal
	Change        decimal.Decimal // CurrentPrice - BasePrice
	ChangePercent decimal.Decimal // 100 × Change / BasePrice, 2 places
	IsDown        bool
	LastUpdated   time.Time
}

// NewPriceState builds the state for price relative to base.
func NewPriceState(symbol string, base, price decimal.Decimal, at time.Time) PriceState {
	change := price.Sub(base)
	pct := decimal.Zero
	if !base.IsZero() {
		pct = change.Mul(decimal.NewFromInt(100)).DivRound(base, 2)
	}
	return PriceState{
		Symbol:        symbol,
		BasePrice:     base,
		CurrentPrice:  price,
		Change:        change.Round(MoneyPlaces),
		ChangePercent: pct,
		IsDown:        change.IsNegative(),
		LastUpdated:   at,
	}
}
