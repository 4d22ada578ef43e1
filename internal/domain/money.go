package domain

import (
	"fmt"
	"math"

	"github.com/shopspring/decimal"
)

// Precision of stored monetary values.
const (
	MoneyPlaces   int32 = 2
	AvgCostPlaces int32 = 4
)

// ParseAmount converts a float64 amount to a decimal. It rejects NaN,
// infinities, and values with more than 2 decimal places.
func ParseAmount(f float64) (decimal.Decimal, error) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return decimal.Zero, fmt.Errorf("monetary values must be finite")
	}
	d := decimal.NewFromFloat(f)
	if !d.Equal(d.Round(MoneyPlaces)) {
		return decimal.Zero, fmt.Errorf("monetary values must have at most 2 decimal places")
	}
	return d, nil
}

// RoundMoney rounds d half away from zero to cents.
func RoundMoney(d decimal.Decimal) decimal.Decimal {
	return d.Round(MoneyPlaces)
}

// ToFloat returns d as a float64 for JSON responses.
func ToFloat(d decimal.Decimal) float64 {
	f, _ := d.Float64()
	return f
}
