package domain

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Mode indicates whether an order or wallet transaction buys or sells.
type Mode string

const (
	ModeBuy  Mode = "BUY"
	ModeSell Mode = "SELL"
)

// ParseMode normalizes s (trim, uppercase) and reports whether it names a
// known mode.
func ParseMode(s string) (Mode, bool) {
	m := Mode(strings.ToUpper(strings.TrimSpace(s)))
	switch m {
	case ModeBuy, ModeSell:
		return m, true
	}
	return "", false
}

// Order is an immutable record of a settled market order.
type Order struct {
	OrderID   string
	UserID    string
	Symbol    string
	Quantity  int64
	Price     decimal.Decimal
	Mode      Mode
	CreatedAt time.Time
}

// Total returns price × quantity rounded to cents.
func (o *Order) Total() decimal.Decimal {
	return RoundMoney(o.Price.Mul(decimal.NewFromInt(o.Quantity)))
}
