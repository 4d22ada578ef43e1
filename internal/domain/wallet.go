package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Wallet holds a user's cash balance. Exactly one wallet exists per user.
type Wallet struct {
	UserID    string
	Balance   decimal.Decimal
	Currency  string
	Version   int64 // bumped on every balance change
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Transaction is an append-only entry in a wallet's log.
type Transaction struct {
	Type         Mode
	Amount       decimal.Decimal
	Symbol       string
	Quantity     int64
	Price        decimal.Decimal
	BalanceAfter decimal.Decimal
	Timestamp    time.Time
}
