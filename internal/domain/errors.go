package domain

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Sentinel errors for domain-level error handling.
// The handler layer maps these to HTTP status codes.
var (
	ErrInvalidOrder         = errors.New("invalid_order")
	ErrUnknownSymbol        = errors.New("unknown_symbol")
	ErrInsufficientFunds    = errors.New("insufficient_funds")
	ErrInsufficientPosition = errors.New("insufficient_position")
	ErrConcurrencyConflict  = errors.New("concurrency_conflict")
	ErrBusy                 = errors.New("busy")
	ErrStorageFailure       = errors.New("storage_failure")
	ErrUnauthorized         = errors.New("unauthorized")
	ErrHoldingNotFound      = errors.New("holding_not_found")
)

// ValidationError represents a request validation failure. It matches
// ErrInvalidOrder under errors.Is.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrInvalidOrder
}

// UnknownSymbolError reports a symbol the price oracle does not track,
// together with the symbols that are tracked.
type UnknownSymbolError struct {
	Symbol    string
	Available []string
}

func (e *UnknownSymbolError) Error() string {
	return fmt.Sprintf("symbol %s not found, available: %s", e.Symbol, strings.Join(e.Available, ", "))
}

func (e *UnknownSymbolError) Is(target error) bool {
	return target == ErrUnknownSymbol
}

// InsufficientFundsError reports a BUY whose total cost exceeds the wallet balance.
type InsufficientFundsError struct {
	Required  decimal.Decimal
	Available decimal.Decimal
}

func (e *InsufficientFundsError) Error() string {
	return fmt.Sprintf("insufficient funds: required %s, available %s",
		e.Required.StringFixed(2), e.Available.StringFixed(2))
}

func (e *InsufficientFundsError) Is(target error) bool {
	return target == ErrInsufficientFunds
}

// InsufficientPositionError reports a SELL larger than the quantity held.
type InsufficientPositionError struct {
	Symbol    string
	Requested int64
	Available int64
}

func (e *InsufficientPositionError) Error() string {
	return fmt.Sprintf("insufficient %s shares: requested %d, available %d", e.Symbol, e.Requested, e.Available)
}

func (e *InsufficientPositionError) Is(target error) bool {
	return target == ErrInsufficientPosition
}

// IsRetryable reports whether err is a transient contention failure that
// is safe to retry from scratch.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrBusy) || errors.Is(err, ErrConcurrencyConflict)
}
