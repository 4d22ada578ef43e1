package domain

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/shopspring/decimal"
)

var symbolRegex = regexp.MustCompile(`^[A-Z][A-Z0-9&.-]{0,19}$`)

// NormalizeSymbol trims and uppercases a ticker.
func NormalizeSymbol(s string) string {
	return strings.ToUpper(strings.TrimSpace(s))
}

// ValidSymbol reports whether an already normalized symbol is well formed.
func ValidSymbol(s string) bool {
	return symbolRegex.MatchString(s)
}

// Catalog is the fixed table of tradable symbols and their base prices.
// It is immutable after construction and safe for concurrent use.
type Catalog struct {
	base    map[string]decimal.Decimal
	symbols []string // sorted
}

// NewCatalog validates and copies the symbol → base price table.
func NewCatalog(prices map[string]decimal.Decimal) (*Catalog, error) {
	if len(prices) == 0 {
		return nil, fmt.Errorf("catalog must contain at least one symbol")
	}
	c := &Catalog{
		base:    make(map[string]decimal.Decimal, len(prices)),
		symbols: make([]string, 0, len(prices)),
	}
	for raw, price := range prices {
		symbol := NormalizeSymbol(raw)
		if !ValidSymbol(symbol) {
			return nil, fmt.Errorf("invalid symbol %q", raw)
		}
		if !price.IsPositive() {
			return nil, fmt.Errorf("base price for %s must be > 0", symbol)
		}
		if _, dup := c.base[symbol]; dup {
			return nil, fmt.Errorf("duplicate symbol %s", symbol)
		}
		c.base[symbol] = RoundMoney(price)
		c.symbols = append(c.symbols, symbol)
	}
	sort.Strings(c.symbols)
	return c, nil
}

// DefaultCatalog returns the demo symbol table.
func DefaultCatalog() *Catalog {
	c, err := NewCatalog(map[string]decimal.Decimal{
		"INFY":       decimal.NewFromInt(1450),
		"TCS":        decimal.NewFromInt(3200),
		"WIPRO":      decimal.NewFromInt(450),
		"HDFCBANK":   decimal.NewFromInt(1600),
		"RELIANCE":   decimal.NewFromInt(2400),
		"BHARTIARTL": decimal.NewFromInt(850),
		"ITC":        decimal.NewFromInt(420),
		"SBIN":       decimal.NewFromInt(580),
		"TATAMOTORS": decimal.NewFromInt(650),
		"ASIANPAINT": decimal.NewFromInt(3100),
		"HINDUNILVR": decimal.NewFromInt(2500),
		"MARUTI":     decimal.NewFromInt(9500),
		"LT":         decimal.NewFromInt(2800),
		"KOTAKBANK":  decimal.NewFromInt(1750),
		"ICICIBANK":  decimal.NewFromInt(950),
	})
	if err != nil {
		panic(err)
	}
	return c
}

// Base returns the base price for symbol (case-insensitive).
func (c *Catalog) Base(symbol string) (decimal.Decimal, bool) {
	p, ok := c.base[NormalizeSymbol(symbol)]
	return p, ok
}

// Symbols returns the tracked symbols in ascending order.
func (c *Catalog) Symbols() []string {
	out := make([]string, len(c.symbols))
	copy(out, c.symbols)
	return out
}
