package service

import (
	"time"

	"github.com/efreitasn/papertrade/internal/domain"
	"github.com/efreitasn/papertrade/internal/engine"
)

const maxHistoryLimit = engine.HistorySize

// AllPricesResponse is the full market listing.
type AllPricesResponse struct {
	Data        []domain.PriceState
	Symbols     []string
	Count       int
	LastUpdated time.Time
}

// MarketService answers price queries and administrative resets. It only
// reads and resets the oracle; it never touches wallets or holdings.
type MarketService struct {
	oracle *engine.Oracle
}

func NewMarketService(oracle *engine.Oracle) *MarketService {
	return &MarketService{oracle: oracle}
}

// GetPrices returns the states for the requested symbols in request order,
// plus the normalized symbols that are not tracked. Duplicates are dropped.
func (s *MarketService) GetPrices(symbols []string) ([]domain.PriceState, []string) {
	found := make([]domain.PriceState, 0, len(symbols))
	var notFound []string
	seen := make(map[string]bool, len(symbols))
	for _, raw := range symbols {
		sym := domain.NormalizeSymbol(raw)
		if sym == "" || seen[sym] {
			continue
		}
		seen[sym] = true
		if ps, ok := s.oracle.Price(sym); ok {
			found = append(found, ps)
		} else {
			notFound = append(notFound, sym)
		}
	}
	return found, notFound
}

// GetPrice returns the state for symbol or *domain.UnknownSymbolError.
func (s *MarketService) GetPrice(symbol string) (domain.PriceState, error) {
	ps, ok := s.oracle.Price(symbol)
	if !ok {
		return domain.PriceState{}, s.unknown(symbol)
	}
	return ps, nil
}

func (s *MarketService) GetAll() AllPricesResponse {
	data := s.oracle.All()
	return AllPricesResponse{
		Data:        data,
		Symbols:     s.oracle.Symbols(),
		Count:       len(data),
		LastUpdated: s.oracle.LastUpdated(),
	}
}

func (s *MarketService) Symbols() []string {
	return s.oracle.Symbols()
}

func (s *MarketService) Watchlist() []engine.WatchlistItem {
	return s.oracle.Watchlist()
}

// History returns up to limit recent prices for symbol, oldest first.
func (s *MarketService) History(symbol string, limit int) ([]engine.PricePoint, error) {
	h, ok := s.oracle.History(symbol, clampLimit(limit, engine.DefaultHistoryLimit, maxHistoryLimit))
	if !ok {
		return nil, s.unknown(symbol)
	}
	return h, nil
}

// Reset restores one symbol, or every symbol when symbol is empty, to its
// base price.
func (s *MarketService) Reset(symbol string) error {
	if symbol == "" {
		s.oracle.ResetAll()
		return nil
	}
	if !s.oracle.Reset(symbol) {
		return s.unknown(symbol)
	}
	return nil
}

func (s *MarketService) unknown(symbol string) error {
	return &domain.UnknownSymbolError{
		Symbol:    domain.NormalizeSymbol(symbol),
		Available: s.oracle.Symbols(),
	}
}
