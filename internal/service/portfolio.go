package service

import (
	"context"

	"github.com/efreitasn/papertrade/internal/domain"
	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// HoldingView is a holding valued at the live price.
type HoldingView struct {
	domain.Holding
	CurrentPrice decimal.Decimal
	MarketValue  decimal.Decimal
	Invested     decimal.Decimal
	PnL          decimal.Decimal
	PnLPercent   decimal.Decimal
}

// PortfolioSummary aggregates a user's cash and positions.
type PortfolioSummary struct {
	Balance       decimal.Decimal
	Currency      string
	TotalInvested decimal.Decimal
	TotalCurrent  decimal.Decimal
	TotalPnL      decimal.Decimal
	TotalPnLPct   decimal.Decimal
	NetWorth      decimal.Decimal
	Holdings      int
}

// PortfolioService values holdings against the oracle. It is read-only.
type PortfolioService struct {
	wallets  *WalletService
	holdings *HoldingService
	prices   PriceSource
}

func NewPortfolioService(wallets *WalletService, holdings *HoldingService, prices PriceSource) *PortfolioService {
	return &PortfolioService{wallets: wallets, holdings: holdings, prices: prices}
}

// GetHoldings returns the user's holdings ordered by symbol, each valued at
// the current price. A symbol the oracle no longer tracks is valued at its
// last traded price.
func (s *PortfolioService) GetHoldings(ctx context.Context, userID string) ([]HoldingView, error) {
	list, err := s.holdings.List(ctx, userID)
	if err != nil {
		return nil, err
	}
	out := make([]HoldingView, len(list))
	for i, h := range list {
		out[i] = s.value(h)
	}
	return out, nil
}

// GetHolding returns one holding valued at the current price, or
// domain.ErrHoldingNotFound when the user holds none of symbol.
func (s *PortfolioService) GetHolding(ctx context.Context, userID, symbol string) (*HoldingView, error) {
	if !domain.ValidSymbol(domain.NormalizeSymbol(symbol)) {
		return nil, &domain.ValidationError{Message: "invalid symbol: " + symbol}
	}
	h, err := s.holdings.Get(ctx, userID, symbol)
	if err != nil {
		return nil, err
	}
	v := s.value(h)
	return &v, nil
}

// Summary returns balance, invested and current totals, and net worth.
func (s *PortfolioService) Summary(ctx context.Context, userID string) (*PortfolioSummary, error) {
	wallet, err := s.wallets.GetOrCreateWallet(ctx, nil, userID)
	if err != nil {
		return nil, err
	}
	views, err := s.GetHoldings(ctx, userID)
	if err != nil {
		return nil, err
	}

	sum := &PortfolioSummary{
		Balance:       wallet.Balance,
		Currency:      wallet.Currency,
		TotalInvested: decimal.Zero,
		TotalCurrent:  decimal.Zero,
		Holdings:      len(views),
	}
	for _, v := range views {
		sum.TotalInvested = sum.TotalInvested.Add(v.Invested)
		sum.TotalCurrent = sum.TotalCurrent.Add(v.MarketValue)
	}
	sum.TotalPnL = sum.TotalCurrent.Sub(sum.TotalInvested)
	sum.TotalPnLPct = percentOf(sum.TotalPnL, sum.TotalInvested)
	sum.NetWorth = sum.Balance.Add(sum.TotalCurrent)
	return sum, nil
}

func (s *PortfolioService) value(h *domain.Holding) HoldingView {
	price := h.LastPrice
	if ps, ok := s.prices.Price(h.Symbol); ok {
		price = ps.CurrentPrice
	}
	market := h.MarketValue(price)
	invested := h.Invested()
	pnl := market.Sub(invested)
	return HoldingView{
		Holding:      *h,
		CurrentPrice: price,
		MarketValue:  market,
		Invested:     invested,
		PnL:          pnl,
		PnLPercent:   percentOf(pnl, invested),
	}
}

func percentOf(part, whole decimal.Decimal) decimal.Decimal {
	if whole.IsZero() {
		return decimal.Zero
	}
	return part.Mul(hundred).DivRound(whole, 2)
}
