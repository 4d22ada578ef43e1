package handler

import (
	"net/http"

	"github.com/efreitasn/papertrade/internal/domain"
	"github.com/efreitasn/papertrade/internal/service"
	"github.com/go-chi/chi/v5"
)

// AccountHandler serves the authenticated user's wallet and portfolio.
type AccountHandler struct {
	walletSvc    *service.WalletService
	portfolioSvc *service.PortfolioService
}

// NewAccountHandler creates a new AccountHandler.
func NewAccountHandler(walletSvc *service.WalletService, portfolioSvc *service.PortfolioService) *AccountHandler {
	return &AccountHandler{walletSvc: walletSvc, portfolioSvc: portfolioSvc}
}

type balanceResponse struct {
	Balance  float64 `json:"balance"`
	Currency string  `json:"currency"`
}

type transactionResponse struct {
	Type         string  `json:"type"`
	Amount       float64 `json:"amount"`
	Symbol       string  `json:"symbol"`
	Quantity     int64   `json:"quantity"`
	Price        float64 `json:"price"`
	BalanceAfter float64 `json:"balance_after"`
	Timestamp    string  `json:"timestamp"`
}

type portfolioHoldingResponse struct {
	Symbol       string  `json:"symbol"`
	Qty          int64   `json:"qty"`
	AvgCost      float64 `json:"avg_cost"`
	LastPrice    float64 `json:"last_price"`
	CurrentPrice float64 `json:"current_price"`
	MarketValue  float64 `json:"market_value"`
	Invested     float64 `json:"invested"`
	PnL          float64 `json:"pnl"`
	PnLPercent   float64 `json:"pnl_percent"`
	UpdatedAt    string  `json:"updated_at"`
}

type summaryResponse struct {
	Balance         float64 `json:"balance"`
	Currency        string  `json:"currency"`
	TotalInvested   float64 `json:"total_invested"`
	TotalCurrent    float64 `json:"total_current"`
	TotalPnL        float64 `json:"total_pnl"`
	TotalPnLPercent float64 `json:"total_pnl_percent"`
	NetWorth        float64 `json:"net_worth"`
	Holdings        int     `json:"holdings"`
}

// GetBalance handles GET /api/wallet/balance.
func (h *AccountHandler) GetBalance(w http.ResponseWriter, r *http.Request) {
	userID, err := UserID(r.Context())
	if err != nil {
		mapError(w, err)
		return
	}

	balance, err := h.walletSvc.GetBalance(r.Context(), nil, userID)
	if err != nil {
		mapError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, balanceResponse{
		Balance:  domain.ToFloat(balance),
		Currency: h.walletSvc.Currency(),
	})
}

// ListTransactions handles GET /api/wallet/transactions.
func (h *AccountHandler) ListTransactions(w http.ResponseWriter, r *http.Request) {
	userID, err := UserID(r.Context())
	if err != nil {
		mapError(w, err)
		return
	}
	limit, err := queryLimit(r)
	if err != nil {
		WriteError(w, http.StatusBadRequest, "validation_error", err.Error())
		return
	}

	txs, err := h.walletSvc.GetTransactionHistory(r.Context(), userID, limit)
	if err != nil {
		mapError(w, err)
		return
	}

	data := make([]transactionResponse, len(txs))
	for i, tx := range txs {
		data[i] = transactionResponse{
			Type:         string(tx.Type),
			Amount:       domain.ToFloat(tx.Amount),
			Symbol:       tx.Symbol,
			Quantity:     tx.Quantity,
			Price:        domain.ToFloat(tx.Price),
			BalanceAfter: domain.ToFloat(tx.BalanceAfter),
			Timestamp:    formatTime(tx.Timestamp),
		}
	}
	WriteJSON(w, http.StatusOK, newList(data))
}

// ListHoldings handles GET /api/holdings.
func (h *AccountHandler) ListHoldings(w http.ResponseWriter, r *http.Request) {
	userID, err := UserID(r.Context())
	if err != nil {
		mapError(w, err)
		return
	}

	views, err := h.portfolioSvc.GetHoldings(r.Context(), userID)
	if err != nil {
		mapError(w, err)
		return
	}

	data := make([]portfolioHoldingResponse, len(views))
	for i := range views {
		data[i] = buildPortfolioHolding(&views[i])
	}
	WriteJSON(w, http.StatusOK, newList(data))
}

// GetHolding handles GET /api/holdings/{symbol}.
func (h *AccountHandler) GetHolding(w http.ResponseWriter, r *http.Request) {
	userID, err := UserID(r.Context())
	if err != nil {
		mapError(w, err)
		return
	}

	v, err := h.portfolioSvc.GetHolding(r.Context(), userID, chi.URLParam(r, "symbol"))
	if err != nil {
		mapError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, buildPortfolioHolding(v))
}

func buildPortfolioHolding(v *service.HoldingView) portfolioHoldingResponse {
	return portfolioHoldingResponse{
		Symbol:       v.Symbol,
		Qty:          v.Quantity,
		AvgCost:      domain.ToFloat(v.AvgCost),
		LastPrice:    domain.ToFloat(v.LastPrice),
		CurrentPrice: domain.ToFloat(v.CurrentPrice),
		MarketValue:  domain.ToFloat(v.MarketValue),
		Invested:     domain.ToFloat(v.Invested),
		PnL:          domain.ToFloat(v.PnL),
		PnLPercent:   domain.ToFloat(v.PnLPercent),
		UpdatedAt:    formatTime(v.UpdatedAt),
	}
}

// GetSummary handles GET /api/portfolio/summary.
func (h *AccountHandler) GetSummary(w http.ResponseWriter, r *http.Request) {
	userID, err := UserID(r.Context())
	if err != nil {
		mapError(w, err)
		return
	}

	sum, err := h.portfolioSvc.Summary(r.Context(), userID)
	if err != nil {
		mapError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, summaryResponse{
		Balance:         domain.ToFloat(sum.Balance),
		Currency:        sum.Currency,
		TotalInvested:   domain.ToFloat(sum.TotalInvested),
		TotalCurrent:    domain.ToFloat(sum.TotalCurrent),
		TotalPnL:        domain.ToFloat(sum.TotalPnL),
		TotalPnLPercent: domain.ToFloat(sum.TotalPnLPct),
		NetWorth:        domain.ToFloat(sum.NetWorth),
		Holdings:        sum.Holdings,
	})
}
