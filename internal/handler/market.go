package handler

import (
	"net/http"
	"strings"
	"time"

	"github.com/efreitasn/papertrade/internal/domain"
	"github.com/efreitasn/papertrade/internal/engine"
	"github.com/efreitasn/papertrade/internal/service"
	"github.com/efreitasn/papertrade/internal/stream"
	"github.com/go-chi/chi/v5"
)

// MarketHandler handles HTTP requests for market data endpoints.
type MarketHandler struct {
	marketSvc *service.MarketService
}

// NewMarketHandler creates a new MarketHandler.
func NewMarketHandler(marketSvc *service.MarketService) *MarketHandler {
	return &MarketHandler{marketSvc: marketSvc}
}

type pricesResponse struct {
	Data     []stream.PriceView `json:"data"`
	Count    int                `json:"count"`
	NotFound []string           `json:"not_found,omitempty"`
}

type allPricesResponse struct {
	Data        []stream.PriceView `json:"data"`
	Symbols     []string           `json:"symbols"`
	Count       int                `json:"count"`
	LastUpdated string             `json:"last_updated"`
}

type symbolsResponse struct {
	Symbols []string `json:"symbols"`
	Count   int      `json:"count"`
}

type historyPoint struct {
	Price     float64 `json:"price"`
	Timestamp string  `json:"timestamp"`
}

type historyResponse struct {
	Symbol string         `json:"symbol"`
	Data   []historyPoint `json:"data"`
	Count  int            `json:"count"`
}

type resetRequest struct {
	Symbol string `json:"symbol"`
}

type resetResponse struct {
	Message string `json:"message"`
	Symbol  string `json:"symbol,omitempty"`
}

// GetPrices handles GET /api/market/prices?symbols=A,B.
func (h *MarketHandler) GetPrices(w http.ResponseWriter, r *http.Request) {
	raw := r.URL.Query().Get("symbols")
	if strings.TrimSpace(raw) == "" {
		WriteError(w, http.StatusBadRequest, "validation_error", "symbols query parameter is required")
		return
	}

	found, notFound := h.marketSvc.GetPrices(strings.Split(raw, ","))
	WriteJSON(w, http.StatusOK, pricesResponse{
		Data:     priceViews(found),
		Count:    len(found),
		NotFound: notFound,
	})
}

// GetPrice handles GET /api/market/price/{symbol}.
func (h *MarketHandler) GetPrice(w http.ResponseWriter, r *http.Request) {
	ps, err := h.marketSvc.GetPrice(chi.URLParam(r, "symbol"))
	if err != nil {
		mapError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, stream.NewPriceView(ps))
}

// GetAll handles GET /api/market/all.
func (h *MarketHandler) GetAll(w http.ResponseWriter, r *http.Request) {
	all := h.marketSvc.GetAll()
	WriteJSON(w, http.StatusOK, allPricesResponse{
		Data:        priceViews(all.Data),
		Symbols:     all.Symbols,
		Count:       all.Count,
		LastUpdated: formatTime(all.LastUpdated),
	})
}

// GetSymbols handles GET /api/market/symbols.
func (h *MarketHandler) GetSymbols(w http.ResponseWriter, r *http.Request) {
	symbols := h.marketSvc.Symbols()
	WriteJSON(w, http.StatusOK, symbolsResponse{Symbols: symbols, Count: len(symbols)})
}

// GetWatchlist handles GET /api/market/watchlist.
func (h *MarketHandler) GetWatchlist(w http.ResponseWriter, r *http.Request) {
	WriteJSON(w, http.StatusOK, newList[engine.WatchlistItem](h.marketSvc.Watchlist()))
}

// GetHistory handles GET /api/market/history/{symbol}.
func (h *MarketHandler) GetHistory(w http.ResponseWriter, r *http.Request) {
	limit, err := queryLimit(r)
	if err != nil {
		WriteError(w, http.StatusBadRequest, "validation_error", err.Error())
		return
	}

	symbol := domain.NormalizeSymbol(chi.URLParam(r, "symbol"))
	points, err := h.marketSvc.History(symbol, limit)
	if err != nil {
		mapError(w, err)
		return
	}

	data := make([]historyPoint, len(points))
	for i, p := range points {
		data[i] = historyPoint{Price: domain.ToFloat(p.Price), Timestamp: formatTime(p.At)}
	}
	WriteJSON(w, http.StatusOK, historyResponse{Symbol: symbol, Data: data, Count: len(data)})
}

// Reset handles POST /api/market/reset. The body is optional; without a
// symbol every price returns to its base.
func (h *MarketHandler) Reset(w http.ResponseWriter, r *http.Request) {
	var req resetRequest
	if r.ContentLength != 0 {
		if err := ParseJSON(r, &req); err != nil {
			WriteError(w, http.StatusBadRequest, "invalid_request", err.Error())
			return
		}
	}

	symbol := domain.NormalizeSymbol(req.Symbol)
	if err := h.marketSvc.Reset(symbol); err != nil {
		mapError(w, err)
		return
	}

	if symbol == "" {
		WriteJSON(w, http.StatusOK, resetResponse{Message: "all prices reset to base"})
		return
	}
	WriteJSON(w, http.StatusOK, resetResponse{Message: "price reset to base", Symbol: symbol})
}

func priceViews(states []domain.PriceState) []stream.PriceView {
	out := make([]stream.PriceView, len(states))
	for i, ps := range states {
		out[i] = stream.NewPriceView(ps)
	}
	return out
}

const timeFormat = "2006-01-02T15:04:05Z"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeFormat)
}
