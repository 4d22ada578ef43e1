package handler

import (
	"bufio"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/efreitasn/papertrade/internal/metrics"
	"github.com/efreitasn/papertrade/internal/service"
	"github.com/efreitasn/papertrade/internal/stream"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
)

// NewRouter creates a chi router with all routes registered, CORS, request
// logging, and Content-Type validation middleware.
func NewRouter(
	marketSvc *service.MarketService,
	walletSvc *service.WalletService,
	portfolioSvc *service.PortfolioService,
	orderSvc *service.OrderService,
	hub *stream.Hub,
	auth *Authenticator,
	m *metrics.Metrics,
	corsOrigins []string,
	logger *slog.Logger,
) chi.Router {
	r := chi.NewRouter()

	// Global middleware.
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   corsOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", userIDHeader},
		ExposedHeaders:   []string{"Retry-After"},
		AllowCredentials: true,
		MaxAge:           300,
	}))
	r.Use(requestLogging(logger))
	r.Use(contentTypeJSON)

	// Create handlers.
	marketH := NewMarketHandler(marketSvc)
	accountH := NewAccountHandler(walletSvc, portfolioSvc)
	orderH := NewOrderHandler(orderSvc)
	wsH := NewWSHandler(hub, corsOrigins, logger)

	// Health check and metrics.
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Handle("/metrics", m.Handler())

	// Live prices.
	r.Get("/ws", wsH.ServeHTTP)

	// Market routes.
	r.Route("/api/market", func(r chi.Router) {
		r.Get("/prices", marketH.GetPrices)
		r.Get("/price/{symbol}", marketH.GetPrice)
		r.Get("/all", marketH.GetAll)
		r.Get("/symbols", marketH.GetSymbols)
		r.Get("/watchlist", marketH.GetWatchlist)
		r.Get("/history/{symbol}", marketH.GetHistory)
		r.Post("/reset", marketH.Reset)
	})

	// Authenticated routes.
	r.Group(func(r chi.Router) {
		r.Use(auth.Middleware)

		r.Get("/api/wallet/balance", accountH.GetBalance)
		r.Get("/api/wallet/transactions", accountH.ListTransactions)
		r.Get("/api/holdings", accountH.ListHoldings)
		r.Get("/api/holdings/{symbol}", accountH.GetHolding)
		r.Get("/api/portfolio/summary", accountH.GetSummary)

		r.Get("/api/orders", orderH.ListOrders)
		r.Post("/api/orders", orderH.PlaceOrder)
	})

	return r
}

// requestLogging returns middleware that logs each request's method, path,
// status code, and duration using slog.
func requestLogging(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := &statusWriter{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(ww, r)
			logger.Info("request",
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.Int("status", ww.status),
				slog.Duration("duration", time.Since(start)),
			)
		})
	}
}

// statusWriter wraps http.ResponseWriter to capture the status code.
type statusWriter struct {
	http.ResponseWriter
	status      int
	wroteHeader bool
}

func (w *statusWriter) WriteHeader(code int) {
	if !w.wroteHeader {
		w.status = code
		w.wroteHeader = true
	}
	w.ResponseWriter.WriteHeader(code)
}

// Hijack lets the websocket upgrader take over the connection.
func (w *statusWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := w.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, fmt.Errorf("response writer does not support hijacking")
	}
	w.status = http.StatusSwitchingProtocols
	return h.Hijack()
}

func (w *statusWriter) Unwrap() http.ResponseWriter {
	return w.ResponseWriter
}

// contentTypeJSON is middleware that validates Content-Type for POST, PUT, and
// PATCH requests that carry a body. If the Content-Type header doesn't start
// with "application/json", it returns 400 Bad Request before the handler runs.
func contentTypeJSON(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if (r.Method == http.MethodPost || r.Method == http.MethodPut || r.Method == http.MethodPatch) && r.ContentLength != 0 {
			ct := r.Header.Get("Content-Type")
			if ct == "" || !strings.HasPrefix(ct, "application/json") {
				WriteError(w, http.StatusBadRequest, "invalid_request",
					"Content-Type must be application/json")
				return
			}
		}
		next.ServeHTTP(w, r)
	})
}
