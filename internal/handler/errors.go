package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/efreitasn/papertrade/internal/domain"
)

// statusClientClosedRequest is the nginx convention for a request the
// client abandoned before a response was written.
const statusClientClosedRequest = 499

// mapError maps domain errors to HTTP responses. Internal causes never
// reach the client.
func mapError(w http.ResponseWriter, err error) {
	var validationErr *domain.ValidationError
	if errors.As(err, &validationErr) {
		WriteError(w, http.StatusBadRequest, "validation_error", validationErr.Message)
		return
	}

	var unknownErr *domain.UnknownSymbolError
	if errors.As(err, &unknownErr) {
		WriteJSON(w, http.StatusNotFound, errorResponse{
			Error:            "unknown_symbol",
			Message:          "symbol " + unknownErr.Symbol + " not found",
			AvailableSymbols: unknownErr.Available,
		})
		return
	}

	var fundsErr *domain.InsufficientFundsError
	if errors.As(err, &fundsErr) {
		WriteJSON(w, http.StatusConflict, errorResponse{
			Error:     "insufficient_funds",
			Message:   fundsErr.Error(),
			Required:  float64Ptr(domain.ToFloat(fundsErr.Required)),
			Available: float64Ptr(domain.ToFloat(fundsErr.Available)),
		})
		return
	}

	var positionErr *domain.InsufficientPositionError
	if errors.As(err, &positionErr) {
		WriteJSON(w, http.StatusConflict, errorResponse{
			Error:     "insufficient_position",
			Message:   positionErr.Error(),
			Required:  float64Ptr(float64(positionErr.Requested)),
			Available: float64Ptr(float64(positionErr.Available)),
		})
		return
	}

	switch {
	case errors.Is(err, domain.ErrInvalidOrder):
		WriteError(w, http.StatusBadRequest, "validation_error", err.Error())
	case errors.Is(err, domain.ErrUnauthorized):
		WriteError(w, http.StatusUnauthorized, "unauthorized", "authentication required")
	case errors.Is(err, domain.ErrUnknownSymbol):
		WriteError(w, http.StatusNotFound, "unknown_symbol", err.Error())
	case errors.Is(err, domain.ErrHoldingNotFound):
		WriteError(w, http.StatusNotFound, "holding_not_found", "no holding for this symbol")
	case domain.IsRetryable(err):
		w.Header().Set("Retry-After", "1")
		WriteJSON(w, http.StatusServiceUnavailable, errorResponse{
			Error:     "busy",
			Message:   "the account is busy, please retry",
			Retryable: true,
		})
	case errors.Is(err, context.Canceled):
		WriteError(w, statusClientClosedRequest, "request_canceled", "the request was canceled")
	default:
		WriteError(w, http.StatusInternalServerError, "internal_error", "An unexpected error occurred")
	}
}

func float64Ptr(f float64) *float64 {
	return &f
}
