package handler

import (
	"net/http"

	"github.com/efreitasn/papertrade/internal/domain"
	"github.com/efreitasn/papertrade/internal/service"
)

// OrderHandler handles HTTP requests for order endpoints.
type OrderHandler struct {
	orderSvc *service.OrderService
}

// NewOrderHandler creates a new OrderHandler.
func NewOrderHandler(orderSvc *service.OrderService) *OrderHandler {
	return &OrderHandler{orderSvc: orderSvc}
}

// placeOrderRequest is the JSON request body for POST /api/orders. Price is
// accepted for client display purposes only.
type placeOrderRequest struct {
	Symbol string   `json:"symbol"`
	Qty    float64  `json:"qty"`
	Mode   string   `json:"mode"`
	Price  *float64 `json:"price"`
}

type orderResponse struct {
	OrderID     string  `json:"order_id"`
	Symbol      string  `json:"symbol"`
	Qty         int64   `json:"qty"`
	Price       float64 `json:"price"`
	TotalAmount float64 `json:"total_amount"`
	Mode        string  `json:"mode"`
	CreatedAt   string  `json:"created_at"`
}

type holdingResponse struct {
	Symbol    string  `json:"symbol"`
	Qty       int64   `json:"qty"`
	AvgCost   float64 `json:"avg_cost"`
	LastPrice float64 `json:"last_price"`
}

// placeOrderResponse carries a null holding when the position was closed.
type placeOrderResponse struct {
	Order   orderResponse    `json:"order"`
	Balance float64          `json:"balance"`
	Holding *holdingResponse `json:"holding"`
}

// PlaceOrder handles POST /api/orders.
func (h *OrderHandler) PlaceOrder(w http.ResponseWriter, r *http.Request) {
	userID, err := UserID(r.Context())
	if err != nil {
		mapError(w, err)
		return
	}

	var req placeOrderRequest
	if err := ParseJSON(r, &req); err != nil {
		WriteError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	res, err := h.orderSvc.PlaceOrder(r.Context(), service.PlaceOrderRequest{
		UserID:   userID,
		Symbol:   req.Symbol,
		Quantity: req.Qty,
		Mode:     req.Mode,
		Price:    req.Price,
	})
	if err != nil {
		mapError(w, err)
		return
	}

	resp := placeOrderResponse{
		Order:   buildOrderResponse(res.Order),
		Balance: domain.ToFloat(res.Balance),
	}
	if res.Holding != nil {
		resp.Holding = &holdingResponse{
			Symbol:    res.Holding.Symbol,
			Qty:       res.Holding.Quantity,
			AvgCost:   domain.ToFloat(res.Holding.AvgCost),
			LastPrice: domain.ToFloat(res.Holding.LastPrice),
		}
	}
	WriteJSON(w, http.StatusCreated, resp)
}

// orderHistoryResponse is a page of orders plus the user's order total.
type orderHistoryResponse struct {
	listResponse[orderResponse]
	Total int64 `json:"total"`
}

// ListOrders handles GET /api/orders.
func (h *OrderHandler) ListOrders(w http.ResponseWriter, r *http.Request) {
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

	history, err := h.orderSvc.GetOrderHistory(r.Context(), userID, limit)
	if err != nil {
		mapError(w, err)
		return
	}

	data := make([]orderResponse, len(history.Orders))
	for i, o := range history.Orders {
		data[i] = buildOrderResponse(o)
	}
	WriteJSON(w, http.StatusOK, orderHistoryResponse{
		listResponse: newList(data),
		Total:        history.Total,
	})
}

func buildOrderResponse(o *domain.Order) orderResponse {
	return orderResponse{
		OrderID:     o.OrderID,
		Symbol:      o.Symbol,
		Qty:         o.Quantity,
		Price:       domain.ToFloat(o.Price),
		TotalAmount: domain.ToFloat(o.Total()),
		Mode:        string(o.Mode),
		CreatedAt:   formatTime(o.CreatedAt),
	}
}
