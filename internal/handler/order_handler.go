package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"storefront/internal/service"
)

type orderLineRequest struct {
	ProductID int `json:"product_id"`
	Quantity  int `json:"quantity"`
}

type createOrderRequest struct {
	ShippingAddress string             `json:"shipping_address"`
	Items           []orderLineRequest `json:"items"`
}

// CreateOrder places an order from explicit items, or from the stored cart
// when items are omitted.
func (h *Handler) CreateOrder(w http.ResponseWriter, r *http.Request) {
	var req createOrderRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, r, err)
		return
	}

	lines := make([]service.OrderLine, 0, len(req.Items))
	for _, it := range req.Items {
		lines = append(lines, service.OrderLine{ProductID: it.ProductID, Quantity: it.Quantity})
	}

	order, err := h.orders.PlaceOrder(r.Context(), userFromContext(r.Context()), req.ShippingAddress, lines)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, order)
}

func (h *Handler) ListOrders(w http.ResponseWriter, r *http.Request) {
	skip, limit := pagination(r)
	orders, err := h.orders.ListOrders(r.Context(), userFromContext(r.Context()), skip, limit)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, orders)
}

func (h *Handler) GetOrder(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, r, err)
		return
	}

	order, err := h.orders.GetOrder(r.Context(), userFromContext(r.Context()), id)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, order)
}
