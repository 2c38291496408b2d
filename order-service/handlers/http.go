package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/agrimarket/order-system/order-service/application"
	"github.com/agrimarket/order-system/order-service/domain"
	"github.com/go-chi/chi/v5"
	"github.com/pkg/errors"
)

// OrderHandlers contains order HTTP handlers
type OrderHandlers struct {
	createOrder       *application.CreateOrder
	getOrder          *application.GetOrder
	listOrders        *application.ListOrders
	updateOrderStatus *application.UpdateOrderStatus
	cancelOrder       *application.CancelOrder
	getOrderHistory   *application.GetOrderHistory
}

// NewOrderHandlers creates new order handlers
func NewOrderHandlers(
	createOrder *application.CreateOrder,
	getOrder *application.GetOrder,
	listOrders *application.ListOrders,
	updateOrderStatus *application.UpdateOrderStatus,
	cancelOrder *application.CancelOrder,
	getOrderHistory *application.GetOrderHistory,
) *OrderHandlers {
	return &OrderHandlers{
		createOrder:       createOrder,
		getOrder:          getOrder,
		listOrders:        listOrders,
		updateOrderStatus: updateOrderStatus,
		cancelOrder:       cancelOrder,
		getOrderHistory:   getOrderHistory,
	}
}

// orderResponse is the JSON representation of an order
type orderResponse struct {
	ID              string              `json:"id"`
	UserID          string              `json:"user_id"`
	Items           []orderItemResponse `json:"items,omitempty"`
	TotalAmount     int64               `json:"total_amount"`
	Currency        string              `json:"currency"`
	PaymentMethod   string              `json:"payment_method"`
	ShippingAddress domain.Address      `json:"shipping_address"`
	Notes           string              `json:"notes,omitempty"`
	Status          string              `json:"status"`
	CreatedAt       time.Time           `json:"created_at"`
	UpdatedAt       time.Time           `json:"updated_at"`
}

type orderItemResponse struct {
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
	UnitPrice int64  `json:"unit_price"`
	Subtotal  int64  `json:"subtotal"`
}

type statusChangeResponse struct {
	Status    string    `json:"status"`
	ChangedBy string    `json:"changed_by,omitempty"`
	Notes     string    `json:"notes,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

type listResponse struct {
	Orders []orderResponse `json:"orders"`
	Total  int             `json:"total"`
	Limit  int             `json:"limit"`
	Offset int             `json:"offset"`
}

func toOrderResponse(order *domain.Order) orderResponse {
	items := make([]orderItemResponse, 0, len(order.Items))
	for _, item := range order.Items {
		items = append(items, orderItemResponse{
			ProductID: item.ProductID.String(),
			Quantity:  item.Quantity,
			UnitPrice: item.UnitPrice.Amount,
			Subtotal:  item.Subtotal().Amount,
		})
	}

	return orderResponse{
		ID:              order.ID.String(),
		UserID:          order.UserID.String(),
		Items:           items,
		TotalAmount:     order.TotalAmount.Amount,
		Currency:        order.TotalAmount.Currency,
		PaymentMethod:   order.PaymentMethod,
		ShippingAddress: order.ShippingAddress,
		Notes:           order.Notes,
		Status:          string(order.Status),
		CreatedAt:       order.Timestamps.CreatedAt,
		UpdatedAt:       order.Timestamps.UpdatedAt,
	}
}

// CreateOrder handles order creation requests
func (h *OrderHandlers) CreateOrder(w http.ResponseWriter, r *http.Request) {
	var cmd application.CreateOrderCommand
	if err := json.NewDecoder(r.Body).Decode(&cmd); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	response, err := h.createOrder.Execute(r.Context(), &cmd)
	if err != nil {
		var failed *application.OrderCreationFailedError
		if errors.As(err, &failed) {
			writeJSON(w, http.StatusBadRequest, map[string]interface{}{
				"error":       "order creation failed",
				"order_id":    failed.OrderID,
				"failed_step": failed.FailedStep,
				"reason":      failed.Err.Error(),
			})
			return
		}
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	writeJSON(w, http.StatusCreated, response)
}

// GetOrder handles order retrieval requests
func (h *OrderHandlers) GetOrder(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "id")
	if orderID == "" {
		http.Error(w, "Order ID is required", http.StatusBadRequest)
		return
	}

	order, err := h.getOrder.Execute(r.Context(), orderID)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toOrderResponse(order))
}

// ListOrders handles order listing requests
func (h *OrderHandlers) ListOrders(w http.ResponseWriter, r *http.Request) {
	response, err := h.listOrders.Execute(r.Context(), application.ListOrdersQuery{
		Status: r.URL.Query().Get("status"),
		Limit:  queryInt(r, "limit"),
		Offset: queryInt(r, "offset"),
	})
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toListResponse(response))
}

// ListUserOrders handles per-user order listing requests
func (h *OrderHandlers) ListUserOrders(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userId")
	if userID == "" {
		http.Error(w, "User ID is required", http.StatusBadRequest)
		return
	}

	response, err := h.listOrders.Execute(r.Context(), application.ListOrdersQuery{
		UserID: userID,
		Limit:  queryInt(r, "limit"),
		Offset: queryInt(r, "offset"),
	})
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toListResponse(response))
}

// UpdateOrderStatus handles status transition requests
func (h *OrderHandlers) UpdateOrderStatus(w http.ResponseWriter, r *http.Request) {
	var cmd application.UpdateOrderStatusCommand
	if err := json.NewDecoder(r.Body).Decode(&cmd); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	cmd.OrderID = chi.URLParam(r, "id")

	order, err := h.updateOrderStatus.Execute(r.Context(), &cmd)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toOrderResponse(order))
}

// CancelOrder handles cancellation requests
func (h *OrderHandlers) CancelOrder(w http.ResponseWriter, r *http.Request) {
	var cmd application.CancelOrderCommand
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&cmd); err != nil {
			http.Error(w, "Invalid request body", http.StatusBadRequest)
			return
		}
	}
	cmd.OrderID = chi.URLParam(r, "id")

	order, err := h.cancelOrder.Execute(r.Context(), &cmd)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toOrderResponse(order))
}

// GetOrderHistory handles status history requests
func (h *OrderHandlers) GetOrderHistory(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "id")
	if orderID == "" {
		http.Error(w, "Order ID is required", http.StatusBadRequest)
		return
	}

	history, err := h.getOrderHistory.Execute(r.Context(), orderID)
	if err != nil {
		writeError(w, err)
		return
	}

	changes := make([]statusChangeResponse, 0, len(history))
	for _, change := range history {
		changes = append(changes, statusChangeResponse{
			Status:    string(change.Status),
			ChangedBy: change.ChangedBy,
			Notes:     change.Notes,
			CreatedAt: change.CreatedAt,
		})
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"history": changes})
}

// RegisterRoutes registers order routes
func (h *OrderHandlers) RegisterRoutes(r chi.Router) {
	r.Route("/orders", func(r chi.Router) {
		r.Post("/", h.CreateOrder)
		r.Get("/", h.ListOrders)
		r.Get("/{id}", h.GetOrder)
		r.Get("/{id}/history", h.GetOrderHistory)
		r.Put("/{id}/status", h.UpdateOrderStatus)
		r.Post("/{id}/cancel", h.CancelOrder)
		r.Get("/user/{userId}", h.ListUserOrders)
	})
}

func toListResponse(response *application.ListOrdersResponse) listResponse {
	orders := make([]orderResponse, 0, len(response.Orders))
	for _, order := range response.Orders {
		resp := toOrderResponse(order)
		resp.Items = nil // listings omit line items
		orders = append(orders, resp)
	}

	return listResponse{
		Orders: orders,
		Total:  response.Total,
		Limit:  response.Limit,
		Offset: response.Offset,
	}
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, err error) {
	if errors.Is(err, domain.ErrOrderNotFound) {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}
	http.Error(w, err.Error(), http.StatusInternalServerError)
}

func queryInt(r *http.Request, name string) int {
	v, err := strconv.Atoi(r.URL.Query().Get(name))
	if err != nil {
		return 0
	}
	return v
}
