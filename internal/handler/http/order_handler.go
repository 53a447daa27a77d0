package http

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog/log"

	"github.com/ngophong010/bamito-backend-sub000/internal/order"
)

type OrderItemRequest struct {
	ProductID int64 `json:"product_id" validate:"required,gt=0"`
	VariantID int64 `json:"variant_id" validate:"required,gt=0"`
	Quantity  int64 `json:"quantity" validate:"required,gt=0"`
}

type CreateOrderRequest struct {
	UserID          int64              `json:"user_id" validate:"required,gt=0"`
	PaymentMethod   string             `json:"payment_method" validate:"required"`
	DeliveryAddress string             `json:"delivery_address" validate:"required"`
	VoucherCode     string             `json:"voucher_code,omitempty"`
	Items           []OrderItemRequest `json:"items" validate:"required,min=1,dive"`
}

type AdvanceStatusRequest struct {
	Status string `json:"status" validate:"required,oneof=DELIVERING SUCCEEDED"`
}

type OrderResponse struct {
	OrderCode       string           `json:"order_code"`
	UserID          int64            `json:"user_id"`
	TotalPrice      int64            `json:"total_price"`
	PaymentMethod   string           `json:"payment_method"`
	DeliveryAddress string           `json:"delivery_address"`
	Status          string           `json:"status"`
	LineItems       []order.LineItem `json:"line_items"`
	CreatedAt       time.Time        `json:"created_at"`
}

type OrderHandler struct {
	service  order.Service
	validate *validator.Validate
}

func NewOrderHandler(service order.Service) *OrderHandler {
	return &OrderHandler{
		service:  service,
		validate: validator.New(),
	}
}

func (h *OrderHandler) RegisterRoutes(router chi.Router) {
	router.Post("/orders", h.handleCreateOrder)
	router.Get("/orders/{code}", h.handleGetOrder)
	router.Get("/users/{userID}/orders", h.handleListUserOrders)
	router.Post("/orders/{code}/cancel", h.handleCancelOrder)
	router.Put("/orders/{code}/status", h.handleAdvanceStatus)
	router.Delete("/orders/{code}", h.handleDeleteOrder)
	router.Post("/order-items/{itemID}/feedback", h.handleMarkFeedback)
}

func (h *OrderHandler) handleCreateOrder(w http.ResponseWriter, r *http.Request) {
	var req CreateOrderRequest
	if !decodeAndValidate(w, r, h.validate, &req) {
		return
	}

	created, err := h.service.Create(r.Context(), order.CreateOrderInput{
		UserID:          req.UserID,
		PaymentMethod:   req.PaymentMethod,
		DeliveryAddress: req.DeliveryAddress,
		VoucherCode:     req.VoucherCode,
		Items:           toItemRequests(req.Items),
	})
	if err != nil {
		log.Warn().Err(err).Int64("user_id", req.UserID).Msg("Failed to create order")
		respondWithAppError(w, err)
		return
	}

	respondWithJSON(w, http.StatusCreated, toOrderResponse(created))
}

func (h *OrderHandler) handleGetOrder(w http.ResponseWriter, r *http.Request) {
	code := chi.URLParam(r, "code")
	if code == "" {
		respondWithError(w, http.StatusBadRequest, "order code is required")
		return
	}

	o, err := h.service.GetByCode(r.Context(), code)
	if err != nil {
		respondWithAppError(w, err)
		return
	}

	respondWithJSON(w, http.StatusOK, toOrderResponse(o))
}

func (h *OrderHandler) handleListUserOrders(w http.ResponseWriter, r *http.Request) {
	userID, err := strconv.ParseInt(chi.URLParam(r, "userID"), 10, 64)
	if err != nil || userID <= 0 {
		respondWithError(w, http.StatusBadRequest, "invalid user id")
		return
	}

	orders, err := h.service.ListByUser(r.Context(), userID)
	if err != nil {
		respondWithAppError(w, err)
		return
	}

	responses := make([]OrderResponse, 0, len(orders))
	for i := range orders {
		responses = append(responses, toOrderResponse(&orders[i]))
	}

	respondWithJSON(w, http.StatusOK, responses)
}

func (h *OrderHandler) handleCancelOrder(w http.ResponseWriter, r *http.Request) {
	code := chi.URLParam(r, "code")

	if err := h.service.Cancel(r.Context(), code); err != nil {
		log.Warn().Err(err).Str("order_code", code).Msg("Failed to cancel order")
		respondWithAppError(w, err)
		return
	}

	respondWithJSON(w, http.StatusOK, map[string]string{"order_code": code, "status": order.StatusCancelled.String()})
}

func (h *OrderHandler) handleAdvanceStatus(w http.ResponseWriter, r *http.Request) {
	code := chi.URLParam(r, "code")

	var req AdvanceStatusRequest
	if !decodeAndValidate(w, r, h.validate, &req) {
		return
	}

	if err := h.service.AdvanceStatus(r.Context(), code, order.Status(req.Status)); err != nil {
		log.Warn().Err(err).Str("order_code", code).Str("new_status", req.Status).Msg("Failed to advance order status")
		respondWithAppError(w, err)
		return
	}

	respondWithJSON(w, http.StatusOK, map[string]string{"order_code": code, "status": req.Status})
}

func (h *OrderHandler) handleDeleteOrder(w http.ResponseWriter, r *http.Request) {
	code := chi.URLParam(r, "code")

	if err := h.service.Delete(r.Context(), code); err != nil {
		log.Warn().Err(err).Str("order_code", code).Msg("Failed to delete order")
		respondWithAppError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *OrderHandler) handleMarkFeedback(w http.ResponseWriter, r *http.Request) {
	itemID, err := strconv.ParseInt(chi.URLParam(r, "itemID"), 10, 64)
	if err != nil || itemID <= 0 {
		respondWithError(w, http.StatusBadRequest, "invalid line item id")
		return
	}

	if err := h.service.MarkFeedbackSubmitted(r.Context(), itemID); err != nil {
		respondWithAppError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func toItemRequests(items []OrderItemRequest) []order.ItemRequest {
	result := make([]order.ItemRequest, 0, len(items))
	for _, item := range items {
		result = append(result, order.ItemRequest{
			ProductID: item.ProductID,
			VariantID: item.VariantID,
			Quantity:  item.Quantity,
		})
	}
	return result
}

func toOrderResponse(o *order.Order) OrderResponse {
	return OrderResponse{
		OrderCode:       o.OrderCode,
		UserID:          o.UserID,
		TotalPrice:      o.TotalPrice,
		PaymentMethod:   o.PaymentMethod,
		DeliveryAddress: o.DeliveryAddress,
		Status:          o.Status.String(),
		LineItems:       o.LineItems,
		CreatedAt:       o.CreatedAt,
	}
}
