package http

import (
	"errors"
	"net"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/gofrs/uuid"
	"github.com/rs/zerolog/log"

	"github.com/ngophong010/bamito-backend-sub000/internal/apperr"
	"github.com/ngophong010/bamito-backend-sub000/internal/order"
	"github.com/ngophong010/bamito-backend-sub000/internal/payment"
)

type CreatePaymentURLRequest struct {
	UserID          int64              `json:"user_id" validate:"required,gt=0"`
	PaymentMethod   string             `json:"payment_method" validate:"required"`
	DeliveryAddress string             `json:"delivery_address" validate:"required"`
	VoucherCode     string             `json:"voucher_code,omitempty"`
	Items           []OrderItemRequest `json:"items" validate:"required,min=1,dive"`
}

type PaymentHandler struct {
	gateway  *payment.Gateway
	orders   order.Service
	validate *validator.Validate
}

func NewPaymentHandler(gateway *payment.Gateway, orders order.Service) *PaymentHandler {
	return &PaymentHandler{
		gateway:  gateway,
		orders:   orders,
		validate: validator.New(),
	}
}

func (h *PaymentHandler) RegisterRoutes(router chi.Router) {
	router.Post("/payment/vnpay/url", h.handleCreatePaymentURL)
	router.Get("/payment/vnpay/return", h.handleCallback)
}

// handleCreatePaymentURL prices the prospective order and answers with a
// signed gateway redirect URL. Nothing is persisted and no stock is reserved:
// the round-trip to the gateway happens before any commitment, so abandoned
// payments cost nothing.
func (h *PaymentHandler) handleCreatePaymentURL(w http.ResponseWriter, r *http.Request) {
	var req CreatePaymentURLRequest
	if !decodeAndValidate(w, r, h.validate, &req) {
		return
	}

	items := toItemRequests(req.Items)

	total, err := h.orders.QuoteTotal(r.Context(), items, req.VoucherCode)
	if err != nil {
		log.Warn().Err(err).Int64("user_id", req.UserID).Msg("Failed to quote order total")
		respondWithAppError(w, err)
		return
	}

	txnRef, err := uuid.NewV4()
	if err != nil {
		respondWithAppError(w, apperr.Wrap(apperr.KindTransient, err))
		return
	}

	paymentURL, err := h.gateway.BuildPaymentURL(payment.Intent{
		OrderCode:       txnRef.String(),
		UserID:          req.UserID,
		PaymentMethod:   req.PaymentMethod,
		DeliveryAddress: req.DeliveryAddress,
		VoucherCode:     req.VoucherCode,
		Items:           items,
		Total:           total,
	}, clientIP(r))
	if err != nil {
		log.Error().Err(err).Msg("Failed to build payment URL")
		respondWithAppError(w, apperr.Wrap(apperr.KindTransient, err))
		return
	}

	respondWithJSON(w, http.StatusOK, map[string]string{"payment_url": paymentURL})
}

// handleCallback is the single place where untrusted gateway input may drive a
// financial state transition. Signature and amount verification gate the order
// creation path; a verification failure is logged as a security event and
// answered with a generic rejection.
func (h *PaymentHandler) handleCallback(w http.ResponseWriter, r *http.Request) {
	intent, err := h.gateway.VerifyCallback(r.URL.Query())
	if err != nil {
		switch {
		case errors.Is(err, payment.ErrInvalidSignature), errors.Is(err, payment.ErrAmountMismatch):
			log.Warn().
				Bool("security_event", true).
				Str("remote_addr", r.RemoteAddr).
				Err(err).
				Msg("Payment callback failed verification")
			respondWithAppError(w, apperr.Wrap(apperr.KindSignature, err))
		case errors.Is(err, payment.ErrPaymentDeclined):
			respondWithAppError(w, apperr.Wrap(apperr.KindConflict, err))
		default:
			respondWithAppError(w, apperr.Wrap(apperr.KindValidation, err))
		}
		return
	}

	created, err := h.orders.Create(r.Context(), order.CreateOrderInput{
		UserID:          intent.UserID,
		OrderCode:       intent.OrderCode,
		PaymentMethod:   intent.PaymentMethod,
		DeliveryAddress: intent.DeliveryAddress,
		VoucherCode:     intent.VoucherCode,
		Items:           intent.Items,
	})
	if err != nil {
		log.Warn().Err(err).Str("order_code", intent.OrderCode).Msg("Failed to create order from payment callback")
		respondWithAppError(w, err)
		return
	}

	respondWithJSON(w, http.StatusOK, toOrderResponse(created))
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
