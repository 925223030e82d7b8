package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/fbr-shop/payment-service/internal/banktransfer"
	"github.com/fbr-shop/payment-service/internal/entities"
	"github.com/fbr-shop/payment-service/internal/provider"
	"github.com/fbr-shop/payment-service/internal/service"
	"github.com/fbr-shop/payment-service/pkg/utils"
	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
)

type OrderService interface {
	CreateOrder(ctx context.Context, order entities.Order) (entities.Order, error)
	GetOrderByID(ctx context.Context, orderID string) (entities.Order, error)
	GetOrderByNumber(ctx context.Context, orderNumber string) (entities.Order, error)
	UpdateOrder(ctx context.Context, orderID string, upd entities.OrderUpdate) (entities.Order, error)
	CancelOrder(ctx context.Context, orderID string) (entities.Order, error)
}

type PaymentService interface {
	CreateCardPayment(ctx context.Context, providerName, orderID string) (provider.PaymentIntent, error)
	GetCardPayment(ctx context.Context, providerName, paymentID string) (provider.PaymentIntent, error)
	BankTransferDetails(ctx context.Context, orderID string) (banktransfer.PaymentDetails, error)
	BankTransferStatus(ctx context.Context, reference string) (service.BankTransferStatus, error)
}

type HTTPHandler struct {
	logger   *slog.Logger
	validate *validator.Validate
	orders   OrderService
	payments PaymentService
}

func NewHTTPHandler(logger *slog.Logger, orders OrderService, payments PaymentService) *HTTPHandler {
	return &HTTPHandler{
		logger:   logger.With(slog.String("handler", "http")),
		validate: validator.New(),
		orders:   orders,
		payments: payments,
	}
}

func (h *HTTPHandler) Init(r chi.Router) {
	r.Route("/orders", func(r chi.Router) {
		r.Post("/", h.CreateOrder)
		r.Get("/number/{order_number}", h.GetOrderByNumber)
		r.Get("/{order_id}", h.GetOrderByID)
		r.Put("/{order_id}", h.UpdateOrder)
		r.Delete("/{order_id}", h.CancelOrder)
	})

	r.Route("/payments", func(r chi.Router) {
		r.Post("/card", h.CreateCardPayment)
		r.Get("/card/{provider}/{payment_id}", h.GetCardPayment)
		r.Get("/bank-transfer", h.BankTransferDetails)
		r.Get("/bank-transfer/status", h.BankTransferStatus)
	})
}

// CreateOrder registers a new order and returns it with its generated number.
// @Summary      Create order
// @Description  Validates the payload, persists the order with its items and returns the stored order
// @Tags         orders
// @Accept       json
// @Produce      json
// @Param        order  body      CreateOrderRequest  true  "Order to create"
// @Success      201  {object}  Order
// @Failure      400  {object}  utils.ValidationErrorResponse "Validation error"
// @Failure      500  {object}  utils.ErrorResponse "Internal server error"
// @Router       /orders [post]
func (h *HTTPHandler) CreateOrder(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req CreateOrderRequest
	if err := utils.DecodeBody(r, &req); err != nil {
		utils.WriteError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	if err := h.validate.Struct(req); err != nil {
		utils.WriteValidationError(w, err)
		return
	}

	order, err := h.orders.CreateOrder(ctx, CreateOrderRequestToEntity(req))
	if err != nil {
		h.writeServiceError(ctx, w, err, "failed to create order")
		return
	}

	ordersCreated.Inc()
	utils.WriteJSON(w, OrderEntityToJSON(order), http.StatusCreated)
}

// GetOrderByID returns a single order.
// @Summary      Get order by ID
// @Description  Returns the order with its items by internal identifier
// @Tags         orders
// @Produce      json
// @Param        order_id   path      string  true  "Order identifier"
// @Success      200  {object}  Order
// @Failure      400  {object}  utils.ValidationErrorResponse "Validation error"
// @Failure      404  {object}  utils.ErrorResponse "Order not found"
// @Failure      500  {object}  utils.ErrorResponse "Internal server error"
// @Router       /orders/{order_id} [get]
func (h *HTTPHandler) GetOrderByID(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	orderID := chi.URLParam(r, "order_id")

	if err := h.validate.Var(orderID, "required"); err != nil {
		utils.WriteValidationError(w, err)
		return
	}

	order, err := h.orders.GetOrderByID(ctx, orderID)
	if err != nil {
		h.writeServiceError(ctx, w, err, "failed to get order")
		return
	}

	utils.WriteJSON(w, OrderEntityToJSON(order), http.StatusOK)
}

// GetOrderByNumber returns a single order by its customer-facing number.
// @Summary      Get order by number
// @Description  Returns the order with its items by the FBR order number
// @Tags         orders
// @Produce      json
// @Param        order_number   path      string  true  "Order number"
// @Success      200  {object}  Order
// @Failure      400  {object}  utils.ValidationErrorResponse "Validation error"
// @Failure      404  {object}  utils.ErrorResponse "Order not found"
// @Failure      500  {object}  utils.ErrorResponse "Internal server error"
// @Router       /orders/number/{order_number} [get]
func (h *HTTPHandler) GetOrderByNumber(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	orderNumber := chi.URLParam(r, "order_number")

	if err := h.validate.Var(orderNumber, "required"); err != nil {
		utils.WriteValidationError(w, err)
		return
	}

	order, err := h.orders.GetOrderByNumber(ctx, orderNumber)
	if err != nil {
		h.writeServiceError(ctx, w, err, "failed to get order by number")
		return
	}

	utils.WriteJSON(w, OrderEntityToJSON(order), http.StatusOK)
}

// UpdateOrder applies a partial update to an order. Setting payment_status to
// paid is the manual confirmation path for bank transfers.
// @Summary      Update order
// @Description  Updates the order status, payment status or notes. Backward transitions are rejected
// @Tags         orders
// @Accept       json
// @Produce      json
// @Param        order_id  path      string              true  "Order identifier"
// @Param        update    body      UpdateOrderRequest  true  "Fields to update"
// @Success      200  {object}  Order
// @Failure      400  {object}  utils.ValidationErrorResponse "Validation error"
// @Failure      404  {object}  utils.ErrorResponse "Order not found"
// @Failure      500  {object}  utils.ErrorResponse "Internal server error"
// @Router       /orders/{order_id} [put]
func (h *HTTPHandler) UpdateOrder(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	orderID := chi.URLParam(r, "order_id")

	var req UpdateOrderRequest
	if err := utils.DecodeBody(r, &req); err != nil {
		utils.WriteError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	if err := h.validate.Struct(req); err != nil {
		utils.WriteValidationError(w, err)
		return
	}

	upd := entities.OrderUpdate{Notes: req.Notes}
	if req.Status != nil {
		status := entities.OrderStatus(*req.Status)
		upd.Status = &status
	}
	if req.PaymentStatus != nil {
		paymentStatus := entities.PaymentStatus(*req.PaymentStatus)
		upd.PaymentStatus = &paymentStatus
	}

	order, err := h.orders.UpdateOrder(ctx, orderID, upd)
	if err != nil {
		h.writeServiceError(ctx, w, err, "failed to update order")
		return
	}

	utils.WriteJSON(w, OrderEntityToJSON(order), http.StatusOK)
}

// CancelOrder cancels an order without deleting it.
// @Summary      Cancel order
// @Description  Marks the order cancelled and releases any payment hold. The record is kept
// @Tags         orders
// @Produce      json
// @Param        order_id   path      string  true  "Order identifier"
// @Success      200  {object}  Order
// @Failure      404  {object}  utils.ErrorResponse "Order not found"
// @Failure      409  {object}  utils.ErrorResponse "Order already cancelled"
// @Failure      500  {object}  utils.ErrorResponse "Internal server error"
// @Router       /orders/{order_id} [delete]
func (h *HTTPHandler) CancelOrder(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	orderID := chi.URLParam(r, "order_id")

	order, err := h.orders.CancelOrder(ctx, orderID)
	if err != nil {
		h.writeServiceError(ctx, w, err, "failed to cancel order")
		return
	}

	utils.WriteJSON(w, OrderEntityToJSON(order), http.StatusOK)
}

// CreateCardPayment starts a card checkout with the chosen provider.
// @Summary      Start card payment
// @Description  Creates a payment at the provider and attaches its id to the order
// @Tags         payments
// @Accept       json
// @Produce      json
// @Param        payment  body      CreateCardPaymentRequest  true  "Provider and order"
// @Success      201  {object}  PaymentIntent
// @Failure      400  {object}  utils.ValidationErrorResponse "Validation error"
// @Failure      404  {object}  utils.ErrorResponse "Order not found"
// @Failure      409  {object}  utils.ErrorResponse "Order already cancelled"
// @Failure      502  {object}  utils.ErrorResponse "Provider error"
// @Router       /payments/card [post]
func (h *HTTPHandler) CreateCardPayment(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req CreateCardPaymentRequest
	if err := utils.DecodeBody(r, &req); err != nil {
		utils.WriteError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	if err := h.validate.Struct(req); err != nil {
		utils.WriteValidationError(w, err)
		return
	}

	intent, err := h.payments.CreateCardPayment(ctx, req.Provider, req.OrderID)
	if err != nil {
		h.writeServiceError(ctx, w, err, "failed to create card payment")
		return
	}

	paymentIntentsCreated.WithLabelValues(req.Provider).Inc()
	utils.WriteJSON(w, IntentToJSON(intent), http.StatusCreated)
}

// GetCardPayment returns the provider-side state of a payment.
// @Summary      Get card payment
// @Description  Fetches the current payment state from the provider
// @Tags         payments
// @Produce      json
// @Param        provider    path      string  true  "Provider name"
// @Param        payment_id  path      string  true  "Provider payment identifier"
// @Success      200  {object}  PaymentIntent
// @Failure      400  {object}  utils.ErrorResponse "Unknown provider"
// @Failure      502  {object}  utils.ErrorResponse "Provider error"
// @Router       /payments/card/{provider}/{payment_id} [get]
func (h *HTTPHandler) GetCardPayment(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	providerName := chi.URLParam(r, "provider")
	paymentID := chi.URLParam(r, "payment_id")

	if err := h.validate.Var(paymentID, "required"); err != nil {
		utils.WriteValidationError(w, err)
		return
	}

	intent, err := h.payments.GetCardPayment(ctx, providerName, paymentID)
	if err != nil {
		h.writeServiceError(ctx, w, err, "failed to get card payment")
		return
	}

	utils.WriteJSON(w, IntentToJSON(intent), http.StatusOK)
}

// BankTransferDetails returns the transfer instructions for an order.
// @Summary      Get bank transfer details
// @Description  Returns beneficiary data, a stable payment reference, the EPC QR payload and customer instructions
// @Tags         payments
// @Produce      json
// @Param        order_id   query      string  true  "Order identifier"
// @Success      200  {object}  BankTransferDetails
// @Failure      400  {object}  utils.ValidationErrorResponse "Validation error"
// @Failure      404  {object}  utils.ErrorResponse "Order not found"
// @Failure      500  {object}  utils.ErrorResponse "Internal server error"
// @Router       /payments/bank-transfer [get]
func (h *HTTPHandler) BankTransferDetails(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	orderID := r.URL.Query().Get("order_id")

	if err := h.validate.Var(orderID, "required"); err != nil {
		utils.WriteValidationError(w, err)
		return
	}

	details, err := h.payments.BankTransferDetails(ctx, orderID)
	if err != nil {
		h.writeServiceError(ctx, w, err, "failed to build bank transfer details")
		return
	}

	utils.WriteJSON(w, TransferDetailsToJSON(details), http.StatusOK)
}

// BankTransferStatus reports whether a transfer arrived for a reference.
// @Summary      Get bank transfer status
// @Description  Looks up the order by payment reference and reports pending, received or failed
// @Tags         payments
// @Produce      json
// @Param        reference   query      string  true  "Payment reference"
// @Success      200  {object}  BankTransferStatus
// @Failure      400  {object}  utils.ValidationErrorResponse "Validation error"
// @Failure      404  {object}  utils.ErrorResponse "Reference not found"
// @Failure      500  {object}  utils.ErrorResponse "Internal server error"
// @Router       /payments/bank-transfer/status [get]
func (h *HTTPHandler) BankTransferStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	reference := r.URL.Query().Get("reference")

	if err := h.validate.Var(reference, "required"); err != nil {
		utils.WriteValidationError(w, err)
		return
	}

	status, err := h.payments.BankTransferStatus(ctx, reference)
	if err != nil {
		h.writeServiceError(ctx, w, err, "failed to get bank transfer status")
		return
	}

	utils.WriteJSON(w, BankTransferStatus{
		Status:     status.Status,
		Amount:     status.Amount,
		ReceivedAt: status.ReceivedAt,
	}, http.StatusOK)
}

func (h *HTTPHandler) writeServiceError(ctx context.Context, w http.ResponseWriter, err error, msg string) {
	var provErr *provider.ProviderError

	switch {
	case errors.Is(err, entities.ErrOrderNotFound):
		utils.WriteError(w, "order not found", http.StatusNotFound)
	case errors.Is(err, entities.ErrInvalidOrder):
		utils.WriteError(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, entities.ErrOrderCancelled):
		utils.WriteError(w, "order already cancelled", http.StatusConflict)
	case errors.Is(err, service.ErrUnknownProvider):
		utils.WriteError(w, "unknown payment provider", http.StatusBadRequest)
	case errors.As(err, &provErr):
		h.logger.ErrorContext(ctx, msg, slog.Any("error", err), slog.String("provider", provErr.Provider))
		utils.WriteError(w, "payment provider error", http.StatusBadGateway)
	default:
		h.logger.ErrorContext(ctx, msg, slog.Any("error", err))
		utils.WriteError(w, "internal server error", http.StatusInternalServerError)
	}
}
