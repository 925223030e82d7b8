package handler

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/fbr-shop/payment-service/internal/provider"
	"github.com/fbr-shop/payment-service/pkg/utils"
	"github.com/go-chi/chi/v5"
)

type Reconciler interface {
	HandleEvent(ctx context.Context, prov provider.CheckoutProvider, event provider.WebhookEvent) error
}

type WebhookHandler struct {
	logger     *slog.Logger
	reconciler Reconciler
	providers  map[string]provider.CheckoutProvider
}

func NewWebhookHandler(logger *slog.Logger, reconciler Reconciler, providers ...provider.CheckoutProvider) *WebhookHandler {
	byName := make(map[string]provider.CheckoutProvider, len(providers))
	for _, p := range providers {
		byName[p.Name()] = p
	}

	return &WebhookHandler{
		logger:     logger.With(slog.String("handler", "webhook")),
		reconciler: reconciler,
		providers:  byName,
	}
}

func (h *WebhookHandler) Init(r chi.Router) {
	r.Post("/webhooks/{provider}", h.Handle)
}

// Handle processes a provider webhook delivery. The signature is verified over
// the exact raw bytes before any parsing; a missing or invalid signature is
// rejected with 401 and leaves no trace beyond a metric and a log line.
// @Summary      Receive provider webhook
// @Description  Verifies the HMAC signature and reconciles the order state from the event
// @Tags         webhooks
// @Accept       json
// @Produce      json
// @Param        provider   path      string  true  "Provider name"
// @Success      200  {object}  WebhookAck
// @Failure      400  {object}  utils.ErrorResponse "Malformed payload"
// @Failure      401  {object}  utils.ErrorResponse "Invalid signature"
// @Failure      404  {object}  utils.ErrorResponse "Unknown provider"
// @Failure      500  {object}  utils.ErrorResponse "Processing error"
// @Router       /webhooks/{provider} [post]
func (h *WebhookHandler) Handle(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	providerName := chi.URLParam(r, "provider")

	prov, ok := h.providers[providerName]
	if !ok {
		utils.WriteError(w, "unknown provider", http.StatusNotFound)
		return
	}

	webhooksReceived.WithLabelValues(providerName).Inc()
	start := time.Now()
	defer func() {
		webhookDuration.Observe(time.Since(start).Seconds())
	}()

	rawBody, err := io.ReadAll(r.Body)
	if err != nil {
		utils.WriteError(w, "failed to read body", http.StatusBadRequest)
		return
	}

	if r.Header.Get(prov.SignatureHeader()) == "" || !prov.VerifyWebhookSignature(rawBody, r.Header) {
		webhooksRejected.WithLabelValues(providerName).Inc()
		h.logger.WarnContext(ctx, "webhook signature rejected", slog.String("provider", providerName))
		utils.WriteError(w, "invalid signature", http.StatusUnauthorized)
		return
	}

	event, err := prov.ParseWebhook(rawBody)
	if err != nil {
		h.logger.WarnContext(ctx, "malformed webhook payload", slog.String("provider", providerName), slog.Any("error", err))
		utils.WriteError(w, "malformed payload", http.StatusBadRequest)
		return
	}

	if err := h.reconciler.HandleEvent(ctx, prov, event); err != nil {
		webhooksFailed.WithLabelValues(providerName).Inc()
		h.logger.ErrorContext(ctx, "failed to process webhook",
			slog.String("provider", providerName),
			slog.String("event", event.Type),
			slog.Any("error", err),
		)
		utils.WriteError(w, "internal server error", http.StatusInternalServerError)
		return
	}

	utils.WriteJSON(w, WebhookAck{Received: true}, http.StatusOK)
}
