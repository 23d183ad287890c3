package http

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	cartdomain "github.com/zerowastemarket/checkout/internal/cart/domain"
	"github.com/zerowastemarket/checkout/internal/checkout/application"
	invdomain "github.com/zerowastemarket/checkout/internal/inventory/domain"
	orderdomain "github.com/zerowastemarket/checkout/internal/order/domain"
	paydomain "github.com/zerowastemarket/checkout/internal/payment/domain"
	"github.com/zerowastemarket/checkout/pkg/metrics"
)

// userHeader carries the authenticated user id, set by the auth layer in
// front of this service.
const userHeader = "X-User-ID"

type Handler struct {
	log          *slog.Logger
	orchestrator *application.Orchestrator
	tracer       trace.Tracer
	metrics      *metrics.ServerMetrics
}

func NewHandler(log *slog.Logger, orchestrator *application.Orchestrator, m *metrics.ServerMetrics) *Handler {
	return &Handler{
		log:          log,
		orchestrator: orchestrator,
		tracer:       otel.Tracer("checkout-http"),
		metrics:      m,
	}
}

func (h *Handler) Routes() http.Handler {
	r := chi.NewRouter()
	r.Post("/checkout", h.metrics.Middleware("checkout", h.checkout))
	r.Post("/webhooks/payment", h.metrics.Middleware("payment_webhook", h.paymentWebhook))
	r.Get("/orders/{id}", h.metrics.Middleware("get_order", h.getOrder))
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	return r
}

func (h *Handler) checkout(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "Checkout")
	defer span.End()

	userID := r.Header.Get(userHeader)
	if userID == "" {
		writeError(w, http.StatusUnauthorized, "missing_user", "no authenticated user")
		return
	}

	result, err := h.orchestrator.Checkout(ctx, userID)
	if err != nil {
		h.log.Info("checkout rejected", "user_id", userID, "err", err)
		switch {
		case errors.Is(err, cartdomain.ErrEmptyCart):
			writeError(w, http.StatusBadRequest, "empty_cart", err.Error())
		case errors.Is(err, cartdomain.ErrPriceChanged):
			writeError(w, http.StatusConflict, "price_changed", err.Error())
		case errors.Is(err, cartdomain.ErrListingNotFound):
			writeError(w, http.StatusConflict, "listing_unavailable", err.Error())
		case errors.Is(err, invdomain.ErrInsufficientStock):
			writeError(w, http.StatusConflict, "out_of_stock", err.Error())
		case errors.Is(err, invdomain.ErrListingNotFound):
			writeError(w, http.StatusConflict, "listing_unavailable", err.Error())
		case errors.Is(err, paydomain.ErrGatewayUnavailable):
			writeError(w, http.StatusBadGateway, "gateway_unavailable", "payment processor unavailable")
		default:
			h.log.Error("checkout failed", "user_id", userID, "err", err)
			writeError(w, http.StatusInternalServerError, "internal", "checkout failed")
		}
		return
	}

	writeJSON(w, http.StatusCreated, map[string]string{
		"order_id":          result.OrderID,
		"payment_reference": result.PaymentReference,
		"redirect_url":      result.RedirectURL,
	})
}

type webhookReq struct {
	RawEventID       string `json:"raw_event_id"`
	PaymentReference string `json:"payment_reference"`
	Outcome          string `json:"outcome"`
	AmountCents      int64  `json:"amount_cents"`
}

// paymentWebhook answers 200 only after the event is durably processed; any
// other status makes the gateway redeliver.
func (h *Handler) paymentWebhook(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "PaymentWebhook")
	defer span.End()

	var req webhookReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_body", "malformed payload")
		return
	}
	if req.RawEventID == "" || req.PaymentReference == "" {
		writeError(w, http.StatusBadRequest, "invalid_body", "raw_event_id and payment_reference are required")
		return
	}

	ev := paydomain.SettlementEvent{
		RawEventID:       req.RawEventID,
		PaymentReference: req.PaymentReference,
		Outcome:          paydomain.Outcome(req.Outcome),
		AmountCents:      req.AmountCents,
		ReceivedAt:       time.Now().UTC(),
	}
	if err := h.orchestrator.HandleSettlement(ctx, ev); err != nil {
		h.log.Error("settlement processing failed", "raw_event_id", req.RawEventID, "err", err)
		writeError(w, http.StatusInternalServerError, "processing_failed", "event not processed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) getOrder(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "GetOrder")
	defer span.End()

	ord, err := h.orchestrator.Order(ctx, chi.URLParam(r, "id"))
	if errors.Is(err, orderdomain.ErrNotFound) {
		writeError(w, http.StatusNotFound, "not_found", "order not found")
		return
	}
	if err != nil {
		h.log.Error("order lookup failed", "err", err)
		writeError(w, http.StatusInternalServerError, "internal", "order lookup failed")
		return
	}

	type lineResp struct {
		ListingID      string `json:"listing_id"`
		Quantity       int    `json:"quantity"`
		UnitPriceCents int64  `json:"unit_price_cents"`
	}
	lines := make([]lineResp, 0, len(ord.Lines))
	for _, l := range ord.Lines {
		lines = append(lines, lineResp{ListingID: l.ListingID, Quantity: l.Quantity, UnitPriceCents: l.UnitPriceCents})
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"order_id":          ord.ID,
		"status":            string(ord.Status),
		"total_cents":       ord.TotalCents,
		"payment_reference": ord.PaymentReference,
		"failure_reason":    ord.FailureReason,
		"lines":             lines,
	})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, reason, detail string) {
	writeJSON(w, status, map[string]string{"reason": reason, "detail": detail})
}
