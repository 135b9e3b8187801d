package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/punchamoorthee/lightningpay/internal/domain"
	"github.com/punchamoorthee/lightningpay/internal/models"
	"github.com/punchamoorthee/lightningpay/internal/service"
	"github.com/punchamoorthee/lightningpay/internal/store"
	"github.com/punchamoorthee/lightningpay/internal/strike"
)

func (h *Handler) CreateOrder(w http.ResponseWriter, r *http.Request) {
	var req models.CreateOrderRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		respondError(w, r, http.StatusBadRequest, "Malformed JSON body")
		return
	}
	if !req.Total.IsPositive() {
		respondError(w, r, http.StatusUnprocessableEntity, "Positive total required")
		return
	}
	currency := strings.ToUpper(strings.TrimSpace(req.Currency))
	if currency == "" {
		currency = "USD"
	}

	order, err := h.store.CreateOrder(r.Context(), req.Number, domain.Amount{Value: req.Total, Currency: currency})
	if err != nil {
		h.log.Error("create order failed", map[string]any{"error": err.Error()})
		respondError(w, r, http.StatusInternalServerError, "System error creating order")
		return
	}

	w.Header().Set("Location", fmt.Sprintf("/api/v1/orders/%d", order.ID))
	respondJSON(w, r, http.StatusCreated, order)
}

func (h *Handler) GetOrder(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		respondError(w, r, http.StatusBadRequest, "Invalid order id")
		return
	}

	order, err := h.store.GetOrder(r.Context(), id)
	if err != nil {
		h.orderError(w, r, err)
		return
	}
	notes, err := h.store.ListNotes(r.Context(), id)
	if err != nil {
		h.orderError(w, r, err)
		return
	}
	respondJSON(w, r, http.StatusOK, models.OrderResponse{Order: *order, Notes: notes})
}

// StartCheckout moves the order to awaiting payment and drops stale payment data.
func (h *Handler) StartCheckout(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		respondError(w, r, http.StatusBadRequest, "Invalid order id")
		return
	}
	if err := h.engine.StartPayment(r.Context(), id); err != nil {
		h.orderError(w, r, err)
		return
	}
	respondJSON(w, r, http.StatusOK, map[string]string{
		"status":   string(domain.StatusAwaitingPayment),
		"redirect": fmt.Sprintf("/api/v1/orders/%d/payment", id),
	})
}

// CheckoutView returns the invoice the payer should pay, issuing one if
// needed. refresh=1 forces a new request and supersedes the current one.
func (h *Handler) CheckoutView(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		respondError(w, r, http.StatusBadRequest, "Invalid order id")
		return
	}

	var (
		rec *domain.PaymentRecord
		err error
	)
	if r.URL.Query().Get("refresh") == "1" {
		rec, err = h.engine.RefreshPaymentRequest(r.Context(), id)
	} else {
		rec, err = h.engine.EnsurePaymentRequest(r.Context(), id)
	}
	if err != nil {
		h.orderError(w, r, err)
		return
	}

	order, err := h.store.GetOrder(r.Context(), id)
	if err != nil {
		h.orderError(w, r, err)
		return
	}

	remaining := int64(time.Until(rec.ExpiresAt).Seconds())
	if remaining < 0 {
		remaining = 0
	}
	respondJSON(w, r, http.StatusOK, models.CheckoutView{
		OrderID:          order.ID,
		OrderNumber:      order.Number,
		RequestID:        rec.RequestID,
		Invoice:          rec.Invoice,
		BTCAmount:        rec.BTCAmount,
		FiatAmount:       rec.USDAmount,
		Currency:         order.Total.Currency,
		ExpiresAt:        rec.ExpiresAt,
		SecondsRemaining: remaining,
		PollInterval:     pollInterval,
		CheckURL:         checkPath,
		Nonce:            h.tokens.Issue(order.ID),
	})
}

func (h *Handler) orderError(w http.ResponseWriter, r *http.Request, err error) {
	var apiErr *strike.APIError
	switch {
	case errors.Is(err, store.ErrOrderNotFound):
		respondError(w, r, http.StatusNotFound, "Order not found")
	case errors.Is(err, store.ErrOrderPaid):
		respondError(w, r, http.StatusConflict, "Order already paid")
	case errors.Is(err, store.ErrNotAwaiting):
		respondError(w, r, http.StatusConflict, "Order is not awaiting payment")
	case errors.Is(err, service.ErrAPIUnavailable):
		respondError(w, r, http.StatusServiceUnavailable, "Lightning payments are not configured")
	case errors.As(err, &apiErr):
		h.log.Error("payment API rejected request", map[string]any{"error": err.Error(), "status": apiErr.StatusCode})
		respondError(w, r, http.StatusBadGateway, "Error creating Lightning invoice: "+apiErr.Message)
	case strike.IsTransport(err):
		h.log.Error("payment API unreachable", map[string]any{"error": err.Error()})
		respondError(w, r, http.StatusBadGateway, "Payment API unreachable")
	default:
		h.log.Error("request failed", map[string]any{"error": err.Error(), "path": r.URL.Path})
		respondError(w, r, http.StatusInternalServerError, "Internal Server Error")
	}
}
