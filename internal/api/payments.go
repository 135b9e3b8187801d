package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/punchamoorthee/lightningpay/internal/domain"
	"github.com/punchamoorthee/lightningpay/internal/models"
	"github.com/punchamoorthee/lightningpay/internal/service"
	"github.com/punchamoorthee/lightningpay/internal/store"
)

// CheckPayment is the payer's poll. It takes order_id and nonce as form or
// query values and always answers in the {success, data} envelope.
func (h *Handler) CheckPayment(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := r.ParseForm(); err != nil {
		respondJSON(w, r, http.StatusBadRequest, models.PollEnvelope{Data: "Malformed request"})
		return
	}

	orderID, _ := strconv.ParseInt(strings.TrimSpace(r.Form.Get("order_id")), 10, 64)
	if orderID <= 0 || !h.tokens.Verify(orderID, r.Form.Get("nonce")) {
		respondJSON(w, r, http.StatusForbidden, models.PollEnvelope{Data: "Invalid security token"})
		return
	}

	out := h.engine.Reconcile(r.Context(), orderID, service.Trigger{Source: service.SourcePoll})
	switch out.Kind {
	case service.OutcomeAlreadyPaid, service.OutcomeSettledNow:
		respondJSON(w, r, http.StatusOK, models.PollEnvelope{Success: true, Data: models.PollResult{Paid: true}})

	case service.OutcomePending, service.OutcomeWaiting:
		respondJSON(w, r, http.StatusOK, models.PollEnvelope{Success: true, Data: pollResult(out)})

	case service.OutcomeAPIError:
		// The payer keeps polling; the failure is logged by the engine.
		respondJSON(w, r, http.StatusOK, models.PollEnvelope{Success: true, Data: models.PollResult{Status: string(service.OutcomeWaiting)}})

	case service.OutcomeInvalid:
		msg := "Invalid order"
		if errors.Is(out.Err, store.ErrNoPaymentRecord) || errors.Is(out.Err, store.ErrSuperseded) {
			msg = "No payment data found"
		}
		respondJSON(w, r, http.StatusNotFound, models.PollEnvelope{Data: msg})

	default:
		respondJSON(w, r, http.StatusInternalServerError, models.PollEnvelope{Data: "Internal error"})
	}
}

func pollResult(out service.Outcome) models.PollResult {
	info := make([]models.ReceiptInfo, 0, len(out.Receipts))
	for i, rc := range out.Receipts {
		info = append(info, receiptInfo(i, rc))
	}
	total := len(info)
	return models.PollResult{
		Status:         string(out.Kind),
		ReceivesStates: out.States(),
		DebugInfo:      info,
		TotalReceives:  &total,
	}
}

func receiptInfo(i int, rc domain.Receipt) models.ReceiptInfo {
	state, typ := rc.State, rc.Type
	if state == "" {
		state = "UNKNOWN"
	}
	if typ == "" {
		typ = "UNKNOWN"
	}
	return models.ReceiptInfo{
		Index:          i,
		State:          state,
		Type:           typ,
		AmountReceived: rc.AmountReceived,
		AmountCredited: rc.AmountCredited,
		Created:        rc.CreatedAt,
		Completed:      rc.CompletedAt,
	}
}

// StrikeWebhook accepts receive-request events. Unknown request ids are
// acknowledged so the sender stops retrying; verification failures are not.
func (h *Handler) StrikeWebhook(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		respondError(w, r, http.StatusBadRequest, "Unreadable body")
		return
	}

	var ev models.WebhookEvent
	if err := json.Unmarshal(body, &ev); err != nil || ev.EventType == "" || ev.Data.EntityID == "" {
		h.log.Info("invalid webhook payload", map[string]any{"request_id": r.Header.Get(requestIDHeader)})
		respondError(w, r, http.StatusBadRequest, "Invalid webhook data")
		return
	}

	fields := map[string]any{
		"event_id":   ev.EventID(),
		"event_type": ev.EventType,
		"entity_id":  ev.Data.EntityID,
	}

	switch ev.EventType {
	case service.EventReceivePending, service.EventReceiveCompleted:
	default:
		h.log.Info("webhook ignored", fields)
		respondJSON(w, r, http.StatusOK, models.WebhookAck{Outcome: "ignored"})
		return
	}

	out := h.engine.ReconcileRequest(r.Context(), service.Trigger{
		Source:    service.SourceWebhook,
		RequestID: ev.Data.EntityID,
		Event:     ev.EventType,
	})

	fields["outcome"] = string(out.Kind)
	h.log.Info("webhook processed", fields)

	switch out.Kind {
	case service.OutcomeAPIError:
		respondJSON(w, r, http.StatusBadGateway, models.WebhookAck{Outcome: string(out.Kind)})
	case service.OutcomeFailed:
		respondJSON(w, r, http.StatusInternalServerError, models.WebhookAck{Outcome: string(out.Kind)})
	default:
		respondJSON(w, r, http.StatusOK, models.WebhookAck{Outcome: string(out.Kind)})
	}
}
