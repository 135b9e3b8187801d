package models

import (
	"encoding/json"
	"time"

	"github.com/punchamoorthee/lightningpay/internal/domain"
	"github.com/shopspring/decimal"
)

// CreateOrderRequest is the payload for creating an order.
type CreateOrderRequest struct {
	Number   string          `json:"number"`
	Total    decimal.Decimal `json:"total"`
	Currency string          `json:"currency"`
}

// OrderResponse is an order together with its audit trail.
type OrderResponse struct {
	Order domain.Order  `json:"order"`
	Notes []domain.Note `json:"notes"`
}

// CheckoutView is what the payer's checkout page renders.
type CheckoutView struct {
	OrderID          int64           `json:"order_id"`
	OrderNumber      string          `json:"order_number"`
	RequestID        string          `json:"request_id"`
	Invoice          string          `json:"invoice"`
	BTCAmount        decimal.Decimal `json:"btc_amount"`
	FiatAmount       decimal.Decimal `json:"fiat_amount"`
	Currency         string          `json:"currency"`
	ExpiresAt        time.Time       `json:"expires_at"`
	SecondsRemaining int64           `json:"seconds_remaining"`
	PollInterval     int             `json:"poll_interval_seconds"`
	CheckURL         string          `json:"check_url"`
	Nonce            string          `json:"nonce"`
}

// PollEnvelope wraps every poll response. Data is a PollResult on success
// and a message string on failure.
type PollEnvelope struct {
	Success bool `json:"success"`
	Data    any  `json:"data"`
}

// PollResult is the payer-visible status of an order.
type PollResult struct {
	Paid           bool          `json:"paid"`
	Status         string        `json:"status,omitempty"`
	ReceivesStates []string      `json:"receives_states,omitempty"`
	DebugInfo      []ReceiptInfo `json:"debug_info,omitempty"`
	TotalReceives  *int          `json:"total_receives,omitempty"`
}

// ReceiptInfo describes one receipt of a pending payment.
type ReceiptInfo struct {
	Index          int            `json:"index"`
	State          string         `json:"state"`
	Type           string         `json:"type"`
	AmountReceived *domain.Amount `json:"amountReceived"`
	AmountCredited *domain.Amount `json:"amountCredited"`
	Created        *time.Time     `json:"created"`
	Completed      *time.Time     `json:"completed"`
}

// WebhookEvent is a Strike event notification. Only EventType and
// Data.EntityID are required; the rest is kept raw so an unexpected shape
// never rejects a delivery.
type WebhookEvent struct {
	ID        json.RawMessage `json:"id"`
	EventType string          `json:"eventType"`
	Created   json.RawMessage `json:"created"`
	Data      WebhookData     `json:"data"`
}

type WebhookData struct {
	EntityID string          `json:"entityId"`
	Changes  json.RawMessage `json:"changes"`
}

// EventID returns the delivery id for logging, unquoted when it is a string.
func (e WebhookEvent) EventID() string {
	var id string
	if err := json.Unmarshal(e.ID, &id); err == nil {
		return id
	}
	return string(e.ID)
}

// WebhookAck is returned for every accepted webhook delivery.
type WebhookAck struct {
	Outcome string `json:"outcome"`
}
