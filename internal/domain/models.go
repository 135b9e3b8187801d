package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// OrderStatus is the payment lifecycle of an order as seen by this service.
type OrderStatus string

const (
	StatusAwaitingPayment OrderStatus = "awaiting_payment"
	StatusPaid            OrderStatus = "paid"
	StatusCancelled       OrderStatus = "cancelled"
)

// Amount is a monetary value in a given currency.
type Amount struct {
	Value    decimal.Decimal `json:"amount"`
	Currency string          `json:"currency"`
}

func (a Amount) String() string {
	return a.Value.String() + " " + a.Currency
}

// Order is the host-side order. PaymentRequestID is a weak reference to the
// order's current payment request, empty when none has been issued.
type Order struct {
	ID               int64       `json:"id"`
	Number           string      `json:"number"`
	Total            Amount      `json:"total"`
	Status           OrderStatus `json:"status"`
	PaymentRequestID string      `json:"payment_request_id,omitempty"`
	PaidAt           *time.Time  `json:"paid_at,omitempty"`
	CreatedAt        time.Time   `json:"created_at"`
}

func (o *Order) IsPaid() bool {
	return o.Status == StatusPaid
}

// PaymentRequest is a receive request issued by Strike against an order.
type PaymentRequest struct {
	ID               string    `json:"requestId"`
	Invoice          string    `json:"invoice"`
	RequestedAmount  Amount    `json:"requestedAmount"`
	SettlementAmount Amount    `json:"settlementAmount"`
	ExpiresAt        time.Time `json:"expiresAt"`
	CreatedAt        time.Time `json:"createdAt"`
}

// Expired reports whether the request can no longer be paid at now.
func (p *PaymentRequest) Expired(now time.Time) bool {
	return !now.Before(p.ExpiresAt)
}

// PaymentRecord is the per-order metadata blob persisted alongside an order.
// Writing a new record replaces the previous one.
type PaymentRecord struct {
	RequestID string          `json:"requestId"`
	Invoice   string          `json:"invoice"`
	BTCAmount decimal.Decimal `json:"btcAmount"`
	USDAmount decimal.Decimal `json:"usdAmount"`
	ExpiresAt time.Time       `json:"expiresAt"`
	CreatedAt time.Time       `json:"createdAt"`
}

// NewPaymentRecord flattens a request into the persisted record form.
func NewPaymentRecord(req *PaymentRequest) *PaymentRecord {
	return &PaymentRecord{
		RequestID: req.ID,
		Invoice:   req.Invoice,
		BTCAmount: req.SettlementAmount.Value,
		USDAmount: req.RequestedAmount.Value,
		ExpiresAt: req.ExpiresAt,
		CreatedAt: req.CreatedAt,
	}
}

func (r *PaymentRecord) Expired(now time.Time) bool {
	return !now.Before(r.ExpiresAt)
}

// Receipt is one settlement attempt against a payment request.
type Receipt struct {
	ID             string     `json:"receiveId"`
	RequestID      string     `json:"receiveRequestId"`
	Type           string     `json:"type"`
	State          string     `json:"state"`
	AmountReceived *Amount    `json:"amountReceived,omitempty"`
	AmountCredited *Amount    `json:"amountCredited,omitempty"`
	CreatedAt      *time.Time `json:"created,omitempty"`
	CompletedAt    *time.Time `json:"completed,omitempty"`
}

// Note is an audit entry attached to an order.
type Note struct {
	OrderID   int64     `json:"order_id"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"created_at"`
}
