package store

import (
	"context"
	"errors"
	"time"

	"github.com/punchamoorthee/lightningpay/internal/domain"
)

var (
	ErrOrderNotFound   = errors.New("order not found")
	ErrNoPaymentRecord = errors.New("no payment data found")
	ErrSuperseded      = errors.New("payment request superseded")
	ErrNotAwaiting     = errors.New("order is not awaiting payment")
	ErrOrderPaid       = errors.New("order already paid")
)

// OrderStore is the host order store as seen by the reconciliation engine.
//
// MarkPaid is the only write that changes an order to paid. Implementations
// must perform its check and update atomically per order: of any number of
// concurrent calls for the same order, at most one returns true.
type OrderStore interface {
	CreateOrder(ctx context.Context, number string, total domain.Amount) (*domain.Order, error)
	GetOrder(ctx context.Context, id int64) (*domain.Order, error)
	FindOrderByRequestID(ctx context.Context, requestID string) (*domain.Order, error)

	// StartPayment moves an unpaid order to awaiting payment and drops any
	// stored payment record.
	StartPayment(ctx context.Context, orderID int64) error

	GetPaymentRecord(ctx context.Context, orderID int64) (*domain.PaymentRecord, error)
	// SavePaymentRecord replaces the order's record; the previous request id
	// no longer resolves to the order.
	SavePaymentRecord(ctx context.Context, orderID int64, rec *domain.PaymentRecord) error

	AddNote(ctx context.Context, orderID int64, text string) error
	// AddNoteIfAwaiting records text only while the order is awaiting payment
	// on requestID, serialized against MarkPaid. It reports whether the note
	// was written.
	AddNoteIfAwaiting(ctx context.Context, orderID int64, requestID, text string) (bool, error)
	ListNotes(ctx context.Context, orderID int64) ([]domain.Note, error)

	// MarkPaid transitions the order to paid and records note, provided the
	// order is awaiting payment and requestID is still its active request.
	// It returns false with a nil error when the order was already paid.
	MarkPaid(ctx context.Context, orderID int64, requestID, note string, at time.Time) (bool, error)

	Close()
}
