package store

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/punchamoorthee/lightningpay/internal/domain"
)

type memoryOrder struct {
	order  domain.Order
	record *domain.PaymentRecord
	notes  []domain.Note
}

// Memory is an in-process OrderStore used for development and tests.
type Memory struct {
	mu        sync.RWMutex
	nextID    int64
	orders    map[int64]*memoryOrder
	byRequest map[string]int64
	now       func() time.Time
}

func NewMemory() *Memory {
	return &Memory{
		orders:    make(map[int64]*memoryOrder),
		byRequest: make(map[string]int64),
		now:       time.Now,
	}
}

func (m *Memory) Close() {}

func (m *Memory) CreateOrder(_ context.Context, number string, total domain.Amount) (*domain.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.nextID++
	if number == "" {
		number = strconv.FormatInt(m.nextID, 10)
	}
	o := &memoryOrder{order: domain.Order{
		ID:        m.nextID,
		Number:    number,
		Total:     total,
		Status:    domain.StatusAwaitingPayment,
		CreatedAt: m.now(),
	}}
	m.orders[o.order.ID] = o

	out := o.order
	return &out, nil
}

func (m *Memory) GetOrder(_ context.Context, id int64) (*domain.Order, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	o, ok := m.orders[id]
	if !ok {
		return nil, ErrOrderNotFound
	}
	out := o.order
	return &out, nil
}

func (m *Memory) FindOrderByRequestID(ctx context.Context, requestID string) (*domain.Order, error) {
	m.mu.RLock()
	id, ok := m.byRequest[requestID]
	m.mu.RUnlock()
	if !ok {
		return nil, ErrOrderNotFound
	}
	return m.GetOrder(ctx, id)
}

func (m *Memory) StartPayment(_ context.Context, orderID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	o, ok := m.orders[orderID]
	if !ok {
		return ErrOrderNotFound
	}
	if o.order.IsPaid() {
		return ErrOrderPaid
	}
	m.unbindLocked(o)
	o.order.Status = domain.StatusAwaitingPayment
	return nil
}

func (m *Memory) GetPaymentRecord(_ context.Context, orderID int64) (*domain.PaymentRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	o, ok := m.orders[orderID]
	if !ok {
		return nil, ErrOrderNotFound
	}
	if o.record == nil {
		return nil, ErrNoPaymentRecord
	}
	rec := *o.record
	return &rec, nil
}

func (m *Memory) SavePaymentRecord(_ context.Context, orderID int64, rec *domain.PaymentRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	o, ok := m.orders[orderID]
	if !ok {
		return ErrOrderNotFound
	}
	if o.order.IsPaid() {
		return ErrOrderPaid
	}
	m.unbindLocked(o)
	cp := *rec
	o.record = &cp
	o.order.PaymentRequestID = rec.RequestID
	m.byRequest[rec.RequestID] = orderID
	return nil
}

func (m *Memory) unbindLocked(o *memoryOrder) {
	if o.record != nil {
		delete(m.byRequest, o.record.RequestID)
	}
	o.record = nil
	o.order.PaymentRequestID = ""
}

func (m *Memory) AddNote(_ context.Context, orderID int64, text string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	o, ok := m.orders[orderID]
	if !ok {
		return ErrOrderNotFound
	}
	o.notes = append(o.notes, domain.Note{OrderID: orderID, Text: text, CreatedAt: m.now()})
	return nil
}

func (m *Memory) AddNoteIfAwaiting(_ context.Context, orderID int64, requestID, text string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	o, ok := m.orders[orderID]
	if !ok {
		return false, ErrOrderNotFound
	}
	if o.order.Status != domain.StatusAwaitingPayment || o.order.PaymentRequestID != requestID {
		return false, nil
	}
	o.notes = append(o.notes, domain.Note{OrderID: orderID, Text: text, CreatedAt: m.now()})
	return true, nil
}

func (m *Memory) ListNotes(_ context.Context, orderID int64) ([]domain.Note, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	o, ok := m.orders[orderID]
	if !ok {
		return nil, ErrOrderNotFound
	}
	return append([]domain.Note{}, o.notes...), nil
}

func (m *Memory) MarkPaid(_ context.Context, orderID int64, requestID, note string, at time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	o, ok := m.orders[orderID]
	if !ok {
		return false, ErrOrderNotFound
	}
	switch {
	case o.order.IsPaid():
		return false, nil
	case o.order.Status != domain.StatusAwaitingPayment:
		return false, ErrNotAwaiting
	case requestID != "" && o.order.PaymentRequestID != requestID:
		return false, ErrSuperseded
	}

	paidAt := at
	o.order.Status = domain.StatusPaid
	o.order.PaidAt = &paidAt
	o.notes = append(o.notes, domain.Note{OrderID: orderID, Text: note, CreatedAt: at})
	return true, nil
}
