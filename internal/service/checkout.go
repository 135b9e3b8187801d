package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/punchamoorthee/lightningpay/internal/domain"
	"github.com/punchamoorthee/lightningpay/internal/store"
	"github.com/punchamoorthee/lightningpay/internal/strike"
)

// EnsurePaymentRequest returns the order's active payment record, issuing a
// new request when none exists or the stored one has expired.
func (e *Engine) EnsurePaymentRequest(ctx context.Context, orderID int64) (*domain.PaymentRecord, error) {
	order, err := e.payableOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}

	sctx, cancel := e.storeCtx(ctx)
	rec, err := e.store.GetPaymentRecord(sctx, orderID)
	cancel()
	switch {
	case err == nil && order.PaymentRequestID == rec.RequestID && !rec.Expired(e.now()):
		paymentRequestsTotal.WithLabelValues("reused").Inc()
		return rec, nil
	case err != nil && !errors.Is(err, store.ErrNoPaymentRecord):
		return nil, err
	}

	return e.issue(ctx, order)
}

// RefreshPaymentRequest unconditionally issues a new request for the order.
// The previous request id stops resolving to the order once this returns.
func (e *Engine) RefreshPaymentRequest(ctx context.Context, orderID int64) (*domain.PaymentRecord, error) {
	order, err := e.payableOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	return e.issue(ctx, order)
}

// StartPayment puts the order into awaiting payment and discards any prior
// payment data, so the next checkout view issues a fresh request.
func (e *Engine) StartPayment(ctx context.Context, orderID int64) error {
	sctx, cancel := e.storeCtx(ctx)
	defer cancel()
	if err := e.store.StartPayment(sctx, orderID); err != nil {
		return err
	}
	e.log.Info("payment started", map[string]any{"order_id": orderID})
	return nil
}

func (e *Engine) payableOrder(ctx context.Context, orderID int64) (*domain.Order, error) {
	sctx, cancel := e.storeCtx(ctx)
	order, err := e.store.GetOrder(sctx, orderID)
	cancel()
	if err != nil {
		return nil, err
	}
	if order.IsPaid() {
		return nil, store.ErrOrderPaid
	}
	if order.Status != domain.StatusAwaitingPayment {
		return nil, store.ErrNotAwaiting
	}
	return order, nil
}

// issue creates and persists a new request. Concurrent issues for the same
// order share one API call.
func (e *Engine) issue(ctx context.Context, order *domain.Order) (*domain.PaymentRecord, error) {
	if e.api == nil {
		return nil, ErrAPIUnavailable
	}

	base := context.WithoutCancel(ctx)
	v, err, _ := e.issues.Do(strconv.FormatInt(order.ID, 10), func() (any, error) {
		actx, cancel := context.WithTimeout(base, e.opts.APITimeout)
		req, err := e.api.CreatePaymentRequest(actx, strike.CreateParams{
			Amount:         order.Total.Value,
			Currency:       order.Total.Currency,
			Description:    fmt.Sprintf("Order #%s", order.Number),
			TargetCurrency: e.opts.TargetCurrency,
			ExpirySeconds:  int(e.opts.RequestExpiry / time.Second),
		})
		cancel()
		if err != nil {
			return nil, err
		}
		if req.ExpiresAt.IsZero() {
			req.ExpiresAt = e.now().Add(e.opts.RequestExpiry)
		}

		rec := domain.NewPaymentRecord(req)
		sctx, cancel := e.storeCtx(base)
		defer cancel()
		if err := e.store.SavePaymentRecord(sctx, order.ID, rec); err != nil {
			return nil, err
		}
		return rec, nil
	})
	if err != nil {
		paymentRequestsTotal.WithLabelValues("error").Inc()
		e.log.Error("payment request failed", map[string]any{"order_id": order.ID, "error": err.Error()})
		return nil, err
	}

	rec := v.(*domain.PaymentRecord)
	paymentRequestsTotal.WithLabelValues("issued").Inc()
	e.log.Info("payment request issued", map[string]any{
		"order_id":   order.ID,
		"request_id": rec.RequestID,
		"expires_at": rec.ExpiresAt.Format(time.RFC3339),
	})
	return rec, nil
}
