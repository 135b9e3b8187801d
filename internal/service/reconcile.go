package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/punchamoorthee/lightningpay/internal/domain"
	"github.com/punchamoorthee/lightningpay/internal/logging"
	"github.com/punchamoorthee/lightningpay/internal/store"
	"github.com/punchamoorthee/lightningpay/internal/strike"
	"golang.org/x/sync/singleflight"
)

var ErrAPIUnavailable = errors.New("payment API not configured")

const (
	notePaidPoll    = "Lightning payment completed via Strike"
	notePaidWebhook = "Lightning payment completed via Strike webhook"
	notePending     = "Lightning payment detected (pending confirmation)"
	noteUnverified  = " (unverified: payment API unavailable)"
)

// PaymentAPI is the subset of the Strike client the engine depends on.
type PaymentAPI interface {
	CreatePaymentRequest(ctx context.Context, p strike.CreateParams) (*domain.PaymentRequest, error)
	ListReceipts(ctx context.Context, requestID string) ([]domain.Receipt, error)
}

// SettlementHook runs once per order, after the order has been marked paid.
type SettlementHook func(ctx context.Context, order *domain.Order, trig Trigger)

type Options struct {
	SettledStates  []string
	TargetCurrency string
	RequestExpiry  time.Duration
	APITimeout     time.Duration
	StoreTimeout   time.Duration

	// TrustWebhookFallback lets a completed webhook settle an order when the
	// API cannot be consulted.
	TrustWebhookFallback bool

	Logger    logging.Logger
	Now       func() time.Time
	OnSettled []SettlementHook
}

// Engine decides whether an order's active payment request has settled and
// performs the one-time transition to paid.
type Engine struct {
	store  store.OrderStore
	api    PaymentAPI
	states domain.StateSet
	opts   Options
	log    logging.Logger
	now    func() time.Time

	// lookups collapses concurrent receipt listings for the same request.
	lookups singleflight.Group

	// issues collapses concurrent payment request creation for the same order.
	issues singleflight.Group
}

// NewEngine builds an engine. api may be nil when no API key is configured.
func NewEngine(s store.OrderStore, api PaymentAPI, opts Options) *Engine {
	if len(opts.SettledStates) == 0 {
		opts.SettledStates = domain.DefaultSettledLabels
	}
	if opts.TargetCurrency == "" {
		opts.TargetCurrency = "USD"
	}
	if opts.RequestExpiry <= 0 {
		opts.RequestExpiry = 300 * time.Second
	}
	if opts.APITimeout <= 0 {
		opts.APITimeout = 30 * time.Second
	}
	if opts.StoreTimeout <= 0 {
		opts.StoreTimeout = 5 * time.Second
	}
	if opts.Logger == nil {
		opts.Logger = logging.Nop{}
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Engine{
		store:  s,
		api:    api,
		states: domain.NewStateSet(opts.SettledStates),
		opts:   opts,
		log:    opts.Logger,
		now:    opts.Now,
	}
}

// OnSettled registers a hook for the paid transition.
func (e *Engine) OnSettled(h SettlementHook) {
	e.opts.OnSettled = append(e.opts.OnSettled, h)
}

func (e *Engine) States() domain.StateSet { return e.states }

func (e *Engine) storeCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, e.opts.StoreTimeout)
}

// Reconcile checks the order's active payment request and transitions the
// order to paid if any receipt is settled. It is idempotent and safe to call
// concurrently for the same order from any number of triggers.
func (e *Engine) Reconcile(ctx context.Context, orderID int64, trig Trigger) Outcome {
	out := e.reconcile(ctx, orderID, trig)
	reconcileTotal.WithLabelValues(string(trig.Source), string(out.Kind)).Inc()

	fields := map[string]any{
		"order_id":   orderID,
		"request_id": trig.RequestID,
		"source":     string(trig.Source),
		"outcome":    string(out.Kind),
	}
	if out.Detail != "" {
		fields["detail"] = out.Detail
	}
	switch out.Kind {
	case OutcomeAPIError, OutcomeFailed:
		e.log.Error("reconcile failed", fields)
	case OutcomeSettledNow, OutcomeInvalid:
		e.log.Info("reconcile", fields)
	}
	return out
}

func (e *Engine) reconcile(ctx context.Context, orderID int64, trig Trigger) Outcome {
	sctx, cancel := e.storeCtx(ctx)
	order, err := e.store.GetOrder(sctx, orderID)
	cancel()
	if errors.Is(err, store.ErrOrderNotFound) {
		return Outcome{Kind: OutcomeInvalid, Detail: "invalid order", Err: store.ErrOrderNotFound}
	}
	if err != nil {
		return Outcome{Kind: OutcomeFailed, Detail: err.Error()}
	}

	if order.IsPaid() {
		return Outcome{Kind: OutcomeAlreadyPaid}
	}
	if order.Status != domain.StatusAwaitingPayment {
		return Outcome{Kind: OutcomeInvalid, Detail: "order is " + string(order.Status), Err: store.ErrNotAwaiting}
	}

	sctx, cancel = e.storeCtx(ctx)
	rec, err := e.store.GetPaymentRecord(sctx, orderID)
	cancel()
	if errors.Is(err, store.ErrNoPaymentRecord) {
		return Outcome{Kind: OutcomeInvalid, Detail: "no payment data found", Err: store.ErrNoPaymentRecord}
	}
	if err != nil {
		return Outcome{Kind: OutcomeFailed, Detail: err.Error()}
	}

	if trig.RequestID == "" {
		trig.RequestID = rec.RequestID
	}
	if trig.RequestID != rec.RequestID {
		return Outcome{Kind: OutcomeInvalid, Detail: "payment request superseded", Err: store.ErrSuperseded}
	}

	if trig.Source == SourceWebhook && trig.Event == EventReceivePending {
		sctx, cancel = e.storeCtx(ctx)
		added, err := e.store.AddNoteIfAwaiting(sctx, orderID, trig.RequestID, notePending)
		cancel()
		if err != nil {
			return Outcome{Kind: OutcomeFailed, Detail: err.Error()}
		}
		if !added {
			// Lost a race with settlement or a refresh; report the order as it is now.
			return e.reconcileAfterRace(ctx, orderID)
		}
		return Outcome{Kind: OutcomePending}
	}

	receipts, err := e.listReceipts(ctx, trig.RequestID, trig.completedWebhook())
	if err != nil {
		if e.canTrustWebhook(trig, err) {
			out := e.settle(ctx, order, trig, nil, true)
			out.Degraded = out.Kind == OutcomeSettledNow
			return out
		}
		return Outcome{Kind: OutcomeAPIError, Detail: err.Error()}
	}

	if e.states.AnySettled(receipts) {
		return e.settle(ctx, order, trig, receipts, false)
	}

	out := Outcome{Kind: OutcomeWaiting, Receipts: receipts, Expired: rec.Expired(e.now())}
	if len(receipts) > 0 {
		out.Kind = OutcomePending
	}
	return out
}

func (e *Engine) reconcileAfterRace(ctx context.Context, orderID int64) Outcome {
	sctx, cancel := e.storeCtx(ctx)
	order, err := e.store.GetOrder(sctx, orderID)
	cancel()
	switch {
	case err != nil:
		return Outcome{Kind: OutcomeFailed, Detail: err.Error()}
	case order.IsPaid():
		return Outcome{Kind: OutcomeAlreadyPaid}
	case order.Status != domain.StatusAwaitingPayment:
		return Outcome{Kind: OutcomeInvalid, Detail: "order is " + string(order.Status), Err: store.ErrNotAwaiting}
	}
	return Outcome{Kind: OutcomeInvalid, Detail: "payment request superseded", Err: store.ErrSuperseded}
}

// canTrustWebhook reports whether the degraded mode applies: a completed
// webhook arrived while the API could not be consulted at all.
func (e *Engine) canTrustWebhook(trig Trigger, err error) bool {
	if !e.opts.TrustWebhookFallback || !trig.completedWebhook() {
		return false
	}
	return errors.Is(err, ErrAPIUnavailable) || strike.IsTransport(err)
}

// listReceipts queries the API, sharing an in-flight lookup for the same
// request. fresh detaches the caller from any lookup already in flight, which
// may predate the event that caused the call.
func (e *Engine) listReceipts(ctx context.Context, requestID string, fresh bool) ([]domain.Receipt, error) {
	if e.api == nil {
		return nil, ErrAPIUnavailable
	}
	if fresh {
		e.lookups.Forget(requestID)
	}

	// The shared call must not be cancelled by whichever caller started it.
	base := context.WithoutCancel(ctx)
	v, err, _ := e.lookups.Do(requestID, func() (any, error) {
		actx, cancel := context.WithTimeout(base, e.opts.APITimeout)
		defer cancel()
		return e.api.ListReceipts(actx, requestID)
	})
	if err != nil {
		return nil, err
	}
	receipts, _ := v.([]domain.Receipt)
	return receipts, nil
}

func (e *Engine) settle(ctx context.Context, order *domain.Order, trig Trigger, receipts []domain.Receipt, degraded bool) Outcome {
	note := notePaidPoll
	if trig.Source == SourceWebhook {
		note = notePaidWebhook
	}
	if degraded {
		note += noteUnverified
	}

	paidAt := e.now()
	sctx, cancel := e.storeCtx(ctx)
	ok, err := e.store.MarkPaid(sctx, order.ID, trig.RequestID, note, paidAt)
	cancel()
	switch {
	case errors.Is(err, store.ErrSuperseded):
		return Outcome{Kind: OutcomeInvalid, Detail: "payment request superseded", Err: store.ErrSuperseded, Receipts: receipts}
	case errors.Is(err, store.ErrOrderNotFound), errors.Is(err, store.ErrNotAwaiting):
		return Outcome{Kind: OutcomeInvalid, Detail: err.Error(), Err: err, Receipts: receipts}
	case err != nil:
		return Outcome{Kind: OutcomeFailed, Detail: err.Error(), Receipts: receipts}
	case !ok:
		return Outcome{Kind: OutcomeAlreadyPaid, Receipts: receipts}
	}

	mode := "verified"
	if degraded {
		mode = "unverified"
	}
	settlementsTotal.WithLabelValues(string(trig.Source), mode).Inc()

	order.Status = domain.StatusPaid
	order.PaidAt = &paidAt
	for _, h := range e.opts.OnSettled {
		h(ctx, order, trig)
	}

	return Outcome{Kind: OutcomeSettledNow, Receipts: receipts}
}

// ReconcileRequest resolves requestID to its order and reconciles it. A
// request id that no longer resolves (unknown or superseded) is invalid.
func (e *Engine) ReconcileRequest(ctx context.Context, trig Trigger) Outcome {
	sctx, cancel := e.storeCtx(ctx)
	order, err := e.store.FindOrderByRequestID(sctx, trig.RequestID)
	cancel()
	if errors.Is(err, store.ErrOrderNotFound) {
		out := Outcome{Kind: OutcomeInvalid, Detail: fmt.Sprintf("no order for request %q", trig.RequestID), Err: store.ErrOrderNotFound}
		reconcileTotal.WithLabelValues(string(trig.Source), string(out.Kind)).Inc()
		e.log.Info("reconcile", map[string]any{
			"request_id": trig.RequestID,
			"source":     string(trig.Source),
			"outcome":    string(out.Kind),
		})
		return out
	}
	if err != nil {
		reconcileTotal.WithLabelValues(string(trig.Source), string(OutcomeFailed)).Inc()
		return Outcome{Kind: OutcomeFailed, Detail: err.Error()}
	}
	return e.Reconcile(ctx, order.ID, trig)
}
