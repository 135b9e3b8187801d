package store_test

import (
	"context"
	"os"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/punchamoorthee/lightningpay/internal/domain"
	"github.com/punchamoorthee/lightningpay/internal/store"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type storeFactory func(t *testing.T) store.OrderStore

func factories() map[string]storeFactory {
	f := map[string]storeFactory{
		"memory": func(t *testing.T) store.OrderStore {
			return store.NewMemory()
		},
		"sqlite": func(t *testing.T) store.OrderStore {
			s, err := store.OpenSQLite(":memory:")
			require.NoError(t, err)
			t.Cleanup(s.Close)
			return s
		},
	}
	if dsn := os.Getenv("TEST_DB_SOURCE"); dsn != "" {
		f["postgres"] = func(t *testing.T) store.OrderStore {
			ctx := context.Background()
			s, err := store.NewPostgres(ctx, dsn)
			require.NoError(t, err)
			require.NoError(t, s.Migrate(ctx))
			t.Cleanup(s.Close)
			return s
		}
	}
	return f
}

func usd(v string) domain.Amount {
	return domain.Amount{Value: decimal.RequireFromString(v), Currency: "USD"}
}

func record(id string, expires time.Time) *domain.PaymentRecord {
	return &domain.PaymentRecord{
		RequestID: id,
		Invoice:   "lnbc-" + id,
		BTCAmount: decimal.RequireFromString("0.0002"),
		USDAmount: decimal.RequireFromString("20"),
		ExpiresAt: expires,
		CreatedAt: expires.Add(-5 * time.Minute),
	}
}

func TestOrderStoreContract(t *testing.T) {
	for name, newStore := range factories() {
		newStore := newStore
		t.Run(name, func(t *testing.T) {
			t.Run("create and get", func(t *testing.T) {
				ctx := context.Background()
				s := newStore(t)

				o, err := s.CreateOrder(ctx, "", usd("20.00"))
				require.NoError(t, err)
				assert.Equal(t, domain.StatusAwaitingPayment, o.Status)
				assert.NotEmpty(t, o.Number)

				got, err := s.GetOrder(ctx, o.ID)
				require.NoError(t, err)
				assert.True(t, got.Total.Value.Equal(decimal.RequireFromString("20")))
				assert.Equal(t, "USD", got.Total.Currency)

				_, err = s.GetOrder(ctx, o.ID+1000)
				assert.ErrorIs(t, err, store.ErrOrderNotFound)

				_, err = s.GetPaymentRecord(ctx, o.ID)
				assert.ErrorIs(t, err, store.ErrNoPaymentRecord)
			})

			t.Run("save supersedes previous record", func(t *testing.T) {
				ctx := context.Background()
				s := newStore(t)
				o, err := s.CreateOrder(ctx, "A-1", usd("20"))
				require.NoError(t, err)

				exp := time.Now().Add(5 * time.Minute).UTC().Truncate(time.Second)
				require.NoError(t, s.SavePaymentRecord(ctx, o.ID, record("req_old", exp)))
				require.NoError(t, s.SavePaymentRecord(ctx, o.ID, record("req_new", exp)))

				rec, err := s.GetPaymentRecord(ctx, o.ID)
				require.NoError(t, err)
				assert.Equal(t, "req_new", rec.RequestID)
				assert.True(t, rec.ExpiresAt.Equal(exp))

				_, err = s.FindOrderByRequestID(ctx, "req_old")
				assert.ErrorIs(t, err, store.ErrOrderNotFound)

				found, err := s.FindOrderByRequestID(ctx, "req_new")
				require.NoError(t, err)
				assert.Equal(t, o.ID, found.ID)
				assert.Equal(t, "req_new", found.PaymentRequestID)

				paid, err := s.MarkPaid(ctx, o.ID, "req_old", "late", time.Now())
				assert.ErrorIs(t, err, store.ErrSuperseded)
				assert.False(t, paid)
			})

			t.Run("mark paid once", func(t *testing.T) {
				ctx := context.Background()
				s := newStore(t)
				o, err := s.CreateOrder(ctx, "", usd("5"))
				require.NoError(t, err)
				require.NoError(t, s.SavePaymentRecord(ctx, o.ID, record("req_1", time.Now().Add(time.Minute))))

				ok, err := s.MarkPaid(ctx, o.ID, "req_1", "paid", time.Now())
				require.NoError(t, err)
				assert.True(t, ok)

				ok, err = s.MarkPaid(ctx, o.ID, "req_1", "paid", time.Now())
				require.NoError(t, err)
				assert.False(t, ok)

				got, err := s.GetOrder(ctx, o.ID)
				require.NoError(t, err)
				assert.Equal(t, domain.StatusPaid, got.Status)
				require.NotNil(t, got.PaidAt)

				notes, err := s.ListNotes(ctx, o.ID)
				require.NoError(t, err)
				require.Len(t, notes, 1)
				assert.Equal(t, "paid", notes[0].Text)

				assert.ErrorIs(t, s.SavePaymentRecord(ctx, o.ID, record("req_2", time.Now())), store.ErrOrderPaid)
				assert.ErrorIs(t, s.StartPayment(ctx, o.ID), store.ErrOrderPaid)
			})

			t.Run("start payment clears record", func(t *testing.T) {
				ctx := context.Background()
				s := newStore(t)
				o, err := s.CreateOrder(ctx, "", usd("5"))
				require.NoError(t, err)
				require.NoError(t, s.SavePaymentRecord(ctx, o.ID, record("req_1", time.Now().Add(time.Minute))))

				require.NoError(t, s.StartPayment(ctx, o.ID))
				_, err = s.GetPaymentRecord(ctx, o.ID)
				assert.ErrorIs(t, err, store.ErrNoPaymentRecord)
				_, err = s.FindOrderByRequestID(ctx, "req_1")
				assert.ErrorIs(t, err, store.ErrOrderNotFound)

				assert.ErrorIs(t, s.StartPayment(ctx, o.ID+1000), store.ErrOrderNotFound)
			})

			t.Run("notes", func(t *testing.T) {
				ctx := context.Background()
				s := newStore(t)
				o, err := s.CreateOrder(ctx, "", usd("5"))
				require.NoError(t, err)

				require.NoError(t, s.AddNote(ctx, o.ID, "first"))
				require.NoError(t, s.AddNote(ctx, o.ID, "second"))
				notes, err := s.ListNotes(ctx, o.ID)
				require.NoError(t, err)
				require.Len(t, notes, 2)
				assert.Equal(t, "first", notes[0].Text)
				assert.Equal(t, "second", notes[1].Text)

				assert.ErrorIs(t, s.AddNote(ctx, o.ID+1000, "x"), store.ErrOrderNotFound)
			})

			t.Run("note only while awaiting", func(t *testing.T) {
				ctx := context.Background()
				s := newStore(t)
				o, err := s.CreateOrder(ctx, "", usd("5"))
				require.NoError(t, err)
				require.NoError(t, s.SavePaymentRecord(ctx, o.ID, record("req_1", time.Now().Add(time.Minute))))

				added, err := s.AddNoteIfAwaiting(ctx, o.ID, "req_1", "pending")
				require.NoError(t, err)
				assert.True(t, added)

				added, err = s.AddNoteIfAwaiting(ctx, o.ID, "req_old", "stale")
				require.NoError(t, err)
				assert.False(t, added, "superseded request")

				ok, err := s.MarkPaid(ctx, o.ID, "req_1", "paid", time.Now())
				require.NoError(t, err)
				require.True(t, ok)

				added, err = s.AddNoteIfAwaiting(ctx, o.ID, "req_1", "late pending")
				require.NoError(t, err)
				assert.False(t, added, "paid order")

				notes, err := s.ListNotes(ctx, o.ID)
				require.NoError(t, err)
				require.Len(t, notes, 2)
				assert.Equal(t, "pending", notes[0].Text)
				assert.Equal(t, "paid", notes[1].Text)

				_, err = s.AddNoteIfAwaiting(ctx, o.ID+1000, "req_1", "x")
				assert.ErrorIs(t, err, store.ErrOrderNotFound)
			})

			t.Run("concurrent mark paid", func(t *testing.T) {
				ctx := context.Background()
				s := newStore(t)
				o, err := s.CreateOrder(ctx, "", usd("5"))
				require.NoError(t, err)
				require.NoError(t, s.SavePaymentRecord(ctx, o.ID, record("req_1", time.Now().Add(time.Minute))))

				var wins int64
				var wg sync.WaitGroup
				for i := 0; i < 16; i++ {
					wg.Add(1)
					go func() {
						defer wg.Done()
						ok, err := s.MarkPaid(ctx, o.ID, "req_1", "paid", time.Now())
						assert.NoError(t, err)
						if ok {
							atomic.AddInt64(&wins, 1)
						}
					}()
				}
				wg.Wait()

				assert.Equal(t, int64(1), wins)
				notes, err := s.ListNotes(ctx, o.ID)
				require.NoError(t, err)
				assert.Len(t, notes, 1)
			})
		})
	}
}
