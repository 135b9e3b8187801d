package domain

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestStateSet_Normalize(t *testing.T) {
	set := NewStateSet(DefaultSettledLabels)

	cases := []struct {
		label string
		want  ReceiptState
	}{
		{"COMPLETED", ReceiptSettled},
		{"completed", ReceiptSettled},
		{" Settled ", ReceiptSettled},
		{"paid", ReceiptSettled},
		{"PENDING", ReceiptPending},
		{"pending", ReceiptPending},
		{"FOO", ReceiptOther},
		{"", ReceiptOther},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, set.Normalize(tc.label), "label %q", tc.label)
	}
}

func TestStateSet_OnlyConfiguredLabelsSettle(t *testing.T) {
	set := NewStateSet([]string{"completed", "", "  "})

	assert.Equal(t, ReceiptSettled, set.Normalize("COMPLETED"))
	assert.Equal(t, ReceiptOther, set.Normalize("SETTLED"))
	assert.ElementsMatch(t, []string{"COMPLETED"}, set.Labels())
}

func TestStateSet_AnySettled(t *testing.T) {
	set := NewStateSet(DefaultSettledLabels)

	assert.False(t, set.AnySettled(nil))
	assert.False(t, set.AnySettled([]Receipt{{State: "PENDING"}, {State: "FAILED"}}))
	assert.True(t, set.AnySettled([]Receipt{{State: "PENDING"}, {State: "Completed"}}))
}

func TestPaymentRecord_Expired(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	req := &PaymentRequest{
		ID:               "req_1",
		Invoice:          "lnbc1...",
		RequestedAmount:  Amount{Value: decimal.RequireFromString("10.00"), Currency: "USD"},
		SettlementAmount: Amount{Value: decimal.RequireFromString("0.00011"), Currency: "BTC"},
		ExpiresAt:        now.Add(300 * time.Second),
		CreatedAt:        now,
	}
	rec := NewPaymentRecord(req)

	assert.Equal(t, "req_1", rec.RequestID)
	assert.True(t, rec.USDAmount.Equal(decimal.RequireFromString("10")))
	assert.False(t, rec.Expired(now.Add(299*time.Second)))
	assert.True(t, rec.Expired(now.Add(300*time.Second)))
	assert.True(t, req.Expired(now.Add(time.Hour)))
}
