package main

import (
	"bytes"
	"testing"

	"github.com/punchamoorthee/lightningpay/internal/domain"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestPrintReceipts(t *testing.T) {
	states := domain.NewStateSet(domain.DefaultSettledLabels)

	var buf bytes.Buffer
	printReceipts(&buf, states, nil)
	assert.Equal(t, "No receives.\n", buf.String())

	buf.Reset()
	printReceipts(&buf, states, []domain.Receipt{
		{ID: "rcv_1", State: "PENDING"},
		{ID: "rcv_2", State: "completed", AmountReceived: &domain.Amount{Value: decimal.RequireFromString("0.0002"), Currency: "BTC"}},
	})
	out := buf.String()
	assert.Contains(t, out, "rcv_1")
	assert.Contains(t, out, "0.0002 BTC")
	assert.Contains(t, out, string(domain.ReceiptSettled))
	assert.Contains(t, out, "Settled.")
}
