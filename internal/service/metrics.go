package service

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	reconcileTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "lightningpay_reconcile_total",
		Help: "Reconcile calls by trigger source and outcome",
	}, []string{"source", "outcome"})

	settlementsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "lightningpay_settlements_total",
		Help: "Orders transitioned to paid, by trigger source and verification mode",
	}, []string{"source", "mode"})

	paymentRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "lightningpay_payment_requests_total",
		Help: "Payment requests issued or reused for checkout",
	}, []string{"result"})
)
