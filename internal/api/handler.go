package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/punchamoorthee/lightningpay/internal/logging"
	"github.com/punchamoorthee/lightningpay/internal/service"
	"github.com/punchamoorthee/lightningpay/internal/store"
)

// Metrics
var (
	httpReqTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "lightningpay_http_requests_total",
		Help: "Total HTTP requests",
	}, []string{"method", "endpoint", "status"})

	httpLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "lightningpay_http_request_duration_seconds",
		Help:    "Request latency",
		Buckets: []float64{0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
	}, []string{"method", "endpoint"})
)

const (
	pollInterval = 10 // seconds
	checkPath    = "/api/v1/payments/check"
	maxBodyBytes = 1 << 20
)

type Handler struct {
	engine *service.Engine
	store  store.OrderStore
	tokens *Tokens
	log    logging.Logger
}

func NewHandler(engine *service.Engine, s store.OrderStore, tokens *Tokens, log logging.Logger) *Handler {
	if log == nil {
		log = logging.Nop{}
	}
	return &Handler{engine: engine, store: s, tokens: tokens, log: log}
}

// Router builds the full HTTP surface.
func (h *Handler) Router() *mux.Router {
	r := mux.NewRouter()
	r.Use(requestID, instrument)

	r.Handle("/metrics", promhttp.Handler())
	r.HandleFunc("/health", h.Health).Methods("GET")

	apiV1 := r.PathPrefix("/api/v1").Subrouter()
	apiV1.HandleFunc("/orders", h.CreateOrder).Methods("POST")
	apiV1.HandleFunc("/orders/{id:[0-9]+}", h.GetOrder).Methods("GET")
	apiV1.HandleFunc("/orders/{id:[0-9]+}/checkout", h.StartCheckout).Methods("POST")
	apiV1.HandleFunc("/orders/{id:[0-9]+}/payment", h.CheckoutView).Methods("GET")
	apiV1.HandleFunc("/payments/check", h.CheckPayment).Methods("POST")

	r.HandleFunc("/webhooks/strike", h.StrikeWebhook).Methods("POST")
	return r
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, r, http.StatusOK, map[string]string{"status": "ok"})
}

const requestIDHeader = "X-Request-ID"

// requestID tags every request with an id, reusing the caller's when it is
// a valid UUID.
func requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(requestIDHeader)
		if _, err := uuid.Parse(id); err != nil {
			id = uuid.NewString()
			r.Header.Set(requestIDHeader, id)
		}
		w.Header().Set(requestIDHeader, id)
		next.ServeHTTP(w, r)
	})
}

func instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		httpLatency.WithLabelValues(r.Method, endpoint(r)).Observe(time.Since(start).Seconds())
	})
}

// endpoint is the route template, so metrics do not explode per order id.
func endpoint(r *http.Request) string {
	if route := mux.CurrentRoute(r); route != nil {
		if tpl, err := route.GetPathTemplate(); err == nil {
			return tpl
		}
	}
	return "unmatched"
}

func pathID(r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	return id, err == nil && id > 0
}

// Helpers
func respondJSON(w http.ResponseWriter, r *http.Request, code int, payload any) {
	httpReqTotal.WithLabelValues(r.Method, endpoint(r), strconv.Itoa(code)).Inc()
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if payload != nil {
		json.NewEncoder(w).Encode(payload)
	}
}

func respondError(w http.ResponseWriter, r *http.Request, code int, msg string) {
	respondJSON(w, r, code, map[string]string{"error": msg})
}
