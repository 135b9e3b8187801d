package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/punchamoorthee/lightningpay/internal/api"
	"github.com/punchamoorthee/lightningpay/internal/config"
	"github.com/punchamoorthee/lightningpay/internal/domain"
	"github.com/punchamoorthee/lightningpay/internal/logging"
	"github.com/punchamoorthee/lightningpay/internal/service"
	"github.com/punchamoorthee/lightningpay/internal/store"
	"github.com/punchamoorthee/lightningpay/internal/strike"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	orders, err := store.Open(ctx, cfg.StoreDriver, cfg.DBSource)
	if err != nil {
		log.Fatalf("Unable to open %s store: %v", cfg.StoreDriver, err)
	}
	defer orders.Close()

	logger := logging.NewJSONLogger(os.Stdout)

	// Initialize Layers
	var paymentAPI service.PaymentAPI
	if cfg.StrikeAPIKey != "" {
		paymentAPI = strike.NewClient(strike.Config{
			APIKey:      cfg.StrikeAPIKey,
			Environment: cfg.StrikeEnvironment,
			BaseURL:     cfg.StrikeBaseURL,
			Timeout:     cfg.StrikeTimeout,
		})
	} else {
		log.Printf("STRIKE_API_KEY not set: invoices cannot be issued (trust webhook fallback: %v)", cfg.TrustWebhookFallback)
	}

	engine := service.NewEngine(orders, paymentAPI, service.Options{
		SettledStates:        cfg.SettledStates,
		TargetCurrency:       cfg.TargetCurrency,
		RequestExpiry:        cfg.RequestExpiry,
		APITimeout:           cfg.StrikeTimeout,
		StoreTimeout:         cfg.StoreTimeout,
		TrustWebhookFallback: cfg.TrustWebhookFallback,
		Logger:               logger,
	})
	engine.OnSettled(func(_ context.Context, o *domain.Order, trig service.Trigger) {
		logger.Info("order paid", map[string]any{
			"order_id":     o.ID,
			"order_number": o.Number,
			"total":        o.Total.String(),
			"source":       string(trig.Source),
		})
	})

	handler := api.NewHandler(engine, orders, api.NewTokens(cfg.TokenSecret, cfg.TokenTTL), logger)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           handler.Router(),
		ReadHeaderTimeout: 10 * time.Second,
		ErrorLog:          slog.NewLogLogger(logger.Slog().Handler(), slog.LevelError),
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	log.Printf("Server starting on :%s (store=%s, strike=%s, settled=%v)", cfg.Port, cfg.StoreDriver, cfg.StrikeEnvironment, cfg.SettledStates)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatal(err)
	}
}
