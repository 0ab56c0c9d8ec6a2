// Command server runs the HTTP bridge between the billing provider and the
// PIX QR-code provider.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/mihaimyh/pixbridge/pkg/api"
	prommetrics "github.com/mihaimyh/pixbridge/pkg/billing/metrics/prometheus"
	"github.com/mihaimyh/pixbridge/pkg/billing/stripe"
	"github.com/mihaimyh/pixbridge/pkg/config"
	"github.com/mihaimyh/pixbridge/pkg/pix"
	"github.com/mihaimyh/pixbridge/pkg/reconcile"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		bootLog := zerolog.New(os.Stderr)
		bootLog.Fatal().Err(err).Msg("failed to load config")
	}

	log := newLogger(cfg.Log)

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	metrics := prommetrics.NewMetrics(reg, cfg.MetricsNamespace)

	billingClient, err := stripe.NewClient(stripe.Config{
		APIKey:         cfg.Stripe.SecretKey,
		DefaultPriceID: cfg.Stripe.PriceID,
		Logger:         log.With().Str("component", "stripe").Logger(),
		Metrics:        metrics,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create billing client")
	}

	pixClient, err := pix.NewClient(pix.Config{
		APIKey:  cfg.Pix.APIKey,
		BaseURL: cfg.Pix.BaseURL,
		Logger:  log.With().Str("component", "pix").Logger(),
		Metrics: metrics,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create pix client")
	}

	reconciler, err := reconcile.NewReconciler(reconcile.Config{
		Billing: billingClient,
		Pix:     pixClient,
		Logger:  log.With().Str("component", "reconcile").Logger(),
		Metrics: metrics,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create reconciler")
	}

	handler, err := api.NewHandler(api.Config{
		Billing:       billingClient,
		Pix:           pixClient,
		Reconciler:    reconciler,
		WebhookSecret: cfg.Webhook.Secret,
		Logger:        log.With().Str("component", "api").Logger(),
		Metrics:       metrics,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create handler")
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(log))
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	r.Mount("/", handler.Routes())

	srv := &http.Server{
		Addr:              cfg.HTTP.Addr(),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	go func() {
		log.Info().Str("addr", srv.Addr).Msg("server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server failed")
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	log.Info().Msg("shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("shutdown failed")
	}
}

func newLogger(cfg config.Log) zerolog.Logger {
	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil {
		level = zerolog.InfoLevel
	}

	var log zerolog.Logger
	if cfg.Format == "console" {
		log = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr})
	} else {
		log = zerolog.New(os.Stderr)
	}
	return log.Level(level).With().Timestamp().Logger()
}

func requestLogger(log zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)
			log.Info().
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Int("status", ww.Status()).
				Dur("duration", time.Since(start)).
				Str("request_id", middleware.GetReqID(r.Context())).
				Msg("request")
		})
	}
}
