package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dejobratic/lantern/internal/auth"
	carthttp "github.com/dejobratic/lantern/internal/cart/adapters/http"
	cartredis "github.com/dejobratic/lantern/internal/cart/adapters/redis"
	cartapp "github.com/dejobratic/lantern/internal/cart/app"
	"github.com/dejobratic/lantern/internal/config"
	"github.com/dejobratic/lantern/internal/database"
	discountadapters "github.com/dejobratic/lantern/internal/discount/adapters"
	discounthttp "github.com/dejobratic/lantern/internal/discount/adapters/http"
	discountpostgres "github.com/dejobratic/lantern/internal/discount/adapters/postgres"
	discountapp "github.com/dejobratic/lantern/internal/discount/app"
	"github.com/dejobratic/lantern/internal/httpx"
	idempostgres "github.com/dejobratic/lantern/internal/idempotency/postgres"
	idemredis "github.com/dejobratic/lantern/internal/idempotency/redis"
	"github.com/dejobratic/lantern/internal/kafka"
	ordersadapters "github.com/dejobratic/lantern/internal/orders/adapters"
	ordershttp "github.com/dejobratic/lantern/internal/orders/adapters/http"
	"github.com/dejobratic/lantern/internal/orders/adapters/notifier"
	orderspostgres "github.com/dejobratic/lantern/internal/orders/adapters/postgres"
	ordersapp "github.com/dejobratic/lantern/internal/orders/app"
	"github.com/dejobratic/lantern/internal/orders/app/commands"
	ordersmetrics "github.com/dejobratic/lantern/internal/orders/metrics"
	"github.com/dejobratic/lantern/internal/orders/ports"
	"github.com/dejobratic/lantern/internal/payment"
	"github.com/dejobratic/lantern/internal/telemetry"
	"github.com/dejobratic/lantern/internal/validity"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"
	goredis "github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

func main() {
	if err := run(); err != nil {
		slog.Error("lantern api stopped", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	level, err := telemetry.ParseLevel(cfg.Telemetry.LogLevel)
	if err != nil {
		return err
	}
	logger := telemetry.NewLogger(os.Stdout, level,
		slog.String("service", cfg.Service.Name),
		slog.String("version", cfg.Service.Version),
		slog.String("environment", cfg.Service.Environment),
	)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	tel, err := telemetry.Initialize(ctx, telemetry.Config{
		ServiceName:    cfg.Service.Name,
		ServiceVersion: cfg.Service.Version,
		Environment:    cfg.Service.Environment,
		OTLPEndpoint:   cfg.Telemetry.OTelEndpoint,
		EnableTracing:  cfg.Telemetry.EnableTracing,
		EnableMetrics:  cfg.Telemetry.EnableMetrics,
		SampleRate:     cfg.Telemetry.SampleRate,
	})
	if err != nil {
		return fmt.Errorf("initialize telemetry: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tel.Shutdown(shutdownCtx); err != nil {
			logger.Error("failed to flush telemetry", "error", err)
		}
	}()

	meter := tel.Meter("lantern")
	dbMetrics, err := database.NewMetrics(meter)
	if err != nil {
		return fmt.Errorf("create database metrics: %w", err)
	}
	kafkaMetrics, err := kafka.NewMetrics(meter)
	if err != nil {
		return fmt.Errorf("create kafka metrics: %w", err)
	}
	orderMetrics, err := ordersmetrics.NewMetrics(meter)
	if err != nil {
		return fmt.Errorf("create order metrics: %w", err)
	}
	httpMetrics, err := httpx.NewMetrics(meter)
	if err != nil {
		return fmt.Errorf("create http metrics: %w", err)
	}

	pool, err := database.NewPool(ctx, cfg.Database.URL)
	if err != nil {
		return fmt.Errorf("create database pool: %w", err)
	}
	defer pool.Close()

	if cfg.Database.AutoMigrate {
		logger.Info("running database migrations", "path", cfg.Database.MigrationsPath)
		status, err := database.RunMigrations(cfg.Database.URL, cfg.Database.MigrationsPath)
		if err != nil {
			return fmt.Errorf("run migrations: %w", err)
		}
		logger.Info("migrations completed", "version", status.Version, "applied", status.Applied)
	}

	rdb := goredis.NewClient(&goredis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer rdb.Close()

	events, closeEvents, err := newEventBus(cfg.Kafka, logger)
	if err != nil {
		return err
	}
	defer closeEvents()

	gateway, err := payment.NewGateway(payment.Config{
		MerchantID:  cfg.Payment.MerchantID,
		HashKey:     cfg.Payment.HashKey,
		ServiceURL:  cfg.Payment.ServiceURL,
		CallbackURL: cfg.Payment.CallbackURL,
		ReturnURL:   cfg.Payment.ReturnURL,
	})
	if err != nil {
		return fmt.Errorf("create payment gateway: %w", err)
	}

	var idem ports.IdempotencyStore = idempostgres.NewStore(pool)
	if cfg.Checkout.IdempotencyBackend == config.IdempotencyRedis {
		idem = idemredis.NewStore(rdb)
	}

	carts := cartapp.NewService(cartredis.NewRepository(rdb, 0))
	discounts := discountapp.NewService(
		discountadapters.NewObservableRepository(discountpostgres.NewRepository(pool), dbMetrics))
	orders := ordersapp.NewService(ordersapp.Dependencies{
		Repo:        ordersadapters.NewObservableRepository(orderspostgres.NewRepository(pool), dbMetrics),
		Discounts:   discounts,
		Gateway:     gateway,
		Idempotency: idem,
		Events:      ordersadapters.NewObservableEventBus(events, kafkaMetrics),
		Carts:       carts,
		Notifier:    notifier.NewLogNotifier(logger),
		Tracker:     validity.NewTracker(cfg.Checkout.ExpiringSoonWithin),
	}, ordersapp.Options{
		Checkout: commands.CheckoutOptions{
			IdempotencyWindow: cfg.Checkout.IdempotencyWindow,
			PlatformFeeRate:   cfg.Checkout.PlatformFeeRate,
		},
		Fulfillment: commands.FulfillmentOptions{
			DefaultDurationMonths: cfg.Checkout.DefaultDurationMonths,
			CertificateBaseURL:    cfg.Checkout.CertificateBaseURL,
		},
	}, logger, orderMetrics)

	ordersHandler := ordershttp.NewHandler(orders, carts, logger)
	authenticator := auth.NewAuthenticator(cfg.Auth.JWTSecret, cfg.Auth.Issuer)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(httpx.Recover(logger))
	r.Use(httpx.AccessLog(logger))
	r.Use(httpx.WithMetrics(httpMetrics))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		httpx.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Get("/readyz", readiness(pool, rdb))
	ordersHandler.RegisterCallback(r)

	r.Group(func(r chi.Router) {
		r.Use(authenticator.Middleware)
		carthttp.NewHandler(carts).Register(r)
		discounthttp.NewHandler(discounts).Register(r)
		ordersHandler.Register(r)
	})

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTP.Port),
		Handler:           otelhttp.NewHandler(r, "lantern-api"),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("http server starting", "port", cfg.HTTP.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.HTTP.ShutdownGrace)*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown: %w", err)
	}
	logger.Info("http server stopped")
	return nil
}

// newEventBus publishes to Kafka when brokers are configured and logs events otherwise.
func newEventBus(cfg config.KafkaConfig, logger *slog.Logger) (ports.EventBus, func(), error) {
	if len(cfg.Brokers) == 0 {
		logger.Warn("no kafka brokers configured, order events will only be logged")
		return kafka.NewNoopEventBus(logger), func() {}, nil
	}

	publisher, err := kafka.NewPublisher(cfg.Brokers, cfg.TopicPrefix)
	if err != nil {
		return nil, nil, fmt.Errorf("create kafka publisher: %w", err)
	}
	return publisher, func() {
		if err := publisher.Close(); err != nil {
			logger.Error("failed to close kafka publisher", "error", err)
		}
	}, nil
}

func readiness(pool *pgxpool.Pool, rdb *goredis.Client) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := database.CheckHealth(r.Context(), pool); err != nil {
			httpx.WriteJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "not ready", "error": err.Error()})
			return
		}
		if err := rdb.Ping(r.Context()).Err(); err != nil {
			httpx.WriteJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "not ready", "error": err.Error()})
			return
		}
		httpx.WriteJSON(w, http.StatusOK, map[string]string{"status": "ready"})
	}
}
