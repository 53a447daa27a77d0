package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/ngophong010/bamito-backend-sub000/internal/cart"
	"github.com/ngophong010/bamito-backend-sub000/internal/catalog"
	"github.com/ngophong010/bamito-backend-sub000/internal/config"
	"github.com/ngophong010/bamito-backend-sub000/internal/db"
	handlerHttp "github.com/ngophong010/bamito-backend-sub000/internal/handler/http"
	"github.com/ngophong010/bamito-backend-sub000/internal/inventory"
	"github.com/ngophong010/bamito-backend-sub000/internal/notify"
	"github.com/ngophong010/bamito-backend-sub000/internal/order"
	"github.com/ngophong010/bamito-backend-sub000/internal/payment"
	"github.com/ngophong010/bamito-backend-sub000/internal/voucher"
)

func main() {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	log.Logger = log.With().Str("service", "bamito").Logger()

	log.Info().Msg("Bamito backend starting...")

	cfg, err := config.Load(".env")
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load config")
	}

	if err := db.ApplyMigrations(cfg.Postgres); err != nil {
		log.Fatal().Err(err).Msg("Failed to apply migrations")
	}

	postgres, err := db.New(context.Background(), cfg.Postgres)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to database")
	}
	defer postgres.Close()

	catalogRepo := catalog.NewRepository()
	inventoryRepo := inventory.NewRepository()
	voucherRepo := voucher.NewRepository()
	cartRepo := cart.NewRepository()
	orderRepo := order.NewRepository()

	snapshot := order.NewSnapshotBuilder(catalogRepo)
	notifier := notify.NewLogNotifier()

	orderService := order.NewService(postgres, postgres.Pool, orderRepo, inventoryRepo, voucherRepo, cartRepo, snapshot, notifier)
	cartService := cart.NewService(postgres.Pool, cartRepo, catalogRepo)
	gateway := payment.NewGateway(cfg.VNPay)

	orderHandler := handlerHttp.NewOrderHandler(orderService)
	cartHandler := handlerHttp.NewCartHandler(cartService)
	paymentHandler := handlerHttp.NewPaymentHandler(gateway, orderService)

	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(middleware.Recoverer)

	router.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})

	router.Route("/api", func(r chi.Router) {
		orderHandler.RegisterRoutes(r)
		cartHandler.RegisterRoutes(r)
		paymentHandler.RegisterRoutes(r)
	})

	server := &http.Server{
		Addr:         ":" + cfg.App.Port,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		log.Info().Str("port", cfg.App.Port).Msg("Starting HTTP server")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("Server failed")
		}
	}()

	stopCh := make(chan os.Signal, 1)
	signal.Notify(stopCh, os.Interrupt, syscall.SIGTERM)
	<-stopCh

	log.Info().Msg("Shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Fatal().Err(err).Msg("Shutdown failed")
	}

	log.Info().Msg("Server stopped")
}
