package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/joho/godotenv"

	"github.com/mesalista/venue-checkin/internal/biztime"
	"github.com/mesalista/venue-checkin/internal/checkin"
	"github.com/mesalista/venue-checkin/internal/http/handlers"
	"github.com/mesalista/venue-checkin/internal/platform/cache"
	"github.com/mesalista/venue-checkin/internal/qr"
	"github.com/mesalista/venue-checkin/internal/repo/postgres"
	"github.com/mesalista/venue-checkin/internal/reservations"
	"github.com/mesalista/venue-checkin/internal/stream"
	"github.com/mesalista/venue-checkin/pkg/config"
	"github.com/mesalista/venue-checkin/pkg/database"
	"github.com/mesalista/venue-checkin/pkg/events"
	"github.com/mesalista/venue-checkin/pkg/logger"
	mw "github.com/mesalista/venue-checkin/pkg/middleware"
)

func main() {
	_ = godotenv.Load()
	cfg := config.Load()

	ctx := context.Background()
	pool, err := database.Connect(ctx, cfg.Database.URL)
	if err != nil {
		logger.Error("Failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	rdb, err := cache.NewClient(ctx, cfg.Redis.URL, cfg.Redis.Password, cfg.Redis.DB)
	if err != nil {
		logger.Error("Failed to connect to redis", "error", err)
		os.Exit(1)
	}
	defer rdb.Close()

	eventBus, err := events.NewNATSEventBus(cfg.NATS.URL)
	if err != nil {
		logger.Error("Failed to connect to NATS", "error", err)
		os.Exit(1)
	}
	defer eventBus.Close()

	resolver, err := biztime.NewResolver(cfg.Business.Timezone, cfg.Business.DayCutoffHour)
	if err != nil {
		logger.Error("Invalid business timezone", "error", err, "timezone", cfg.Business.Timezone)
		os.Exit(1)
	}

	hub := stream.NewHub(stream.DefaultPingInterval)
	defer hub.Close()

	// Repositories
	reservationRepo := postgres.NewReservationRepo(pool)
	qrRepo := postgres.NewQRCodeRepo(pool)
	attendanceRepo := postgres.NewAttendanceRepo(pool)
	customerRepo := postgres.NewCustomerRepo(pool)
	guestRepo := postgres.NewGuestRepo(pool)

	// Services
	policy := qr.PostOnly(cfg.QR.LateWindow)
	if cfg.QR.WindowPolicy == string(qr.PolicySymmetric) {
		policy = qr.Symmetric(cfg.QR.EarlyWindow, cfg.QR.LateWindow)
	}
	checkinService := checkin.NewService(
		reservationRepo, qrRepo, attendanceRepo, customerRepo, guestRepo,
		resolver, policy, hub, eventBus,
	)
	reservationService := reservations.NewService(
		reservationRepo, qrRepo, attendanceRepo,
		resolver, cfg.QR.Lifetime, cfg.Business.MinGuestTracking, hub, eventBus,
	)

	h := handlers.New(checkinService, reservationService, hub, cfg)
	limiter := cache.NewRateLimiter(rdb, 60, 1, time.Second)
	idemStore := cache.NewIdempotencyStore(rdb)

	r := chi.NewRouter()
	r.Use(mw.RequestID)
	r.Use(mw.ServiceName("venue-checkin"))
	r.Use(mw.Logging)
	r.Use(mw.Health)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Authorization", "Content-Type", "Idempotency-Key"},
		AllowCredentials: false,
		MaxAge:           300,
	}))
	r.Use(mw.Idempotency(idemStore))

	r.Route("/v1", func(r chi.Router) {
		h.Routes(r, limiter)
	})

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan

		logger.Info("Shutting down check-in service...")

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			logger.Error("Check-in service shutdown error", "error", err)
		}
	}()

	logger.Info("Starting check-in service", "port", cfg.Server.Port)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error("Check-in service error", "error", err)
		os.Exit(1)
	}
}
