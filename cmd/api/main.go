package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog/log"

	"github.com/carebook/carebook-api/internal/config"
	"github.com/carebook/carebook-api/internal/domain/appointment"
	"github.com/carebook/carebook-api/internal/domain/earnings"
	"github.com/carebook/carebook-api/internal/domain/notification"
	"github.com/carebook/carebook-api/internal/domain/payment"
	"github.com/carebook/carebook-api/internal/domain/wallet"
	"github.com/carebook/carebook-api/internal/domain/withdrawal"
	"github.com/carebook/carebook-api/internal/middleware"
	"github.com/carebook/carebook-api/internal/pkg/database"
	"github.com/carebook/carebook-api/internal/pkg/gateway"
	"github.com/carebook/carebook-api/internal/pkg/jwt"
	"github.com/carebook/carebook-api/internal/pkg/logger"
	"github.com/carebook/carebook-api/internal/pkg/otp"
	pkgresponse "github.com/carebook/carebook-api/internal/pkg/response"
)

func main() {
	cfg := config.Load()
	if err := logger.Init(logger.Config{Level: cfg.LogLevel, Environment: cfg.Env}); err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize logger")
	}

	log.Info().
		Str("env", cfg.Env).
		Str("port", cfg.Port).
		Msg("Starting CareBook earnings API")

	db, err := database.NewPostgres(cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
	}
	defer database.ClosePostgres(db)

	redis, err := database.NewRedis(cfg.RedisURL)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to Redis")
	}
	defer database.CloseRedis(redis)

	jwtService := jwt.NewService(cfg.JWTSecret, cfg.JWTAccessTTL, cfg.JWTRefreshTTL)

	gatewayClient := gateway.NewClient(gateway.Config{
		BaseURL:    cfg.GatewayBaseURL,
		MerchantID: cfg.GatewayMerchantID,
		SecretKey:  cfg.GatewaySecretKey,
	})

	// ---------- Repositories ----------
	walletRepo := wallet.NewRepository(db)
	earningsRepo := earnings.NewRepository(db)
	appointmentRepo := appointment.NewRepository(db)
	paymentRepo := payment.NewRepository(db)
	withdrawalRepo := withdrawal.NewRepository(db)
	notificationRepo := notification.NewRepository(db)

	// ---------- Services ----------
	notificationService := notification.NewService(notificationRepo)
	balanceCache := wallet.NewBalanceCache(redis)
	walletService := wallet.NewService(db, walletRepo, balanceCache)
	earningsService := earnings.NewService(db, earningsRepo, walletService, notificationService)
	paymentService := payment.NewService(db, paymentRepo, appointmentRepo, walletService, earningsService, gatewayClient, notificationService, cfg.GSTRatePercent)
	withdrawalService := withdrawal.NewService(db, withdrawalRepo, walletService, notificationService, otp.LogSender{}, cfg.OTPTTL, cfg.MinWithdrawalAmount)

	// ---------- Handlers ----------
	walletHandler := wallet.NewHandler(walletService, earningsService)
	paymentHandler := payment.NewHandler(paymentService, cfg.GatewaySecretKey)
	withdrawalHandler := withdrawal.NewHandler(withdrawalService)
	appointmentHandler := appointment.NewHandler(appointmentRepo, earningsService, paymentService)

	authMiddleware := middleware.Auth(jwtService)
	internalAuth := middleware.InternalAuth(cfg.InternalAPIKey)

	// ---------- Router ----------
	r := chi.NewRouter()

	r.Use(chimw.RealIP)
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recover)
	r.Use(middleware.CORSHandler(cfg.AllowedOrigins))
	r.Use(chimw.Compress(5))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		pkgresponse.OK(w, map[string]string{
			"status":  "ok",
			"version": "1.0.0",
		})
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Mount("/wallet", walletHandler.Routes(authMiddleware))
		r.Mount("/payments", paymentHandler.Routes(authMiddleware))
		r.Mount("/withdrawals", withdrawalHandler.Routes(authMiddleware))

		r.Route("/admin", func(r chi.Router) {
			r.Mount("/ledger", walletHandler.AdminRoutes(authMiddleware))
			r.Mount("/payments", paymentHandler.AdminRoutes(authMiddleware))
			r.Mount("/withdrawals", withdrawalHandler.AdminRoutes(authMiddleware))
		})

		r.Mount("/hospital/withdrawals", withdrawalHandler.HospitalRoutes(authMiddleware))
		r.Mount("/events/appointments", appointmentHandler.Routes(internalAuth))
	})

	r.Mount("/webhooks", paymentHandler.WebhookRoutes())

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info().Str("addr", server.Addr).Msg("HTTP server listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("HTTP server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Fatal().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server exited properly")
}
