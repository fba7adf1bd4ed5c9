package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	echoMiddleware "github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"

	"github.com/HSouheill/referral_backend/config"
	"github.com/HSouheill/referral_backend/controllers"
	"github.com/HSouheill/referral_backend/middleware"
	"github.com/HSouheill/referral_backend/models"
	"github.com/HSouheill/referral_backend/repositories"
	"github.com/HSouheill/referral_backend/routes"
	"github.com/HSouheill/referral_backend/services"
	"github.com/HSouheill/referral_backend/utils"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.WithError(err).Fatal("Invalid configuration")
	}
	config.SetupLogger(cfg)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, closeStore, err := openStore(ctx, cfg)
	if err != nil {
		log.WithError(err).Fatal("Failed to open store")
	}
	defer closeStore()

	// Reset tokens live in Redis when it is reachable.
	var tokens repositories.ResetTokenStore = repositories.NewMemoryResetTokenStore()
	if rdb := config.ConnectRedis(ctx, cfg); rdb != nil {
		tokens = repositories.NewRedisResetTokenStore(rdb)
		defer rdb.Close()
	}

	var sender services.EmailSender = services.LogEmailSender{}
	if cfg.SMTPHost != "" {
		sender = services.NewSMTPEmailSender(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUser, cfg.SMTPPass, cfg.FromEmail)
	}
	notifier := services.NewNotifier(sender, cfg.ClientURL)

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics := services.NewMetrics(registry)

	opts := []services.Option{
		services.WithMetrics(metrics),
		services.WithUnitTimeout(cfg.PurchaseTimeout),
	}
	issueToken := func(account *models.Account) (string, error) {
		return middleware.GenerateJWT(cfg.JWTSecret, account.ID.Hex(), account.Email, account.UserType, cfg.JWTTTL)
	}

	accountService := services.NewAccountService(store, issueToken, notifier, opts...)
	passwordService := services.NewPasswordService(store, tokens, notifier, cfg.ResetTokenTTL, opts...)
	purchaseService := services.NewPurchaseService(store, opts...)
	referralService := services.NewReferralService(store, opts...)
	reportingService := services.NewReportingService(store, cfg.ClientURL, opts...)

	scheduler, err := referralService.StartExpiryScheduler(ctx, cfg.ExpirySweepInterval)
	if err != nil {
		log.WithError(err).Fatal("Failed to start referral expiry scheduler")
	}
	defer func() {
		if err := scheduler.Shutdown(); err != nil {
			log.WithError(err).Warn("Scheduler shutdown failed")
		}
	}()

	e := echo.New()
	e.HideBanner = true
	e.Validator = utils.NewValidator()

	e.Use(echoMiddleware.Recover())
	e.Use(echoMiddleware.RequestIDWithConfig(echoMiddleware.RequestIDConfig{Generator: uuid.NewString}))
	e.Use(middleware.RequestLogger())
	e.Use(middleware.CORSWithConfig(middleware.NewCORSConfig(cfg.ClientURL, cfg.AllowedOrigins())))
	e.Use(echoMiddleware.Secure())
	e.Use(middleware.SecurityHeadersWithConfig(middleware.SecurityConfig{}))
	e.Use(echoMiddleware.BodyLimit("1M"))

	debug := cfg.IsDevelopment()
	routes.SetupRoutes(e, cfg.JWTSecret, routes.Controllers{
		Auth:     controllers.NewAuthController(accountService, debug),
		Password: controllers.NewPasswordController(passwordService, debug),
		Purchase: controllers.NewPurchaseController(purchaseService, debug),
		Referral: controllers.NewReferralController(reportingService, referralService, debug),
		Admin:    controllers.NewAdminController(reportingService, referralService, debug),
		Health:   controllers.NewHealthController(store),
	})
	e.GET("/metrics", echo.WrapHandler(promhttp.HandlerFor(registry, promhttp.HandlerOpts{})))

	go func() {
		addr := ":" + cfg.Port
		log.WithFields(log.Fields{"addr": addr, "store": cfg.StoreBackend, "env": cfg.Env}).Info("Starting server")
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Fatal("Server stopped")
		}
	}()

	<-ctx.Done()
	log.Info("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Error("Graceful shutdown failed")
	}
}

// openStore returns the configured store and a function releasing it.
func openStore(ctx context.Context, cfg *config.Config) (repositories.Store, func(), error) {
	if cfg.StoreBackend == config.StoreMemory {
		log.Warn("Using in-memory store, data will not survive a restart")
		return repositories.NewMemoryStore(), func() {}, nil
	}

	client, err := config.ConnectDB(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}
	release := func() {
		disconnectCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := client.Disconnect(disconnectCtx); err != nil {
			log.WithError(err).Warn("MongoDB disconnect failed")
		}
	}

	store := repositories.NewMongoStore(client, cfg.DBName)
	indexCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	if err := store.EnsureIndexes(indexCtx); err != nil {
		release()
		return nil, nil, fmt.Errorf("failed to ensure indexes: %w", err)
	}
	return store, release, nil
}
