package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	config "github.com/edlight123/eventhaiti-payouts/configs"
	"github.com/edlight123/eventhaiti-payouts/database"
	"github.com/edlight123/eventhaiti-payouts/handlers"
	"github.com/edlight123/eventhaiti-payouts/jobs"
	applogger "github.com/edlight123/eventhaiti-payouts/logger"
	"github.com/edlight123/eventhaiti-payouts/notifications"
	"github.com/edlight123/eventhaiti-payouts/payments"
	"github.com/edlight123/eventhaiti-payouts/routes"
	"github.com/edlight123/eventhaiti-payouts/secrets"
	"github.com/edlight123/eventhaiti-payouts/services"
	"github.com/edlight123/eventhaiti-payouts/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
)

func main() {
	cfg, err := config.Load("")
	if err != nil {
		bootLog := applogger.New()
		bootLog.Fatal().Err(err).Msg("invalid configuration")
	}
	log := applogger.NewWithConfig(cfg.Log)

	db, err := database.Connect(cfg.Database, log)
	if err != nil {
		log.Fatal().Err(err).Msg("database connection failed")
	}
	if err := database.Migrate(db); err != nil {
		log.Fatal().Err(err).Msg("migration failed")
	}
	if err := database.SeedPlatformConfig(db, cfg.Settlement, cfg.Prefunding); err != nil {
		log.Fatal().Err(err).Msg("seeding platform payout config failed")
	}

	sealer, err := secrets.NewSealer(cfg.DestinationKey())
	if err != nil {
		log.Fatal().Err(err).Msg("destination sealer init failed")
	}
	uploads, err := handlers.NewUploadSigner(cfg.Cloudinary.URL, cfg.Cloudinary.Folder)
	if err != nil {
		log.Fatal().Err(err).Msg("cloudinary init failed")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	hub := websocket.NewHub(log)
	go hub.Run(ctx)

	sinks := []notifications.Sink{hub}
	if email := notifications.NewBrevoService(notifications.BrevoConfig{
		APIKey:      cfg.Email.BrevoAPIKey,
		SenderEmail: cfg.Email.SenderEmail,
		SenderName:  cfg.Email.SenderName,
		AdminEmails: cfg.Email.AdminEmails,
	}, log); email != nil {
		sinks = append(sinks, email)
	}
	dispatcher := notifications.NewDispatcher(log, 10*time.Second, sinks...)

	var checker services.PrefundedBalanceChecker
	if moncash := payments.NewMoncashService(payments.MoncashConfig{
		BaseURL:      cfg.Prefunding.BaseURL,
		ClientID:     cfg.Prefunding.ClientID,
		ClientSecret: cfg.Prefunding.ClientSecret,
		Timeout:      cfg.Prefunding.Timeout,
	}, log); moncash != nil {
		checker = moncash
	}

	platformConfig := services.NewPlatformConfigService(db, 0, log)
	rates := services.NewExchangeRateService(cfg.ExchangeRate.BaseURL, cfg.ExchangeRate.APIKey,
		cfg.ExchangeRate.Timeout, cfg.ExchangeRate.CacheTTL, log)
	quotes := services.NewQuoteService(db, platformConfig, rates, cfg.ExchangeRate.Timeout, log)
	settlement := services.NewSettlementService(db, log)
	prefunding := services.NewPrefundingService(checker, platformConfig, cfg.Prefunding.MinBalanceCents, cfg.Prefunding.Timeout, log)

	h := handlers.New(handlers.Handler{
		Balances:       services.NewBalanceService(db, log),
		Payouts:        services.NewPayoutService(db, platformConfig, dispatcher, log),
		Quotes:         quotes,
		Withdrawals:    services.NewWithdrawalService(db, quotes, platformConfig, dispatcher, log),
		Destinations:   services.NewDestinationService(db, sealer, log),
		Verifications:  services.NewVerificationService(db, dispatcher, log),
		Earnings:       services.NewEarningsService(db, platformConfig, log),
		Settlement:     settlement,
		PlatformConfig: platformConfig,
		Prefunding:     prefunding,
		Rates:          rates,
		Uploads:        uploads,
		Hub:            hub,
		JWTSecret:      cfg.Security.JWTSecret,
	}, log)

	scheduler := jobs.NewScheduler(log)
	if err := jobs.Register(scheduler, cfg.Settlement.Schedule, jobs.NewSettlementJob(settlement, log), log); err != nil {
		log.Fatal().Err(err).Msg("settlement job")
	}
	if err := jobs.Register(scheduler, cfg.Prefunding.Schedule, jobs.NewPrefundingJob(prefunding, log), log); err != nil {
		log.Fatal().Err(err).Msg("prefunding job")
	}
	scheduler.Start()

	app := fiber.New(fiber.Config{
		AppName:       cfg.Server.AppName,
		CaseSensitive: true,
		StrictRouting: true,
		ReadTimeout:   cfg.Server.ReadTimeout,
		WriteTimeout:  cfg.Server.WriteTimeout,
		IdleTimeout:   cfg.Server.IdleTimeout,
		ErrorHandler:  handlers.ErrorHandler(log),
	})

	app.Use(cors.New(cors.Config{
		AllowOrigins:  cfg.Server.AllowOrigins,
		AllowHeaders:  "Origin, Content-Type, Accept, Authorization, X-Internal-Token, Sec-WebSocket-Key, Sec-WebSocket-Version",
		AllowMethods:  "GET, POST, PUT, PATCH, DELETE, OPTIONS",
		ExposeHeaders: "Content-Length",
		MaxAge:        86400,
	}))
	app.Use(recover.New())
	app.Use(logger.New(logger.Config{
		TimeFormat: "2006-01-02 15:04:05",
		TimeZone:   "UTC",
		Format:     "[${time}] ${status} - ${latency} ${method} ${path}\n",
	}))

	routes.Register(app, h, cfg.Security.InternalToken)

	go func() {
		<-ctx.Done()
		log.Info().Msg("shutting down")
		if err := app.ShutdownWithTimeout(20 * time.Second); err != nil {
			log.Error().Err(err).Msg("http shutdown")
		}
	}()

	log.Info().Str("port", cfg.Server.Port).Msg("server listening")
	if err := app.Listen(":" + cfg.Server.Port); err != nil {
		log.Error().Err(err).Msg("server stopped")
	}

	<-scheduler.Stop().Done()
	dispatcher.Wait()
	if sqlDB, err := db.DB(); err == nil {
		_ = sqlDB.Close()
	}
	log.Info().Msg("shutdown complete")
}
