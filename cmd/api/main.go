package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"harambee/internal/adapter/repo"
	"harambee/internal/app"
	"harambee/internal/clock"
	"harambee/internal/http/handlers"
	httpapi "harambee/internal/http/httpapi"
	"harambee/internal/infra"
	"harambee/internal/infra/geoip"
	"harambee/internal/middleware"
	"harambee/internal/migrations"
	"harambee/internal/providers"
	"harambee/internal/providers/airtel"
	"harambee/internal/providers/flutterwave"
	"harambee/internal/providers/mpesa"
)

func main() {
	_ = godotenv.Load()

	cfg, err := infra.LoadConfig()
	if err != nil {
		panic(err)
	}
	logger := infra.NewLogger(cfg.AppEnv, "api")

	ctx := context.Background()
	dbpool, err := infra.NewDBPool(ctx, cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect database")
	}
	defer dbpool.Close()

	if err := migrations.Apply(ctx, dbpool); err != nil {
		logger.Fatal().Err(err).Msg("failed to apply migrations")
	}

	runner := infra.NewSQLRunner(dbpool, logger)

	registry, err := buildRegistry(cfg, &logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to configure payment providers")
	}

	donations := repo.NewDonationRepo(runner)
	donors := repo.NewDonorRepo(runner)
	notifications := repo.NewNotificationRepo(runner)

	dispatcher := app.NewSideEffectDispatcher(donors, donors, notifications, notifications, logger)
	intake := app.NewIntakeService(donations, registry, clock.NewSystem(), logger)
	reconcile := app.NewReconcileService(donations, registry, dispatcher, logger)
	status := app.NewStatusService(donations)

	api := handlers.NewApp(intake, reconcile, status, logger)

	var lookup middleware.CountryLookup
	if resolver, err := geoip.NewResolver(cfg.GeoIPDBPath); err != nil {
		logger.Warn().Err(err).Msg("geoip resolver disabled")
	} else if resolver != nil {
		lookup = resolver.CountryCode
	}

	router := httpapi.NewRouter(api, httpapi.Options{
		RateLimitPerMin: cfg.RateLimitPerMin,
		CountryLookup:   lookup,
	})

	server := infra.NewHTTPServer(cfg, router)

	go func() {
		logger.Info().Msgf("API listening on :%s", cfg.Port)
		if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("http server failed")
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTPIdleTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("failed to shutdown server")
	}
	logger.Info().Msg("server stopped")
}

// buildRegistry wires one adapter per configured provider. A provider with
// missing credentials is skipped with a warning so one misconfiguration
// never takes down the others.
func buildRegistry(cfg *infra.Config, logger *infra.Logger) (*providers.Registry, error) {
	var adapters []providers.Adapter

	if cfg.MpesaConsumerKey != "" {
		client, err := mpesa.NewClient(mpesa.Options{
			ConsumerKey:    cfg.MpesaConsumerKey,
			ConsumerSecret: cfg.MpesaConsumerSecret,
			Shortcode:      cfg.MpesaShortcode,
			Passkey:        cfg.MpesaPasskey,
			BaseURL:        cfg.MpesaBaseURL,
			CallbackURL:    cfg.MpesaCallbackURL,
			Logger:         logger,
		})
		if err != nil {
			return nil, err
		}
		adapters = append(adapters, client)
	} else {
		logger.Warn().Msg("mpesa adapter disabled: no credentials")
	}

	if cfg.FlutterwaveSecretKey != "" {
		client, err := flutterwave.NewClient(flutterwave.Options{
			SecretKey:   cfg.FlutterwaveSecretKey,
			WebhookHash: cfg.FlutterwaveHash,
			BaseURL:     cfg.FlutterwaveBaseURL,
			RedirectURL: cfg.FlutterwaveRedirect,
			Logger:      logger,
		})
		if err != nil {
			return nil, err
		}
		adapters = append(adapters, client)
	} else {
		logger.Warn().Msg("flutterwave adapter disabled: no credentials")
	}

	if cfg.AirtelClientID != "" {
		client, err := airtel.NewClient(airtel.Options{
			ClientID:     cfg.AirtelClientID,
			ClientSecret: cfg.AirtelClientSecret,
			Country:      cfg.AirtelCountry,
			BaseURL:      cfg.AirtelBaseURL,
			Logger:       logger,
		})
		if err != nil {
			return nil, err
		}
		adapters = append(adapters, client)
	} else {
		logger.Warn().Msg("airtel adapter disabled: no credentials")
	}

	return providers.NewRegistry(adapters...), nil
}
