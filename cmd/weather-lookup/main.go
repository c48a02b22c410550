package main

import (
	"context"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"

	httpapi "github.com/i474232898/weather-lookup/internal/api/http"
	"github.com/i474232898/weather-lookup/internal/config"
	"github.com/i474232898/weather-lookup/internal/scheduler"
	"github.com/i474232898/weather-lookup/internal/screen"
	"github.com/i474232898/weather-lookup/internal/store"
	"github.com/i474232898/weather-lookup/internal/weather"
	"github.com/i474232898/weather-lookup/internal/weather/providers"
)

func main() {
	// Load configuration.
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	// Shared HTTP client for outbound provider calls.
	httpClient := &http.Client{
		Timeout: cfg.HTTPTimeout,
	}

	// Open-Meteo serves forecasts and, by default, geocoding.
	openMeteo := providers.NewOpenMeteoProvider(httpClient, providers.OpenMeteoConfig{
		ForecastURL:  cfg.ForecastURL,
		GeocodingURL: cfg.GeocodingURL,
		Language:     cfg.GeocoderLanguage,
		ForecastDays: cfg.ForecastDays,
	})

	geo, reverse, err := providers.NewGeocoder(httpClient, openMeteo, providers.GeocoderOptions{
		Provider:          cfg.GeocoderProvider,
		Language:          cfg.GeocoderLanguage,
		OpenWeatherAPIKey: cfg.OpenWeatherAPIKey,
		WeatherAPIKey:     cfg.WeatherAPIKey,
		GoogleAPIKey:      cfg.GoogleAPIKey,
		CacheTTL:          cfg.GeocodeCacheTTL,
	})
	if err != nil {
		log.Fatalf("failed to configure geocoder: %v", err)
	}
	log.Printf("INFO: using geocoder %s", geo.Name())

	service := weather.NewService(geo, reverse, openMeteo, cfg.SearchResultLimit)

	// Screen sessions with idle and count retention.
	sessions := store.NewMemoryStore(func() *screen.Screen {
		return screen.New(service, screen.Options{
			SearchDelay:   cfg.SearchDebounce,
			SearchLimit:   cfg.SearchResultLimit,
			LocateTimeout: cfg.GeolocationTimeout,
		})
	}, cfg.SessionMaxCount, cfg.SessionMaxIdle)
	defer sessions.CloseAll()

	var ipLocator httpapi.IPLocator
	if cfg.IPLocatorURL != "" {
		ipLocator = providers.NewIPAPILocator(httpClient, cfg.IPLocatorURL)
	}

	// Scheduler that periodically sweeps idle sessions.
	sched := scheduler.New(sessions, cfg.SessionSweepInterval)
	if err := sched.Start(); err != nil {
		log.Fatalf("failed to start scheduler: %v", err)
	}
	defer sched.Stop()

	// Basic app configuration
	app := fiber.New(fiber.Config{
		AppName:               "weather-lookup",
		DisableStartupMessage: true,
		ReadTimeout:           10 * time.Second,
		WriteTimeout:          30 * time.Second,
		ErrorHandler:          httpapi.ErrorHandler,
	})

	// Global middleware
	app.Use(logger.New())
	app.Use(recover.New())

	// Basic health endpoint
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status":   "ok",
			"service":  "weather-lookup",
			"geocoder": geo.Name(),
			"sessions": sessions.Len(),
		})
	})

	// API routes.
	httpapi.RegisterRoutes(app, service, sessions, ipLocator)

	go func() {
		if err := app.Listen(":" + cfg.Port); err != nil {
			log.Printf("fiber server stopped: %v", err)
		}
	}()
	log.Printf("INFO: listening on :%s", cfg.Port)

	// Wait for termination signal
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		log.Printf("error during shutdown: %v", err)
	}
}
