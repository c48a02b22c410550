package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type AppConfig struct {
	Port string

	// Upstream Open-Meteo endpoints.
	ForecastURL  string
	GeocodingURL string
	ForecastDays int

	// Geocoding provider: openmeteo, openweather, weatherapi or google.
	GeocoderProvider  string
	GeocoderLanguage  string
	OpenWeatherAPIKey string
	WeatherAPIKey     string
	GoogleAPIKey      string
	GeocodeCacheTTL   time.Duration // 0 disables the cache

	// Screen behaviour.
	SearchResultLimit  int
	SearchDebounce     time.Duration
	GeolocationTimeout time.Duration

	// IPLocatorURL is the ip-api.com style endpoint used when a client asks for its location
	// without coordinates. Empty disables IP geolocation.
	IPLocatorURL string

	// Outbound HTTP timeout (0 = none; requests rely on cancellation).
	HTTPTimeout time.Duration

	// Session retention.
	SessionMaxIdle       time.Duration
	SessionMaxCount      int
	SessionSweepInterval time.Duration
}

// Load reads configuration from environment with sensible defaults.
func Load() (*AppConfig, error) {
	if err := godotenv.Load(); err != nil {
		log.Printf("INFO: No .env file found or error loading it: %v", err)
	}
	return FromEnv()
}

// FromEnv builds the configuration from the current environment only.
func FromEnv() (*AppConfig, error) {
	cfg := &AppConfig{}
	var err error

	cfg.Port = getenvDefault("PORT", "8080")

	cfg.ForecastURL = getenvDefault("OPEN_METEO_FORECAST_URL", "https://api.open-meteo.com")
	cfg.GeocodingURL = getenvDefault("OPEN_METEO_GEOCODING_URL", "https://geocoding-api.open-meteo.com")
	cfg.ForecastDays = getenvInt("FORECAST_DAYS", 7)
	if cfg.ForecastDays < 1 || cfg.ForecastDays > 16 {
		return nil, fmt.Errorf("invalid FORECAST_DAYS: %d (must be 1-16)", cfg.ForecastDays)
	}

	cfg.GeocoderProvider = strings.ToLower(getenvDefault("GEOCODER_PROVIDER", "openmeteo"))
	cfg.GeocoderLanguage = getenvDefault("GEOCODER_LANGUAGE", "en")
	cfg.OpenWeatherAPIKey = os.Getenv("OPENWEATHER_API_KEY")
	cfg.WeatherAPIKey = os.Getenv("WEATHERAPI_API_KEY")
	cfg.GoogleAPIKey = os.Getenv("GOOGLE_GEOCODER_API_KEY")
	if cfg.GeocodeCacheTTL, err = getenvDuration("GEOCODE_CACHE_TTL", "10m"); err != nil {
		return nil, err
	}

	cfg.SearchResultLimit = getenvInt("SEARCH_RESULT_LIMIT", 6)
	if cfg.SearchResultLimit <= 0 {
		return nil, fmt.Errorf("invalid SEARCH_RESULT_LIMIT: %d", cfg.SearchResultLimit)
	}
	if cfg.SearchDebounce, err = getenvDuration("SEARCH_DEBOUNCE", "300ms"); err != nil {
		return nil, err
	}
	if cfg.GeolocationTimeout, err = getenvDuration("GEOLOCATION_TIMEOUT", "10s"); err != nil {
		return nil, err
	}

	cfg.IPLocatorURL = getenvDefault("IP_LOCATOR_URL", "http://ip-api.com/json")
	if v, ok := os.LookupEnv("IP_LOCATOR_URL"); ok && v == "" {
		cfg.IPLocatorURL = ""
	}

	if cfg.HTTPTimeout, err = getenvDuration("HTTP_TIMEOUT", "0"); err != nil {
		return nil, err
	}

	if cfg.SessionMaxIdle, err = getenvDuration("SESSION_MAX_IDLE", "30m"); err != nil {
		return nil, err
	}
	cfg.SessionMaxCount = getenvInt("SESSION_MAX_COUNT", 1000)
	if cfg.SessionSweepInterval, err = getenvDuration("SESSION_SWEEP_INTERVAL", "5m"); err != nil {
		return nil, err
	}

	return cfg, nil
}

func getenvDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		n, err := strconv.Atoi(v)
		if err == nil {
			return n
		}
	}
	return def
}

func getenvDuration(key, def string) (time.Duration, error) {
	d, err := time.ParseDuration(getenvDefault(key, def))
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}
