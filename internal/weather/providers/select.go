package providers

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/i474232898/weather-lookup/internal/weather"
)

// GeocoderOptions selects and configures the place-name backend.
type GeocoderOptions struct {
	Provider          string
	Language          string
	OpenWeatherAPIKey string
	WeatherAPIKey     string
	GoogleAPIKey      string
	CacheTTL          time.Duration
}

// NewGeocoder returns the configured geocoder and its reverse counterpart. Open-Meteo is
// passed in because it also serves forecasts.
func NewGeocoder(client *http.Client, openMeteo *OpenMeteoProvider, opts GeocoderOptions) (weather.Geocoder, weather.ReverseGeocoder, error) {
	var (
		geo weather.Geocoder
		rev weather.ReverseGeocoder
	)

	switch strings.ToLower(opts.Provider) {
	case "", "openmeteo":
		geo, rev = openMeteo, openMeteo
	case "openweather", "openweathermap":
		if opts.OpenWeatherAPIKey == "" {
			return nil, nil, fmt.Errorf("openweather geocoder: %w", ErrMissingAPIKey)
		}
		p := NewOpenWeatherGeocoder(client, opts.OpenWeatherAPIKey, opts.Language)
		geo, rev = p, p
	case "weatherapi":
		if opts.WeatherAPIKey == "" {
			return nil, nil, fmt.Errorf("weatherapi geocoder: %w", ErrMissingAPIKey)
		}
		p := NewWeatherAPIGeocoder(client, opts.WeatherAPIKey)
		geo, rev = p, p
	case "google":
		if opts.GoogleAPIKey == "" {
			return nil, nil, fmt.Errorf("google geocoder: %w", ErrMissingAPIKey)
		}
		p := NewGoogleGeocoder(opts.GoogleAPIKey)
		geo, rev = p, p
	default:
		return nil, nil, fmt.Errorf("unknown geocoder provider %q", opts.Provider)
	}

	return NewCachedGeocoder(geo, opts.CacheTTL), rev, nil
}
