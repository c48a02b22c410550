package providers

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/i474232898/weather-lookup/internal/weather"
	"github.com/sony/gobreaker"
)

const DefaultWeatherAPIURL = "https://api.weatherapi.com/v1"

// WeatherAPIGeocoder implements weather.Geocoder and weather.ReverseGeocoder with the
// WeatherAPI.com search/autocomplete endpoint.
type WeatherAPIGeocoder struct {
	name    string
	apiKey  string
	baseURL string
	httpCfg HTTPClientConfig
	circuit *gobreaker.CircuitBreaker
}

func NewWeatherAPIGeocoder(client *http.Client, apiKey string) *WeatherAPIGeocoder {
	return &WeatherAPIGeocoder{
		name:    "weatherapi",
		apiKey:  apiKey,
		baseURL: DefaultWeatherAPIURL,
		httpCfg: newHTTPConfig(client),
		circuit: newBreaker("weatherapi"),
	}
}

func (p *WeatherAPIGeocoder) Name() string {
	return p.name
}

type weatherAPIPlace struct {
	ID      int64   `json:"id"`
	Name    string  `json:"name"`
	Region  string  `json:"region"`
	Country string  `json:"country"`
	Lat     float64 `json:"lat"`
	Lon     float64 `json:"lon"`
}

// Search uses the autocomplete endpoint. The API has no result-count parameter, so the list is
// capped locally.
func (p *WeatherAPIGeocoder) Search(ctx context.Context, query string, limit int) ([]weather.Place, error) {
	payload, err := p.search(ctx, query)
	if err != nil {
		return nil, err
	}

	places := make([]weather.Place, 0, len(payload))
	for _, r := range payload {
		if limit > 0 && len(places) >= limit {
			break
		}
		places = append(places, weather.Place{
			ID:        r.ID,
			Name:      r.Name,
			Country:   r.Country,
			Admin1:    r.Region,
			Latitude:  r.Lat,
			Longitude: r.Lon,
		})
	}
	return places, nil
}

// Reverse queries the same endpoint with "lat,lon", which WeatherAPI resolves to the nearest
// place.
func (p *WeatherAPIGeocoder) Reverse(ctx context.Context, coords weather.Coordinates) (weather.Place, error) {
	payload, err := p.search(ctx, formatFloat(coords.Latitude)+","+formatFloat(coords.Longitude))
	if err != nil {
		return weather.Place{}, err
	}
	if len(payload) == 0 {
		return weather.Place{}, weather.ErrNoResults
	}
	r := payload[0]
	return weather.Place{
		ID:        r.ID,
		Name:      r.Name,
		Country:   r.Country,
		Admin1:    r.Region,
		Latitude:  coords.Latitude,
		Longitude: coords.Longitude,
	}, nil
}

func (p *WeatherAPIGeocoder) search(ctx context.Context, q string) ([]weatherAPIPlace, error) {
	if p.apiKey == "" {
		return nil, fmt.Errorf("weatherapi: %w", ErrMissingAPIKey)
	}

	values := url.Values{}
	values.Set("key", p.apiKey)
	values.Set("q", q)

	u := fmt.Sprintf("%s/search.json?%s", strings.TrimRight(p.baseURL, "/"), values.Encode())

	var payload []weatherAPIPlace
	if err := getJSON(ctx, p.httpCfg, p.circuit, u, &payload); err != nil {
		return nil, err
	}
	return payload, nil
}
