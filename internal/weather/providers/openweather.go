package providers

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/i474232898/weather-lookup/internal/weather"
	"github.com/sony/gobreaker"
)

const DefaultOpenWeatherGeoURL = "https://api.openweathermap.org/geo/1.0"

// OpenWeatherGeocoder implements weather.Geocoder and weather.ReverseGeocoder with the
// OpenWeatherMap geocoding API.
type OpenWeatherGeocoder struct {
	name     string
	apiKey   string
	baseURL  string
	language string
	httpCfg  HTTPClientConfig
	circuit  *gobreaker.CircuitBreaker
}

func NewOpenWeatherGeocoder(client *http.Client, apiKey, language string) *OpenWeatherGeocoder {
	return &OpenWeatherGeocoder{
		name:     "openweathermap",
		apiKey:   apiKey,
		baseURL:  DefaultOpenWeatherGeoURL,
		language: language,
		httpCfg:  newHTTPConfig(client),
		circuit:  newBreaker("openweather"),
	}
}

func (p *OpenWeatherGeocoder) Name() string {
	return p.name
}

type openWeatherPlace struct {
	Name       string            `json:"name"`
	LocalNames map[string]string `json:"local_names"`
	Lat        float64           `json:"lat"`
	Lon        float64           `json:"lon"`
	Country    string            `json:"country"`
	State      string            `json:"state"`
}

func (r openWeatherPlace) toPlace(language string) weather.Place {
	name := r.Name
	if local, ok := r.LocalNames[language]; ok && local != "" {
		name = local
	}
	return weather.Place{
		Name:      name,
		Country:   r.Country,
		Admin1:    r.State,
		Latitude:  r.Lat,
		Longitude: r.Lon,
	}
}

func (p *OpenWeatherGeocoder) Search(ctx context.Context, query string, limit int) ([]weather.Place, error) {
	if p.apiKey == "" {
		return nil, fmt.Errorf("openweather: %w", ErrMissingAPIKey)
	}

	values := url.Values{}
	values.Set("appid", p.apiKey)
	values.Set("q", query)
	values.Set("limit", strconv.Itoa(limit))

	var payload []openWeatherPlace
	if err := getJSON(ctx, p.httpCfg, p.circuit, p.endpoint("direct", values), &payload); err != nil {
		return nil, err
	}

	places := make([]weather.Place, 0, len(payload))
	for _, r := range payload {
		places = append(places, r.toPlace(p.language))
	}
	return places, nil
}

func (p *OpenWeatherGeocoder) Reverse(ctx context.Context, coords weather.Coordinates) (weather.Place, error) {
	if p.apiKey == "" {
		return weather.Place{}, fmt.Errorf("openweather: %w", ErrMissingAPIKey)
	}

	values := url.Values{}
	values.Set("appid", p.apiKey)
	values.Set("lat", formatFloat(coords.Latitude))
	values.Set("lon", formatFloat(coords.Longitude))
	values.Set("limit", "1")

	var payload []openWeatherPlace
	if err := getJSON(ctx, p.httpCfg, p.circuit, p.endpoint("reverse", values), &payload); err != nil {
		return weather.Place{}, err
	}
	if len(payload) == 0 {
		return weather.Place{}, weather.ErrNoResults
	}
	return payload[0].toPlace(p.language), nil
}

func (p *OpenWeatherGeocoder) endpoint(path string, values url.Values) string {
	return fmt.Sprintf("%s/%s?%s", strings.TrimRight(p.baseURL, "/"), path, values.Encode())
}
