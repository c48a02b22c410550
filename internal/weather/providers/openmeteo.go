package providers

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/i474232898/weather-lookup/internal/weather"
	"github.com/sony/gobreaker"
)

const (
	DefaultOpenMeteoForecastURL  = "https://api.open-meteo.com"
	DefaultOpenMeteoGeocodingURL = "https://geocoding-api.open-meteo.com"

	openMeteoHourLayout = "2006-01-02T15:04"
	openMeteoDayLayout  = "2006-01-02"
)

var (
	openMeteoCurrentFields = []string{"temperature_2m", "apparent_temperature", "relative_humidity_2m", "wind_speed_10m", "weather_code"}
	openMeteoHourlyFields  = []string{"temperature_2m", "precipitation_probability", "wind_speed_10m"}
	openMeteoDailyFields   = []string{"temperature_2m_max", "temperature_2m_min", "precipitation_probability_max", "sunrise", "sunset"}
)

// OpenMeteoConfig configures the Open-Meteo forecast and geocoding client.
type OpenMeteoConfig struct {
	ForecastURL  string
	GeocodingURL string
	Language     string
	ForecastDays int
}

// OpenMeteoProvider implements weather.Geocoder, weather.ReverseGeocoder and weather.Forecaster
// on top of the Open-Meteo APIs.
type OpenMeteoProvider struct {
	name         string
	forecastURL  string
	geocodingURL string
	language     string
	forecastDays int
	httpCfg      HTTPClientConfig
	forecastCB   *gobreaker.CircuitBreaker
	geocodingCB  *gobreaker.CircuitBreaker
}

func NewOpenMeteoProvider(client *http.Client, cfg OpenMeteoConfig) *OpenMeteoProvider {
	if cfg.ForecastURL == "" {
		cfg.ForecastURL = DefaultOpenMeteoForecastURL
	}
	if cfg.GeocodingURL == "" {
		cfg.GeocodingURL = DefaultOpenMeteoGeocodingURL
	}
	if cfg.Language == "" {
		cfg.Language = "en"
	}
	if cfg.ForecastDays <= 0 {
		cfg.ForecastDays = 7
	}

	return &OpenMeteoProvider{
		name:         "openmeteo",
		forecastURL:  strings.TrimRight(cfg.ForecastURL, "/"),
		geocodingURL: strings.TrimRight(cfg.GeocodingURL, "/"),
		language:     cfg.Language,
		forecastDays: cfg.ForecastDays,
		httpCfg:      newHTTPConfig(client),
		forecastCB:   newBreaker("openmeteo-forecast"),
		geocodingCB:  newBreaker("openmeteo-geocoding"),
	}
}

func (p *OpenMeteoProvider) Name() string {
	return p.name
}

// SetBackoff overrides the retry policy.
func (p *OpenMeteoProvider) SetBackoff(b BackoffConfig) {
	p.httpCfg.Backoff = b
}

type openMeteoForecastPayload struct {
	Latitude         float64 `json:"latitude"`
	Longitude        float64 `json:"longitude"`
	Timezone         string  `json:"timezone"`
	UTCOffsetSeconds int     `json:"utc_offset_seconds"`

	Current *struct {
		Time                string   `json:"time"`
		Temperature         *float64 `json:"temperature_2m"`
		ApparentTemperature *float64 `json:"apparent_temperature"`
		Humidity            *float64 `json:"relative_humidity_2m"`
		WindSpeed           *float64 `json:"wind_speed_10m"`
		WeatherCode         *int     `json:"weather_code"`
	} `json:"current"`

	// Legacy block. Older self-hosted deployments ignore current= and answer with this
	// instead; it has no humidity or apparent temperature.
	CurrentWeather *struct {
		Time        string   `json:"time"`
		Temperature *float64 `json:"temperature"`
		WindSpeed   *float64 `json:"windspeed"`
		WeatherCode *int     `json:"weathercode"`
	} `json:"current_weather"`

	Hourly struct {
		Time                     []string   `json:"time"`
		Temperature              []*float64 `json:"temperature_2m"`
		PrecipitationProbability []*float64 `json:"precipitation_probability"`
		WindSpeed                []*float64 `json:"wind_speed_10m"`
	} `json:"hourly"`

	Daily struct {
		Time                        []string   `json:"time"`
		TemperatureMax              []*float64 `json:"temperature_2m_max"`
		TemperatureMin              []*float64 `json:"temperature_2m_min"`
		PrecipitationProbabilityMax []*float64 `json:"precipitation_probability_max"`
		Sunrise                     []string   `json:"sunrise"`
		Sunset                      []string   `json:"sunset"`
	} `json:"daily"`
}

// Forecast fetches current conditions, the hourly series and the daily series for place.
func (p *OpenMeteoProvider) Forecast(ctx context.Context, place weather.Place) (weather.WeatherSnapshot, error) {
	values := url.Values{}
	values.Set("latitude", formatFloat(place.Latitude))
	values.Set("longitude", formatFloat(place.Longitude))
	values.Set("current", strings.Join(openMeteoCurrentFields, ","))
	values.Set("hourly", strings.Join(openMeteoHourlyFields, ","))
	values.Set("daily", strings.Join(openMeteoDailyFields, ","))
	values.Set("timezone", "auto")
	values.Set("forecast_days", strconv.Itoa(p.forecastDays))

	u := fmt.Sprintf("%s/v1/forecast?%s", p.forecastURL, values.Encode())

	var payload openMeteoForecastPayload
	if err := getJSON(ctx, p.httpCfg, p.forecastCB, u, &payload); err != nil {
		return weather.WeatherSnapshot{}, err
	}

	return payload.snapshot(), nil
}

// snapshot normalises the payload: every sequence is aligned to its cadence's time axis and
// missing values become zero.
func (pl openMeteoForecastPayload) snapshot() weather.WeatherSnapshot {
	loc := pl.location()

	snap := weather.WeatherSnapshot{
		Latitude:  pl.Latitude,
		Longitude: pl.Longitude,
		Timezone:  pl.Timezone,
	}

	switch {
	case pl.Current != nil:
		c := pl.Current
		snap.Current = weather.CurrentConditions{
			Time:                parseLocal(openMeteoHourLayout, c.Time, loc),
			Temperature:         deref(c.Temperature),
			ApparentTemperature: deref(c.ApparentTemperature),
			Humidity:            deref(c.Humidity),
			WindSpeed:           deref(c.WindSpeed),
		}
		if c.WeatherCode != nil {
			snap.Current.WeatherCode = *c.WeatherCode
		}
	case pl.CurrentWeather != nil:
		c := pl.CurrentWeather
		snap.Current = weather.CurrentConditions{
			Time:                parseLocal(openMeteoHourLayout, c.Time, loc),
			Temperature:         deref(c.Temperature),
			ApparentTemperature: deref(c.Temperature),
			WindSpeed:           deref(c.WindSpeed),
		}
		if c.WeatherCode != nil {
			snap.Current.WeatherCode = *c.WeatherCode
		}
	}
	snap.Current.Condition = weather.ConditionFromCode(snap.Current.WeatherCode)

	n := len(pl.Hourly.Time)
	snap.Hourly = weather.HourlySeries{
		Time:                     parseTimes(openMeteoHourLayout, pl.Hourly.Time, n, loc),
		Temperature:              alignFloats(pl.Hourly.Temperature, n),
		PrecipitationProbability: alignFloats(pl.Hourly.PrecipitationProbability, n),
		WindSpeed:                alignFloats(pl.Hourly.WindSpeed, n),
	}

	m := len(pl.Daily.Time)
	snap.Daily = weather.DailySeries{
		Time:                        parseTimes(openMeteoDayLayout, pl.Daily.Time, m, loc),
		TemperatureMax:              alignFloats(pl.Daily.TemperatureMax, m),
		TemperatureMin:              alignFloats(pl.Daily.TemperatureMin, m),
		PrecipitationProbabilityMax: alignFloats(pl.Daily.PrecipitationProbabilityMax, m),
		Sunrise:                     parseTimes(openMeteoHourLayout, pl.Daily.Sunrise, m, loc),
		Sunset:                      parseTimes(openMeteoHourLayout, pl.Daily.Sunset, m, loc),
	}

	return snap
}

// location resolves the provider-inferred timezone, falling back to the reported offset.
func (pl openMeteoForecastPayload) location() *time.Location {
	if pl.Timezone != "" {
		if loc, err := time.LoadLocation(pl.Timezone); err == nil {
			return loc
		}
	}
	return time.FixedZone(pl.Timezone, pl.UTCOffsetSeconds)
}

func alignFloats(values []*float64, n int) []float64 {
	out := make([]float64, n)
	for i := 0; i < n && i < len(values); i++ {
		out[i] = deref(values[i])
	}
	return out
}

func parseTimes(layout string, values []string, n int, loc *time.Location) []time.Time {
	out := make([]time.Time, n)
	for i := 0; i < n && i < len(values); i++ {
		out[i] = parseLocal(layout, values[i], loc)
	}
	return out
}

func parseLocal(layout, value string, loc *time.Location) time.Time {
	if value == "" {
		return time.Time{}
	}
	ts, err := time.ParseInLocation(layout, value, loc)
	if err != nil {
		return time.Time{}
	}
	return ts
}

func deref(v *float64) float64 {
	if v == nil {
		return 0
	}
	return *v
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
