package weather

import (
	"fmt"
	"math"
	"time"
)

// Condition represents a normalized high-level weather condition.
type Condition string

const (
	ConditionUnknown Condition = "unknown"
	ConditionClear   Condition = "clear"
	ConditionCloudy  Condition = "cloudy"
	ConditionFog     Condition = "fog"
	ConditionRain    Condition = "rain"
	ConditionSnow    Condition = "snow"
	ConditionStorm   Condition = "storm"
)

// ConditionFromCode maps a WMO weather interpretation code to a Condition.
func ConditionFromCode(code int) Condition {
	switch {
	case code == 0:
		return ConditionClear
	case code >= 1 && code <= 3:
		return ConditionCloudy
	case code == 45 || code == 48:
		return ConditionFog
	case (code >= 51 && code <= 67) || (code >= 80 && code <= 82):
		return ConditionRain
	case (code >= 71 && code <= 77) || code == 85 || code == 86:
		return ConditionSnow
	case code >= 95:
		return ConditionStorm
	default:
		return ConditionUnknown
	}
}

// Coordinates is a WGS84 latitude/longitude pair.
type Coordinates struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// Place is a named, geolocated search result or a location derived from geolocation.
// Admin1 and Timezone are optional.
type Place struct {
	ID        int64   `json:"id,omitempty"`
	Name      string  `json:"name"`
	Country   string  `json:"country,omitempty"`
	Admin1    string  `json:"admin1,omitempty"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Timezone  string  `json:"timezone,omitempty"`
}

// DisplayName returns "name, admin1", or just the name when the region is unknown.
func (p Place) DisplayName() string {
	if p.Admin1 == "" {
		return p.Name
	}
	return p.Name + ", " + p.Admin1
}

// Coordinates returns the place position.
func (p Place) Coordinates() Coordinates {
	return Coordinates{Latitude: p.Latitude, Longitude: p.Longitude}
}

// DisplayCoordinates returns the position rounded to 2 decimal places.
func (p Place) DisplayCoordinates() Coordinates {
	return Coordinates{Latitude: Round2(p.Latitude), Longitude: Round2(p.Longitude)}
}

// Key returns a canonical string key for the place position.
func (p Place) Key() string {
	return fmt.Sprintf("%.4f:%.4f", p.Latitude, p.Longitude)
}

// Round2 rounds v to 2 decimal places.
func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// CurrentConditions holds the observation for the current hour.
type CurrentConditions struct {
	Time                time.Time `json:"time"`
	Temperature         float64   `json:"temperatureC"`
	ApparentTemperature float64   `json:"apparentTemperatureC"`
	Humidity            float64   `json:"humidityPercent"`
	WindSpeed           float64   `json:"windSpeedKmh"`
	WeatherCode         int       `json:"weatherCode"`
	Condition           Condition `json:"condition"`
}

// HourlySeries holds parallel hourly sequences aligned by index.
type HourlySeries struct {
	Time                     []time.Time `json:"time"`
	Temperature              []float64   `json:"temperatureC"`
	PrecipitationProbability []float64   `json:"precipitationProbability"`
	WindSpeed                []float64   `json:"windSpeedKmh"`
}

// Len returns the number of hourly entries.
func (h HourlySeries) Len() int { return len(h.Time) }

// DailySeries holds parallel daily sequences aligned by index.
type DailySeries struct {
	Time                        []time.Time `json:"time"`
	TemperatureMax              []float64   `json:"temperatureMaxC"`
	TemperatureMin              []float64   `json:"temperatureMinC"`
	PrecipitationProbabilityMax []float64   `json:"precipitationProbabilityMax"`
	Sunrise                     []time.Time `json:"sunrise"`
	Sunset                      []time.Time `json:"sunset"`
}

// Len returns the number of daily entries.
func (d DailySeries) Len() int { return len(d.Time) }

// Day returns the aggregates of day i. Out of range indexes yield zero values.
func (d DailySeries) Day(i int) DayAggregate {
	return DayAggregate{
		MaxTemp:       at(d.TemperatureMax, i),
		MinTemp:       at(d.TemperatureMin, i),
		MaxPrecipProb: at(d.PrecipitationProbabilityMax, i),
	}
}

// DayAggregate is the per-day summary consumed by the advisory rules.
type DayAggregate struct {
	MaxTemp       float64 `json:"maxTempC"`
	MinTemp       float64 `json:"minTempC"`
	MaxPrecipProb float64 `json:"maxPrecipitationProbability"`
}

// WeatherSnapshot is the complete current/hourly/daily payload for one place.
// Within each cadence all sequences have the same length.
type WeatherSnapshot struct {
	Latitude  float64           `json:"latitude"`
	Longitude float64           `json:"longitude"`
	Timezone  string            `json:"timezone"`
	Current   CurrentConditions `json:"current"`
	Hourly    HourlySeries      `json:"hourly"`
	Daily     DailySeries       `json:"daily"`
}

// Today returns the aggregates of the first forecast day.
func (s *WeatherSnapshot) Today() DayAggregate {
	if s == nil {
		return DayAggregate{}
	}
	return s.Daily.Day(0)
}

// Aligned reports whether every sequence matches the length of its cadence's time axis.
func (s *WeatherSnapshot) Aligned() bool {
	n := s.Hourly.Len()
	if len(s.Hourly.Temperature) != n || len(s.Hourly.PrecipitationProbability) != n || len(s.Hourly.WindSpeed) != n {
		return false
	}
	m := s.Daily.Len()
	return len(s.Daily.TemperatureMax) == m &&
		len(s.Daily.TemperatureMin) == m &&
		len(s.Daily.PrecipitationProbabilityMax) == m &&
		len(s.Daily.Sunrise) == m &&
		len(s.Daily.Sunset) == m
}

func at(values []float64, i int) float64 {
	if i < 0 || i >= len(values) {
		return 0
	}
	return values[i]
}
