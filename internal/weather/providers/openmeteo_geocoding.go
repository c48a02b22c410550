package providers

import (
	"context"
	"fmt"
	"net/url"
	"strconv"

	"github.com/i474232898/weather-lookup/internal/weather"
)

type openMeteoPlace struct {
	ID        int64   `json:"id"`
	Name      string  `json:"name"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Country   string  `json:"country"`
	Admin1    string  `json:"admin1"`
	Timezone  string  `json:"timezone"`
}

func (r openMeteoPlace) toPlace() weather.Place {
	return weather.Place{
		ID:        r.ID,
		Name:      r.Name,
		Country:   r.Country,
		Admin1:    r.Admin1,
		Latitude:  r.Latitude,
		Longitude: r.Longitude,
		Timezone:  r.Timezone,
	}
}

type openMeteoGeocodingPayload struct {
	// Results is absent when nothing matched.
	Results []openMeteoPlace `json:"results"`
}

// Search returns ranked candidates for query, at most limit entries.
func (p *OpenMeteoProvider) Search(ctx context.Context, query string, limit int) ([]weather.Place, error) {
	values := url.Values{}
	values.Set("name", query)
	values.Set("count", strconv.Itoa(limit))
	values.Set("language", p.language)
	values.Set("format", "json")

	u := fmt.Sprintf("%s/v1/search?%s", p.geocodingURL, values.Encode())

	var payload openMeteoGeocodingPayload
	if err := getJSON(ctx, p.httpCfg, p.geocodingCB, u, &payload); err != nil {
		return nil, err
	}

	places := make([]weather.Place, 0, len(payload.Results))
	for _, r := range payload.Results {
		if limit > 0 && len(places) >= limit {
			break
		}
		places = append(places, r.toPlace())
	}
	return places, nil
}

// Reverse returns the nearest named place for coords.
func (p *OpenMeteoProvider) Reverse(ctx context.Context, coords weather.Coordinates) (weather.Place, error) {
	values := url.Values{}
	values.Set("latitude", formatFloat(coords.Latitude))
	values.Set("longitude", formatFloat(coords.Longitude))
	values.Set("language", p.language)
	values.Set("format", "json")

	u := fmt.Sprintf("%s/v1/reverse?%s", p.geocodingURL, values.Encode())

	var payload openMeteoGeocodingPayload
	if err := getJSON(ctx, p.httpCfg, p.geocodingCB, u, &payload); err != nil {
		return weather.Place{}, err
	}
	if len(payload.Results) == 0 {
		return weather.Place{}, weather.ErrNoResults
	}
	return payload.Results[0].toPlace(), nil
}
