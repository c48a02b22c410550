package providers

import (
	"context"
	"fmt"
	"sync"

	"github.com/i474232898/weather-lookup/internal/weather"
	"github.com/kelvins/geocoder"
)

// geocoder.ApiKey is package-global.
var googleKeyMu sync.Mutex

// GoogleGeocoder implements weather.Geocoder and weather.ReverseGeocoder with the Google
// Geocoding API through kelvins/geocoder. The library call is not context aware; a cancelled
// context abandons the call and discards its result.
type GoogleGeocoder struct {
	name    string
	apiKey  string
	geocode func(geocoder.Address) (geocoder.Location, error)
	reverse func(geocoder.Location) ([]geocoder.Address, error)
}

func NewGoogleGeocoder(apiKey string) *GoogleGeocoder {
	return &GoogleGeocoder{
		name:    "google",
		apiKey:  apiKey,
		geocode: geocoder.Geocoding,
		reverse: geocoder.GeocodingReverse,
	}
}

func (p *GoogleGeocoder) Name() string {
	return p.name
}

// Search resolves query to the single best match; Google returns one location per address.
func (p *GoogleGeocoder) Search(ctx context.Context, query string, _ int) ([]weather.Place, error) {
	if p.apiKey == "" {
		return nil, fmt.Errorf("google: %w", ErrMissingAPIKey)
	}

	loc, err := runBlocking(ctx, func() (geocoder.Location, error) {
		p.useKey()
		return p.geocode(geocoder.Address{City: query})
	})
	if err != nil {
		return nil, err
	}

	return []weather.Place{{
		Name:      query,
		Latitude:  loc.Latitude,
		Longitude: loc.Longitude,
	}}, nil
}

func (p *GoogleGeocoder) Reverse(ctx context.Context, coords weather.Coordinates) (weather.Place, error) {
	if p.apiKey == "" {
		return weather.Place{}, fmt.Errorf("google: %w", ErrMissingAPIKey)
	}

	addresses, err := runBlocking(ctx, func() ([]geocoder.Address, error) {
		p.useKey()
		return p.reverse(geocoder.Location{Latitude: coords.Latitude, Longitude: coords.Longitude})
	})
	if err != nil {
		return weather.Place{}, err
	}
	if len(addresses) == 0 {
		return weather.Place{}, weather.ErrNoResults
	}

	a := addresses[0]
	name := a.City
	if name == "" {
		name = a.FormattedAddress
	}
	return weather.Place{
		Name:      name,
		Country:   a.Country,
		Admin1:    a.State,
		Latitude:  coords.Latitude,
		Longitude: coords.Longitude,
	}, nil
}

func (p *GoogleGeocoder) useKey() {
	googleKeyMu.Lock()
	geocoder.ApiKey = p.apiKey
	googleKeyMu.Unlock()
}

// runBlocking runs fn in a goroutine and returns early when ctx is done.
func runBlocking[T any](ctx context.Context, fn func() (T, error)) (T, error) {
	type result struct {
		val T
		err error
	}

	ch := make(chan result, 1)
	go func() {
		v, err := fn()
		ch <- result{val: v, err: err}
	}()

	select {
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	case r := <-ch:
		return r.val, r.err
	}
}
