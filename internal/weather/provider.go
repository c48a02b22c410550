package weather

import (
	"context"
	"errors"
)

var (
	// ErrNoResults is returned by reverse lookups that found no named place.
	ErrNoResults = errors.New("no places found")
	// ErrLocationUnavailable is returned when no position fix could be obtained in time.
	ErrLocationUnavailable = errors.New("location unavailable")
	// ErrGeolocationUnsupported is returned when no geolocation source is configured.
	ErrGeolocationUnsupported = errors.New("geolocation is not supported")
)

// Geocoder resolves free-text place names into ranked candidates.
type Geocoder interface {
	Name() string
	Search(ctx context.Context, query string, limit int) ([]Place, error)
}

// ReverseGeocoder resolves coordinates into the nearest named place.
type ReverseGeocoder interface {
	Reverse(ctx context.Context, coords Coordinates) (Place, error)
}

// Forecaster fetches current, hourly and daily weather for a place.
type Forecaster interface {
	Forecast(ctx context.Context, place Place) (WeatherSnapshot, error)
}

// Locator obtains a one-shot position fix.
type Locator interface {
	Locate(ctx context.Context) (Coordinates, error)
}

// LocatorFunc adapts a function to the Locator interface.
type LocatorFunc func(ctx context.Context) (Coordinates, error)

// Locate calls f(ctx).
func (f LocatorFunc) Locate(ctx context.Context) (Coordinates, error) {
	return f(ctx)
}

// FixedLocator returns a Locator that always reports coords, e.g. a fix sent by the client.
func FixedLocator(coords Coordinates) Locator {
	return LocatorFunc(func(ctx context.Context) (Coordinates, error) {
		if err := ctx.Err(); err != nil {
			return Coordinates{}, err
		}
		return coords, nil
	})
}

// IsCanceled reports whether err stems from a superseded or torn-down request.
func IsCanceled(err error) bool {
	return errors.Is(err, context.Canceled)
}
