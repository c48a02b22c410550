package weather

import (
	"context"
	"fmt"
	"log"
	"strings"
)

// MinQueryLength is the shortest trimmed query that triggers a lookup.
const MinQueryLength = 2

// Service bundles the lookup providers used by stateless endpoints and screen sessions.
type Service struct {
	geocoder   Geocoder
	reverse    ReverseGeocoder
	forecaster Forecaster
	limit      int
}

// NewService creates a new Service. reverse may be nil, in which case reverse lookups fail
// with ErrNoResults.
func NewService(geocoder Geocoder, reverse ReverseGeocoder, forecaster Forecaster, limit int) *Service {
	if limit <= 0 {
		limit = 6
	}
	return &Service{
		geocoder:   geocoder,
		reverse:    reverse,
		forecaster: forecaster,
		limit:      limit,
	}
}

// Search returns at most limit candidates for query. Queries shorter than MinQueryLength
// yield no candidates and no request.
func (s *Service) Search(ctx context.Context, query string, limit int) ([]Place, error) {
	q := strings.TrimSpace(query)
	if len([]rune(q)) < MinQueryLength {
		return []Place{}, nil
	}
	if limit <= 0 || limit > s.limit {
		limit = s.limit
	}

	places, err := s.geocoder.Search(ctx, q, limit)
	if err != nil {
		if !IsCanceled(err) {
			log.Printf("ERROR: geocoder %s search %q failed: %v", s.geocoder.Name(), q, err)
		}
		return nil, err
	}
	if len(places) > limit {
		places = places[:limit]
	}
	return places, nil
}

// Reverse resolves coordinates into the nearest named place.
func (s *Service) Reverse(ctx context.Context, coords Coordinates) (Place, error) {
	if s.reverse == nil {
		return Place{}, ErrNoResults
	}
	return s.reverse.Reverse(ctx, coords)
}

// Forecast fetches the weather snapshot for place.
func (s *Service) Forecast(ctx context.Context, place Place) (WeatherSnapshot, error) {
	log.Printf("DEBUG: forecast requested for %s (%s)", place.DisplayName(), place.Key())
	snapshot, err := s.forecaster.Forecast(ctx, place)
	if err != nil {
		return WeatherSnapshot{}, fmt.Errorf("forecast for %s: %w", place.Key(), err)
	}
	return snapshot, nil
}
