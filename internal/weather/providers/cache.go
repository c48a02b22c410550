package providers

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/i474232898/weather-lookup/internal/weather"
	"github.com/patrickmn/go-cache"
)

// CachedGeocoder memoizes successful searches of an underlying geocoder. Forecasts are never
// cached; every selection fetches fresh data.
type CachedGeocoder struct {
	next  weather.Geocoder
	cache *cache.Cache
}

// NewCachedGeocoder wraps next with a TTL cache. A non-positive ttl disables caching and returns
// next unchanged.
func NewCachedGeocoder(next weather.Geocoder, ttl time.Duration) weather.Geocoder {
	if ttl <= 0 {
		return next
	}
	return &CachedGeocoder{
		next:  next,
		cache: cache.New(ttl, 2*ttl),
	}
}

func (c *CachedGeocoder) Name() string {
	return c.next.Name()
}

func (c *CachedGeocoder) Search(ctx context.Context, query string, limit int) ([]weather.Place, error) {
	key := fmt.Sprintf("%s|%d", strings.ToLower(query), limit)
	if v, ok := c.cache.Get(key); ok {
		if places, ok := v.([]weather.Place); ok {
			return append([]weather.Place(nil), places...), nil
		}
	}

	places, err := c.next.Search(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	c.cache.Set(key, append([]weather.Place(nil), places...), cache.DefaultExpiration)
	return places, nil
}
