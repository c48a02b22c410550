package providers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/i474232898/weather-lookup/internal/weather"
	"github.com/sony/gobreaker"
)

const DefaultIPAPIURL = "http://ip-api.com/json"

var errIPLookupFailed = errors.New("ip lookup failed")

// IPAPILocator estimates a position from a client IP address using ip-api.com.
type IPAPILocator struct {
	baseURL string
	httpCfg HTTPClientConfig
	circuit *gobreaker.CircuitBreaker
}

func NewIPAPILocator(client *http.Client, baseURL string) *IPAPILocator {
	if baseURL == "" {
		baseURL = DefaultIPAPIURL
	}
	return &IPAPILocator{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpCfg: newHTTPConfig(client),
		circuit: newBreaker("ipapi"),
	}
}

type ipAPIPayload struct {
	Status     string  `json:"status"`
	Message    string  `json:"message"`
	Country    string  `json:"country"`
	RegionName string  `json:"regionName"`
	City       string  `json:"city"`
	Lat        float64 `json:"lat"`
	Lon        float64 `json:"lon"`
	Timezone   string  `json:"timezone"`
}

// Lookup resolves ip. An empty ip resolves the caller's public address.
func (l *IPAPILocator) Lookup(ctx context.Context, ip string) (weather.Coordinates, error) {
	values := url.Values{}
	values.Set("fields", "status,message,country,regionName,city,lat,lon,timezone")

	u := l.baseURL
	if ip != "" {
		u += "/" + url.PathEscape(ip)
	}
	u += "?" + values.Encode()

	var payload ipAPIPayload
	if err := getJSON(ctx, l.httpCfg, l.circuit, u, &payload); err != nil {
		return weather.Coordinates{}, err
	}
	if payload.Status != "success" {
		return weather.Coordinates{}, fmt.Errorf("%w: %s", errIPLookupFailed, payload.Message)
	}
	return weather.Coordinates{Latitude: payload.Lat, Longitude: payload.Lon}, nil
}

// ForIP returns a weather.Locator bound to ip.
func (l *IPAPILocator) ForIP(ip string) weather.Locator {
	return weather.LocatorFunc(func(ctx context.Context) (weather.Coordinates, error) {
		return l.Lookup(ctx, ip)
	})
}
