package httpapi

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/i474232898/weather-lookup/internal/screen"
	"github.com/i474232898/weather-lookup/internal/store"
	"github.com/i474232898/weather-lookup/internal/weather"
)

type fakeProvider struct{}

func (fakeProvider) Name() string { return "fake" }

func (fakeProvider) Search(_ context.Context, query string, limit int) ([]weather.Place, error) {
	places := []weather.Place{
		{ID: 1, Name: "Paris", Admin1: "Île-de-France", Country: "France", Latitude: 48.85341, Longitude: 2.3488},
		{ID: 2, Name: "Paris", Admin1: "Texas", Country: "United States", Latitude: 33.66094, Longitude: -95.55551},
	}
	if limit < len(places) {
		places = places[:limit]
	}
	return places, nil
}

func (fakeProvider) Reverse(_ context.Context, coords weather.Coordinates) (weather.Place, error) {
	if coords.Latitude == 0 && coords.Longitude == 0 {
		return weather.Place{}, weather.ErrNoResults
	}
	return weather.Place{Name: "Paris", Admin1: "Île-de-France", Latitude: coords.Latitude, Longitude: coords.Longitude}, nil
}

func (fakeProvider) Forecast(_ context.Context, place weather.Place) (weather.WeatherSnapshot, error) {
	day := time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC)
	return weather.WeatherSnapshot{
		Latitude:  place.Latitude,
		Longitude: place.Longitude,
		Current:   weather.CurrentConditions{Time: day.Add(14 * time.Hour), Temperature: 36.2},
		Daily: weather.DailySeries{
			Time:                        []time.Time{day},
			TemperatureMax:              []float64{37},
			TemperatureMin:              []float64{24},
			PrecipitationProbabilityMax: []float64{10},
			Sunrise:                     []time.Time{day.Add(6 * time.Hour)},
			Sunset:                      []time.Time{day.Add(21 * time.Hour)},
		},
	}, nil
}

type recordingIPLocator struct {
	mu  sync.Mutex
	ips []string
}

func (l *recordingIPLocator) ForIP(ip string) weather.Locator {
	l.mu.Lock()
	l.ips = append(l.ips, ip)
	l.mu.Unlock()
	return weather.FixedLocator(weather.Coordinates{Latitude: 48.85, Longitude: 2.35})
}

func newTestApp(t *testing.T, ipLocator IPLocator) *fiber.App {
	t.Helper()

	p := fakeProvider{}
	svc := weather.NewService(p, p, p, 6)
	sessions := store.NewMemoryStore(func() *screen.Screen {
		return screen.New(svc, screen.Options{SearchDelay: 5 * time.Millisecond, LocateTimeout: time.Second})
	}, 10, time.Hour)
	t.Cleanup(sessions.CloseAll)

	app := fiber.New(fiber.Config{ErrorHandler: ErrorHandler})
	RegisterRoutes(app, svc, sessions, ipLocator)
	return app
}

func doJSON(t *testing.T, app *fiber.App, method, target, body string, out any) int {
	t.Helper()

	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, r)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer resp.Body.Close()

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			t.Fatalf("decode %s %s: %v", method, target, err)
		}
	}
	return resp.StatusCode
}

type sessionBody struct {
	ID          string           `json:"id"`
	Query       string           `json:"query"`
	Suggestions []suggestionBody `json:"suggestions"`
	Place       *weather.Place   `json:"place"`
	Loading     bool             `json:"loading"`
	Error       string           `json:"error"`
	Phase       string           `json:"phase"`
	Advisory    weather.Advisory `json:"advisory"`
	View        *weather.View    `json:"view"`
}

type suggestionBody struct {
	weather.Place
	Display weather.Coordinates `json:"displayCoordinates"`
}

func pollSession(t *testing.T, app *fiber.App, id string, cond func(sessionBody) bool) sessionBody {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	var body sessionBody
	for time.Now().Before(deadline) {
		body = sessionBody{}
		if code := doJSON(t, app, http.MethodGet, "/api/v1/sessions/"+id, "", &body); code != http.StatusOK {
			t.Fatalf("expected status 200, got %d", code)
		}
		if cond(body) {
			return body
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("condition not reached, last session %+v", body)
	return body
}

func TestSearchValidation(t *testing.T) {
	app := newTestApp(t, nil)

	var errBody struct {
		Error   bool   `json:"error"`
		Message string `json:"message"`
	}
	if code := doJSON(t, app, http.MethodGet, "/api/v1/places/search?name=P", "", &errBody); code != http.StatusBadRequest {
		t.Fatalf("expected status %d, got %d", http.StatusBadRequest, code)
	}
	if !errBody.Error || errBody.Message == "" {
		t.Fatalf("expected error body, got %+v", errBody)
	}

	if code := doJSON(t, app, http.MethodGet, "/api/v1/places/search?name=Paris&count=11", "", nil); code != http.StatusBadRequest {
		t.Fatalf("expected status %d, got %d", http.StatusBadRequest, code)
	}
	if code := doJSON(t, app, http.MethodGet, "/api/v1/places/search?name=Paris&count=two", "", nil); code != http.StatusBadRequest {
		t.Fatalf("expected status %d, got %d", http.StatusBadRequest, code)
	}

	var ok struct {
		Results []weather.Place `json:"results"`
	}
	if code := doJSON(t, app, http.MethodGet, "/api/v1/places/search?name=Paris&count=1", "", &ok); code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", code)
	}
	if len(ok.Results) != 1 || ok.Results[0].Name != "Paris" {
		t.Fatalf("unexpected results %+v", ok.Results)
	}
}

func TestReverseAndForecast(t *testing.T) {
	app := newTestApp(t, nil)

	if code := doJSON(t, app, http.MethodGet, "/api/v1/places/reverse?lat=95&lon=2", "", nil); code != http.StatusBadRequest {
		t.Fatalf("expected status 400 for out-of-range latitude, got %d", code)
	}
	if code := doJSON(t, app, http.MethodGet, "/api/v1/places/reverse?lat=48.85", "", nil); code != http.StatusBadRequest {
		t.Fatalf("expected status 400 for missing longitude, got %d", code)
	}
	if code := doJSON(t, app, http.MethodGet, "/api/v1/places/reverse?lat=0&lon=0", "", nil); code != http.StatusNotFound {
		t.Fatalf("expected status 404, got %d", code)
	}

	var fc struct {
		Place weather.Place `json:"place"`
		View  weather.View  `json:"view"`
	}
	if code := doJSON(t, app, http.MethodGet, "/api/v1/forecast?lat=48.8534&lon=2.3488&name=Paris", "", &fc); code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", code)
	}
	if fc.View.Place.Coordinates.Latitude != 48.85 || fc.View.Current.Temperature != 36 {
		t.Fatalf("unexpected view %+v", fc.View)
	}
	if fc.View.Advisory.Kind != weather.AdvisoryHeat {
		t.Fatalf("expected heat advisory, got %s", fc.View.Advisory.Kind)
	}
}

func TestSessionFlow(t *testing.T) {
	app := newTestApp(t, nil)

	var created sessionBody
	if code := doJSON(t, app, http.MethodPost, "/api/v1/sessions", "", &created); code != http.StatusCreated {
		t.Fatalf("expected status 201, got %d", code)
	}
	if created.ID == "" || created.Phase != "idle" || created.Advisory.Kind != weather.AdvisoryPrompt {
		t.Fatalf("unexpected new session %+v", created)
	}
	base := "/api/v1/sessions/" + created.ID

	if code := doJSON(t, app, http.MethodPost, base+"/reload", "", nil); code != http.StatusConflict {
		t.Fatalf("expected status 409 without a place, got %d", code)
	}

	if code := doJSON(t, app, http.MethodPut, base+"/query", `{"query": "Paris"}`, nil); code != http.StatusAccepted {
		t.Fatalf("expected status 202, got %d", code)
	}
	listed := pollSession(t, app, created.ID, func(s sessionBody) bool { return len(s.Suggestions) == 2 })
	if d := listed.Suggestions[1].Display; d.Latitude != 33.66 || d.Longitude != -95.56 {
		t.Fatalf("expected rounded display coordinates, got %+v", d)
	}
	if listed.Suggestions[1].Latitude != 33.66094 {
		t.Fatalf("expected full precision coordinates, got %v", listed.Suggestions[1].Latitude)
	}

	if code := doJSON(t, app, http.MethodPost, base+"/select", `{"index": 7}`, nil); code != http.StatusBadRequest {
		t.Fatalf("expected status 400 for unknown suggestion, got %d", code)
	}
	if code := doJSON(t, app, http.MethodPost, base+"/select", `{}`, nil); code != http.StatusBadRequest {
		t.Fatalf("expected status 400 for empty selection, got %d", code)
	}
	if code := doJSON(t, app, http.MethodPost, base+"/select", `{"index": 1}`, nil); code != http.StatusAccepted {
		t.Fatalf("expected status 202, got %d", code)
	}

	ready := pollSession(t, app, created.ID, func(s sessionBody) bool { return s.Phase == "forecast-ready" })
	if ready.Place == nil || ready.Place.Admin1 != "Texas" {
		t.Fatalf("unexpected place %+v", ready.Place)
	}
	if ready.Query != "Paris, Texas" || len(ready.Suggestions) != 0 {
		t.Fatalf("unexpected search slice %+v", ready)
	}
	if ready.View == nil || ready.Advisory.Kind != weather.AdvisoryHeat {
		t.Fatalf("unexpected view %+v", ready.View)
	}

	if code := doJSON(t, app, http.MethodPost, base+"/reload", "", nil); code != http.StatusAccepted {
		t.Fatalf("expected status 202, got %d", code)
	}

	if code := doJSON(t, app, http.MethodDelete, base, "", nil); code != http.StatusNoContent {
		t.Fatalf("expected status 204, got %d", code)
	}
	if code := doJSON(t, app, http.MethodGet, base, "", nil); code != http.StatusNotFound {
		t.Fatalf("expected status 404, got %d", code)
	}
}

func TestSelectExplicitPlace(t *testing.T) {
	app := newTestApp(t, nil)

	var created sessionBody
	doJSON(t, app, http.MethodPost, "/api/v1/sessions", "", &created)
	base := "/api/v1/sessions/" + created.ID

	if code := doJSON(t, app, http.MethodPost, base+"/select", `{"place": {"name": "Nowhere", "latitude": 123, "longitude": 0}}`, nil); code != http.StatusBadRequest {
		t.Fatalf("expected status 400 for invalid latitude, got %d", code)
	}
	if code := doJSON(t, app, http.MethodPost, base+"/select", `{"place": {"name": "Lyon", "latitude": 45.75, "longitude": 4.85}}`, nil); code != http.StatusAccepted {
		t.Fatalf("expected status 202, got %d", code)
	}

	ready := pollSession(t, app, created.ID, func(s sessionBody) bool { return s.Phase == "forecast-ready" })
	if ready.Place.Name != "Lyon" {
		t.Fatalf("unexpected place %+v", ready.Place)
	}
}

func TestLocate(t *testing.T) {
	t.Run("coordinates", func(t *testing.T) {
		app := newTestApp(t, nil)
		var created sessionBody
		doJSON(t, app, http.MethodPost, "/api/v1/sessions", "", &created)

		if code := doJSON(t, app, http.MethodPost, "/api/v1/sessions/"+created.ID+"/locate", `{"latitude": 48.85}`, nil); code != http.StatusBadRequest {
			t.Fatalf("expected status 400 for a lone latitude, got %d", code)
		}
		if code := doJSON(t, app, http.MethodPost, "/api/v1/sessions/"+created.ID+"/locate", `{"latitude": 48.85, "longitude": 2.35}`, nil); code != http.StatusAccepted {
			t.Fatalf("expected status 202, got %d", code)
		}

		ready := pollSession(t, app, created.ID, func(s sessionBody) bool { return s.Phase == "forecast-ready" })
		if ready.Place == nil || ready.Place.Name != "Paris" || ready.Query != "Paris, Île-de-France" {
			t.Fatalf("unexpected located session %+v", ready)
		}
	})

	t.Run("unsupported", func(t *testing.T) {
		app := newTestApp(t, nil)
		var created sessionBody
		doJSON(t, app, http.MethodPost, "/api/v1/sessions", "", &created)

		if code := doJSON(t, app, http.MethodPost, "/api/v1/sessions/"+created.ID+"/locate", "", nil); code != http.StatusNotImplemented {
			t.Fatalf("expected status 501, got %d", code)
		}
		st := pollSession(t, app, created.ID, func(s sessionBody) bool { return true })
		if st.Error != "Geolocation is not supported" {
			t.Fatalf("unexpected error %q", st.Error)
		}
	})

	t.Run("ip", func(t *testing.T) {
		locator := &recordingIPLocator{}
		app := newTestApp(t, locator)
		var created sessionBody
		doJSON(t, app, http.MethodPost, "/api/v1/sessions", "", &created)

		if code := doJSON(t, app, http.MethodPost, "/api/v1/sessions/"+created.ID+"/locate", "", nil); code != http.StatusAccepted {
			t.Fatalf("expected status 202, got %d", code)
		}
		pollSession(t, app, created.ID, func(s sessionBody) bool { return s.Phase == "forecast-ready" })

		locator.mu.Lock()
		defer locator.mu.Unlock()
		// app.Test requests come from a local address, which ip-api resolves as the caller.
		if len(locator.ips) != 1 || locator.ips[0] != "" {
			t.Fatalf("expected one lookup for the caller address, got %v", locator.ips)
		}
	})
}

func TestUnknownSession(t *testing.T) {
	app := newTestApp(t, nil)

	for _, tc := range []struct{ method, path string }{
		{http.MethodGet, "/api/v1/sessions/missing"},
		{http.MethodPut, "/api/v1/sessions/missing/query"},
		{http.MethodPost, "/api/v1/sessions/missing/reload"},
		{http.MethodDelete, "/api/v1/sessions/missing"},
	} {
		if code := doJSON(t, app, tc.method, tc.path, "", nil); code != http.StatusNotFound {
			t.Errorf("%s %s: expected status 404, got %d", tc.method, tc.path, code)
		}
	}
}
