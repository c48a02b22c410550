package forecast

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/i474232898/weather-lookup/internal/weather"
	"github.com/i474232898/weather-lookup/internal/weather/providers"
)

// fakeForecaster answers by place name. Places listed in gates wait until their gate is
// closed or the request is cancelled.
type fakeForecaster struct {
	mu     sync.Mutex
	calls  []string
	gates  map[string]chan struct{}
	fail   map[string]error
	ctxErr map[string]error
}

func (f *fakeForecaster) Forecast(ctx context.Context, place weather.Place) (weather.WeatherSnapshot, error) {
	f.mu.Lock()
	f.calls = append(f.calls, place.Name)
	gate := f.gates[place.Name]
	err := f.fail[place.Name]
	f.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			f.mu.Lock()
			if f.ctxErr == nil {
				f.ctxErr = map[string]error{}
			}
			f.ctxErr[place.Name] = ctx.Err()
			f.mu.Unlock()
			return weather.WeatherSnapshot{}, ctx.Err()
		}
	}
	if err != nil {
		return weather.WeatherSnapshot{}, err
	}
	return weather.WeatherSnapshot{
		Latitude:  place.Latitude,
		Longitude: place.Longitude,
		Timezone:  place.Name,
	}, nil
}

func (f *fakeForecaster) cancelled(name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.ctxErr[name]
}

func TestSelectLoadsForecast(t *testing.T) {
	fc := &fakeForecaster{gates: map[string]chan struct{}{"Bangkok": make(chan struct{})}}
	f := New(fc, nil)
	defer f.Close()

	if st := f.State(); st.Phase != PhaseIdle || st.Place != nil {
		t.Fatalf("expected idle state, got %+v", st)
	}

	f.Select(weather.Place{Name: "Bangkok", Latitude: 13.75, Longitude: 100.5})

	st := f.State()
	if !st.Loading || st.Phase != PhaseLoading || st.Weather != nil || st.Error != "" {
		t.Fatalf("expected loading state, got %+v", st)
	}

	close(fc.gates["Bangkok"])
	f.Wait()

	st = f.State()
	if st.Loading || st.Phase != PhaseReady {
		t.Fatalf("expected ready state, got %+v", st)
	}
	if st.Weather == nil || st.Weather.Timezone != "Bangkok" {
		t.Fatalf("unexpected weather %+v", st.Weather)
	}
}

func TestLatestSelectionWins(t *testing.T) {
	fc := &fakeForecaster{gates: map[string]chan struct{}{
		"Slow": make(chan struct{}),
	}}
	f := New(fc, nil)
	defer f.Close()

	f.Select(weather.Place{Name: "Slow"})
	f.Select(weather.Place{Name: "Fast"})
	f.Wait()

	st := f.State()
	if st.Place == nil || st.Place.Name != "Fast" {
		t.Fatalf("expected Fast to be selected, got %+v", st.Place)
	}
	if st.Weather == nil || st.Weather.Timezone != "Fast" {
		t.Fatalf("expected Fast weather, got %+v", st.Weather)
	}
	if err := fc.cancelled("Slow"); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected the superseded request to be cancelled, got %v", err)
	}
}

func TestSupersededResultIsDiscarded(t *testing.T) {
	// The first forecaster ignores cancellation and answers late.
	first := make(chan struct{})
	fc := weatherFunc(func(ctx context.Context, place weather.Place) (weather.WeatherSnapshot, error) {
		if place.Name == "Old" {
			<-first
			return weather.WeatherSnapshot{Timezone: "Old"}, nil
		}
		return weather.WeatherSnapshot{Timezone: "New"}, nil
	})
	f := New(fc, nil)
	defer f.Close()

	f.Select(weather.Place{Name: "Old"})
	f.Select(weather.Place{Name: "New"})
	close(first)
	f.Wait()

	if st := f.State(); st.Weather == nil || st.Weather.Timezone != "New" {
		t.Fatalf("stale result overwrote the latest selection: %+v", st.Weather)
	}
}

func TestFailureSetsMessage(t *testing.T) {
	fc := &fakeForecaster{fail: map[string]error{"Nowhere": errors.New("502 bad gateway")}}
	settled := make(chan State, 1)
	f := New(fc, func(st State) { settled <- st })
	defer f.Close()

	f.Select(weather.Place{Name: "Nowhere"})

	var st State
	select {
	case st = <-settled:
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for the forecast to settle")
	}
	if st.Error != FailureMessage || st.Loading || st.Weather != nil || st.Phase != PhaseError {
		t.Fatalf("unexpected failure state %+v", st)
	}
	if st.Place == nil || st.Place.Name != "Nowhere" {
		t.Fatalf("expected the place to stay selected, got %+v", st.Place)
	}
}

func TestCloseDoesNotMutateState(t *testing.T) {
	fc := &fakeForecaster{gates: map[string]chan struct{}{"Oslo": make(chan struct{})}}
	f := New(fc, func(State) { t.Error("no load should settle after Close") })

	f.Select(weather.Place{Name: "Oslo"})
	f.Close()

	st := f.State()
	if st.Error != "" || st.Weather != nil {
		t.Fatalf("cancellation must not set error or weather, got %+v", st)
	}
	if err := fc.cancelled("Oslo"); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected the request to be cancelled, got %v", err)
	}
}

func TestReload(t *testing.T) {
	fc := &fakeForecaster{}
	f := New(fc, nil)
	defer f.Close()

	if err := f.Reload(); !errors.Is(err, ErrNoPlace) {
		t.Fatalf("expected ErrNoPlace, got %v", err)
	}

	f.Select(weather.Place{Name: "Lima"})
	f.Wait()
	if err := f.Reload(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	f.Wait()

	if len(fc.calls) != 2 || fc.calls[1] != "Lima" {
		t.Fatalf("expected a second request for Lima, got %v", fc.calls)
	}
	if st := f.State(); st.Phase != PhaseReady {
		t.Fatalf("expected ready after reload, got %s", st.Phase)
	}
}

func TestLocatingTickets(t *testing.T) {
	fc := &fakeForecaster{}
	f := New(fc, nil)
	defer f.Close()

	ticket, ctx := f.BeginLocating()
	if st := f.State(); !st.Loading || st.Phase != PhaseLocating {
		t.Fatalf("expected locating state, got %+v", st)
	}

	// A manual selection supersedes the locating ticket.
	f.Select(weather.Place{Name: "Manual"})
	f.Wait()
	if ctx.Err() == nil {
		t.Fatal("expected the locating context to be cancelled")
	}
	if f.SelectWith(ticket, weather.Place{Name: "Located"}) {
		t.Fatal("expected a stale ticket to be rejected")
	}
	if f.Fail(ticket, "boom") {
		t.Fatal("expected a stale ticket to be rejected")
	}
	if st := f.State(); st.Place.Name != "Manual" || st.Error != "" {
		t.Fatalf("unexpected state %+v", st)
	}

	ticket, _ = f.BeginLocating()
	if !f.Fail(ticket, "Unable to use your location: timeout") {
		t.Fatal("expected the active ticket to be accepted")
	}
	if st := f.State(); st.Loading || st.Error != "Unable to use your location: timeout" {
		t.Fatalf("unexpected state %+v", st)
	}

	ticket, _ = f.BeginLocating()
	if !f.SelectWith(ticket, weather.Place{Name: "Located"}) {
		t.Fatal("expected the active ticket to be accepted")
	}
	f.Wait()
	if st := f.State(); st.Place.Name != "Located" || st.Phase != PhaseReady || st.Error != "" {
		t.Fatalf("unexpected state %+v", st)
	}
}

func TestFetcherWithOpenMeteo(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if q.Get("latitude") != "13.75" || q.Get("longitude") != "100.5" {
			t.Errorf("unexpected coordinates %s", r.URL.RawQuery)
		}
		w.Write([]byte(`{
			"latitude": 13.75, "longitude": 100.5, "timezone": "Asia/Bangkok", "utc_offset_seconds": 25200,
			"current": {"time": "2025-03-10T13:00", "temperature_2m": 31.0, "weather_code": 1},
			"hourly": {"time": ["2025-03-10T13:00"], "temperature_2m": [31.0], "precipitation_probability": [75], "wind_speed_10m": [3]},
			"daily": {"time": ["2025-03-10"], "temperature_2m_max": [33], "temperature_2m_min": [25], "precipitation_probability_max": [75],
			          "sunrise": ["2025-03-10T06:25"], "sunset": ["2025-03-10T18:20"]}
		}`))
	}))
	defer srv.Close()

	om := providers.NewOpenMeteoProvider(srv.Client(), providers.OpenMeteoConfig{ForecastURL: srv.URL})
	f := New(weather.NewService(om, om, om, 6), nil)
	defer f.Close()

	f.Select(weather.Place{Name: "Bangkok", Latitude: 13.75, Longitude: 100.50})
	f.Wait()

	st := f.State()
	if st.Phase != PhaseReady || st.Weather == nil {
		t.Fatalf("expected ready state, got %+v", st)
	}
	if got := weather.Advise(st.Weather); got.Kind != weather.AdvisoryRain {
		t.Fatalf("expected rain advisory, got %s", got.Kind)
	}
}

type weatherFunc func(ctx context.Context, place weather.Place) (weather.WeatherSnapshot, error)

func (f weatherFunc) Forecast(ctx context.Context, place weather.Place) (weather.WeatherSnapshot, error) {
	return f(ctx, place)
}
