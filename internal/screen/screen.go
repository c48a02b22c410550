package screen

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/i474232898/weather-lookup/internal/forecast"
	"github.com/i474232898/weather-lookup/internal/search"
	"github.com/i474232898/weather-lookup/internal/weather"
)

const (
	// DefaultLocateTimeout bounds the wait for a position fix.
	DefaultLocateTimeout = 10 * time.Second

	// CurrentLocationName names a located place that could not be reverse geocoded.
	CurrentLocationName = "Current location"

	msgGeolocationUnsupported = "Geolocation is not supported"
	msgLocationPrefix         = "Unable to use your location: "
)

// PhaseSearching is reported while a lookup is pending and nothing has been selected.
const PhaseSearching forecast.Phase = "searching"

// ErrSuggestionOutOfRange is returned by SelectSuggestion for an unknown index.
var ErrSuggestionOutOfRange = errors.New("suggestion index out of range")

// Backend is everything a screen looks up; *weather.Service satisfies it.
type Backend interface {
	search.Lookup
	weather.Forecaster
	weather.ReverseGeocoder
}

// Options configures a Screen.
type Options struct {
	SearchDelay   time.Duration
	SearchLimit   int
	LocateTimeout time.Duration
	Chart         weather.Chart
}

// State is the full state record of a screen. View is set once a forecast is ready.
type State struct {
	search.State
	Place    *weather.Place           `json:"place"`
	Weather  *weather.WeatherSnapshot `json:"weather"`
	Loading  bool                     `json:"loading"`
	Error    string                   `json:"error,omitempty"`
	Phase    forecast.Phase           `json:"phase"`
	Advisory weather.Advisory         `json:"advisory"`
	View     *weather.View            `json:"view,omitempty"`
}

// Screen owns one client's weather screen: place search, forecast loading and geolocation.
type Screen struct {
	backend       Backend
	search        *search.GeoSearch
	fetcher       *forecast.Fetcher
	locateTimeout time.Duration
	chart         weather.Chart

	mu     sync.Mutex
	closed bool
	wg     sync.WaitGroup
}

// New creates a Screen.
func New(backend Backend, opts Options) *Screen {
	if opts.LocateTimeout <= 0 {
		opts.LocateTimeout = DefaultLocateTimeout
	}
	if opts.Chart == (weather.Chart{}) {
		opts.Chart = weather.DefaultChart
	}

	return &Screen{
		backend: backend,
		search: search.New(backend, search.Options{
			Delay: opts.SearchDelay,
			Limit: opts.SearchLimit,
		}),
		fetcher:       forecast.New(backend, nil),
		locateTimeout: opts.LocateTimeout,
		chart:         opts.Chart,
	}
}

// SetQuery handles a keystroke in the search box.
func (s *Screen) SetQuery(query string) {
	s.search.SetQuery(query)
}

// Select loads the forecast for place and closes the suggestion list. The query text becomes
// the place's display name, and a pending or in-flight lookup for the old text is dropped so
// its suggestions never reopen the list.
func (s *Screen) Select(place weather.Place) {
	s.fetcher.Select(place)
	s.search.SetText(place.DisplayName())
	s.search.Clear()
}

// SelectSuggestion selects the i-th current suggestion.
func (s *Screen) SelectSuggestion(i int) (weather.Place, error) {
	candidates := s.search.Candidates()
	if i < 0 || i >= len(candidates) {
		return weather.Place{}, ErrSuggestionOutOfRange
	}
	place := candidates[i]
	s.Select(place)
	return place, nil
}

// Reload fetches the forecast for the selected place again.
func (s *Screen) Reload() error {
	return s.fetcher.Reload()
}

// UseMyLocation starts a one-shot position fix with locator and selects the located place.
// A nil locator means geolocation is unavailable; the error is reported in the state and
// returned.
func (s *Screen) UseMyLocation(locator weather.Locator) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}

	ticket, ctx := s.fetcher.BeginLocating()
	if locator == nil {
		s.fetcher.Fail(ticket, msgGeolocationUnsupported)
		return weather.ErrGeolocationUnsupported
	}

	s.wg.Add(1)
	go s.locate(ctx, ticket, locator)
	return nil
}

// State returns a copy of the screen's state record.
func (s *Screen) State() State {
	fs := s.fetcher.State()
	st := State{
		State:    s.search.State(),
		Place:    fs.Place,
		Weather:  fs.Weather,
		Loading:  fs.Loading,
		Error:    fs.Error,
		Phase:    fs.Phase,
		Advisory: weather.Advise(nil),
	}

	if st.Phase == forecast.PhaseIdle && st.Searching {
		st.Phase = PhaseSearching
	}
	if st.Place != nil && st.Weather != nil {
		v := weather.BuildView(*st.Place, *st.Weather, s.chart)
		st.View = &v
		st.Advisory = v.Advisory
	}
	return st
}

// Wait blocks until no geolocation or forecast request is in flight.
func (s *Screen) Wait() {
	s.wg.Wait()
	s.fetcher.Wait()
}

// Close cancels every pending request and waits for them to return.
func (s *Screen) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.mu.Unlock()

	s.search.Close()
	s.fetcher.Close()
	s.wg.Wait()
}

func (s *Screen) locate(ctx context.Context, ticket forecast.Ticket, locator weather.Locator) {
	defer s.wg.Done()

	coords, err := s.fix(ctx, locator)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		log.Printf("ERROR: geolocation failed: %v", err)
		s.fetcher.Fail(ticket, msgLocationPrefix+err.Error())
		return
	}

	place, err := s.backend.Reverse(ctx, coords)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		log.Printf("INFO: reverse geocoding %.4f,%.4f failed, using %q: %v", coords.Latitude, coords.Longitude, CurrentLocationName, err)
		place = weather.Place{
			Name:      CurrentLocationName,
			Latitude:  coords.Latitude,
			Longitude: coords.Longitude,
			Timezone:  time.Local.String(),
		}
	}

	if s.fetcher.SelectWith(ticket, place) {
		s.search.SetText(place.DisplayName())
		s.search.Clear()
	}
}

// fix waits at most locateTimeout for locator, whether or not it honours ctx.
func (s *Screen) fix(ctx context.Context, locator weather.Locator) (weather.Coordinates, error) {
	ctx, cancel := context.WithTimeout(ctx, s.locateTimeout)
	defer cancel()

	type result struct {
		coords weather.Coordinates
		err    error
	}
	done := make(chan result, 1)
	go func() {
		coords, err := locator.Locate(ctx)
		done <- result{coords, err}
	}()

	select {
	case r := <-done:
		if r.err != nil {
			if errors.Is(r.err, context.DeadlineExceeded) {
				return weather.Coordinates{}, weather.ErrLocationUnavailable
			}
			return weather.Coordinates{}, fmt.Errorf("%w: %v", weather.ErrLocationUnavailable, r.err)
		}
		return r.coords, nil
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return weather.Coordinates{}, weather.ErrLocationUnavailable
		}
		return weather.Coordinates{}, ctx.Err()
	}
}
