package search

import (
	"context"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/i474232898/weather-lookup/internal/weather"
)

const (
	// DefaultDelay is the quiet period before a query is looked up.
	DefaultDelay = 300 * time.Millisecond
	// DefaultLimit caps the number of candidates kept.
	DefaultLimit = 6

	errSearchMessage = "Unable to search places"
)

// Lookup is the place lookup GeoSearch drives; *weather.Service and any weather.Geocoder
// satisfy it.
type Lookup interface {
	Search(ctx context.Context, query string, limit int) ([]weather.Place, error)
}

// Result describes a settled lookup.
type Result struct {
	Query  string
	Places []weather.Place
	Err    error
}

// Options configures a GeoSearch.
type Options struct {
	Delay time.Duration
	Limit int
	// OnSettle is called after every lookup that was still current when it completed.
	// Superseded and cancelled lookups are never reported.
	OnSettle func(Result)
}

// Suggestion is a candidate place together with its coordinates rounded for display.
type Suggestion struct {
	weather.Place
	Display weather.Coordinates `json:"displayCoordinates"`
}

// NewSuggestion wraps place for display.
func NewSuggestion(place weather.Place) Suggestion {
	return Suggestion{Place: place, Display: place.DisplayCoordinates()}
}

// State is a copy of the search slice of a screen.
type State struct {
	Query      string       `json:"query"`
	Candidates []Suggestion `json:"suggestions"`
	Searching  bool         `json:"searching"`
	Error      string       `json:"searchError,omitempty"`
}

// GeoSearch turns keystrokes into debounced, cancellable place lookups. Only the lookup issued
// for the latest query may update the candidate list.
type GeoSearch struct {
	lookup   Lookup
	delay    time.Duration
	limit    int
	onSettle func(Result)

	mu         sync.Mutex
	query      string
	candidates []weather.Place
	searching  bool
	errMsg     string
	gen        uint64
	timer      *time.Timer
	cancel     context.CancelFunc
	closed     bool
	wg         sync.WaitGroup
}

// New creates a GeoSearch.
func New(lookup Lookup, opts Options) *GeoSearch {
	if opts.Delay <= 0 {
		opts.Delay = DefaultDelay
	}
	if opts.Limit <= 0 {
		opts.Limit = DefaultLimit
	}
	return &GeoSearch{
		lookup:     lookup,
		delay:      opts.Delay,
		limit:      opts.Limit,
		onSettle:   opts.OnSettle,
		candidates: []weather.Place{},
	}
}

// SetQuery records a new query. Short queries clear the candidates immediately without a
// request; others are looked up once the input has been quiet for the debounce delay.
func (s *GeoSearch) SetQuery(query string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return
	}

	s.query = query
	s.supersedeLocked()

	q := strings.TrimSpace(query)
	if len([]rune(q)) < weather.MinQueryLength {
		s.candidates = []weather.Place{}
		return
	}

	gen := s.gen
	s.searching = true
	s.timer = time.AfterFunc(s.delay, func() { s.run(gen, q) })
}

// SetText replaces the query text without looking it up.
func (s *GeoSearch) SetText(query string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return
	}
	s.query = query
	s.supersedeLocked()
}

// Clear drops the current candidates.
func (s *GeoSearch) Clear() {
	s.mu.Lock()
	s.candidates = []weather.Place{}
	s.mu.Unlock()
}

// Candidates returns a copy of the latest candidates.
func (s *GeoSearch) Candidates() []weather.Place {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]weather.Place{}, s.candidates...)
}

// State returns a copy of the search slice.
func (s *GeoSearch) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	suggestions := make([]Suggestion, len(s.candidates))
	for i, p := range s.candidates {
		suggestions[i] = NewSuggestion(p)
	}
	return State{
		Query:      s.query,
		Candidates: suggestions,
		Searching:  s.searching,
		Error:      s.errMsg,
	}
}

// Close cancels any pending or in-flight lookup and waits for it to return.
func (s *GeoSearch) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.supersedeLocked()
	s.mu.Unlock()

	s.wg.Wait()
}

// supersedeLocked invalidates the current token: the debounce timer is stopped and any
// in-flight request is cancelled.
func (s *GeoSearch) supersedeLocked() {
	s.gen++
	s.searching = false
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
}

func (s *GeoSearch) run(gen uint64, query string) {
	s.mu.Lock()
	if s.closed || gen != s.gen {
		s.mu.Unlock()
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	s.timer = nil
	s.cancel = cancel
	s.wg.Add(1)
	s.mu.Unlock()

	defer s.wg.Done()
	defer cancel()

	places, err := s.lookup.Search(ctx, query, s.limit)

	s.mu.Lock()
	if s.closed || gen != s.gen {
		s.mu.Unlock()
		return
	}
	s.cancel = nil
	s.searching = false

	if err != nil {
		if weather.IsCanceled(err) {
			s.mu.Unlock()
			return
		}
		// Previous candidates stay visible.
		log.Printf("ERROR: place search %q failed: %v", query, err)
		s.errMsg = errSearchMessage
	} else {
		if len(places) > s.limit {
			places = places[:s.limit]
		}
		s.candidates = append([]weather.Place{}, places...)
		s.errMsg = ""
	}

	res := Result{Query: query, Places: append([]weather.Place{}, s.candidates...), Err: err}
	onSettle := s.onSettle
	s.mu.Unlock()

	if onSettle != nil {
		onSettle(res)
	}
}
