package forecast

import (
	"context"
	"errors"
	"log"
	"sync"

	"github.com/i474232898/weather-lookup/internal/weather"
)

// Phase is the forecast slice of a screen's state machine.
type Phase string

const (
	PhaseIdle          Phase = "idle"
	PhaseLocating      Phase = "locating"
	PhasePlaceSelected Phase = "place-selected"
	PhaseLoading       Phase = "loading-forecast"
	PhaseReady         Phase = "forecast-ready"
	PhaseError         Phase = "forecast-error"
)

// FailureMessage is shown when a forecast request fails.
const FailureMessage = "Failed to load forecast"

// ErrNoPlace is returned by Reload when nothing has been selected yet.
var ErrNoPlace = errors.New("no place selected")

// Ticket identifies one user-initiated load. A ticket stays active until the next Select,
// BeginLocating or Close.
type Ticket uint64

// State is a copy of the forecast slice of a screen.
type State struct {
	Place   *weather.Place           `json:"place"`
	Weather *weather.WeatherSnapshot `json:"weather"`
	Loading bool                     `json:"loading"`
	Error   string                   `json:"error,omitempty"`
	Phase   Phase                    `json:"phase"`
}

// Fetcher loads forecasts for the selected place. Each selection cancels the previous
// request and only the latest one may update the state.
type Fetcher struct {
	forecaster weather.Forecaster
	onSettle   func(State)

	mu       sync.Mutex
	place    *weather.Place
	snapshot *weather.WeatherSnapshot
	loading  bool
	errMsg   string
	phase    Phase
	gen      uint64
	cancel   context.CancelFunc
	closed   bool
	wg       sync.WaitGroup
}

// New creates a Fetcher. onSettle, if set, is called after every load that was still
// current when it completed.
func New(forecaster weather.Forecaster, onSettle func(State)) *Fetcher {
	return &Fetcher{
		forecaster: forecaster,
		onSettle:   onSettle,
		phase:      PhaseIdle,
	}
}

// Select makes place the current place and starts loading its forecast.
func (f *Fetcher) Select(place weather.Place) Ticket {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.closed {
		return Ticket(f.gen)
	}
	f.supersedeLocked()
	f.startLocked(place)
	return Ticket(f.gen)
}

// Reload fetches the forecast for the current place again.
func (f *Fetcher) Reload() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.place == nil {
		return ErrNoPlace
	}
	if f.closed {
		return nil
	}
	place := *f.place
	f.supersedeLocked()
	f.startLocked(place)
	return nil
}

// BeginLocating supersedes any in-flight load and marks the state as loading while a
// position fix is obtained. The returned context is cancelled once the ticket is superseded.
func (f *Fetcher) BeginLocating() (Ticket, context.Context) {
	f.mu.Lock()
	defer f.mu.Unlock()

	ctx, cancel := context.WithCancel(context.Background())
	if f.closed {
		cancel()
		return Ticket(f.gen), ctx
	}
	f.supersedeLocked()
	f.cancel = cancel
	f.loading = true
	f.errMsg = ""
	f.transitionLocked(PhaseLocating)
	return Ticket(f.gen), ctx
}

// SelectWith selects place if t is still the active ticket. It reports whether the
// selection happened.
func (f *Fetcher) SelectWith(t Ticket, place weather.Place) bool {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.closed || uint64(t) != f.gen {
		return false
	}
	f.supersedeLocked()
	f.startLocked(place)
	return true
}

// Fail records msg and stops loading if t is still the active ticket.
func (f *Fetcher) Fail(t Ticket, msg string) bool {
	f.mu.Lock()
	if f.closed || uint64(t) != f.gen {
		f.mu.Unlock()
		return false
	}
	if f.cancel != nil {
		f.cancel()
		f.cancel = nil
	}
	f.loading = false
	f.errMsg = msg
	f.transitionLocked(PhaseError)
	st := f.stateLocked()
	onSettle := f.onSettle
	f.mu.Unlock()

	if onSettle != nil {
		onSettle(st)
	}
	return true
}

// State returns a copy of the forecast slice.
func (f *Fetcher) State() State {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.stateLocked()
}

// Wait blocks until no forecast request is in flight.
func (f *Fetcher) Wait() {
	f.wg.Wait()
}

// Close cancels the in-flight request and waits for it to return. State is left as is.
func (f *Fetcher) Close() {
	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		return
	}
	f.closed = true
	f.supersedeLocked()
	f.mu.Unlock()

	f.wg.Wait()
}

func (f *Fetcher) stateLocked() State {
	st := State{
		Loading: f.loading,
		Error:   f.errMsg,
		Phase:   f.phase,
	}
	if f.place != nil {
		p := *f.place
		st.Place = &p
	}
	if f.snapshot != nil {
		s := *f.snapshot
		st.Weather = &s
	}
	return st
}

func (f *Fetcher) supersedeLocked() {
	f.gen++
	if f.cancel != nil {
		f.cancel()
		f.cancel = nil
	}
}

func (f *Fetcher) transitionLocked(to Phase) {
	if f.phase != to {
		log.Printf("DEBUG: forecast phase %s -> %s", f.phase, to)
		f.phase = to
	}
}

// startLocked resets the forecast slice for place and launches the request under the
// current token.
func (f *Fetcher) startLocked(place weather.Place) {
	f.place = &place
	f.transitionLocked(PhasePlaceSelected)

	f.snapshot = nil
	f.errMsg = ""
	f.loading = true
	f.transitionLocked(PhaseLoading)

	ctx, cancel := context.WithCancel(context.Background())
	f.cancel = cancel
	gen := f.gen

	f.wg.Add(1)
	go f.run(ctx, cancel, gen, place)
}

func (f *Fetcher) run(ctx context.Context, cancel context.CancelFunc, gen uint64, place weather.Place) {
	defer f.wg.Done()
	defer cancel()

	snapshot, err := f.forecaster.Forecast(ctx, place)

	f.mu.Lock()
	if f.closed || gen != f.gen {
		f.mu.Unlock()
		return
	}
	if err != nil && weather.IsCanceled(err) {
		f.mu.Unlock()
		return
	}

	f.cancel = nil
	f.loading = false
	if err != nil {
		log.Printf("ERROR: forecast for %s failed: %v", place.DisplayName(), err)
		f.errMsg = FailureMessage
		f.snapshot = nil
		f.transitionLocked(PhaseError)
	} else {
		f.snapshot = &snapshot
		f.transitionLocked(PhaseReady)
	}
	st := f.stateLocked()
	onSettle := f.onSettle
	f.mu.Unlock()

	if onSettle != nil {
		onSettle(st)
	}
}
