package observability

import (
	"sync"
	"time"
)

// RateMeter estimates an event rate over a sliding window of recent events.
// Safe for concurrent use.
type RateMeter struct {
	mu     sync.Mutex
	window int
	times  []time.Time
	now    func() time.Time
}

// NewRateMeter keeps the last window events. A window below 2 is raised to 2.
func NewRateMeter(window int) *RateMeter {
	if window < 2 {
		window = 2
	}
	return &RateMeter{window: window, now: time.Now}
}

// Tick records one event.
func (r *RateMeter) Tick() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.times = append(r.times, r.now())
	if len(r.times) > r.window {
		r.times = r.times[len(r.times)-r.window:]
	}
}

// Rate returns the events per second over the window. It is 0 until two
// events were seen, and decays when events stop arriving.
func (r *RateMeter) Rate() float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := len(r.times)
	if n < 2 {
		return 0
	}
	span := r.now().Sub(r.times[0])
	if span <= 0 {
		return 0
	}
	return float64(n-1) / span.Seconds()
}

// Reset forgets every event.
func (r *RateMeter) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.times = nil
}
