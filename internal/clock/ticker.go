package clock

import (
	"sync"
	"time"
)

// Ticker invokes a callback once per logical frame while started.
type Ticker interface {
	Start()
	Stop()
	Started() bool
}

// TickerFactory builds a ticker firing fn at fps.
type TickerFactory func(fps int, fn func()) Ticker

// IntervalTicker fires on a time.Ticker at a fixed frame interval. The
// callback runs on the ticker goroutine and must not block for long; the
// player hands the work to its render queue.
type IntervalTicker struct {
	interval time.Duration
	fn       func()

	mu      sync.Mutex
	stop    chan struct{}
	started bool
}

// NewIntervalTicker creates a stopped ticker firing fn fps times a second.
func NewIntervalTicker(fps int, fn func()) Ticker {
	if fps <= 0 {
		fps = 24
	}
	return &IntervalTicker{
		interval: time.Second / time.Duration(fps),
		fn:       fn,
	}
}

func (t *IntervalTicker) Start() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.started {
		return
	}
	t.started = true
	stop := make(chan struct{})
	t.stop = stop

	go func() {
		tk := time.NewTicker(t.interval)
		defer tk.Stop()
		for {
			select {
			case <-stop:
				return
			case <-tk.C:
				// A Stop racing with the channel receive wins.
				select {
				case <-stop:
					return
				default:
				}
				t.fn()
			}
		}
	}()
}

// Stop halts ticking. It does not wait for a callback already running.
func (t *IntervalTicker) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.started {
		return
	}
	t.started = false
	close(t.stop)
	t.stop = nil
}

func (t *IntervalTicker) Started() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.started
}

// ManualTicker fires only when Fire is called. It lets tests and offline
// tools step the player one frame at a time.
type ManualTicker struct {
	fn func()

	mu      sync.Mutex
	started bool
	fired   int
}

// NewManualTicker matches TickerFactory; fps is ignored.
func NewManualTicker(_ int, fn func()) Ticker {
	return &ManualTicker{fn: fn}
}

func (t *ManualTicker) Start() {
	t.mu.Lock()
	t.started = true
	t.mu.Unlock()
}

func (t *ManualTicker) Stop() {
	t.mu.Lock()
	t.started = false
	t.mu.Unlock()
}

func (t *ManualTicker) Started() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.started
}

// Fire runs the callback once if the ticker is started and reports whether
// it did.
func (t *ManualTicker) Fire() bool {
	t.mu.Lock()
	if !t.started {
		t.mu.Unlock()
		return false
	}
	t.fired++
	t.mu.Unlock()
	t.fn()
	return true
}

// Fired returns how many times the callback ran.
func (t *ManualTicker) Fired() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.fired
}
