package clock

import (
	"math"
	"sync/atomic"
	"testing"
	"time"
)

type fakeDevice struct{ t float64 }

func (d *fakeDevice) now() float64 { return d.t }

func TestFrameClockAdvance(t *testing.T) {
	dev := &fakeDevice{}
	c := NewFrameClock(dev.now, 1)
	c.Reset()

	dev.t = 0.5
	if got := c.Advance(); math.Abs(got-0.5) > 1e-9 {
		t.Errorf("Advance() = %f, want 0.5", got)
	}

	// Time spent without ticking is dropped by Reset.
	dev.t = 10
	c.Reset()
	dev.t = 10.25
	if got := c.Advance(); math.Abs(got-0.75) > 1e-9 {
		t.Errorf("Advance() after Reset = %f, want 0.75", got)
	}
}

func TestFrameClockRate(t *testing.T) {
	dev := &fakeDevice{}
	c := NewFrameClock(dev.now, 2)
	c.Reset()
	dev.t = 1
	if got := c.Advance(); math.Abs(got-2) > 1e-9 {
		t.Errorf("Advance() at rate 2 = %f, want 2", got)
	}

	c.SetRate(0) // ignored
	if c.Rate() != 2 {
		t.Errorf("Rate() = %f, want 2", c.Rate())
	}
}

func TestFrameClockMonotonic(t *testing.T) {
	dev := &fakeDevice{t: 5}
	c := NewFrameClock(dev.now, 1)
	c.Reset()
	dev.t = 4 // device clock went backwards
	if got := c.Advance(); got != 0 {
		t.Errorf("Advance() with backwards device time = %f, want 0", got)
	}
}

func TestFrameClockSetClamps(t *testing.T) {
	c := NewFrameClock(func() float64 { return 0 }, 1)
	c.Set(-3)
	if c.Time() != 0 {
		t.Errorf("Time() = %f, want 0", c.Time())
	}
	c.Set(1.5)
	if c.Time() != 1.5 {
		t.Errorf("Time() = %f, want 1.5", c.Time())
	}
}

func TestManualTicker(t *testing.T) {
	var calls int
	tk := NewManualTicker(24, func() { calls++ }).(*ManualTicker)

	if tk.Fire() {
		t.Error("Fire() on stopped ticker should not run the callback")
	}
	tk.Start()
	tk.Fire()
	tk.Fire()
	tk.Stop()
	tk.Fire()

	if calls != 2 || tk.Fired() != 2 {
		t.Errorf("calls = %d, Fired() = %d, want 2", calls, tk.Fired())
	}
}

func TestIntervalTickerStartStop(t *testing.T) {
	var calls atomic.Int32
	tk := NewIntervalTicker(200, func() { calls.Add(1) })

	tk.Start()
	tk.Start() // redundant
	if !tk.Started() {
		t.Fatal("ticker should be started")
	}
	time.Sleep(60 * time.Millisecond)
	tk.Stop()
	tk.Stop() // redundant
	if tk.Started() {
		t.Fatal("ticker should be stopped")
	}

	n := calls.Load()
	if n == 0 {
		t.Error("expected at least one tick")
	}
	time.Sleep(30 * time.Millisecond)
	if calls.Load() != n {
		t.Errorf("ticks after Stop: got %d, want %d", calls.Load(), n)
	}
}
