// Package clock turns device time into the player's logical playback timer
// and provides the tick sources that drive it.
package clock

import "sync"

// NowFunc returns the device time in seconds. The audio context's current
// time is the usual source, so the timer follows the audio hardware clock
// rather than the frame rate.
type NowFunc func() float64

// FrameClock accumulates elapsed device time into a logical timer.
//
// The timer only moves through Advance (while ticking) and Set (on seek), so
// a slow frame never skips time and a fast one never double counts it.
type FrameClock struct {
	mu    sync.Mutex
	now   NowFunc
	rate  float64
	last  float64
	timer float64
}

// NewFrameClock creates a clock reading device time from now. A rate <= 0
// is treated as normal speed.
func NewFrameClock(now NowFunc, rate float64) *FrameClock {
	if rate <= 0 {
		rate = 1
	}
	return &FrameClock{now: now, rate: rate}
}

// Time returns the current logical time in seconds.
func (c *FrameClock) Time() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.timer
}

// Set moves the logical timer to t. Negative values clamp to zero.
func (c *FrameClock) Set(t float64) {
	if t < 0 {
		t = 0
	}
	c.mu.Lock()
	c.timer = t
	c.mu.Unlock()
}

// Reset takes a new device-time baseline without moving the timer. It is
// called whenever ticking (re)starts so paused time is not counted.
func (c *FrameClock) Reset() {
	c.mu.Lock()
	c.last = c.now()
	c.mu.Unlock()
}

// Advance adds the device time elapsed since the last Advance or Reset,
// scaled by the playback rate, and returns the new logical time.
func (c *FrameClock) Advance() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.now()
	if d := now - c.last; d > 0 {
		c.timer += d * c.rate
	}
	c.last = now
	return c.timer
}

// Rate returns the playback rate.
func (c *FrameClock) Rate() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.rate
}

// SetRate changes the playback rate for subsequent advances.
func (c *FrameClock) SetRate(rate float64) {
	if rate <= 0 {
		return
	}
	c.mu.Lock()
	c.rate = rate
	c.mu.Unlock()
}
