package audio

import (
	"errors"
	"sync"
	"time"
)

// ErrClosed is returned by a closed context.
var ErrClosed = errors.New("audio: context closed")

// Context is the audio output device. CurrentTime is its hardware clock in
// seconds and stops advancing while suspended.
type Context interface {
	SampleRate() int
	CurrentTime() float64
	CreateBuffer(channels, length int) *Buffer
	CreateBufferSource() BufferSource
	Resume() error
	Suspend() error
	Close() error
}

// BufferSource plays a Buffer on its context.
type BufferSource interface {
	SetBuffer(b *Buffer)
	Buffer() *Buffer
	SetLoop(loop bool)
	Connect()
	Disconnect()
	Start() error
	Stop()
}

// ContextFactory creates the audio context for a player.
type ContextFactory func(sampleRate int) (Context, error)

// OfflineContext is an in-memory context with no output device. Its clock
// follows wall time while running, or an injected clock in tests.
type OfflineContext struct {
	mu         sync.Mutex
	sampleRate int
	now        func() time.Time
	base       time.Time
	elapsed    time.Duration
	running    bool
	closed     bool
	sources    []*OfflineSource
}

// NewOfflineContext creates a running context.
func NewOfflineContext(sampleRate int) *OfflineContext {
	return NewOfflineContextWithClock(sampleRate, time.Now)
}

// NewOfflineContextWithClock creates a running context reading time from now.
func NewOfflineContextWithClock(sampleRate int, now func() time.Time) *OfflineContext {
	return &OfflineContext{
		sampleRate: sampleRate,
		now:        now,
		base:       now(),
		running:    true,
	}
}

// OfflineFactory matches ContextFactory.
func OfflineFactory(sampleRate int) (Context, error) {
	return NewOfflineContext(sampleRate), nil
}

func (c *OfflineContext) SampleRate() int { return c.sampleRate }

func (c *OfflineContext) CurrentTime() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	d := c.elapsed
	if c.running {
		d += c.now().Sub(c.base)
	}
	return d.Seconds()
}

func (c *OfflineContext) CreateBuffer(channels, length int) *Buffer {
	return NewBuffer(channels, length, c.sampleRate)
}

func (c *OfflineContext) CreateBufferSource() BufferSource {
	s := &OfflineSource{}
	c.mu.Lock()
	c.sources = append(c.sources, s)
	c.mu.Unlock()
	return s
}

// Sources returns every source created so far.
func (c *OfflineContext) Sources() []*OfflineSource {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]*OfflineSource, len(c.sources))
	copy(out, c.sources)
	return out
}

func (c *OfflineContext) Resume() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrClosed
	}
	if !c.running {
		c.running = true
		c.base = c.now()
	}
	return nil
}

func (c *OfflineContext) Suspend() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrClosed
	}
	if c.running {
		c.elapsed += c.now().Sub(c.base)
		c.running = false
	}
	return nil
}

// Running reports whether the clock is advancing.
func (c *OfflineContext) Running() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.running
}

func (c *OfflineContext) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	if c.running {
		c.elapsed += c.now().Sub(c.base)
		c.running = false
	}
	c.closed = true
	return nil
}

// OfflineSource records what was done to it.
type OfflineSource struct {
	mu        sync.Mutex
	buf       *Buffer
	loop      bool
	connected bool
	started   bool
	stopped   bool
}

func (s *OfflineSource) SetBuffer(b *Buffer) {
	s.mu.Lock()
	s.buf = b
	s.mu.Unlock()
}

func (s *OfflineSource) Buffer() *Buffer {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.buf
}

func (s *OfflineSource) SetLoop(loop bool) {
	s.mu.Lock()
	s.loop = loop
	s.mu.Unlock()
}

func (s *OfflineSource) Connect() {
	s.mu.Lock()
	s.connected = true
	s.mu.Unlock()
}

func (s *OfflineSource) Disconnect() {
	s.mu.Lock()
	s.connected = false
	s.mu.Unlock()
}

func (s *OfflineSource) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return errors.New("audio: source already started")
	}
	s.started = true
	return nil
}

func (s *OfflineSource) Stop() {
	s.mu.Lock()
	s.stopped = true
	s.mu.Unlock()
}

// Loop, Connected, Started and Stopped expose the recorded state.
func (s *OfflineSource) Loop() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loop
}

func (s *OfflineSource) Connected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.connected
}

func (s *OfflineSource) Started() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.started
}

func (s *OfflineSource) Stopped() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stopped
}
