package audio

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/faiface/beep"
	"github.com/faiface/beep/speaker"
)

// SpeakerContext plays through the system audio device. Its clock counts
// the samples the device has pulled, so it only advances while audio is
// actually being output. The device pulls a whole buffer at a time; the
// clock interpolates across the latest chunk by wall time and never runs
// past the samples pulled so far.
//
// The speaker is process-global: open at most one SpeakerContext at a time.
type SpeakerContext struct {
	sampleRate beep.SampleRate
	mixer      *beep.Mixer
	running    atomic.Bool
	closed     atomic.Bool
	now        func() time.Time

	mu        sync.Mutex
	played    int64
	lastChunk int64
	lastPull  time.Time
}

// NewSpeakerContext initialises the speaker with a buffer of bufferSize.
func NewSpeakerContext(sampleRate int, bufferSize time.Duration) (*SpeakerContext, error) {
	sr := beep.SampleRate(sampleRate)
	if err := speaker.Init(sr, sr.N(bufferSize)); err != nil {
		return nil, fmt.Errorf("speaker init: %w", err)
	}
	c := &SpeakerContext{sampleRate: sr, mixer: &beep.Mixer{}, now: time.Now}
	c.running.Store(true)
	speaker.Play(beep.StreamerFunc(c.stream))
	return c, nil
}

// SpeakerFactory matches ContextFactory with a 100ms device buffer.
func SpeakerFactory(sampleRate int) (Context, error) {
	return NewSpeakerContext(sampleRate, 100*time.Millisecond)
}

// stream runs on the speaker goroutine with the speaker lock held.
func (c *SpeakerContext) stream(samples [][2]float64) (int, bool) {
	if c.closed.Load() {
		return 0, false
	}
	if !c.running.Load() {
		for i := range samples {
			samples[i] = [2]float64{}
		}
		return len(samples), true
	}
	c.mixer.Stream(samples)

	c.mu.Lock()
	c.played += int64(len(samples))
	c.lastChunk = int64(len(samples))
	c.lastPull = c.now()
	c.mu.Unlock()
	return len(samples), true
}

func (c *SpeakerContext) SampleRate() int { return int(c.sampleRate) }

func (c *SpeakerContext) CurrentTime() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	sr := float64(c.sampleRate)
	if !c.running.Load() || c.lastChunk == 0 {
		return float64(c.played) / sr
	}
	chunk := float64(c.lastChunk) / sr
	elapsed := min(c.now().Sub(c.lastPull).Seconds(), chunk)
	return float64(c.played-c.lastChunk)/sr + max(elapsed, 0)
}

func (c *SpeakerContext) CreateBuffer(channels, length int) *Buffer {
	return NewBuffer(channels, length, int(c.sampleRate))
}

func (c *SpeakerContext) CreateBufferSource() BufferSource {
	return &speakerSource{ctx: c}
}

func (c *SpeakerContext) Resume() error {
	if c.closed.Load() {
		return ErrClosed
	}
	c.running.Store(true)
	return nil
}

func (c *SpeakerContext) Suspend() error {
	if c.closed.Load() {
		return ErrClosed
	}
	c.running.Store(false)
	return nil
}

func (c *SpeakerContext) Close() error {
	if c.closed.Swap(true) {
		return nil
	}
	speaker.Clear()
	return nil
}

type speakerSource struct {
	ctx *SpeakerContext

	mu        sync.Mutex
	buf       *Buffer
	loop      bool
	connected bool
	stream    *sourceStreamer
}

func (s *speakerSource) SetBuffer(b *Buffer) {
	s.mu.Lock()
	s.buf = b
	s.mu.Unlock()
}

func (s *speakerSource) Buffer() *Buffer {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.buf
}

func (s *speakerSource) SetLoop(loop bool) {
	s.mu.Lock()
	s.loop = loop
	s.mu.Unlock()
}

func (s *speakerSource) Connect() {
	s.mu.Lock()
	s.connected = true
	s.mu.Unlock()
}

func (s *speakerSource) Disconnect() {
	s.mu.Lock()
	s.connected = false
	s.mu.Unlock()
}

func (s *speakerSource) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stream != nil {
		return errors.New("audio: source already started")
	}
	if s.buf == nil {
		return errors.New("audio: source has no buffer")
	}
	if s.ctx.closed.Load() {
		return ErrClosed
	}
	s.stream = &sourceStreamer{src: s, inner: bufferStreamer{buf: s.buf, loop: s.loop}}

	speaker.Lock()
	s.ctx.mixer.Add(s.stream)
	speaker.Unlock()
	return nil
}

func (s *speakerSource) Stop() {
	s.mu.Lock()
	st := s.stream
	s.mu.Unlock()
	if st != nil {
		st.stopped.Store(true)
	}
}

// sourceStreamer drops out of the mixer once stopped and is silent while
// disconnected.
type sourceStreamer struct {
	src     *speakerSource
	inner   bufferStreamer
	stopped atomic.Bool
}

func (s *sourceStreamer) Stream(samples [][2]float64) (int, bool) {
	if s.stopped.Load() {
		return 0, false
	}
	n, ok := s.inner.Stream(samples)
	s.src.mu.Lock()
	connected := s.src.connected
	s.src.mu.Unlock()
	if !connected {
		for i := 0; i < n; i++ {
			samples[i] = [2]float64{}
		}
	}
	return n, ok
}

func (s *sourceStreamer) Err() error { return nil }
