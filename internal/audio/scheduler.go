package audio

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
)

// DefaultFrames is how many ticks each half of the ring buffer holds.
const DefaultFrames = 10

// Scheduler keeps a looping two-half buffer ahead of playback. While one
// half plays, the other is refilled with the next window.
type Scheduler struct {
	Frames int

	ctx     Context
	mixer   *Mixer
	sources func() []Source
	log     *slog.Logger

	mu       sync.Mutex
	source   BufferSource
	end      float64
	lastHalf bool
	updating bool
	epoch    uint64
	wg       sync.WaitGroup
}

// NewScheduler schedules the mix of sources() onto ac.
func NewScheduler(ac Context, m *Mixer, sources func() []Source, log *slog.Logger) *Scheduler {
	if log == nil {
		log = slog.Default()
	}
	return &Scheduler{Frames: DefaultFrames, ctx: ac, mixer: m, sources: sources, log: log}
}

// FrameLen returns the duration of one half in seconds.
func (s *Scheduler) FrameLen() float64 {
	return float64(s.Frames) / float64(s.mixer.FPS)
}

// Play is called every tick with the playback time. The first call after
// Stop starts a looping source covering two halves; later calls refill
// the idle half once playback is inside the last one.
func (s *Scheduler) Play(ctx context.Context, start float64) error {
	if s.mixer.Volume <= 0 {
		s.Stop()
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	length := s.FrameLen()
	if s.source == nil {
		buf, err := s.mixer.Buffer(ctx, s.sources(), start, 2*s.Frames)
		if err != nil {
			return fmt.Errorf("initial audio buffer: %w", err)
		}
		src := s.ctx.CreateBufferSource()
		src.SetBuffer(buf)
		src.SetLoop(true)
		src.Connect()
		if err := src.Start(); err != nil {
			return fmt.Errorf("start audio source: %w", err)
		}
		s.source = src
		s.end = start + 2*length
		s.lastHalf = false
		return nil
	}

	if s.updating || s.end-start >= length-0.1 {
		return nil
	}

	s.updating = true
	epoch := s.epoch
	from := s.end
	second := s.lastHalf
	target := s.source.Buffer()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		buf, err := s.mixer.Buffer(ctx, s.sources(), from, s.Frames)

		s.mu.Lock()
		defer s.mu.Unlock()
		if epoch != s.epoch {
			return
		}
		s.updating = false
		if err != nil {
			s.log.Warn("audio refill failed", "from", from, "error", err)
			return
		}

		// The loop is rounded once over both halves, so a refill can be one
		// sample longer than its half. Clip it to the half boundary.
		lo, hi := 0, target.Len()/2
		if second {
			lo, hi = hi, target.Len()
		}
		for c := 0; c < buf.Channels() && c < target.Channels(); c++ {
			src := buf.Channel(c)
			if len(src) > hi-lo {
				src = src[:hi-lo]
			}
			if err := target.CopyToChannel(src, c, lo); err != nil {
				s.log.Warn("audio refill copy failed", "error", err)
				return
			}
		}
		s.lastHalf = !s.lastHalf
		s.end += length
	}()
	return nil
}

// Stop halts the source and discards any refill still in flight. Safe to
// call when nothing is playing.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.epoch++
	s.updating = false
	s.end = 0
	s.lastHalf = false
	if s.source != nil {
		s.source.Stop()
		s.source.Disconnect()
		s.source = nil
	}
}

// End returns the playback time the scheduled audio reaches.
func (s *Scheduler) End() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.end
}

// Playing reports whether a source is active.
func (s *Scheduler) Playing() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.source != nil
}

// Updating reports whether a refill is in flight.
func (s *Scheduler) Updating() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.updating
}

// Epoch changes on every Stop.
func (s *Scheduler) Epoch() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.epoch
}

// Wait blocks until in-flight refills finish.
func (s *Scheduler) Wait() { s.wg.Wait() }

// Close stops playback and waits for refills.
func (s *Scheduler) Close() {
	s.Stop()
	s.Wait()
}
