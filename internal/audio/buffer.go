// Package audio mixes node audio into PCM buffers and schedules them onto an
// output context.
package audio

import (
	"fmt"
	"sync"

	"github.com/faiface/beep"
)

// Buffer is planar float32 PCM. Writers may update it while a source is
// playing it; readers always see whole samples.
type Buffer struct {
	mu         sync.RWMutex
	channels   [][]float32
	sampleRate int
}

// NewBuffer allocates a silent buffer.
func NewBuffer(channels, length, sampleRate int) *Buffer {
	if channels < 1 {
		channels = 1
	}
	if length < 0 {
		length = 0
	}
	b := &Buffer{channels: make([][]float32, channels), sampleRate: sampleRate}
	for c := range b.channels {
		b.channels[c] = make([]float32, length)
	}
	return b
}

func (b *Buffer) SampleRate() int { return b.sampleRate }

func (b *Buffer) Channels() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.channels)
}

// Len returns the number of sample frames per channel.
func (b *Buffer) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if len(b.channels) == 0 {
		return 0
	}
	return len(b.channels[0])
}

// Duration returns the buffer length in seconds.
func (b *Buffer) Duration() float64 {
	if b.sampleRate <= 0 {
		return 0
	}
	return float64(b.Len()) / float64(b.sampleRate)
}

// Channel returns channel c's samples. The slice aliases the buffer; it is
// meant for single-owner code such as generators filling a fresh buffer.
func (b *Buffer) Channel(c int) []float32 {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.channels[c]
}

// CopyToChannel writes src into channel c starting at offset. Samples past
// the end of the buffer are dropped.
func (b *Buffer) CopyToChannel(src []float32, c, offset int) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if c < 0 || c >= len(b.channels) {
		return fmt.Errorf("audio: channel %d out of range [0,%d)", c, len(b.channels))
	}
	if offset < 0 || offset > len(b.channels[c]) {
		return fmt.Errorf("audio: offset %d out of range", offset)
	}
	copy(b.channels[c][offset:], src)
	return nil
}

// CopyFromChannel reads channel c from offset into dst and returns the
// number of samples copied.
func (b *Buffer) CopyFromChannel(dst []float32, c, offset int) (int, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if c < 0 || c >= len(b.channels) {
		return 0, fmt.Errorf("audio: channel %d out of range [0,%d)", c, len(b.channels))
	}
	if offset < 0 || offset > len(b.channels[c]) {
		return 0, fmt.Errorf("audio: offset %d out of range", offset)
	}
	return copy(dst, b.channels[c][offset:]), nil
}

// Mono averages all channels.
func (b *Buffer) Mono() []float32 {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if len(b.channels) == 0 {
		return nil
	}
	out := make([]float32, len(b.channels[0]))
	for _, ch := range b.channels {
		for i, v := range ch {
			out[i] += v
		}
	}
	if n := float32(len(b.channels)); n > 1 {
		for i := range out {
			out[i] /= n
		}
	}
	return out
}

// frame reads sample frame i as stereo. Mono is duplicated to both sides.
func (b *Buffer) frame(i int) [2]float64 {
	b.mu.RLock()
	defer b.mu.RUnlock()
	l := float64(b.channels[0][i])
	r := l
	if len(b.channels) > 1 {
		r = float64(b.channels[1][i])
	}
	return [2]float64{l, r}
}

// Streamer plays the buffer once from the start as a beep stream.
func (b *Buffer) Streamer() beep.Streamer {
	return &bufferStreamer{buf: b}
}

type bufferStreamer struct {
	buf  *Buffer
	pos  int
	loop bool
}

func (s *bufferStreamer) Stream(samples [][2]float64) (int, bool) {
	n := s.buf.Len()
	if n == 0 {
		return 0, false
	}
	i := 0
	for ; i < len(samples); i++ {
		if s.pos >= n {
			if !s.loop {
				break
			}
			s.pos = 0
		}
		samples[i] = s.buf.frame(s.pos)
		s.pos++
	}
	return i, i > 0
}

func (s *bufferStreamer) Err() error { return nil }
