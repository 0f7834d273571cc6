package audio

import (
	"context"
	"fmt"
	"math"
)

// Frame is one source's contribution to a mix window.
type Frame struct {
	Volume float64
	Buffer *Buffer
}

// Source produces audio for a window of size samples starting at time t.
// A zero Frame means silence.
type Source interface {
	AudioFrame(ctx context.Context, t float64, size int) (Frame, error)
}

// Mixer sums sources into output buffers.
type Mixer struct {
	SampleRate int
	Channels   int
	FPS        int
	Volume     float64
}

// FrameAudio mixes every source at time t into a fresh buffer of size
// samples. Silent and empty sources are skipped.
func (m *Mixer) FrameAudio(ctx context.Context, sources []Source, t float64, size int) (*Buffer, error) {
	out := NewBuffer(m.Channels, size, m.SampleRate)
	if size <= 0 {
		return out, nil
	}

	for _, src := range sources {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		f, err := src.AudioFrame(ctx, t, size)
		if err != nil {
			return nil, fmt.Errorf("audio frame at %.3fs: %w", t, err)
		}
		if f.Volume == 0 || math.IsNaN(f.Volume) || f.Buffer == nil || f.Buffer.Len() == 0 {
			continue
		}
		mixInto(out, f)
	}

	if math.Abs(m.Volume-1) > 0.01 {
		v := float32(m.Volume)
		for c := 0; c < out.Channels(); c++ {
			ch := out.Channel(c)
			for i := range ch {
				ch[i] *= v
			}
		}
	}
	return out, nil
}

func mixInto(out *Buffer, f Frame) {
	in := f.Buffer
	inCh := in.Channels()
	vol := float32(f.Volume)

	in.mu.RLock()
	defer in.mu.RUnlock()
	for c := 0; c < out.Channels(); c++ {
		dst := out.Channel(c)
		src := in.channels[min(c, inCh-1)]
		n := min(len(dst), len(src))
		for i := 0; i < n; i++ {
			v := src[i] * vol
			if v != v {
				v = 0
			}
			dst[i] += v
		}
	}
}

// BufferLen returns the sample count for frames ticks at the mixer's rate.
func (m *Mixer) BufferLen(frames int) int {
	return int(math.Round(float64(frames) / float64(m.FPS) * float64(m.SampleRate)))
}

// Buffer synthesises frames consecutive tick windows starting at t into
// one contiguous buffer. Window boundaries are rounded from absolute
// positions, so the last window absorbs the rounding and no samples are
// lost or duplicated.
func (m *Mixer) Buffer(ctx context.Context, sources []Source, t float64, frames int) (*Buffer, error) {
	length := m.BufferLen(frames)
	out := NewBuffer(m.Channels, length, m.SampleRate)
	tick := 1 / float64(m.FPS)

	cursor := 0
	for i := 0; i < frames; i++ {
		end := min(length, int(math.Round(float64(i+1)*tick*float64(m.SampleRate))))
		size := end - cursor
		if size <= 0 {
			continue
		}
		fb, err := m.FrameAudio(ctx, sources, t+float64(i)*tick, size)
		if err != nil {
			return nil, err
		}
		for c := 0; c < out.Channels(); c++ {
			if err := out.CopyToChannel(fb.Channel(c), c, cursor); err != nil {
				return nil, err
			}
		}
		cursor = end
	}
	return out, nil
}
