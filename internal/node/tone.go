package node

import (
	"context"
	"math"

	"github.com/ivlev/frameplayer/internal/audio"
)

// Tone is an audio-only sine generator.
type Tone struct {
	*Display
	Frequency  float64
	Volume     float64
	SampleRate int
}

func NewTone(opts Options, freq, volume float64, sampleRate int) *Tone {
	if opts.Type == "" {
		opts.Type = "tone"
	}
	n := &Tone{Frequency: freq, Volume: volume, SampleRate: sampleRate}
	n.Display = NewDisplay(n, opts)
	return n
}

// AudioFrame renders size samples from t. Samples outside the node's
// window are silent.
func (n *Tone) AudioFrame(_ context.Context, t float64, size int) (audio.Frame, error) {
	if !n.Ready() || size <= 0 || n.Volume == 0 {
		return audio.Frame{}, nil
	}
	start, end := n.AbsStart(), n.AbsEnd()
	sr := float64(n.SampleRate)
	if t+float64(size)/sr <= start || t >= end {
		return audio.Frame{}, nil
	}

	buf := audio.NewBuffer(1, size, n.SampleRate)
	ch := buf.Channel(0)
	for i := range ch {
		at := t + float64(i)/sr
		if at < start || at >= end {
			continue
		}
		ch[i] = float32(math.Sin(2 * math.Pi * n.Frequency * (at - start)))
	}
	return audio.Frame{Volume: n.Volume, Buffer: buf}, nil
}
