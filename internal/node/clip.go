package node

import (
	"context"
	"fmt"
	"io"
	"math"
	"sync"

	"github.com/ivlev/frameplayer/internal/audio"
)

// Opener returns the encoded WAV stream of a clip.
type Opener func(ctx context.Context) (io.ReadCloser, error)

// Clip plays a WAV recording from its start time. With no configured
// duration it lasts as long as the recording.
type Clip struct {
	*Display
	Volume     float64
	SampleRate int

	open Opener

	mu  sync.Mutex
	pcm *audio.Buffer
}

func NewClip(opts Options, open Opener, volume float64, sampleRate int) *Clip {
	if opts.Type == "" {
		opts.Type = "clip"
	}
	n := &Clip{open: open, Volume: volume, SampleRate: sampleRate}
	n.Display = NewDisplay(n, opts)
	return n
}

func (n *Clip) Preload(ctx context.Context, onProgress func(float64)) error {
	rc, err := n.open(ctx)
	if err != nil {
		return fmt.Errorf("clip %q: %w", n.ID(), err)
	}
	defer rc.Close()

	pcm, err := audio.DecodeWAV(rc, n.SampleRate)
	if err != nil {
		return fmt.Errorf("clip %q: %w", n.ID(), err)
	}
	n.mu.Lock()
	n.pcm = pcm
	n.mu.Unlock()
	return n.Display.Preload(ctx, onProgress)
}

func (n *Clip) Duration() float64 {
	if d := n.Display.Duration(); d > 0 {
		return d
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.pcm == nil {
		return 0
	}
	return n.pcm.Duration()
}

func (n *Clip) AudioFrame(_ context.Context, t float64, size int) (audio.Frame, error) {
	n.mu.Lock()
	pcm := n.pcm
	n.mu.Unlock()
	if pcm == nil || size <= 0 || n.Volume == 0 || !n.Ready() {
		return audio.Frame{}, nil
	}

	start, end := n.AbsStart(), n.AbsEnd()
	sr := float64(n.SampleRate)
	if t+float64(size)/sr <= start || t >= end {
		return audio.Frame{}, nil
	}

	offset := int(math.Round((t - start) * sr))
	limit := pcm.Len()
	if !math.IsInf(end, 1) {
		limit = min(limit, int(math.Round((end-start)*sr)))
	}

	out := audio.NewBuffer(pcm.Channels(), size, n.SampleRate)
	for c := 0; c < pcm.Channels(); c++ {
		src := pcm.Channel(c)
		dst := out.Channel(c)
		for i := range dst {
			if j := offset + i; j >= 0 && j < limit {
				dst[i] = src[j]
			}
		}
	}
	return audio.Frame{Volume: n.Volume, Buffer: out}, nil
}

func (n *Clip) Destroy() {
	n.Display.Destroy()
	n.mu.Lock()
	n.pcm = nil
	n.mu.Unlock()
}
