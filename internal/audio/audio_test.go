package audio

import (
	"context"
	"math"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/faiface/beep"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// constSource returns size samples of value at the given volume.
type constSource struct {
	value  float32
	volume float64

	mu    sync.Mutex
	calls []window
}

type window struct {
	t    float64
	size int
}

func (s *constSource) AudioFrame(_ context.Context, t float64, size int) (Frame, error) {
	s.mu.Lock()
	s.calls = append(s.calls, window{t, size})
	s.mu.Unlock()
	b := NewBuffer(1, size, 44100)
	ch := b.Channel(0)
	for i := range ch {
		ch[i] = s.value
	}
	return Frame{Volume: s.volume, Buffer: b}, nil
}

type silentSource struct{}

func (silentSource) AudioFrame(context.Context, float64, int) (Frame, error) {
	return Frame{}, nil
}

func newMixer() *Mixer {
	return &Mixer{SampleRate: 44100, Channels: 2, FPS: 24, Volume: 1}
}

func TestFrameAudioVolumes(t *testing.T) {
	m := newMixer()
	out, err := m.FrameAudio(context.Background(), []Source{
		&constSource{value: 1, volume: 0.5},
		&constSource{value: 1, volume: 0},
		silentSource{},
	}, 0, 64)
	require.NoError(t, err)
	require.Equal(t, 64, out.Len())
	for c := 0; c < 2; c++ {
		for _, v := range out.Channel(c) {
			assert.InDelta(t, 0.5, v, 1e-6)
		}
	}
}

func TestFrameAudioNaNBecomesSilence(t *testing.T) {
	m := newMixer()
	nan := float32(math.NaN())
	out, err := m.FrameAudio(context.Background(), []Source{
		&constSource{value: nan, volume: 1},
		&constSource{value: 0.25, volume: 1},
	}, 0, 8)
	require.NoError(t, err)
	for _, v := range out.Channel(0) {
		assert.InDelta(t, 0.25, v, 1e-6)
	}
}

func TestFrameAudioMasterVolume(t *testing.T) {
	m := newMixer()
	m.Volume = 0.5
	out, err := m.FrameAudio(context.Background(), []Source{&constSource{value: 1, volume: 1}}, 0, 4)
	require.NoError(t, err)
	assert.InDelta(t, 0.5, out.Channel(1)[0], 1e-6)

	// Within the tolerance the pass is skipped.
	m.Volume = 1.005
	out, err = m.FrameAudio(context.Background(), []Source{&constSource{value: 1, volume: 1}}, 0, 4)
	require.NoError(t, err)
	assert.Equal(t, float32(1), out.Channel(1)[0])
}

func TestBufferCoversEveryWindow(t *testing.T) {
	m := newMixer()
	src := &constSource{value: 1, volume: 1}
	out, err := m.Buffer(context.Background(), []Source{src}, 2, 10)
	require.NoError(t, err)

	assert.Equal(t, 18375, out.Len())
	for i, v := range out.Channel(0) {
		if v != 1 {
			t.Fatalf("gap at sample %d", i)
		}
	}

	require.Len(t, src.calls, 10)
	total := 0
	for i, w := range src.calls {
		assert.InDelta(t, 2+float64(i)/24, w.t, 1e-9)
		total += w.size
	}
	assert.Equal(t, 18375, total)
}

func TestSchedulerRing(t *testing.T) {
	ac := NewOfflineContext(44100)
	m := newMixer()
	src := &constSource{value: 1, volume: 1}
	s := NewScheduler(ac, m, func() []Source { return []Source{src} }, nil)
	ctx := context.Background()

	require.NoError(t, s.Play(ctx, 1))
	frameLen := 10.0 / 24
	assert.InDelta(t, 1+2*frameLen, s.End(), 1e-9)

	sources := ac.Sources()
	require.Len(t, sources, 1)
	assert.True(t, sources[0].Loop())
	assert.True(t, sources[0].Started())
	assert.True(t, sources[0].Connected())
	assert.Equal(t, m.BufferLen(20), sources[0].Buffer().Len())

	// Still more than a half ahead.
	require.NoError(t, s.Play(ctx, 1.3))
	s.Wait()
	assert.InDelta(t, 1+2*frameLen, s.End(), 1e-9)

	// Inside the last half: refill the first one.
	src.value = 0.5
	require.NoError(t, s.Play(ctx, 1.6))
	s.Wait()
	assert.InDelta(t, 1+3*frameLen, s.End(), 1e-9)
	buf := sources[0].Buffer()
	assert.Equal(t, float32(0.5), buf.Channel(0)[0])
	assert.Equal(t, float32(1), buf.Channel(0)[buf.Len()-1])

	// Next refill goes to the second half.
	src.value = 0.25
	require.NoError(t, s.Play(ctx, 2.05))
	s.Wait()
	assert.Equal(t, float32(0.5), buf.Channel(0)[0])
	assert.Equal(t, float32(0.25), buf.Channel(0)[buf.Len()-1])
	assert.Len(t, ac.Sources(), 1)
}

func TestSchedulerRefillStaysInsideHalf(t *testing.T) {
	ac := NewOfflineContext(44100)
	m := &Mixer{SampleRate: 44100, Channels: 2, FPS: 26, Volume: 1}
	src := &constSource{value: 1, volume: 1}
	s := NewScheduler(ac, m, func() []Source { return []Source{src} }, nil)
	ctx := context.Background()

	require.NoError(t, s.Play(ctx, 1))
	buf := ac.Sources()[0].Buffer()
	half := buf.Len() / 2
	require.Equal(t, 33923, buf.Len())
	require.Equal(t, 16962, m.BufferLen(10), "a refill is longer than the first half")

	src.value = 7
	require.NoError(t, s.Play(ctx, 1.6))
	s.Wait()
	ch := buf.Channel(0)
	assert.Equal(t, float32(7), ch[half-1])
	assert.Equal(t, float32(1), ch[half], "first half refill spilled into the second half")

	src.value = 3
	require.NoError(t, s.Play(ctx, 2.0))
	s.Wait()
	assert.Equal(t, float32(7), ch[half-1])
	assert.Equal(t, float32(3), ch[half])
	assert.Equal(t, float32(3), ch[buf.Len()-1])
}

// blockingSource holds every refill until released.
type blockingSource struct {
	release chan struct{}
	first   bool
}

func (b *blockingSource) AudioFrame(ctx context.Context, t float64, size int) (Frame, error) {
	if b.first {
		<-b.release
	}
	buf := NewBuffer(1, size, 44100)
	for i := range buf.Channel(0) {
		buf.Channel(0)[i] = 9
	}
	return Frame{Volume: 1, Buffer: buf}, nil
}

func TestSchedulerStopDiscardsStaleRefill(t *testing.T) {
	ac := NewOfflineContext(44100)
	src := &blockingSource{release: make(chan struct{})}
	s := NewScheduler(ac, newMixer(), func() []Source { return []Source{src} }, nil)
	ctx := context.Background()

	s.Stop() // idle stop is fine

	require.NoError(t, s.Play(ctx, 0))
	old := ac.Sources()[0]
	old.Buffer().Channel(0)[0] = 0
	src.first = true
	require.NoError(t, s.Play(ctx, 0.6))
	assert.True(t, s.Updating())

	epoch := s.Epoch()
	s.Stop()
	assert.NotEqual(t, epoch, s.Epoch())
	assert.True(t, old.Stopped())
	assert.False(t, old.Connected())

	close(src.release)
	s.Wait()
	assert.Equal(t, float32(0), old.Buffer().Channel(0)[0], "stale refill must not be written")
	assert.False(t, s.Playing())
	assert.Equal(t, 0.0, s.End())
}

func TestSchedulerMutedStops(t *testing.T) {
	ac := NewOfflineContext(44100)
	m := newMixer()
	s := NewScheduler(ac, m, func() []Source { return nil }, nil)
	require.NoError(t, s.Play(context.Background(), 0))
	require.True(t, s.Playing())

	m.Volume = 0
	require.NoError(t, s.Play(context.Background(), 0.1))
	assert.False(t, s.Playing())
	assert.Len(t, ac.Sources(), 1)
}

func TestOfflineContextClock(t *testing.T) {
	now := time.Unix(0, 0)
	ac := NewOfflineContextWithClock(48000, func() time.Time { return now })

	now = now.Add(500 * time.Millisecond)
	assert.InDelta(t, 0.5, ac.CurrentTime(), 1e-9)

	require.NoError(t, ac.Suspend())
	now = now.Add(time.Second)
	assert.InDelta(t, 0.5, ac.CurrentTime(), 1e-9)

	require.NoError(t, ac.Resume())
	now = now.Add(250 * time.Millisecond)
	assert.InDelta(t, 0.75, ac.CurrentTime(), 1e-9)

	require.NoError(t, ac.Close())
	require.NoError(t, ac.Close())
	assert.ErrorIs(t, ac.Resume(), ErrClosed)
}

func TestAnalyseFindsTone(t *testing.T) {
	const bin = 100
	freq := float64(bin) * 44100 / FFTSize
	b := NewBuffer(1, FFTSize, 44100)
	for i := range b.Channel(0) {
		b.Channel(0)[i] = float32(math.Sin(2 * math.Pi * freq * float64(i) / 44100))
	}

	a := Analyse(b, 1.5)
	assert.Equal(t, 1.5, a.Time)
	require.Len(t, a.Spectrum, FFTSize/2)

	best := 0
	for i, v := range a.Spectrum {
		if v > a.Spectrum[best] {
			best = i
		}
	}
	assert.Equal(t, bin, best)
	// A unit sine under a Hann window peaks at N/4, i.e. -12 dB.
	assert.InDelta(t, 20*math.Log10(0.25), a.Spectrum[bin], 0.1)
	assert.InDelta(t, 1/math.Sqrt2, a.RMS, 0.01)
	assert.InDelta(t, 1, a.Peak, 0.01)
}

func TestAnalyseSilenceHitsFloor(t *testing.T) {
	a := Analyse(NewBuffer(2, 100, 44100), 0)
	require.Len(t, a.Spectrum, FFTSize/2)
	for _, v := range a.Spectrum {
		assert.InDelta(t, -200, v, 1e-3)
	}
	assert.Zero(t, a.RMS)
	assert.Zero(t, a.Peak)
}

func TestWAVRoundTrip(t *testing.T) {
	b := NewBuffer(2, 1000, 22050)
	for i := range b.Channel(0) {
		b.Channel(0)[i] = 0.5
		b.Channel(1)[i] = -0.5
	}

	path := filepath.Join(t.TempDir(), "tone.wav")
	f, err := os.Create(path)
	require.NoError(t, err)
	require.NoError(t, WriteWAV(f, b))
	require.NoError(t, f.Close())

	r, err := os.Open(path)
	require.NoError(t, err)
	defer r.Close()
	got, err := DecodeWAV(r, 22050)
	require.NoError(t, err)

	assert.Equal(t, 2, got.Channels())
	assert.Equal(t, 1000, got.Len())
	assert.InDelta(t, 0.5, got.Channel(0)[10], 1e-3)
	assert.InDelta(t, -0.5, got.Channel(1)[10], 1e-3)
}

func TestBufferCopyBounds(t *testing.T) {
	b := NewBuffer(1, 4, 8000)
	assert.Error(t, b.CopyToChannel([]float32{1}, 1, 0))
	assert.Error(t, b.CopyToChannel([]float32{1}, 0, 5))
	require.NoError(t, b.CopyToChannel([]float32{1, 2, 3}, 0, 2))
	assert.Equal(t, []float32{0, 0, 1, 2}, b.Channel(0))

	dst := make([]float32, 4)
	n, err := b.CopyFromChannel(dst, 0, 1)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.InDelta(t, 0.5, b.Duration()*1000, 1e-9)
}

func TestSpeakerClockInterpolatesChunks(t *testing.T) {
	now := time.Unix(0, 0)
	c := &SpeakerContext{
		sampleRate: 1000,
		mixer:      &beep.Mixer{},
		now:        func() time.Time { return now },
	}
	c.running.Store(true)
	assert.Equal(t, 0.0, c.CurrentTime())

	chunk := make([][2]float64, 100)
	c.stream(chunk)
	assert.Equal(t, 0.0, c.CurrentTime(), "a fresh chunk has not played yet")

	now = now.Add(40 * time.Millisecond)
	assert.InDelta(t, 0.04, c.CurrentTime(), 1e-9)

	now = now.Add(200 * time.Millisecond)
	assert.InDelta(t, 0.1, c.CurrentTime(), 1e-9, "never past the pulled samples")

	c.stream(chunk)
	assert.InDelta(t, 0.1, c.CurrentTime(), 1e-9)

	prev := c.CurrentTime()
	for i := 0; i < 30; i++ {
		now = now.Add(5 * time.Millisecond)
		if i%20 == 19 {
			c.stream(chunk)
		}
		cur := c.CurrentTime()
		assert.GreaterOrEqual(t, cur, prev)
		assert.LessOrEqual(t, cur-prev, 0.0051)
		prev = cur
	}

	require.NoError(t, c.Suspend())
	frozen := c.CurrentTime()
	now = now.Add(time.Second)
	c.stream(chunk)
	assert.Equal(t, frozen, c.CurrentTime(), "suspended pulls do not advance")
	assert.GreaterOrEqual(t, frozen, prev)

	require.NoError(t, c.Resume())
	assert.InDelta(t, frozen, c.CurrentTime(), 1e-9)
	c.stream(chunk)
	now = now.Add(50 * time.Millisecond)
	assert.InDelta(t, frozen+0.05, c.CurrentTime(), 1e-9)
}
