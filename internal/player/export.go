package player

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"
	"math"
	"runtime"
	"strconv"

	"golang.org/x/image/bmp"

	"github.com/ivlev/frameplayer/internal/audio"
	"github.com/ivlev/frameplayer/internal/node"
	"github.com/ivlev/frameplayer/internal/surface"
)

// ImageFormat selects how FrameImage returns pixels.
type ImageFormat int

const (
	FormatJPEG   ImageFormat = iota // encoded, quality 70 unless set
	FormatBitmap                    // *image.RGBA snapshot
	FormatRaw                       // raw RGBA bytes
	FormatPNG
	FormatBMP
)

// ParseImageFormat maps a name such as "jpeg" or "png" to a format.
func ParseImageFormat(s string) (ImageFormat, error) {
	switch s {
	case "", "jpeg", "jpg":
		return FormatJPEG, nil
	case "bitmap":
		return FormatBitmap, nil
	case "raw":
		return FormatRaw, nil
	case "png":
		return FormatPNG, nil
	case "bmp":
		return FormatBMP, nil
	}
	return 0, fmt.Errorf("unknown image format %q", s)
}

// DefaultJPEGQuality is used when ImageOptions.Quality is zero.
const DefaultJPEGQuality = 70

// ImageOptions configure FrameImage.
type ImageOptions struct {
	Format  ImageFormat
	Quality int
}

// FrameImage is an exported still. Bitmap is set for FormatBitmap, Data
// for every other format.
type FrameImage struct {
	Format ImageFormat
	Width  int
	Height int
	Bitmap *image.RGBA
	Data   []byte
}

// FrameImage draws t on the screen renderer and returns the pixels. The
// playback position and state are left alone.
func (p *Player) FrameImage(ctx context.Context, t float64, opts ImageOptions) (*FrameImage, error) {
	p.drawMu.Lock()
	p.mu.Lock()
	if err := p.stateLocked(); err != nil {
		p.mu.Unlock()
		p.drawMu.Unlock()
		return nil, err
	}
	p.mu.Unlock()

	if _, err := p.root.Draw(ctx, t, node.ViewSeek); err != nil {
		p.drawMu.Unlock()
		return nil, fmt.Errorf("draw at %.3fs: %w", t, err)
	}
	if err := p.renderer.Render(); err != nil {
		p.drawMu.Unlock()
		return nil, err
	}
	snap, err := p.renderer.Snapshot()
	p.drawMu.Unlock()
	if err != nil {
		return nil, err
	}

	out := &FrameImage{Format: opts.Format, Width: snap.Rect.Dx(), Height: snap.Rect.Dy()}
	switch opts.Format {
	case FormatBitmap:
		out.Bitmap = snap
		return out, nil
	case FormatRaw:
		// The copy is already detached from the canvas; let the next
		// frame start before handing it over.
		runtime.Gosched()
		out.Data = snap.Pix
		return out, nil
	}

	defer surface.PutImage(snap)
	var buf bytes.Buffer
	switch opts.Format {
	case FormatJPEG:
		q := opts.Quality
		if q <= 0 {
			q = DefaultJPEGQuality
		}
		err = jpeg.Encode(&buf, snap, &jpeg.Options{Quality: q})
	case FormatPNG:
		err = png.Encode(&buf, snap)
	case FormatBMP:
		err = bmp.Encode(&buf, snap)
	default:
		err = fmt.Errorf("unknown image format %d", opts.Format)
	}
	if err != nil {
		return nil, fmt.Errorf("encode frame: %w", err)
	}
	out.Data = buf.Bytes()
	return out, nil
}

// FrameAudio mixes size samples of every node from t. A non-positive size
// means one tick's worth.
func (p *Player) FrameAudio(ctx context.Context, t float64, size int) (*audio.Buffer, error) {
	p.mu.Lock()
	if err := p.stateLocked(); err != nil {
		p.mu.Unlock()
		return nil, err
	}
	root, mixer := p.root, p.mixer
	p.mu.Unlock()

	if size <= 0 {
		size = int(math.Round(float64(p.cfg.SampleRate) / float64(p.cfg.FPS)))
	}
	return mixer.FrameAudio(ctx, sources(root), t, size)
}

// AnalyseAudio computes the spectrum and levels of the mix at t. Calls for
// the same timestamp share one computation while it is in flight, and the
// last result is reused for a repeated timestamp.
func (p *Player) AnalyseAudio(ctx context.Context, t float64) (audio.Analysis, error) {
	p.mu.Lock()
	if last := p.lastAnalysis; last != nil && last.Time == t {
		a := *last
		p.mu.Unlock()
		return a, nil
	}
	p.mu.Unlock()

	key := strconv.FormatFloat(t, 'g', -1, 64)
	v, err, _ := p.analyses.Do(key, func() (any, error) {
		buf, err := p.FrameAudio(ctx, t, audio.FFTSize)
		if err != nil {
			return nil, err
		}
		a := audio.Analyse(buf, t)
		p.mu.Lock()
		p.lastAnalysis = &a
		p.mu.Unlock()
		return a, nil
	})
	if err != nil {
		return audio.Analysis{}, err
	}
	return v.(audio.Analysis), nil
}

// BurnOptions select the range and size of an offline export. Zero values
// mean the whole duration at the screen size.
type BurnOptions struct {
	Width  int
	Height int
	From   float64
	To     float64
}

// BurnFrame is one exported frame. Image is only valid during the
// callback.
type BurnFrame struct {
	Index int
	Time  float64
	Image *image.RGBA
	Audio *audio.Buffer
}

// Burn renders every frame in range on a separate renderer and calls fn
// for each, in order. Playback is paused first and Play and Pause do
// nothing until Burn returns.
func (p *Player) Burn(ctx context.Context, opts BurnOptions, fn func(BurnFrame) error) error {
	if err := p.Pause(ctx); err != nil {
		return err
	}

	p.mu.Lock()
	if err := p.stateLocked(); err != nil {
		p.mu.Unlock()
		return err
	}
	if p.burning {
		p.mu.Unlock()
		return ErrBurning
	}
	p.burning = true
	w, h := opts.Width, opts.Height
	if w <= 0 || h <= 0 {
		w, h = p.width, p.height
	}
	root, mixer := p.root, p.mixer
	p.mu.Unlock()

	defer func() {
		p.mu.Lock()
		p.burning = false
		p.mu.Unlock()
	}()

	burner, err := p.burnerRenderer(root, w, h)
	if err != nil {
		return err
	}

	fps := float64(p.cfg.FPS)
	sr := float64(p.cfg.SampleRate)
	to := opts.To
	if to <= 0 || to > root.Duration() {
		to = root.Duration()
	}
	frames := int(math.Ceil((to - opts.From) * fps))

	for i := 0; i < frames; i++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		t := opts.From + float64(i)/fps

		p.drawMu.Lock()
		p.mu.Lock()
		destroyed := p.destroyed
		p.mu.Unlock()
		if destroyed {
			p.drawMu.Unlock()
			return ErrDestroyed
		}
		_, err := root.Draw(ctx, t, node.ViewBurn)
		if err == nil {
			err = burner.Render()
		}
		var snap *image.RGBA
		if err == nil {
			snap, err = burner.Snapshot()
		}
		p.drawMu.Unlock()
		if err != nil {
			return fmt.Errorf("burn frame %d: %w", i, err)
		}

		// Window edges are rounded from absolute positions so the audio of
		// consecutive frames joins without gaps.
		a0 := int(math.Round(float64(i) / fps * sr))
		a1 := int(math.Round(float64(i+1) / fps * sr))
		pcm, err := mixer.FrameAudio(ctx, sources(root), t, a1-a0)
		if err != nil {
			surface.PutImage(snap)
			return fmt.Errorf("burn audio %d: %w", i, err)
		}

		err = fn(BurnFrame{Index: i, Time: t, Image: snap, Audio: pcm})
		surface.PutImage(snap)
		if err != nil {
			return err
		}
	}
	return nil
}

// burnerRenderer returns the offline renderer at w x h, creating it and
// attaching the root's burn view on first use.
func (p *Player) burnerRenderer(root node.Node, w, h int) (*surface.Renderer, error) {
	p.drawMu.Lock()
	defer p.drawMu.Unlock()
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.burner == nil {
		r, err := surface.NewRenderer(w, h, p.renderer.Background())
		if err != nil {
			return nil, fmt.Errorf("burner: %w", err)
		}
		r.Stage().AddChild(root.View(0, node.ViewBurn))
		p.burner = r
	} else {
		p.burner.Resize(w, h)
	}

	o := root.Base().Options()
	if o.Width > 0 && o.Height > 0 {
		root.View(0, node.ViewBurn).SetScale(float64(w)/float64(o.Width), float64(h)/float64(o.Height))
	}
	return p.burner, nil
}
