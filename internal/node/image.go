package node

import (
	"context"
	"fmt"
	"image"
	"sync"

	"golang.org/x/image/draw"

	"github.com/ivlev/frameplayer/internal/surface"
)

// Loader fetches a raster on preload.
type Loader func(ctx context.Context) (image.Image, error)

// Image shows a raster, optionally animated by keyframes. The raster is
// scaled to the node's Width x Height once, at preload.
type Image struct {
	*Display
	Keyframes []Keyframe

	load Loader

	mu  sync.Mutex
	img *image.RGBA
}

func NewImage(opts Options, load Loader, keyframes []Keyframe) *Image {
	if opts.Type == "" {
		opts.Type = "image"
	}
	n := &Image{load: load, Keyframes: keyframes}
	n.Display = NewDisplay(n, opts)
	n.Painter = n
	return n
}

func (n *Image) Preload(ctx context.Context, onProgress func(float64)) error {
	src, err := n.load(ctx)
	if err != nil {
		return fmt.Errorf("image %q: %w", n.ID(), err)
	}
	w, h := n.opts.Width, n.opts.Height
	if w <= 0 || h <= 0 {
		w, h = src.Bounds().Dx(), src.Bounds().Dy()
	}
	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	if src.Bounds().Size() == dst.Rect.Size() {
		draw.Draw(dst, dst.Rect, src, src.Bounds().Min, draw.Src)
	} else {
		draw.CatmullRom.Scale(dst, dst.Rect, src, src.Bounds(), draw.Src, nil)
	}

	n.mu.Lock()
	n.img = dst
	n.mu.Unlock()
	return n.Display.Preload(ctx, onProgress)
}

// Raster returns the scaled raster, nil before preload.
func (n *Image) Raster() *image.RGBA {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.img
}

// Paint zooms around the raster centre.
func (n *Image) Paint(_ context.Context, l *surface.Layer, local float64) error {
	img := n.Raster()
	if img == nil {
		return nil
	}
	if l.Image() != img {
		l.SetImage(img)
	}
	tr := Interpolate(n.Keyframes, local)
	w, h := float64(img.Rect.Dx()), float64(img.Rect.Dy())
	l.SetPosition(
		n.opts.X+tr.X-(tr.Zoom-1)*w/2,
		n.opts.Y+tr.Y-(tr.Zoom-1)*h/2,
	)
	l.SetScale(tr.Zoom, tr.Zoom)
	l.SetAlpha(tr.Alpha)
	return nil
}

func (n *Image) Destroy() {
	n.Display.Destroy()
	n.mu.Lock()
	n.img = nil
	n.mu.Unlock()
}
