package node

import (
	"context"
	"image"
	"image/color"
	"sync"

	"golang.org/x/image/draw"

	"github.com/ivlev/frameplayer/internal/surface"
)

// Solid fills its Width x Height box with one colour.
type Solid struct {
	*Display
	Color color.RGBA

	mu  sync.Mutex
	img *image.RGBA
}

func NewSolid(opts Options, c color.RGBA) *Solid {
	if opts.Type == "" {
		opts.Type = "solid"
	}
	n := &Solid{Color: c}
	n.Display = NewDisplay(n, opts)
	n.Painter = n
	return n
}

// NewCover is a solid that a container tracks as a cover.
func NewCover(opts Options, c color.RGBA) *Solid {
	opts.Type = TypeCover
	return NewSolid(opts, c)
}

func (n *Solid) Preload(ctx context.Context, onProgress func(float64)) error {
	w, h := max(n.opts.Width, 1), max(n.opts.Height, 1)
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.Draw(img, img.Rect, image.NewUniform(n.Color), image.Point{}, draw.Src)

	n.mu.Lock()
	n.img = img
	n.mu.Unlock()
	return n.Display.Preload(ctx, onProgress)
}

func (n *Solid) Paint(_ context.Context, l *surface.Layer, _ float64) error {
	n.mu.Lock()
	img := n.img
	n.mu.Unlock()
	if img != nil && l.Image() != img {
		l.SetImage(img)
	}
	return nil
}
