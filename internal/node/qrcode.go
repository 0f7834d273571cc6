package node

import (
	"context"
	"fmt"
	"image"
	"sync"

	"github.com/skip2/go-qrcode"
	"golang.org/x/image/draw"

	"github.com/ivlev/frameplayer/internal/surface"
)

// QRCode renders Text as a square code of Width pixels.
type QRCode struct {
	*Display
	Text string

	mu  sync.Mutex
	img *image.RGBA
}

func NewQRCode(opts Options, text string) *QRCode {
	if opts.Type == "" {
		opts.Type = "qrcode"
	}
	if opts.Width <= 0 {
		opts.Width = 256
	}
	opts.Height = opts.Width
	n := &QRCode{Text: text}
	n.Display = NewDisplay(n, opts)
	n.Painter = n
	return n
}

func (n *QRCode) Preload(ctx context.Context, onProgress func(float64)) error {
	q, err := qrcode.New(n.Text, qrcode.Medium)
	if err != nil {
		return fmt.Errorf("qrcode %q: %w", n.ID(), err)
	}
	src := q.Image(n.opts.Width)
	dst := image.NewRGBA(image.Rect(0, 0, src.Bounds().Dx(), src.Bounds().Dy()))
	draw.Draw(dst, dst.Rect, src, src.Bounds().Min, draw.Src)

	n.mu.Lock()
	n.img = dst
	n.mu.Unlock()
	return n.Display.Preload(ctx, onProgress)
}

func (n *QRCode) Paint(_ context.Context, l *surface.Layer, _ float64) error {
	n.mu.Lock()
	img := n.img
	n.mu.Unlock()
	if img != nil && l.Image() != img {
		l.SetImage(img)
	}
	return nil
}
