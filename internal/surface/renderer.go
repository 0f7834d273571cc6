package surface

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"sync"

	"golang.org/x/image/draw"
)

// ErrDestroyed is returned by operations on a destroyed renderer.
var ErrDestroyed = errors.New("surface: renderer destroyed")

// Renderer owns a canvas and the stage layer composited onto it.
type Renderer struct {
	mu        sync.Mutex
	view      *image.RGBA
	stage     *Layer
	bg        color.RGBA
	w, h      int
	destroyed bool
}

// NewRenderer allocates a w x h canvas cleared to bg.
func NewRenderer(w, h int, bg color.RGBA) (*Renderer, error) {
	if w <= 0 || h <= 0 {
		return nil, fmt.Errorf("surface: invalid canvas size %dx%d", w, h)
	}
	r := &Renderer{
		view:  GetImage(w, h),
		stage: NewLayer("stage"),
		bg:    bg,
		w:     w,
		h:     h,
	}
	r.clear()
	return r, nil
}

// Stage is the root layer; node views are attached to it.
func (r *Renderer) Stage() *Layer { return r.stage }

// Background is the colour the canvas is cleared to.
func (r *Renderer) Background() color.RGBA { return r.bg }

// Size returns the canvas dimensions.
func (r *Renderer) Size() (int, int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.w, r.h
}

// View returns the live canvas. It is overwritten by the next Render.
func (r *Renderer) View() *image.RGBA {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.view
}

// Render clears the canvas and composites the stage onto it.
func (r *Renderer) Render() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.destroyed {
		return ErrDestroyed
	}
	r.clear()
	r.stage.Composite(r.view, Identity, 1)
	return nil
}

func (r *Renderer) clear() {
	draw.Draw(r.view, r.view.Bounds(), image.NewUniform(r.bg), image.Point{}, draw.Src)
}

// Snapshot copies the canvas into a pooled buffer. Callers release it
// with PutImage when done.
func (r *Renderer) Snapshot() (*image.RGBA, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.destroyed {
		return nil, ErrDestroyed
	}
	out := GetImage(r.w, r.h)
	copy(out.Pix, r.view.Pix)
	return out, nil
}

// Resize reallocates the canvas. Non-positive or unchanged sizes are ignored.
func (r *Renderer) Resize(w, h int) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.destroyed || w <= 0 || h <= 0 || (w == r.w && h == r.h) {
		return false
	}
	PutImage(r.view)
	r.view = GetImage(w, h)
	r.w, r.h = w, h
	r.clear()
	return true
}

// Destroy detaches the stage. With removeView the canvas is released and
// View returns nil afterwards.
func (r *Renderer) Destroy(removeView bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.destroyed {
		return
	}
	r.destroyed = true
	r.stage.RemoveChildren()
	if removeView {
		PutImage(r.view)
		r.view = nil
	}
}
