package node

import (
	"context"
	"math"
	"sync"

	"github.com/ivlev/frameplayer/internal/audio"
	"github.com/ivlev/frameplayer/internal/surface"
)

// Display carries the display state every node shares: timing, z-order and
// one layer per view target. Concrete nodes embed *Display and set Painter.
type Display struct {
	opts    Options
	self    Node
	Painter Painter

	mu       sync.Mutex
	parent   Node
	absStart float64
	absEnd   float64
	zIndex   int
	views    [2]*surface.Layer
	sx, sy   float64
	ready    bool
}

// NewDisplay creates the shared state for self.
func NewDisplay(self Node, opts Options) *Display {
	return &Display{opts: opts, self: self, zIndex: opts.ZIndex, sx: 1, sy: 1}
}

func (b *Display) ID() string        { return b.opts.ID }
func (b *Display) Type() string      { return b.opts.Type }
func (b *Display) Base() *Display    { return b }
func (b *Display) Options() Options  { return b.opts }
func (b *Display) Start() float64    { return b.opts.Start }
func (b *Display) Duration() float64 { return b.opts.Duration }
func (b *Display) AllNodes() []Node  { return nil }

func (b *Display) Parent() Node {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.parent
}

func (b *Display) setParent(p Node) {
	b.mu.Lock()
	b.parent = p
	b.mu.Unlock()
}

// AbsStart and AbsEnd are the node's window on the root timeline, valid
// after Annotate.
func (b *Display) AbsStart() float64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.absStart
}

func (b *Display) AbsEnd() float64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.absEnd
}

func (b *Display) Ready() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.ready
}

func (b *Display) setReady() {
	b.mu.Lock()
	b.ready = true
	b.mu.Unlock()
}

// Preload marks the node ready. Nodes with assets load them first.
func (b *Display) Preload(_ context.Context, onProgress func(float64)) error {
	b.setReady()
	if onProgress != nil {
		onProgress(1)
	}
	return nil
}

// Annotate places the node on the root timeline relative to its parent.
// A non-positive duration means the node never ends.
func (b *Display) Annotate() {
	var start float64
	if p := b.Parent(); p != nil {
		start = p.Base().AbsStart()
	}
	start += b.opts.Start
	end := math.Inf(1)
	if d := b.self.Duration(); d > 0 {
		end = start + d
	}

	b.mu.Lock()
	b.absStart, b.absEnd = start, end
	b.mu.Unlock()
}

// Active reports whether t falls inside the node's window.
func (b *Display) Active(t float64) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.absStart <= t && t < b.absEnd
}

func (b *Display) ZIndex() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.zIndex
}

// SetZIndex restacks the node; parents resort lazily on next composite.
func (b *Display) SetZIndex(z int) {
	b.mu.Lock()
	b.zIndex = z
	views := b.views
	b.mu.Unlock()

	for _, v := range views {
		if v != nil {
			v.SetZIndex(z)
		}
	}
}

// View returns the layer for vt, creating it on first use.
func (b *Display) View(_ float64, vt ViewType) *surface.Layer {
	l, _ := b.view(vt)
	return l
}

// view also reports whether the layer was just created.
func (b *Display) view(vt ViewType) (*surface.Layer, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	i := vt.target()
	if b.views[i] != nil {
		return b.views[i], false
	}
	l := surface.NewLayer(b.opts.ID)
	l.SetPosition(b.opts.X, b.opts.Y)
	l.SetScale(b.sx, b.sy)
	l.SetZIndex(b.zIndex)
	b.views[i] = l
	return l, true
}

// existingView returns the layer for vt without creating one.
func (b *Display) existingView(vt ViewType) *surface.Layer {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.views[vt.target()]
}

// Draw shows the layer while t is inside the node's window and paints it.
func (b *Display) Draw(ctx context.Context, t float64, vt ViewType) (*surface.Layer, error) {
	if !b.Ready() {
		return nil, nil
	}
	l := b.self.View(t, vt)
	active := b.Active(t)
	l.SetVisible(active)
	if active && b.Painter != nil {
		if err := b.Painter.Paint(ctx, l, t-b.AbsStart()); err != nil {
			return nil, err
		}
	}
	return l, nil
}

// AudioFrame is silent by default.
func (b *Display) AudioFrame(context.Context, float64, int) (audio.Frame, error) {
	return audio.Frame{}, nil
}

// Resize scales the node's layers from its design size to w x h. Nodes
// without a design size ignore it.
func (b *Display) Resize(w, h int) {
	if w <= 0 || h <= 0 || b.opts.Width <= 0 || b.opts.Height <= 0 {
		return
	}
	sx := float64(w) / float64(b.opts.Width)
	sy := float64(h) / float64(b.opts.Height)

	b.mu.Lock()
	b.sx, b.sy = sx, sy
	views := b.views
	b.mu.Unlock()

	for _, v := range views {
		if v != nil {
			v.SetScale(sx, sy)
		}
	}
}

// Destroy detaches and drops the node's layers.
func (b *Display) Destroy() {
	b.mu.Lock()
	views := b.views
	b.views = [2]*surface.Layer{}
	b.ready = false
	b.mu.Unlock()

	for _, v := range views {
		if v == nil {
			continue
		}
		if p := v.Parent(); p != nil {
			p.RemoveChild(v)
		}
		v.SetImage(nil)
	}
}
