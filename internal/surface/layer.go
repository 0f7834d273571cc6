// Package surface is the software rendering backend: a tree of layers
// composited onto an RGBA canvas.
package surface

import (
	"image"
	"image/color"
	"math"
	"sort"
	"sync"

	"golang.org/x/image/draw"
	"golang.org/x/image/math/f64"
)

// Identity is the identity affine transform.
var Identity = f64.Aff3{1, 0, 0, 0, 1, 0}

// Layer is one node of the display tree. A layer may carry its own raster
// content and any number of children composited above it.
type Layer struct {
	mu sync.Mutex

	name     string
	img      *image.RGBA
	x, y     float64
	sx, sy   float64
	alpha    float64
	visible  bool
	zIndex   int
	parent   *Layer
	children []*Layer
	sorted   bool
}

// NewLayer creates an empty visible layer at the origin.
func NewLayer(name string) *Layer {
	return &Layer{name: name, sx: 1, sy: 1, alpha: 1, visible: true, sorted: true}
}

func (l *Layer) Name() string { return l.name }

// SetImage replaces the layer's raster content. nil clears it.
func (l *Layer) SetImage(img *image.RGBA) {
	l.mu.Lock()
	l.img = img
	l.mu.Unlock()
}

func (l *Layer) Image() *image.RGBA {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.img
}

func (l *Layer) SetPosition(x, y float64) {
	l.mu.Lock()
	l.x, l.y = x, y
	l.mu.Unlock()
}

func (l *Layer) Position() (float64, float64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.x, l.y
}

func (l *Layer) SetScale(sx, sy float64) {
	l.mu.Lock()
	l.sx, l.sy = sx, sy
	l.mu.Unlock()
}

func (l *Layer) Scale() (float64, float64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.sx, l.sy
}

// SetAlpha sets the layer opacity, clamped to [0, 1].
func (l *Layer) SetAlpha(a float64) {
	l.mu.Lock()
	l.alpha = math.Max(0, math.Min(1, a))
	l.mu.Unlock()
}

func (l *Layer) Alpha() float64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.alpha
}

func (l *Layer) SetVisible(v bool) {
	l.mu.Lock()
	l.visible = v
	l.mu.Unlock()
}

func (l *Layer) Visible() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.visible
}

func (l *Layer) ZIndex() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.zIndex
}

// SetZIndex changes the stacking order and marks the parent for resorting.
// The sort itself is deferred to the next composite.
func (l *Layer) SetZIndex(z int) {
	l.mu.Lock()
	changed := l.zIndex != z
	l.zIndex = z
	parent := l.parent
	l.mu.Unlock()

	if changed && parent != nil {
		parent.mu.Lock()
		parent.sorted = false
		parent.mu.Unlock()
	}
}

// Parent returns the layer this one is attached to, or nil.
func (l *Layer) Parent() *Layer {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.parent
}

// AddChild attaches c above the existing children. A child attached
// elsewhere is detached first.
func (l *Layer) AddChild(c *Layer) {
	if c == nil || c == l {
		return
	}
	if old := c.Parent(); old != nil {
		old.RemoveChild(c)
	}

	c.mu.Lock()
	c.parent = l
	c.mu.Unlock()

	l.mu.Lock()
	l.children = append(l.children, c)
	l.sorted = false
	l.mu.Unlock()
}

// RemoveChild detaches c if it is a direct child.
func (l *Layer) RemoveChild(c *Layer) {
	l.mu.Lock()
	for i, ch := range l.children {
		if ch == c {
			l.children = append(l.children[:i], l.children[i+1:]...)
			break
		}
	}
	l.mu.Unlock()

	c.mu.Lock()
	if c.parent == l {
		c.parent = nil
	}
	c.mu.Unlock()
}

// RemoveChildren detaches every child.
func (l *Layer) RemoveChildren() {
	l.mu.Lock()
	children := l.children
	l.children = nil
	l.sorted = true
	l.mu.Unlock()

	for _, c := range children {
		c.mu.Lock()
		c.parent = nil
		c.mu.Unlock()
	}
}

// Children returns the children in compositing order.
func (l *Layer) Children() []*Layer {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.sortLocked()
	out := make([]*Layer, len(l.children))
	copy(out, l.children)
	return out
}

func (l *Layer) sortLocked() {
	if l.sorted {
		return
	}
	// Stable, so equal z-indices keep insertion order.
	sort.SliceStable(l.children, func(i, j int) bool {
		return l.children[i].ZIndex() < l.children[j].ZIndex()
	})
	l.sorted = true
}

// Composite draws the layer and its subtree onto dst under the parent
// transform m and the inherited opacity.
func (l *Layer) Composite(dst draw.Image, m f64.Aff3, alpha float64) {
	l.mu.Lock()
	if !l.visible || l.alpha <= 0 {
		l.mu.Unlock()
		return
	}
	local := mul(m, f64.Aff3{l.sx, 0, l.x, 0, l.sy, l.y})
	a := alpha * l.alpha
	img := l.img
	l.sortLocked()
	children := make([]*Layer, len(l.children))
	copy(children, l.children)
	l.mu.Unlock()

	if img != nil {
		drawImage(dst, img, local, a)
	}
	for _, c := range children {
		c.Composite(dst, local, a)
	}
}

func drawImage(dst draw.Image, src *image.RGBA, m f64.Aff3, alpha float64) {
	var mask image.Image
	if alpha < 1 {
		mask = image.NewUniform(color.Alpha{A: uint8(math.Round(alpha * 255))})
	}

	if m[0] == 1 && m[1] == 0 && m[3] == 0 && m[4] == 1 && isInt(m[2]) && isInt(m[5]) {
		sb := src.Bounds()
		off := image.Pt(int(m[2]), int(m[5]))
		r := image.Rectangle{Min: off, Max: off.Add(sb.Size())}
		if mask == nil {
			draw.Draw(dst, r, src, sb.Min, draw.Over)
		} else {
			draw.DrawMask(dst, r, src, sb.Min, mask, image.Point{}, draw.Over)
		}
		return
	}

	// Transform maps source pixels to destination space relative to the
	// source bounds origin.
	sb := src.Bounds()
	m = mul(m, f64.Aff3{1, 0, float64(-sb.Min.X), 0, 1, float64(-sb.Min.Y)})
	var opts *draw.Options
	if mask != nil {
		opts = &draw.Options{SrcMask: mask}
	}
	draw.ApproxBiLinear.Transform(dst, m, src, sb, draw.Over, opts)
}

func isInt(v float64) bool { return v == math.Trunc(v) }

// mul returns a*b, applying b first.
func mul(a, b f64.Aff3) f64.Aff3 {
	return f64.Aff3{
		a[0]*b[0] + a[1]*b[3],
		a[0]*b[1] + a[1]*b[4],
		a[0]*b[2] + a[1]*b[5] + a[2],
		a[3]*b[0] + a[4]*b[3],
		a[3]*b[1] + a[4]*b[4],
		a[3]*b[2] + a[4]*b[5] + a[5],
	}
}
