package surface

import (
	"image"
	"image/color"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func solid(w, h int, c color.RGBA) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for i := 0; i < len(img.Pix); i += 4 {
		img.Pix[i], img.Pix[i+1], img.Pix[i+2], img.Pix[i+3] = c.R, c.G, c.B, c.A
	}
	return img
}

var (
	red  = color.RGBA{255, 0, 0, 255}
	blue = color.RGBA{0, 0, 255, 255}
)

func TestZIndexSortIsLazyAndStable(t *testing.T) {
	root := NewLayer("root")
	a, b, c := NewLayer("a"), NewLayer("b"), NewLayer("c")
	root.AddChild(a)
	root.AddChild(b)
	root.AddChild(c)

	names := func() []string {
		var out []string
		for _, l := range root.Children() {
			out = append(out, l.Name())
		}
		return out
	}
	assert.Equal(t, []string{"a", "b", "c"}, names())

	a.SetZIndex(5)
	assert.Equal(t, []string{"b", "c", "a"}, names())

	c.SetZIndex(-1)
	assert.Equal(t, []string{"c", "b", "a"}, names())
}

func TestCompositeRespectsZIndex(t *testing.T) {
	r, err := NewRenderer(4, 4, color.RGBA{A: 255})
	require.NoError(t, err)

	top := NewLayer("top")
	top.SetImage(solid(4, 4, red))
	bottom := NewLayer("bottom")
	bottom.SetImage(solid(4, 4, blue))

	r.Stage().AddChild(top)
	r.Stage().AddChild(bottom)
	top.SetZIndex(1)

	require.NoError(t, r.Render())
	assert.Equal(t, red, r.View().RGBAAt(1, 1))

	top.SetZIndex(-1)
	require.NoError(t, r.Render())
	assert.Equal(t, blue, r.View().RGBAAt(1, 1))
}

func TestCompositeTransformAndVisibility(t *testing.T) {
	r, err := NewRenderer(8, 8, color.RGBA{A: 255})
	require.NoError(t, err)

	l := NewLayer("box")
	l.SetImage(solid(2, 2, red))
	l.SetPosition(4, 4)
	r.Stage().AddChild(l)

	require.NoError(t, r.Render())
	assert.Equal(t, red, r.View().RGBAAt(5, 5))
	assert.Equal(t, color.RGBA{A: 255}, r.View().RGBAAt(1, 1))

	// Scaled by the parent: the 2x2 box now covers 4x4 from (0,0).
	l.SetPosition(0, 0)
	r.Stage().SetScale(2, 2)
	require.NoError(t, r.Render())
	assert.Equal(t, red, r.View().RGBAAt(3, 3))

	l.SetVisible(false)
	require.NoError(t, r.Render())
	assert.Equal(t, color.RGBA{A: 255}, r.View().RGBAAt(1, 1))
}

func TestCompositeAlpha(t *testing.T) {
	r, err := NewRenderer(2, 2, color.RGBA{A: 255})
	require.NoError(t, err)

	l := NewLayer("half")
	l.SetImage(solid(2, 2, color.RGBA{255, 255, 255, 255}))
	l.SetAlpha(0.5)
	r.Stage().AddChild(l)
	require.NoError(t, r.Render())

	px := r.View().RGBAAt(0, 0)
	assert.InDelta(t, 128, int(px.R), 2)
}

func TestRendererResizeAndDestroy(t *testing.T) {
	_, err := NewRenderer(0, 10, color.RGBA{})
	assert.Error(t, err)

	r, err := NewRenderer(4, 4, color.RGBA{})
	require.NoError(t, err)

	assert.False(t, r.Resize(4, 4), "unchanged size")
	assert.False(t, r.Resize(0, 3), "zero size")
	assert.True(t, r.Resize(6, 2))
	w, h := r.Size()
	assert.Equal(t, 6, w)
	assert.Equal(t, 2, h)
	assert.Equal(t, image.Rect(0, 0, 6, 2), r.View().Bounds())

	r.Stage().AddChild(NewLayer("x"))
	r.Destroy(true)
	r.Destroy(true)
	assert.Nil(t, r.View())
	assert.Empty(t, r.Stage().Children())
	assert.ErrorIs(t, r.Render(), ErrDestroyed)
}

func TestSnapshotIsACopy(t *testing.T) {
	r, err := NewRenderer(2, 2, red)
	require.NoError(t, err)
	snap, err := r.Snapshot()
	require.NoError(t, err)
	defer PutImage(snap)

	r.View().SetRGBA(0, 0, blue)
	assert.Equal(t, red, snap.RGBAAt(0, 0))
}

func TestPoolReturnsClearedBuffers(t *testing.T) {
	p := NewPool()
	img := p.Get(3, 3)
	img.Pix[0] = 9
	p.Put(img)

	again := p.Get(3, 3)
	assert.Equal(t, uint8(0), again.Pix[0])
	assert.Equal(t, image.Rect(0, 0, 3, 3), again.Bounds())

	p.Put(nil)
	p.Put(image.NewRGBA(image.Rect(1, 1, 4, 4)))
}
