package focus

import (
	"image"
	"math"
	"sort"

	"github.com/ivlev/frameplayer/internal/node"
)

// Camera plans a tour over blocks: full view, each block in reading
// order, then full view again.
type Camera struct {
	Width, Height int     // node size the raster is shown at
	MinDwell      float64 // seconds per block
	MaxDwell      float64
	Intro         float64 // full view before the first block and after the last
	RowThreshold  int     // blocks whose tops differ less are on one row
}

func NewCamera(width, height int) *Camera {
	return &Camera{
		Width:        width,
		Height:       height,
		MinDwell:     1,
		MaxDwell:     3,
		Intro:        1,
		RowThreshold: 20,
	}
}

// Keyframes maps blocks found on a raster with bounds src to keyframes
// over duration seconds. It returns nil when there is nothing to tour.
func (c *Camera) Keyframes(blocks []Block, src image.Rectangle, duration float64) []node.Keyframe {
	if len(blocks) == 0 || duration <= 0 || src.Empty() || c.Width <= 0 || c.Height <= 0 {
		return nil
	}
	sx := float64(c.Width) / float64(src.Dx())
	sy := float64(c.Height) / float64(src.Dy())

	sorted := c.readingOrder(blocks)
	dwell := c.dwell(duration, len(sorted))

	kfs := []node.Keyframe{{Time: 0, Zoom: 1}}
	t := c.Intro
	for _, b := range sorted {
		if t >= duration {
			break
		}
		r := b.Rect.Sub(src.Min)
		bw, bh := float64(r.Dx())*sx, float64(r.Dy())*sy
		cx := (float64(r.Min.X) + float64(r.Dx())/2) * sx
		cy := (float64(r.Min.Y) + float64(r.Dy())/2) * sy

		zoom := c.zoom(bw, bh)
		kfs = append(kfs, node.Keyframe{
			Time: t,
			X:    zoom * (float64(c.Width)/2 - cx),
			Y:    zoom * (float64(c.Height)/2 - cy),
			Zoom: zoom,
		})
		t += dwell
	}
	return append(kfs, node.Keyframe{Time: math.Min(t, duration), Zoom: 1})
}

func (c *Camera) readingOrder(blocks []Block) []Block {
	sorted := make([]Block, len(blocks))
	copy(sorted, blocks)
	sort.SliceStable(sorted, func(i, j int) bool {
		a, b := sorted[i].Rect.Min, sorted[j].Rect.Min
		if dy := a.Y - b.Y; dy > c.RowThreshold || dy < -c.RowThreshold {
			return a.Y < b.Y
		}
		return a.X < b.X
	})
	return sorted
}

func (c *Camera) dwell(duration float64, n int) float64 {
	avail := duration - 2*c.Intro
	if avail <= 0 {
		avail = duration
	}
	return math.Max(c.MinDwell, math.Min(c.MaxDwell, avail/float64(n)))
}

// zoom fits a w x h block into 90% of the view, within [1, 3].
func (c *Camera) zoom(w, h float64) float64 {
	if w <= 0 || h <= 0 {
		return 1
	}
	z := math.Min(float64(c.Width)*0.9/w, float64(c.Height)*0.9/h)
	return math.Max(1, math.Min(3, z))
}
