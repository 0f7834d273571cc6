// Package focus finds content regions in a raster and plans a camera tour
// over them as image keyframes.
package focus

import (
	"context"
	"image"
	"math"

	"golang.org/x/image/draw"
)

// Block is a region of interest in source raster coordinates.
type Block struct {
	Rect       image.Rectangle
	Confidence float64
}

// Detector finds blocks by Sobel edge detection and dilation.
type Detector struct {
	MinBlockArea  int     // px², measured on the source raster
	EdgeThreshold float64 // gradient magnitude
	MaxSide       int     // rasters are downscaled to this before analysis
}

func NewDetector() *Detector {
	return &Detector{
		MinBlockArea:  500,
		EdgeThreshold: 30,
		MaxSide:       480,
	}
}

// Detect returns connected high-contrast regions. Large rasters are
// analysed at reduced size and the blocks scaled back.
func (d *Detector) Detect(ctx context.Context, img image.Image) ([]Block, error) {
	b := img.Bounds()
	if b.Empty() {
		return nil, nil
	}
	scale := 1.0
	if side := max(b.Dx(), b.Dy()); d.MaxSide > 0 && side > d.MaxSide {
		scale = float64(d.MaxSide) / float64(side)
	}

	gray := toGray(img, scale)
	edges := sobel(gray, d.EdgeThreshold)
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	dilated := dilate(edges, 5, 2)
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	minArea := float64(d.MinBlockArea) * scale * scale
	var blocks []Block
	for _, r := range contours(dilated) {
		if float64(r.Dx()*r.Dy()) < minArea {
			continue
		}
		blocks = append(blocks, Block{
			Rect: image.Rect(
				b.Min.X+int(math.Floor(float64(r.Min.X)/scale)),
				b.Min.Y+int(math.Floor(float64(r.Min.Y)/scale)),
				b.Min.X+int(math.Ceil(float64(r.Max.X)/scale)),
				b.Min.Y+int(math.Ceil(float64(r.Max.Y)/scale)),
			).Intersect(b),
			Confidence: 0.7,
		})
	}
	return blocks, nil
}

// toGray converts to an origin-anchored grayscale copy at scale.
func toGray(img image.Image, scale float64) *image.Gray {
	b := img.Bounds()
	w := max(1, int(math.Round(float64(b.Dx())*scale)))
	h := max(1, int(math.Round(float64(b.Dy())*scale)))
	gray := image.NewGray(image.Rect(0, 0, w, h))
	if scale == 1 {
		draw.Draw(gray, gray.Rect, img, b.Min, draw.Src)
	} else {
		draw.ApproxBiLinear.Scale(gray, gray.Rect, img, b, draw.Src, nil)
	}
	return gray
}

var (
	sobelX = [3][3]int{{-1, 0, 1}, {-2, 0, 2}, {-1, 0, 1}}
	sobelY = [3][3]int{{-1, -2, -1}, {0, 0, 0}, {1, 2, 1}}
)

func sobel(gray *image.Gray, threshold float64) *image.Gray {
	w, h := gray.Rect.Dx(), gray.Rect.Dy()
	edges := image.NewGray(gray.Rect)
	for y := 1; y < h-1; y++ {
		for x := 1; x < w-1; x++ {
			var sx, sy int
			for ky := -1; ky <= 1; ky++ {
				row := (y + ky) * gray.Stride
				for kx := -1; kx <= 1; kx++ {
					p := int(gray.Pix[row+x+kx])
					sx += p * sobelX[ky+1][kx+1]
					sy += p * sobelY[ky+1][kx+1]
				}
			}
			if math.Hypot(float64(sx), float64(sy)) > threshold {
				edges.Pix[y*edges.Stride+x] = 255
			}
		}
	}
	return edges
}

// dilate grows white regions so nearby edges merge into one block.
func dilate(img *image.Gray, kernel, iterations int) *image.Gray {
	w, h := img.Rect.Dx(), img.Rect.Dy()
	half := kernel / 2
	cur := img
	for i := 0; i < iterations; i++ {
		next := image.NewGray(img.Rect)
		for y := half; y < h-half; y++ {
			for x := half; x < w-half; x++ {
				var v uint8
				for ky := -half; ky <= half && v < 255; ky++ {
					row := (y + ky) * cur.Stride
					for kx := -half; kx <= half; kx++ {
						v = max(v, cur.Pix[row+x+kx])
					}
				}
				next.Pix[y*next.Stride+x] = v
			}
		}
		cur = next
	}
	return cur
}

// contours returns bounding boxes of 4-connected white regions.
func contours(img *image.Gray) []image.Rectangle {
	w, h := img.Rect.Dx(), img.Rect.Dy()
	visited := make([]bool, w*h)
	white := func(x, y int) bool { return img.GrayAt(x, y).Y > 128 }

	var out []image.Rectangle
	var stack []image.Point
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			if visited[y*w+x] || !white(x, y) {
				continue
			}
			r := image.Rect(x, y, x+1, y+1)
			stack = append(stack[:0], image.Pt(x, y))
			visited[y*w+x] = true
			for len(stack) > 0 {
				p := stack[len(stack)-1]
				stack = stack[:len(stack)-1]
				r = r.Union(image.Rect(p.X, p.Y, p.X+1, p.Y+1))
				for _, n := range [4]image.Point{image.Pt(p.X+1, p.Y), image.Pt(p.X-1, p.Y), image.Pt(p.X, p.Y+1), image.Pt(p.X, p.Y-1)} {
					if n.X < 0 || n.Y < 0 || n.X >= w || n.Y >= h || visited[n.Y*w+n.X] || !white(n.X, n.Y) {
						continue
					}
					visited[n.Y*w+n.X] = true
					stack = append(stack, n)
				}
			}
			out = append(out, r)
		}
	}
	return out
}
