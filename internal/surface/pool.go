package surface

import (
	"image"
	"sync"
)

// Pool recycles *image.RGBA buffers by size to keep per-frame canvas and
// snapshot allocations off the garbage collector.
type Pool struct {
	pools map[image.Point]*sync.Pool
	mu    sync.RWMutex
}

var defaultPool = NewPool()

// NewPool returns an empty pool.
func NewPool() *Pool {
	return &Pool{pools: make(map[image.Point]*sync.Pool)}
}

// GetImage takes a w x h buffer from the shared pool.
func GetImage(w, h int) *image.RGBA {
	return defaultPool.Get(w, h)
}

// PutImage returns img to the shared pool.
func PutImage(img *image.RGBA) {
	defaultPool.Put(img)
}

// Get returns a zeroed buffer anchored at the origin.
func (p *Pool) Get(w, h int) *image.RGBA {
	key := image.Pt(w, h)
	p.mu.RLock()
	pool, ok := p.pools[key]
	p.mu.RUnlock()

	if !ok {
		p.mu.Lock()
		pool, ok = p.pools[key]
		if !ok {
			pool = &sync.Pool{
				New: func() any {
					return image.NewRGBA(image.Rect(0, 0, key.X, key.Y))
				},
			}
			p.pools[key] = pool
		}
		p.mu.Unlock()
	}

	img := pool.Get().(*image.RGBA)
	clear(img.Pix)
	return img
}

// Put hands img back. Buffers of a size never requested through Get, or not
// anchored at the origin, are left to the collector.
func (p *Pool) Put(img *image.RGBA) {
	if img == nil || img.Rect.Min != (image.Point{}) {
		return
	}
	p.mu.RLock()
	pool, ok := p.pools[img.Rect.Max]
	p.mu.RUnlock()

	if ok {
		pool.Put(img)
	}
}
