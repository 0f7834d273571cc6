// Package source opens raster inputs for image layers: PDF documents via
// MuPDF and plain image files.
package source

import (
	"context"
	"fmt"
	"image"
	"path/filepath"
	"strings"
	"sync"

	"github.com/gen2brain/go-fitz"
)

// Source is an ordered set of pages.
type Source interface {
	Len() int
	Bounds(page int) (width, height float64, err error)
	Page(ctx context.Context, page int, dpi int) (image.Image, error)
	Close() error
}

// DefaultDPI is used when a layer does not set one.
const DefaultDPI = 150

// Open picks the source kind from the path: PDF for .pdf files,
// image files otherwise.
func Open(path string) (Source, error) {
	if strings.EqualFold(filepath.Ext(path), ".pdf") {
		return OpenPDF(path)
	}
	return OpenImages(path)
}

// PDF renders document pages. MuPDF documents are not safe for concurrent
// use, so rendering is serialised.
type PDF struct {
	mu   sync.Mutex
	doc  *fitz.Document
	path string
}

func OpenPDF(path string) (*PDF, error) {
	doc, err := fitz.New(path)
	if err != nil {
		return nil, fmt.Errorf("open pdf %s: %w", path, err)
	}
	return &PDF{doc: doc, path: path}, nil
}

func (p *PDF) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.doc.NumPage()
}

func (p *PDF) Bounds(page int) (float64, float64, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	rect, err := p.doc.Bound(page)
	if err != nil {
		return 0, 0, err
	}
	return float64(rect.Dx()), float64(rect.Dy()), nil
}

func (p *PDF) Page(ctx context.Context, page int, dpi int) (image.Image, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if dpi <= 0 {
		dpi = DefaultDPI
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if page < 0 || page >= p.doc.NumPage() {
		return nil, fmt.Errorf("%s: page %d out of range", p.path, page)
	}
	img, err := p.doc.ImageDPI(page, float64(dpi))
	if err != nil {
		return nil, fmt.Errorf("%s: page %d: %w", p.path, page, err)
	}
	return img, nil
}

func (p *PDF) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.doc.Close()
}
